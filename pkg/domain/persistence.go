package domain

import "context"

// TransactionView provides read-only access to store state. Batch finders
// return maps keyed by id and silently omit ids that do not resolve.
type TransactionView interface {
	FindHuman(ctx context.Context, id string) (Human, bool, error)
	FindHumans(ctx context.Context, ids []string) (map[string]Human, error)
	ListHumans(ctx context.Context) ([]Human, error)

	FindActivity(ctx context.Context, id string) (Activity, bool, error)
	FindActivities(ctx context.Context, ids []string) (map[string]Activity, error)
	ListActivities(ctx context.Context) ([]Activity, error)

	ListGeoInterests(ctx context.Context) ([]GeoInterest, error)
	// SearchGeoInterestsByCity is the store-level substring pre-filter on city.
	SearchGeoInterestsByCity(ctx context.Context, query string) ([]GeoInterest, error)

	FindRouteInterest(ctx context.Context, id string) (RouteInterest, bool, error)
	FindRouteInterestByKey(ctx context.Context, key RouteKey) (RouteInterest, bool, error)
	FindRouteInterests(ctx context.Context, ids []string) (map[string]RouteInterest, error)
	ListRouteInterestSummaries(ctx context.Context) ([]RouteInterestSummary, error)
	// SearchRouteInterestsByCity is the store-level substring pre-filter on
	// origin or destination city.
	SearchRouteInterestsByCity(ctx context.Context, query string) ([]RouteInterest, error)

	FindExpression(ctx context.Context, id string) (RouteInterestExpression, bool, error)
	ListExpressions(ctx context.Context, filter ExpressionFilter) ([]RouteInterestExpression, error)
}

// Transaction exposes the mutations a persistence implementation must
// support within an atomic scope. Reads inside a transaction observe its
// own uncommitted writes.
type Transaction interface {
	TransactionView

	// NextDisplayID allocates the next sequential display id for prefix.
	NextDisplayID(ctx context.Context, prefix string) (string, error)

	CreateHuman(ctx context.Context, h Human) (Human, error)
	DeleteHuman(ctx context.Context, id string) error
	CreateActivity(ctx context.Context, a Activity) (Activity, error)
	DeleteActivity(ctx context.Context, id string) error
	CreateGeoInterest(ctx context.Context, g GeoInterest) (GeoInterest, error)
	DeleteGeoInterest(ctx context.Context, id string) error

	// CreateRouteInterest returns ErrDuplicateRoute when the 4-tuple exists.
	CreateRouteInterest(ctx context.Context, r RouteInterest) (RouteInterest, error)
	DeleteRouteInterest(ctx context.Context, id string) error

	CreateExpression(ctx context.Context, e RouteInterestExpression) (RouteInterestExpression, error)
	UpdateExpression(ctx context.Context, id string, mutator func(*RouteInterestExpression) error) (RouteInterestExpression, error)
	DeleteExpression(ctx context.Context, id string) error
	// DeleteExpressionsByRouteInterest removes every expression of a route and
	// reports how many were removed.
	DeleteExpressionsByRouteInterest(ctx context.Context, routeInterestID string) (int, error)
}

// PersistentStore is the abstraction over durable backends used by the core.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) error
	View(ctx context.Context, fn func(TransactionView) error) error
	Close() error
}
