// Package memory provides an in-memory implementation of the core persistence
// store used for tests and ephemeral environments.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"humans/pkg/domain"
)

// Compile-time contract assertions ensuring memory.Store adheres to the domain persistence interfaces.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Human aliases domain.Human for in-memory persistence operations.
	Human = domain.Human
	// Activity aliases domain.Activity.
	Activity = domain.Activity
	// GeoInterest aliases domain.GeoInterest.
	GeoInterest = domain.GeoInterest
	// RouteInterest aliases domain.RouteInterest.
	RouteInterest = domain.RouteInterest
	// Expression aliases domain.RouteInterestExpression.
	Expression = domain.RouteInterestExpression
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

type memoryState struct {
	humans       map[string]Human
	activities   map[string]Activity
	geoInterests map[string]GeoInterest
	routes       map[string]RouteInterest
	expressions  map[string]Expression
	sequences    map[string]int64
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Humans       map[string]Human         `json:"humans"`
	Activities   map[string]Activity      `json:"activities"`
	GeoInterests map[string]GeoInterest   `json:"geoInterests"`
	Routes       map[string]RouteInterest `json:"routeInterests"`
	Expressions  map[string]Expression    `json:"expressions"`
	Sequences    map[string]int64         `json:"sequences"`
}

func newMemoryState() memoryState {
	return memoryState{
		humans:       make(map[string]Human),
		activities:   make(map[string]Activity),
		geoInterests: make(map[string]GeoInterest),
		routes:       make(map[string]RouteInterest),
		expressions:  make(map[string]Expression),
		sequences:    make(map[string]int64),
	}
}

func (s memoryState) clone() memoryState {
	out := newMemoryState()
	for k, v := range s.humans {
		out.humans[k] = v
	}
	for k, v := range s.activities {
		out.activities[k] = cloneActivity(v)
	}
	for k, v := range s.geoInterests {
		out.geoInterests[k] = v
	}
	for k, v := range s.routes {
		out.routes[k] = v
	}
	for k, v := range s.expressions {
		out.expressions[k] = cloneExpression(v)
	}
	for k, v := range s.sequences {
		out.sequences[k] = v
	}
	return out
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	c := state.clone()
	return Snapshot{
		Humans:       c.humans,
		Activities:   c.activities,
		GeoInterests: c.geoInterests,
		Routes:       c.routes,
		Expressions:  c.expressions,
		Sequences:    c.sequences,
	}
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := memoryState{
		humans:       s.Humans,
		activities:   s.Activities,
		geoInterests: s.GeoInterests,
		routes:       s.Routes,
		expressions:  s.Expressions,
		sequences:    s.Sequences,
	}
	// clone also replaces nil maps from partial snapshots.
	return state.clone()
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneActivity(a Activity) Activity {
	a.HumanID = cloneString(a.HumanID)
	return a
}

func cloneExpression(e Expression) Expression {
	e.ActivityID = cloneString(e.ActivityID)
	e.TravelYear = cloneInt(e.TravelYear)
	e.TravelMonth = cloneInt(e.TravelMonth)
	e.TravelDay = cloneInt(e.TravelDay)
	e.Notes = cloneString(e.Notes)
	return e
}

// sortByCreation orders records by creation time, then display id.
func sortByCreation[T any](items []T, key func(T) (time.Time, string)) {
	sort.SliceStable(items, func(i, j int) bool {
		ti, di := key(items[i])
		tj, dj := key(items[j])
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return di < dj
	})
}

func humanKey(h Human) (time.Time, string)         { return h.CreatedAt, h.DisplayID }
func activityKey(a Activity) (time.Time, string)   { return a.CreatedAt, a.DisplayID }
func geoKey(g GeoInterest) (time.Time, string)     { return g.CreatedAt, g.DisplayID }
func routeKey(r RouteInterest) (time.Time, string) { return r.CreatedAt, r.DisplayID }
func expressionKey(e Expression) (time.Time, string) {
	return e.CreatedAt, e.DisplayID
}

// Store provides an in-memory transactional store for the core domain.
type Store struct {
	mu    sync.RWMutex
	state memoryState
	nowFn func() time.Time
}

// NewStore constructs an empty in-memory store.
func NewStore() *Store {
	return &Store{
		state: newMemoryState(),
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) newID() string {
	return uuid.NewString()
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(snapshot)
}

// SetNowFunc overrides the clock used to stamp records that arrive without timestamps.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn != nil {
		s.nowFn = fn
	}
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error { return nil }

// RunInTransaction executes fn within a transactional copy of the store state.
// The copy replaces the committed state only when fn returns nil.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}
	tx.view = transactionView{state: &tx.state}

	if err := fn(tx); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

// View executes fn against the committed state under the read lock. Writers
// wait until fn returns; fn must not start a transaction on the same store.
func (s *Store) View(ctx context.Context, fn func(TransactionView) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(transactionView{state: &s.state})
}

// transactionView exposes read-only access to a state. Rows with pointer
// fields are cloned on the way out.
type transactionView struct {
	state *memoryState
}

func (v transactionView) FindHuman(_ context.Context, id string) (Human, bool, error) {
	h, ok := v.state.humans[id]
	return h, ok, nil
}

func (v transactionView) FindHumans(_ context.Context, ids []string) (map[string]Human, error) {
	out := make(map[string]Human, len(ids))
	for _, id := range ids {
		if h, ok := v.state.humans[id]; ok {
			out[id] = h
		}
	}
	return out, nil
}

func (v transactionView) ListHumans(context.Context) ([]Human, error) {
	out := make([]Human, 0, len(v.state.humans))
	for _, h := range v.state.humans {
		out = append(out, h)
	}
	sortByCreation(out, humanKey)
	return out, nil
}

func (v transactionView) FindActivity(_ context.Context, id string) (Activity, bool, error) {
	a, ok := v.state.activities[id]
	if !ok {
		return Activity{}, false, nil
	}
	return cloneActivity(a), true, nil
}

func (v transactionView) FindActivities(_ context.Context, ids []string) (map[string]Activity, error) {
	out := make(map[string]Activity, len(ids))
	for _, id := range ids {
		if a, ok := v.state.activities[id]; ok {
			out[id] = cloneActivity(a)
		}
	}
	return out, nil
}

func (v transactionView) ListActivities(context.Context) ([]Activity, error) {
	out := make([]Activity, 0, len(v.state.activities))
	for _, a := range v.state.activities {
		out = append(out, cloneActivity(a))
	}
	sortByCreation(out, activityKey)
	return out, nil
}

func (v transactionView) ListGeoInterests(context.Context) ([]GeoInterest, error) {
	out := make([]GeoInterest, 0, len(v.state.geoInterests))
	for _, g := range v.state.geoInterests {
		out = append(out, g)
	}
	sortByCreation(out, geoKey)
	return out, nil
}

func (v transactionView) SearchGeoInterestsByCity(_ context.Context, query string) ([]GeoInterest, error) {
	out := make([]GeoInterest, 0)
	for _, g := range v.state.geoInterests {
		if domain.ContainsFold(g.City, query) {
			out = append(out, g)
		}
	}
	sortByCreation(out, geoKey)
	return out, nil
}

func (v transactionView) FindRouteInterest(_ context.Context, id string) (RouteInterest, bool, error) {
	r, ok := v.state.routes[id]
	return r, ok, nil
}

func (v transactionView) FindRouteInterestByKey(_ context.Context, key domain.RouteKey) (RouteInterest, bool, error) {
	for _, r := range v.state.routes {
		if r.RouteKey == key {
			return r, true, nil
		}
	}
	return RouteInterest{}, false, nil
}

func (v transactionView) FindRouteInterests(_ context.Context, ids []string) (map[string]RouteInterest, error) {
	out := make(map[string]RouteInterest, len(ids))
	for _, id := range ids {
		if r, ok := v.state.routes[id]; ok {
			out[id] = r
		}
	}
	return out, nil
}

func (v transactionView) ListRouteInterestSummaries(context.Context) ([]domain.RouteInterestSummary, error) {
	expressionCounts := make(map[string]int, len(v.state.routes))
	humans := make(map[string]map[string]struct{}, len(v.state.routes))
	for _, e := range v.state.expressions {
		expressionCounts[e.RouteInterestID]++
		set, ok := humans[e.RouteInterestID]
		if !ok {
			set = make(map[string]struct{})
			humans[e.RouteInterestID] = set
		}
		set[e.HumanID] = struct{}{}
	}
	out := make([]domain.RouteInterestSummary, 0, len(v.state.routes))
	for id, r := range v.state.routes {
		out = append(out, domain.RouteInterestSummary{
			RouteInterest:   r,
			HumanCount:      len(humans[id]),
			ExpressionCount: expressionCounts[id],
		})
	}
	sortByCreation(out, func(s domain.RouteInterestSummary) (time.Time, string) {
		return s.CreatedAt, s.DisplayID
	})
	return out, nil
}

func (v transactionView) SearchRouteInterestsByCity(_ context.Context, query string) ([]RouteInterest, error) {
	out := make([]RouteInterest, 0)
	for _, r := range v.state.routes {
		if domain.ContainsFold(r.OriginCity, query) || domain.ContainsFold(r.DestinationCity, query) {
			out = append(out, r)
		}
	}
	sortByCreation(out, routeKey)
	return out, nil
}

func (v transactionView) FindExpression(_ context.Context, id string) (Expression, bool, error) {
	e, ok := v.state.expressions[id]
	if !ok {
		return Expression{}, false, nil
	}
	return cloneExpression(e), true, nil
}

func (v transactionView) ListExpressions(_ context.Context, filter domain.ExpressionFilter) ([]Expression, error) {
	out := make([]Expression, 0)
	for _, e := range v.state.expressions {
		if filter.Matches(e) {
			out = append(out, cloneExpression(e))
		}
	}
	sortByCreation(out, expressionKey)
	return out, nil
}

// transaction represents a mutation set applied to a cloned store state.
type transaction struct {
	view  transactionView
	store *Store
	state memoryState
	now   time.Time
}

func (tx *transaction) FindHuman(ctx context.Context, id string) (Human, bool, error) {
	return tx.view.FindHuman(ctx, id)
}

func (tx *transaction) FindHumans(ctx context.Context, ids []string) (map[string]Human, error) {
	return tx.view.FindHumans(ctx, ids)
}

func (tx *transaction) ListHumans(ctx context.Context) ([]Human, error) {
	return tx.view.ListHumans(ctx)
}

func (tx *transaction) FindActivity(ctx context.Context, id string) (Activity, bool, error) {
	return tx.view.FindActivity(ctx, id)
}

func (tx *transaction) FindActivities(ctx context.Context, ids []string) (map[string]Activity, error) {
	return tx.view.FindActivities(ctx, ids)
}

func (tx *transaction) ListActivities(ctx context.Context) ([]Activity, error) {
	return tx.view.ListActivities(ctx)
}

func (tx *transaction) ListGeoInterests(ctx context.Context) ([]GeoInterest, error) {
	return tx.view.ListGeoInterests(ctx)
}

func (tx *transaction) SearchGeoInterestsByCity(ctx context.Context, query string) ([]GeoInterest, error) {
	return tx.view.SearchGeoInterestsByCity(ctx, query)
}

func (tx *transaction) FindRouteInterest(ctx context.Context, id string) (RouteInterest, bool, error) {
	return tx.view.FindRouteInterest(ctx, id)
}

func (tx *transaction) FindRouteInterestByKey(ctx context.Context, key domain.RouteKey) (RouteInterest, bool, error) {
	return tx.view.FindRouteInterestByKey(ctx, key)
}

func (tx *transaction) FindRouteInterests(ctx context.Context, ids []string) (map[string]RouteInterest, error) {
	return tx.view.FindRouteInterests(ctx, ids)
}

func (tx *transaction) ListRouteInterestSummaries(ctx context.Context) ([]domain.RouteInterestSummary, error) {
	return tx.view.ListRouteInterestSummaries(ctx)
}

func (tx *transaction) SearchRouteInterestsByCity(ctx context.Context, query string) ([]RouteInterest, error) {
	return tx.view.SearchRouteInterestsByCity(ctx, query)
}

func (tx *transaction) FindExpression(ctx context.Context, id string) (Expression, bool, error) {
	return tx.view.FindExpression(ctx, id)
}

func (tx *transaction) ListExpressions(ctx context.Context, filter domain.ExpressionFilter) ([]Expression, error) {
	return tx.view.ListExpressions(ctx, filter)
}

// NextDisplayID advances the per-prefix counter.
func (tx *transaction) NextDisplayID(_ context.Context, prefix string) (string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "", fmt.Errorf("display id prefix required: %w", domain.ErrValidation)
	}
	tx.state.sequences[prefix]++
	return domain.FormatDisplayID(prefix, tx.state.sequences[prefix]), nil
}

// stamp fills id and creation timestamps left empty by the caller.
func (tx *transaction) stamp(id *string, created *time.Time) {
	if *id == "" {
		*id = tx.store.newID()
	}
	if created.IsZero() {
		*created = tx.now
	}
}

// CreateHuman stores a new human within the transaction.
func (tx *transaction) CreateHuman(_ context.Context, h Human) (Human, error) {
	tx.stamp(&h.ID, &h.CreatedAt)
	if h.UpdatedAt.IsZero() {
		h.UpdatedAt = h.CreatedAt
	}
	if _, exists := tx.state.humans[h.ID]; exists {
		return Human{}, fmt.Errorf("human %q already exists", h.ID)
	}
	tx.state.humans[h.ID] = h
	return h, nil
}

// DeleteHuman removes a human. Humans referenced by expressions are kept;
// activities pointing at the human are detached.
func (tx *transaction) DeleteHuman(_ context.Context, id string) error {
	if _, ok := tx.state.humans[id]; !ok {
		return domain.NotFound(domain.EntityHuman, id)
	}
	for _, e := range tx.state.expressions {
		if e.HumanID == id {
			return fmt.Errorf("human %q still referenced by expression %q: %w", id, e.ID, domain.ErrConflict)
		}
	}
	for aid, a := range tx.state.activities {
		if a.HumanID != nil && *a.HumanID == id {
			a.HumanID = nil
			tx.state.activities[aid] = a
		}
	}
	delete(tx.state.humans, id)
	return nil
}

// CreateActivity stores a new activity.
func (tx *transaction) CreateActivity(_ context.Context, a Activity) (Activity, error) {
	tx.stamp(&a.ID, &a.CreatedAt)
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = a.CreatedAt
	}
	if _, exists := tx.state.activities[a.ID]; exists {
		return Activity{}, fmt.Errorf("activity %q already exists", a.ID)
	}
	if a.HumanID != nil {
		if _, ok := tx.state.humans[*a.HumanID]; !ok {
			return Activity{}, domain.NotFound(domain.EntityHuman, *a.HumanID)
		}
	}
	tx.state.activities[a.ID] = cloneActivity(a)
	return cloneActivity(a), nil
}

// DeleteActivity removes an activity and clears expression references to it.
func (tx *transaction) DeleteActivity(_ context.Context, id string) error {
	if _, ok := tx.state.activities[id]; !ok {
		return domain.NotFound(domain.EntityActivity, id)
	}
	for eid, e := range tx.state.expressions {
		if e.ActivityID != nil && *e.ActivityID == id {
			e.ActivityID = nil
			tx.state.expressions[eid] = e
		}
	}
	delete(tx.state.activities, id)
	return nil
}

// CreateGeoInterest stores a new geo interest.
func (tx *transaction) CreateGeoInterest(_ context.Context, g GeoInterest) (GeoInterest, error) {
	tx.stamp(&g.ID, &g.CreatedAt)
	if _, exists := tx.state.geoInterests[g.ID]; exists {
		return GeoInterest{}, fmt.Errorf("geo interest %q already exists", g.ID)
	}
	tx.state.geoInterests[g.ID] = g
	return g, nil
}

// DeleteGeoInterest removes a geo interest.
func (tx *transaction) DeleteGeoInterest(_ context.Context, id string) error {
	if _, ok := tx.state.geoInterests[id]; !ok {
		return domain.NotFound(domain.EntityGeoInterest, id)
	}
	delete(tx.state.geoInterests, id)
	return nil
}

// CreateRouteInterest stores a route unless its 4-tuple is already present.
func (tx *transaction) CreateRouteInterest(_ context.Context, r RouteInterest) (RouteInterest, error) {
	tx.stamp(&r.ID, &r.CreatedAt)
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = r.CreatedAt
	}
	if _, exists := tx.state.routes[r.ID]; exists {
		return RouteInterest{}, fmt.Errorf("route interest %q already exists", r.ID)
	}
	for _, existing := range tx.state.routes {
		if existing.RouteKey == r.RouteKey {
			return RouteInterest{}, domain.ErrDuplicateRoute
		}
	}
	tx.state.routes[r.ID] = r
	return r, nil
}

// DeleteRouteInterest removes a route. Callers delete its expressions first.
func (tx *transaction) DeleteRouteInterest(_ context.Context, id string) error {
	if _, ok := tx.state.routes[id]; !ok {
		return domain.NotFound(domain.EntityRouteInterest, id)
	}
	for _, e := range tx.state.expressions {
		if e.RouteInterestID == id {
			return fmt.Errorf("route interest %q still referenced by expression %q: %w", id, e.ID, domain.ErrConflict)
		}
	}
	delete(tx.state.routes, id)
	return nil
}

// CreateExpression stores a new expression. The route and activity ids are
// stored as given.
func (tx *transaction) CreateExpression(_ context.Context, e Expression) (Expression, error) {
	tx.stamp(&e.ID, &e.CreatedAt)
	if _, exists := tx.state.expressions[e.ID]; exists {
		return Expression{}, fmt.Errorf("expression %q already exists", e.ID)
	}
	if _, ok := tx.state.humans[e.HumanID]; !ok {
		return Expression{}, domain.NotFound(domain.EntityHuman, e.HumanID)
	}
	tx.state.expressions[e.ID] = cloneExpression(e)
	return cloneExpression(e), nil
}

// UpdateExpression mutates an expression using the provided mutator function.
func (tx *transaction) UpdateExpression(_ context.Context, id string, mutator func(*Expression) error) (Expression, error) {
	current, ok := tx.state.expressions[id]
	if !ok {
		return Expression{}, domain.NotFound(domain.EntityRouteInterestExpression, id)
	}
	current = cloneExpression(current)
	if err := mutator(&current); err != nil {
		return Expression{}, err
	}
	current.ID = id
	tx.state.expressions[id] = cloneExpression(current)
	return cloneExpression(current), nil
}

// DeleteExpression removes a single expression.
func (tx *transaction) DeleteExpression(_ context.Context, id string) error {
	if _, ok := tx.state.expressions[id]; !ok {
		return domain.NotFound(domain.EntityRouteInterestExpression, id)
	}
	delete(tx.state.expressions, id)
	return nil
}

// DeleteExpressionsByRouteInterest removes every expression of the route.
func (tx *transaction) DeleteExpressionsByRouteInterest(_ context.Context, routeInterestID string) (int, error) {
	removed := 0
	for id, e := range tx.state.expressions {
		if e.RouteInterestID == routeInterestID {
			delete(tx.state.expressions, id)
			removed++
		}
	}
	return removed, nil
}
