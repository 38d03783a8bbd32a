package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"humans/pkg/domain"
)

const (
	humanColumns      = `id, display_id, first_name, last_name, created_at, updated_at`
	activityColumns   = `id, display_id, subject, human_id, created_at, updated_at`
	geoColumns        = `id, display_id, city, country, created_at`
	routeColumns      = `id, display_id, origin_city, origin_country, destination_city, destination_country, created_at, updated_at`
	expressionColumns = `id, display_id, human_id, route_interest_id, activity_id, frequency, travel_year, travel_month, travel_day, notes, created_at`
)

// queries implements domain.TransactionView over a pool or a transaction.
type queries struct {
	q sqlx.ExtContext
	d Dialect
}

func (r queries) get(ctx context.Context, dest any, query string, args ...any) (bool, error) {
	err := sqlx.GetContext(ctx, r.q, dest, r.d.rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r queries) selectAll(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.SelectContext(ctx, r.q, dest, r.d.rebind(query), args...)
}

// selectIn expands a single IN (?) placeholder with ids.
func (r queries) selectIn(ctx context.Context, dest any, query string, ids []string) error {
	expanded, args, err := sqlx.In(query, ids)
	if err != nil {
		return err
	}
	return r.selectAll(ctx, dest, expanded, args...)
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (r queries) FindHuman(ctx context.Context, id string) (domain.Human, bool, error) {
	var h domain.Human
	ok, err := r.get(ctx, &h, `SELECT `+humanColumns+` FROM humans WHERE id = ?`, id)
	if err != nil {
		return domain.Human{}, false, fmt.Errorf("find human: %w", err)
	}
	return h, ok, nil
}

func (r queries) FindHumans(ctx context.Context, ids []string) (map[string]domain.Human, error) {
	ids = uniqueIDs(ids)
	out := make(map[string]domain.Human, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []domain.Human
	if err := r.selectIn(ctx, &rows, `SELECT `+humanColumns+` FROM humans WHERE id IN (?)`, ids); err != nil {
		return nil, fmt.Errorf("find humans: %w", err)
	}
	for _, h := range rows {
		out[h.ID] = h
	}
	return out, nil
}

func (r queries) ListHumans(ctx context.Context) ([]domain.Human, error) {
	rows := []domain.Human{}
	if err := r.selectAll(ctx, &rows, `SELECT `+humanColumns+` FROM humans ORDER BY created_at, display_id`); err != nil {
		return nil, fmt.Errorf("list humans: %w", err)
	}
	return rows, nil
}

func (r queries) FindActivity(ctx context.Context, id string) (domain.Activity, bool, error) {
	var a domain.Activity
	ok, err := r.get(ctx, &a, `SELECT `+activityColumns+` FROM activities WHERE id = ?`, id)
	if err != nil {
		return domain.Activity{}, false, fmt.Errorf("find activity: %w", err)
	}
	return a, ok, nil
}

func (r queries) FindActivities(ctx context.Context, ids []string) (map[string]domain.Activity, error) {
	ids = uniqueIDs(ids)
	out := make(map[string]domain.Activity, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []domain.Activity
	if err := r.selectIn(ctx, &rows, `SELECT `+activityColumns+` FROM activities WHERE id IN (?)`, ids); err != nil {
		return nil, fmt.Errorf("find activities: %w", err)
	}
	for _, a := range rows {
		out[a.ID] = a
	}
	return out, nil
}

func (r queries) ListActivities(ctx context.Context) ([]domain.Activity, error) {
	rows := []domain.Activity{}
	if err := r.selectAll(ctx, &rows, `SELECT `+activityColumns+` FROM activities ORDER BY created_at, display_id`); err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	return rows, nil
}

func (r queries) ListGeoInterests(ctx context.Context) ([]domain.GeoInterest, error) {
	rows := []domain.GeoInterest{}
	if err := r.selectAll(ctx, &rows, `SELECT `+geoColumns+` FROM geo_interests ORDER BY created_at, display_id`); err != nil {
		return nil, fmt.Errorf("list geo interests: %w", err)
	}
	return rows, nil
}

func (r queries) SearchGeoInterestsByCity(ctx context.Context, query string) ([]domain.GeoInterest, error) {
	rows := []domain.GeoInterest{}
	stmt := `SELECT ` + geoColumns + ` FROM geo_interests WHERE city ` + r.d.LikeOperator + ` ? ESCAPE '\' ORDER BY created_at, display_id`
	if err := r.selectAll(ctx, &rows, stmt, ContainsPattern(query)); err != nil {
		return nil, fmt.Errorf("search geo interests: %w", err)
	}
	return rows, nil
}

func (r queries) FindRouteInterest(ctx context.Context, id string) (domain.RouteInterest, bool, error) {
	var ri domain.RouteInterest
	ok, err := r.get(ctx, &ri, `SELECT `+routeColumns+` FROM route_interests WHERE id = ?`, id)
	if err != nil {
		return domain.RouteInterest{}, false, fmt.Errorf("find route interest: %w", err)
	}
	return ri, ok, nil
}

func (r queries) FindRouteInterestByKey(ctx context.Context, key domain.RouteKey) (domain.RouteInterest, bool, error) {
	var ri domain.RouteInterest
	ok, err := r.get(ctx, &ri, `SELECT `+routeColumns+` FROM route_interests
		WHERE origin_city = ? AND origin_country = ? AND destination_city = ? AND destination_country = ?`,
		key.OriginCity, key.OriginCountry, key.DestinationCity, key.DestinationCountry)
	if err != nil {
		return domain.RouteInterest{}, false, fmt.Errorf("find route interest by key: %w", err)
	}
	return ri, ok, nil
}

func (r queries) FindRouteInterests(ctx context.Context, ids []string) (map[string]domain.RouteInterest, error) {
	ids = uniqueIDs(ids)
	out := make(map[string]domain.RouteInterest, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []domain.RouteInterest
	if err := r.selectIn(ctx, &rows, `SELECT `+routeColumns+` FROM route_interests WHERE id IN (?)`, ids); err != nil {
		return nil, fmt.Errorf("find route interests: %w", err)
	}
	for _, ri := range rows {
		out[ri.ID] = ri
	}
	return out, nil
}

func (r queries) ListRouteInterestSummaries(ctx context.Context) ([]domain.RouteInterestSummary, error) {
	rows := []domain.RouteInterestSummary{}
	err := r.selectAll(ctx, &rows, `SELECT r.id, r.display_id, r.origin_city, r.origin_country,
		r.destination_city, r.destination_country, r.created_at, r.updated_at,
		COUNT(DISTINCT e.human_id) AS human_count,
		COUNT(e.id) AS expression_count
		FROM route_interests r
		LEFT JOIN route_interest_expressions e ON e.route_interest_id = r.id
		GROUP BY r.id
		ORDER BY r.created_at, r.display_id`)
	if err != nil {
		return nil, fmt.Errorf("list route interest summaries: %w", err)
	}
	return rows, nil
}

func (r queries) SearchRouteInterestsByCity(ctx context.Context, query string) ([]domain.RouteInterest, error) {
	rows := []domain.RouteInterest{}
	pattern := ContainsPattern(query)
	op := r.d.LikeOperator
	stmt := `SELECT ` + routeColumns + ` FROM route_interests
		WHERE origin_city ` + op + ` ? ESCAPE '\' OR destination_city ` + op + ` ? ESCAPE '\'
		ORDER BY created_at, display_id`
	if err := r.selectAll(ctx, &rows, stmt, pattern, pattern); err != nil {
		return nil, fmt.Errorf("search route interests: %w", err)
	}
	return rows, nil
}

func (r queries) FindExpression(ctx context.Context, id string) (domain.RouteInterestExpression, bool, error) {
	var e domain.RouteInterestExpression
	ok, err := r.get(ctx, &e, `SELECT `+expressionColumns+` FROM route_interest_expressions WHERE id = ?`, id)
	if err != nil {
		return domain.RouteInterestExpression{}, false, fmt.Errorf("find expression: %w", err)
	}
	return e, ok, nil
}

func (r queries) ListExpressions(ctx context.Context, filter domain.ExpressionFilter) ([]domain.RouteInterestExpression, error) {
	query := `SELECT ` + expressionColumns + ` FROM route_interest_expressions WHERE 1=1`
	args := []any{}
	if filter.HumanID != "" {
		query += ` AND human_id = ?`
		args = append(args, filter.HumanID)
	}
	if filter.RouteInterestID != "" {
		query += ` AND route_interest_id = ?`
		args = append(args, filter.RouteInterestID)
	}
	if filter.ActivityID != "" {
		query += ` AND activity_id = ?`
		args = append(args, filter.ActivityID)
	}
	query += ` ORDER BY created_at, display_id`
	rows := []domain.RouteInterestExpression{}
	if err := r.selectAll(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list expressions: %w", err)
	}
	return rows, nil
}
