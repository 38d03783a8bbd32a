package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"humans/pkg/domain"
)

// transaction implements domain.Transaction over a *sqlx.Tx.
type transaction struct {
	queries
	now time.Time
}

func (tx *transaction) stamp(id *string, created *time.Time) {
	if *id == "" {
		*id = uuid.NewString()
	}
	if created.IsZero() {
		*created = tx.now
	}
}

// namedExec binds a :name style statement against arg and executes it.
func (tx *transaction) namedExec(ctx context.Context, query string, arg any) (sql.Result, error) {
	bound, args, err := sqlx.Named(query, arg)
	if err != nil {
		return nil, err
	}
	return tx.q.ExecContext(ctx, tx.d.rebind(bound), args...)
}

func (tx *transaction) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return tx.q.ExecContext(ctx, tx.d.rebind(query), args...)
}

// deleteByID removes one row and maps a zero row count to ErrNotFound.
func (tx *transaction) deleteByID(ctx context.Context, table string, entity domain.EntityType, id string) error {
	res, err := tx.exec(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		if tx.d.foreignKeyViolation(err) {
			return fmt.Errorf("delete %s %q: still referenced: %w", entity, id, domain.ErrConflict)
		}
		return fmt.Errorf("delete %s: %w", entity, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s: %w", entity, err)
	}
	if n == 0 {
		return domain.NotFound(entity, id)
	}
	return nil
}

// NextDisplayID advances the per-prefix counter with an upsert.
func (tx *transaction) NextDisplayID(ctx context.Context, prefix string) (string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "", fmt.Errorf("display id prefix required: %w", domain.ErrValidation)
	}
	var seq int64
	_, err := tx.get(ctx, &seq, `INSERT INTO display_id_sequences (prefix, value) VALUES (?, 1)
		ON CONFLICT (prefix) DO UPDATE SET value = display_id_sequences.value + 1
		RETURNING value`, prefix)
	if err != nil {
		return "", fmt.Errorf("allocate display id: %w", err)
	}
	return domain.FormatDisplayID(prefix, seq), nil
}

func (tx *transaction) CreateHuman(ctx context.Context, h domain.Human) (domain.Human, error) {
	tx.stamp(&h.ID, &h.CreatedAt)
	if h.UpdatedAt.IsZero() {
		h.UpdatedAt = h.CreatedAt
	}
	_, err := tx.namedExec(ctx, `INSERT INTO humans (`+humanColumns+`)
		VALUES (:id, :display_id, :first_name, :last_name, :created_at, :updated_at)`, h)
	if err != nil {
		return domain.Human{}, fmt.Errorf("insert human: %w", err)
	}
	return h, nil
}

// DeleteHuman refuses while expressions reference the human. Activities are
// detached by the schema.
func (tx *transaction) DeleteHuman(ctx context.Context, id string) error {
	var refs int
	if _, err := tx.get(ctx, &refs, `SELECT COUNT(*) FROM route_interest_expressions WHERE human_id = ?`, id); err != nil {
		return fmt.Errorf("count human expressions: %w", err)
	}
	if refs > 0 {
		return fmt.Errorf("human %q still referenced by %d expressions: %w", id, refs, domain.ErrConflict)
	}
	return tx.deleteByID(ctx, "humans", domain.EntityHuman, id)
}

func (tx *transaction) CreateActivity(ctx context.Context, a domain.Activity) (domain.Activity, error) {
	tx.stamp(&a.ID, &a.CreatedAt)
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = a.CreatedAt
	}
	_, err := tx.namedExec(ctx, `INSERT INTO activities (`+activityColumns+`)
		VALUES (:id, :display_id, :subject, :human_id, :created_at, :updated_at)`, a)
	if err != nil {
		if tx.d.foreignKeyViolation(err) && a.HumanID != nil {
			return domain.Activity{}, domain.NotFound(domain.EntityHuman, *a.HumanID)
		}
		return domain.Activity{}, fmt.Errorf("insert activity: %w", err)
	}
	return a, nil
}

// DeleteActivity removes an activity and clears expression references to it.
func (tx *transaction) DeleteActivity(ctx context.Context, id string) error {
	if err := tx.deleteByID(ctx, "activities", domain.EntityActivity, id); err != nil {
		return err
	}
	if _, err := tx.exec(ctx, `UPDATE route_interest_expressions SET activity_id = NULL WHERE activity_id = ?`, id); err != nil {
		return fmt.Errorf("detach activity expressions: %w", err)
	}
	return nil
}

func (tx *transaction) CreateGeoInterest(ctx context.Context, g domain.GeoInterest) (domain.GeoInterest, error) {
	tx.stamp(&g.ID, &g.CreatedAt)
	_, err := tx.namedExec(ctx, `INSERT INTO geo_interests (`+geoColumns+`)
		VALUES (:id, :display_id, :city, :country, :created_at)`, g)
	if err != nil {
		return domain.GeoInterest{}, fmt.Errorf("insert geo interest: %w", err)
	}
	return g, nil
}

func (tx *transaction) DeleteGeoInterest(ctx context.Context, id string) error {
	return tx.deleteByID(ctx, "geo_interests", domain.EntityGeoInterest, id)
}

// CreateRouteInterest inserts a route. A collision on the route tuple
// surfaces as domain.ErrDuplicateRoute.
func (tx *transaction) CreateRouteInterest(ctx context.Context, ri domain.RouteInterest) (domain.RouteInterest, error) {
	tx.stamp(&ri.ID, &ri.CreatedAt)
	if ri.UpdatedAt.IsZero() {
		ri.UpdatedAt = ri.CreatedAt
	}
	_, err := tx.namedExec(ctx, `INSERT INTO route_interests (`+routeColumns+`)
		VALUES (:id, :display_id, :origin_city, :origin_country, :destination_city, :destination_country, :created_at, :updated_at)`, ri)
	if err != nil {
		if tx.d.uniqueViolation(err) {
			return domain.RouteInterest{}, domain.ErrDuplicateRoute
		}
		return domain.RouteInterest{}, fmt.Errorf("insert route interest: %w", err)
	}
	return ri, nil
}

// DeleteRouteInterest refuses while expressions reference the route. Callers
// delete them first.
func (tx *transaction) DeleteRouteInterest(ctx context.Context, id string) error {
	var refs int
	if _, err := tx.get(ctx, &refs, `SELECT COUNT(*) FROM route_interest_expressions WHERE route_interest_id = ?`, id); err != nil {
		return fmt.Errorf("count route expressions: %w", err)
	}
	if refs > 0 {
		return fmt.Errorf("route interest %q still referenced by %d expressions: %w", id, refs, domain.ErrConflict)
	}
	return tx.deleteByID(ctx, "route_interests", domain.EntityRouteInterest, id)
}

func (tx *transaction) CreateExpression(ctx context.Context, e domain.RouteInterestExpression) (domain.RouteInterestExpression, error) {
	tx.stamp(&e.ID, &e.CreatedAt)
	_, err := tx.namedExec(ctx, `INSERT INTO route_interest_expressions (`+expressionColumns+`)
		VALUES (:id, :display_id, :human_id, :route_interest_id, :activity_id, :frequency,
		:travel_year, :travel_month, :travel_day, :notes, :created_at)`, e)
	if err != nil {
		if tx.d.foreignKeyViolation(err) {
			return domain.RouteInterestExpression{}, domain.NotFound(domain.EntityHuman, e.HumanID)
		}
		return domain.RouteInterestExpression{}, fmt.Errorf("insert expression: %w", err)
	}
	return e, nil
}

// UpdateExpression reads the row, applies mutator and writes every mutable column back.
func (tx *transaction) UpdateExpression(ctx context.Context, id string, mutator func(*domain.RouteInterestExpression) error) (domain.RouteInterestExpression, error) {
	current, ok, err := tx.FindExpression(ctx, id)
	if err != nil {
		return domain.RouteInterestExpression{}, err
	}
	if !ok {
		return domain.RouteInterestExpression{}, domain.NotFound(domain.EntityRouteInterestExpression, id)
	}
	if err := mutator(&current); err != nil {
		return domain.RouteInterestExpression{}, err
	}
	current.ID = id
	_, err = tx.namedExec(ctx, `UPDATE route_interest_expressions SET
		activity_id = :activity_id, frequency = :frequency, travel_year = :travel_year,
		travel_month = :travel_month, travel_day = :travel_day, notes = :notes
		WHERE id = :id`, current)
	if err != nil {
		return domain.RouteInterestExpression{}, fmt.Errorf("update expression: %w", err)
	}
	return current, nil
}

func (tx *transaction) DeleteExpression(ctx context.Context, id string) error {
	return tx.deleteByID(ctx, "route_interest_expressions", domain.EntityRouteInterestExpression, id)
}

func (tx *transaction) DeleteExpressionsByRouteInterest(ctx context.Context, routeInterestID string) (int, error) {
	res, err := tx.exec(ctx, `DELETE FROM route_interest_expressions WHERE route_interest_id = ?`, routeInterestID)
	if err != nil {
		return 0, fmt.Errorf("delete route expressions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete route expressions: %w", err)
	}
	return int(n), nil
}
