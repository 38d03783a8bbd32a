package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"humans/pkg/domain"
)

// ExpressionInput describes a new expression. Either RouteInterestID or the
// full route key must be supplied.
type ExpressionInput struct {
	HumanID         string
	RouteInterestID string
	Route           domain.RouteKey
	ActivityID      *string
	Frequency       domain.Frequency
	TravelYear      *int
	TravelMonth     *int
	TravelDay       *int
	Notes           *string
}

// CreateExpression records a human's interest in a route, resolving the
// route from its key when no id is given. Resolution and insert share one
// transaction.
func (s *Service) CreateExpression(ctx context.Context, input ExpressionInput) (domain.RouteInterestExpression, error) {
	var created domain.RouteInterestExpression
	err := s.run(ctx, "create_expression", func(ctx context.Context) error {
		if strings.TrimSpace(input.HumanID) == "" {
			return fmt.Errorf("humanId is required: %w", domain.ErrValidation)
		}
		if input.RouteInterestID == "" && !input.Route.Complete() {
			return fmt.Errorf("routeInterestId or origin and destination city and country are required: %w", domain.ErrValidation)
		}
		var err error
		created, err = s.createExpression(ctx, input)
		if errors.Is(err, domain.ErrDuplicateRoute) {
			// A concurrent writer created the route; the retry resolves to it.
			created, err = s.createExpression(ctx, input)
		}
		return err
	})
	if err != nil {
		return domain.RouteInterestExpression{}, err
	}
	return created, nil
}

func (s *Service) createExpression(ctx context.Context, input ExpressionInput) (domain.RouteInterestExpression, error) {
	var created domain.RouteInterestExpression
	err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		if _, ok, err := tx.FindHuman(ctx, input.HumanID); err != nil {
			return err
		} else if !ok {
			return domain.NotFound(domain.EntityHuman, input.HumanID)
		}

		routeID := input.RouteInterestID
		if routeID == "" {
			route, wasCreated, err := s.resolveRoute(ctx, tx, input.Route)
			if err != nil {
				return err
			}
			routeID = route.ID
			s.logger.Debug("route interest resolved for expression", "routeInterestId", routeID, "created", wasCreated)
		}

		if input.ActivityID != nil {
			if _, ok, err := tx.FindActivity(ctx, *input.ActivityID); err != nil {
				return err
			} else if !ok {
				return domain.NotFound(domain.EntityActivity, *input.ActivityID)
			}
		}

		displayID, err := tx.NextDisplayID(ctx, domain.PrefixRouteInterestExpression)
		if err != nil {
			return err
		}
		frequency := input.Frequency
		if frequency == "" {
			frequency = domain.FrequencyOneTime
		}
		created, err = tx.CreateExpression(ctx, domain.RouteInterestExpression{
			ID:              s.newID(),
			DisplayID:       displayID,
			HumanID:         input.HumanID,
			RouteInterestID: routeID,
			ActivityID:      input.ActivityID,
			Frequency:       frequency,
			TravelYear:      input.TravelYear,
			TravelMonth:     input.TravelMonth,
			TravelDay:       input.TravelDay,
			Notes:           input.Notes,
			CreatedAt:       s.now(),
		})
		return err
	})
	return created, err
}

// GetExpression returns one expression with its route, human and activity
// resolved. Missing relations leave the corresponding fields nil.
func (s *Service) GetExpression(ctx context.Context, id string) (domain.ExpressionDetail, error) {
	var detail domain.ExpressionDetail
	err := s.run(ctx, "get_expression", func(ctx context.Context) error {
		return s.store.View(ctx, func(v TransactionView) error {
			e, ok, err := v.FindExpression(ctx, id)
			if err != nil {
				return err
			}
			if !ok {
				return domain.NotFound(domain.EntityRouteInterestExpression, id)
			}
			var (
				route         domain.RouteInterest
				routeFound    bool
				human         domain.Human
				humanFound    bool
				activity      domain.Activity
				activityFound bool
			)
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				var err error
				route, routeFound, err = v.FindRouteInterest(gctx, e.RouteInterestID)
				return err
			})
			g.Go(func() error {
				var err error
				human, humanFound, err = v.FindHuman(gctx, e.HumanID)
				return err
			})
			if e.ActivityID != nil {
				activityID := *e.ActivityID
				g.Go(func() error {
					var err error
					activity, activityFound, err = v.FindActivity(gctx, activityID)
					return err
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			detail = domain.ExpressionDetail{RouteInterestExpression: e}
			if humanFound {
				detail.HumanName = strPtr(human.FullName())
				detail.HumanDisplayID = strPtr(human.DisplayID)
			}
			if routeFound {
				detail.OriginCity = strPtr(route.OriginCity)
				detail.OriginCountry = strPtr(route.OriginCountry)
				detail.DestinationCity = strPtr(route.DestinationCity)
				detail.DestinationCountry = strPtr(route.DestinationCountry)
				detail.RouteDisplayID = strPtr(route.DisplayID)
			}
			if activityFound {
				detail.ActivitySubject = strPtr(activity.Subject)
			}
			return nil
		})
	})
	if err != nil {
		return domain.ExpressionDetail{}, err
	}
	return detail, nil
}

// ListExpressions returns the expressions matching every set filter field,
// enriched with human name, route cities and activity subject.
func (s *Service) ListExpressions(ctx context.Context, filter domain.ExpressionFilter) ([]domain.ExpressionListItem, error) {
	var out []domain.ExpressionListItem
	err := s.run(ctx, "list_expressions", func(ctx context.Context) error {
		return s.store.View(ctx, func(v TransactionView) error {
			expressions, err := v.ListExpressions(ctx, filter)
			if err != nil {
				return err
			}
			humanIDs, activityIDs := relationIDs(expressions)
			routeIDs := make([]string, 0, len(expressions))
			for _, e := range expressions {
				routeIDs = append(routeIDs, e.RouteInterestID)
			}

			var (
				humans     map[string]domain.Human
				routes     map[string]domain.RouteInterest
				activities map[string]domain.Activity
			)
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				var err error
				humans, err = v.FindHumans(gctx, humanIDs)
				return err
			})
			g.Go(func() error {
				var err error
				routes, err = v.FindRouteInterests(gctx, routeIDs)
				return err
			})
			g.Go(func() error {
				var err error
				activities, err = v.FindActivities(gctx, activityIDs)
				return err
			})
			if err := g.Wait(); err != nil {
				return err
			}

			out = make([]domain.ExpressionListItem, 0, len(expressions))
			for _, e := range expressions {
				item := domain.ExpressionListItem{RouteInterestExpression: e}
				if h, ok := humans[e.HumanID]; ok {
					item.HumanName = strPtr(h.FullName())
				}
				if r, ok := routes[e.RouteInterestID]; ok {
					item.OriginCity = strPtr(r.OriginCity)
					item.OriginCountry = strPtr(r.OriginCountry)
					item.DestinationCity = strPtr(r.DestinationCity)
					item.DestinationCountry = strPtr(r.DestinationCountry)
				}
				item.ActivitySubject = activitySubject(activities, e.ActivityID)
				out = append(out, item)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateExpression overwrites every field present in patch and returns the
// stored row. Present fields are written as given; activityId is not checked
// against existing activities.
func (s *Service) UpdateExpression(ctx context.Context, id string, patch domain.ExpressionPatch) (domain.RouteInterestExpression, error) {
	var updated domain.RouteInterestExpression
	err := s.run(ctx, "update_expression", func(ctx context.Context) error {
		return s.store.RunInTransaction(ctx, func(tx Transaction) error {
			// Stores resolve the id before calling the mutator, so a missing
			// expression wins over an invalid patch.
			if _, err := tx.UpdateExpression(ctx, id, func(e *domain.RouteInterestExpression) error {
				if err := patch.Validate(); err != nil {
					return err
				}
				patch.ApplyTo(e)
				return nil
			}); err != nil {
				return err
			}
			reread, ok, err := tx.FindExpression(ctx, id)
			if err != nil {
				return err
			}
			if !ok {
				return domain.NotFound(domain.EntityRouteInterestExpression, id)
			}
			updated = reread
			return nil
		})
	})
	if err != nil {
		return domain.RouteInterestExpression{}, err
	}
	return updated, nil
}

// DeleteExpression removes a single expression.
func (s *Service) DeleteExpression(ctx context.Context, id string) error {
	return s.run(ctx, "delete_expression", func(ctx context.Context) error {
		return s.store.RunInTransaction(ctx, func(tx Transaction) error {
			return tx.DeleteExpression(ctx, id)
		})
	})
}

func strPtr(v string) *string {
	return &v
}
