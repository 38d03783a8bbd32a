package core

import (
	"context"
	"errors"
	"fmt"

	"humans/pkg/domain"
)

// ResolveRouteInterest returns the route interest for the exact key, creating
// it when absent. created reports whether this call inserted the row.
func (s *Service) ResolveRouteInterest(ctx context.Context, key domain.RouteKey) (domain.RouteInterest, bool, error) {
	var (
		route   domain.RouteInterest
		created bool
	)
	err := s.run(ctx, "resolve_route_interest", func(ctx context.Context) error {
		if !key.Complete() {
			return fmt.Errorf("origin and destination city and country are required: %w", domain.ErrValidation)
		}
		err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			route, created, err = s.resolveRoute(ctx, tx, key)
			return err
		})
		if errors.Is(err, domain.ErrDuplicateRoute) {
			route, err = s.findRouteWinner(ctx, key)
			created = false
		}
		return err
	})
	if err != nil {
		return domain.RouteInterest{}, false, err
	}
	return route, created, nil
}

// resolveRoute is the resolve-or-create step shared with expression creation.
func (s *Service) resolveRoute(ctx context.Context, tx Transaction, key domain.RouteKey) (domain.RouteInterest, bool, error) {
	existing, ok, err := tx.FindRouteInterestByKey(ctx, key)
	if err != nil {
		return domain.RouteInterest{}, false, err
	}
	if ok {
		return existing, false, nil
	}
	displayID, err := tx.NextDisplayID(ctx, domain.PrefixRouteInterest)
	if err != nil {
		return domain.RouteInterest{}, false, err
	}
	now := s.now()
	route, err := tx.CreateRouteInterest(ctx, domain.RouteInterest{
		Base: domain.Base{
			ID:        s.newID(),
			DisplayID: displayID,
			CreatedAt: now,
			UpdatedAt: now,
		},
		RouteKey: key,
	})
	if err != nil {
		return domain.RouteInterest{}, false, err
	}
	s.logger.Info("route interest created", "id", route.ID, "displayId", route.DisplayID)
	return route, true, nil
}

// findRouteWinner re-reads a route after losing an insert race on its key.
func (s *Service) findRouteWinner(ctx context.Context, key domain.RouteKey) (domain.RouteInterest, error) {
	var route domain.RouteInterest
	err := s.store.View(ctx, func(v TransactionView) error {
		found, ok, err := v.FindRouteInterestByKey(ctx, key)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("route interest missing after duplicate insert: %w", domain.ErrDuplicateRoute)
		}
		route = found
		return nil
	})
	return route, err
}

// ListRouteInterests returns every route with its distinct human count and
// expression count.
func (s *Service) ListRouteInterests(ctx context.Context) ([]domain.RouteInterestSummary, error) {
	var out []domain.RouteInterestSummary
	err := s.run(ctx, "list_route_interests", func(ctx context.Context) error {
		return s.store.View(ctx, func(v TransactionView) error {
			var err error
			out, err = v.ListRouteInterestSummaries(ctx)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetRouteInterest returns a route with its expressions enriched by human
// name and activity subject.
func (s *Service) GetRouteInterest(ctx context.Context, id string) (domain.RouteInterestDetail, error) {
	var detail domain.RouteInterestDetail
	err := s.run(ctx, "get_route_interest", func(ctx context.Context) error {
		return s.store.View(ctx, func(v TransactionView) error {
			route, ok, err := v.FindRouteInterest(ctx, id)
			if err != nil {
				return err
			}
			if !ok {
				return domain.NotFound(domain.EntityRouteInterest, id)
			}
			expressions, err := v.ListExpressions(ctx, domain.ExpressionFilter{RouteInterestID: id})
			if err != nil {
				return err
			}
			humanIDs, activityIDs := relationIDs(expressions)
			humans, err := v.FindHumans(ctx, humanIDs)
			if err != nil {
				return err
			}
			activities, err := v.FindActivities(ctx, activityIDs)
			if err != nil {
				return err
			}
			detail = domain.RouteInterestDetail{
				RouteInterest: route,
				Expressions:   make([]domain.ExpressionWithNames, 0, len(expressions)),
			}
			for _, e := range expressions {
				item := domain.ExpressionWithNames{RouteInterestExpression: e}
				if h, ok := humans[e.HumanID]; ok {
					item.HumanName = h.FullName()
				}
				item.ActivitySubject = activitySubject(activities, e.ActivityID)
				detail.Expressions = append(detail.Expressions, item)
			}
			return nil
		})
	})
	if err != nil {
		return domain.RouteInterestDetail{}, err
	}
	return detail, nil
}

// DeleteRouteInterest removes a route and every expression referencing it in
// one transaction.
func (s *Service) DeleteRouteInterest(ctx context.Context, id string) error {
	return s.run(ctx, "delete_route_interest", func(ctx context.Context) error {
		return s.store.RunInTransaction(ctx, func(tx Transaction) error {
			if _, ok, err := tx.FindRouteInterest(ctx, id); err != nil {
				return err
			} else if !ok {
				return domain.NotFound(domain.EntityRouteInterest, id)
			}
			removed, err := tx.DeleteExpressionsByRouteInterest(ctx, id)
			if err != nil {
				return err
			}
			if err := tx.DeleteRouteInterest(ctx, id); err != nil {
				return err
			}
			s.logger.Info("route interest deleted", "id", id, "expressionsRemoved", removed)
			return nil
		})
	})
}

func relationIDs(expressions []domain.RouteInterestExpression) (humanIDs, activityIDs []string) {
	for _, e := range expressions {
		humanIDs = append(humanIDs, e.HumanID)
		if e.ActivityID != nil {
			activityIDs = append(activityIDs, *e.ActivityID)
		}
	}
	return humanIDs, activityIDs
}

func activitySubject(activities map[string]domain.Activity, id *string) *string {
	if id == nil {
		return nil
	}
	a, ok := activities[*id]
	if !ok {
		return nil
	}
	subject := a.Subject
	return &subject
}
