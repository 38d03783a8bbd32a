package core

import (
	"context"
	"fmt"
	"strings"

	"humans/pkg/domain"
)

func requireField(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is required: %w", name, domain.ErrValidation)
	}
	return nil
}

// CreateHuman persists a new human.
func (s *Service) CreateHuman(ctx context.Context, human domain.Human) (domain.Human, error) {
	var created domain.Human
	err := s.run(ctx, "create_human", func(ctx context.Context) error {
		if err := requireField("firstName", human.FirstName); err != nil {
			return err
		}
		if err := requireField("lastName", human.LastName); err != nil {
			return err
		}
		return s.store.RunInTransaction(ctx, func(tx Transaction) error {
			displayID, err := tx.NextDisplayID(ctx, domain.PrefixHuman)
			if err != nil {
				return err
			}
			now := s.now()
			human.Base = domain.Base{ID: s.newID(), DisplayID: displayID, CreatedAt: now, UpdatedAt: now}
			created, err = tx.CreateHuman(ctx, human)
			return err
		})
	})
	return created, err
}

// GetHuman returns a human by id.
func (s *Service) GetHuman(ctx context.Context, id string) (domain.Human, error) {
	var human domain.Human
	err := s.run(ctx, "get_human", func(ctx context.Context) error {
		return s.store.View(ctx, func(v TransactionView) error {
			found, ok, err := v.FindHuman(ctx, id)
			if err != nil {
				return err
			}
			if !ok {
				return domain.NotFound(domain.EntityHuman, id)
			}
			human = found
			return nil
		})
	})
	return human, err
}

// ListHumans returns every human.
func (s *Service) ListHumans(ctx context.Context) ([]domain.Human, error) {
	var out []domain.Human
	err := s.run(ctx, "list_humans", func(ctx context.Context) error {
		return s.store.View(ctx, func(v TransactionView) error {
			var err error
			out, err = v.ListHumans(ctx)
			return err
		})
	})
	return out, err
}

// DeleteHuman removes a human that no expression references.
func (s *Service) DeleteHuman(ctx context.Context, id string) error {
	return s.run(ctx, "delete_human", func(ctx context.Context) error {
		return s.store.RunInTransaction(ctx, func(tx Transaction) error {
			return tx.DeleteHuman(ctx, id)
		})
	})
}

// CreateActivity persists a new activity, optionally linked to a human.
func (s *Service) CreateActivity(ctx context.Context, activity domain.Activity) (domain.Activity, error) {
	var created domain.Activity
	err := s.run(ctx, "create_activity", func(ctx context.Context) error {
		if err := requireField("subject", activity.Subject); err != nil {
			return err
		}
		return s.store.RunInTransaction(ctx, func(tx Transaction) error {
			if activity.HumanID != nil {
				if _, ok, err := tx.FindHuman(ctx, *activity.HumanID); err != nil {
					return err
				} else if !ok {
					return domain.NotFound(domain.EntityHuman, *activity.HumanID)
				}
			}
			displayID, err := tx.NextDisplayID(ctx, domain.PrefixActivity)
			if err != nil {
				return err
			}
			now := s.now()
			activity.Base = domain.Base{ID: s.newID(), DisplayID: displayID, CreatedAt: now, UpdatedAt: now}
			created, err = tx.CreateActivity(ctx, activity)
			return err
		})
	})
	return created, err
}

// GetActivity returns an activity by id.
func (s *Service) GetActivity(ctx context.Context, id string) (domain.Activity, error) {
	var activity domain.Activity
	err := s.run(ctx, "get_activity", func(ctx context.Context) error {
		return s.store.View(ctx, func(v TransactionView) error {
			found, ok, err := v.FindActivity(ctx, id)
			if err != nil {
				return err
			}
			if !ok {
				return domain.NotFound(domain.EntityActivity, id)
			}
			activity = found
			return nil
		})
	})
	return activity, err
}

// ListActivities returns every activity.
func (s *Service) ListActivities(ctx context.Context) ([]domain.Activity, error) {
	var out []domain.Activity
	err := s.run(ctx, "list_activities", func(ctx context.Context) error {
		return s.store.View(ctx, func(v TransactionView) error {
			var err error
			out, err = v.ListActivities(ctx)
			return err
		})
	})
	return out, err
}

// DeleteActivity removes an activity. Expressions pointing at it keep their
// row with the activity cleared.
func (s *Service) DeleteActivity(ctx context.Context, id string) error {
	return s.run(ctx, "delete_activity", func(ctx context.Context) error {
		return s.store.RunInTransaction(ctx, func(tx Transaction) error {
			return tx.DeleteActivity(ctx, id)
		})
	})
}

// CreateGeoInterest persists a new city interest.
func (s *Service) CreateGeoInterest(ctx context.Context, geo domain.GeoInterest) (domain.GeoInterest, error) {
	var created domain.GeoInterest
	err := s.run(ctx, "create_geo_interest", func(ctx context.Context) error {
		if err := requireField("city", geo.City); err != nil {
			return err
		}
		if err := requireField("country", geo.Country); err != nil {
			return err
		}
		return s.store.RunInTransaction(ctx, func(tx Transaction) error {
			displayID, err := tx.NextDisplayID(ctx, domain.PrefixGeoInterest)
			if err != nil {
				return err
			}
			geo.ID = s.newID()
			geo.DisplayID = displayID
			geo.CreatedAt = s.now()
			created, err = tx.CreateGeoInterest(ctx, geo)
			return err
		})
	})
	return created, err
}

// ListGeoInterests returns every geo interest.
func (s *Service) ListGeoInterests(ctx context.Context) ([]domain.GeoInterest, error) {
	var out []domain.GeoInterest
	err := s.run(ctx, "list_geo_interests", func(ctx context.Context) error {
		return s.store.View(ctx, func(v TransactionView) error {
			var err error
			out, err = v.ListGeoInterests(ctx)
			return err
		})
	})
	return out, err
}

// DeleteGeoInterest removes a geo interest.
func (s *Service) DeleteGeoInterest(ctx context.Context, id string) error {
	return s.run(ctx, "delete_geo_interest", func(ctx context.Context) error {
		return s.store.RunInTransaction(ctx, func(tx Transaction) error {
			return tx.DeleteGeoInterest(ctx, id)
		})
	})
}
