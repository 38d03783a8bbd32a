package core

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/collate"

	"humans/pkg/domain"
)

// SearchCities merges city candidates from route interests and geo interests
// matching query. Route cities are re-checked against the query on each
// side of the route; geo interests are taken as the store returns them.
// Results are unique by (city, country) and ordered by city then country
// under the configured collation.
func (s *Service) SearchCities(ctx context.Context, query string) ([]domain.CityCandidate, error) {
	out := []domain.CityCandidate{}
	if strings.TrimSpace(query) == "" {
		return out, nil
	}
	err := s.run(ctx, "search_cities", func(ctx context.Context) error {
		return s.store.View(ctx, func(v TransactionView) error {
			var (
				routes []domain.RouteInterest
				geos   []domain.GeoInterest
			)
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				var err error
				routes, err = v.SearchRouteInterestsByCity(gctx, query)
				return err
			})
			g.Go(func() error {
				var err error
				geos, err = v.SearchGeoInterestsByCity(gctx, query)
				return err
			})
			if err := g.Wait(); err != nil {
				return err
			}
			out = mergeCityCandidates(query, routes, geos)
			s.sortCities(out)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func mergeCityCandidates(query string, routes []domain.RouteInterest, geos []domain.GeoInterest) []domain.CityCandidate {
	needle := strings.ToLower(query)
	seen := make(map[domain.CityCandidate]struct{})
	out := []domain.CityCandidate{}
	add := func(c domain.CityCandidate) {
		if _, ok := seen[c]; ok {
			return
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	for _, r := range routes {
		if strings.Contains(strings.ToLower(r.OriginCity), needle) {
			add(domain.CityCandidate{City: r.OriginCity, Country: r.OriginCountry})
		}
		if strings.Contains(strings.ToLower(r.DestinationCity), needle) {
			add(domain.CityCandidate{City: r.DestinationCity, Country: r.DestinationCountry})
		}
	}
	for _, g := range geos {
		add(domain.CityCandidate{City: g.City, Country: g.Country})
	}
	return out
}

// sortCities orders candidates in place. Collators keep per-call buffers, so
// each sort builds its own.
func (s *Service) sortCities(cities []domain.CityCandidate) {
	c := collate.New(s.collation)
	sort.SliceStable(cities, func(i, j int) bool {
		if cmp := c.CompareString(cities[i].City, cities[j].City); cmp != 0 {
			return cmp < 0
		}
		return c.CompareString(cities[i].Country, cities[j].Country) < 0
	})
}
