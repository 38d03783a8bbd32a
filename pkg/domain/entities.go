// Package domain defines the persistent CRM entities, read models, and
// persistence contracts shared by the route-interest core and its backends.
package domain

import (
	"strings"
	"time"
)

// EntityType identifies the type of record stored in the domain.
type EntityType string

// Supported entity type identifiers used in errors and persistence tables.
const (
	// EntityHuman identifies a contact record.
	EntityHuman EntityType = "human"
	// EntityActivity identifies an activity record.
	EntityActivity EntityType = "activity"
	// EntityGeoInterest identifies an independently sourced city interest.
	EntityGeoInterest EntityType = "geo_interest"
	// EntityRouteInterest identifies a deduplicated origin/destination pair.
	EntityRouteInterest EntityType = "route_interest"
	// EntityRouteInterestExpression identifies a human's interest in a route.
	EntityRouteInterestExpression EntityType = "route_interest_expression"
)

// Display id prefixes per entity.
const (
	PrefixHuman                   = "HUM"
	PrefixActivity                = "ACT"
	PrefixGeoInterest             = "GEO"
	PrefixRouteInterest           = "ROI"
	PrefixRouteInterestExpression = "REX"
)

// Frequency describes how often a human intends to travel a route. Values
// other than the defaults are accepted verbatim.
type Frequency string

// FrequencyOneTime is applied when an expression is created without a frequency.
const FrequencyOneTime Frequency = "one_time"

// Base contains common fields for mutable domain records.
type Base struct {
	ID        string    `json:"id" db:"id"`
	DisplayID string    `json:"displayId" db:"display_id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Human is a CRM contact.
type Human struct {
	Base
	FirstName string `json:"firstName" db:"first_name"`
	LastName  string `json:"lastName" db:"last_name"`
}

// FullName joins first and last name with a single space.
func (h Human) FullName() string {
	return h.FirstName + " " + h.LastName
}

// Activity is an interaction logged against the CRM, optionally tied to a human.
type Activity struct {
	Base
	Subject string  `json:"subject" db:"subject"`
	HumanID *string `json:"humanId" db:"human_id"`
}

// GeoInterest is a (city, country) record sourced independently of route interests.
type GeoInterest struct {
	ID        string    `json:"id" db:"id"`
	DisplayID string    `json:"displayId" db:"display_id"`
	City      string    `json:"city" db:"city"`
	Country   string    `json:"country" db:"country"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// RouteKey is the exact 4-tuple that identifies a route interest. Comparison
// is case-sensitive and unnormalized.
type RouteKey struct {
	OriginCity         string `json:"originCity" db:"origin_city"`
	OriginCountry      string `json:"originCountry" db:"origin_country"`
	DestinationCity    string `json:"destinationCity" db:"destination_city"`
	DestinationCountry string `json:"destinationCountry" db:"destination_country"`
}

// Complete reports whether all four fields are non-empty.
func (k RouteKey) Complete() bool {
	return k.OriginCity != "" && k.OriginCountry != "" && k.DestinationCity != "" && k.DestinationCountry != ""
}

// Reverse swaps origin and destination.
func (k RouteKey) Reverse() RouteKey {
	return RouteKey{
		OriginCity:         k.DestinationCity,
		OriginCountry:      k.DestinationCountry,
		DestinationCity:    k.OriginCity,
		DestinationCountry: k.OriginCountry,
	}
}

// RouteInterest is the deduplicated origin to destination pair.
type RouteInterest struct {
	Base
	RouteKey
}

// RouteInterestExpression is one human's declared interest in one route.
type RouteInterestExpression struct {
	ID              string    `json:"id" db:"id"`
	DisplayID       string    `json:"displayId" db:"display_id"`
	HumanID         string    `json:"humanId" db:"human_id"`
	RouteInterestID string    `json:"routeInterestId" db:"route_interest_id"`
	ActivityID      *string   `json:"activityId" db:"activity_id"`
	Frequency       Frequency `json:"frequency" db:"frequency"`
	TravelYear      *int      `json:"travelYear" db:"travel_year"`
	TravelMonth     *int      `json:"travelMonth" db:"travel_month"`
	TravelDay       *int      `json:"travelDay" db:"travel_day"`
	Notes           *string   `json:"notes" db:"notes"`
	CreatedAt       time.Time `json:"createdAt" db:"created_at"`
}

// CityCandidate is a derived autocomplete entry.
type CityCandidate struct {
	City    string `json:"city"`
	Country string `json:"country"`
}

// RouteInterestSummary augments a route with aggregate counts.
type RouteInterestSummary struct {
	RouteInterest
	HumanCount      int `json:"humanCount" db:"human_count"`
	ExpressionCount int `json:"expressionCount" db:"expression_count"`
}

// ExpressionWithNames is an expression enriched for the route detail view.
type ExpressionWithNames struct {
	RouteInterestExpression
	HumanName       string  `json:"humanName"`
	ActivitySubject *string `json:"activitySubject"`
}

// RouteInterestDetail is a route with its enriched expressions.
type RouteInterestDetail struct {
	RouteInterest
	Expressions []ExpressionWithNames `json:"expressions"`
}

// ExpressionDetail is a single expression with every related field resolved.
// Relations that cannot be resolved are left nil.
type ExpressionDetail struct {
	RouteInterestExpression
	HumanName          *string `json:"humanName"`
	HumanDisplayID     *string `json:"humanDisplayId"`
	OriginCity         *string `json:"originCity"`
	OriginCountry      *string `json:"originCountry"`
	DestinationCity    *string `json:"destinationCity"`
	DestinationCountry *string `json:"destinationCountry"`
	RouteDisplayID     *string `json:"routeDisplayId"`
	ActivitySubject    *string `json:"activitySubject"`
}

// ExpressionListItem is an expression enriched for list views.
type ExpressionListItem struct {
	RouteInterestExpression
	HumanName          *string `json:"humanName"`
	OriginCity         *string `json:"originCity"`
	OriginCountry      *string `json:"originCountry"`
	DestinationCity    *string `json:"destinationCity"`
	DestinationCountry *string `json:"destinationCountry"`
	ActivitySubject    *string `json:"activitySubject"`
}

// ExpressionFilter holds AND-combined equality predicates. Empty fields are ignored.
type ExpressionFilter struct {
	HumanID         string `form:"humanId"`
	RouteInterestID string `form:"routeInterestId"`
	ActivityID      string `form:"activityId"`
}

// Matches reports whether the expression satisfies every set predicate.
func (f ExpressionFilter) Matches(e RouteInterestExpression) bool {
	if f.HumanID != "" && e.HumanID != f.HumanID {
		return false
	}
	if f.RouteInterestID != "" && e.RouteInterestID != f.RouteInterestID {
		return false
	}
	if f.ActivityID != "" && (e.ActivityID == nil || *e.ActivityID != f.ActivityID) {
		return false
	}
	return true
}

// ContainsFold reports whether substr is within s, ignoring case.
func ContainsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
