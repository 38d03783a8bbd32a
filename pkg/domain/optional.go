package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Optional carries a patch field that distinguishes an omitted key from an
// explicit null. Set is true whenever the key was present; Value is nil when
// the key was present with a null value.
type Optional[T any] struct {
	Set   bool
	Value *T
}

// Some returns a present, non-null Optional.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: &v}
}

// Null returns a present Optional holding null.
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true}
}

// Apply overwrites dst when the field was present.
func (o Optional[T]) Apply(dst **T) {
	if !o.Set {
		return
	}
	if o.Value == nil {
		*dst = nil
		return
	}
	v := *o.Value
	*dst = &v
}

// UnmarshalJSON is only invoked for keys present in the payload, which is
// what marks the field as set.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// MarshalJSON renders the value or null.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if o.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*o.Value)
}

// ExpressionPatch is a partial update of an expression's scalar fields.
type ExpressionPatch struct {
	Frequency   Optional[Frequency] `json:"frequency"`
	TravelYear  Optional[int]       `json:"travelYear"`
	TravelMonth Optional[int]       `json:"travelMonth"`
	TravelDay   Optional[int]       `json:"travelDay"`
	Notes       Optional[string]    `json:"notes"`
	ActivityID  Optional[string]    `json:"activityId"`
}

// Empty reports whether no field was supplied.
func (p ExpressionPatch) Empty() bool {
	return !p.Frequency.Set && !p.TravelYear.Set && !p.TravelMonth.Set &&
		!p.TravelDay.Set && !p.Notes.Set && !p.ActivityID.Set
}

// Validate rejects patches that would null a non-nullable column.
func (p ExpressionPatch) Validate() error {
	if p.Frequency.Set && p.Frequency.Value == nil {
		return fmt.Errorf("frequency cannot be null: %w", ErrValidation)
	}
	return nil
}

// ApplyTo mutates e with every present field.
func (p ExpressionPatch) ApplyTo(e *RouteInterestExpression) {
	if p.Frequency.Set && p.Frequency.Value != nil {
		e.Frequency = *p.Frequency.Value
	}
	p.TravelYear.Apply(&e.TravelYear)
	p.TravelMonth.Apply(&e.TravelMonth)
	p.TravelDay.Apply(&e.TravelDay)
	p.Notes.Apply(&e.Notes)
	p.ActivityID.Apply(&e.ActivityID)
}
