// Package query defines point queries: a set of requested attribute names
// plus a location predicate that classifies index nodes as disjoint,
// intersecting or contained, and tests individual points for inclusion.
package query

import (
	"fmt"
)

// GeometryError means a query predicate is malformed, e.g. a degenerate box.
// It is surfaced before traversal starts.
type GeometryError struct {
	cause error
}

func (e *GeometryError) Error() string {
	return fmt.Sprintf("invalid query geometry: %v", e.cause)
}

// Unwrap returns the underlying validation error.
func (e *GeometryError) Unwrap() error {
	return e.cause
}

// PointQuery describes one query: which attributes to materialize for each
// point and which region of space to search. A nil Location means all
// points. Attribute order is preserved in returned batches.
type PointQuery struct {
	Attributes []string
	Location   PointLocation
}

// Predicate returns the query's location predicate, defaulting to all
// points.
func (q *PointQuery) Predicate() PointLocation {
	if q.Location == nil {
		return AllPoints{}
	}
	return q.Location
}

// Validate rejects malformed queries before any traversal work happens.
func (q *PointQuery) Validate() error {
	seen := make(map[string]struct{}, len(q.Attributes))
	for _, name := range q.Attributes {
		if name == "" {
			return &GeometryError{cause: fmt.Errorf("empty attribute name")}
		}
		if _, ok := seen[name]; ok {
			return &GeometryError{cause: fmt.Errorf("duplicate attribute %q", name)}
		}
		seen[name] = struct{}{}
	}
	if err := q.Predicate().validate(); err != nil {
		return &GeometryError{cause: err}
	}
	return nil
}
