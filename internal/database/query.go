package database

import (
	"fmt"

	"gorm.io/gorm"
)

// FilterOperator represents SQL comparison operators.
type FilterOperator int

// FilterOperator values.
const (
	OpEqual FilterOperator = iota
	OpIn
)

// String returns the SQL representation of the operator.
func (o FilterOperator) String() string {
	if o == OpIn {
		return "IN"
	}
	return "="
}

// Filter represents a single query filter condition.
type Filter struct {
	field    string
	operator FilterOperator
	value    any
}

// Query represents a database query with filters and ascending ordering.
type Query struct {
	filters []Filter
	orderBy []string
}

// NewQuery creates a new empty Query.
func NewQuery() Query {
	return Query{}
}

func (q Query) where(field string, operator FilterOperator, value any) Query {
	q.filters = append(append([]Filter{}, q.filters...), Filter{field: field, operator: operator, value: value})
	return q
}

// Equal adds an equality filter.
func (q Query) Equal(field string, value any) Query {
	return q.where(field, OpEqual, value)
}

// In adds an IN filter.
func (q Query) In(field string, values any) Query {
	return q.where(field, OpIn, values)
}

// OrderAsc adds ascending ordering.
func (q Query) OrderAsc(field string) Query {
	q.orderBy = append(append([]string{}, q.orderBy...), field)
	return q
}

// Filters returns all filter conditions.
func (q Query) Filters() []Filter {
	result := make([]Filter, len(q.filters))
	copy(result, q.filters)
	return result
}

// Apply applies the query to a GORM database session.
func (q Query) Apply(db *gorm.DB) *gorm.DB {
	result := q.ApplyConditions(db)
	for _, field := range q.orderBy {
		result = result.Order(field + " ASC")
	}
	return result
}

// ApplyConditions applies only the WHERE conditions, for deletes.
func (q Query) ApplyConditions(db *gorm.DB) *gorm.DB {
	result := db
	for _, f := range q.filters {
		result = result.Where(fmt.Sprintf("%s %s ?", f.field, f.operator), f.value)
	}
	return result
}
