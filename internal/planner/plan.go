// Package planner transforms FQL statements into validated QueryPlans
// using the schema registry.
//
// Where-terms become builder calls: the planner checks every path against
// the registry, infers whether it crosses a to-one or a to-many relation,
// coerces literals to the field's type and lets the builder's group
// toggles do the grouping.
package planner

import (
	"github.com/matthewbaird/filterspec/internal/schema"
	"github.com/matthewbaird/filterspec/internal/spec"
)

// PlanType identifies the kind of query plan.
type PlanType int

const (
	PlanFind PlanType = iota
	PlanCount
	PlanMeta
)

func (t PlanType) String() string {
	switch t {
	case PlanFind:
		return "find"
	case PlanCount:
		return "count"
	case PlanMeta:
		return "meta"
	default:
		return "unknown"
	}
}

// QueryPlan is the validated, resolved plan ready for the executor.
type QueryPlan struct {
	Type   PlanType
	Entity string // registry entity name

	// Filter is nil when the statement has no where-terms.
	Filter *spec.Filter[schema.Row]

	// For PlanFind
	OrderBy []OrderSpec
	Limit   int // 0 = executor default
	Offset  int

	// For PlanMeta
	MetaCommand string
	MetaArgs    []string
	MetaRest    string
}

// OrderSpec is a resolved ordering specification.
type OrderSpec struct {
	Field string // field name on the root entity
	Desc  bool
}
