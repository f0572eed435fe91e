package executor

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/matthewbaird/filterspec/internal/planner"
)

// ErrUnsupportedPlan is returned for plans the executor does not run, such
// as meta-commands, which the REPL session handles itself.
var ErrUnsupportedPlan = errors.New("executor: unsupported plan")

// Execute runs a validated query plan and returns the result.
func (x *Executor) Execute(ctx context.Context, plan *planner.QueryPlan) (*Result, error) {
	switch plan.Type {
	case planner.PlanFind:
		rows, err := x.FindRows(ctx, plan.Entity, plan.Filter, options(plan))
		if err != nil {
			return nil, err
		}
		return &Result{
			Rows: rows,
			Meta: &ResultMeta{Entity: plan.Entity, Total: len(rows)},
		}, nil

	case planner.PlanCount:
		n, err := x.CountRows(ctx, plan.Entity, plan.Filter)
		if err != nil {
			return nil, err
		}
		return &Result{
			Count: &n,
			Meta:  &ResultMeta{Entity: plan.Entity, Total: n},
		}, nil

	default:
		return nil, errors.Wrapf(ErrUnsupportedPlan, "%s plan", plan.Type)
	}
}

// ExplainPlan renders the statement Execute would run for plan.
func (x *Executor) ExplainPlan(plan *planner.QueryPlan) (*Statement, error) {
	switch plan.Type {
	case planner.PlanFind:
		return x.Explain(plan.Entity, plan.Filter, options(plan), false)
	case planner.PlanCount:
		return x.Explain(plan.Entity, plan.Filter, QueryOptions{}, true)
	default:
		return nil, errors.Wrapf(ErrUnsupportedPlan, "%s plan", plan.Type)
	}
}

func options(plan *planner.QueryPlan) QueryOptions {
	opts := QueryOptions{Limit: plan.Limit, Offset: plan.Offset}
	for _, o := range plan.OrderBy {
		opts.OrderBy = append(opts.OrderBy, Order{Field: o.Field, Desc: o.Desc})
	}
	return opts
}
