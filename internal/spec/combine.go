package spec

import "github.com/matthewbaird/filterspec/internal/predicate"

type entry struct {
	group     Group
	criterion *Criterion
	custom    PredicateFunc
}

// combine dispatches entries in order and returns andBucket AND orBucket.
// Empty buckets are neutral.
func combine(q Query, entries []entry) (predicate.Predicate, error) {
	var ands, ors []predicate.Predicate
	for _, e := range entries {
		var (
			p   predicate.Predicate
			err error
		)
		if e.criterion != nil {
			p, err = Dispatch(*e.criterion, q)
		} else {
			p, err = e.custom(q)
		}
		if err != nil {
			return nil, err
		}
		if p == nil {
			continue
		}
		if e.group == GroupOr {
			ors = append(ors, p)
		} else {
			ands = append(ands, p)
		}
	}
	return predicate.And(predicate.And(ands...), predicate.Or(ors...)), nil
}
