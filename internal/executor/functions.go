package executor

import (
	"database/sql/driver"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"modernc.org/sqlite"
)

var (
	// functions maps SQL function names to their implementations.
	functions = map[string]func(*sqlite.FunctionContext, []driver.Value) (driver.Value, error){
		"match_keyword": matchKeyword,
	}

	// builtins back rendered predicates and are not callable from filters.
	builtins = map[string]func(*sqlite.FunctionContext, []driver.Value) (driver.Value, error){
		foldFunc: fold,
	}

	registerOnce sync.Once
	registerErr  error
)

// RegisterFunctions installs the SQL functions filters can call on the
// modernc SQLite driver. It must run before connections are opened and is
// safe to call more than once.
//
//	match_keyword(text, keyword...)  true if text contains any keyword, ignoring case
//
// It also installs fold(text), the Unicode lower-casing used by
// case-insensitive LIKE. SQLite's LOWER only folds ASCII.
func RegisterFunctions() error {
	registerOnce.Do(func() {
		for _, name := range Functions() {
			if err := sqlite.RegisterDeterministicScalarFunction(name, -1, functions[name]); err != nil {
				registerErr = errors.Wrapf(err, "register %s", name)
				return
			}
		}
		for name, fn := range builtins {
			if err := sqlite.RegisterDeterministicScalarFunction(name, 1, fn); err != nil {
				registerErr = errors.Wrapf(err, "register %s", name)
				return
			}
		}
	})
	return registerErr
}

// Functions returns the names of the functions RegisterFunctions installs,
// sorted.
func Functions() []string {
	names := make([]string, 0, len(functions))
	for name := range functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func matchKeyword(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) < 2 {
		return nil, errors.Newf("match_keyword: want at least 2 arguments, got %d", len(args))
	}
	if args[0] == nil {
		return int64(0), nil
	}
	text := strings.ToLower(asText(args[0]))
	for _, kw := range args[1:] {
		if kw == nil {
			continue
		}
		if strings.Contains(text, strings.ToLower(asText(kw))) {
			return int64(1), nil
		}
	}
	return int64(0), nil
}

// foldFunc names the SQL function fold is registered as.
const foldFunc = "fold"

func fold(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if args[0] == nil {
		return nil, nil
	}
	return strings.ToLower(asText(args[0])), nil
}

func asText(v driver.Value) string {
	switch v := v.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}
