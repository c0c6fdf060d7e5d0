package sqlite

import (
	"database/sql/driver"
	"fmt"
	"regexp"
	"sync"

	msqlite "modernc.org/sqlite"
)

// SQLite parses "x REGEXP y" as regexp(y, x) but ships no implementation.
// We register one backed by Go's regexp package. Compiled patterns are
// cached; the planner only ever sends escaped literals with a (?i) prefix,
// so the set of distinct patterns stays small.
var patterns sync.Map // string → *regexp.Regexp

func init() {
	msqlite.MustRegisterDeterministicScalarFunction("regexp", 2, sqlRegexp)
}

func sqlRegexp(_ *msqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	pattern, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("regexp: pattern must be text, got %T", args[0])
	}

	var subject string
	switch v := args[1].(type) {
	case nil:
		return int64(0), nil
	case string:
		subject = v
	case []byte:
		subject = string(v)
	default:
		subject = fmt.Sprint(v)
	}

	re, err := compile(pattern)
	if err != nil {
		return nil, err
	}
	if re.MatchString(subject) {
		return int64(1), nil
	}
	return int64(0), nil
}

func compile(pattern string) (*regexp.Regexp, error) {
	if re, ok := patterns.Load(pattern); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("regexp: %w", err)
	}
	patterns.Store(pattern, re)
	return re, nil
}
