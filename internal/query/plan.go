package query

import (
	"strconv"

	"github.com/sakif/filpulse/internal/apperror"
)

// Query is a fully planned read: trusted SQL text with bound arguments.
type Query struct {
	Name       string
	Projection string
	Source     string
	Fragment   Fragment
	// BoolColumns are normalised to Go bools after scanning; SQLite returns
	// its TRUE/FALSE as integers.
	BoolColumns []string

	dialect Dialect
}

// Plan turns a schema, the caller's params and the viewer into a Query.
// It fails only when a scoped schema is planned for an anonymous viewer.
func Plan(d Dialect, s Schema, p Params, viewer Viewer) (Query, error) {
	if s.ScopeColumn != "" && !viewer.Authenticated() {
		return Query{}, apperror.Unauthenticated("authentication required")
	}

	b := NewBuilder(d)
	q := Query{
		Name:       s.Name,
		Projection: s.Projection,
		Source:     s.Relation + " AS " + Alias,
		dialect:    d,
	}
	if s.Personalized {
		q.Projection, q.Source = Watchlist.Apply(b, s, viewer)
		q.BoolColumns = []string{FollowedColumn, ViewedColumn}
	}
	if s.ScopeColumn != "" {
		b.Eq(s.ScopeColumn, viewer.UserID)
	}
	q.Fragment = BuildPredicate(b, s, p)
	return q, nil
}

func (q Query) selectSQL() string {
	return joinClauses("SELECT "+q.Projection+" FROM "+q.Source, q.Fragment.Where)
}

// CountSQL counts the rows of the filtered relation. Sorting does not change
// a count, so the ORDER BY is left out.
func (q Query) CountSQL() string {
	return "SELECT COUNT(*) FROM (" + q.selectSQL() + ") AS total"
}

// PageSQL selects one page. LIMIT and OFFSET are bound after the predicate
// arguments; PageArgs returns the matching argument list.
func (q Query) PageSQL() string {
	n := len(q.Fragment.Args)
	return joinClauses(q.selectSQL(), q.Fragment.OrderBy(),
		"LIMIT "+q.placeholder(n+1), "OFFSET "+q.placeholder(n+2))
}

// PageArgs returns the predicate arguments followed by limit and offset.
func (q Query) PageArgs(limit, offset int64) []any {
	args := append([]any(nil), q.Fragment.Args...)
	return append(args, limit, offset)
}

// SingleSQL selects every row of the filtered relation in sort order, with
// no pagination. Used for singleton aggregates.
func (q Query) SingleSQL() string {
	return joinClauses(q.selectSQL(), q.Fragment.OrderBy())
}

func (q Query) placeholder(n int) string {
	if q.dialect == nil {
		return "$" + strconv.Itoa(n)
	}
	return q.dialect.Placeholder(n)
}
