package query

import "strings"

// Builder accumulates bound arguments and WHERE conjuncts for one query.
//
// ARGUMENT ORDER:
// SQLite binds "?" markers by their position in the SQL text, so arguments
// must be bound in the same order their markers appear. Everything that
// renders before the WHERE clause (the overlay's join subquery) must
// therefore bind first, and conjuncts render in the order they were added.
type Builder struct {
	dialect Dialect
	args    []any
	conds   []string
}

func NewBuilder(d Dialect) *Builder {
	return &Builder{dialect: d}
}

// Bind appends v to the argument list and returns its placeholder.
func (b *Builder) Bind(v any) string {
	b.args = append(b.args, v)
	return b.dialect.Placeholder(len(b.args))
}

// Eq adds "column = value". column must come from a Schema.
func (b *Builder) Eq(column string, v any) {
	b.conds = append(b.conds, col(column)+" = "+b.Bind(v))
}

// IMatch adds a case-insensitive pattern match on column.
func (b *Builder) IMatch(column, pattern string) {
	b.conds = append(b.conds, b.dialect.IMatch(col(column), b.Bind(pattern)))
}

// Args returns the arguments bound so far.
func (b *Builder) Args() []any {
	return append([]any(nil), b.args...)
}

// Where renders the conjuncts, or "" when there are none.
func (b *Builder) Where() string {
	if len(b.conds) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(b.conds, " AND ")
}

// Fragment is the filter+sort clause appended to a base query.
type Fragment struct {
	Where string
	Sort  Sort
	Args  []any
}

// OrderBy renders the resolved sort, or "" for an unsorted schema.
func (f Fragment) OrderBy() string {
	if f.Sort.Column == "" {
		return ""
	}
	return "ORDER BY " + col(f.Sort.Column) + " " + strings.ToUpper(string(f.Sort.Direction))
}

// String renders "[WHERE ...] [ORDER BY ...]".
func (f Fragment) String() string {
	return joinClauses(f.Where, f.OrderBy())
}

func joinClauses(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}

// BuildPredicate adds the schema's filters for p to b and returns the
// resulting fragment. Filters are ANDed in a fixed order: project pair,
// contributor, assignee, status, search. Absent or invalid filters are
// skipped; the resolved sort is always present.
func BuildPredicate(b *Builder, s Schema, p Params) Fragment {
	if s.ProjectFilter && p.Repo != "" && p.Organisation != "" {
		b.Eq("repo", p.Repo)
		b.Eq("organisation", p.Organisation)
	}
	if s.ContributorColumn != "" && p.Contributor != "" {
		b.Eq(s.ContributorColumn, p.Contributor)
	}
	if s.AssigneeColumn != "" && p.Assignee != "" {
		b.Eq(s.AssigneeColumn, p.Assignee)
	}
	if status, ok := SanitizeStatus(s, p.Status); ok {
		b.Eq(s.StatusColumn, status)
	}
	if s.SearchColumn != "" {
		if pattern, ok := SearchPattern(p.Search); ok {
			b.IMatch(s.SearchColumn, pattern)
		}
	}

	return Fragment{
		Where: b.Where(),
		Sort:  SanitizeSort(s, p.SortBy, p.SortType),
		Args:  b.Args(),
	}
}
