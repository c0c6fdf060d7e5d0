// Package query builds and runs the bounded, parameterized read queries
// behind every listing endpoint.
//
// THE PIPELINE:
//
//	Params (untrusted)  ─┐
//	Schema (trusted)    ─┼─► Plan ─► Query ─► Executor ─► Envelope
//	Viewer (optional)   ─┘
//
//   - Schema is a declarative, per-endpoint description: which relation to
//     read, what to project, which filters exist, which columns may be
//     sorted on and what the default sort is. Schemas are written by us and
//     are the ONLY source of identifiers that reach SQL text.
//   - Params are raw query-string values. They are sanitized (unknown sort
//     columns, bad directions, unknown status values and bad offsets fall
//     back to defaults, never to errors) and then only ever bound as
//     arguments, never concatenated.
//   - Viewer is the authenticated caller, if any. When present and the
//     schema is personalized, the Overlay left-joins the caller's watchlist.
//
// Every column reference is qualified with the relation alias "v", so the
// same WHERE clause works whether or not the watchlist join is present.
package query

import (
	"fmt"
	"regexp"
)

// Alias is the table alias every schema relation is read under.
const Alias = "v"

// PageSize is the fixed number of rows a list query returns at most.
// Clients cannot change it.
const PageSize = 100

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Sort is a resolved ORDER BY: Column is always one of a schema's
// SortColumns.
type Sort struct {
	Column    string
	Direction Direction
}

// Schema declares one listing endpoint.
type Schema struct {
	// Name is the logical endpoint name used in logs, metrics and
	// client-facing failure messages (e.g. "tab_commits").
	Name string

	// Relation is the view or table to read. It is aliased as "v".
	Relation string

	// Projection is the SELECT list, written against the alias
	// (e.g. "v.*" or "v.dev_name AS contributor, v.avatar_url").
	Projection string

	// ProjectFilter enables the repo+organisation pair filter.
	ProjectFilter bool

	// ContributorColumn, when set, is compared to the contributor param.
	ContributorColumn string

	// AssigneeColumn, when set, is compared to the assignee param.
	AssigneeColumn string

	// StatusColumn and StatusValues enable the status enum filter.
	// A status outside StatusValues is ignored.
	StatusColumn string
	StatusValues []string

	// SearchColumn is the one text column free-text search matches.
	SearchColumn string

	// SortColumns is the sort allow-list. DefaultSort is used whenever the
	// requested column or direction is not allowed.
	SortColumns []string
	DefaultSort Sort

	// FixedSort ignores sortBy/sortType entirely.
	FixedSort bool

	// Personalized endpoints get the watchlist overlay columns.
	Personalized bool

	// ScopeColumn restricts rows to the viewer's own (e.g. user_id on the
	// watchlist tab). Scoped schemas require an authenticated viewer.
	ScopeColumn string
}

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Validate checks that every identifier in the schema is a plain lowercase
// SQL identifier and that the default sort is part of the allow-list.
// The server validates the whole catalogue at startup.
func (s Schema) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("query: schema has no name")
	}
	if s.Projection == "" {
		return fmt.Errorf("query: schema %s: empty projection", s.Name)
	}
	idents := []string{s.Relation}
	for _, c := range []string{s.ContributorColumn, s.AssigneeColumn, s.StatusColumn, s.SearchColumn, s.ScopeColumn} {
		if c != "" {
			idents = append(idents, c)
		}
	}
	idents = append(idents, s.SortColumns...)
	for _, id := range idents {
		if !identRe.MatchString(id) {
			return fmt.Errorf("query: schema %s: invalid identifier %q", s.Name, id)
		}
	}
	if s.StatusColumn != "" && len(s.StatusValues) == 0 {
		return fmt.Errorf("query: schema %s: status column without values", s.Name)
	}
	// Unsorted schemas (singleton aggregates) declare no sort at all.
	if len(s.SortColumns) == 0 && s.DefaultSort == (Sort{}) {
		return nil
	}
	if !s.sortable(s.DefaultSort.Column) {
		return fmt.Errorf("query: schema %s: default sort %q not in allow-list", s.Name, s.DefaultSort.Column)
	}
	if s.DefaultSort.Direction != Asc && s.DefaultSort.Direction != Desc {
		return fmt.Errorf("query: schema %s: invalid default direction %q", s.Name, s.DefaultSort.Direction)
	}
	return nil
}

func (s Schema) sortable(column string) bool {
	for _, c := range s.SortColumns {
		if c == column {
			return true
		}
	}
	return false
}

// col qualifies a schema column with the relation alias.
func col(name string) string {
	return Alias + "." + name
}
