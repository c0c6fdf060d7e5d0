package query

import (
	"fmt"
	"strings"
)

// Personalization columns added to every personalized schema's projection.
const (
	FollowedColumn = "followed"
	ViewedColumn   = "viewed"
)

// Viewer is the caller a query runs for. The zero value is anonymous.
type Viewer struct {
	UserID string
}

func (v Viewer) Authenticated() bool { return v.UserID != "" }

// Overlay describes the per-user annotation relation that personalized
// queries are left-joined with.
type Overlay struct {
	Table      string
	UserColumn string
	ViewedAt   string
	// Key is the natural key shared by the annotation rows and the
	// personalized relation. Key[0] must be NOT NULL in Table.
	Key []string
}

// Watchlist joins on (number, repo, organisation).
var Watchlist = Overlay{
	Table:      "watchlist",
	UserColumn: "user_id",
	ViewedAt:   "viewed_at",
	Key:        []string{"number", "repo", "organisation"},
}

// overlayAlias is the alias of the pre-filtered annotation subquery.
const overlayAlias = "w"

// Apply returns the projection and FROM source for s.
//
// Anonymous viewers get the plain relation with both personalization
// columns hard-coded to FALSE, so the row shape never depends on
// authentication. Authenticated viewers get:
//
//	FROM rel AS v
//	LEFT JOIN (SELECT key..., viewed_at FROM watchlist WHERE user_id = $1) AS w
//	  ON v.k1 = w.k1 AND ...
//
// The watchlist is filtered by user BEFORE the join, so each base row
// matches at most one annotation row (the key is UNIQUE per user) and the
// join cannot fan out. Apply binds the user id, so it must run before any
// WHERE conjunct is added to b.
func (o Overlay) Apply(b *Builder, s Schema, viewer Viewer) (projection, source string) {
	from := s.Relation + " AS " + Alias
	if !viewer.Authenticated() {
		return fmt.Sprintf("%s, FALSE AS %s, FALSE AS %s", s.Projection, FollowedColumn, ViewedColumn), from
	}

	w := overlayAlias
	projection = fmt.Sprintf(
		"%s, CASE WHEN %s.%s IS NULL THEN FALSE ELSE TRUE END AS %s, CASE WHEN %s.%s IS NULL THEN FALSE ELSE TRUE END AS %s",
		s.Projection,
		w, o.Key[0], FollowedColumn,
		w, o.ViewedAt, ViewedColumn,
	)

	on := make([]string, len(o.Key))
	for i, k := range o.Key {
		on[i] = fmt.Sprintf("%s.%s = %s.%s", Alias, k, w, k)
	}
	source = fmt.Sprintf("%s LEFT JOIN (SELECT %s, %s FROM %s WHERE %s = %s) AS %s ON %s",
		from,
		strings.Join(o.Key, ", "), o.ViewedAt, o.Table, o.UserColumn, b.Bind(viewer.UserID), w,
		strings.Join(on, " AND "),
	)
	return projection, source
}
