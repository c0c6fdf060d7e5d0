package query

import (
	"net/url"
	"strings"
)

// Params are the raw, untrusted query-string values shared by every
// listing endpoint. Nothing here is validated yet; see sanitize.go.
type Params struct {
	Repo         string
	Organisation string
	Contributor  string
	Assignee     string
	Status       string
	Search       string
	SortBy       string
	SortType     string
	Offset       string
}

// ParseParams reads Params from a query string. "dev_name" is accepted as
// an alias of "contributor"; contributor wins when both are present.
//
// Bytes that are not valid UTF-8 are dropped: neither engine accepts them
// as text, so "%ff" degrades to an absent value instead of a failed query.
func ParseParams(v url.Values) Params {
	get := func(key string) string {
		return strings.TrimSpace(strings.ToValidUTF8(v.Get(key), ""))
	}
	p := Params{
		Repo:         get("repo"),
		Organisation: get("organisation"),
		Contributor:  get("contributor"),
		Assignee:     get("assignee"),
		Status:       get("status"),
		Search:       get("search"),
		SortBy:       get("sortBy"),
		SortType:     get("sortType"),
		Offset:       get("offset"),
	}
	if p.Contributor == "" {
		p.Contributor = get("dev_name")
	}
	return p
}
