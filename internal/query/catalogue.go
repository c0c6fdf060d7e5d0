package query

import "fmt"

// Mode selects how an endpoint's query is executed.
type Mode string

const (
	ModeList   Mode = "list"
	ModeSingle Mode = "single"
)

// Endpoint binds a route path to a schema and an execution mode.
type Endpoint struct {
	Path   string
	Mode   Mode
	Schema Schema
}

// All views below carry repo and organisation; the tab views also carry
// number so they can be overlaid with the watchlist.

var (
	TabCommits = Schema{
		Name:              "tab_commits",
		Relation:          "tab_commits_view",
		Projection:        "v.*",
		ProjectFilter:     true,
		ContributorColumn: "dev_name",
		SearchColumn:      "message",
		SortColumns:       []string{"commit_date"},
		DefaultSort:       Sort{Column: "commit_date", Direction: Desc},
	}

	TabContributors = Schema{
		Name:              "tab_contributors",
		Relation:          "tab_contributors_view",
		Projection:        "v.*",
		ProjectFilter:     true,
		ContributorColumn: "dev_name",
		SearchColumn:      "dev_name",
		SortColumns:       []string{"contributions", "open_issues", "closed_issues", "open_prs", "merged_prs"},
		DefaultSort:       Sort{Column: "contributions", Direction: Desc},
	}

	TabPRs = Schema{
		Name:              "tab_prs",
		Relation:          "tab_prs_view",
		Projection:        "v.*",
		ProjectFilter:     true,
		ContributorColumn: "dev_name",
		AssigneeColumn:    "assignee",
		StatusColumn:      "status",
		StatusValues:      []string{"open", "closed", "merged"},
		SearchColumn:      "title",
		SortColumns:       []string{"updated_at", "created_at"},
		DefaultSort:       Sort{Column: "updated_at", Direction: Desc},
		Personalized:      true,
	}

	TabIssues = Schema{
		Name:              "tab_issues",
		Relation:          "tab_issues_view",
		Projection:        "v.*",
		ProjectFilter:     true,
		ContributorColumn: "dev_name",
		AssigneeColumn:    "assignee",
		StatusColumn:      "status",
		StatusValues:      []string{"open", "closed"},
		SearchColumn:      "title",
		SortColumns:       []string{"updated_at", "created_at"},
		DefaultSort:       Sort{Column: "updated_at", Direction: Desc},
		Personalized:      true,
	}

	TabReleases = Schema{
		Name:          "tab_releases",
		Relation:      "tab_releases_view",
		Projection:    "v.*",
		ProjectFilter: true,
		SearchColumn:  "name",
		SortColumns:   []string{"published_at"},
		DefaultSort:   Sort{Column: "published_at", Direction: Desc},
	}

	// TabWatchlist lists the caller's own watchlist rows. user_id is used
	// for scoping and is not projected.
	TabWatchlist = Schema{
		Name:          "tab_watchlist",
		Relation:      "watchlist",
		Projection:    "v.number, v.repo, v.organisation, v.viewed_at, v.created_at",
		ProjectFilter: true,
		SearchColumn:  "repo",
		SortColumns:   []string{"created_at", "viewed_at"},
		DefaultSort:   Sort{Column: "created_at", Direction: Desc},
		ScopeColumn:   "user_id",
	}

	Overview = Schema{
		Name:       "overview",
		Relation:   "overview_view",
		Projection: "v.*",
	}

	TopContributors    = fixed("top_contributors", "top_contributors_view", Sort{Column: "contributions", Direction: Desc})
	Commits            = fixed("commits", "commits_view", Sort{Column: "commit_month", Direction: Asc})
	ActiveContributors = fixed("active_contributors", "active_contributors_view", Sort{Column: "month", Direction: Asc})
)

func fixed(name, relation string, sort Sort) Schema {
	return Schema{
		Name:        name,
		Relation:    relation,
		Projection:  "v.*",
		SortColumns: []string{sort.Column},
		DefaultSort: sort,
		FixedSort:   true,
	}
}

// FilterProject lists the projects a tab can be narrowed to.
func FilterProject(tab string) Schema {
	return Schema{
		Name:         tab + "_filter_project",
		Relation:     "projects_view",
		Projection:   "v.repo, v.organisation",
		SearchColumn: "repo",
		SortColumns:  []string{"repo"},
		DefaultSort:  Sort{Column: "repo", Direction: Asc},
		FixedSort:    true,
	}
}

// FilterContributor lists the contributors a tab can be narrowed to.
func FilterContributor(tab string) Schema {
	return Schema{
		Name:         tab + "_filter_contributor",
		Relation:     "devs_view",
		Projection:   "v.dev_name AS contributor, v.avatar_url",
		SearchColumn: "dev_name",
		SortColumns:  []string{"dev_name"},
		DefaultSort:  Sort{Column: "dev_name", Direction: Asc},
		FixedSort:    true,
	}
}

// FilterAssignee lists the assignees a tab can be narrowed to.
func FilterAssignee(tab string) Schema {
	return Schema{
		Name:         tab + "_filter_assignee",
		Relation:     "assignees_view",
		Projection:   "v.assignee, v.avatar_url",
		SearchColumn: "assignee",
		SortColumns:  []string{"assignee"},
		DefaultSort:  Sort{Column: "assignee", Direction: Asc},
		FixedSort:    true,
	}
}

// Catalogue returns every dataset endpoint the API serves.
func Catalogue() []Endpoint {
	eps := []Endpoint{
		{Path: "/overview", Mode: ModeSingle, Schema: Overview},
		{Path: "/top_contributors", Mode: ModeList, Schema: TopContributors},
		{Path: "/commits", Mode: ModeList, Schema: Commits},
		{Path: "/active_contributors", Mode: ModeList, Schema: ActiveContributors},
		{Path: "/tab_watchlist", Mode: ModeList, Schema: TabWatchlist},
	}
	for _, tab := range []Schema{TabCommits, TabContributors, TabPRs, TabIssues, TabReleases} {
		eps = append(eps,
			Endpoint{Path: "/" + tab.Name, Mode: ModeList, Schema: tab},
			Endpoint{Path: "/" + tab.Name + "/filter/project", Mode: ModeList, Schema: FilterProject(tab.Name)},
		)
		if tab.ContributorColumn != "" {
			eps = append(eps, Endpoint{Path: "/" + tab.Name + "/filter/contributor", Mode: ModeList, Schema: FilterContributor(tab.Name)})
		}
		if tab.AssigneeColumn != "" {
			eps = append(eps, Endpoint{Path: "/" + tab.Name + "/filter/assignee", Mode: ModeList, Schema: FilterAssignee(tab.Name)})
		}
	}
	return eps
}

// ValidateCatalogue validates every schema and rejects duplicate paths or
// names.
func ValidateCatalogue(eps []Endpoint) error {
	paths := make(map[string]bool, len(eps))
	names := make(map[string]bool, len(eps))
	for _, ep := range eps {
		if err := ep.Schema.Validate(); err != nil {
			return err
		}
		if ep.Mode != ModeList && ep.Mode != ModeSingle {
			return fmt.Errorf("query: endpoint %s: unknown mode %q", ep.Path, ep.Mode)
		}
		if paths[ep.Path] {
			return fmt.Errorf("query: duplicate endpoint path %s", ep.Path)
		}
		if names[ep.Schema.Name] {
			return fmt.Errorf("query: duplicate schema name %s", ep.Schema.Name)
		}
		paths[ep.Path] = true
		names[ep.Schema.Name] = true
	}
	return nil
}
