package query

import "testing"

// =========================================================================
// SORT
// =========================================================================

func TestSanitizeSort(t *testing.T) {
	tests := []struct {
		name     string
		sortBy   string
		sortType string
		want     Sort
	}{
		{"empty uses default", "", "", Sort{"contributions", Desc}},
		{"allowed column and direction", "open_prs", "asc", Sort{"open_prs", Asc}},
		{"unknown column keeps requested direction", "password", "asc", Sort{"contributions", Asc}},
		{"bad direction keeps requested column", "merged_prs", "sideways", Sort{"merged_prs", Desc}},
		{"uppercase direction is not accepted", "open_issues", "ASC", Sort{"open_issues", Desc}},
		{"injection attempt", "contributions; DROP TABLE users", "desc", Sort{"contributions", Desc}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeSort(TabContributors, tt.sortBy, tt.sortType)
			if got != tt.want {
				t.Errorf("SanitizeSort(%q, %q) = %+v, want %+v", tt.sortBy, tt.sortType, got, tt.want)
			}
		})
	}
}

func TestSanitizeSort_FixedSortIgnoresRequest(t *testing.T) {
	got := SanitizeSort(Commits, "commit_month", "desc")
	if got != (Sort{"commit_month", Asc}) {
		t.Errorf("SanitizeSort() = %+v, want fixed commit_month asc", got)
	}
}

// =========================================================================
// STATUS
// =========================================================================

func TestSanitizeStatus(t *testing.T) {
	tests := []struct {
		name   string
		schema Schema
		status string
		want   string
		wantOK bool
	}{
		{"merged is a pr status", TabPRs, "merged", "merged", true},
		{"merged is not an issue status", TabIssues, "merged", "", false},
		{"open issue", TabIssues, "open", "open", true},
		{"bogus status is ignored", TabPRs, "bogus", "", false},
		{"empty status", TabPRs, "", "", false},
		{"schema without status filter", TabCommits, "open", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SanitizeStatus(tt.schema, tt.status)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("SanitizeStatus(%q) = (%q, %v), want (%q, %v)", tt.status, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

// =========================================================================
// OFFSET
// =========================================================================

func TestSanitizeOffset(t *testing.T) {
	tests := []struct {
		raw   string
		total int64
		want  int64
	}{
		{"", 10, 0},
		{"0", 10, 0},
		{"5", 10, 5},
		{"9", 10, 9},
		{"10", 10, 0}, // at the end
		{"250", 10, 0},
		{"-3", 10, 0},
		{"abc", 10, 0},
		{"1.5", 10, 0},
		{"3", 0, 0},
	}

	for _, tt := range tests {
		if got := SanitizeOffset(tt.raw, tt.total); got != tt.want {
			t.Errorf("SanitizeOffset(%q, %d) = %d, want %d", tt.raw, tt.total, got, tt.want)
		}
	}
}

// =========================================================================
// SEARCH
// =========================================================================

func TestSearchPattern(t *testing.T) {
	tests := []struct {
		search string
		want   string
		wantOK bool
	}{
		{"fix", "fix", true},
		{"  fix  ", "fix", true},
		{"", "", false},
		{"   ", "", false},
		{"a.b", `a\.b`, true},
		{"(.*)", `\(\.\*\)`, true},
		{"'; DROP TABLE users; --", `'; DROP TABLE users; --`, true},
	}

	for _, tt := range tests {
		got, ok := SearchPattern(tt.search)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("SearchPattern(%q) = (%q, %v), want (%q, %v)", tt.search, got, ok, tt.want, tt.wantOK)
		}
	}
}

// =========================================================================
// PARAMS
// =========================================================================

func TestParseParams_DevNameAlias(t *testing.T) {
	p := ParseParams(map[string][]string{"dev_name": {" alice "}})
	if p.Contributor != "alice" {
		t.Errorf("Contributor = %q, want %q", p.Contributor, "alice")
	}

	p = ParseParams(map[string][]string{"dev_name": {"alice"}, "contributor": {"bob"}})
	if p.Contributor != "bob" {
		t.Errorf("Contributor = %q, want contributor to win over dev_name", p.Contributor)
	}
}

func TestParseParams_DropsInvalidUTF8(t *testing.T) {
	p := ParseParams(map[string][]string{
		"search": {"\xff"},
		"repo":   {"lo\xfftus"},
		"status": {"\xc3"},
	})
	if p.Search != "" {
		t.Errorf("Search = %q, want empty", p.Search)
	}
	if p.Repo != "lotus" {
		t.Errorf("Repo = %q, want %q", p.Repo, "lotus")
	}
	if p.Status != "" {
		t.Errorf("Status = %q, want empty", p.Status)
	}
}

func TestSearchPattern_InvalidUTF8(t *testing.T) {
	if got, ok := SearchPattern("\xff\xfe"); ok {
		t.Errorf("SearchPattern(invalid) = %q, true; want no search", got)
	}
	if got, ok := SearchPattern("f\xffix"); !ok || got != "fix" {
		t.Errorf("SearchPattern(%q) = %q, %v; want %q, true", "f\xffix", got, ok, "fix")
	}
}
