package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/filpulse/internal/auth"
	"github.com/sakif/filpulse/internal/repository/sqlite"
)

// ============================================================================
// HELPERS
// ============================================================================

const testTokenKey = "server-test-secret-key"

func newTestServer(t *testing.T) (*Server, *sqlite.DB) {
	t.Helper()

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	for _, stmt := range []string{
		`CREATE TABLE tab_prs_view (
			number INTEGER, title TEXT, status TEXT, dev_name TEXT, assignee TEXT,
			repo TEXT, organisation TEXT, updated_at TEXT, created_at TEXT)`,
		`INSERT INTO tab_prs_view VALUES
			(1, 'Add F3',    'open',   'alice', 'bob',   'lotus', 'filecoin-project', '2024-05-03', '2024-05-01'),
			(2, 'Bump deps', 'merged', 'bob',   'alice', 'lotus', 'filecoin-project', '2024-05-02', '2024-05-01')`,
		`CREATE TABLE overview_view (total_commits INTEGER, total_contributors INTEGER)`,
	} {
		require.NoError(t, db.Exec(ctx, stmt))
	}

	tokens, err := auth.NewTokenService(testTokenKey)
	require.NoError(t, err)

	s, err := New(Config{Addr: "127.0.0.1:0"}, Deps{
		Store:     db,
		Tokens:    tokens,
		Passwords: auth.NewPasswordServiceForTest(4),
		Registry:  prometheus.NewRegistry(),
	}, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	return s, db
}

func do(t *testing.T, s *Server, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func signup(t *testing.T, s *Server) string {
	t.Helper()
	rec := do(t, s, http.MethodPost, "/signup", "",
		`{"username":"Alice","password":"correct horse","question":"first pet","answer":"Rex"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res struct {
		Token string `json:"token"`
		User  struct {
			Username string `json:"username"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Equal(t, "alice", res.User.Username)
	require.NotEmpty(t, res.Token)
	return res.Token
}

type listBody struct {
	List   []map[string]any `json:"list"`
	Total  int64            `json:"total"`
	Offset int64            `json:"offset"`
}

func decodeList(t *testing.T, rec *httptest.ResponseRecorder) listBody {
	t.Helper()
	var out listBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// ============================================================================
// DATASETS
// ============================================================================

func TestDataset_AnonymousListHasFalseOverlay(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/tab_prs", "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeList(t, rec)
	assert.Equal(t, int64(2), body.Total)
	for _, row := range body.List {
		assert.Equal(t, false, row["followed"])
		assert.Equal(t, false, row["viewed"])
	}
}

func TestDataset_UnknownStatusIsIgnored(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/tab_prs?status=bogus", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(2), decodeList(t, rec).Total)
}

func TestDataset_InvalidUTF8SearchIsIgnored(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/tab_prs?search=%ff", "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(2), decodeList(t, rec).Total)
}

func TestDataset_EmptySingletonIs404(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/overview", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "not_found")
}

func TestDataset_WatchlistNeedsToken(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/tab_watchlist", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// ============================================================================
// AUTH + WATCHLIST FLOW
// ============================================================================

func TestFollow_WithoutTokenWritesNothing(t *testing.T) {
	s, _ := newTestServer(t)
	token := signup(t, s)

	rec := do(t, s, http.MethodPost, "/follow", "", `{"number":1,"repo":"lotus","organisation":"filecoin-project","follow":true}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = do(t, s, http.MethodPost, "/viewed", "", `{"number":1,"repo":"lotus","organisation":"filecoin-project"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, s, http.MethodGet, "/tab_watchlist", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(0), decodeList(t, rec).Total)
}

func TestFollow_ShowsInOverlayAndWatchlist(t *testing.T) {
	s, _ := newTestServer(t)
	token := signup(t, s)

	rec := do(t, s, http.MethodPost, "/follow", token, `{"number":"1","repo":"lotus","organisation":"filecoin-project","follow":"true"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, s, http.MethodGet, "/tab_prs?sortBy=updated_at&sortType=desc", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeList(t, rec)
	require.Len(t, body.List, 2)
	assert.Equal(t, true, body.List[0]["followed"], "PR 1 is followed")
	assert.Equal(t, false, body.List[0]["viewed"])
	assert.Equal(t, false, body.List[1]["followed"])

	rec = do(t, s, http.MethodPost, "/viewed", token, `{"number":1,"repo":"lotus","organisation":"filecoin-project"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, s, http.MethodGet, "/tab_prs", token, "")
	assert.Equal(t, true, decodeList(t, rec).List[0]["viewed"])

	rec = do(t, s, http.MethodGet, "/tab_watchlist", token, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	watch := decodeList(t, rec)
	require.Equal(t, int64(1), watch.Total)
	assert.Equal(t, "lotus", watch.List[0]["repo"])
	assert.NotContains(t, watch.List[0], "user_id")

	rec = do(t, s, http.MethodPost, "/follow", token, `{"number":1,"repo":"lotus","organisation":"filecoin-project","follow":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, s, http.MethodGet, "/tab_watchlist", token, "")
	assert.Equal(t, int64(0), decodeList(t, rec).Total)
}

func TestAuth_LoginMeAndReset(t *testing.T) {
	s, _ := newTestServer(t)
	signup(t, s)

	rec := do(t, s, http.MethodPost, "/signup", "",
		`{"username":"alice","password":"another one","question":"q","answer":"a"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, s, http.MethodPost, "/login", "", `{"username":"ALICE","password":"wrong password"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, s, http.MethodPost, "/login", "", `{"username":"ALICE","password":"correct horse"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))

	rec = do(t, s, http.MethodGet, "/me", res.Token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"username":"alice"`)

	rec = do(t, s, http.MethodGet, "/me", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, s, http.MethodPost, "/reset_password", "",
		`{"username":"alice","password":"brand new pass","question":"first pet","answer":"nope"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, s, http.MethodPost, "/reset_password", "",
		`{"username":"alice","password":"brand new pass","question":"first pet","answer":"  REX "}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, s, http.MethodPost, "/login", "", `{"username":"alice","password":"brand new pass"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWatchlist_TokenForDeletedAccountIs401(t *testing.T) {
	s, _ := newTestServer(t)
	tokens, err := auth.NewTokenService(testTokenKey)
	require.NoError(t, err)
	ghost, err := tokens.Generate("ghost-user-id")
	require.NoError(t, err)

	item := `{"number":1,"repo":"lotus","organisation":"filecoin-project"`
	rec := do(t, s, http.MethodPost, "/follow", ghost, item+`,"follow":true}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, rec.Body.String())
	rec = do(t, s, http.MethodPost, "/follow", ghost, item+`,"follow":false}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = do(t, s, http.MethodPost, "/viewed", ghost, item+`}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, s, http.MethodGet, "/me", ghost, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_InvalidTokenIsAnonymous(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/tab_prs", "not.a.jwt", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodGet, "/tab_watchlist", "not.a.jwt", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticate_NotRegisteredWithoutOAuth(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/authenticate", "", `{"code":"abc"}`)
	assert.Contains(t, []int{http.StatusNotFound, http.StatusMethodNotAllowed}, rec.Code)
}

// ============================================================================
// OPERATIONS
// ============================================================================

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHealthz_StoreDown(t *testing.T) {
	s, db := newTestServer(t)
	require.NoError(t, db.Close())

	rec := do(t, s, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	do(t, s, http.MethodGet, "/tab_prs", "", "")

	rec := do(t, s, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "filpulse_http_requests_total")
	assert.Contains(t, rec.Body.String(), "filpulse_query_")
}

func TestNew_RequiresDeps(t *testing.T) {
	if _, err := New(Config{}, Deps{}, slog.New(slog.DiscardHandler)); err == nil {
		t.Fatal("New() should fail without a store")
	}
}
