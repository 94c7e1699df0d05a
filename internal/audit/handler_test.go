package audit_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/refdesk/refdesk/internal/audit"
	"github.com/refdesk/refdesk/internal/authz"
	"github.com/refdesk/refdesk/internal/shared"
	_ "github.com/refdesk/refdesk/testing"
)

type fakeAccounts struct {
	accounts map[int64]authz.Account
}

func (f *fakeAccounts) AccountByID(ctx context.Context, id int64) (authz.Account, error) {
	acct, ok := f.accounts[id]
	if !ok {
		return authz.Account{}, shared.ErrNotFound
	}
	return acct, nil
}

func (f *fakeAccounts) ActiveLeagueIDs(ctx context.Context, userID int64) ([]int64, error) {
	return nil, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newAuditRouter(t *testing.T, repo *stubRepo) chi.Router {
	t.Helper()
	accounts := &fakeAccounts{accounts: map[int64]authz.Account{
		1: {ID: 1, Role: authz.RoleSuperadmin, IsActive: true},
		2: {ID: 2, Role: authz.RoleAdmin, IsActive: true},
		4: {ID: 4, Role: authz.RoleAssigner, IsActive: true},
		7: {ID: 7, Role: authz.RoleOfficial, IsActive: true},
	}}
	mw := authz.Middleware{
		Resolver: authz.NewResolver(accounts, accounts),
		Policy:   authz.NewPolicy(),
		Logger:   testLogger(),
	}
	handler := audit.NewHandler(testLogger(), audit.NewService(repo), mw)
	r := chi.NewRouter()
	r.Route("/api/audit", handler.MountRoutes)
	return r
}

func serveAs(t *testing.T, router chi.Router, userID int64, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	sess := &shared.Session{}
	if userID != 0 {
		sess.SetUser(strconv.FormatInt(userID, 10))
	}
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	return res
}

func TestAuditListingAndPaging(t *testing.T) {
	repo := &stubRepo{rows: []audit.Row{entry(3, "create"), entry(2, "update"), entry(1, "delete")}}
	router := newAuditRouter(t, repo)

	res := serveAs(t, router, 2, httptest.NewRequest(http.MethodGet, "/api/audit/?page_size=2", nil))
	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, res.Body.String(), `"action":"create"`)
	require.Contains(t, res.Body.String(), `"has_next":true`)
	require.Contains(t, res.Body.String(), `"next_page":2`)
	require.NotContains(t, res.Body.String(), `"action":"delete"`)
}

func TestAuditFiltersForwarded(t *testing.T) {
	repo := &stubRepo{}
	router := newAuditRouter(t, repo)

	res := serveAs(t, router, 1, httptest.NewRequest(http.MethodGet,
		"/api/audit/?from=2026-08-01&to=2026-08-20&actor=3&entity=game&action=create", nil))
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), repo.lastFilters.From)
	require.Equal(t, time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC), repo.lastFilters.To)
	require.EqualValues(t, 3, repo.lastFilters.ActorID)
	require.Equal(t, "game", repo.lastFilters.Entity)
	require.Equal(t, "create", repo.lastFilters.Action)
}

func TestAuditFilterValidation(t *testing.T) {
	repo := &stubRepo{}
	router := newAuditRouter(t, repo)

	badDate := serveAs(t, router, 2, httptest.NewRequest(http.MethodGet, "/api/audit/?from=August", nil))
	require.Equal(t, http.StatusBadRequest, badDate.Code)

	inverted := serveAs(t, router, 2, httptest.NewRequest(http.MethodGet,
		"/api/audit/?from=2026-08-20&to=2026-08-01", nil))
	require.Equal(t, http.StatusBadRequest, inverted.Code)

	tooWide := serveAs(t, router, 2, httptest.NewRequest(http.MethodGet,
		"/api/audit/?from=2026-01-01&to=2026-08-01", nil))
	require.Equal(t, http.StatusBadRequest, tooWide.Code)

	badActor := serveAs(t, router, 2, httptest.NewRequest(http.MethodGet, "/api/audit/?actor=bob", nil))
	require.Equal(t, http.StatusBadRequest, badActor.Code)

	badPage := serveAs(t, router, 2, httptest.NewRequest(http.MethodGet, "/api/audit/?page=0", nil))
	require.Equal(t, http.StatusBadRequest, badPage.Code)
}

func TestAuditRequiresManageUsers(t *testing.T) {
	repo := &stubRepo{}
	router := newAuditRouter(t, repo)

	assigner := serveAs(t, router, 4, httptest.NewRequest(http.MethodGet, "/api/audit/", nil))
	require.Equal(t, http.StatusForbidden, assigner.Code)
	require.JSONEq(t, `{"error":"role_forbidden"}`, assigner.Body.String())

	official := serveAs(t, router, 7, httptest.NewRequest(http.MethodGet, "/api/audit/", nil))
	require.Equal(t, http.StatusForbidden, official.Code)

	anon := serveAs(t, router, 0, httptest.NewRequest(http.MethodGet, "/api/audit/", nil))
	require.Equal(t, http.StatusUnauthorized, anon.Code)
}
