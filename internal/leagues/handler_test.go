package leagues_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/refdesk/refdesk/internal/authz"
	"github.com/refdesk/refdesk/internal/leagues"
	"github.com/refdesk/refdesk/internal/shared"
	_ "github.com/refdesk/refdesk/testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newLeaguesRouter(t *testing.T, store *memoryStore) chi.Router {
	t.Helper()
	mw := authz.Middleware{
		Resolver: authz.NewResolver(store, store),
		Policy:   authz.NewPolicy(),
		Logger:   testLogger(),
	}
	handler := leagues.NewHandler(testLogger(), leagues.NewService(store, store, nil), mw)
	r := chi.NewRouter()
	r.Route("/api/leagues", handler.MountRoutes)
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

func TestListLeaguesRejectsAnonymous(t *testing.T) {
	router := newLeaguesRouter(t, newMemoryStore())

	res := serveAs(t, router, 0, httptest.NewRequest(http.MethodGet, "/api/leagues/", nil))
	require.Equal(t, http.StatusUnauthorized, res.Code)
	require.JSONEq(t, `{"error":"unauthenticated"}`, res.Body.String())
}

func TestListLeaguesScoped(t *testing.T) {
	store := newMemoryStore()
	store.addLeague(leagues.League{Name: "North Soccer", Sport: "Soccer", Season: "2026"})
	store.addLeague(leagues.League{Name: "South Hoops", Sport: "Basketball", Season: "2026"})
	store.addAccount(1, authz.RoleSuperadmin)
	store.addAccount(2, authz.RoleAdmin, 2)
	store.addAccount(3, authz.RoleOfficial)
	router := newLeaguesRouter(t, store)

	all := serveAs(t, router, 1, httptest.NewRequest(http.MethodGet, "/api/leagues/", nil))
	require.Equal(t, http.StatusOK, all.Code)
	require.Contains(t, all.Body.String(), "North Soccer")
	require.Contains(t, all.Body.String(), "South Hoops")

	scoped := serveAs(t, router, 2, httptest.NewRequest(http.MethodGet, "/api/leagues/", nil))
	require.Equal(t, http.StatusOK, scoped.Code)
	require.NotContains(t, scoped.Body.String(), "North Soccer")
	require.Contains(t, scoped.Body.String(), "South Hoops")

	// Officials hold no league membership; the visibility filter leaves
	// them an empty catalog rather than a denial.
	none := serveAs(t, router, 3, httptest.NewRequest(http.MethodGet, "/api/leagues/", nil))
	require.Equal(t, http.StatusOK, none.Code)
	require.JSONEq(t, `{"leagues":[]}`, none.Body.String())
}

func TestGetLeagueHidesExistenceOutsideScope(t *testing.T) {
	store := newMemoryStore()
	store.addLeague(leagues.League{Name: "North Soccer", Sport: "Soccer", Season: "2026"})
	store.addAccount(2, authz.RoleAdmin, 9)
	router := newLeaguesRouter(t, store)

	// Same denial whether or not the league exists.
	real := serveAs(t, router, 2, httptest.NewRequest(http.MethodGet, "/api/leagues/1", nil))
	require.Equal(t, http.StatusForbidden, real.Code)
	require.JSONEq(t, `{"error":"outside_assigned_leagues"}`, real.Body.String())

	ghost := serveAs(t, router, 2, httptest.NewRequest(http.MethodGet, "/api/leagues/777", nil))
	require.Equal(t, http.StatusForbidden, ghost.Code)
	require.JSONEq(t, `{"error":"outside_assigned_leagues"}`, ghost.Body.String())
}

func TestCreateLeagueRestrictedToSuperadmin(t *testing.T) {
	store := newMemoryStore()
	store.addAccount(1, authz.RoleSuperadmin)
	store.addAccount(2, authz.RoleAdmin, 1)
	router := newLeaguesRouter(t, store)

	body := `{"name":"Metro Volleyball","sport":"Volleyball","season":"2026","levels":["Varsity","JV"]}`

	denied := serveAs(t, router, 2, httptest.NewRequest(http.MethodPost, "/api/leagues/", strings.NewReader(body)))
	require.Equal(t, http.StatusForbidden, denied.Code)
	require.JSONEq(t, `{"error":"league_creation_restricted"}`, denied.Body.String())

	created := serveAs(t, router, 1, httptest.NewRequest(http.MethodPost, "/api/leagues/", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, created.Code)
	require.Contains(t, created.Body.String(), "Metro Volleyball")
}

func TestCreateLeagueDuplicateName(t *testing.T) {
	store := newMemoryStore()
	store.addLeague(leagues.League{Name: "Metro Volleyball", Sport: "Volleyball", Season: "2026"})
	store.addAccount(1, authz.RoleSuperadmin)
	router := newLeaguesRouter(t, store)

	body := `{"name":"metro volleyball","sport":"Volleyball","season":"2026"}`
	res := serveAs(t, router, 1, httptest.NewRequest(http.MethodPost, "/api/leagues/", strings.NewReader(body)))
	require.Equal(t, http.StatusConflict, res.Code)
}

func TestUpdateLeagueInScope(t *testing.T) {
	store := newMemoryStore()
	league := store.addLeague(leagues.League{Name: "North Soccer", Sport: "Soccer", Season: "2026"})
	store.addAccount(2, authz.RoleAdmin, league.ID)
	router := newLeaguesRouter(t, store)

	body := `{"name":"North Soccer","sport":"Soccer","season":"2026","description":"updated"}`
	res := serveAs(t, router, 2, httptest.NewRequest(http.MethodPut, "/api/leagues/1", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, res.Body.String(), "updated")
}

func TestDeleteLeagueOutsideScope(t *testing.T) {
	store := newMemoryStore()
	store.addLeague(leagues.League{Name: "North Soccer", Sport: "Soccer", Season: "2026"})
	store.addAccount(2, authz.RoleAdmin, 9)
	router := newLeaguesRouter(t, store)

	res := serveAs(t, router, 2, httptest.NewRequest(http.MethodDelete, "/api/leagues/1", nil))
	require.Equal(t, http.StatusForbidden, res.Code)
	require.JSONEq(t, `{"error":"outside_assigned_leagues"}`, res.Body.String())
}

func TestAssignUserSuperadminOnly(t *testing.T) {
	store := newMemoryStore()
	league := store.addLeague(leagues.League{Name: "North Soccer", Sport: "Soccer", Season: "2026"})
	store.addAccount(1, authz.RoleSuperadmin)
	store.addAccount(2, authz.RoleAdmin, league.ID)
	store.addAccount(10, authz.RoleAssigner)
	router := newLeaguesRouter(t, store)

	body := `{"user_id":10}`

	// Admins hold manage_users but membership grants stay superadmin-only.
	denied := serveAs(t, router, 2, httptest.NewRequest(http.MethodPost, "/api/leagues/1/assign", strings.NewReader(body)))
	require.Equal(t, http.StatusForbidden, denied.Code)
	require.JSONEq(t, `{"error":"role_forbidden"}`, denied.Body.String())

	ok := serveAs(t, router, 1, httptest.NewRequest(http.MethodPost, "/api/leagues/1/assign", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, ok.Code)
	require.Equal(t, []assignedPair{{leagueID: league.ID, userID: 10}}, store.assigned)
}

func TestAssignUserRejectsOfficialTarget(t *testing.T) {
	store := newMemoryStore()
	store.addLeague(leagues.League{Name: "North Soccer", Sport: "Soccer", Season: "2026"})
	store.addAccount(1, authz.RoleSuperadmin)
	store.addAccount(11, authz.RoleOfficial)
	router := newLeaguesRouter(t, store)

	res := serveAs(t, router, 1, httptest.NewRequest(http.MethodPost, "/api/leagues/1/assign", strings.NewReader(`{"user_id":11}`)))
	require.Equal(t, http.StatusBadRequest, res.Code)
	require.Empty(t, store.assigned)
}

func TestFeesGateByAction(t *testing.T) {
	store := newMemoryStore()
	league := store.addLeague(leagues.League{Name: "North Soccer", Sport: "Soccer", Season: "2026"})
	store.addAccount(3, authz.RoleAssigner, league.ID)
	router := newLeaguesRouter(t, store)

	// Assigners never hold manage_billing, in scope or not.
	res := serveAs(t, router, 3, httptest.NewRequest(http.MethodGet, "/api/leagues/1/fees", nil))
	require.Equal(t, http.StatusForbidden, res.Code)
	require.JSONEq(t, `{"error":"role_forbidden"}`, res.Body.String())
}

func TestFeesScopedToMembership(t *testing.T) {
	store := newMemoryStore()
	league := store.addLeague(leagues.League{Name: "North Soccer", Sport: "Soccer", Season: "2026"})
	store.addAccount(2, authz.RoleAdmin, league.ID)
	store.addAccount(4, authz.RoleAdmin, 9)
	router := newLeaguesRouter(t, store)

	body := `{"level_name":"Varsity","official_fee":85.50}`

	outside := serveAs(t, router, 4, httptest.NewRequest(http.MethodPost, "/api/leagues/1/fees", strings.NewReader(body)))
	require.Equal(t, http.StatusForbidden, outside.Code)
	require.JSONEq(t, `{"error":"outside_assigned_leagues"}`, outside.Body.String())

	created := serveAs(t, router, 2, httptest.NewRequest(http.MethodPost, "/api/leagues/1/fees", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, created.Code)
	require.Contains(t, created.Body.String(), "85.5")

	dup := serveAs(t, router, 2, httptest.NewRequest(http.MethodPost, "/api/leagues/1/fees", strings.NewReader(body)))
	require.Equal(t, http.StatusConflict, dup.Code)

	list := serveAs(t, router, 2, httptest.NewRequest(http.MethodGet, "/api/leagues/1/fees", nil))
	require.Equal(t, http.StatusOK, list.Code)
	require.Contains(t, list.Body.String(), "Varsity")
}

func TestFeeValidationBounds(t *testing.T) {
	store := newMemoryStore()
	league := store.addLeague(leagues.League{Name: "North Soccer", Sport: "Soccer", Season: "2026"})
	store.addAccount(2, authz.RoleAdmin, league.ID)
	router := newLeaguesRouter(t, store)

	cases := map[string]string{
		"negative":       `{"level_name":"Varsity","official_fee":-5}`,
		"over cap":       `{"level_name":"Varsity","official_fee":1000000}`,
		"three decimals": `{"level_name":"Varsity","official_fee":85.505}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			res := serveAs(t, router, 2, httptest.NewRequest(http.MethodPost, "/api/leagues/1/fees", strings.NewReader(body)))
			require.Equal(t, http.StatusBadRequest, res.Code)
		})
	}
}

func TestBillingLifecycle(t *testing.T) {
	store := newMemoryStore()
	league := store.addLeague(leagues.League{Name: "North Soccer", Sport: "Soccer", Season: "2026"})
	store.addAccount(2, authz.RoleAdmin, league.ID)
	store.billTo[7] = true
	router := newLeaguesRouter(t, store)

	missing := serveAs(t, router, 2, httptest.NewRequest(http.MethodPost, "/api/leagues/1/billing",
		strings.NewReader(`{"level_name":"Varsity","bill_amount":120,"bill_to_id":99}`)))
	require.Equal(t, http.StatusBadRequest, missing.Code)

	created := serveAs(t, router, 2, httptest.NewRequest(http.MethodPost, "/api/leagues/1/billing",
		strings.NewReader(`{"level_name":"Varsity","bill_amount":120,"bill_to_id":7}`)))
	require.Equal(t, http.StatusCreated, created.Code)

	var billingID int64
	for id := range store.billing {
		billingID = id
	}
	path := "/api/leagues/1/billing/" + strconv.FormatInt(billingID, 10)

	updated := serveAs(t, router, 2, httptest.NewRequest(http.MethodPut, path, strings.NewReader(`{"bill_amount":150}`)))
	require.Equal(t, http.StatusOK, updated.Code)
	require.Contains(t, updated.Body.String(), "150")

	deleted := serveAs(t, router, 2, httptest.NewRequest(http.MethodDelete, path, nil))
	require.Equal(t, http.StatusOK, deleted.Code)

	list := serveAs(t, router, 2, httptest.NewRequest(http.MethodGet, "/api/leagues/1/billing", nil))
	require.JSONEq(t, `{"billing":[]}`, list.Body.String())
}

func TestLevelsVisibleInScope(t *testing.T) {
	store := newMemoryStore()
	league := store.addLeague(leagues.League{Name: "North Soccer", Sport: "Soccer", Season: "2026"})
	store.levels[league.ID] = []string{"Varsity", "JV"}
	store.addAccount(2, authz.RoleAdmin, league.ID)
	router := newLeaguesRouter(t, store)

	res := serveAs(t, router, 2, httptest.NewRequest(http.MethodGet, "/api/leagues/1/levels", nil))
	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, res.Body.String(), "Varsity")
	require.Contains(t, res.Body.String(), "JV")
}
