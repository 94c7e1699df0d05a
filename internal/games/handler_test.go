package games_test

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
	"github.com/refdesk/refdesk/internal/games"
	"github.com/refdesk/refdesk/internal/shared"
	_ "github.com/refdesk/refdesk/testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newGamesRouter(t *testing.T, repo *memoryRepo) chi.Router {
	t.Helper()
	mw := authz.Middleware{
		Resolver: authz.NewResolver(repo, repo),
		Policy:   authz.NewPolicy(),
		Logger:   testLogger(),
	}
	handler := games.NewHandler(testLogger(), games.NewService(repo, nil), mw)
	r := chi.NewRouter()
	r.Route("/api/games", handler.MountRoutes)
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

func seedSchedule(repo *memoryRepo) (league1, league2, loose games.Game) {
	repo.addLeague(1, "North Soccer")
	repo.addLeague(2, "South Hoops")
	league1 = repo.addGame(games.Game{LeagueID: 1, GameDate: date("2026-09-05"), GameTime: "18:00", HomeTeam: "Hawks", AwayTeam: "Owls", Sport: "Soccer"})
	league2 = repo.addGame(games.Game{LeagueID: 2, GameDate: date("2026-09-06"), GameTime: "19:00", HomeTeam: "Lions", AwayTeam: "Bears", Sport: "Basketball"})
	loose = repo.addGame(games.Game{GameDate: date("2026-09-07"), GameTime: "10:00", HomeTeam: "Crows", AwayTeam: "Doves", Sport: "Soccer"})
	return league1, league2, loose
}

func TestListGamesScopedByRole(t *testing.T) {
	repo := newMemoryRepo()
	_, inLeague2, _ := seedSchedule(repo)
	repo.assignOfficial(inLeague2.ID, 7)
	repo.addAccount(1, authz.RoleSuperadmin)
	repo.addAccount(2, authz.RoleAdmin, 1)
	repo.addAccount(7, authz.RoleOfficial)
	router := newGamesRouter(t, repo)

	all := serveAs(t, router, 1, httptest.NewRequest(http.MethodGet, "/api/games/", nil))
	require.Equal(t, http.StatusOK, all.Code)
	require.Contains(t, all.Body.String(), "Hawks")
	require.Contains(t, all.Body.String(), "Lions")
	require.Contains(t, all.Body.String(), "Crows")

	scoped := serveAs(t, router, 2, httptest.NewRequest(http.MethodGet, "/api/games/", nil))
	require.Equal(t, http.StatusOK, scoped.Code)
	require.Contains(t, scoped.Body.String(), "Hawks")
	require.NotContains(t, scoped.Body.String(), "Lions")
	require.NotContains(t, scoped.Body.String(), "Crows")

	mine := serveAs(t, router, 7, httptest.NewRequest(http.MethodGet, "/api/games/", nil))
	require.Equal(t, http.StatusOK, mine.Code)
	require.Contains(t, mine.Body.String(), "Lions")
	require.NotContains(t, mine.Body.String(), "Hawks")
}

func TestGetGameOwnership(t *testing.T) {
	repo := newMemoryRepo()
	_, inLeague2, _ := seedSchedule(repo)
	repo.assignOfficial(inLeague2.ID, 7)
	repo.addAccount(7, authz.RoleOfficial)
	repo.addAccount(8, authz.RoleOfficial)
	router := newGamesRouter(t, repo)

	path := "/api/games/" + strconv.FormatInt(inLeague2.ID, 10)
	own := serveAs(t, router, 7, httptest.NewRequest(http.MethodGet, path, nil))
	require.Equal(t, http.StatusOK, own.Code)
	require.Contains(t, own.Body.String(), "Lions")

	other := serveAs(t, router, 8, httptest.NewRequest(http.MethodGet, path, nil))
	require.Equal(t, http.StatusForbidden, other.Code)
	require.JSONEq(t, `{"error":"not_your_resource"}`, other.Body.String())
}

func TestCreateGameScope(t *testing.T) {
	repo := newMemoryRepo()
	repo.addLeague(1, "North Soccer")
	repo.addLeague(2, "South Hoops")
	repo.addAccount(1, authz.RoleSuperadmin)
	repo.addAccount(2, authz.RoleAdmin, 1)
	router := newGamesRouter(t, repo)

	inScope := `{"league_id":1,"game_date":"2026-09-05","game_time":"18:00","home_team":"Hawks","away_team":"Owls","sport":"Soccer"}`
	created := serveAs(t, router, 2, httptest.NewRequest(http.MethodPost, "/api/games/", strings.NewReader(inScope)))
	require.Equal(t, http.StatusCreated, created.Code)
	require.Contains(t, created.Body.String(), "scheduled")

	outOfScope := `{"league_id":2,"game_date":"2026-09-05","game_time":"18:00","home_team":"Lions","away_team":"Bears","sport":"Basketball"}`
	denied := serveAs(t, router, 2, httptest.NewRequest(http.MethodPost, "/api/games/", strings.NewReader(outOfScope)))
	require.Equal(t, http.StatusForbidden, denied.Code)
	require.JSONEq(t, `{"error":"outside_assigned_leagues"}`, denied.Body.String())

	// A game with no league resolves no scope, so only superadmins place one.
	loose := `{"game_date":"2026-09-07","game_time":"10:00","home_team":"Crows","away_team":"Doves","sport":"Soccer"}`
	adminLoose := serveAs(t, router, 2, httptest.NewRequest(http.MethodPost, "/api/games/", strings.NewReader(loose)))
	require.Equal(t, http.StatusForbidden, adminLoose.Code)
	require.JSONEq(t, `{"error":"outside_assigned_leagues"}`, adminLoose.Body.String())

	superLoose := serveAs(t, router, 1, httptest.NewRequest(http.MethodPost, "/api/games/", strings.NewReader(loose)))
	require.Equal(t, http.StatusCreated, superLoose.Code)
}

func TestCreateGameValidation(t *testing.T) {
	repo := newMemoryRepo()
	repo.addLeague(1, "North Soccer")
	repo.addAccount(1, authz.RoleSuperadmin)
	router := newGamesRouter(t, repo)

	for _, body := range []string{
		`{"league_id":1,"game_time":"18:00","away_team":"Owls","home_team":"Hawks","sport":"Soccer"}`,
		`{"league_id":1,"game_date":"09/05/2026","game_time":"18:00","home_team":"Hawks","away_team":"Owls","sport":"Soccer"}`,
		`{"league_id":1,"game_date":"2026-09-05","game_time":"18:00","home_team":"Hawks","away_team":"Owls","sport":"Soccer","officials_needed":11}`,
		`{"league_id":1,"game_date":"2026-09-05","game_time":"18:00","home_team":"Hawks","away_team":"Owls"}`,
	} {
		res := serveAs(t, router, 1, httptest.NewRequest(http.MethodPost, "/api/games/", strings.NewReader(body)))
		require.Equal(t, http.StatusBadRequest, res.Code, body)
	}
}

func TestOfficialCannotCreateGame(t *testing.T) {
	repo := newMemoryRepo()
	repo.addLeague(1, "North Soccer")
	repo.addAccount(7, authz.RoleOfficial)
	router := newGamesRouter(t, repo)

	body := `{"league_id":1,"game_date":"2026-09-05","game_time":"18:00","home_team":"Hawks","away_team":"Owls","sport":"Soccer"}`
	res := serveAs(t, router, 7, httptest.NewRequest(http.MethodPost, "/api/games/", strings.NewReader(body)))
	require.Equal(t, http.StatusForbidden, res.Code)
	require.JSONEq(t, `{"error":"role_forbidden"}`, res.Body.String())
}

func TestUpdateGameStatusOverride(t *testing.T) {
	repo := newMemoryRepo()
	repo.addLeague(1, "North Soccer")
	g := repo.addGame(games.Game{LeagueID: 1, GameDate: date("2026-09-05"), GameTime: "18:00", HomeTeam: "Hawks", AwayTeam: "Owls", Sport: "Soccer"})
	repo.addAccount(1, authz.RoleSuperadmin)
	repo.addAccount(2, authz.RoleAdmin, 1)
	router := newGamesRouter(t, repo)

	path := "/api/games/" + strconv.FormatInt(g.ID, 10)
	complete := `{"league_id":1,"game_date":"2026-09-05","game_time":"18:00","home_team":"Hawks","away_team":"Owls","sport":"Soccer","status":"completed"}`
	done := serveAs(t, router, 2, httptest.NewRequest(http.MethodPut, path, strings.NewReader(complete)))
	require.Equal(t, http.StatusOK, done.Code)
	require.Contains(t, done.Body.String(), "completed")

	reopen := `{"league_id":1,"game_date":"2026-09-05","game_time":"18:00","home_team":"Hawks","away_team":"Owls","sport":"Soccer","status":"scheduled"}`
	blocked := serveAs(t, router, 2, httptest.NewRequest(http.MethodPut, path, strings.NewReader(reopen)))
	require.Equal(t, http.StatusConflict, blocked.Code)

	allowed := serveAs(t, router, 1, httptest.NewRequest(http.MethodPut, path, strings.NewReader(reopen)))
	require.Equal(t, http.StatusOK, allowed.Code)
	require.Contains(t, allowed.Body.String(), "scheduled")
}

func TestUpdateGameCannotMoveOutsideScope(t *testing.T) {
	repo := newMemoryRepo()
	repo.addLeague(1, "North Soccer")
	repo.addLeague(2, "South Hoops")
	g := repo.addGame(games.Game{LeagueID: 1, GameDate: date("2026-09-05"), GameTime: "18:00", HomeTeam: "Hawks", AwayTeam: "Owls", Sport: "Soccer"})
	repo.addAccount(2, authz.RoleAdmin, 1)
	router := newGamesRouter(t, repo)

	body := `{"league_id":2,"game_date":"2026-09-05","game_time":"18:00","home_team":"Hawks","away_team":"Owls","sport":"Soccer"}`
	res := serveAs(t, router, 2, httptest.NewRequest(http.MethodPut, "/api/games/"+strconv.FormatInt(g.ID, 10), strings.NewReader(body)))
	require.Equal(t, http.StatusForbidden, res.Code)
	require.JSONEq(t, `{"error":"outside_assigned_leagues"}`, res.Body.String())
	require.EqualValues(t, 1, repo.games[g.ID].LeagueID)
}

func TestBulkLinkFlow(t *testing.T) {
	repo := newMemoryRepo()
	repo.addLeague(1, "North Soccer")
	a := repo.addGame(games.Game{LeagueID: 1, GameDate: date("2026-09-05"), GameTime: "10:00", HomeTeam: "Hawks", AwayTeam: "Owls", Sport: "Soccer"})
	b := repo.addGame(games.Game{LeagueID: 1, GameDate: date("2026-09-05"), GameTime: "12:00", HomeTeam: "Lions", AwayTeam: "Bears", Sport: "Soccer"})
	repo.addAccount(2, authz.RoleAdmin, 1)
	router := newGamesRouter(t, repo)

	next := serveAs(t, router, 2, httptest.NewRequest(http.MethodGet, "/api/games/next-link-group", nil))
	require.Equal(t, http.StatusOK, next.Code)
	require.JSONEq(t, `{"link_group":"LINK-001"}`, next.Body.String())

	idA, idB := strconv.FormatInt(a.ID, 10), strconv.FormatInt(b.ID, 10)
	link := `{"game_ids":[` + idA + `,` + idB + `],"link_group":"LINK-001"}`
	linked := serveAs(t, router, 2, httptest.NewRequest(http.MethodPost, "/api/games/bulk-link", strings.NewReader(link)))
	require.Equal(t, http.StatusOK, linked.Code)
	require.JSONEq(t, `{"linked":2,"link_group":"LINK-001"}`, linked.Body.String())

	after := serveAs(t, router, 2, httptest.NewRequest(http.MethodGet, "/api/games/next-link-group", nil))
	require.JSONEq(t, `{"link_group":"LINK-002"}`, after.Body.String())

	single := `{"game_ids":[` + idA + `],"link_group":"LINK-002"}`
	tooFew := serveAs(t, router, 2, httptest.NewRequest(http.MethodPost, "/api/games/bulk-link", strings.NewReader(single)))
	require.Equal(t, http.StatusBadRequest, tooFew.Code)

	unlink := `{"game_ids":[` + idA + `]}`
	unlinked := serveAs(t, router, 2, httptest.NewRequest(http.MethodPost, "/api/games/bulk-unlink", strings.NewReader(unlink)))
	require.Equal(t, http.StatusOK, unlinked.Code)
	require.JSONEq(t, `{"unlinked":1}`, unlinked.Body.String())
	require.Empty(t, repo.games[a.ID].LinkGroup)
	require.Equal(t, "LINK-001", repo.games[b.ID].LinkGroup)
}

func TestBulkDeleteAllOrNothing(t *testing.T) {
	repo := newMemoryRepo()
	inScope, outOfScope, _ := seedSchedule(repo)
	repo.addAccount(2, authz.RoleAdmin, 1)
	router := newGamesRouter(t, repo)

	body := `{"game_ids":[` + strconv.FormatInt(inScope.ID, 10) + `,` + strconv.FormatInt(outOfScope.ID, 10) + `]}`
	res := serveAs(t, router, 2, httptest.NewRequest(http.MethodPost, "/api/games/bulk-delete", strings.NewReader(body)))
	require.Equal(t, http.StatusForbidden, res.Code)
	require.JSONEq(t, `{"error":"outside_assigned_leagues"}`, res.Body.String())

	// Nothing was removed: a single denial rejects the whole batch.
	require.Contains(t, repo.games, inScope.ID)
	require.Contains(t, repo.games, outOfScope.ID)

	own := `{"game_ids":[` + strconv.FormatInt(inScope.ID, 10) + `]}`
	ok := serveAs(t, router, 2, httptest.NewRequest(http.MethodPost, "/api/games/bulk-delete", strings.NewReader(own)))
	require.Equal(t, http.StatusOK, ok.Code)
	require.JSONEq(t, `{"deleted":1}`, ok.Body.String())
	require.NotContains(t, repo.games, inScope.ID)
}

func TestAssignerCannotTouchGames(t *testing.T) {
	repo := newMemoryRepo()
	inScope, _, _ := seedSchedule(repo)
	repo.addAccount(4, authz.RoleAssigner, 1)
	router := newGamesRouter(t, repo)

	body := `{"game_ids":[` + strconv.FormatInt(inScope.ID, 10) + `],"link_group":"LINK-001"}`
	res := serveAs(t, router, 4, httptest.NewRequest(http.MethodPost, "/api/games/bulk-unlink", strings.NewReader(body)))
	require.Equal(t, http.StatusForbidden, res.Code)
	require.JSONEq(t, `{"error":"role_forbidden"}`, res.Body.String())

	next := serveAs(t, router, 4, httptest.NewRequest(http.MethodGet, "/api/games/next-link-group", nil))
	require.Equal(t, http.StatusForbidden, next.Code)
	require.JSONEq(t, `{"error":"role_forbidden"}`, next.Body.String())
}

func TestDeleteGame(t *testing.T) {
	repo := newMemoryRepo()
	inScope, _, _ := seedSchedule(repo)
	repo.addAccount(2, authz.RoleAdmin, 1)
	router := newGamesRouter(t, repo)

	path := "/api/games/" + strconv.FormatInt(inScope.ID, 10)
	res := serveAs(t, router, 2, httptest.NewRequest(http.MethodDelete, path, nil))
	require.Equal(t, http.StatusOK, res.Code)
	require.JSONEq(t, `{"deleted":true}`, res.Body.String())

	gone := serveAs(t, router, 2, httptest.NewRequest(http.MethodGet, path, nil))
	require.Equal(t, http.StatusNotFound, gone.Code)
}
