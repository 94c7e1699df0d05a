package officials_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/refdesk/refdesk/internal/assignments"
	"github.com/refdesk/refdesk/internal/authz"
	"github.com/refdesk/refdesk/internal/officials"
	"github.com/refdesk/refdesk/internal/shared"
	_ "github.com/refdesk/refdesk/testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newOfficialsRouter(t *testing.T, repo *memoryRepo) chi.Router {
	t.Helper()
	mw := authz.Middleware{
		Resolver: authz.NewResolver(repo, repo),
		Policy:   authz.NewPolicy(),
		Logger:   testLogger(),
	}
	handler := officials.NewHandler(testLogger(), officials.NewService(repo, nil), mw)
	r := chi.NewRouter()
	r.Route("/api/officials", handler.MountRoutes)
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

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestListOfficialsScoped(t *testing.T) {
	repo := newMemoryRepo()
	repo.addOfficial(7, "Jamie Fox", 1)
	repo.addOfficial(8, "Robin Hale", 2)
	repo.addAccount(1, authz.RoleSuperadmin)
	repo.addAccount(2, authz.RoleAdmin, 1)
	router := newOfficialsRouter(t, repo)

	all := serveAs(t, router, 1, httptest.NewRequest(http.MethodGet, "/api/officials/", nil))
	require.Equal(t, http.StatusOK, all.Code)
	require.Contains(t, all.Body.String(), "Jamie Fox")
	require.Contains(t, all.Body.String(), "Robin Hale")

	scoped := serveAs(t, router, 2, httptest.NewRequest(http.MethodGet, "/api/officials/", nil))
	require.Equal(t, http.StatusOK, scoped.Code)
	require.Contains(t, scoped.Body.String(), "Jamie Fox")
	require.NotContains(t, scoped.Body.String(), "Robin Hale")

	own := serveAs(t, router, 8, httptest.NewRequest(http.MethodGet, "/api/officials/", nil))
	require.Equal(t, http.StatusOK, own.Code)
	require.NotContains(t, own.Body.String(), "Jamie Fox")
	require.Contains(t, own.Body.String(), "Robin Hale")
}

func TestGetOfficialDetail(t *testing.T) {
	repo := newMemoryRepo()
	repo.addOfficial(7, "Jamie Fox", 1)
	repo.addOfficial(8, "Robin Hale", 2)
	repo.addAccount(2, authz.RoleAdmin, 1)
	repo.addGame(10, 1, "2026-09-05", "18:00")
	repo.addRow(10, 7, assignments.StatusAccepted)
	router := newOfficialsRouter(t, repo)

	detail := serveAs(t, router, 2, httptest.NewRequest(http.MethodGet, "/api/officials/7", nil))
	require.Equal(t, http.StatusOK, detail.Code)
	require.Contains(t, detail.Body.String(), `"total_assignments":1`)
	require.Contains(t, detail.Body.String(), `"last_assignment_date":"2026-09-05"`)
	require.Contains(t, detail.Body.String(), "Hawks")

	outside := serveAs(t, router, 2, httptest.NewRequest(http.MethodGet, "/api/officials/8", nil))
	require.Equal(t, http.StatusForbidden, outside.Code)
	require.JSONEq(t, `{"error":"outside_assigned_leagues"}`, outside.Body.String())

	foreign := serveAs(t, router, 8, httptest.NewRequest(http.MethodGet, "/api/officials/7", nil))
	require.Equal(t, http.StatusForbidden, foreign.Code)
	require.JSONEq(t, `{"error":"not_your_resource"}`, foreign.Body.String())

	self := serveAs(t, router, 8, httptest.NewRequest(http.MethodGet, "/api/officials/8", nil))
	require.Equal(t, http.StatusOK, self.Code)
	require.Contains(t, self.Body.String(), "Robin Hale")
}

func TestCreateOfficialGate(t *testing.T) {
	repo := newMemoryRepo()
	repo.addAccount(2, authz.RoleAdmin, 1)
	repo.addAccount(4, authz.RoleAssigner, 1)
	repo.addOfficial(7, "Jamie Fox", 1)
	router := newOfficialsRouter(t, repo)

	created := serveAs(t, router, 2, jsonRequest(http.MethodPost, "/api/officials/",
		`{"username":"jfox","password":"long-enough","full_name":"Jamie Fox II","email":"jfox2@example.com","sports":["Soccer","Basketball"],"experience_years":4}`))
	require.Equal(t, http.StatusCreated, created.Code)
	require.Contains(t, created.Body.String(), `"username":"jfox"`)
	require.Contains(t, created.Body.String(), `"sports":"Soccer, Basketball"`)

	// Assigners hold manage_officials, which covers official accounts.
	byAssigner := serveAs(t, router, 4, jsonRequest(http.MethodPost, "/api/officials/",
		`{"username":"rhale","password":"long-enough","full_name":"Robin Hale II","email":"rhale2@example.com"}`))
	require.Equal(t, http.StatusCreated, byAssigner.Code)

	forbidden := serveAs(t, router, 7, jsonRequest(http.MethodPost, "/api/officials/",
		`{"username":"nope","password":"long-enough","full_name":"No One","email":"noone@example.com"}`))
	require.Equal(t, http.StatusForbidden, forbidden.Code)
	require.JSONEq(t, `{"error":"role_forbidden"}`, forbidden.Body.String())

	duplicate := serveAs(t, router, 2, jsonRequest(http.MethodPost, "/api/officials/",
		`{"username":"jfox","password":"long-enough","full_name":"Other Fox","email":"other@example.com"}`))
	require.Equal(t, http.StatusConflict, duplicate.Code)
	require.Contains(t, duplicate.Body.String(), "username already exists")
}

func TestUpdateOfficialScope(t *testing.T) {
	repo := newMemoryRepo()
	repo.addAccount(2, authz.RoleAdmin, 1)
	repo.addOfficial(7, "Jamie Fox", 1)
	repo.addOfficial(8, "Robin Hale", 2)
	router := newOfficialsRouter(t, repo)

	body := `{"full_name":"Jamie Fox","email":"jfox@example.com","certifications":"Grade 1","sports":["Soccer"]}`
	updated := serveAs(t, router, 2, jsonRequest(http.MethodPut, "/api/officials/7", body))
	require.Equal(t, http.StatusOK, updated.Code)
	require.Contains(t, updated.Body.String(), `"certifications":"Grade 1"`)

	outside := serveAs(t, router, 2, jsonRequest(http.MethodPut, "/api/officials/8",
		`{"full_name":"Robin Hale","email":"rhale@example.com"}`))
	require.Equal(t, http.StatusForbidden, outside.Code)
	require.JSONEq(t, `{"error":"outside_assigned_leagues"}`, outside.Body.String())

	missing := serveAs(t, router, 2, jsonRequest(http.MethodPut, "/api/officials/99",
		`{"full_name":"Ghost","email":"ghost@example.com"}`))
	require.Equal(t, http.StatusNotFound, missing.Code)

	invalid := serveAs(t, router, 2, jsonRequest(http.MethodPut, "/api/officials/7", `{"email":"jfox@example.com"}`))
	require.Equal(t, http.StatusBadRequest, invalid.Code)
}

func TestProfileSelfService(t *testing.T) {
	repo := newMemoryRepo()
	repo.addOfficial(7, "Jamie Fox", 1)
	repo.addAccount(2, authz.RoleAdmin, 1)
	router := newOfficialsRouter(t, repo)

	got := serveAs(t, router, 7, httptest.NewRequest(http.MethodGet, "/api/officials/profile", nil))
	require.Equal(t, http.StatusOK, got.Code)
	require.Contains(t, got.Body.String(), `"user"`)
	require.Contains(t, got.Body.String(), `"username":"official7"`)

	put := serveAs(t, router, 7, jsonRequest(http.MethodPut, "/api/officials/profile",
		`{"full_name":"Jamie R. Fox","email":"jfox@example.com","address":"12 Elm St"}`))
	require.Equal(t, http.StatusOK, put.Code)
	require.Contains(t, put.Body.String(), "Jamie R. Fox")
	require.Contains(t, put.Body.String(), "12 Elm St")

	// The profile surface belongs to officials; admins are turned away.
	admin := serveAs(t, router, 2, httptest.NewRequest(http.MethodGet, "/api/officials/profile", nil))
	require.Equal(t, http.StatusForbidden, admin.Code)
	require.JSONEq(t, `{"error":"role_forbidden"}`, admin.Body.String())
}

func TestMyGamesAndStats(t *testing.T) {
	repo := newMemoryRepo()
	repo.addLeague(1, "Metro League")
	repo.addOfficial(7, "Jamie Fox", 1)
	now := time.Now()
	repo.addGame(10, 1, fmtDate(now.AddDate(0, 0, -40)), "18:00")
	repo.addGame(11, 1, fmtDate(now.AddDate(0, 0, 40)), "19:00")
	repo.addRow(10, 7, assignments.StatusAccepted)
	repo.addRow(11, 7, assignments.StatusPending)
	router := newOfficialsRouter(t, repo)

	games := serveAs(t, router, 7, httptest.NewRequest(http.MethodGet, "/api/officials/my-games", nil))
	require.Equal(t, http.StatusOK, games.Code)
	var listing struct {
		Games []struct {
			ID         int64  `json:"id"`
			LeagueName string `json:"league_name"`
			Status     string `json:"status"`
		} `json:"games"`
	}
	require.NoError(t, json.Unmarshal(games.Body.Bytes(), &listing))
	require.Len(t, listing.Games, 2)
	require.EqualValues(t, 11, listing.Games[0].ID)
	require.Equal(t, "Metro League", listing.Games[0].LeagueName)
	require.Equal(t, assignments.StatusPending, listing.Games[0].Status)

	stats := serveAs(t, router, 7, httptest.NewRequest(http.MethodGet, "/api/officials/my-stats", nil))
	require.Equal(t, http.StatusOK, stats.Code)
	require.JSONEq(t, `{"stats":{"total":2,"upcoming":1,"completed":1,"this_month":0}}`, stats.Body.String())
}

func TestRespondEndpoint(t *testing.T) {
	repo := newMemoryRepo()
	repo.addOfficial(7, "Jamie Fox", 1)
	repo.addAccount(2, authz.RoleAdmin, 1)
	repo.addGame(10, 1, "2026-09-05", "18:00")
	row := repo.addRow(10, 7, assignments.StatusPending)
	router := newOfficialsRouter(t, repo)

	accepted := serveAs(t, router, 7, jsonRequest(http.MethodPost, "/api/officials/game/10/respond",
		`{"response":"accept","notes":"see you there"}`))
	require.Equal(t, http.StatusOK, accepted.Code)
	require.JSONEq(t, `{"game_id":10,"status":"accepted"}`, accepted.Body.String())
	require.Equal(t, assignments.StatusAccepted, repo.rows[row.id].status)

	notOwn := serveAs(t, router, 7, jsonRequest(http.MethodPost, "/api/officials/game/99/respond",
		`{"response":"accept"}`))
	require.Equal(t, http.StatusNotFound, notOwn.Code)

	invalid := serveAs(t, router, 7, jsonRequest(http.MethodPost, "/api/officials/game/10/respond",
		`{"response":"maybe"}`))
	require.Equal(t, http.StatusBadRequest, invalid.Code)

	admin := serveAs(t, router, 2, jsonRequest(http.MethodPost, "/api/officials/game/10/respond",
		`{"response":"accept"}`))
	require.Equal(t, http.StatusForbidden, admin.Code)
	require.JSONEq(t, `{"error":"role_forbidden"}`, admin.Body.String())
}

func TestAvailabilityEndpoints(t *testing.T) {
	repo := newMemoryRepo()
	repo.addOfficial(7, "Jamie Fox", 1)
	repo.addOfficial(8, "Robin Hale", 2)
	router := newOfficialsRouter(t, repo)

	created := serveAs(t, router, 7, jsonRequest(http.MethodPost, "/api/officials/availability",
		`{"date":"2026-09-05","availability_type":"unavailable","reason":"out of town"}`))
	require.Equal(t, http.StatusCreated, created.Code)
	var record struct {
		Availability struct {
			ID   int64  `json:"id"`
			Date string `json:"date"`
		} `json:"availability"`
	}
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &record))
	require.NotZero(t, record.Availability.ID)
	require.Equal(t, "2026-09-05", record.Availability.Date)

	window := serveAs(t, router, 7, jsonRequest(http.MethodPost, "/api/officials/availability",
		`{"date":"2026-09-06","availability_type":"available","start_time":"08:00","end_time":"12:00"}`))
	require.Equal(t, http.StatusCreated, window.Code)

	duplicate := serveAs(t, router, 7, jsonRequest(http.MethodPost, "/api/officials/availability",
		`{"date":"2026-09-05","availability_type":"unavailable"}`))
	require.Equal(t, http.StatusConflict, duplicate.Code)
	require.Contains(t, duplicate.Body.String(), "already recorded")

	badDate := serveAs(t, router, 7, jsonRequest(http.MethodPost, "/api/officials/availability",
		`{"date":"September 5th","availability_type":"unavailable"}`))
	require.Equal(t, http.StatusBadRequest, badDate.Code)

	listed := serveAs(t, router, 7, httptest.NewRequest(http.MethodGet, "/api/officials/availability", nil))
	require.Equal(t, http.StatusOK, listed.Code)
	require.Contains(t, listed.Body.String(), "2026-09-05")
	require.Contains(t, listed.Body.String(), "2026-09-06")

	target := fmt.Sprintf("/api/officials/availability/%d", record.Availability.ID)
	foreign := serveAs(t, router, 8, httptest.NewRequest(http.MethodDelete, target, nil))
	require.Equal(t, http.StatusForbidden, foreign.Code)
	require.JSONEq(t, `{"error":"not_your_resource"}`, foreign.Body.String())

	deleted := serveAs(t, router, 7, httptest.NewRequest(http.MethodDelete, target, nil))
	require.Equal(t, http.StatusOK, deleted.Code)
	require.JSONEq(t, `{"deleted":true}`, deleted.Body.String())
}

func TestRankingEndpoints(t *testing.T) {
	repo := newMemoryRepo()
	repo.addLeague(1, "Metro League")
	repo.addAccount(2, authz.RoleAdmin, 1)
	repo.addOfficial(7, "Jamie Fox", 1)
	router := newOfficialsRouter(t, repo)

	put := serveAs(t, router, 2, jsonRequest(http.MethodPut, "/api/officials/7/ranking",
		`{"league_id":1,"ranking":4,"notes":"steady"}`))
	require.Equal(t, http.StatusOK, put.Code)
	require.Contains(t, put.Body.String(), `"ranking":4`)
	require.Contains(t, put.Body.String(), "Metro League")

	listed := serveAs(t, router, 2, httptest.NewRequest(http.MethodGet, "/api/officials/7/ranking", nil))
	require.Equal(t, http.StatusOK, listed.Code)
	require.Contains(t, listed.Body.String(), "Metro League")

	outside := serveAs(t, router, 2, jsonRequest(http.MethodPut, "/api/officials/7/ranking",
		`{"league_id":2,"ranking":3}`))
	require.Equal(t, http.StatusForbidden, outside.Code)
	require.JSONEq(t, `{"error":"outside_assigned_leagues"}`, outside.Body.String())

	offScale := serveAs(t, router, 2, jsonRequest(http.MethodPut, "/api/officials/7/ranking",
		`{"league_id":1,"ranking":9}`))
	require.Equal(t, http.StatusBadRequest, offScale.Code)

	missing := serveAs(t, router, 2, jsonRequest(http.MethodPut, "/api/officials/99/ranking",
		`{"league_id":1,"ranking":3}`))
	require.Equal(t, http.StatusNotFound, missing.Code)

	// Officials have no window into league rankings, their own included.
	asOfficial := serveAs(t, router, 7, httptest.NewRequest(http.MethodGet, "/api/officials/7/ranking", nil))
	require.Equal(t, http.StatusForbidden, asOfficial.Code)
	require.JSONEq(t, `{"error":"role_forbidden"}`, asOfficial.Body.String())
}
