package billing_test

import (
	"context"
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

	"github.com/refdesk/refdesk/internal/authz"
	"github.com/refdesk/refdesk/internal/billing"
	"github.com/refdesk/refdesk/internal/shared"
	_ "github.com/refdesk/refdesk/testing"
)

type memoryRepo struct {
	entities map[int64]billing.BillTo
	order    []int64
	ruleRefs map[int64]int
	accounts map[int64]authz.Account
	nextID   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		entities: map[int64]billing.BillTo{},
		ruleRefs: map[int64]int{},
		accounts: map[int64]authz.Account{},
		nextID:   1,
	}
}

func (m *memoryRepo) addAccount(id int64, role authz.Role) {
	m.accounts[id] = authz.Account{ID: id, Role: role, IsActive: true}
}

func (m *memoryRepo) add(b billing.BillTo) billing.BillTo {
	if b.ID == 0 {
		b.ID = m.nextID
	}
	if b.ID >= m.nextID {
		m.nextID = b.ID + 1
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	b.IsActive = true
	m.entities[b.ID] = b
	m.order = append(m.order, b.ID)
	return b
}

func (m *memoryRepo) List(ctx context.Context) ([]billing.BillTo, error) {
	out := []billing.BillTo{}
	for _, id := range m.order {
		b, ok := m.entities[id]
		if ok && b.IsActive {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memoryRepo) FindByID(ctx context.Context, id int64) (*billing.BillTo, error) {
	b, ok := m.entities[id]
	if !ok || !b.IsActive {
		return nil, shared.ErrNotFound
	}
	return &b, nil
}

func (m *memoryRepo) NameExists(ctx context.Context, name string, excludeID int64) (bool, error) {
	for _, b := range m.entities {
		if b.IsActive && b.ID != excludeID && strings.EqualFold(b.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryRepo) Insert(ctx context.Context, in billing.Input, createdBy int64) (int64, error) {
	b := m.add(billing.BillTo{
		Name:          in.Name,
		ContactPerson: in.ContactPerson,
		Email:         in.Email,
		Phone:         in.Phone,
		Address:       in.Address,
		City:          in.City,
		State:         in.State,
		ZipCode:       in.ZipCode,
		TaxID:         in.TaxID,
		CreatedBy:     createdBy,
	})
	return b.ID, nil
}

func (m *memoryRepo) Update(ctx context.Context, id int64, in billing.Input) error {
	b, ok := m.entities[id]
	if !ok || !b.IsActive {
		return shared.ErrNotFound
	}
	b.Name, b.ContactPerson, b.Email = in.Name, in.ContactPerson, in.Email
	m.entities[id] = b
	return nil
}

func (m *memoryRepo) SoftDelete(ctx context.Context, id int64) error {
	b, ok := m.entities[id]
	if !ok || !b.IsActive {
		return shared.ErrNotFound
	}
	b.IsActive = false
	m.entities[id] = b
	return nil
}

func (m *memoryRepo) CountBillingRules(ctx context.Context, billToID int64) (int, error) {
	return m.ruleRefs[billToID], nil
}

func (m *memoryRepo) AccountByID(ctx context.Context, id int64) (authz.Account, error) {
	acct, ok := m.accounts[id]
	if !ok {
		return authz.Account{}, shared.ErrNotFound
	}
	return acct, nil
}

func (m *memoryRepo) ActiveLeagueIDs(ctx context.Context, userID int64) ([]int64, error) {
	return nil, nil
}

func newRouter(t *testing.T, repo *memoryRepo) chi.Router {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mw := authz.Middleware{
		Resolver: authz.NewResolver(repo, repo),
		Policy:   authz.NewPolicy(),
		Logger:   logger,
	}
	handler := billing.NewHandler(logger, billing.NewService(repo, nil), mw)
	r := chi.NewRouter()
	r.Route("/api/bill-to-entities", handler.MountRoutes)
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

func TestRoutesGatedByManageBilling(t *testing.T) {
	repo := newMemoryRepo()
	repo.add(billing.BillTo{Name: "City Rec Dept"})
	repo.addAccount(2, authz.RoleAdmin)
	repo.addAccount(3, authz.RoleAssigner)
	repo.addAccount(4, authz.RoleOfficial)
	router := newRouter(t, repo)

	for _, denied := range []int64{3, 4} {
		res := serveAs(t, router, denied, httptest.NewRequest(http.MethodGet, "/api/bill-to-entities/", nil))
		require.Equal(t, http.StatusForbidden, res.Code)
		require.JSONEq(t, `{"error":"role_forbidden"}`, res.Body.String())
	}

	ok := serveAs(t, router, 2, httptest.NewRequest(http.MethodGet, "/api/bill-to-entities/", nil))
	require.Equal(t, http.StatusOK, ok.Code)
	require.Contains(t, ok.Body.String(), "City Rec Dept")
}

func TestCreateEntity(t *testing.T) {
	repo := newMemoryRepo()
	repo.addAccount(2, authz.RoleAdmin)
	router := newRouter(t, repo)

	body := `{"name":"City Rec Dept","email":"billing@city.test","tax_id":"12-3456789"}`
	res := serveAs(t, router, 2, httptest.NewRequest(http.MethodPost, "/api/bill-to-entities/", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, res.Code)
	require.Contains(t, res.Body.String(), "City Rec Dept")

	dup := serveAs(t, router, 2, httptest.NewRequest(http.MethodPost, "/api/bill-to-entities/", strings.NewReader(body)))
	require.Equal(t, http.StatusConflict, dup.Code)
}

func TestDeleteBlockedWhileReferenced(t *testing.T) {
	repo := newMemoryRepo()
	entity := repo.add(billing.BillTo{Name: "City Rec Dept"})
	repo.ruleRefs[entity.ID] = 2
	repo.addAccount(2, authz.RoleAdmin)
	router := newRouter(t, repo)
	path := "/api/bill-to-entities/" + strconv.FormatInt(entity.ID, 10)

	blocked := serveAs(t, router, 2, httptest.NewRequest(http.MethodDelete, path, nil))
	require.Equal(t, http.StatusConflict, blocked.Code)

	repo.ruleRefs[entity.ID] = 0
	deleted := serveAs(t, router, 2, httptest.NewRequest(http.MethodDelete, path, nil))
	require.Equal(t, http.StatusOK, deleted.Code)
}

func TestGetEntityMissing(t *testing.T) {
	repo := newMemoryRepo()
	repo.addAccount(2, authz.RoleAdmin)
	router := newRouter(t, repo)

	res := serveAs(t, router, 2, httptest.NewRequest(http.MethodGet, "/api/bill-to-entities/99", nil))
	require.Equal(t, http.StatusNotFound, res.Code)
}
