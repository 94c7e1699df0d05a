package leagues_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/refdesk/refdesk/internal/authz"
	"github.com/refdesk/refdesk/internal/leagues"
	"github.com/refdesk/refdesk/internal/shared"
)

// memoryStore is an in-memory RepositoryPort and BillingPort. It also
// backs principal resolution so handler tests can run the full stack.
type memoryStore struct {
	accounts map[int64]stubAccount
	leagues  map[int64]leagues.League
	order    []int64
	levels   map[int64][]string
	fees     map[int64]leagues.Fee
	feeOrder []int64
	billing  map[int64]leagues.BillingRule
	billTo   map[int64]bool
	nextID   int64

	assigned []assignedPair
}

type stubAccount struct {
	role    authz.Role
	active  bool
	leagues []int64
}

type assignedPair struct {
	leagueID, userID int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		accounts: map[int64]stubAccount{},
		leagues:  map[int64]leagues.League{},
		levels:   map[int64][]string{},
		fees:     map[int64]leagues.Fee{},
		billing:  map[int64]leagues.BillingRule{},
		billTo:   map[int64]bool{},
		nextID:   1,
	}
}

func (m *memoryStore) addAccount(id int64, role authz.Role, leagueIDs ...int64) {
	m.accounts[id] = stubAccount{role: role, active: true, leagues: leagueIDs}
}

func (m *memoryStore) addLeague(l leagues.League) leagues.League {
	if l.ID == 0 {
		l.ID = m.nextID
	}
	if l.ID >= m.nextID {
		m.nextID = l.ID + 1
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now()
	}
	l.IsActive = true
	m.leagues[l.ID] = l
	m.order = append(m.order, l.ID)
	return l
}

func (m *memoryStore) addFee(f leagues.Fee) leagues.Fee {
	if f.ID == 0 {
		f.ID = m.nextID
	}
	if f.ID >= m.nextID {
		m.nextID = f.ID + 1
	}
	f.IsActive = true
	m.fees[f.ID] = f
	m.feeOrder = append(m.feeOrder, f.ID)
	return f
}

func (m *memoryStore) matches(l leagues.League, f leagues.ListFilters) bool {
	if f.Search != "" {
		s := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(l.Name), s) &&
			!strings.Contains(strings.ToLower(l.Sport), s) &&
			!strings.Contains(strings.ToLower(l.Season), s) {
			return false
		}
	}
	if f.Sport != "" && l.Sport != f.Sport {
		return false
	}
	if f.Season != "" && l.Season != f.Season {
		return false
	}
	return true
}

func (m *memoryStore) List(ctx context.Context, f leagues.ListFilters) ([]leagues.League, error) {
	out := []leagues.League{}
	for _, id := range m.order {
		l, ok := m.leagues[id]
		if ok && l.IsActive && m.matches(l, f) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memoryStore) ListByIDs(ctx context.Context, ids []int64, f leagues.ListFilters) ([]leagues.League, error) {
	wanted := map[int64]struct{}{}
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	out := []leagues.League{}
	for _, id := range m.order {
		l, ok := m.leagues[id]
		if !ok || !l.IsActive || !m.matches(l, f) {
			continue
		}
		if _, hit := wanted[id]; hit {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memoryStore) FindByID(ctx context.Context, id int64) (*leagues.League, error) {
	l, ok := m.leagues[id]
	if !ok || !l.IsActive {
		return nil, shared.ErrNotFound
	}
	return &l, nil
}

func (m *memoryStore) NameExists(ctx context.Context, name, season string, excludeID int64) (bool, error) {
	for _, l := range m.leagues {
		if l.IsActive && l.ID != excludeID && strings.EqualFold(l.Name, name) && l.Season == season {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryStore) Insert(ctx context.Context, in leagues.CreateInput, createdBy int64) (int64, error) {
	l := m.addLeague(leagues.League{
		Name:        in.Name,
		Sport:       in.Sport,
		Season:      in.Season,
		Description: in.Description,
		CreatedBy:   createdBy,
	})
	m.levels[l.ID] = append([]string{}, in.Levels...)
	return l.ID, nil
}

func (m *memoryStore) Update(ctx context.Context, id int64, in leagues.UpdateInput) error {
	l, ok := m.leagues[id]
	if !ok || !l.IsActive {
		return shared.ErrNotFound
	}
	l.Name, l.Sport, l.Season, l.Description = in.Name, in.Sport, in.Season, in.Description
	m.leagues[id] = l
	if in.Levels != nil {
		m.levels[id] = append([]string{}, in.Levels...)
	}
	return nil
}

func (m *memoryStore) SoftDelete(ctx context.Context, id int64) error {
	l, ok := m.leagues[id]
	if !ok || !l.IsActive {
		return shared.ErrNotFound
	}
	l.IsActive = false
	m.leagues[id] = l
	return nil
}

func (m *memoryStore) Levels(ctx context.Context, leagueID int64) ([]leagues.Level, error) {
	l := m.leagues[leagueID]
	out := []leagues.Level{}
	for i, name := range m.levels[leagueID] {
		out = append(out, leagues.Level{
			ID:         int64(i + 1),
			LeagueID:   leagueID,
			LevelName:  name,
			IsActive:   true,
			LeagueName: l.Name,
		})
	}
	return out, nil
}

func (m *memoryStore) UpsertMembership(ctx context.Context, leagueID, userID, assignedBy int64) error {
	m.assigned = append(m.assigned, assignedPair{leagueID: leagueID, userID: userID})
	acct, ok := m.accounts[userID]
	if ok {
		acct.leagues = append(acct.leagues, leagueID)
		m.accounts[userID] = acct
	}
	return nil
}

func (m *memoryStore) FindUserRole(ctx context.Context, userID int64) (authz.Role, error) {
	acct, ok := m.accounts[userID]
	if !ok || !acct.active {
		return "", shared.ErrNotFound
	}
	return acct.role, nil
}

func (m *memoryStore) ListFees(ctx context.Context, leagueID int64) ([]leagues.Fee, error) {
	out := []leagues.Fee{}
	for _, id := range m.feeOrder {
		f, ok := m.fees[id]
		if ok && f.IsActive && f.LeagueID == leagueID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *memoryStore) FindFee(ctx context.Context, leagueID, feeID int64) (*leagues.Fee, error) {
	f, ok := m.fees[feeID]
	if !ok || !f.IsActive || f.LeagueID != leagueID {
		return nil, shared.ErrNotFound
	}
	return &f, nil
}

func (m *memoryStore) FeeExists(ctx context.Context, leagueID int64, levelName string, excludeID int64) (bool, error) {
	for _, f := range m.fees {
		if f.IsActive && f.LeagueID == leagueID && f.ID != excludeID && strings.EqualFold(f.LevelName, levelName) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryStore) InsertFee(ctx context.Context, leagueID int64, in leagues.FeeInput, createdBy int64) (int64, error) {
	f := m.addFee(leagues.Fee{
		LeagueID:    leagueID,
		LevelName:   in.LevelName,
		OfficialFee: in.OfficialFee,
		Notes:       in.Notes,
		CreatedBy:   createdBy,
	})
	return f.ID, nil
}

func (m *memoryStore) UpdateFee(ctx context.Context, feeID int64, in leagues.FeeInput) error {
	f, ok := m.fees[feeID]
	if !ok || !f.IsActive {
		return shared.ErrNotFound
	}
	f.LevelName, f.OfficialFee, f.Notes = in.LevelName, in.OfficialFee, in.Notes
	m.fees[feeID] = f
	return nil
}

func (m *memoryStore) SoftDeleteFee(ctx context.Context, feeID int64) error {
	f, ok := m.fees[feeID]
	if !ok || !f.IsActive {
		return shared.ErrNotFound
	}
	f.IsActive = false
	m.fees[feeID] = f
	return nil
}

func (m *memoryStore) ListBilling(ctx context.Context, leagueID int64) ([]leagues.BillingRule, error) {
	out := []leagues.BillingRule{}
	for _, b := range m.billing {
		if b.IsActive && b.LeagueID == leagueID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memoryStore) FindBilling(ctx context.Context, leagueID, billingID int64) (*leagues.BillingRule, error) {
	b, ok := m.billing[billingID]
	if !ok || !b.IsActive || b.LeagueID != leagueID {
		return nil, shared.ErrNotFound
	}
	return &b, nil
}

func (m *memoryStore) BillingExists(ctx context.Context, leagueID int64, levelName string, excludeID int64) (bool, error) {
	for _, b := range m.billing {
		if b.IsActive && b.LeagueID == leagueID && b.ID != excludeID && strings.EqualFold(b.LevelName, levelName) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryStore) BillToExists(ctx context.Context, billToID int64) (bool, error) {
	return m.billTo[billToID], nil
}

func (m *memoryStore) InsertBilling(ctx context.Context, leagueID int64, in leagues.BillingInput, createdBy int64) (int64, error) {
	id := m.nextID
	m.nextID++
	m.billing[id] = leagues.BillingRule{
		ID:         id,
		LeagueID:   leagueID,
		LevelName:  in.LevelName,
		BillAmount: in.BillAmount,
		BillToID:   in.BillToID,
		Notes:      in.Notes,
		IsActive:   true,
		CreatedBy:  createdBy,
	}
	return id, nil
}

func (m *memoryStore) UpdateBilling(ctx context.Context, billingID int64, in leagues.BillingUpdate) error {
	b, ok := m.billing[billingID]
	if !ok || !b.IsActive {
		return shared.ErrNotFound
	}
	if in.BillAmount != nil {
		b.BillAmount = *in.BillAmount
	}
	if in.BillToID != nil {
		b.BillToID = *in.BillToID
	}
	if in.Notes != nil {
		b.Notes = *in.Notes
	}
	m.billing[billingID] = b
	return nil
}

func (m *memoryStore) SoftDeleteBilling(ctx context.Context, billingID int64) error {
	b, ok := m.billing[billingID]
	if !ok || !b.IsActive {
		return shared.ErrNotFound
	}
	b.IsActive = false
	m.billing[billingID] = b
	return nil
}

func (m *memoryStore) AccountByID(ctx context.Context, id int64) (authz.Account, error) {
	acct, ok := m.accounts[id]
	if !ok {
		return authz.Account{}, shared.ErrNotFound
	}
	return authz.Account{ID: id, Role: acct.role, IsActive: acct.active}, nil
}

func (m *memoryStore) ActiveLeagueIDs(ctx context.Context, userID int64) ([]int64, error) {
	acct, ok := m.accounts[userID]
	if !ok {
		return nil, nil
	}
	return append([]int64{}, acct.leagues...), nil
}

func newService(store *memoryStore) *leagues.Service {
	return leagues.NewService(store, store, nil)
}

func TestListScopesByRole(t *testing.T) {
	store := newMemoryStore()
	store.addLeague(leagues.League{Name: "North Soccer", Sport: "Soccer", Season: "2026"})
	store.addLeague(leagues.League{Name: "South Hoops", Sport: "Basketball", Season: "2026"})
	svc := newService(store)

	all, err := svc.List(context.Background(), authz.Principal{ID: 1, Role: authz.RoleSuperadmin}, leagues.ListFilters{})
	require.NoError(t, err)
	require.Len(t, all, 2)

	admin := authz.Principal{ID: 2, Role: authz.RoleAdmin, LeagueIDs: map[int64]struct{}{2: {}}}
	scoped, err := svc.List(context.Background(), admin, leagues.ListFilters{})
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	require.Equal(t, "South Hoops", scoped[0].Name)
}

func TestListFilters(t *testing.T) {
	store := newMemoryStore()
	store.addLeague(leagues.League{Name: "North Soccer", Sport: "Soccer", Season: "2026"})
	store.addLeague(leagues.League{Name: "South Hoops", Sport: "Basketball", Season: "2025"})
	svc := newService(store)
	root := authz.Principal{ID: 1, Role: authz.RoleSuperadmin}

	bySport, err := svc.List(context.Background(), root, leagues.ListFilters{Sport: "Soccer"})
	require.NoError(t, err)
	require.Len(t, bySport, 1)

	bySearch, err := svc.List(context.Background(), root, leagues.ListFilters{Search: "hoops"})
	require.NoError(t, err)
	require.Len(t, bySearch, 1)
	require.Equal(t, "South Hoops", bySearch[0].Name)
}

func TestCreateRejectsDuplicateNameWithinSeason(t *testing.T) {
	store := newMemoryStore()
	store.addLeague(leagues.League{Name: "North Soccer", Sport: "Soccer", Season: "2026"})
	svc := newService(store)

	_, err := svc.Create(context.Background(), 1, leagues.CreateInput{Name: "north soccer", Sport: "Soccer", Season: "2026"})
	require.ErrorIs(t, err, leagues.ErrNameTaken)

	created, err := svc.Create(context.Background(), 1, leagues.CreateInput{Name: "north soccer", Sport: "Soccer", Season: "2027"})
	require.NoError(t, err)
	require.Equal(t, "North Soccer", created.Name)
}

func TestCreateStoresLevelCatalog(t *testing.T) {
	store := newMemoryStore()
	svc := newService(store)

	created, err := svc.Create(context.Background(), 1, leagues.CreateInput{
		Name: "Metro Volleyball", Sport: "Volleyball", Season: "2026",
		Levels: []string{"Varsity", "JV"},
	})
	require.NoError(t, err)

	levels, err := svc.Levels(context.Background(), created.ID)
	require.NoError(t, err)
	require.Len(t, levels, 2)
	require.Equal(t, "Varsity", levels[0].LevelName)
}

func TestAssignUserValidatesTargetRole(t *testing.T) {
	store := newMemoryStore()
	league := store.addLeague(leagues.League{Name: "North Soccer", Sport: "Soccer", Season: "2026"})
	store.addAccount(10, authz.RoleAssigner)
	store.addAccount(11, authz.RoleOfficial)
	svc := newService(store)

	require.NoError(t, svc.AssignUser(context.Background(), 1, league.ID, 10))
	require.Equal(t, []assignedPair{{leagueID: league.ID, userID: 10}}, store.assigned)

	err := svc.AssignUser(context.Background(), 1, league.ID, 11)
	require.ErrorIs(t, err, leagues.ErrNotAssignable)

	err = svc.AssignUser(context.Background(), 1, league.ID, 999)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCreateFeeValidatesAmount(t *testing.T) {
	store := newMemoryStore()
	league := store.addLeague(leagues.League{Name: "North Soccer", Sport: "Soccer", Season: "2026"})
	svc := newService(store)

	cases := map[string]float64{
		"negative":      -1,
		"over cap":      1000000,
		"three decimal": 45.123,
	}
	for name, amount := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.CreateFee(context.Background(), 1, league.ID, leagues.FeeInput{LevelName: "Varsity", OfficialFee: amount})
			require.Error(t, err)
		})
	}

	fee, err := svc.CreateFee(context.Background(), 1, league.ID, leagues.FeeInput{LevelName: "Varsity", OfficialFee: 85.50})
	require.NoError(t, err)
	require.Equal(t, 85.50, fee.OfficialFee)
}

func TestCreateFeeRejectsDuplicateLevel(t *testing.T) {
	store := newMemoryStore()
	league := store.addLeague(leagues.League{Name: "North Soccer", Sport: "Soccer", Season: "2026"})
	svc := newService(store)

	_, err := svc.CreateFee(context.Background(), 1, league.ID, leagues.FeeInput{LevelName: "Varsity", OfficialFee: 85})
	require.NoError(t, err)

	_, err = svc.CreateFee(context.Background(), 1, league.ID, leagues.FeeInput{LevelName: "varsity", OfficialFee: 90})
	require.ErrorIs(t, err, leagues.ErrFeeExists)
}

func TestCreateBillingRequiresBillTo(t *testing.T) {
	store := newMemoryStore()
	league := store.addLeague(leagues.League{Name: "North Soccer", Sport: "Soccer", Season: "2026"})
	store.billTo[7] = true
	svc := newService(store)

	_, err := svc.CreateBilling(context.Background(), 1, league.ID, leagues.BillingInput{
		LevelName: "Varsity", BillAmount: 120, BillToID: 99,
	})
	require.ErrorIs(t, err, leagues.ErrBillToMissing)

	rule, err := svc.CreateBilling(context.Background(), 1, league.ID, leagues.BillingInput{
		LevelName: "Varsity", BillAmount: 120, BillToID: 7,
	})
	require.NoError(t, err)
	require.Equal(t, int64(7), rule.BillToID)

	_, err = svc.CreateBilling(context.Background(), 1, league.ID, leagues.BillingInput{
		LevelName: "Varsity", BillAmount: 90, BillToID: 7,
	})
	require.ErrorIs(t, err, leagues.ErrBillingExists)
}

func TestCreateBillingRejectsTinyAmount(t *testing.T) {
	store := newMemoryStore()
	league := store.addLeague(leagues.League{Name: "North Soccer", Sport: "Soccer", Season: "2026"})
	store.billTo[7] = true
	svc := newService(store)

	_, err := svc.CreateBilling(context.Background(), 1, league.ID, leagues.BillingInput{
		LevelName: "Varsity", BillAmount: 0.001, BillToID: 7,
	})
	require.ErrorIs(t, err, shared.ErrBillAmountTooSmall)
}

func TestUpdateBillingPartial(t *testing.T) {
	store := newMemoryStore()
	league := store.addLeague(leagues.League{Name: "North Soccer", Sport: "Soccer", Season: "2026"})
	store.billTo[7] = true
	svc := newService(store)

	rule, err := svc.CreateBilling(context.Background(), 1, league.ID, leagues.BillingInput{
		LevelName: "Varsity", BillAmount: 120, BillToID: 7,
	})
	require.NoError(t, err)

	amount := 150.0
	updated, err := svc.UpdateBilling(context.Background(), 1, league.ID, rule.ID, leagues.BillingUpdate{BillAmount: &amount})
	require.NoError(t, err)
	require.Equal(t, 150.0, updated.BillAmount)
	require.Equal(t, int64(7), updated.BillToID)
}

func TestDeleteSoft(t *testing.T) {
	store := newMemoryStore()
	league := store.addLeague(leagues.League{Name: "North Soccer", Sport: "Soccer", Season: "2026"})
	svc := newService(store)

	require.NoError(t, svc.Delete(context.Background(), 1, league.ID))
	_, err := svc.Get(context.Background(), league.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.ErrorIs(t, svc.Delete(context.Background(), 1, league.ID), shared.ErrNotFound)
}
