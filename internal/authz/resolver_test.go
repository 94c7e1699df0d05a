package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/refdesk/refdesk/internal/shared"
)

type stubAccounts struct {
	accounts map[int64]Account
	err      error
}

func (s stubAccounts) AccountByID(ctx context.Context, id int64) (Account, error) {
	if s.err != nil {
		return Account{}, s.err
	}
	acct, ok := s.accounts[id]
	if !ok {
		return Account{}, shared.ErrNotFound
	}
	return acct, nil
}

type stubMemberships struct {
	leagues map[int64][]int64
	err     error
	called  bool
}

func (s *stubMemberships) ActiveLeagueIDs(ctx context.Context, userID int64) ([]int64, error) {
	s.called = true
	if s.err != nil {
		return nil, s.err
	}
	return s.leagues[userID], nil
}

func sessionFor(userID string) *shared.Session {
	sess := &shared.Session{}
	sess.SetUser(userID)
	return sess
}

func requireAuthCode(t *testing.T, err error, code string) {
	t.Helper()
	var authErr *AuthenticationError
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, code, authErr.Code)
}

func TestResolveUnauthenticated(t *testing.T) {
	resolver := NewResolver(stubAccounts{}, &stubMemberships{})

	_, err := resolver.Resolve(context.Background(), nil)
	requireAuthCode(t, err, CodeUnauthenticated)

	_, err = resolver.Resolve(context.Background(), &shared.Session{})
	requireAuthCode(t, err, CodeUnauthenticated)

	_, err = resolver.Resolve(context.Background(), sessionFor("not-a-number"))
	requireAuthCode(t, err, CodeUnauthenticated)

	_, err = resolver.Resolve(context.Background(), sessionFor("-4"))
	requireAuthCode(t, err, CodeUnauthenticated)
}

func TestResolveAccountNotFound(t *testing.T) {
	resolver := NewResolver(stubAccounts{accounts: map[int64]Account{}}, &stubMemberships{})

	_, err := resolver.Resolve(context.Background(), sessionFor("7"))
	requireAuthCode(t, err, CodeAccountNotFound)
}

func TestResolveAccountDisabled(t *testing.T) {
	accounts := stubAccounts{accounts: map[int64]Account{
		7: {ID: 7, Role: RoleOfficial, IsActive: false},
	}}
	resolver := NewResolver(accounts, &stubMemberships{})

	_, err := resolver.Resolve(context.Background(), sessionFor("7"))
	requireAuthCode(t, err, CodeAccountDisabled)
}

func TestResolveAdminLoadsMemberships(t *testing.T) {
	accounts := stubAccounts{accounts: map[int64]Account{
		2: {ID: 2, Role: RoleAdmin, IsActive: true},
	}}
	memberships := &stubMemberships{leagues: map[int64][]int64{2: {3, 7}}}
	resolver := NewResolver(accounts, memberships)

	pr, err := resolver.Resolve(context.Background(), sessionFor("2"))
	require.NoError(t, err)
	require.Equal(t, int64(2), pr.ID)
	require.Equal(t, RoleAdmin, pr.Role)
	require.Equal(t, leagues(3, 7), pr.LeagueIDs)
	require.True(t, memberships.called)
}

func TestResolveOfficialSkipsMemberships(t *testing.T) {
	accounts := stubAccounts{accounts: map[int64]Account{
		42: {ID: 42, Role: RoleOfficial, IsActive: true},
		1:  {ID: 1, Role: RoleSuperadmin, IsActive: true},
	}}
	memberships := &stubMemberships{err: errors.New("must not be called")}
	resolver := NewResolver(accounts, memberships)

	pr, err := resolver.Resolve(context.Background(), sessionFor("42"))
	require.NoError(t, err)
	require.Equal(t, RoleOfficial, pr.Role)
	require.Nil(t, pr.LeagueIDs)
	require.False(t, memberships.called)

	pr, err = resolver.Resolve(context.Background(), sessionFor("1"))
	require.NoError(t, err)
	require.Equal(t, RoleSuperadmin, pr.Role)
	require.Nil(t, pr.LeagueIDs)
	require.False(t, memberships.called)
}

func TestResolveInfrastructureError(t *testing.T) {
	errConn := errors.New("connection refused")
	resolver := NewResolver(stubAccounts{err: errConn}, &stubMemberships{})

	_, err := resolver.Resolve(context.Background(), sessionFor("7"))
	require.ErrorIs(t, err, errConn)

	var authErr *AuthenticationError
	require.False(t, errors.As(err, &authErr), "storage failures are not authentication failures")
}
