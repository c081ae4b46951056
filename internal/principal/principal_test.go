package principal

import (
	"context"
	"errors"
	"testing"

	"expensecontrol/internal/model"
	"expensecontrol/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type stubAccounts struct {
	byUsername map[string]*model.Account
	err        error
	calls      int
}

func (s *stubAccounts) Create(context.Context, *model.Account) error { return nil }
func (s *stubAccounts) Update(context.Context, *model.Account) error { return nil }
func (s *stubAccounts) ExistsByUsername(context.Context, string) (bool, error) {
	return false, nil
}
func (s *stubAccounts) List(context.Context) ([]model.Account, error) { return nil, nil }

func (s *stubAccounts) FindByUsername(_ context.Context, username string) (*model.Account, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if a, ok := s.byUsername[username]; ok {
		return a, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func TestCurrentAccount(t *testing.T) {
	accounts := &stubAccounts{byUsername: map[string]*model.Account{
		"north":  {Username: "north", Role: model.RoleBranch, Branch: "north", Active: true},
		"frozen": {Username: "frozen", Role: model.RoleBranch, Branch: "south", Active: false},
	}}
	resolver := NewResolver(accounts)

	_, err := resolver.CurrentAccount(context.Background())
	assert.Equal(t, apperror.KindUnauthenticated, apperror.KindOf(err))

	_, err = resolver.CurrentAccount(WithUsername(context.Background(), "ghost"))
	assert.Equal(t, apperror.KindUnauthenticated, apperror.KindOf(err))

	_, err = resolver.CurrentAccount(WithUsername(context.Background(), "frozen"))
	assert.Equal(t, apperror.KindUnauthenticated, apperror.KindOf(err))

	account, err := resolver.CurrentAccount(WithUsername(context.Background(), "north"))
	require.NoError(t, err)
	assert.Equal(t, "north", account.Branch)
}

func TestCurrentAccountPrefersResolvedAccount(t *testing.T) {
	accounts := &stubAccounts{}
	resolver := NewResolver(accounts)
	admin := &model.Account{Username: "root", Role: model.RoleAdmin, Active: true}

	ctx := WithAccount(context.Background(), admin)
	account, err := resolver.CurrentAccount(ctx)
	require.NoError(t, err)
	assert.Same(t, admin, account)
	assert.Zero(t, accounts.calls)

	username, ok := Username(ctx)
	assert.True(t, ok)
	assert.Equal(t, "root", username)
}

func TestCurrentAccountStoreFailureIsInternal(t *testing.T) {
	resolver := NewResolver(&stubAccounts{err: errors.New("connection reset")})
	_, err := resolver.CurrentAccount(WithUsername(context.Background(), "north"))
	assert.Equal(t, apperror.KindInternal, apperror.KindOf(err))
}

func TestGuards(t *testing.T) {
	admin := &model.Account{Role: model.RoleAdmin}
	north := &model.Account{Role: model.RoleBranch, Branch: "north"}
	blank := &model.Account{Role: model.RoleBranch, Branch: "  "}

	assert.NoError(t, RequireAdmin(admin))
	assert.True(t, apperror.Is(RequireAdmin(north), apperror.KindForbidden))

	assert.NoError(t, RequireBranch(north))
	assert.True(t, apperror.Is(RequireBranch(admin), apperror.KindForbidden))
	assert.True(t, apperror.Is(RequireBranch(blank), apperror.KindBadRequest))

	assert.NoError(t, RequireOwner(north, "north"))
	assert.True(t, apperror.Is(RequireOwner(north, "south"), apperror.KindForbidden))

	assert.NoError(t, CanAccess(admin, "south"))
	assert.NoError(t, CanAccess(north, "north"))
	assert.True(t, apperror.Is(CanAccess(north, "south"), apperror.KindForbidden))
}
