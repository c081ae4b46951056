package service

import (
	"testing"

	"expensecontrol/internal/model"
	"expensecontrol/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMe(t *testing.T) {
	f := newFixture(t)

	me, err := f.accounts.Me(as("north"))
	require.NoError(t, err)
	assert.Equal(t, MeResponse{Username: "north", Name: "North", Role: model.RoleBranch, Branch: "North"}, me)

	_, err = f.accounts.Me(as("ghost"))
	assert.True(t, apperror.Is(err, apperror.KindUnauthenticated))
}

func TestAccountCreate(t *testing.T) {
	f := newFixture(t)

	created, err := f.accounts.Create(as("admin"), CreateAccountInput{Username: "east", Name: "East", Role: "branch", Branch: " East "})
	require.NoError(t, err)
	assert.Equal(t, model.RoleBranch, created.Role)
	assert.Equal(t, "East", created.Branch)
	assert.True(t, created.Active)

	_, err = f.accounts.Create(as("admin"), CreateAccountInput{Username: "EAST", Name: "Dup", Role: "ADMIN"})
	assert.True(t, apperror.Is(err, apperror.KindConflict))

	_, err = f.accounts.Create(as("admin"), CreateAccountInput{Username: "west", Name: "West", Role: "BRANCH"})
	assert.True(t, apperror.Is(err, apperror.KindBadRequest), "branch is required")

	_, err = f.accounts.Create(as("admin"), CreateAccountInput{Username: "boss", Name: "Boss", Role: "OWNER"})
	assert.True(t, apperror.Is(err, apperror.KindBadRequest))

	_, err = f.accounts.Create(as("north"), CreateAccountInput{Username: "x", Name: "X", Role: "ADMIN"})
	assert.True(t, apperror.Is(err, apperror.KindForbidden))
}

func TestAccountListAndSetActive(t *testing.T) {
	f := newFixture(t)

	list, err := f.accounts.List(as("admin"))
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "admin", list[0].Username)
	assert.Equal(t, "north", list[1].Username)

	_, err = f.accounts.SetActive(as("admin"), "admin", false)
	assert.True(t, apperror.Is(err, apperror.KindBadRequest))

	off, err := f.accounts.SetActive(as("admin"), "south", false)
	require.NoError(t, err)
	assert.False(t, off.Active)

	_, err = f.requests.ListForBranch(as("south"))
	assert.True(t, apperror.Is(err, apperror.KindUnauthenticated))

	on, err := f.accounts.SetActive(as("admin"), "south", true)
	require.NoError(t, err)
	assert.True(t, on.Active)

	_, err = f.accounts.SetActive(as("admin"), "nobody", true)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}
