// Package principal carries the authenticated caller through a request
// context and resolves it to an active account.
package principal

import (
	"context"
	"strings"

	"expensecontrol/internal/model"
	"expensecontrol/internal/repository"
	"expensecontrol/pkg/apperror"
)

type usernameKey struct{}
type accountKey struct{}

// WithUsername stores the authenticated username in ctx.
func WithUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, usernameKey{}, username)
}

// Username returns the authenticated username carried by ctx.
func Username(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(usernameKey{}).(string)
	return username, ok && strings.TrimSpace(username) != ""
}

// WithAccount stores an already resolved account in ctx.
func WithAccount(ctx context.Context, account *model.Account) context.Context {
	ctx = WithUsername(ctx, account.Username)
	return context.WithValue(ctx, accountKey{}, account)
}

// Source yields the account behind the current request.
type Source interface {
	CurrentAccount(ctx context.Context) (*model.Account, error)
}

type Resolver struct {
	accounts repository.AccountRepository
}

func NewResolver(accounts repository.AccountRepository) *Resolver {
	return &Resolver{accounts: accounts}
}

// CurrentAccount loads the active account for the username in ctx.
func (r *Resolver) CurrentAccount(ctx context.Context) (*model.Account, error) {
	if account, ok := ctx.Value(accountKey{}).(*model.Account); ok && account != nil {
		return account, nil
	}
	username, ok := Username(ctx)
	if !ok {
		return nil, apperror.Unauthenticated("user not authenticated")
	}
	account, err := r.accounts.FindByUsername(ctx, username)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperror.Unauthenticated("authenticated account not found")
		}
		return nil, apperror.Internal("failed to load account", err)
	}
	if !account.Active {
		return nil, apperror.Unauthenticated("account is inactive")
	}
	return account, nil
}

// RequireAdmin fails Forbidden unless account is an ADMIN.
func RequireAdmin(account *model.Account) error {
	if !account.IsAdmin() {
		return apperror.Forbidden("only ADMIN can access this resource")
	}
	return nil
}

// RequireBranch fails Forbidden unless account is a BRANCH, and BadRequest
// when that BRANCH has no branch set.
func RequireBranch(account *model.Account) error {
	if !account.IsBranch() {
		return apperror.Forbidden("only BRANCH can access this resource")
	}
	if !account.HasBranch() {
		return apperror.BadRequest("BRANCH account has no branch set")
	}
	return nil
}

// RequireOwner fails Forbidden unless account is the BRANCH owning branch.
func RequireOwner(account *model.Account, branch string) error {
	if err := RequireBranch(account); err != nil {
		return err
	}
	if account.Branch != branch {
		return apperror.Forbidden("request does not belong to this branch")
	}
	return nil
}

// CanAccess fails Forbidden unless account is an ADMIN or the owning BRANCH.
func CanAccess(account *model.Account, branch string) error {
	if account.IsAdmin() || account.OwnsBranch(branch) {
		return nil
	}
	return apperror.Forbidden("access denied to this request")
}
