package service

import (
	"context"
	"strings"

	"expensecontrol/internal/model"
	"expensecontrol/internal/principal"
	"expensecontrol/internal/repository"
	"expensecontrol/pkg/apperror"
)

// --- DTOs ---

type CreateAccountInput struct {
	Username string `json:"username" validate:"notblank,max=120"`
	Name     string `json:"name" validate:"notblank,max=120"`
	Role     string `json:"role" validate:"notblank"`
	Branch   string `json:"branch" validate:"max=120"`
}

type SetActiveInput struct {
	Active bool `json:"active"`
}

type AccountResponse struct {
	Username string     `json:"username"`
	Name     string     `json:"name"`
	Role     model.Role `json:"role"`
	Branch   string     `json:"branch"`
	Active   bool       `json:"active"`
}

// MeResponse describes the caller.
type MeResponse struct {
	Username string     `json:"username"`
	Name     string     `json:"name"`
	Role     model.Role `json:"role"`
	Branch   string     `json:"branch"`
}

// --- Interface ---

type AccountService interface {
	Me(ctx context.Context) (MeResponse, error)
	Create(ctx context.Context, in CreateAccountInput) (AccountResponse, error)
	List(ctx context.Context) ([]AccountResponse, error)
	SetActive(ctx context.Context, username string, active bool) (AccountResponse, error)
}

type accountService struct {
	accountRepo repository.AccountRepository
	principals  principal.Source
}

func NewAccountService(accountRepo repository.AccountRepository, principals principal.Source) AccountService {
	return &accountService{accountRepo: accountRepo, principals: principals}
}

// --- Implementation ---

func (s *accountService) Me(ctx context.Context) (MeResponse, error) {
	account, err := s.principals.CurrentAccount(ctx)
	if err != nil {
		return MeResponse{}, err
	}
	return MeResponse{
		Username: account.Username,
		Name:     account.Name,
		Role:     account.Role,
		Branch:   account.Branch,
	}, nil
}

func (s *accountService) Create(ctx context.Context, in CreateAccountInput) (AccountResponse, error) {
	if _, err := s.admin(ctx); err != nil {
		return AccountResponse{}, err
	}
	if err := validateInput(in); err != nil {
		return AccountResponse{}, err
	}

	role := model.Role(strings.ToUpper(strings.TrimSpace(in.Role)))
	if !role.Valid() {
		return AccountResponse{}, apperror.BadRequest("invalid role: use ADMIN or BRANCH")
	}
	branch := strings.TrimSpace(in.Branch)
	if role == model.RoleBranch && branch == "" {
		return AccountResponse{}, apperror.BadRequest("BRANCH accounts require a branch")
	}

	username := strings.TrimSpace(in.Username)
	exists, err := s.accountRepo.ExistsByUsername(ctx, username)
	if err != nil {
		return AccountResponse{}, apperror.Internal("failed to check username", err)
	}
	if exists {
		return AccountResponse{}, apperror.Conflict("username %q already exists", username)
	}

	account := model.Account{
		Username: username,
		Name:     strings.TrimSpace(in.Name),
		Role:     role,
		Branch:   branch,
		Active:   true,
	}
	if err := s.accountRepo.Create(ctx, &account); err != nil {
		return AccountResponse{}, apperror.Internal("failed to create account", err)
	}
	return toAccountResponse(account), nil
}

func (s *accountService) List(ctx context.Context) ([]AccountResponse, error) {
	if _, err := s.admin(ctx); err != nil {
		return nil, err
	}
	accounts, err := s.accountRepo.List(ctx)
	if err != nil {
		return nil, apperror.Internal("failed to list accounts", err)
	}
	result := make([]AccountResponse, 0, len(accounts))
	for _, a := range accounts {
		result = append(result, toAccountResponse(a))
	}
	return result, nil
}

func (s *accountService) SetActive(ctx context.Context, username string, active bool) (AccountResponse, error) {
	caller, err := s.admin(ctx)
	if err != nil {
		return AccountResponse{}, err
	}
	account, err := s.accountRepo.FindByUsername(ctx, username)
	if err != nil {
		if repository.IsNotFound(err) {
			return AccountResponse{}, apperror.NotFound("account not found")
		}
		return AccountResponse{}, apperror.Internal("failed to load account", err)
	}
	if !active && account.Username == caller.Username {
		return AccountResponse{}, apperror.BadRequest("an admin cannot deactivate their own account")
	}
	if account.Active == active {
		return toAccountResponse(*account), nil
	}
	account.Active = active
	if err := s.accountRepo.Update(ctx, account); err != nil {
		return AccountResponse{}, apperror.Internal("failed to update account", err)
	}
	return toAccountResponse(*account), nil
}

func (s *accountService) admin(ctx context.Context) (*model.Account, error) {
	account, err := s.principals.CurrentAccount(ctx)
	if err != nil {
		return nil, err
	}
	if err := principal.RequireAdmin(account); err != nil {
		return nil, err
	}
	return account, nil
}

func toAccountResponse(a model.Account) AccountResponse {
	return AccountResponse{
		Username: a.Username,
		Name:     a.Name,
		Role:     a.Role,
		Branch:   a.Branch,
		Active:   a.Active,
	}
}
