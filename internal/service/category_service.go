package service

import (
	"context"
	"strings"
	"time"

	"expensecontrol/internal/model"
	"expensecontrol/internal/principal"
	"expensecontrol/internal/repository"
	"expensecontrol/pkg/apperror"
)

// --- DTOs ---

type CreateCategoryInput struct {
	Name        string `json:"name" validate:"notblank,max=120"`
	Description string `json:"description" validate:"max=255"`
}

type CategoryResponse struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

// --- Interface ---

type CategoryService interface {
	Create(ctx context.Context, in CreateCategoryInput) (CategoryResponse, error)
	ListAll(ctx context.Context) ([]CategoryResponse, error)
	ListActive(ctx context.Context) ([]CategoryResponse, error)
	Deactivate(ctx context.Context, id uint) (CategoryResponse, error)
}

type categoryService struct {
	categoryRepo repository.CategoryRepository
	principals   principal.Source
}

func NewCategoryService(categoryRepo repository.CategoryRepository, principals principal.Source) CategoryService {
	return &categoryService{categoryRepo: categoryRepo, principals: principals}
}

// --- Implementation ---

func (s *categoryService) Create(ctx context.Context, in CreateCategoryInput) (CategoryResponse, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return CategoryResponse{}, err
	}
	if err := validateInput(in); err != nil {
		return CategoryResponse{}, err
	}

	name := strings.TrimSpace(in.Name)
	exists, err := s.categoryRepo.ExistsByNameIgnoreCase(ctx, name)
	if err != nil {
		return CategoryResponse{}, apperror.Internal("failed to check category name", err)
	}
	if exists {
		return CategoryResponse{}, apperror.Conflict("category %q already exists", name)
	}

	category := model.Category{Name: name, Description: strings.TrimSpace(in.Description), Active: true}
	if err := s.categoryRepo.Create(ctx, &category); err != nil {
		return CategoryResponse{}, apperror.Internal("failed to create category", err)
	}
	return toCategoryResponse(category), nil
}

func (s *categoryService) ListAll(ctx context.Context) ([]CategoryResponse, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	return s.list(ctx, false)
}

// ListActive is open to any authenticated account; it feeds request forms.
func (s *categoryService) ListActive(ctx context.Context) ([]CategoryResponse, error) {
	if _, err := s.principals.CurrentAccount(ctx); err != nil {
		return nil, err
	}
	return s.list(ctx, true)
}

func (s *categoryService) list(ctx context.Context, activeOnly bool) ([]CategoryResponse, error) {
	categories, err := s.categoryRepo.List(ctx, activeOnly)
	if err != nil {
		return nil, apperror.Internal("failed to list categories", err)
	}
	result := make([]CategoryResponse, 0, len(categories))
	for _, c := range categories {
		result = append(result, toCategoryResponse(c))
	}
	return result, nil
}

func (s *categoryService) Deactivate(ctx context.Context, id uint) (CategoryResponse, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return CategoryResponse{}, err
	}
	category, err := s.categoryRepo.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return CategoryResponse{}, apperror.NotFound("category not found")
		}
		return CategoryResponse{}, apperror.Internal("failed to load category", err)
	}
	if !category.Active {
		return toCategoryResponse(*category), nil
	}
	category.Active = false
	if err := s.categoryRepo.Update(ctx, category); err != nil {
		return CategoryResponse{}, apperror.Internal("failed to deactivate category", err)
	}
	return toCategoryResponse(*category), nil
}

func (s *categoryService) requireAdmin(ctx context.Context) error {
	account, err := s.principals.CurrentAccount(ctx)
	if err != nil {
		return err
	}
	return principal.RequireAdmin(account)
}

func toCategoryResponse(c model.Category) CategoryResponse {
	return CategoryResponse{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		Active:      c.Active,
		CreatedAt:   c.CreatedAt,
	}
}
