package repository

import (
	"context"

	"expensecontrol/internal/model"

	"gorm.io/gorm"
)

type CategoryRepository interface {
	Create(ctx context.Context, category *model.Category) error
	Update(ctx context.Context, category *model.Category) error
	FindByID(ctx context.Context, id uint) (*model.Category, error)
	ExistsByNameIgnoreCase(ctx context.Context, name string) (bool, error)
	List(ctx context.Context, activeOnly bool) ([]model.Category, error)
}

type categoryRepository struct {
	db *gorm.DB
}

func NewCategoryRepository(db *gorm.DB) CategoryRepository {
	return &categoryRepository{db: db}
}

func (r *categoryRepository) Create(ctx context.Context, category *model.Category) error {
	return GetDB(ctx, r.db).Create(category).Error
}

func (r *categoryRepository) Update(ctx context.Context, category *model.Category) error {
	return GetDB(ctx, r.db).Save(category).Error
}

func (r *categoryRepository) FindByID(ctx context.Context, id uint) (*model.Category, error) {
	var category model.Category
	if err := GetDB(ctx, r.db).First(&category, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *categoryRepository) ExistsByNameIgnoreCase(ctx context.Context, name string) (bool, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.Category{}).Where("LOWER(name) = LOWER(?)", name).Count(&count).Error
	return count > 0, err
}

func (r *categoryRepository) List(ctx context.Context, activeOnly bool) ([]model.Category, error) {
	var categories []model.Category
	query := GetDB(ctx, r.db).Model(&model.Category{})
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	if err := query.Order("name ASC").Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}
