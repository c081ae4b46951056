package repository

import (
	"context"

	"expensecontrol/internal/model"

	"gorm.io/gorm"
)

type AccountRepository interface {
	Create(ctx context.Context, account *model.Account) error
	Update(ctx context.Context, account *model.Account) error
	FindByUsername(ctx context.Context, username string) (*model.Account, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	List(ctx context.Context) ([]model.Account, error)
}

type accountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) Create(ctx context.Context, account *model.Account) error {
	return GetDB(ctx, r.db).Create(account).Error
}

func (r *accountRepository) Update(ctx context.Context, account *model.Account) error {
	return GetDB(ctx, r.db).Save(account).Error
}

func (r *accountRepository) FindByUsername(ctx context.Context, username string) (*model.Account, error) {
	var account model.Account
	if err := GetDB(ctx, r.db).First(&account, "username = ?", username).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.Account{}).Where("LOWER(username) = LOWER(?)", username).Count(&count).Error
	return count > 0, err
}

func (r *accountRepository) List(ctx context.Context) ([]model.Account, error) {
	var accounts []model.Account
	if err := GetDB(ctx, r.db).Order("role ASC, username ASC").Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}
