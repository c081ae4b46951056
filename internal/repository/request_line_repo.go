package repository

import (
	"context"

	"expensecontrol/internal/model"

	"gorm.io/gorm"
)

type RequestLineRepository interface {
	CreateBatch(ctx context.Context, lines []model.RequestLine) error
	ListByRequest(ctx context.Context, requestID uint) ([]model.RequestLine, error)
	ListByRequests(ctx context.Context, requestIDs []uint) ([]model.RequestLine, error)
	DeleteByRequest(ctx context.Context, requestID uint) error
}

type requestLineRepository struct {
	db *gorm.DB
}

func NewRequestLineRepository(db *gorm.DB) RequestLineRepository {
	return &requestLineRepository{db: db}
}

func (r *requestLineRepository) CreateBatch(ctx context.Context, lines []model.RequestLine) error {
	if len(lines) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).Create(&lines).Error
}

func (r *requestLineRepository) ListByRequest(ctx context.Context, requestID uint) ([]model.RequestLine, error) {
	return r.ListByRequests(ctx, []uint{requestID})
}

func (r *requestLineRepository) ListByRequests(ctx context.Context, requestIDs []uint) ([]model.RequestLine, error) {
	var lines []model.RequestLine
	if len(requestIDs) == 0 {
		return lines, nil
	}
	if err := GetDB(ctx, r.db).Where("request_id IN ?", requestIDs).Order("id ASC").Find(&lines).Error; err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *requestLineRepository) DeleteByRequest(ctx context.Context, requestID uint) error {
	return GetDB(ctx, r.db).Where("request_id = ?", requestID).Delete(&model.RequestLine{}).Error
}
