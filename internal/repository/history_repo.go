package repository

import (
	"context"

	"expensecontrol/internal/model"

	"gorm.io/gorm"
)

// HistoryRepository stores the append-only audit trail of requests.
type HistoryRepository interface {
	Append(ctx context.Context, entry *model.HistoryEntry) error
	ListByRequest(ctx context.Context, requestID uint) ([]model.HistoryEntry, error)
	ListByRequests(ctx context.Context, requestIDs []uint) ([]model.HistoryEntry, error)
	DeleteByRequest(ctx context.Context, requestID uint) error
}

type historyRepository struct {
	db *gorm.DB
}

func NewHistoryRepository(db *gorm.DB) HistoryRepository {
	return &historyRepository{db: db}
}

func (r *historyRepository) Append(ctx context.Context, entry *model.HistoryEntry) error {
	return GetDB(ctx, r.db).Create(entry).Error
}

func (r *historyRepository) ListByRequest(ctx context.Context, requestID uint) ([]model.HistoryEntry, error) {
	return r.ListByRequests(ctx, []uint{requestID})
}

func (r *historyRepository) ListByRequests(ctx context.Context, requestIDs []uint) ([]model.HistoryEntry, error) {
	var entries []model.HistoryEntry
	if len(requestIDs) == 0 {
		return entries, nil
	}
	if err := GetDB(ctx, r.db).Where("request_id IN ?", requestIDs).Order("created_at ASC, id ASC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *historyRepository) DeleteByRequest(ctx context.Context, requestID uint) error {
	return GetDB(ctx, r.db).Where("request_id = ?", requestID).Delete(&model.HistoryEntry{}).Error
}
