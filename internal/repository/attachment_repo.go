package repository

import (
	"context"

	"expensecontrol/internal/model"

	"gorm.io/gorm"
)

type AttachmentRepository interface {
	Create(ctx context.Context, attachment *model.Attachment) error
	FindByID(ctx context.Context, id uint) (*model.Attachment, error)
	ListByRequest(ctx context.Context, requestID uint) ([]model.Attachment, error)
	Delete(ctx context.Context, id uint) error
	DeleteByRequest(ctx context.Context, requestID uint) error
}

type attachmentRepository struct {
	db *gorm.DB
}

func NewAttachmentRepository(db *gorm.DB) AttachmentRepository {
	return &attachmentRepository{db: db}
}

func (r *attachmentRepository) Create(ctx context.Context, attachment *model.Attachment) error {
	return GetDB(ctx, r.db).Create(attachment).Error
}

func (r *attachmentRepository) FindByID(ctx context.Context, id uint) (*model.Attachment, error) {
	var attachment model.Attachment
	if err := GetDB(ctx, r.db).First(&attachment, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &attachment, nil
}

func (r *attachmentRepository) ListByRequest(ctx context.Context, requestID uint) ([]model.Attachment, error) {
	var attachments []model.Attachment
	if err := GetDB(ctx, r.db).Where("request_id = ?", requestID).Order("created_at ASC, id ASC").Find(&attachments).Error; err != nil {
		return nil, err
	}
	return attachments, nil
}

func (r *attachmentRepository) Delete(ctx context.Context, id uint) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Attachment{}).Error
}

func (r *attachmentRepository) DeleteByRequest(ctx context.Context, requestID uint) error {
	return GetDB(ctx, r.db).Where("request_id = ?", requestID).Delete(&model.Attachment{}).Error
}
