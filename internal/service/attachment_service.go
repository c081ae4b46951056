package service

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"expensecontrol/internal/model"
	"expensecontrol/internal/principal"
	"expensecontrol/internal/repository"
	"expensecontrol/internal/storage"
	"expensecontrol/pkg/apperror"

	"github.com/sirupsen/logrus"
)

const (
	MaxAttachmentSize        = 10 << 20 // 10 MiB
	MaxAttachmentsPerRequest = 5
)

var allowedContentTypes = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/jpg":       true,
	"image/png":       true,
}

// --- DTOs ---

// UploadInput describes one incoming file. Content is read once.
type UploadInput struct {
	RequestID   uint
	FileName    string
	ContentType string
	Size        int64
	Content     io.Reader
}

type AttachmentResponse struct {
	ID           uint      `json:"id"`
	RequestID    uint      `json:"request_id"`
	FolderRef    string    `json:"folder_ref"`
	OriginalName string    `json:"original_name"`
	StoredName   string    `json:"stored_name"`
	ContentType  string    `json:"content_type"`
	Size         int64     `json:"size"`
	UploadedBy   string    `json:"uploaded_by"`
	CreatedAt    time.Time `json:"created_at"`
}

// AttachmentDownload pairs attachment metadata with its byte stream.
// The caller closes Content.
type AttachmentDownload struct {
	Attachment AttachmentResponse
	Content    io.ReadCloser
}

// --- Interface ---

type AttachmentService interface {
	Upload(ctx context.Context, in UploadInput) (AttachmentResponse, error)
	List(ctx context.Context, requestID uint) ([]AttachmentResponse, error)
	Download(ctx context.Context, attachmentID uint) (AttachmentDownload, error)
	Delete(ctx context.Context, attachmentID uint) error
	DeleteAllForRequest(ctx context.Context, requestID uint) error
}

type attachmentService struct {
	attachmentRepo repository.AttachmentRepository
	requestRepo    repository.RequestRepository
	backend        storage.Backend
	principals     principal.Source
	log            logrus.FieldLogger
	now            func() time.Time
}

func NewAttachmentService(
	attachmentRepo repository.AttachmentRepository,
	requestRepo repository.RequestRepository,
	backend storage.Backend,
	principals principal.Source,
	log logrus.FieldLogger,
) AttachmentService {
	return &attachmentService{
		attachmentRepo: attachmentRepo,
		requestRepo:    requestRepo,
		backend:        backend,
		principals:     principals,
		log:            log,
		now:            time.Now,
	}
}

// --- Implementation ---

func (s *attachmentService) Upload(ctx context.Context, in UploadInput) (AttachmentResponse, error) {
	if in.Content == nil || in.Size <= 0 {
		return AttachmentResponse{}, apperror.BadRequest("file is empty")
	}
	if in.Size > MaxAttachmentSize {
		return AttachmentResponse{}, apperror.BadRequest("file exceeds 10MB")
	}
	contentType := normalizeContentType(in.ContentType)
	if !allowedContentTypes[contentType] {
		return AttachmentResponse{}, apperror.BadRequest("file type not allowed: use PDF, JPEG or PNG")
	}

	account, err := s.principals.CurrentAccount(ctx)
	if err != nil {
		return AttachmentResponse{}, err
	}
	request, err := s.loadRequest(ctx, in.RequestID)
	if err != nil {
		return AttachmentResponse{}, err
	}
	if err := principal.CanAccess(account, request.Branch); err != nil {
		return AttachmentResponse{}, err
	}
	if err := requirePendingForAttachments(request); err != nil {
		return AttachmentResponse{}, err
	}

	existing, err := s.attachmentRepo.ListByRequest(ctx, request.ID)
	if err != nil {
		return AttachmentResponse{}, apperror.Internal("failed to load attachments", err)
	}
	if len(existing) >= MaxAttachmentsPerRequest {
		return AttachmentResponse{}, apperror.BadRequest("attachment limit of %d reached", MaxAttachmentsPerRequest)
	}

	originalName := sanitizeOriginalName(in.FileName)
	storedName := buildStoredName(request, originalName, nextSequence(existing))

	folderRef, err := s.backend.EnsureFolder(ctx, request.ID)
	if err != nil {
		return AttachmentResponse{}, apperror.Internal("failed to prepare attachment folder", err)
	}
	body := io.LimitReader(in.Content, MaxAttachmentSize)
	fileRef, err := s.backend.Upload(ctx, folderRef, storedName, body, in.Size, contentType)
	if err != nil {
		return AttachmentResponse{}, apperror.Internal("failed to store attachment", err)
	}

	attachment := model.Attachment{
		RequestID:    request.ID,
		FolderRef:    folderRef,
		FileRef:      fileRef,
		OriginalName: originalName,
		StoredName:   storedName,
		ContentType:  contentType,
		Size:         in.Size,
		UploadedBy:   account.Username,
		CreatedAt:    s.now(),
	}
	if err := s.attachmentRepo.Create(ctx, &attachment); err != nil {
		if delErr := s.backend.Delete(ctx, fileRef); delErr != nil {
			s.log.WithError(delErr).WithField("file_ref", fileRef).Warn("failed to remove orphaned attachment blob")
		}
		return AttachmentResponse{}, apperror.Internal("failed to save attachment", err)
	}

	s.log.WithFields(logrus.Fields{
		"request_id":  request.ID,
		"stored_name": storedName,
		"size":        in.Size,
	}).Info("attachment uploaded")
	return toAttachmentResponse(attachment), nil
}

func (s *attachmentService) List(ctx context.Context, requestID uint) ([]AttachmentResponse, error) {
	account, err := s.principals.CurrentAccount(ctx)
	if err != nil {
		return nil, err
	}
	request, err := s.loadRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := principal.CanAccess(account, request.Branch); err != nil {
		return nil, err
	}

	attachments, err := s.attachmentRepo.ListByRequest(ctx, request.ID)
	if err != nil {
		return nil, apperror.Internal("failed to list attachments", err)
	}
	result := make([]AttachmentResponse, 0, len(attachments))
	for _, a := range attachments {
		result = append(result, toAttachmentResponse(a))
	}
	return result, nil
}

func (s *attachmentService) Download(ctx context.Context, attachmentID uint) (AttachmentDownload, error) {
	attachment, _, err := s.accessibleAttachment(ctx, attachmentID)
	if err != nil {
		return AttachmentDownload{}, err
	}
	content, err := s.backend.Download(ctx, attachment.FileRef)
	if err != nil {
		return AttachmentDownload{}, apperror.Internal("failed to read attachment", err)
	}
	return AttachmentDownload{Attachment: toAttachmentResponse(*attachment), Content: content}, nil
}

func (s *attachmentService) Delete(ctx context.Context, attachmentID uint) error {
	attachment, request, err := s.accessibleAttachment(ctx, attachmentID)
	if err != nil {
		return err
	}
	if err := requirePendingForAttachments(request); err != nil {
		return err
	}
	if err := s.backend.Delete(ctx, attachment.FileRef); err != nil {
		return apperror.Internal("failed to delete attachment", err)
	}
	if err := s.attachmentRepo.Delete(ctx, attachment.ID); err != nil {
		return apperror.Internal("failed to delete attachment", err)
	}
	return nil
}

// DeleteAllForRequest removes every blob then every metadata row of a request.
// It is only used while the request itself is deleted, so no status gate applies.
// Blob failures are logged and skipped.
func (s *attachmentService) DeleteAllForRequest(ctx context.Context, requestID uint) error {
	attachments, err := s.attachmentRepo.ListByRequest(ctx, requestID)
	if err != nil {
		return apperror.Internal("failed to list attachments", err)
	}
	for _, a := range attachments {
		if err := s.backend.Delete(ctx, a.FileRef); err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"request_id":    requestID,
				"attachment_id": a.ID,
			}).Warn("failed to delete attachment blob, continuing")
		}
	}
	if err := s.attachmentRepo.DeleteByRequest(ctx, requestID); err != nil {
		return apperror.Internal("failed to delete attachments", err)
	}
	return nil
}

func (s *attachmentService) accessibleAttachment(ctx context.Context, attachmentID uint) (*model.Attachment, *model.Request, error) {
	account, err := s.principals.CurrentAccount(ctx)
	if err != nil {
		return nil, nil, err
	}
	attachment, err := s.attachmentRepo.FindByID(ctx, attachmentID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, nil, apperror.NotFound("attachment not found")
		}
		return nil, nil, apperror.Internal("failed to load attachment", err)
	}
	request, err := s.loadRequest(ctx, attachment.RequestID)
	if err != nil {
		return nil, nil, err
	}
	if err := principal.CanAccess(account, request.Branch); err != nil {
		return nil, nil, err
	}
	return attachment, request, nil
}

func (s *attachmentService) loadRequest(ctx context.Context, id uint) (*model.Request, error) {
	request, err := s.requestRepo.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperror.NotFound("request not found")
		}
		return nil, apperror.Internal("failed to load request", err)
	}
	return request, nil
}

func requirePendingForAttachments(request *model.Request) error {
	if request.Status != model.StatusPending {
		return apperror.Conflict("request does not accept attachment changes in status %s", request.Status)
	}
	return nil
}

func normalizeContentType(value string) string {
	mediaType, _, _ := strings.Cut(value, ";")
	return strings.ToLower(strings.TrimSpace(mediaType))
}

// sanitizeOriginalName keeps only the last path segment; both slash styles count.
func sanitizeOriginalName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "file"
	}
	normalized := strings.ReplaceAll(name, `\`, "/")
	if i := strings.LastIndex(normalized, "/"); i >= 0 {
		normalized = normalized[i+1:]
	}
	if strings.TrimSpace(normalized) == "" {
		return "file"
	}
	return normalized
}

// buildStoredName renders request-<id>-<slug>-<seq>.<ext>.
func buildStoredName(request *model.Request, originalName string, sequence int64) string {
	ext := ""
	if dot := strings.LastIndex(originalName, "."); dot > -1 && dot < len(originalName)-1 {
		ext = strings.ToLower(originalName[dot+1:])
	}
	base := fmt.Sprintf("request-%d-%s-%03d", request.ID, slugify(request.Title), sequence)
	if ext == "" {
		return base
	}
	return base + "." + ext
}

// nextSequence is one past the highest sequence among existing stored names,
// so a number freed by a delete is never handed out again.
func nextSequence(existing []model.Attachment) int64 {
	next := int64(len(existing)) + 1
	for _, a := range existing {
		if seq := storedSequence(a.StoredName) + 1; seq > next {
			next = seq
		}
	}
	return next
}

// storedSequence reads the trailing -NNN of a stored name, or 0.
func storedSequence(storedName string) int64 {
	base := storedName
	if dot := strings.LastIndex(base, "."); dot > -1 {
		base = base[:dot]
	}
	dash := strings.LastIndex(base, "-")
	if dash < 0 {
		return 0
	}
	seq, err := strconv.ParseInt(base[dash+1:], 10, 64)
	if err != nil || seq < 0 {
		return 0
	}
	return seq
}

func toAttachmentResponse(a model.Attachment) AttachmentResponse {
	return AttachmentResponse{
		ID:           a.ID,
		RequestID:    a.RequestID,
		FolderRef:    a.FolderRef,
		OriginalName: a.OriginalName,
		StoredName:   a.StoredName,
		ContentType:  a.ContentType,
		Size:         a.Size,
		UploadedBy:   a.UploadedBy,
		CreatedAt:    a.CreatedAt,
	}
}
