package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"expensecontrol/internal/model"
	"expensecontrol/internal/principal"
	"expensecontrol/internal/repository"
	"expensecontrol/pkg/apperror"
	"expensecontrol/pkg/pagination"

	"github.com/shopspring/decimal"
)

// --- DTOs ---

type RequestLineInput struct {
	Description string          `json:"description" validate:"notblank,max=160"`
	Value       decimal.Decimal `json:"value"`
	Note        string          `json:"note" validate:"max=300"`
}

type CreateRequestInput struct {
	CategoryID     uint               `json:"category_id" validate:"required"`
	Title          string             `json:"title" validate:"notblank,max=120"`
	RequesterName  string             `json:"requester_name" validate:"notblank,max=120"`
	Description    string             `json:"description" validate:"notblank,max=2000"`
	UsageReason    string             `json:"usage_reason" validate:"notblank,max=255"`
	EstimatedValue decimal.Decimal    `json:"estimated_value"`
	Supplier       string             `json:"supplier" validate:"max=120"`
	PaymentMethod  string             `json:"payment_method" validate:"max=50"`
	Observations   string             `json:"observations" validate:"max=1000"`
	Lines          []RequestLineInput `json:"lines" validate:"dive"`
}

type ResendRequestInput struct {
	Data    CreateRequestInput `json:"data"`
	Comment string             `json:"comment" validate:"max=500"`
}

type InfoRequestInput struct {
	Comment string `json:"comment" validate:"notblank,max=500"`
}

type DecisionInput struct {
	Decision      string              `json:"decision" validate:"notblank"`
	ApprovedValue decimal.NullDecimal `json:"approved_value"`
	Comment       string              `json:"comment" validate:"max=500"`
}

// ListQuery carries the raw paging, sort and search parameters of a listing.
type ListQuery struct {
	Page  int
	Size  int
	Sort  string
	Query string
}

type RequestLineResponse struct {
	ID          uint   `json:"id"`
	Description string `json:"description"`
	Value       string `json:"value"`
	Note        string `json:"note"`
}

type HistoryResponse struct {
	ID        uint      `json:"id"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

type RequestResponse struct {
	ID              uint                  `json:"id"`
	Branch          string                `json:"branch"`
	CategoryID      uint                  `json:"category_id"`
	CategoryName    string                `json:"category_name"`
	Title           string                `json:"title"`
	RequesterName   string                `json:"requester_name"`
	Description     string                `json:"description"`
	UsageReason     string                `json:"usage_reason"`
	EstimatedValue  string                `json:"estimated_value"`
	ApprovedValue   *string               `json:"approved_value"`
	Supplier        string                `json:"supplier"`
	PaymentMethod   string                `json:"payment_method"`
	Observations    string                `json:"observations"`
	Status          model.RequestStatus   `json:"status"`
	SubmittedAt     time.Time             `json:"submitted_at"`
	DecidedAt       *time.Time            `json:"decided_at"`
	DecisionComment string                `json:"decision_comment"`
	Lines           []RequestLineResponse `json:"lines"`
	History         []HistoryResponse     `json:"history"`
}

// --- Interface ---

type RequestService interface {
	Create(ctx context.Context, in CreateRequestInput) (RequestResponse, error)
	Resend(ctx context.Context, id uint, in ResendRequestInput) (RequestResponse, error)
	ListForBranch(ctx context.Context) ([]RequestResponse, error)
	SearchForBranch(ctx context.Context, q ListQuery) (pagination.Page[RequestResponse], error)
	GetForBranch(ctx context.Context, id uint) (RequestResponse, error)
	ListForAdmin(ctx context.Context, status string) ([]RequestResponse, error)
	SearchForAdmin(ctx context.Context, status string, q ListQuery) (pagination.Page[RequestResponse], error)
	GetForAdmin(ctx context.Context, id uint) (RequestResponse, error)
	RequestMoreInfo(ctx context.Context, id uint, in InfoRequestInput) (RequestResponse, error)
	Decide(ctx context.Context, id uint, in DecisionInput) (RequestResponse, error)
	Delete(ctx context.Context, id uint) error
	Statistics(ctx context.Context) (model.StatisticsResponse, error)
}

// attachmentCleaner removes every attachment of a request being deleted.
type attachmentCleaner interface {
	DeleteAllForRequest(ctx context.Context, requestID uint) error
}

type requestService struct {
	requestRepo  repository.RequestRepository
	lineRepo     repository.RequestLineRepository
	historyRepo  repository.HistoryRepository
	categoryRepo repository.CategoryRepository
	txManager    repository.TransactionManager
	principals   principal.Source
	attachments  attachmentCleaner
	notifier     Notifier
	now          func() time.Time
}

func NewRequestService(
	requestRepo repository.RequestRepository,
	lineRepo repository.RequestLineRepository,
	historyRepo repository.HistoryRepository,
	categoryRepo repository.CategoryRepository,
	txManager repository.TransactionManager,
	principals principal.Source,
	attachments attachmentCleaner,
	notifier Notifier,
) RequestService {
	return &requestService{
		requestRepo:  requestRepo,
		lineRepo:     lineRepo,
		historyRepo:  historyRepo,
		categoryRepo: categoryRepo,
		txManager:    txManager,
		principals:   principals,
		attachments:  attachments,
		notifier:     notifierOrNop(notifier),
		now:          time.Now,
	}
}

// --- Implementation ---

func (s *requestService) Create(ctx context.Context, in CreateRequestInput) (RequestResponse, error) {
	account, err := s.branchAccount(ctx)
	if err != nil {
		return RequestResponse{}, err
	}
	if err := validateRequestInput(in); err != nil {
		return RequestResponse{}, err
	}

	var saved model.Request
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		category, err := s.activeCategory(txCtx, in.CategoryID)
		if err != nil {
			return err
		}

		request := model.Request{
			Branch:    account.Branch,
			Status:    model.StatusPending,
			CreatedAt: s.now(),
		}
		applyRequestInput(&request, in, category)
		request.SubmittedAt = request.CreatedAt

		if err := s.requestRepo.Create(txCtx, &request); err != nil {
			return apperror.Internal("failed to create request", err)
		}
		if err := s.saveLines(txCtx, request.ID, in.Lines); err != nil {
			return err
		}
		if err := s.appendHistory(txCtx, request.ID, account.Role, model.ActionCreated, ""); err != nil {
			return err
		}
		saved = request
		return nil
	})
	if err != nil {
		return RequestResponse{}, err
	}

	s.publish(model.EventRequestCreated, &saved)
	return s.hydrate(ctx, &saved)
}

func (s *requestService) Resend(ctx context.Context, id uint, in ResendRequestInput) (RequestResponse, error) {
	account, err := s.branchAccount(ctx)
	if err != nil {
		return RequestResponse{}, err
	}
	if err := validateInput(in); err != nil {
		return RequestResponse{}, err
	}
	if err := checkRequestMoney(in.Data); err != nil {
		return RequestResponse{}, err
	}

	var saved *model.Request
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		request, err := s.loadRequest(txCtx, id)
		if err != nil {
			return err
		}
		if err := principal.RequireOwner(account, request.Branch); err != nil {
			return err
		}
		if request.Status != model.StatusPendingInfo {
			return apperror.Conflict("request is not awaiting information")
		}
		category, err := s.activeCategory(txCtx, in.Data.CategoryID)
		if err != nil {
			return err
		}

		applyRequestInput(request, in.Data, category)
		request.Status = model.StatusPending
		request.SubmittedAt = s.now()
		request.DecidedAt = nil
		request.ApprovedValue = decimal.NullDecimal{}

		if err := s.requestRepo.Update(txCtx, request); err != nil {
			return apperror.Internal("failed to update request", err)
		}
		if err := s.lineRepo.DeleteByRequest(txCtx, request.ID); err != nil {
			return apperror.Internal("failed to replace request lines", err)
		}
		if err := s.saveLines(txCtx, request.ID, in.Data.Lines); err != nil {
			return err
		}
		if err := s.appendHistory(txCtx, request.ID, account.Role, model.ActionResent, in.Comment); err != nil {
			return err
		}
		saved = request
		return nil
	})
	if err != nil {
		return RequestResponse{}, err
	}

	s.publish(model.EventRequestResent, saved)
	return s.hydrate(ctx, saved)
}

func (s *requestService) ListForBranch(ctx context.Context) ([]RequestResponse, error) {
	account, err := s.branchAccount(ctx)
	if err != nil {
		return nil, err
	}
	requests, err := s.requestRepo.List(ctx, repository.RequestFilter{Branch: account.Branch, Sort: repository.SortRecent})
	if err != nil {
		return nil, apperror.Internal("failed to list requests", err)
	}
	return s.hydrateAll(ctx, requests)
}

func (s *requestService) SearchForBranch(ctx context.Context, q ListQuery) (pagination.Page[RequestResponse], error) {
	account, err := s.branchAccount(ctx)
	if err != nil {
		return pagination.Page[RequestResponse]{}, err
	}
	return s.search(ctx, repository.RequestFilter{Branch: account.Branch}, q)
}

func (s *requestService) GetForBranch(ctx context.Context, id uint) (RequestResponse, error) {
	account, err := s.branchAccount(ctx)
	if err != nil {
		return RequestResponse{}, err
	}
	request, err := s.loadRequest(ctx, id)
	if err != nil {
		return RequestResponse{}, err
	}
	if err := principal.RequireOwner(account, request.Branch); err != nil {
		return RequestResponse{}, err
	}
	return s.hydrate(ctx, request)
}

func (s *requestService) ListForAdmin(ctx context.Context, status string) ([]RequestResponse, error) {
	if _, err := s.adminAccount(ctx); err != nil {
		return nil, err
	}
	filterStatus, err := parseStatusFilter(status)
	if err != nil {
		return nil, err
	}
	requests, err := s.requestRepo.List(ctx, repository.RequestFilter{Status: filterStatus, Sort: repository.SortRecent})
	if err != nil {
		return nil, apperror.Internal("failed to list requests", err)
	}
	return s.hydrateAll(ctx, requests)
}

func (s *requestService) SearchForAdmin(ctx context.Context, status string, q ListQuery) (pagination.Page[RequestResponse], error) {
	if _, err := s.adminAccount(ctx); err != nil {
		return pagination.Page[RequestResponse]{}, err
	}
	filterStatus, err := parseStatusFilter(status)
	if err != nil {
		return pagination.Page[RequestResponse]{}, err
	}
	return s.search(ctx, repository.RequestFilter{Status: filterStatus, SearchBranch: true}, q)
}

func (s *requestService) search(ctx context.Context, filter repository.RequestFilter, q ListQuery) (pagination.Page[RequestResponse], error) {
	params := pagination.New(q.Page, q.Size)
	filter.Search = q.Query
	filter.Sort = repository.ParseSort(q.Sort)
	filter.Offset = params.Offset
	filter.Limit = params.Size

	requests, total, err := s.requestRepo.Search(ctx, filter)
	if err != nil {
		return pagination.Page[RequestResponse]{}, apperror.Internal("failed to search requests", err)
	}
	items, err := s.hydrateAll(ctx, requests)
	if err != nil {
		return pagination.Page[RequestResponse]{}, err
	}
	return pagination.NewPage(items, params, total), nil
}

func (s *requestService) GetForAdmin(ctx context.Context, id uint) (RequestResponse, error) {
	if _, err := s.adminAccount(ctx); err != nil {
		return RequestResponse{}, err
	}
	request, err := s.loadRequest(ctx, id)
	if err != nil {
		return RequestResponse{}, err
	}
	return s.hydrate(ctx, request)
}

func (s *requestService) RequestMoreInfo(ctx context.Context, id uint, in InfoRequestInput) (RequestResponse, error) {
	account, err := s.adminAccount(ctx)
	if err != nil {
		return RequestResponse{}, err
	}
	if err := validateInput(in); err != nil {
		return RequestResponse{}, err
	}

	var saved *model.Request
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		request, err := s.loadPending(txCtx, id)
		if err != nil {
			return err
		}
		request.Status = model.StatusPendingInfo
		request.DecisionNote = in.Comment
		request.DecidedAt = nil
		request.ApprovedValue = decimal.NullDecimal{}

		if err := s.requestRepo.Update(txCtx, request); err != nil {
			return apperror.Internal("failed to update request", err)
		}
		if err := s.appendHistory(txCtx, request.ID, account.Role, model.ActionInfoRequested, in.Comment); err != nil {
			return err
		}
		saved = request
		return nil
	})
	if err != nil {
		return RequestResponse{}, err
	}

	s.publish(model.EventRequestInfoRequested, saved)
	return s.hydrate(ctx, saved)
}

func (s *requestService) Decide(ctx context.Context, id uint, in DecisionInput) (RequestResponse, error) {
	account, err := s.adminAccount(ctx)
	if err != nil {
		return RequestResponse{}, err
	}
	if err := validateInput(in); err != nil {
		return RequestResponse{}, err
	}
	decision, err := parseDecision(in.Decision)
	if err != nil {
		return RequestResponse{}, err
	}
	if in.ApprovedValue.Valid {
		if err := requireMoney("approved_value", in.ApprovedValue.Decimal); err != nil {
			return RequestResponse{}, err
		}
	}

	var saved *model.Request
	action := model.ActionRejected
	event := model.EventRequestRejected
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		request, err := s.loadPending(txCtx, id)
		if err != nil {
			return err
		}

		if decision == model.StatusApproved {
			value := request.EstimatedValue
			if in.ApprovedValue.Valid {
				value = in.ApprovedValue.Decimal
			}
			request.ApprovedValue = decimal.NewNullDecimal(roundMoney(value))
			action, event = model.ActionApproved, model.EventRequestApproved
		} else {
			request.ApprovedValue = decimal.NullDecimal{}
		}
		now := s.now()
		request.Status = decision
		request.DecisionNote = in.Comment
		request.DecidedAt = &now

		if err := s.requestRepo.Update(txCtx, request); err != nil {
			return apperror.Internal("failed to update request", err)
		}
		if err := s.appendHistory(txCtx, request.ID, account.Role, action, in.Comment); err != nil {
			return err
		}
		saved = request
		return nil
	})
	if err != nil {
		return RequestResponse{}, err
	}

	s.publish(event, saved)
	return s.hydrate(ctx, saved)
}

// Delete removes the request together with its history, lines and
// attachments, in that order.
func (s *requestService) Delete(ctx context.Context, id uint) error {
	if _, err := s.adminAccount(ctx); err != nil {
		return err
	}

	var deleted *model.Request
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		request, err := s.loadRequest(txCtx, id)
		if err != nil {
			return err
		}
		if err := s.historyRepo.DeleteByRequest(txCtx, request.ID); err != nil {
			return apperror.Internal("failed to delete request history", err)
		}
		if err := s.lineRepo.DeleteByRequest(txCtx, request.ID); err != nil {
			return apperror.Internal("failed to delete request lines", err)
		}
		if err := s.attachments.DeleteAllForRequest(txCtx, request.ID); err != nil {
			return err
		}
		if err := s.requestRepo.Delete(txCtx, request.ID); err != nil {
			return apperror.Internal("failed to delete request", err)
		}
		deleted = request
		return nil
	})
	if err != nil {
		return err
	}

	s.publish(model.EventRequestDeleted, deleted)
	return nil
}

func (s *requestService) Statistics(ctx context.Context) (model.StatisticsResponse, error) {
	if _, err := s.adminAccount(ctx); err != nil {
		return model.StatisticsResponse{}, err
	}
	rows, err := s.requestRepo.ApprovedRows(ctx)
	if err != nil {
		return model.StatisticsResponse{}, apperror.Internal("failed to load statistics", err)
	}
	counts, err := s.requestRepo.CountByStatus(ctx)
	if err != nil {
		return model.StatisticsResponse{}, apperror.Internal("failed to load statistics", err)
	}
	return buildStatistics(rows, counts), nil
}

// --- Helpers ---

func (s *requestService) branchAccount(ctx context.Context) (*model.Account, error) {
	account, err := s.principals.CurrentAccount(ctx)
	if err != nil {
		return nil, err
	}
	if err := principal.RequireBranch(account); err != nil {
		return nil, err
	}
	return account, nil
}

func (s *requestService) adminAccount(ctx context.Context) (*model.Account, error) {
	account, err := s.principals.CurrentAccount(ctx)
	if err != nil {
		return nil, err
	}
	if err := principal.RequireAdmin(account); err != nil {
		return nil, err
	}
	return account, nil
}

func (s *requestService) loadRequest(ctx context.Context, id uint) (*model.Request, error) {
	request, err := s.requestRepo.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperror.NotFound("request not found")
		}
		return nil, apperror.Internal("failed to load request", err)
	}
	return request, nil
}

func (s *requestService) loadPending(ctx context.Context, id uint) (*model.Request, error) {
	request, err := s.loadRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.Status != model.StatusPending {
		return nil, apperror.Conflict("request is not pending")
	}
	return request, nil
}

func (s *requestService) activeCategory(ctx context.Context, id uint) (*model.Category, error) {
	category, err := s.categoryRepo.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperror.NotFound("category not found")
		}
		return nil, apperror.Internal("failed to load category", err)
	}
	if !category.Active {
		return nil, apperror.BadRequest("category is inactive")
	}
	return category, nil
}

func (s *requestService) saveLines(ctx context.Context, requestID uint, in []RequestLineInput) error {
	if len(in) == 0 {
		return nil
	}
	lines := make([]model.RequestLine, 0, len(in))
	for _, l := range in {
		lines = append(lines, model.RequestLine{
			RequestID:   requestID,
			Description: strings.TrimSpace(l.Description),
			Value:       roundMoney(l.Value),
			Note:        l.Note,
		})
	}
	if err := s.lineRepo.CreateBatch(ctx, lines); err != nil {
		return apperror.Internal("failed to save request lines", err)
	}
	return nil
}

func (s *requestService) appendHistory(ctx context.Context, requestID uint, actor model.Role, action, comment string) error {
	entry := model.HistoryEntry{
		RequestID: requestID,
		Actor:     actor,
		Action:    action,
		Comment:   comment,
		CreatedAt: s.now(),
	}
	if err := s.historyRepo.Append(ctx, &entry); err != nil {
		return apperror.Internal("failed to write request history", err)
	}
	return nil
}

func (s *requestService) publish(event string, request *model.Request) {
	s.notifier.Publish(model.RequestEvent{
		Event:     event,
		RequestID: request.ID,
		Branch:    request.Branch,
		Status:    request.Status,
	})
}

func (s *requestService) hydrate(ctx context.Context, request *model.Request) (RequestResponse, error) {
	items, err := s.hydrateAll(ctx, []model.Request{*request})
	if err != nil {
		return RequestResponse{}, err
	}
	return items[0], nil
}

// hydrateAll loads lines and history for all requests in two queries.
func (s *requestService) hydrateAll(ctx context.Context, requests []model.Request) ([]RequestResponse, error) {
	result := make([]RequestResponse, 0, len(requests))
	if len(requests) == 0 {
		return result, nil
	}
	ids := make([]uint, 0, len(requests))
	for _, r := range requests {
		ids = append(ids, r.ID)
	}

	lines, err := s.lineRepo.ListByRequests(ctx, ids)
	if err != nil {
		return nil, apperror.Internal("failed to load request lines", err)
	}
	history, err := s.historyRepo.ListByRequests(ctx, ids)
	if err != nil {
		return nil, apperror.Internal("failed to load request history", err)
	}
	linesByRequest := make(map[uint][]model.RequestLine, len(requests))
	for _, l := range lines {
		linesByRequest[l.RequestID] = append(linesByRequest[l.RequestID], l)
	}
	historyByRequest := make(map[uint][]model.HistoryEntry, len(requests))
	for _, h := range history {
		historyByRequest[h.RequestID] = append(historyByRequest[h.RequestID], h)
	}

	for i := range requests {
		r := &requests[i]
		result = append(result, toRequestResponse(r, linesByRequest[r.ID], historyByRequest[r.ID]))
	}
	return result, nil
}

func applyRequestInput(request *model.Request, in CreateRequestInput, category *model.Category) {
	request.CategoryID = category.ID
	request.Category = *category
	request.Title = strings.TrimSpace(in.Title)
	request.RequesterName = strings.TrimSpace(in.RequesterName)
	request.Description = in.Description
	request.UsageReason = in.UsageReason
	request.EstimatedValue = roundMoney(in.EstimatedValue)
	request.Supplier = in.Supplier
	request.PaymentMethod = in.PaymentMethod
	request.Observations = in.Observations
}

func validateRequestInput(in CreateRequestInput) error {
	if err := validateInput(in); err != nil {
		return err
	}
	return checkRequestMoney(in)
}

func checkRequestMoney(in CreateRequestInput) error {
	if err := requireMoney("estimated_value", in.EstimatedValue); err != nil {
		return err
	}
	for i, l := range in.Lines {
		if err := requireMoney("lines["+strconv.Itoa(i)+"].value", l.Value); err != nil {
			return err
		}
	}
	return nil
}

// parseDecision accepts APPROVED/APROVADO and REJECTED/REPROVADO in any case.
func parseDecision(token string) (model.RequestStatus, error) {
	switch strings.ToUpper(strings.TrimSpace(token)) {
	case "APPROVED", "APROVADO":
		return model.StatusApproved, nil
	case "REJECTED", "REPROVADO":
		return model.StatusRejected, nil
	default:
		return "", apperror.BadRequest("invalid decision: use APPROVED or REJECTED")
	}
}

// parseStatusFilter maps a blank filter to "no filter" and rejects unknown values.
func parseStatusFilter(status string) (model.RequestStatus, error) {
	if strings.TrimSpace(status) == "" {
		return "", nil
	}
	parsed, ok := model.ParseStatus(status)
	if !ok {
		return "", apperror.BadRequest("invalid status: use PENDING, PENDING_INFO, APPROVED or REJECTED")
	}
	return parsed, nil
}

func toRequestResponse(r *model.Request, lines []model.RequestLine, history []model.HistoryEntry) RequestResponse {
	resp := RequestResponse{
		ID:              r.ID,
		Branch:          r.Branch,
		CategoryID:      r.CategoryID,
		CategoryName:    r.Category.Name,
		Title:           r.Title,
		RequesterName:   r.RequesterName,
		Description:     r.Description,
		UsageReason:     r.UsageReason,
		EstimatedValue:  formatMoney(r.EstimatedValue),
		Supplier:        r.Supplier,
		PaymentMethod:   r.PaymentMethod,
		Observations:    r.Observations,
		Status:          r.Status,
		SubmittedAt:     r.SubmittedAt,
		DecidedAt:       r.DecidedAt,
		DecisionComment: r.DecisionNote,
		Lines:           make([]RequestLineResponse, 0, len(lines)),
		History:         make([]HistoryResponse, 0, len(history)),
	}
	if r.ApprovedValue.Valid {
		v := formatMoney(r.ApprovedValue.Decimal)
		resp.ApprovedValue = &v
	}
	for _, l := range lines {
		resp.Lines = append(resp.Lines, RequestLineResponse{
			ID:          l.ID,
			Description: l.Description,
			Value:       formatMoney(l.Value),
			Note:        l.Note,
		})
	}
	for _, h := range history {
		resp.History = append(resp.History, HistoryResponse{
			ID:        h.ID,
			Actor:     string(h.Actor),
			Action:    h.Action,
			Comment:   h.Comment,
			CreatedAt: h.CreatedAt,
		})
	}
	return resp
}
