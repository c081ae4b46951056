package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"expensecontrol/internal/model"

	"gorm.io/gorm"
)

// RequestSort names a supported ordering of request listings.
type RequestSort string

const (
	SortRecent    RequestSort = "RECENT"
	SortOld       RequestSort = "OLD"
	SortValueDesc RequestSort = "VALUE_DESC"
	SortValueAsc  RequestSort = "VALUE_ASC"
	SortTitle     RequestSort = "TITLE"
)

// ParseSort resolves a sort key case-insensitively; unknown keys mean RECENT.
func ParseSort(key string) RequestSort {
	switch s := RequestSort(strings.ToUpper(strings.TrimSpace(key))); s {
	case SortOld, SortValueDesc, SortValueAsc, SortTitle:
		return s
	default:
		return SortRecent
	}
}

func (s RequestSort) orderClause() string {
	switch s {
	case SortOld:
		return "requests.submitted_at ASC, requests.id ASC"
	case SortValueDesc:
		return "requests.estimated_value DESC, requests.id DESC"
	case SortValueAsc:
		return "requests.estimated_value ASC, requests.id ASC"
	case SortTitle:
		return "LOWER(requests.title) ASC, requests.id ASC"
	default:
		return "requests.submitted_at DESC, requests.id DESC"
	}
}

// RequestFilter narrows a request listing. Zero values mean "no restriction".
type RequestFilter struct {
	Branch string
	Status model.RequestStatus
	// Search is the raw free-text query.
	Search string
	// SearchBranch also matches Search against the branch name.
	SearchBranch bool
	Sort         RequestSort
	Offset       int
	Limit        int
}

type RequestRepository interface {
	Create(ctx context.Context, request *model.Request) error
	Update(ctx context.Context, request *model.Request) error
	Delete(ctx context.Context, id uint) error
	FindByID(ctx context.Context, id uint) (*model.Request, error)
	List(ctx context.Context, filter RequestFilter) ([]model.Request, error)
	Search(ctx context.Context, filter RequestFilter) ([]model.Request, int64, error)
	ApprovedRows(ctx context.Context) ([]model.StatisticsRow, error)
	CountByStatus(ctx context.Context) ([]model.StatusCount, error)
}

type requestRepository struct {
	db *gorm.DB
}

func NewRequestRepository(db *gorm.DB) RequestRepository {
	return &requestRepository{db: db}
}

func (r *requestRepository) Create(ctx context.Context, request *model.Request) error {
	return GetDB(ctx, r.db).Omit("Category").Create(request).Error
}

func (r *requestRepository) Update(ctx context.Context, request *model.Request) error {
	return GetDB(ctx, r.db).Omit("Category").Save(request).Error
}

func (r *requestRepository) Delete(ctx context.Context, id uint) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Request{}).Error
}

func (r *requestRepository) FindByID(ctx context.Context, id uint) (*model.Request, error) {
	var request model.Request
	if err := GetDB(ctx, r.db).Preload("Category").First(&request, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

// List returns every request matching the branch/status filter, unpaged.
func (r *requestRepository) List(ctx context.Context, filter RequestFilter) ([]model.Request, error) {
	var requests []model.Request
	query := r.filtered(GetDB(ctx, r.db), RequestFilter{Branch: filter.Branch, Status: filter.Status})
	if err := query.Preload("Category").Order(filter.Sort.orderClause()).Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

// Search returns one page of requests matching filter and the total match count.
func (r *requestRepository) Search(ctx context.Context, filter RequestFilter) ([]model.Request, int64, error) {
	var requests []model.Request
	var total int64

	db := GetDB(ctx, r.db)
	if err := r.filtered(db, filter).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count requests: %w", err)
	}
	if total == 0 {
		return requests, 0, nil
	}

	fetch := r.filtered(db, filter).
		Select("requests.*").
		Preload("Category").
		Order(filter.Sort.orderClause()).
		Offset(filter.Offset)
	if filter.Limit > 0 {
		fetch = fetch.Limit(filter.Limit)
	}
	if err := fetch.Find(&requests).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to query requests: %w", err)
	}
	return requests, total, nil
}

func (r *requestRepository) filtered(db *gorm.DB, filter RequestFilter) *gorm.DB {
	query := db.Model(&model.Request{})
	if filter.Branch != "" {
		query = query.Where("requests.branch = ?", filter.Branch)
	}
	if filter.Status != "" {
		query = query.Where("requests.status = ?", filter.Status)
	}

	term := strings.ToLower(strings.TrimSpace(filter.Search))
	if term == "" {
		return query
	}
	like := "%" + term + "%"

	// Grouped so the OR chain stays inside the branch/status restriction.
	cond := r.db.Where("LOWER(requests.title) LIKE ?", like).
		Or("LOWER(requests.description) LIKE ?", like).
		Or("LOWER(COALESCE(requests.supplier, '')) LIKE ?", like).
		Or("LOWER(requests.requester_name) LIKE ?", like).
		Or("LOWER(categories.name) LIKE ?", like)
	if filter.SearchBranch {
		cond = cond.Or("LOWER(requests.branch) LIKE ?", like)
	}
	if id, ok := parseSearchID(term); ok {
		cond = cond.Or("requests.id = ?", id)
	}
	if status, ok := model.ParseStatus(term); ok {
		cond = cond.Or("requests.status = ?", status)
	}

	return query.Joins("JOIN categories ON categories.id = requests.category_id").Where(cond)
}

// parseSearchID accepts queries made only of ASCII digits.
func parseSearchID(term string) (uint64, bool) {
	for _, c := range term {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	id, err := strconv.ParseUint(term, 10, 63)
	if err != nil {
		return 0, false
	}
	return id, true
}

func (r *requestRepository) ApprovedRows(ctx context.Context) ([]model.StatisticsRow, error) {
	var rows []model.StatisticsRow
	if err := GetDB(ctx, r.db).Table("requests").
		Select("categories.name AS category_name, requests.branch, requests.estimated_value, requests.approved_value").
		Joins("JOIN categories ON categories.id = requests.category_id").
		Where("requests.status = ?", model.StatusApproved).
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query approved requests: %w", err)
	}
	return rows, nil
}

func (r *requestRepository) CountByStatus(ctx context.Context) ([]model.StatusCount, error) {
	var counts []model.StatusCount
	if err := GetDB(ctx, r.db).Table("requests").
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("failed to count requests by status: %w", err)
	}
	return counts, nil
}
