package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RequestStatus is a lifecycle state of an expense request.
type RequestStatus string

const (
	StatusPending     RequestStatus = "PENDING"
	StatusPendingInfo RequestStatus = "PENDING_INFO"
	StatusApproved    RequestStatus = "APPROVED"
	StatusRejected    RequestStatus = "REJECTED"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []RequestStatus{StatusPending, StatusPendingInfo, StatusApproved, StatusRejected}

// ParseStatus resolves a status keyword case-insensitively.
func ParseStatus(value string) (RequestStatus, bool) {
	candidate := RequestStatus(strings.ToUpper(strings.TrimSpace(value)))
	for _, s := range AllStatuses {
		if s == candidate {
			return s, true
		}
	}
	return "", false
}

// History action codes
const (
	ActionCreated       = "CREATED"
	ActionInfoRequested = "INFO_REQUESTED"
	ActionResent        = "RESENT"
	ActionApproved      = "APPROVED"
	ActionRejected      = "REJECTED"
)

// MoneyScale is the number of fractional digits stored for money columns.
const MoneyScale = 2

// Request is an expense approval case owned by one branch.
type Request struct {
	ID             uint                `gorm:"primaryKey" json:"id"`
	Branch         string              `gorm:"type:varchar(120);not null;index" json:"branch"`
	CategoryID     uint                `gorm:"not null;index" json:"category_id"`
	Category       Category            `gorm:"foreignKey:CategoryID" json:"-"`
	Title          string              `gorm:"type:varchar(120);not null" json:"title"`
	RequesterName  string              `gorm:"type:varchar(120);not null" json:"requester_name"`
	Description    string              `gorm:"type:varchar(2000);not null" json:"description"`
	UsageReason    string              `gorm:"type:varchar(255);not null" json:"usage_reason"`
	EstimatedValue decimal.Decimal     `gorm:"type:decimal(12,2);not null" json:"estimated_value"`
	ApprovedValue  decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"approved_value"` // set only while APPROVED
	Supplier       string              `gorm:"type:varchar(120)" json:"supplier"`
	PaymentMethod  string              `gorm:"type:varchar(50)" json:"payment_method"`
	Observations   string              `gorm:"type:varchar(1000)" json:"observations"`
	Status         RequestStatus       `gorm:"type:varchar(30);not null;index" json:"status"`
	CreatedAt      time.Time           `json:"created_at"`
	SubmittedAt    time.Time           `gorm:"not null;index" json:"submitted_at"`
	DecidedAt      *time.Time          `json:"decided_at"`
	DecisionNote   string              `gorm:"type:varchar(500)" json:"decision_comment"`
}

// EffectiveValue is the value a request counts for in aggregates:
// the approved value when present, otherwise the estimated value.
func EffectiveValue(approved decimal.NullDecimal, estimated decimal.Decimal) decimal.Decimal {
	if approved.Valid {
		return approved.Decimal
	}
	return estimated
}

// RequestLine is one itemised cost of a request.
type RequestLine struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	RequestID   uint            `gorm:"not null;index" json:"request_id"`
	Description string          `gorm:"type:varchar(160);not null" json:"description"`
	Value       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"value"`
	Note        string          `gorm:"type:varchar(300)" json:"note"`
}

// HistoryEntry is an append-only audit row for a request.
type HistoryEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	RequestID uint      `gorm:"not null;index" json:"request_id"`
	Actor     Role      `gorm:"type:varchar(20);not null" json:"actor"`
	Action    string    `gorm:"type:varchar(40);not null" json:"action"`
	Comment   string    `gorm:"type:varchar(500)" json:"comment"`
	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}

func (HistoryEntry) TableName() string {
	return "request_history"
}
