package model

import "github.com/shopspring/decimal"

// StatisticsRow is the projection of a request needed to build aggregates.
type StatisticsRow struct {
	CategoryName   string
	Branch         string
	EstimatedValue decimal.Decimal
	ApprovedValue  decimal.NullDecimal
}

// StatusCount is the number of requests in one status.
type StatusCount struct {
	Status RequestStatus `json:"status"`
	Total  int64         `json:"total"`
}

// Breakdown aggregates requests sharing a label (category or branch).
type Breakdown struct {
	Label      string          `json:"label"`
	Total      int64           `json:"total"`
	TotalValue decimal.Decimal `json:"total_value"`
}

// StatisticsResponse aggregates approved requests for the admin dashboard
type StatisticsResponse struct {
	ApprovedCount int64           `json:"approved_count"`
	ApprovedValue decimal.Decimal `json:"approved_value"`
	ByCategory    []Breakdown     `json:"by_category"`
	ByBranch      []Breakdown     `json:"by_branch"`
	ByStatus      []StatusCount   `json:"by_status"`
}
