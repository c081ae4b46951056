package service

import (
	"sort"

	"expensecontrol/internal/model"

	"github.com/shopspring/decimal"
)

// buildStatistics aggregates approved request rows. Every value counts as
// its approved value, falling back to the estimate when none was recorded.
func buildStatistics(rows []model.StatisticsRow, counts []model.StatusCount) model.StatisticsResponse {
	stats := model.StatisticsResponse{
		ApprovedValue: decimal.Zero,
		ByCategory:    []model.Breakdown{},
		ByBranch:      []model.Breakdown{},
	}

	byCategory := map[string]*model.Breakdown{}
	byBranch := map[string]*model.Breakdown{}
	for _, row := range rows {
		value := model.EffectiveValue(row.ApprovedValue, row.EstimatedValue)
		stats.ApprovedCount++
		stats.ApprovedValue = stats.ApprovedValue.Add(value)
		accumulate(byCategory, row.CategoryName, value)
		accumulate(byBranch, row.Branch, value)
	}
	stats.ByCategory = sortedBreakdown(byCategory)
	stats.ByBranch = sortedBreakdown(byBranch)

	totals := make(map[model.RequestStatus]int64, len(counts))
	for _, c := range counts {
		totals[c.Status] += c.Total
	}
	stats.ByStatus = make([]model.StatusCount, 0, len(model.AllStatuses))
	for _, status := range model.AllStatuses {
		stats.ByStatus = append(stats.ByStatus, model.StatusCount{Status: status, Total: totals[status]})
	}
	return stats
}

func accumulate(into map[string]*model.Breakdown, label string, value decimal.Decimal) {
	b, ok := into[label]
	if !ok {
		b = &model.Breakdown{Label: label, TotalValue: decimal.Zero}
		into[label] = b
	}
	b.Total++
	b.TotalValue = b.TotalValue.Add(value)
}

// sortedBreakdown orders by total value descending, then label.
func sortedBreakdown(in map[string]*model.Breakdown) []model.Breakdown {
	out := make([]model.Breakdown, 0, len(in))
	for _, b := range in {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].TotalValue.Cmp(out[j].TotalValue); c != 0 {
			return c > 0
		}
		return out[i].Label < out[j].Label
	})
	return out
}
