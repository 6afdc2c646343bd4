// internal/engine/fetch/task.go
package fetch

import (
	"context"
	"fmt"

	apperrors "market-insights/internal/common/errors"
	"market-insights/internal/models"
)

// Kind identifies which data-store lookup a task performs.
type Kind string

const (
	KindYield  Kind = "yield"
	KindTrend  Kind = "trend"
	KindSearch Kind = "search"
)

// Task is one independent unit of work derived from a ParsedQuery. Tasks for
// a single query share no mutable state.
type Task struct {
	ID           string
	Kind         Kind
	Location     string
	PropertyType string
	Months       int
	Threshold    float64
}

// Result is the outcome of one task: exactly one of the value fields or Err
// is populated. Results are gathered by task identity, never by arrival
// order.
type Result struct {
	Task     Task
	Yield    *models.YieldMetric
	Trend    *models.TrendSeries
	Listings []models.Listing
	Err      *apperrors.StandardError
}

// OK reports whether the task produced a value.
func (r Result) OK() bool {
	return r.Err == nil
}

// Store is the data-store collaborator the coordinator fans out against.
type Store interface {
	YieldFor(ctx context.Context, location, propertyType string) (*models.YieldMetric, error)
	TrendFor(ctx context.Context, location string, months int) (*models.TrendSeries, error)
	SearchAbove(ctx context.Context, threshold float64, propertyType string) ([]models.Listing, error)
}

const (
	defaultPropertyType = "apartment"
	defaultTrendMonths  = 12
	summaryTrendMonths  = 6
)

// Plan derives the ordered task list a classified query implies. An empty
// plan means there is nothing to look up and the query falls through to the
// generator backend.
func Plan(q *models.ParsedQuery) []Task {
	propertyType := q.Entities.PropertyType
	if propertyType == "" {
		propertyType = defaultPropertyType
	}

	months := q.Entities.TimeWindowMonths
	if months == 0 {
		months = defaultTrendMonths
	}

	var tasks []Task
	switch q.Type {
	case models.QueryTypeMarketYield, models.QueryTypeLocationComparison:
		for _, loc := range q.Entities.Locations {
			tasks = append(tasks, Task{
				ID:           fmt.Sprintf("yield:%s", loc),
				Kind:         KindYield,
				Location:     loc,
				PropertyType: propertyType,
			})
		}

	case models.QueryTypeMarketTrend:
		for _, loc := range q.Entities.Locations {
			tasks = append(tasks, Task{
				ID:       fmt.Sprintf("trend:%s", loc),
				Kind:     KindTrend,
				Location: loc,
				Months:   months,
			})
		}

	case models.QueryTypePriceAnalysis:
		// The market-summary shape: yield and trend for the first location.
		if len(q.Entities.Locations) == 0 {
			return nil
		}
		loc := q.Entities.Locations[0]
		summaryMonths := q.Entities.TimeWindowMonths
		if summaryMonths == 0 {
			summaryMonths = summaryTrendMonths
		}
		tasks = append(tasks,
			Task{
				ID:           fmt.Sprintf("yield:%s", loc),
				Kind:         KindYield,
				Location:     loc,
				PropertyType: propertyType,
			},
			Task{
				ID:       fmt.Sprintf("trend:%s", loc),
				Kind:     KindTrend,
				Location: loc,
				Months:   summaryMonths,
			},
		)

	case models.QueryTypeInvestmentSearch:
		if q.Entities.Threshold == nil {
			return nil
		}
		tasks = append(tasks, Task{
			ID:           fmt.Sprintf("search:%s:%.2f", propertyType, q.Entities.Threshold.Value),
			Kind:         KindSearch,
			PropertyType: propertyType,
			Threshold:    q.Entities.Threshold.Value,
		})
	}

	return tasks
}
