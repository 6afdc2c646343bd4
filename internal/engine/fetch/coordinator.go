// internal/engine/fetch/coordinator.go
package fetch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	apperrors "market-insights/internal/common/errors"
	"market-insights/internal/common/logger"
	"market-insights/internal/common/metrics"
)

// Coordinator fans a task plan out against the store under a shared
// concurrency cap. The semaphore outlives any single query, so the cap holds
// across overlapping queries, not just within one.
type Coordinator struct {
	store       Store
	sem         chan struct{}
	taskTimeout time.Duration
	logger      logger.Logger
}

// NewCoordinator creates a Coordinator with at most maxWorkers tasks in
// flight at once.
func NewCoordinator(store Store, maxWorkers int, taskTimeout time.Duration, log logger.Logger) *Coordinator {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &Coordinator{
		store:       store,
		sem:         make(chan struct{}, maxWorkers),
		taskTimeout: taskTimeout,
		logger:      log,
	}
}

// Run executes every task and returns one Result per task, positionally
// aligned with the input. A slow or failed task never cancels its siblings;
// Run itself fails only with AllTasksFailed when every single task errored.
func (c *Coordinator) Run(ctx context.Context, tasks []Task) ([]Result, error) {
	if len(tasks) == 0 {
		return nil, nil
	}

	results := make([]Result, len(tasks))
	var wg sync.WaitGroup
	for i, task := range tasks {
		wg.Add(1)
		go func(i int, task Task) {
			defer wg.Done()
			c.sem <- struct{}{}
			defer func() { <-c.sem }()
			results[i] = c.runOne(ctx, task)
		}(i, task)
	}
	wg.Wait()

	failed := 0
	for _, r := range results {
		if !r.OK() {
			failed++
		}
	}
	if failed == len(tasks) {
		c.logger.Error("all fetch tasks failed", map[string]interface{}{
			"task_count": len(tasks),
		})
		return results, apperrors.NewAllTasksFailedError(len(tasks))
	}
	if failed > 0 {
		c.logger.Warn("partial fetch failure", map[string]interface{}{
			"task_count": len(tasks),
			"failed":     failed,
		})
	}
	return results, nil
}

func (c *Coordinator) runOne(ctx context.Context, task Task) Result {
	taskCtx, cancel := context.WithTimeout(ctx, c.taskTimeout)
	defer cancel()

	result := Result{Task: task}
	var err error
	switch task.Kind {
	case KindYield:
		result.Yield, err = c.store.YieldFor(taskCtx, task.Location, task.PropertyType)
	case KindTrend:
		result.Trend, err = c.store.TrendFor(taskCtx, task.Location, task.Months)
	case KindSearch:
		result.Listings, err = c.store.SearchAbove(taskCtx, task.Threshold, task.PropertyType)
	default:
		err = apperrors.NewFetchNotFoundError(fmt.Sprintf("unknown task kind %q for %s", task.Kind, task.ID))
	}

	if err != nil {
		result.Err = c.classifyError(task, err)
		metrics.FetchTasks.WithLabelValues(string(task.Kind), "error").Inc()
		c.logger.WithError(result.Err).Warn("fetch task failed", map[string]interface{}{
			"task_id": task.ID,
			"kind":    string(task.Kind),
		})
		return result
	}

	metrics.FetchTasks.WithLabelValues(string(task.Kind), "success").Inc()
	return result
}

func (c *Coordinator) classifyError(task Task, err error) *apperrors.StandardError {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewFetchTimeoutError(task.ID)
	}
	return apperrors.AsStandard(err)
}
