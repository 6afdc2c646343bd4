// Package batch drives the engine over a CSV of questions and writes one
// result row per input row.
package batch

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"market-insights/internal/common/config"
	"market-insights/internal/common/logger"
	"market-insights/internal/models"
)

// Answerer is the engine surface the processor drives.
type Answerer interface {
	Answer(ctx context.Context, raw string) (*models.Answer, error)
}

// Processor reads question CSVs and writes answer CSVs.
type Processor struct {
	engine Answerer
	cfg    config.BatchConfig
	logger logger.Logger
}

// NewProcessor creates a Processor.
func NewProcessor(engine Answerer, cfg config.BatchConfig, log logger.Logger) *Processor {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Processor{engine: engine, cfg: cfg, logger: log}
}

type question struct {
	id   string
	text string
}

type resultRow struct {
	id        string
	question  string
	answer    string
	tookMs    int64
	modelUsed string
	engine    string
	timestamp time.Time
	status    string
	errText   string
}

// ProcessCSV answers every question in inputPath and writes results to
// outputPath. Output rows are sorted by question id regardless of completion
// order. A per-question failure becomes an error row, never a run failure.
func (p *Processor) ProcessCSV(ctx context.Context, inputPath, outputPath string) error {
	runID := uuid.NewString()
	log := p.logger.With(map[string]interface{}{"run_id": runID})

	questions, err := readQuestions(inputPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", inputPath, err)
	}
	log.Info("batch run starting", map[string]interface{}{
		"questions": len(questions),
		"parallel":  p.cfg.Parallel,
		"workers":   p.cfg.Workers,
	})

	start := time.Now()
	var rows []resultRow
	if p.cfg.Parallel {
		rows = p.runParallel(ctx, questions)
	} else {
		rows = p.runSequential(ctx, questions)
	}

	sortRows(rows)
	if err := writeResults(outputPath, rows); err != nil {
		return fmt.Errorf("writing %s: %w", outputPath, err)
	}

	succeeded := 0
	for _, r := range rows {
		if r.status == "success" {
			succeeded++
		}
	}
	log.Info("batch run finished", map[string]interface{}{
		"questions": len(rows),
		"succeeded": succeeded,
		"failed":    len(rows) - succeeded,
		"took_ms":   time.Since(start).Milliseconds(),
		"output":    outputPath,
	})
	return nil
}

func (p *Processor) runSequential(ctx context.Context, questions []question) []resultRow {
	rows := make([]resultRow, len(questions))
	for i, q := range questions {
		rows[i] = p.answerOne(ctx, q)
	}
	return rows
}

func (p *Processor) runParallel(ctx context.Context, questions []question) []resultRow {
	rows := make([]resultRow, len(questions))
	sem := make(chan struct{}, p.cfg.Workers)
	var wg sync.WaitGroup
	for i, q := range questions {
		wg.Add(1)
		go func(i int, q question) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			rows[i] = p.answerOne(ctx, q)
		}(i, q)
	}
	wg.Wait()
	return rows
}

func (p *Processor) answerOne(ctx context.Context, q question) resultRow {
	row := resultRow{
		id:        q.id,
		question:  q.text,
		timestamp: time.Now().UTC(),
	}

	answer, err := p.engine.Answer(ctx, q.text)
	if err != nil {
		row.status = "error"
		row.errText = err.Error()
		p.logger.WithError(err).Warn("question failed", map[string]interface{}{
			"question_id": q.id,
		})
		return row
	}

	row.status = "success"
	row.answer = answer.Content
	row.tookMs = answer.TookMs
	row.modelUsed = answer.ModelUsed
	row.engine = answer.Engine
	return row
}

func readQuestions(path string) ([]question, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}

	var questions []question
	for i, rec := range records {
		if len(rec) < 2 {
			continue
		}
		// Tolerate a header row in either column order.
		if i == 0 && strings.EqualFold(strings.TrimSpace(rec[0]), "question_id") {
			continue
		}
		questions = append(questions, question{
			id:   strings.TrimSpace(rec[0]),
			text: strings.TrimSpace(rec[1]),
		})
	}
	return questions, nil
}

func writeResults(path string, rows []resultRow) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{
		"question_id", "question", "answer", "query_time_ms",
		"model_used", "engine_used", "timestamp", "status", "error",
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			r.id,
			r.question,
			r.answer,
			strconv.FormatInt(r.tookMs, 10),
			r.modelUsed,
			r.engine,
			r.timestamp.Format(time.RFC3339),
			r.status,
			r.errText,
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	return w.Error()
}

// sortRows orders by numeric question id when ids parse as integers, by
// string otherwise.
func sortRows(rows []resultRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, aErr := strconv.Atoi(rows[i].id)
		b, bErr := strconv.Atoi(rows[j].id)
		if aErr == nil && bErr == nil {
			return a < b
		}
		return rows[i].id < rows[j].id
	})
}
