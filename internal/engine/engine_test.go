package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "market-insights/internal/common/errors"
	"market-insights/internal/common/logger"
	"market-insights/internal/engine/cache"
	"market-insights/internal/engine/fetch"
	"market-insights/internal/generator"
	"market-insights/internal/models"
)

// stubStore returns canned yield data for every location in data and a
// not-found error for anything else.
type stubStore struct {
	data  map[string]*models.YieldMetric
	calls int32
}

func (s *stubStore) YieldFor(ctx context.Context, location, propertyType string) (*models.YieldMetric, error) {
	atomic.AddInt32(&s.calls, 1)
	if m, ok := s.data[location]; ok {
		return m, nil
	}
	return nil, apperrors.NewFetchNotFoundError("no data for " + location)
}

func (s *stubStore) TrendFor(ctx context.Context, location string, months int) (*models.TrendSeries, error) {
	atomic.AddInt32(&s.calls, 1)
	return &models.TrendSeries{
		Location: location,
		Months:   months,
		Points: []models.TrendPoint{
			{Month: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), PropertyType: "apartment", AvgPrice: 500000, AvgRent: 2000, TransactionCount: 10},
		},
	}, nil
}

func (s *stubStore) SearchAbove(ctx context.Context, threshold float64, propertyType string) ([]models.Listing, error) {
	atomic.AddInt32(&s.calls, 1)
	return []models.Listing{
		{ID: "l1", Location: "miami", PropertyType: propertyType, Price: 300000, MonthlyRent: 1700, GrossYield: threshold + 1.2},
	}, nil
}

type stubGenerator struct {
	calls int32
	err   error
}

func (g *stubGenerator) Generate(ctx context.Context, systemPrompt, userPrompt string) (*generator.Response, error) {
	atomic.AddInt32(&g.calls, 1)
	if g.err != nil {
		return nil, g.err
	}
	return &generator.Response{Content: "generated answer", Model: "stub-model"}, nil
}

func newTestEngine(store fetch.Store, gen Generator) *Engine {
	coord := fetch.NewCoordinator(store, 5, time.Second, logger.NewNoOpLogger())
	return New(cache.New(10), coord, gen, nil, 15*time.Minute, logger.NewNoOpLogger())
}

func seattleStore() *stubStore {
	return &stubStore{data: map[string]*models.YieldMetric{
		"seattle":  {Location: "seattle", PropertyType: "apartment", AvgPrice: 650000, AvgRent: 2400, GrossYield: 4.43, SampleSize: 128},
		"portland": {Location: "portland", PropertyType: "apartment", AvgPrice: 480000, AvgRent: 1900, GrossYield: 4.75, SampleSize: 96},
	}}
}

func TestAnswerDataPath(t *testing.T) {
	eng := newTestEngine(seattleStore(), &stubGenerator{})

	answer, err := eng.Answer(context.Background(), "What is the rental yield in Seattle?")

	require.NoError(t, err)
	assert.Equal(t, models.QueryTypeMarketYield, answer.QueryType)
	assert.Equal(t, models.EngineMarketData, answer.Engine)
	assert.False(t, answer.CacheHit)
	assert.Empty(t, answer.ModelUsed)
	assert.Contains(t, answer.Content, "Seattle")
	assert.Contains(t, answer.Content, "4.43")
	assert.NotEmpty(t, answer.QueryID)
}

func TestAnswerCacheHit(t *testing.T) {
	store := seattleStore()
	eng := newTestEngine(store, &stubGenerator{})

	first, err := eng.Answer(context.Background(), "What is the rental yield in Seattle?")
	require.NoError(t, err)
	require.False(t, first.CacheHit)

	// Same question, different casing and spacing: same fingerprint.
	second, err := eng.Answer(context.Background(), "what is   the rental YIELD in seattle?")
	require.NoError(t, err)

	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Content, second.Content)
	assert.Equal(t, first.QueryID, second.QueryID)
	assert.EqualValues(t, 1, atomic.LoadInt32(&store.calls), "cache hit must not touch the store")
}

func TestAnswerGeneralQuestionUsesGenerator(t *testing.T) {
	store := seattleStore()
	gen := &stubGenerator{}
	eng := newTestEngine(store, gen)

	answer, err := eng.Answer(context.Background(), "Is now a good time to buy?")

	require.NoError(t, err)
	assert.Equal(t, models.QueryTypeGeneralQuestion, answer.QueryType)
	assert.Equal(t, models.EngineGenerator, answer.Engine)
	assert.Equal(t, "generated answer", answer.Content)
	assert.Equal(t, "stub-model", answer.ModelUsed)
	assert.EqualValues(t, 0, atomic.LoadInt32(&store.calls))
	assert.EqualValues(t, 1, atomic.LoadInt32(&gen.calls))
}

func TestAnswerFallsBackWhenAllTasksFail(t *testing.T) {
	store := &stubStore{data: map[string]*models.YieldMetric{}}
	gen := &stubGenerator{}
	eng := newTestEngine(store, gen)

	answer, err := eng.Answer(context.Background(), "What is the rental yield in Seattle?")

	require.NoError(t, err)
	assert.Equal(t, models.EngineGenerator, answer.Engine)
	assert.EqualValues(t, 1, atomic.LoadInt32(&gen.calls))
}

func TestAnswerErrorsAreNotCached(t *testing.T) {
	store := &stubStore{data: map[string]*models.YieldMetric{}}
	gen := &stubGenerator{err: apperrors.NewGeneratorUnavailableError(fmt.Errorf("down"))}
	eng := newTestEngine(store, gen)

	_, err := eng.Answer(context.Background(), "What is the rental yield in Seattle?")
	require.Error(t, err)

	// Recover the generator and ask again: the failure must not have been
	// cached.
	gen.err = nil
	answer, err := eng.Answer(context.Background(), "What is the rental yield in Seattle?")
	require.NoError(t, err)
	assert.False(t, answer.CacheHit)
	assert.Equal(t, "generated answer", answer.Content)
}

func TestAnswerComparisonRendersBothCities(t *testing.T) {
	eng := newTestEngine(seattleStore(), &stubGenerator{})

	answer, err := eng.Answer(context.Background(), "Compare Seattle and Portland rental yields")

	require.NoError(t, err)
	assert.Equal(t, models.QueryTypeLocationComparison, answer.QueryType)
	assert.Contains(t, answer.Content, "Seattle")
	assert.Contains(t, answer.Content, "Portland")
	assert.Contains(t, answer.Content, "Comparison by gross rental yield")
}

func TestAnswerDeterministicContent(t *testing.T) {
	eng := newTestEngine(seattleStore(), &stubGenerator{})

	first, err := eng.Answer(context.Background(), "Compare Seattle and Portland rental yields")
	require.NoError(t, err)

	// Fresh engine, no cache carryover: the rendered content must still be
	// byte-identical.
	eng2 := newTestEngine(seattleStore(), &stubGenerator{})
	second, err := eng2.Answer(context.Background(), "Compare Seattle and Portland rental yields")
	require.NoError(t, err)

	assert.Equal(t, first.Content, second.Content)
}
