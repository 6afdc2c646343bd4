// Package store is the market data layer: rental aggregates from Postgres,
// listing search from Elasticsearch, with a Redis read-through cache in
// front of the Postgres aggregates.
package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/redis/go-redis/v9"

	apperrors "market-insights/internal/common/errors"
	"market-insights/internal/common/logger"
	"market-insights/internal/models"
)

// MarketStore serves the three fetch-task lookups. All methods honor the
// caller's context deadline; cache failures degrade to direct reads.
type MarketStore struct {
	db           *sql.DB
	es           *elasticsearch.Client
	cache        *redis.Client
	listingIndex string
	cacheTTL     time.Duration
	logger       logger.Logger
}

// New creates a MarketStore. The redis client may be nil, in which case
// every read goes straight to the backing store.
func New(db *sql.DB, es *elasticsearch.Client, cache *redis.Client, listingIndex string, cacheTTL time.Duration, log logger.Logger) *MarketStore {
	return &MarketStore{
		db:           db,
		es:           es,
		cache:        cache,
		listingIndex: listingIndex,
		cacheTTL:     cacheTTL,
		logger:       log,
	}
}

const yieldQuery = `
SELECT
    AVG(p.price) AS avg_price,
    AVG(r.monthly_rent) AS avg_rent,
    AVG(r.monthly_rent * 12 / NULLIF(p.price, 0) * 100) AS gross_yield,
    COUNT(*) AS sample_size,
    MAX(r.updated_at) AS data_currency
FROM properties p
JOIN rentals r ON r.property_id = p.id
WHERE p.city = $1 AND p.property_type = $2`

const trendQuery = `
SELECT
    DATE_TRUNC('month', r.recorded_at) AS month,
    p.property_type,
    AVG(p.price) AS avg_price,
    AVG(r.monthly_rent) AS avg_rent,
    COUNT(*) AS transaction_count
FROM properties p
JOIN rentals r ON r.property_id = p.id
WHERE p.city = $1 AND r.recorded_at >= NOW() - make_interval(months => $2)
GROUP BY 1, 2
ORDER BY month DESC`

// YieldFor returns the aggregate yield metric for a city and property type.
// Zero matching rows is a not-found, not an empty metric.
func (s *MarketStore) YieldFor(ctx context.Context, location, propertyType string) (*models.YieldMetric, error) {
	cacheKey := fmt.Sprintf("store:yield:%s:%s", location, propertyType)
	var cached models.YieldMetric
	if s.readCached(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	var (
		avgPrice     sql.NullFloat64
		avgRent      sql.NullFloat64
		grossYield   sql.NullFloat64
		sampleSize   int
		dataCurrency sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, yieldQuery, location, propertyType).Scan(
		&avgPrice, &avgRent, &grossYield, &sampleSize, &dataCurrency,
	)
	if err != nil {
		return nil, fetchErr(ctx, "postgres", "yield:"+location, err)
	}
	if sampleSize == 0 {
		return nil, apperrors.NewFetchNotFoundError(
			fmt.Sprintf("no rental data for %s / %s", location, propertyType))
	}

	metric := &models.YieldMetric{
		Location:     location,
		PropertyType: propertyType,
		AvgPrice:     avgPrice.Float64,
		AvgRent:      avgRent.Float64,
		GrossYield:   grossYield.Float64,
		SampleSize:   sampleSize,
		DataCurrency: dataCurrency.Time,
	}
	s.writeCached(ctx, cacheKey, metric)
	return metric, nil
}

// TrendFor returns the monthly trend series for a city over the given
// window, newest month first.
func (s *MarketStore) TrendFor(ctx context.Context, location string, months int) (*models.TrendSeries, error) {
	cacheKey := fmt.Sprintf("store:trend:%s:%d", location, months)
	var cached models.TrendSeries
	if s.readCached(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	rows, err := s.db.QueryContext(ctx, trendQuery, location, months)
	if err != nil {
		return nil, fetchErr(ctx, "postgres", "trend:"+location, err)
	}
	defer rows.Close()

	series := &models.TrendSeries{Location: location, Months: months}
	for rows.Next() {
		var point models.TrendPoint
		if err := rows.Scan(&point.Month, &point.PropertyType, &point.AvgPrice, &point.AvgRent, &point.TransactionCount); err != nil {
			return nil, fetchErr(ctx, "postgres", "trend:"+location, err)
		}
		series.Points = append(series.Points, point)
	}
	if err := rows.Err(); err != nil {
		return nil, fetchErr(ctx, "postgres", "trend:"+location, err)
	}
	if len(series.Points) == 0 {
		return nil, apperrors.NewFetchNotFoundError(
			fmt.Sprintf("no trend data for %s over %d months", location, months))
	}

	s.writeCached(ctx, cacheKey, series)
	return series, nil
}

type listingHit struct {
	ID     string         `json:"_id"`
	Source models.Listing `json:"_source"`
}

type searchResponse struct {
	Hits struct {
		Hits []listingHit `json:"hits"`
	} `json:"hits"`
}

// SearchAbove returns listings whose gross yield meets or exceeds the
// threshold, best yield first. An empty result set is a valid answer, not an
// error.
func (s *MarketStore) SearchAbove(ctx context.Context, threshold float64, propertyType string) ([]models.Listing, error) {
	query := map[string]interface{}{
		"size": 20,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": []map[string]interface{}{
					{"range": map[string]interface{}{
						"grossYield": map[string]interface{}{"gte": threshold},
					}},
					{"term": map[string]interface{}{
						"propertyType": propertyType,
					}},
				},
			},
		},
		"sort": []map[string]interface{}{
			{"grossYield": map[string]interface{}{"order": "desc"}},
		},
	}

	var body bytes.Buffer
	if err := json.NewEncoder(&body).Encode(query); err != nil {
		return nil, apperrors.NewFetchTransportError("elasticsearch", err)
	}

	res, err := s.es.Search(
		s.es.Search.WithContext(ctx),
		s.es.Search.WithIndex(s.listingIndex),
		s.es.Search.WithBody(&body),
	)
	if err != nil {
		return nil, fetchErr(ctx, "elasticsearch", "search:"+propertyType, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		payload, _ := io.ReadAll(res.Body)
		return nil, apperrors.NewFetchTransportError("elasticsearch",
			fmt.Errorf("search returned %s: %s", res.Status(), payload))
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, apperrors.NewFetchTransportError("elasticsearch", err)
	}

	listings := make([]models.Listing, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		listing := hit.Source
		if listing.ID == "" {
			listing.ID = hit.ID
		}
		listings = append(listings, listing)
	}
	return listings, nil
}

// fetchErr classifies a data-source failure. A deadline hit, whether
// surfaced by the driver or only visible on the caller's context, is a
// per-task timeout; everything else is a transport error.
func fetchErr(ctx context.Context, source, lookup string, err error) *apperrors.StandardError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperrors.NewFetchTimeoutError(lookup)
	}
	return apperrors.NewFetchTransportError(source, err)
}

// readCached loads a JSON cache entry into dest. Any cache failure,
// including a corrupt entry, reads as a miss.
func (s *MarketStore) readCached(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	raw, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		s.logger.WithError(apperrors.NewCacheCorruptionError(key, err)).Warn(
			"dropping corrupt store cache entry", map[string]interface{}{"key": key})
		s.cache.Del(ctx, key)
		return false
	}
	return true
}

func (s *MarketStore) writeCached(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.cacheTTL).Err(); err != nil {
		s.logger.WithError(err).Debug("store cache write failed", map[string]interface{}{"key": key})
	}
}
