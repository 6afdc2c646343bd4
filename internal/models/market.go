// internal/models/market.go
package models

import "time"

// YieldMetric is the aggregate rental-yield picture for one city.
type YieldMetric struct {
	Location     string    `json:"location"`
	PropertyType string    `json:"propertyType"`
	AvgPrice     float64   `json:"avgPrice"`
	AvgRent      float64   `json:"avgMonthlyRent"`
	GrossYield   float64   `json:"grossAnnualYield"`
	SampleSize   int       `json:"sampleSize"`
	DataCurrency time.Time `json:"dataCurrency"`
}

// TrendPoint is one month of aggregated market movement.
type TrendPoint struct {
	Month            time.Time `json:"month"`
	PropertyType     string    `json:"propertyType"`
	AvgPrice         float64   `json:"avgPrice"`
	AvgRent          float64   `json:"avgRent"`
	TransactionCount int       `json:"transactionCount"`
}

// TrendSeries is the trend lookup result, newest month first.
type TrendSeries struct {
	Location string       `json:"location"`
	Months   int          `json:"months"`
	Points   []TrendPoint `json:"points"`
}

// Listing is one investment candidate from the listing search.
type Listing struct {
	ID           string  `json:"id"`
	Location     string  `json:"location"`
	PropertyType string  `json:"propertyType"`
	Price        float64 `json:"price"`
	MonthlyRent  float64 `json:"monthlyRent"`
	GrossYield   float64 `json:"grossYield"`
	Bedrooms     int     `json:"bedrooms"`
}
