// internal/models/query.go
package models

// QueryType classifies the shape of an incoming question. Exactly one
// variant is assigned per query; QueryTypeGeneralQuestion is the fallback.
type QueryType string

const (
	QueryTypeMarketYield        QueryType = "market_yield"
	QueryTypeMarketTrend        QueryType = "market_trend"
	QueryTypeLocationComparison QueryType = "location_comparison"
	QueryTypeInvestmentSearch   QueryType = "investment_search"
	QueryTypePriceAnalysis      QueryType = "price_analysis"
	QueryTypeGeneralQuestion    QueryType = "general_question"
)

// ThresholdDirection tags which side of a numeric threshold a query asks for.
type ThresholdDirection string

const (
	ThresholdAbove ThresholdDirection = "above"
	ThresholdBelow ThresholdDirection = "below"
	ThresholdEqual ThresholdDirection = "equal"
)

// Threshold is a numeric bound extracted from a query, e.g. "above 5%".
type Threshold struct {
	Value     float64            `json:"value"`
	Direction ThresholdDirection `json:"direction"`
}

// Entities holds everything the extractor pulled out of normalized text.
// Locations are canonical city names in first-mention order, deduplicated.
// PropertyType is empty when no type keyword matched. TimeWindowMonths is
// zero when no time phrase matched.
type Entities struct {
	Locations        []string   `json:"locations"`
	PropertyType     string     `json:"propertyType,omitempty"`
	TimeWindowMonths int        `json:"timeWindowMonths,omitempty"`
	Threshold        *Threshold `json:"threshold,omitempty"`
}

// ParsedQuery is the immutable result of classification. Built once per
// incoming query and never mutated afterwards.
type ParsedQuery struct {
	RawQuery       string    `json:"rawQuery"`
	NormalizedText string    `json:"normalizedText"`
	Type           QueryType `json:"queryType"`
	Entities       Entities  `json:"entities"`
}
