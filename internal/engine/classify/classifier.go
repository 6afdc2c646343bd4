// Package classify assigns every query exactly one QueryType via an ordered
// rule list. Rules overlap by construction, so list order encodes priority
// and the first match wins; the general-question fallback makes the
// classifier total.
package classify

import (
	"regexp"
	"strings"

	"market-insights/internal/engine/extract"
	"market-insights/internal/models"
)

type rule struct {
	name    string
	qt      models.QueryType
	matches func(text string, ents models.Entities) bool
}

// The comparison connector set deliberately includes the plain conjunction
// "and": naturally phrased comparisons ("compare seattle and portland") use
// it instead of an explicit comparison preposition.
var comparisonConnectorRe = regexp.MustCompile(`\b(?:to|with|vs\.?|versus|between|and)\b`)

var trendKeywords = []string{
	"trend", "history", "historical", "movement", "changed", "moved", "evolved",
}

var discoveryKeywords = []string{
	"find", "show me", "properties", "investment", "opportunit", "best deals",
}

var priceKeywords = []string{
	"price", "cost", "per square foot", "per sqft", "how much",
}

var yieldKeywords = []string{
	"yield", "return", "roi", "cap rate",
}

// Ordered top-to-bottom; do not reorder without revisiting the overlap
// between comparison/trend and price/yield keyword sets.
var rules = []rule{
	{"location_comparison", models.QueryTypeLocationComparison, matchesComparison},
	{"market_trend", models.QueryTypeMarketTrend, matchesTrend},
	{"investment_search", models.QueryTypeInvestmentSearch, matchesInvestment},
	{"price_analysis", models.QueryTypePriceAnalysis, matchesPrice},
	{"market_yield", models.QueryTypeMarketYield, matchesYield},
}

// Classify returns the single QueryType for a normalized query. Total and
// deterministic: the same input always yields the same variant.
func Classify(text string, ents models.Entities) models.QueryType {
	for _, r := range rules {
		if r.matches(text, ents) {
			return r.qt
		}
	}
	return models.QueryTypeGeneralQuestion
}

// matchesComparison requires a comparison verb, a connector somewhere after
// it, and at least one resolved location after the connector. The location
// requirement keeps trend queries that merely compare historical periods
// from being hijacked.
func matchesComparison(text string, ents models.Entities) bool {
	verbIdx := strings.Index(text, "compar")
	if verbIdx < 0 {
		return false
	}

	for _, loc := range comparisonConnectorRe.FindAllStringIndex(text, -1) {
		if loc[0] <= verbIdx {
			continue
		}
		for _, city := range ents.Locations {
			if idx := extract.LocationIndex(text, city); idx > loc[0] {
				return true
			}
		}
	}
	return false
}

func matchesTrend(text string, ents models.Entities) bool {
	if ents.TimeWindowMonths == 0 {
		return false
	}
	return containsAny(text, trendKeywords)
}

func matchesInvestment(text string, ents models.Entities) bool {
	if ents.Threshold == nil {
		return false
	}
	return containsAny(text, discoveryKeywords)
}

func matchesPrice(text string, _ models.Entities) bool {
	return containsAny(text, priceKeywords)
}

func matchesYield(text string, _ models.Entities) bool {
	return containsAny(text, yieldKeywords)
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
