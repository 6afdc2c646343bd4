package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"market-insights/internal/engine/extract"
	"market-insights/internal/models"
)

// classifyText runs the full extract-then-classify path on normalized text,
// which is how the engine invokes the classifier.
func classifyText(t *testing.T, raw string) models.QueryType {
	t.Helper()
	text := extract.Normalize(raw)
	return Classify(text, extract.Extract(text))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		expected models.QueryType
	}{
		{
			"yield question",
			"What is the rental yield in Seattle?",
			models.QueryTypeMarketYield,
		},
		{
			"roi phrasing",
			"ROI for condos in Miami",
			models.QueryTypeMarketYield,
		},
		{
			"comparison with and connector",
			"Compare Seattle and Portland",
			models.QueryTypeLocationComparison,
		},
		{
			"comparison with vs connector",
			"Comparing Austin vs Denver for apartments",
			models.QueryTypeLocationComparison,
		},
		{
			"comparison with to connector",
			"Compare Boston to Chicago rental markets",
			models.QueryTypeLocationComparison,
		},
		{
			"comparison beats yield keywords",
			"Compare rental yields between Seattle and Portland",
			models.QueryTypeLocationComparison,
		},
		{
			"trend with explicit window",
			"How have prices trended in Denver over the past 6 months?",
			models.QueryTypeMarketTrend,
		},
		{
			"trend with bare year",
			"Show me the price history for Austin in the last year",
			models.QueryTypeMarketTrend,
		},
		{
			"trend beats comparison without post-connector location",
			"Compare the price trend to last year",
			models.QueryTypeMarketTrend,
		},
		{
			"investment search with threshold",
			"Find properties with yield above 5% in Miami",
			models.QueryTypeInvestmentSearch,
		},
		{
			"investment discovery phrasing",
			"Show me investment opportunities over 6% return",
			models.QueryTypeInvestmentSearch,
		},
		{
			"price analysis",
			"What is the average price per square foot in Boston?",
			models.QueryTypePriceAnalysis,
		},
		{
			"how much phrasing",
			"How much does a condo cost in Chicago?",
			models.QueryTypePriceAnalysis,
		},
		{
			"general fallback",
			"Is now a good time to buy?",
			models.QueryTypeGeneralQuestion,
		},
		{
			"empty string",
			"",
			models.QueryTypeGeneralQuestion,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, classifyText(t, tt.query))
		})
	}
}

// A comparison verb without a resolved location after the connector must not
// classify as a comparison.
func TestComparisonRequiresLocationAfterConnector(t *testing.T) {
	assert.Equal(t, models.QueryTypeGeneralQuestion,
		classifyText(t, "Compare apples and oranges"))

	// Location before the verb only.
	assert.Equal(t, models.QueryTypeMarketYield,
		classifyText(t, "Seattle comparison of rental yields"))
}

func TestTrendRequiresTimeWindow(t *testing.T) {
	// Trend keyword without any time phrase falls through; "price" then wins.
	assert.Equal(t, models.QueryTypePriceAnalysis,
		classifyText(t, "What is the price trend in Seattle?"))
}

func TestInvestmentRequiresThreshold(t *testing.T) {
	// Discovery keyword without a numeric threshold is not an investment search.
	assert.Equal(t, models.QueryTypeGeneralQuestion,
		classifyText(t, "Find investment opportunities in Seattle"))
}

func TestClassifyDeterministic(t *testing.T) {
	text := extract.Normalize("Compare Seattle and Portland rental yields")
	ents := extract.Extract(text)
	first := Classify(text, ents)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Classify(text, ents))
	}
}
