package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"lowercases", "What Is The YIELD In Seattle?", "what is the yield in seattle?"},
		{"collapses whitespace", "yield   in \t seattle", "yield in seattle"},
		{"trims edges", "  yield in seattle  ", "yield in seattle"},
		{"already normal", "yield in seattle", "yield in seattle"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestLocations(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"single city", "rental yield in seattle", []string{"seattle"}},
		{"first mention order", "compare portland to seattle", []string{"portland", "seattle"}},
		{"alias resolves to canonical", "apartments in sf", []string{"san francisco"}},
		{"nyc alias", "prices in nyc this year", []string{"new york"}},
		{"alias and canonical dedupe", "sf versus san francisco", []string{"san francisco"}},
		{"unknown city dropped", "yield in springfield", nil},
		{"no word-boundary false positive", "last year in atlanta", []string{"atlanta"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Locations(tt.input))
		})
	}
}

func TestLocationIndex(t *testing.T) {
	text := "compare seattle with portland"
	assert.Equal(t, 8, LocationIndex(text, "seattle"))
	assert.Equal(t, 21, LocationIndex(text, "portland"))
	assert.Equal(t, -1, LocationIndex(text, "miami"))

	// Alias mentions count toward the canonical city.
	assert.Equal(t, 10, LocationIndex("condos in sf right now", "san francisco"))
}

func TestPropertyType(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain apartment", "apartment yields in miami", "apartment"},
		{"studio beats apartment", "studio apartment yields in miami", "studio"},
		{"condo", "condo prices in denver", "condo"},
		{"condominium long form", "condominium listings in denver", "condo"},
		{"townhouse", "townhouse market in austin", "townhouse"},
		{"house via homes", "homes for sale in dallas", "house"},
		{"bedroom phrasing defaults", "2-bedroom prices in boston", "apartment"},
		{"units fallback", "rental units in chicago", "apartment"},
		{"nothing matches", "market outlook for miami", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, PropertyType(tt.input))
		})
	}
}

func TestTimeWindowMonths(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int
	}{
		{"explicit months", "trend over the past 6 months", 6},
		{"explicit years", "price movement over 2 years", 24},
		{"explicit quarters", "changes over 3 quarters", 9},
		{"bare last year is twelve", "how have prices changed in the last year", 12},
		{"bare past month is one", "rent movement in the past month", 1},
		{"bare previous quarter is three", "trend in the previous quarter", 3},
		{"no window", "what is the yield in seattle", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, TimeWindowMonths(tt.input))
		})
	}
}

func TestThresholdOf(t *testing.T) {
	above := ThresholdOf("find properties with yield above 5.5%")
	if assert.NotNil(t, above) {
		assert.Equal(t, 5.5, above.Value)
		assert.Equal(t, "above", string(above.Direction))
	}

	below := ThresholdOf("show listings under 4%")
	if assert.NotNil(t, below) {
		assert.Equal(t, 4.0, below.Value)
		assert.Equal(t, "below", string(below.Direction))
	}

	atLeast := ThresholdOf("opportunities with at least 6 % return")
	if assert.NotNil(t, atLeast) {
		assert.Equal(t, 6.0, atLeast.Value)
		assert.Equal(t, "above", string(atLeast.Direction))
	}

	assert.Nil(t, ThresholdOf("what is the yield in seattle"))
	// A bare number without the percent sign is not a threshold.
	assert.Nil(t, ThresholdOf("show me more than 10 listings"))
}

func TestExtract(t *testing.T) {
	ents := Extract("find studio investments in sf and portland above 5% over the last year")

	assert.Equal(t, []string{"san francisco", "portland"}, ents.Locations)
	assert.Equal(t, "studio", ents.PropertyType)
	assert.Equal(t, 12, ents.TimeWindowMonths)
	if assert.NotNil(t, ents.Threshold) {
		assert.Equal(t, 5.0, ents.Threshold.Value)
	}
}

func TestExtractDeterministic(t *testing.T) {
	text := Normalize("Compare  Seattle AND Portland condo yields")
	first := Extract(text)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Extract(text))
	}
}
