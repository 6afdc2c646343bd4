// Package extract pulls locations, property type, time window and numeric
// thresholds out of normalized query text. Everything here is pure: no I/O,
// no shared state, safe for any number of concurrent callers.
package extract

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"market-insights/internal/models"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// Normalize case-folds and whitespace-collapses raw query text. Cache
// fingerprints are computed over this form, so two queries that differ only
// cosmetically must normalize identically.
func Normalize(raw string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(strings.ToLower(raw), " "))
}

// canonicalCities is the direct city-name dictionary. Alias entries layer on
// top and resolve to one of these.
var canonicalCities = []string{
	"san francisco",
	"los angeles",
	"new york",
	"seattle",
	"portland",
	"boston",
	"chicago",
	"austin",
	"denver",
	"miami",
	"atlanta",
	"dallas",
}

var cityAliases = map[string]string{
	"sf":            "san francisco",
	"san fran":      "san francisco",
	"nyc":           "new york",
	"new york city": "new york",
	"la":            "los angeles",
}

type locationPattern struct {
	re        *regexp.Regexp
	canonical string
}

var locationPatterns = buildLocationPatterns()

func buildLocationPatterns() []locationPattern {
	patterns := make([]locationPattern, 0, len(canonicalCities)+len(cityAliases))
	for _, city := range canonicalCities {
		patterns = append(patterns, locationPattern{
			re:        regexp.MustCompile(`\b` + regexp.QuoteMeta(city) + `\b`),
			canonical: city,
		})
	}
	for alias, canonical := range cityAliases {
		patterns = append(patterns, locationPattern{
			re:        regexp.MustCompile(`\b` + regexp.QuoteMeta(alias) + `\b`),
			canonical: canonical,
		})
	}
	return patterns
}

// propertyTypeGroups is evaluated in order: specific categories first so a
// "studio apartment" query resolves to studio, not apartment.
var propertyTypeGroups = []struct {
	propertyType string
	re           *regexp.Regexp
}{
	{"studio", regexp.MustCompile(`\bstudios?\b`)},
	{"penthouse", regexp.MustCompile(`\bpenthouses?\b`)},
	{"duplex", regexp.MustCompile(`\bduplex(?:es)?\b`)},
	{"townhouse", regexp.MustCompile(`\btownhouses?\b|\btown homes?\b`)},
	{"villa", regexp.MustCompile(`\bvillas?\b`)},
	{"condo", regexp.MustCompile(`\bcondos?\b|\bcondominiums?\b`)},
	{"house", regexp.MustCompile(`\bhouses?\b|\bhomes?\b`)},
	{"apartment", regexp.MustCompile(`\bapartments?\b|\bflats?\b`)},
}

// Bedroom-count phrasing and the bare "units" fallback both resolve to the
// default residential type.
var (
	bedroomRe  = regexp.MustCompile(`\b(?:\d+|one|two|three|four|five)[\s-]?(?:bedrooms?|br)\b`)
	unitsRe    = regexp.MustCompile(`\bunits?\b`)
	defaultRes = "apartment"
)

// timeWindowPatterns map "<N> <unit>" phrasing to months. A pattern with a
// captured numeral yields numeral x multiplier; a bare-unit pattern yields
// exactly its multiplier.
var timeWindowPatterns = []struct {
	re         *regexp.Regexp
	multiplier int
}{
	{regexp.MustCompile(`\b(\d+)\s*months?\b`), 1},
	{regexp.MustCompile(`\b(\d+)\s*years?\b`), 12},
	{regexp.MustCompile(`\b(\d+)\s*quarters?\b`), 3},
	{regexp.MustCompile(`\b(?:past|last|previous)\s+month\b`), 1},
	{regexp.MustCompile(`\b(?:past|last|previous)\s+year\b`), 12},
	{regexp.MustCompile(`\b(?:past|last|previous)\s+quarter\b`), 3},
}

var thresholdPatterns = []struct {
	re        *regexp.Regexp
	direction models.ThresholdDirection
}{
	{regexp.MustCompile(`\b(?:above|over|at least|more than|exceeding)\s+(\d+(?:\.\d+)?)\s*%`), models.ThresholdAbove},
	{regexp.MustCompile(`\b(?:below|under|less than)\s+(\d+(?:\.\d+)?)\s*%`), models.ThresholdBelow},
	{regexp.MustCompile(`\b(?:exactly|equal to)\s+(\d+(?:\.\d+)?)\s*%`), models.ThresholdEqual},
}

// Extract pulls all recognized entities out of normalized text. Unresolved
// location tokens are dropped, not surfaced as errors.
func Extract(text string) models.Entities {
	return models.Entities{
		Locations:        Locations(text),
		PropertyType:     PropertyType(text),
		TimeWindowMonths: TimeWindowMonths(text),
		Threshold:        ThresholdOf(text),
	}
}

// Locations resolves every city mention to its canonical name, ordered by
// first mention, deduplicated.
func Locations(text string) []string {
	type hit struct {
		index     int
		canonical string
	}
	var hits []hit
	for _, p := range locationPatterns {
		if loc := p.re.FindStringIndex(text); loc != nil {
			hits = append(hits, hit{index: loc[0], canonical: p.canonical})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].index < hits[j].index })

	var out []string
	seen := make(map[string]bool, len(hits))
	for _, h := range hits {
		if !seen[h.canonical] {
			seen[h.canonical] = true
			out = append(out, h.canonical)
		}
	}
	return out
}

// LocationIndex returns the earliest mention index of a canonical city in
// text, or -1 when it is not mentioned. Alias mentions count.
func LocationIndex(text, canonical string) int {
	best := -1
	for _, p := range locationPatterns {
		if p.canonical != canonical {
			continue
		}
		if loc := p.re.FindStringIndex(text); loc != nil {
			if best == -1 || loc[0] < best {
				best = loc[0]
			}
		}
	}
	return best
}

// PropertyType returns the matched property type, or empty when nothing
// matched. Group order encodes specificity.
func PropertyType(text string) string {
	for _, group := range propertyTypeGroups {
		if group.re.MatchString(text) {
			return group.propertyType
		}
	}
	if bedroomRe.MatchString(text) || unitsRe.MatchString(text) {
		return defaultRes
	}
	return ""
}

// TimeWindowMonths returns the window length in months, or zero when no time
// phrase matched.
func TimeWindowMonths(text string) int {
	for _, p := range timeWindowPatterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		// Bare-unit patterns have no capturing group: the result is the
		// multiplier itself, never multiplier x an implied count.
		if len(m) < 2 {
			return p.multiplier
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		return n * p.multiplier
	}
	return 0
}

// ThresholdOf returns the numeric threshold with its comparison direction,
// or nil when no threshold phrase matched.
func ThresholdOf(text string) *models.Threshold {
	for _, p := range thresholdPatterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		value, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		return &models.Threshold{Value: value, Direction: p.direction}
	}
	return nil
}
