// Package tags derives structured metadata from free-text image
// descriptions. Extraction is a pure function of the text: identical input
// always yields an identical Tags value, which keeps stored metadata
// recomputable if historical messages are ever reprocessed.
package tags

import (
	"regexp"
	"strings"
)

// Tags is the structured metadata derived from one description.
type Tags struct {
	HasText    bool `json:"has_text"`
	HasPeople  bool `json:"has_people"`
	HasAnimals bool `json:"has_animals"`
	HasFood    bool `json:"has_food"`

	IsNature bool `json:"is_nature"`
	IsUrban  bool `json:"is_urban"`
	IsIndoor bool `json:"is_indoor"`
	IsArt    bool `json:"is_art"`

	// Colors holds at most 5 matched color families, in palette order.
	Colors []string `json:"colors"`

	// Mood is never empty; when nothing matches it is ["neutral"].
	Mood []string `json:"mood"`

	// TimeOfDay is one of morning, afternoon, evening, night or unknown.
	TimeOfDay string `json:"time_of_day"`

	WordCount int `json:"word_count"`

	// VisionSupported is false when the text itself is a degraded-mode
	// fallback rather than a real description.
	VisionSupported bool `json:"vision_supported"`
}

// UnsupportedMarker appears in fallback replies produced when the provider
// cannot accept image input.
const UnsupportedMarker = "does not support"

var (
	hasTextRe    = regexp.MustCompile(`(?i)text|writing|word|letter|sign|label|caption|symbol`)
	hasPeopleRe  = regexp.MustCompile(`(?i)person|people|man|woman|child|face|human|person's`)
	hasAnimalsRe = regexp.MustCompile(`(?i)animal|dog|cat|bird|pet|wildlife|creature|mammal`)
	hasFoodRe    = regexp.MustCompile(`(?i)food|meal|dish|fruit|vegetable|drink|beverage`)

	isNatureRe = regexp.MustCompile(`(?i)nature|outdoor|sky|cloud|tree|plant|mountain|water|river|forest|field`)
	isUrbanRe  = regexp.MustCompile(`(?i)building|city|street|road|urban|architecture|vehicle|car|traffic`)
	isIndoorRe = regexp.MustCompile(`(?i)room|indoor|wall|furniture|ceiling|interior|inside|home|office`)
	isArtRe    = regexp.MustCompile(`(?i)painting|art|drawing|illustration|design|creative|artistic|sketch`)
)

// Color families are checked in this order, so Colors is ordered by palette
// position rather than position in the text.
var colorChecks = []struct {
	name string
	re   *regexp.Regexp
}{
	{"red", regexp.MustCompile(`(?i)red|scarlet|crimson|ruby|burgundy|maroon|vermilion`)},
	{"blue", regexp.MustCompile(`(?i)blue|azure|navy|cyan|sapphire|cobalt|cerulean|teal|turquoise`)},
	{"green", regexp.MustCompile(`(?i)green|emerald|lime|olive|forest|mint|sage|chartreuse`)},
	{"yellow", regexp.MustCompile(`(?i)yellow|gold|amber|lemon|mustard|saffron|canary`)},
	{"orange", regexp.MustCompile(`(?i)orange|tangerine|peach|amber|rust|pumpkin|coral`)},
	{"purple", regexp.MustCompile(`(?i)purple|violet|lavender|mauve|lilac|plum|magenta|indigo`)},
	{"pink", regexp.MustCompile(`(?i)pink|rose|magenta|salmon|fuchsia|blush|hot pink`)},
	{"brown", regexp.MustCompile(`(?i)brown|tan|beige|chocolate|copper|umber|taupe|khaki`)},
	{"black", regexp.MustCompile(`(?i)black|ebony|charcoal|onyx|jet|raven`)},
	{"white", regexp.MustCompile(`(?i)white|ivory|cream|pearl|snow|alabaster|eggshell`)},
	{"gray", regexp.MustCompile(`(?i)gray|grey|silver|ash|slate|smoke|gunmetal`)},
}

const maxColors = 5

var moodChecks = []struct {
	name string
	re   *regexp.Regexp
}{
	{"bright", regexp.MustCompile(`(?i)bright|sunny|vibrant|colorful|cheerful|happy|joyful|uplifting`)},
	{"dark", regexp.MustCompile(`(?i)dark|gloomy|moody|ominous|sad|melancholy|somber`)},
	{"calm", regexp.MustCompile(`(?i)calm|peaceful|serene|tranquil|relaxing|gentle|quiet`)},
	{"energetic", regexp.MustCompile(`(?i)energetic|dynamic|vibrant|active|lively|busy|chaotic`)},
}

var timeChecks = []struct {
	name string
	re   *regexp.Regexp
}{
	{"morning", regexp.MustCompile(`(?i)sunrise|dawn|morning|early.*day|sun.*rising`)},
	{"afternoon", regexp.MustCompile(`(?i)midday|noon|afternoon|high.*noon`)},
	{"evening", regexp.MustCompile(`(?i)sunset|dusk|evening|twilight|nightfall`)},
	{"night", regexp.MustCompile(`(?i)night|midnight|dark.*sky|stars|moon|nocturnal`)},
}

// Extract classifies a description into structured tags.
func Extract(text string) Tags {
	return Tags{
		HasText:    hasTextRe.MatchString(text),
		HasPeople:  hasPeopleRe.MatchString(text),
		HasAnimals: hasAnimalsRe.MatchString(text),
		HasFood:    hasFoodRe.MatchString(text),

		IsNature: isNatureRe.MatchString(text),
		IsUrban:  isUrbanRe.MatchString(text),
		IsIndoor: isIndoorRe.MatchString(text),
		IsArt:    isArtRe.MatchString(text),

		Colors:    extractColors(text),
		Mood:      extractMood(text),
		TimeOfDay: extractTimeOfDay(text),

		WordCount:       len(strings.Fields(text)),
		VisionSupported: !strings.Contains(text, UnsupportedMarker),
	}
}

func extractColors(text string) []string {
	colors := make([]string, 0, maxColors)
	for _, c := range colorChecks {
		if c.re.MatchString(text) {
			colors = append(colors, c.name)
			if len(colors) == maxColors {
				break
			}
		}
	}
	return colors
}

func extractMood(text string) []string {
	var moods []string
	for _, m := range moodChecks {
		if m.re.MatchString(text) {
			moods = append(moods, m.name)
		}
	}
	if len(moods) == 0 {
		moods = []string{"neutral"}
	}
	return moods
}

func extractTimeOfDay(text string) string {
	for _, t := range timeChecks {
		if t.re.MatchString(text) {
			return t.name
		}
	}
	return "unknown"
}
