package similarity

import (
	"math"
	"strings"
)

// hierarchyPatterns signal general<->specific phrasing between two contents.
// Matching one of these in either content suggests one memory describes a
// category the other instantiates.
var hierarchyPatterns = []string{
	"types of",
	"kinds of",
	"is a kind of",
	"is a type of",
	"such as",
	"examples of",
	"for example",
	"category of",
	"subset of",
	"instance of",
	"belongs to",
}

// causalPatterns signal cause/effect connectives linking content fragments.
var causalPatterns = []string{
	"because",
	"leads to",
	"led to",
	"results in",
	"resulted in",
	"causes",
	"caused by",
	"due to",
	"therefore",
	"as a result",
	"consequently",
	"so that",
	"in order to",
}

// ConceptualHierarchy detects general<->specific phrasing between two
// contents. The base score comes from pattern matches in either content;
// shared entity mentions boost it, since hierarchy phrasing about unrelated
// subjects is noise. Returns 0.0 when neither content matches a pattern.
func ConceptualHierarchy(a, b string, sharedEntities int) float64 {
	matches := countPatternMatches(a, hierarchyPatterns) + countPatternMatches(b, hierarchyPatterns)
	if matches == 0 {
		return 0.0
	}

	// One match gives a weak signal; each additional match strengthens it.
	score := 0.4 + math.Min(float64(matches-1)*0.1, 0.2)
	score += math.Min(float64(sharedEntities)*0.15, 0.4)
	return clamp01(score)
}

// Causal detects cause/effect connective phrases in two contents, scored by
// match strength and entity co-occurrence. Returns 0.0 when neither content
// contains a causal connective.
func Causal(a, b string, sharedEntities int) float64 {
	matches := countPatternMatches(a, causalPatterns) + countPatternMatches(b, causalPatterns)
	if matches == 0 {
		return 0.0
	}

	score := 0.35 + math.Min(float64(matches-1)*0.1, 0.25)
	score += math.Min(float64(sharedEntities)*0.15, 0.4)
	return clamp01(score)
}

// countPatternMatches counts how many distinct patterns occur in text.
func countPatternMatches(text string, patterns []string) int {
	if text == "" {
		return 0
	}
	lower := strings.ToLower(text)

	count := 0
	for _, p := range patterns {
		if strings.Contains(lower, p) {
			count++
		}
	}
	return count
}
