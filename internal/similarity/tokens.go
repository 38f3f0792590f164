package similarity

import "strings"

// stopWords are excluded from content-overlap tokenization. The list covers
// common English function words; domain terms are deliberately kept.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"but": {}, "by": {}, "for": {}, "from": {}, "had": {}, "has": {},
	"have": {}, "he": {}, "her": {}, "his": {}, "i": {}, "in": {}, "is": {},
	"it": {}, "its": {}, "me": {}, "my": {}, "of": {}, "on": {}, "or": {},
	"our": {}, "she": {}, "so": {}, "that": {}, "the": {}, "their": {},
	"them": {}, "then": {}, "there": {}, "they": {}, "this": {}, "to": {},
	"was": {}, "we": {}, "were": {}, "will": {}, "with": {}, "you": {},
	"your": {},
}

// Tokenize splits text into lowercase alphanumeric tokens with stop words
// removed. Returns an empty set for empty input, never nil map access issues.
func Tokenize(text string) map[string]struct{} {
	tokens := make(map[string]struct{})
	if text == "" {
		return tokens
	}

	word := strings.Builder{}
	flush := func() {
		if word.Len() < 2 {
			word.Reset()
			return
		}
		w := word.String()
		word.Reset()
		if _, stop := stopWords[w]; stop {
			return
		}
		tokens[w] = struct{}{}
	}

	for _, r := range strings.ToLower(text) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			word.WriteRune(r)
			continue
		}
		flush()
	}
	flush()

	return tokens
}

// Jaccard computes |a ∩ b| / |a ∪ b| for two token sets.
// Returns 0.0 when either set is empty.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	intersection := 0
	for token := range a {
		if _, ok := b[token]; ok {
			intersection++
		}
	}

	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union)
}

// JaccardStrings computes Jaccard similarity over two string slices,
// lowercased and deduplicated.
func JaccardStrings(a, b []string) float64 {
	setA := make(map[string]struct{}, len(a))
	for _, s := range a {
		if s != "" {
			setA[strings.ToLower(s)] = struct{}{}
		}
	}
	setB := make(map[string]struct{}, len(b))
	for _, s := range b {
		if s != "" {
			setB[strings.ToLower(s)] = struct{}{}
		}
	}
	return Jaccard(setA, setB)
}
