package matcher

import (
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/xaenox/tutor-bot/internal/models"
)

// FuzzyThreshold is the largest edit distance accepted for a query of the given text.
func FuzzyThreshold(text string) int {
	return max(3, int(math.Floor(float64(utf8.RuneCountInString(text))*0.3)))
}

func (p *Pipeline) matchFuzzy(text string) (models.MatchResult, bool) {
	threshold := FuzzyThreshold(text)

	best := -1
	bestDistance := math.MaxInt
	for i, q := range p.questions {
		distance := levenshtein.ComputeDistance(text, q)
		if distance < bestDistance && distance <= threshold {
			bestDistance = distance
			best = i
		}
	}

	if best < 0 {
		return models.MatchResult{}, false
	}

	pair := p.corpus.Pairs()[best]
	return models.MatchResult{
		Answer:      fmt.Sprintf("*Did you mean: \"%s\"?*\n\n%s", pair.Question, pair.Answer),
		Suggestions: p.RandomOthers(pair.Question, SuggestionCount),
		MatchType:   models.MatchFuzzy,
	}, true
}
