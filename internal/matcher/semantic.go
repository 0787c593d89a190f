package matcher

import (
	"strings"
	"unicode/utf8"

	"github.com/xaenox/tutor-bot/internal/models"
	"github.com/xaenox/tutor-bot/internal/textnorm"
)

// MinSemanticScore is the lowest keyword overlap score accepted by the semantic stage.
const MinSemanticScore = 3

// KeywordOverlap scores two token lists: +3 per equal pair, +1 per pair where
// one contains the other and both are longer than three runes.
func KeywordOverlap(query, question []string) int {
	score := 0
	for _, u := range query {
		for _, q := range question {
			if u == q {
				score += 3
			} else if utf8.RuneCountInString(u) > 3 && utf8.RuneCountInString(q) > 3 {
				if strings.Contains(u, q) || strings.Contains(q, u) {
					score += 1
				}
			}
		}
	}
	return score
}

func (p *Pipeline) matchSemantic(text string) (models.MatchResult, bool) {
	queryTokens := textnorm.Tokens(text)
	if len(queryTokens) == 0 {
		return models.MatchResult{}, false
	}

	best := -1
	bestScore := 0
	for i, tokens := range p.tokens {
		if score := KeywordOverlap(queryTokens, tokens); score > bestScore {
			bestScore = score
			best = i
		}
	}

	if best < 0 || bestScore < MinSemanticScore {
		return models.MatchResult{}, false
	}

	pair := p.corpus.Pairs()[best]
	return models.MatchResult{
		Answer:      pair.Answer,
		Suggestions: p.RandomOthers(pair.Question, SuggestionCount),
		MatchType:   models.MatchSemantic,
	}, true
}
