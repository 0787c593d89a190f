package matcher

import (
	"fmt"

	"github.com/xaenox/tutor-bot/internal/models"
)

const (
	fallbackPrefix   = "I don't have specific information on that. "
	fallbackRedirect = "Try asking about Science or Social Studies topics from Class 10."

	fallbackChapters         = 2
	fallbackTopicsPerChapter = 2
)

func (p *Pipeline) fallback(text string) models.MatchResult {
	detected, ok := p.classifier.DetectSubject(text)

	result := models.MatchResult{
		MatchType: models.MatchFallback,
		Subject:   detected,
	}

	subject, hasTree := p.corpus.Subject(detected)
	if !ok || !hasTree {
		result.Answer = fallbackPrefix + fallbackRedirect
		result.Suggestions = p.Random(SuggestionCount)
		return result
	}

	result.Answer = fallbackPrefix + fmt.Sprintf("But I can help you with %s! Here are some related topics:", detected)
	result.Suggestions = []string{}

	for _, ci := range p.pick(len(subject.Chapters), fallbackChapters) {
		topics := subject.Chapters[ci].Topics
		for i := 0; i < len(topics) && i < fallbackTopicsPerChapter; i++ {
			if len(result.Suggestions) >= SuggestionCount {
				break
			}
			result.Suggestions = append(result.Suggestions, fmt.Sprintf("What is %s?", topics[i].Topic))
		}
	}
	return result
}
