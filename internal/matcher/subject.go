package matcher

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/xaenox/tutor-bot/internal/models"
	"github.com/xaenox/tutor-bot/internal/textnorm"
)

// MinSubjectScore is the lowest topic score accepted by the subject stage.
const MinSubjectScore = 3

type topicRef struct {
	subject *models.Subject
	chapter *models.Chapter
	topic   *models.Topic
}

// ScoreTopic scores how well text (already normalized) refers to topic.
func ScoreTopic(text string, topic *models.Topic) int {
	name := strings.ToLower(topic.Topic)
	if name == "" {
		return 0
	}

	score := 0
	if strings.Contains(text, name) {
		score += 10
	}

	textWords := textnorm.Words(text)
	for _, tw := range textnorm.Words(name) {
		if utf8.RuneCountInString(tw) <= 2 {
			continue
		}
		for _, w := range textWords {
			if utf8.RuneCountInString(w) <= 2 {
				continue
			}
			if w == tw {
				score += 3
			} else if strings.Contains(w, tw) || strings.Contains(tw, w) {
				score += 1
			}
		}
	}

	for _, st := range topic.Subtopics {
		if st.Name != "" && strings.Contains(text, strings.ToLower(st.Name)) {
			score += 5
		}
	}
	return score
}

func (p *Pipeline) matchSubject(text string) (models.MatchResult, bool) {
	var best topicRef
	bestScore := 0

	for _, subject := range p.corpus.Subjects() {
		for ci := range subject.Chapters {
			chapter := &subject.Chapters[ci]
			for ti := range chapter.Topics {
				topic := &chapter.Topics[ti]
				if score := ScoreTopic(text, topic); score > bestScore {
					bestScore = score
					best = topicRef{subject: subject, chapter: chapter, topic: topic}
				}
			}
		}
	}

	if bestScore < MinSubjectScore {
		return models.MatchResult{}, false
	}

	return models.MatchResult{
		Answer:      formatTopicAnswer(best),
		Suggestions: Contextual(best.topic, best.chapter, best.subject, SuggestionCount),
		MatchType:   models.MatchSubject,
		Subject:     best.subject.Subject,
	}, true
}

func formatTopicAnswer(ref topicRef) string {
	var b strings.Builder
	topic := ref.topic

	fmt.Fprintf(&b, "**%s**\n\n%s\n\n", topic.Topic, topic.Brief)

	if len(topic.Subtopics) > 0 {
		b.WriteString("**Key Points:**\n\n")
		for i, st := range topic.Subtopics {
			fmt.Fprintf(&b, "%d. **%s:** %s\n\n", i+1, st.Name, st.Explanation)
		}
	}

	if len(topic.Examples) > 0 {
		b.WriteString("**Examples:**\n\n")
		for i, ex := range topic.Examples {
			fmt.Fprintf(&b, "%d. %s\n\n", i+1, ex)
		}
	}

	fmt.Fprintf(&b, "📚 Subject: %s\n📖 Chapter: %s - %s", ref.subject.Subject, ref.chapter.ChapterNo, ref.chapter.ChapterName)
	return b.String()
}
