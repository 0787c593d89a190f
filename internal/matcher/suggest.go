package matcher

import (
	"fmt"
	"strings"

	"github.com/xaenox/tutor-bot/internal/models"
)

// contextualSubtopics caps how many subtopics of the current topic are suggested.
const contextualSubtopics = 2

// RandomOthers returns up to count shuffled corpus questions, skipping
// exclude and case-insensitive duplicates.
func (p *Pipeline) RandomOthers(exclude string, count int) []string {
	pairs := p.corpus.Pairs()
	used := map[string]struct{}{strings.ToLower(exclude): {}}

	suggestions := make([]string, 0, count)
	for _, i := range p.shuffled(len(pairs)) {
		if len(suggestions) >= count {
			break
		}
		key := strings.ToLower(pairs[i].Question)
		if _, dup := used[key]; dup {
			continue
		}
		used[key] = struct{}{}
		suggestions = append(suggestions, pairs[i].Question)
	}
	return suggestions
}

// Random returns the first count questions of a shuffled corpus.
func (p *Pipeline) Random(count int) []string {
	pairs := p.corpus.Pairs()

	suggestions := make([]string, 0, count)
	for _, i := range p.pick(len(pairs), count) {
		suggestions = append(suggestions, pairs[i].Question)
	}
	return suggestions
}

// Contextual suggests related questions from the subject tree without any
// randomness: subtopics of the topic, sibling topics, the first topic of the
// next chapter, then topics of the remaining chapters.
func Contextual(topic *models.Topic, chapter *models.Chapter, subject *models.Subject, count int) []string {
	suggestions := make([]string, 0, count)

	for i := 0; i < len(topic.Subtopics) && i < contextualSubtopics && len(suggestions) < count; i++ {
		suggestions = append(suggestions, fmt.Sprintf("Explain %s", topic.Subtopics[i].Name))
	}

	for _, t := range chapter.Topics {
		if len(suggestions) >= count {
			break
		}
		if t.Topic != topic.Topic {
			suggestions = append(suggestions, fmt.Sprintf("What is %s?", t.Topic))
		}
	}

	if len(suggestions) < count {
		idx := -1
		for i := range subject.Chapters {
			if subject.Chapters[i].ChapterNo == chapter.ChapterNo {
				idx = i
				break
			}
		}
		if idx != -1 && idx < len(subject.Chapters)-1 {
			if next := subject.Chapters[idx+1]; len(next.Topics) > 0 {
				suggestions = append(suggestions, fmt.Sprintf("Tell me about %s", next.Topics[0].Topic))
			}
		}
	}

	for _, ch := range subject.Chapters {
		if len(suggestions) >= count {
			break
		}
		if ch.ChapterNo == chapter.ChapterNo {
			continue
		}
		for _, t := range ch.Topics {
			if len(suggestions) >= count {
				break
			}
			suggestions = append(suggestions, fmt.Sprintf("Explain %s", t.Topic))
		}
	}

	return suggestions
}

func (p *Pipeline) shuffled(n int) []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Perm(n)
}

// pick returns up to k distinct random indexes below n.
func (p *Pipeline) pick(n, k int) []int {
	idx := p.shuffled(n)
	if len(idx) > k {
		idx = idx[:k]
	}
	return idx
}
