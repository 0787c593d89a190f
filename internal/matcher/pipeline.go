// Package matcher resolves a user query against the corpus by running the
// matcher stages in order: exact, subject topic scoring, fuzzy edit
// distance, semantic keyword overlap and finally a contextual fallback.
//
// Every tie-break in this package keeps the first candidate in corpus
// declaration order (questions in file order, subjects in load order,
// chapters and topics in tree order).
package matcher

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/xaenox/tutor-bot/internal/classifier"
	"github.com/xaenox/tutor-bot/internal/corpus"
	"github.com/xaenox/tutor-bot/internal/models"
	"github.com/xaenox/tutor-bot/internal/textnorm"
	"go.uber.org/zap"
)

// SuggestionCount is the number of follow-up questions attached to an answer.
const SuggestionCount = 4

type Option func(*Pipeline)

// WithRand injects the random source used for shuffling suggestions.
func WithRand(rng *rand.Rand) Option {
	return func(p *Pipeline) {
		p.rng = rng
	}
}

func WithClassifier(clf classifier.Classifier) Option {
	return func(p *Pipeline) {
		p.classifier = clf
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

type Pipeline struct {
	corpus     *corpus.Corpus
	classifier classifier.Classifier
	logger     *zap.Logger

	// normalized questions and their tokens, index-aligned with corpus.Pairs()
	questions []string
	exactKeys []string
	tokens    [][]string

	mu  sync.Mutex // guards rng
	rng *rand.Rand
}

func New(c *corpus.Corpus, opts ...Option) *Pipeline {
	p := &Pipeline{
		corpus: c,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.rng == nil {
		p.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if p.classifier == nil {
		p.classifier = classifier.NewKeywordClassifier(nil)
	}

	pairs := c.Pairs()
	p.questions = make([]string, len(pairs))
	p.exactKeys = make([]string, len(pairs))
	p.tokens = make([][]string, len(pairs))
	for i, pair := range pairs {
		p.questions[i] = textnorm.Normalize(pair.Question)
		p.exactKeys[i] = exactKey(p.questions[i])
		p.tokens[i] = textnorm.Tokens(p.questions[i])
	}
	return p
}

func (p *Pipeline) Corpus() *corpus.Corpus {
	return p.corpus
}

// Resolve always returns a result; the fallback stage is the safety net.
func (p *Pipeline) Resolve(query string) models.MatchResult {
	text := textnorm.Normalize(query)

	stages := []func(string) (models.MatchResult, bool){
		p.matchExact,
		p.matchSubject,
		p.matchFuzzy,
		p.matchSemantic,
	}
	for _, stage := range stages {
		if result, ok := stage(text); ok {
			p.logResult(text, result)
			return result
		}
	}

	result := p.fallback(text)
	p.logResult(text, result)
	return result
}

// exactKey ignores terminal punctuation so "What is X?" equals "what is x".
func exactKey(normalized string) string {
	return strings.TrimRight(normalized, "?!. ")
}

func (p *Pipeline) matchExact(text string) (models.MatchResult, bool) {
	key := exactKey(text)
	for i, k := range p.exactKeys {
		if k == key {
			pair := p.corpus.Pairs()[i]
			return models.MatchResult{
				Answer:      pair.Answer,
				Suggestions: p.RandomOthers(pair.Question, SuggestionCount),
				MatchType:   models.MatchExact,
			}, true
		}
	}
	return models.MatchResult{}, false
}

func (p *Pipeline) logResult(text string, result models.MatchResult) {
	p.logger.Debug("Resolved query",
		zap.String("query", text),
		zap.String("match_type", string(result.MatchType)),
		zap.String("subject", result.Subject),
		zap.Int("suggestions", len(result.Suggestions)))
}
