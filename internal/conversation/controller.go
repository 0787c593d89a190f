// Package conversation ties the matcher, the active session, the history
// archive and the study features together behind one serialized controller
// per conversation owner.
package conversation

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/xaenox/tutor-bot/internal/corpus"
	"github.com/xaenox/tutor-bot/internal/history"
	"github.com/xaenox/tutor-bot/internal/matcher"
	"github.com/xaenox/tutor-bot/internal/models"
	"github.com/xaenox/tutor-bot/internal/session"
	"github.com/xaenox/tutor-bot/internal/study"
	"go.uber.org/zap"
)

var (
	ErrNotReady   = errors.New("the tutor is still loading its knowledge base")
	ErrEmptyInput = errors.New("please type a question first")
)

// Reply is the pair of messages one submission adds to the session.
type Reply struct {
	User   models.Message     `json:"user"`
	Bot    models.Message     `json:"bot"`
	Result models.MatchResult `json:"result"`
}

type Option func(*Controller)

// WithRand seeds both suggestion shuffling and quiz generation. A *rand.Rand
// is not safe for concurrent use, so give a Registry one only in tests.
func WithRand(rng *rand.Rand) Option {
	return func(c *Controller) {
		c.rng = rng
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// WithMatcherOptions forwards extra options to every pipeline the controller builds.
func WithMatcherOptions(opts ...matcher.Option) Option {
	return func(c *Controller) {
		c.matcherOpts = append(c.matcherOpts, opts...)
	}
}

type Controller struct {
	mu sync.Mutex

	pipeline   *matcher.Pipeline
	store      *session.Store
	archive    *history.Archive
	bookmarks  *study.Bookmarks
	flashcards *study.Flashcards

	rng         *rand.Rand
	now         func() time.Time
	matcherOpts []matcher.Option
	logger      *zap.Logger
}

func NewController(archive *history.Archive, bookmarks *study.Bookmarks, flashcards *study.Flashcards, logger *zap.Logger, opts ...Option) *Controller {
	c := &Controller{
		archive:    archive,
		bookmarks:  bookmarks,
		flashcards: flashcards,
		now:        time.Now,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.rng == nil {
		c.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	c.store = session.NewStore()
	c.store.SetClock(c.now)
	c.store.Clear()
	return c
}

// Restore reloads persisted state. The active session always starts empty.
func (c *Controller) Restore(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.archive.Load(ctx)
	c.bookmarks.Load(ctx)
	c.flashcards.Load(ctx)
}

// SetCorpus makes the controller ready; submissions before the first call
// are rejected with ErrNotReady.
func (c *Controller) SetCorpus(cp *corpus.Corpus) {
	c.mu.Lock()
	defer c.mu.Unlock()

	opts := append([]matcher.Option{
		matcher.WithRand(c.rng),
		matcher.WithLogger(c.logger),
	}, c.matcherOpts...)
	c.pipeline = matcher.New(cp, opts...)
}

func (c *Controller) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pipeline != nil
}

// Notice returns the degraded-corpus warning, if any.
func (c *Controller) Notice() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pipeline == nil {
		return ""
	}
	return c.pipeline.Corpus().Notice()
}

// Submit records the question, resolves it and records the answer.
func (c *Controller) Submit(ctx context.Context, text string) (Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pipeline == nil {
		return Reply{}, ErrNotReady
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Reply{}, ErrEmptyInput
	}

	user := c.store.Append(models.SenderUser, text, nil, nil)
	return c.respond(user), nil
}

// EditMessage rewrites a user message, drops everything after it and answers
// the new text. It reports false for unknown ids and bot messages.
func (c *Controller) EditMessage(ctx context.Context, id, text string) (Reply, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pipeline == nil {
		return Reply{}, false, ErrNotReady
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Reply{}, false, ErrEmptyInput
	}

	// Truncation happens before resolving so no stale answer survives the edit.
	if !c.store.EditAt(id, text) {
		return Reply{}, false, nil
	}
	user, _, _ := c.store.Find(id)
	return c.respond(user), true, nil
}

func (c *Controller) respond(user models.Message) Reply {
	result := c.pipeline.Resolve(user.Text)
	bot := c.store.Append(models.SenderBot, result.Answer, result.Suggestions, result.SubjectRef())
	return Reply{User: user, Bot: bot, Result: result}
}

func (c *Controller) DeleteMessage(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.DeleteAt(id)
}

// NewSession archives the active session and starts an empty one.
func (c *Controller) NewSession(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.archive.Save(ctx, c.store.Snapshot())
	c.store.Clear()
}

// LoadSession archives the active session and reopens an archived one.
func (c *Controller) LoadSession(ctx context.Context, id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Save first: the archived copy of the active session may be stale.
	c.archive.Save(ctx, c.store.Snapshot())
	archived, ok := c.archive.Get(id)
	if !ok {
		return false
	}
	c.store.Replace(archived)
	return true
}

// DeleteSession removes an archived session. Deleting the active session
// also starts a new one.
func (c *Controller) DeleteSession(ctx context.Context, id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	deleted := c.archive.DeleteOne(ctx, id)
	if id == c.store.ID() {
		c.store.Clear()
		return true
	}
	return deleted
}

func (c *Controller) DeleteAllSessions(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.archive.DeleteAll(ctx)
	c.store.Clear()
}

func (c *Controller) Messages() []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Messages()
}

func (c *Controller) Session() models.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Snapshot()
}

// Sessions lists the archive, newest first.
func (c *Controller) Sessions() []models.Session {
	return c.archive.List()
}

func (c *Controller) Export() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Export(c.store.Snapshot(), c.now())
}

// Save archives the active session. Repeated saves of the same session update it in place.
func (c *Controller) Save(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.archive.Save(ctx, c.store.Snapshot())
}

// Autosave saves the active session every interval until ctx is done.
func (c *Controller) Autosave(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Save(ctx)
		}
	}
}

// Close performs the final save.
func (c *Controller) Close(ctx context.Context) {
	c.Save(ctx)
}

func (c *Controller) ToggleBookmark(ctx context.Context, messageID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bookmarks.Toggle(ctx, c.store.Snapshot(), messageID)
}

func (c *Controller) Bookmarks() []models.Bookmark {
	return c.bookmarks.List()
}

func (c *Controller) DeleteBookmark(ctx context.Context, id string) bool {
	return c.bookmarks.Delete(ctx, id)
}

func (c *Controller) ClearBookmarks(ctx context.Context) {
	c.bookmarks.Clear(ctx)
}

func (c *Controller) CreateFlashcard(ctx context.Context, messageID string) (models.Flashcard, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flashcards.CreateFromMessage(ctx, c.store.Snapshot(), messageID)
}

func (c *Controller) Flashcards() []models.Flashcard {
	return c.flashcards.List()
}

// ReviewFlashcard stamps the card as reviewed now and bumps its review count.
func (c *Controller) ReviewFlashcard(ctx context.Context, id string) (models.Flashcard, bool) {
	return c.flashcards.Review(ctx, id)
}

func (c *Controller) ToggleFlashcardMastered(ctx context.Context, id string) (models.Flashcard, bool) {
	return c.flashcards.ToggleMastered(ctx, id)
}

func (c *Controller) DeleteFlashcard(ctx context.Context, id string) bool {
	return c.flashcards.Delete(ctx, id)
}

// Statistics saves the active session first so it is part of the figures.
func (c *Controller) Statistics(ctx context.Context) models.Statistics {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.archive.Save(ctx, c.store.Snapshot())
	return study.ComputeStatistics(c.archive.List(), c.bookmarks.Len(), c.flashcards.Len())
}

func (c *Controller) Quiz(subject string, count int) ([]models.QuizQuestion, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pipeline == nil {
		return nil, ErrNotReady
	}
	return study.GenerateQuiz(c.pipeline.Corpus(), subject, count, c.rng), nil
}

// Subjects names the subjects a quiz can be generated for.
func (c *Controller) Subjects() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pipeline == nil {
		return nil
	}
	return c.pipeline.Corpus().SubjectNames()
}
