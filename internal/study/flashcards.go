package study

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xaenox/tutor-bot/internal/models"
	"github.com/xaenox/tutor-bot/internal/storage"
	"go.uber.org/zap"
)

const (
	DefaultFlashcardsKey = "chatFlashcards"
	GeneralSubject       = "General"
)

type Flashcards struct {
	mu   sync.Mutex
	list persistedList[models.Flashcard]
	now  func() time.Time
}

func NewFlashcards(store storage.Storage, key string, logger *zap.Logger) *Flashcards {
	if key == "" {
		key = DefaultFlashcardsKey
	}
	return &Flashcards{
		list: persistedList[models.Flashcard]{store: store, key: key, items: []models.Flashcard{}, logger: logger},
		now:  time.Now,
	}
}

func (f *Flashcards) Load(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.list.load(ctx)
}

// CreateFromMessage turns a tutor answer and the question right before it
// into a new flashcard.
func (f *Flashcards) CreateFromMessage(ctx context.Context, session models.Session, messageID string) (models.Flashcard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	idx := -1
	for i, m := range session.Messages {
		if m.ID == messageID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return models.Flashcard{}, ErrMessageNotFound
	}

	answer := session.Messages[idx]
	if answer.Sender != models.SenderBot || idx == 0 || session.Messages[idx-1].Sender != models.SenderUser {
		return models.Flashcard{}, ErrNoQuestion
	}

	subject := GeneralSubject
	if answer.Subject != nil && *answer.Subject != "" {
		subject = *answer.Subject
	}

	card := models.Flashcard{
		ID:      uuid.NewString(),
		Front:   session.Messages[idx-1].Text,
		Back:    answer.Text,
		Subject: subject,
		Created: f.now(),
	}
	f.list.prepend(card)
	f.list.persist(ctx)
	return card, nil
}

// Review records one look at the card.
func (f *Flashcards) Review(ctx context.Context, id string) (models.Flashcard, bool) {
	return f.update(ctx, id, func(card *models.Flashcard) {
		reviewed := f.now()
		card.LastReviewed = &reviewed
		card.ReviewCount++
	})
}

func (f *Flashcards) ToggleMastered(ctx context.Context, id string) (models.Flashcard, bool) {
	return f.update(ctx, id, func(card *models.Flashcard) {
		card.Mastered = !card.Mastered
	})
}

func (f *Flashcards) Delete(ctx context.Context, id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i, card := range f.list.items {
		if card.ID == id {
			f.list.remove(i)
			f.list.persist(ctx)
			return true
		}
	}
	return false
}

func (f *Flashcards) List() []models.Flashcard {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.list.snapshot()
}

func (f *Flashcards) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.list.items)
}

func (f *Flashcards) update(ctx context.Context, id string, apply func(*models.Flashcard)) (models.Flashcard, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.list.items {
		if f.list.items[i].ID == id {
			apply(&f.list.items[i])
			f.list.persist(ctx)
			return f.list.items[i], true
		}
	}
	return models.Flashcard{}, false
}
