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

const DefaultBookmarksKey = "chatBookmarks"

type Bookmarks struct {
	mu   sync.Mutex
	list persistedList[models.Bookmark]
	now  func() time.Time
}

func NewBookmarks(store storage.Storage, key string, logger *zap.Logger) *Bookmarks {
	if key == "" {
		key = DefaultBookmarksKey
	}
	return &Bookmarks{
		list: persistedList[models.Bookmark]{store: store, key: key, items: []models.Bookmark{}, logger: logger},
		now:  time.Now,
	}
}

func (b *Bookmarks) Load(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.list.load(ctx)
}

// Toggle bookmarks the message of session with messageID, or removes the
// bookmark when one exists. It reports whether the message is now bookmarked.
func (b *Bookmarks) Toggle(ctx context.Context, session models.Session, messageID string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var msg *models.Message
	for i := range session.Messages {
		if session.Messages[i].ID == messageID {
			msg = &session.Messages[i]
			break
		}
	}
	if msg == nil {
		return false, ErrMessageNotFound
	}

	for i, existing := range b.list.items {
		if existing.MessageID == messageID {
			b.list.remove(i)
			b.list.persist(ctx)
			return false, nil
		}
	}

	b.list.prepend(models.Bookmark{
		ID:           uuid.NewString(),
		MessageID:    messageID,
		Text:         msg.Text,
		Timestamp:    b.now(),
		SessionID:    session.ID,
		SessionTitle: session.Title,
	})
	b.list.persist(ctx)
	return true, nil
}

func (b *Bookmarks) Delete(ctx context.Context, id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, existing := range b.list.items {
		if existing.ID == id {
			b.list.remove(i)
			b.list.persist(ctx)
			return true
		}
	}
	return false
}

func (b *Bookmarks) Clear(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.list.items = []models.Bookmark{}
	b.list.persist(ctx)
}

func (b *Bookmarks) List() []models.Bookmark {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.list.snapshot()
}

func (b *Bookmarks) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.list.items)
}
