// Package history keeps the bounded, most-recent-first archive of past sessions.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/xaenox/tutor-bot/internal/models"
	"github.com/xaenox/tutor-bot/internal/storage"
	"go.uber.org/zap"
)

const (
	DefaultCapacity = 50
	DefaultKey      = "chatHistory"
)

type Archive struct {
	mu       sync.RWMutex
	store    storage.Storage
	key      string
	capacity int
	sessions []models.Session
	logger   *zap.Logger
}

func NewArchive(store storage.Storage, key string, capacity int, logger *zap.Logger) *Archive {
	if key == "" {
		key = DefaultKey
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Archive{
		store:    store,
		key:      key,
		capacity: capacity,
		sessions: []models.Session{},
		logger:   logger,
	}
}

// Load replaces the in-memory archive with the persisted one. A missing or
// unreadable blob leaves the archive empty.
func (a *Archive) Load(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.sessions = []models.Session{}

	data, err := a.store.Get(ctx, a.key)
	if errors.Is(err, storage.ErrNotFound) {
		return
	}
	if err != nil {
		a.logger.Error("Failed to read chat history", zap.String("key", a.key), zap.Error(err))
		return
	}

	var sessions []models.Session
	if err := json.Unmarshal(data, &sessions); err != nil {
		a.logger.Warn("Discarding corrupt chat history", zap.String("key", a.key), zap.Error(err))
		return
	}
	if len(sessions) > a.capacity {
		sessions = sessions[:a.capacity]
	}
	a.sessions = sessions
}

// Save archives a copy of session. Sessions without messages are ignored; a
// session already present is updated in place, otherwise it becomes the
// newest entry and the oldest ones beyond capacity are dropped.
func (a *Archive) Save(ctx context.Context, session models.Session) {
	if len(session.Messages) == 0 {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	snapshot := session.Clone()
	if i := a.indexOf(session.ID); i >= 0 {
		a.sessions[i] = snapshot
	} else {
		a.sessions = append([]models.Session{snapshot}, a.sessions...)
		if len(a.sessions) > a.capacity {
			a.sessions = a.sessions[:a.capacity]
		}
	}
	a.persist(ctx)
}

func (a *Archive) DeleteOne(ctx context.Context, id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	i := a.indexOf(id)
	if i < 0 {
		return false
	}
	a.sessions = append(a.sessions[:i], a.sessions[i+1:]...)
	a.persist(ctx)
	return true
}

func (a *Archive) DeleteAll(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.sessions = []models.Session{}
	if err := a.store.Delete(ctx, a.key); err != nil {
		a.logger.Error("Failed to delete chat history", zap.String("key", a.key), zap.Error(err))
	}
}

// List returns copies of the archived sessions, newest first.
func (a *Archive) List() []models.Session {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]models.Session, len(a.sessions))
	for i, s := range a.sessions {
		out[i] = s.Clone()
	}
	return out
}

func (a *Archive) Get(id string) (models.Session, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	i := a.indexOf(id)
	if i < 0 {
		return models.Session{}, false
	}
	return a.sessions[i].Clone(), true
}

func (a *Archive) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.sessions)
}

func (a *Archive) indexOf(id string) int {
	for i, s := range a.sessions {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// persist writes the archive; failures keep the in-memory state and are only logged.
func (a *Archive) persist(ctx context.Context) {
	data, err := json.Marshal(a.sessions)
	if err != nil {
		a.logger.Error("Failed to encode chat history", zap.Error(err))
		return
	}
	if err := a.store.Put(ctx, a.key, data); err != nil {
		a.logger.Error("Failed to persist chat history",
			zap.String("key", a.key),
			zap.Int("sessions", len(a.sessions)),
			zap.Error(err))
	}
}
