// Package study implements the learning aids built on top of conversations:
// bookmarks, flashcards, quizzes and usage statistics.
package study

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/xaenox/tutor-bot/internal/storage"
	"go.uber.org/zap"
)

var (
	ErrMessageNotFound = errors.New("message not found in the active session")
	ErrNoQuestion      = errors.New("flashcards need a tutor answer directly after a question")
)

// persistedList is a newest-first slice mirrored to a single storage blob.
type persistedList[T any] struct {
	store  storage.Storage
	key    string
	items  []T
	logger *zap.Logger
}

func (l *persistedList[T]) load(ctx context.Context) {
	l.items = []T{}

	data, err := l.store.Get(ctx, l.key)
	if errors.Is(err, storage.ErrNotFound) {
		return
	}
	if err != nil {
		l.logger.Error("Failed to read study data", zap.String("key", l.key), zap.Error(err))
		return
	}

	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		l.logger.Warn("Discarding corrupt study data", zap.String("key", l.key), zap.Error(err))
		return
	}
	if items != nil {
		l.items = items
	}
}

func (l *persistedList[T]) persist(ctx context.Context) {
	data, err := json.Marshal(l.items)
	if err != nil {
		l.logger.Error("Failed to encode study data", zap.String("key", l.key), zap.Error(err))
		return
	}
	if err := l.store.Put(ctx, l.key, data); err != nil {
		l.logger.Error("Failed to persist study data", zap.String("key", l.key), zap.Error(err))
	}
}

func (l *persistedList[T]) prepend(item T) {
	l.items = append([]T{item}, l.items...)
}

func (l *persistedList[T]) remove(i int) {
	l.items = append(l.items[:i], l.items[i+1:]...)
}

func (l *persistedList[T]) snapshot() []T {
	return append([]T{}, l.items...)
}
