package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/tutor-bot/internal/models"
	"github.com/xaenox/tutor-bot/internal/storage"
	"go.uber.org/zap"
)

func testSession(id, title string) models.Session {
	return models.Session{
		ID:        id,
		Title:     title,
		Timestamp: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Messages: []models.Message{
			{ID: id + "-1", Sender: models.SenderUser, Text: title, Timestamp: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		},
	}
}

// failingStorage rejects every write.
type failingStorage struct {
	storage.Storage
}

func (failingStorage) Put(ctx context.Context, key string, value []byte) error {
	return errors.New("disk full")
}

func TestSaveIgnoresEmptySessions(t *testing.T) {
	store := storage.NewMemoryStorage()
	a := NewArchive(store, "", 0, zap.NewNop())

	a.Save(context.Background(), models.Session{ID: "empty", Title: models.DefaultSessionTitle})

	assert.Equal(t, 0, a.Len())
	_, err := store.Get(context.Background(), DefaultKey)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestSaveInsertsNewestFirst(t *testing.T) {
	a := NewArchive(storage.NewMemoryStorage(), "", 0, zap.NewNop())
	ctx := context.Background()

	a.Save(ctx, testSession("a", "first"))
	a.Save(ctx, testSession("b", "second"))

	sessions := a.List()
	require.Len(t, sessions, 2)
	assert.Equal(t, "b", sessions[0].ID)
	assert.Equal(t, "a", sessions[1].ID)
}

func TestSaveUpsertKeepsPosition(t *testing.T) {
	a := NewArchive(storage.NewMemoryStorage(), "", 0, zap.NewNop())
	ctx := context.Background()

	a.Save(ctx, testSession("a", "first"))
	a.Save(ctx, testSession("b", "second"))

	updated := testSession("a", "first")
	updated.Messages = append(updated.Messages, models.Message{ID: "a-2", Sender: models.SenderBot, Text: "answer"})
	a.Save(ctx, updated)

	sessions := a.List()
	require.Len(t, sessions, 2)
	assert.Equal(t, "b", sessions[0].ID)
	assert.Equal(t, "a", sessions[1].ID)
	assert.Len(t, sessions[1].Messages, 2)
}

func TestSaveBoundedEviction(t *testing.T) {
	a := NewArchive(storage.NewMemoryStorage(), "", 0, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		a.Save(ctx, testSession(fmt.Sprintf("s%02d", i), fmt.Sprintf("question %d", i)))
	}

	sessions := a.List()
	require.Len(t, sessions, DefaultCapacity)
	assert.Equal(t, "s59", sessions[0].ID)
	assert.Equal(t, "s10", sessions[DefaultCapacity-1].ID)
	_, ok := a.Get("s09")
	assert.False(t, ok)
}

func TestSaveStoresCopy(t *testing.T) {
	a := NewArchive(storage.NewMemoryStorage(), "", 0, zap.NewNop())
	session := testSession("a", "first")

	a.Save(context.Background(), session)
	session.Messages[0].Text = "changed"

	got, ok := a.Get("a")
	require.True(t, ok)
	assert.Equal(t, "first", got.Messages[0].Text)
}

func TestArchivePersistsAndLoads(t *testing.T) {
	store := storage.NewMemoryStorage()
	ctx := context.Background()

	a := NewArchive(store, "owner:1:history", 0, zap.NewNop())
	a.Save(ctx, testSession("a", "first"))
	a.Save(ctx, testSession("b", "second"))

	reloaded := NewArchive(store, "owner:1:history", 0, zap.NewNop())
	reloaded.Load(ctx)

	assert.Equal(t, a.List(), reloaded.List())
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name string
		blob []byte
		want int
	}{
		{name: "missing blob", blob: nil, want: 0},
		{name: "corrupt blob", blob: []byte("{not json"), want: 0},
		{name: "wrong shape", blob: []byte(`{"id":"x"}`), want: 0},
		{name: "empty array", blob: []byte(`[]`), want: 0},
		{name: "valid", blob: mustJSON(t, []models.Session{testSession("a", "first")}), want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storage.NewMemoryStorage()
			ctx := context.Background()
			if tt.blob != nil {
				require.NoError(t, store.Put(ctx, DefaultKey, tt.blob))
			}

			a := NewArchive(store, "", 0, zap.NewNop())
			a.Load(ctx)

			assert.Equal(t, tt.want, a.Len())
			assert.NotNil(t, a.List())
		})
	}
}

func TestDeleteOne(t *testing.T) {
	a := NewArchive(storage.NewMemoryStorage(), "", 0, zap.NewNop())
	ctx := context.Background()
	a.Save(ctx, testSession("a", "first"))
	a.Save(ctx, testSession("b", "second"))

	assert.True(t, a.DeleteOne(ctx, "a"))
	assert.False(t, a.DeleteOne(ctx, "a"))
	assert.False(t, a.DeleteOne(ctx, "missing"))

	sessions := a.List()
	require.Len(t, sessions, 1)
	assert.Equal(t, "b", sessions[0].ID)
}

func TestDeleteAll(t *testing.T) {
	store := storage.NewMemoryStorage()
	ctx := context.Background()
	a := NewArchive(store, "", 0, zap.NewNop())
	a.Save(ctx, testSession("a", "first"))

	a.DeleteAll(ctx)

	assert.Equal(t, 0, a.Len())
	_, err := store.Get(ctx, DefaultKey)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestPersistFailureKeepsMemoryState(t *testing.T) {
	a := NewArchive(failingStorage{storage.NewMemoryStorage()}, "", 0, zap.NewNop())

	a.Save(context.Background(), testSession("a", "first"))

	assert.Equal(t, 1, a.Len())
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}
