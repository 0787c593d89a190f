package conversation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/tutor-bot/internal/storage"
	"go.uber.org/zap"
)

func TestRegistryReturnsSameControllerPerOwner(t *testing.T) {
	r := NewRegistry(storage.NewMemoryStorage(), RegistryConfig{}, zap.NewNop())
	ctx := context.Background()

	a := r.Get(ctx, "42")
	b := r.Get(ctx, "42")
	other := r.Get(ctx, "7")

	assert.Same(t, a, b)
	assert.NotSame(t, a, other)
	assert.Equal(t, 2, r.Len())
}

func TestRegistryCorpusReachesAllControllers(t *testing.T) {
	r := NewRegistry(storage.NewMemoryStorage(), RegistryConfig{}, zap.NewNop())
	ctx := context.Background()

	early := r.Get(ctx, "early")
	_, err := early.Submit(ctx, "what is gravity")
	assert.True(t, errors.Is(err, ErrNotReady))

	r.SetCorpus(testCorpus())
	late := r.Get(ctx, "late")

	assert.True(t, early.Ready())
	assert.True(t, late.Ready())
}

func TestRegistryScopesStorageByOwner(t *testing.T) {
	store := storage.NewMemoryStorage()
	r := NewRegistry(store, RegistryConfig{}, zap.NewNop())
	r.SetCorpus(testCorpus())
	ctx := context.Background()

	_, err := r.Get(ctx, "42").Submit(ctx, "what is gravity")
	require.NoError(t, err)
	r.Get(ctx, "42").NewSession(ctx)

	assert.Len(t, r.Get(ctx, "42").Sessions(), 1)
	assert.Empty(t, r.Get(ctx, "7").Sessions())

	_, err = store.Get(ctx, OwnerKey("42", "history"))
	assert.NoError(t, err)
	_, err = store.Get(ctx, OwnerKey("7", "history"))
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestRegistryCloseFlushesAndRestores(t *testing.T) {
	store := storage.NewMemoryStorage()
	ctx := context.Background()

	r := NewRegistry(store, RegistryConfig{}, zap.NewNop())
	r.SetCorpus(testCorpus())
	_, err := r.Get(ctx, "42").Submit(ctx, "what is gravity")
	require.NoError(t, err)

	r.Close(ctx)
	assert.Equal(t, 0, r.Len())

	restored := NewRegistry(store, RegistryConfig{}, zap.NewNop())
	sessions := restored.Get(ctx, "42").Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, "what is gravity", sessions[0].Title)
}

func TestRegistryEvictionSavesIdleControllers(t *testing.T) {
	store := storage.NewMemoryStorage()
	ctx := context.Background()

	r := NewRegistry(store, RegistryConfig{IdleTTL: 20 * time.Millisecond, CleanupInterval: 5 * time.Millisecond}, zap.NewNop())
	r.SetCorpus(testCorpus())
	_, err := r.Get(ctx, "42").Submit(ctx, "what is gravity")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		_, err := store.Get(ctx, OwnerKey("42", "history"))
		return err == nil
	}, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return r.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestOwnerKey(t *testing.T) {
	assert.Equal(t, "owner:42:history", OwnerKey("42", "history"))
}
