package conversation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/xaenox/tutor-bot/internal/corpus"
	"github.com/xaenox/tutor-bot/internal/history"
	"github.com/xaenox/tutor-bot/internal/storage"
	"github.com/xaenox/tutor-bot/internal/study"
	"go.uber.org/zap"
)

type RegistryConfig struct {
	// IdleTTL is how long an owner's controller stays cached without use.
	IdleTTL         time.Duration
	CleanupInterval time.Duration
	HistoryCapacity int
}

// Registry keeps one Controller per owner (a Telegram chat, an HTTP client).
// Idle controllers are saved and dropped when their cache entry expires.
type Registry struct {
	mu     sync.Mutex
	cache  *cache.Cache
	store  storage.Storage
	corpus *corpus.Corpus
	cfg    RegistryConfig
	opts   []Option
	logger *zap.Logger
}

func NewRegistry(store storage.Storage, cfg RegistryConfig, logger *zap.Logger, opts ...Option) *Registry {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = time.Hour
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 10 * time.Minute
	}

	r := &Registry{
		cache:  cache.New(cfg.IdleTTL, cfg.CleanupInterval),
		store:  store,
		cfg:    cfg,
		opts:   opts,
		logger: logger,
	}
	r.cache.OnEvicted(func(owner string, value interface{}) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		value.(*Controller).Close(ctx)
		r.logger.Debug("Evicted idle conversation", zap.String("owner", owner))
	})
	return r
}

// OwnerKey is the storage key of one kind of owner data.
func OwnerKey(owner, kind string) string {
	return fmt.Sprintf("owner:%s:%s", owner, kind)
}

// SetCorpus installs the corpus on every cached controller and on the ones created later.
func (r *Registry) SetCorpus(c *corpus.Corpus) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.corpus = c
	for _, item := range r.cache.Items() {
		item.Object.(*Controller).SetCorpus(c)
	}
}

// Get returns the owner's controller, restoring it from storage on first use.
func (r *Registry) Get(ctx context.Context, owner string) *Controller {
	r.mu.Lock()
	defer r.mu.Unlock()

	if x, found := r.cache.Get(owner); found {
		ctrl := x.(*Controller)
		// Refresh the idle deadline.
		r.cache.Set(owner, ctrl, cache.DefaultExpiration)
		return ctrl
	}

	ctrl := NewController(
		history.NewArchive(r.store, OwnerKey(owner, "history"), r.cfg.HistoryCapacity, r.logger),
		study.NewBookmarks(r.store, OwnerKey(owner, "bookmarks"), r.logger),
		study.NewFlashcards(r.store, OwnerKey(owner, "flashcards"), r.logger),
		r.logger.With(zap.String("owner", owner)),
		r.opts...,
	)
	ctrl.Restore(ctx)
	if r.corpus != nil {
		ctrl.SetCorpus(r.corpus)
	}

	r.cache.Set(owner, ctrl, cache.DefaultExpiration)
	r.logger.Debug("Opened conversation", zap.String("owner", owner))
	return ctrl
}

func (r *Registry) Len() int {
	return r.cache.ItemCount()
}

// SaveAll archives the active session of every cached controller.
func (r *Registry) SaveAll(ctx context.Context) {
	for _, item := range r.cache.Items() {
		item.Object.(*Controller).Save(ctx)
	}
}

// Autosave calls SaveAll every interval until ctx is done.
func (r *Registry) Autosave(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.SaveAll(ctx)
		}
	}
}

// Close flushes every cached controller and empties the registry.
func (r *Registry) Close(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.SaveAll(ctx)
	r.cache.Flush()
}
