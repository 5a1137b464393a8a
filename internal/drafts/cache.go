package drafts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/terra-clan/contest-client/internal/models"
	"github.com/terra-clan/contest-client/internal/storage"
)

// Templates supplies the starter code for a language
type Templates interface {
	Body(lang models.Language) string
}

// Key builds the storage key of a draft
func Key(contestID, problemID int64, lang models.Language) string {
	return fmt.Sprintf("code_%d_%d_%s", contestID, problemID, lang)
}

// Cache maps (contest, problem, language) to source text.
// Writes go to the store best-effort. Only texts the store does not hold
// (a failed persist, or an empty draft) are kept in memory, where they win
// over the store; everything else is read back from the store so writes by
// other processes show up.
type Cache struct {
	store     storage.Store
	templates Templates

	mu    sync.RWMutex
	local map[string]string
}

// NewCache creates a draft cache on top of a store
func NewCache(store storage.Store, templates Templates) *Cache {
	return &Cache{
		store:     store,
		templates: templates,
		local:     make(map[string]string),
	}
}

// Get returns the draft for the key triple, or the language template if there is none
func (c *Cache) Get(ctx context.Context, contestID, problemID int64, lang models.Language) string {
	key := Key(contestID, problemID, lang)

	c.mu.RLock()
	text, ok := c.local[key]
	c.mu.RUnlock()
	if ok {
		return text
	}

	stored, err := c.store.Get(ctx, key)
	switch {
	case err == nil && stored != "":
		return stored
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		slog.Warn("failed to read draft", "key", key, "error", err)
	}

	return c.templates.Body(lang)
}

// Set records the draft. It never fails: storage errors are logged and dropped.
// Empty text is kept in memory only, so after a restart the template comes back.
func (c *Cache) Set(ctx context.Context, contestID, problemID int64, lang models.Language, text string) {
	key := Key(contestID, problemID, lang)

	if text == "" {
		c.keepLocal(key, text)
		if err := c.store.Delete(ctx, key); err != nil {
			slog.Warn("failed to clear draft", "key", key, "error", err)
		}
		return
	}

	if err := c.store.Set(ctx, key, text); err != nil {
		slog.Warn("failed to persist draft", "key", key, "error", err)
		c.keepLocal(key, text)
		return
	}

	c.mu.Lock()
	delete(c.local, key)
	c.mu.Unlock()
}

func (c *Cache) keepLocal(key, text string) {
	c.mu.Lock()
	c.local[key] = text
	c.mu.Unlock()
}
