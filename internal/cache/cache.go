// Package cache holds the in-memory inbox of the active account.
//
// The cache is bound to exactly one account at a time. Messages are
// de-duplicated by ID, kept newest first, and subscribers are notified
// whenever the visible contents change.
package cache

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	gosync "sync"

	"github.com/google/uuid"

	"github.com/nhle/tempmail/internal/model"
)

// ErrNotFound is returned when a message id is not in the cache.
var ErrNotFound = errors.New("message not found")

// Listener receives the ordered message list after every change. It is
// called without the cache lock held.
type Listener func(accountID string, messages []model.Message)

// RemoteSeen performs the server-side read mutation for a message.
type RemoteSeen func(ctx context.Context, id string) error

// Cache is safe for concurrent use.
type Cache struct {
	logger *slog.Logger

	mu        gosync.Mutex
	accountID string
	byID      map[string]model.Message
	ordered   []model.Message
	listeners map[string]Listener
}

// New creates an empty cache bound to no account.
func New(logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		logger:    logger.With("component", "cache"),
		byID:      make(map[string]model.Message),
		listeners: make(map[string]Listener),
	}
}

// Reset drops every message and binds the cache to accountID. An empty
// accountID leaves the cache unbound.
func (c *Cache) Reset(accountID string) {
	c.mu.Lock()
	changed := c.accountID != accountID || len(c.byID) > 0
	c.accountID = accountID
	c.byID = make(map[string]model.Message)
	c.ordered = nil
	c.mu.Unlock()

	if changed {
		c.notify(accountID, nil)
	}
}

// AccountID returns the account the cache is bound to.
func (c *Cache) AccountID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accountID
}

// Merge folds incoming messages into the cache and returns the ordered
// contents. Messages for any account other than the bound one are
// discarded. Merging the same batch twice changes nothing the second time
// and notifies nobody.
func (c *Cache) Merge(accountID string, incoming []model.Message) []model.Message {
	c.mu.Lock()

	if accountID == "" || accountID != c.accountID {
		out := slices.Clone(c.ordered)
		c.mu.Unlock()
		if len(incoming) > 0 {
			c.logger.Debug("discarding messages for inactive account",
				"account_id", accountID, "count", len(incoming))
		}
		return out
	}

	changed := false
	for _, in := range incoming {
		if in.ID == "" {
			continue
		}
		if in.AccountID == "" {
			in.AccountID = accountID
		}

		existing, ok := c.byID[in.ID]
		if !ok {
			c.byID[in.ID] = in
			changed = true
			continue
		}

		merged := mergeMessage(existing, in)
		if !reflect.DeepEqual(merged, existing) {
			c.byID[in.ID] = merged
			changed = true
		}
	}

	if changed {
		c.reorder()
	}
	out := slices.Clone(c.ordered)
	c.mu.Unlock()

	if changed {
		c.notify(accountID, out)
	}
	return out
}

// MarkSeen flips the local read flag, notifies listeners, and only then
// runs the remote mutation. A remote failure is logged and returned but the
// local flag is kept. Messages that are already seen are left alone and no
// remote call is made.
func (c *Cache) MarkSeen(ctx context.Context, id string, remote RemoteSeen) error {
	c.mu.Lock()
	msg, ok := c.byID[id]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("marking %s seen: %w", id, ErrNotFound)
	}
	if msg.Seen {
		c.mu.Unlock()
		return nil
	}

	msg.Seen = true
	c.byID[id] = msg
	c.reorder()
	accountID := c.accountID
	out := slices.Clone(c.ordered)
	c.mu.Unlock()

	c.notify(accountID, out)

	if remote == nil {
		return nil
	}
	if err := remote(ctx, id); err != nil {
		c.logger.Warn("remote mark seen failed", "message_id", id, "error", err)
		return fmt.Errorf("marking %s seen remotely: %w", id, err)
	}
	return nil
}

// Messages returns the ordered contents, newest first.
func (c *Cache) Messages() []model.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.ordered)
}

// Get returns a single message.
func (c *Cache) Get(id string) (model.Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.byID[id]
	return m, ok
}

// Unseen counts messages not yet read.
func (c *Cache) Unseen() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, m := range c.ordered {
		if !m.Seen {
			n++
		}
	}
	return n
}

// Subscribe registers fn for change notifications and returns a function
// that removes it.
func (c *Cache) Subscribe(fn Listener) (cancel func()) {
	id := uuid.New().String()

	c.mu.Lock()
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// reorder rebuilds the ordered slice. Callers hold c.mu.
func (c *Cache) reorder() {
	ordered := make([]model.Message, 0, len(c.byID))
	for _, m := range c.byID {
		ordered = append(ordered, m)
	}
	slices.SortFunc(ordered, func(a, b model.Message) int {
		if d := b.CreatedAt.Compare(a.CreatedAt); d != 0 {
			return d
		}
		return cmp.Compare(a.ID, b.ID)
	})
	c.ordered = ordered
}

func (c *Cache) notify(accountID string, messages []model.Message) {
	c.mu.Lock()
	listeners := make([]Listener, 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(accountID, messages)
	}
}

// mergeMessage combines a known message with a newer observation of it.
func mergeMessage(existing, in model.Message) model.Message {
	merged := existing
	if !in.UpdatedAt.Before(existing.UpdatedAt) {
		merged = in
		if !in.HasBody() {
			merged.Text = existing.Text
			merged.HTML = existing.HTML
		}
		if len(in.Attachments) == 0 {
			merged.Attachments = existing.Attachments
		}
		if len(in.To) == 0 {
			merged.To = existing.To
		}
	} else if !existing.HasBody() && in.HasBody() {
		merged.Text = in.Text
		merged.HTML = in.HTML
		if len(existing.Attachments) == 0 {
			merged.Attachments = in.Attachments
		}
	}

	merged.Seen = existing.Seen || in.Seen
	return merged
}
