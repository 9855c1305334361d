package store

import (
	"context"

	"github.com/nhle/tempmail/internal/model"
)

// SnapshotKey is the kv row holding the session snapshot.
const SnapshotKey = "mail-storage"

// Persister durably stores the session snapshot across restarts.
type Persister interface {
	// Save replaces the stored snapshot.
	Save(ctx context.Context, snap model.Snapshot) error

	// Load returns the stored snapshot. It never fails: a missing,
	// unreadable or corrupt record yields an empty snapshot.
	Load(ctx context.Context) model.Snapshot

	// Clear removes the stored snapshot and any secret attached to it.
	Clear(ctx context.Context) error
}

// Secrets holds values that must not be written to the database.
// *credential.Secrets satisfies it.
type Secrets interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}
