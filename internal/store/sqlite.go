package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/tempmail/internal/credential"
	"github.com/nhle/tempmail/internal/model"
)

// SQLiteStore implements Persister using a local SQLite database.
type SQLiteStore struct {
	db      *sqlx.DB
	logger  *slog.Logger
	secrets Secrets
}

var _ Persister = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations. When secrets
// is non-nil, passwords are kept there instead of in the database.
func NewSQLiteStore(dbPath string, logger *slog.Logger, secrets Secrets) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and writes
	// serialized.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:      db,
		logger:  logger.With("component", "store"),
		secrets: secrets,
	}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// Save writes snap as the stored snapshot. With secrets configured the
// password goes to the keyring only; if that fails the password is dropped
// rather than written in plain text.
func (s *SQLiteStore) Save(ctx context.Context, snap model.Snapshot) error {
	previous, _ := s.readRaw(ctx)

	if s.secrets != nil {
		if snap.Password != "" && snap.AccountID != "" {
			if err := s.secrets.Set(credential.PasswordKey(snap.AccountID), snap.Password); err != nil {
				s.logger.Warn("storing password in keyring failed, password not persisted",
					"account_id", snap.AccountID, "error", err)
			}
		}
		snap.Password = ""

		if previous.AccountID != "" && previous.AccountID != snap.AccountID {
			s.deleteSecret(previous.AccountID)
		}
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}

	const query = `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

	if _, err := s.db.ExecContext(ctx, query, SnapshotKey, string(data), time.Now().UTC()); err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}
	return nil
}

// Load returns the stored snapshot, or an empty one on any failure.
func (s *SQLiteStore) Load(ctx context.Context) model.Snapshot {
	snap, err := s.readRaw(ctx)
	if err != nil {
		s.logger.Warn("discarding unreadable snapshot", "error", err)
		return model.Snapshot{}
	}

	if s.secrets != nil && snap.AccountID != "" && snap.Password == "" {
		password, err := s.secrets.Get(credential.PasswordKey(snap.AccountID))
		switch {
		case err == nil:
			snap.Password = password
		case errors.Is(err, credential.ErrNotFound):
		default:
			s.logger.Warn("reading password from keyring failed", "account_id", snap.AccountID, "error", err)
		}
	}

	return snap
}

// Clear removes the snapshot and its keyring secret.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	previous, _ := s.readRaw(ctx)
	if s.secrets != nil && previous.AccountID != "" {
		s.deleteSecret(previous.AccountID)
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", SnapshotKey); err != nil {
		return fmt.Errorf("clearing snapshot: %w", err)
	}
	return nil
}

// readRaw returns the snapshot exactly as stored. A missing row is an
// empty snapshot, not an error.
func (s *SQLiteStore) readRaw(ctx context.Context) (model.Snapshot, error) {
	var value string
	err := s.db.GetContext(ctx, &value, "SELECT value FROM kv WHERE key = ?", SnapshotKey)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Snapshot{}, nil
	}
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("reading snapshot: %w", err)
	}

	var snap model.Snapshot
	if err := json.Unmarshal([]byte(value), &snap); err != nil {
		return model.Snapshot{}, fmt.Errorf("decoding snapshot: %w", err)
	}
	return snap, nil
}

func (s *SQLiteStore) deleteSecret(accountID string) {
	if err := s.secrets.Delete(credential.PasswordKey(accountID)); err != nil {
		s.logger.Warn("removing password from keyring failed", "account_id", accountID, "error", err)
	}
}
