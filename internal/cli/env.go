package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/nhle/tempmail/internal/credential"
	"github.com/nhle/tempmail/internal/mailbox"
	"github.com/nhle/tempmail/internal/mailbox/mailtm"
	"github.com/nhle/tempmail/internal/model"
	"github.com/nhle/tempmail/internal/push"
	"github.com/nhle/tempmail/internal/session"
	"github.com/nhle/tempmail/internal/store"
)

// Env holds the collaborators commands run against. Nil fields are built
// from the loaded configuration on first use.
type Env struct {
	ConfigPath string
	Config     *model.AppConfig
	Logger     *slog.Logger

	Client       mailbox.Client
	Persister    store.Persister
	Subscription push.Subscription
	Decode       mailbox.PushDecoder

	// Stdin is read for prompts when it is not a terminal.
	Stdin io.Reader

	// LogToStderr sends logs to stderr instead of the log file.
	LogToStderr bool

	lines   *bufio.Reader
	closers []func() error
}

// loadConfig reads the configuration once.
func (e *Env) loadConfig() (*model.AppConfig, error) {
	if e.Config != nil {
		return e.Config, nil
	}
	path := e.ConfigPath
	if path == "" {
		path = model.DefaultConfigPath()
	}
	cfg, err := model.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	e.Config = cfg
	return cfg, nil
}

// setupLogger writes logs to the configured file so they do not corrupt
// the terminal UI.
func (e *Env) setupLogger(cfg *model.AppConfig) error {
	if e.Logger != nil {
		return nil
	}
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Log.Level)}

	if e.LogToStderr || cfg.Log.Path == "" {
		e.Logger = slog.New(slog.NewTextHandler(os.Stderr, opts))
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Log.Path), 0o700); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(cfg.Log.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("opening log file %s: %w", cfg.Log.Path, err)
	}
	e.closers = append(e.closers, f.Close)
	e.Logger = slog.New(slog.NewTextHandler(f, opts))
	return nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// openManager wires the session manager from the environment.
func (e *Env) openManager() (*session.Manager, error) {
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	if err := e.setupLogger(cfg); err != nil {
		return nil, err
	}
	logger := e.Logger

	if e.Client == nil {
		adapter := mailtm.NewAdapter(cfg.API.BaseURL, cfg.API.Timeout())
		e.Client = adapter
		if e.Decode == nil {
			e.Decode = adapter.DecodePush
		}
	}

	if e.Persister == nil {
		var secrets store.Secrets
		if cfg.Storage.UseKeyring {
			s, err := credential.Open()
			if err != nil {
				logger.Warn("keyring unavailable, passwords are not persisted", "error", err)
			} else {
				secrets = s
			}
		}
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.DBPath), 0o700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		db, err := store.NewSQLiteStore(cfg.Storage.DBPath, logger, secrets)
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, db.Close)
		e.Persister = db
	}

	if e.Subscription == nil {
		if cfg.Sync.PushEnabled && cfg.API.MercureURL != "" && e.Decode != nil {
			e.Subscription = push.NewMercure(cfg.API.MercureURL, push.Backoff{
				Initial:     cfg.Sync.ReconnectInitial(),
				Max:         cfg.Sync.ReconnectMax(),
				Factor:      2,
				MaxAttempts: cfg.Sync.ReconnectMaxAttempts,
			}, logger)
		} else {
			e.Subscription = push.Polling{}
		}
	}

	mgr := session.NewManager(e.Client, e.Persister, session.Options{
		PollInterval:           cfg.Sync.PollInterval(),
		AccountRefreshInterval: cfg.Sync.AccountRefreshInterval(),
		FetchTimeout:           cfg.API.Timeout(),
		Subscription:           e.Subscription,
		Decode:                 e.Decode,
		Logger:                 logger,
	})
	e.closers = append(e.closers, func() error {
		mgr.Close()
		return nil
	})
	return mgr, nil
}

// openSession wires the manager and restores or creates the session.
func (e *Env) openSession(ctx context.Context) (*session.Manager, error) {
	mgr, err := e.openManager()
	if err != nil {
		return nil, err
	}
	if err := mgr.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("initializing session: %w", err)
	}
	return mgr, nil
}

// Close releases everything opened by the environment, newest first.
func (e *Env) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	return errors.Join(errs...)
}
