// Package sync keeps the message cache in step with the remote inbox of the
// active account, by polling and, where available, a push subscription.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	gosync "sync"
	"time"

	"github.com/nhle/tempmail/internal/cache"
	"github.com/nhle/tempmail/internal/mailbox"
	"github.com/nhle/tempmail/internal/model"
	"github.com/nhle/tempmail/internal/push"
)

var (
	// ErrRunning is returned by Start when a binding is already active.
	ErrRunning = errors.New("synchronizer already running")

	// ErrNotRunning is returned by Refresh when nothing is bound.
	ErrNotRunning = errors.New("synchronizer not running")
)

// SyncState represents the current state of the poll loop.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
	// SyncStale means the credential was rejected; the loop has stopped
	// polling and waits to be replaced.
	SyncStale
)

// SyncStatus holds the state of the most recent poll.
type SyncStatus struct {
	AccountID string
	State     SyncState
	LastSync  time.Time
	Error     error
}

// fetchTimeout is the maximum time allowed for a single background fetch.
const fetchTimeout = 30 * time.Second

// defaultPollInterval applies when Options.PollInterval is unset.
const defaultPollInterval = 5 * time.Second

// ActiveAccount reports the account currently installed in the session.
// Results for any other account are dropped.
type ActiveAccount interface {
	AccountID() string
}

// Binding is the account a synchronizer run is scoped to.
type Binding struct {
	AccountID string
	Token     string
}

// Options configures a Synchronizer.
type Options struct {
	PollInterval time.Duration
	FetchTimeout time.Duration

	// Subscription is opened for /accounts/{id} on Start. Nil disables push.
	Subscription push.Subscription

	// Decode turns push payloads into updates. Required when Subscription
	// is set.
	Decode mailbox.PushDecoder

	// OnCredentialInvalid is called on its own goroutine when a background
	// call is rejected with 401.
	OnCredentialInvalid func(accountID string, err error)

	// OnAccountUpdate is called on its own goroutine for pushed account
	// changes (quota, usage).
	OnAccountUpdate func(accountID string, acct model.Account)

	Logger *slog.Logger
}

// Synchronizer runs one poll loop and one push subscription for a single
// binding at a time.
type Synchronizer struct {
	client mailbox.Client
	cache  *cache.Cache
	active ActiveAccount
	opts   Options
	logger *slog.Logger

	mu        gosync.Mutex
	binding   Binding
	running   bool
	stopCh    chan struct{}
	triggerCh chan struct{}
	done      chan struct{}
	cancel    context.CancelFunc
	status    SyncStatus

	// stale is set once the credential of the current run was reported.
	stale bool
}

// New creates a stopped Synchronizer.
func New(client mailbox.Client, c *cache.Cache, active ActiveAccount, opts Options) *Synchronizer {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = fetchTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronizer{
		client: client,
		cache:  c,
		active: active,
		opts:   opts,
		logger: logger.With("component", "sync"),
	}
}

// Start begins polling and opens the push subscription for b. The initial
// fetch is left to the caller (see Refresh).
func (s *Synchronizer) Start(b Binding) error {
	if b.AccountID == "" || b.Token == "" {
		return errors.New("starting synchronizer: account id and token are required")
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.running = true
	s.binding = b
	s.stopCh = make(chan struct{})
	s.triggerCh = make(chan struct{}, 1)
	s.done = make(chan struct{})
	s.cancel = cancel
	s.status = SyncStatus{AccountID: b.AccountID, State: SyncIdle}
	s.stale = false
	stopCh, triggerCh, done := s.stopCh, s.triggerCh, s.done
	s.mu.Unlock()

	if s.opts.Subscription != nil {
		req := push.Request{
			Topic: "/accounts/" + b.AccountID,
			Token: b.Token,
			OnRejected: func(err error) {
				s.reportStale(b, err, "push subscription")
			},
		}
		if err := s.opts.Subscription.Open(ctx, req, s.handleEvent(b)); err != nil {
			s.logger.Warn("push subscription unavailable, polling only",
				"account_id", b.AccountID, "error", err)
		}
	}

	go s.pollLoop(ctx, b, stopCh, triggerCh, done)

	s.logger.Info("synchronizer started", "account_id", b.AccountID, "interval", s.opts.PollInterval)
	return nil
}

// Stop halts the poll loop and the subscription and waits for both to
// exit. Stopping a stopped synchronizer does nothing.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.cancel()
	done := s.done
	accountID := s.binding.AccountID
	s.binding = Binding{}
	s.mu.Unlock()

	if s.opts.Subscription != nil {
		_ = s.opts.Subscription.Close()
	}
	<-done

	s.logger.Info("synchronizer stopped", "account_id", accountID)
}

// Running reports whether a binding is active.
func (s *Synchronizer) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Binding returns the active binding.
func (s *Synchronizer) Binding() Binding {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.binding
}

// Status returns the state of the most recent poll.
func (s *Synchronizer) Status() SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Refresh polls once and returns the error to the caller instead of
// routing it to OnCredentialInvalid.
func (s *Synchronizer) Refresh(ctx context.Context) error {
	s.mu.Lock()
	b, running := s.binding, s.running
	s.mu.Unlock()

	if !running {
		return ErrNotRunning
	}
	return s.poll(ctx, b)
}

// Trigger schedules an immediate background poll without waiting for it.
func (s *Synchronizer) Trigger() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	select {
	case s.triggerCh <- struct{}{}:
	default:
		// A poll is already pending.
	}
}

// pollLoop runs the ticker for one binding.
func (s *Synchronizer) pollLoop(
	ctx context.Context,
	b Binding,
	stopCh <-chan struct{},
	triggerCh <-chan struct{},
	done chan<- struct{},
) {
	defer close(done)

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
		case <-triggerCh:
		}
		if s.isStale() || !s.tick(ctx, b) {
			return
		}
	}
}

// tick performs one background poll. It returns false once the credential
// is known to be stale.
func (s *Synchronizer) tick(ctx context.Context, b Binding) bool {
	fetchCtx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
	defer cancel()

	err := s.poll(fetchCtx, b)
	if err == nil || ctx.Err() != nil {
		return true
	}

	if mailbox.IsCredentialInvalid(err) {
		s.reportStale(b, err, "background poll")
		return false
	}

	s.logger.Warn("background poll failed", "account_id", b.AccountID, "error", err)
	return true
}

// reportStale marks the run for b stale and calls OnCredentialInvalid. Only
// the first report of a run reaches the hook.
func (s *Synchronizer) reportStale(b Binding, err error, origin string) {
	s.mu.Lock()
	if s.stale || s.binding != b {
		s.mu.Unlock()
		return
	}
	s.stale = true
	s.mu.Unlock()

	s.setStatus(b, SyncStale, err)
	s.logger.Warn("credential rejected", "account_id", b.AccountID, "origin", origin)
	if s.opts.OnCredentialInvalid != nil && s.current(b) {
		go s.opts.OnCredentialInvalid(b.AccountID, err)
	}
}

func (s *Synchronizer) isStale() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stale
}

// poll fetches the first page and merges it if b is still the active
// account.
func (s *Synchronizer) poll(ctx context.Context, b Binding) error {
	s.setStatus(b, SyncRunning, nil)

	messages, err := s.client.ListMessages(ctx, b.Token, 1)
	if err != nil {
		s.setStatus(b, SyncError, err)
		return fmt.Errorf("polling inbox: %w", err)
	}

	if !s.current(b) {
		s.logger.Debug("discarding poll result for replaced account", "account_id", b.AccountID)
		return nil
	}

	s.cache.Merge(b.AccountID, messages)
	s.setStatus(b, SyncIdle, nil)
	return nil
}

// handleEvent returns the push handler scoped to b.
func (s *Synchronizer) handleEvent(b Binding) push.Handler {
	return func(ev push.Event) {
		if s.opts.Decode == nil {
			return
		}
		update, err := s.opts.Decode(ev.Data)
		if err != nil {
			s.logger.Debug("ignoring undecodable push event", "event_id", ev.ID, "error", err)
			return
		}
		if !s.current(b) {
			return
		}

		if update.Message != nil {
			s.cache.Merge(b.AccountID, []model.Message{*update.Message})
		}
		if update.Account != nil && s.opts.OnAccountUpdate != nil {
			go s.opts.OnAccountUpdate(b.AccountID, *update.Account)
		}
	}
}

// current reports whether b is still the installed account.
func (s *Synchronizer) current(b Binding) bool {
	if s.active == nil {
		return true
	}
	return s.active.AccountID() == b.AccountID
}

// setStatus updates the status if it still belongs to b.
func (s *Synchronizer) setStatus(b Binding, state SyncState, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.AccountID != b.AccountID {
		return
	}
	s.status.State = state
	s.status.Error = err
	if state == SyncIdle && err == nil {
		s.status.LastSync = time.Now()
	}
}
