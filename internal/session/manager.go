// Package session owns the lifetime of the active mailbox session: creating,
// resuming, switching and deleting accounts, and recovering when the remote
// API silently invalidates the credential.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	gosync "sync"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/tempmail/internal/cache"
	"github.com/nhle/tempmail/internal/mailbox"
	"github.com/nhle/tempmail/internal/model"
	"github.com/nhle/tempmail/internal/push"
	"github.com/nhle/tempmail/internal/store"
	isync "github.com/nhle/tempmail/internal/sync"
)

// ErrNoSession is returned by operations that need an active account.
var ErrNoSession = errors.New("no active session")

const (
	defaultAccountRefresh = 30 * time.Second
	defaultFetchTimeout   = 30 * time.Second
	recoveryTimeout       = time.Minute
)

// State is the session lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateAuthenticating
	StateActive
)

func (s State) String() string {
	switch s {
	case StateAuthenticating:
		return "authenticating"
	case StateActive:
		return "active"
	default:
		return "uninitialized"
	}
}

// View is the observable state of the engine.
type View struct {
	State     State
	Address   string
	AccountID string
	Origin    model.Origin
	Messages  []model.Message
	Unseen    int

	Loading    bool
	Refreshing bool

	// Expired is set after an explicit session's credential was rejected.
	// Address still shows the expired identity.
	Expired bool

	Quota     int64
	Used      int64
	CreatedAt time.Time
}

// Update is delivered to subscribers on every change. Err carries errors
// raised in the background, such as a SessionExpiredError or a failed
// automatic recovery.
type Update struct {
	View View
	Err  error
}

// Options configures a Manager. Zero values select defaults.
type Options struct {
	PollInterval           time.Duration
	AccountRefreshInterval time.Duration
	FetchTimeout           time.Duration

	// Subscription is the push channel. Nil means polling only.
	Subscription push.Subscription
	Decode       mailbox.PushDecoder

	Logger *slog.Logger

	// LocalPart and Password generate identities for new addresses.
	LocalPart func() string
	Password  func() string
}

// status is the manager-owned part of the view.
type status struct {
	state      State
	account    model.Account
	origin     model.Origin
	loading    bool
	refreshing bool
	expired    bool
}

// Manager orchestrates the token store, persistence, cache and
// synchronizer. It is the public contract consumed by the UI and CLI.
type Manager struct {
	client    mailbox.Client
	persister store.Persister
	tokens    *TokenStore
	cache     *cache.Cache
	sync      *isync.Synchronizer
	opts      Options
	logger    *slog.Logger

	// opMu serializes session-changing operations.
	opMu           gosync.Mutex
	refresherStop  context.CancelFunc
	closed         bool
	baseCtx        context.Context
	cancelBase     context.CancelFunc
	cancelCacheSub func()

	stateMu gosync.Mutex
	st      status

	persistMu gosync.Mutex

	subMu       gosync.Mutex
	subscribers map[string]func(Update)
}

// NewManager wires a Manager. Call Initialize before use.
func NewManager(client mailbox.Client, persister store.Persister, opts Options) *Manager {
	if opts.AccountRefreshInterval <= 0 {
		opts.AccountRefreshInterval = defaultAccountRefresh
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = defaultFetchTimeout
	}
	if opts.LocalPart == nil {
		opts.LocalPart = randomLocalPart
	}
	if opts.Password == nil {
		opts.Password = randomPassword
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		client:      client,
		persister:   persister,
		tokens:      &TokenStore{},
		cache:       cache.New(logger),
		opts:        opts,
		logger:      logger.With("component", "session"),
		baseCtx:     baseCtx,
		cancelBase:  cancel,
		subscribers: make(map[string]func(Update)),
	}

	m.sync = isync.New(client, m.cache, m.tokens, isync.Options{
		PollInterval:        opts.PollInterval,
		FetchTimeout:        opts.FetchTimeout,
		Subscription:        opts.Subscription,
		Decode:              opts.Decode,
		OnCredentialInvalid: m.recoverInBackground,
		OnAccountUpdate:     m.applyAccount,
		Logger:              logger,
	})
	m.cancelCacheSub = m.cache.Subscribe(func(string, []model.Message) { m.publish(nil) })

	return m
}

// Tokens exposes the read side of the credential store.
func (m *Manager) Tokens() *TokenStore {
	return m.tokens
}

// Initialize resumes the persisted session when it is still valid and
// otherwise creates a fresh address.
func (m *Manager) Initialize(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	return m.authenticate(func() error {
		snap := m.persister.Load(ctx)
		if !snap.Resumable() {
			if !snap.IsEmpty() {
				m.logger.Info("stored session incomplete, generating new address")
			}
			return m.generateLocked(ctx)
		}

		stored := snap.Account()
		me, err := m.client.Me(ctx, snap.Token)
		switch {
		case err == nil && me.ID == snap.AccountID && !me.IsDisabled && !me.IsDeleted:
			acct := *me
			acct.Token = snap.Token
			acct.Password = snap.Password
			if acct.Address == "" {
				acct.Address = stored.Address
			}
			m.logger.Info("resumed stored session", "address", acct.Address)
			return m.activateLocked(ctx, acct, snap.SessionOrigin())

		case err != nil && mailbox.IsNetwork(err):
			m.logger.Warn("could not validate stored session, resuming optimistically",
				"address", stored.Address, "error", err)
			return m.activateLocked(ctx, stored, snap.SessionOrigin())

		case err != nil:
			m.logger.Info("stored session rejected, generating new address",
				"address", stored.Address, "error", err)
		default:
			m.logger.Info("stored account unusable, generating new address", "address", stored.Address)
		}
		return m.generateLocked(ctx)
	})
}

// GenerateNewEmail replaces the session with a random new address.
func (m *Manager) GenerateNewEmail(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	return m.authenticate(func() error { return m.generateLocked(ctx) })
}

// CreateCustomEmail creates username@domain and switches to it. Input is
// validated before any network call.
func (m *Manager) CreateCustomEmail(ctx context.Context, username, domain, password string) error {
	username = strings.TrimSpace(username)
	domain = strings.TrimSpace(domain)

	switch {
	case username == "":
		return &mailbox.ValidationError{Field: "username", Message: "must not be empty"}
	case strings.Contains(username, "@"):
		return &mailbox.ValidationError{Field: "username", Message: "must not contain '@'"}
	case domain == "":
		return &mailbox.ValidationError{Field: "domain", Message: "must not be empty"}
	case len(password) < MinPasswordLength:
		return &mailbox.ValidationError{
			Field:   "password",
			Message: fmt.Sprintf("must be at least %d characters", MinPasswordLength),
		}
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	return m.authenticate(func() error {
		acct, err := m.createAccount(ctx, username+"@"+domain, password)
		if err != nil {
			return err
		}
		return m.activateLocked(ctx, acct, model.OriginCustom)
	})
}

// LoginWithCredentials switches to an existing account. On failure the
// previous session is kept; it never falls back to generating an address.
func (m *Manager) LoginWithCredentials(ctx context.Context, address, password string) error {
	address = strings.TrimSpace(address)
	if _, _, ok := model.SplitAddress(address); !ok {
		return &mailbox.ValidationError{Field: "address", Message: "must look like user@domain"}
	}
	if password == "" {
		return &mailbox.ValidationError{Field: "password", Message: "must not be empty"}
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	return m.authenticate(func() error {
		tok, err := m.client.Token(ctx, address, password)
		if err != nil {
			var authErr *mailbox.AuthenticationError
			if errors.As(err, &authErr) {
				return err
			}
			return fmt.Errorf("logging in as %s: %w", address, err)
		}

		me, err := m.client.Me(ctx, tok.Token)
		if err != nil {
			return fmt.Errorf("fetching account %s: %w", address, err)
		}

		acct := *me
		acct.Token = tok.Token
		acct.Password = password
		if acct.ID == "" {
			acct.ID = tok.AccountID
		}
		return m.activateLocked(ctx, acct, model.OriginLogin)
	})
}

// DeleteAccount removes the account remotely, tears the session down and
// immediately generates a new address. A failed remote delete leaves the
// session untouched.
func (m *Manager) DeleteAccount(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	cred, ok := m.tokens.Current()
	if !ok {
		return ErrNoSession
	}

	if err := m.client.DeleteAccount(ctx, cred.Token, cred.AccountID); err != nil {
		if mailbox.IsCredentialInvalid(err) {
			return m.recoverLocked(ctx, cred.AccountID, err)
		}
		return fmt.Errorf("deleting account %s: %w", cred.Address, err)
	}

	m.logger.Info("account deleted", "address", cred.Address)
	m.teardownLocked(ctx)

	return m.authenticate(func() error { return m.generateLocked(ctx) })
}

// RefreshAccountInfo re-fetches quota and usage for the active account.
// Network and API failures are logged and leave the last known values in
// place; only a rejected credential is reported, after recovery ran.
func (m *Manager) RefreshAccountInfo(ctx context.Context) error {
	cred, ok := m.tokens.Current()
	if !ok {
		return ErrNoSession
	}

	err := m.refreshAccount(ctx, cred.AccountID)
	if mailbox.IsCredentialInvalid(err) {
		return m.handleCredentialInvalid(ctx, cred.AccountID, err)
	}
	return nil
}

// RefreshInbox polls the inbox now and waits for the result.
func (m *Manager) RefreshInbox(ctx context.Context) error {
	b := m.sync.Binding()
	if b.AccountID == "" {
		return ErrNoSession
	}

	m.update(func(s *status) { s.refreshing = true })
	m.publish(nil)

	err := m.sync.Refresh(ctx)

	m.update(func(s *status) { s.refreshing = false })
	m.publish(nil)

	if mailbox.IsCredentialInvalid(err) {
		return m.handleCredentialInvalid(ctx, b.AccountID, err)
	}
	if errors.Is(err, isync.ErrNotRunning) {
		return ErrNoSession
	}
	return err
}

// MarkSeen marks a message read locally at once and then remotely.
func (m *Manager) MarkSeen(ctx context.Context, id string) error {
	cred, ok := m.tokens.Current()
	if !ok {
		return ErrNoSession
	}

	err := m.cache.MarkSeen(ctx, id, func(ctx context.Context, id string) error {
		return m.client.MarkSeen(ctx, cred.Token, id)
	})
	if mailbox.IsCredentialInvalid(err) {
		return m.handleCredentialInvalid(ctx, cred.AccountID, err)
	}
	return err
}

// OpenMessage fetches the full message, merges it into the cache and marks
// it read. When the API returns no body, the raw source is parsed instead.
func (m *Manager) OpenMessage(ctx context.Context, id string) (model.Message, error) {
	cred, ok := m.tokens.Current()
	if !ok {
		return model.Message{}, ErrNoSession
	}

	full, err := m.client.GetMessage(ctx, cred.Token, id)
	if err != nil {
		if mailbox.IsCredentialInvalid(err) {
			return model.Message{}, m.handleCredentialInvalid(ctx, cred.AccountID, err)
		}
		return model.Message{}, fmt.Errorf("opening message %s: %w", id, err)
	}
	if full.AccountID == "" {
		full.AccountID = cred.AccountID
	}

	if !full.HasBody() {
		m.fillFromSource(ctx, cred.Token, full)
	}

	m.cache.Merge(cred.AccountID, []model.Message{*full})

	if !full.Seen {
		if err := m.MarkSeen(ctx, id); err != nil {
			m.logger.Warn("marking opened message seen failed", "message_id", id, "error", err)
		}
	}

	if cached, ok := m.cache.Get(id); ok {
		return cached, nil
	}
	return *full, nil
}

// fillFromSource extracts bodies and attachment metadata from the raw
// message when the API returned none.
func (m *Manager) fillFromSource(ctx context.Context, token string, msg *model.Message) {
	raw, err := m.client.GetSource(ctx, token, msg.ID)
	if err != nil {
		m.logger.Debug("raw source unavailable", "message_id", msg.ID, "error", err)
		return
	}

	parsed, err := mailbox.ParseSource(raw)
	if parsed == nil {
		m.logger.Warn("parsing raw source failed", "message_id", msg.ID, "error", err)
		return
	}
	if err != nil {
		m.logger.Debug("raw source partially parsed", "message_id", msg.ID, "error", err)
	}

	msg.Text = parsed.Text
	msg.HTML = parsed.HTML
	if len(msg.Attachments) == 0 && len(parsed.Attachments) > 0 {
		msg.Attachments = parsed.Attachments
		msg.HasAttachments = true
	}
}

// ListDomains returns the active domains offered for new addresses.
func (m *Manager) ListDomains(ctx context.Context) ([]model.Domain, error) {
	domains, err := m.client.ListDomains(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing domains: %w", err)
	}

	active := make([]model.Domain, 0, len(domains))
	for _, d := range domains {
		if d.IsActive {
			active = append(active, d)
		}
	}
	return active, nil
}

// View returns the current observable state.
func (m *Manager) View() View {
	m.stateMu.Lock()
	st := m.st
	m.stateMu.Unlock()

	v := View{
		State:      st.state,
		Address:    st.account.Address,
		AccountID:  st.account.ID,
		Origin:     st.origin,
		Loading:    st.loading,
		Refreshing: st.refreshing,
		Expired:    st.expired,
		Quota:      st.account.Quota,
		Used:       st.account.Used,
		CreatedAt:  st.account.CreatedAt,
	}

	if st.account.ID != "" && m.cache.AccountID() == st.account.ID {
		v.Messages = m.cache.Messages()
		for _, msg := range v.Messages {
			if !msg.Seen {
				v.Unseen++
			}
		}
	}
	return v
}

// Subscribe registers fn for updates and returns a function removing it.
// fn is called synchronously from whichever goroutine caused the change.
func (m *Manager) Subscribe(fn func(Update)) (cancel func()) {
	id := uuid.New().String()

	m.subMu.Lock()
	m.subscribers[id] = fn
	m.subMu.Unlock()

	return func() {
		m.subMu.Lock()
		delete(m.subscribers, id)
		m.subMu.Unlock()
	}
}

// Close stops background work. Pending recoveries are discarded.
func (m *Manager) Close() {
	m.cancelBase()

	m.opMu.Lock()
	defer m.opMu.Unlock()

	if m.closed {
		return
	}
	m.closed = true
	m.stopSessionLocked()
	m.cancelCacheSub()
}

// authenticate runs fn in the Authenticating state and restores the prior
// state if fn fails.
func (m *Manager) authenticate(fn func() error) error {
	m.stateMu.Lock()
	prev := m.st
	m.st.state = StateAuthenticating
	m.st.loading = true
	m.stateMu.Unlock()
	m.publish(nil)

	err := fn()
	if err != nil {
		m.stateMu.Lock()
		if m.st.state == StateAuthenticating {
			m.st.state = prev.state
			m.st.loading = false
			if m.tokens.AccountID() != prev.account.ID {
				m.st.state = StateUninitialized
			}
		}
		m.stateMu.Unlock()
		m.publish(nil)
	}
	return err
}

// generateLocked creates a random account on the first active public
// domain and activates it.
func (m *Manager) generateLocked(ctx context.Context) error {
	domains, err := m.client.ListDomains(ctx)
	if err != nil {
		return &mailbox.AccountCreationError{Err: fmt.Errorf("listing domains: %w", err)}
	}

	domain := pickDomain(domains)
	if domain == "" {
		return &mailbox.AccountCreationError{Err: mailbox.ErrNoDomain}
	}

	acct, err := m.createAccount(ctx, m.opts.LocalPart()+"@"+domain, m.opts.Password())
	if err != nil {
		return err
	}
	return m.activateLocked(ctx, acct, model.OriginGenerated)
}

// createAccount registers address and exchanges the credentials for a
// token. Nothing is installed.
func (m *Manager) createAccount(ctx context.Context, address, password string) (model.Account, error) {
	created, err := m.client.CreateAccount(ctx, address, password)
	if err != nil {
		var createErr *mailbox.AccountCreationError
		if errors.As(err, &createErr) {
			return model.Account{}, err
		}
		return model.Account{}, &mailbox.AccountCreationError{Address: address, Err: err}
	}

	tok, err := m.client.Token(ctx, address, password)
	if err != nil {
		return model.Account{}, &mailbox.AccountCreationError{
			Address: address,
			Err:     fmt.Errorf("requesting token: %w", err),
		}
	}

	acct := *created
	acct.Token = tok.Token
	acct.Password = password
	if acct.ID == "" {
		acct.ID = tok.AccountID
	}
	if acct.Address == "" {
		acct.Address = address
	}
	m.logger.Info("account created", "address", acct.Address)
	return acct, nil
}

// activateLocked atomically replaces the active session with acct: the
// old synchronizer stops before the new one starts.
func (m *Manager) activateLocked(ctx context.Context, acct model.Account, origin model.Origin) error {
	m.stopSessionLocked()

	m.tokens.set(Credential{
		AccountID: acct.ID,
		Address:   acct.Address,
		Token:     acct.Token,
		Password:  acct.Password,
		Origin:    origin,
	})
	m.cache.Reset(acct.ID)

	m.stateMu.Lock()
	m.st = status{state: StateActive, account: acct, origin: origin, loading: true}
	m.stateMu.Unlock()

	if err := m.sync.Start(isync.Binding{AccountID: acct.ID, Token: acct.Token}); err != nil {
		return fmt.Errorf("starting synchronizer: %w", err)
	}
	m.startRefresherLocked(acct.ID)
	m.persist(ctx, acct.ID)

	if err := m.sync.Refresh(ctx); err != nil {
		m.logger.Warn("initial inbox fetch failed", "address", acct.Address, "error", err)
	}

	m.update(func(s *status) { s.loading = false })
	m.publish(nil)
	return nil
}

// teardownLocked drops the session and everything persisted for it.
func (m *Manager) teardownLocked(ctx context.Context) {
	m.stopSessionLocked()
	m.tokens.clear()
	m.cache.Reset("")

	m.persistMu.Lock()
	if err := m.persister.Clear(ctx); err != nil {
		m.logger.Warn("clearing stored session failed", "error", err)
	}
	m.persistMu.Unlock()

	m.stateMu.Lock()
	m.st = status{state: StateUninitialized}
	m.stateMu.Unlock()
	m.publish(nil)
}

func (m *Manager) stopSessionLocked() {
	m.sync.Stop()
	if m.refresherStop != nil {
		m.refresherStop()
		m.refresherStop = nil
	}
}

// startRefresherLocked runs the periodic account info refresh. It is
// cancelled without waiting so the refresher may itself trigger recovery.
func (m *Manager) startRefresherLocked(accountID string) {
	ctx, cancel := context.WithCancel(m.baseCtx)
	m.refresherStop = cancel

	go func() {
		ticker := time.NewTicker(m.opts.AccountRefreshInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			err := m.refreshAccount(ctx, accountID)
			if ctx.Err() != nil {
				return
			}
			if mailbox.IsCredentialInvalid(err) {
				m.recoverInBackground(accountID, err)
				return
			}
		}
	}()
}

// refreshAccount fetches account info and applies it if accountID is
// still active. Errors other than credential rejection are only logged.
func (m *Manager) refreshAccount(ctx context.Context, accountID string) error {
	cred, ok := m.tokens.Current()
	if !ok || cred.AccountID != accountID {
		return nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, m.opts.FetchTimeout)
	defer cancel()

	acct, err := m.client.Me(fetchCtx, cred.Token)
	if err != nil {
		if !mailbox.IsCredentialInvalid(err) {
			m.logger.Warn("account refresh failed", "address", cred.Address, "error", err)
		}
		return fmt.Errorf("refreshing account: %w", err)
	}

	m.applyAccount(accountID, *acct)
	return nil
}

// applyAccount merges refreshed account info into the active session.
func (m *Manager) applyAccount(accountID string, acct model.Account) {
	m.stateMu.Lock()
	if m.tokens.AccountID() != accountID || m.st.account.ID != accountID {
		m.stateMu.Unlock()
		return
	}
	cur := &m.st.account
	cur.Quota = acct.Quota
	cur.Used = acct.Used
	cur.IsDisabled = acct.IsDisabled
	cur.IsDeleted = acct.IsDeleted
	if !acct.CreatedAt.IsZero() {
		cur.CreatedAt = acct.CreatedAt
	}
	if !acct.UpdatedAt.IsZero() {
		cur.UpdatedAt = acct.UpdatedAt
	}
	m.stateMu.Unlock()

	m.publish(nil)
	m.persist(m.baseCtx, accountID)
}

// persist saves the snapshot of accountID if it is still active.
func (m *Manager) persist(ctx context.Context, accountID string) {
	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	cred, ok := m.tokens.Current()
	if !ok || cred.AccountID != accountID {
		return
	}

	m.stateMu.Lock()
	acct := m.st.account
	m.stateMu.Unlock()

	if err := m.persister.Save(ctx, model.SnapshotOf(acct, cred.Origin)); err != nil {
		m.logger.Warn("persisting session failed", "address", acct.Address, "error", err)
	}
}

func (m *Manager) update(fn func(*status)) {
	m.stateMu.Lock()
	fn(&m.st)
	m.stateMu.Unlock()
}

func (m *Manager) publish(err error) {
	m.subMu.Lock()
	subs := make([]func(Update), 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		subs = append(subs, fn)
	}
	m.subMu.Unlock()

	if len(subs) == 0 {
		return
	}
	u := Update{View: m.View(), Err: err}
	for _, fn := range subs {
		fn(u)
	}
}

// pickDomain returns the first active public domain.
func pickDomain(domains []model.Domain) string {
	for _, d := range domains {
		if d.IsActive && !d.IsPrivate {
			return d.Domain
		}
	}
	return ""
}
