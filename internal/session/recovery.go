package session

import (
	"context"
	"fmt"

	"github.com/nhle/tempmail/internal/mailbox"
)

// handleCredentialInvalid is the single recovery transition for a rejected
// token. Reports about an account that is no longer active are ignored, so
// concurrent reports for the same account recover once.
func (m *Manager) handleCredentialInvalid(ctx context.Context, accountID string, cause error) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if m.closed {
		return nil
	}
	return m.recoverLocked(ctx, accountID, cause)
}

// recoverInBackground runs recovery for hooks fired by background work.
// It uses the manager's own context so Close discards it.
func (m *Manager) recoverInBackground(accountID string, cause error) {
	ctx, cancel := context.WithTimeout(m.baseCtx, recoveryTimeout)
	defer cancel()

	if err := m.handleCredentialInvalid(ctx, accountID, cause); err != nil {
		m.logger.Warn("background recovery ended with error", "account_id", accountID, "error", err)
	}
}

// recoverLocked stops the stale session. Generated sessions are replaced
// with a new address; explicit identities are reported as expired.
func (m *Manager) recoverLocked(ctx context.Context, accountID string, cause error) error {
	cred, ok := m.tokens.Current()
	if !ok || cred.AccountID != accountID {
		m.logger.Debug("ignoring credential report for inactive account", "account_id", accountID)
		return nil
	}

	m.stopSessionLocked()
	m.tokens.clear()

	m.persistMu.Lock()
	if err := m.persister.Clear(ctx); err != nil {
		m.logger.Warn("clearing stale session failed", "error", err)
	}
	m.persistMu.Unlock()

	if cred.Origin.Explicit() {
		expired := &mailbox.SessionExpiredError{Address: cred.Address, Err: cause}

		m.stateMu.Lock()
		m.st.state = StateUninitialized
		m.st.loading = false
		m.st.refreshing = false
		m.st.expired = true
		m.st.account.Token = ""
		m.stateMu.Unlock()

		m.logger.Warn("session expired", "address", cred.Address, "origin", cred.Origin)
		m.publish(expired)
		return expired
	}

	m.logger.Warn("credential rejected, generating new address", "address", cred.Address)
	m.cache.Reset("")

	if err := m.authenticate(func() error { return m.generateLocked(ctx) }); err != nil {
		err = fmt.Errorf("recovering from rejected credential: %w", err)
		m.publish(err)
		return err
	}
	return nil
}
