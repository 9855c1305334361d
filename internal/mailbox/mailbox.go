// Package mailbox defines the contract for the remote disposable-mailbox
// API and the error kinds shared by every layer of the engine.
package mailbox

import (
	"context"

	"github.com/nhle/tempmail/internal/model"
)

// Client is the set of stateless request functions against the remote
// mailbox API. Authenticated calls take the bearer token explicitly; the
// client caches nothing.
type Client interface {
	// ListDomains returns the address suffixes available for new accounts.
	ListDomains(ctx context.Context) ([]model.Domain, error)

	// CreateAccount registers a new mailbox. The returned account carries
	// no token; exchange the credentials with Token afterwards.
	CreateAccount(ctx context.Context, address, password string) (*model.Account, error)

	// Token exchanges credentials for a bearer token. It returns an
	// *AuthenticationError when the credentials are rejected.
	Token(ctx context.Context, address, password string) (*TokenResult, error)

	// Me returns the account the token belongs to.
	Me(ctx context.Context, token string) (*model.Account, error)

	// ListMessages returns one page of message summaries, newest first.
	ListMessages(ctx context.Context, token string, page int) ([]model.Message, error)

	// GetMessage returns a message with its body and attachment descriptors.
	GetMessage(ctx context.Context, token, id string) (*model.Message, error)

	// GetSource returns the raw RFC 5322 source of a message.
	GetSource(ctx context.Context, token, id string) ([]byte, error)

	// MarkSeen flags a message as read on the server.
	MarkSeen(ctx context.Context, token, id string) error

	// DeleteAccount removes the account permanently.
	DeleteAccount(ctx context.Context, token, accountID string) error
}

// TokenResult is the outcome of a credential exchange.
type TokenResult struct {
	AccountID string
	Token     string
}

// PushUpdate is a decoded push-channel payload. At most one field is set;
// both nil means the payload carried nothing the engine tracks.
type PushUpdate struct {
	Message *model.Message
	Account *model.Account
}

// PushDecoder turns a raw push payload into a PushUpdate.
type PushDecoder func(data []byte) (PushUpdate, error)
