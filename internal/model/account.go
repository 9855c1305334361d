package model

import (
	"strings"
	"time"
)

// Origin records how the active session was obtained. It decides whether a
// rejected credential is recovered automatically or reported to the user.
type Origin string

const (
	// OriginGenerated is a random disposable address created by the engine.
	OriginGenerated Origin = "generated"

	// OriginCustom is an address created with a caller-chosen identity.
	OriginCustom Origin = "custom"

	// OriginLogin is an existing account the user logged into explicitly.
	OriginLogin Origin = "login"
)

// Explicit reports whether the session came from a deliberate user identity
// rather than an auto-generated address.
func (o Origin) Explicit() bool {
	return o == OriginLogin || o == OriginCustom
}

// Account is a remote mailbox account.
type Account struct {
	// ID is the remote account identifier.
	ID string `json:"id"`

	// Address is the full `user@domain` mailbox address.
	Address string `json:"address"`

	// Token is the bearer credential. It is stale as soon as the API
	// answers 401 for it.
	Token string `json:"-"`

	// Password is only known for accounts created or logged into by the
	// engine.
	Password string `json:"-"`

	// Quota and Used are reported in bytes.
	Quota int64 `json:"quota"`
	Used  int64 `json:"used"`

	IsDisabled bool `json:"is_disabled"`
	IsDeleted  bool `json:"is_deleted"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Domain is an address suffix offered by the remote API.
type Domain struct {
	ID        string `json:"id"`
	Domain    string `json:"domain"`
	IsActive  bool   `json:"is_active"`
	IsPrivate bool   `json:"is_private"`
}

// SplitAddress splits `user@domain` into its two halves. ok is false when
// the address has no single '@' separating two non-empty parts.
func SplitAddress(address string) (local, domain string, ok bool) {
	i := strings.LastIndex(address, "@")
	if i <= 0 || i == len(address)-1 {
		return "", "", false
	}
	return address[:i], address[i+1:], true
}
