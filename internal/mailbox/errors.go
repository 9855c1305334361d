package mailbox

import (
	"errors"
	"fmt"
)

var (
	// ErrAddressTaken is matched by an AccountCreationError raised because the
	// requested address already exists.
	ErrAddressTaken = errors.New("address already taken")

	// ErrNoDomain is matched by an AccountCreationError raised because the
	// API offered no usable domain.
	ErrNoDomain = errors.New("no available domain")
)

// ValidationError reports bad local input. It is raised before any network
// call is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// AuthenticationError reports rejected login credentials.
type AuthenticationError struct {
	Address string
	Message string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed for %s: %s", e.Address, e.Message)
}

// CredentialError reports that the API rejected a bearer token (HTTP 401 on
// an authenticated call). The token must be treated as stale everywhere.
type CredentialError struct {
	Op string
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("credential rejected (401) on %s", e.Op)
}

// SessionExpiredError reports that the credential of an explicitly chosen
// identity (login or custom address) was invalidated. The engine does not
// replace such sessions on its own.
type SessionExpiredError struct {
	Address string
	Err     error
}

func (e *SessionExpiredError) Error() string {
	return fmt.Sprintf("session for %s expired; log in again", e.Address)
}

func (e *SessionExpiredError) Unwrap() error { return e.Err }

// AccountCreationError reports that a new account could not be created.
type AccountCreationError struct {
	Address string
	Taken   bool
	Err     error
}

func (e *AccountCreationError) Error() string {
	if e.Taken {
		return fmt.Sprintf("creating account %s: address already taken", e.Address)
	}
	if e.Address == "" {
		return fmt.Sprintf("creating account: %v", e.Err)
	}
	return fmt.Sprintf("creating account %s: %v", e.Address, e.Err)
}

func (e *AccountCreationError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrAddressTaken) match taken-address failures.
func (e *AccountCreationError) Is(target error) bool {
	return target == ErrAddressTaken && e.Taken
}

// NetworkError reports a transport failure talking to the API.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error on %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// StreamError reports a push-channel failure.
type StreamError struct {
	Topic string
	Err   error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("push stream %s: %v", e.Topic, e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }

// APIError is any other non-2xx answer from the API.
type APIError struct {
	Op          string
	Status      int
	Description string
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("unexpected status %d on %s", e.Status, e.Op)
	}
	return fmt.Sprintf("api error (%d) on %s: %s", e.Status, e.Op, e.Description)
}

// IsCredentialInvalid reports whether err (or any error in its chain) is a
// rejected bearer token.
func IsCredentialInvalid(err error) bool {
	var credErr *CredentialError
	return errors.As(err, &credErr)
}

// IsNetwork reports whether err (or any error in its chain) is a transport
// failure.
func IsNetwork(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// IsValidation reports whether err (or any error in its chain) is a
// ValidationError.
func IsValidation(err error) bool {
	var valErr *ValidationError
	return errors.As(err, &valErr)
}

// IsSessionExpired reports whether err (or any error in its chain) is a
// SessionExpiredError.
func IsSessionExpired(err error) bool {
	var expErr *SessionExpiredError
	return errors.As(err, &expErr)
}

// StatusOf returns the HTTP status carried by an APIError in err's chain,
// or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}
