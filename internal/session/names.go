package session

import (
	"strings"

	"github.com/google/uuid"
)

// MinPasswordLength is the shortest password accepted for new accounts.
const MinPasswordLength = 8

const (
	localPartAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	localPartLength   = 10
)

// randomLocalPart returns a lowercase base36 mailbox name.
func randomLocalPart() string {
	var b strings.Builder
	b.Grow(localPartLength)
	for b.Len() < localPartLength {
		id := uuid.New()
		for _, c := range id {
			if b.Len() == localPartLength {
				break
			}
			b.WriteByte(localPartAlphabet[int(c)%len(localPartAlphabet)])
		}
	}
	return b.String()
}

// randomPassword returns a 32 character hex password.
func randomPassword() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
