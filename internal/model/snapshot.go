package model

import "time"

// Snapshot is the minimal persisted session state needed to resume after a
// restart. It never carries message content.
//
// The JSON layout is a single flat record; every field is optional so older
// or partially written records still load.
type Snapshot struct {
	Address   string    `json:"address,omitempty"`
	Token     string    `json:"token,omitempty"`
	AccountID string    `json:"accountId,omitempty"`
	Password  string    `json:"password,omitempty"`
	Quota     int64     `json:"quota,omitempty"`
	Used      int64     `json:"used,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`

	// Origin defaults to OriginGenerated when absent.
	Origin Origin `json:"origin,omitempty"`
}

// Resumable reports whether the snapshot holds enough to attempt resuming
// a session.
func (s Snapshot) Resumable() bool {
	return s.Token != "" && s.AccountID != "" && s.Address != ""
}

// IsEmpty reports whether nothing was persisted.
func (s Snapshot) IsEmpty() bool {
	return s == Snapshot{}
}

// SnapshotOf builds the persisted form of an active account.
func SnapshotOf(acct Account, origin Origin) Snapshot {
	return Snapshot{
		Address:   acct.Address,
		Token:     acct.Token,
		AccountID: acct.ID,
		Password:  acct.Password,
		Quota:     acct.Quota,
		Used:      acct.Used,
		CreatedAt: acct.CreatedAt,
		UpdatedAt: acct.UpdatedAt,
		Origin:    origin,
	}
}

// Account rebuilds the account described by the snapshot.
func (s Snapshot) Account() Account {
	return Account{
		ID:        s.AccountID,
		Address:   s.Address,
		Token:     s.Token,
		Password:  s.Password,
		Quota:     s.Quota,
		Used:      s.Used,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

// SessionOrigin returns the recorded origin, defaulting to generated.
func (s Snapshot) SessionOrigin() Origin {
	if s.Origin == "" {
		return OriginGenerated
	}
	return s.Origin
}
