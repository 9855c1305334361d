package mailtm

import "time"

// collection is a JSON-LD (Hydra) paginated collection.
type collection[T any] struct {
	Members    []T `json:"hydra:member"`
	TotalItems int `json:"hydra:totalItems"`
}

// errorResponse is the error body returned by the API. Validation failures
// use hydra:description; auth failures use message.
type errorResponse struct {
	Description string `json:"hydra:description"`
	Detail      string `json:"detail"`
	Message     string `json:"message"`
}

// Domain is an address suffix.
type Domain struct {
	ID        string    `json:"id"`
	Domain    string    `json:"domain"`
	IsActive  bool      `json:"isActive"`
	IsPrivate bool      `json:"isPrivate"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Account is the account resource returned by /accounts and /me.
type Account struct {
	Type       string    `json:"@type,omitempty"`
	ID         string    `json:"id"`
	Address    string    `json:"address"`
	Quota      int64     `json:"quota"`
	Used       int64     `json:"used"`
	IsDisabled bool      `json:"isDisabled"`
	IsDeleted  bool      `json:"isDeleted"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// credentials is the body of POST /accounts and POST /token.
type credentials struct {
	Address  string `json:"address"`
	Password string `json:"password"`
}

// TokenResponse is the body returned by POST /token.
type TokenResponse struct {
	ID    string `json:"id"`
	Token string `json:"token"`
}

// Address is a sender or recipient.
type Address struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

// Attachment describes a message attachment.
type Attachment struct {
	ID               string `json:"id"`
	Filename         string `json:"filename"`
	ContentType      string `json:"contentType"`
	Disposition      string `json:"disposition"`
	TransferEncoding string `json:"transferEncoding"`
	Related          bool   `json:"related"`
	Size             int64  `json:"size"`
	DownloadURL      string `json:"downloadUrl"`
}

// Message is both the summary returned by GET /messages and the full
// resource returned by GET /messages/{id}; body fields are only present on
// the latter.
type Message struct {
	Type           string       `json:"@type,omitempty"`
	ID             string       `json:"id"`
	AccountID      string       `json:"accountId"`
	MsgID          string       `json:"msgid"`
	From           Address      `json:"from"`
	To             []Address    `json:"to"`
	Subject        string       `json:"subject"`
	Intro          string       `json:"intro"`
	Seen           bool         `json:"seen"`
	IsDeleted      bool         `json:"isDeleted"`
	HasAttachments bool         `json:"hasAttachments"`
	Size           int64        `json:"size"`
	DownloadURL    string       `json:"downloadUrl"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
	Text           string       `json:"text"`
	HTML           []string     `json:"html"`
	Attachments    []Attachment `json:"attachments"`
}

// seenPatch is the merge-patch body of PATCH /messages/{id}.
type seenPatch struct {
	Seen bool `json:"seen"`
}

// envelope peeks at the JSON-LD type of a push payload.
type envelope struct {
	Type string `json:"@type"`
}
