package model

import "time"

// EmailAddress is a single mailbox with an optional display name.
type EmailAddress struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

// String renders the address as `Name <address>` when a name is present.
func (a EmailAddress) String() string {
	if a.Name == "" {
		return a.Address
	}
	return a.Name + " <" + a.Address + ">"
}

// Attachment describes a file attached to a message. The bytes are never
// held here; DownloadURL is the reference used to fetch them.
type Attachment struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Disposition string `json:"disposition,omitempty"`
	Size        int64  `json:"size"`
	DownloadURL string `json:"download_url,omitempty"`
}

// Message is a single email in the active account's inbox.
type Message struct {
	// ID is unique within an account.
	ID string `json:"id"`

	// AccountID is the owning account identifier.
	AccountID string `json:"account_id"`

	From EmailAddress   `json:"from"`
	To   []EmailAddress `json:"to"`

	Subject string `json:"subject"`

	// Intro is the short preview text shown in listings.
	Intro string `json:"intro,omitempty"`

	// Seen only ever moves from false to true.
	Seen bool `json:"seen"`

	HasAttachments bool  `json:"has_attachments"`
	Size           int64 `json:"size"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Text and HTML are only populated once the full message was fetched.
	Text string `json:"text,omitempty"`
	HTML string `json:"html,omitempty"`

	Attachments []Attachment `json:"attachments,omitempty"`
}

// HasBody reports whether the full body has been fetched.
func (m Message) HasBody() bool {
	return m.Text != "" || m.HTML != ""
}
