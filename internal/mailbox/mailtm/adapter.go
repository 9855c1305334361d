package mailtm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nhle/tempmail/internal/mailbox"
	"github.com/nhle/tempmail/internal/model"
)

// Adapter implements mailbox.Client for mail.tm compatible APIs.
type Adapter struct {
	client  *Client
	baseURL string
}

var _ mailbox.Client = (*Adapter)(nil)

// NewAdapter creates a new mail.tm adapter.
func NewAdapter(baseURL string, timeout time.Duration) *Adapter {
	return &Adapter{
		client:  NewClient(baseURL, timeout),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// ListDomains returns the first page of domains, which is all the public
// API ever offers.
func (a *Adapter) ListDomains(ctx context.Context) ([]model.Domain, error) {
	var resp collection[Domain]
	_, err := a.client.do(ctx, request{method: http.MethodGet, path: "/domains?page=1"}, &resp)
	if err != nil {
		return nil, fmt.Errorf("listing domains: %w", err)
	}

	domains := make([]model.Domain, 0, len(resp.Members))
	for _, d := range resp.Members {
		domains = append(domains, model.Domain{
			ID:        d.ID,
			Domain:    d.Domain,
			IsActive:  d.IsActive,
			IsPrivate: d.IsPrivate,
		})
	}
	return domains, nil
}

// CreateAccount registers address with password. A 422 about an address
// already in use becomes an AccountCreationError with Taken set.
func (a *Adapter) CreateAccount(
	ctx context.Context,
	address, password string,
) (*model.Account, error) {
	var acct Account
	_, err := a.client.do(ctx, request{
		method: http.MethodPost,
		path:   "/accounts",
		body:   credentials{Address: address, Password: password},
	}, &acct)
	if err != nil {
		var apiErr *mailbox.APIError
		if errors.As(err, &apiErr) {
			return nil, &mailbox.AccountCreationError{
				Address: address,
				Taken:   isTakenError(apiErr),
				Err:     apiErr,
			}
		}
		return nil, fmt.Errorf("creating account %s: %w", address, err)
	}

	out := toAccount(acct)
	out.Password = password
	return &out, nil
}

// isTakenError reports whether an API rejection means the address exists.
func isTakenError(apiErr *mailbox.APIError) bool {
	if apiErr.Status != http.StatusUnprocessableEntity && apiErr.Status != http.StatusBadRequest {
		return false
	}
	desc := strings.ToLower(apiErr.Description)
	return strings.Contains(desc, "already used") ||
		strings.Contains(desc, "already exists") ||
		strings.Contains(desc, "already taken")
}

// Token exchanges credentials for a bearer token.
func (a *Adapter) Token(
	ctx context.Context,
	address, password string,
) (*mailbox.TokenResult, error) {
	var resp TokenResponse
	_, err := a.client.do(ctx, request{
		method: http.MethodPost,
		path:   "/token",
		body:   credentials{Address: address, Password: password},
	}, &resp)
	if err != nil {
		var apiErr *mailbox.APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			msg := apiErr.Description
			if msg == "" {
				msg = "invalid credentials"
			}
			return nil, &mailbox.AuthenticationError{Address: address, Message: msg}
		}
		return nil, fmt.Errorf("requesting token for %s: %w", address, err)
	}
	if resp.Token == "" {
		return nil, &mailbox.AuthenticationError{Address: address, Message: "empty token in response"}
	}

	return &mailbox.TokenResult{AccountID: resp.ID, Token: resp.Token}, nil
}

// Me returns the account the token belongs to.
func (a *Adapter) Me(ctx context.Context, token string) (*model.Account, error) {
	var acct Account
	_, err := a.client.do(ctx, request{method: http.MethodGet, path: "/me", token: token}, &acct)
	if err != nil {
		return nil, fmt.Errorf("fetching account info: %w", err)
	}

	out := toAccount(acct)
	out.Token = token
	return &out, nil
}

// ListMessages returns one page (30 items) of message summaries.
func (a *Adapter) ListMessages(
	ctx context.Context,
	token string,
	page int,
) ([]model.Message, error) {
	if page < 1 {
		page = 1
	}

	var resp collection[Message]
	_, err := a.client.do(ctx, request{
		method: http.MethodGet,
		path:   fmt.Sprintf("/messages?page=%d", page),
		token:  token,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}

	messages := make([]model.Message, 0, len(resp.Members))
	for _, m := range resp.Members {
		if m.IsDeleted {
			continue
		}
		messages = append(messages, a.toMessage(m))
	}
	return messages, nil
}

// GetMessage returns the full message, including body and attachment
// descriptors.
func (a *Adapter) GetMessage(
	ctx context.Context,
	token, id string,
) (*model.Message, error) {
	var m Message
	_, err := a.client.do(ctx, request{
		method: http.MethodGet,
		path:   "/messages/" + url.PathEscape(id),
		token:  token,
	}, &m)
	if err != nil {
		return nil, fmt.Errorf("fetching message %s: %w", id, err)
	}

	out := a.toMessage(m)
	return &out, nil
}

// GetSource downloads the raw message source.
func (a *Adapter) GetSource(ctx context.Context, token, id string) ([]byte, error) {
	raw, err := a.client.do(ctx, request{
		method: http.MethodGet,
		path:   "/messages/" + url.PathEscape(id) + "/download",
		token:  token,
		accept: "message/rfc822",
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("downloading message %s: %w", id, err)
	}
	return raw, nil
}

// MarkSeen flags a message as read.
func (a *Adapter) MarkSeen(ctx context.Context, token, id string) error {
	_, err := a.client.do(ctx, request{
		method:      http.MethodPatch,
		path:        "/messages/" + url.PathEscape(id),
		token:       token,
		body:        seenPatch{Seen: true},
		contentType: "application/merge-patch+json",
	}, nil)
	if err != nil {
		return fmt.Errorf("marking message %s seen: %w", id, err)
	}
	return nil
}

// DeleteAccount removes the account.
func (a *Adapter) DeleteAccount(ctx context.Context, token, accountID string) error {
	_, err := a.client.do(ctx, request{
		method: http.MethodDelete,
		path:   "/accounts/" + url.PathEscape(accountID),
		token:  token,
	}, nil)
	if err != nil {
		return fmt.Errorf("deleting account %s: %w", accountID, err)
	}
	return nil
}

// DecodePush decodes a Mercure payload published for an account topic.
// It is a mailbox.PushDecoder.
func (a *Adapter) DecodePush(data []byte) (mailbox.PushUpdate, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return mailbox.PushUpdate{}, fmt.Errorf("decoding push payload: %w", err)
	}

	switch env.Type {
	case "Account":
		var acct Account
		if err := json.Unmarshal(data, &acct); err != nil {
			return mailbox.PushUpdate{}, fmt.Errorf("decoding account payload: %w", err)
		}
		out := toAccount(acct)
		return mailbox.PushUpdate{Account: &out}, nil

	case "Message", "":
		var m Message
		if err := json.Unmarshal(data, &m); err != nil {
			return mailbox.PushUpdate{}, fmt.Errorf("decoding message payload: %w", err)
		}
		if m.ID == "" || m.IsDeleted {
			return mailbox.PushUpdate{}, nil
		}
		out := a.toMessage(m)
		return mailbox.PushUpdate{Message: &out}, nil
	}

	return mailbox.PushUpdate{}, nil
}

func toAccount(acct Account) model.Account {
	return model.Account{
		ID:         acct.ID,
		Address:    acct.Address,
		Quota:      acct.Quota,
		Used:       acct.Used,
		IsDisabled: acct.IsDisabled,
		IsDeleted:  acct.IsDeleted,
		CreatedAt:  acct.CreatedAt,
		UpdatedAt:  acct.UpdatedAt,
	}
}

func (a *Adapter) toMessage(m Message) model.Message {
	to := make([]model.EmailAddress, 0, len(m.To))
	for _, addr := range m.To {
		to = append(to, model.EmailAddress{Address: addr.Address, Name: addr.Name})
	}

	var attachments []model.Attachment
	for _, att := range m.Attachments {
		attachments = append(attachments, model.Attachment{
			ID:          att.ID,
			Filename:    att.Filename,
			ContentType: att.ContentType,
			Disposition: att.Disposition,
			Size:        att.Size,
			DownloadURL: a.absoluteURL(att.DownloadURL),
		})
	}

	return model.Message{
		ID:             m.ID,
		AccountID:      m.AccountID,
		From:           model.EmailAddress{Address: m.From.Address, Name: m.From.Name},
		To:             to,
		Subject:        m.Subject,
		Intro:          m.Intro,
		Seen:           m.Seen,
		HasAttachments: m.HasAttachments,
		Size:           m.Size,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
		Text:           m.Text,
		HTML:           strings.Join(m.HTML, "\n"),
		Attachments:    attachments,
	}
}

// absoluteURL resolves API-relative download paths.
func (a *Adapter) absoluteURL(ref string) string {
	if strings.HasPrefix(ref, "/") {
		return a.baseURL + ref
	}
	return ref
}
