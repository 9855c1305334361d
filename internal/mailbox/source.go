package mailbox

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/nhle/tempmail/internal/model"
)

// ParsedSource holds what could be extracted from a raw message.
type ParsedSource struct {
	Subject     string
	From        []model.EmailAddress
	To          []model.EmailAddress
	Text        string
	HTML        string
	Attachments []model.Attachment
}

// ParseSource parses a raw RFC 5322 message and extracts the text/plain body,
// the text/html body, and attachment metadata. Attachment bytes are only
// counted, never kept.
func ParseSource(raw []byte) (*ParsedSource, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("reading message source: %w", err)
	}
	defer mr.Close()

	out := &ParsedSource{}
	if subject, err := mr.Header.Subject(); err == nil {
		out.Subject = subject
	}
	out.From = addressList(mr.Header, "From")
	out.To = addressList(mr.Header, "To")

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return out, fmt.Errorf("reading message part: %w", err)
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			body, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}

			switch {
			case strings.HasPrefix(contentType, "text/html"):
				out.HTML = appendPart(out.HTML, string(body))
			case strings.HasPrefix(contentType, "text/plain") || contentType == "":
				out.Text = appendPart(out.Text, string(body))
			}

		case *mail.AttachmentHeader:
			filename, _ := h.Filename()
			if strings.TrimSpace(filename) == "" {
				filename = "attachment"
			}
			contentType, _, _ := h.ContentType()

			n, readErr := io.Copy(io.Discard, part.Body)
			if readErr != nil {
				continue
			}

			out.Attachments = append(out.Attachments, model.Attachment{
				Filename:    filename,
				ContentType: contentType,
				Disposition: "attachment",
				Size:        n,
			})
		}
	}

	return out, nil
}

func appendPart(existing, part string) string {
	if existing == "" {
		return part
	}
	return existing + "\n" + part
}

func addressList(h mail.Header, key string) []model.EmailAddress {
	list, err := h.AddressList(key)
	if err != nil {
		return nil
	}
	out := make([]model.EmailAddress, 0, len(list))
	for _, addr := range list {
		out = append(out, model.EmailAddress{Address: addr.Address, Name: addr.Name})
	}
	return out
}
