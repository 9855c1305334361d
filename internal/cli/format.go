package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/nhle/tempmail/internal/links"
	"github.com/nhle/tempmail/internal/mailbox"
	"github.com/nhle/tempmail/internal/model"
	"github.com/nhle/tempmail/internal/session"
	"github.com/nhle/tempmail/internal/ui"
)

func printAccount(out io.Writer, v session.View) {
	fmt.Fprintln(out, v.Address)
	if v.Quota > 0 {
		fmt.Fprintf(out, "usage:   %s\n", ui.FormatQuota(v.Used, v.Quota))
	}
	if !v.CreatedAt.IsZero() {
		fmt.Fprintf(out, "created: %s\n", v.CreatedAt.Local().Format(time.RFC3339))
	}
}

func printMessages(out io.Writer, messages []model.Message) {
	if len(messages) == 0 {
		fmt.Fprintln(out, "No messages.")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "\tID\tDATE\tFROM\tSUBJECT")
	for _, msg := range messages {
		fmt.Fprintln(tw, messageRow(msg))
	}
	_ = tw.Flush()
}

func messageRow(msg model.Message) string {
	marker := ""
	if !msg.Seen {
		marker = "*"
	}
	date := ""
	if !msg.CreatedAt.IsZero() {
		date = msg.CreatedAt.Local().Format("2006-01-02 15:04")
	}
	return fmt.Sprintf("%s\t%s\t%s\t%s\t%s", marker, msg.ID, date, msg.From.String(), msg.Subject)
}

func printMessage(out io.Writer, msg model.Message) {
	fmt.Fprintf(out, "From:    %s\n", msg.From.String())
	if len(msg.To) > 0 {
		to := make([]string, len(msg.To))
		for i, a := range msg.To {
			to[i] = a.String()
		}
		fmt.Fprintf(out, "To:      %s\n", strings.Join(to, ", "))
	}
	fmt.Fprintf(out, "Subject: %s\n", msg.Subject)
	if !msg.CreatedAt.IsZero() {
		fmt.Fprintf(out, "Date:    %s\n", msg.CreatedAt.Local().Format(time.RFC1123Z))
	}
	fmt.Fprintln(out)

	body := mailbox.PlainText(msg)
	if body == "" {
		body = "(no body)"
	}
	fmt.Fprintln(out, body)

	if found := links.FromBodies(msg.Text, msg.HTML); len(found) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintf(out, "Links (%d):\n", len(found))
		for i, l := range found {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, l)
		}
	}

	if len(msg.Attachments) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintf(out, "Attachments (%d):\n", len(msg.Attachments))
		tw := tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
		for _, a := range msg.Attachments {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", a.Filename, a.ContentType, ui.FormatBytes(a.Size), a.DownloadURL)
		}
		_ = tw.Flush()
	}
}

func printDomains(out io.Writer, domains []model.Domain) {
	tw := tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "DOMAIN\tPRIVATE")
	for _, d := range domains {
		fmt.Fprintf(tw, "%s\t%t\n", d.Domain, d.IsPrivate)
	}
	_ = tw.Flush()
}
