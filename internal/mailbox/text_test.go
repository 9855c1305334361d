package mailbox

import (
	"testing"

	"github.com/nhle/tempmail/internal/model"
)

func TestHTMLToText(t *testing.T) {
	body := `<html><head><title>x</title><style>p{color:red}</style></head>
<body><p>Hello <b>there</b></p><p>Your code is <code>1234</code></p>
<script>alert(1)</script><br/>Bye</body></html>`

	got := HTMLToText(body)
	want := "Hello there\n\nYour code is 1234\n\nBye"
	if got != want {
		t.Errorf("HTMLToText() = %q, want %q", got, want)
	}
}

func TestHTMLToTextEmpty(t *testing.T) {
	if got := HTMLToText(""); got != "" {
		t.Errorf("HTMLToText(\"\") = %q", got)
	}
}

func TestPlainTextPrefersText(t *testing.T) {
	msg := model.Message{Text: "plain", HTML: "<p>rich</p>"}
	if got := PlainText(msg); got != "plain" {
		t.Errorf("PlainText() = %q", got)
	}

	msg.Text = "  "
	if got := PlainText(msg); got != "rich" {
		t.Errorf("PlainText() = %q", got)
	}
}
