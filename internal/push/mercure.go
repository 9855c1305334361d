package push

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/nhle/tempmail/internal/mailbox"
)

// maxEventSize bounds a single SSE line.
const maxEventSize = 1 << 20

// Mercure subscribes to a Mercure hub over Server-Sent Events and reconnects
// with the configured backoff whenever the stream breaks.
type Mercure struct {
	hubURL     string
	httpClient *http.Client
	backoff    Backoff
	logger     *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

var _ Subscription = (*Mercure)(nil)

// NewMercure creates a subscription against hubURL
// (e.g., https://mercure.mail.tm/.well-known/mercure).
func NewMercure(hubURL string, backoff Backoff, logger *slog.Logger) *Mercure {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mercure{
		hubURL: hubURL,
		// No client timeout: the stream stays open until cancelled.
		httpClient: &http.Client{},
		backoff:    backoff,
		logger:     logger.With("component", "push"),
	}
}

// Open starts streaming req.Topic in the background.
func (m *Mercure) Open(ctx context.Context, req Request, onEvent Handler) error {
	if req.Topic == "" {
		return errors.New("push topic is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		return ErrAlreadyOpen
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.cancel = cancel
	m.done = done

	go m.run(runCtx, req, onEvent, done)
	return nil
}

// Close stops the stream and waits for the reader goroutine to exit.
func (m *Mercure) Close() error {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

// run keeps the stream open until ctx is cancelled, the attempt budget is
// spent or the hub rejects the token. A connection that was accepted by the
// hub resets the budget.
func (m *Mercure) run(ctx context.Context, req Request, onEvent Handler, done chan struct{}) {
	defer close(done)

	lastID := ""
	attempt := 0
	for {
		connected, err := m.stream(ctx, req, &lastID, onEvent)
		if ctx.Err() != nil {
			return
		}
		if mailbox.IsCredentialInvalid(err) {
			m.logger.Warn("push channel token rejected", "topic", req.Topic)
			if req.OnRejected != nil {
				req.OnRejected(err)
			}
			return
		}
		if connected {
			attempt = 0
		}

		attempt++
		if m.backoff.Exhausted(attempt) {
			m.logger.Error("push channel gave up", "topic", req.Topic, "attempts", attempt-1, "error", err)
			return
		}

		delay := m.backoff.Delay(attempt)
		m.logger.Warn("push channel failed, reconnecting",
			"topic", req.Topic, "attempt", attempt, "delay", delay, "error", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// stream performs one connection and reads events until it ends.
func (m *Mercure) stream(
	ctx context.Context,
	req Request,
	lastID *string,
	onEvent Handler,
) (bool, error) {
	u, err := url.Parse(m.hubURL)
	if err != nil {
		return false, &mailbox.StreamError{Topic: req.Topic, Err: fmt.Errorf("parsing hub url: %w", err)}
	}
	q := u.Query()
	q.Set("topic", req.Topic)
	u.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return false, &mailbox.StreamError{Topic: req.Topic, Err: fmt.Errorf("creating request: %w", err)}
	}
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")
	if req.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Token)
	}
	if *lastID != "" {
		httpReq.Header.Set("Last-Event-ID", *lastID)
	}

	resp, err := m.httpClient.Do(httpReq)
	if err != nil {
		return false, &mailbox.StreamError{Topic: req.Topic, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return false, &mailbox.StreamError{
			Topic: req.Topic,
			Err:   &mailbox.CredentialError{Op: "subscribe " + req.Topic},
		}
	}
	if resp.StatusCode != http.StatusOK {
		return false, &mailbox.StreamError{
			Topic: req.Topic,
			Err:   fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	m.logger.Debug("push channel connected", "topic", req.Topic)

	err = ReadEvents(resp.Body, func(ev Event) {
		if ev.ID != "" {
			*lastID = ev.ID
		}
		onEvent(ev)
	})
	if err == nil {
		err = io.EOF
	}
	return true, &mailbox.StreamError{Topic: req.Topic, Err: err}
}

// ReadEvents parses a text/event-stream body and calls fn for every
// dispatched event. It returns nil when the stream ends cleanly.
func ReadEvents(r io.Reader, fn func(Event)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventSize)

	var (
		data    bytes.Buffer
		ev      Event
		hasData bool
	)

	for scanner.Scan() {
		line := scanner.Text()

		if line == "" {
			if hasData {
				ev.Data = bytes.Clone(data.Bytes())
				fn(ev)
			}
			data.Reset()
			ev = Event{ID: ev.ID}
			hasData = false
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "data":
			if hasData {
				data.WriteByte('\n')
			}
			data.WriteString(value)
			hasData = true
		case "id":
			ev.ID = value
		case "event":
			ev.Type = value
		}
	}

	return scanner.Err()
}
