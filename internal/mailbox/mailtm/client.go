package mailtm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nhle/tempmail/internal/mailbox"
)

// Client is a thin HTTP client for the mail.tm REST API. It handles Bearer
// token authentication, JSON marshaling, and automatic retry with
// exponential backoff on HTTP 429.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
}

// NewClient creates a new HTTP client rooted at baseURL
// (e.g., https://api.mail.tm).
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxRetries: 3,
	}
}

// request describes a single API call.
type request struct {
	method      string
	path        string
	token       string
	body        interface{}
	contentType string
	accept      string
}

// do is the core HTTP method that builds the request, handles auth, rate
// limiting with exponential backoff, and JSON deserialization into result.
// It returns the raw response body so callers can consume non-JSON payloads.
func (c *Client) do(
	ctx context.Context,
	req request,
	result interface{},
) ([]byte, error) {
	op := req.method + " " + req.path
	url := c.baseURL + req.path

	var payload []byte
	if req.body != nil {
		data, err := json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		payload = data
	}

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}

		httpReq, err := http.NewRequestWithContext(ctx, req.method, url, bodyReader)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}

		if req.token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+req.token)
		}
		accept := req.accept
		if accept == "" {
			accept = "application/ld+json, application/json"
		}
		httpReq.Header.Set("Accept", accept)
		if payload != nil {
			contentType := req.contentType
			if contentType == "" {
				contentType = "application/json"
			}
			httpReq.Header.Set("Content-Type", contentType)
		}

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return nil, &mailbox.NetworkError{Op: op, Err: err}
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, &mailbox.NetworkError{Op: op, Err: fmt.Errorf("reading response body: %w", readErr)}
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			if attempt == c.maxRetries {
				break
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryAfterDuration(resp, attempt)):
				continue
			}
		}

		if resp.StatusCode == http.StatusUnauthorized && req.token != "" {
			return nil, &mailbox.CredentialError{Op: op}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &mailbox.APIError{
				Op:          op,
				Status:      resp.StatusCode,
				Description: describeError(respBody),
			}
		}

		// No content to parse (e.g. 204).
		if result == nil || resp.StatusCode == http.StatusNoContent {
			return respBody, nil
		}

		if err := json.Unmarshal(respBody, result); err != nil {
			return nil, fmt.Errorf("unmarshaling response from %s: %w", op, err)
		}

		return respBody, nil
	}

	return nil, fmt.Errorf(
		"max retries (%d) exceeded: %w", c.maxRetries,
		&mailbox.APIError{Op: op, Status: http.StatusTooManyRequests, Description: "rate limited"},
	)
}

// describeError extracts a human-readable message from an error payload,
// falling back to the raw body.
func describeError(body []byte) string {
	var apiErr errorResponse
	if json.Unmarshal(body, &apiErr) == nil {
		for _, s := range []string{apiErr.Description, apiErr.Detail, apiErr.Message} {
			if s != "" {
				return s
			}
		}
	}
	return strings.TrimSpace(string(body))
}

// retryAfterDuration reads the Retry-After header and computes a wait
// duration. Falls back to exponential backoff if the header is missing.
func retryAfterDuration(resp *http.Response, attempt int) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}

	// Exponential backoff: 1s, 2s, 4s, ...
	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}
