// Package replay sends a batch of recorded questions to a running chat
// endpoint and writes one JSON line per answer.
package replay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
)

const (
	DefaultBaseURL = "http://localhost:5000"
	DefaultPath    = "/api/chat"
	DefaultTimeout = 60 * time.Second
	DefaultRetries = 2
	DefaultDelay   = 200 * time.Millisecond

	backoffBase = 250 * time.Millisecond
	backoffMax  = 2 * time.Second

	maxErrorText = 500
)

// Questions is the input document. Categories are replayed in field order.
type Questions struct {
	Correct   []string `json:"correct"`
	Ambiguous []string `json:"ambiguous"`
	Wrong     []string `json:"wrong"`
	OffTopic  []string `json:"off_topic"`
}

// Item is one numbered question
type Item struct {
	ID       int
	Category string
	Message  string
}

// Result is written as one JSON line per item
type Result struct {
	TS         time.Time `json:"ts"`
	ID         int       `json:"id"`
	Category   string    `json:"category"`
	Message    string    `json:"message"`
	URL        string    `json:"url"`
	Status     int       `json:"status"`
	OK         bool      `json:"ok"`
	Reply      string    `json:"reply,omitempty"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	Attempts   int       `json:"attempts"`
}

type Summary struct {
	OK     int
	Failed int
}

// ReadQuestions loads a questions document from path.
func ReadQuestions(path string) (Questions, error) {
	var q Questions
	b, err := os.ReadFile(path)
	if err != nil {
		return q, err
	}
	if err := json.Unmarshal(b, &q); err != nil {
		return q, fmt.Errorf("parse %s: %w", path, err)
	}
	return q, nil
}

// Flatten numbers the non-blank questions from 1, trimming each.
func Flatten(q Questions) []Item {
	var items []Item
	for _, group := range []struct {
		name string
		msgs []string
	}{
		{"correct", q.Correct},
		{"ambiguous", q.Ambiguous},
		{"wrong", q.Wrong},
		{"off_topic", q.OffTopic},
	} {
		for _, m := range group.msgs {
			m = strings.TrimSpace(m)
			if m == "" {
				continue
			}
			items = append(items, Item{ID: len(items) + 1, Category: group.name, Message: m})
		}
	}
	return items
}

// Client replays items against URL. Zero values fall back to the defaults.
type Client struct {
	URL     string
	HTTP    *http.Client
	Timeout time.Duration
	Retries int
	Delay   time.Duration
	Backoff time.Duration
}

// NewClient targets base+path with default settings.
func NewClient(base, path string) *Client {
	if base == "" {
		base = DefaultBaseURL
	}
	if path == "" {
		path = DefaultPath
	}
	return &Client{
		URL:     strings.TrimRight(base, "/") + path,
		HTTP:    &http.Client{},
		Timeout: DefaultTimeout,
		Retries: DefaultRetries,
		Delay:   DefaultDelay,
		Backoff: backoffBase,
	}
}

// statusError marks responses worth retrying
type statusError struct {
	status int
}

func (e *statusError) Error() string { return fmt.Sprintf("retryable status %d", e.status) }

func retryableStatus(code int) bool {
	return code == http.StatusBadGateway || code == http.StatusServiceUnavailable || code == http.StatusGatewayTimeout
}

type chatResponse struct {
	Reply *string `json:"reply"`
	Error *string `json:"error"`
}

// Ask sends one item, retrying gateway failures and transport errors with
// exponential backoff. It never returns an error: failures land in Result.
func (c *Client) Ask(ctx context.Context, item Item) Result {
	res := Result{
		TS:       time.Now().UTC(),
		ID:       item.ID,
		Category: item.Category,
		Message:  item.Message,
		URL:      c.URL,
	}

	backoff := c.Backoff
	if backoff <= 0 {
		backoff = backoffBase
	}
	retries := c.Retries
	if retries < 0 {
		retries = 0
	}

	err := retry.Do(
		func() error {
			res.Attempts++
			return c.attempt(ctx, item, &res)
		},
		retry.Context(ctx),
		retry.Attempts(uint(retries+1)),
		retry.Delay(backoff),
		retry.MaxDelay(backoffMax),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)

	var se *statusError
	if err != nil && !errors.As(err, &se) {
		res.Status = 0
		res.OK = false
		res.Reply = ""
		res.Error = err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			res.Error = "timeout"
		}
	}
	return res
}

// attempt fills res from one HTTP exchange. Only retryable outcomes are
// returned as errors.
func (c *Client) attempt(ctx context.Context, item Item, res *Result) error {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, _ := json.Marshal(map[string]string{"message": item.Message})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return retry.Unrecoverable(err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	start := time.Now()
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	res.DurationMS = time.Since(start).Milliseconds()
	if err != nil {
		return err
	}

	res.Status = resp.StatusCode
	res.OK = resp.StatusCode >= 200 && resp.StatusCode < 300
	res.Reply, res.Error = "", ""

	var parsed chatResponse
	if json.Unmarshal(raw, &parsed) == nil {
		if parsed.Reply != nil {
			res.Reply = *parsed.Reply
		}
		if parsed.Error != nil {
			res.Error = *parsed.Error
		}
	}
	if !res.OK && res.Error == "" {
		res.Error = truncate(string(raw), maxErrorText)
	}

	if !res.OK && retryableStatus(resp.StatusCode) {
		return &statusError{status: resp.StatusCode}
	}
	return nil
}

// Run asks every item in order, waiting Delay between requests, and writes
// each Result to out as JSON. progress, if set, sees each result.
func (c *Client) Run(ctx context.Context, items []Item, out io.Writer, progress func(Result)) (Summary, error) {
	var sum Summary
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		res := c.Ask(ctx, item)
		if err := enc.Encode(res); err != nil {
			return sum, fmt.Errorf("write result %d: %w", item.ID, err)
		}
		if res.OK {
			sum.OK++
		} else {
			sum.Failed++
		}
		if progress != nil {
			progress(res)
		}

		if c.Delay > 0 && i < len(items)-1 {
			select {
			case <-ctx.Done():
				return sum, ctx.Err()
			case <-time.After(c.Delay):
			}
		}
	}
	return sum, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
