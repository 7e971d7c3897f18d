// Package taskapi reads tasks from the task management backend. It is the
// only source of task snapshots; reminders never write back.
package taskapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sandeepkv93/taskremind/internal/logging"
	"github.com/sandeepkv93/taskremind/internal/model"
)

const DefaultTimeout = 30 * time.Second

var (
	ErrUnauthorized     = errors.New("taskapi: unauthorized")
	ErrNotFound         = errors.New("taskapi: not found")
	ErrUnexpectedStatus = errors.New("taskapi: unexpected status")
	ErrDecode           = errors.New("taskapi: cannot decode response")
)

// The backend has served both snake_case and camelCase date fields.
type wireTask struct {
	ID             int64  `json:"id"`
	Title          string `json:"title"`
	Status         string `json:"status"`
	StartDate      string `json:"start_date"`
	DueDate        string `json:"due_date"`
	StartDateCamel string `json:"startDate"`
	DueDateCamel   string `json:"dueDate"`
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: bad date %q", ErrDecode, raw)
}

// toModel keeps a task whose dates cannot be parsed: the bad date is left
// nil and the returned error names it.
func (w wireTask) toModel() (model.Task, error) {
	start := w.StartDate
	if start == "" {
		start = w.StartDateCamel
	}
	due := w.DueDate
	if due == "" {
		due = w.DueDateCamel
	}
	task := model.Task{
		ID:     w.ID,
		Title:  w.Title,
		Status: model.TaskStatus(w.Status),
	}
	var errs []error
	startAt, err := parseDate(start)
	if err != nil {
		errs = append(errs, fmt.Errorf("start: %w", err))
	}
	dueAt, err := parseDate(due)
	if err != nil {
		errs = append(errs, fmt.Errorf("due: %w", err))
	}
	task.StartDate = startAt
	task.DueDate = dueAt
	return task, errors.Join(errs...)
}

type Options struct {
	Token   string
	Timeout time.Duration
	Logger  *log.Logger
	// HTTPClient overrides the default client; Timeout is ignored then.
	HTTPClient *http.Client
}

type Client struct {
	base  *url.URL
	token string
	http  *http.Client
	log   *log.Logger
}

func New(baseURL string, opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("taskapi: parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("taskapi: unsupported base url %q", baseURL)
	}
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{base: base, token: opts.Token, http: hc, log: logging.OrDiscard(opts.Logger)}, nil
}

// Tasks returns every task visible to the user.
func (c *Client) Tasks(ctx context.Context) ([]model.Task, error) {
	return c.list(ctx, "/tasks")
}

// Health reports whether the backend answers /health with 200.
func (c *Client) Health(ctx context.Context) bool {
	if err := c.get(ctx, "/health", nil); err != nil {
		c.log.Printf("[WARN] Task API is not available: %s\n", err.Error())
		return false
	}
	return true
}

// list decodes the task array row by row. A row with an unusable date is
// kept without that date; a row without a valid id is dropped. Neither
// fails the rest of the list.
func (c *Client) list(ctx context.Context, path string) ([]model.Task, error) {
	var wire []wireTask
	if err := c.get(ctx, path, &wire); err != nil {
		return nil, err
	}
	out := make([]model.Task, 0, len(wire))
	for _, w := range wire {
		task, err := w.toModel()
		if err != nil {
			c.log.Printf("[WARN] Task %d has unusable dates, ignoring them: %s\n", w.ID, err.Error())
		}
		if err := task.Validate(); err != nil {
			if errors.Is(err, model.ErrInvalidTaskID) {
				c.log.Printf("[WARN] Skipping task row: %s\n", err.Error())
				continue
			}
			c.log.Printf("[DEBUG] Task %d is not eligible for reminders: %s\n", task.ID, err.Error())
		}
		out = append(out, task)
	}
	c.log.Printf("[DEBUG] GET %s returned %d tasks\n", path, len(out))
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, into any) error {
	u := *c.base
	u.Path = c.base.Path + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("taskapi: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("taskapi: GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %d %s", ErrUnexpectedStatus, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if into == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return fmt.Errorf("%w: %s", ErrDecode, err.Error())
	}
	return nil
}
