// Package tracker reads and updates requirement tickets in a Jira-compatible
// issue tracker over its REST API (v2), using basic auth.
//
// Only the issue summary and description are consumed.
package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/HendryAvila/storysmith/internal/config"
)

// requestTimeout bounds every tracker call.
const requestTimeout = 30 * time.Second

var (
	// ErrNotConfigured means tracker credentials are missing.
	ErrNotConfigured = errors.New("ticket tracker not configured")
	// ErrNotFound means the ticket does not exist or is not visible.
	ErrNotFound = errors.New("ticket not found")
)

// idPattern matches ticket ids such as "PROJ-123".
var idPattern = regexp.MustCompile(`[A-Z]+-[0-9]+`)

// FindID returns the first ticket id in text, matched case-insensitively.
// The returned id is upper-case. Any letters-hyphen-digits token counts, so
// "UTF-8" or "covid-19" are taken for ticket ids too; the chat then answers
// with the fetch apology for them.
func FindID(text string) (string, bool) {
	id := idPattern.FindString(strings.ToUpper(text))
	return id, id != ""
}

// Issue is the part of a ticket the pipeline consumes.
type Issue struct {
	Key         string `json:"key"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Client talks to the tracker REST API.
type Client struct {
	server     string
	username   string
	token      string
	httpClient *http.Client
}

// New creates a Client. Missing settings are reported as ErrNotConfigured.
func New(cfg config.Tracker) (*Client, error) {
	var missing []string
	if cfg.Server == "" {
		missing = append(missing, "JIRA_SERVER")
	}
	if cfg.Username == "" {
		missing = append(missing, "JIRA_USERNAME")
	}
	if cfg.Token == "" {
		missing = append(missing, "JIRA_API_TOKEN")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s not set", ErrNotConfigured, strings.Join(missing, ", "))
	}
	return &Client{
		server:     strings.TrimRight(cfg.Server, "/"),
		username:   cfg.Username,
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: requestTimeout},
	}, nil
}

type issueResponse struct {
	Key    string `json:"key"`
	Fields struct {
		Summary     string  `json:"summary"`
		Description *string `json:"description"`
	} `json:"fields"`
}

// FetchStory returns the summary and description of ticket id.
func (c *Client) FetchStory(ctx context.Context, id string) (Issue, error) {
	var resp issueResponse
	path := "/rest/api/2/issue/" + url.PathEscape(id) + "?fields=summary,description"
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return Issue{}, fmt.Errorf("fetching %s: %w", id, err)
	}

	issue := Issue{Key: resp.Key, Title: resp.Fields.Summary}
	if issue.Key == "" {
		issue.Key = id
	}
	if resp.Fields.Description != nil {
		issue.Description = *resp.Fields.Description
	}
	return issue, nil
}

// AppendToDescription appends text to the description of ticket id.
func (c *Client) AppendToDescription(ctx context.Context, id, text string) error {
	issue, err := c.FetchStory(ctx, id)
	if err != nil {
		return err
	}

	body := map[string]any{
		"fields": map[string]string{"description": issue.Description + text},
	}
	if err := c.do(ctx, http.MethodPut, "/rest/api/2/issue/"+url.PathEscape(id), body, nil); err != nil {
		return fmt.Errorf("updating %s: %w", id, err)
	}
	return nil
}

// do sends one request. out may be nil when no body is expected.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.server+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.SetBasicAuth(c.username, c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("tracker rejected credentials (%d)", resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("tracker returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}
