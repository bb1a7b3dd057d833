// Package backend is the client for the attendance dashboard API: it loads
// course rosters and records finalized attendance sessions.
package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Client talks to the dashboard backend.
type Client struct {
	Url        string
	parsedURL  *url.URL
	httpClient *http.Client
	captureDir string
}

// New creates a backend client. A zero timeout means no client-side timeout.
func New(rawURL string, timeout time.Duration) (*Client, error) {
	return NewWithCapture(rawURL, timeout, "")
}

// NewWithCapture creates a backend client with optional response capturing.
// Pass an empty captureDir to disable capturing.
func NewWithCapture(rawURL string, timeout time.Duration, captureDir string) (*Client, error) {
	rawURL = strings.TrimSuffix(rawURL, "/")
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid backend URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid backend URL %q: scheme and host are required", rawURL)
	}
	c := &Client{
		Url:        rawURL,
		parsedURL:  parsed,
		httpClient: &http.Client{Timeout: timeout},
	}
	if err := c.SetCaptureDir(captureDir); err != nil {
		return nil, err
	}
	return c, nil
}

// resolveURL builds a full URL from the base URL and the given path segments.
// A query string on the last segment (e.g. "etudiants?code_cours=INF1") is kept.
func (c *Client) resolveURL(pathSegments ...string) string {
	if len(pathSegments) == 0 {
		return c.parsedURL.String()
	}
	last := pathSegments[len(pathSegments)-1]
	if pathPart, query, ok := strings.Cut(last, "?"); ok {
		pathSegments[len(pathSegments)-1] = pathPart
		result := c.parsedURL.JoinPath(pathSegments...)
		result.RawQuery = query
		return result.String()
	}
	return c.parsedURL.JoinPath(pathSegments...).String()
}

// readErrorBody reads the response body for error messages.
// Returns empty string if reading fails (we're already in an error path).
func readErrorBody(r io.Reader) string {
	body, err := io.ReadAll(r)
	if err != nil {
		return "(could not read error body)"
	}
	return string(body)
}

// SetCaptureDir enables API response capturing to the specified directory.
// Pass an empty string to disable capturing.
func (c *Client) SetCaptureDir(dir string) error {
	if dir == "" {
		c.captureDir = ""
		return nil
	}

	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("could not create capture directory: %w", err)
	}
	c.captureDir = dir
	return nil
}

// captureResponse saves the API response body to a file if capturing is enabled.
func (c *Client) captureResponse(endpoint string, body []byte) {
	if c.captureDir == "" {
		return
	}

	name, _, _ := strings.Cut(endpoint, "?")
	name = strings.TrimPrefix(strings.ReplaceAll(name, "/", "_"), "_")
	timestamp := time.Now().Format("20060102_150405")
	path := filepath.Join(c.captureDir, fmt.Sprintf("%s_%s.json", name, timestamp))

	var prettyJSON bytes.Buffer
	if err := json.Indent(&prettyJSON, body, "", "  "); err == nil {
		body = prettyJSON.Bytes()
	}

	if err := os.WriteFile(path, body, 0600); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to capture response to %s: %v\n", path, err)
	}
}
