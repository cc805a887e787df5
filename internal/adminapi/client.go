// Package adminapi talks to the Neo4j HTTP user administration endpoints used to
// rotate the default credential of a freshly started instance.
package adminapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"
)

var (
	// ErrMalformedResponse is returned when the user resource is not valid JSON or
	// lacks the password_change_required field.
	ErrMalformedResponse = errors.New("malformed user status response")

	// ErrUnauthorized is returned when the server rejects the supplied credential.
	ErrUnauthorized = errors.New("credential rejected by the server")
)

// StatusError reports a non-2xx answer from the admin endpoint.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.StatusCode)
}

// UserStatus is the body of GET /user/{username}.
type UserStatus struct {
	Username               string `json:"username"`
	PasswordChangeRequired *bool  `json:"password_change_required"`
	PasswordChange         string `json:"password_change,omitempty"`
}

// ChangeRequired reports whether the server asks for a new password.
func (s *UserStatus) ChangeRequired() bool {
	return s != nil && s.PasswordChangeRequired != nil && *s.PasswordChangeRequired
}

// Client calls the user administration endpoints with a fixed basic-auth credential.
type Client struct {
	baseURL  string
	username string
	password string
	http     HTTPDoer
}

// NewClient creates a client for baseURL (e.g. "http://neo4j:7474") authenticating as username/password.
func NewClient(baseURL, username, password string, timeout time.Duration) *Client {
	return NewClientWithDoer(baseURL, username, password, &http.Client{Timeout: timeout})
}

// NewClientWithDoer creates a client that sends requests through doer.
func NewClientWithDoer(baseURL, username, password string, doer HTTPDoer) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		http:     doer,
	}
}

// UserStatus fetches the account state of username.
func (c *Client) UserStatus(ctx context.Context, username string) (*UserStatus, error) {
	path := "/user/" + url.PathEscape(username)
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("GET %s: %w", path, ErrUnauthorized)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{Method: http.MethodGet, Path: path, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	var status UserStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if status.PasswordChangeRequired == nil {
		return nil, fmt.Errorf("%w: password_change_required is missing", ErrMalformedResponse)
	}

	return &status, nil
}

// ChangePassword sets a new password for username and returns the HTTP status code.
// Only a transport failure is reported as an error; the response body is discarded.
func (c *Client) ChangePassword(ctx context.Context, username, newPassword string) (int, error) {
	payload, err := json.Marshal(map[string]string{"password": newPassword})
	if err != nil {
		return 0, fmt.Errorf("marshal password payload: %w", err)
	}

	path := "/user/" + url.PathEscape(username) + "/password"
	resp, err := c.do(ctx, http.MethodPost, path, payload)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s request: %w", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

// IsConnectionError reports whether err means the server is not accepting
// connections yet: refused or reset connections, unresolvable hosts and timeouts.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
