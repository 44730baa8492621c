// Package api is the client for the remote expense API.
//
// Every authorized call goes through Client.Execute, which attaches the
// current session's credentials and, when the server answers 401, performs
// exactly one token refresh followed by exactly one retry.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"reina/internal/log"
	"reina/internal/session"
)

// maxResponseSize limits response body reads.
const maxResponseSize = 4 << 20

const refreshPath = "/refresh"

// Call describes one remote request. It is used once.
type Call struct {
	Method string
	Path   string
	Query  url.Values
	// JSON is encoded as the request body. Ignored when Form is set.
	JSON any
	// Form is sent as application/x-www-form-urlencoded.
	Form url.Values
}

// Client executes calls against the remote API on behalf of the session in store.
type Client struct {
	baseURL    string
	httpClient *http.Client
	store      session.Store
	logger     *log.Logger

	coalesce bool
	flights  singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets a per-request timeout on the client's http.Client.
// Zero keeps the transport default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithLogger sets the logger used for request and refresh events.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRefreshCoalescing makes concurrent calls that hit a 401 with the same
// refresh token share a single refresh request.
func WithRefreshCoalescing(enabled bool) Option {
	return func(c *Client) { c.coalesce = enabled }
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, store session.Store, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		store:      store,
		logger:     log.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithComponent(log.ComponentAPI)
	return c
}

// Session returns the store the client reads credentials from.
func (c *Client) Session() session.Store {
	return c.store
}

// Execute performs call with the current session's credentials and decodes
// a successful reply into out (which may be nil).
//
// On a 401 with a refresh token available the client refreshes once and
// retries once. A failed refresh clears the session and yields a
// *SessionExpiredError. Every other failure is returned unchanged.
//
// When the store is shared with other processes the persisted session is
// reloaded first. If another process already replaced the rejected access
// token, the retry uses the replacement and no refresh is made.
func (c *Client) Execute(ctx context.Context, call Call, out any) error {
	current := c.store.Get()

	err := c.send(ctx, call, current.AuthorizationHeader(), out)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrUnauthorized) {
		return err
	}

	if latest, ok := c.reload(ctx); ok {
		if latest.Authenticated() && latest.AccessToken != current.AccessToken {
			c.logger.Debug("Session changed elsewhere, retrying with it",
				log.FieldMethod, call.Method,
				log.FieldPath, call.Path)
			return c.send(ctx, call, latest.AuthorizationHeader(), out)
		}
		current = latest
	}
	if current.RefreshToken == "" {
		return err
	}

	c.logger.Debug("Access token rejected, refreshing",
		log.FieldMethod, call.Method,
		log.FieldPath, call.Path)

	next, err := c.refreshSession(ctx, current)
	if err != nil {
		return err
	}

	return c.send(ctx, call, next.AuthorizationHeader(), out)
}

func (c *Client) reload(ctx context.Context) (session.Session, bool) {
	r, ok := c.store.(session.Reloader)
	if !ok {
		return session.Session{}, false
	}
	return r.Reload(ctx)
}

// refreshSession exchanges the refresh token of prev and writes the outcome
// to the store: the new full session on success, an empty one on failure.
func (c *Client) refreshSession(ctx context.Context, prev session.Session) (session.Session, error) {
	run := func(ctx context.Context) (session.Session, error) {
		tokens, err := c.Refresh(ctx, prev.RefreshToken)
		if err != nil {
			c.store.Clear()
			c.logger.Warn("Token refresh failed, session cleared",
				log.FieldOperation, log.OpRefresh,
				log.FieldError, err)
			return session.Session{}, &SessionExpiredError{}
		}

		next := session.Session{
			AccessToken:  tokens.AccessToken,
			RefreshToken: tokens.RefreshToken,
			TokenKind:    tokens.TokenType,
			DisplayName:  prev.NameOrFallback(),
		}
		c.store.Set(next)
		c.logger.Info("Session refreshed", log.FieldOperation, log.OpRefresh)
		return next, nil
	}

	if !c.coalesce {
		return run(ctx)
	}

	// The shared refresh outlives any single caller; a caller that gives up
	// gets its context error and leaves the session to the others.
	flight := c.flights.DoChan(prev.RefreshToken, func() (any, error) {
		return run(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return session.Session{}, ctx.Err()
	case res := <-flight:
		if res.Shared {
			c.logger.Debug("Joined in-flight refresh")
		}
		return res.Val.(session.Session), res.Err
	}
}

// send issues one HTTP request. authorization is sent verbatim when not empty.
func (c *Client) send(ctx context.Context, call Call, authorization string, out any) error {
	req, err := c.newRequest(ctx, call)
	if err != nil {
		return err
	}
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if len(body) > maxResponseSize {
		return fmt.Errorf("response too large (> %d bytes)", maxResponseSize)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Detail:     errorDetail(body),
			Body:       string(body),
		}
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", call.Method, call.Path, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, call Call) (*http.Request, error) {
	u := c.baseURL + call.Path
	if len(call.Query) > 0 {
		u += "?" + call.Query.Encode()
	}

	var (
		body        io.Reader
		contentType string
	)
	switch {
	case call.Form != nil:
		body = strings.NewReader(call.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case call.JSON != nil:
		payload, err := json.Marshal(call.JSON)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(payload)
		contentType = "application/json"
	}

	method := call.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

// errorDetail extracts the "detail" member of an error body. Non-string
// details (validation error lists) are returned as raw JSON.
func errorDetail(body []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return strings.TrimSpace(string(body))
	}
	var s string
	if err := json.Unmarshal(envelope.Detail, &s); err == nil {
		return s
	}
	return string(envelope.Detail)
}
