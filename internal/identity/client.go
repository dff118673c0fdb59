package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	headerPublishableKey = "X-Publishable-Key"
	headerAuthorization  = "Authorization"
	defaultHTTPTimeout   = 30 * time.Second
	maxErrorBody         = 64 << 10
)

// Config configures a Client.
type Config struct {
	// BaseURL is the identity service frontend API, e.g. https://auth.stride.fit.
	BaseURL string

	// PublishableKey identifies the stride instance to the service.
	PublishableKey string

	// AllowedHosts restricts BaseURL to these hosts (and their subdomains).
	// Loopback is always accepted.
	AllowedHosts []string

	// HTTPClient overrides the default client (30s timeout).
	HTTPClient *http.Client

	// Logger for structured logging.
	Logger *slog.Logger
}

// Client is the HTTP implementation of Service.
type Client struct {
	base   *url.URL
	key    string
	http   *http.Client
	logger *slog.Logger

	loaded atomic.Bool

	mu    sync.RWMutex
	token string
}

var _ Service = (*Client)(nil)

// NewClient validates cfg and returns a client that has not been loaded yet.
func NewClient(cfg Config) (*Client, error) {
	base, err := validateEndpoint(cfg.BaseURL, cfg.AllowedHosts)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.PublishableKey) == "" {
		return nil, fmt.Errorf("publishable key is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		base:   base,
		key:    strings.TrimSpace(cfg.PublishableKey),
		http:   httpClient,
		logger: logger,
	}, nil
}

// Loaded implements Service.
func (c *Client) Loaded() bool {
	return c != nil && c.loaded.Load()
}

// Token returns the client token issued by the service, if any.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken restores a client token persisted by a previous run.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = strings.TrimSpace(token)
}

// Load fetches the client object and marks the client as loaded.
func (c *Client) Load(ctx context.Context) (*ClientState, error) {
	var state ClientState
	if err := c.do(ctx, http.MethodGet, "/v1/client", nil, &state); err != nil {
		return nil, fmt.Errorf("load client: %w", err)
	}
	c.loaded.Store(true)
	c.logger.Debug("identity client loaded",
		"client_id", state.ID,
		"sessions", len(state.Sessions))
	return &state, nil
}

// CreateSignIn implements Service.
func (c *Client) CreateSignIn(ctx context.Context, params SignInParams) (*SignInAttempt, error) {
	if params.Strategy == "" {
		params.Strategy = StrategyPassword
	}

	var attempt SignInAttempt
	if err := c.do(ctx, http.MethodPost, "/v1/client/sign_ins", params, &attempt); err != nil {
		return nil, fmt.Errorf("create sign-in: %w", err)
	}
	if attempt.Status == "" {
		return nil, fmt.Errorf("create sign-in: response missing status")
	}
	return &attempt, nil
}

// SetActiveSession implements Service.
func (c *Client) SetActiveSession(ctx context.Context, id SessionID) (*Session, error) {
	if id.IsZero() {
		return nil, fmt.Errorf("set active session: session id is empty")
	}

	var sess Session
	path := "/v1/client/sessions/" + url.PathEscape(id.String()) + "/touch"
	if err := c.do(ctx, http.MethodPost, path, struct{}{}, &sess); err != nil {
		return nil, fmt.Errorf("set active session: %w", err)
	}
	if sess.ID.IsZero() {
		sess.ID = id
	}
	return &sess, nil
}

// EndSession signs the given session out on the service.
func (c *Client) EndSession(ctx context.Context, id SessionID) error {
	if id.IsZero() {
		return fmt.Errorf("end session: session id is empty")
	}
	path := "/v1/client/sessions/" + url.PathEscape(id.String()) + "/end"
	if err := c.do(ctx, http.MethodPost, path, struct{}{}, nil); err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	endpoint := c.base.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(headerPublishableKey, c.key)
	if token := c.Token(); token != "" {
		req.Header.Set(headerAuthorization, "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("identity request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start))

	if rotated := bearerToken(resp.Header.Get(headerAuthorization)); rotated != "" {
		c.SetToken(rotated)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body apiErrorBody
	if len(data) > 0 && json.Unmarshal(data, &body) == nil && len(body.Errors) > 0 {
		first := body.Errors[0]
		apiErr.Code = first.Code
		apiErr.Message = first.Message
		apiErr.LongMessage = first.LongMessage
	}
	return apiErr
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}
