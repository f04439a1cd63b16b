package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bnema/cosmetic/internal/messaging"
)

// ErrStatus reports a non-success HTTP status from the backend.
var ErrStatus = errors.New("unexpected backend status")

const defaultClientTimeout = 5 * time.Second

// Client implements messaging.Backend against a Server.
type Client struct {
	baseURL string
	http    *http.Client
}

var _ messaging.Backend = (*Client)(nil)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// NewClient returns a client for the server at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultClientTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) RetrieveGenericSelectors(ctx context.Context, req messaging.GenericSelectorsRequest) (messaging.GenericSelectorsResponse, error) {
	var resp messaging.GenericSelectorsResponse
	err := c.post(ctx, PathGenericSelectors, req, &resp)
	return resp, err
}

func (c *Client) RetrieveContentScriptParameters(ctx context.Context, req messaging.ContentScriptParametersRequest) (messaging.ContentScriptParameters, error) {
	var resp messaging.ContentScriptParameters
	err := c.post(ctx, PathContentScriptParameters, req, &resp)
	return resp, err
}

// GetCollapsibleBlockedRequests returns nil when the server answered null.
func (c *Client) GetCollapsibleBlockedRequests(ctx context.Context, req messaging.CollapsibleRequest) (*messaging.CollapsibleResponse, error) {
	var resp *messaging.CollapsibleResponse
	if err := c.post(ctx, PathCollapsibleBlocked, req, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) CosmeticFiltersInjected(ctx context.Context, report messaging.InjectedReport) error {
	return c.post(ctx, PathFiltersInjected, report, nil)
}

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+PathHealth, nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s %s: %d %s", ErrStatus, req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", req.URL.Path, err)
	}
	return nil
}
