package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/radio-control/radiowake/internal/adapter"
)

// Client implements adapter.RadioAdapter for a remote radio.
type Client struct {
	adapter.AdapterBase

	endpoint string
	vendor   string
	http     *http.Client
	nextID   atomic.Int64
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithVendor selects the vendor error mapping table.
func WithVendor(vendor string) Option {
	return func(c *Client) { c.vendor = vendor }
}

// NewClient creates a client for the radio served at endpoint.
func NewClient(radioID, model, endpoint string, opts ...Option) *Client {
	c := &Client{
		AdapterBase: adapter.AdapterBase{RadioID: radioID, Model: model},
		endpoint:    endpoint,
		vendor:      "generic",
		http:        &http.Client{Timeout: 5 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LinkState queries the remote link state.
func (c *Client) LinkState(ctx context.Context) (adapter.LinkState, error) {
	res, err := c.call(ctx, MethodLinkState)
	if err != nil {
		return adapter.LinkUnknown, err
	}
	return adapter.ParseLinkState(first(res)), nil
}

// Enabled queries whether the remote radio is powered on.
func (c *Client) Enabled(ctx context.Context) (bool, error) {
	res, err := c.call(ctx, MethodRadioEnabled)
	if err != nil {
		return false, err
	}
	on, err := strconv.ParseBool(first(res))
	if err != nil {
		return false, adapter.NormalizeVendorErrorWithVendor(
			fmt.Errorf("malformed %s result %q", MethodRadioEnabled, first(res)), res, c.vendor)
	}
	return on, nil
}

// Reconnect sends the reconnect command.
func (c *Client) Reconnect(ctx context.Context) error {
	_, err := c.call(ctx, MethodReconnect)
	return err
}

func (c *Client) call(ctx context.Context, method string, params ...string) ([]string, error) {
	req := Request{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID.Add(1),
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", method, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", method, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, adapter.NormalizeVendorErrorWithVendor(fmt.Errorf("UNAVAILABLE: %w", err), nil, c.vendor)
	}
	defer resp.Body.Close()

	var rpcResp Response
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, adapter.NormalizeVendorErrorWithVendor(
			fmt.Errorf("decode %s response (status %d): %w", method, resp.StatusCode, err), nil, c.vendor)
	}
	if rpcResp.Error != nil {
		return nil, adapter.NormalizeVendorErrorWithVendor(rpcResp.Error, rpcResp.Error.Data, c.vendor)
	}
	return rpcResp.Result, nil
}

func first(res []string) string {
	if len(res) == 0 {
		return ""
	}
	return res[0]
}

var _ adapter.RadioAdapter = (*Client)(nil)
