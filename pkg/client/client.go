// Package client talks to the protocol catalog and execution services over
// HTTP.
//
// Endpoints:
//
//	GET  /protocols            list the catalog
//	GET  /protocols/{id}       one protocol (404 when unknown)
//	POST /protocols/{id}/run   execute with {"params": {...}, "simulate": bool}
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/log"
	"github.com/finlay-adaptyvbio/adaptyv-lab-ui/pkg/protocol"
)

// DefaultBaseURL is used when no API URL is configured.
const DefaultBaseURL = "http://localhost:8000"

// Service is the catalog and execution surface used by the operator tools.
type Service interface {
	ListProtocols(ctx context.Context) ([]protocol.Protocol, error)
	GetProtocol(ctx context.Context, id string) (*protocol.Protocol, error)
	RunProtocol(ctx context.Context, id string, params map[string]any, simulate bool) (*protocol.ProtocolResult, error)
}

// Client is a lightweight HTTP client for the protocol services.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *log.Logger
}

// New creates a client. A zero timeout means no client-side timeout.
func New(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
		Logger:     log.Nop(),
	}
}

// RunRequest is the body of a run call.
type RunRequest struct {
	Params   map[string]any `json:"params"`
	Simulate bool           `json:"simulate"`
}

// ListProtocols returns the catalog in service order.
func (c *Client) ListProtocols(ctx context.Context) ([]protocol.Protocol, error) {
	resp, body, err := c.do(ctx, http.MethodGet, "/protocols", nil)
	if err != nil {
		return nil, fmt.Errorf("list protocols: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{
			Op:         "Failed to fetch protocols",
			StatusCode: resp.StatusCode,
			StatusText: statusText(resp),
			Body:       truncate(body, 300),
		}
	}
	var protocols []protocol.Protocol
	if err := json.Unmarshal(body, &protocols); err != nil {
		return nil, fmt.Errorf("list protocols: parse response: %w", err)
	}
	return protocols, nil
}

// GetProtocol returns one protocol. An unknown id yields a *NotFoundError
// matching ErrNotFound.
func (c *Client) GetProtocol(ctx context.Context, id string) (*protocol.Protocol, error) {
	resp, body, err := c.do(ctx, http.MethodGet, "/protocols/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("get protocol %q: %w", id, err)
	}
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, &NotFoundError{ID: id, Detail: extractDetail(body)}
	default:
		return nil, &HTTPError{
			Op:         "Failed to fetch protocol",
			StatusCode: resp.StatusCode,
			StatusText: statusText(resp),
		}
	}
	var p protocol.Protocol
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("get protocol %q: parse response: %w", id, err)
	}
	return &p, nil
}

// RunProtocol executes a protocol and returns its structured result.
// Non-success responses yield an *ExecutionError carrying the service's
// detail message when one is supplied.
func (c *Client) RunProtocol(ctx context.Context, id string, params map[string]any, simulate bool) (*protocol.ProtocolResult, error) {
	if params == nil {
		params = map[string]any{}
	}
	payload, err := json.Marshal(RunRequest{Params: params, Simulate: simulate})
	if err != nil {
		return nil, fmt.Errorf("run protocol %q: encode request: %w", id, err)
	}

	start := time.Now()
	resp, body, err := c.do(ctx, http.MethodPost, "/protocols/"+url.PathEscape(id)+"/run", payload)
	if err != nil {
		return nil, fmt.Errorf("run protocol %q: %w", id, err)
	}
	c.Logger.Debug("run response", map[string]any{
		"protocol_id": id,
		"status":      resp.StatusCode,
		"elapsed_ms":  time.Since(start).Milliseconds(),
	})
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ExecutionError{
			StatusCode: resp.StatusCode,
			StatusText: statusText(resp),
			Detail:     extractDetail(body),
		}
	}

	var result protocol.ProtocolResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("run protocol %q: decode result: %w", id, err)
	}
	return &result, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) (*http.Response, []byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read body: %w", err)
	}
	return resp, body, nil
}

// statusText returns the reason phrase, e.g. "Not Found".
func statusText(resp *http.Response) string {
	if _, text, ok := strings.Cut(resp.Status, " "); ok && text != "" {
		return text
	}
	return http.StatusText(resp.StatusCode)
}

// extractDetail pulls a human-readable message from an error payload.
// FastAPI validation errors ({"detail": [{"loc": [...], "msg": "..."}]})
// are flattened to "loc: msg" pairs.
func extractDetail(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(payload.Detail, &s); err == nil {
		return s
	}
	var items []struct {
		Loc []any  `json:"loc"`
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(payload.Detail, &items); err == nil {
		parts := make([]string, 0, len(items))
		for _, item := range items {
			var loc []string
			for _, l := range item.Loc {
				if l == "body" {
					continue
				}
				loc = append(loc, fmt.Sprint(l))
			}
			if len(loc) == 0 {
				parts = append(parts, item.Msg)
				continue
			}
			parts = append(parts, strings.Join(loc, ".")+": "+item.Msg)
		}
		return strings.Join(parts, "; ")
	}
	if string(payload.Detail) == "null" {
		return ""
	}
	return string(payload.Detail)
}

func truncate(b []byte, n int) string {
	s := string(b)
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
