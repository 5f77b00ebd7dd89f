package main

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
)

// client calls the Pimify API with a bearer token.
type client struct {
	base  string
	token string
	http  *http.Client
}

func newClient(server, token string, timeout time.Duration) *client {
	return &client{
		base:  strings.TrimRight(server, "/"),
		token: token,
		http:  &http.Client{Timeout: timeout},
	}
}

// apiError is a non-2xx response. Body holds the raw payload so callers can
// still render outcome envelopes returned with error statuses.
type apiError struct {
	Status  int
	Message string
	Body    []byte
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, http.StatusText(e.Status), e.Message)
}

func (c *client) do(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	target := c.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return data, &apiError{Status: resp.StatusCode, Message: errorMessage(data), Body: data}
	}
	return data, nil
}

// errorMessage extracts {"error": "..."} from a response, falling back to the raw body.
func errorMessage(data []byte) string {
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(data))
}

func (c *client) getJSON(ctx context.Context, path string, query url.Values, dst any) error {
	data, err := c.do(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	return decode(data, dst)
}

func (c *client) sendJSON(ctx context.Context, method, path string, body, dst any) error {
	data, err := c.do(ctx, method, path, nil, body)
	if err != nil {
		return err
	}
	return decode(data, dst)
}

func decode(data []byte, dst any) error {
	if dst == nil {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
