/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package backend is the HTTP client for the remote Project Service.
package backend

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds every request unless Options.Timeout overrides it.
const DefaultTimeout = 60 * time.Second

// Options configures a Client.
type Options struct {
	BaseURL     string
	Token       string // bearer token, optional
	Timeout     time.Duration
	InsecureTLS bool
	// Strict validates {project} envelopes against the embedded schema before decoding.
	Strict bool
	// HTTPClient replaces the transport entirely; Timeout and InsecureTLS are then ignored.
	HTTPClient *http.Client
}

// Client talks to the Project Service.
type Client struct {
	BaseURL string
	Token   string
	strict  bool
	client  *http.Client
}

// NewClient creates a client with default options. baseURL may include a
// trailing slash; it will be normalized.
func NewClient(baseURL, token string) *Client {
	return New(Options{BaseURL: baseURL, Token: token})
}

// New creates a client from opts.
func New(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
		if opts.InsecureTLS {
			tr := http.DefaultTransport.(*http.Transport).Clone()
			tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for self-signed dev servers
			hc.Transport = tr
		}
	}
	return &Client{
		BaseURL: strings.TrimRight(opts.BaseURL, "/"),
		Token:   opts.Token,
		strict:  opts.Strict,
		client:  hc,
	}
}

// RequestError is returned for any non-2xx response. The response body is not parsed.
type RequestError struct {
	Op     string // e.g. "create project"
	Method string
	Path   string
	Status int
}

func (e *RequestError) Error() string { return "failed to " + e.Op }

// Detail includes the request line and status for logs.
func (e *RequestError) Detail() string {
	return fmt.Sprintf("failed to %s: %s %s: %d %s", e.Op, e.Method, e.Path, e.Status, http.StatusText(e.Status))
}

// Ack is the loosely typed acknowledgement returned by action endpoints.
type Ack map[string]any

// Message returns the "message" field if the server sent one.
func (a Ack) Message() string {
	if s, ok := a["message"].(string); ok {
		return s
	}
	return ""
}

// request describes one call; body is either a JSON value or a multipart form.
type request struct {
	op     string
	method string
	path   string
	json   any
	form   *form
}

func (c *Client) do(ctx context.Context, r request) ([]byte, error) {
	u, err := url.Parse(c.BaseURL + r.path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r.op, err)
	}
	var body io.Reader
	contentType := ""
	switch {
	case r.form != nil:
		b, ct, err := r.form.encode()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", r.op, err)
		}
		body, contentType = b, ct
	case r.json != nil:
		b, err := json.Marshal(r.json)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", r.op, err)
		}
		body, contentType = bytes.NewReader(b), "application/json"
	}
	req, err := http.NewRequestWithContext(ctx, r.method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r.op, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r.op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &RequestError{Op: r.op, Method: r.method, Path: u.Path, Status: resp.StatusCode}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", r.op, err)
	}
	return data, nil
}

func decodeAck(op string, data []byte) (Ack, error) {
	ack := Ack{}
	if len(bytes.TrimSpace(data)) == 0 {
		return ack, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&ack); err != nil {
		return nil, fmt.Errorf("%s: decode ack: %w", op, err)
	}
	return ack, nil
}

// maxMediaSize caps downloads of processed images.
const maxMediaSize = 64 << 20

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("media exceeds %d bytes", limit)
	}
	return data, nil
}
