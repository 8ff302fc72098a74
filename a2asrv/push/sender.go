// Copyright 2025 The A2A Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package push delivers task events to client-registered webhooks.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/a2aproject/a2a-taskserver/a2a"
)

const (
	// TokenHeader carries the client-supplied token of a push config.
	TokenHeader = "X-A2A-Notification-Token"
	// ValidationTokenParam is the query parameter of a verification challenge.
	ValidationTokenParam = "validationToken"
)

// Sender verifies and delivers push notifications.
type Sender interface {
	// VerifyURL checks that the endpoint of the config is reachable and accepts notifications.
	VerifyURL(ctx context.Context, config *a2a.PushConfig) error
	// Send delivers the event to the endpoint of the config.
	Send(ctx context.Context, config *a2a.PushConfig, event a2a.Event) error
}

// SenderOption configures an [HTTPSender].
type SenderOption func(*HTTPSender)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) SenderOption {
	return func(s *HTTPSender) {
		s.client = client
	}
}

// WithHostRateLimit limits the number of requests sent to a single host.
func WithHostRateLimit(perSecond float64, burst int) SenderOption {
	return func(s *HTTPSender) {
		s.limit = rate.Limit(perSecond)
		s.burst = burst
	}
}

// HTTPSender sends A2A events to a push notification endpoint over HTTP.
type HTTPSender struct {
	client *http.Client
	limit  rate.Limit
	burst  int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

var _ Sender = (*HTTPSender)(nil)

// NewHTTPSender creates a new HTTPSender. Without options it uses a client with a 30-second
// timeout and doesn't limit the request rate.
func NewHTTPSender(opts ...SenderOption) *HTTPSender {
	s := &HTTPSender{
		client:   &http.Client{Timeout: 30 * time.Second},
		limit:    rate.Inf,
		limiters: make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// VerifyURL sends a GET challenge with a random validation token and expects the endpoint to
// echo the token back in the response body.
func (s *HTTPSender) VerifyURL(ctx context.Context, config *a2a.PushConfig) error {
	endpoint, err := url.Parse(config.URL)
	if err != nil {
		return fmt.Errorf("invalid push endpoint: %w", err)
	}
	token := uuid.NewString()
	query := endpoint.Query()
	query.Set(ValidationTokenParam, token)
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create verification request: %w", err)
	}
	if config.Token != "" {
		req.Header.Set(TokenHeader, config.Token)
	}

	resp, err := s.do(req)
	if err != nil {
		return fmt.Errorf("push endpoint verification failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("push endpoint verification returned non-success status: %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil {
		return fmt.Errorf("failed to read verification response: %w", err)
	}
	if strings.TrimSpace(string(body)) != token {
		return fmt.Errorf("push endpoint did not echo the validation token")
	}
	return nil
}

// Send serializes the event to JSON and sends it as an HTTP POST request
// to the URL specified in the push configuration.
func (s *HTTPSender) Send(ctx context.Context, config *a2a.PushConfig, event a2a.Event) error {
	jsonData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to serialize event to JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, config.URL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if config.Token != "" {
		req.Header.Set(TokenHeader, config.Token)
	}
	if auth := config.Auth; auth != nil && auth.Credentials != "" && len(auth.Schemes) > 0 {
		req.Header.Set("Authorization", auth.Schemes[0]+" "+auth.Credentials)
	}

	resp, err := s.do(req)
	if err != nil {
		return fmt.Errorf("failed to send push notification: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("push notification endpoint returned non-success status: %s", resp.Status)
	}
	return nil
}

func (s *HTTPSender) do(req *http.Request) (*http.Response, error) {
	if err := s.hostLimiter(req.URL.Host).Wait(req.Context()); err != nil {
		return nil, err
	}
	return s.client.Do(req)
}

func (s *HTTPSender) hostLimiter(host string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[host]
	if !ok {
		l = rate.NewLimiter(s.limit, s.burst)
		s.limiters[host] = l
	}
	return l
}
