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

// Package agentcard fetches agent cards published by A2A servers.
package agentcard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/a2aproject/a2a-taskserver/a2a"
	"github.com/a2aproject/a2a-taskserver/log"
)

// DefaultPath is where servers publish their public card.
const DefaultPath = "/.well-known/agent-card.json"

// Resolver fetches agent cards over HTTP.
type Resolver struct {
	// BaseURL is the URL the card path is appended to.
	BaseURL string
	// Client is used for requests. Nil means [http.DefaultClient].
	Client *http.Client
}

// ResolveOption customizes a [Resolver.Resolve] call.
type ResolveOption func(r *resolveRequest)

type resolveRequest struct {
	path   string
	header http.Header
}

// WithPath makes Resolve fetch the card from the path relative to BaseURL.
func WithPath(path string) ResolveOption {
	return func(r *resolveRequest) {
		r.path = path
	}
}

// WithRequestHeader attaches a header to the request.
func WithRequestHeader(key, value string) ResolveOption {
	return func(r *resolveRequest) {
		r.header.Add(key, value)
	}
}

// Resolve fetches the card, by default from [DefaultPath].
func (r *Resolver) Resolve(ctx context.Context, opts ...ResolveOption) (*a2a.AgentCard, error) {
	rr := &resolveRequest{path: DefaultPath, header: http.Header{}}
	for _, opt := range opts {
		opt(rr)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(r.BaseURL, "/")+rr.path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header = rr.header
	req.Header.Set("Accept", "application/json")

	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch agent card: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Warn(ctx, "failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("agent card request failed with status %s", resp.Status)
	}
	var card a2a.AgentCard
	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		return nil, fmt.Errorf("failed to decode agent card: %w", err)
	}
	return &card, nil
}
