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

package agentcard

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/a2aproject/a2a-taskserver/a2a"
)

func TestResolver_Resolve(t *testing.T) {
	card := &a2a.AgentCard{Name: "echo", URL: "http://agent", Version: "1.0"}
	var gotHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("Authorization")
		switch r.URL.Path {
		case DefaultPath, "/custom/card.json":
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(card)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)

	resolver := &Resolver{BaseURL: server.URL + "/"}

	got, err := resolver.Resolve(t.Context())
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if diff := cmp.Diff(card, got); diff != "" {
		t.Fatalf("wrong card (-want +got) diff = %s", diff)
	}

	if _, err := resolver.Resolve(t.Context(), WithPath("/custom/card.json"), WithRequestHeader("Authorization", "Bearer token")); err != nil {
		t.Fatalf("Resolve() with options error = %v", err)
	}
	if gotHeader != "Bearer token" {
		t.Fatalf("Resolve() Authorization = %q, want Bearer token", gotHeader)
	}

	if _, err := resolver.Resolve(t.Context(), WithPath("/missing")); err == nil {
		t.Fatal("Resolve() error = nil for a missing card")
	}
}

func TestResolver_InvalidCard(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	t.Cleanup(server.Close)

	if _, err := (&Resolver{BaseURL: server.URL}).Resolve(t.Context()); err == nil {
		t.Fatal("Resolve() error = nil for an invalid card")
	}
}
