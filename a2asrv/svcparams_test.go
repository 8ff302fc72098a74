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

package a2asrv

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestServiceParams_Accessors(t *testing.T) {
	testCases := []struct {
		name           string
		src            map[string][]string
		wantVersion    string
		wantExtensions []string
		wantTenant     string
	}{
		{
			name: "nil source",
		},
		{
			name: "http headers",
			src: map[string][]string{
				"A2A-Version":    {"1.0"},
				"A2a-Extensions": {"https://ext/a, https://ext/b", " "},
				"X-A2a-Tenant":   {"acme"},
			},
			wantVersion:    "1.0",
			wantExtensions: []string{"https://ext/a", "https://ext/b"},
			wantTenant:     "acme",
		},
		{
			name: "grpc metadata with mixed key case",
			src: map[string][]string{
				"a2a-extensions": {"https://ext/a"},
				"A2A-EXTENSIONS": {"https://ext/b"},
				"a2a-version":    {"0.3", "1.0"},
			},
			wantVersion:    "0.3",
			wantExtensions: []string{"https://ext/a", "https://ext/b"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			params := NewServiceParams(tc.src)
			if got := params.Version(); got != tc.wantVersion {
				t.Errorf("Version() = %q, want %q", got, tc.wantVersion)
			}
			if diff := cmp.Diff(tc.wantExtensions, params.Extensions(), cmpopts.SortSlices(func(a, b string) bool { return a < b })); diff != "" {
				t.Errorf("Extensions() wrong result (-want +got) diff = %s", diff)
			}
			if got := params.Tenant(); got != tc.wantTenant {
				t.Errorf("Tenant() = %q, want %q", got, tc.wantTenant)
			}
		})
	}
}

func TestServiceParams_GetReturnsCopy(t *testing.T) {
	src := map[string][]string{"Authorization": {"Bearer a"}}
	params := NewServiceParams(src)
	src["Authorization"][0] = "changed"

	got, ok := params.Get("authorization")
	if !ok || got[0] != "Bearer a" {
		t.Fatalf("Get() = (%v, %v), want the value at construction", got, ok)
	}
	got[0] = "mutated"
	if again, _ := params.Get("AUTHORIZATION"); again[0] != "Bearer a" {
		t.Fatalf("Get() = %v after the caller mutated a previous result", again)
	}

	var nilParams *ServiceParams
	if got, ok := nilParams.Get("authorization"); ok || got != nil {
		t.Fatalf("nil Get() = (%v, %v), want (nil, false)", got, ok)
	}
}
