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
	"slices"
	"strings"
)

const (
	// VersionMetaKey is the service parameter carrying the protocol version requested by the client.
	VersionMetaKey = "A2A-Version"
	// ExtensionsMetaKey is the service parameter listing the extension URIs supported by the client.
	ExtensionsMetaKey = "A2A-Extensions"
	// TenantMetaKey is the service parameter REST clients use to select a tenant.
	TenantMetaKey = "X-A2A-Tenant"
)

// ServiceParams holds the transport metadata of a request: HTTP headers for JSON-RPC and
// HTTP+JSON, gRPC metadata for gRPC. Keys are case-insensitive, and a key listed several
// times or as a comma-separated header value yields the same items.
type ServiceParams struct {
	kv map[string][]string
}

// NewServiceParams copies src, lower-casing the keys. A nil src gives empty params.
func NewServiceParams(src map[string][]string) *ServiceParams {
	kv := make(map[string][]string, len(src))
	for k, v := range src {
		key := strings.ToLower(k)
		kv[key] = append(kv[key], v...)
	}
	return &ServiceParams{kv: kv}
}

// Get returns the raw values of the key.
func (sp *ServiceParams) Get(key string) ([]string, bool) {
	if sp == nil {
		return nil, false
	}
	val, ok := sp.kv[strings.ToLower(key)]
	return slices.Clone(val), ok
}

// Values returns the items of the key, splitting comma-separated lists the way HTTP headers
// are combined. Blank items are skipped.
func (sp *ServiceParams) Values(key string) []string {
	raw, _ := sp.Get(key)
	var result []string
	for _, v := range raw {
		for item := range strings.SplitSeq(v, ",") {
			if item = strings.TrimSpace(item); item != "" {
				result = append(result, item)
			}
		}
	}
	return result
}

func (sp *ServiceParams) first(key string) string {
	if values := sp.Values(key); len(values) > 0 {
		return values[0]
	}
	return ""
}

// Version returns the requested protocol version or an empty string.
func (sp *ServiceParams) Version() string {
	return sp.first(VersionMetaKey)
}

// Extensions returns the URIs of the extensions the client declared support for.
func (sp *ServiceParams) Extensions() []string {
	return sp.Values(ExtensionsMetaKey)
}

// Tenant returns the tenant selected through [TenantMetaKey] or an empty string.
func (sp *ServiceParams) Tenant() string {
	return sp.first(TenantMetaKey)
}
