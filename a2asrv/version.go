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
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/a2aproject/a2a-taskserver/a2a"
)

// LatestProtocolVersion is assumed when a client doesn't send the A2A-Version parameter.
const LatestProtocolVersion = "1.0"

// SupportedProtocolVersions lists the major.minor protocol versions the server understands.
var SupportedProtocolVersions = []string{"0.3", LatestProtocolVersion}

// ProtocolVersionFrom returns the protocol version requested in the current call.
func ProtocolVersionFrom(ctx context.Context) string {
	callCtx, ok := CallContextFrom(ctx)
	if !ok {
		return LatestProtocolVersion
	}
	if version := callCtx.params.Version(); version != "" {
		return version
	}
	return LatestProtocolVersion
}

func checkProtocolVersion(ctx context.Context) error {
	version := ProtocolVersionFrom(ctx)
	if slices.Contains(SupportedProtocolVersions, majorMinor(version)) {
		return nil
	}
	return a2a.NewError(a2a.ErrVersionNotSupported, fmt.Sprintf("protocol version %q is not supported", version)).
		WithDetails(map[string]any{"supported": strings.Join(SupportedProtocolVersions, ",")})
}

// majorMinor turns "0.3.1" into "0.3".
func majorMinor(version string) string {
	parts := strings.SplitN(version, ".", 3)
	if len(parts) < 2 {
		return version
	}
	return parts[0] + "." + parts[1]
}
