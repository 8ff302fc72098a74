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

	"github.com/a2aproject/a2a-taskserver/a2a"
)

// Extensions provides access to the extensions requested by the client and the ones
// activated during request processing.
type Extensions struct {
	callCtx *CallContext
}

// ExtensionsFrom is a helper function for quick access to Extensions in the current CallContext.
func ExtensionsFrom(ctx context.Context) (*Extensions, bool) {
	callCtx, ok := CallContextFrom(ctx)
	if !ok {
		return nil, false
	}
	return callCtx.Extensions(), true
}

// Active returns true if the extension was activated in the current CallContext.
func (e *Extensions) Active(extension *a2a.AgentExtension) bool {
	return slices.Contains(e.callCtx.activatedExtensions, extension.URI)
}

// Activate marks the extension as activated. Transports attach activated URIs to the response metadata.
func (e *Extensions) Activate(extension *a2a.AgentExtension) {
	if e.Active(extension) {
		return
	}
	e.callCtx.activatedExtensions = append(e.callCtx.activatedExtensions, extension.URI)
}

// ActivatedURIs returns all URIs activated during call execution.
func (e *Extensions) ActivatedURIs() []string {
	return slices.Clone(e.callCtx.activatedExtensions)
}

// Requested returns true if the extension was requested by the client.
func (e *Extensions) Requested(extension *a2a.AgentExtension) bool {
	return slices.Contains(e.RequestedURIs(), extension.URI)
}

// RequestedURIs returns all URIs of extensions requested by the client.
func (e *Extensions) RequestedURIs() []string {
	return e.callCtx.params.Extensions()
}

// checkRequiredExtensions fails if the client didn't declare support for an extension
// the card marks as required.
func checkRequiredExtensions(ctx context.Context, card *a2a.AgentCard) error {
	required := card.RequiredExtensions()
	if len(required) == 0 {
		return nil
	}
	exts, ok := ExtensionsFrom(ctx)
	if !ok {
		return nil
	}
	for _, ext := range required {
		if !exts.Requested(&ext) {
			return a2a.NewError(a2a.ErrExtensionSupportRequired, fmt.Sprintf("extension %q is required", ext.URI)).
				WithDetails(map[string]any{"uri": ext.URI})
		}
	}
	return nil
}
