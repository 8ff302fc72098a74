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
)

type callContextKey struct{}

// CallContext holds information about the current server call scope.
// A transport creates it with [WithCallContext] before invoking a [RequestHandler].
type CallContext struct {
	method              string
	params              *ServiceParams
	activatedExtensions []string
}

// WithCallContext attaches a new CallContext to ctx. Params is the transport metadata of the
// request, e.g. HTTP headers or gRPC metadata.
func WithCallContext(ctx context.Context, params *ServiceParams) (context.Context, *CallContext) {
	if params == nil {
		params = NewServiceParams(nil)
	}
	callCtx := &CallContext{params: params}
	return context.WithValue(ctx, callContextKey{}, callCtx), callCtx
}

// CallContextFrom returns the CallContext attached to ctx.
func CallContextFrom(ctx context.Context) (*CallContext, bool) {
	callCtx, ok := ctx.Value(callContextKey{}).(*CallContext)
	return callCtx, ok
}

// Method returns the name of the handler method being invoked.
func (cc *CallContext) Method() string {
	return cc.method
}

// ServiceParams returns the transport metadata of the request.
func (cc *CallContext) ServiceParams() *ServiceParams {
	return cc.params
}

// Extensions returns the extensions requested and activated during the call.
func (cc *CallContext) Extensions() *Extensions {
	return &Extensions{callCtx: cc}
}
