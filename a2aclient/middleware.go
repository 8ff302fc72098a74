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

package a2aclient

import (
	"context"
	"maps"
	"slices"
)

type callMetaKey struct{}

// CallMeta holds service parameters of a call. JSON-RPC and REST transports send them as
// HTTP headers, the gRPC transport as request metadata.
type CallMeta map[string][]string

// Append adds values to the key, skipping the ones which are already present.
func (m CallMeta) Append(key string, values ...string) {
	for _, v := range values {
		if !slices.Contains(m[key], v) {
			m[key] = append(m[key], v)
		}
	}
}

// Request is a transport-agnostic call observed by interceptors.
// Payload is one of the a2a package params types and can be replaced with a value of the same type.
type Request struct {
	Method  string
	Meta    CallMeta
	Payload any
}

// Response is a transport-agnostic result observed by interceptors. For streaming calls
// a Response is observed for every received event.
type Response struct {
	Method  string
	Payload any
	Err     error
}

// CallInterceptor can be attached to a [Client].
// Before is executed in the order of attachment, After in the reverse order.
type CallInterceptor interface {
	// Before can modify or reject a Request. The returned context is passed to the transport and to After.
	Before(ctx context.Context, req *Request) (context.Context, error)

	// After can observe a Response or replace its error.
	After(ctx context.Context, resp *Response) error
}

// PassthroughInterceptor can be embedded by CallInterceptor implementers who don't need all methods.
type PassthroughInterceptor struct{}

func (PassthroughInterceptor) Before(ctx context.Context, req *Request) (context.Context, error) {
	return ctx, nil
}

func (PassthroughInterceptor) After(ctx context.Context, resp *Response) error {
	return nil
}

// CallMetaFrom returns the service parameters a [Transport] must attach to the call.
func CallMetaFrom(ctx context.Context) (CallMeta, bool) {
	meta, ok := ctx.Value(callMetaKey{}).(CallMeta)
	return meta, ok
}

func withCallMeta(ctx context.Context, meta CallMeta) context.Context {
	return context.WithValue(ctx, callMetaKey{}, meta)
}

// MetaInterceptor attaches static service parameters to every call, for example
// the A2A-Version the client implements.
type MetaInterceptor struct {
	PassthroughInterceptor
	Meta CallMeta
}

func (i MetaInterceptor) Before(ctx context.Context, req *Request) (context.Context, error) {
	for _, key := range slices.Sorted(maps.Keys(i.Meta)) {
		req.Meta.Append(key, i.Meta[key]...)
	}
	return ctx, nil
}

// ExtensionActivator declares client support for the extensions through the A2A-Extensions parameter.
type ExtensionActivator struct {
	PassthroughInterceptor
	URIs []string
}

func (a ExtensionActivator) Before(ctx context.Context, req *Request) (context.Context, error) {
	req.Meta.Append(ExtensionsMetaKey, a.URIs...)
	return ctx, nil
}
