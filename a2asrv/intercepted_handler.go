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
	"iter"

	"github.com/a2aproject/a2a-taskserver/a2a"
)

// Request is a transport-agnostic request received by the server.
// Payload is one of the a2a package params types.
type Request struct {
	Payload any
}

// Response is a transport-agnostic result produced by a [RequestHandler].
// For streaming methods a Response is observed for every produced event.
type Response struct {
	Payload any
	Err     error
}

// CallInterceptor can be attached to an [InterceptedHandler].
// If multiple interceptors are added:
//   - Before will be executed in the order of attachment sequentially.
//   - After will be executed in the reverse order sequentially.
type CallInterceptor interface {
	// Before allows to observe, modify or reject a Request.
	// A new context.Context can be returned to pass information to After.
	Before(ctx context.Context, callCtx *CallContext, req *Request) (context.Context, error)

	// After allows to observe a Response or to replace its error.
	After(ctx context.Context, callCtx *CallContext, resp *Response) error
}

// PassthroughCallInterceptor can be embedded by CallInterceptor implementers who don't need all methods.
type PassthroughCallInterceptor struct{}

func (PassthroughCallInterceptor) Before(ctx context.Context, callCtx *CallContext, req *Request) (context.Context, error) {
	return ctx, nil
}

func (PassthroughCallInterceptor) After(ctx context.Context, callCtx *CallContext, resp *Response) error {
	return nil
}

// InterceptedHandler implements [RequestHandler] by applying interceptors around the calls
// of another handler.
type InterceptedHandler struct {
	// Handler is responsible for the actual processing of every call.
	Handler RequestHandler
	// Interceptors is a list of call interceptors which will be applied before and after each call.
	Interceptors []CallInterceptor
}

var _ RequestHandler = (*InterceptedHandler)(nil)

func (h *InterceptedHandler) OnGetTask(ctx context.Context, query *a2a.TaskQueryParams) (*a2a.Task, error) {
	return intercept(ctx, h, "OnGetTask", query, h.Handler.OnGetTask)
}

func (h *InterceptedHandler) OnListTasks(ctx context.Context, req *a2a.ListTasksRequest) (*a2a.ListTasksResponse, error) {
	return intercept(ctx, h, "OnListTasks", req, h.Handler.OnListTasks)
}

func (h *InterceptedHandler) OnCancelTask(ctx context.Context, params *a2a.TaskIDParams) (*a2a.Task, error) {
	return intercept(ctx, h, "OnCancelTask", params, h.Handler.OnCancelTask)
}

func (h *InterceptedHandler) OnSendMessage(ctx context.Context, params *a2a.MessageSendParams) (a2a.SendMessageResult, error) {
	return intercept(ctx, h, "OnSendMessage", params, h.Handler.OnSendMessage)
}

func (h *InterceptedHandler) OnSendMessageStream(ctx context.Context, params *a2a.MessageSendParams) iter.Seq2[a2a.Event, error] {
	return interceptStream(ctx, h, "OnSendMessageStream", params, h.Handler.OnSendMessageStream)
}

func (h *InterceptedHandler) OnSubscribeToTask(ctx context.Context, params *a2a.TaskIDParams) iter.Seq2[a2a.Event, error] {
	return interceptStream(ctx, h, "OnSubscribeToTask", params, h.Handler.OnSubscribeToTask)
}

func (h *InterceptedHandler) OnGetTaskPushConfig(ctx context.Context, params *a2a.GetTaskPushConfigParams) (*a2a.TaskPushConfig, error) {
	return intercept(ctx, h, "OnGetTaskPushConfig", params, h.Handler.OnGetTaskPushConfig)
}

func (h *InterceptedHandler) OnListTaskPushConfig(ctx context.Context, params *a2a.ListTaskPushConfigParams) ([]*a2a.TaskPushConfig, error) {
	return intercept(ctx, h, "OnListTaskPushConfig", params, h.Handler.OnListTaskPushConfig)
}

func (h *InterceptedHandler) OnSetTaskPushConfig(ctx context.Context, params *a2a.TaskPushConfig) (*a2a.TaskPushConfig, error) {
	return intercept(ctx, h, "OnSetTaskPushConfig", params, h.Handler.OnSetTaskPushConfig)
}

func (h *InterceptedHandler) OnDeleteTaskPushConfig(ctx context.Context, params *a2a.DeleteTaskPushConfigParams) error {
	_, err := intercept(ctx, h, "OnDeleteTaskPushConfig", params, func(ctx context.Context, params *a2a.DeleteTaskPushConfigParams) (any, error) {
		return nil, h.Handler.OnDeleteTaskPushConfig(ctx, params)
	})
	return err
}

func (h *InterceptedHandler) OnGetExtendedAgentCard(ctx context.Context) (*a2a.AgentCard, error) {
	return intercept(ctx, h, "OnGetExtendedAgentCard", struct{}{}, func(ctx context.Context, _ struct{}) (*a2a.AgentCard, error) {
		return h.Handler.OnGetExtendedAgentCard(ctx)
	})
}

func intercept[P, R any](ctx context.Context, h *InterceptedHandler, method string, params P, call func(context.Context, P) (R, error)) (R, error) {
	var zero R
	ctx, callCtx := withMethodCallContext(ctx, method)
	ctx, err := h.interceptBefore(ctx, callCtx, params)
	if err != nil {
		return zero, err
	}
	response, err := call(ctx, params)
	if errOverride := h.interceptAfter(ctx, callCtx, response, err); errOverride != nil {
		return zero, errOverride
	}
	return response, err
}

func interceptStream[P any](ctx context.Context, h *InterceptedHandler, method string, params P, call func(context.Context, P) iter.Seq2[a2a.Event, error]) iter.Seq2[a2a.Event, error] {
	return func(yield func(a2a.Event, error) bool) {
		ctx, callCtx := withMethodCallContext(ctx, method)
		ctx, err := h.interceptBefore(ctx, callCtx, params)
		if err != nil {
			yield(nil, err)
			return
		}
		for event, err := range call(ctx, params) {
			if errOverride := h.interceptAfter(ctx, callCtx, event, err); errOverride != nil {
				yield(nil, errOverride)
				return
			}
			if !yield(event, err) {
				return
			}
		}
	}
}

func (h *InterceptedHandler) interceptBefore(ctx context.Context, callCtx *CallContext, payload any) (context.Context, error) {
	request := &Request{Payload: payload}
	for _, interceptor := range h.Interceptors {
		localCtx, err := interceptor.Before(ctx, callCtx, request)
		if err != nil {
			return ctx, err
		}
		ctx = localCtx
	}
	return ctx, nil
}

func (h *InterceptedHandler) interceptAfter(ctx context.Context, callCtx *CallContext, payload any, responseErr error) error {
	response := &Response{Payload: payload, Err: responseErr}
	for i := len(h.Interceptors) - 1; i >= 0; i-- {
		if err := h.Interceptors[i].After(ctx, callCtx, response); err != nil {
			return err
		}
	}
	return nil
}

// withMethodCallContext sets the method of the CallContext created by a transport or
// initializes a new CallContext for in-process calls.
func withMethodCallContext(ctx context.Context, method string) (context.Context, *CallContext) {
	callCtx, ok := CallContextFrom(ctx)
	if !ok {
		ctx, callCtx = WithCallContext(ctx, nil)
	}
	callCtx.method = method
	return ctx, callCtx
}
