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
	"encoding/json"
	"fmt"
	"iter"
	"net/http"
	"time"

	"github.com/a2aproject/a2a-taskserver/a2a"
	"github.com/a2aproject/a2a-taskserver/internal/jsonrpc"
	"github.com/a2aproject/a2a-taskserver/log"
)

// TransportOption configures the HTTP transports.
type TransportOption func(*transportConfig)

type transportConfig struct {
	keepAlive time.Duration
}

// WithKeepAliveInterval sets the interval of keep-alive comments on idle event streams.
// Non-positive values disable keep-alives.
func WithKeepAliveInterval(d time.Duration) TransportOption {
	return func(c *transportConfig) {
		c.keepAlive = d
	}
}

func newTransportConfig(opts []TransportOption) transportConfig {
	cfg := transportConfig{keepAlive: DefaultKeepAliveInterval}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// JSONRPCHandler serves the JSON-RPC 2.0 binding of the protocol. Streaming methods respond
// with an event stream of response envelopes.
type JSONRPCHandler struct {
	handler RequestHandler
	cfg     transportConfig
}

// NewJSONRPCHandler creates an [http.Handler] invoking the provided [RequestHandler].
func NewJSONRPCHandler(handler RequestHandler, opts ...TransportOption) *JSONRPCHandler {
	return &JSONRPCHandler{handler: handler, cfg: newTransportConfig(opts)}
}

func (h *JSONRPCHandler) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	defer func() { _ = req.Body.Close() }()
	ctx, _ := WithCallContext(req.Context(), NewServiceParams(req.Header))

	if req.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var payload jsonrpc.Request
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		h.writeResponse(ctx, rw, nil, nil, fmt.Errorf("%w: %v", a2a.ErrParseError, err))
		return
	}
	if payload.JSONRPC != jsonrpc.Version || payload.Method == "" {
		h.writeResponse(ctx, rw, payload.ID, nil, fmt.Errorf("%w: not a JSON-RPC 2.0 request", a2a.ErrInvalidRequest))
		return
	}

	if payload.Method == jsonrpc.MethodTasksResubscribe || payload.Method == jsonrpc.MethodMessageStream {
		h.handleStreamingRequest(ctx, rw, &payload)
	} else {
		h.handleRequest(ctx, rw, &payload)
	}
}

func (h *JSONRPCHandler) handleRequest(ctx context.Context, rw http.ResponseWriter, req *jsonrpc.Request) {
	var result any
	var err error
	switch req.Method {
	case jsonrpc.MethodTasksGet:
		result, err = callWithParams(ctx, req.Params, h.handler.OnGetTask)
	case jsonrpc.MethodTasksList:
		result, err = callWithParams(ctx, req.Params, h.handler.OnListTasks)
	case jsonrpc.MethodMessageSend:
		result, err = callWithParams(ctx, req.Params, h.handler.OnSendMessage)
	case jsonrpc.MethodTasksCancel:
		result, err = callWithParams(ctx, req.Params, h.handler.OnCancelTask)
	case jsonrpc.MethodPushConfigGet:
		result, err = callWithParams(ctx, req.Params, h.handler.OnGetTaskPushConfig)
	case jsonrpc.MethodPushConfigList:
		result, err = callWithParams(ctx, req.Params, h.handler.OnListTaskPushConfig)
	case jsonrpc.MethodPushConfigSet:
		result, err = callWithParams(ctx, req.Params, h.handler.OnSetTaskPushConfig)
	case jsonrpc.MethodPushConfigDelete:
		result, err = callWithParams(ctx, req.Params, func(ctx context.Context, params *a2a.DeleteTaskPushConfigParams) (any, error) {
			return struct{}{}, h.handler.OnDeleteTaskPushConfig(ctx, params)
		})
	case jsonrpc.MethodGetAuthenticatedExtended:
		result, err = h.handler.OnGetExtendedAgentCard(ctx)
	default:
		err = fmt.Errorf("%w: %s", a2a.ErrMethodNotFound, req.Method)
	}
	h.writeResponse(ctx, rw, req.ID, result, err)
}

func (h *JSONRPCHandler) handleStreamingRequest(ctx context.Context, rw http.ResponseWriter, req *jsonrpc.Request) {
	events := func(ctx context.Context) iter.Seq2[a2a.Event, error] {
		switch req.Method {
		case jsonrpc.MethodTasksResubscribe:
			return streamWithParams(ctx, req.Params, h.handler.OnSubscribeToTask)
		default:
			return streamWithParams(ctx, req.Params, h.handler.OnSendMessageStream)
		}
	}
	writeEventStream(ctx, rw, h.cfg.keepAlive, events, func(event a2a.Event, err error) ([]byte, error) {
		return json.Marshal(newJSONRPCResponse(ctx, req.ID, event, err))
	})
}

func (h *JSONRPCHandler) writeResponse(ctx context.Context, rw http.ResponseWriter, id any, result any, err error) {
	rw.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(rw).Encode(newJSONRPCResponse(ctx, id, result, err)); err != nil {
		log.Error(ctx, "failed to write response", err)
	}
}

func newJSONRPCResponse(ctx context.Context, id any, result any, err error) jsonrpc.Response {
	if err != nil {
		logRequestError(ctx, err)
		return jsonrpc.Response{JSONRPC: jsonrpc.Version, ID: id, Error: jsonrpc.ToJSONRPCError(err)}
	}
	return jsonrpc.Response{JSONRPC: jsonrpc.Version, ID: id, Result: result}
}

func callWithParams[P, R any](ctx context.Context, raw json.RawMessage, call func(context.Context, *P) (R, error)) (R, error) {
	var params P
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &params); err != nil {
			var zero R
			return zero, fmt.Errorf("%w: %v", a2a.ErrInvalidParams, err)
		}
	}
	return call(ctx, &params)
}

func streamWithParams[P any](ctx context.Context, raw json.RawMessage, call func(context.Context, *P) iter.Seq2[a2a.Event, error]) iter.Seq2[a2a.Event, error] {
	var params P
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &params); err != nil {
			return func(yield func(a2a.Event, error) bool) {
				yield(nil, fmt.Errorf("%w: %v", a2a.ErrInvalidParams, err))
			}
		}
	}
	return call(ctx, &params)
}
