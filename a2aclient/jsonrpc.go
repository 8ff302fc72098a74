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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"

	"github.com/google/uuid"

	"github.com/a2aproject/a2a-taskserver/a2a"
	"github.com/a2aproject/a2a-taskserver/internal/jsonrpc"
	"github.com/a2aproject/a2a-taskserver/internal/sse"
	"github.com/a2aproject/a2a-taskserver/log"
)

// WithJSONRPCTransport enables the JSON-RPC binding in a [Factory]. A nil client means [http.DefaultClient].
func WithJSONRPCTransport(client *http.Client) FactoryOption {
	return WithTransport(a2a.TransportProtocolJSONRPC, TransportFactoryFn(func(ctx context.Context, url string, card *a2a.AgentCard) (Transport, error) {
		return NewJSONRPCTransport(url, client), nil
	}))
}

// NewJSONRPCTransport creates a transport posting JSON-RPC 2.0 requests to the URL.
// Streaming methods read the response as a Server-Sent Events stream.
func NewJSONRPCTransport(url string, client *http.Client) Transport {
	if client == nil {
		client = http.DefaultClient
	}
	return &jsonrpcTransport{url: url, client: client}
}

type jsonrpcTransport struct {
	url    string
	client *http.Client
}

type jsonrpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	ID      string `json:"id"`
}

func (t *jsonrpcTransport) post(ctx context.Context, method string, params any, accept string) (*http.Response, error) {
	body, err := json.Marshal(jsonrpcRequest{JSONRPC: jsonrpc.Version, Method: method, Params: params, ID: uuid.NewString()})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", accept)
	setHeaders(ctx, req.Header)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		closeBody(ctx, resp.Body)
		return nil, fmt.Errorf("unexpected response status %s: %w", resp.Status, a2a.ErrInternalError)
	}
	return resp, nil
}

func (t *jsonrpcTransport) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	resp, err := t.post(ctx, method, params, "application/json")
	if err != nil {
		return nil, err
	}
	defer closeBody(ctx, resp.Body)

	var payload jsonrpc.StreamResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if payload.Error != nil {
		return nil, payload.Error
	}
	return payload.Result, nil
}

func (t *jsonrpcTransport) stream(ctx context.Context, method string, params any) iter.Seq2[a2a.Event, error] {
	return func(yield func(a2a.Event, error) bool) {
		resp, err := t.post(ctx, method, params, sse.ContentType)
		if err != nil {
			yield(nil, err)
			return
		}
		defer closeBody(ctx, resp.Body)

		for data, err := range sse.ParseDataStream(resp.Body) {
			if err != nil {
				yield(nil, err)
				return
			}
			var payload jsonrpc.StreamResponse
			if err := json.Unmarshal(data, &payload); err != nil {
				yield(nil, fmt.Errorf("failed to decode stream response: %w", err))
				return
			}
			if payload.Error != nil {
				yield(nil, payload.Error)
				return
			}
			event, err := a2a.UnmarshalEventJSON(payload.Result)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(event, nil) {
				return
			}
		}
	}
}

func (t *jsonrpcTransport) SendMessage(ctx context.Context, params *a2a.MessageSendParams) (a2a.SendMessageResult, error) {
	result, err := t.call(ctx, jsonrpc.MethodMessageSend, params)
	if err != nil {
		return nil, err
	}
	return a2a.UnmarshalSendMessageResultJSON(result)
}

func (t *jsonrpcTransport) SendStreamingMessage(ctx context.Context, params *a2a.MessageSendParams) iter.Seq2[a2a.Event, error] {
	return t.stream(ctx, jsonrpc.MethodMessageStream, params)
}

func (t *jsonrpcTransport) GetTask(ctx context.Context, query *a2a.TaskQueryParams) (*a2a.Task, error) {
	return callJSONRPC[a2a.Task](ctx, t, jsonrpc.MethodTasksGet, query)
}

func (t *jsonrpcTransport) ListTasks(ctx context.Context, req *a2a.ListTasksRequest) (*a2a.ListTasksResponse, error) {
	return callJSONRPC[a2a.ListTasksResponse](ctx, t, jsonrpc.MethodTasksList, req)
}

func (t *jsonrpcTransport) CancelTask(ctx context.Context, params *a2a.TaskIDParams) (*a2a.Task, error) {
	return callJSONRPC[a2a.Task](ctx, t, jsonrpc.MethodTasksCancel, params)
}

func (t *jsonrpcTransport) SubscribeToTask(ctx context.Context, params *a2a.TaskIDParams) iter.Seq2[a2a.Event, error] {
	return t.stream(ctx, jsonrpc.MethodTasksResubscribe, params)
}

func (t *jsonrpcTransport) GetTaskPushConfig(ctx context.Context, params *a2a.GetTaskPushConfigParams) (*a2a.TaskPushConfig, error) {
	return callJSONRPC[a2a.TaskPushConfig](ctx, t, jsonrpc.MethodPushConfigGet, params)
}

func (t *jsonrpcTransport) ListTaskPushConfig(ctx context.Context, params *a2a.ListTaskPushConfigParams) ([]*a2a.TaskPushConfig, error) {
	configs, err := callJSONRPC[[]*a2a.TaskPushConfig](ctx, t, jsonrpc.MethodPushConfigList, params)
	if err != nil {
		return nil, err
	}
	return *configs, nil
}

func (t *jsonrpcTransport) SetTaskPushConfig(ctx context.Context, params *a2a.TaskPushConfig) (*a2a.TaskPushConfig, error) {
	return callJSONRPC[a2a.TaskPushConfig](ctx, t, jsonrpc.MethodPushConfigSet, params)
}

func (t *jsonrpcTransport) DeleteTaskPushConfig(ctx context.Context, params *a2a.DeleteTaskPushConfigParams) error {
	_, err := t.call(ctx, jsonrpc.MethodPushConfigDelete, params)
	return err
}

func (t *jsonrpcTransport) GetExtendedAgentCard(ctx context.Context) (*a2a.AgentCard, error) {
	return callJSONRPC[a2a.AgentCard](ctx, t, jsonrpc.MethodGetAuthenticatedExtended, nil)
}

func (t *jsonrpcTransport) Destroy() error {
	return nil
}

func callJSONRPC[R any](ctx context.Context, t *jsonrpcTransport, method string, params any) (*R, error) {
	raw, err := t.call(ctx, method, params)
	if err != nil {
		return nil, err
	}
	var result R
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return &result, nil
}

// setHeaders copies the call service parameters to the request headers.
func setHeaders(ctx context.Context, header http.Header) {
	meta, ok := CallMetaFrom(ctx)
	if !ok {
		return
	}
	for key, values := range meta {
		for _, v := range values {
			header.Add(key, v)
		}
	}
}

func closeBody(ctx context.Context, body io.ReadCloser) {
	if err := body.Close(); err != nil {
		log.Warn(ctx, "failed to close response body", "error", err)
	}
}
