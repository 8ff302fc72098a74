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
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/a2aproject/a2a-taskserver/a2a"
	"github.com/a2aproject/a2a-taskserver/internal/rest"
	"github.com/a2aproject/a2a-taskserver/internal/sse"
)

// WithRESTTransport enables the HTTP+JSON binding in a [Factory]. A nil client means [http.DefaultClient].
func WithRESTTransport(client *http.Client) FactoryOption {
	return WithTransport(a2a.TransportProtocolHTTPJSON, TransportFactoryFn(func(ctx context.Context, url string, card *a2a.AgentCard) (Transport, error) {
		return NewRESTTransport(url, client), nil
	}))
}

// NewRESTTransport creates a transport for the HTTP+JSON binding served under the base URL.
// Tenants are sent in the X-A2A-Tenant header.
func NewRESTTransport(baseURL string, client *http.Client) Transport {
	if client == nil {
		client = http.DefaultClient
	}
	return &restTransport{baseURL: strings.TrimSuffix(baseURL, "/") + rest.PathPrefix, client: client}
}

type restTransport struct {
	baseURL string
	client  *http.Client
}

func (t *restTransport) do(ctx context.Context, method, path, tenant string, query url.Values, body any, accept string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	target := t.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", accept)
	setHeaders(ctx, req.Header)
	if tenant != "" {
		req.Header.Set(TenantMetaKey, tenant)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	if resp.StatusCode >= 300 {
		defer closeBody(ctx, resp.Body)
		return nil, rest.ToA2AError(resp)
	}
	return resp, nil
}

func restCall[R any](ctx context.Context, t *restTransport, method, path, tenant string, query url.Values, body any) (*R, error) {
	resp, err := t.do(ctx, method, path, tenant, query, body, "application/json")
	if err != nil {
		return nil, err
	}
	defer closeBody(ctx, resp.Body)

	var result R
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &result, nil
}

func (t *restTransport) stream(ctx context.Context, path, tenant string, body any) iter.Seq2[a2a.Event, error] {
	return func(yield func(a2a.Event, error) bool) {
		resp, err := t.do(ctx, http.MethodPost, path, tenant, nil, body, sse.ContentType)
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
			event, err := a2a.UnmarshalEventJSON(data)
			if err != nil {
				var problem rest.Error
				if jsonErr := json.Unmarshal(data, &problem); jsonErr == nil && problem.Type != "" {
					err = problem.A2AError()
				}
				yield(nil, err)
				return
			}
			if !yield(event, nil) {
				return
			}
		}
	}
}

func (t *restTransport) SendMessage(ctx context.Context, params *a2a.MessageSendParams) (a2a.SendMessageResult, error) {
	raw, err := restCall[json.RawMessage](ctx, t, http.MethodPost, rest.MakeSendMessagePath(), params.Tenant, nil, params)
	if err != nil {
		return nil, err
	}
	return a2a.UnmarshalSendMessageResultJSON(*raw)
}

func (t *restTransport) SendStreamingMessage(ctx context.Context, params *a2a.MessageSendParams) iter.Seq2[a2a.Event, error] {
	return t.stream(ctx, rest.MakeStreamMessagePath(), params.Tenant, params)
}

func (t *restTransport) GetTask(ctx context.Context, query *a2a.TaskQueryParams) (*a2a.Task, error) {
	values := url.Values{}
	if query.HistoryLength != nil {
		values.Set("historyLength", strconv.Itoa(*query.HistoryLength))
	}
	return restCall[a2a.Task](ctx, t, http.MethodGet, rest.MakeGetTaskPath(string(query.ID)), query.Tenant, values, nil)
}

func (t *restTransport) ListTasks(ctx context.Context, req *a2a.ListTasksRequest) (*a2a.ListTasksResponse, error) {
	values := url.Values{}
	setNonEmpty := func(key, value string) {
		if value != "" {
			values.Set(key, value)
		}
	}
	setNonEmpty("contextId", req.ContextID)
	setNonEmpty("status", string(req.Status))
	setNonEmpty("pageToken", req.PageToken)
	if req.PageSize != 0 {
		values.Set("pageSize", strconv.Itoa(req.PageSize))
	}
	if req.HistoryLength != nil {
		values.Set("historyLength", strconv.Itoa(*req.HistoryLength))
	}
	if req.LastUpdatedAfter != nil {
		values.Set("lastUpdatedAfter", req.LastUpdatedAfter.Format(time.RFC3339))
	}
	if req.IncludeArtifacts {
		values.Set("includeArtifacts", "true")
	}
	return restCall[a2a.ListTasksResponse](ctx, t, http.MethodGet, rest.MakeListTasksPath(), req.Tenant, values, nil)
}

func (t *restTransport) CancelTask(ctx context.Context, params *a2a.TaskIDParams) (*a2a.Task, error) {
	return restCall[a2a.Task](ctx, t, http.MethodPost, rest.MakeCancelTaskPath(string(params.ID)), params.Tenant, nil, nil)
}

func (t *restTransport) SubscribeToTask(ctx context.Context, params *a2a.TaskIDParams) iter.Seq2[a2a.Event, error] {
	return t.stream(ctx, rest.MakeSubscribeTaskPath(string(params.ID)), params.Tenant, nil)
}

func (t *restTransport) GetTaskPushConfig(ctx context.Context, params *a2a.GetTaskPushConfigParams) (*a2a.TaskPushConfig, error) {
	path := rest.MakePushConfigPath(string(params.TaskID), params.ConfigID)
	return restCall[a2a.TaskPushConfig](ctx, t, http.MethodGet, path, params.Tenant, nil, nil)
}

func (t *restTransport) ListTaskPushConfig(ctx context.Context, params *a2a.ListTaskPushConfigParams) ([]*a2a.TaskPushConfig, error) {
	path := rest.MakePushConfigsPath(string(params.TaskID))
	configs, err := restCall[[]*a2a.TaskPushConfig](ctx, t, http.MethodGet, path, params.Tenant, nil, nil)
	if err != nil {
		return nil, err
	}
	return *configs, nil
}

func (t *restTransport) SetTaskPushConfig(ctx context.Context, params *a2a.TaskPushConfig) (*a2a.TaskPushConfig, error) {
	path := rest.MakePushConfigsPath(string(params.TaskID))
	return restCall[a2a.TaskPushConfig](ctx, t, http.MethodPost, path, params.Tenant, nil, &params.Config)
}

func (t *restTransport) DeleteTaskPushConfig(ctx context.Context, params *a2a.DeleteTaskPushConfigParams) error {
	path := rest.MakePushConfigPath(string(params.TaskID), params.ConfigID)
	resp, err := t.do(ctx, http.MethodDelete, path, params.Tenant, nil, nil, "application/json")
	if err != nil {
		return err
	}
	closeBody(ctx, resp.Body)
	return nil
}

func (t *restTransport) GetExtendedAgentCard(ctx context.Context) (*a2a.AgentCard, error) {
	return restCall[a2a.AgentCard](ctx, t, http.MethodGet, rest.MakeGetExtendedAgentCardPath(), "", nil, nil)
}

func (t *restTransport) Destroy() error {
	return nil
}
