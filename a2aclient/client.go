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
	"fmt"
	"iter"
	"sync/atomic"

	"github.com/a2aproject/a2a-taskserver/a2a"
)

// Config holds defaults applied to the calls of a [Client].
type Config struct {
	// Tenant is used for calls which don't specify one.
	Tenant string
	// AcceptedOutputModes are set on messages which don't specify their own.
	AcceptedOutputModes []string
	// PushConfig is registered for every task created by a message which doesn't specify its own.
	PushConfig *a2a.PushConfig
	// Polling makes SendMessage return as soon as the task is created instead of waiting
	// until the task is terminal or interrupted.
	Polling bool
	// PreferredTransports orders the protocols a [Factory] tries. When empty, the order
	// of the agent card is used.
	PreferredTransports []a2a.TransportProtocol
}

// Client is a transport-agnostic A2A client. Calls are delegated to a [Transport] with
// the [CallInterceptor]s applied around them.
type Client struct {
	config       Config
	transport    Transport
	interceptors []CallInterceptor

	card atomic.Pointer[a2a.AgentCard]
}

// NewClient creates a client using the transport. The card is optional and enables capability
// checks and agent card caching.
func NewClient(transport Transport, card *a2a.AgentCard, config Config, interceptors ...CallInterceptor) *Client {
	c := &Client{config: config, transport: transport, interceptors: interceptors}
	if card != nil {
		c.card.Store(card)
	}
	return c
}

// AddCallInterceptor attaches an interceptor which will be applied after the existing ones.
func (c *Client) AddCallInterceptor(ci CallInterceptor) {
	c.interceptors = append(c.interceptors, ci)
}

func (c *Client) GetTask(ctx context.Context, query *a2a.TaskQueryParams) (*a2a.Task, error) {
	q := *query
	q.Tenant = c.tenant(q.Tenant)
	return doCall(ctx, c, "GetTask", &q, c.transport.GetTask)
}

func (c *Client) ListTasks(ctx context.Context, req *a2a.ListTasksRequest) (*a2a.ListTasksResponse, error) {
	r := *req
	r.Tenant = c.tenant(r.Tenant)
	return doCall(ctx, c, "ListTasks", &r, c.transport.ListTasks)
}

func (c *Client) CancelTask(ctx context.Context, params *a2a.TaskIDParams) (*a2a.Task, error) {
	p := *params
	p.Tenant = c.tenant(p.Tenant)
	return doCall(ctx, c, "CancelTask", &p, c.transport.CancelTask)
}

func (c *Client) SendMessage(ctx context.Context, params *a2a.MessageSendParams) (a2a.SendMessageResult, error) {
	return doCall(ctx, c, "SendMessage", c.withDefaults(params, !c.config.Polling), c.transport.SendMessage)
}

// SendStreamingMessage streams the events of the task created or continued by the message.
// When the agent card doesn't advertise streaming, the result of a blocking SendMessage is
// yielded as the only event.
func (c *Client) SendStreamingMessage(ctx context.Context, params *a2a.MessageSendParams) iter.Seq2[a2a.Event, error] {
	params = c.withDefaults(params, true)
	if card := c.card.Load(); card != nil && !card.Capabilities.Streaming {
		return func(yield func(a2a.Event, error) bool) {
			result, err := doCall(ctx, c, "SendMessage", params, c.transport.SendMessage)
			if err != nil {
				yield(nil, err)
				return
			}
			yield(result.(a2a.Event), nil)
		}
	}
	return doStream(ctx, c, "SendStreamingMessage", params, c.transport.SendStreamingMessage)
}

func (c *Client) SubscribeToTask(ctx context.Context, params *a2a.TaskIDParams) iter.Seq2[a2a.Event, error] {
	p := *params
	p.Tenant = c.tenant(p.Tenant)
	return doStream(ctx, c, "SubscribeToTask", &p, c.transport.SubscribeToTask)
}

func (c *Client) GetTaskPushConfig(ctx context.Context, params *a2a.GetTaskPushConfigParams) (*a2a.TaskPushConfig, error) {
	p := *params
	p.Tenant = c.tenant(p.Tenant)
	return doCall(ctx, c, "GetTaskPushConfig", &p, c.transport.GetTaskPushConfig)
}

func (c *Client) ListTaskPushConfig(ctx context.Context, params *a2a.ListTaskPushConfigParams) ([]*a2a.TaskPushConfig, error) {
	p := *params
	p.Tenant = c.tenant(p.Tenant)
	return doCall(ctx, c, "ListTaskPushConfig", &p, c.transport.ListTaskPushConfig)
}

func (c *Client) SetTaskPushConfig(ctx context.Context, params *a2a.TaskPushConfig) (*a2a.TaskPushConfig, error) {
	p := *params
	p.Tenant = c.tenant(p.Tenant)
	return doCall(ctx, c, "SetTaskPushConfig", &p, c.transport.SetTaskPushConfig)
}

func (c *Client) DeleteTaskPushConfig(ctx context.Context, params *a2a.DeleteTaskPushConfigParams) error {
	p := *params
	p.Tenant = c.tenant(p.Tenant)
	_, err := doCall(ctx, c, "DeleteTaskPushConfig", &p, func(ctx context.Context, p *a2a.DeleteTaskPushConfigParams) (struct{}, error) {
		return struct{}{}, c.transport.DeleteTaskPushConfig(ctx, p)
	})
	return err
}

// GetAgentCard returns the card the client was created with. If the card advertises an
// extended card, the extended card is fetched once and cached.
func (c *Client) GetAgentCard(ctx context.Context) (*a2a.AgentCard, error) {
	card := c.card.Load()
	if card != nil && !card.SupportsAuthenticatedExtendedCard {
		return card, nil
	}
	extended, err := doCall(ctx, c, "GetExtendedAgentCard", &struct{}{}, func(ctx context.Context, _ *struct{}) (*a2a.AgentCard, error) {
		return c.transport.GetExtendedAgentCard(ctx)
	})
	if err != nil {
		return nil, err
	}
	c.card.Store(extended)
	return extended, nil
}

// Destroy releases the transport.
func (c *Client) Destroy() error {
	return c.transport.Destroy()
}

func (c *Client) tenant(tenant string) string {
	if tenant == "" {
		return c.config.Tenant
	}
	return tenant
}

func (c *Client) withDefaults(params *a2a.MessageSendParams, blocking bool) *a2a.MessageSendParams {
	result := *params
	result.Tenant = c.tenant(result.Tenant)
	config := a2a.MessageSendConfig{}
	if result.Config != nil {
		config = *result.Config
	}
	if config.AcceptedOutputModes == nil {
		config.AcceptedOutputModes = c.config.AcceptedOutputModes
	}
	if config.PushConfig == nil {
		config.PushConfig = c.config.PushConfig
	}
	config.Blocking = blocking
	result.Config = &config
	return &result
}

func interceptBefore[Req any](ctx context.Context, c *Client, method string, payload Req) (context.Context, Req, error) {
	req := &Request{Method: method, Meta: CallMeta{}, Payload: payload}
	for _, interceptor := range c.interceptors {
		var err error
		if ctx, err = interceptor.Before(ctx, req); err != nil {
			return ctx, payload, err
		}
	}
	typed, ok := req.Payload.(Req)
	if !ok {
		return ctx, payload, fmt.Errorf("payload type changed from %T to %T", payload, req.Payload)
	}
	return withCallMeta(ctx, req.Meta), typed, nil
}

func interceptAfter(ctx context.Context, c *Client, method string, payload any, err error) error {
	resp := &Response{Method: method, Payload: payload, Err: err}
	for i := len(c.interceptors) - 1; i >= 0; i-- {
		if err := c.interceptors[i].After(ctx, resp); err != nil {
			return err
		}
	}
	return resp.Err
}

func doCall[Req, Resp any](ctx context.Context, c *Client, method string, req Req, call func(context.Context, Req) (Resp, error)) (Resp, error) {
	var zero Resp
	ctx, req, err := interceptBefore(ctx, c, method, req)
	if err != nil {
		return zero, err
	}
	resp, err := call(ctx, req)
	if err := interceptAfter(ctx, c, method, resp, err); err != nil {
		return zero, err
	}
	return resp, nil
}

func doStream[Req any](ctx context.Context, c *Client, method string, req Req, call func(context.Context, Req) iter.Seq2[a2a.Event, error]) iter.Seq2[a2a.Event, error] {
	return func(yield func(a2a.Event, error) bool) {
		ctx, req, err := interceptBefore(ctx, c, method, req)
		if err != nil {
			yield(nil, err)
			return
		}
		for event, err := range call(ctx, req) {
			if err := interceptAfter(ctx, c, method, event, err); err != nil {
				yield(nil, err)
				return
			}
			if !yield(event, nil) {
				return
			}
		}
	}
}
