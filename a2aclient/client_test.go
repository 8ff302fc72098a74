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
	"errors"
	"iter"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/a2aproject/a2a-taskserver/a2a"
)

// fakeTransport panics on calls a test doesn't expect.
type fakeTransport struct {
	Transport

	sent      []*a2a.MessageSendParams
	queries   []*a2a.TaskQueryParams
	metas     []CallMeta
	streamErr error
	card      *a2a.AgentCard
	destroyed bool
}

func (t *fakeTransport) recordMeta(ctx context.Context) {
	meta, _ := CallMetaFrom(ctx)
	t.metas = append(t.metas, meta)
}

func (t *fakeTransport) SendMessage(ctx context.Context, params *a2a.MessageSendParams) (a2a.SendMessageResult, error) {
	t.recordMeta(ctx)
	t.sent = append(t.sent, params)
	return &a2a.Task{ID: "task-1", Status: a2a.TaskStatus{State: a2a.TaskStateCompleted}}, nil
}

func (t *fakeTransport) SendStreamingMessage(ctx context.Context, params *a2a.MessageSendParams) iter.Seq2[a2a.Event, error] {
	t.recordMeta(ctx)
	t.sent = append(t.sent, params)
	return func(yield func(a2a.Event, error) bool) {
		task := &a2a.Task{ID: "task-1", ContextID: "ctx-1"}
		if !yield(a2a.NewStatusUpdateEvent(task, a2a.TaskStateWorking, nil), nil) {
			return
		}
		if t.streamErr != nil {
			yield(nil, t.streamErr)
			return
		}
		yield(a2a.NewStatusUpdateEvent(task, a2a.TaskStateCompleted, nil), nil)
	}
}

func (t *fakeTransport) GetTask(ctx context.Context, query *a2a.TaskQueryParams) (*a2a.Task, error) {
	t.recordMeta(ctx)
	t.queries = append(t.queries, query)
	if query.ID == "missing" {
		return nil, a2a.ErrTaskNotFound
	}
	return &a2a.Task{ID: query.ID}, nil
}

func (t *fakeTransport) GetExtendedAgentCard(ctx context.Context) (*a2a.AgentCard, error) {
	return t.card, nil
}

func (t *fakeTransport) Destroy() error {
	t.destroyed = true
	return nil
}

type recordingInterceptor struct {
	name string
	log  *[]string
	err  error
}

func (i *recordingInterceptor) Before(ctx context.Context, req *Request) (context.Context, error) {
	*i.log = append(*i.log, i.name+".Before("+req.Method+")")
	return ctx, nil
}

func (i *recordingInterceptor) After(ctx context.Context, resp *Response) error {
	*i.log = append(*i.log, i.name+".After("+resp.Method+")")
	if i.err != nil {
		return i.err
	}
	return nil
}

func newUserMessage(text string) *a2a.MessageSendParams {
	return &a2a.MessageSendParams{Message: a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{Text: text})}
}

func TestClient_InterceptorOrder(t *testing.T) {
	var calls []string
	transport := &fakeTransport{}
	client := NewClient(transport, nil, Config{},
		&recordingInterceptor{name: "first", log: &calls},
		&recordingInterceptor{name: "second", log: &calls},
	)

	if _, err := client.GetTask(t.Context(), &a2a.TaskQueryParams{ID: "task-1"}); err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}

	want := []string{"first.Before(GetTask)", "second.Before(GetTask)", "second.After(GetTask)", "first.After(GetTask)"}
	if diff := cmp.Diff(want, calls); diff != "" {
		t.Fatalf("wrong interceptor calls (-want +got) diff = %s", diff)
	}
}

func TestClient_InterceptorReplacesError(t *testing.T) {
	var calls []string
	replaced := errors.New("replaced")
	client := NewClient(&fakeTransport{}, nil, Config{}, &recordingInterceptor{name: "i", log: &calls, err: replaced})

	if _, err := client.GetTask(t.Context(), &a2a.TaskQueryParams{ID: "task-1"}); !errors.Is(err, replaced) {
		t.Fatalf("GetTask() error = %v, want %v", err, replaced)
	}
}

func TestClient_TransportErrorPropagates(t *testing.T) {
	client := NewClient(&fakeTransport{}, nil, Config{})

	if _, err := client.GetTask(t.Context(), &a2a.TaskQueryParams{ID: "missing"}); !errors.Is(err, a2a.ErrTaskNotFound) {
		t.Fatalf("GetTask() error = %v, want %v", err, a2a.ErrTaskNotFound)
	}
}

func TestClient_CallMeta(t *testing.T) {
	transport := &fakeTransport{}
	client := NewClient(transport, nil, Config{},
		MetaInterceptor{Meta: CallMeta{VersionMetaKey: {"1.0"}}},
		ExtensionActivator{URIs: []string{"https://example.com/ext/a", "https://example.com/ext/b"}},
		ExtensionActivator{URIs: []string{"https://example.com/ext/a"}},
	)

	if _, err := client.GetTask(t.Context(), &a2a.TaskQueryParams{ID: "task-1"}); err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}

	want := []CallMeta{{
		VersionMetaKey:    {"1.0"},
		ExtensionsMetaKey: {"https://example.com/ext/a", "https://example.com/ext/b"},
	}}
	if diff := cmp.Diff(want, transport.metas); diff != "" {
		t.Fatalf("wrong call meta (-want +got) diff = %s", diff)
	}
}

func TestClient_Defaults(t *testing.T) {
	pushConfig := &a2a.PushConfig{URL: "https://example.com/hook"}
	transport := &fakeTransport{}
	client := NewClient(transport, nil, Config{
		Tenant:              "acme",
		AcceptedOutputModes: []string{"text/plain"},
		PushConfig:          pushConfig,
	})

	params := newUserMessage("hi")
	if _, err := client.SendMessage(t.Context(), params); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if _, err := client.GetTask(t.Context(), &a2a.TaskQueryParams{Tenant: "other", ID: "task-1"}); err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}

	sent := transport.sent[0]
	want := &a2a.MessageSendConfig{AcceptedOutputModes: []string{"text/plain"}, PushConfig: pushConfig, Blocking: true}
	if sent.Tenant != "acme" {
		t.Fatalf("SendMessage() tenant = %q, want acme", sent.Tenant)
	}
	if diff := cmp.Diff(want, sent.Config); diff != "" {
		t.Fatalf("wrong send config (-want +got) diff = %s", diff)
	}
	if params.Config != nil || params.Tenant != "" {
		t.Fatalf("SendMessage() modified the caller params: %+v", params)
	}
	if transport.queries[0].Tenant != "other" {
		t.Fatalf("GetTask() tenant = %q, want the explicit one", transport.queries[0].Tenant)
	}
}

func TestClient_Polling(t *testing.T) {
	transport := &fakeTransport{}
	client := NewClient(transport, nil, Config{Polling: true})

	if _, err := client.SendMessage(t.Context(), newUserMessage("hi")); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if transport.sent[0].Config.Blocking {
		t.Fatal("SendMessage() was blocking with polling enabled")
	}
}

func TestClient_SendStreamingMessage(t *testing.T) {
	testCases := []struct {
		name       string
		card       *a2a.AgentCard
		streamErr  error
		wantStates []a2a.TaskState
		wantErr    error
	}{
		{
			name:       "streaming",
			card:       &a2a.AgentCard{Capabilities: a2a.AgentCapabilities{Streaming: true}},
			wantStates: []a2a.TaskState{a2a.TaskStateWorking, a2a.TaskStateCompleted},
		},
		{
			name:       "no card",
			wantStates: []a2a.TaskState{a2a.TaskStateWorking, a2a.TaskStateCompleted},
		},
		{
			name:       "streaming not supported",
			card:       &a2a.AgentCard{},
			wantStates: []a2a.TaskState{a2a.TaskStateCompleted},
		},
		{
			name:       "stream error",
			streamErr:  a2a.ErrInternalError,
			wantStates: []a2a.TaskState{a2a.TaskStateWorking},
			wantErr:    a2a.ErrInternalError,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			client := NewClient(&fakeTransport{streamErr: tc.streamErr}, tc.card, Config{})

			var states []a2a.TaskState
			var gotErr error
			for event, err := range client.SendStreamingMessage(t.Context(), newUserMessage("hi")) {
				if err != nil {
					gotErr = err
					break
				}
				switch v := event.(type) {
				case *a2a.TaskStatusUpdateEvent:
					states = append(states, v.Status.State)
				case *a2a.Task:
					states = append(states, v.Status.State)
				}
			}

			if !errors.Is(gotErr, tc.wantErr) {
				t.Fatalf("SendStreamingMessage() error = %v, want %v", gotErr, tc.wantErr)
			}
			if diff := cmp.Diff(tc.wantStates, states); diff != "" {
				t.Fatalf("wrong states (-want +got) diff = %s", diff)
			}
		})
	}
}

func TestClient_GetAgentCard(t *testing.T) {
	public := &a2a.AgentCard{Name: "public"}
	client := NewClient(&fakeTransport{}, public, Config{})
	if got, err := client.GetAgentCard(t.Context()); err != nil || got != public {
		t.Fatalf("GetAgentCard() = (%v, %v), want the public card", got, err)
	}

	extended := &a2a.AgentCard{Name: "extended"}
	transport := &fakeTransport{card: extended}
	client = NewClient(transport, &a2a.AgentCard{Name: "public", SupportsAuthenticatedExtendedCard: true}, Config{})
	for range 2 {
		got, err := client.GetAgentCard(t.Context())
		if err != nil || got != extended {
			t.Fatalf("GetAgentCard() = (%v, %v), want the extended card", got, err)
		}
	}
}

func TestClient_Destroy(t *testing.T) {
	transport := &fakeTransport{}
	if err := NewClient(transport, nil, Config{}).Destroy(); err != nil || !transport.destroyed {
		t.Fatalf("Destroy() = %v, destroyed = %v", err, transport.destroyed)
	}
}
