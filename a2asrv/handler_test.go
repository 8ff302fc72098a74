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
	"bytes"
	"context"
	"errors"
	"iter"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/a2aproject/a2a-taskserver/a2a"
	"github.com/a2aproject/a2a-taskserver/a2asrv/eventbus"
	"github.com/a2aproject/a2a-taskserver/a2asrv/taskstore"
	"github.com/a2aproject/a2a-taskserver/a2asrv/workqueue"
	"github.com/a2aproject/a2a-taskserver/internal/pushconfig"
	"github.com/a2aproject/a2a-taskserver/internal/testutil"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

type testEnv struct {
	handler RequestHandler
	queue   *workqueue.Local
	bus     *eventbus.Mem
	store   *testutil.TestTaskStore
	sender  *testutil.TestPushSender
}

func newTestEnv(t *testing.T, runtime AgentRuntime, opts ...RequestHandlerOption) *testEnv {
	t.Helper()
	env := &testEnv{
		queue:  workqueue.NewLocal(),
		bus:    eventbus.NewMem(),
		store:  testutil.NewTestTaskStore(),
		sender: testutil.NewTestPushSender(),
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = env.queue.Shutdown(ctx)
	})
	defaults := []RequestHandlerOption{
		WithWorkQueue(env.queue),
		WithBroadcaster(env.bus),
		WithTaskStore(env.store),
		WithPushSender(env.sender),
	}
	env.handler = NewHandler(runtime, append(defaults, opts...)...)
	return env
}

// drain waits for all running executions to finish.
func (env *testEnv) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	if err := env.queue.Shutdown(ctx); err != nil {
		t.Fatalf("queue.Shutdown() error = %v", err)
	}
}

func (env *testEnv) waitForState(t *testing.T, taskID a2a.TaskID, want a2a.TaskState) *a2a.Task {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		task, err := env.handler.OnGetTask(t.Context(), &a2a.TaskQueryParams{ID: taskID})
		if err != nil {
			t.Fatalf("OnGetTask() error = %v", err)
		}
		if task.Status.State == want {
			return task
		}
		if time.Now().After(deadline) {
			t.Fatalf("task state = %s, want %s", task.Status.State, want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func newUserMessage(text string) *a2a.Message {
	return a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{Text: text})
}

func newSendParams(text string) *a2a.MessageSendParams {
	return &a2a.MessageSendParams{Message: newUserMessage(text)}
}

func blocking(params *a2a.MessageSendParams) *a2a.MessageSendParams {
	if params.Config == nil {
		params.Config = &a2a.MessageSendConfig{}
	}
	params.Config.Blocking = true
	return params
}

func describe(event a2a.Event) string {
	switch v := event.(type) {
	case *a2a.Task:
		return "task:" + string(v.Status.State)
	case *a2a.Message:
		return "message"
	case *a2a.TaskStatusUpdateEvent:
		if v.Final {
			return "status:" + string(v.Status.State) + ":final"
		}
		return "status:" + string(v.Status.State)
	case *a2a.TaskArtifactUpdateEvent:
		return "artifact"
	}
	return "unknown"
}

func collect(t *testing.T, events iter.Seq2[a2a.Event, error]) ([]string, error) {
	t.Helper()
	var got []string
	for event, err := range events {
		if err != nil {
			return got, err
		}
		got = append(got, describe(event))
	}
	return got, nil
}

func textOf(msg *a2a.Message) string {
	if msg == nil || len(msg.Parts) == 0 {
		return ""
	}
	if part, ok := msg.Parts[0].(a2a.TextPart); ok {
		return part.Text
	}
	return ""
}

func completeWithArtifact(task *a2a.Task) []a2a.Event {
	return []a2a.Event{
		a2a.NewStatusUpdateEvent(task, a2a.TaskStateWorking, nil),
		a2a.NewArtifactEvent(task, a2a.TextPart{Text: "result"}),
		a2a.NewStatusUpdateEvent(task, a2a.TaskStateCompleted, nil),
	}
}

var streamingCard = &a2a.AgentCard{Capabilities: a2a.AgentCapabilities{Streaming: true}}

var pushCard = &a2a.AgentCard{Capabilities: a2a.AgentCapabilities{PushNotifications: true}}

func TestDefaultRequestHandler_OnSendMessage(t *testing.T) {
	runtime := &testutil.TestRuntime{ExecuteFunc: testutil.EmitEvents(completeWithArtifact)}
	env := newTestEnv(t, runtime)
	params := newSendParams("hello")

	result, err := env.handler.OnSendMessage(t.Context(), params)
	if err != nil {
		t.Fatalf("OnSendMessage() error = %v", err)
	}
	task, ok := result.(*a2a.Task)
	if !ok {
		t.Fatalf("OnSendMessage() result = %T, want *a2a.Task", result)
	}
	if task.ID == "" || task.ContextID == "" {
		t.Fatalf("OnSendMessage() returned task without IDs: %+v", task)
	}
	if task.Status.State != a2a.TaskStateSubmitted {
		t.Fatalf("OnSendMessage() state = %s, want %s", task.Status.State, a2a.TaskStateSubmitted)
	}
	if len(task.History) != 1 || task.History[0].ID != params.Message.ID || task.History[0].TaskID != task.ID {
		t.Fatalf("OnSendMessage() history = %+v, want the request message bound to the task", task.History)
	}

	completed := env.waitForState(t, task.ID, a2a.TaskStateCompleted)
	if len(completed.Artifacts) != 1 {
		t.Fatalf("completed task artifacts = %v, want 1", completed.Artifacts)
	}
}

func TestDefaultRequestHandler_OnSendMessageDirectReply(t *testing.T) {
	reply := a2a.NewMessage(a2a.MessageRoleAgent, a2a.TextPart{Text: "hi"})
	runtime := &testutil.TestRuntime{
		ProcessFunc: func(ctx context.Context, params *a2a.MessageSendParams) (a2a.SendMessageResult, error) {
			return reply, nil
		},
		ExecuteFunc: func(ctx context.Context, task *a2a.Task) iter.Seq2[a2a.Event, error] {
			t.Error("Execute() called for a direct reply")
			return func(yield func(a2a.Event, error) bool) {}
		},
	}
	env := newTestEnv(t, runtime)

	result, err := env.handler.OnSendMessage(t.Context(), blocking(newSendParams("hello")))
	if err != nil {
		t.Fatalf("OnSendMessage() error = %v", err)
	}
	if diff := cmp.Diff(reply, result); diff != "" {
		t.Fatalf("OnSendMessage() wrong result (-want +got) diff = %s", diff)
	}
	list, err := env.handler.OnListTasks(t.Context(), &a2a.ListTasksRequest{})
	if err != nil {
		t.Fatalf("OnListTasks() error = %v", err)
	}
	if list.TotalSize != 0 {
		t.Fatalf("OnListTasks() TotalSize = %d, want 0", list.TotalSize)
	}
}

func TestDefaultRequestHandler_OnSendMessageBlocking(t *testing.T) {
	testCases := []struct {
		name      string
		execute   func(task *a2a.Task) []a2a.Event
		wantState a2a.TaskState
	}{
		{
			name:      "completed with artifact",
			execute:   completeWithArtifact,
			wantState: a2a.TaskStateCompleted,
		},
		{
			name:      "no events",
			execute:   func(task *a2a.Task) []a2a.Event { return nil },
			wantState: a2a.TaskStateCompleted,
		},
		{
			name: "input required",
			execute: func(task *a2a.Task) []a2a.Event {
				prompt := a2a.NewMessageForTask(a2a.MessageRoleAgent, task, a2a.TextPart{Text: "more?"})
				return []a2a.Event{a2a.NewStatusUpdateEvent(task, a2a.TaskStateInputRequired, prompt)}
			},
			wantState: a2a.TaskStateInputRequired,
		},
		{
			name: "rejected",
			execute: func(task *a2a.Task) []a2a.Event {
				return []a2a.Event{a2a.NewStatusUpdateEvent(task, a2a.TaskStateRejected, nil)}
			},
			wantState: a2a.TaskStateRejected,
		},
		{
			name: "task replaced by runtime",
			execute: func(task *a2a.Task) []a2a.Event {
				replaced := *task
				replaced.Status = a2a.TaskStatus{State: a2a.TaskStateAuthRequired}
				return []a2a.Event{&replaced}
			},
			wantState: a2a.TaskStateAuthRequired,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, &testutil.TestRuntime{ExecuteFunc: testutil.EmitEvents(tc.execute)})

			result, err := env.handler.OnSendMessage(t.Context(), blocking(newSendParams("hello")))
			if err != nil {
				t.Fatalf("OnSendMessage() error = %v", err)
			}
			task, ok := result.(*a2a.Task)
			if !ok {
				t.Fatalf("OnSendMessage() result = %T, want *a2a.Task", result)
			}
			if task.Status.State != tc.wantState {
				t.Fatalf("OnSendMessage() state = %s, want %s", task.Status.State, tc.wantState)
			}
		})
	}
}

func TestDefaultRequestHandler_OnSendMessageHistoryLength(t *testing.T) {
	env := newTestEnv(t, &testutil.TestRuntime{ExecuteFunc: testutil.EmitEvents(func(task *a2a.Task) []a2a.Event {
		return []a2a.Event{
			a2a.NewMessageForTask(a2a.MessageRoleAgent, task, a2a.TextPart{Text: "thinking"}),
			a2a.NewMessageForTask(a2a.MessageRoleAgent, task, a2a.TextPart{Text: "done"}),
		}
	})})
	historyLength := 1
	params := blocking(newSendParams("hello"))
	params.Config.HistoryLength = &historyLength

	result, err := env.handler.OnSendMessage(t.Context(), params)
	if err != nil {
		t.Fatalf("OnSendMessage() error = %v", err)
	}
	task := result.(*a2a.Task)
	if len(task.History) != 1 || textOf(task.History[0]) != "done" {
		t.Fatalf("OnSendMessage() history = %v, want the last message", task.History)
	}

	stored := env.waitForState(t, task.ID, a2a.TaskStateCompleted)
	if len(stored.History) != 3 {
		t.Fatalf("stored history length = %d, want 3", len(stored.History))
	}
}

func TestDefaultRequestHandler_OnSendMessageProcessResult(t *testing.T) {
	env := newTestEnv(t, &testutil.TestRuntime{
		ProcessFunc: func(ctx context.Context, params *a2a.MessageSendParams) (a2a.SendMessageResult, error) {
			return &a2a.Task{ID: "given-id", ContextID: "given-ctx", Status: a2a.TaskStatus{State: a2a.TaskStateRejected}}, nil
		},
		ExecuteFunc: func(ctx context.Context, task *a2a.Task) iter.Seq2[a2a.Event, error] {
			t.Error("Execute() called for a terminal task")
			return func(yield func(a2a.Event, error) bool) {}
		},
	})

	result, err := env.handler.OnSendMessage(t.Context(), blocking(newSendParams("hello")))
	if err != nil {
		t.Fatalf("OnSendMessage() error = %v", err)
	}
	task := result.(*a2a.Task)
	if task.ID != "given-id" || task.ContextID != "given-ctx" || task.Status.State != a2a.TaskStateRejected {
		t.Fatalf("OnSendMessage() = %+v, want the task returned by the runtime", task)
	}
	if len(task.History) != 1 {
		t.Fatalf("OnSendMessage() history = %v, want the request message", task.History)
	}
}

func TestDefaultRequestHandler_OnSendMessageResume(t *testing.T) {
	runtime := &testutil.TestRuntime{ExecuteFunc: testutil.EmitEvents(func(task *a2a.Task) []a2a.Event {
		if textOf(task.History[len(task.History)-1]) == "start" {
			return []a2a.Event{a2a.NewStatusUpdateEvent(task, a2a.TaskStateInputRequired, nil)}
		}
		return []a2a.Event{a2a.NewStatusUpdateEvent(task, a2a.TaskStateCompleted, nil)}
	})}
	env := newTestEnv(t, runtime)

	result, err := env.handler.OnSendMessage(t.Context(), blocking(newSendParams("start")))
	if err != nil {
		t.Fatalf("OnSendMessage() error = %v", err)
	}
	task := result.(*a2a.Task)
	if task.Status.State != a2a.TaskStateInputRequired {
		t.Fatalf("OnSendMessage() state = %s, want %s", task.Status.State, a2a.TaskStateInputRequired)
	}

	followUp := blocking(newSendParams("continue"))
	followUp.Message.TaskID = task.ID
	result, err = env.handler.OnSendMessage(t.Context(), followUp)
	if err != nil {
		t.Fatalf("OnSendMessage() error = %v", err)
	}
	task = result.(*a2a.Task)
	if task.Status.State != a2a.TaskStateCompleted {
		t.Fatalf("OnSendMessage() state = %s, want %s", task.Status.State, a2a.TaskStateCompleted)
	}
	var texts []string
	for _, msg := range task.History {
		texts = append(texts, textOf(msg))
	}
	if diff := cmp.Diff([]string{"start", "continue"}, texts); diff != "" {
		t.Fatalf("history texts mismatch (-want +got) diff = %s", diff)
	}

	again := newSendParams("once more")
	again.Message.TaskID = task.ID
	if _, err := env.handler.OnSendMessage(t.Context(), again); !errors.Is(err, a2a.ErrUnsupportedOperation) {
		t.Fatalf("OnSendMessage() to a completed task error = %v, want %v", err, a2a.ErrUnsupportedOperation)
	}
}

func TestDefaultRequestHandler_OnSendMessageWhileSubmitted(t *testing.T) {
	started := make(chan struct{})
	var calls atomic.Int32
	runtime := &testutil.TestRuntime{ExecuteFunc: func(ctx context.Context, task *a2a.Task) iter.Seq2[a2a.Event, error] {
		return func(yield func(a2a.Event, error) bool) {
			if calls.Add(1) == 1 {
				close(started)
				<-ctx.Done()
				yield(nil, ctx.Err())
				return
			}
			yield(a2a.NewStatusUpdateEvent(task, a2a.TaskStateCompleted, nil), nil)
		}
	}}
	env := newTestEnv(t, runtime)

	result, err := env.handler.OnSendMessage(t.Context(), newSendParams("first"))
	if err != nil {
		t.Fatalf("OnSendMessage() error = %v", err)
	}
	taskID := result.(*a2a.Task).ID
	<-started

	followUp := blocking(newSendParams("second"))
	followUp.Message.TaskID = taskID
	result, err = env.handler.OnSendMessage(t.Context(), followUp)
	if err != nil {
		t.Fatalf("OnSendMessage() error = %v", err)
	}
	if state := result.(*a2a.Task).Status.State; state != a2a.TaskStateCompleted {
		t.Fatalf("OnSendMessage() state = %s, want %s", state, a2a.TaskStateCompleted)
	}
	env.drain(t)

	task, err := env.handler.OnGetTask(t.Context(), &a2a.TaskQueryParams{ID: taskID})
	if err != nil {
		t.Fatalf("OnGetTask() error = %v", err)
	}
	if task.Status.State != a2a.TaskStateCompleted {
		t.Fatalf("OnGetTask() state = %s (%q), want %s", task.Status.State, textOf(task.Status.Message), a2a.TaskStateCompleted)
	}
	var texts []string
	for _, msg := range task.History {
		texts = append(texts, textOf(msg))
	}
	if diff := cmp.Diff([]string{"first", "second"}, texts); diff != "" {
		t.Fatalf("history texts mismatch (-want +got) diff = %s", diff)
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Split(strings.TrimSpace(b.buf.String()), "\n")
}

func TestDefaultRequestHandler_OnSendMessageLogsTaskIDOnce(t *testing.T) {
	var out syncBuffer
	logger := slog.New(slog.NewJSONHandler(&out, nil))
	env := newTestEnv(t, &testutil.TestRuntime{}, WithLogger(logger))

	result, err := env.handler.OnSendMessage(t.Context(), newSendParams("hello"))
	if err != nil {
		t.Fatalf("OnSendMessage() error = %v", err)
	}
	env.drain(t)

	taskID := string(result.(*a2a.Task).ID)
	var created string
	for _, line := range out.lines() {
		if strings.Contains(line, `"msg":"task created"`) {
			created = line
		}
	}
	if created == "" {
		t.Fatalf("no task created record in %v", out.lines())
	}
	if n := strings.Count(created, `"task_id"`); n != 1 {
		t.Fatalf("task created record has %d task_id attributes, want 1: %s", n, created)
	}
	if !strings.Contains(created, `"task_id":"`+taskID+`"`) {
		t.Fatalf("task created record = %s, want task_id %s", created, taskID)
	}
	if strings.Contains(created, `"context_id":""`) {
		t.Fatalf("task created record has an empty context_id: %s", created)
	}
}

func TestDefaultRequestHandler_OnSendMessageInvalidRequests(t *testing.T) {
	negative := -1
	card := &a2a.AgentCard{DefaultOutputModes: []string{"text/plain"}}
	unknownTask := newSendParams("hello")
	unknownTask.Message.TaskID = "missing"
	otherContext := newSendParams("hello")
	otherContext.Message.TaskID = "existing"
	otherContext.Message.ContextID = "other"

	testCases := []struct {
		name    string
		params  *a2a.MessageSendParams
		wantErr error
	}{
		{name: "nil params", params: nil, wantErr: a2a.ErrInvalidParams},
		{name: "nil message", params: &a2a.MessageSendParams{}, wantErr: a2a.ErrInvalidParams},
		{name: "no parts", params: &a2a.MessageSendParams{Message: &a2a.Message{ID: "m1", Role: a2a.MessageRoleUser}}, wantErr: a2a.ErrInvalidParams},
		{name: "no message id", params: &a2a.MessageSendParams{Message: &a2a.Message{Role: a2a.MessageRoleUser, Parts: a2a.ContentParts{a2a.TextPart{Text: "hi"}}}}, wantErr: a2a.ErrInvalidParams},
		{
			name:    "negative history length",
			params:  &a2a.MessageSendParams{Message: newUserMessage("hi"), Config: &a2a.MessageSendConfig{HistoryLength: &negative}},
			wantErr: a2a.ErrInvalidParams,
		},
		{
			name:    "unsupported output modes",
			params:  &a2a.MessageSendParams{Message: newUserMessage("hi"), Config: &a2a.MessageSendConfig{AcceptedOutputModes: []string{"image/png"}}},
			wantErr: a2a.ErrUnsupportedContentType,
		},
		{
			name:    "push without capability",
			params:  &a2a.MessageSendParams{Message: newUserMessage("hi"), Config: &a2a.MessageSendConfig{PushConfig: &a2a.PushConfig{URL: "https://example.com/hook"}}},
			wantErr: a2a.ErrPushNotificationNotSupported,
		},
		{name: "unknown task", params: unknownTask, wantErr: a2a.ErrTaskNotFound},
		{name: "context mismatch", params: otherContext, wantErr: a2a.ErrInvalidParams},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, &testutil.TestRuntime{}, WithAgentCard(card))
			env.store.WithTasks(t, &a2a.Task{ID: "existing", ContextID: "ctx", Status: a2a.TaskStatus{State: a2a.TaskStateInputRequired}})

			_, err := env.handler.OnSendMessage(t.Context(), tc.params)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("OnSendMessage() error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestDefaultRequestHandler_OnSendMessageStream(t *testing.T) {
	testCases := []struct {
		name    string
		execute func(ctx context.Context, task *a2a.Task) iter.Seq2[a2a.Event, error]
		want    []string
	}{
		{
			name:    "completed with artifact",
			execute: testutil.EmitEvents(completeWithArtifact),
			want:    []string{"task:submitted", "status:working", "artifact", "status:completed:final"},
		},
		{
			name:    "no events",
			execute: testutil.EmitEvents(func(task *a2a.Task) []a2a.Event { return nil }),
			want:    []string{"task:submitted", "status:working", "status:completed:final"},
		},
		{
			name: "agent message",
			execute: testutil.EmitEvents(func(task *a2a.Task) []a2a.Event {
				return []a2a.Event{a2a.NewMessage(a2a.MessageRoleAgent, a2a.TextPart{Text: "hi"})}
			}),
			want: []string{"task:submitted", "status:working", "message", "status:completed:final"},
		},
		{
			name: "task replaced by runtime",
			execute: testutil.EmitEvents(func(task *a2a.Task) []a2a.Event {
				replaced := *task
				replaced.Status = a2a.TaskStatus{State: a2a.TaskStateInputRequired}
				return []a2a.Event{&replaced}
			}),
			want: []string{"task:submitted", "status:working", "task:input-required", "status:input-required:final"},
		},
		{
			name: "runtime failure",
			execute: func(ctx context.Context, task *a2a.Task) iter.Seq2[a2a.Event, error] {
				return func(yield func(a2a.Event, error) bool) {
					if yield(a2a.NewStatusUpdateEvent(task, a2a.TaskStateWorking, nil), nil) {
						yield(nil, errors.New("model unavailable"))
					}
				}
			},
			want: []string{"task:submitted", "status:working", "status:failed:final"},
		},
		{
			name: "illegal transition",
			execute: testutil.EmitEvents(func(task *a2a.Task) []a2a.Event {
				return []a2a.Event{a2a.NewStatusUpdateEvent(task, a2a.TaskStateSubmitted, nil)}
			}),
			want: []string{"task:submitted", "status:working", "status:failed:final"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, &testutil.TestRuntime{ExecuteFunc: tc.execute}, WithAgentCard(streamingCard))

			got, err := collect(t, env.handler.OnSendMessageStream(t.Context(), newSendParams("hello")))
			if err != nil {
				t.Fatalf("OnSendMessageStream() error = %v", err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("OnSendMessageStream() wrong events (-want +got) diff = %s", diff)
			}
		})
	}
}

func TestDefaultRequestHandler_OnSendMessageStreamFailureMessage(t *testing.T) {
	env := newTestEnv(t, &testutil.TestRuntime{
		ExecuteFunc: func(ctx context.Context, task *a2a.Task) iter.Seq2[a2a.Event, error] {
			return func(yield func(a2a.Event, error) bool) {
				yield(nil, errors.New("model unavailable"))
			}
		},
	}, WithAgentCard(streamingCard))

	var last a2a.Event
	for event, err := range env.handler.OnSendMessageStream(t.Context(), newSendParams("hello")) {
		if err != nil {
			t.Fatalf("OnSendMessageStream() error = %v", err)
		}
		last = event
	}
	status, ok := last.(*a2a.TaskStatusUpdateEvent)
	if !ok || status.Status.State != a2a.TaskStateFailed {
		t.Fatalf("last event = %v, want a failed status update", last)
	}
	if got := textOf(status.Status.Message); got != "model unavailable" {
		t.Fatalf("failure message = %q, want %q", got, "model unavailable")
	}
}

func TestDefaultRequestHandler_OnSendMessageStreamNotSupported(t *testing.T) {
	env := newTestEnv(t, &testutil.TestRuntime{})

	_, err := collect(t, env.handler.OnSendMessageStream(t.Context(), newSendParams("hello")))
	if !errors.Is(err, a2a.ErrUnsupportedOperation) {
		t.Fatalf("OnSendMessageStream() error = %v, want %v", err, a2a.ErrUnsupportedOperation)
	}
}

func TestDefaultRequestHandler_OnSendMessageStreamDirectReply(t *testing.T) {
	env := newTestEnv(t, &testutil.TestRuntime{
		ProcessFunc: func(ctx context.Context, params *a2a.MessageSendParams) (a2a.SendMessageResult, error) {
			return a2a.NewMessage(a2a.MessageRoleAgent, a2a.TextPart{Text: "hi"}), nil
		},
	}, WithAgentCard(streamingCard))

	got, err := collect(t, env.handler.OnSendMessageStream(t.Context(), newSendParams("hello")))
	if err != nil {
		t.Fatalf("OnSendMessageStream() error = %v", err)
	}
	if diff := cmp.Diff([]string{"message"}, got); diff != "" {
		t.Fatalf("OnSendMessageStream() wrong events (-want +got) diff = %s", diff)
	}
}

func TestDefaultRequestHandler_ConcurrentModificationRetried(t *testing.T) {
	env := newTestEnv(t, &testutil.TestRuntime{ExecuteFunc: testutil.EmitEvents(completeWithArtifact)})
	var mu sync.Mutex
	conflicts := 0
	env.store.UpdateFunc = func(ctx context.Context, req *taskstore.UpdateRequest) (taskstore.TaskVersion, error) {
		mu.Lock()
		conflict := conflicts < 2
		conflicts++
		mu.Unlock()
		if conflict {
			return taskstore.TaskVersionMissing, taskstore.ErrConcurrentModification
		}
		return env.store.Mem.Update(ctx, req)
	}

	result, err := env.handler.OnSendMessage(t.Context(), blocking(newSendParams("hello")))
	if err != nil {
		t.Fatalf("OnSendMessage() error = %v", err)
	}
	if state := result.(*a2a.Task).Status.State; state != a2a.TaskStateCompleted {
		t.Fatalf("OnSendMessage() state = %s, want %s", state, a2a.TaskStateCompleted)
	}
}

func TestDefaultRequestHandler_StoreFailure(t *testing.T) {
	env := newTestEnv(t, &testutil.TestRuntime{})
	env.store.CreateFunc = func(ctx context.Context, tenant string, task *a2a.Task) (taskstore.TaskVersion, error) {
		return taskstore.TaskVersionMissing, errors.New("disk full")
	}

	_, err := env.handler.OnSendMessage(t.Context(), newSendParams("hello"))
	if !errors.Is(err, a2a.ErrInternalError) {
		t.Fatalf("OnSendMessage() error = %v, want %v", err, a2a.ErrInternalError)
	}
}

func TestDefaultRequestHandler_OnGetTask(t *testing.T) {
	task := &a2a.Task{
		ID:        "task-1",
		ContextID: "ctx-1",
		Status:    a2a.TaskStatus{State: a2a.TaskStateCompleted},
		History:   []*a2a.Message{newUserMessage("one"), newUserMessage("two"), newUserMessage("three")},
	}
	zero, two, negative := 0, 2, -1

	testCases := []struct {
		name        string
		query       *a2a.TaskQueryParams
		wantHistory []string
		wantErr     error
	}{
		{name: "full history", query: &a2a.TaskQueryParams{ID: "task-1"}, wantHistory: []string{"one", "two", "three"}},
		{name: "last two", query: &a2a.TaskQueryParams{ID: "task-1", HistoryLength: &two}, wantHistory: []string{"two", "three"}},
		{name: "no history", query: &a2a.TaskQueryParams{ID: "task-1", HistoryLength: &zero}, wantHistory: nil},
		{name: "negative history length", query: &a2a.TaskQueryParams{ID: "task-1", HistoryLength: &negative}, wantErr: a2a.ErrInvalidParams},
		{name: "missing id", query: &a2a.TaskQueryParams{}, wantErr: a2a.ErrInvalidParams},
		{name: "unknown task", query: &a2a.TaskQueryParams{ID: "unknown"}, wantErr: a2a.ErrTaskNotFound},
		{name: "other tenant", query: &a2a.TaskQueryParams{Tenant: "other", ID: "task-1"}, wantErr: a2a.ErrTaskNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, &testutil.TestRuntime{})
			env.store.WithTasks(t, task)

			got, err := env.handler.OnGetTask(t.Context(), tc.query)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("OnGetTask() error = %v, want %v", err, tc.wantErr)
			}
			if err != nil {
				return
			}
			var texts []string
			for _, msg := range got.History {
				texts = append(texts, textOf(msg))
			}
			if diff := cmp.Diff(tc.wantHistory, texts); diff != "" {
				t.Fatalf("OnGetTask() wrong history (-want +got) diff = %s", diff)
			}
		})
	}
}

func TestDefaultRequestHandler_OnListTasks(t *testing.T) {
	env := newTestEnv(t, &testutil.TestRuntime{})
	for _, tenant := range []string{"a", "a", "b"} {
		params := newSendParams("hello")
		params.Tenant = tenant
		if _, err := env.handler.OnSendMessage(t.Context(), params); err != nil {
			t.Fatalf("OnSendMessage() error = %v", err)
		}
	}

	for tenant, want := range map[string]int{"a": 2, "b": 1, "": 0} {
		resp, err := env.handler.OnListTasks(t.Context(), &a2a.ListTasksRequest{Tenant: tenant})
		if err != nil {
			t.Fatalf("OnListTasks(%q) error = %v", tenant, err)
		}
		if resp.TotalSize != want || len(resp.Tasks) != want {
			t.Fatalf("OnListTasks(%q) = %d tasks, want %d", tenant, resp.TotalSize, want)
		}
	}
}

func TestDefaultRequestHandler_OnCancelTask(t *testing.T) {
	started, release := make(chan struct{}), make(chan struct{})
	defer close(release)
	env := newTestEnv(t, &testutil.TestRuntime{ExecuteFunc: testutil.BlockingExecution(started, release)})

	result, err := env.handler.OnSendMessage(t.Context(), newSendParams("hello"))
	if err != nil {
		t.Fatalf("OnSendMessage() error = %v", err)
	}
	taskID := result.(*a2a.Task).ID
	<-started

	canceled, err := env.handler.OnCancelTask(t.Context(), &a2a.TaskIDParams{ID: taskID})
	if err != nil {
		t.Fatalf("OnCancelTask() error = %v", err)
	}
	if canceled.Status.State != a2a.TaskStateCanceled {
		t.Fatalf("OnCancelTask() state = %s, want %s", canceled.Status.State, a2a.TaskStateCanceled)
	}

	env.drain(t)
	task, err := env.handler.OnGetTask(t.Context(), &a2a.TaskQueryParams{ID: taskID})
	if err != nil {
		t.Fatalf("OnGetTask() error = %v", err)
	}
	if task.Status.State != a2a.TaskStateCanceled {
		t.Fatalf("task state after execution stopped = %s, want %s", task.Status.State, a2a.TaskStateCanceled)
	}

	if _, err := env.handler.OnCancelTask(t.Context(), &a2a.TaskIDParams{ID: taskID}); !errors.Is(err, a2a.ErrTaskNotCancelable) {
		t.Fatalf("second OnCancelTask() error = %v, want %v", err, a2a.ErrTaskNotCancelable)
	}
}

func TestDefaultRequestHandler_OnCancelTaskErrors(t *testing.T) {
	testCases := []struct {
		name    string
		params  *a2a.TaskIDParams
		wantErr error
	}{
		{name: "nil params", params: nil, wantErr: a2a.ErrInvalidParams},
		{name: "unknown task", params: &a2a.TaskIDParams{ID: "unknown"}, wantErr: a2a.ErrTaskNotFound},
		{name: "completed task", params: &a2a.TaskIDParams{ID: "completed"}, wantErr: a2a.ErrTaskNotCancelable},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, &testutil.TestRuntime{})
			env.store.WithTasks(t, &a2a.Task{ID: "completed", ContextID: "ctx", Status: a2a.TaskStatus{State: a2a.TaskStateCompleted}})

			if _, err := env.handler.OnCancelTask(t.Context(), tc.params); !errors.Is(err, tc.wantErr) {
				t.Fatalf("OnCancelTask() error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestDefaultRequestHandler_CancelRacesCompletion(t *testing.T) {
	for range 20 {
		started, release := make(chan struct{}), make(chan struct{})
		env := newTestEnv(t, &testutil.TestRuntime{ExecuteFunc: testutil.BlockingExecution(started, release)})

		result, err := env.handler.OnSendMessage(t.Context(), newSendParams("hello"))
		if err != nil {
			t.Fatalf("OnSendMessage() error = %v", err)
		}
		taskID := result.(*a2a.Task).ID
		sub, err := env.bus.Subscribe(t.Context(), "", taskID)
		if err != nil {
			t.Fatalf("Subscribe() error = %v", err)
		}
		<-started

		var wg sync.WaitGroup
		wg.Go(func() {
			_, err := env.handler.OnCancelTask(t.Context(), &a2a.TaskIDParams{ID: taskID})
			if err != nil && !errors.Is(err, a2a.ErrTaskNotCancelable) {
				t.Errorf("OnCancelTask() error = %v", err)
			}
		})
		wg.Go(func() { close(release) })
		wg.Wait()
		env.drain(t)

		ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
		var finals []a2a.TaskState
		for event, err := range sub.Events(ctx) {
			if err != nil {
				break
			}
			if eventbus.IsFinal(event) {
				finals = append(finals, event.(*a2a.TaskStatusUpdateEvent).Status.State)
			}
		}
		cancel()
		_ = sub.Close()

		if len(finals) != 1 {
			t.Fatalf("got final events %v, want exactly one", finals)
		}
		task, err := env.handler.OnGetTask(t.Context(), &a2a.TaskQueryParams{ID: taskID})
		if err != nil {
			t.Fatalf("OnGetTask() error = %v", err)
		}
		if task.Status.State != finals[0] {
			t.Fatalf("stored state = %s, final event state = %s", task.Status.State, finals[0])
		}
	}
}

func TestDefaultRequestHandler_OnSubscribeToTask(t *testing.T) {
	started, release := make(chan struct{}), make(chan struct{})
	env := newTestEnv(t, &testutil.TestRuntime{ExecuteFunc: testutil.BlockingExecution(started, release)})

	result, err := env.handler.OnSendMessage(t.Context(), newSendParams("hello"))
	if err != nil {
		t.Fatalf("OnSendMessage() error = %v", err)
	}
	taskID := result.(*a2a.Task).ID
	<-started

	type outcome struct {
		events []string
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		var got []string
		for event, err := range env.handler.OnSubscribeToTask(t.Context(), &a2a.TaskIDParams{ID: taskID}) {
			if err != nil {
				done <- outcome{got, err}
				return
			}
			got = append(got, describe(event))
			if eventbus.IsFinal(event) {
				break
			}
		}
		done <- outcome{events: got}
	}()

	for env.bus.SubscriberCount("", taskID) == 0 {
		time.Sleep(time.Millisecond)
	}
	close(release)

	got := <-done
	if got.err != nil {
		t.Fatalf("OnSubscribeToTask() error = %v", got.err)
	}
	if diff := cmp.Diff([]string{"status:completed:final"}, got.events); diff != "" {
		t.Fatalf("OnSubscribeToTask() wrong events (-want +got) diff = %s", diff)
	}
}

func TestDefaultRequestHandler_SubscribedEventsMatchStoredTask(t *testing.T) {
	started, release := make(chan struct{}), make(chan struct{})
	runtime := &testutil.TestRuntime{ExecuteFunc: func(ctx context.Context, task *a2a.Task) iter.Seq2[a2a.Event, error] {
		return func(yield func(a2a.Event, error) bool) {
			factory := a2a.NewTaskEventFactory(task)
			if !yield(factory.NewStatusUpdate(a2a.TaskStateWorking, factory.NewAgentMessage(a2a.TextPart{Text: "thinking"})), nil) {
				return
			}
			close(started)
			select {
			case <-release:
			case <-ctx.Done():
				yield(nil, ctx.Err())
				return
			}
			artifact := factory.NewArtifactEvent(a2a.TextPart{Text: "hello"})
			events := []a2a.Event{
				artifact,
				factory.NewArtifactUpdateEvent(artifact.Artifact.ID, a2a.TextPart{Text: " world"}),
				factory.NewStatusUpdate(a2a.TaskStateCompleted, factory.NewAgentMessage(a2a.TextPart{Text: "done"})),
			}
			for _, event := range events {
				if !yield(event, nil) {
					return
				}
			}
		}
	}}
	env := newTestEnv(t, runtime)

	result, err := env.handler.OnSendMessage(t.Context(), newSendParams("question"))
	if err != nil {
		t.Fatalf("OnSendMessage() error = %v", err)
	}
	taskID := result.(*a2a.Task).ID
	<-started

	type outcome struct {
		events []a2a.Event
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		var got []a2a.Event
		for event, err := range env.handler.OnSubscribeToTask(t.Context(), &a2a.TaskIDParams{ID: taskID}) {
			if err != nil {
				done <- outcome{got, err}
				return
			}
			got = append(got, event)
			if eventbus.IsFinal(event) {
				break
			}
		}
		done <- outcome{events: got}
	}()
	for env.bus.SubscriberCount("", taskID) == 0 {
		time.Sleep(time.Millisecond)
	}
	close(release)

	got := <-done
	if got.err != nil {
		t.Fatalf("OnSubscribeToTask() error = %v", got.err)
	}
	var kinds []string
	for _, event := range got.events {
		kinds = append(kinds, describe(event))
	}
	if diff := cmp.Diff([]string{"artifact", "artifact", "status:completed:final"}, kinds); diff != "" {
		t.Fatalf("OnSubscribeToTask() wrong events (-want +got) diff = %s", diff)
	}

	// Rebuild the task state from the published events.
	var wantArtifacts []*a2a.Artifact
	var wantStatus *a2a.TaskStatusUpdateEvent
	for _, event := range got.events {
		switch v := event.(type) {
		case *a2a.TaskArtifactUpdateEvent:
			if v.Append {
				last := wantArtifacts[len(wantArtifacts)-1]
				last.Parts = append(slices.Clone(last.Parts), v.Artifact.Parts...)
				continue
			}
			artifact := *v.Artifact
			wantArtifacts = append(wantArtifacts, &artifact)
		case *a2a.TaskStatusUpdateEvent:
			wantStatus = v
		}
	}

	task, err := env.handler.OnGetTask(t.Context(), &a2a.TaskQueryParams{ID: taskID})
	if err != nil {
		t.Fatalf("OnGetTask() error = %v", err)
	}
	if task.Status.State != wantStatus.Status.State {
		t.Fatalf("OnGetTask() state = %s, want %s", task.Status.State, wantStatus.Status.State)
	}
	if diff := cmp.Diff(wantStatus.Status.Message, task.Status.Message, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("OnGetTask() status message mismatch (-want +got) diff = %s", diff)
	}
	if diff := cmp.Diff(wantArtifacts, task.Artifacts, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("OnGetTask() artifacts mismatch (-want +got) diff = %s", diff)
	}
	var history []string
	for _, msg := range task.History {
		history = append(history, string(msg.Role)+":"+textOf(msg))
	}
	want := []string{"user:question", "agent:thinking"}
	if diff := cmp.Diff(want, history); diff != "" {
		t.Fatalf("OnGetTask() history mismatch (-want +got) diff = %s", diff)
	}
}

func TestDefaultRequestHandler_OnSubscribeToTaskNotRunning(t *testing.T) {
	env := newTestEnv(t, &testutil.TestRuntime{})
	env.store.WithTasks(t, &a2a.Task{ID: "completed", ContextID: "ctx", Status: a2a.TaskStatus{State: a2a.TaskStateCompleted}})

	got, err := collect(t, env.handler.OnSubscribeToTask(t.Context(), &a2a.TaskIDParams{ID: "completed"}))
	if err != nil || len(got) != 0 {
		t.Fatalf("OnSubscribeToTask() = (%v, %v), want an empty stream", got, err)
	}

	_, err = collect(t, env.handler.OnSubscribeToTask(t.Context(), &a2a.TaskIDParams{ID: "unknown"}))
	if !errors.Is(err, a2a.ErrTaskNotFound) {
		t.Fatalf("OnSubscribeToTask() error = %v, want %v", err, a2a.ErrTaskNotFound)
	}
	if count := env.bus.SubscriberCount("", "completed"); count != 0 {
		t.Fatalf("SubscriberCount() = %d, want 0 after the stream ended", count)
	}
}

func TestDefaultRequestHandler_PushNotifications(t *testing.T) {
	env := newTestEnv(t, &testutil.TestRuntime{ExecuteFunc: testutil.EmitEvents(completeWithArtifact)}, WithAgentCard(pushCard))
	params := blocking(newSendParams("hello"))
	params.Config.PushConfig = &a2a.PushConfig{URL: "https://example.com/hook", Token: "secret"}

	result, err := env.handler.OnSendMessage(t.Context(), params)
	if err != nil {
		t.Fatalf("OnSendMessage() error = %v", err)
	}
	taskID := result.(*a2a.Task).ID
	env.drain(t)

	if diff := cmp.Diff([]string{"https://example.com/hook"}, env.sender.Verified()); diff != "" {
		t.Fatalf("verified URLs mismatch (-want +got) diff = %s", diff)
	}
	var got []string
	for _, push := range env.sender.Sent() {
		if push.Config.Token != "secret" {
			t.Fatalf("push sent with config %+v, want the registered one", push.Config)
		}
		got = append(got, describe(push.Event))
	}
	want := []string{"status:working", "artifact", "status:completed:final"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("pushed events mismatch (-want +got) diff = %s", diff)
	}

	configs, err := env.handler.OnListTaskPushConfig(t.Context(), &a2a.ListTaskPushConfigParams{TaskID: taskID})
	if err != nil {
		t.Fatalf("OnListTaskPushConfig() error = %v", err)
	}
	if len(configs) != 1 || configs[0].Config.ID == "" {
		t.Fatalf("OnListTaskPushConfig() = %v, want one config with an assigned ID", configs)
	}
}

func TestDefaultRequestHandler_PushVerificationFailure(t *testing.T) {
	env := newTestEnv(t, &testutil.TestRuntime{}, WithAgentCard(pushCard))
	env.sender.SetVerifyError(errors.New("no echo"))
	params := newSendParams("hello")
	params.Config = &a2a.MessageSendConfig{PushConfig: &a2a.PushConfig{URL: "https://example.com/hook"}}

	if _, err := env.handler.OnSendMessage(t.Context(), params); !errors.Is(err, a2a.ErrUnsupportedOperation) {
		t.Fatalf("OnSendMessage() error = %v, want %v", err, a2a.ErrUnsupportedOperation)
	}
	list, err := env.handler.OnListTasks(t.Context(), &a2a.ListTasksRequest{})
	if err != nil {
		t.Fatalf("OnListTasks() error = %v", err)
	}
	if list.TotalSize != 0 {
		t.Fatalf("OnListTasks() TotalSize = %d, want no task created", list.TotalSize)
	}
}

type failingPushConfigStore struct {
	taskstore.PushConfigStore
	saveErr error
}

func (s *failingPushConfigStore) Save(ctx context.Context, tenant string, taskID a2a.TaskID, config *a2a.PushConfig) (*a2a.PushConfig, error) {
	return nil, s.saveErr
}

func TestDefaultRequestHandler_PushConfigSaveFailure(t *testing.T) {
	var calls atomic.Int32
	runtime := &testutil.TestRuntime{ExecuteFunc: func(ctx context.Context, task *a2a.Task) iter.Seq2[a2a.Event, error] {
		calls.Add(1)
		return func(yield func(a2a.Event, error) bool) {
			yield(a2a.NewStatusUpdateEvent(task, a2a.TaskStateInputRequired, nil), nil)
		}
	}}
	env := newTestEnv(t, runtime, WithAgentCard(pushCard),
		WithPushConfigStore(&failingPushConfigStore{PushConfigStore: pushconfig.NewInMemoryStore(), saveErr: errors.New("store unavailable")}))
	withPush := func(params *a2a.MessageSendParams) *a2a.MessageSendParams {
		params.Config = &a2a.MessageSendConfig{PushConfig: &a2a.PushConfig{URL: "https://example.com/hook"}}
		return params
	}

	if _, err := env.handler.OnSendMessage(t.Context(), withPush(newSendParams("hello"))); !errors.Is(err, a2a.ErrInternalError) {
		t.Fatalf("OnSendMessage() error = %v, want %v", err, a2a.ErrInternalError)
	}
	list, err := env.handler.OnListTasks(t.Context(), &a2a.ListTasksRequest{})
	if err != nil {
		t.Fatalf("OnListTasks() error = %v", err)
	}
	if list.TotalSize != 0 {
		t.Fatalf("OnListTasks() TotalSize = %d, want no task left behind", list.TotalSize)
	}

	env.store.WithTasks(t, &a2a.Task{
		ID:        "waiting",
		ContextID: "ctx",
		Status:    a2a.TaskStatus{State: a2a.TaskStateInputRequired},
	})
	followUp := withPush(newSendParams("more"))
	followUp.Message.TaskID = "waiting"
	if _, err := env.handler.OnSendMessage(t.Context(), followUp); !errors.Is(err, a2a.ErrInternalError) {
		t.Fatalf("OnSendMessage() error = %v, want %v", err, a2a.ErrInternalError)
	}
	task, err := env.handler.OnGetTask(t.Context(), &a2a.TaskQueryParams{ID: "waiting"})
	if err != nil {
		t.Fatalf("OnGetTask() error = %v", err)
	}
	if len(task.History) != 0 || task.Status.State != a2a.TaskStateInputRequired {
		t.Fatalf("OnGetTask() = (%s, %d messages), want the task unchanged", task.Status.State, len(task.History))
	}
	env.drain(t)
	if got := calls.Load(); got != 0 {
		t.Fatalf("runtime executions = %d, want none", got)
	}
}

func TestDefaultRequestHandler_PushConfigCRUD(t *testing.T) {
	env := newTestEnv(t, &testutil.TestRuntime{}, WithAgentCard(pushCard))
	env.store.WithTasks(t, &a2a.Task{ID: "task-1", ContextID: "ctx", Status: a2a.TaskStatus{State: a2a.TaskStateWorking}})
	ctx := t.Context()

	saved, err := env.handler.OnSetTaskPushConfig(ctx, &a2a.TaskPushConfig{TaskID: "task-1", Config: a2a.PushConfig{URL: "https://example.com/hook"}})
	if err != nil {
		t.Fatalf("OnSetTaskPushConfig() error = %v", err)
	}
	configID := saved.Config.ID
	if configID == "" {
		t.Fatal("OnSetTaskPushConfig() didn't assign an ID")
	}

	got, err := env.handler.OnGetTaskPushConfig(ctx, &a2a.GetTaskPushConfigParams{TaskID: "task-1", ConfigID: configID})
	if err != nil {
		t.Fatalf("OnGetTaskPushConfig() error = %v", err)
	}
	if diff := cmp.Diff(saved, got); diff != "" {
		t.Fatalf("OnGetTaskPushConfig() wrong result (-want +got) diff = %s", diff)
	}

	if err := env.handler.OnDeleteTaskPushConfig(ctx, &a2a.DeleteTaskPushConfigParams{TaskID: "task-1", ConfigID: configID}); err != nil {
		t.Fatalf("OnDeleteTaskPushConfig() error = %v", err)
	}
	list, err := env.handler.OnListTaskPushConfig(ctx, &a2a.ListTaskPushConfigParams{TaskID: "task-1"})
	if err != nil {
		t.Fatalf("OnListTaskPushConfig() error = %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("OnListTaskPushConfig() = %v, want empty after delete", list)
	}
	if _, err := env.handler.OnGetTaskPushConfig(ctx, &a2a.GetTaskPushConfigParams{TaskID: "task-1", ConfigID: configID}); !errors.Is(err, a2a.ErrTaskNotFound) {
		t.Fatalf("OnGetTaskPushConfig() after delete error = %v, want %v", err, a2a.ErrTaskNotFound)
	}
}

func TestDefaultRequestHandler_PushConfigErrors(t *testing.T) {
	testCases := []struct {
		name    string
		card    *a2a.AgentCard
		config  *a2a.TaskPushConfig
		verify  error
		wantErr error
	}{
		{
			name:    "not supported",
			card:    &a2a.AgentCard{},
			config:  &a2a.TaskPushConfig{TaskID: "task-1", Config: a2a.PushConfig{URL: "https://example.com/hook"}},
			wantErr: a2a.ErrPushNotificationNotSupported,
		},
		{
			name:    "unknown task",
			card:    pushCard,
			config:  &a2a.TaskPushConfig{TaskID: "unknown", Config: a2a.PushConfig{URL: "https://example.com/hook"}},
			wantErr: a2a.ErrTaskNotFound,
		},
		{
			name:    "missing task id",
			card:    pushCard,
			config:  &a2a.TaskPushConfig{Config: a2a.PushConfig{URL: "https://example.com/hook"}},
			wantErr: a2a.ErrInvalidParams,
		},
		{
			name:    "invalid url",
			card:    pushCard,
			config:  &a2a.TaskPushConfig{TaskID: "task-1", Config: a2a.PushConfig{URL: "not a url"}},
			wantErr: a2a.ErrUnsupportedOperation,
		},
		{
			name:    "verification failed",
			card:    pushCard,
			config:  &a2a.TaskPushConfig{TaskID: "task-1", Config: a2a.PushConfig{URL: "https://example.com/hook"}},
			verify:  errors.New("no echo"),
			wantErr: a2a.ErrUnsupportedOperation,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, &testutil.TestRuntime{}, WithAgentCard(tc.card))
			env.store.WithTasks(t, &a2a.Task{ID: "task-1", ContextID: "ctx", Status: a2a.TaskStatus{State: a2a.TaskStateWorking}})
			if tc.verify != nil {
				env.sender.SetVerifyError(tc.verify)
			}

			if _, err := env.handler.OnSetTaskPushConfig(t.Context(), tc.config); !errors.Is(err, tc.wantErr) {
				t.Fatalf("OnSetTaskPushConfig() error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestDefaultRequestHandler_ProtocolVersion(t *testing.T) {
	testCases := []struct {
		version string
		wantErr error
	}{
		{version: "", wantErr: nil},
		{version: "1.0", wantErr: nil},
		{version: "0.3.2", wantErr: nil},
		{version: "2.0", wantErr: a2a.ErrVersionNotSupported},
	}

	for _, tc := range testCases {
		t.Run(tc.version, func(t *testing.T) {
			env := newTestEnv(t, &testutil.TestRuntime{})
			meta := map[string][]string{}
			if tc.version != "" {
				meta[VersionMetaKey] = []string{tc.version}
			}
			ctx, _ := WithCallContext(t.Context(), NewServiceParams(meta))

			_, err := env.handler.OnListTasks(ctx, &a2a.ListTasksRequest{})
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("OnListTasks() error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestDefaultRequestHandler_RequiredExtensions(t *testing.T) {
	const uri = "https://example.com/ext/v1"
	card := &a2a.AgentCard{Capabilities: a2a.AgentCapabilities{Extensions: []a2a.AgentExtension{{URI: uri, Required: true}}}}

	testCases := []struct {
		name      string
		requested []string
		wantErr   error
	}{
		{name: "requested", requested: []string{uri}},
		{name: "requested among others", requested: []string{"https://example.com/other, " + uri}},
		{name: "not requested", wantErr: a2a.ErrExtensionSupportRequired},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, &testutil.TestRuntime{}, WithAgentCard(card))
			meta := map[string][]string{}
			if len(tc.requested) > 0 {
				meta[ExtensionsMetaKey] = tc.requested
			}
			ctx, _ := WithCallContext(t.Context(), NewServiceParams(meta))

			_, err := env.handler.OnGetTask(ctx, &a2a.TaskQueryParams{ID: "unknown"})
			wantErr := tc.wantErr
			if wantErr == nil {
				wantErr = a2a.ErrTaskNotFound
			}
			if !errors.Is(err, wantErr) {
				t.Fatalf("OnGetTask() error = %v, want %v", err, wantErr)
			}
		})
	}
}

func TestDefaultRequestHandler_OnGetExtendedAgentCard(t *testing.T) {
	env := newTestEnv(t, &testutil.TestRuntime{})
	if _, err := env.handler.OnGetExtendedAgentCard(t.Context()); !errors.Is(err, a2a.ErrExtendedCardNotConfigured) {
		t.Fatalf("OnGetExtendedAgentCard() error = %v, want %v", err, a2a.ErrExtendedCardNotConfigured)
	}

	extended := &a2a.AgentCard{Name: "extended"}
	env = newTestEnv(t, &testutil.TestRuntime{}, WithAgentCard(&a2a.AgentCard{Name: "public"}), WithExtendedAgentCard(extended))
	got, err := env.handler.OnGetExtendedAgentCard(t.Context())
	if err != nil {
		t.Fatalf("OnGetExtendedAgentCard() error = %v", err)
	}
	if diff := cmp.Diff(extended, got); diff != "" {
		t.Fatalf("OnGetExtendedAgentCard() wrong result (-want +got) diff = %s", diff)
	}
}

func TestNewStaticAgentCardProducer(t *testing.T) {
	public := &a2a.AgentCard{Name: "public"}
	producer := NewStaticAgentCardProducer(StaticAgentCard{Public: public, Extended: &a2a.AgentCard{Name: "extended"}})

	if got := producer.Card(t.Context()); !got.SupportsAuthenticatedExtendedCard {
		t.Fatal("Card().SupportsAuthenticatedExtendedCard = false, want true")
	}
	if public.SupportsAuthenticatedExtendedCard {
		t.Fatal("input card was modified")
	}
	if got := NewStaticAgentCardProducer(StaticAgentCard{}).Card(t.Context()); got == nil || got.SupportsAuthenticatedExtendedCard {
		t.Fatalf("Card() = %v, want an empty card", got)
	}
}

func TestWrapError(t *testing.T) {
	for _, known := range a2a.KnownErrors {
		if got := wrapError("failed", known); !errors.Is(got, known) {
			t.Fatalf("wrapError(%v) = %v, want the kind preserved", known, got)
		}
	}
	if got := wrapError("failed", errors.New("boom")); !errors.Is(got, a2a.ErrInternalError) {
		t.Fatalf("wrapError() = %v, want an internal error", got)
	}
}
