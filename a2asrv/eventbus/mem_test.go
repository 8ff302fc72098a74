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

package eventbus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/a2aproject/a2a-taskserver/a2a"
	"github.com/google/go-cmp/cmp"
)

func newTask() *a2a.Task {
	return &a2a.Task{ID: a2a.NewTaskID(), ContextID: a2a.NewContextID()}
}

func collect(t *testing.T, ctx context.Context, sub Subscription, n int) []a2a.Event {
	t.Helper()
	var got []a2a.Event
	for event, err := range sub.Events(ctx) {
		if err != nil {
			t.Fatalf("Events() failed: %v", err)
		}
		got = append(got, event)
		if len(got) == n {
			break
		}
	}
	return got
}

func TestMem_FanOut(t *testing.T) {
	ctx := t.Context()
	bus := NewMem()
	task := newTask()

	subs := make([]Subscription, 3)
	for i := range subs {
		sub, err := bus.Subscribe(ctx, "", task.ID)
		if err != nil {
			t.Fatalf("Subscribe() failed: %v", err)
		}
		defer sub.Close()
		subs[i] = sub
	}

	events := []a2a.Event{
		a2a.NewStatusUpdateEvent(task, a2a.TaskStateWorking, nil),
		a2a.NewArtifactEvent(task, a2a.TextPart{Text: "out"}),
		a2a.NewStatusUpdateEvent(task, a2a.TaskStateCompleted, nil),
	}
	for _, event := range events {
		if err := bus.Publish(ctx, "", event); err != nil {
			t.Fatalf("Publish() failed: %v", err)
		}
	}

	for i, sub := range subs {
		got := collect(t, ctx, sub, len(events))
		if diff := cmp.Diff(events, got); diff != "" {
			t.Fatalf("subscriber %d got wrong events (-want +got)\n%s", i, diff)
		}
	}
}

func TestMem_FiltersByTaskAndTenant(t *testing.T) {
	ctx := t.Context()
	bus := NewMem()
	task, other := newTask(), newTask()

	sub, err := bus.Subscribe(ctx, "tenant", task.ID)
	if err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}
	defer sub.Close()

	want := a2a.NewStatusUpdateEvent(task, a2a.TaskStateWorking, nil)
	for _, publish := range []struct {
		tenant string
		event  a2a.Event
	}{
		{tenant: "tenant", event: a2a.NewStatusUpdateEvent(other, a2a.TaskStateWorking, nil)},
		{tenant: "", event: a2a.NewStatusUpdateEvent(task, a2a.TaskStateWorking, nil)},
		{tenant: "tenant", event: want},
	} {
		if err := bus.Publish(ctx, publish.tenant, publish.event); err != nil {
			t.Fatalf("Publish() failed: %v", err)
		}
	}

	got := collect(t, ctx, sub, 1)
	if got[0] != want {
		t.Fatalf("Events() = %v, want %v", got[0], want)
	}
}

func TestMem_NoReplay(t *testing.T) {
	ctx := t.Context()
	bus := NewMem()
	task := newTask()

	if err := bus.Publish(ctx, "", a2a.NewStatusUpdateEvent(task, a2a.TaskStateWorking, nil)); err != nil {
		t.Fatalf("Publish() failed: %v", err)
	}

	sub, err := bus.Subscribe(ctx, "", task.ID)
	if err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}
	defer sub.Close()

	want := a2a.NewStatusUpdateEvent(task, a2a.TaskStateCompleted, nil)
	if err := bus.Publish(ctx, "", want); err != nil {
		t.Fatalf("Publish() failed: %v", err)
	}

	got := collect(t, ctx, sub, 1)
	if got[0] != want {
		t.Fatalf("Events() = %v, want only the event published after subscribing", got[0])
	}
}

func TestMem_UntilFinal(t *testing.T) {
	ctx := t.Context()
	bus := NewMem()
	task := newTask()

	sub, err := bus.Subscribe(ctx, "", task.ID, UntilFinal())
	if err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}

	events := []a2a.Event{
		a2a.NewStatusUpdateEvent(task, a2a.TaskStateWorking, nil),
		a2a.NewStatusUpdateEvent(task, a2a.TaskStateCompleted, nil),
		a2a.NewStatusUpdateEvent(task, a2a.TaskStateWorking, nil),
	}
	for _, event := range events {
		if err := bus.Publish(ctx, "", event); err != nil {
			t.Fatalf("Publish() failed: %v", err)
		}
	}

	var got []a2a.Event
	for event, err := range sub.Events(ctx) {
		if err != nil {
			t.Fatalf("Events() failed: %v", err)
		}
		got = append(got, event)
	}
	if diff := cmp.Diff(events[:2], got); diff != "" {
		t.Fatalf("wrong events (-want +got)\n%s", diff)
	}
	if n := bus.SubscriberCount("", task.ID); n != 0 {
		t.Fatalf("SubscriberCount() = %d after final event, want 0", n)
	}
}

func TestMem_ContextCancelation(t *testing.T) {
	bus := NewMem()
	task := newTask()
	sub, err := bus.Subscribe(t.Context(), "", task.ID)
	if err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}
	defer sub.Close()

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()

	var gotErr error
	for _, err := range sub.Events(ctx) {
		gotErr = err
	}
	if !errors.Is(gotErr, context.DeadlineExceeded) {
		t.Fatalf("Events() error = %v, want %v", gotErr, context.DeadlineExceeded)
	}
	if n := bus.SubscriberCount("", task.ID); n != 1 {
		t.Fatalf("SubscriberCount() = %d, canceled read must not close the subscription", n)
	}
}

func TestMem_CloseUnblocksReader(t *testing.T) {
	bus := NewMem()
	task := newTask()
	sub, err := bus.Subscribe(t.Context(), "", task.ID)
	if err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range sub.Events(t.Context()) {
		}
	}()

	_ = sub.Close()
	_ = sub.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Events() did not return after Close()")
	}
	if err := bus.Publish(t.Context(), "", a2a.NewStatusUpdateEvent(task, a2a.TaskStateWorking, nil)); err != nil {
		t.Fatalf("Publish() after Close() failed: %v", err)
	}
}

func TestMem_PublishNeverBlocks(t *testing.T) {
	ctx := t.Context()
	bus := NewMem()
	task := newTask()
	sub, err := bus.Subscribe(ctx, "", task.ID)
	if err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}
	defer sub.Close()

	const n = 10_000
	for range n {
		if err := bus.Publish(ctx, "", a2a.NewStatusUpdateEvent(task, a2a.TaskStateWorking, nil)); err != nil {
			t.Fatalf("Publish() failed: %v", err)
		}
	}
	if got := collect(t, ctx, sub, n); len(got) != n {
		t.Fatalf("got %d events, want %d", len(got), n)
	}
}

func TestMem_ConcurrentPublish(t *testing.T) {
	ctx := t.Context()
	bus := NewMem()
	task := newTask()
	sub, err := bus.Subscribe(ctx, "", task.ID)
	if err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}
	defer sub.Close()

	const publishers, perPublisher = 8, 100
	var wg sync.WaitGroup
	for range publishers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perPublisher {
				if err := bus.Publish(ctx, "", a2a.NewArtifactEvent(task, a2a.TextPart{Text: "x"})); err != nil {
					t.Errorf("Publish() failed: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	if got := collect(t, ctx, sub, publishers*perPublisher); len(got) != publishers*perPublisher {
		t.Fatalf("got %d events, want %d", len(got), publishers*perPublisher)
	}
}

func TestMem_PublishRejectsTasklessEvents(t *testing.T) {
	bus := NewMem()
	if err := bus.Publish(t.Context(), "", a2a.NewMessage(a2a.MessageRoleAgent, a2a.TextPart{Text: "hi"})); err == nil {
		t.Fatal("Publish() of a message without task ID succeeded, want error")
	}
}
