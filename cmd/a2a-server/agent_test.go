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

package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/a2aproject/a2a-taskserver/a2a"
)

func newEchoTask(text string) *a2a.Task {
	return &a2a.Task{
		ID:        "task-1",
		ContextID: "ctx-1",
		Status:    a2a.TaskStatus{State: a2a.TaskStateWorking},
		History:   []*a2a.Message{a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{Text: text})},
	}
}

func TestEchoRuntime_Execute(t *testing.T) {
	runtime := &echoRuntime{}

	var chunks []string
	var final a2a.TaskState
	for event, err := range runtime.Execute(t.Context(), newEchoTask("hello world")) {
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		switch v := event.(type) {
		case *a2a.TaskArtifactUpdateEvent:
			chunks = append(chunks, textOf(&a2a.Message{Parts: v.Artifact.Parts}))
			if v.Append != (len(chunks) > 1) {
				t.Fatalf("chunk %d Append = %v", len(chunks), v.Append)
			}
		case *a2a.TaskStatusUpdateEvent:
			final = v.Status.State
		}
	}

	if diff := cmp.Diff([]string{"hello", " worl", "d"}, chunks); diff != "" {
		t.Fatalf("wrong chunks (-want +got) diff = %s", diff)
	}
	if final != a2a.TaskStateCompleted {
		t.Fatalf("final state = %s, want %s", final, a2a.TaskStateCompleted)
	}
}

func TestEchoRuntime_InputRequired(t *testing.T) {
	runtime := &echoRuntime{}

	var events []a2a.Event
	for event, err := range runtime.Execute(t.Context(), newEchoTask("?name")) {
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		events = append(events, event)
	}

	if len(events) != 1 {
		t.Fatalf("Execute() produced %d events, want 1", len(events))
	}
	status, ok := events[0].(*a2a.TaskStatusUpdateEvent)
	if !ok || status.Status.State != a2a.TaskStateInputRequired || !status.Final {
		t.Fatalf("Execute() = %v, want a final input-required status", events[0])
	}
}

func TestEchoRuntime_Canceled(t *testing.T) {
	runtime := &echoRuntime{chunkDelay: time.Hour}
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	var gotErr error
	for _, err := range runtime.Execute(ctx, newEchoTask("hello")) {
		gotErr = err
	}
	if !errors.Is(gotErr, context.Canceled) {
		t.Fatalf("Execute() error = %v, want %v", gotErr, context.Canceled)
	}
}

func TestEchoRuntime_Process(t *testing.T) {
	runtime := &echoRuntime{}

	msg := a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{Text: "hi"})
	result, err := runtime.Process(t.Context(), &a2a.MessageSendParams{Message: msg})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if _, ok := result.(*a2a.Task); !ok {
		t.Fatalf("Process() = %T, want a task", result)
	}

	msg.Metadata = map[string]any{"direct": true}
	result, err = runtime.Process(t.Context(), &a2a.MessageSendParams{Message: msg})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	reply, ok := result.(*a2a.Message)
	if !ok || textOf(reply) != "hi" {
		t.Fatalf("Process() = %v, want a direct reply", result)
	}
}
