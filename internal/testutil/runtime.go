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

package testutil

import (
	"context"
	"iter"

	"github.com/a2aproject/a2a-taskserver/a2a"
)

// TestRuntime is an agent runtime driven by function fields.
// Without ProcessFunc a new task is created for every message.
// Without ExecuteFunc the execution yields nothing.
type TestRuntime struct {
	ProcessFunc func(ctx context.Context, params *a2a.MessageSendParams) (a2a.SendMessageResult, error)
	ExecuteFunc func(ctx context.Context, task *a2a.Task) iter.Seq2[a2a.Event, error]
}

func (r *TestRuntime) Process(ctx context.Context, params *a2a.MessageSendParams) (a2a.SendMessageResult, error) {
	if r.ProcessFunc != nil {
		return r.ProcessFunc(ctx, params)
	}
	return &a2a.Task{}, nil
}

func (r *TestRuntime) Execute(ctx context.Context, task *a2a.Task) iter.Seq2[a2a.Event, error] {
	if r.ExecuteFunc != nil {
		return r.ExecuteFunc(ctx, task)
	}
	return func(yield func(a2a.Event, error) bool) {}
}

// EmitEvents creates an execution which yields the events produced by the function for the task.
func EmitEvents(produce func(task *a2a.Task) []a2a.Event) func(context.Context, *a2a.Task) iter.Seq2[a2a.Event, error] {
	return func(ctx context.Context, task *a2a.Task) iter.Seq2[a2a.Event, error] {
		return func(yield func(a2a.Event, error) bool) {
			for _, event := range produce(task) {
				if !yield(event, nil) {
					return
				}
			}
		}
	}
}

// BlockingExecution creates an execution which reports working and waits for the release channel
// to close or the execution context to get canceled.
func BlockingExecution(started chan<- struct{}, release <-chan struct{}) func(context.Context, *a2a.Task) iter.Seq2[a2a.Event, error] {
	return func(ctx context.Context, task *a2a.Task) iter.Seq2[a2a.Event, error] {
		return func(yield func(a2a.Event, error) bool) {
			if !yield(a2a.NewStatusUpdateEvent(task, a2a.TaskStateWorking, nil), nil) {
				return
			}
			if started != nil {
				close(started)
			}
			select {
			case <-release:
			case <-ctx.Done():
				yield(nil, ctx.Err())
			}
		}
	}
}
