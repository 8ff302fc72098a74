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

// Package workqueue schedules task executions. A [Queue] accepts tasks for asynchronous
// execution and supports cooperative cancellation of queued or running executions.
package workqueue

import (
	"context"
	"errors"

	"github.com/a2aproject/a2a-taskserver/a2a"
)

// ErrQueueClosed is returned by queue operations after the queue was closed.
var ErrQueueClosed = errors.New("queue closed")

// ErrExecutionReplaced is the cancellation cause of an execution superseded by a newer execution
// of the same task. Handlers use [context.Cause] to tell it apart from a task cancellation.
var ErrExecutionReplaced = errors.New("execution replaced")

// PayloadType distinguishes work items.
type PayloadType string

const (
	PayloadTypeExecute PayloadType = "execute"
	PayloadTypeCancel  PayloadType = "cancel"
)

// Payload is a unit of work transferred through a queue.
type Payload struct {
	Type   PayloadType `json:"type"`
	Tenant string      `json:"tenant,omitempty"`
	TaskID a2a.TaskID  `json:"taskId"`
	// Attempt is the number of times the payload was returned to the queue after a failure.
	Attempt int `json:"attempt,omitempty"`
}

// HandlerFn executes a task. The context is canceled when the execution is canceled
// through [Queue.Cancel] or the queue shuts down.
type HandlerFn func(ctx context.Context, payload *Payload) error

// Queue accepts tasks for asynchronous execution.
type Queue interface {
	// Enqueue schedules an execution of the task.
	Enqueue(ctx context.Context, tenant string, taskID a2a.TaskID) error

	// Cancel cancels a queued or running execution of the task. Canceling a task
	// which is not being executed is not an error.
	Cancel(ctx context.Context, tenant string, taskID a2a.TaskID) error

	// RegisterHandler sets the function executing tasks and starts processing work.
	// It must be called once, before the first Enqueue.
	RegisterHandler(handlerFn HandlerFn)
}

// Message is a payload read from a [ReadWriter].
type Message interface {
	// Payload returns the payload of the message.
	Payload() *Payload
	// Complete marks the message as completed after it was handled by a worker.
	Complete(ctx context.Context) error
	// Return returns the message to the queue after worker failed to handle it.
	Return(ctx context.Context, cause error) error
}

// Writer publishes payloads. Execute payloads are delivered to a single reader,
// cancel payloads are delivered to every reader.
type Writer interface {
	Write(ctx context.Context, payload *Payload) error
}

// ReadWriter is a transport for a pull-based [Queue].
type ReadWriter interface {
	Writer
	// Read dequeues a new message or blocks until one is available.
	// It returns [ErrQueueClosed] after the transport was closed.
	Read(ctx context.Context) (Message, error)
}
