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

// Package eventbus distributes task lifecycle events from executions to the requests
// observing them. Every subscriber of a task receives every event published after it
// subscribed. Events published before a subscription are not replayed.
package eventbus

import (
	"context"
	"errors"
	"iter"

	"github.com/a2aproject/a2a-taskserver/a2a"
)

// Broadcaster is a multicast channel of [a2a.Event]-s scoped by tenant and task ID.
type Broadcaster interface {
	// Publish delivers the event to every active subscription of the task the event belongs to.
	// It doesn't wait for subscribers to consume the event.
	Publish(ctx context.Context, tenant string, event a2a.Event) error

	// Subscribe creates a subscription to the events of a task.
	Subscribe(ctx context.Context, tenant string, taskID a2a.TaskID, opts ...SubscribeOption) (Subscription, error)
}

// Subscription is a single consumer view of a task's event stream.
type Subscription interface {
	// Events returns an iterator over the events in publication order. Iteration stops when the
	// subscription is closed, the context is canceled or, for subscriptions created with
	// [UntilFinal], after a final status update event was yielded.
	Events(ctx context.Context) iter.Seq2[a2a.Event, error]

	// Close releases the subscription. It is safe to call Close multiple times.
	Close() error
}

// SubscribeOption configures a subscription.
type SubscribeOption func(*subscribeConfig)

type subscribeConfig struct {
	untilFinal bool
}

// UntilFinal makes the subscription close itself after the first [a2a.TaskStatusUpdateEvent]
// with Final set to true.
func UntilFinal() SubscribeOption {
	return func(c *subscribeConfig) {
		c.untilFinal = true
	}
}

func newSubscribeConfig(opts []SubscribeOption) subscribeConfig {
	var cfg subscribeConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// IsFinal reports whether the event ends the current execution of a task.
func IsFinal(event a2a.Event) bool {
	if su, ok := event.(*a2a.TaskStatusUpdateEvent); ok {
		return su.Final
	}
	return false
}

type topic struct {
	tenant string
	taskID a2a.TaskID
}

func topicOf(tenant string, event a2a.Event) (topic, error) {
	var taskID a2a.TaskID
	switch v := event.(type) {
	case *a2a.Task:
		taskID = v.ID
	case *a2a.Message:
		taskID = v.TaskID
	case *a2a.TaskStatusUpdateEvent:
		taskID = v.TaskID
	case *a2a.TaskArtifactUpdateEvent:
		taskID = v.TaskID
	default:
		return topic{}, errors.New("unsupported event type")
	}
	if taskID == "" {
		return topic{}, errors.New("event is not associated with a task")
	}
	return topic{tenant: tenant, taskID: taskID}, nil
}
