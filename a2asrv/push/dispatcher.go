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

package push

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/a2aproject/a2a-taskserver/a2a"
	"github.com/a2aproject/a2a-taskserver/a2asrv/taskstore"
	"github.com/a2aproject/a2a-taskserver/log"
)

// Result is the outcome of delivering an event to a single push config.
type Result struct {
	ConfigID string
	Err      error
}

// Dispatcher fans task events out to every push config registered for the task.
// Delivery is best-effort: failures are logged and reported, never returned as errors.
type Dispatcher struct {
	store  taskstore.PushConfigStore
	sender Sender
}

// NewDispatcher creates a [Dispatcher].
func NewDispatcher(store taskstore.PushConfigStore, sender Sender) *Dispatcher {
	return &Dispatcher{store: store, sender: sender}
}

// Dispatch delivers the event to all configs of the task concurrently and waits for every
// delivery to finish.
func (d *Dispatcher) Dispatch(ctx context.Context, tenant string, taskID a2a.TaskID, event a2a.Event) []Result {
	configs, err := d.store.List(ctx, tenant, taskID)
	if err != nil {
		log.Warn(ctx, "failed to load push configs", "task_id", taskID, "error", err)
		return nil
	}
	if len(configs) == 0 {
		return nil
	}

	results := make([]Result, len(configs))
	var group errgroup.Group
	for i, config := range configs {
		group.Go(func() error {
			err := d.sender.Send(ctx, config, event)
			if err != nil {
				log.Warn(ctx, "push notification delivery failed", "task_id", taskID, "config_id", config.ID, "error", err)
			}
			results[i] = Result{ConfigID: config.ID, Err: err}
			return nil
		})
	}
	_ = group.Wait()
	return results
}
