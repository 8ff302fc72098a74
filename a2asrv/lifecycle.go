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
	"context"
	"errors"
	"fmt"

	"github.com/a2aproject/a2a-taskserver/a2a"
	"github.com/a2aproject/a2a-taskserver/a2asrv/taskstore"
	"github.com/a2aproject/a2a-taskserver/internal/taskupdate"
	"github.com/a2aproject/a2a-taskserver/log"
)

// maxUpdateAttempts bounds compare-and-swap retries of a single event.
const maxUpdateAttempts = 5

type storeSaver struct {
	store  taskstore.Store
	tenant string
}

func (s storeSaver) Save(ctx context.Context, task *a2a.Task, event a2a.Event, prev taskstore.TaskVersion) (taskstore.TaskVersion, error) {
	return s.store.Update(ctx, &taskstore.UpdateRequest{Tenant: s.tenant, Task: task, Event: event, PrevVersion: prev})
}

// taskWriter runs the load, apply, persist, publish cycle for a single task. The task
// snapshot it holds is always the last one it read from or wrote to the store.
type taskWriter struct {
	h      *defaultRequestHandler
	tenant string
	taskID a2a.TaskID
	mgr    *taskupdate.Manager
}

func (h *defaultRequestHandler) loadTask(ctx context.Context, tenant string, taskID a2a.TaskID) (*taskWriter, error) {
	w := &taskWriter{h: h, tenant: tenant, taskID: taskID}
	if err := w.reload(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *taskWriter) reload(ctx context.Context) error {
	stored, err := w.h.taskStore.Get(ctx, w.tenant, w.taskID)
	if err != nil {
		return wrapError("failed to load task", err)
	}
	w.mgr = taskupdate.NewManager(storeSaver{store: w.h.taskStore, tenant: w.tenant}, &taskupdate.VersionedTask{
		Task:    stored.Task,
		Version: stored.Version,
	})
	return nil
}

// task returns the last known snapshot. It must not be modified.
func (w *taskWriter) task() *a2a.Task {
	return w.mgr.Task().Task
}

// apply persists the event and publishes it once the write succeeded.
func (w *taskWriter) apply(ctx context.Context, event a2a.Event) (*a2a.Task, error) {
	task, err := w.save(ctx, event)
	if err != nil {
		return nil, err
	}
	w.h.emit(ctx, w.tenant, task.ID, event)
	return task, nil
}

// save persists the event. Concurrent modifications are retried on a reloaded task. If the task
// became terminal in the meantime the event is dropped and an error wrapping
// [taskupdate.ErrTaskTerminal] is returned.
func (w *taskWriter) save(ctx context.Context, event a2a.Event) (*a2a.Task, error) {
	for attempt := 1; ; attempt++ {
		saved, err := w.mgr.Process(ctx, event)
		if err == nil {
			return saved.Task, nil
		}
		if !errors.Is(err, taskstore.ErrConcurrentModification) {
			return nil, err
		}
		if attempt == maxUpdateAttempts {
			return nil, fmt.Errorf("task update gave up after %d attempts: %w", attempt, err)
		}
		log.Info(ctx, "concurrent task modification, reloading", "attempt", attempt)
		if err := w.reload(ctx); err != nil {
			return nil, err
		}
	}
}

// emit publishes an already persisted event and delivers it to the push configs of the task.
// Failures are logged only.
func (h *defaultRequestHandler) emit(ctx context.Context, tenant string, taskID a2a.TaskID, event a2a.Event) {
	if err := h.broadcaster.Publish(ctx, tenant, event); err != nil {
		log.Error(ctx, "failed to publish event", err)
	}
	if h.capabilities(ctx).PushNotifications {
		h.dispatcher.Dispatch(ctx, tenant, taskID, event)
	}
}
