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
	"iter"

	"github.com/a2aproject/a2a-taskserver/a2a"
	"github.com/a2aproject/a2a-taskserver/internal/taskupdate"
	"github.com/a2aproject/a2a-taskserver/log"
)

func (h *defaultRequestHandler) OnGetTask(ctx context.Context, query *a2a.TaskQueryParams) (*a2a.Task, error) {
	if query == nil {
		return nil, fmt.Errorf("%w: missing params", a2a.ErrInvalidParams)
	}
	ctx, err := h.begin(ctx, "OnGetTask", query.Tenant, "task_id", query.ID)
	if err != nil {
		return nil, err
	}
	if query.ID == "" {
		return nil, fmt.Errorf("%w: missing task ID", a2a.ErrInvalidParams)
	}
	if query.HistoryLength != nil && *query.HistoryLength < 0 {
		return nil, fmt.Errorf("%w: negative history length", a2a.ErrInvalidParams)
	}

	stored, err := h.taskStore.Get(ctx, query.Tenant, query.ID)
	if err != nil {
		return nil, wrapError("failed to get task", err)
	}
	task := stored.Task
	a2a.TruncateHistory(task, query.HistoryLength)
	return task, nil
}

func (h *defaultRequestHandler) OnListTasks(ctx context.Context, req *a2a.ListTasksRequest) (*a2a.ListTasksResponse, error) {
	if req == nil {
		req = &a2a.ListTasksRequest{}
	}
	ctx, err := h.begin(ctx, "OnListTasks", req.Tenant)
	if err != nil {
		return nil, err
	}
	resp, err := h.taskStore.List(ctx, req)
	if err != nil {
		return nil, wrapError("failed to list tasks", err)
	}
	return resp, nil
}

func (h *defaultRequestHandler) OnCancelTask(ctx context.Context, params *a2a.TaskIDParams) (*a2a.Task, error) {
	if params == nil {
		return nil, fmt.Errorf("%w: missing params", a2a.ErrInvalidParams)
	}
	ctx, err := h.begin(ctx, "OnCancelTask", params.Tenant, "task_id", params.ID)
	if err != nil {
		return nil, err
	}

	w, err := h.loadTask(ctx, params.Tenant, params.ID)
	if err != nil {
		return nil, err
	}
	if state := w.task().Status.State; !taskupdate.Cancelable(state) {
		return nil, fmt.Errorf("%w: task is %s", a2a.ErrTaskNotCancelable, state)
	}

	task, err := w.apply(ctx, a2a.NewStatusUpdateEvent(w.task(), a2a.TaskStateCanceled, nil))
	if err != nil {
		if errors.Is(err, taskupdate.ErrTaskTerminal) {
			return nil, fmt.Errorf("%w: task finished concurrently", a2a.ErrTaskNotCancelable)
		}
		return nil, wrapError("failed to cancel task", err)
	}

	if err := h.queue.Cancel(ctx, params.Tenant, params.ID); err != nil {
		log.Warn(ctx, "failed to cancel task execution", "error", err)
	}
	return task, nil
}

func (h *defaultRequestHandler) OnSubscribeToTask(ctx context.Context, params *a2a.TaskIDParams) iter.Seq2[a2a.Event, error] {
	return func(yield func(a2a.Event, error) bool) {
		if params == nil {
			yield(nil, fmt.Errorf("%w: missing params", a2a.ErrInvalidParams))
			return
		}
		ctx, err := h.begin(ctx, "OnSubscribeToTask", params.Tenant, "task_id", params.ID)
		if err != nil {
			yield(nil, err)
			return
		}

		// Subscribing before the state check guarantees no event published after the check is missed.
		sub, err := h.broadcaster.Subscribe(ctx, params.Tenant, params.ID)
		if err != nil {
			yield(nil, wrapError("failed to subscribe", err))
			return
		}
		defer func() { _ = sub.Close() }()

		stored, err := h.taskStore.Get(ctx, params.Tenant, params.ID)
		if err != nil {
			yield(nil, wrapError("failed to get task", err))
			return
		}
		if stored.Task.Status.State != a2a.TaskStateWorking {
			return
		}

		for event, err := range sub.Events(ctx) {
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(event, nil) {
				return
			}
		}
	}
}
