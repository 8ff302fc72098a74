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
	"github.com/a2aproject/a2a-taskserver/a2asrv/workqueue"
	"github.com/a2aproject/a2a-taskserver/internal/taskupdate"
	"github.com/a2aproject/a2a-taskserver/internal/utils"
	"github.com/a2aproject/a2a-taskserver/log"
)

// executeTask is the work queue handler. It drives one execution of a task: moves the task to
// submitted and working, applies the events produced by the runtime and finishes the execution
// with exactly one final status update event.
func (h *defaultRequestHandler) executeTask(ctx context.Context, tenant string, taskID a2a.TaskID) error {
	ctx = log.WithLogger(ctx, h.logger.With("method", "ExecuteTask", "tenant", tenant, "task_id", taskID))

	w, err := h.loadTask(ctx, tenant, taskID)
	if err != nil {
		return err
	}
	if state := w.task().Status.State; state.Terminal() {
		log.Info(ctx, "skipping execution of a finished task", "state", state)
		return nil
	}

	runErr := h.runExecution(ctx, w)
	if runErr == nil || errors.Is(runErr, taskupdate.ErrTaskTerminal) {
		return nil
	}
	if errors.Is(context.Cause(ctx), workqueue.ErrExecutionReplaced) {
		// The newer execution owns the task from here on.
		log.Info(ctx, "execution replaced", "cause", runErr)
		return nil
	}
	return h.failExecution(context.WithoutCancel(ctx), w, runErr)
}

func (h *defaultRequestHandler) runExecution(ctx context.Context, w *taskWriter) error {
	state := w.task().Status.State
	if state != a2a.TaskStateSubmitted && taskupdate.CanTransition(state, a2a.TaskStateSubmitted) {
		if err := w.setState(ctx, a2a.TaskStateSubmitted); err != nil {
			return err
		}
	}

	snapshot, err := utils.DeepCopy(w.task())
	if err != nil {
		return fmt.Errorf("failed to copy task: %w", err)
	}

	working := w.task().Status.State == a2a.TaskStateWorking
	for event, err := range h.runtime.Execute(ctx, snapshot) {
		if err != nil {
			return err
		}
		if event, err = normalizeEvent(w.task(), event); err != nil {
			return err
		}
		if !working {
			if !isStatus(event, a2a.TaskStateWorking) {
				if err := w.setState(ctx, a2a.TaskStateWorking); err != nil {
					return err
				}
			}
			working = true
		}

		task, err := w.apply(ctx, event)
		if err != nil {
			return err
		}
		if state := task.Status.State; state.Terminal() || state.Interrupted() {
			if _, ok := event.(*a2a.TaskStatusUpdateEvent); !ok {
				// The runtime replaced the whole task. Subscribers still need a final event.
				h.emit(ctx, w.tenant, task.ID, &a2a.TaskStatusUpdateEvent{
					TaskID:    task.ID,
					ContextID: task.ContextID,
					Status:    task.Status,
					Final:     true,
				})
			}
			return nil
		}
	}

	if !working {
		if err := w.setState(ctx, a2a.TaskStateWorking); err != nil {
			return err
		}
	}
	return w.setState(ctx, a2a.TaskStateCompleted)
}

// failExecution records the runtime failure on the task unless the task was finished by
// somebody else, e.g. canceled.
func (h *defaultRequestHandler) failExecution(ctx context.Context, w *taskWriter, cause error) error {
	if err := w.reload(ctx); err != nil {
		return errors.Join(cause, err)
	}
	task := w.task()
	if task.Status.State.Terminal() {
		log.Info(ctx, "execution stopped after the task was finished", "state", task.Status.State, "cause", cause)
		return nil
	}

	log.Warn(ctx, "task execution failed", "error", cause)
	msg := a2a.NewMessageForTask(a2a.MessageRoleAgent, task, a2a.TextPart{Text: cause.Error()})
	if _, err := w.apply(ctx, a2a.NewStatusUpdateEvent(task, a2a.TaskStateFailed, msg)); err != nil {
		if errors.Is(err, taskupdate.ErrTaskTerminal) {
			return nil
		}
		return fmt.Errorf("failed to record task failure: %w", err)
	}
	return nil
}

func (w *taskWriter) setState(ctx context.Context, state a2a.TaskState) error {
	_, err := w.apply(ctx, a2a.NewStatusUpdateEvent(w.task(), state, nil))
	return err
}

// normalizeEvent returns a copy of a runtime event ready to be stored and published.
func normalizeEvent(task *a2a.Task, event a2a.Event) (a2a.Event, error) {
	switch v := event.(type) {
	case *a2a.Message:
		if v == nil {
			break
		}
		msg := *v
		if msg.TaskID == "" {
			msg.TaskID = task.ID
		}
		if msg.ContextID == "" {
			msg.ContextID = task.ContextID
		}
		return &msg, nil

	case *a2a.TaskStatusUpdateEvent:
		if v == nil {
			break
		}
		status := *v
		status.Final = status.Status.State.Terminal() || status.Status.State.Interrupted()
		return &status, nil

	case *a2a.TaskArtifactUpdateEvent:
		if v == nil {
			break
		}
		return v, nil

	case *a2a.Task:
		if v == nil {
			break
		}
		return v, nil
	}
	return nil, fmt.Errorf("%w: unexpected event %T", a2a.ErrInvalidAgentResponse, event)
}

func isStatus(event a2a.Event, state a2a.TaskState) bool {
	su, ok := event.(*a2a.TaskStatusUpdateEvent)
	return ok && su.Status.State == state
}
