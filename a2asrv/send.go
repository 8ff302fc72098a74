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
	"slices"
	"strings"
	"time"

	"github.com/a2aproject/a2a-taskserver/a2a"
	"github.com/a2aproject/a2a-taskserver/a2asrv/eventbus"
	"github.com/a2aproject/a2a-taskserver/a2asrv/taskstore"
	"github.com/a2aproject/a2a-taskserver/internal/taskupdate"
	"github.com/a2aproject/a2a-taskserver/log"
)

// sendPlan is the outcome of the preparation shared by the send methods.
type sendPlan struct {
	// reply is set when the runtime answered without creating a task.
	reply *a2a.Message
	// task is the stored snapshot of a created or resumed task.
	task *a2a.Task
	// created is set for tasks created by the request.
	created bool
	// execute is set if an execution needs to be enqueued.
	execute bool
}

func (h *defaultRequestHandler) OnSendMessage(ctx context.Context, params *a2a.MessageSendParams) (a2a.SendMessageResult, error) {
	if params == nil {
		return nil, fmt.Errorf("%w: missing params", a2a.ErrInvalidParams)
	}
	ctx, err := h.begin(ctx, "OnSendMessage", params.Tenant, sendLogAttrs(params)...)
	if err != nil {
		return nil, err
	}

	plan, err := h.prepareSend(ctx, params)
	if err != nil {
		return nil, err
	}
	if plan.reply != nil {
		return plan.reply, nil
	}
	if !plan.execute {
		return shapeResult(plan.task, params.Config), nil
	}

	var sub eventbus.Subscription
	if params.Config != nil && params.Config.Blocking {
		if sub, err = h.broadcaster.Subscribe(ctx, params.Tenant, plan.task.ID, eventbus.UntilFinal()); err != nil {
			return nil, wrapError("failed to subscribe", err)
		}
		defer func() { _ = sub.Close() }()
	}

	if err := h.queue.Enqueue(ctx, params.Tenant, plan.task.ID); err != nil {
		return nil, wrapError("failed to enqueue task", err)
	}
	if sub == nil {
		return shapeResult(plan.task, params.Config), nil
	}

	for _, err := range sub.Events(ctx) {
		if err != nil {
			return nil, err
		}
	}
	stored, err := h.taskStore.Get(ctx, params.Tenant, plan.task.ID)
	if err != nil {
		return nil, wrapError("failed to get task", err)
	}
	return shapeResult(stored.Task, params.Config), nil
}

func (h *defaultRequestHandler) OnSendMessageStream(ctx context.Context, params *a2a.MessageSendParams) iter.Seq2[a2a.Event, error] {
	return func(yield func(a2a.Event, error) bool) {
		if params == nil {
			yield(nil, fmt.Errorf("%w: missing params", a2a.ErrInvalidParams))
			return
		}
		ctx, err := h.begin(ctx, "OnSendMessageStream", params.Tenant, sendLogAttrs(params)...)
		if err != nil {
			yield(nil, err)
			return
		}
		if !h.capabilities(ctx).Streaming {
			yield(nil, fmt.Errorf("%w: streaming is not supported by the agent", a2a.ErrUnsupportedOperation))
			return
		}

		plan, err := h.prepareSend(ctx, params)
		if err != nil {
			yield(nil, err)
			return
		}
		if plan.reply != nil {
			yield(plan.reply, nil)
			return
		}

		var sub eventbus.Subscription
		if plan.execute {
			if sub, err = h.broadcaster.Subscribe(ctx, params.Tenant, plan.task.ID, eventbus.UntilFinal()); err != nil {
				yield(nil, wrapError("failed to subscribe", err))
				return
			}
			defer func() { _ = sub.Close() }()
		}

		if plan.created {
			if !yield(shapeResult(plan.task, params.Config), nil) {
				return
			}
		}
		if !plan.execute {
			return
		}

		if err := h.queue.Enqueue(ctx, params.Tenant, plan.task.ID); err != nil {
			yield(nil, wrapError("failed to enqueue task", err))
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

// prepareSend validates the request and creates or resumes the task it targets.
func (h *defaultRequestHandler) prepareSend(ctx context.Context, params *a2a.MessageSendParams) (*sendPlan, error) {
	msg := params.Message
	if msg == nil {
		return nil, fmt.Errorf("%w: missing message", a2a.ErrInvalidParams)
	}
	if len(msg.Parts) == 0 {
		return nil, fmt.Errorf("%w: message has no parts", a2a.ErrInvalidParams)
	}
	if msg.ID == "" {
		return nil, fmt.Errorf("%w: message has no ID", a2a.ErrInvalidParams)
	}
	if err := h.checkSendConfig(ctx, params.Config); err != nil {
		return nil, err
	}

	var plan *sendPlan
	var err error
	if msg.TaskID == "" {
		plan, err = h.startTask(ctx, params)
	} else {
		plan, err = h.resumeTask(ctx, params)
	}
	if err != nil {
		return nil, err
	}
	return plan, nil
}

// savePushConfig registers the push config of the request for the task.
// It returns nil if the request has none.
func (h *defaultRequestHandler) savePushConfig(ctx context.Context, params *a2a.MessageSendParams, taskID a2a.TaskID) (*a2a.PushConfig, error) {
	config := params.Config
	if config == nil || config.PushConfig == nil {
		return nil, nil
	}
	saved, err := h.pushConfigStore.Save(ctx, params.Tenant, taskID, config.PushConfig)
	if err != nil {
		return nil, wrapError("failed to save push config", err)
	}
	return saved, nil
}

func (h *defaultRequestHandler) checkSendConfig(ctx context.Context, config *a2a.MessageSendConfig) error {
	if config == nil {
		return nil
	}
	if config.HistoryLength != nil && *config.HistoryLength < 0 {
		return fmt.Errorf("%w: negative history length", a2a.ErrInvalidParams)
	}

	card := h.cards.Card(ctx)
	if len(config.AcceptedOutputModes) > 0 && len(card.DefaultOutputModes) > 0 {
		compatible := slices.ContainsFunc(config.AcceptedOutputModes, func(mode string) bool {
			return slices.Contains(card.DefaultOutputModes, mode)
		})
		if !compatible {
			return a2a.NewError(a2a.ErrUnsupportedContentType, "none of the accepted output modes is supported").
				WithDetails(map[string]any{"supported": strings.Join(card.DefaultOutputModes, ",")})
		}
	}

	if config.PushConfig == nil {
		return nil
	}
	if !card.Capabilities.PushNotifications {
		return a2a.ErrPushNotificationNotSupported
	}
	if err := taskstore.ValidatePushConfig(config.PushConfig); err != nil {
		return err
	}
	if err := h.pushSender.VerifyURL(ctx, config.PushConfig); err != nil {
		return fmt.Errorf("%w: push notification URL verification failed: %v", a2a.ErrUnsupportedOperation, err)
	}
	return nil
}

// startTask asks the runtime for an immediate response and persists the task it returns.
func (h *defaultRequestHandler) startTask(ctx context.Context, params *a2a.MessageSendParams) (*sendPlan, error) {
	result, err := h.runtime.Process(ctx, params)
	if err != nil {
		return nil, wrapError("agent failed to process message", err)
	}

	switch v := result.(type) {
	case *a2a.Message:
		if v != nil {
			return &sendPlan{reply: v}, nil
		}
	case *a2a.Task:
		if v != nil {
			return h.createTask(ctx, params, v)
		}
	}
	return nil, fmt.Errorf("%w: unexpected process result %T", a2a.ErrInvalidAgentResponse, result)
}

func (h *defaultRequestHandler) createTask(ctx context.Context, params *a2a.MessageSendParams, task *a2a.Task) (*sendPlan, error) {
	if task.ID == "" {
		task.ID = a2a.NewTaskID()
	}
	if task.ContextID == "" {
		task.ContextID = params.Message.ContextID
	}
	if task.ContextID == "" {
		task.ContextID = a2a.NewContextID()
	}

	msg := *params.Message
	msg.TaskID, msg.ContextID = task.ID, task.ContextID
	if !slices.ContainsFunc(task.History, func(m *a2a.Message) bool { return m.ID == msg.ID }) {
		task.History = append([]*a2a.Message{&msg}, task.History...)
	}

	execute := !task.Status.State.Terminal()
	if execute {
		now := time.Now().UTC()
		task.Status = a2a.TaskStatus{State: a2a.TaskStateSubmitted, Timestamp: &now}
	}

	// The config is registered first so that a stored task always has the push config it was sent with.
	pushConfig, err := h.savePushConfig(ctx, params, task.ID)
	if err != nil {
		return nil, err
	}
	if _, err := h.taskStore.Create(ctx, params.Tenant, task); err != nil {
		if pushConfig != nil {
			if delErr := h.pushConfigStore.Delete(context.WithoutCancel(ctx), params.Tenant, task.ID, pushConfig.ID); delErr != nil {
				log.Warn(ctx, "failed to remove push config of a task which was not created", "error", delErr)
			}
		}
		if errors.Is(err, taskstore.ErrTaskAlreadyExists) {
			return nil, fmt.Errorf("%w: task %s already exists", a2a.ErrInvalidAgentResponse, task.ID)
		}
		return nil, wrapError("failed to create task", err)
	}
	log.Info(ctx, "task created", "task_id", task.ID, "state", task.Status.State)
	return &sendPlan{task: task, created: true, execute: execute}, nil
}

// resumeTask appends the message to the history of a task waiting for input.
func (h *defaultRequestHandler) resumeTask(ctx context.Context, params *a2a.MessageSendParams) (*sendPlan, error) {
	w, err := h.loadTask(ctx, params.Tenant, params.Message.TaskID)
	if err != nil {
		return nil, err
	}
	current := w.task()
	if !taskupdate.Resumable(current.Status.State) {
		return nil, fmt.Errorf("%w: task is %s", a2a.ErrUnsupportedOperation, current.Status.State)
	}
	if ctxID := params.Message.ContextID; ctxID != "" && ctxID != current.ContextID {
		return nil, fmt.Errorf("%w: message context ID doesn't match the task", a2a.ErrInvalidParams)
	}

	if _, err := h.savePushConfig(ctx, params, current.ID); err != nil {
		return nil, err
	}

	msg := *params.Message
	msg.ContextID = current.ContextID
	task, err := w.save(ctx, &msg)
	if err != nil {
		if errors.Is(err, taskupdate.ErrTaskTerminal) {
			return nil, fmt.Errorf("%w: task finished concurrently", a2a.ErrUnsupportedOperation)
		}
		return nil, wrapError("failed to update task", err)
	}
	return &sendPlan{task: task, execute: true}, nil
}

// shapeResult applies the read-time projections requested in the send config.
func shapeResult(task *a2a.Task, config *a2a.MessageSendConfig) *a2a.Task {
	if config == nil || config.HistoryLength == nil {
		return task
	}
	shaped := *task
	a2a.TruncateHistory(&shaped, config.HistoryLength)
	return &shaped
}

func sendLogAttrs(params *a2a.MessageSendParams) []any {
	if params.Message == nil {
		return nil
	}
	var attrs []any
	if id := params.Message.TaskID; id != "" {
		attrs = append(attrs, "task_id", id)
	}
	if id := params.Message.ContextID; id != "" {
		attrs = append(attrs, "context_id", id)
	}
	return attrs
}
