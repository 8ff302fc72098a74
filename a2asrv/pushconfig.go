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
)

func (h *defaultRequestHandler) OnGetTaskPushConfig(ctx context.Context, params *a2a.GetTaskPushConfigParams) (*a2a.TaskPushConfig, error) {
	if params == nil {
		return nil, fmt.Errorf("%w: missing params", a2a.ErrInvalidParams)
	}
	ctx, err := h.beginPushConfig(ctx, "OnGetTaskPushConfig", params.Tenant, params.TaskID)
	if err != nil {
		return nil, err
	}
	config, err := h.pushConfigStore.Get(ctx, params.Tenant, params.TaskID, params.ConfigID)
	if err != nil {
		return nil, pushConfigError("failed to get push config", err)
	}
	return &a2a.TaskPushConfig{Tenant: params.Tenant, TaskID: params.TaskID, Config: *config}, nil
}

func (h *defaultRequestHandler) OnListTaskPushConfig(ctx context.Context, params *a2a.ListTaskPushConfigParams) ([]*a2a.TaskPushConfig, error) {
	if params == nil {
		return nil, fmt.Errorf("%w: missing params", a2a.ErrInvalidParams)
	}
	ctx, err := h.beginPushConfig(ctx, "OnListTaskPushConfig", params.Tenant, params.TaskID)
	if err != nil {
		return nil, err
	}
	configs, err := h.pushConfigStore.List(ctx, params.Tenant, params.TaskID)
	if err != nil {
		return nil, wrapError("failed to list push configs", err)
	}
	result := make([]*a2a.TaskPushConfig, len(configs))
	for i, config := range configs {
		result[i] = &a2a.TaskPushConfig{Tenant: params.Tenant, TaskID: params.TaskID, Config: *config}
	}
	return result, nil
}

func (h *defaultRequestHandler) OnSetTaskPushConfig(ctx context.Context, params *a2a.TaskPushConfig) (*a2a.TaskPushConfig, error) {
	if params == nil {
		return nil, fmt.Errorf("%w: missing params", a2a.ErrInvalidParams)
	}
	ctx, err := h.beginPushConfig(ctx, "OnSetTaskPushConfig", params.Tenant, params.TaskID)
	if err != nil {
		return nil, err
	}
	if err := taskstore.ValidatePushConfig(&params.Config); err != nil {
		return nil, err
	}
	if err := h.pushSender.VerifyURL(ctx, &params.Config); err != nil {
		return nil, fmt.Errorf("%w: push notification URL verification failed: %v", a2a.ErrUnsupportedOperation, err)
	}
	saved, err := h.pushConfigStore.Save(ctx, params.Tenant, params.TaskID, &params.Config)
	if err != nil {
		return nil, wrapError("failed to save push config", err)
	}
	return &a2a.TaskPushConfig{Tenant: params.Tenant, TaskID: params.TaskID, Config: *saved}, nil
}

func (h *defaultRequestHandler) OnDeleteTaskPushConfig(ctx context.Context, params *a2a.DeleteTaskPushConfigParams) error {
	if params == nil {
		return fmt.Errorf("%w: missing params", a2a.ErrInvalidParams)
	}
	ctx, err := h.beginPushConfig(ctx, "OnDeleteTaskPushConfig", params.Tenant, params.TaskID)
	if err != nil {
		return err
	}
	if err := h.pushConfigStore.Delete(ctx, params.Tenant, params.TaskID, params.ConfigID); err != nil {
		return pushConfigError("failed to delete push config", err)
	}
	return nil
}

// beginPushConfig runs the checks shared by push config methods: the capability must be
// advertised and the task must exist.
func (h *defaultRequestHandler) beginPushConfig(ctx context.Context, method, tenant string, taskID a2a.TaskID) (context.Context, error) {
	ctx, err := h.begin(ctx, method, tenant, "task_id", taskID)
	if err != nil {
		return ctx, err
	}
	if !h.capabilities(ctx).PushNotifications {
		return ctx, a2a.ErrPushNotificationNotSupported
	}
	if taskID == "" {
		return ctx, fmt.Errorf("%w: missing task ID", a2a.ErrInvalidParams)
	}
	if _, err := h.taskStore.Get(ctx, tenant, taskID); err != nil {
		return ctx, wrapError("failed to get task", err)
	}
	return ctx, nil
}

// pushConfigError reports missing configs as a missing task resource.
func pushConfigError(msg string, err error) error {
	if errors.Is(err, taskstore.ErrPushConfigNotFound) {
		return fmt.Errorf("%s: %w: %w", msg, a2a.ErrTaskNotFound, err)
	}
	return wrapError(msg, err)
}
