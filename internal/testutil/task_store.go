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

// Package testutil contains test doubles shared by the server packages.
package testutil

import (
	"context"
	"testing"

	"github.com/a2aproject/a2a-taskserver/a2a"
	"github.com/a2aproject/a2a-taskserver/a2asrv/taskstore"
	internalstore "github.com/a2aproject/a2a-taskserver/internal/taskstore"
)

// TestTaskStore is an in-memory store whose methods can be overridden.
type TestTaskStore struct {
	*internalstore.Mem

	CreateFunc func(ctx context.Context, tenant string, task *a2a.Task) (taskstore.TaskVersion, error)
	UpdateFunc func(ctx context.Context, req *taskstore.UpdateRequest) (taskstore.TaskVersion, error)
	GetFunc    func(ctx context.Context, tenant string, taskID a2a.TaskID) (*taskstore.StoredTask, error)
}

var _ taskstore.Store = (*TestTaskStore)(nil)

func (m *TestTaskStore) Create(ctx context.Context, tenant string, task *a2a.Task) (taskstore.TaskVersion, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tenant, task)
	}
	return m.Mem.Create(ctx, tenant, task)
}

func (m *TestTaskStore) Update(ctx context.Context, req *taskstore.UpdateRequest) (taskstore.TaskVersion, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, req)
	}
	return m.Mem.Update(ctx, req)
}

func (m *TestTaskStore) Get(ctx context.Context, tenant string, taskID a2a.TaskID) (*taskstore.StoredTask, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, tenant, taskID)
	}
	return m.Mem.Get(ctx, tenant, taskID)
}

// SetUpdateError makes every update fail with the provided error.
func (m *TestTaskStore) SetUpdateError(err error) *TestTaskStore {
	m.UpdateFunc = func(ctx context.Context, req *taskstore.UpdateRequest) (taskstore.TaskVersion, error) {
		return taskstore.TaskVersionMissing, err
	}
	return m
}

// SetGetOverride makes every read return the provided result.
func (m *TestTaskStore) SetGetOverride(task *a2a.Task, err error) *TestTaskStore {
	m.GetFunc = func(ctx context.Context, tenant string, taskID a2a.TaskID) (*taskstore.StoredTask, error) {
		if err != nil {
			return nil, err
		}
		return &taskstore.StoredTask{Task: task, Version: 1}, nil
	}
	return m
}

// WithTasks creates the tasks in the default tenant.
func (m *TestTaskStore) WithTasks(t *testing.T, tasks ...*a2a.Task) *TestTaskStore {
	t.Helper()
	for _, task := range tasks {
		if _, err := m.Mem.Create(t.Context(), "", task); err != nil {
			t.Fatalf("failed to create task: %v", err)
		}
	}
	return m
}

func NewTestTaskStore() *TestTaskStore {
	return &TestTaskStore{Mem: internalstore.NewMem()}
}
