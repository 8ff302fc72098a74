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

// Package taskstore provides an in-memory [taskstore.Store] implementation.
package taskstore

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/a2aproject/a2a-taskserver/a2a"
	"github.com/a2aproject/a2a-taskserver/a2asrv/taskstore"
	"github.com/a2aproject/a2a-taskserver/internal/utils"
)

type taskKey struct {
	tenant string
	id     a2a.TaskID
}

type storedTask struct {
	tenant      string
	lastUpdated time.Time
	version     taskstore.TaskVersion
	task        *a2a.Task
}

// Option configures a [Mem] store.
type Option func(*Mem)

// WithClock overrides the time source used for update timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Mem) {
		s.now = now
	}
}

// Mem stores deep-copied [a2a.Task]-s in memory.
type Mem struct {
	mu    sync.RWMutex
	tasks map[taskKey]*storedTask
	now   func() time.Time
}

var _ taskstore.Store = (*Mem)(nil)

// NewMem creates an empty [Mem] store.
func NewMem(opts ...Option) *Mem {
	s := &Mem{tasks: make(map[taskKey]*storedTask), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Mem) Create(ctx context.Context, tenant string, task *a2a.Task) (taskstore.TaskVersion, error) {
	if err := taskstore.Validate(task); err != nil {
		return taskstore.TaskVersionMissing, err
	}
	copy, err := utils.DeepCopy(task)
	if err != nil {
		return taskstore.TaskVersionMissing, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := taskKey{tenant: tenant, id: task.ID}
	if _, ok := s.tasks[key]; ok {
		return taskstore.TaskVersionMissing, fmt.Errorf("%w: %s", taskstore.ErrTaskAlreadyExists, task.ID)
	}

	version := taskstore.TaskVersion(1)
	s.tasks[key] = &storedTask{tenant: tenant, lastUpdated: s.now(), version: version, task: copy}
	return version, nil
}

func (s *Mem) Update(ctx context.Context, req *taskstore.UpdateRequest) (taskstore.TaskVersion, error) {
	if err := taskstore.Validate(req.Task); err != nil {
		return taskstore.TaskVersionMissing, err
	}
	copy, err := utils.DeepCopy(req.Task)
	if err != nil {
		return taskstore.TaskVersionMissing, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := taskKey{tenant: req.Tenant, id: req.Task.ID}
	stored, ok := s.tasks[key]
	if !ok {
		return taskstore.TaskVersionMissing, a2a.ErrTaskNotFound
	}
	if req.PrevVersion != taskstore.TaskVersionMissing && req.PrevVersion != stored.version {
		return taskstore.TaskVersionMissing, fmt.Errorf("%w: task %s is at version %d, update expected %d", taskstore.ErrConcurrentModification, req.Task.ID, stored.version, req.PrevVersion)
	}

	stored.version++
	stored.task = copy
	stored.lastUpdated = s.now()
	return stored.version, nil
}

func (s *Mem) Get(ctx context.Context, tenant string, taskID a2a.TaskID) (*taskstore.StoredTask, error) {
	// Update swaps in a new task copy, so the snapshot taken under the lock is never mutated.
	s.mu.RLock()
	stored, ok := s.tasks[taskKey{tenant: tenant, id: taskID}]
	var snapshot storedTask
	if ok {
		snapshot = *stored
	}
	s.mu.RUnlock()

	if !ok {
		return nil, a2a.ErrTaskNotFound
	}

	task, err := utils.DeepCopy(snapshot.task)
	if err != nil {
		return nil, err
	}
	return &taskstore.StoredTask{Task: task, Version: snapshot.version}, nil
}

func (s *Mem) List(ctx context.Context, req *a2a.ListTasksRequest) (*a2a.ListTasksResponse, error) {
	page, err := taskstore.PageOf(req)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	var filtered []storedTask
	for _, stored := range s.tasks {
		if stored.tenant != req.Tenant {
			continue
		}
		if req.LastUpdatedAfter != nil && stored.lastUpdated.Before(*req.LastUpdatedAfter) {
			continue
		}
		if !taskstore.Matches(req, stored.task) {
			continue
		}
		filtered = append(filtered, *stored)
	}
	s.mu.RUnlock()

	slices.SortFunc(filtered, func(a, b storedTask) int {
		if c := b.lastUpdated.Compare(a.lastUpdated); c != 0 {
			return c
		}
		return compareIDs(a.task.ID, b.task.ID)
	})

	total := len(filtered)
	start := min(page.Offset, total)
	end := min(start+page.Size, total)

	result := make([]*a2a.Task, 0, end-start)
	for _, stored := range filtered[start:end] {
		task, err := utils.DeepCopy(stored.task)
		if err != nil {
			return nil, err
		}
		taskstore.ShapeListed(req, task)
		result = append(result, task)
	}

	return &a2a.ListTasksResponse{
		Tasks:         result,
		TotalSize:     total,
		PageSize:      page.Size,
		NextPageToken: page.NextPageToken(total),
	}, nil
}

func compareIDs(a, b a2a.TaskID) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
