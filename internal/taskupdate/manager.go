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

package taskupdate

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/a2aproject/a2a-taskserver/a2a"
	"github.com/a2aproject/a2a-taskserver/a2asrv/taskstore"
	"github.com/a2aproject/a2a-taskserver/internal/utils"
)

// ErrTaskTerminal is returned when an event is applied to a task in a terminal state.
var ErrTaskTerminal = errors.New("task is in a terminal state")

// VersionedTask is a task snapshot together with the store version it was read or written at.
type VersionedTask struct {
	Task    *a2a.Task
	Version taskstore.TaskVersion
}

// Saver is used for saving the [a2a.Task] after updating its state.
type Saver interface {
	Save(ctx context.Context, task *a2a.Task, event a2a.Event, prev taskstore.TaskVersion) (taskstore.TaskVersion, error)
}

// Manager applies [a2a.Event]-s to a task following the task state machine and
// uses [Saver] to persist every new state before it is returned.
type Manager struct {
	lastSaved *VersionedTask
	saver     Saver
}

// NewManager is a [Manager] constructor function.
func NewManager(saver Saver, task *VersionedTask) *Manager {
	return &Manager{lastSaved: task, saver: saver}
}

// Task returns the last saved snapshot.
func (mgr *Manager) Task() *VersionedTask {
	return mgr.lastSaved
}

// Process validates the event against the managed task, applies it to a copy of
// the task and saves the result. The managed task is not modified if any step fails.
func (mgr *Manager) Process(ctx context.Context, event a2a.Event) (*VersionedTask, error) {
	if mgr.lastSaved == nil || mgr.lastSaved.Task == nil {
		return nil, fmt.Errorf("event processor Task not set")
	}
	if state := mgr.lastSaved.Task.Status.State; state.Terminal() {
		return nil, fmt.Errorf("%w: task is already %s", ErrTaskTerminal, state)
	}

	task, err := utils.DeepCopy(mgr.lastSaved.Task)
	if err != nil {
		return nil, fmt.Errorf("failed to copy task: %w", err)
	}

	switch v := event.(type) {
	case *a2a.Message:
		if v.TaskID != "" && v.TaskID != task.ID {
			return nil, fmt.Errorf("%w: message task IDs don't match: %s != %s", a2a.ErrInvalidAgentResponse, task.ID, v.TaskID)
		}
		task.History = append(task.History, v)

	case *a2a.Task:
		if err := mgr.validate(v.ID, v.ContextID); err != nil {
			return nil, err
		}
		if v.Status.State != task.Status.State {
			if err := ValidateTransition(task.Status.State, v.Status.State); err != nil {
				return nil, err
			}
		}
		if task, err = utils.DeepCopy(v); err != nil {
			return nil, fmt.Errorf("failed to copy task: %w", err)
		}

	case *a2a.TaskArtifactUpdateEvent:
		if err := mgr.validate(v.TaskID, v.ContextID); err != nil {
			return nil, err
		}
		if err := applyArtifact(task, v); err != nil {
			return nil, err
		}

	case *a2a.TaskStatusUpdateEvent:
		if err := mgr.validate(v.TaskID, v.ContextID); err != nil {
			return nil, err
		}
		if err := ValidateTransition(task.Status.State, v.Status.State); err != nil {
			return nil, err
		}
		applyStatus(task, v)

	default:
		return nil, fmt.Errorf("%w: unexpected event type %T", a2a.ErrInvalidAgentResponse, v)
	}

	return mgr.saveTask(ctx, task, event)
}

func applyArtifact(task *a2a.Task, event *a2a.TaskArtifactUpdateEvent) error {
	if event.Artifact == nil {
		return fmt.Errorf("%w: artifact update without an artifact", a2a.ErrInvalidAgentResponse)
	}

	// The event is shared with subscribers, the task must not alias its artifact.
	artifact, err := utils.DeepCopy(event.Artifact)
	if err != nil {
		return fmt.Errorf("failed to copy artifact: %w", err)
	}

	updateIdx := slices.IndexFunc(task.Artifacts, func(a *a2a.Artifact) bool {
		return a.ID == artifact.ID
	})

	if updateIdx < 0 {
		if event.Append {
			return fmt.Errorf("%w: no artifact %q found for append", a2a.ErrInvalidAgentResponse, artifact.ID)
		}
		task.Artifacts = append(task.Artifacts, artifact)
		return nil
	}

	if !event.Append {
		task.Artifacts[updateIdx] = artifact
		return nil
	}

	toUpdate := task.Artifacts[updateIdx]
	toUpdate.Parts = append(toUpdate.Parts, artifact.Parts...)
	if artifact.Metadata != nil {
		if toUpdate.Metadata == nil {
			toUpdate.Metadata = make(map[string]any, len(artifact.Metadata))
		}
		maps.Copy(toUpdate.Metadata, artifact.Metadata)
	}
	return nil
}

func applyStatus(task *a2a.Task, event *a2a.TaskStatusUpdateEvent) {
	if task.Status.Message != nil {
		task.History = append(task.History, task.Status.Message)
	}

	if event.Metadata != nil {
		if task.Metadata == nil {
			task.Metadata = make(map[string]any, len(event.Metadata))
		}
		maps.Copy(task.Metadata, event.Metadata)
	}

	task.Status = event.Status
	if task.Status.Timestamp == nil {
		now := time.Now().UTC()
		task.Status.Timestamp = &now
	}
}

func (mgr *Manager) saveTask(ctx context.Context, task *a2a.Task, event a2a.Event) (*VersionedTask, error) {
	version, err := mgr.saver.Save(ctx, task, event, mgr.lastSaved.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to save task state: %w", err)
	}
	mgr.lastSaved = &VersionedTask{Task: task, Version: version}
	return mgr.lastSaved, nil
}

func (mgr *Manager) validate(taskID a2a.TaskID, contextID string) error {
	task := mgr.lastSaved.Task
	if task.ID != taskID {
		return fmt.Errorf("%w: task IDs don't match: %s != %s", a2a.ErrInvalidAgentResponse, task.ID, taskID)
	}
	if task.ContextID != contextID {
		return fmt.Errorf("%w: context IDs don't match: %s != %s", a2a.ErrInvalidAgentResponse, task.ContextID, contextID)
	}
	return nil
}
