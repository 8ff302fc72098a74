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

package a2a

// TaskEventFactory creates events and messages attributed to a single task.
// Agent runtimes use it to avoid repeating task and context IDs.
type TaskEventFactory struct {
	info TaskInfo
}

// NewTaskEventFactory creates a factory for the task described by provider.
func NewTaskEventFactory(provider TaskInfoProvider) *TaskEventFactory {
	return &TaskEventFactory{info: provider.TaskInfo()}
}

func (f *TaskEventFactory) NewStatusUpdate(state TaskState, msg *Message) *TaskStatusUpdateEvent {
	return NewStatusUpdateEvent(f.info, state, msg)
}

func (f *TaskEventFactory) NewArtifactEvent(parts ...Part) *TaskArtifactUpdateEvent {
	return NewArtifactEvent(f.info, parts...)
}

func (f *TaskEventFactory) NewArtifactUpdateEvent(id ArtifactID, parts ...Part) *TaskArtifactUpdateEvent {
	return NewArtifactUpdateEvent(f.info, id, parts...)
}

// NewAgentMessage creates an agent Message bound to the task.
func (f *TaskEventFactory) NewAgentMessage(parts ...Part) *Message {
	return NewMessageForTask(MessageRoleAgent, f.info, parts...)
}
