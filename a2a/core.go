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

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskID is a unique identifier of a Task.
type TaskID string

// NewTaskID generates a new random TaskID.
func NewTaskID() TaskID {
	return TaskID(uuid.NewString())
}

// NewContextID generates a new random context identifier.
func NewContextID() string {
	return uuid.NewString()
}

// NewMessageID generates a new random message identifier.
func NewMessageID() string {
	return uuid.NewString()
}

// ArtifactID is a unique identifier of an Artifact within a Task.
type ArtifactID string

// NewArtifactID generates a new random ArtifactID.
func NewArtifactID() ArtifactID {
	return ArtifactID(uuid.NewString())
}

// TaskInfo identifies the task and the context an event or message belongs to.
type TaskInfo struct {
	TaskID    TaskID
	ContextID string
}

// TaskInfoProvider is implemented by everything that can be attributed to a task.
type TaskInfoProvider interface {
	TaskInfo() TaskInfo
}

func (ti TaskInfo) TaskInfo() TaskInfo {
	return ti
}

// Event is a sealed union of the objects an agent execution produces: [Task], [Message],
// [TaskStatusUpdateEvent] and [TaskArtifactUpdateEvent].
type Event interface {
	TaskInfoProvider
	isEvent()
}

func (*Message) isEvent()                 {}
func (*Task) isEvent()                    {}
func (*TaskStatusUpdateEvent) isEvent()   {}
func (*TaskArtifactUpdateEvent) isEvent() {}

// SendMessageResult is a sealed union of the objects SendMessage can return: [Task] or [Message].
type SendMessageResult interface {
	Event
	isSendMessageResult()
}

func (*Message) isSendMessageResult() {}
func (*Task) isSendMessageResult()    {}

// TaskState is the lifecycle state of a Task.
type TaskState string

const (
	TaskStateUnspecified   TaskState = ""
	TaskStateSubmitted     TaskState = "submitted"
	TaskStateWorking       TaskState = "working"
	TaskStateInputRequired TaskState = "input-required"
	TaskStateAuthRequired  TaskState = "auth-required"
	TaskStateCompleted     TaskState = "completed"
	TaskStateCanceled      TaskState = "canceled"
	TaskStateFailed        TaskState = "failed"
	TaskStateRejected      TaskState = "rejected"
)

// Terminal returns true for states in which a task accepts no further events.
func (ts TaskState) Terminal() bool {
	return ts == TaskStateCompleted ||
		ts == TaskStateCanceled ||
		ts == TaskStateFailed ||
		ts == TaskStateRejected
}

// Interrupted returns true for states in which a task waits for the client.
func (ts TaskState) Interrupted() bool {
	return ts == TaskStateInputRequired || ts == TaskStateAuthRequired
}

// Task is the stateful unit of work tracked by the server.
type Task struct {
	// ID is a unique identifier for the task, generated by the server or the agent runtime.
	ID TaskID `json:"id" yaml:"id"`

	// ContextID groups related tasks and messages.
	ContextID string `json:"contextId" yaml:"contextId"`

	// Status is the current status of the task.
	Status TaskStatus `json:"status" yaml:"status"`

	// Artifacts is the list of outputs produced by the task so far.
	Artifacts []*Artifact `json:"artifacts,omitempty" yaml:"artifacts,omitempty"`

	// History is the append-only list of messages exchanged during the task.
	History []*Message `json:"history,omitempty" yaml:"history,omitempty"`

	// Metadata holds extension-specific values.
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

func (t *Task) TaskInfo() TaskInfo {
	return TaskInfo{TaskID: t.ID, ContextID: t.ContextID}
}

func (t Task) MarshalJSON() ([]byte, error) {
	type wrapped Task
	return json.Marshal(struct {
		Kind string `json:"kind"`
		wrapped
	}{Kind: "task", wrapped: wrapped(t)})
}

// NewSubmittedTask creates a Task in submitted state for the provided initial message.
func NewSubmittedTask(infoProvider TaskInfoProvider, initialMessage *Message) *Task {
	info := infoProvider.TaskInfo()
	now := time.Now().UTC()
	var history []*Message
	if initialMessage != nil {
		history = []*Message{initialMessage}
	}
	return &Task{
		ID:        info.TaskID,
		ContextID: info.ContextID,
		Status:    TaskStatus{State: TaskStateSubmitted, Timestamp: &now},
		History:   history,
	}
}

// TaskStatus represents the status of a Task at a specific point in time.
type TaskStatus struct {
	// State is the current lifecycle state.
	State TaskState `json:"state" yaml:"state"`

	// Message is an optional message explaining the state, e.g. an error or an input prompt.
	Message *Message `json:"message,omitempty" yaml:"message,omitempty"`

	// Timestamp is the time the state was recorded.
	Timestamp *time.Time `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
}

// MessageRole identifies the sender of a Message.
type MessageRole string

const (
	MessageRoleUnspecified MessageRole = ""
	MessageRoleUser        MessageRole = "user"
	MessageRoleAgent       MessageRole = "agent"
)

// Message is a single turn of communication between a client and an agent.
type Message struct {
	// ID is a unique identifier of the message.
	ID string `json:"messageId" yaml:"messageId"`

	// ContextID is the context the message belongs to.
	ContextID string `json:"contextId,omitempty" yaml:"contextId,omitempty"`

	// TaskID references an existing task. Empty means a new task should be started
	// or the agent should reply directly.
	TaskID TaskID `json:"taskId,omitempty" yaml:"taskId,omitempty"`

	// Role identifies the sender.
	Role MessageRole `json:"role" yaml:"role"`

	// Parts is the non-empty content of the message.
	Parts ContentParts `json:"parts" yaml:"parts"`

	// Metadata holds extension-specific values.
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	// Extensions lists the URIs of the protocol extensions in play.
	Extensions []string `json:"extensions,omitempty" yaml:"extensions,omitempty"`

	// ReferenceTasks lists tasks the message refers to for additional context.
	ReferenceTasks []TaskID `json:"referenceTaskIds,omitempty" yaml:"referenceTaskIds,omitempty"`
}

func (m *Message) TaskInfo() TaskInfo {
	return TaskInfo{TaskID: m.TaskID, ContextID: m.ContextID}
}

func (m Message) MarshalJSON() ([]byte, error) {
	type wrapped Message
	return json.Marshal(struct {
		Kind string `json:"kind"`
		wrapped
	}{Kind: "message", wrapped: wrapped(m)})
}

// NewMessage creates a Message with a random ID.
func NewMessage(role MessageRole, parts ...Part) *Message {
	return &Message{ID: NewMessageID(), Role: role, Parts: parts}
}

// NewMessageForTask creates a Message attributed to the task described by infoProvider.
func NewMessageForTask(role MessageRole, infoProvider TaskInfoProvider, parts ...Part) *Message {
	info := infoProvider.TaskInfo()
	msg := NewMessage(role, parts...)
	msg.TaskID = info.TaskID
	msg.ContextID = info.ContextID
	return msg
}

// Artifact is an output produced by a task. Artifacts with the same ID within a task
// form a single logical output stream.
type Artifact struct {
	// ID is unique within a task.
	ID ArtifactID `json:"artifactId" yaml:"artifactId"`

	// Name is an optional human-readable name.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Description is an optional human-readable description.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Parts is the content of the artifact.
	Parts ContentParts `json:"parts" yaml:"parts"`

	// Metadata holds extension-specific values.
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	// Extensions lists the URIs of extensions that contributed to the artifact.
	Extensions []string `json:"extensions,omitempty" yaml:"extensions,omitempty"`
}

// TaskStatusUpdateEvent notifies about a change of a task status.
type TaskStatusUpdateEvent struct {
	TaskID    TaskID     `json:"taskId" yaml:"taskId"`
	ContextID string     `json:"contextId" yaml:"contextId"`
	Status    TaskStatus `json:"status" yaml:"status"`

	// Final marks the last event of a task execution.
	Final bool `json:"final" yaml:"final"`

	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

func (e *TaskStatusUpdateEvent) TaskInfo() TaskInfo {
	return TaskInfo{TaskID: e.TaskID, ContextID: e.ContextID}
}

func (e TaskStatusUpdateEvent) MarshalJSON() ([]byte, error) {
	type wrapped TaskStatusUpdateEvent
	return json.Marshal(struct {
		Kind string `json:"kind"`
		wrapped
	}{Kind: "status-update", wrapped: wrapped(e)})
}

// NewStatusUpdateEvent creates a TaskStatusUpdateEvent timestamped with the current time.
// Final is set for terminal and interrupted states.
func NewStatusUpdateEvent(infoProvider TaskInfoProvider, state TaskState, msg *Message) *TaskStatusUpdateEvent {
	info := infoProvider.TaskInfo()
	now := time.Now().UTC()
	return &TaskStatusUpdateEvent{
		TaskID:    info.TaskID,
		ContextID: info.ContextID,
		Status:    TaskStatus{State: state, Message: msg, Timestamp: &now},
		Final:     state.Terminal() || state.Interrupted(),
	}
}

// TaskArtifactUpdateEvent notifies about a new artifact or a new chunk of an existing artifact.
type TaskArtifactUpdateEvent struct {
	TaskID    TaskID    `json:"taskId" yaml:"taskId"`
	ContextID string    `json:"contextId" yaml:"contextId"`
	Artifact  *Artifact `json:"artifact" yaml:"artifact"`

	// Append means the parts extend an artifact with the same ID which must already exist.
	Append bool `json:"append,omitempty" yaml:"append,omitempty"`

	// LastChunk marks the final chunk of the artifact.
	LastChunk bool `json:"lastChunk,omitempty" yaml:"lastChunk,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

func (e *TaskArtifactUpdateEvent) TaskInfo() TaskInfo {
	return TaskInfo{TaskID: e.TaskID, ContextID: e.ContextID}
}

func (e TaskArtifactUpdateEvent) MarshalJSON() ([]byte, error) {
	type wrapped TaskArtifactUpdateEvent
	return json.Marshal(struct {
		Kind string `json:"kind"`
		wrapped
	}{Kind: "artifact-update", wrapped: wrapped(e)})
}

// NewArtifactEvent creates an event announcing a new artifact with a random ID.
func NewArtifactEvent(infoProvider TaskInfoProvider, parts ...Part) *TaskArtifactUpdateEvent {
	info := infoProvider.TaskInfo()
	return &TaskArtifactUpdateEvent{
		TaskID:    info.TaskID,
		ContextID: info.ContextID,
		Artifact:  &Artifact{ID: NewArtifactID(), Parts: parts},
	}
}

// NewArtifactUpdateEvent creates an event extending the artifact identified by id.
func NewArtifactUpdateEvent(infoProvider TaskInfoProvider, id ArtifactID, parts ...Part) *TaskArtifactUpdateEvent {
	info := infoProvider.TaskInfo()
	return &TaskArtifactUpdateEvent{
		TaskID:    info.TaskID,
		ContextID: info.ContextID,
		Append:    true,
		Artifact:  &Artifact{ID: id, Parts: parts},
	}
}

// UnmarshalEventJSON decodes an [Event] using the "kind" discriminator.
func UnmarshalEventJSON(data []byte) (Event, error) {
	var probe struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}
	var event Event
	switch probe.Kind {
	case "task":
		event = &Task{}
	case "message":
		event = &Message{}
	case "status-update":
		event = &TaskStatusUpdateEvent{}
	case "artifact-update":
		event = &TaskArtifactUpdateEvent{}
	default:
		return nil, fmt.Errorf("unknown event kind %q", probe.Kind)
	}
	if err := json.Unmarshal(data, event); err != nil {
		return nil, err
	}
	return event, nil
}

// UnmarshalSendMessageResultJSON decodes a [SendMessageResult] using the "kind" discriminator.
func UnmarshalSendMessageResultJSON(data []byte) (SendMessageResult, error) {
	event, err := UnmarshalEventJSON(data)
	if err != nil {
		return nil, err
	}
	result, ok := event.(SendMessageResult)
	if !ok {
		return nil, fmt.Errorf("%T is not a message send result", event)
	}
	return result, nil
}

func init() {
	gob.Register(map[string]any{})
	gob.Register([]any{})
	gob.Register(TextPart{})
	gob.Register(DataPart{})
	gob.Register(FilePart{})
	gob.Register(FileBytes{})
	gob.Register(FileURI{})
}
