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

import "time"

// MessageSendParams is the payload of SendMessage and SendStreamingMessage requests.
type MessageSendParams struct {
	// Tenant scopes the request. Empty means the default tenant.
	Tenant string `json:"tenant,omitempty" yaml:"tenant,omitempty"`

	// Message is the message being sent to the agent.
	Message *Message `json:"message" yaml:"message"`

	// Config holds optional request configuration.
	Config *MessageSendConfig `json:"configuration,omitempty" yaml:"configuration,omitempty"`

	// Metadata holds extension-specific values.
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// MessageSendConfig configures a SendMessage request.
type MessageSendConfig struct {
	// AcceptedOutputModes lists the output MIME types the client accepts.
	AcceptedOutputModes []string `json:"acceptedOutputModes,omitempty" yaml:"acceptedOutputModes,omitempty"`

	// Blocking makes a non-streaming request wait until the task reaches a terminal or interrupted state.
	Blocking bool `json:"blocking,omitempty" yaml:"blocking,omitempty"`

	// HistoryLength limits the number of history messages in the returned task.
	HistoryLength *int `json:"historyLength,omitempty" yaml:"historyLength,omitempty"`

	// PushConfig is registered for the task after its URL is verified.
	PushConfig *PushConfig `json:"pushNotificationConfig,omitempty" yaml:"pushNotificationConfig,omitempty"`
}

// TaskQueryParams is the payload of GetTask requests.
type TaskQueryParams struct {
	Tenant string `json:"tenant,omitempty" yaml:"tenant,omitempty"`

	// ID of the task to fetch.
	ID TaskID `json:"id" yaml:"id"`

	// HistoryLength limits the returned history to the last N messages.
	HistoryLength *int `json:"historyLength,omitempty" yaml:"historyLength,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// TaskIDParams is the payload of CancelTask and SubscribeToTask requests.
type TaskIDParams struct {
	Tenant string `json:"tenant,omitempty" yaml:"tenant,omitempty"`

	ID TaskID `json:"id" yaml:"id"`

	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// ListTasksRequest is the payload of ListTasks requests. Zero-valued filters are not applied.
type ListTasksRequest struct {
	Tenant string `json:"tenant,omitempty" yaml:"tenant,omitempty"`

	// ContextID selects tasks of a single context.
	ContextID string `json:"contextId,omitempty" yaml:"contextId,omitempty"`

	// Status selects tasks in the given state.
	Status TaskState `json:"status,omitempty" yaml:"status,omitempty"`

	// PageSize is the maximum number of tasks on a page. Defaults to 50, capped at 100.
	PageSize int `json:"pageSize,omitempty" yaml:"pageSize,omitempty"`

	// PageToken is the NextPageToken of a previous response.
	PageToken string `json:"pageToken,omitempty" yaml:"pageToken,omitempty"`

	// HistoryLength limits the history of every returned task to the last N messages.
	HistoryLength *int `json:"historyLength,omitempty" yaml:"historyLength,omitempty"`

	// LastUpdatedAfter selects tasks updated at or after the provided time.
	LastUpdatedAfter *time.Time `json:"lastUpdatedAfter,omitempty" yaml:"lastUpdatedAfter,omitempty"`

	// IncludeArtifacts keeps artifacts in the returned tasks.
	IncludeArtifacts bool `json:"includeArtifacts,omitempty" yaml:"includeArtifacts,omitempty"`
}

// ListTasksResponse is a page of tasks.
type ListTasksResponse struct {
	Tasks []*Task `json:"tasks" yaml:"tasks"`

	// TotalSize is the number of tasks matching the filters before pagination.
	TotalSize int `json:"totalSize" yaml:"totalSize"`

	PageSize int `json:"pageSize" yaml:"pageSize"`

	// NextPageToken is empty on the last page.
	NextPageToken string `json:"nextPageToken" yaml:"nextPageToken"`
}

// TruncateHistory keeps the last historyLength messages of the task history.
// A nil historyLength keeps the whole history, a non-positive one drops it.
func TruncateHistory(task *Task, historyLength *int) {
	if historyLength == nil {
		return
	}
	n := *historyLength
	if n <= 0 {
		task.History = []*Message{}
	} else if n < len(task.History) {
		task.History = task.History[len(task.History)-n:]
	}
}
