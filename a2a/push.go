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

// GetTaskPushConfigParams is the payload of push config get requests.
type GetTaskPushConfigParams struct {
	Tenant string `json:"tenant,omitempty" yaml:"tenant,omitempty"`

	// TaskID identifies the task the config belongs to.
	TaskID TaskID `json:"id" yaml:"id"`

	// ConfigID identifies the config.
	ConfigID string `json:"pushNotificationConfigId" yaml:"pushNotificationConfigId"`

	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// ListTaskPushConfigParams is the payload of push config list requests.
type ListTaskPushConfigParams struct {
	Tenant string `json:"tenant,omitempty" yaml:"tenant,omitempty"`

	TaskID TaskID `json:"id" yaml:"id"`

	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// DeleteTaskPushConfigParams is the payload of push config delete requests.
type DeleteTaskPushConfigParams struct {
	Tenant string `json:"tenant,omitempty" yaml:"tenant,omitempty"`

	TaskID TaskID `json:"id" yaml:"id"`

	ConfigID string `json:"pushNotificationConfigId" yaml:"pushNotificationConfigId"`

	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// TaskPushConfig binds a PushConfig to a task. It is the payload of push config set requests.
type TaskPushConfig struct {
	Tenant string `json:"tenant,omitempty" yaml:"tenant,omitempty"`

	Config PushConfig `json:"pushNotificationConfig" yaml:"pushNotificationConfig"`

	TaskID TaskID `json:"taskId" yaml:"taskId"`
}

// PushConfig describes a webhook receiving task events. A task can have multiple configs,
// addressed as tasks/{taskId}/pushNotificationConfigs/{id}.
type PushConfig struct {
	// ID is assigned by the server when empty.
	ID string `json:"id,omitempty" yaml:"id,omitempty"`

	// Auth is a hint about the authentication the receiver expects.
	Auth *PushAuthInfo `json:"authentication,omitempty" yaml:"authentication,omitempty"`

	// Token is an opaque client-supplied value echoed with every notification.
	Token string `json:"token,omitempty" yaml:"token,omitempty"`

	// URL is the absolute callback URL.
	URL string `json:"url" yaml:"url"`
}

// PushAuthInfo defines authentication details for a push notification endpoint.
type PushAuthInfo struct {
	// Credentials are optional credentials used when calling the endpoint.
	Credentials string `json:"credentials,omitempty" yaml:"credentials,omitempty"`

	// Schemes lists supported authentication schemes, e.g. 'Basic' or 'Bearer'.
	Schemes []string `json:"schemes" yaml:"schemes"`
}
