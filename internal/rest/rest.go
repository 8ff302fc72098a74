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

// Package rest defines the HTTP+JSON paths and the problem-details error mapping.
package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/a2aproject/a2a-taskserver/a2a"
)

// ProblemContentType is the media type of error bodies.
const ProblemContentType = "application/problem+json"

// PathPrefix is the prefix of every route of the HTTP+JSON binding.
const PathPrefix = "/v1"

func MakeListTasksPath() string {
	return "/tasks"
}

func MakeSendMessagePath() string {
	return "/message:send"
}

func MakeStreamMessagePath() string {
	return "/message:stream"
}

func MakeGetExtendedAgentCardPath() string {
	return "/extendedAgentCard"
}

func MakeGetTaskPath(taskID string) string {
	return "/tasks/" + url.PathEscape(taskID)
}

func MakeCancelTaskPath(taskID string) string {
	return MakeGetTaskPath(taskID) + ":cancel"
}

func MakeSubscribeTaskPath(taskID string) string {
	return MakeGetTaskPath(taskID) + ":subscribe"
}

func MakePushConfigsPath(taskID string) string {
	return MakeGetTaskPath(taskID) + "/pushNotificationConfigs"
}

func MakePushConfigPath(taskID, configID string) string {
	return MakePushConfigsPath(taskID) + "/" + url.PathEscape(configID)
}

// Error is an RFC 9457 problem details object.
type Error struct {
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Status    int            `json:"status"`
	Detail    string         `json:"detail"`
	TaskID    string         `json:"taskId,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Title, e.Detail)
}

type errorDetails struct {
	status int
	uri    string
	title  string
}

var internalErrorDetails = errorDetails{
	status: http.StatusInternalServerError,
	uri:    "https://a2a-protocol.org/errors/internal-error",
	title:  "Internal Server Error",
}

var errToDetails = map[error]errorDetails{
	a2a.ErrTaskNotFound: {
		status: http.StatusNotFound,
		uri:    "https://a2a-protocol.org/errors/task-not-found",
		title:  "Task Not Found",
	},
	a2a.ErrTaskNotCancelable: {
		status: http.StatusConflict,
		uri:    "https://a2a-protocol.org/errors/task-not-cancelable",
		title:  "Task Not Cancelable",
	},
	a2a.ErrPushNotificationNotSupported: {
		status: http.StatusBadRequest,
		uri:    "https://a2a-protocol.org/errors/push-notification-not-supported",
		title:  "Push Notification Not Supported",
	},
	a2a.ErrUnsupportedOperation: {
		status: http.StatusBadRequest,
		uri:    "https://a2a-protocol.org/errors/unsupported-operation",
		title:  "Unsupported Operation",
	},
	a2a.ErrUnsupportedContentType: {
		status: http.StatusUnsupportedMediaType,
		uri:    "https://a2a-protocol.org/errors/content-type-not-supported",
		title:  "Content Type Not Supported",
	},
	a2a.ErrInvalidAgentResponse: {
		status: http.StatusBadGateway,
		uri:    "https://a2a-protocol.org/errors/invalid-agent-response",
		title:  "Invalid Agent Response",
	},
	a2a.ErrExtendedCardNotConfigured: {
		status: http.StatusBadRequest,
		uri:    "https://a2a-protocol.org/errors/extended-agent-card-not-configured",
		title:  "Extended Agent Card Not Configured",
	},
	a2a.ErrExtensionSupportRequired: {
		status: http.StatusBadRequest,
		uri:    "https://a2a-protocol.org/errors/extension-support-required",
		title:  "Extension Support Required",
	},
	a2a.ErrVersionNotSupported: {
		status: http.StatusBadRequest,
		uri:    "https://a2a-protocol.org/errors/version-not-supported",
		title:  "Version Not Supported",
	},
	a2a.ErrParseError: {
		status: http.StatusBadRequest,
		uri:    "https://a2a-protocol.org/errors/parse-error",
		title:  "Parse Error",
	},
	a2a.ErrInvalidRequest: {
		status: http.StatusBadRequest,
		uri:    "https://a2a-protocol.org/errors/invalid-request",
		title:  "Invalid Request",
	},
	a2a.ErrInvalidParams: {
		status: http.StatusBadRequest,
		uri:    "https://a2a-protocol.org/errors/invalid-params",
		title:  "Invalid Params",
	},
	a2a.ErrMethodNotFound: {
		status: http.StatusNotFound,
		uri:    "https://a2a-protocol.org/errors/method-not-found",
		title:  "Method Not Found",
	},
	a2a.ErrInternalError: internalErrorDetails,
}

// StatusCode returns the HTTP status of the error kind err wraps.
func StatusCode(err error) int {
	return errToDetails[a2a.ErrorKind(err)].status
}

// ToRESTError converts err to a problem details object. Internal errors only carry a generic detail.
func ToRESTError(err error, taskID a2a.TaskID) *Error {
	var restErr *Error
	if errors.As(err, &restErr) {
		return restErr
	}

	kind := a2a.ErrorKind(err)
	details := errToDetails[kind]
	e := &Error{
		Type:      details.uri,
		Title:     details.title,
		Status:    details.status,
		Detail:    err.Error(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		TaskID:    string(taskID),
	}
	if kind == a2a.ErrInternalError {
		e.Detail = a2a.ErrInternalError.Error()
		return e
	}
	var a2aErr *a2a.Error
	if errors.As(err, &a2aErr) && len(a2aErr.Details) > 0 {
		e.Details = a2aErr.Details
	}
	return e
}

// ToA2AError decodes a problem details response into an error wrapping the A2A error kind.
func ToA2AError(resp *http.Response) error {
	if resp.Header.Get("Content-Type") != ProblemContentType {
		return fmt.Errorf("unexpected response status %s: %w", resp.Status, a2a.ErrInternalError)
	}

	var e Error
	if err := json.NewDecoder(resp.Body).Decode(&e); err != nil {
		return fmt.Errorf("failed to decode error details: %w", err)
	}
	return e.A2AError()
}

// A2AError converts the problem details into an error wrapping the A2A error kind identified by Type.
func (e *Error) A2AError() error {
	kind := a2a.ErrInternalError
	for err, details := range errToDetails {
		if e.Type == details.uri {
			kind = err
			break
		}
	}
	if len(e.Details) > 0 {
		return a2a.NewError(kind, e.Detail).WithDetails(e.Details)
	}
	return a2a.NewError(kind, e.Detail)
}

// WriteError writes err as a problem details response.
func WriteError(w http.ResponseWriter, err error, taskID a2a.TaskID) {
	restErr := ToRESTError(err, taskID)
	w.Header().Set("Content-Type", ProblemContentType)
	w.WriteHeader(restErr.Status)
	_ = json.NewEncoder(w).Encode(restErr)
}
