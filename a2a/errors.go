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
	"errors"
	"maps"
)

// Protocol errors raised while decoding and dispatching requests.
var (
	// ErrParseError indicates that the server received invalid JSON.
	ErrParseError = errors.New("parse error")

	// ErrInvalidRequest indicates that the request payload is not a valid request object.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrMethodNotFound indicates that the requested method does not exist or is not supported.
	ErrMethodNotFound = errors.New("method not found")

	// ErrInvalidParams indicates that the method parameters are invalid.
	ErrInvalidParams = errors.New("invalid params")

	// ErrInternalError indicates an unexpected failure on the server.
	ErrInternalError = errors.New("internal error")
)

// Domain errors. Every orchestrator failure wraps exactly one of these or is treated as an internal error.
var (
	// ErrTaskNotFound indicates that the referenced task (or push config) does not exist.
	ErrTaskNotFound = errors.New("task not found")

	// ErrTaskNotCancelable indicates that the task is in a state which does not allow cancelation.
	ErrTaskNotCancelable = errors.New("task cannot be canceled")

	// ErrPushNotificationNotSupported indicates that the agent does not advertise push notifications.
	ErrPushNotificationNotSupported = errors.New("push notification not supported")

	// ErrUnsupportedOperation indicates that the operation is not valid in the current state or not advertised.
	ErrUnsupportedOperation = errors.New("this operation is not supported")

	// ErrUnsupportedContentType indicates a mismatch between requested and supported content types.
	ErrUnsupportedContentType = errors.New("incompatible content types")

	// ErrInvalidAgentResponse indicates that the agent runtime returned something not representable.
	ErrInvalidAgentResponse = errors.New("invalid agent response")

	// ErrExtendedCardNotConfigured indicates that no extended agent card is configured.
	ErrExtendedCardNotConfigured = errors.New("extended agent card not configured")

	// ErrExtensionSupportRequired indicates that the client did not declare support for a required extension.
	ErrExtensionSupportRequired = errors.New("extension support required")

	// ErrVersionNotSupported indicates that the requested protocol version is not supported.
	ErrVersionNotSupported = errors.New("protocol version not supported")
)

// Error decorates a sentinel error with a human-readable message and structured details
// which transports can attach to their native error representation.
type Error struct {
	// Err is the sentinel the error unwraps to.
	Err error
	// Message overrides the sentinel text.
	Message string
	// Details is a JSON-compatible map of additional information.
	Details map[string]any
}

// NewError creates an Error which unwraps to err.
func NewError(err error, message string) *Error {
	return &Error{Err: err, Message: message}
}

// WithDetails returns a copy of the error with additional details.
func (e *Error) WithDetails(details map[string]any) *Error {
	merged := make(map[string]any, len(e.Details)+len(details))
	maps.Copy(merged, e.Details)
	maps.Copy(merged, details)
	return &Error{Err: e.Err, Message: e.Message, Details: merged}
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown error"
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KnownErrors lists the sentinels which have a stable representation in every transport.
var KnownErrors = []error{
	ErrParseError,
	ErrInvalidRequest,
	ErrMethodNotFound,
	ErrInvalidParams,
	ErrInternalError,
	ErrTaskNotFound,
	ErrTaskNotCancelable,
	ErrPushNotificationNotSupported,
	ErrUnsupportedOperation,
	ErrUnsupportedContentType,
	ErrInvalidAgentResponse,
	ErrExtendedCardNotConfigured,
	ErrExtensionSupportRequired,
	ErrVersionNotSupported,
}

// ErrorKind returns the known sentinel err wraps or ErrInternalError.
func ErrorKind(err error) error {
	for _, known := range KnownErrors {
		if errors.Is(err, known) {
			return known
		}
	}
	return ErrInternalError
}
