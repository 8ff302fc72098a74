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

// Package jsonrpc defines the JSON-RPC 2.0 envelope and the mapping of A2A errors to JSON-RPC error codes.
package jsonrpc

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/a2aproject/a2a-taskserver/a2a"
)

// Version is the value of the jsonrpc member of every envelope.
const Version = "2.0"

const (
	MethodMessageSend              = "message/send"
	MethodMessageStream            = "message/stream"
	MethodTasksGet                 = "tasks/get"
	MethodTasksList                = "tasks/list"
	MethodTasksCancel              = "tasks/cancel"
	MethodTasksResubscribe         = "tasks/resubscribe"
	MethodPushConfigGet            = "tasks/pushNotificationConfig/get"
	MethodPushConfigSet            = "tasks/pushNotificationConfig/set"
	MethodPushConfigList           = "tasks/pushNotificationConfig/list"
	MethodPushConfigDelete         = "tasks/pushNotificationConfig/delete"
	MethodGetAuthenticatedExtended = "agent/getAuthenticatedExtendedCard"
)

// Request is a JSON-RPC 2.0 request object.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      any             `json:"id"`
}

// Response is a JSON-RPC 2.0 response object. Exactly one of Result and Error is set.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

// StreamResponse is a JSON-RPC 2.0 response object used for decoding results of unknown shape.
type StreamResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error represents a JSON-RPC 2.0 error object.
type Error struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// Error implements the error interface for jsonrpcError.
func (e *Error) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("jsonrpc error %d: %s (data: %v)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// Unwrap returns the A2A error kind the code represents.
func (e *Error) Unwrap() error {
	return FromCode(e.Code)
}

var errorCodes = map[error]int{
	a2a.ErrParseError:                   -32700,
	a2a.ErrInvalidRequest:               -32600,
	a2a.ErrMethodNotFound:               -32601,
	a2a.ErrInvalidParams:                -32602,
	a2a.ErrInternalError:                -32603,
	a2a.ErrTaskNotFound:                 -32001,
	a2a.ErrTaskNotCancelable:            -32002,
	a2a.ErrPushNotificationNotSupported: -32003,
	a2a.ErrUnsupportedOperation:         -32004,
	a2a.ErrUnsupportedContentType:       -32005,
	a2a.ErrInvalidAgentResponse:         -32006,
	a2a.ErrExtendedCardNotConfigured:    -32007,
	a2a.ErrExtensionSupportRequired:     -32008,
	a2a.ErrVersionNotSupported:          -32009,
}

// Code returns the JSON-RPC error code of the error kind err wraps.
func Code(err error) int {
	return errorCodes[a2a.ErrorKind(err)]
}

// FromCode returns the A2A error kind represented by the code. Unknown codes are internal errors.
func FromCode(code int) error {
	for kind, c := range errorCodes {
		if c == code {
			return kind
		}
	}
	return a2a.ErrInternalError
}

// ToJSONRPCError converts err to a JSON-RPC error object. Internal errors only carry a
// generic message.
func ToJSONRPCError(err error) *Error {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}

	kind := a2a.ErrorKind(err)
	if kind == a2a.ErrInternalError {
		return &Error{Code: errorCodes[kind], Message: a2a.ErrInternalError.Error()}
	}

	result := &Error{Code: errorCodes[kind], Message: err.Error()}
	var a2aErr *a2a.Error
	if errors.As(err, &a2aErr) && len(a2aErr.Details) > 0 {
		result.Data = a2aErr.Details
	}
	return result
}
