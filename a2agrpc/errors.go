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

package a2agrpc

import (
	"context"
	"errors"
	"fmt"

	"github.com/a2aproject/a2a-taskserver/a2a"
	"github.com/a2aproject/a2a-taskserver/log"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

var errToCode = map[error]codes.Code{
	a2a.ErrParseError:                   codes.InvalidArgument,
	a2a.ErrInvalidRequest:               codes.InvalidArgument,
	a2a.ErrMethodNotFound:               codes.Unimplemented,
	a2a.ErrInvalidParams:                codes.InvalidArgument,
	a2a.ErrInternalError:                codes.Internal,
	a2a.ErrTaskNotFound:                 codes.NotFound,
	a2a.ErrTaskNotCancelable:            codes.FailedPrecondition,
	a2a.ErrPushNotificationNotSupported: codes.Unimplemented,
	a2a.ErrUnsupportedOperation:         codes.Unimplemented,
	a2a.ErrUnsupportedContentType:       codes.InvalidArgument,
	a2a.ErrInvalidAgentResponse:         codes.Internal,
	a2a.ErrExtendedCardNotConfigured:    codes.NotFound,
	a2a.ErrExtensionSupportRequired:     codes.FailedPrecondition,
	a2a.ErrVersionNotSupported:          codes.Unimplemented,
}

// ErrorDomain is the domain of the google.rpc.ErrorInfo attached to every non-internal error.
const ErrorDomain = "a2a-protocol.org"

// errToReason identifies the error kind when several kinds share a status code.
var errToReason = map[error]string{
	a2a.ErrParseError:                   "PARSE_ERROR",
	a2a.ErrInvalidRequest:               "INVALID_REQUEST",
	a2a.ErrMethodNotFound:               "METHOD_NOT_FOUND",
	a2a.ErrInvalidParams:                "INVALID_PARAMS",
	a2a.ErrInternalError:                "INTERNAL_ERROR",
	a2a.ErrTaskNotFound:                 "TASK_NOT_FOUND",
	a2a.ErrTaskNotCancelable:            "TASK_NOT_CANCELABLE",
	a2a.ErrPushNotificationNotSupported: "PUSH_NOTIFICATION_NOT_SUPPORTED",
	a2a.ErrUnsupportedOperation:         "UNSUPPORTED_OPERATION",
	a2a.ErrUnsupportedContentType:       "CONTENT_TYPE_NOT_SUPPORTED",
	a2a.ErrInvalidAgentResponse:         "INVALID_AGENT_RESPONSE",
	a2a.ErrExtendedCardNotConfigured:    "EXTENDED_AGENT_CARD_NOT_CONFIGURED",
	a2a.ErrExtensionSupportRequired:     "EXTENSION_SUPPORT_REQUIRED",
	a2a.ErrVersionNotSupported:          "VERSION_NOT_SUPPORTED",
}

// toGRPCError translates a2a errors into gRPC status errors. Details of [a2a.Error] are attached
// as a [structpb.Struct]. Internal errors are logged and replaced with a generic message.
func toGRPCError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}

	kind := a2a.ErrorKind(err)
	if kind == a2a.ErrInternalError {
		log.Error(ctx, "request failed", err)
		return status.Error(codes.Internal, a2a.ErrInternalError.Error())
	}

	st := status.New(errToCode[kind], err.Error())
	if withInfo, err := st.WithDetails(&errdetails.ErrorInfo{Reason: errToReason[kind], Domain: ErrorDomain}); err == nil {
		st = withInfo
	}
	var a2aErr *a2a.Error
	if errors.As(err, &a2aErr) && len(a2aErr.Details) > 0 {
		details, err := structpb.NewStruct(a2aErr.Details)
		if err != nil {
			return st.Err()
		}
		if withDetails, err := st.WithDetails(details); err == nil {
			st = withDetails
		}
	}
	return st.Err()
}

// ErrorDetails returns the structured details attached to a status error.
func ErrorDetails(err error) map[string]any {
	st, ok := status.FromError(err)
	if !ok {
		return nil
	}
	for _, detail := range st.Details() {
		if s, ok := detail.(*structpb.Struct); ok {
			return s.AsMap()
		}
	}
	return nil
}

// FromGRPCError converts a status error received from the service into an error wrapping
// the A2A error kind. The kind is taken from the attached ErrorInfo when present and
// derived from the status code otherwise.
func FromGRPCError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.OK:
		return nil
	case codes.Canceled:
		return fmt.Errorf("%s: %w", st.Message(), context.Canceled)
	case codes.DeadlineExceeded:
		return fmt.Errorf("%s: %w", st.Message(), context.DeadlineExceeded)
	}

	kind := kindFromCode(st.Code())
	for _, detail := range st.Details() {
		info, ok := detail.(*errdetails.ErrorInfo)
		if !ok || info.GetDomain() != ErrorDomain {
			continue
		}
		for candidate, reason := range errToReason {
			if reason == info.GetReason() {
				kind = candidate
				break
			}
		}
	}

	if details := ErrorDetails(err); len(details) > 0 {
		return a2a.NewError(kind, st.Message()).WithDetails(details)
	}
	return a2a.NewError(kind, st.Message())
}

func kindFromCode(code codes.Code) error {
	switch code {
	case codes.NotFound:
		return a2a.ErrTaskNotFound
	case codes.FailedPrecondition:
		return a2a.ErrTaskNotCancelable
	case codes.InvalidArgument:
		return a2a.ErrInvalidParams
	case codes.Unimplemented:
		return a2a.ErrUnsupportedOperation
	default:
		return a2a.ErrInternalError
	}
}
