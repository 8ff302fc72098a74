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

package rest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/a2aproject/a2a-taskserver/a2a"
)

func TestError_ToA2AError(t *testing.T) {
	tests := []struct {
		name         string
		contentType  string
		responseBody string
		wantError    error
		wantDetail   string
	}{
		{
			name:        "Task Not Found",
			contentType: ProblemContentType,
			responseBody: `{
				"type": "https://a2a-protocol.org/errors/task-not-found",
				"title": "Task Not Found",
				"status": 404,
				"detail": "The specified task ID does not exist"
			}`,
			wantError:  a2a.ErrTaskNotFound,
			wantDetail: "The specified task ID does not exist",
		},
		{
			name:        "Task Not Cancelable",
			contentType: ProblemContentType,
			responseBody: `{
				"type": "https://a2a-protocol.org/errors/task-not-cancelable",
				"title": "Task Not Cancelable",
				"status": 409,
				"detail": "The specified task is not cancelable"
			}`,
			wantError:  a2a.ErrTaskNotCancelable,
			wantDetail: "The specified task is not cancelable",
		},
		{
			name:        "Extended Agent Card not configured",
			contentType: ProblemContentType,
			responseBody: `{
				"type": "https://a2a-protocol.org/errors/extended-agent-card-not-configured",
				"status": 400,
				"detail": "The Extended Agent Card for this agent is not configured"
			}`,
			wantError:  a2a.ErrExtendedCardNotConfigured,
			wantDetail: "The Extended Agent Card for this agent is not configured",
		},
		{
			name:        "Unknown Type defaults to internal error",
			contentType: ProblemContentType,
			responseBody: `{
				"type": "https://a2a-protocol.org/errors/unknown-error",
				"status": 500,
				"detail": "Something unexpected happened"
			}`,
			wantError: a2a.ErrInternalError,
		},
		{
			name:         "Invalid Content-Type (Standard JSON)",
			contentType:  "application/json",
			responseBody: `{"error": "generic error"}`,
			wantError:    a2a.ErrInternalError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{
				Header: http.Header{"Content-Type": []string{tt.contentType}},
				Body:   io.NopCloser(bytes.NewBufferString(tt.responseBody)),
			}

			gotErr := ToA2AError(resp)

			if !errors.Is(gotErr, tt.wantError) {
				t.Errorf("ToA2AError() error = %v, want %v", gotErr, tt.wantError)
			}
			if tt.wantDetail != "" && !strings.Contains(gotErr.Error(), tt.wantDetail) {
				t.Errorf("ToA2AError() error message %q does not contain detail %q", gotErr.Error(), tt.wantDetail)
			}
		})
	}
}

func TestToRESTError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want *Error
	}{
		{
			name: "wrapped kind",
			err:  fmt.Errorf("failed to get task: %w", a2a.ErrTaskNotFound),
			want: &Error{
				Type:   "https://a2a-protocol.org/errors/task-not-found",
				Title:  "Task Not Found",
				Status: http.StatusNotFound,
				Detail: "failed to get task: task not found",
				TaskID: "task-1",
			},
		},
		{
			name: "details",
			err:  a2a.NewError(a2a.ErrVersionNotSupported, "version 9.0 is not supported").WithDetails(map[string]any{"supported": "1.0"}),
			want: &Error{
				Type:    "https://a2a-protocol.org/errors/version-not-supported",
				Title:   "Version Not Supported",
				Status:  http.StatusBadRequest,
				Detail:  "version 9.0 is not supported",
				TaskID:  "task-1",
				Details: map[string]any{"supported": "1.0"},
			},
		},
		{
			name: "internal error hides the cause",
			err:  errors.New("redis: connection refused"),
			want: &Error{
				Type:   "https://a2a-protocol.org/errors/internal-error",
				Title:  "Internal Server Error",
				Status: http.StatusInternalServerError,
				Detail: "internal error",
				TaskID: "task-1",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToRESTError(tt.err, "task-1")
			if diff := cmp.Diff(tt.want, got, cmpopts.IgnoreFields(Error{}, "Timestamp")); diff != "" {
				t.Errorf("ToRESTError() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMappingIsTotal(t *testing.T) {
	for _, kind := range a2a.KnownErrors {
		if StatusCode(kind) == 0 {
			t.Errorf("StatusCode(%v) = 0, want a mapping", kind)
		}

		rec := httptest.NewRecorder()
		WriteError(rec, kind, "")
		got := ToA2AError(rec.Result())
		if !errors.Is(got, kind) {
			t.Errorf("ToA2AError(WriteError(%v)) = %v, want the same kind", kind, got)
		}
	}
}

func TestPaths(t *testing.T) {
	if got, want := MakeCancelTaskPath("a/b"), "/tasks/a%2Fb:cancel"; got != want {
		t.Errorf("MakeCancelTaskPath() = %q, want %q", got, want)
	}
	if got, want := MakePushConfigPath("t", "c"), "/tasks/t/pushNotificationConfigs/c"; got != want {
		t.Errorf("MakePushConfigPath() = %q, want %q", got, want)
	}
}
