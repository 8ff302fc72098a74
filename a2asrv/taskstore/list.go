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

package taskstore

import (
	"encoding/base64"
	"fmt"
	"strconv"

	"github.com/a2aproject/a2a-taskserver/a2a"
)

const (
	// DefaultPageSize is used when a list request doesn't specify a page size.
	DefaultPageSize = 50
	// MaxPageSize caps the page size of list requests.
	MaxPageSize = 100
)

// Page is the window of a filtered and ordered task list selected by a [a2a.ListTasksRequest].
type Page struct {
	Offset int
	Size   int
}

// PageOf validates the pagination fields of the request.
func PageOf(req *a2a.ListTasksRequest) (Page, error) {
	size := req.PageSize
	switch {
	case size < 0:
		return Page{}, fmt.Errorf("%w: negative page size", a2a.ErrInvalidParams)
	case size == 0:
		size = DefaultPageSize
	case size > MaxPageSize:
		size = MaxPageSize
	}
	offset, err := decodePageToken(req.PageToken)
	if err != nil {
		return Page{}, err
	}
	return Page{Offset: offset, Size: size}, nil
}

// NextPageToken returns the token of the page following p or an empty string if p is the last one.
func (p Page) NextPageToken(total int) string {
	next := p.Offset + p.Size
	if next >= total {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.Itoa(next)))
}

func decodePageToken(token string) (int, error) {
	if token == "" {
		return 0, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed page token", a2a.ErrInvalidParams)
	}
	offset, err := strconv.Atoi(string(raw))
	if err != nil || offset < 0 {
		return 0, fmt.Errorf("%w: malformed page token", a2a.ErrInvalidParams)
	}
	return offset, nil
}

// Matches reports whether the task passes the filters of the request.
// Filtering by update time is left to the store, which owns that information.
func Matches(req *a2a.ListTasksRequest, task *a2a.Task) bool {
	if req.ContextID != "" && task.ContextID != req.ContextID {
		return false
	}
	if req.Status != a2a.TaskStateUnspecified && task.Status.State != req.Status {
		return false
	}
	return true
}

// ShapeListed applies the history and artifact projections of the request to a listed task copy.
func ShapeListed(req *a2a.ListTasksRequest, task *a2a.Task) {
	a2a.TruncateHistory(task, req.HistoryLength)
	if !req.IncludeArtifacts {
		task.Artifacts = nil
	}
}
