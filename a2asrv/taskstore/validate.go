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
	"fmt"
	"net/url"
	"reflect"

	"github.com/a2aproject/a2a-taskserver/a2a"
)

// Validate checks that the task can be persisted by every store implementation: it must have
// an ID and its metadata maps must only hold JSON-compatible values without reference cycles.
func Validate(task *a2a.Task) error {
	if task == nil {
		return fmt.Errorf("task cannot be nil")
	}
	if task.ID == "" {
		return fmt.Errorf("task ID cannot be empty")
	}

	metas := []map[string]any{task.Metadata}
	if task.Status.Message != nil {
		metas = append(metas, messageMetas(task.Status.Message)...)
	}
	for _, msg := range task.History {
		metas = append(metas, messageMetas(msg)...)
	}
	for _, artifact := range task.Artifacts {
		if artifact == nil {
			continue
		}
		metas = append(metas, artifact.Metadata)
		metas = append(metas, partMetas(artifact.Parts)...)
	}

	for _, meta := range metas {
		if err := checkMetaValue(meta, map[uintptr]struct{}{}); err != nil {
			return err
		}
	}
	return nil
}

func messageMetas(msg *a2a.Message) []map[string]any {
	if msg == nil {
		return nil
	}
	return append(partMetas(msg.Parts), msg.Metadata)
}

func partMetas(parts a2a.ContentParts) []map[string]any {
	result := make([]map[string]any, 0, len(parts))
	for _, p := range parts {
		result = append(result, p.Meta())
		if dp, ok := p.(a2a.DataPart); ok {
			result = append(result, dp.Data)
		}
	}
	return result
}

func checkMetaValue(value any, visiting map[uintptr]struct{}) error {
	switch v := value.(type) {
	case nil, bool, string, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return nil

	case map[string]any:
		if v == nil {
			return nil
		}
		ptr := reflect.ValueOf(v).Pointer()
		if _, ok := visiting[ptr]; ok {
			return fmt.Errorf("circular reference in metadata")
		}
		visiting[ptr] = struct{}{}
		defer delete(visiting, ptr)
		for _, elem := range v {
			if err := checkMetaValue(elem, visiting); err != nil {
				return err
			}
		}
		return nil

	case []any:
		if len(v) == 0 {
			return nil
		}
		ptr := reflect.ValueOf(v).Pointer()
		if _, ok := visiting[ptr]; ok {
			return fmt.Errorf("circular reference in metadata")
		}
		visiting[ptr] = struct{}{}
		defer delete(visiting, ptr)
		for _, elem := range v {
			if err := checkMetaValue(elem, visiting); err != nil {
				return err
			}
		}
		return nil

	default:
		return fmt.Errorf("%T is not permitted in metadata, must be one of nil, bool, number, string, []any, map[string]any", value)
	}
}

// ValidatePushConfig checks that the config has an absolute http(s) endpoint.
func ValidatePushConfig(config *a2a.PushConfig) error {
	if config == nil {
		return fmt.Errorf("%w: push config cannot be nil", a2a.ErrInvalidParams)
	}
	if config.URL == "" {
		return fmt.Errorf("%w: push config endpoint cannot be empty", a2a.ErrUnsupportedOperation)
	}
	u, err := url.ParseRequestURI(config.URL)
	if err != nil {
		return fmt.Errorf("%w: invalid push config endpoint URL: %w", a2a.ErrUnsupportedOperation, err)
	}
	if (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return fmt.Errorf("%w: push config endpoint must be an absolute http(s) URL", a2a.ErrUnsupportedOperation)
	}
	return nil
}
