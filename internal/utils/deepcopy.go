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

package utils

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// DeepCopy creates a deep copy of the provided value using gob encoding.
// Interface values stored in the copied value must be registered with gob.Register.
func DeepCopy[T any](src T) (T, error) {
	var buf bytes.Buffer
	var result T
	if err := gob.NewEncoder(&buf).Encode(&src); err != nil {
		return result, fmt.Errorf("failed to encode value: %w", err)
	}
	if err := gob.NewDecoder(&buf).Decode(&result); err != nil {
		return result, fmt.Errorf("failed to decode value: %w", err)
	}
	return result, nil
}
