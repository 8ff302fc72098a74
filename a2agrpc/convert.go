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
	"encoding/json"
	"fmt"

	"github.com/a2aproject/a2a-taskserver/a2a"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// toStruct converts a value of the JSON data model to its protobuf Struct representation.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %T: %w", v, err)
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to convert %T to struct: %w", v, err)
	}
	return s, nil
}

// fromStruct decodes a protobuf Struct into a value of the JSON data model.
func fromStruct[T any](s *structpb.Struct) (*T, error) {
	var v T
	if s == nil {
		return &v, nil
	}
	data, err := protojson.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", a2a.ErrParseError, err)
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", a2a.ErrInvalidParams, err)
	}
	return &v, nil
}

// FromStructEvent decodes a streamed response into an [a2a.Event].
func FromStructEvent(s *structpb.Struct) (a2a.Event, error) {
	data, err := protojson.Marshal(s)
	if err != nil {
		return nil, err
	}
	return a2a.UnmarshalEventJSON(data)
}

// FromStructResult decodes a SendMessage response into an [a2a.SendMessageResult].
func FromStructResult(s *structpb.Struct) (a2a.SendMessageResult, error) {
	data, err := protojson.Marshal(s)
	if err != nil {
		return nil, err
	}
	return a2a.UnmarshalSendMessageResultJSON(data)
}

// ToStruct converts request params to the message type of the service.
func ToStruct(v any) (*structpb.Struct, error) {
	return toStruct(v)
}

// FromStruct decodes a response of the service.
func FromStruct[T any](s *structpb.Struct) (*T, error) {
	return fromStruct[T](s)
}
