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
	"encoding/json"
	"errors"
	"fmt"
)

// Part is a sealed union of message and artifact content types: [TextPart], [DataPart] and [FilePart].
type Part interface {
	Meta() map[string]any
	isPart()
}

func (TextPart) isPart() {}
func (DataPart) isPart() {}
func (FilePart) isPart() {}

// ContentParts is a list of Part-s with "kind"-discriminated JSON encoding.
type ContentParts []Part

func (parts ContentParts) MarshalJSON() ([]byte, error) {
	if len(parts) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal([]Part(parts))
}

func (parts *ContentParts) UnmarshalJSON(b []byte) error {
	var rawParts []json.RawMessage
	if err := json.Unmarshal(b, &rawParts); err != nil {
		return err
	}

	result := make(ContentParts, 0, len(rawParts))
	for _, raw := range rawParts {
		var probe struct {
			Kind string `json:"kind"`
		}
		if err := json.Unmarshal(raw, &probe); err != nil {
			return err
		}
		var part Part
		switch probe.Kind {
		case "text":
			var p TextPart
			if err := json.Unmarshal(raw, &p); err != nil {
				return err
			}
			part = p
		case "data":
			var p DataPart
			if err := json.Unmarshal(raw, &p); err != nil {
				return err
			}
			part = p
		case "file":
			var p FilePart
			if err := json.Unmarshal(raw, &p); err != nil {
				return err
			}
			part = p
		default:
			return fmt.Errorf("unknown part kind %q", probe.Kind)
		}
		result = append(result, part)
	}
	*parts = result
	return nil
}

// TextPart is a plain text content.
type TextPart struct {
	Text     string         `json:"text" yaml:"text"`
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

func (p TextPart) Meta() map[string]any {
	return p.Metadata
}

func (p TextPart) MarshalJSON() ([]byte, error) {
	type wrapped TextPart
	return json.Marshal(struct {
		Kind string `json:"kind"`
		wrapped
	}{Kind: "text", wrapped: wrapped(p)})
}

// DataPart is a structured JSON object content.
type DataPart struct {
	Data     map[string]any `json:"data" yaml:"data"`
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

func (p DataPart) Meta() map[string]any {
	return p.Metadata
}

func (p DataPart) MarshalJSON() ([]byte, error) {
	type wrapped DataPart
	return json.Marshal(struct {
		Kind string `json:"kind"`
		wrapped
	}{Kind: "data", wrapped: wrapped(p)})
}

// FilePart is a file content, either inlined as base64 bytes or referenced by URI.
type FilePart struct {
	File     FilePartContent `json:"file" yaml:"file"`
	Metadata map[string]any  `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

func (p FilePart) Meta() map[string]any {
	return p.Metadata
}

func (p FilePart) MarshalJSON() ([]byte, error) {
	type wrapped FilePart
	return json.Marshal(struct {
		Kind string `json:"kind"`
		wrapped
	}{Kind: "file", wrapped: wrapped(p)})
}

func (p *FilePart) UnmarshalJSON(b []byte) error {
	var raw struct {
		File     json.RawMessage `json:"file"`
		Metadata map[string]any  `json:"metadata"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if len(raw.File) == 0 {
		return errors.New("file part content is missing")
	}

	var probe struct {
		Bytes *string `json:"bytes"`
		URI   *string `json:"uri"`
	}
	if err := json.Unmarshal(raw.File, &probe); err != nil {
		return err
	}

	switch {
	case probe.Bytes != nil && probe.URI != nil:
		return errors.New("file part content can't have both bytes and uri")
	case probe.Bytes != nil:
		var content FileBytes
		if err := json.Unmarshal(raw.File, &content); err != nil {
			return err
		}
		p.File = content
	case probe.URI != nil:
		var content FileURI
		if err := json.Unmarshal(raw.File, &content); err != nil {
			return err
		}
		p.File = content
	default:
		return errors.New("file part content must have either bytes or uri")
	}
	p.Metadata = raw.Metadata
	return nil
}

// FilePartContent is a sealed union of [FileBytes] and [FileURI].
type FilePartContent interface {
	isFilePartContent()
}

func (FileBytes) isFilePartContent() {}
func (FileURI) isFilePartContent()   {}

// FileMeta holds the optional file attributes shared by file content variants.
type FileMeta struct {
	MimeType string `json:"mimeType,omitempty" yaml:"mimeType,omitempty"`
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
}

// FileBytes is a file inlined as base64-encoded bytes.
type FileBytes struct {
	FileMeta
	Bytes string `json:"bytes" yaml:"bytes"`
}

// FileURI is a file referenced by URI.
type FileURI struct {
	FileMeta
	URI string `json:"uri" yaml:"uri"`
}
