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

// Package sse implements the subset of Server-Sent Events used for streaming responses.
package sse

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"iter"
	"net/http"

	"github.com/google/uuid"
)

const (
	// ContentType is the media type of event streams.
	ContentType = "text/event-stream"

	sseIDPrefix   = "id: "
	sseDataPrefix = "data: "
)

// ParseDataStream yields the payloads of the data lines of an event stream.
func ParseDataStream(body io.Reader) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
		prefixBytes := []byte(sseDataPrefix)

		for scanner.Scan() {
			lineBytes := scanner.Bytes()
			if bytes.HasPrefix(lineBytes, prefixBytes) {
				data := bytes.Clone(lineBytes[len(prefixBytes):])
				if !yield(data, nil) {
					return
				}
			}
			// Ignore empty lines, comments, and other SSE fields
		}
		if err := scanner.Err(); err != nil {
			yield(nil, fmt.Errorf("SSE stream error: %w", err))
		}
	}
}

// Writer writes events to an http.ResponseWriter which supports flushing.
type Writer struct {
	writer  http.ResponseWriter
	flusher http.Flusher
}

// NewWriter fails if the response can't be flushed.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}
	return &Writer{writer: w, flusher: flusher}, nil
}

func (w *Writer) WriteHeaders() {
	w.writer.Header().Set("Content-Type", ContentType)
	w.writer.Header().Set("Cache-Control", "no-cache")
	w.writer.Header().Set("Connection", "keep-alive")
	w.writer.Header().Set("X-Accel-Buffering", "no")
	w.writer.WriteHeader(http.StatusOK)
	w.flusher.Flush()
}

func (w *Writer) WriteKeepAlive(ctx context.Context) error {
	if _, err := w.writer.Write([]byte(": keep-alive\n\n")); err != nil {
		return err
	}
	w.flusher.Flush()
	return nil
}

func (w *Writer) WriteData(ctx context.Context, data []byte) error {
	if _, err := fmt.Fprintf(w.writer, "%s%s\n", sseIDPrefix, uuid.NewString()); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w.writer, "%s%s\n\n", sseDataPrefix, data); err != nil {
		return err
	}
	w.flusher.Flush()
	return nil
}
