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

package workqueue

import (
	"context"
	"sync"
)

// InMemoryReadWriter is a [ReadWriter] for a single process. It is mostly useful for tests
// and for running a [Pull] queue without external infrastructure.
type InMemoryReadWriter struct {
	mu     sync.Mutex
	items  []*Payload
	notify chan struct{}
	closed bool
	done   chan struct{}
}

var _ ReadWriter = (*InMemoryReadWriter)(nil)

// NewInMemoryReadWriter creates an empty [InMemoryReadWriter].
func NewInMemoryReadWriter() *InMemoryReadWriter {
	return &InMemoryReadWriter{notify: make(chan struct{}, 1), done: make(chan struct{})}
}

func (rw *InMemoryReadWriter) Write(ctx context.Context, payload *Payload) error {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if rw.closed {
		return ErrQueueClosed
	}
	copy := *payload
	rw.items = append(rw.items, &copy)
	select {
	case rw.notify <- struct{}{}:
	default:
	}
	return nil
}

func (rw *InMemoryReadWriter) Read(ctx context.Context) (Message, error) {
	for {
		rw.mu.Lock()
		if rw.closed {
			rw.mu.Unlock()
			return nil, ErrQueueClosed
		}
		if len(rw.items) > 0 {
			payload := rw.items[0]
			rw.items = rw.items[1:]
			if len(rw.items) > 0 {
				select {
				case rw.notify <- struct{}{}:
				default:
				}
			}
			rw.mu.Unlock()
			return &inMemoryMessage{rw: rw, payload: payload}, nil
		}
		rw.mu.Unlock()

		select {
		case <-rw.notify:
		case <-rw.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Close makes pending and future reads fail with [ErrQueueClosed].
func (rw *InMemoryReadWriter) Close() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if !rw.closed {
		rw.closed = true
		close(rw.done)
	}
	return nil
}

type inMemoryMessage struct {
	rw      *InMemoryReadWriter
	payload *Payload
}

func (m *inMemoryMessage) Payload() *Payload {
	return m.payload
}

func (m *inMemoryMessage) Complete(ctx context.Context) error {
	return nil
}

func (m *inMemoryMessage) Return(ctx context.Context, cause error) error {
	retry := *m.payload
	retry.Attempt++
	return m.rw.Write(ctx, &retry)
}
