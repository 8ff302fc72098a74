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

package a2asrv

import (
	"context"
	"iter"
	"net/http"
	"time"

	"github.com/a2aproject/a2a-taskserver/a2a"
	"github.com/a2aproject/a2a-taskserver/a2asrv/eventbus"
	"github.com/a2aproject/a2a-taskserver/internal/sse"
	"github.com/a2aproject/a2a-taskserver/log"
)

// DefaultKeepAliveInterval is the idle time after which a keep-alive comment is written to event streams.
const DefaultKeepAliveInterval = 15 * time.Second

type streamItem struct {
	event a2a.Event
	err   error
}

// writeEventStream writes events as Server-Sent Events until the stream ends, an error or
// a final status update event is written or the client disconnects. Keep-alive comments are
// written while the stream is idle.
func writeEventStream(
	ctx context.Context,
	rw http.ResponseWriter,
	keepAlive time.Duration,
	events func(context.Context) iter.Seq2[a2a.Event, error],
	encode func(a2a.Event, error) ([]byte, error),
) {
	w, err := sse.NewWriter(rw)
	if err != nil {
		log.Error(ctx, "failed to create event stream writer", err)
		http.Error(rw, "streaming not supported", http.StatusInternalServerError)
		return
	}
	w.WriteHeaders()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	items := make(chan streamItem)
	go func() {
		defer close(items)
		for event, err := range events(ctx) {
			select {
			case items <- streamItem{event: event, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	var tick <-chan time.Time
	if keepAlive > 0 {
		ticker := time.NewTicker(keepAlive)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return

		case <-tick:
			if err := w.WriteKeepAlive(ctx); err != nil {
				log.Info(ctx, "failed to write keep-alive", "error", err)
				return
			}

		case item, ok := <-items:
			if !ok {
				return
			}
			data, err := encode(item.event, item.err)
			if err != nil {
				log.Error(ctx, "failed to encode stream response", err)
				return
			}
			if err := w.WriteData(ctx, data); err != nil {
				log.Info(ctx, "failed to write stream response", "error", err)
				return
			}
			if item.err != nil || eventbus.IsFinal(item.event) {
				return
			}
		}
	}
}
