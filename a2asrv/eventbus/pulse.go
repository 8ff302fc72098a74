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

package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"goa.design/pulse/streaming"
	streamopts "goa.design/pulse/streaming/options"

	"github.com/a2aproject/a2a-taskserver/a2a"
	"github.com/a2aproject/a2a-taskserver/log"
)

const (
	defaultPulseMaxLen = 1_000
	defaultPulseTTL    = 24 * time.Hour
)

// PulseOption configures a [Pulse] broadcaster.
type PulseOption func(*pulseConfig)

type pulseConfig struct {
	maxLen     int
	ttl        time.Duration
	sinkPrefix string
}

// WithPulseMaxLen bounds the number of entries kept in the Redis stream of a task.
func WithPulseMaxLen(n int) PulseOption {
	return func(c *pulseConfig) {
		c.maxLen = n
	}
}

// WithPulseTTL sets how long the stream of a task is kept after its last event.
func WithPulseTTL(ttl time.Duration) PulseOption {
	return func(c *pulseConfig) {
		c.ttl = ttl
	}
}

// WithPulseSinkPrefix sets the prefix of the consumer group names created for subscriptions.
func WithPulseSinkPrefix(prefix string) PulseOption {
	return func(c *pulseConfig) {
		c.sinkPrefix = prefix
	}
}

// Pulse is a [Broadcaster] backed by goa.design/pulse Redis streams, which lets executions
// running on one server instance be observed by requests handled on another.
// Events of a task go to a stream of their own which expires after the task goes quiet.
// Every subscription reads the stream through its own consumer group, which provides fan-out
// semantics, and starts at the newest entry, which provides no-replay semantics.
type Pulse struct {
	prefix string
	rdb    *redis.Client
	cfg    pulseConfig
}

var _ Broadcaster = (*Pulse)(nil)

type pulseEnvelope struct {
	Tenant string          `json:"tenant,omitempty"`
	TaskID a2a.TaskID      `json:"taskId"`
	Event  json.RawMessage `json:"event"`
}

// NewPulse creates a broadcaster publishing to streams named after the prefix.
func NewPulse(prefix string, rdb *redis.Client, opts ...PulseOption) (*Pulse, error) {
	cfg := pulseConfig{maxLen: defaultPulseMaxLen, ttl: defaultPulseTTL, sinkPrefix: "a2a-sub"}
	for _, opt := range opts {
		opt(&cfg)
	}
	b := &Pulse{prefix: prefix, rdb: rdb, cfg: cfg}
	if _, err := b.stream(topic{}); err != nil {
		return nil, err
	}
	return b, nil
}

// stream returns the stream of the topic. Streams are created in Redis lazily.
func (b *Pulse) stream(t topic) (*streaming.Stream, error) {
	stream, err := streaming.NewStream(b.streamName(t), b.rdb,
		streamopts.WithStreamMaxLen(b.cfg.maxLen),
		streamopts.WithStreamSlidingTTL(b.cfg.ttl),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create pulse stream: %w", err)
	}
	return stream, nil
}

func (b *Pulse) streamName(t topic) string {
	return b.prefix + ":" + url.QueryEscape(t.tenant) + ":" + url.QueryEscape(string(t.taskID))
}

func (b *Pulse) Publish(ctx context.Context, tenant string, event a2a.Event) error {
	t, err := topicOf(tenant, event)
	if err != nil {
		return fmt.Errorf("failed to publish %T: %w", event, err)
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	payload, err := json.Marshal(pulseEnvelope{Tenant: tenant, TaskID: t.taskID, Event: data})
	if err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}
	stream, err := b.stream(t)
	if err != nil {
		return err
	}
	if _, err := stream.Add(ctx, pulseEventName, payload); err != nil {
		return fmt.Errorf("failed to add event to stream: %w", err)
	}
	return nil
}

func (b *Pulse) Subscribe(ctx context.Context, tenant string, taskID a2a.TaskID, opts ...SubscribeOption) (Subscription, error) {
	t := topic{tenant: tenant, taskID: taskID}
	stream, err := b.stream(t)
	if err != nil {
		return nil, err
	}
	sink, err := stream.NewSink(ctx, b.cfg.sinkPrefix+"-"+uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("failed to create pulse sink: %w", err)
	}
	return &pulseSubscription{
		cfg:   newSubscribeConfig(opts),
		topic: t,
		sink:  sink,
		done:  make(chan struct{}),
	}, nil
}

// Destroy deletes the stream of a task.
func (b *Pulse) Destroy(ctx context.Context, tenant string, taskID a2a.TaskID) error {
	stream, err := b.stream(topic{tenant: tenant, taskID: taskID})
	if err != nil {
		return err
	}
	return stream.Destroy(ctx)
}

const pulseEventName = "a2a.event"

type pulseSubscription struct {
	cfg   subscribeConfig
	topic topic
	sink  *streaming.Sink

	done      chan struct{}
	closeOnce sync.Once
}

func (s *pulseSubscription) Events(ctx context.Context) iter.Seq2[a2a.Event, error] {
	return func(yield func(a2a.Event, error) bool) {
		ch := s.sink.Subscribe()
		for {
			var msg *streaming.Event
			select {
			case <-s.done:
				return
			case <-ctx.Done():
				yield(nil, ctx.Err())
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				msg = m
			}

			if err := s.sink.Ack(ctx, msg); err != nil {
				log.Warn(ctx, "failed to ack stream event", "error", err, "id", msg.ID)
			}
			event, err := decodeEnvelope(msg.Payload, s.topic)
			if err != nil {
				log.Warn(ctx, "dropping undecodable stream event", "error", err, "id", msg.ID)
				continue
			}
			if !yield(event, nil) {
				return
			}
			if s.cfg.untilFinal && IsFinal(event) {
				_ = s.Close()
				return
			}
		}
	}
}

func decodeEnvelope(payload []byte, want topic) (a2a.Event, error) {
	var env pulseEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, err
	}
	if env.Tenant != want.tenant || env.TaskID != want.taskID {
		return nil, fmt.Errorf("envelope for %s/%s delivered to %s/%s", env.Tenant, env.TaskID, want.tenant, want.taskID)
	}
	return a2a.UnmarshalEventJSON(env.Event)
}

func (s *pulseSubscription) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.sink.Close(context.Background())
	})
	return nil
}
