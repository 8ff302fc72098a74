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
	"fmt"
	"iter"
	"sync"

	"github.com/a2aproject/a2a-taskserver/a2a"
)

// Mem is an in-process [Broadcaster]. Every subscription owns an unbounded queue, so a slow
// consumer never blocks the publisher or other subscribers.
type Mem struct {
	mu   sync.Mutex
	subs map[topic]map[*memSubscription]struct{}
}

var _ Broadcaster = (*Mem)(nil)

// NewMem creates an in-memory broadcaster with no subscriptions.
func NewMem() *Mem {
	return &Mem{subs: make(map[topic]map[*memSubscription]struct{})}
}

func (b *Mem) Publish(ctx context.Context, tenant string, event a2a.Event) error {
	t, err := topicOf(tenant, event)
	if err != nil {
		return fmt.Errorf("failed to publish %T: %w", event, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs[t] {
		sub.push(event)
	}
	return nil
}

func (b *Mem) Subscribe(ctx context.Context, tenant string, taskID a2a.TaskID, opts ...SubscribeOption) (Subscription, error) {
	t := topic{tenant: tenant, taskID: taskID}
	sub := &memSubscription{
		cfg:    newSubscribeConfig(opts),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	sub.unregister = func() { b.remove(t, sub) }

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[t]; !ok {
		b.subs[t] = make(map[*memSubscription]struct{})
	}
	b.subs[t][sub] = struct{}{}
	return sub, nil
}

// SubscriberCount returns the number of active subscriptions for a task.
func (b *Mem) SubscriberCount(tenant string, taskID a2a.TaskID) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[topic{tenant: tenant, taskID: taskID}])
}

func (b *Mem) remove(t topic, sub *memSubscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs[t], sub)
	if len(b.subs[t]) == 0 {
		delete(b.subs, t)
	}
}

type memSubscription struct {
	cfg        subscribeConfig
	unregister func()

	mu     sync.Mutex
	queue  []a2a.Event
	closed bool
	// notify holds a token while the queue is non-empty.
	notify    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func (s *memSubscription) push(event a2a.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.queue = append(s.queue, event)
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *memSubscription) pop() (a2a.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil, false
	}
	event := s.queue[0]
	s.queue[0] = nil
	s.queue = s.queue[1:]
	if len(s.queue) > 0 {
		select {
		case s.notify <- struct{}{}:
		default:
		}
	}
	return event, true
}

func (s *memSubscription) Events(ctx context.Context) iter.Seq2[a2a.Event, error] {
	return func(yield func(a2a.Event, error) bool) {
		for {
			if event, ok := s.pop(); ok {
				if !yield(event, nil) {
					return
				}
				if s.cfg.untilFinal && IsFinal(event) {
					_ = s.Close()
					return
				}
				continue
			}

			select {
			case <-s.notify:
			case <-s.done:
				return
			case <-ctx.Done():
				yield(nil, ctx.Err())
				return
			}
		}
	}
}

func (s *memSubscription) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.queue = nil
		s.mu.Unlock()
		close(s.done)
		s.unregister()
	})
	return nil
}
