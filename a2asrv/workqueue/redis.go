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
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPollTimeout = time.Second

// RedisReadWriter is a [ReadWriter] backed by Redis. Execute payloads are pushed to a list
// which is consumed by competing readers. Cancel payloads are broadcast with pub/sub, so
// that the instance running the execution receives them.
type RedisReadWriter struct {
	client      *redis.Client
	listKey     string
	channel     string
	pollTimeout time.Duration

	pubsub  *redis.PubSub
	cancels <-chan *redis.Message

	closeOnce sync.Once
	done      chan struct{}
}

var _ ReadWriter = (*RedisReadWriter)(nil)

// NewRedisReadWriter creates a transport using keys prefixed with name. It subscribes to the
// cancellation channel before returning.
func NewRedisReadWriter(ctx context.Context, client *redis.Client, name string) (*RedisReadWriter, error) {
	rw := &RedisReadWriter{
		client:      client,
		listKey:     name + ":work",
		channel:     name + ":cancel",
		pollTimeout: defaultRedisPollTimeout,
		done:        make(chan struct{}),
	}
	rw.pubsub = client.Subscribe(ctx, rw.channel)
	if _, err := rw.pubsub.Receive(ctx); err != nil {
		_ = rw.pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", rw.channel, err)
	}
	rw.cancels = rw.pubsub.Channel()
	return rw, nil
}

func (rw *RedisReadWriter) Write(ctx context.Context, payload *Payload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}
	switch payload.Type {
	case PayloadTypeCancel:
		err = rw.client.Publish(ctx, rw.channel, data).Err()
	default:
		err = rw.client.LPush(ctx, rw.listKey, data).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to write %s payload: %w", payload.Type, err)
	}
	return nil
}

func (rw *RedisReadWriter) Read(ctx context.Context) (Message, error) {
	for {
		select {
		case <-rw.done:
			return nil, ErrQueueClosed
		case <-ctx.Done():
			return nil, ctx.Err()
		case msg, ok := <-rw.cancels:
			if !ok {
				return nil, ErrQueueClosed
			}
			return rw.decode([]byte(msg.Payload))
		default:
		}

		res, err := rw.client.BRPop(ctx, rw.pollTimeout, rw.listKey).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("failed to pop work item: %w", err)
		}
		// BRPOP returns the key name followed by the value.
		return rw.decode([]byte(res[1]))
	}
}

func (rw *RedisReadWriter) decode(data []byte) (Message, error) {
	var payload Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	return &redisMessage{rw: rw, payload: &payload}, nil
}

// Close stops the cancellation subscription. The Redis client is owned by the caller.
func (rw *RedisReadWriter) Close() error {
	var err error
	rw.closeOnce.Do(func() {
		close(rw.done)
		err = rw.pubsub.Close()
	})
	return err
}

type redisMessage struct {
	rw      *RedisReadWriter
	payload *Payload
}

func (m *redisMessage) Payload() *Payload {
	return m.payload
}

func (m *redisMessage) Complete(ctx context.Context) error {
	return nil
}

func (m *redisMessage) Return(ctx context.Context, cause error) error {
	retry := *m.payload
	retry.Attempt++
	return m.rw.Write(ctx, &retry)
}
