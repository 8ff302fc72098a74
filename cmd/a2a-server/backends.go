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

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/a2aproject/a2a-taskserver/a2asrv"
	"github.com/a2aproject/a2a-taskserver/a2asrv/eventbus"
	"github.com/a2aproject/a2a-taskserver/a2asrv/limiter"
	"github.com/a2aproject/a2a-taskserver/a2asrv/push"
	"github.com/a2aproject/a2a-taskserver/a2asrv/taskstore"
	"github.com/a2aproject/a2a-taskserver/a2asrv/taskstore/mongostore"
	"github.com/a2aproject/a2a-taskserver/a2asrv/taskstore/redisstore"
	"github.com/a2aproject/a2a-taskserver/a2asrv/workqueue"
	internalstore "github.com/a2aproject/a2a-taskserver/internal/taskstore"
	"github.com/a2aproject/a2a-taskserver/internal/pushconfig"
)

// shutdownQueue is implemented by every queue the server can be configured with.
type shutdownQueue interface {
	workqueue.Queue
	Shutdown(ctx context.Context) error
}

// backends holds the pluggable components of the request handler.
type backends struct {
	tasks       taskstore.Store
	pushConfigs taskstore.PushConfigStore
	broadcaster eventbus.Broadcaster
	queue       shutdownQueue
	sender      push.Sender

	// closers release connections in reverse order of creation.
	closers []func(context.Context) error
}

func (b *backends) handlerOptions() []a2asrv.RequestHandlerOption {
	return []a2asrv.RequestHandlerOption{
		a2asrv.WithTaskStore(b.tasks),
		a2asrv.WithPushConfigStore(b.pushConfigs),
		a2asrv.WithBroadcaster(b.broadcaster),
		a2asrv.WithWorkQueue(b.queue),
		a2asrv.WithPushSender(b.sender),
	}
}

// close shuts the queue down first so that running executions can still persist their results.
func (b *backends) close(ctx context.Context) error {
	var errs []error
	if b.queue != nil {
		errs = append(errs, b.queue.Shutdown(ctx))
	}
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i](ctx))
	}
	return errors.Join(errs...)
}

func newBackends(ctx context.Context, cfg *Config) (_ *backends, err error) {
	b := &backends{}
	defer func() {
		if err != nil {
			_ = b.close(ctx)
		}
	}()

	var rdb *redis.Client
	redisClient := func() (*redis.Client, error) {
		if rdb != nil {
			return rdb, nil
		}
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		b.closers = append(b.closers, func(context.Context) error { return rdb.Close() })
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Store.Redis.Addr, err)
		}
		return rdb, nil
	}

	switch cfg.Store.Backend {
	case "redis":
		client, err := redisClient()
		if err != nil {
			return nil, err
		}
		b.tasks = redisstore.New(client)
		b.pushConfigs = redisstore.NewPushConfigStore(client, "a2a")
	case "mongo":
		if err := b.connectMongo(ctx, cfg.Store.Mongo); err != nil {
			return nil, err
		}
	default:
		b.tasks = internalstore.NewMem()
		b.pushConfigs = pushconfig.NewInMemoryStore()
	}

	switch cfg.Events.Backend {
	case "pulse":
		client, err := redisClient()
		if err != nil {
			return nil, err
		}
		broadcaster, err := eventbus.NewPulse(cfg.Events.Pulse.Stream, client,
			eventbus.WithPulseMaxLen(cfg.Events.Pulse.MaxLen),
			eventbus.WithPulseTTL(cfg.Events.Pulse.TTL),
		)
		if err != nil {
			return nil, err
		}
		b.broadcaster = broadcaster
	default:
		b.broadcaster = eventbus.NewMem()
	}

	concurrency := limiter.ConcurrencyConfig{MaxExecutions: cfg.Queue.Concurrency}
	switch cfg.Queue.Backend {
	case "redis":
		client, err := redisClient()
		if err != nil {
			return nil, err
		}
		rw, err := workqueue.NewRedisReadWriter(ctx, client, cfg.Queue.Name)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func(context.Context) error { return rw.Close() })
		b.queue = workqueue.NewPullQueue(rw, workqueue.WithPullConcurrency(concurrency))
	default:
		b.queue = workqueue.NewLocal(workqueue.WithConcurrency(concurrency))
	}

	b.sender = push.NewHTTPSender(
		push.WithHTTPClient(&http.Client{Timeout: cfg.Push.Timeout}),
		push.WithHostRateLimit(cfg.Push.RatePerSecond, cfg.Push.Burst),
	)
	return b, nil
}

func (b *backends) connectMongo(ctx context.Context, cfg MongoConfig) error {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return fmt.Errorf("failed to connect to mongo: %w", err)
	}
	b.closers = append(b.closers, client.Disconnect)
	if err := client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("failed to ping mongo: %w", err)
	}

	db := client.Database(cfg.Database)
	tasks := mongostore.New(db.Collection("tasks"))
	if err := tasks.EnsureIndexes(ctx); err != nil {
		return err
	}
	pushConfigs := mongostore.NewPushConfigStore(db.Collection("push_configs"))
	if err := pushConfigs.EnsureIndexes(ctx); err != nil {
		return err
	}
	b.tasks, b.pushConfigs = tasks, pushConfigs
	return nil
}
