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
	"errors"
	"sync"

	"github.com/a2aproject/a2a-taskserver/a2a"
	"github.com/a2aproject/a2a-taskserver/a2asrv/limiter"
	"github.com/a2aproject/a2a-taskserver/log"
)

// LocalOption configures a [Local] queue.
type LocalOption func(*Local)

// WithConcurrency sets execution quotas.
func WithConcurrency(cfg limiter.ConcurrencyConfig) LocalOption {
	return func(q *Local) {
		q.concurrency = cfg
	}
}

// Local is an in-process [Queue] which runs every execution in its own goroutine.
type Local struct {
	concurrency limiter.ConcurrencyConfig
	execs       *executions

	mu      sync.RWMutex
	handler HandlerFn
	closed  bool

	baseCtx    context.Context
	stopBaseFn context.CancelFunc
}

var _ Queue = (*Local)(nil)

// NewLocal creates a [Local] queue.
func NewLocal(opts ...LocalOption) *Local {
	q := &Local{}
	for _, opt := range opts {
		opt(q)
	}
	q.execs = newExecutions(q.concurrency)
	q.baseCtx, q.stopBaseFn = context.WithCancel(context.Background())
	return q
}

func (q *Local) RegisterHandler(handlerFn HandlerFn) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handler = handlerFn
}

func (q *Local) Enqueue(ctx context.Context, tenant string, taskID a2a.TaskID) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	if q.handler == nil {
		return errors.New("handler not registered")
	}

	payload := &Payload{Type: PayloadTypeExecute, Tenant: tenant, TaskID: taskID}
	// Executions outlive the request which scheduled them, but keep its logger.
	execCtx := log.WithLogger(q.baseCtx, log.LoggerFrom(ctx))
	q.execs.run(execCtx, payload, q.handler, func(err error) {
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Warn(execCtx, "task execution failed", "task_id", taskID, "error", err)
		}
	})
	return nil
}

func (q *Local) Cancel(ctx context.Context, tenant string, taskID a2a.TaskID) error {
	if !q.execs.cancel(tenant, taskID) {
		log.Info(ctx, "no execution to cancel", "task_id", taskID)
	}
	return nil
}

// Shutdown stops accepting new work and waits for running executions to finish.
// When ctx expires, running executions are canceled.
func (q *Local) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	err := q.execs.wait(ctx)
	if err != nil {
		q.execs.cancelAll()
	}
	q.stopBaseFn()
	return err
}
