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
	"time"

	"github.com/a2aproject/a2a-taskserver/a2a"
	"github.com/a2aproject/a2a-taskserver/a2asrv/limiter"
	"github.com/a2aproject/a2a-taskserver/log"
)

// PullOption configures a [Pull] queue.
type PullOption func(*Pull)

// WithReadRetryPolicy overrides the delay applied between failed reads.
func WithReadRetryPolicy(policy ReadRetryPolicy) PullOption {
	return func(q *Pull) {
		q.readRetry = policy
	}
}

// WithMaxAttempts sets the number of times a failing execution is attempted.
func WithMaxAttempts(n int) PullOption {
	return func(q *Pull) {
		q.maxAttempts = n
	}
}

// WithPullConcurrency sets execution quotas of this instance.
func WithPullConcurrency(cfg limiter.ConcurrencyConfig) PullOption {
	return func(q *Pull) {
		q.concurrency = cfg
	}
}

// Pull is a [Queue] which transfers work through a [ReadWriter], so that executions can be
// scheduled by one server instance and run by another.
type Pull struct {
	rw          ReadWriter
	readRetry   ReadRetryPolicy
	maxAttempts int
	concurrency limiter.ConcurrencyConfig
	execs       *executions

	once     sync.Once
	loopCtx  context.Context
	stopLoop context.CancelFunc
}

var _ Queue = (*Pull)(nil)

// NewPullQueue creates a [Pull] queue on top of the transport.
func NewPullQueue(rw ReadWriter, opts ...PullOption) *Pull {
	q := &Pull{rw: rw, readRetry: defaultReadBackoff, maxAttempts: DefaultMaxAttempts}
	for _, opt := range opts {
		opt(q)
	}
	q.execs = newExecutions(q.concurrency)
	q.loopCtx, q.stopLoop = context.WithCancel(context.Background())
	return q
}

func (q *Pull) Enqueue(ctx context.Context, tenant string, taskID a2a.TaskID) error {
	return q.rw.Write(ctx, &Payload{Type: PayloadTypeExecute, Tenant: tenant, TaskID: taskID})
}

func (q *Pull) Cancel(ctx context.Context, tenant string, taskID a2a.TaskID) error {
	return q.rw.Write(ctx, &Payload{Type: PayloadTypeCancel, Tenant: tenant, TaskID: taskID})
}

func (q *Pull) RegisterHandler(handlerFn HandlerFn) {
	q.once.Do(func() {
		go q.readLoop(handlerFn)
	})
}

func (q *Pull) readLoop(handlerFn HandlerFn) {
	ctx := q.loopCtx

	failedReads := 0
	for {
		msg, err := q.rw.Read(ctx)
		if errors.Is(err, ErrQueueClosed) {
			log.Info(ctx, "work queue reader stopped because the queue was closed")
			return
		}
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			delay := q.readRetry.NextDelay(failedReads)
			failedReads++
			log.Warn(ctx, "work queue read failed", "error", err, "retry_in_s", delay.Seconds())
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			}
			continue
		}
		failedReads = 0
		q.handle(ctx, msg, handlerFn)
	}
}

func (q *Pull) handle(ctx context.Context, msg Message, handlerFn HandlerFn) {
	payload := msg.Payload()
	ctx = log.AttachAttrs(ctx, "task_id", payload.TaskID, "tenant", payload.Tenant)

	switch payload.Type {
	case PayloadTypeCancel:
		q.execs.cancel(payload.Tenant, payload.TaskID)
		if err := msg.Complete(ctx); err != nil {
			log.Warn(ctx, "failed to mark cancel request as completed", "error", err)
		}

	case PayloadTypeExecute:
		// Executions outlive the read loop, Shutdown waits for them.
		q.execs.run(context.WithoutCancel(ctx), payload, handlerFn, func(handleErr error) {
			// The execution context may be canceled at this point.
			ackCtx := context.WithoutCancel(ctx)
			if handleErr == nil || errors.Is(handleErr, context.Canceled) {
				if err := msg.Complete(ackCtx); err != nil {
					log.Warn(ackCtx, "failed to mark work item as completed", "error", err)
				}
				return
			}
			if payload.Attempt+1 >= q.maxAttempts {
				log.Error(ackCtx, "dropping work item after the last attempt failed", handleErr, "attempts", payload.Attempt+1)
				if err := msg.Complete(ackCtx); err != nil {
					log.Warn(ackCtx, "failed to mark work item as completed", "error", err)
				}
				return
			}
			if err := msg.Return(ackCtx, handleErr); err != nil {
				log.Warn(ackCtx, "failed to return failed work item", "handle_err", handleErr, "return_err", err)
			} else {
				log.Info(ackCtx, "failed to handle work item", "error", handleErr)
			}
		})

	default:
		log.Warn(ctx, "dropping work item of unknown type", "type", payload.Type)
		_ = msg.Complete(ctx)
	}
}

// Shutdown stops reading new work and waits for running executions to finish.
// When ctx expires, running executions are canceled.
func (q *Pull) Shutdown(ctx context.Context) error {
	q.stopLoop()
	err := q.execs.wait(ctx)
	if err != nil {
		q.execs.cancelAll()
	}
	return err
}
