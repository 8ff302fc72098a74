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

	"github.com/a2aproject/a2a-taskserver/a2a"
	"github.com/a2aproject/a2a-taskserver/a2asrv/limiter"
	"github.com/a2aproject/a2a-taskserver/log"
)

type executionKey struct {
	tenant string
	taskID a2a.TaskID
}

type execution struct {
	cancel context.CancelCauseFunc
}

// executions tracks the cancel functions of scheduled executions on this instance.
type executions struct {
	limiter *limiter.Limiter

	mu      sync.Mutex
	running map[executionKey]*execution
	wg      sync.WaitGroup
}

func newExecutions(cfg limiter.ConcurrencyConfig) *executions {
	return &executions{limiter: limiter.New(cfg), running: make(map[executionKey]*execution)}
}

// run starts the handler in a new goroutine. The execution is registered before run returns,
// so a cancel issued right after scheduling is not lost.
func (e *executions) run(baseCtx context.Context, payload *Payload, handlerFn HandlerFn, onDone func(error)) {
	key := executionKey{tenant: payload.Tenant, taskID: payload.TaskID}
	ctx, cancel := context.WithCancelCause(baseCtx)
	exec := &execution{cancel: cancel}

	e.mu.Lock()
	if prev, ok := e.running[key]; ok {
		log.Info(ctx, "replacing execution of a task scheduled twice", "task_id", payload.TaskID)
		prev.cancel(ErrExecutionReplaced)
	}
	e.running[key] = exec
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer func() {
			e.mu.Lock()
			if e.running[key] == exec {
				delete(e.running, key)
			}
			e.mu.Unlock()
			cancel(nil)
		}()

		release, err := e.limiter.Acquire(limiter.WithScope(ctx, payload.Tenant))
		if err != nil {
			onDone(err)
			return
		}
		defer release()

		err = handlerFn(ctx, payload)
		onDone(err)
	}()
}

func (e *executions) cancel(tenant string, taskID a2a.TaskID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	exec, ok := e.running[executionKey{tenant: tenant, taskID: taskID}]
	if ok {
		exec.cancel(nil)
	}
	return ok
}

func (e *executions) cancelAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, exec := range e.running {
		exec.cancel(ErrQueueClosed)
	}
}

// wait blocks until all executions finish or ctx is done.
func (e *executions) wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
