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

// Package limiter bounds the number of concurrently running task executions.
package limiter

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

type limiterScopeKeyType struct{}

var limiterScopeKey = limiterScopeKeyType{}

// WithScope attaches the scope (usually a tenant) quotas are tracked for.
func WithScope(ctx context.Context, scope string) context.Context {
	return context.WithValue(ctx, limiterScopeKey, scope)
}

// ScopeFrom returns the scope attached with [WithScope].
func ScopeFrom(ctx context.Context) (string, bool) {
	scope, ok := ctx.Value(limiterScopeKey).(string)
	return scope, ok
}

// ConcurrencyConfig defines execution quotas. Non-positive values mean no limit.
type ConcurrencyConfig struct {
	// MaxExecutions caps the number of executions across all scopes.
	MaxExecutions int
	// GetMaxExecutions returns the cap of a single scope.
	GetMaxExecutions func(scope string) int
}

// Limiter enforces a [ConcurrencyConfig].
type Limiter struct {
	cfg    ConcurrencyConfig
	global *semaphore.Weighted

	mu     sync.Mutex
	scoped map[string]*semaphore.Weighted
}

// New creates a [Limiter].
func New(cfg ConcurrencyConfig) *Limiter {
	l := &Limiter{cfg: cfg, scoped: make(map[string]*semaphore.Weighted)}
	if cfg.MaxExecutions > 0 {
		l.global = semaphore.NewWeighted(int64(cfg.MaxExecutions))
	}
	return l
}

// Acquire blocks until an execution slot is available for the scope of ctx or ctx is done.
// The returned function must be called to release the slot.
func (l *Limiter) Acquire(ctx context.Context) (func(), error) {
	scopeSem := l.scopeSemaphore(ctx)

	if scopeSem != nil {
		if err := scopeSem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
	}
	if l.global != nil {
		if err := l.global.Acquire(ctx, 1); err != nil {
			if scopeSem != nil {
				scopeSem.Release(1)
			}
			return nil, err
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if l.global != nil {
				l.global.Release(1)
			}
			if scopeSem != nil {
				scopeSem.Release(1)
			}
		})
	}, nil
}

func (l *Limiter) scopeSemaphore(ctx context.Context) *semaphore.Weighted {
	if l.cfg.GetMaxExecutions == nil {
		return nil
	}
	scope, _ := ScopeFrom(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()
	if sem, ok := l.scoped[scope]; ok {
		return sem
	}
	var sem *semaphore.Weighted
	if limit := l.cfg.GetMaxExecutions(scope); limit > 0 {
		sem = semaphore.NewWeighted(int64(limit))
	}
	l.scoped[scope] = sem
	return sem
}
