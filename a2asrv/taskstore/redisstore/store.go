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

// Package redisstore provides [taskstore.Store] and [taskstore.PushConfigStore] implementations
// backed by Redis.
//
// Every task is a hash holding its JSON encoding, version and update time. Tasks of a tenant
// are indexed in a sorted set scored by the update time. Updates use WATCH/MULTI so that a
// version check and the write are atomic.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/a2aproject/a2a-taskserver/a2a"
	"github.com/a2aproject/a2a-taskserver/a2asrv/taskstore"
)

const (
	fieldTask    = "task"
	fieldVersion = "version"
	fieldUpdated = "updated"

	// maxUnconditionalAttempts bounds the retries of updates which don't check the version.
	maxUnconditionalAttempts = 5
)

// Option configures a [Store].
type Option func(*Store)

// WithClock overrides the time source used for update timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithKeyPrefix sets the prefix of all keys written by the store. Defaults to "a2a".
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// Store persists tasks in Redis.
type Store struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

var _ taskstore.Store = (*Store)(nil)

// New creates a store using the provided client.
func New(client redis.UniversalClient, opts ...Option) *Store {
	s := &Store{client: client, prefix: "a2a", now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) taskKey(tenant string, id a2a.TaskID) string {
	return tenantPrefix(s.prefix, tenant) + ":task:" + url.QueryEscape(string(id))
}

func (s *Store) indexKey(tenant string) string {
	return tenantPrefix(s.prefix, tenant) + ":tasks"
}

// tenantPrefix escapes the tenant so that tenants and IDs containing separators can't collide.
func tenantPrefix(prefix, tenant string) string {
	return prefix + ":" + url.QueryEscape(tenant)
}

func (s *Store) Create(ctx context.Context, tenant string, task *a2a.Task) (taskstore.TaskVersion, error) {
	if err := taskstore.Validate(task); err != nil {
		return taskstore.TaskVersionMissing, err
	}
	data, err := json.Marshal(task)
	if err != nil {
		return taskstore.TaskVersionMissing, fmt.Errorf("failed to encode task: %w", err)
	}

	key := s.taskKey(tenant, task.ID)
	version := taskstore.TaskVersion(1)
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return fmt.Errorf("%w: %s", taskstore.ErrTaskAlreadyExists, task.ID)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			s.write(ctx, pipe, tenant, task.ID, data, version)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return taskstore.TaskVersionMissing, fmt.Errorf("%w: %s", taskstore.ErrTaskAlreadyExists, task.ID)
	}
	if err != nil {
		return taskstore.TaskVersionMissing, fmt.Errorf("redis create task %q: %w", task.ID, err)
	}
	return version, nil
}

func (s *Store) Update(ctx context.Context, req *taskstore.UpdateRequest) (taskstore.TaskVersion, error) {
	if err := taskstore.Validate(req.Task); err != nil {
		return taskstore.TaskVersionMissing, err
	}
	data, err := json.Marshal(req.Task)
	if err != nil {
		return taskstore.TaskVersionMissing, fmt.Errorf("failed to encode task: %w", err)
	}

	key := s.taskKey(req.Tenant, req.Task.ID)
	for range maxUnconditionalAttempts {
		var version taskstore.TaskVersion
		err = s.client.Watch(ctx, func(tx *redis.Tx) error {
			raw, err := tx.HGet(ctx, key, fieldVersion).Result()
			if errors.Is(err, redis.Nil) {
				return a2a.ErrTaskNotFound
			}
			if err != nil {
				return err
			}
			current, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return fmt.Errorf("malformed version %q: %w", raw, err)
			}
			if req.PrevVersion != taskstore.TaskVersionMissing && req.PrevVersion != taskstore.TaskVersion(current) {
				return fmt.Errorf("%w: task %s is at version %d, update expected %d", taskstore.ErrConcurrentModification, req.Task.ID, current, req.PrevVersion)
			}
			version = taskstore.TaskVersion(current + 1)
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				s.write(ctx, pipe, req.Tenant, req.Task.ID, data, version)
				return nil
			})
			return err
		}, key)

		switch {
		case err == nil:
			return version, nil
		case errors.Is(err, redis.TxFailedErr):
			if req.PrevVersion != taskstore.TaskVersionMissing {
				return taskstore.TaskVersionMissing, fmt.Errorf("%w: task %s was modified concurrently", taskstore.ErrConcurrentModification, req.Task.ID)
			}
		case errors.Is(err, a2a.ErrTaskNotFound), errors.Is(err, taskstore.ErrConcurrentModification):
			return taskstore.TaskVersionMissing, err
		default:
			return taskstore.TaskVersionMissing, fmt.Errorf("redis update task %q: %w", req.Task.ID, err)
		}
	}
	return taskstore.TaskVersionMissing, fmt.Errorf("%w: task %s was modified concurrently", taskstore.ErrConcurrentModification, req.Task.ID)
}

// write queues the commands storing a task version and indexing it by update time.
func (s *Store) write(ctx context.Context, pipe redis.Pipeliner, tenant string, id a2a.TaskID, data []byte, version taskstore.TaskVersion) {
	updated := s.now().UnixMicro()
	pipe.HSet(ctx, s.taskKey(tenant, id), fieldTask, data, fieldVersion, int64(version), fieldUpdated, updated)
	pipe.ZAdd(ctx, s.indexKey(tenant), redis.Z{Score: float64(updated), Member: string(id)})
}

func (s *Store) Get(ctx context.Context, tenant string, taskID a2a.TaskID) (*taskstore.StoredTask, error) {
	values, err := s.client.HMGet(ctx, s.taskKey(tenant, taskID), fieldTask, fieldVersion).Result()
	if err != nil {
		return nil, fmt.Errorf("redis get task %q: %w", taskID, err)
	}
	stored, err := decodeStored(values)
	if err != nil {
		return nil, fmt.Errorf("redis get task %q: %w", taskID, err)
	}
	if stored == nil {
		return nil, a2a.ErrTaskNotFound
	}
	return stored, nil
}

type listedTask struct {
	task    *a2a.Task
	updated int64
}

func (s *Store) List(ctx context.Context, req *a2a.ListTasksRequest) (*a2a.ListTasksResponse, error) {
	page, err := taskstore.PageOf(req)
	if err != nil {
		return nil, err
	}

	minScore := "-inf"
	if req.LastUpdatedAfter != nil {
		minScore = strconv.FormatInt(req.LastUpdatedAfter.UnixMicro(), 10)
	}
	index, err := s.client.ZRangeByScoreWithScores(ctx, s.indexKey(req.Tenant), &redis.ZRangeBy{Min: minScore, Max: "+inf"}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list tasks: %w", err)
	}

	cmds := make([]*redis.SliceCmd, len(index))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, z := range index {
			cmds[i] = pipe.HMGet(ctx, s.taskKey(req.Tenant, a2a.TaskID(z.Member.(string))), fieldTask, fieldVersion)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis list tasks: %w", err)
	}

	filtered := make([]listedTask, 0, len(index))
	for i, cmd := range cmds {
		stored, err := decodeStored(cmd.Val())
		if err != nil {
			return nil, fmt.Errorf("redis list tasks: %w", err)
		}
		if stored == nil || !taskstore.Matches(req, stored.Task) {
			continue
		}
		filtered = append(filtered, listedTask{task: stored.Task, updated: int64(index[i].Score)})
	}
	slices.SortFunc(filtered, func(a, b listedTask) int {
		if a.updated != b.updated {
			return cmpInt64(b.updated, a.updated)
		}
		return strings.Compare(string(a.task.ID), string(b.task.ID))
	})

	total := len(filtered)
	start := min(page.Offset, total)
	end := min(start+page.Size, total)
	result := make([]*a2a.Task, 0, end-start)
	for _, listed := range filtered[start:end] {
		taskstore.ShapeListed(req, listed.task)
		result = append(result, listed.task)
	}

	return &a2a.ListTasksResponse{
		Tasks:         result,
		TotalSize:     total,
		PageSize:      page.Size,
		NextPageToken: page.NextPageToken(total),
	}, nil
}

// decodeStored converts an HMGET reply of the task and version fields. A nil result means
// the task doesn't exist.
func decodeStored(values []any) (*taskstore.StoredTask, error) {
	if len(values) != 2 || values[0] == nil || values[1] == nil {
		return nil, nil
	}
	data, ok := values[0].(string)
	if !ok {
		return nil, fmt.Errorf("unexpected task value type %T", values[0])
	}
	var task a2a.Task
	if err := json.Unmarshal([]byte(data), &task); err != nil {
		return nil, fmt.Errorf("failed to decode task: %w", err)
	}
	rawVersion, _ := values[1].(string)
	version, err := strconv.ParseInt(rawVersion, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed version %q: %w", rawVersion, err)
	}
	return &taskstore.StoredTask{Task: &task, Version: taskstore.TaskVersion(version)}, nil
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
