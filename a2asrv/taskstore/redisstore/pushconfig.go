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

package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/a2aproject/a2a-taskserver/a2a"
	"github.com/a2aproject/a2a-taskserver/a2asrv/taskstore"
)

// PushConfigStore persists push configs in Redis. Configs of a task are fields of a single hash
// keyed by config ID.
type PushConfigStore struct {
	client redis.UniversalClient
	prefix string
}

var _ taskstore.PushConfigStore = (*PushConfigStore)(nil)

// NewPushConfigStore creates a store writing keys with the provided prefix.
func NewPushConfigStore(client redis.UniversalClient, prefix string) *PushConfigStore {
	if prefix == "" {
		prefix = "a2a"
	}
	return &PushConfigStore{client: client, prefix: prefix}
}

func (s *PushConfigStore) key(tenant string, id a2a.TaskID) string {
	return tenantPrefix(s.prefix, tenant) + ":push:" + url.QueryEscape(string(id))
}

func (s *PushConfigStore) Save(ctx context.Context, tenant string, taskID a2a.TaskID, config *a2a.PushConfig) (*a2a.PushConfig, error) {
	if err := taskstore.ValidatePushConfig(config); err != nil {
		return nil, err
	}
	saved := *config
	if saved.ID == "" {
		saved.ID = uuid.NewString()
	}
	data, err := json.Marshal(&saved)
	if err != nil {
		return nil, fmt.Errorf("failed to encode push config: %w", err)
	}
	if err := s.client.HSet(ctx, s.key(tenant, taskID), saved.ID, data).Err(); err != nil {
		return nil, fmt.Errorf("redis save push config %q: %w", saved.ID, err)
	}
	return decodePushConfig(string(data))
}

func (s *PushConfigStore) Get(ctx context.Context, tenant string, taskID a2a.TaskID, configID string) (*a2a.PushConfig, error) {
	data, err := s.client.HGet(ctx, s.key(tenant, taskID), configID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", taskstore.ErrPushConfigNotFound, configID)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get push config %q: %w", configID, err)
	}
	return decodePushConfig(data)
}

// List returns the configs of a task ordered by ID.
func (s *PushConfigStore) List(ctx context.Context, tenant string, taskID a2a.TaskID) ([]*a2a.PushConfig, error) {
	values, err := s.client.HGetAll(ctx, s.key(tenant, taskID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list push configs: %w", err)
	}
	result := make([]*a2a.PushConfig, 0, len(values))
	for _, data := range values {
		config, err := decodePushConfig(data)
		if err != nil {
			return nil, err
		}
		result = append(result, config)
	}
	slices.SortFunc(result, func(a, b *a2a.PushConfig) int {
		return strings.Compare(a.ID, b.ID)
	})
	return result, nil
}

func (s *PushConfigStore) Delete(ctx context.Context, tenant string, taskID a2a.TaskID, configID string) error {
	deleted, err := s.client.HDel(ctx, s.key(tenant, taskID), configID).Result()
	if err != nil {
		return fmt.Errorf("redis delete push config %q: %w", configID, err)
	}
	if deleted == 0 {
		return fmt.Errorf("%w: %s", taskstore.ErrPushConfigNotFound, configID)
	}
	return nil
}

func decodePushConfig(data string) (*a2a.PushConfig, error) {
	var config a2a.PushConfig
	if err := json.Unmarshal([]byte(data), &config); err != nil {
		return nil, fmt.Errorf("failed to decode push config: %w", err)
	}
	return &config, nil
}
