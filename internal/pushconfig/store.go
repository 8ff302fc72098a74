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

// Package pushconfig provides an in-memory [taskstore.PushConfigStore] implementation.
package pushconfig

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/a2aproject/a2a-taskserver/a2a"
	"github.com/a2aproject/a2a-taskserver/a2asrv/taskstore"
	"github.com/a2aproject/a2a-taskserver/internal/utils"
	"github.com/google/uuid"
)

type taskKey struct {
	tenant string
	id     a2a.TaskID
}

// InMemoryPushConfigStore implements [taskstore.PushConfigStore].
type InMemoryPushConfigStore struct {
	mu      sync.RWMutex
	configs map[taskKey]map[string]*a2a.PushConfig
}

var _ taskstore.PushConfigStore = (*InMemoryPushConfigStore)(nil)

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryPushConfigStore {
	return &InMemoryPushConfigStore{
		configs: make(map[taskKey]map[string]*a2a.PushConfig),
	}
}

// Save adds a copy of push config to the store.
func (s *InMemoryPushConfigStore) Save(ctx context.Context, tenant string, taskID a2a.TaskID, config *a2a.PushConfig) (*a2a.PushConfig, error) {
	if err := taskstore.ValidatePushConfig(config); err != nil {
		return nil, err
	}

	copy, err := utils.DeepCopy(config)
	if err != nil {
		return nil, err
	}
	if copy.ID == "" {
		copy.ID = uuid.NewString()
	}

	s.mu.Lock()
	key := taskKey{tenant: tenant, id: taskID}
	if _, ok := s.configs[key]; !ok {
		s.configs[key] = make(map[string]*a2a.PushConfig)
	}
	s.configs[key][copy.ID] = copy
	s.mu.Unlock()

	return utils.DeepCopy(copy)
}

// Get returns a copy of a single stored config.
func (s *InMemoryPushConfigStore) Get(ctx context.Context, tenant string, taskID a2a.TaskID, configID string) (*a2a.PushConfig, error) {
	s.mu.RLock()
	config, ok := s.configs[taskKey{tenant: tenant, id: taskID}][configID]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", taskstore.ErrPushConfigNotFound, configID)
	}
	return utils.DeepCopy(config)
}

// List returns copies of stored configs for a task ordered by ID.
func (s *InMemoryPushConfigStore) List(ctx context.Context, tenant string, taskID a2a.TaskID) ([]*a2a.PushConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	configs := s.configs[taskKey{tenant: tenant, id: taskID}]
	result := make([]*a2a.PushConfig, 0, len(configs))
	for _, config := range configs {
		copy, err := utils.DeepCopy(config)
		if err != nil {
			return nil, err
		}
		result = append(result, copy)
	}
	slices.SortFunc(result, func(a, b *a2a.PushConfig) int {
		return strings.Compare(a.ID, b.ID)
	})
	return result, nil
}

// Delete removes a single config from a store.
func (s *InMemoryPushConfigStore) Delete(ctx context.Context, tenant string, taskID a2a.TaskID, configID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := taskKey{tenant: tenant, id: taskID}
	configs := s.configs[key]
	if _, ok := configs[configID]; !ok {
		return fmt.Errorf("%w: %s", taskstore.ErrPushConfigNotFound, configID)
	}
	delete(configs, configID)
	if len(configs) == 0 {
		delete(s.configs, key)
	}
	return nil
}
