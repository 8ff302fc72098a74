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

package mongostore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/a2aproject/a2a-taskserver/a2a"
	"github.com/a2aproject/a2a-taskserver/a2asrv/taskstore"
)

// pushConfigDocument is the MongoDB document representation of a push config.
type pushConfigDocument struct {
	Key      string `bson:"_id"`
	Tenant   string `bson:"tenant"`
	TaskID   string `bson:"task_id"`
	ConfigID string `bson:"config_id"`
	Config   string `bson:"config"`
}

// PushConfigStore persists push configs in a MongoDB collection.
type PushConfigStore struct {
	collection *mongo.Collection
}

var _ taskstore.PushConfigStore = (*PushConfigStore)(nil)

// NewPushConfigStore creates a store using the provided collection.
func NewPushConfigStore(collection *mongo.Collection) *PushConfigStore {
	return &PushConfigStore{collection: collection}
}

// EnsureIndexes creates the index used for listing the configs of a task.
func (s *PushConfigStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "tenant", Value: 1}, {Key: "task_id", Value: 1}, {Key: "config_id", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("mongodb create push config index: %w", err)
	}
	return nil
}

func configKey(tenant string, taskID a2a.TaskID, configID string) string {
	return documentKey(tenant, taskID) + "/" + configID
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

	doc := &pushConfigDocument{
		Key:      configKey(tenant, taskID, saved.ID),
		Tenant:   tenant,
		TaskID:   string(taskID),
		ConfigID: saved.ID,
		Config:   string(data),
	}
	opts := options.Replace().SetUpsert(true)
	if _, err := s.collection.ReplaceOne(ctx, bson.M{"_id": doc.Key}, doc, opts); err != nil {
		return nil, fmt.Errorf("mongodb save push config %q: %w", saved.ID, err)
	}
	return decodePushConfig(doc)
}

func (s *PushConfigStore) Get(ctx context.Context, tenant string, taskID a2a.TaskID, configID string) (*a2a.PushConfig, error) {
	var doc pushConfigDocument
	err := s.collection.FindOne(ctx, bson.M{"_id": configKey(tenant, taskID, configID)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", taskstore.ErrPushConfigNotFound, configID)
	}
	if err != nil {
		return nil, fmt.Errorf("mongodb get push config %q: %w", configID, err)
	}
	return decodePushConfig(&doc)
}

// List returns the configs of a task ordered by ID.
func (s *PushConfigStore) List(ctx context.Context, tenant string, taskID a2a.TaskID) ([]*a2a.PushConfig, error) {
	opts := options.Find().SetSort(bson.D{{Key: "config_id", Value: 1}})
	cursor, err := s.collection.Find(ctx, bson.M{"tenant": tenant, "task_id": string(taskID)}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb list push configs: %w", err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	var docs []pushConfigDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongodb list push configs decode: %w", err)
	}
	result := make([]*a2a.PushConfig, 0, len(docs))
	for i := range docs {
		config, err := decodePushConfig(&docs[i])
		if err != nil {
			return nil, err
		}
		result = append(result, config)
	}
	return result, nil
}

func (s *PushConfigStore) Delete(ctx context.Context, tenant string, taskID a2a.TaskID, configID string) error {
	result, err := s.collection.DeleteOne(ctx, bson.M{"_id": configKey(tenant, taskID, configID)})
	if err != nil {
		return fmt.Errorf("mongodb delete push config %q: %w", configID, err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("%w: %s", taskstore.ErrPushConfigNotFound, configID)
	}
	return nil
}

func decodePushConfig(doc *pushConfigDocument) (*a2a.PushConfig, error) {
	var config a2a.PushConfig
	if err := json.Unmarshal([]byte(doc.Config), &config); err != nil {
		return nil, fmt.Errorf("failed to decode push config %q: %w", doc.ConfigID, err)
	}
	return &config, nil
}
