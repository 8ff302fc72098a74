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

// Package mongostore provides [taskstore.Store] and [taskstore.PushConfigStore] implementations
// backed by MongoDB.
//
// Tasks are kept as JSON next to the fields used for filtering. Updates are conditional on the
// stored version, which makes them compare-and-swap operations.
package mongostore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/a2aproject/a2a-taskserver/a2a"
	"github.com/a2aproject/a2a-taskserver/a2asrv/taskstore"
)

// taskDocument is the MongoDB document representation of a task.
type taskDocument struct {
	Key       string    `bson:"_id"`
	Tenant    string    `bson:"tenant"`
	TaskID    string    `bson:"task_id"`
	ContextID string    `bson:"context_id"`
	State     string    `bson:"state"`
	Version   int64     `bson:"version"`
	UpdatedAt time.Time `bson:"updated_at"`
	Task      string    `bson:"task"`
}

// Option configures a [Store].
type Option func(*Store)

// WithClock overrides the time source used for update timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Store persists tasks in a MongoDB collection.
type Store struct {
	collection *mongo.Collection
	now        func() time.Time
}

var _ taskstore.Store = (*Store)(nil)

// New creates a store using the provided collection.
func New(collection *mongo.Collection, opts ...Option) *Store {
	s := &Store{collection: collection, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureIndexes creates the index used for listing tasks.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "tenant", Value: 1}, {Key: "updated_at", Value: -1}, {Key: "task_id", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("mongodb create task index: %w", err)
	}
	return nil
}

func documentKey(tenant string, id a2a.TaskID) string {
	return url.QueryEscape(tenant) + "/" + url.QueryEscape(string(id))
}

func (s *Store) Create(ctx context.Context, tenant string, task *a2a.Task) (taskstore.TaskVersion, error) {
	if err := taskstore.Validate(task); err != nil {
		return taskstore.TaskVersionMissing, err
	}
	data, err := json.Marshal(task)
	if err != nil {
		return taskstore.TaskVersionMissing, fmt.Errorf("failed to encode task: %w", err)
	}

	doc := &taskDocument{
		Key:       documentKey(tenant, task.ID),
		Tenant:    tenant,
		TaskID:    string(task.ID),
		ContextID: task.ContextID,
		State:     string(task.Status.State),
		Version:   1,
		UpdatedAt: s.now(),
		Task:      string(data),
	}
	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return taskstore.TaskVersionMissing, fmt.Errorf("%w: %s", taskstore.ErrTaskAlreadyExists, task.ID)
		}
		return taskstore.TaskVersionMissing, fmt.Errorf("mongodb create task %q: %w", task.ID, err)
	}
	return taskstore.TaskVersion(doc.Version), nil
}

func (s *Store) Update(ctx context.Context, req *taskstore.UpdateRequest) (taskstore.TaskVersion, error) {
	if err := taskstore.Validate(req.Task); err != nil {
		return taskstore.TaskVersionMissing, err
	}
	data, err := json.Marshal(req.Task)
	if err != nil {
		return taskstore.TaskVersionMissing, fmt.Errorf("failed to encode task: %w", err)
	}

	key := documentKey(req.Tenant, req.Task.ID)
	filter := bson.M{"_id": key}
	if req.PrevVersion != taskstore.TaskVersionMissing {
		filter["version"] = int64(req.PrevVersion)
	}
	update := bson.M{
		"$set": bson.M{
			"context_id": req.Task.ContextID,
			"state":      string(req.Task.Status.State),
			"updated_at": s.now(),
			"task":       string(data),
		},
		"$inc": bson.M{"version": 1},
	}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"version": 1})

	var updated struct {
		Version int64 `bson:"version"`
	}
	err = s.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		count, countErr := s.collection.CountDocuments(ctx, bson.M{"_id": key})
		if countErr != nil {
			return taskstore.TaskVersionMissing, fmt.Errorf("mongodb update task %q: %w", req.Task.ID, countErr)
		}
		if count == 0 {
			return taskstore.TaskVersionMissing, a2a.ErrTaskNotFound
		}
		return taskstore.TaskVersionMissing, fmt.Errorf("%w: task %s is not at version %d", taskstore.ErrConcurrentModification, req.Task.ID, req.PrevVersion)
	}
	if err != nil {
		return taskstore.TaskVersionMissing, fmt.Errorf("mongodb update task %q: %w", req.Task.ID, err)
	}
	return taskstore.TaskVersion(updated.Version), nil
}

func (s *Store) Get(ctx context.Context, tenant string, taskID a2a.TaskID) (*taskstore.StoredTask, error) {
	var doc taskDocument
	err := s.collection.FindOne(ctx, bson.M{"_id": documentKey(tenant, taskID)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, a2a.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongodb get task %q: %w", taskID, err)
	}
	return fromDocument(&doc)
}

func (s *Store) List(ctx context.Context, req *a2a.ListTasksRequest) (*a2a.ListTasksResponse, error) {
	page, err := taskstore.PageOf(req)
	if err != nil {
		return nil, err
	}

	filter := bson.M{"tenant": req.Tenant}
	if req.ContextID != "" {
		filter["context_id"] = req.ContextID
	}
	if req.Status != a2a.TaskStateUnspecified {
		filter["state"] = string(req.Status)
	}
	if req.LastUpdatedAfter != nil {
		filter["updated_at"] = bson.M{"$gte": *req.LastUpdatedAfter}
	}

	total, err := s.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("mongodb count tasks: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "updated_at", Value: -1}, {Key: "task_id", Value: 1}}).
		SetSkip(int64(page.Offset)).
		SetLimit(int64(page.Size))
	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb list tasks: %w", err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	var docs []taskDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongodb list tasks decode: %w", err)
	}

	result := make([]*a2a.Task, 0, len(docs))
	for i := range docs {
		stored, err := fromDocument(&docs[i])
		if err != nil {
			return nil, err
		}
		taskstore.ShapeListed(req, stored.Task)
		result = append(result, stored.Task)
	}

	return &a2a.ListTasksResponse{
		Tasks:         result,
		TotalSize:     int(total),
		PageSize:      page.Size,
		NextPageToken: page.NextPageToken(int(total)),
	}, nil
}

func fromDocument(doc *taskDocument) (*taskstore.StoredTask, error) {
	var task a2a.Task
	if err := json.Unmarshal([]byte(doc.Task), &task); err != nil {
		return nil, fmt.Errorf("failed to decode task %q: %w", doc.TaskID, err)
	}
	return &taskstore.StoredTask{Task: &task, Version: taskstore.TaskVersion(doc.Version)}, nil
}
