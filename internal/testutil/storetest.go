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

package testutil

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/a2aproject/a2a-taskserver/a2a"
	"github.com/a2aproject/a2a-taskserver/a2asrv/taskstore"
	"github.com/google/go-cmp/cmp"
)

// Clock is a deterministic time source advancing by a second on every reading.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a Clock starting at a fixed date.
func NewClock() *Clock {
	return &Clock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// Now advances the clock and returns the new time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

// Peek returns the current time without advancing the clock.
func (c *Clock) Peek() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// NewStoreFunc creates an empty store which takes update timestamps from the provided clock.
type NewStoreFunc func(t *testing.T, now func() time.Time) taskstore.Store

// RunTaskStoreTests checks the behavior every [taskstore.Store] implementation must provide.
func RunTaskStoreTests(t *testing.T, newStore NewStoreFunc) {
	t.Run("CreateGet", func(t *testing.T) {
		store := newStore(t, NewClock().Now)
		task := fixtureTask("t1", "c1", a2a.TaskStateWorking)

		version, err := store.Create(t.Context(), "", task)
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		got, err := store.Get(t.Context(), "", task.ID)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.Version != version {
			t.Fatalf("Get() version = %d, want %d", got.Version, version)
		}
		if diff := cmp.Diff(task, got.Task); diff != "" {
			t.Fatalf("Get() wrong task (-want +got) diff = %s", diff)
		}
	})

	t.Run("CreateDuplicate", func(t *testing.T) {
		store := newStore(t, NewClock().Now)
		mustCreate(t, store, "", fixtureTask("t1", "c1", a2a.TaskStateSubmitted))

		_, err := store.Create(t.Context(), "", fixtureTask("t1", "c1", a2a.TaskStateSubmitted))
		if !errors.Is(err, taskstore.ErrTaskAlreadyExists) {
			t.Fatalf("Create() error = %v, want %v", err, taskstore.ErrTaskAlreadyExists)
		}
	})

	t.Run("CreateInvalid", func(t *testing.T) {
		store := newStore(t, NewClock().Now)
		if _, err := store.Create(t.Context(), "", &a2a.Task{}); err == nil {
			t.Fatal("Create() succeeded for a task without ID")
		}
	})

	t.Run("UpdateVersioning", func(t *testing.T) {
		store := newStore(t, NewClock().Now)
		task := fixtureTask("t1", "c1", a2a.TaskStateSubmitted)
		v1 := mustCreate(t, store, "", task)

		task.Status.State = a2a.TaskStateWorking
		v2, err := store.Update(t.Context(), &taskstore.UpdateRequest{Task: task, PrevVersion: v1})
		if err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		if !v2.After(v1) {
			t.Fatalf("Update() version = %d, want after %d", v2, v1)
		}

		task.Status.State = a2a.TaskStateCompleted
		if _, err := store.Update(t.Context(), &taskstore.UpdateRequest{Task: task, PrevVersion: v1}); !errors.Is(err, taskstore.ErrConcurrentModification) {
			t.Fatalf("Update() with stale version error = %v, want %v", err, taskstore.ErrConcurrentModification)
		}
		got, err := store.Get(t.Context(), "", task.ID)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.Version != v2 || got.Task.Status.State != a2a.TaskStateWorking {
			t.Fatalf("Get() = (%d, %s), want the state written at version %d", got.Version, got.Task.Status.State, v2)
		}

		v3, err := store.Update(t.Context(), &taskstore.UpdateRequest{Task: task, PrevVersion: taskstore.TaskVersionMissing})
		if err != nil {
			t.Fatalf("unconditional Update() error = %v", err)
		}
		if !v3.After(v2) {
			t.Fatalf("unconditional Update() version = %d, want after %d", v3, v2)
		}
	})

	t.Run("UpdateMissing", func(t *testing.T) {
		store := newStore(t, NewClock().Now)
		_, err := store.Update(t.Context(), &taskstore.UpdateRequest{Task: fixtureTask("t1", "c1", a2a.TaskStateWorking)})
		if !errors.Is(err, a2a.ErrTaskNotFound) {
			t.Fatalf("Update() error = %v, want %v", err, a2a.ErrTaskNotFound)
		}
	})

	t.Run("TenantIsolation", func(t *testing.T) {
		store := newStore(t, NewClock().Now)
		mustCreate(t, store, "a", fixtureTask("t1", "from-a", a2a.TaskStateWorking))
		mustCreate(t, store, "b", fixtureTask("t1", "from-b", a2a.TaskStateWorking))

		got, err := store.Get(t.Context(), "b", "t1")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.Task.ContextID != "from-b" {
			t.Fatalf("Get() returned the task of another tenant: %v", got.Task)
		}
		if _, err := store.Get(t.Context(), "", "t1"); !errors.Is(err, a2a.ErrTaskNotFound) {
			t.Fatalf("Get() in default tenant error = %v, want %v", err, a2a.ErrTaskNotFound)
		}
	})

	t.Run("List", func(t *testing.T) {
		clock := NewClock()
		store := newStore(t, clock.Now)
		mustCreate(t, store, "", fixtureTask("t1", "c1", a2a.TaskStateCompleted))
		afterFirst := clock.Peek().Add(time.Millisecond)
		mustCreate(t, store, "", fixtureTask("t2", "c1", a2a.TaskStateWorking))
		mustCreate(t, store, "", fixtureTask("t3", "c2", a2a.TaskStateWorking))
		mustCreate(t, store, "other", fixtureTask("t4", "c1", a2a.TaskStateWorking))
		one := 1

		testCases := []struct {
			name    string
			req     *a2a.ListTasksRequest
			wantIDs []a2a.TaskID
			total   int
		}{
			{name: "most recent first", req: &a2a.ListTasksRequest{}, wantIDs: []a2a.TaskID{"t3", "t2", "t1"}, total: 3},
			{name: "by context", req: &a2a.ListTasksRequest{ContextID: "c1"}, wantIDs: []a2a.TaskID{"t2", "t1"}, total: 2},
			{name: "by status", req: &a2a.ListTasksRequest{Status: a2a.TaskStateWorking}, wantIDs: []a2a.TaskID{"t3", "t2"}, total: 2},
			{name: "by update time", req: &a2a.ListTasksRequest{LastUpdatedAfter: &afterFirst}, wantIDs: []a2a.TaskID{"t3", "t2"}, total: 2},
			{name: "tenant", req: &a2a.ListTasksRequest{Tenant: "other"}, wantIDs: []a2a.TaskID{"t4"}, total: 1},
			{name: "paged", req: &a2a.ListTasksRequest{PageSize: 2}, wantIDs: []a2a.TaskID{"t3", "t2"}, total: 3},
			{name: "history length", req: &a2a.ListTasksRequest{Status: a2a.TaskStateCompleted, HistoryLength: &one}, wantIDs: []a2a.TaskID{"t1"}, total: 1},
		}
		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				got, err := store.List(t.Context(), tc.req)
				if err != nil {
					t.Fatalf("List() error = %v", err)
				}
				if diff := cmp.Diff(tc.wantIDs, taskIDs(got.Tasks)); diff != "" {
					t.Fatalf("List() wrong IDs (-want +got) diff = %s", diff)
				}
				if got.TotalSize != tc.total {
					t.Fatalf("List() TotalSize = %d, want %d", got.TotalSize, tc.total)
				}
			})
		}
	})

	t.Run("ListProjections", func(t *testing.T) {
		store := newStore(t, NewClock().Now)
		mustCreate(t, store, "", fixtureTask("t1", "c1", a2a.TaskStateCompleted))
		one := 1

		got, err := store.List(t.Context(), &a2a.ListTasksRequest{HistoryLength: &one})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		listed := got.Tasks[0]
		if len(listed.History) != 1 || listed.History[0].ID != "m2" {
			t.Fatalf("List() history = %v, want the last message only", listed.History)
		}
		if listed.Artifacts != nil {
			t.Fatalf("List() artifacts = %v, want none", listed.Artifacts)
		}

		got, err = store.List(t.Context(), &a2a.ListTasksRequest{IncludeArtifacts: true})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(got.Tasks[0].History) != 2 || len(got.Tasks[0].Artifacts) != 1 {
			t.Fatalf("List() = %v, want the full history and artifacts", got.Tasks[0])
		}
	})

	t.Run("ListPagination", func(t *testing.T) {
		store := newStore(t, NewClock().Now)
		for i := range 5 {
			mustCreate(t, store, "", fixtureTask(a2a.TaskID(fmt.Sprintf("t%d", i)), "c1", a2a.TaskStateWorking))
		}

		var pages [][]a2a.TaskID
		req := &a2a.ListTasksRequest{PageSize: 2}
		for {
			resp, err := store.List(t.Context(), req)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if resp.TotalSize != 5 || resp.PageSize != 2 {
				t.Fatalf("List() = (total %d, size %d), want (5, 2)", resp.TotalSize, resp.PageSize)
			}
			pages = append(pages, taskIDs(resp.Tasks))
			if resp.NextPageToken == "" {
				break
			}
			req.PageToken = resp.NextPageToken
		}

		want := [][]a2a.TaskID{{"t4", "t3"}, {"t2", "t1"}, {"t0"}}
		if diff := cmp.Diff(want, pages); diff != "" {
			t.Fatalf("wrong pages (-want +got) diff = %s", diff)
		}
	})

	t.Run("ListInvalidRequest", func(t *testing.T) {
		store := newStore(t, NewClock().Now)
		for _, req := range []*a2a.ListTasksRequest{{PageSize: -1}, {PageToken: "%%%"}} {
			if _, err := store.List(t.Context(), req); !errors.Is(err, a2a.ErrInvalidParams) {
				t.Fatalf("List(%+v) error = %v, want %v", req, err, a2a.ErrInvalidParams)
			}
		}
	})
}

// RunPushConfigStoreTests checks the behavior every [taskstore.PushConfigStore] implementation must provide.
func RunPushConfigStoreTests(t *testing.T, newStore func(t *testing.T) taskstore.PushConfigStore) {
	t.Run("SaveGet", func(t *testing.T) {
		store := newStore(t)
		config := &a2a.PushConfig{URL: "https://example.com/hook", Token: "secret"}

		saved, err := store.Save(t.Context(), "", "t1", config)
		if err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if saved.ID == "" {
			t.Fatal("Save() didn't assign an ID")
		}
		got, err := store.Get(t.Context(), "", "t1", saved.ID)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if diff := cmp.Diff(saved, got); diff != "" {
			t.Fatalf("Get() wrong config (-want +got) diff = %s", diff)
		}

		saved.Token = "rotated"
		if _, err := store.Save(t.Context(), "", "t1", saved); err != nil {
			t.Fatalf("Save() overwrite error = %v", err)
		}
		got, err = store.Get(t.Context(), "", "t1", saved.ID)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.Token != "rotated" {
			t.Fatalf("Get() token = %q, want the overwritten value", got.Token)
		}
	})

	t.Run("SaveInvalid", func(t *testing.T) {
		store := newStore(t)
		if _, err := store.Save(t.Context(), "", "t1", &a2a.PushConfig{URL: "not a url"}); err == nil {
			t.Fatal("Save() succeeded for an invalid URL")
		}
	})

	t.Run("ListDelete", func(t *testing.T) {
		store := newStore(t)
		for _, id := range []string{"b", "a", "c"} {
			if _, err := store.Save(t.Context(), "", "t1", &a2a.PushConfig{ID: id, URL: "https://example.com/" + id}); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
		}
		if _, err := store.Save(t.Context(), "other", "t1", &a2a.PushConfig{ID: "d", URL: "https://example.com/d"}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		if err := store.Delete(t.Context(), "", "t1", "b"); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if err := store.Delete(t.Context(), "", "t1", "b"); !errors.Is(err, taskstore.ErrPushConfigNotFound) {
			t.Fatalf("second Delete() error = %v, want %v", err, taskstore.ErrPushConfigNotFound)
		}

		configs, err := store.List(t.Context(), "", "t1")
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		var ids []string
		for _, c := range configs {
			ids = append(ids, c.ID)
		}
		if diff := cmp.Diff([]string{"a", "c"}, ids); diff != "" {
			t.Fatalf("List() wrong IDs (-want +got) diff = %s", diff)
		}

		empty, err := store.List(t.Context(), "", "t2")
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(empty) != 0 {
			t.Fatalf("List() = %v, want no configs", empty)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		store := newStore(t)
		if _, err := store.Get(t.Context(), "", "t1", "missing"); !errors.Is(err, taskstore.ErrPushConfigNotFound) {
			t.Fatalf("Get() error = %v, want %v", err, taskstore.ErrPushConfigNotFound)
		}
	})
}

func fixtureTask(id a2a.TaskID, contextID string, state a2a.TaskState) *a2a.Task {
	return &a2a.Task{
		ID:        id,
		ContextID: contextID,
		Status:    a2a.TaskStatus{State: state},
		History: []*a2a.Message{
			{ID: "m1", Role: a2a.MessageRoleUser, Parts: a2a.ContentParts{a2a.TextPart{Text: "question"}}},
			{ID: "m2", Role: a2a.MessageRoleAgent, Parts: a2a.ContentParts{a2a.TextPart{Text: "answer"}}},
		},
		Artifacts: []*a2a.Artifact{{ID: "a1", Parts: a2a.ContentParts{a2a.TextPart{Text: "result"}}}},
		Metadata:  map[string]any{"source": "test"},
	}
}

func mustCreate(t *testing.T, store taskstore.Store, tenant string, task *a2a.Task) taskstore.TaskVersion {
	t.Helper()
	version, err := store.Create(t.Context(), tenant, task)
	if err != nil {
		t.Fatalf("Create(%s) error = %v", task.ID, err)
	}
	return version
}

func taskIDs(tasks []*a2a.Task) []a2a.TaskID {
	var ids []a2a.TaskID
	for _, task := range tasks {
		ids = append(ids, task.ID)
	}
	return ids
}
