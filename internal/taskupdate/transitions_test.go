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

package taskupdate

import (
	"context"
	"errors"
	"testing"

	"github.com/a2aproject/a2a-taskserver/a2a"
	"github.com/a2aproject/a2a-taskserver/a2asrv/taskstore"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var allStates = []a2a.TaskState{
	a2a.TaskStateUnspecified,
	a2a.TaskStateSubmitted,
	a2a.TaskStateWorking,
	a2a.TaskStateInputRequired,
	a2a.TaskStateAuthRequired,
	a2a.TaskStateCompleted,
	a2a.TaskStateCanceled,
	a2a.TaskStateFailed,
	a2a.TaskStateRejected,
}

func TestCanTransition(t *testing.T) {
	testCases := []struct {
		from, to a2a.TaskState
		want     bool
	}{
		{from: a2a.TaskStateUnspecified, to: a2a.TaskStateSubmitted, want: true},
		{from: a2a.TaskStateSubmitted, to: a2a.TaskStateWorking, want: true},
		{from: a2a.TaskStateSubmitted, to: a2a.TaskStateCanceled, want: true},
		{from: a2a.TaskStateSubmitted, to: a2a.TaskStateCompleted, want: false},
		{from: a2a.TaskStateWorking, to: a2a.TaskStateWorking, want: true},
		{from: a2a.TaskStateWorking, to: a2a.TaskStateCompleted, want: true},
		{from: a2a.TaskStateWorking, to: a2a.TaskStateAuthRequired, want: true},
		{from: a2a.TaskStateInputRequired, to: a2a.TaskStateSubmitted, want: true},
		{from: a2a.TaskStateAuthRequired, to: a2a.TaskStateWorking, want: true},
		{from: a2a.TaskStateInputRequired, to: a2a.TaskStateCompleted, want: false},
		{from: a2a.TaskStateCompleted, to: a2a.TaskStateWorking, want: false},
		{from: a2a.TaskStateCanceled, to: a2a.TaskStateCanceled, want: false},
	}
	for _, tc := range testCases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%q, %q) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestCancelableAndResumable(t *testing.T) {
	for _, state := range allStates {
		wantResumable := state == a2a.TaskStateUnspecified || state == a2a.TaskStateSubmitted || state.Interrupted()
		if got := Resumable(state); got != wantResumable {
			t.Errorf("Resumable(%q) = %v, want %v", state, got, wantResumable)
		}
		if got := Cancelable(state); got != !state.Terminal() {
			t.Errorf("Cancelable(%q) = %v, want %v", state, got, !state.Terminal())
		}
	}
}

type countingSaver struct{}

func (countingSaver) Save(ctx context.Context, task *a2a.Task, event a2a.Event, prev taskstore.TaskVersion) (taskstore.TaskVersion, error) {
	return prev + 1, nil
}

func TestManager_StateMachineProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("accepted status events only follow legal edges and stop at a terminal state", prop.ForAll(
		func(targets []int) bool {
			initial := newTestTask(a2a.TaskStateSubmitted)
			m := NewManager(countingSaver{}, initial)

			for _, idx := range targets {
				from := m.Task().Task.Status.State
				to := allStates[idx]
				_, err := m.Process(context.Background(), newStatusUpdate(initial.Task, to))

				switch {
				case from.Terminal():
					if !errors.Is(err, ErrTaskTerminal) {
						return false
					}
				case CanTransition(from, to):
					if err != nil || m.Task().Task.Status.State != to {
						return false
					}
				default:
					if !errors.Is(err, a2a.ErrInvalidAgentResponse) || m.Task().Task.Status.State != from {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, len(allStates)-1)),
	))

	properties.Property("at most one final status event is accepted per execution", prop.ForAll(
		func(targets []int) bool {
			initial := newTestTask(a2a.TaskStateWorking)
			m := NewManager(countingSaver{}, initial)

			finals := 0
			for _, idx := range targets {
				event := a2a.NewStatusUpdateEvent(initial.Task, allStates[idx], nil)
				if _, err := m.Process(context.Background(), event); err == nil && event.Final && event.Status.State.Terminal() {
					finals++
				}
			}
			return finals <= 1
		},
		gen.SliceOf(gen.IntRange(0, len(allStates)-1)),
	))

	properties.Property("versions grow with every accepted event", prop.ForAll(
		func(n int) bool {
			initial := newTestTask(a2a.TaskStateWorking)
			m := NewManager(countingSaver{}, initial)
			for range n {
				msg := a2a.NewMessageForTask(a2a.MessageRoleAgent, initial.Task, a2a.TextPart{Text: "tick"})
				if _, err := m.Process(context.Background(), msg); err != nil {
					return false
				}
			}
			got := m.Task()
			return got.Version == initial.Version+taskstore.TaskVersion(n) && len(got.Task.History) == n
		},
		gen.IntRange(0, 20),
	))

	properties.TestingRun(t)
}
