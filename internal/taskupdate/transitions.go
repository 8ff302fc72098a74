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
	"fmt"
	"slices"

	"github.com/a2aproject/a2a-taskserver/a2a"
)

var terminalOrFailure = []a2a.TaskState{a2a.TaskStateCanceled, a2a.TaskStateFailed, a2a.TaskStateRejected}

// transitions lists the legal target states for every non-terminal state.
// Terminal states have no outgoing edges.
var transitions = map[a2a.TaskState][]a2a.TaskState{
	a2a.TaskStateUnspecified: append([]a2a.TaskState{a2a.TaskStateSubmitted, a2a.TaskStateWorking}, terminalOrFailure...),
	a2a.TaskStateSubmitted:   append([]a2a.TaskState{a2a.TaskStateWorking}, terminalOrFailure...),
	a2a.TaskStateWorking: append([]a2a.TaskState{
		a2a.TaskStateWorking,
		a2a.TaskStateInputRequired,
		a2a.TaskStateAuthRequired,
		a2a.TaskStateCompleted,
	}, terminalOrFailure...),
	a2a.TaskStateInputRequired: append([]a2a.TaskState{a2a.TaskStateSubmitted, a2a.TaskStateWorking}, terminalOrFailure...),
	a2a.TaskStateAuthRequired:  append([]a2a.TaskState{a2a.TaskStateSubmitted, a2a.TaskStateWorking}, terminalOrFailure...),
}

// CanTransition reports whether a task in state from can move to state to.
func CanTransition(from, to a2a.TaskState) bool {
	return slices.Contains(transitions[from], to)
}

// ValidateTransition returns an error wrapping [a2a.ErrInvalidAgentResponse] for illegal transitions.
func ValidateTransition(from, to a2a.TaskState) error {
	if from.Terminal() {
		return fmt.Errorf("%w: task is already %s", ErrTaskTerminal, from)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: illegal transition %q -> %q", a2a.ErrInvalidAgentResponse, from, to)
	}
	return nil
}

// Resumable reports whether a task in the state accepts a new inbound message.
func Resumable(state a2a.TaskState) bool {
	return state == a2a.TaskStateUnspecified ||
		state == a2a.TaskStateSubmitted ||
		state == a2a.TaskStateAuthRequired ||
		state == a2a.TaskStateInputRequired
}

// Cancelable reports whether a task in the state can be canceled.
func Cancelable(state a2a.TaskState) bool {
	return Resumable(state) || state == a2a.TaskStateWorking
}
