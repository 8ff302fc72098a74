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

package a2asrv

import (
	"context"
	"encoding/json"
	"iter"
	"net/http"

	"github.com/a2aproject/a2a-taskserver/a2a"
	"github.com/a2aproject/a2a-taskserver/log"
)

// WellKnownAgentCardPath is where clients discover the public agent card.
const WellKnownAgentCardPath = "/.well-known/agent-card.json"

// AgentRuntime produces the content of an agent. The server owns the task lifecycle around it.
type AgentRuntime interface {
	// Process handles a message which doesn't reference an existing task. It either answers
	// directly with an [a2a.Message] or returns a new [a2a.Task] which the server persists and
	// schedules for execution.
	Process(ctx context.Context, params *a2a.MessageSendParams) (a2a.SendMessageResult, error)

	// Execute produces lifecycle events of the task. The task is a snapshot taken when the
	// execution started and its latest history entry is the message which triggered the execution.
	// Execution ctx is canceled when the task gets canceled.
	Execute(ctx context.Context, task *a2a.Task) iter.Seq2[a2a.Event, error]
}

// AgentCardProducer creates AgentCard instances used for agent discovery and capability negotiation.
type AgentCardProducer interface {
	// Card returns the public manifest of the agent.
	Card(ctx context.Context) *a2a.AgentCard
}

// AgentCardProducerFn is a function type which implements AgentCardProducer.
type AgentCardProducerFn func(ctx context.Context) *a2a.AgentCard

func (fn AgentCardProducerFn) Card(ctx context.Context) *a2a.AgentCard {
	return fn(ctx)
}

// ExtendedAgentCardProducer can create both public agent cards and cards available to authenticated users only.
type ExtendedAgentCardProducer interface {
	AgentCardProducer

	// ExtendedCard returns a manifest available to authenticated users only or nil if not configured.
	ExtendedCard(ctx context.Context) *a2a.AgentCard
}

// StaticAgentCard is the input of [NewStaticAgentCardProducer].
type StaticAgentCard struct {
	// Public is an agent card available to unauthenticated clients.
	Public *a2a.AgentCard
	// Extended is an agent card available to authenticated clients.
	Extended *a2a.AgentCard
}

type staticAgentCardProducer struct {
	public   *a2a.AgentCard
	extended *a2a.AgentCard
}

// NewStaticAgentCardProducer creates an [ExtendedAgentCardProducer] serving cards configured once at startup.
// SupportsAuthenticatedExtendedCard is set on the public card when an extended card is provided.
func NewStaticAgentCardProducer(card StaticAgentCard) ExtendedAgentCardProducer {
	public := &a2a.AgentCard{}
	if card.Public != nil {
		copied := *card.Public
		public = &copied
	}
	public.SupportsAuthenticatedExtendedCard = card.Extended != nil
	return &staticAgentCardProducer{public: public, extended: card.Extended}
}

func (p *staticAgentCardProducer) Card(ctx context.Context) *a2a.AgentCard {
	return p.public
}

func (p *staticAgentCardProducer) ExtendedCard(ctx context.Context) *a2a.AgentCard {
	return p.extended
}

// NewAgentCardHandler creates an [http.Handler] serving the public card of the producer.
func NewAgentCardHandler(producer AgentCardProducer) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			rw.Header().Set("Allow", http.MethodGet)
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		card := producer.Card(req.Context())
		if card == nil {
			rw.WriteHeader(http.StatusNotFound)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		rw.Header().Set("Cache-Control", "public, max-age=3600")
		if err := json.NewEncoder(rw).Encode(card); err != nil {
			log.Error(req.Context(), "failed to encode agent card", err)
		}
	})
}

// NewStaticAgentCardHandler creates an [http.Handler] serving the provided card.
func NewStaticAgentCardHandler(card *a2a.AgentCard) http.Handler {
	return NewAgentCardHandler(AgentCardProducerFn(func(context.Context) *a2a.AgentCard { return card }))
}
