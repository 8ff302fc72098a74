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
	"fmt"
	"iter"
	"log/slog"

	"github.com/a2aproject/a2a-taskserver/a2a"
	"github.com/a2aproject/a2a-taskserver/a2asrv/eventbus"
	"github.com/a2aproject/a2a-taskserver/a2asrv/push"
	"github.com/a2aproject/a2a-taskserver/a2asrv/taskstore"
	"github.com/a2aproject/a2a-taskserver/a2asrv/workqueue"
	"github.com/a2aproject/a2a-taskserver/internal/pushconfig"
	internalstore "github.com/a2aproject/a2a-taskserver/internal/taskstore"
	"github.com/a2aproject/a2a-taskserver/log"
)

// RequestHandler defines a transport-agnostic interface for handling incoming A2A requests.
type RequestHandler interface {
	// OnGetTask handles the 'tasks/get' protocol method.
	OnGetTask(ctx context.Context, query *a2a.TaskQueryParams) (*a2a.Task, error)

	// OnListTasks handles the 'tasks/list' protocol method.
	OnListTasks(ctx context.Context, req *a2a.ListTasksRequest) (*a2a.ListTasksResponse, error)

	// OnCancelTask handles the 'tasks/cancel' protocol method.
	OnCancelTask(ctx context.Context, params *a2a.TaskIDParams) (*a2a.Task, error)

	// OnSendMessage handles the 'message/send' protocol method (non-streaming).
	OnSendMessage(ctx context.Context, params *a2a.MessageSendParams) (a2a.SendMessageResult, error)

	// OnSendMessageStream handles the 'message/stream' protocol method (streaming).
	OnSendMessageStream(ctx context.Context, params *a2a.MessageSendParams) iter.Seq2[a2a.Event, error]

	// OnSubscribeToTask handles the 'tasks/resubscribe' protocol method.
	OnSubscribeToTask(ctx context.Context, params *a2a.TaskIDParams) iter.Seq2[a2a.Event, error]

	// OnGetTaskPushConfig handles the 'tasks/pushNotificationConfig/get' protocol method.
	OnGetTaskPushConfig(ctx context.Context, params *a2a.GetTaskPushConfigParams) (*a2a.TaskPushConfig, error)

	// OnListTaskPushConfig handles the 'tasks/pushNotificationConfig/list' protocol method.
	OnListTaskPushConfig(ctx context.Context, params *a2a.ListTaskPushConfigParams) ([]*a2a.TaskPushConfig, error)

	// OnSetTaskPushConfig handles the 'tasks/pushNotificationConfig/set' protocol method.
	OnSetTaskPushConfig(ctx context.Context, params *a2a.TaskPushConfig) (*a2a.TaskPushConfig, error)

	// OnDeleteTaskPushConfig handles the 'tasks/pushNotificationConfig/delete' protocol method.
	OnDeleteTaskPushConfig(ctx context.Context, params *a2a.DeleteTaskPushConfigParams) error

	// OnGetExtendedAgentCard handles the 'agent/getAuthenticatedExtendedCard' protocol method.
	OnGetExtendedAgentCard(ctx context.Context) (*a2a.AgentCard, error)
}

// Implements a2asrv.RequestHandler
type defaultRequestHandler struct {
	runtime AgentRuntime
	cards   ExtendedAgentCardProducer

	taskStore       taskstore.Store
	pushConfigStore taskstore.PushConfigStore
	pushSender      push.Sender
	dispatcher      *push.Dispatcher
	broadcaster     eventbus.Broadcaster
	queue           workqueue.Queue

	logger *slog.Logger
}

// RequestHandlerOption configures the handler created by [NewHandler].
type RequestHandlerOption func(*defaultRequestHandler)

// WithTaskStore overrides the in-memory task store.
func WithTaskStore(store taskstore.Store) RequestHandlerOption {
	return func(h *defaultRequestHandler) {
		h.taskStore = store
	}
}

// WithPushConfigStore overrides the in-memory push config store.
func WithPushConfigStore(store taskstore.PushConfigStore) RequestHandlerOption {
	return func(h *defaultRequestHandler) {
		h.pushConfigStore = store
	}
}

// WithPushSender overrides the HTTP push notification sender.
func WithPushSender(sender push.Sender) RequestHandlerOption {
	return func(h *defaultRequestHandler) {
		h.pushSender = sender
	}
}

// WithBroadcaster overrides the in-memory event broadcaster. A distributed broadcaster is required
// when executions and streaming requests can be served by different processes.
func WithBroadcaster(broadcaster eventbus.Broadcaster) RequestHandlerOption {
	return func(h *defaultRequestHandler) {
		h.broadcaster = broadcaster
	}
}

// WithWorkQueue overrides the in-process work queue. The handler registers itself as the
// execution handler of the queue.
func WithWorkQueue(queue workqueue.Queue) RequestHandlerOption {
	return func(h *defaultRequestHandler) {
		h.queue = queue
	}
}

// WithLogger sets a custom [slog.Logger]. Request scoped attributes are attached to this logger
// on method invocations and collaborators can access it through the log package.
// If not provided, defaults to slog.Default().
func WithLogger(logger *slog.Logger) RequestHandlerOption {
	return func(h *defaultRequestHandler) {
		h.logger = logger
	}
}

// WithAgentCard sets the public agent card. Its capabilities decide whether streaming and
// push notifications are available.
func WithAgentCard(card *a2a.AgentCard) RequestHandlerOption {
	return func(h *defaultRequestHandler) {
		var extended *a2a.AgentCard
		if h.cards != nil {
			extended = h.cards.ExtendedCard(context.Background())
		}
		h.cards = NewStaticAgentCardProducer(StaticAgentCard{Public: card, Extended: extended})
	}
}

// WithExtendedAgentCard sets a static card available to authenticated clients.
func WithExtendedAgentCard(card *a2a.AgentCard) RequestHandlerOption {
	return func(h *defaultRequestHandler) {
		var public *a2a.AgentCard
		if h.cards != nil {
			public = h.cards.Card(context.Background())
		}
		h.cards = NewStaticAgentCardProducer(StaticAgentCard{Public: public, Extended: card})
	}
}

// WithAgentCardProducer sets a dynamic producer of the public and extended agent cards.
func WithAgentCardProducer(producer ExtendedAgentCardProducer) RequestHandlerOption {
	return func(h *defaultRequestHandler) {
		h.cards = producer
	}
}

// NewHandler creates a new request handler driving tasks of the provided runtime.
func NewHandler(runtime AgentRuntime, options ...RequestHandlerOption) RequestHandler {
	h := &defaultRequestHandler{
		runtime:         runtime,
		taskStore:       internalstore.NewMem(),
		pushConfigStore: pushconfig.NewInMemoryStore(),
		broadcaster:     eventbus.NewMem(),
		logger:          slog.Default(),
	}
	for _, option := range options {
		option(h)
	}
	if h.cards == nil {
		h.cards = NewStaticAgentCardProducer(StaticAgentCard{})
	}
	if h.queue == nil {
		h.queue = workqueue.NewLocal()
	}
	if h.pushSender == nil {
		h.pushSender = push.NewHTTPSender()
	}
	h.dispatcher = push.NewDispatcher(h.pushConfigStore, h.pushSender)
	h.queue.RegisterHandler(func(ctx context.Context, payload *workqueue.Payload) error {
		return h.executeTask(ctx, payload.Tenant, payload.TaskID)
	})
	return h
}

// begin attaches a request-scoped logger to ctx and runs the checks common to every method.
func (h *defaultRequestHandler) begin(ctx context.Context, method, tenant string, args ...any) (context.Context, error) {
	logger := h.logger.With(append([]any{"method", method, "tenant", tenant}, args...)...)
	ctx = log.WithLogger(ctx, logger)
	if err := checkProtocolVersion(ctx); err != nil {
		return ctx, err
	}
	if err := checkRequiredExtensions(ctx, h.cards.Card(ctx)); err != nil {
		return ctx, err
	}
	return ctx, nil
}

func (h *defaultRequestHandler) capabilities(ctx context.Context) a2a.AgentCapabilities {
	return h.cards.Card(ctx).Capabilities
}

func (h *defaultRequestHandler) OnGetExtendedAgentCard(ctx context.Context) (*a2a.AgentCard, error) {
	ctx, err := h.begin(ctx, "OnGetExtendedAgentCard", "")
	if err != nil {
		return nil, err
	}
	card := h.cards.ExtendedCard(ctx)
	if card == nil {
		return nil, a2a.ErrExtendedCardNotConfigured
	}
	return card, nil
}

// wrapError keeps known error kinds and turns everything else into an internal error which
// doesn't expose the type of the underlying failure.
func wrapError(msg string, err error) error {
	if a2a.ErrorKind(err) != a2a.ErrInternalError {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return fmt.Errorf("%s: %w: %v", msg, a2a.ErrInternalError, err)
}
