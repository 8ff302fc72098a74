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

package a2aclient

import (
	"context"
	"errors"
	"iter"

	"github.com/a2aproject/a2a-taskserver/a2a"
)

// Service parameter keys understood by A2A servers.
const (
	VersionMetaKey    = "A2A-Version"
	ExtensionsMetaKey = "A2A-Extensions"
	TenantMetaKey     = "X-A2A-Tenant"
)

// ErrNoCompatibleTransport is returned by a [Factory] when none of the agent interfaces
// uses a protocol the factory can create a transport for.
var ErrNoCompatibleTransport = errors.New("no compatible transport")

// Transport sends protocol calls over a specific binding. Implementations attach the
// [CallMeta] returned by [CallMetaFrom] to every call and return errors wrapping the a2a
// error kind reported by the server.
type Transport interface {
	SendMessage(ctx context.Context, params *a2a.MessageSendParams) (a2a.SendMessageResult, error)
	SendStreamingMessage(ctx context.Context, params *a2a.MessageSendParams) iter.Seq2[a2a.Event, error]
	GetTask(ctx context.Context, query *a2a.TaskQueryParams) (*a2a.Task, error)
	ListTasks(ctx context.Context, req *a2a.ListTasksRequest) (*a2a.ListTasksResponse, error)
	CancelTask(ctx context.Context, params *a2a.TaskIDParams) (*a2a.Task, error)
	SubscribeToTask(ctx context.Context, params *a2a.TaskIDParams) iter.Seq2[a2a.Event, error]
	GetTaskPushConfig(ctx context.Context, params *a2a.GetTaskPushConfigParams) (*a2a.TaskPushConfig, error)
	ListTaskPushConfig(ctx context.Context, params *a2a.ListTaskPushConfigParams) ([]*a2a.TaskPushConfig, error)
	SetTaskPushConfig(ctx context.Context, params *a2a.TaskPushConfig) (*a2a.TaskPushConfig, error)
	DeleteTaskPushConfig(ctx context.Context, params *a2a.DeleteTaskPushConfigParams) error
	GetExtendedAgentCard(ctx context.Context) (*a2a.AgentCard, error)

	// Destroy releases the resources owned by the transport.
	Destroy() error
}

// TransportFactory creates a [Transport] connected to the URL of an agent interface.
type TransportFactory interface {
	Create(ctx context.Context, url string, card *a2a.AgentCard) (Transport, error)
}

// TransportFactoryFn implements [TransportFactory] with a function.
type TransportFactoryFn func(ctx context.Context, url string, card *a2a.AgentCard) (Transport, error)

func (fn TransportFactoryFn) Create(ctx context.Context, url string, card *a2a.AgentCard) (Transport, error) {
	return fn(ctx, url, card)
}
