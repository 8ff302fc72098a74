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
	"fmt"
	"io"
	"iter"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/a2aproject/a2a-taskserver/a2a"
	"github.com/a2aproject/a2a-taskserver/a2agrpc"
)

// WithGRPCTransport enables the gRPC binding in a [Factory]. A connection is opened for
// every created client and closed by [Client.Destroy].
func WithGRPCTransport(opts ...grpc.DialOption) FactoryOption {
	return WithTransport(a2a.TransportProtocolGRPC, TransportFactoryFn(func(ctx context.Context, url string, card *a2a.AgentCard) (Transport, error) {
		conn, err := grpc.NewClient(url, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create grpc client: %w", err)
		}
		return &grpcTransport{conn: conn, closer: conn}, nil
	}))
}

// NewGRPCTransport creates a transport using a connection owned by the caller.
func NewGRPCTransport(conn grpc.ClientConnInterface) Transport {
	return &grpcTransport{conn: conn}
}

type grpcTransport struct {
	conn   grpc.ClientConnInterface
	closer io.Closer
}

func withOutgoingMeta(ctx context.Context) context.Context {
	meta, ok := CallMetaFrom(ctx)
	if !ok || len(meta) == 0 {
		return ctx
	}
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	for key, values := range meta {
		md.Append(key, values...)
	}
	return metadata.NewOutgoingContext(ctx, md)
}

func (t *grpcTransport) invoke(ctx context.Context, method string, params any) (*structpb.Struct, error) {
	in, err := a2agrpc.ToStruct(params)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := t.conn.Invoke(withOutgoingMeta(ctx), a2agrpc.FullMethod(method), in, out); err != nil {
		return nil, a2agrpc.FromGRPCError(err)
	}
	return out, nil
}

func grpcUnary[R any](ctx context.Context, t *grpcTransport, method string, params any) (*R, error) {
	out, err := t.invoke(ctx, method, params)
	if err != nil {
		return nil, err
	}
	return a2agrpc.FromStruct[R](out)
}

func (t *grpcTransport) stream(ctx context.Context, desc *grpc.StreamDesc, params any) iter.Seq2[a2a.Event, error] {
	return func(yield func(a2a.Event, error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		in, err := a2agrpc.ToStruct(params)
		if err != nil {
			yield(nil, err)
			return
		}
		stream, err := t.conn.NewStream(withOutgoingMeta(ctx), desc, a2agrpc.FullMethod(desc.StreamName))
		if err != nil {
			yield(nil, a2agrpc.FromGRPCError(err))
			return
		}
		if err := stream.SendMsg(in); err != nil {
			yield(nil, a2agrpc.FromGRPCError(err))
			return
		}
		if err := stream.CloseSend(); err != nil {
			yield(nil, a2agrpc.FromGRPCError(err))
			return
		}

		for {
			out := new(structpb.Struct)
			if err := stream.RecvMsg(out); err != nil {
				if !errors.Is(err, io.EOF) {
					yield(nil, a2agrpc.FromGRPCError(err))
				}
				return
			}
			event, err := a2agrpc.FromStructEvent(out)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(event, nil) {
				return
			}
		}
	}
}

func (t *grpcTransport) SendMessage(ctx context.Context, params *a2a.MessageSendParams) (a2a.SendMessageResult, error) {
	out, err := t.invoke(ctx, a2agrpc.MethodSendMessage, params)
	if err != nil {
		return nil, err
	}
	return a2agrpc.FromStructResult(out)
}

func (t *grpcTransport) SendStreamingMessage(ctx context.Context, params *a2a.MessageSendParams) iter.Seq2[a2a.Event, error] {
	return t.stream(ctx, &a2agrpc.ServiceDesc.Streams[0], params)
}

func (t *grpcTransport) GetTask(ctx context.Context, query *a2a.TaskQueryParams) (*a2a.Task, error) {
	return grpcUnary[a2a.Task](ctx, t, a2agrpc.MethodGetTask, query)
}

func (t *grpcTransport) ListTasks(ctx context.Context, req *a2a.ListTasksRequest) (*a2a.ListTasksResponse, error) {
	return grpcUnary[a2a.ListTasksResponse](ctx, t, a2agrpc.MethodListTasks, req)
}

func (t *grpcTransport) CancelTask(ctx context.Context, params *a2a.TaskIDParams) (*a2a.Task, error) {
	return grpcUnary[a2a.Task](ctx, t, a2agrpc.MethodCancelTask, params)
}

func (t *grpcTransport) SubscribeToTask(ctx context.Context, params *a2a.TaskIDParams) iter.Seq2[a2a.Event, error] {
	return t.stream(ctx, &a2agrpc.ServiceDesc.Streams[1], params)
}

func (t *grpcTransport) GetTaskPushConfig(ctx context.Context, params *a2a.GetTaskPushConfigParams) (*a2a.TaskPushConfig, error) {
	return grpcUnary[a2a.TaskPushConfig](ctx, t, a2agrpc.MethodGetPushConfig, params)
}

func (t *grpcTransport) ListTaskPushConfig(ctx context.Context, params *a2a.ListTaskPushConfigParams) ([]*a2a.TaskPushConfig, error) {
	resp, err := grpcUnary[a2agrpc.ListPushConfigsResponse](ctx, t, a2agrpc.MethodListPushConfigs, params)
	if err != nil {
		return nil, err
	}
	return resp.Configs, nil
}

func (t *grpcTransport) SetTaskPushConfig(ctx context.Context, params *a2a.TaskPushConfig) (*a2a.TaskPushConfig, error) {
	return grpcUnary[a2a.TaskPushConfig](ctx, t, a2agrpc.MethodCreatePushConfig, params)
}

func (t *grpcTransport) DeleteTaskPushConfig(ctx context.Context, params *a2a.DeleteTaskPushConfigParams) error {
	_, err := t.invoke(ctx, a2agrpc.MethodDeletePushConfig, params)
	return err
}

func (t *grpcTransport) GetExtendedAgentCard(ctx context.Context) (*a2a.AgentCard, error) {
	return grpcUnary[a2a.AgentCard](ctx, t, a2agrpc.MethodGetExtendedAgentCard, struct{}{})
}

func (t *grpcTransport) Destroy() error {
	if t.closer == nil {
		return nil
	}
	return t.closer.Close()
}
