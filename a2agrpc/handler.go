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

// Package a2agrpc serves a [a2asrv.RequestHandler] over gRPC. Requests and responses are
// [structpb.Struct] messages holding the JSON representation of the a2a data model.
package a2agrpc

import (
	"context"
	"iter"

	"github.com/a2aproject/a2a-taskserver/a2a"
	"github.com/a2aproject/a2a-taskserver/a2asrv"
	"github.com/a2aproject/a2a-taskserver/a2asrv/eventbus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified name of the gRPC service.
const ServiceName = "a2a.v1.A2AService"

const (
	MethodSendMessage          = "SendMessage"
	MethodSendStreamingMessage = "SendStreamingMessage"
	MethodGetTask              = "GetTask"
	MethodListTasks            = "ListTasks"
	MethodCancelTask           = "CancelTask"
	MethodTaskSubscription     = "TaskSubscription"
	MethodCreatePushConfig     = "CreateTaskPushNotificationConfig"
	MethodGetPushConfig        = "GetTaskPushNotificationConfig"
	MethodListPushConfigs      = "ListTaskPushNotificationConfig"
	MethodDeletePushConfig     = "DeleteTaskPushNotificationConfig"
	MethodGetExtendedAgentCard = "GetExtendedAgentCard"
)

// FullMethod returns the path used to invoke a method of the service.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// ListPushConfigsResponse wraps the configs returned by ListTaskPushNotificationConfig
// because a Struct can't hold a top-level list.
type ListPushConfigsResponse struct {
	Configs []*a2a.TaskPushConfig `json:"configs"`
}

type serviceServer interface {
	requestHandler() a2asrv.RequestHandler
}

// Handler implements the gRPC service on top of a [a2asrv.RequestHandler].
type Handler struct {
	handler a2asrv.RequestHandler
}

// NewHandler creates a gRPC adapter for the request handler.
func NewHandler(handler a2asrv.RequestHandler) *Handler {
	return &Handler{handler: handler}
}

// RegisterWith registers the service with a gRPC server.
func (h *Handler) RegisterWith(s grpc.ServiceRegistrar) {
	s.RegisterService(&ServiceDesc, h)
}

func (h *Handler) requestHandler() a2asrv.RequestHandler {
	return h.handler
}

// ServiceDesc describes the service for registration and for clients opening streams.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*serviceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod(MethodSendMessage, a2asrv.RequestHandler.OnSendMessage),
		unaryMethod(MethodGetTask, a2asrv.RequestHandler.OnGetTask),
		unaryMethod(MethodListTasks, a2asrv.RequestHandler.OnListTasks),
		unaryMethod(MethodCancelTask, a2asrv.RequestHandler.OnCancelTask),
		unaryMethod(MethodCreatePushConfig, a2asrv.RequestHandler.OnSetTaskPushConfig),
		unaryMethod(MethodGetPushConfig, a2asrv.RequestHandler.OnGetTaskPushConfig),
		unaryMethod(MethodListPushConfigs, func(h a2asrv.RequestHandler, ctx context.Context, params *a2a.ListTaskPushConfigParams) (*ListPushConfigsResponse, error) {
			configs, err := h.OnListTaskPushConfig(ctx, params)
			if err != nil {
				return nil, err
			}
			return &ListPushConfigsResponse{Configs: configs}, nil
		}),
		unaryMethod(MethodDeletePushConfig, func(h a2asrv.RequestHandler, ctx context.Context, params *a2a.DeleteTaskPushConfigParams) (struct{}, error) {
			return struct{}{}, h.OnDeleteTaskPushConfig(ctx, params)
		}),
		unaryMethod(MethodGetExtendedAgentCard, func(h a2asrv.RequestHandler, ctx context.Context, _ *struct{}) (*a2a.AgentCard, error) {
			return h.OnGetExtendedAgentCard(ctx)
		}),
	},
	Streams: []grpc.StreamDesc{
		streamMethod(MethodSendStreamingMessage, a2asrv.RequestHandler.OnSendMessageStream),
		streamMethod(MethodTaskSubscription, a2asrv.RequestHandler.OnSubscribeToTask),
	},
}

// withCallContext exposes the request metadata to the handler as service parameters.
func withCallContext(ctx context.Context) context.Context {
	md, _ := metadata.FromIncomingContext(ctx)
	ctx, _ = a2asrv.WithCallContext(ctx, a2asrv.NewServiceParams(md))
	return ctx
}

func unaryMethod[P, R any](name string, call func(a2asrv.RequestHandler, context.Context, *P) (R, error)) grpc.MethodDesc {
	invoke := func(ctx context.Context, srv any, in *structpb.Struct) (*structpb.Struct, error) {
		ctx = withCallContext(ctx)
		params, err := fromStruct[P](in)
		if err != nil {
			return nil, toGRPCError(ctx, err)
		}
		result, err := call(srv.(serviceServer).requestHandler(), ctx, params)
		if err != nil {
			return nil, toGRPCError(ctx, err)
		}
		out, err := toStruct(result)
		if err != nil {
			return nil, toGRPCError(ctx, err)
		}
		return out, nil
	}

	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return invoke(ctx, srv, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return invoke(ctx, srv, req.(*structpb.Struct))
			})
		},
	}
}

// streamMethod sends every event as a separate message and ends the stream after a final event.
func streamMethod[P any](name string, call func(a2asrv.RequestHandler, context.Context, *P) iter.Seq2[a2a.Event, error]) grpc.StreamDesc {
	return grpc.StreamDesc{
		StreamName:    name,
		ServerStreams: true,
		Handler: func(srv any, stream grpc.ServerStream) error {
			ctx := withCallContext(stream.Context())
			in := new(structpb.Struct)
			if err := stream.RecvMsg(in); err != nil {
				return err
			}
			params, err := fromStruct[P](in)
			if err != nil {
				return toGRPCError(ctx, err)
			}

			for event, err := range call(srv.(serviceServer).requestHandler(), ctx, params) {
				if err != nil {
					return toGRPCError(ctx, err)
				}
				out, err := toStruct(event)
				if err != nil {
					return toGRPCError(ctx, err)
				}
				if err := stream.SendMsg(out); err != nil {
					return err
				}
				if eventbus.IsFinal(event) {
					return nil
				}
			}
			return nil
		},
	}
}
