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

// Package telemetry provides an OpenTelemetry [a2asrv.CallInterceptor] which traces handler
// calls and records request metrics.
package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/a2aproject/a2a-taskserver/a2a"
	"github.com/a2aproject/a2a-taskserver/a2asrv"
	"github.com/a2aproject/a2a-taskserver/a2asrv/eventbus"
)

const instrumentationName = "github.com/a2aproject/a2a-taskserver/a2asrv/telemetry"

const (
	// MetricRequests counts handled calls.
	MetricRequests = "a2a.server.requests"
	// MetricRequestDuration records call latency in seconds.
	MetricRequestDuration = "a2a.server.request.duration"
	// MetricErrors counts failed calls.
	MetricErrors = "a2a.server.errors"

	// AttrMethod is the handler method of a call.
	AttrMethod = attribute.Key("method")
	// AttrErrorKind is the protocol error a failed call was classified as.
	AttrErrorKind = attribute.Key("error.kind")
)

// Option configures an [Interceptor].
type Option func(*config)

type config struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// WithTracerProvider sets the provider of the tracer. Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *config) {
		c.tracerProvider = tp
	}
}

// WithMeterProvider sets the provider of the meter. Defaults to the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *config) {
		c.meterProvider = mp
	}
}

// Interceptor starts a span for every handler call and records a request counter, a latency
// histogram and an error counter.
type Interceptor struct {
	tracer   trace.Tracer
	requests metric.Int64Counter
	duration metric.Float64Histogram
	errors   metric.Int64Counter
}

var _ a2asrv.CallInterceptor = (*Interceptor)(nil)

// New creates an Interceptor.
func New(opts ...Option) (*Interceptor, error) {
	cfg := &config{tracerProvider: otel.GetTracerProvider(), meterProvider: otel.GetMeterProvider()}
	for _, opt := range opts {
		opt(cfg)
	}

	meter := cfg.meterProvider.Meter(instrumentationName)
	i := &Interceptor{tracer: cfg.tracerProvider.Tracer(instrumentationName)}

	var err error
	i.requests, err = meter.Int64Counter(
		MetricRequests,
		metric.WithDescription("Total number of handled A2A calls"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	i.duration, err = meter.Float64Histogram(
		MetricRequestDuration,
		metric.WithDescription("A2A call duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	i.errors, err = meter.Int64Counter(
		MetricErrors,
		metric.WithDescription("Total number of failed A2A calls"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	return i, nil
}

type callStateKey struct{}

// callState tracks a call between Before and the After which completes it.
type callState struct {
	span    trace.Span
	method  string
	start   time.Time
	once    sync.Once
	stopCtx func() bool
}

func (i *Interceptor) Before(ctx context.Context, callCtx *a2asrv.CallContext, req *a2asrv.Request) (context.Context, error) {
	method := callCtx.Method()
	ctx, span := i.tracer.Start(ctx, "a2a."+method,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(AttrMethod.String(method)),
	)
	if taskID := taskIDOf(req.Payload); taskID != "" {
		span.SetAttributes(attribute.String("a2a.task.id", string(taskID)))
	}

	state := &callState{span: span, method: method, start: time.Now()}
	if isStream(method) {
		// A consumer can stop reading a stream before its last event.
		state.stopCtx = context.AfterFunc(ctx, func() {
			i.finish(context.WithoutCancel(ctx), state, nil)
		})
	}
	return context.WithValue(ctx, callStateKey{}, state), nil
}

func (i *Interceptor) After(ctx context.Context, callCtx *a2asrv.CallContext, resp *a2asrv.Response) error {
	state, ok := ctx.Value(callStateKey{}).(*callState)
	if !ok {
		return nil
	}
	if isStream(state.method) && resp.Err == nil && !endsStream(resp.Payload) {
		if event, ok := resp.Payload.(a2a.Event); ok {
			state.span.AddEvent("event", trace.WithAttributes(attribute.String("a2a.event.type", eventType(event))))
		}
		return nil
	}
	i.finish(ctx, state, resp.Err)
	return nil
}

func (i *Interceptor) finish(ctx context.Context, state *callState, err error) {
	state.once.Do(func() {
		if state.stopCtx != nil {
			state.stopCtx()
		}

		attrs := []attribute.KeyValue{AttrMethod.String(state.method)}
		if err != nil {
			kind := a2a.ErrorKind(err).Error()
			attrs = append(attrs, AttrErrorKind.String(kind))
			state.span.RecordError(err)
			state.span.SetStatus(codes.Error, kind)
			i.errors.Add(ctx, 1, metric.WithAttributes(attrs...))
		} else {
			state.span.SetStatus(codes.Ok, "")
		}
		i.requests.Add(ctx, 1, metric.WithAttributes(attrs...))
		i.duration.Record(ctx, time.Since(state.start).Seconds(), metric.WithAttributes(attrs...))
		state.span.End()
	})
}

func isStream(method string) bool {
	return method == "OnSendMessageStream" || method == "OnSubscribeToTask"
}

// endsStream reports whether a stream is complete after the event.
func endsStream(payload any) bool {
	switch v := payload.(type) {
	case *a2a.Message:
		return true
	case *a2a.Task:
		return v.Status.State.Terminal() || v.Status.State.Interrupted()
	case a2a.Event:
		return eventbus.IsFinal(v)
	}
	return true
}

func taskIDOf(payload any) a2a.TaskID {
	switch v := payload.(type) {
	case *a2a.TaskQueryParams:
		if v != nil {
			return v.ID
		}
	case *a2a.TaskIDParams:
		if v != nil {
			return v.ID
		}
	case *a2a.MessageSendParams:
		if v != nil && v.Message != nil {
			return v.Message.TaskID
		}
	case *a2a.TaskPushConfig:
		if v != nil {
			return v.TaskID
		}
	case *a2a.GetTaskPushConfigParams:
		if v != nil {
			return v.TaskID
		}
	case *a2a.ListTaskPushConfigParams:
		if v != nil {
			return v.TaskID
		}
	case *a2a.DeleteTaskPushConfigParams:
		if v != nil {
			return v.TaskID
		}
	}
	return ""
}

func eventType(event a2a.Event) string {
	switch event.(type) {
	case *a2a.Task:
		return "task"
	case *a2a.Message:
		return "message"
	case *a2a.TaskStatusUpdateEvent:
		return "status-update"
	case *a2a.TaskArtifactUpdateEvent:
		return "artifact-update"
	}
	return "unknown"
}
