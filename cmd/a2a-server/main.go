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

// Command a2a-server runs an A2A server for the echo agent with configurable
// storage, event distribution and execution queue backends.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/a2aproject/a2a-taskserver/a2agrpc"
	"github.com/a2aproject/a2a-taskserver/a2asrv"
	"github.com/a2aproject/a2a-taskserver/a2asrv/telemetry"
	"github.com/a2aproject/a2a-taskserver/log"
)

var configPath = flag.String("config", os.Getenv("A2A_SERVER_CONFIG"), "Path to the YAML configuration file.")

func main() {
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger := newLogger(os.Stderr, cfg.Log)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func newLogger(w io.Writer, cfg LogConfig) *slog.Logger {
	var level slog.Level
	_ = level.UnmarshalText([]byte(cfg.Level))
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(traceHandler{handler})
}

func run(ctx context.Context, cfg *Config, logger *slog.Logger) error {
	ctx = log.WithLogger(ctx, logger)

	shutdownTelemetry, err := setupTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			log.Warn(ctx, "failed to flush telemetry", "error", err)
		}
	}()

	b, err := newBackends(ctx, cfg)
	if err != nil {
		return err
	}

	interceptor, err := telemetry.New()
	if err != nil {
		return errors.Join(err, b.close(ctx))
	}
	cards := a2asrv.NewStaticAgentCardProducer(a2asrv.StaticAgentCard{
		Public:   cfg.Agent.Card,
		Extended: cfg.Agent.ExtendedCard,
	})
	options := append(b.handlerOptions(),
		a2asrv.WithAgentCardProducer(cards),
		a2asrv.WithLogger(logger),
	)
	handler := &a2asrv.InterceptedHandler{
		Handler:      a2asrv.NewHandler(&echoRuntime{chunkDelay: cfg.Agent.ChunkDelay}, options...),
		Interceptors: []a2asrv.CallInterceptor{interceptor},
	}

	mux := http.NewServeMux()
	mux.Handle("/", a2asrv.NewJSONRPCHandler(handler))
	mux.Handle(a2asrv.RESTPathPrefix+"/", a2asrv.NewRESTHandler(handler))
	mux.Handle(a2asrv.WellKnownAgentCardPath, a2asrv.NewAgentCardHandler(cards))
	mux.Handle("/metrics", promhttp.Handler())
	baseCtx := context.WithoutCancel(ctx)
	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}

	var grpcServer *grpc.Server
	var grpcListener net.Listener
	if cfg.GRPC.Addr != "" {
		grpcListener, err = net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			return errors.Join(fmt.Errorf("failed to bind grpc listener: %w", err), b.close(ctx))
		}
		grpcServer = grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
		a2agrpc.NewHandler(handler).RegisterWith(grpcServer)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info(ctx, "serving http", "addr", cfg.HTTP.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	if grpcServer != nil {
		group.Go(func() error {
			log.Info(ctx, "serving grpc", "addr", cfg.GRPC.Addr)
			if err := grpcServer.Serve(grpcListener); err != nil {
				return fmt.Errorf("grpc server failed: %w", err)
			}
			return nil
		})
	}
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info(ctx, "shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		if grpcServer != nil {
			stopGRPC(shutdownCtx, grpcServer)
		}
		if err := b.close(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("backends shutdown: %w", err))
		}
		return errors.Join(errs...)
	})
	return group.Wait()
}

// stopGRPC waits for in-flight calls until ctx expires and then closes the remaining ones.
func stopGRPC(ctx context.Context, server *grpc.Server) {
	stopped := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-ctx.Done():
		server.Stop()
		<-stopped
	}
}
