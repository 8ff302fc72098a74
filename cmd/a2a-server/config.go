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

package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/a2aproject/a2a-taskserver/a2a"
	"github.com/a2aproject/a2a-taskserver/a2asrv"
)

// Config is the YAML configuration of the server.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	GRPC      GRPCConfig      `yaml:"grpc"`
	Log       LogConfig       `yaml:"log"`
	Store     StoreConfig     `yaml:"store"`
	Events    EventsConfig    `yaml:"events"`
	Queue     QueueConfig     `yaml:"queue"`
	Push      PushConfig      `yaml:"push"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Agent     AgentConfig     `yaml:"agent"`

	// ShutdownTimeout bounds the wait for in-flight requests and executions on shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// GRPCConfig configures the gRPC listener. An empty address disables it.
type GRPCConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	// Level is one of debug, info, warn or error.
	Level string `yaml:"level"`
	// Format is json or text.
	Format string `yaml:"format"`
}

type StoreConfig struct {
	// Backend is memory, redis or mongo.
	Backend string      `yaml:"backend"`
	Redis   RedisConfig `yaml:"redis"`
	Mongo   MongoConfig `yaml:"mongo"`
}

// RedisConfig is the connection shared by every Redis-backed component.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

type EventsConfig struct {
	// Backend is memory or pulse.
	Backend string      `yaml:"backend"`
	Pulse   PulseConfig `yaml:"pulse"`
}

type PulseConfig struct {
	// Stream prefixes the names of the per-task streams.
	Stream string `yaml:"stream"`
	// MaxLen bounds the entries kept in the stream of a task.
	MaxLen int `yaml:"maxLen"`
	// TTL is how long the stream of a task outlives its last event.
	TTL time.Duration `yaml:"ttl"`
}

type QueueConfig struct {
	// Backend is memory or redis.
	Backend string `yaml:"backend"`
	// Concurrency caps the number of executions running on this instance. Zero means no limit.
	Concurrency int `yaml:"concurrency"`
	// Name prefixes the Redis keys of the queue.
	Name string `yaml:"name"`
}

type PushConfig struct {
	Timeout       time.Duration `yaml:"timeout"`
	RatePerSecond float64       `yaml:"ratePerSecond"`
	Burst         int           `yaml:"burst"`
}

type TelemetryConfig struct {
	// OTLPEndpoint is the host:port of an OTLP gRPC trace collector. Tracing is disabled when empty.
	OTLPEndpoint string `yaml:"otlpEndpoint"`
	ServiceName  string `yaml:"serviceName"`
}

type AgentConfig struct {
	Card         *a2a.AgentCard `yaml:"card"`
	ExtendedCard *a2a.AgentCard `yaml:"extendedCard"`
	// ChunkDelay is the pause between the artifact chunks of the echo agent.
	ChunkDelay time.Duration `yaml:"chunkDelay"`
}

// loadConfig reads the configuration file. An empty path yields the defaults.
func loadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open config: %w", err)
		}
		defer func() { _ = f.Close() }()

		decoder := yaml.NewDecoder(f)
		decoder.KnownFields(true)
		if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	setDefault(&c.HTTP.Addr, ":8080")
	setDefault(&c.Log.Level, "info")
	setDefault(&c.Log.Format, "json")
	setDefault(&c.Store.Backend, "memory")
	setDefault(&c.Events.Backend, "memory")
	setDefault(&c.Events.Pulse.Stream, "a2a-events")
	setDefault(&c.Queue.Backend, "memory")
	setDefault(&c.Queue.Name, "a2a-queue")
	setDefault(&c.Telemetry.ServiceName, "a2a-server")
	setDefault(&c.Push.Timeout, 10*time.Second)
	setDefault(&c.Push.RatePerSecond, 10)
	setDefault(&c.Push.Burst, 20)
	setDefault(&c.Events.Pulse.MaxLen, 1_000)
	setDefault(&c.Events.Pulse.TTL, 24*time.Hour)
	setDefault(&c.ShutdownTimeout, 30*time.Second)
	setDefault(&c.Agent.ChunkDelay, 50*time.Millisecond)
	if c.Agent.Card == nil {
		c.Agent.Card = defaultAgentCard(c.HTTP.Addr, c.GRPC.Addr)
	}
	setDefault(&c.Agent.Card.ProtocolVersion, a2asrv.LatestProtocolVersion)
}

func setDefault[T comparable](field *T, value T) {
	var zero T
	if *field == zero {
		*field = value
	}
}

func (c *Config) validate() error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("log.format must be json or text, got %q", c.Log.Format)
	}

	usesRedis := false
	switch c.Store.Backend {
	case "memory":
	case "redis":
		usesRedis = true
	case "mongo":
		if c.Store.Mongo.URI == "" || c.Store.Mongo.Database == "" {
			return fmt.Errorf("store.mongo.uri and store.mongo.database are required by the mongo backend")
		}
	default:
		return fmt.Errorf("store.backend must be memory, redis or mongo, got %q", c.Store.Backend)
	}
	switch c.Events.Backend {
	case "memory":
	case "pulse":
		usesRedis = true
	default:
		return fmt.Errorf("events.backend must be memory or pulse, got %q", c.Events.Backend)
	}
	switch c.Queue.Backend {
	case "memory":
	case "redis":
		usesRedis = true
	default:
		return fmt.Errorf("queue.backend must be memory or redis, got %q", c.Queue.Backend)
	}
	if usesRedis && c.Store.Redis.Addr == "" {
		return fmt.Errorf("store.redis.addr is required by the configured backends")
	}
	// Executions run on the instance which dequeues them, so their events must reach the others.
	if c.Queue.Backend == "redis" && c.Events.Backend != "pulse" {
		return fmt.Errorf("queue.backend redis requires events.backend pulse")
	}

	if c.Queue.Concurrency < 0 {
		return fmt.Errorf("queue.concurrency must not be negative")
	}
	if c.Push.RatePerSecond < 0 || c.Push.Burst < 0 {
		return fmt.Errorf("push.ratePerSecond and push.burst must not be negative")
	}
	if c.Events.Pulse.MaxLen < 0 || c.Events.Pulse.TTL < 0 {
		return fmt.Errorf("events.pulse.maxLen and events.pulse.ttl must not be negative")
	}
	if c.Agent.Card.Name == "" {
		return fmt.Errorf("agent.card.name is required")
	}
	return nil
}

// defaultAgentCard advertises JSON-RPC at the root of the HTTP listener, the HTTP+JSON binding
// next to it and gRPC when enabled.
func defaultAgentCard(httpAddr, grpcAddr string) *a2a.AgentCard {
	url := "http://localhost" + httpAddr
	interfaces := []a2a.AgentInterface{{Transport: a2a.TransportProtocolHTTPJSON, URL: url}}
	if grpcAddr != "" {
		interfaces = append(interfaces, a2a.AgentInterface{Transport: a2a.TransportProtocolGRPC, URL: "localhost" + grpcAddr})
	}
	return &a2a.AgentCard{
		Name:                 "Echo Agent",
		Description:          "Streams the text of every message back as an artifact",
		URL:                  url,
		PreferredTransport:   a2a.TransportProtocolJSONRPC,
		AdditionalInterfaces: interfaces,
		DefaultInputModes:    []string{"text/plain"},
		DefaultOutputModes:   []string{"text/plain"},
		Capabilities:         a2a.AgentCapabilities{Streaming: true, PushNotifications: true},
		Skills: []a2a.AgentSkill{
			{
				ID:          "echo",
				Name:        "Echo",
				Description: "Repeats the message text",
				Tags:        []string{"echo"},
				Examples:    []string{"hello"},
			},
		},
		Version: "1.0.0",
	}
}
