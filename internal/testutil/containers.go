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

package testutil

import (
	"context"
	"fmt"

	"github.com/docker/go-connections/nat"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Container is a started dependency of integration tests.
type Container struct {
	container testcontainers.Container
	// Addr is the host:port the container is reachable at.
	Addr string
}

// Terminate stops the container. It is safe to call on a nil Container.
func (c *Container) Terminate(ctx context.Context) {
	if c != nil && c.container != nil {
		_ = c.container.Terminate(ctx)
	}
}

func startContainer(ctx context.Context, req testcontainers.ContainerRequest, port nat.Port) (c *Container, err error) {
	// testcontainers panics when docker is not reachable.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("docker not available: %v", r)
		}
	}()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, err
	}
	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}
	mapped, err := container.MappedPort(ctx, port)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}
	return &Container{container: container, Addr: host + ":" + mapped.Port()}, nil
}

// StartRedis starts a Redis container and returns a connected client.
func StartRedis(ctx context.Context) (*Container, *redis.Client, error) {
	c, err := startContainer(ctx, testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}, "6379/tcp")
	if err != nil {
		return nil, nil, err
	}
	client := redis.NewClient(&redis.Options{Addr: c.Addr})
	if err := client.Ping(ctx).Err(); err != nil {
		c.Terminate(ctx)
		return nil, nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return c, client, nil
}

// StartMongo starts a MongoDB container and returns a connected client.
func StartMongo(ctx context.Context) (*Container, *mongo.Client, error) {
	c, err := startContainer(ctx, testcontainers.ContainerRequest{
		Image:        "mongo:7",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForLog("Waiting for connections"),
		Tmpfs:        map[string]string{"/data/db": "rw"},
	}, "27017/tcp")
	if err != nil {
		return nil, nil, err
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI("mongodb://"+c.Addr))
	if err != nil {
		c.Terminate(ctx)
		return nil, nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		c.Terminate(ctx)
		return nil, nil, fmt.Errorf("failed to ping mongo: %w", err)
	}
	return c, client, nil
}
