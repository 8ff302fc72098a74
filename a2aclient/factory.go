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
	"fmt"
	"maps"
	"strings"

	"github.com/a2aproject/a2a-taskserver/a2a"
)

// Factory creates Clients for agents based on the interfaces they advertise.
// Factory is immutable, use [WithAdditionalOptions] to derive a differently configured one.
type Factory struct {
	config       Config
	interceptors []CallInterceptor
	transports   map[a2a.TransportProtocol]TransportFactory
}

// FactoryOption configures a [Factory].
type FactoryOption func(f *Factory)

// WithConfig sets the Config of the created clients.
func WithConfig(c Config) FactoryOption {
	return func(f *Factory) {
		f.config = c
	}
}

// WithTransport enables the factory to create clients for the protocol.
func WithTransport(protocol a2a.TransportProtocol, factory TransportFactory) FactoryOption {
	return func(f *Factory) {
		f.transports[protocol] = factory
	}
}

// WithInterceptors attaches call interceptors to the created clients.
func WithInterceptors(interceptors ...CallInterceptor) FactoryOption {
	return func(f *Factory) {
		f.interceptors = append(f.interceptors, interceptors...)
	}
}

// NewFactory creates a factory. The JSON-RPC and HTTP+JSON bindings are enabled with
// [http.DefaultClient] unless overridden by the options.
func NewFactory(opts ...FactoryOption) *Factory {
	f := &Factory{transports: make(map[a2a.TransportProtocol]TransportFactory)}
	WithJSONRPCTransport(nil)(f)
	WithRESTTransport(nil)(f)
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// WithAdditionalOptions creates a copy of the factory with the options applied.
func WithAdditionalOptions(f *Factory, opts ...FactoryOption) *Factory {
	derived := &Factory{
		config:       f.config,
		interceptors: append([]CallInterceptor(nil), f.interceptors...),
		transports:   maps.Clone(f.transports),
	}
	for _, opt := range opts {
		opt(derived)
	}
	return derived
}

// CreateFromCard creates a client for the agent described by the card. Interfaces are tried in
// the order of Config.PreferredTransports, or starting from the preferred transport of the card
// followed by its additional interfaces.
func (f *Factory) CreateFromCard(ctx context.Context, card *a2a.AgentCard) (*Client, error) {
	preferred := card.PreferredTransport
	if preferred == "" {
		preferred = a2a.TransportProtocolJSONRPC
	}
	endpoints := append([]a2a.AgentInterface{{Transport: preferred, URL: card.URL}}, card.AdditionalInterfaces...)
	return f.create(ctx, endpoints, card)
}

// CreateFromEndpoints creates a client for one of the endpoints when no agent card is available.
func (f *Factory) CreateFromEndpoints(ctx context.Context, endpoints []a2a.AgentInterface) (*Client, error) {
	return f.create(ctx, endpoints, nil)
}

func (f *Factory) create(ctx context.Context, endpoints []a2a.AgentInterface, card *a2a.AgentCard) (*Client, error) {
	factory, endpoint, err := f.selectTransport(endpoints)
	if err != nil {
		return nil, err
	}
	transport, err := factory.Create(ctx, endpoint.URL, card)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s transport: %w", endpoint.Transport, err)
	}
	return NewClient(transport, card, f.config, f.interceptors...), nil
}

func (f *Factory) selectTransport(endpoints []a2a.AgentInterface) (TransportFactory, a2a.AgentInterface, error) {
	if len(f.config.PreferredTransports) == 0 {
		for _, endpoint := range endpoints {
			if factory, ok := f.transports[endpoint.Transport]; ok {
				return factory, endpoint, nil
			}
		}
	}
	for _, protocol := range f.config.PreferredTransports {
		factory, ok := f.transports[protocol]
		if !ok {
			continue
		}
		for _, endpoint := range endpoints {
			if endpoint.Transport == protocol {
				return factory, endpoint, nil
			}
		}
	}

	protocols := make([]string, len(endpoints))
	for i, endpoint := range endpoints {
		protocols[i] = string(endpoint.Transport)
	}
	return nil, a2a.AgentInterface{}, fmt.Errorf("%w among [%s]", ErrNoCompatibleTransport, strings.Join(protocols, ","))
}
