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

package a2a

// AgentCapabilities declares optional protocol features supported by an agent.
type AgentCapabilities struct {
	// Extensions lists the protocol extensions supported by the agent.
	Extensions []AgentExtension `json:"extensions,omitempty" yaml:"extensions,omitempty"`

	// PushNotifications is set if the agent can deliver task events to webhooks.
	PushNotifications bool `json:"pushNotifications,omitempty" yaml:"pushNotifications,omitempty"`

	// StateTransitionHistory is set if the agent keeps a history of status changes.
	StateTransitionHistory bool `json:"stateTransitionHistory,omitempty" yaml:"stateTransitionHistory,omitempty"`

	// Streaming is set if the agent supports streaming responses.
	Streaming bool `json:"streaming,omitempty" yaml:"streaming,omitempty"`
}

// AgentCard is a self-describing manifest of an agent: identity, capabilities, skills,
// endpoints and security requirements.
type AgentCard struct {
	// AdditionalInterfaces lists other transport and URL combinations the agent is reachable at.
	AdditionalInterfaces []AgentInterface `json:"additionalInterfaces,omitempty" yaml:"additionalInterfaces,omitempty"`

	Capabilities AgentCapabilities `json:"capabilities" yaml:"capabilities"`

	// DefaultInputModes are the input MIME types accepted by all skills unless overridden.
	DefaultInputModes []string `json:"defaultInputModes" yaml:"defaultInputModes"`

	// DefaultOutputModes are the output MIME types produced by all skills unless overridden.
	DefaultOutputModes []string `json:"defaultOutputModes" yaml:"defaultOutputModes"`

	Description string `json:"description" yaml:"description"`

	DocumentationURL string `json:"documentationUrl,omitempty" yaml:"documentationUrl,omitempty"`

	IconURL string `json:"iconUrl,omitempty" yaml:"iconUrl,omitempty"`

	Name string `json:"name" yaml:"name"`

	// PreferredTransport is the transport available at URL. Defaults to JSONRPC.
	PreferredTransport TransportProtocol `json:"preferredTransport,omitempty" yaml:"preferredTransport,omitempty"`

	// ProtocolVersion is the version of the A2A protocol the agent implements.
	ProtocolVersion string `json:"protocolVersion" yaml:"protocolVersion"`

	Provider *AgentProvider `json:"provider,omitempty" yaml:"provider,omitempty"`

	// Security is an OR of ANDs: every entry is a set of schemes that must be used together.
	Security []SecurityRequirements `json:"security,omitempty" yaml:"security,omitempty"`

	SecuritySchemes NamedSecuritySchemes `json:"securitySchemes,omitempty" yaml:"securitySchemes,omitempty"`

	// Signatures are JWS signatures computed for the card.
	Signatures []AgentCardSignature `json:"signatures,omitempty" yaml:"signatures,omitempty"`

	Skills []AgentSkill `json:"skills" yaml:"skills"`

	// SupportsAuthenticatedExtendedCard is set if an extended card is available to authenticated callers.
	SupportsAuthenticatedExtendedCard bool `json:"supportsAuthenticatedExtendedCard,omitempty" yaml:"supportsAuthenticatedExtendedCard,omitempty"`

	// URL is the preferred endpoint. It must support PreferredTransport.
	URL string `json:"url" yaml:"url"`

	Version string `json:"version" yaml:"version"`
}

// RequiredExtensions returns the extensions a client must declare support for.
func (c *AgentCard) RequiredExtensions() []AgentExtension {
	var required []AgentExtension
	for _, ext := range c.Capabilities.Extensions {
		if ext.Required {
			required = append(required, ext)
		}
	}
	return required
}

// AgentCardSignature is a JWS signature of an AgentCard in RFC 7515 JSON format.
type AgentCardSignature struct {
	Header map[string]any `json:"header,omitempty" yaml:"header,omitempty"`

	// Protected is the Base64url-encoded protected JWS header.
	Protected string `json:"protected" yaml:"protected"`

	// Signature is the Base64url-encoded signature.
	Signature string `json:"signature" yaml:"signature"`
}

// AgentExtension declares a protocol extension supported by an agent.
type AgentExtension struct {
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`

	// Required is set if clients must understand the extension to interact with the agent.
	Required bool `json:"required,omitempty" yaml:"required,omitempty"`

	URI string `json:"uri" yaml:"uri"`
}

// AgentInterface binds a URL to a transport protocol.
type AgentInterface struct {
	Transport TransportProtocol `json:"transport" yaml:"transport"`

	URL string `json:"url" yaml:"url"`
}

// AgentProvider describes the organization operating an agent.
type AgentProvider struct {
	Org string `json:"organization" yaml:"organization"`

	URL string `json:"url" yaml:"url"`
}

// AgentSkill is a distinct capability of an agent.
type AgentSkill struct {
	Description string `json:"description" yaml:"description"`

	// Examples are prompts or scenarios the skill can handle.
	Examples []string `json:"examples,omitempty" yaml:"examples,omitempty"`

	ID string `json:"id" yaml:"id"`

	// InputModes override the card DefaultInputModes.
	InputModes []string `json:"inputModes,omitempty" yaml:"inputModes,omitempty"`

	Name string `json:"name" yaml:"name"`

	// OutputModes override the card DefaultOutputModes.
	OutputModes []string `json:"outputModes,omitempty" yaml:"outputModes,omitempty"`

	Security []SecurityRequirements `json:"security,omitempty" yaml:"security,omitempty"`

	Tags []string `json:"tags" yaml:"tags"`
}

// TransportProtocol names a wire protocol an agent is reachable with.
type TransportProtocol string

const (
	TransportProtocolJSONRPC  TransportProtocol = "JSONRPC"
	TransportProtocolGRPC     TransportProtocol = "GRPC"
	TransportProtocolHTTPJSON TransportProtocol = "HTTP+JSON"
)
