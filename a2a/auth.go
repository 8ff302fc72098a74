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

import (
	"encoding/gob"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// SecuritySchemeName references a scheme declared in AgentCard.SecuritySchemes.
type SecuritySchemeName string

// SecurityRequirements maps scheme names to the scopes a credential must cover.
type SecurityRequirements map[SecuritySchemeName][]string

// NamedSecuritySchemes declares the security schemes available to authorize requests.
// Follows the OpenAPI 3.0 Security Scheme Object and uses "type" as the discriminator.
type NamedSecuritySchemes map[SecuritySchemeName]SecurityScheme

// SecurityScheme is a sealed union of the supported security schemes.
type SecurityScheme interface {
	schemeType() string
}

func (APIKeySecurityScheme) schemeType() string        { return "apiKey" }
func (HTTPAuthSecurityScheme) schemeType() string      { return "http" }
func (OpenIDConnectSecurityScheme) schemeType() string { return "openIdConnect" }
func (MutualTLSSecurityScheme) schemeType() string     { return "mutualTLS" }
func (OAuth2SecurityScheme) schemeType() string        { return "oauth2" }

var schemeDecoders = map[string]func([]byte) (SecurityScheme, error){
	"apiKey":        decodeScheme[APIKeySecurityScheme],
	"http":          decodeScheme[HTTPAuthSecurityScheme],
	"openIdConnect": decodeScheme[OpenIDConnectSecurityScheme],
	"mutualTLS":     decodeScheme[MutualTLSSecurityScheme],
	"oauth2":        decodeScheme[OAuth2SecurityScheme],
}

func decodeScheme[T SecurityScheme](b []byte) (SecurityScheme, error) {
	var scheme T
	if err := json.Unmarshal(b, &scheme); err != nil {
		return nil, err
	}
	return scheme, nil
}

func (s NamedSecuritySchemes) MarshalJSON() ([]byte, error) {
	out := make(map[SecuritySchemeName]json.RawMessage, len(s))
	for name, scheme := range s {
		if scheme == nil {
			return nil, fmt.Errorf("security scheme %q is nil", name)
		}
		fields, err := json.Marshal(scheme)
		if err != nil {
			return nil, err
		}
		typeField := fmt.Sprintf(`{"type":%q`, scheme.schemeType())
		if string(fields) == "{}" {
			out[name] = json.RawMessage(typeField + "}")
		} else {
			out[name] = json.RawMessage(typeField + "," + string(fields[1:]))
		}
	}
	return json.Marshal(out)
}

func (s *NamedSecuritySchemes) UnmarshalJSON(b []byte) error {
	var raw map[SecuritySchemeName]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	result := make(NamedSecuritySchemes, len(raw))
	for name, rawScheme := range raw {
		var probe struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(rawScheme, &probe); err != nil {
			return err
		}
		decode, ok := schemeDecoders[probe.Type]
		if !ok {
			return fmt.Errorf("unknown security scheme type %q for %q", probe.Type, name)
		}
		scheme, err := decode(rawScheme)
		if err != nil {
			return fmt.Errorf("invalid security scheme %q: %w", name, err)
		}
		result[name] = scheme
	}

	*s = result
	return nil
}

// UnmarshalYAML decodes schemes from configuration files using the JSON representation.
func (s *NamedSecuritySchemes) UnmarshalYAML(node *yaml.Node) error {
	var generic map[string]any
	if err := node.Decode(&generic); err != nil {
		return err
	}
	b, err := json.Marshal(generic)
	if err != nil {
		return err
	}
	return s.UnmarshalJSON(b)
}

func init() {
	gob.Register(APIKeySecurityScheme{})
	gob.Register(HTTPAuthSecurityScheme{})
	gob.Register(OpenIDConnectSecurityScheme{})
	gob.Register(MutualTLSSecurityScheme{})
	gob.Register(OAuth2SecurityScheme{})
}

// APIKeySecurityScheme is a security scheme using an API key.
type APIKeySecurityScheme struct {
	Description string `json:"description,omitempty"`

	// In is the location of the key.
	In APIKeySecuritySchemeIn `json:"in"`

	// Name of the header, query or cookie parameter.
	Name string `json:"name"`
}

// APIKeySecuritySchemeIn is the location of an API key.
type APIKeySecuritySchemeIn string

const (
	APIKeySecuritySchemeInCookie APIKeySecuritySchemeIn = "cookie"
	APIKeySecuritySchemeInHeader APIKeySecuritySchemeIn = "header"
	APIKeySecuritySchemeInQuery  APIKeySecuritySchemeIn = "query"
)

// HTTPAuthSecurityScheme is a security scheme using HTTP authentication.
type HTTPAuthSecurityScheme struct {
	// BearerFormat is a documentation hint, e.g. "JWT".
	BearerFormat string `json:"bearerFormat,omitempty"`

	Description string `json:"description,omitempty"`

	// Scheme is an RFC 7235 authentication scheme, e.g. "Bearer".
	Scheme string `json:"scheme"`
}

// OpenIDConnectSecurityScheme is a security scheme using OpenID Connect.
type OpenIDConnectSecurityScheme struct {
	Description string `json:"description,omitempty"`

	// OpenIDConnectURL is the discovery URL of the provider metadata.
	OpenIDConnectURL string `json:"openIdConnectUrl"`
}

// MutualTLSSecurityScheme is a security scheme using mTLS.
type MutualTLSSecurityScheme struct {
	Description string `json:"description,omitempty"`
}

// OAuth2SecurityScheme is a security scheme using OAuth 2.0.
type OAuth2SecurityScheme struct {
	Description string `json:"description,omitempty"`

	Flows OAuthFlows `json:"flows"`

	// Oauth2MetadataURL is the RFC 8414 authorization server metadata URL.
	Oauth2MetadataURL string `json:"oauth2MetadataUrl,omitempty"`
}

// OAuthFlows configures the supported OAuth 2.0 flows.
type OAuthFlows struct {
	AuthorizationCode *AuthorizationCodeOAuthFlow `json:"authorizationCode,omitempty"`
	ClientCredentials *ClientCredentialsOAuthFlow `json:"clientCredentials,omitempty"`
	Implicit          *ImplicitOAuthFlow          `json:"implicit,omitempty"`
	Password          *PasswordOAuthFlow          `json:"password,omitempty"`
}

type AuthorizationCodeOAuthFlow struct {
	AuthorizationURL string            `json:"authorizationUrl"`
	RefreshURL       string            `json:"refreshUrl,omitempty"`
	Scopes           map[string]string `json:"scopes"`
	TokenURL         string            `json:"tokenUrl"`
}

type ClientCredentialsOAuthFlow struct {
	RefreshURL string            `json:"refreshUrl,omitempty"`
	Scopes     map[string]string `json:"scopes"`
	TokenURL   string            `json:"tokenUrl"`
}

type ImplicitOAuthFlow struct {
	AuthorizationURL string            `json:"authorizationUrl"`
	RefreshURL       string            `json:"refreshUrl,omitempty"`
	Scopes           map[string]string `json:"scopes"`
}

type PasswordOAuthFlow struct {
	RefreshURL string            `json:"refreshUrl,omitempty"`
	Scopes     map[string]string `json:"scopes"`
	TokenURL   string            `json:"tokenUrl"`
}
