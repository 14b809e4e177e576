// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package authz

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/hashicorp/go-secure-stdlib/strutil"
	"golang.org/x/text/language"
)

// GrantType is an OAuth 2.0 grant type.
type GrantType string

const (
	GrantImplicit          GrantType = "implicit"
	GrantAuthorizationCode GrantType = "authorization_code"
	GrantClientCredentials GrantType = "client_credentials"
	GrantPassword          GrantType = "password"
	GrantDeviceCode        GrantType = "urn:ietf:params:oauth:grant-type:device_code"
	GrantJWTBearer         GrantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"
)

// Redirect reports whether the grant is driven by an authorization request
// and its redirect.
func (g GrantType) Redirect() bool {
	return g == GrantImplicit || g == GrantAuthorizationCode
}

// CredentialsDelivery is how client credentials are sent to the token
// endpoint by the client_credentials grant.
type CredentialsDelivery string

const (
	// DeliverBody sends client_id and client_secret in the request body.
	DeliverBody CredentialsDelivery = "body"

	// DeliverHeader sends them as a basic Authorization header.
	DeliverHeader CredentialsDelivery = "header"
)

// ClientSecret is an oauth client Secret.
type ClientSecret string

// RedactedClientSecret is the redacted string or json for an oauth client secret.
const RedactedClientSecret = "[REDACTED: client secret]"

// String will redact the client secret.
func (t ClientSecret) String() string { return RedactedClientSecret }

// MarshalJSON will redact the client secret.
func (t ClientSecret) MarshalJSON() ([]byte, error) { return json.Marshal(RedactedClientSecret) }

// UserPassword is a resource owner's password.
type UserPassword string

// RedactedUserPassword is the redacted string or json for a password.
const RedactedUserPassword = "[REDACTED: password]"

// String will redact the password.
func (t UserPassword) String() string { return RedactedUserPassword }

// MarshalJSON will redact the password.
func (t UserPassword) MarshalJSON() ([]byte, error) { return json.Marshal(RedactedUserPassword) }

// Param is a single name/value pair.
type Param struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// CustomParams are additions to a request.
type CustomParams struct {
	// Parameters are added to the URL's query.
	Parameters []Param `json:"parameters,omitempty"`
	// Body parameters are added to the form body (token requests only).
	Body []Param `json:"body,omitempty"`
	// Headers are added to the request (token requests only).
	Headers []Param `json:"headers,omitempty"`
}

func (p CustomParams) clone() CustomParams {
	return CustomParams{
		Parameters: cloneParams(p.Parameters),
		Body:       cloneParams(p.Body),
		Headers:    cloneParams(p.Headers),
	}
}

func cloneParams(p []Param) []Param {
	if p == nil {
		return nil
	}
	return append([]Param(nil), p...)
}

// CustomData are the additions for each phase of a grant.
type CustomData struct {
	// Auth applies to the authorization request.
	Auth CustomParams `json:"auth"`
	// Token applies to token endpoint requests.
	Token CustomParams `json:"token"`
}

// Config is the configuration of a grant.
type Config struct {
	GrantType GrantType

	ClientID string
	// ClientSecret is never sent on the authorization request.
	ClientSecret ClientSecret

	AuthorizationURI string
	AccessTokenURI   string
	RedirectURI      string

	// Scopes are requested in order.
	Scopes []string

	// ResponseType overrides the response type derived from the grant type.
	ResponseType string

	// Interactive defaults to true when nil.
	Interactive *bool

	// PKCE adds a code challenge to requests whose response type includes
	// code.
	PKCE bool

	CustomData CustomData

	// Assertion is the jwt-bearer grant's assertion.
	Assertion string
	// DeviceCode is the device_code grant's device code.
	DeviceCode string
	// Username and Password are the password grant's credentials.
	Username string
	Password UserPassword

	// State is an optional caller supplied correlation token. A random
	// state is generated when it's empty.
	State string

	IncludeGrantedScopes bool
	LoginHint            string

	// UILocales are the preferred languages of the authorization pages, in
	// order of preference.
	UILocales []language.Tag

	// CredentialsDelivery defaults to DeliverBody.
	CredentialsDelivery CredentialsDelivery
}

// Clone returns a deep copy of the Config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	if c.Scopes != nil {
		clone.Scopes = append([]string(nil), c.Scopes...)
	}
	if c.UILocales != nil {
		clone.UILocales = append([]language.Tag(nil), c.UILocales...)
	}
	if c.Interactive != nil {
		interactive := *c.Interactive
		clone.Interactive = &interactive
	}
	clone.CustomData = CustomData{
		Auth:  c.CustomData.Auth.clone(),
		Token: c.CustomData.Token.clone(),
	}
	return &clone
}

// EffectiveResponseType is the ResponseType override, else the response type
// of the grant: token for implicit and code for authorization_code.
func (c *Config) EffectiveResponseType() string {
	if c.ResponseType != "" {
		return c.ResponseType
	}
	switch c.GrantType {
	case GrantImplicit:
		return "token"
	case GrantAuthorizationCode:
		return "code"
	default:
		return ""
	}
}

// IsInteractive reports whether redirect grants use an interactive window.
func (c *Config) IsInteractive() bool {
	return c.Interactive == nil || *c.Interactive
}

// Bool returns a pointer to b, for Config.Interactive.
func Bool(b bool) *bool { return &b }

// checkEndpoints validates the endpoint URIs required by the grant.
func (c *Config) checkEndpoints() error {
	const op = "Config.checkEndpoints"
	if c.GrantType.Redirect() {
		if err := checkHTTPURI("authorization URI", c.AuthorizationURI); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if c.RedirectURI != "" {
			if err := checkRedirectURI(c.RedirectURI); err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
		}
	}
	if c.GrantType != GrantImplicit {
		if err := checkHTTPURI("access token URI", c.AccessTokenURI); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return nil
}

// checkHTTPURI requires a URI with an http or https scheme.
func checkHTTPURI(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is empty: %w", name, ErrInvalidParameter)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s %q is invalid: %w: %w", name, raw, ErrInvalidParameter, err)
	}
	if !strutil.StrListContains([]string{"https", "http"}, strings.ToLower(u.Scheme)) {
		return fmt.Errorf("%s %q: Only http(s) protocols are allowed: %w", name, raw, ErrInvalidParameter)
	}
	if u.Host == "" {
		return fmt.Errorf("%s %q has no host: %w", name, raw, ErrInvalidParameter)
	}
	return nil
}

// scriptSchemes can't be used for a redirect URI. Installed applications use
// arbitrary schemes, so everything else is allowed.
var scriptSchemes = []string{"javascript", "data", "vbscript"}

func checkRedirectURI(raw string) error {
	const name = "redirect URI"
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%s %q is invalid: %w: %w", name, raw, ErrInvalidParameter, err)
	}
	if strutil.StrListContains(scriptSchemes, strings.ToLower(u.Scheme)) {
		return fmt.Errorf("%s %q uses a disallowed scheme: %w", name, raw, ErrInvalidParameter)
	}
	return nil
}
