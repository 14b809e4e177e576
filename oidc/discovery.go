// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/cap-authz/authz"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-secure-stdlib/strutil"
	"golang.org/x/sync/singleflight"
)

const wellKnownSuffix = "/.well-known/openid-configuration"

// ProviderMetadata is the part of a provider's discovery document which is
// used to configure an authorization.
type ProviderMetadata struct {
	Issuer                 string   `json:"issuer"`
	AuthorizationEndpoint  string   `json:"authorization_endpoint"`
	TokenEndpoint          string   `json:"token_endpoint"`
	JWKSURI                string   `json:"jwks_uri"`
	UserInfoEndpoint       string   `json:"userinfo_endpoint"`
	GrantTypesSupported    []string `json:"grant_types_supported"`
	ResponseTypesSupported []string `json:"response_types_supported"`
	ScopesSupported        []string `json:"scopes_supported"`
	IDTokenSigningAlgs     []string `json:"id_token_signing_alg_values_supported"`
}

// GrantTypes returns the supported grant types, or the discovery default
// when the provider doesn't list them.
func (md *ProviderMetadata) GrantTypes() []string {
	if len(md.GrantTypesSupported) == 0 {
		return []string{string(authz.GrantAuthorizationCode), string(authz.GrantImplicit)}
	}
	return append([]string(nil), md.GrantTypesSupported...)
}

// ResponseTypes returns the supported response types, or "code" when the
// provider doesn't list them.
func (md *ProviderMetadata) ResponseTypes() []string {
	if len(md.ResponseTypesSupported) == 0 {
		return []string{"code"}
	}
	return append([]string(nil), md.ResponseTypesSupported...)
}

// Scopes returns the supported scopes. It always includes openid.
func (md *ProviderMetadata) Scopes() []string {
	scopes := append([]string(nil), md.ScopesSupported...)
	if !strutil.StrListContains(scopes, "openid") {
		scopes = append([]string{"openid"}, scopes...)
	}
	return scopes
}

// Apply fills the Config's empty endpoints from the metadata.
func (md *ProviderMetadata) Apply(c *authz.Config) {
	if c == nil {
		return
	}
	if c.AuthorizationURI == "" {
		c.AuthorizationURI = md.AuthorizationEndpoint
	}
	if c.AccessTokenURI == "" {
		c.AccessTokenURI = md.TokenEndpoint
	}
}

func (md *ProviderMetadata) clone() *ProviderMetadata {
	cp := *md
	cp.GrantTypesSupported = append([]string(nil), md.GrantTypesSupported...)
	cp.ResponseTypesSupported = append([]string(nil), md.ResponseTypesSupported...)
	cp.ScopesSupported = append([]string(nil), md.ScopesSupported...)
	cp.IDTokenSigningAlgs = append([]string(nil), md.IDTokenSigningAlgs...)
	return &cp
}

// NormalizeIssuer returns the issuer's cache key: the scheme and host are
// lower cased, and the discovery path, any trailing "/", the query and the
// fragment are removed.
func NormalizeIssuer(issuer string) (string, error) {
	const op = "oidc.NormalizeIssuer"
	u, err := url.Parse(strings.TrimSpace(issuer))
	if err != nil {
		return "", fmt.Errorf("%s: %w: %w", op, ErrInvalidIssuer, err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if !strutil.StrListContains([]string{"http", "https"}, u.Scheme) || u.Host == "" {
		return "", fmt.Errorf("%s: issuer %q is not an http(s) url: %w", op, issuer, ErrInvalidIssuer)
	}
	u.Host = strings.ToLower(u.Host)
	u.Path = strings.TrimSuffix(u.Path, wellKnownSuffix)
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// Discoverer looks up provider metadata. Concurrent lookups of the same
// issuer share one request and results are stored in its MetadataCache.
type Discoverer struct {
	cache  MetadataCache
	client *http.Client
	logger hclog.Logger
	group  singleflight.Group
}

// NewDiscoverer creates a new Discoverer.
//
// Supported options: WithHTTPClient, WithLogger
func NewDiscoverer(cache MetadataCache, opt ...authz.Option) (*Discoverer, error) {
	const op = "oidc.NewDiscoverer"
	if cache == nil {
		return nil, fmt.Errorf("%s: cache is nil: %w", op, ErrNilParameter)
	}
	opts := getDiscoveryOpts(opt...)
	return &Discoverer{
		cache:  cache,
		client: opts.withHTTPClient,
		logger: opts.withLogger.Named("discovery"),
	}, nil
}

// Metadata returns the issuer's metadata from the cache, fetching it when it
// isn't cached.
func (d *Discoverer) Metadata(ctx context.Context, issuer string) (*ProviderMetadata, error) {
	const op = "Discoverer.Metadata"
	key, err := NormalizeIssuer(issuer)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if md, ok := d.cache.Get(key); ok {
		d.logger.Trace("metadata cache hit", "issuer", key)
		return md, nil
	}
	v, err, shared := d.group.Do(key, func() (interface{}, error) {
		p, err := d.Provider(ctx, issuer)
		if err != nil {
			return nil, err
		}
		var md ProviderMetadata
		if err := p.Claims(&md); err != nil {
			return nil, fmt.Errorf("unable to decode provider metadata: %w", err)
		}
		d.cache.Set(key, &md)
		return &md, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	d.logger.Debug("fetched provider metadata", "issuer", key, "shared", shared)
	return v.(*ProviderMetadata).clone(), nil
}

// Provider fetches the issuer's discovery document. The issuer may include
// the discovery path.
func (d *Discoverer) Provider(ctx context.Context, issuer string) (*oidc.Provider, error) {
	const op = "Discoverer.Provider"
	issuer = strings.TrimSuffix(strings.TrimSpace(issuer), wellKnownSuffix)
	p, err := oidc.NewProvider(oidc.ClientContext(ctx, d.client), issuer)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrDiscoveryFailed, err)
	}
	return p, nil
}

// Verifier returns an id_token verifier for the issuer and client, for use
// with WithVerifier.
func (d *Discoverer) Verifier(ctx context.Context, issuer, clientID string) (*oidc.IDTokenVerifier, error) {
	const op = "Discoverer.Verifier"
	if clientID == "" {
		return nil, fmt.Errorf("%s: client id is empty: %w", op, ErrInvalidParameter)
	}
	p, err := d.Provider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p.Verifier(&oidc.Config{ClientID: clientID}), nil
}

type discoveryOptions struct {
	withHTTPClient *http.Client
	withLogger     hclog.Logger
}

func discoveryDefaults() discoveryOptions {
	return discoveryOptions{
		withHTTPClient: cleanhttp.DefaultPooledClient(),
		withLogger:     hclog.NewNullLogger(),
	}
}

func getDiscoveryOpts(opt ...authz.Option) discoveryOptions {
	opts := discoveryDefaults()
	authz.ApplyOpts(&opts, opt...)
	return opts
}

// WithHTTPClient provides an optional http client for discovery requests.
//
// Valid for: Discoverer
func WithHTTPClient(c *http.Client) authz.Option {
	return func(o interface{}) {
		if o, ok := o.(*discoveryOptions); ok && c != nil {
			o.withHTTPClient = c
		}
	}
}

// WithLogger provides an optional logger.
//
// Valid for: Discoverer
func WithLogger(l hclog.Logger) authz.Option {
	return func(o interface{}) {
		if o, ok := o.(*discoveryOptions); ok && l != nil {
			o.withLogger = l
		}
	}
}
