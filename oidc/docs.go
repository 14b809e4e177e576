// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

/*
oidc is a package that extends an authz.Authorizer with OpenID Connect
response types.

An oidc.Authorizer requests every token of a space separated response type,
e.g. "code id_token", and returns one Token per requested type. A code
Token is completed by exchanging the code at the token endpoint; when the
exchange fails only that Token carries an error. A nonce is sent whenever an
id_token is requested and id_tokens which don't echo it are rejected.

Provider metadata is consumed through a Discoverer, which stores it in a
MetadataCache keyed by the normalized issuer:

	cache, err := oidc.NewMemoryCache(time.Hour)
	if err != nil {
		// handle error
	}
	d, err := oidc.NewDiscoverer(cache)
	if err != nil {
		// handle error
	}
	md, err := d.Metadata(ctx, "https://accounts.example.com")
	if err != nil {
		// handle error
	}
	cfg := &authz.Config{
		GrantType:    authz.GrantAuthorizationCode,
		ResponseType: "code id_token",
		ClientID:     "client-id",
		RedirectURI:  redirectURI,
		Scopes:       []string{"openid", "email"},
	}
	md.Apply(cfg)
	a, err := oidc.NewAuthorizer(cfg, authz.WithMessageSource(relay))
	if err != nil {
		// handle error
	}
	tokens, err := a.Authorize(ctx)
*/
package oidc
