// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

/*
authz is a package for obtaining OAuth 2.0 tokens on behalf of an HTTP client
application.

An Authorizer drives exactly one grant at a time, selected by the Config's
GrantType:

  - implicit and authorization_code grants build an authorization request URL,
    open it in an interactive window (or a hidden frame when the Config is not
    interactive) and wait for the redirect parameters to be relayed back
    through a channel.MessageSource. Redirect responses are correlated with
    the Authorizer's state and authorization codes are exchanged for tokens
    at the token endpoint.

  - client_credentials, password, device_code, jwt-bearer and any other
    (custom) grant are POSTed directly to the token endpoint.

Every attempt settles with exactly one result: a *Token or an error. Protocol
and channel failures are returned as an *AuthorizationError which carries the
error code, the Authorizer's state and whether the failing flow was
interactive.

Example:

	relay := channel.NewRelay()
	a, err := authz.NewAuthorizer(&authz.Config{
		GrantType:        authz.GrantAuthorizationCode,
		ClientID:         "client-id",
		AuthorizationURI: "https://auth.example.com/authorize",
		AccessTokenURI:   "https://auth.example.com/token",
		RedirectURI:      "http://127.0.0.1:8250/callback",
		Scopes:           []string{"profile", "email"},
		PKCE:             true,
	}, authz.WithMessageSource(relay))
	if err != nil {
		// handle error
	}
	tk, err := a.Authorize(ctx)

See the callback package for an http.Handler which publishes redirect
responses to a channel.Relay.
*/
package authz
