// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/hashicorp/cap-authz/authz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsAuthorizationResponse(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	assert.True(IsAuthorizationResponse(url.Values{"id_token": {"x"}}))
	assert.True(IsAuthorizationResponse(url.Values{"code": {"x"}}))
	assert.False(IsAuthorizationResponse(url.Values{"foo": {"bar"}}))
}

func TestAuthorizer_AuthorizationURL(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name         string
		responseType string
		wantNonce    bool
	}{
		{name: "code", responseType: "code"},
		{name: "id-token", responseType: "id_token", wantNonce: true},
		{name: "hybrid", responseType: "code id_token", wantNonce: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			a, err := NewAuthorizer(&authz.Config{
				GrantType:        authz.GrantAuthorizationCode,
				ResponseType:     tt.responseType,
				AuthorizationURI: "https://as.example.com/auth",
			})
			require.NoError(err)
			raw, err := a.AuthorizationURL()
			require.NoError(err)
			u, err := url.Parse(raw)
			require.NoError(err)
			assert.Equal(tt.responseType, u.Query().Get("response_type"))
			if !tt.wantNonce {
				assert.False(u.Query().Has("nonce"))
				return
			}
			nonce, err := a.Nonce()
			require.NoError(err)
			assert.True(strings.HasPrefix(nonce, "n_"))
			assert.Equal(nonce, u.Query().Get("nonce"))

			// the nonce is reused
			raw, err = a.AuthorizationURL()
			require.NoError(err)
			u, err = url.Parse(raw)
			require.NoError(err)
			assert.Equal(nonce, u.Query().Get("nonce"))
		})
	}
}

// testAuthorizer returns an Authorizer for the provider's code grant with the
// response type.
func testAuthorizer(t *testing.T, p *authz.TestProvider, responseType string, opt ...authz.Option) *Authorizer {
	t.Helper()
	relay, redirectURI := authz.StartTestRedirect(t)
	opts := append([]authz.Option{
		authz.WithMessageSource(relay),
		authz.WithHTTPClient(p.HTTPClient()),
		authz.WithWindowOpener(p.TestWindowOpener(false)),
	}, opt...)
	a, err := NewAuthorizer(&authz.Config{
		GrantType:        authz.GrantAuthorizationCode,
		ResponseType:     responseType,
		ClientID:         "client-id",
		AuthorizationURI: p.AuthorizationURI(),
		AccessTokenURI:   p.AccessTokenURI(),
		RedirectURI:      redirectURI,
		Scopes:           []string{"openid", "email"},
	}, opts...)
	require.NoError(t, err)
	return a
}

func TestAuthorizer_Authorize(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name         string
		responseType string
		setup        func(p *authz.TestProvider)
		wantTypes    []string
		wantErrs     map[string]string
	}{
		{
			name:         "code",
			responseType: "code",
			wantTypes:    []string{"code"},
		},
		{
			name:         "hybrid",
			responseType: "code id_token",
			wantTypes:    []string{"code", "id_token"},
		},
		{
			name:         "all",
			responseType: "code id_token token",
			wantTypes:    []string{"code", "id_token", "token"},
		},
		{
			name:         "unknown-response-type",
			responseType: "code unknown",
			wantTypes:    []string{"code"},
		},
		{
			name:         "nonce-mismatch",
			responseType: "code id_token",
			setup:        func(p *authz.TestProvider) { p.SetIDTokenNonce("forged") },
			wantTypes:    []string{"code", "id_token"},
			wantErrs: map[string]string{
				"code":     CodeInvalidNonce,
				"id_token": CodeInvalidNonce,
			},
		},
		{
			name:         "failed-exchange",
			responseType: "code id_token",
			setup: func(p *authz.TestProvider) {
				p.SetTokenReply(400, "application/json", `{"error":"invalid_grant"}`)
			},
			wantTypes: []string{"code", "id_token"},
			wantErrs: map[string]string{
				"code": "invalid_grant",
			},
		},
		{
			name:         "code-without-id-token",
			responseType: "code",
			setup:        func(p *authz.TestProvider) { p.OmitIDTokens() },
			wantTypes:    []string{"code"},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			p := authz.StartTestProvider(t)
			if tt.setup != nil {
				tt.setup(p)
			}
			a := testAuthorizer(t, p, tt.responseType)

			tokens, err := a.Authorize(context.Background())
			require.NoError(err)
			state, err := a.Base().State()
			require.NoError(err)

			var got []string
			for _, tk := range tokens {
				got = append(got, tk.ResponseType)
				assert.Equal(state, tk.State)
				assert.False(tk.Time.IsZero())
				wantErr := tt.wantErrs[tk.ResponseType]
				if wantErr != "" {
					require.True(tk.Failed(), tk.ResponseType)
					assert.Equal(wantErr, tk.Err.Code)
					assert.Equal(tk.ResponseType, tk.Err.ResponseType)
					assert.Equal(state, tk.Err.State)
					continue
				}
				require.False(tk.Failed(), "%s: %v", tk.ResponseType, tk.Err)
				switch tk.ResponseType {
				case "code":
					assert.Equal("test-auth-code", tk.Code)
					assert.Equal("test-access-token", string(tk.AccessToken))
					assert.Equal("test-refresh-token", string(tk.RefreshToken))
					assert.Equal([]string{"openid", "email"}, tk.Scopes)
				case "id_token":
					assert.NotEmpty(tk.IDToken)
					assert.Empty(tk.AccessToken)
				case "token":
					assert.Equal("test-access-token", string(tk.AccessToken))
					assert.Empty(tk.IDToken)
					assert.NotContains(tk.Extra, "code")
				}
			}
			assert.Equal(tt.wantTypes, got)
		})
	}
}

func TestAuthorizer_Authorize_Verifier(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	ctx := context.Background()

	p := authz.StartTestProvider(t)
	p.SetClientCreds("client-id", "")
	cache, err := NewMemoryCache(0)
	require.NoError(err)
	t.Cleanup(cache.Close)
	d, err := NewDiscoverer(cache, WithHTTPClient(p.HTTPClient()))
	require.NoError(err)

	v, err := d.Verifier(ctx, p.Addr(), "client-id")
	require.NoError(err)
	a := testAuthorizer(t, p, "id_token", WithVerifier(v))
	tokens, err := a.Authorize(ctx)
	require.NoError(err)
	require.Len(tokens, 1)
	assert.False(tokens[0].Failed(), tokens[0].Err)

	// signed for another audience
	v, err = d.Verifier(ctx, p.Addr(), "other-client")
	require.NoError(err)
	a = testAuthorizer(t, p, "id_token", WithVerifier(v))
	tokens, err = a.Authorize(ctx)
	require.NoError(err)
	require.Len(tokens, 1)
	require.True(tokens[0].Failed())
	assert.Equal(CodeInvalidIDToken, tokens[0].Err.Code)
}

func TestAuthorizer_Authorize_Errors(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)

	p := authz.StartTestProvider(t)
	p.SetAuthError("login_required", "")
	a := testAuthorizer(t, p, "code id_token")
	_, err := a.Authorize(context.Background())
	var authzErr *authz.AuthorizationError
	require.True(errors.As(err, &authzErr), err)
	assert.Equal("login_required", authzErr.Code)

	a, err = NewAuthorizer(&authz.Config{GrantType: authz.GrantImplicit, AuthorizationURI: "https://as.example.com/auth"})
	require.NoError(err)
	_, err = a.Authorize(context.Background())
	assert.ErrorIs(err, authz.ErrInvalidParameter)
}

func TestAuthorizer_Authorize_TokenGrant(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)

	p := authz.StartTestProvider(t)
	a, err := NewAuthorizer(&authz.Config{
		GrantType:      authz.GrantClientCredentials,
		ClientID:       "id",
		ClientSecret:   "secret",
		AccessTokenURI: p.AccessTokenURI(),
	}, authz.WithHTTPClient(p.HTTPClient()))
	require.NoError(err)
	tokens, err := a.Authorize(context.Background())
	require.NoError(err)
	require.Len(tokens, 1)
	assert.Equal("token", tokens[0].ResponseType)
	assert.Equal("test-access-token", string(tokens[0].AccessToken))
	assert.False(tokens[0].Failed())
}
