// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package authz

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"encoding/pem"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/hashicorp/go-secure-stdlib/strutil"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const testKeyID = "test-provider-key"

// TestProvider is a local authorization server which makes writing tests
// much easier. It serves:
//
//   - /authorize, which redirects to the request's redirect_uri with a
//     response for every requested response type, or with an error. The
//     response is in the fragment unless the response type is code or
//     response_mode=query was requested.
//   - /token, which supports every grant and records the last request.
//   - /.well-known/openid-configuration and /certs for discovery and id_token
//     verification.
type TestProvider struct {
	httpServer *httptest.Server
	caCert     string
	signingKey *ecdsa.PrivateKey
	jwks       *jose.JSONWebKeySet

	mu                sync.Mutex
	clientID          string
	clientSecret      string
	expectedAuthCode  string
	authError         string
	authErrorDesc     string
	replyState        *string
	neverRedirect     bool
	idTokenNonce      *string
	accessToken       string
	refreshToken      string
	replyExpiresIn    *int
	replyScope        string
	omitIDToken       bool
	tokenReply        *testTokenReply
	codeChallenge     string
	authNonce         string
	lastTokenForm     url.Values
	lastTokenHeader   http.Header
	lastTokenQuery    url.Values
	authRequests      int
	tokenRequests     int
	allowedGrantTypes []string

	t *testing.T
}

type testTokenReply struct {
	status      int
	contentType string
	body        string
}

// StartTestProvider creates a disposable TestProvider which is stopped when
// the test completes.
func StartTestProvider(t *testing.T) *TestProvider {
	t.Helper()
	require := require.New(t)

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(err)

	p := &TestProvider{
		signingKey: key,
		jwks: &jose.JSONWebKeySet{
			Keys: []jose.JSONWebKey{
				{Key: &key.PublicKey, KeyID: testKeyID, Algorithm: string(jose.ES256), Use: "sig"},
			},
		},
		expectedAuthCode: "test-auth-code",
		accessToken:      "test-access-token",
		refreshToken:     "test-refresh-token",
		t:                t,
	}
	p.httpServer = httptest.NewUnstartedServer(p)
	p.httpServer.Config.ErrorLog = log.New(io.Discard, "", 0)
	p.httpServer.StartTLS()
	t.Cleanup(p.httpServer.Close)

	var buf bytes.Buffer
	err = pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: p.httpServer.Certificate().Raw})
	require.NoError(err)
	p.caCert = buf.String()
	return p
}

// Stop stops the running TestProvider.
func (p *TestProvider) Stop() { p.httpServer.Close() }

// Addr returns the current base URL for the test provider's running webserver.
func (p *TestProvider) Addr() string { return p.httpServer.URL }

// AuthorizationURI returns the provider's authorization endpoint.
func (p *TestProvider) AuthorizationURI() string { return p.Addr() + "/authorize" }

// AccessTokenURI returns the provider's token endpoint.
func (p *TestProvider) AccessTokenURI() string { return p.Addr() + "/token" }

// CACert returns the pem-encoded CA certificate used by the test provider's
// HTTPS server.
func (p *TestProvider) CACert() string { return p.caCert }

// HTTPClient returns a client which trusts the test provider.
func (p *TestProvider) HTTPClient() *http.Client { return p.httpServer.Client() }

// SetClientCreds configures the client credentials required by /token.
// Empty credentials aren't checked.
func (p *TestProvider) SetClientCreds(clientID, clientSecret string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clientID = clientID
	p.clientSecret = clientSecret
}

// SetExpectedAuthCode configures the code returned by /authorize and the
// code accepted by /token.
func (p *TestProvider) SetExpectedAuthCode(code string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expectedAuthCode = code
}

// SetAuthError configures /authorize to redirect with an error.
func (p *TestProvider) SetAuthError(code, description string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.authError = code
	p.authErrorDesc = description
}

// SetReplyState overrides the state returned by /authorize. An empty state
// omits it.
func (p *TestProvider) SetReplyState(state string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replyState = &state
}

// NeverRedirect configures /authorize to respond with a page instead of a
// redirect.
func (p *TestProvider) NeverRedirect() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.neverRedirect = true
}

// SetIDTokenNonce overrides the nonce claim of issued id_tokens, which
// otherwise echo the authorization request's nonce.
func (p *TestProvider) SetIDTokenNonce(nonce string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.idTokenNonce = &nonce
}

// SetTokens configures the access and refresh tokens issued.
func (p *TestProvider) SetTokens(accessToken, refreshToken string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accessToken = accessToken
	p.refreshToken = refreshToken
}

// SetReplyExpiresIn configures the expires_in of /token responses; a
// negative value omits it.
func (p *TestProvider) SetReplyExpiresIn(seconds int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replyExpiresIn = &seconds
}

// SetReplyScope configures the scope of /token responses, which is omitted
// by default.
func (p *TestProvider) SetReplyScope(scope string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replyScope = scope
}

// OmitIDTokens configures /token to not issue an id_token.
func (p *TestProvider) OmitIDTokens() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.omitIDToken = true
}

// SetTokenReply configures a verbatim /token response.
func (p *TestProvider) SetTokenReply(status int, contentType, body string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokenReply = &testTokenReply{status: status, contentType: contentType, body: body}
}

// SetAllowedGrantTypes limits the grant types accepted by /token.
func (p *TestProvider) SetAllowedGrantTypes(grantTypes ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.allowedGrantTypes = grantTypes
}

// LastTokenRequest returns the form body, headers and query of the last
// /token request.
func (p *TestProvider) LastTokenRequest() (url.Values, http.Header, url.Values) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastTokenForm, p.lastTokenHeader, p.lastTokenQuery
}

// AuthRequests returns the number of /authorize requests served.
func (p *TestProvider) AuthRequests() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.authRequests
}

// TokenRequests returns the number of /token requests served.
func (p *TestProvider) TokenRequests() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tokenRequests
}

// IDToken issues a signed id_token for the nonce.
func (p *TestProvider) IDToken(nonce string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.issueIDToken(nonce)
}

// issueIDToken requires the lock to be held.
func (p *TestProvider) issueIDToken(nonce string) string {
	p.t.Helper()
	require := require.New(p.t)
	if p.idTokenNonce != nil {
		nonce = *p.idTokenNonce
	}
	sig, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.ES256, Key: p.signingKey},
		(&jose.SignerOptions{}).WithType("JWT").WithHeader("kid", testKeyID),
	)
	require.NoError(err)

	now := time.Now()
	claims := jwt.Claims{
		Subject:   "alice@example.com",
		Issuer:    p.Addr(),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now.Add(-5 * time.Second)),
		Expiry:    jwt.NewNumericDate(now.Add(5 * time.Minute)),
		Audience:  jwt.Audience{p.clientID},
	}
	private := map[string]interface{}{}
	if nonce != "" {
		private["nonce"] = nonce
	}
	raw, err := jwt.Signed(sig).Claims(claims).Claims(private).Serialize()
	require.NoError(err)
	return raw
}

func (p *TestProvider) writeJSON(w http.ResponseWriter, status int, out interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(out)
}

func (p *TestProvider) writeTokenError(w http.ResponseWriter, status int, code, desc string) {
	body := struct {
		Code string `json:"error"`
		Desc string `json:"error_description,omitempty"`
	}{code, desc}
	p.writeJSON(w, status, &body)
}

// ServeHTTP implements the test provider's http.Handler.
func (p *TestProvider) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch req.URL.Path {
	case "/.well-known/openid-configuration":
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		p.writeJSON(w, http.StatusOK, map[string]interface{}{
			"issuer":                                p.Addr(),
			"authorization_endpoint":                p.Addr() + "/authorize",
			"token_endpoint":                        p.Addr() + "/token",
			"jwks_uri":                              p.Addr() + "/certs",
			"response_types_supported":              []string{"code", "token", "id_token", "code id_token"},
			"grant_types_supported":                 []string{"authorization_code", "implicit", "client_credentials", "password"},
			"scopes_supported":                      []string{"openid", "profile", "email"},
			"id_token_signing_alg_values_supported": []string{string(jose.ES256)},
			"subject_types_supported":               []string{"public"},
		})

	case "/certs":
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		p.writeJSON(w, http.StatusOK, p.jwks)

	case "/authorize":
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		p.authRequests++
		p.serveAuthorize(w, req)

	case "/token":
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		p.tokenRequests++
		p.serveToken(w, req)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (p *TestProvider) serveAuthorize(w http.ResponseWriter, req *http.Request) {
	if p.neverRedirect {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>Sign in</body></html>"))
		return
	}
	qv := req.URL.Query()
	redirectURI := qv.Get("redirect_uri")
	if redirectURI == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	reply := url.Values{}
	state := qv.Get("state")
	if p.replyState != nil {
		state = *p.replyState
	}
	if state != "" {
		reply.Set("state", state)
	}

	switch {
	case p.authError != "":
		reply.Set("error", p.authError)
		if p.authErrorDesc != "" {
			reply.Set("error_description", p.authErrorDesc)
		}
	case p.clientID != "" && qv.Get("client_id") != p.clientID:
		reply.Set("error", "unauthorized_client")
	default:
		p.codeChallenge = qv.Get("code_challenge")
		p.authNonce = qv.Get("nonce")
		for _, rt := range strings.Fields(qv.Get("response_type")) {
			switch rt {
			case "code":
				reply.Set("code", p.expectedAuthCode)
			case "token":
				reply.Set("access_token", p.accessToken)
				reply.Set("token_type", "Bearer")
				if p.replyExpiresIn == nil || *p.replyExpiresIn >= 0 {
					reply.Set("expires_in", strconv.Itoa(p.expiresIn()))
				}
			case "id_token":
				reply.Set("id_token", p.issueIDToken(qv.Get("nonce")))
			}
		}
	}

	u, err := url.Parse(redirectURI)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if useFragment(qv) {
		u.Fragment = ""
		u.RawFragment = ""
		http.Redirect(w, req, u.String()+"#"+reply.Encode(), http.StatusFound)
		return
	}
	q := u.Query()
	for k, vs := range reply {
		q[k] = vs
	}
	u.RawQuery = q.Encode()
	http.Redirect(w, req, u.String(), http.StatusFound)
}

// useFragment reports whether the response is returned in the redirect's
// fragment: when requested with response_mode, otherwise for every response
// type other than code.
func useFragment(qv url.Values) bool {
	switch qv.Get("response_mode") {
	case "fragment":
		return true
	case "query":
		return false
	}
	rt := strings.Fields(qv.Get("response_type"))
	return len(rt) > 0 && !(len(rt) == 1 && rt[0] == "code")
}

func (p *TestProvider) serveToken(w http.ResponseWriter, req *http.Request) {
	if err := req.ParseForm(); err != nil {
		p.writeTokenError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	p.lastTokenForm = req.PostForm
	p.lastTokenHeader = req.Header.Clone()
	p.lastTokenQuery = req.URL.Query()

	if p.tokenReply != nil {
		if p.tokenReply.contentType != "" {
			w.Header().Set("Content-Type", p.tokenReply.contentType)
		}
		w.WriteHeader(p.tokenReply.status)
		_, _ = w.Write([]byte(p.tokenReply.body))
		return
	}

	grantType := req.PostForm.Get("grant_type")
	if len(p.allowedGrantTypes) > 0 && !strutil.StrListContains(p.allowedGrantTypes, grantType) {
		p.writeTokenError(w, http.StatusBadRequest, "unsupported_grant_type", "")
		return
	}

	if p.clientID != "" {
		id, secret, ok := req.BasicAuth()
		if !ok {
			id, secret = req.PostForm.Get("client_id"), req.PostForm.Get("client_secret")
		}
		if id != p.clientID || (p.clientSecret != "" && secret != p.clientSecret) {
			p.writeTokenError(w, http.StatusUnauthorized, "invalid_client", "")
			return
		}
	}

	reply := map[string]interface{}{
		"access_token": p.accessToken,
		"token_type":   "Bearer",
	}
	if p.replyExpiresIn == nil || *p.replyExpiresIn >= 0 {
		reply["expires_in"] = p.expiresIn()
	}
	if p.replyScope != "" {
		reply["scope"] = p.replyScope
	}

	switch grantType {
	case "authorization_code":
		if req.PostForm.Get("code") != p.expectedAuthCode {
			p.writeTokenError(w, http.StatusBadRequest, "invalid_grant", "unexpected auth code")
			return
		}
		if p.codeChallenge != "" && oauth2.S256ChallengeFromVerifier(req.PostForm.Get("code_verifier")) != p.codeChallenge {
			p.writeTokenError(w, http.StatusBadRequest, "invalid_grant", "code verifier does not match")
			return
		}
		if p.refreshToken != "" {
			reply["refresh_token"] = p.refreshToken
		}
		if !p.omitIDToken {
			reply["id_token"] = p.issueIDToken(p.authNonce)
		}
	case "password":
		if req.PostForm.Get("username") == "" {
			p.writeTokenError(w, http.StatusBadRequest, "invalid_request", "missing username")
			return
		}
	case "urn:ietf:params:oauth:grant-type:jwt-bearer":
		if req.PostForm.Get("assertion") == "" {
			p.writeTokenError(w, http.StatusBadRequest, "invalid_grant", "missing assertion")
			return
		}
	case "":
		p.writeTokenError(w, http.StatusBadRequest, "invalid_request", "missing grant_type")
		return
	}
	p.writeJSON(w, http.StatusOK, reply)
}

// expiresIn requires the lock to be held.
func (p *TestProvider) expiresIn() int {
	if p.replyExpiresIn != nil {
		return *p.replyExpiresIn
	}
	return 3600
}

