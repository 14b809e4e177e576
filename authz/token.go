// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package authz

import (
	"encoding/json"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultExpiresIn is assumed when a token response has no usable
	// expires_in.
	DefaultExpiresIn = 3600

	// DefaultTokenType is assumed when a token response has no token_type.
	DefaultTokenType = "Bearer"

	expirySkew = 10 * time.Second

	// maxExpiresIn is the largest expires_in, in seconds, which fits in a
	// time.Duration.
	maxExpiresIn = int64(math.MaxInt64 / int64(time.Second))
)

// AccessToken is an oauth access_token
type AccessToken string

// RedactedAccessToken is the redacted string or json for an oauth access_token
const RedactedAccessToken = "[REDACTED: access_token]"

// String will redact the token
func (t AccessToken) String() string { return RedactedAccessToken }

// MarshalJSON will redact the token
func (t AccessToken) MarshalJSON() ([]byte, error) { return json.Marshal(RedactedAccessToken) }

// RefreshToken is an oauth refresh_token
type RefreshToken string

// RedactedRefreshToken is the redacted string or json for an oauth refresh_token
const RedactedRefreshToken = "[REDACTED: refresh_token]"

// String will redact the token
func (t RefreshToken) String() string { return RedactedRefreshToken }

// MarshalJSON will redact the token
func (t RefreshToken) MarshalJSON() ([]byte, error) { return json.Marshal(RedactedRefreshToken) }

// IDToken is an oidc id_token
type IDToken string

// RedactedIDToken is the redacted string or json for an oidc id_token
const RedactedIDToken = "[REDACTED: id_token]"

// String will redact the token
func (t IDToken) String() string { return RedactedIDToken }

// MarshalJSON will redact the token
func (t IDToken) MarshalJSON() ([]byte, error) { return json.Marshal(RedactedIDToken) }

// Token is the result of a successful authorization.
type Token struct {
	AccessToken  AccessToken  `json:"accessToken,omitempty"`
	IDToken      IDToken      `json:"idToken,omitempty"`
	RefreshToken RefreshToken `json:"refreshToken,omitempty"`
	TokenType    string       `json:"tokenType"`
	Scopes       []string     `json:"scope"`

	// ExpiresIn is in seconds. ExpiresAssumed is set when the server didn't
	// report it and DefaultExpiresIn was used.
	ExpiresIn      int64     `json:"expiresIn"`
	ExpiresAssumed bool      `json:"expiresAssumed"`
	ExpiresAt      time.Time `json:"expiresAt"`

	State string `json:"state,omitempty"`

	// Extra holds the remaining response fields, keyed by their camel-cased
	// names.
	Extra map[string]interface{} `json:"extra,omitempty"`
}

// known token fields, by camel-cased name
const (
	fieldAccessToken  = "accessToken"
	fieldIDToken      = "idToken"
	fieldRefreshToken = "refreshToken"
	fieldTokenType    = "tokenType"
	fieldScope        = "scope"
	fieldExpiresIn    = "expiresIn"
	fieldState        = "state"
	fieldError        = "error"
	fieldErrorDesc    = "errorDescription"
)

// NewToken creates a Token from camel-cased response fields. The requested
// scopes are used when the response has no scope and received is the time
// the response was received.
func NewToken(fields map[string]interface{}, requested []string, received time.Time) *Token {
	tk := &Token{
		AccessToken:  AccessToken(stringField(fields, fieldAccessToken)),
		IDToken:      IDToken(stringField(fields, fieldIDToken)),
		RefreshToken: RefreshToken(stringField(fields, fieldRefreshToken)),
		TokenType:    stringField(fields, fieldTokenType),
		State:        stringField(fields, fieldState),
	}
	if tk.TokenType == "" {
		tk.TokenType = DefaultTokenType
	}

	tk.Scopes = scopesField(fields[fieldScope])
	if len(tk.Scopes) == 0 && len(requested) > 0 {
		tk.Scopes = append([]string(nil), requested...)
	}

	expiresIn, ok := numberField(fields[fieldExpiresIn])
	if !ok {
		expiresIn = DefaultExpiresIn
		tk.ExpiresAssumed = true
	}
	tk.ExpiresIn = expiresIn
	tk.ExpiresAt = received.Add(time.Duration(expiresIn) * time.Second)

	for k, v := range fields {
		switch k {
		case fieldAccessToken, fieldIDToken, fieldRefreshToken, fieldTokenType, fieldScope, fieldExpiresIn, fieldState:
			continue
		}
		if tk.Extra == nil {
			tk.Extra = map[string]interface{}{}
		}
		tk.Extra[k] = v
	}
	return tk
}

// Expired will return true if the token is expired. Implementations may want
// to adjust the skew since it's 10 seconds.
func (t *Token) Expired() bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return t.ExpiresAt.Round(0).Before(time.Now().Add(expirySkew))
}

// Valid will ensure that the access_token is not empty or expired.
func (t *Token) Valid() bool {
	if t == nil {
		return false
	}
	if t.AccessToken == "" {
		return false
	}
	return !t.Expired()
}

// CamelCase converts a response field name with "_" or "-" separators to
// its camel-cased form, e.g. access_token is accessToken.
func CamelCase(name string) string {
	if !strings.ContainsAny(name, "_-") {
		return name
	}
	parts := strings.FieldsFunc(name, func(r rune) bool { return r == '_' || r == '-' })
	if len(parts) == 0 {
		return name
	}
	var b strings.Builder
	b.WriteString(parts[0])
	for _, p := range parts[1:] {
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	return b.String()
}

// CamelCaseValues converts url.Values to camel-cased fields. Only the first
// value of each parameter is kept.
func CamelCaseValues(v url.Values) map[string]interface{} {
	fields := make(map[string]interface{}, len(v))
	for k := range v {
		fields[CamelCase(k)] = v.Get(k)
	}
	return fields
}

func camelCaseMap(m map[string]interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(m))
	for k, v := range m {
		fields[CamelCase(k)] = v
	}
	return fields
}

func stringField(fields map[string]interface{}, name string) string {
	switch v := fields[name].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

func scopesField(v interface{}) []string {
	switch v := v.(type) {
	case string:
		return strings.Fields(v)
	case []interface{}:
		scopes := make([]string, 0, len(v))
		for _, s := range v {
			if s, ok := s.(string); ok && s != "" {
				scopes = append(scopes, s)
			}
		}
		return scopes
	case []string:
		return append([]string(nil), v...)
	default:
		return nil
	}
}

// numberField returns a usable expires_in: a whole number of seconds
// between 0 and maxExpiresIn. Fractions are truncated.
func numberField(v interface{}) (int64, bool) {
	switch v := v.(type) {
	case float64:
		return secondsFromFloat(v)
	case int:
		return secondsInRange(int64(v))
	case int64:
		return secondsInRange(v)
	case json.Number:
		return parseNumber(v.String())
	case string:
		return parseNumber(v)
	default:
		return 0, false
	}
}

func parseNumber(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return secondsInRange(n)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return secondsFromFloat(f)
}

func secondsFromFloat(f float64) (int64, bool) {
	if math.IsNaN(f) || f < 0 || f > float64(maxExpiresIn) {
		return 0, false
	}
	return int64(f), true
}

func secondsInRange(n int64) (int64, bool) {
	if n < 0 || n > maxExpiresIn {
		return 0, false
	}
	return n, true
}
