// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package authz

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewToken(t *testing.T) {
	t.Parallel()
	received := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	tests := []struct {
		name      string
		fields    map[string]interface{}
		requested []string
		want      *Token
	}{
		{
			name:      "defaults",
			fields:    map[string]interface{}{"accessToken": "at"},
			requested: []string{"openid", "email"},
			want: &Token{
				AccessToken:    "at",
				TokenType:      DefaultTokenType,
				Scopes:         []string{"openid", "email"},
				ExpiresIn:      DefaultExpiresIn,
				ExpiresAssumed: true,
				ExpiresAt:      received.Add(DefaultExpiresIn * time.Second),
			},
		},
		{
			name: "everything",
			fields: map[string]interface{}{
				"accessToken":  "at",
				"refreshToken": "rt",
				"idToken":      "it",
				"tokenType":    "mac",
				"scope":        "a b",
				"expiresIn":    json.Number("60"),
				"state":        "s1",
				"customField":  "c",
			},
			requested: []string{"x"},
			want: &Token{
				AccessToken:  "at",
				RefreshToken: "rt",
				IDToken:      "it",
				TokenType:    "mac",
				Scopes:       []string{"a", "b"},
				ExpiresIn:    60,
				ExpiresAt:    received.Add(time.Minute),
				State:        "s1",
				Extra:        map[string]interface{}{"customField": "c"},
			},
		},
		{
			name: "string-expiry-and-scope-list",
			fields: map[string]interface{}{
				"accessToken": "at",
				"expiresIn":   "120",
				"scope":       []interface{}{"a", "", "b"},
			},
			want: &Token{
				AccessToken: "at",
				TokenType:   DefaultTokenType,
				Scopes:      []string{"a", "b"},
				ExpiresIn:   120,
				ExpiresAt:   received.Add(2 * time.Minute),
			},
		},
		{
			name: "unparsable-expiry",
			fields: map[string]interface{}{
				"accessToken": "at",
				"expiresIn":   "soon",
			},
			want: &Token{
				AccessToken:    "at",
				TokenType:      DefaultTokenType,
				ExpiresIn:      DefaultExpiresIn,
				ExpiresAssumed: true,
				ExpiresAt:      received.Add(DefaultExpiresIn * time.Second),
			},
		},
	}
	for _, expiry := range []interface{}{
		"-5",
		int64(-5),
		json.Number("10000000000"),
		float64(1e19),
		"1e19",
		int64(maxExpiresIn + 1),
	} {
		tests = append(tests, struct {
			name      string
			fields    map[string]interface{}
			requested []string
			want      *Token
		}{
			name:   fmt.Sprintf("out-of-range-expiry-%T-%v", expiry, expiry),
			fields: map[string]interface{}{"accessToken": "at", "expiresIn": expiry},
			want: &Token{
				AccessToken:    "at",
				TokenType:      DefaultTokenType,
				ExpiresIn:      DefaultExpiresIn,
				ExpiresAssumed: true,
				ExpiresAt:      received.Add(DefaultExpiresIn * time.Second),
			},
		})
	}
	tests = append(tests, struct {
		name      string
		fields    map[string]interface{}
		requested []string
		want      *Token
	}{
		name:   "largest-expiry",
		fields: map[string]interface{}{"accessToken": "at", "expiresIn": json.Number(strconv.FormatInt(maxExpiresIn, 10))},
		want: &Token{
			AccessToken: "at",
			TokenType:   DefaultTokenType,
			ExpiresIn:   maxExpiresIn,
			ExpiresAt:   received.Add(time.Duration(maxExpiresIn) * time.Second),
		},
	})
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := NewToken(tt.fields, tt.requested, received)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("NewToken() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestToken_Valid(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)

	var nilToken *Token
	assert.False(nilToken.Valid())
	assert.False((&Token{}).Valid())
	assert.True((&Token{AccessToken: "at"}).Valid())
	assert.True((&Token{AccessToken: "at", ExpiresAt: time.Now().Add(time.Hour)}).Valid())
	assert.False((&Token{AccessToken: "at", ExpiresAt: time.Now().Add(-time.Hour)}).Valid())
	assert.True((&Token{AccessToken: "at", ExpiresAt: time.Now().Add(5 * time.Second)}).Expired())
}

func TestToken_Redacted(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)

	tk := NewToken(map[string]interface{}{
		"accessToken":  "secret-at",
		"refreshToken": "secret-rt",
		"idToken":      "secret-it",
	}, nil, time.Now())
	raw, err := json.Marshal(tk)
	require.NoError(err)
	assert.NotContains(string(raw), "secret-")
	assert.Contains(string(raw), RedactedAccessToken)
	assert.Contains(string(raw), RedactedRefreshToken)
	assert.Contains(string(raw), RedactedIDToken)
	assert.Equal(RedactedAccessToken, tk.AccessToken.String())
}

func TestCamelCase(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"access_token":      "accessToken",
		"error_description": "errorDescription",
		"x-custom-header":   "xCustomHeader",
		"state":             "state",
		"expiresIn":         "expiresIn",
		"__":                "__",
	}
	for in, want := range tests {
		assert.Equal(t, want, CamelCase(in), in)
	}
}

func TestCamelCaseValues(t *testing.T) {
	t.Parallel()
	got := CamelCaseValues(url.Values{
		"access_token": {"at", "ignored"},
		"expires_in":   {"60"},
	})
	assert.Equal(t, map[string]interface{}{"accessToken": "at", "expiresIn": "60"}, got)
}
