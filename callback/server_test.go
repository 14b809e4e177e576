// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hashicorp/cap-authz/channel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServer(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	s, err := NewServer(nil)
	assert.ErrorIs(err, ErrNilParameter)
	assert.Nil(s)
}

func TestServer_Handler(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)

	r := channel.NewRelay()
	var got []channel.Message
	defer r.Listen(func(m channel.Message) { got = append(got, m) })()

	s, err := NewServer(r, WithPath("/cb"))
	require.NoError(err)
	assert.Empty(s.RedirectURI())

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/cb?state=s1", nil))
	assert.Equal(http.StatusOK, w.Code)
	assert.Contains(w.Header().Get("Cache-Control"), "no-cache")
	require.Len(got, 1)
	assert.Equal("state=s1", got[0].Data)

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/callback?state=s1", nil))
	assert.Equal(http.StatusNotFound, w.Code)
}

func TestServer_StartShutdown(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)

	r := channel.NewRelay()
	published := make(chan channel.Message, 1)
	defer r.Listen(func(m channel.Message) { published <- m })()

	s, err := NewServer(r)
	require.NoError(err)
	assert.ErrorIs(s.Shutdown(context.Background()), ErrNotStarted)

	require.NoError(s.Start())
	require.NoError(s.Start())
	redirectURI := s.RedirectURI()
	assert.True(strings.HasPrefix(redirectURI, "http://127.0.0.1:"))
	assert.True(strings.HasSuffix(redirectURI, DefaultPath))

	resp, err := http.Get(redirectURI + "?state=s1&code=c1")
	require.NoError(err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(err)
	_ = resp.Body.Close()
	assert.Equal(http.StatusOK, resp.StatusCode)
	assert.Contains(string(body), "Authorization complete.")

	m := <-published
	params, err := m.Values()
	require.NoError(err)
	assert.Equal("c1", params.Get("code"))

	require.NoError(s.Shutdown(context.Background()))
	assert.Empty(s.RedirectURI())
}
