// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package authz

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/hashicorp/cap-authz/callback"
	"github.com/hashicorp/cap-authz/channel"
)

// StartTestRedirect starts a redirect page which publishes to a new
// channel.Relay. It returns the relay, to be used as the Authorizer's
// message source, and the redirect URI. The page is stopped when the test
// completes.
func StartTestRedirect(t *testing.T) (*channel.Relay, string) {
	t.Helper()
	relay := channel.NewRelay()
	srv := httptest.NewServer(callback.Relay(relay))
	t.Cleanup(srv.Close)
	return relay, srv.URL + callback.DefaultPath
}

// TestWindowOpener returns a channel.WindowOpener which follows the
// authorization request and its redirects with the provider's client, the
// way a browser window would. A redirect with a fragment is handled the way
// the callback page's script does: the page is loaded and the fragment is
// posted back to it. When closeAfterLoad is set the window reports being
// closed once the last page was loaded.
func (p *TestProvider) TestWindowOpener(closeAfterLoad bool) channel.WindowOpener {
	base := p.HTTPClient()
	return channel.WindowOpenerFunc(func(ctx context.Context, authURL string, _, _ int) (channel.Window, error) {
		w := &testWindow{}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, authURL, nil)
		if err != nil {
			return nil, err
		}
		var fragmentURL *url.URL
		client := *base
		client.CheckRedirect = func(req *http.Request, _ []*http.Request) error {
			if req.URL.Fragment != "" {
				u := *req.URL
				fragmentURL = &u
			}
			return nil
		}
		go func() {
			defer func() {
				if closeAfterLoad {
					_ = w.Close()
				}
			}()
			resp, err := client.Do(req)
			if err != nil {
				return
			}
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			if fragmentURL == nil {
				return
			}
			data := fragmentURL.EscapedFragment()
			fragmentURL.Fragment, fragmentURL.RawFragment = "", ""
			post, err := http.NewRequestWithContext(ctx, http.MethodPost, fragmentURL.String(), strings.NewReader(data))
			if err != nil {
				return
			}
			post.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			if resp, err := client.Do(post); err == nil {
				_, _ = io.Copy(io.Discard, resp.Body)
				_ = resp.Body.Close()
			}
		}()
		return w, nil
	})
}

type testWindow struct {
	mu     sync.Mutex
	closed bool
}

func (w *testWindow) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

func (w *testWindow) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}
