// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package channel

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testFrame struct {
	detached atomic.Int32
}

func (f *testFrame) Detach() { f.detached.Add(1) }

// testLoader keeps the load func so tests can report loads.
type testLoader struct {
	mu     sync.Mutex
	url    string
	loaded func()
	frame  *testFrame
	err    error
}

func (l *testLoader) Load(_ context.Context, url string, loaded func()) (Frame, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	l.url, l.loaded, l.frame = url, loaded, &testFrame{}
	return l.frame, nil
}

func (l *testLoader) load() {
	l.mu.Lock()
	fn := l.loaded
	l.mu.Unlock()
	fn()
}

func TestNewNonInteractive(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	c, err := NewNonInteractive(nil)
	assert.ErrorIs(err, ErrNilParameter)
	assert.Nil(c)
}

func TestNonInteractive_Open(t *testing.T) {
	t.Parallel()
	t.Run("load-error", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)
		c, err := NewNonInteractive(&testLoader{err: errors.New("boom")})
		require.NoError(err)
		assert.Error(c.Open(context.Background(), "https://as.example.com/authorize"))
	})
	t.Run("twice", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)
		l := &testLoader{}
		c, err := NewNonInteractive(l, WithScheduler(&testScheduler{}))
		require.NoError(err)
		require.NoError(c.Open(context.Background(), "https://as.example.com/authorize"))
		assert.Equal("https://as.example.com/authorize", l.url)
		assert.ErrorIs(c.Open(context.Background(), "https://as.example.com/authorize"), ErrAlreadyOpened)
	})
}

func TestNonInteractive_TimedOut(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		ceiling  time.Duration
		wantFire time.Duration
	}{
		// ticks of 8, 16, 32... ms accumulate to 8, 24, 56, 120, 248, 504,
		// 1016, 2040 ms
		{name: "default", wantFire: 2040 * time.Millisecond},
		{name: "100ms", ceiling: 100 * time.Millisecond, wantFire: 120 * time.Millisecond},
		{name: "exact", ceiling: 504 * time.Millisecond, wantFire: 504 * time.Millisecond},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			sched := &testScheduler{}
			l := &testLoader{}
			c, err := NewNonInteractive(l, WithScheduler(sched), WithFrameTimeout(tt.ceiling))
			require.NoError(err)
			require.NoError(c.Open(context.Background(), "https://as.example.com/authorize"))
			l.load()

			sched.Advance(tt.wantFire - time.Millisecond)
			assert.False(isClosed(c.TimedOut()))
			sched.Advance(time.Millisecond)
			assert.True(isClosed(c.TimedOut()))
			assert.Equal(0, sched.Pending())

			// the ceiling is only reported once
			l.load()
			sched.Advance(10 * tt.wantFire)
			c.Teardown()
			assert.Equal(int32(1), l.frame.detached.Load())
		})
	}
}

func TestNonInteractive_LoadRestartsTimer(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	sched := &testScheduler{}
	l := &testLoader{}
	c, err := NewNonInteractive(l, WithScheduler(sched), WithFrameTimeout(100*time.Millisecond))
	require.NoError(err)
	require.NoError(c.Open(context.Background(), "https://as.example.com/authorize"))

	l.load()
	sched.Advance(100 * time.Millisecond)
	l.load()
	sched.Advance(119 * time.Millisecond)
	assert.False(isClosed(c.TimedOut()))
	sched.Advance(time.Millisecond)
	assert.True(isClosed(c.TimedOut()))
}

func TestNonInteractive_Teardown(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	sched := &testScheduler{}
	l := &testLoader{}
	c, err := NewNonInteractive(l, WithScheduler(sched))
	require.NoError(err)
	require.NoError(c.Open(context.Background(), "https://as.example.com/authorize"))
	l.load()
	assert.Equal(1, sched.Pending())

	c.Teardown()
	c.Teardown()
	assert.Equal(int32(1), l.frame.detached.Load())
	assert.Equal(0, sched.Pending())

	// loads after the teardown don't restart the timer
	l.load()
	sched.Advance(time.Minute)
	assert.Equal(0, sched.Pending())
	assert.False(isClosed(c.TimedOut()))
}

func TestHTTPFrameLoader_Load(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/b", http.StatusFound)
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/c", http.StatusFound)
	})
	mux.HandleFunc("/c", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("done"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	var loads atomic.Int32
	done := make(chan struct{})
	l := &HTTPFrameLoader{Client: srv.Client()}
	f, err := l.Load(context.Background(), srv.URL+"/a", func() {
		if loads.Add(1) == 3 {
			close(done)
		}
	})
	require.NoError(err)
	require.NotNil(f)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		require.Fail("frame never completed loading")
	}
	assert.Equal(int32(3), loads.Load())
	f.Detach()

	_, err = l.Load(context.Background(), srv.URL, nil)
	assert.ErrorIs(err, ErrNilParameter)
}

func TestHTTPFrameLoader_Detach(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	var loads atomic.Int32
	l := &HTTPFrameLoader{Client: srv.Client()}
	f, err := l.Load(context.Background(), srv.URL, func() { loads.Add(1) })
	require.NoError(err)
	f.Detach()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(int32(0), loads.Load())
}

func TestHTTPFrameLoader_Fragment(t *testing.T) {
	t.Parallel()

	var callbacks atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/authorize", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "http://"+r.Host+"/callback#access_token=at&state=s1", http.StatusFound)
	})
	mux.HandleFunc("/callback", func(w http.ResponseWriter, _ *http.Request) {
		callbacks.Add(1)
		_, _ = w.Write([]byte("callback page"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	tests := []struct {
		name          string
		publish       bool
		wantCallbacks int32
	}{
		{name: "published", publish: true},
		{name: "no-publisher", wantCallbacks: 1},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			callbacks.Store(0)

			relay := NewRelay()
			got := make(chan Message, 1)
			remove := relay.Listen(func(m Message) { got <- m })
			defer remove()

			l := &HTTPFrameLoader{Client: srv.Client()}
			if tt.publish {
				l.Publisher = relay
			}
			done := make(chan struct{})
			var loads atomic.Int32
			f, err := l.Load(context.Background(), srv.URL+"/authorize", func() {
				if loads.Add(1) == 2 {
					close(done)
				}
			})
			require.NoError(err)
			defer f.Detach()
			select {
			case <-done:
			case <-time.After(5 * time.Second):
				require.Fail("frame never completed loading")
			}

			assert.Equal(tt.wantCallbacks, callbacks.Load())
			if !tt.publish {
				assert.Len(got, 0)
				return
			}
			require.Len(got, 1)
			m := <-got
			assert.Equal(srv.URL, m.Origin)
			v, err := m.Values()
			require.NoError(err)
			assert.Equal("at", v.Get("access_token"))
			assert.Equal("s1", v.Get("state"))
		})
	}
}

func TestHTTPFrameLoader_LoadTimeout(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	// a request which never gets a response still counts as a load
	loaded := make(chan struct{})
	var once sync.Once
	l := &HTTPFrameLoader{Client: srv.Client(), LoadTimeout: 50 * time.Millisecond}
	f, err := l.Load(context.Background(), srv.URL, func() { once.Do(func() { close(loaded) }) })
	require.NoError(err)
	defer f.Detach()
	select {
	case <-loaded:
	case <-time.After(5 * time.Second):
		require.Fail("load never completed")
	}
}
