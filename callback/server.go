// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/cap-authz/channel"
	"github.com/hashicorp/go-hclog"
)

var (
	ErrNilParameter = errors.New("nil parameter")
	ErrNotStarted   = errors.New("server not started")
)

// Server serves the Relay handler on a loopback address.
type Server struct {
	relay  *channel.Relay
	router *chi.Mux
	path   string
	port   int
	logger hclog.Logger

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
}

// NewServer creates a new Server which publishes to relay.
//
// Supported options: WithPort, WithPath, WithSuccessResponse, WithLogger
func NewServer(relay *channel.Relay, opt ...Option) (*Server, error) {
	const op = "callback.NewServer"
	if relay == nil {
		return nil, fmt.Errorf("%s: relay is nil: %w", op, ErrNilParameter)
	}
	opts := getCallbackOpts(opt...)

	s := &Server{
		relay:  relay,
		router: chi.NewRouter(),
		path:   opts.withPath,
		port:   opts.withPort,
		logger: opts.withLogger,
	}
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.NoCache)
	handler := Relay(relay, opt...)
	s.router.Get(s.path, handler)
	s.router.Post(s.path, handler)
	return s, nil
}

// Handler returns the Server's routes.
func (s *Server) Handler() http.Handler { return s.router }

// Start listens on 127.0.0.1 and serves in the background.
func (s *Server) Start() error {
	const op = "Server.Start"
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return nil
	}
	l, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(s.port)))
	if err != nil {
		return fmt.Errorf("%s: unable to listen: %w", op, err)
	}
	s.listener = l
	s.srv = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := s.srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("callback server stopped", "error", err)
		}
	}()
	s.logger.Debug("callback server started", "addr", l.Addr().String())
	return nil
}

// RedirectURI returns the URI of the redirect handler. It's empty until the
// Server is started.
func (s *Server) RedirectURI() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return "http://" + s.listener.Addr().String() + s.path
}

// Shutdown gracefully stops the Server.
func (s *Server) Shutdown(ctx context.Context) error {
	const op = "Server.Shutdown"
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv == nil {
		return fmt.Errorf("%s: %w", op, ErrNotStarted)
	}
	err := s.srv.Shutdown(ctx)
	s.srv, s.listener = nil, nil
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
