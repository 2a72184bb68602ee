// Package server exposes a running scene for inspection over Connect.
//
// The same handlers answer the Connect protocol (HTTP/JSON or binary
// protobuf over HTTP/1.1) and gRPC (over cleartext HTTP/2). Messages are the
// well-known protobuf types, so clients need no generated code; Client is a
// gRPC client for the service.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"

	"connectrpc.com/connect"
	"github.com/tliron/commonlog"

	"github.com/chazu/hostbridge/bridge"
	"github.com/chazu/hostbridge/host"
	"github.com/chazu/hostbridge/journal"
	"github.com/chazu/hostbridge/script"
)

var log = commonlog.GetLogger("hostbridge.server")

// InspectServer serves the inspection service for one scene and domain.
type InspectServer struct {
	service *InspectService
	mux     *http.ServeMux

	mu         sync.Mutex
	httpServer *http.Server
}

// ServerOption configures an InspectServer.
type ServerOption func(*serverConfig)

type serverConfig struct {
	cache    *bridge.HookCache
	profiler *script.Profiler
	journal  *journal.Journal
	handler  []connect.HandlerOption
}

// WithCache sets the hook table cache reported by ListHookTables. Defaults to
// bridge.DefaultCache.
func WithCache(c *bridge.HookCache) ServerOption {
	return func(cfg *serverConfig) { cfg.cache = c }
}

// WithProfiler enables the Profile procedure.
func WithProfiler(p *script.Profiler) ServerOption {
	return func(cfg *serverConfig) { cfg.profiler = p }
}

// WithJournal enables the Journal procedure.
func WithJournal(j *journal.Journal) ServerOption {
	return func(cfg *serverConfig) { cfg.journal = j }
}

// WithHandlerOptions passes options to every Connect handler.
func WithHandlerOptions(opts ...connect.HandlerOption) ServerOption {
	return func(cfg *serverConfig) { cfg.handler = append(cfg.handler, opts...) }
}

// New creates an InspectServer. All scene access goes through loop.
func New(loop *host.Loop, d *script.Domain, opts ...ServerOption) *InspectServer {
	cfg := &serverConfig{cache: bridge.DefaultCache()}
	for _, opt := range opts {
		opt(cfg)
	}

	svc := NewInspectService(loop, d, cfg.cache, cfg.profiler, cfg.journal)
	s := &InspectServer{
		service: svc,
		mux:     http.NewServeMux(),
	}

	// Register Connect/gRPC handlers
	s.mux.Handle(ListObjectsProcedure, connect.NewUnaryHandler(ListObjectsProcedure, svc.ListObjects, cfg.handler...))
	s.mux.Handle(ListClassesProcedure, connect.NewUnaryHandler(ListClassesProcedure, svc.ListClasses, cfg.handler...))
	s.mux.Handle(ListHookTablesProcedure, connect.NewUnaryHandler(ListHookTablesProcedure, svc.ListHookTables, cfg.handler...))
	s.mux.Handle(ProfileProcedure, connect.NewUnaryHandler(ProfileProcedure, svc.Profile, cfg.handler...))
	s.mux.Handle(JournalProcedure, connect.NewUnaryHandler(JournalProcedure, svc.Journal, cfg.handler...))
	s.mux.Handle(SnapshotProcedure, connect.NewUnaryHandler(SnapshotProcedure, svc.Snapshot, cfg.handler...))
	s.mux.Handle(StepProcedure, connect.NewUnaryHandler(StepProcedure, svc.Step, cfg.handler...))

	return s
}

// Service returns the service the handlers dispatch to.
func (s *InspectServer) Service() *InspectService { return s.service }

// Handler returns the HTTP handler serving every procedure.
func (s *InspectServer) Handler() http.Handler { return s.mux }

// ListenAndServe starts the HTTP server on the given address.
// The address should be in the form "host:port" or ":port". It returns nil
// after Stop.
func (s *InspectServer) ListenAndServe(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(l)
}

// Serve accepts connections on l, speaking HTTP/1.1 and cleartext HTTP/2 so
// that Connect and gRPC clients share one port. It returns nil after Stop.
func (s *InspectServer) Serve(l net.Listener) error {
	protocols := new(http.Protocols)
	protocols.SetHTTP1(true)
	protocols.SetUnencryptedHTTP2(true)
	srv := &http.Server{
		Handler:   s.mux,
		Protocols: protocols,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	addr := l.Addr().String()
	log.Infof("inspection server listening on %s", addr)
	log.Infof("  Connect (HTTP/JSON): http://%s%s", addr, ListObjectsProcedure)
	log.Infof("  gRPC (h2c):          grpc://%s", addr)
	if err := srv.Serve(l); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts down the server, waiting for in-flight requests until ctx ends.
func (s *InspectServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	log.Infof("inspection server stopping")
	return srv.Shutdown(ctx)
}
