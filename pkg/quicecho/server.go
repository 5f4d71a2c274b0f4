package quicecho

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"
	"github.com/quic-go/webtransport-go"
)

// Config collects everything needed to start a Server, mirroring the
// teacher's chassis.Config shape: plain data, validated and defaulted in
// New rather than by a config-file schema.
type Config struct {
	// Addr is the UDP address to bind, "host:port". Defaults to DefaultAddr.
	Addr string

	// Credentials supplies the TLS certificate. If nil, New generates a
	// fresh self-signed development certificate (spec.md §6).
	Credentials *Credentials

	// Logger receives structured server/connection/stream events. Defaults
	// to slog.Default() if nil.
	Logger *slog.Logger

	// CheckOrigin validates the Origin header on WebTransport CONNECT
	// requests. Defaults to allowing any origin, matching a bare echo
	// server with no browser-side trust boundary of its own.
	CheckOrigin func(r *http.Request) bool
}

func (cfg *Config) setDefaults() error {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.CheckOrigin == nil {
		cfg.CheckOrigin = func(*http.Request) bool { return true }
	}
	if cfg.Credentials == nil {
		creds, err := GenerateDevCredentials()
		if err != nil {
			return fmt.Errorf("generate development credentials: %w", err)
		}
		cfg.Logger.Warn("no credentials configured, generated ephemeral development certificate",
			"sha256", creds.CertificateSHA256())
		cfg.Credentials = creds
	}
	return nil
}

// Server is the top-level QUIC echo / HTTP-3 / WebTransport server
// (component C11), the Go analogue of the teacher's chassis.Server but
// driving one UDP/QUIC listener instead of a TCP+UDP pair, since this
// protocol has no HTTP/1.1 or HTTP/2 fallback surface.
type Server struct {
	cfg Config

	listener *quic.Listener
	wtsrv    *webtransport.Server
	conns    *connRegistry

	wg sync.WaitGroup
}

// New validates cfg, applying defaults, and constructs a Server ready to
// Serve. It does not bind the socket yet — that happens in Serve, matching
// the teacher's New/Start split so a Server can be constructed and
// inspected before committing to a listening port.
func New(cfg Config) (*Server, error) {
	if err := cfg.setDefaults(); err != nil {
		return nil, err
	}
	return &Server{cfg: cfg, conns: newConnRegistry()}, nil
}

// Serve binds the UDP socket and runs the accept loop until ctx is
// cancelled or a fatal listener error occurs. It is the Go realization of
// spec.md §4.2-4.4's top-level event loop: quic.ListenAddr supplies the
// packet-level state machine, and this loop supplies per-connection
// dispatch and bookkeeping.
func (s *Server) Serve(ctx context.Context) error {
	tlsCfg := s.cfg.Credentials.TLSConfig()

	ln, err := quic.ListenAddr(s.cfg.Addr, tlsCfg, QUICConfig())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	s.listener = ln
	s.cfg.Logger.Info("quic echo server listening", "addr", ln.Addr().String())

	wtsrv := &webtransport.Server{
		H3: http3.Server{
			TLSConfig:       tlsCfg,
			QUICConfig:      QUICConfig(),
			EnableDatagrams: true,
		},
		CheckOrigin: s.cfg.CheckOrigin,
	}
	wtsrv.H3.Handler = newH3Mux(wtsrv, s.cfg.Logger)
	s.wtsrv = wtsrv

	go func() {
		<-ctx.Done()
		_ = ln.Close()
		_ = wtsrv.Close()
	}()

	defer s.wg.Wait()

	for {
		qconn, err := ln.Accept(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, quic.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		conn := s.conns.add(qconn, s.cfg.Logger)

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.conns.remove(conn.id)
			conn.serve(ctx, wtsrv)
		}()
	}
}

// Stop closes the listener and waits for in-flight connections to finish
// their teardown, the graceful-shutdown half of the teacher's
// cmd/server/main.go signal-driven lifecycle.
func (s *Server) Stop() error {
	if s.listener == nil {
		return nil
	}
	err := s.listener.Close()
	if s.wtsrv != nil {
		_ = s.wtsrv.Close()
	}
	s.wg.Wait()
	return err
}

// ActiveConnections reports the number of connections currently tracked by
// the registry, for health/metrics reporting.
func (s *Server) ActiveConnections() int {
	return s.conns.len()
}

