package quicecho

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/webtransport-go"

	"github.com/hazyhaar/iwa-quic-echo/pkg/kit"
)

// proto is the application protocol a connection was elevated to, decided
// once from the negotiated ALPN and immutable thereafter — spec.md §3.
type proto int

const (
	protoUnset proto = iota
	protoEcho
	protoH3
)

// connection is the Go realization of spec.md §3's Connection Record
// (component C6). Unlike the C reference's callback-mutated struct, proto
// is guarded so that only its first write takes effect; later writes are
// ignored.
type connection struct {
	id     uint64
	qconn  *quic.Conn
	logger *slog.Logger

	streams *streamTable

	protoOnce sync.Once
	protoVal  atomic.Int32 // proto, set exactly once

	lastErrMu sync.Mutex
	lastErr   error
}

// newConnection wraps an accepted *quic.Conn. Only the raw-echo ALPN path
// drives a connection through its own streamTable directly; the HTTP/3 and
// WebTransport paths hand the *quic.Conn off to the shared
// *webtransport.Server and never touch this struct again (see Server.Serve).
func newConnection(id uint64, qconn *quic.Conn, logger *slog.Logger) *connection {
	return &connection{
		id:      id,
		qconn:   qconn,
		logger:  logger.With("conn", id, "remote", qconn.RemoteAddr().String()),
		streams: newStreamTable(),
	}
}

func (c *connection) proto() proto { return proto(c.protoVal.Load()) }

// setProto sets proto exactly once. Per spec.md §3's invariant, a second
// call is a bug in the caller; it is a silent no-op on subsequent calls
// rather than a panic, since a racing duplicate dispatch attempt must not
// crash the server.
func (c *connection) setProto(p proto) {
	c.protoOnce.Do(func() {
		c.protoVal.Store(int32(p))
	})
}

func (c *connection) setLastError(err error) {
	c.lastErrMu.Lock()
	defer c.lastErrMu.Unlock()
	if c.lastErr == nil {
		c.lastErr = err
	}
}

func (c *connection) getLastError() error {
	c.lastErrMu.Lock()
	defer c.lastErrMu.Unlock()
	return c.lastErr
}

// serve drives one accepted connection end to end: reads the negotiated
// ALPN once the handshake is confirmed (spec.md §4.5's "ALPN result is read
// immediately after this first read"), dispatches to the raw-echo or HTTP/3
// path, and blocks until the connection is torn down. This is the
// Go-idiomatic rendering of spec.md §4.3/§4.4's event loop for a single
// connection: quic-go supplies the timers and packet pump, this method
// supplies the protocol dispatch and the write-back semantics.
func (c *connection) serve(ctx context.Context, wtsrv *webtransport.Server) {
	ctx = kit.WithConnID(ctx, c.id)

	defer func() {
		if err := c.qconn.CloseWithError(inferQUICAppErrorCode(c.proto(), c.getLastError()), ""); err != nil {
			c.logger.Debug("connection close", "error", err)
		}
	}()

	state := c.qconn.ConnectionState() // blocks until handshake completion
	alpn := state.TLS.NegotiatedProtocol

	switch alpn {
	case ALPNH3:
		c.setProto(protoH3)
		ctx = kit.WithTransport(ctx, "h3")
		c.logger.Info("connection elevated to HTTP/3")
		if err := wtsrv.H3.ServeQUICConn(c.qconn); err != nil {
			c.setLastError(err)
			c.logger.Debug("h3 connection ended", "error", err)
		}
	case ALPNEcho:
		c.setProto(protoEcho)
		ctx = kit.WithTransport(ctx, "echo")
		c.logger.Info("connection in raw-echo mode")
		c.serveEcho(ctx)
	default:
		c.logger.Warn("unsupported ALPN offered", "alpn", alpn)
		c.setLastError(fmt.Errorf("%w: %q", ErrUnknownALPN, alpn))
	}
}

// serveEcho is the raw-echo event loop (C7/C10 for ALPNEcho): it accepts
// streams and datagrams and spawns one goroutine per stream, the
// Go-idiomatic equivalent of the C reference's single-threaded per-stream
// callback dispatch. Ordering within a stream is preserved because each
// stream is driven by exactly one goroutine doing sequential reads/writes;
// there is, as spec.md §5 requires, no ordering guarantee between streams.
func (c *connection) serveEcho(ctx context.Context) {
	var wg sync.WaitGroup
	defer wg.Wait()

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.acceptDatagrams(ctx)
	}()

	for {
		str, err := c.qconn.AcceptStream(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				c.logger.Debug("accept stream ended", "error", err)
			}
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.serveRawEchoStream(ctx, str)
		}()
	}
}

// acceptDatagrams implements spec.md §4.6's recv_datagram callback: echo
// the datagram back unchanged (§8 scenario 5 in raw-echo mode has no
// session framing to parse — that only applies to WebTransport datagrams,
// handled separately in webtransport.go).
func (c *connection) acceptDatagrams(ctx context.Context) {
	for {
		data, err := c.qconn.ReceiveDatagram(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				c.logger.Debug("datagram receive ended", "error", err)
			}
			return
		}
		if err := c.qconn.SendDatagram(data); err != nil {
			c.logger.Debug("datagram echo failed", "error", err)
			return
		}
	}
}

// connRegistry is the hash-map-of-connections design note from spec.md §9,
// implemented directly rather than deferred: "lift this to a hash map
// keyed by server-chosen SCID". Since quic-go already demultiplexes inbound
// packets to the right *quic.Conn before this module sees them, the key
// here is a monotonic accept sequence number rather than a raw CID — the
// registry's job is bookkeeping and graceful shutdown, not packet routing.
type connRegistry struct {
	mu      sync.Mutex
	byID    map[uint64]*connection
	nextID  atomic.Uint64
}

func newConnRegistry() *connRegistry {
	return &connRegistry{byID: make(map[uint64]*connection)}
}

func (r *connRegistry) add(qconn *quic.Conn, logger *slog.Logger) *connection {
	id := r.nextID.Add(1)
	c := newConnection(id, qconn, logger)

	r.mu.Lock()
	r.byID[id] = c
	r.mu.Unlock()
	return c
}

func (r *connRegistry) remove(id uint64) {
	r.mu.Lock()
	delete(r.byID, id)
	r.mu.Unlock()
}

func (r *connRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}
