package quicecho

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/quic-go/quic-go/http3"
	"github.com/quic-go/webtransport-go"

	"github.com/hazyhaar/iwa-quic-echo/pkg/kit"
)

// wellKnownPath answers draft IWA WebTransport capability discovery so a
// browser's Isolated Web App can confirm the server speaks WebTransport
// before attempting the handshake — a feature supplemented from
// original_source/'s capability-check endpoint, absent from the distilled
// spec but natural for this component (SPEC_FULL.md §4.8).
const wellKnownPath = "/.well-known/webtransport"

// h3Mux is the single http.Handler shared by every HTTP/3 connection,
// mirroring how webtransport-go itself expects to be wired: one
// *webtransport.Server, one mux, requests dispatched by path and method.
// Component C8 (H3 request handling and Extended CONNECT dispatch) lives
// here: ordinary GET requests are answered directly, while a
// CONNECT whose :protocol is "webtransport" or "websocket" is handed off to
// the matching upgrade path.
type h3Mux struct {
	wtsrv      *webtransport.Server
	wtSessions *webtransportSessions
	h3Streams  *streamTable
	logger     *slog.Logger
}

func newH3Mux(wtsrv *webtransport.Server, logger *slog.Logger) *h3Mux {
	return &h3Mux{
		wtsrv:      wtsrv,
		wtSessions: newWebTransportSessions(),
		h3Streams:  newStreamTable(),
		logger:     logger,
	}
}

func (m *h3Mux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodConnect {
		m.dispatchExtendedConnect(w, r)
		return
	}
	switch r.URL.Path {
	case "/":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "quic echo server\n")
	case wellKnownPath:
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "webtransport\n")
	default:
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}
}

// dispatchExtendedConnect realizes the Extended CONNECT part of spec.md
// component C8: an Extended
// CONNECT request (RFC 9220) carries a :protocol pseudo-header naming the
// sub-protocol being tunneled. Go's HTTP/2-and-up stacks never surface a
// pseudo-header through Request.Header (that map holds only regular field
// lines); quic-go/http3 instead carries the negotiated value on
// Request.Proto, the same place the client-side encoder in
// other_examples' connect-http3.go sets it when building the CONNECT
// request. "webtransport" upgrades into a WebTransport session;
// "websocket" (RFC 9220 WebSocket-over-HTTP/3) is answered with 200 and the
// CONNECT stream's body is echoed verbatim, without WebSocket frame
// parsing. Any other protocol is answered with 405.
func (m *h3Mux) dispatchExtendedConnect(w http.ResponseWriter, r *http.Request) {
	protocolHdr := r.Proto
	switch protocolHdr {
	case "webtransport":
		sess, err := m.wtsrv.Upgrade(w, r)
		if err != nil {
			m.logger.Warn("webtransport upgrade rejected", "error", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		serveWebTransportSession(r, sess, m.wtSessions, m.logger)
	case "websocket":
		m.handleWebSocketOverH3(w, r)
	default:
		m.logger.Warn("extended connect with unsupported protocol", "protocol", protocolHdr)
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleWebSocketOverH3 implements the WebSocket-over-HTTP/3 echo scenario
// supplemented in SPEC_FULL.md §8: a 200 response to the CONNECT (no
// Sec-WebSocket-Accept or other handshake header is computed) followed by
// verbatim byte echo, deliberately without frame parsing, since
// this component exercises Extended CONNECT plumbing rather than a full
// WebSocket implementation.
func (m *h3Mux) handleWebSocketOverH3(w http.ResponseWriter, r *http.Request) {
	streamer, ok := w.(http3.HTTPStreamer)
	if !ok {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)

	str := streamer.HTTPStream()
	defer str.Close()

	id := str.StreamID()
	ctx := kit.WithStreamID(r.Context(), int64(id))
	logger := m.logger.With("stream", kit.GetStreamID(ctx))

	rec := m.h3Streams.getOrCreate(id, classWS)
	rec.setPseudoHeaders(r.Method, r.URL.Path, "websocket")
	defer m.h3Streams.remove(id)

	buf := make([]byte, echoReadChunk)
	for {
		n, err := str.Read(buf)
		if n > 0 {
			if _, werr := str.Write(buf[:n]); werr != nil {
				logger.Debug("websocket-over-h3 write error", "error", werr)
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) {
				logger.Debug("websocket-over-h3 read error", "error", err)
			}
			return
		}
	}
}
