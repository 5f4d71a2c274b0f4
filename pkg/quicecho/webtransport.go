package quicecho

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/quic-go/webtransport-go"

	"github.com/hazyhaar/iwa-quic-echo/pkg/kit"
)

// webtransportSessions tracks the WebTransport sessions live on the server,
// keyed by a locally assigned id — the Go analogue of spec.md §9's "WT
// DATAGRAM session association" design note. webtransport-go parses and
// re-encodes the quarter-stream-id prefix on every datagram itself, so this
// table only needs to remember which sessions exist for bookkeeping and
// shutdown, not to do the framing by hand. It is shared across HTTP/3
// connections the same way the *webtransport.Server itself is shared,
// since a session's lifetime is driven by its own CONNECT stream rather
// than by the QUIC connection object this package otherwise tracks.
type webtransportSessions struct {
	mu   sync.Mutex
	set  map[uint64]*webtransport.Session
	next uint64
}

func newWebTransportSessions() *webtransportSessions {
	return &webtransportSessions{set: make(map[uint64]*webtransport.Session)}
}

func (w *webtransportSessions) add(sess *webtransport.Session) uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.next++
	id := w.next
	w.set[id] = sess
	return id
}

func (w *webtransportSessions) remove(id uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.set, id)
}

func (w *webtransportSessions) len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.set)
}

// serveWebTransportSession serves a WebTransport session, already upgraded
// by dispatchExtendedConnect from an Extended CONNECT request whose
// :protocol is "webtransport", until the session closes — component C8's
// WebTransport path, §8 scenario 4.
//
// webtransport-go's Upgrade handles the draft-02 response handshake
// (sec-webtransport-http3-draft header, 200 status on the CONNECT stream)
// internally; everything after that is this server's echo semantics applied
// to WT streams and datagrams instead of raw QUIC ones.
func serveWebTransportSession(r *http.Request, sess *webtransport.Session, sessions *webtransportSessions, logger *slog.Logger) {
	id := sessions.add(sess)
	defer sessions.remove(id)

	logger.Info("webtransport session established", "wt_session", id, "path", r.URL.Path)

	ctx := sess.Context()
	// webtransport.Stream exposes no wire-level stream id to application
	// code, unlike *quic.Stream/http3's HTTPStream; streamSeq is this
	// package's own locally assigned sequence for log correlation, the
	// same "locally assigned id" precedent webtransportSessions itself
	// documents for session bookkeeping.
	var streamSeq atomic.Uint64

	var wg sync.WaitGroup
	defer wg.Wait()

	wg.Add(1)
	go func() {
		defer wg.Done()
		wtAcceptDatagrams(ctx, sess, id, logger)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		wtAcceptUniStreams(ctx, sess, id, &streamSeq, logger)
	}()

	for {
		str, err := sess.AcceptStream(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				logger.Debug("webtransport accept stream ended", "wt_session", id, "error", err)
			}
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			serveWTBidiStream(ctx, str, id, streamSeq.Add(1), logger)
		}()
	}
}

// serveWTBidiStream echoes a WebTransport bidirectional stream back in
// order, as a raw-echo stream does (§8 scenario 4), but writes each chunk
// straight back without a stream record, so the 64 KiB echo-buffer cap does
// not apply: the framing difference between a QUIC stream and a WT stream
// is entirely handled by webtransport-go, so the echo loop itself is
// protocol-agnostic over the io.Reader/io.Writer pair.
func serveWTBidiStream(ctx context.Context, str webtransport.Stream, wtSessionID, streamSeq uint64, logger *slog.Logger) {
	ctx = kit.WithStreamID(ctx, int64(streamSeq))
	logger = logger.With("wt_session", wtSessionID, "stream", kit.GetStreamID(ctx))

	buf := make([]byte, echoReadChunk)
	for {
		n, err := str.Read(buf)
		if n > 0 {
			if _, werr := str.Write(buf[:n]); werr != nil {
				logger.Debug("wt bidi stream write error", "error", werr)
				return
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				_ = str.Close()
			} else {
				logger.Debug("wt bidi stream read error", "error", err)
			}
			return
		}
	}
}

// wtAcceptUniStreams echoes each incoming unidirectional stream's content
// onto a freshly opened outgoing unidirectional stream, since WebTransport
// uni streams have no reverse direction to reuse (§8 scenario 4's
// send_stream/receive_stream pairing). streamSeq assigns each accepted
// stream the same kind of locally-scoped log id serveWTBidiStream uses.
func wtAcceptUniStreams(ctx context.Context, sess *webtransport.Session, wtSessionID uint64, streamSeq *atomic.Uint64, logger *slog.Logger) {
	for {
		rstr, err := sess.AcceptUniStream(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				logger.Debug("wt accept uni stream ended", "wt_session", wtSessionID, "error", err)
			}
			return
		}
		streamCtx := kit.WithStreamID(ctx, int64(streamSeq.Add(1)))
		streamLogger := logger.With("wt_session", wtSessionID, "stream", kit.GetStreamID(streamCtx))
		go func() {
			data, err := io.ReadAll(rstr)
			if err != nil {
				streamLogger.Debug("wt uni stream read error", "error", err)
				return
			}
			wstr, err := sess.OpenUniStreamSync(ctx)
			if err != nil {
				streamLogger.Debug("wt open uni stream failed", "error", err)
				return
			}
			defer wstr.Close()
			if _, err := wstr.Write(data); err != nil {
				streamLogger.Debug("wt uni stream write error", "error", err)
			}
		}()
	}
}

// wtAcceptDatagrams echoes WebTransport session datagrams, §8 scenario 5:
// the session-id quarter-stream-id prefix is stripped and reapplied by
// webtransport-go's Session.Receive/SendDatagram, so this loop only ever
// sees application payload.
func wtAcceptDatagrams(ctx context.Context, sess *webtransport.Session, wtSessionID uint64, logger *slog.Logger) {
	for {
		data, err := sess.ReceiveDatagram(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				logger.Debug("wt datagram receive ended", "wt_session", wtSessionID, "error", err)
			}
			return
		}
		if err := sess.SendDatagram(data); err != nil {
			logger.Debug("wt datagram echo failed", "wt_session", wtSessionID, "error", err)
			return
		}
	}
}
