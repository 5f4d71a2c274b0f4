package quicecho

import (
	"context"
	"errors"
	"io"

	"github.com/quic-go/quic-go"

	"github.com/hazyhaar/iwa-quic-echo/pkg/kit"
)

// echoReadChunk bounds a single Read call on a raw echo stream. It is
// smaller than maxEchoBuffer so a stream whose reads and writes alternate
// makes steady progress instead of blocking on one giant read.
const echoReadChunk = 4096

// serveRawEchoStream implements spec.md's raw-echo stream semantics
// (component C10, §8 scenario 1): everything read from the stream is
// appended to its echo buffer and written back verbatim, in order, up to
// the 64 KiB cap; a FIN is echoed back once all buffered bytes have been
// written.
func (c *connection) serveRawEchoStream(ctx context.Context, str *quic.Stream) {
	id := str.StreamID()
	ctx = kit.WithStreamID(ctx, int64(id))
	logger := c.logger.With("stream", kit.GetStreamID(ctx))

	rec := c.streams.getOrCreate(id, classRawEcho)
	defer c.streams.remove(id)

	buf := make([]byte, echoReadChunk)
	readDone := false

	for {
		if !readDone {
			n, err := str.Read(buf)
			if n > 0 {
				if _, truncated := rec.appendEcho(buf[:n]); truncated {
					logger.Warn("echo buffer exceeded, truncating")
				}
			}
			if err != nil {
				readDone = true
				if errors.Is(err, io.EOF) {
					rec.setFin()
				} else {
					logger.Debug("echo stream read error", "error", err)
					str.CancelWrite(quic.StreamErrorCode(StreamErrNoError))
					return
				}
			}
		}

		if pending := rec.pending(); len(pending) > 0 {
			n, err := str.Write(pending)
			if n > 0 {
				rec.advance(n)
			}
			if err != nil {
				logger.Debug("echo stream write error", "error", err)
				return
			}
		}

		if readDone && rec.drained() {
			if rec.fin() {
				_ = str.Close()
			}
			return
		}
	}
}
