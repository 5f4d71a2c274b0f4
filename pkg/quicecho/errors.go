// Package quicecho implements the QUIC echo / HTTP-3 / WebTransport server
// core: connection accept, stream multiplexing, ALPN dispatch, and the
// echo semantics shared by the raw, HTTP/3, and WebTransport protocols.
package quicecho

import (
	"context"
	"errors"
	"fmt"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"
)

// QUIC application-error codes used to close a connection that never
// reached the H3 error-code space: ALPN negotiation still undecided, or
// settled on the raw "echo" protocol, which has no HTTP/3 framing and so no
// claim on RFC 9114 §8.1's error-code range. A connection that elevates to
// H3 closes with H3ErrorCode values instead (RFC 9114 places those codes
// directly in the QUIC application-error space) — see inferQUICAppErrorCode.
const (
	ErrCodeNoError         quic.ApplicationErrorCode = 0x00
	ErrCodeUnsupportedALPN quic.ApplicationErrorCode = 0x01
	ErrCodeInternal        quic.ApplicationErrorCode = 0x02
)

// StreamErrNoError is used on CancelWrite when a raw-echo
// stream's read side fails for a reason other than a clean FIN.
const StreamErrNoError quic.StreamErrorCode = 0x00

// H3ErrorCode mirrors the HTTP/3 error-code space (RFC 9114 §8.1), which the
// handshake dispatcher maps QUIC application-error closes onto when H3 is
// active. Named the way the vendored http3/errors.go reference names them.
type H3ErrorCode quic.ApplicationErrorCode

const (
	H3NoError              H3ErrorCode = 0x100
	H3GeneralProtocolError H3ErrorCode = 0x101
	H3InternalError        H3ErrorCode = 0x102
	H3StreamCreationError  H3ErrorCode = 0x103
	H3FrameUnexpected      H3ErrorCode = 0x105
	H3FrameError           H3ErrorCode = 0x106
	H3SettingsError        H3ErrorCode = 0x109
	H3MissingSettings      H3ErrorCode = 0x10a
	H3RequestIncomplete    H3ErrorCode = 0x10d
	H3ConnectError         H3ErrorCode = 0x10f

	// https://www.ietf.org/archive/id/draft-ietf-webtrans-http3-01.html#section-7.5
	H3WebTransportBufferedStreamRejected H3ErrorCode = 0x3994bd84
)

func (e H3ErrorCode) String() string {
	switch e {
	case H3NoError:
		return "H3_NO_ERROR"
	case H3GeneralProtocolError:
		return "H3_GENERAL_PROTOCOL_ERROR"
	case H3InternalError:
		return "H3_INTERNAL_ERROR"
	case H3StreamCreationError:
		return "H3_STREAM_CREATION_ERROR"
	case H3FrameUnexpected:
		return "H3_FRAME_UNEXPECTED"
	case H3FrameError:
		return "H3_FRAME_ERROR"
	case H3SettingsError:
		return "H3_SETTINGS_ERROR"
	case H3MissingSettings:
		return "H3_MISSING_SETTINGS"
	case H3RequestIncomplete:
		return "H3_INCOMPLETE_REQUEST"
	case H3ConnectError:
		return "H3_CONNECT_ERROR"
	case H3WebTransportBufferedStreamRejected:
		return "H3_WEBTRANSPORT_BUFFERED_STREAM_REJECTED"
	default:
		return fmt.Sprintf("unknown H3 error 0x%x", uint64(e))
	}
}

var (
	ErrUnknownALPN      = errors.New("quicecho: no supported ALPN offered by peer")
	ErrConnectionClosed = errors.New("quicecho: connection closed")
)

// connError associates a QUIC application-error code with an underlying
// cause, mirroring the vendored http3/errors.go connError/streamError shape.
type connError struct {
	Code H3ErrorCode
	Err  error
}

func (e *connError) Error() string { return fmt.Sprintf("connection error %s: %s", e.Code, e.Err) }
func (e *connError) Unwrap() error { return e.Err }

// inferQUICAppErrorCode maps a connection's terminal error onto the QUIC
// application-error code placed in its close frame, the Go analogue of
// spec.md's "err_infer_quic_app_error_code" library call. p picks which
// error-code space applies: an H3 connection closes with HTTP/3's codes;
// everything else (ALPN never decided, or decided to the raw "echo"
// protocol) closes with this package's own small code space.
func inferQUICAppErrorCode(p proto, err error) quic.ApplicationErrorCode {
	if err == nil || errors.Is(err, context.Canceled) {
		if p == protoH3 {
			return quic.ApplicationErrorCode(H3NoError)
		}
		return ErrCodeNoError
	}
	if errors.Is(err, ErrUnknownALPN) {
		return ErrCodeUnsupportedALPN
	}
	var ce *connError
	if errors.As(err, &ce) {
		return quic.ApplicationErrorCode(ce.Code)
	}
	var herr *http3.Error
	if errors.As(err, &herr) {
		return quic.ApplicationErrorCode(herr.ErrorCode)
	}
	if p == protoH3 {
		return quic.ApplicationErrorCode(H3InternalError)
	}
	return ErrCodeInternal
}
