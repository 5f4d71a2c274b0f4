package quicecho

import (
	"crypto/tls"
	"time"

	"github.com/quic-go/quic-go"
)

// ALPN protocols this server advertises, in preference order — spec.md §3:
// "h3, then echo".
const (
	ALPNH3   = "h3"
	ALPNEcho = "echo"
)

// Transport parameters from spec.md §4.5, given literal names here instead
// of being buried in a single constructor so each is independently visible
// and testable.
const (
	initialMaxStreamDataBidi = 256 * 1024
	initialMaxStreamDataUni  = 256 * 1024
	initialMaxData           = 1024 * 1024
	initialMaxStreamsBidi    = 100
	initialMaxStreamsUni     = 10
	maxIdleTimeout           = 30 * time.Second
	maxDatagramFrameSize     = 65535

	// DefaultAddr is the wildcard IPv4 bind address and port from spec.md §4.2.
	DefaultAddr = "0.0.0.0:4433"

	// maxUDPPayload is referenced only for documentation purposes here —
	// quic-go owns datagram sizing internally (SPEC_FULL.md §4.9).
	maxUDPPayload = 1200
)

// QUICConfig builds the quic.Config carrying spec.md §4.5's transport
// parameters. 0-RTT is accepted (spec.md §4.10): the steady-state
// parameters apply identically to 0-RTT and 1-RTT connections because this
// is the only quic.Config the listener ever uses.
func QUICConfig() *quic.Config {
	return &quic.Config{
		InitialStreamReceiveWindow:     initialMaxStreamDataBidi,
		MaxStreamReceiveWindow:         initialMaxStreamDataBidi,
		InitialConnectionReceiveWindow: initialMaxData,
		MaxConnectionReceiveWindow:     initialMaxData,
		MaxIncomingStreams:             initialMaxStreamsBidi,
		MaxIncomingUniStreams:          initialMaxStreamsUni,
		MaxIdleTimeout:                 maxIdleTimeout,
		EnableDatagrams:                true,
		Allow0RTT:                      true,
	}
}

// baseTLSConfig returns the shared TLS 1.3 configuration with the
// [h3, echo] ALPN preference list from spec.md §3. Session tickets and
// early-data are the defaults Go's crypto/tls and quic-go already apply to
// a server tls.Config; there is nothing additional to opt into here.
func baseTLSConfig(cert tls.Certificate) *tls.Config {
	return &tls.Config{
		MinVersion:   tls.VersionTLS13,
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{ALPNH3, ALPNEcho},
	}
}
