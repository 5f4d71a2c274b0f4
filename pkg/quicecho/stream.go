package quicecho

import (
	"sync"

	"github.com/quic-go/quic-go"
)

// streamClass tags a stream with the application protocol driving it. The
// tag is assigned at the first meaningful event for the stream: first
// receive in raw-echo mode, begin_headers in H3 mode, or elevation to a
// WebTransport/WebSocket class once an Extended CONNECT is seen.
type streamClass int

const (
	classUnknown streamClass = iota
	classRawEcho
	classH3Request
	classWTBidi
	classWTUni
	classWS
)

func (c streamClass) String() string {
	switch c {
	case classRawEcho:
		return "raw-echo"
	case classH3Request:
		return "h3-request"
	case classWTBidi:
		return "wt-bidi"
	case classWTUni:
		return "wt-uni"
	case classWS:
		return "websocket"
	default:
		return "unknown"
	}
}

// maxEchoBuffer is the per-stream echo buffer cap from spec.md §3. Excess
// input beyond this cap is truncated, and the raw-echo path logs a warning
// when that happens — see SPEC_FULL.md §9.
const maxEchoBuffer = 64 * 1024

// streamRecord is the Go realization of spec.md §3's Stream Record tuple.
// All fields that participate in an invariant are unexported; the type's
// methods are the only way to mutate them, so sendoff <= sendlen <= cap and
// the monotonicity of finReceived cannot be violated by a caller.
type streamRecord struct {
	mu sync.Mutex

	id    quic.StreamID
	class streamClass

	sendbuf []byte
	sendlen int
	sendoff int

	finReceived bool

	method   string
	path     string
	protocol string // the :protocol pseudo-header, e.g. "webtransport"/"websocket"

	wtSessionID int64
	hasWTSess   bool
}

func newStreamRecord(id quic.StreamID, class streamClass) *streamRecord {
	return &streamRecord{
		id:      id,
		class:   class,
		sendbuf: make([]byte, maxEchoBuffer),
	}
}

// Class/setClass let the classification be deferred to the first event
// that reveals it, per spec.md §9's "Stream tagging after the first event".
func (r *streamRecord) Class() streamClass {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.class
}

func (r *streamRecord) setClass(c streamClass) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.class = c
}

// appendEcho appends bytes to the echo buffer up to the 64 KiB cap,
// returning the number of bytes accepted and whether truncation occurred.
func (r *streamRecord) appendEcho(b []byte) (accepted int, truncated bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room := len(r.sendbuf) - r.sendlen
	if room <= 0 {
		return 0, len(b) > 0
	}
	n := len(b)
	if n > room {
		n = room
	}
	copy(r.sendbuf[r.sendlen:], b[:n])
	r.sendlen += n
	return n, n < len(b)
}

// pending returns the unsent suffix of the echo buffer without copying.
func (r *streamRecord) pending() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sendbuf[r.sendoff:r.sendlen]
}

func (r *streamRecord) advance(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sendoff += n
	if r.sendoff > r.sendlen {
		r.sendoff = r.sendlen
	}
}

func (r *streamRecord) drained() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sendoff >= r.sendlen
}

// setFin is monotone: once true, further calls are no-ops.
func (r *streamRecord) setFin() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finReceived = true
}

func (r *streamRecord) fin() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finReceived
}

func (r *streamRecord) setPseudoHeaders(method, path, protocol string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.method = truncateHeader(method)
	r.path = truncateHeader(path)
	r.protocol = truncateHeader(protocol)
}

func (r *streamRecord) pseudoHeaders() (method, path, protocol string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.method, r.path, r.protocol
}

func (r *streamRecord) setWTSession(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.wtSessionID = id
	r.hasWTSess = true
}

// maxPseudoHeaderLen bounds the copy performed by setPseudoHeaders so a
// malicious header value cannot grow a Stream Record without bound.
const maxPseudoHeaderLen = 2048

func truncateHeader(s string) string {
	if len(s) > maxPseudoHeaderLen {
		return s[:maxPseudoHeaderLen]
	}
	return s
}

// streamTable is the per-connection collection of stream records from
// spec.md §3's Stream Table (component C5), keyed by stream id.
type streamTable struct {
	mu      sync.Mutex
	records map[quic.StreamID]*streamRecord
}

func newStreamTable() *streamTable {
	return &streamTable{records: make(map[quic.StreamID]*streamRecord)}
}

// getOrCreate returns the existing record for id, or creates one classified
// as class if none exists yet (the "create on first event" rule).
func (t *streamTable) getOrCreate(id quic.StreamID, class streamClass) *streamRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rec, ok := t.records[id]; ok {
		return rec
	}
	rec := newStreamRecord(id, class)
	t.records[id] = rec
	return rec
}

func (t *streamTable) get(id quic.StreamID) (*streamRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[id]
	return rec, ok
}

// remove deletes the record for id. Per spec.md §8, this must happen before
// the next iteration of the event loop; callers invoke it from a deferred
// call in the same goroutine that drives the stream, so there is no window
// where a closed stream's record is still visible to a new dispatch.
func (t *streamTable) remove(id quic.StreamID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.records, id)
}

func (t *streamTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}

// forEach calls fn for every record currently in the table. fn must not
// mutate the table (no add/remove); mutating record state is fine.
func (t *streamTable) forEach(fn func(*streamRecord)) {
	t.mu.Lock()
	recs := make([]*streamRecord, 0, len(t.records))
	for _, r := range t.records {
		recs = append(recs, r)
	}
	t.mu.Unlock()
	for _, r := range recs {
		fn(r)
	}
}
