package quicecho

import "testing"

func TestStreamRecordAppendEchoCapsAt64KiB(t *testing.T) {
	rec := newStreamRecord(0, classRawEcho)

	big := make([]byte, maxEchoBuffer+100)
	for i := range big {
		big[i] = byte(i)
	}

	accepted, truncated := rec.appendEcho(big)
	if accepted != maxEchoBuffer {
		t.Fatalf("accepted = %d, want %d", accepted, maxEchoBuffer)
	}
	if !truncated {
		t.Fatal("expected truncated = true for an over-cap write")
	}

	accepted2, truncated2 := rec.appendEcho([]byte("more"))
	if accepted2 != 0 {
		t.Fatalf("accepted2 = %d, want 0 once buffer is full", accepted2)
	}
	if !truncated2 {
		t.Fatal("expected truncated = true once the buffer has no room left")
	}
}

func TestStreamRecordPendingAdvanceDrained(t *testing.T) {
	rec := newStreamRecord(0, classRawEcho)

	if _, truncated := rec.appendEcho([]byte("hello")); truncated {
		t.Fatal("unexpected truncation for a 5-byte write")
	}
	if rec.drained() {
		t.Fatal("record should not be drained before any bytes are sent")
	}

	pending := rec.pending()
	if string(pending) != "hello" {
		t.Fatalf("pending = %q, want %q", pending, "hello")
	}

	rec.advance(3)
	if rec.drained() {
		t.Fatal("record should not be drained after a partial advance")
	}
	if got := string(rec.pending()); got != "lo" {
		t.Fatalf("pending after advance = %q, want %q", got, "lo")
	}

	rec.advance(2)
	if !rec.drained() {
		t.Fatal("record should be drained once sendoff reaches sendlen")
	}

	// advance past sendlen must clamp, not overshoot.
	rec.advance(100)
	if !rec.drained() {
		t.Fatal("record should remain drained after an over-advance")
	}
}

func TestStreamRecordFinIsMonotone(t *testing.T) {
	rec := newStreamRecord(0, classRawEcho)
	if rec.fin() {
		t.Fatal("fin should start false")
	}
	rec.setFin()
	if !rec.fin() {
		t.Fatal("fin should be true after setFin")
	}
	rec.setFin()
	if !rec.fin() {
		t.Fatal("fin should remain true after a second setFin")
	}
}

func TestStreamRecordClassDeferredUntilFirstEvent(t *testing.T) {
	rec := newStreamRecord(0, classUnknown)
	if rec.Class() != classUnknown {
		t.Fatalf("Class() = %v, want classUnknown before any event", rec.Class())
	}
	rec.setClass(classH3Request)
	if rec.Class() != classH3Request {
		t.Fatalf("Class() = %v, want classH3Request after setClass", rec.Class())
	}
}

func TestStreamRecordPseudoHeadersTruncated(t *testing.T) {
	rec := newStreamRecord(0, classH3Request)
	long := make([]byte, maxPseudoHeaderLen+500)
	for i := range long {
		long[i] = 'a'
	}
	rec.setPseudoHeaders(string(long), "/path", "websocket")

	method, path, protocol := rec.pseudoHeaders()
	if len(method) != maxPseudoHeaderLen {
		t.Fatalf("method length = %d, want %d", len(method), maxPseudoHeaderLen)
	}
	if path != "/path" {
		t.Fatalf("path = %q, want /path", path)
	}
	if protocol != "websocket" {
		t.Fatalf("protocol = %q, want websocket", protocol)
	}
}

func TestStreamTableGetOrCreateIsIdempotent(t *testing.T) {
	tbl := newStreamTable()

	rec1 := tbl.getOrCreate(5, classRawEcho)
	rec2 := tbl.getOrCreate(5, classWS) // class argument ignored on existing record
	if rec1 != rec2 {
		t.Fatal("getOrCreate should return the same record for a known id")
	}
	if rec2.Class() != classRawEcho {
		t.Fatalf("Class() = %v, want classRawEcho (class should not change on re-lookup)", rec2.Class())
	}
	if tbl.len() != 1 {
		t.Fatalf("len() = %d, want 1", tbl.len())
	}

	tbl.remove(5)
	if tbl.len() != 0 {
		t.Fatalf("len() after remove = %d, want 0", tbl.len())
	}
	if _, ok := tbl.get(5); ok {
		t.Fatal("get should report not-found after remove")
	}
}

func TestStreamTableForEach(t *testing.T) {
	tbl := newStreamTable()
	tbl.getOrCreate(1, classRawEcho)
	tbl.getOrCreate(2, classWTBidi)
	tbl.getOrCreate(3, classWS)

	seen := make(map[int64]bool)
	tbl.forEach(func(r *streamRecord) {
		seen[int64(r.id)] = true
	})
	if len(seen) != 3 {
		t.Fatalf("forEach visited %d records, want 3", len(seen))
	}
}

func TestStreamClassString(t *testing.T) {
	cases := map[streamClass]string{
		classUnknown:   "unknown",
		classRawEcho:   "raw-echo",
		classH3Request: "h3-request",
		classWTBidi:    "wt-bidi",
		classWTUni:     "wt-uni",
		classWS:        "websocket",
	}
	for class, want := range cases {
		if got := class.String(); got != want {
			t.Errorf("%v.String() = %q, want %q", int(class), got, want)
		}
	}
}
