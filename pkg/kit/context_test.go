package kit

import (
	"context"
	"testing"
)

func TestWithConnIDGetConnID(t *testing.T) {
	ctx := WithConnID(context.Background(), 42)
	if got := GetConnID(ctx); got != 42 {
		t.Fatalf("GetConnID = %d, want 42", got)
	}
}

func TestGetConnIDZeroValueWhenAbsent(t *testing.T) {
	if got := GetConnID(context.Background()); got != 0 {
		t.Fatalf("GetConnID on empty context = %d, want 0", got)
	}
}

func TestGetTransportDefaultsToEcho(t *testing.T) {
	if got := GetTransport(context.Background()); got != "echo" {
		t.Fatalf("GetTransport on empty context = %q, want %q", got, "echo")
	}
}

func TestWithTransportOverridesDefault(t *testing.T) {
	ctx := WithTransport(context.Background(), "webtransport")
	if got := GetTransport(ctx); got != "webtransport" {
		t.Fatalf("GetTransport = %q, want %q", got, "webtransport")
	}
}

func TestWithStreamIDGetStreamID(t *testing.T) {
	ctx := WithStreamID(context.Background(), 7)
	if got := GetStreamID(ctx); got != 7 {
		t.Fatalf("GetStreamID = %d, want 7", got)
	}
}

func TestWithStreamIDOverridesOnReassignment(t *testing.T) {
	ctx := WithStreamID(context.Background(), 7)
	ctx = WithStreamID(ctx, 9)
	if got := GetStreamID(ctx); got != 9 {
		t.Fatalf("GetStreamID = %d, want 9", got)
	}
}
