package quicecho

import (
	"errors"
	"fmt"
	"testing"

	"github.com/quic-go/quic-go"
)

func TestH3ErrorCodeString(t *testing.T) {
	cases := map[H3ErrorCode]string{
		H3NoError:              "H3_NO_ERROR",
		H3GeneralProtocolError: "H3_GENERAL_PROTOCOL_ERROR",
		H3FrameError:           "H3_FRAME_ERROR",
		H3ConnectError:         "H3_CONNECT_ERROR",
	}
	for code, want := range cases {
		if got := code.String(); got != want {
			t.Errorf("%#x.String() = %q, want %q", uint64(code), got, want)
		}
	}

	unknown := H3ErrorCode(0xdead)
	if got := unknown.String(); got == "" {
		t.Fatal("String() for an unknown code must not be empty")
	}
}

func TestInferQUICAppErrorCodeFromConnError(t *testing.T) {
	ce := &connError{Code: H3ConnectError, Err: fmt.Errorf("boom")}
	got := inferQUICAppErrorCode(protoH3, ce)
	if got != quic.ApplicationErrorCode(H3ConnectError) {
		t.Fatalf("got %#x, want %#x", got, H3ConnectError)
	}
}

func TestInferQUICAppErrorCodeDefaultsToInternalPerProto(t *testing.T) {
	if got := inferQUICAppErrorCode(protoH3, errors.New("some unrelated error")); got != quic.ApplicationErrorCode(H3InternalError) {
		t.Fatalf("got %#x, want %#x", got, H3InternalError)
	}
	if got := inferQUICAppErrorCode(protoEcho, errors.New("some unrelated error")); got != quic.ApplicationErrorCode(ErrCodeInternal) {
		t.Fatalf("got %#x, want %#x", got, ErrCodeInternal)
	}
}

func TestInferQUICAppErrorCodeNilIsNoErrorPerProto(t *testing.T) {
	if got := inferQUICAppErrorCode(protoH3, nil); got != quic.ApplicationErrorCode(H3NoError) {
		t.Fatalf("got %#x, want %#x", got, H3NoError)
	}
	if got := inferQUICAppErrorCode(protoEcho, nil); got != quic.ApplicationErrorCode(ErrCodeNoError) {
		t.Fatalf("got %#x, want %#x", got, ErrCodeNoError)
	}
}

func TestInferQUICAppErrorCodeUnknownALPNIsUnsupportedALPN(t *testing.T) {
	got := inferQUICAppErrorCode(protoUnset, fmt.Errorf("%w: %q", ErrUnknownALPN, "ftp"))
	if got != quic.ApplicationErrorCode(ErrCodeUnsupportedALPN) {
		t.Fatalf("got %#x, want %#x", got, ErrCodeUnsupportedALPN)
	}
}

func TestConnErrorUnwrap(t *testing.T) {
	cause := errors.New("underlying cause")
	ce := &connError{Code: H3InternalError, Err: cause}
	if !errors.Is(ce, cause) {
		t.Fatal("errors.Is should see through connError.Unwrap to the cause")
	}
}
