package quicecho

import "testing"

func TestQUICConfigEnablesDatagramsAnd0RTT(t *testing.T) {
	cfg := QUICConfig()
	if !cfg.EnableDatagrams {
		t.Error("EnableDatagrams should be true")
	}
	if !cfg.Allow0RTT {
		t.Error("Allow0RTT should be true")
	}
	if cfg.MaxIdleTimeout != maxIdleTimeout {
		t.Errorf("MaxIdleTimeout = %v, want %v", cfg.MaxIdleTimeout, maxIdleTimeout)
	}
	if cfg.MaxIncomingStreams != initialMaxStreamsBidi {
		t.Errorf("MaxIncomingStreams = %d, want %d", cfg.MaxIncomingStreams, initialMaxStreamsBidi)
	}
	if cfg.MaxIncomingUniStreams != initialMaxStreamsUni {
		t.Errorf("MaxIncomingUniStreams = %d, want %d", cfg.MaxIncomingUniStreams, initialMaxStreamsUni)
	}
}

func TestBaseTLSConfigALPNOrderIsH3ThenEcho(t *testing.T) {
	creds, err := GenerateDevCredentials()
	if err != nil {
		t.Fatalf("GenerateDevCredentials: %v", err)
	}
	protos := creds.TLSConfig().NextProtos
	if len(protos) != 2 || protos[0] != ALPNH3 || protos[1] != ALPNEcho {
		t.Fatalf("NextProtos = %v, want [%s %s]", protos, ALPNH3, ALPNEcho)
	}
}
