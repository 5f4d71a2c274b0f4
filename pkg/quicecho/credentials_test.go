package quicecho

import (
	"encoding/base64"
	"testing"
)

func TestGenerateDevCredentialsProducesUsableTLSConfig(t *testing.T) {
	creds, err := GenerateDevCredentials()
	if err != nil {
		t.Fatalf("GenerateDevCredentials: %v", err)
	}

	tlsCfg := creds.TLSConfig()
	if tlsCfg == nil {
		t.Fatal("TLSConfig() returned nil")
	}
	if len(tlsCfg.Certificates) != 1 {
		t.Fatalf("Certificates = %d, want 1", len(tlsCfg.Certificates))
	}
	want := []string{ALPNH3, ALPNEcho}
	if len(tlsCfg.NextProtos) != len(want) {
		t.Fatalf("NextProtos = %v, want %v", tlsCfg.NextProtos, want)
	}
	for i, p := range want {
		if tlsCfg.NextProtos[i] != p {
			t.Errorf("NextProtos[%d] = %q, want %q", i, tlsCfg.NextProtos[i], p)
		}
	}
}

func TestGenerateDevCredentialsFreshEntropyEachCall(t *testing.T) {
	a, err := GenerateDevCredentials()
	if err != nil {
		t.Fatalf("GenerateDevCredentials: %v", err)
	}
	b, err := GenerateDevCredentials()
	if err != nil {
		t.Fatalf("GenerateDevCredentials: %v", err)
	}

	if a.CertificateSHA256() == b.CertificateSHA256() {
		t.Fatal("two calls to GenerateDevCredentials produced the same certificate — entropy must not be memoized")
	}
}

func TestCertificateSHA256IsStableForOneCredential(t *testing.T) {
	creds, err := GenerateDevCredentials()
	if err != nil {
		t.Fatalf("GenerateDevCredentials: %v", err)
	}
	first := creds.CertificateSHA256()
	second := creds.CertificateSHA256()
	if first != second {
		t.Fatalf("CertificateSHA256 changed between calls: %q != %q", first, second)
	}
	// base64.StdEncoding of a 32-byte SHA-256 sum is always 44 characters.
	if len(first) != 44 {
		t.Fatalf("CertificateSHA256 length = %d, want 44 base64 chars", len(first))
	}
	if _, err := base64.StdEncoding.DecodeString(first); err != nil {
		t.Fatalf("CertificateSHA256 is not valid base64: %v", err)
	}
}
