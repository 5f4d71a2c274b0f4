package quicecho

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"fmt"
	"math/big"
	"net"
	"time"
)

// Credentials holds the parsed server certificate chain and private key
// (spec.md §3's "Credentials"), loaded once at startup, plus the *tls.Config
// built from them. A Credentials value is read-only after construction.
type Credentials struct {
	cert   tls.Certificate
	tlsCfg *tls.Config
}

// TLSConfig returns the shared, read-only *tls.Config for this server.
func (c *Credentials) TLSConfig() *tls.Config { return c.tlsCfg }

// LoadCredentials parses a certificate/key pair from disk (PEM-encoded, as
// produced by the sidecar cert-generation tool spec.md §6 describes). A
// key/cert pair that fails to parse is a fatal startup error per spec.md
// §4.1 and §7 — the caller is expected to log and os.Exit, matching the
// teacher's cmd/server/main.go idiom; this function only returns the error.
func LoadCredentials(certFile, keyFile string) (*Credentials, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("load TLS cert/key: %w", err)
	}
	return &Credentials{cert: cert, tlsCfg: baseTLSConfig(cert)}, nil
}

// GenerateDevCredentials produces a self-signed ECDSA P-256 certificate for
// local development, matching the teacher's chassis.GenerateSelfSignedCert
// shape. Each call draws fresh entropy (component C2) and yields a distinct
// keypair — it is never memoized across calls.
func GenerateDevCredentials() (*Credentials, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate private key: %w", err)
	}

	serialLimit := new(big.Int).Lsh(big.NewInt(1), 128)
	serial, err := rand.Int(rand.Reader, serialLimit)
	if err != nil {
		return nil, fmt.Errorf("generate serial: %w", err)
	}

	now := time.Now()
	template := x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"QUIC Echo Dev"},
			CommonName:   "localhost",
		},
		NotBefore:             now,
		NotAfter:              now.Add(14 * 24 * time.Hour), // spec.md §6: 14-day validity
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{"localhost"},
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1"), net.ParseIP("::1")},
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		return nil, fmt.Errorf("create certificate: %w", err)
	}

	cert := tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  priv,
	}
	return &Credentials{cert: cert, tlsCfg: baseTLSConfig(cert)}, nil
}

// CertificateSHA256 returns the base64-encoded SHA-256 digest of the leaf
// certificate, matching spec.md §6's description of the sidecar cert tool
// emitting "the certificate's SHA-256 base64 digest for client pinning".
func (c *Credentials) CertificateSHA256() string {
	sum := sha256.Sum256(c.cert.Certificate[0])
	return base64.StdEncoding.EncodeToString(sum[:])
}
