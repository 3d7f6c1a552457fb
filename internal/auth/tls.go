// internal/auth/tls.go
package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"
)

// TLSManager generates (if needed) and loads a self-signed certificate
// for cmd/c4server's optional TLS listener.
type TLSManager struct {
	certFile string
	keyFile  string
	config   *tls.Config
}

// NewTLSManager prepares a TLS manager rooted at dataDir, generating a
// self-signed certificate on first use.
func NewTLSManager(dataDir string) *TLSManager {
	tm := &TLSManager{
		certFile: filepath.Join(dataDir, "server.crt"),
		keyFile:  filepath.Join(dataDir, "server.key"),
	}

	if !tm.certificateExists() {
		if err := tm.generateSelfSignedCert(); err != nil {
			fmt.Printf("warning: failed to generate self-signed certificate: %v\n", err)
		}
	}
	tm.loadTLSConfig()
	return tm
}

// GetTLSConfig returns the loaded TLS configuration, or nil if it failed
// to load.
func (tm *TLSManager) GetTLSConfig() *tls.Config { return tm.config }

// IsTLSEnabled reports whether a usable TLS configuration is loaded.
func (tm *TLSManager) IsTLSEnabled() bool { return tm.config != nil }

func (tm *TLSManager) certificateExists() bool {
	_, certErr := os.Stat(tm.certFile)
	_, keyErr := os.Stat(tm.keyFile)
	return certErr == nil && keyErr == nil
}

func (tm *TLSManager) generateSelfSignedCert() error {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return fmt.Errorf("generate private key: %w", err)
	}

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			Organization: []string{"c4db"},
		},
		NotBefore:   time.Now(),
		NotAfter:    time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:    x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IPAddresses: []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
		DNSNames:    []string{"localhost"},
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	if err != nil {
		return fmt.Errorf("create certificate: %w", err)
	}

	certOut, err := os.Create(tm.certFile)
	if err != nil {
		return fmt.Errorf("open cert file for writing: %w", err)
	}
	defer certOut.Close()
	if err := pem.Encode(certOut, &pem.Block{Type: "CERTIFICATE", Bytes: certDER}); err != nil {
		return fmt.Errorf("write certificate: %w", err)
	}

	keyOut, err := os.OpenFile(tm.keyFile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("open key file for writing: %w", err)
	}
	defer keyOut.Close()

	privBytes, err := x509.MarshalPKCS8PrivateKey(privateKey)
	if err != nil {
		return fmt.Errorf("marshal private key: %w", err)
	}
	if err := pem.Encode(keyOut, &pem.Block{Type: "PRIVATE KEY", Bytes: privBytes}); err != nil {
		return fmt.Errorf("write private key: %w", err)
	}
	return nil
}

func (tm *TLSManager) loadTLSConfig() {
	cert, err := tls.LoadX509KeyPair(tm.certFile, tm.keyFile)
	if err != nil {
		fmt.Printf("warning: failed to load TLS certificate: %v\n", err)
		tm.config = nil
		return
	}
	tm.config = &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
		CipherSuites: []uint16{
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
		},
	}
}
