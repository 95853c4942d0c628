// Package tls builds server TLS configurations: static key pairs, a persisted
// self-signed certificate, or certificates obtained over ACME.
package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	cryptotls "crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/MahdiBaghbani/askings-go/internal/platform/config"
	"github.com/MahdiBaghbani/askings-go/internal/platform/logutil"
)

// Modes accepted in tls.mode.
const (
	ModeOff        = "off"
	ModeStatic     = "static"
	ModeSelfSigned = "selfsigned"
	ModeACME       = "acme"
)

var (
	ErrInvalidTLSMode = errors.New("invalid TLS mode")
	ErrMissingCert    = errors.New("missing certificate or key file")
	// ErrManagedByACME is returned by Manager.ServerConfig in acme mode; use ACMEManager.
	ErrManagedByACME = errors.New("tls.mode=acme is served by the ACME manager")
)

const defaultSelfSignedDir = ".askings/certs"

// Manager resolves the non-ACME modes.
type Manager struct {
	cfg *config.TLSConfig
	log *slog.Logger
}

func NewManager(cfg *config.TLSConfig, log *slog.Logger) *Manager {
	return &Manager{cfg: cfg, log: logutil.NoopIfNil(log)}
}

// ServerConfig returns nil in off mode.
func (m *Manager) ServerConfig(hostname string) (*cryptotls.Config, error) {
	switch m.cfg.Mode {
	case ModeOff, "":
		return nil, nil
	case ModeStatic:
		return m.static()
	case ModeSelfSigned:
		return m.selfSigned(hostname)
	case ModeACME:
		return nil, ErrManagedByACME
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidTLSMode, m.cfg.Mode)
	}
}

func serverConfig(cert cryptotls.Certificate) *cryptotls.Config {
	return &cryptotls.Config{
		Certificates: []cryptotls.Certificate{cert},
		MinVersion:   cryptotls.VersionTLS12,
	}
}

func (m *Manager) static() (*cryptotls.Config, error) {
	if m.cfg.CertFile == "" || m.cfg.KeyFile == "" {
		return nil, ErrMissingCert
	}
	cert, err := cryptotls.LoadX509KeyPair(m.cfg.CertFile, m.cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load key pair: %w", err)
	}
	m.log.Info("loaded static TLS certificate", "cert_file", m.cfg.CertFile)
	return serverConfig(cert), nil
}

// selfSigned reuses server.crt/server.key from the directory when present.
func (m *Manager) selfSigned(hostname string) (*cryptotls.Config, error) {
	dir := m.cfg.SelfSignedDir
	if dir == "" {
		dir = defaultSelfSignedDir
	}
	certFile := filepath.Join(dir, "server.crt")
	keyFile := filepath.Join(dir, "server.key")

	if cert, err := cryptotls.LoadX509KeyPair(certFile, keyFile); err == nil {
		m.log.Info("loaded self-signed certificate", "cert_file", certFile)
		return serverConfig(cert), nil
	}

	certPEM, keyPEM, expires, err := generateSelfSigned(hostname)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create cert dir: %w", err)
	}
	if err := os.WriteFile(certFile, certPEM, 0o644); err != nil {
		return nil, fmt.Errorf("write certificate: %w", err)
	}
	if err := os.WriteFile(keyFile, keyPEM, 0o600); err != nil {
		return nil, fmt.Errorf("write key: %w", err)
	}
	m.log.Info("generated self-signed certificate",
		"hostname", hostname, "cert_file", certFile, "expires", expires)

	cert, err := cryptotls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, err
	}
	return serverConfig(cert), nil
}

// generateSelfSigned issues a one-year P-256 certificate for hostname plus localhost.
func generateSelfSigned(hostname string) (certPEM, keyPEM []byte, expires time.Time, err error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, expires, fmt.Errorf("generate key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, nil, expires, fmt.Errorf("generate serial: %w", err)
	}

	now := time.Now()
	expires = now.Add(365 * 24 * time.Hour)
	tmpl := x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{Organization: []string{"askings-go development"}, CommonName: hostname},
		NotBefore:             now,
		NotAfter:              expires,
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{"localhost"},
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1"), net.ParseIP("::1")},
	}
	if ip := net.ParseIP(hostname); ip != nil {
		tmpl.IPAddresses = append(tmpl.IPAddresses, ip)
	} else if hostname != "" && hostname != "localhost" {
		tmpl.DNSNames = append(tmpl.DNSNames, hostname)
	}

	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, nil, expires, fmt.Errorf("create certificate: %w", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, nil, expires, fmt.Errorf("marshal key: %w", err)
	}
	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	return certPEM, keyPEM, expires, nil
}

// RootCAPool merges the PEM bundle at caFile into the system pool.
// An empty path returns nil, meaning system defaults.
func RootCAPool(caFile string) (*x509.CertPool, error) {
	if caFile == "" {
		return nil, nil
	}
	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}
	data, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("read root CA file: %w", err)
	}
	if !pool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("root CA file %s: no PEM certificates", caFile)
	}
	return pool, nil
}
