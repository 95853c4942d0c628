package tls

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	cryptotls "crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-acme/lego/v4/certcrypto"
	"github.com/go-acme/lego/v4/certificate"
	"github.com/go-acme/lego/v4/lego"
	"github.com/go-acme/lego/v4/registration"

	"github.com/MahdiBaghbani/askings-go/internal/platform/config"
	"github.com/MahdiBaghbani/askings-go/internal/platform/logutil"
)

const (
	letsEncryptStaging    = "https://acme-staging-v02.api.letsencrypt.org/directory"
	letsEncryptProduction = "https://acme-v02.api.letsencrypt.org/directory"

	challengePrefix = "/.well-known/acme-challenge/"
)

// Files kept in the ACME storage directory.
const (
	accountFile    = "account.json"
	accountKeyFile = "account.key"
	certFileName   = "cert.pem"
	keyFileName    = "key.pem"
)

// acmeAccount satisfies lego's registration.User.
type acmeAccount struct {
	Email        string                 `json:"email"`
	Registration *registration.Resource `json:"registration"`
	key          crypto.PrivateKey
}

func (a *acmeAccount) GetEmail() string                        { return a.Email }
func (a *acmeAccount) GetRegistration() *registration.Resource { return a.Registration }
func (a *acmeAccount) GetPrivateKey() crypto.PrivateKey        { return a.key }

// HTTP01Provider answers HTTP-01 challenges from memory. The server owns the
// listener; lego never binds a port.
type HTTP01Provider struct {
	tokens sync.Map
}

func (p *HTTP01Provider) Present(_, token, keyAuth string) error {
	p.tokens.Store(token, keyAuth)
	return nil
}

func (p *HTTP01Provider) CleanUp(_, token, _ string) error {
	p.tokens.Delete(token)
	return nil
}

// ServeHTTP serves /.well-known/acme-challenge/{token}.
func (p *HTTP01Provider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.URL.Path, challengePrefix)
	if token == "" || token == r.URL.Path {
		http.NotFound(w, r)
		return
	}
	v, ok := p.tokens.Load(token)
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprint(w, v.(string))
}

// ACMEManager obtains and serves a certificate for one domain.
type ACMEManager struct {
	cfg      *config.ACMEConfig
	log      *slog.Logger
	rootCAs  *x509.CertPool
	provider *HTTP01Provider

	mu   sync.RWMutex
	cert *cryptotls.Certificate
}

// NewACMEManager builds a manager. rootCAs is used to reach the directory; nil means system roots.
func NewACMEManager(cfg *config.ACMEConfig, log *slog.Logger, rootCAs *x509.CertPool) *ACMEManager {
	return &ACMEManager{
		cfg:      cfg,
		log:      logutil.NoopIfNil(log),
		rootCAs:  rootCAs,
		provider: &HTTP01Provider{},
	}
}

// Init loads a stored certificate, or registers and obtains one. The
// challenge handler must already be reachable when Init contacts the CA.
func (m *ACMEManager) Init(ctx context.Context) error {
	if m.cfg.Domain == "" {
		return errors.New("tls.acme.domain is required")
	}
	if m.cfg.Email == "" {
		return errors.New("tls.acme.email is required")
	}
	if err := os.MkdirAll(m.cfg.StorageDir, 0o700); err != nil {
		return fmt.Errorf("create ACME storage dir: %w", err)
	}

	if cert, err := cryptotls.LoadX509KeyPair(m.path(certFileName), m.path(keyFileName)); err == nil {
		m.setCert(&cert)
		m.log.Info("loaded stored ACME certificate", "domain", m.cfg.Domain)
		return nil
	}

	m.log.Info("requesting ACME certificate", "domain", m.cfg.Domain, "directory", m.directoryURL())
	account, err := m.loadAccount()
	if err != nil {
		return err
	}

	client, err := m.newClient(account)
	if err != nil {
		return err
	}

	if account.Registration == nil {
		reg, err := client.Registration.Register(registration.RegisterOptions{TermsOfServiceAgreed: true})
		if err != nil {
			return fmt.Errorf("register ACME account: %w", err)
		}
		account.Registration = reg
		if err := m.saveAccount(account); err != nil {
			m.log.Warn("failed to persist ACME account", "error", err)
		}
	}

	res, err := client.Certificate.Obtain(certificate.ObtainRequest{
		Domains: []string{m.cfg.Domain},
		Bundle:  true,
	})
	if err != nil {
		return fmt.Errorf("obtain certificate: %w", err)
	}
	if err := os.WriteFile(m.path(certFileName), res.Certificate, 0o644); err != nil {
		return fmt.Errorf("save certificate: %w", err)
	}
	if err := os.WriteFile(m.path(keyFileName), res.PrivateKey, 0o600); err != nil {
		return fmt.Errorf("save key: %w", err)
	}
	cert, err := cryptotls.X509KeyPair(res.Certificate, res.PrivateKey)
	if err != nil {
		return fmt.Errorf("parse certificate: %w", err)
	}
	m.setCert(&cert)
	m.log.Info("obtained ACME certificate", "domain", m.cfg.Domain)
	return nil
}

func (m *ACMEManager) directoryURL() string {
	switch {
	case m.cfg.Directory != "":
		return m.cfg.Directory
	case m.cfg.UseStaging:
		return letsEncryptStaging
	default:
		return letsEncryptProduction
	}
}

func (m *ACMEManager) newClient(account *acmeAccount) (*lego.Client, error) {
	lc := lego.NewConfig(account)
	lc.CADirURL = m.directoryURL()
	lc.Certificate.KeyType = certcrypto.EC256
	if m.rootCAs != nil {
		lc.HTTPClient = &http.Client{Transport: &http.Transport{
			TLSClientConfig: &cryptotls.Config{RootCAs: m.rootCAs, MinVersion: cryptotls.VersionTLS12},
		}}
	}

	client, err := lego.NewClient(lc)
	if err != nil {
		return nil, fmt.Errorf("create ACME client: %w", err)
	}
	if err := client.Challenge.SetHTTP01Provider(m.provider); err != nil {
		return nil, fmt.Errorf("set HTTP-01 provider: %w", err)
	}
	return client, nil
}

func (m *ACMEManager) path(name string) string {
	return filepath.Join(m.cfg.StorageDir, name)
}

func (m *ACMEManager) setCert(c *cryptotls.Certificate) {
	m.mu.Lock()
	m.cert = c
	m.mu.Unlock()
}

// GetCertificate plugs into tls.Config.GetCertificate.
func (m *ACMEManager) GetCertificate(*cryptotls.ClientHelloInfo) (*cryptotls.Certificate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cert == nil {
		return nil, errors.New("no ACME certificate available")
	}
	return m.cert, nil
}

// ServerConfig returns a TLS config backed by GetCertificate.
func (m *ACMEManager) ServerConfig() *cryptotls.Config {
	return &cryptotls.Config{GetCertificate: m.GetCertificate, MinVersion: cryptotls.VersionTLS12}
}

// ChallengeHandler is mounted on the plain HTTP listener.
func (m *ACMEManager) ChallengeHandler() http.Handler {
	return m.provider
}

// loadAccount falls back to a fresh unregistered account when nothing usable is stored.
func (m *ACMEManager) loadAccount() (*acmeAccount, error) {
	if data, err := os.ReadFile(m.path(accountFile)); err == nil {
		if keyPEM, err := os.ReadFile(m.path(accountKeyFile)); err == nil {
			acc := &acmeAccount{}
			if json.Unmarshal(data, acc) == nil {
				if key, err := certcrypto.ParsePEMPrivateKey(keyPEM); err == nil {
					acc.key = key
					return acc, nil
				}
			}
		}
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate account key: %w", err)
	}
	return &acmeAccount{Email: m.cfg.Email, key: key}, nil
}

func (m *ACMEManager) saveAccount(acc *acmeAccount) error {
	data, err := json.MarshalIndent(acc, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(m.path(accountFile), data, 0o600); err != nil {
		return err
	}
	return os.WriteFile(m.path(accountKeyFile), certcrypto.PEMEncode(acc.key), 0o600)
}
