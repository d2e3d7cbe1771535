package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/crypto/acme/autocert"
)

// newCertManager issues certificates for host only, cached in certDir.
func newCertManager(host, certDir string) (*autocert.Manager, error) {
	if err := os.MkdirAll(certDir, 0700); err != nil {
		return nil, fmt.Errorf("create cert dir: %w", err)
	}

	return &autocert.Manager{
		Cache:  autocert.DirCache(certDir),
		Prompt: autocert.AcceptTOS,
		HostPolicy: func(ctx context.Context, h string) error {
			if h == host {
				return nil
			}
			return fmt.Errorf("host %s not configured", h)
		},
	}, nil
}

func tlsConfig(m *autocert.Manager) *tls.Config {
	cfg := m.TLSConfig()
	cfg.MinVersion = tls.VersionTLS12
	cfg.CurvePreferences = []tls.CurveID{tls.X25519, tls.CurveP256}
	return cfg
}

// challengeServer answers ACME http-01 challenges and redirects the rest
// to https.
func challengeServer(m *autocert.Manager) *http.Server {
	return &http.Server{
		Addr:    ":80",
		Handler: m.HTTPHandler(nil),
	}
}
