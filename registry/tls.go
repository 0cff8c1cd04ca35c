package registry

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
)

// clientTLS loads the client certificate and CA bundle.
func (t *TLSConfig) clientTLS() (*tls.Config, error) {
	switch {
	case t.CertFile == "":
		return nil, errors.New("TLS cert file is required")
	case t.KeyFile == "":
		return nil, errors.New("TLS key file is required")
	case t.CAFile == "":
		return nil, errors.New("TLS CA file is required")
	}

	cert, err := tls.LoadX509KeyPair(t.CertFile, t.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load client certificate: %w", err)
	}

	caData, err := os.ReadFile(t.CAFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caData) {
		return nil, errors.New("failed to parse CA certificate")
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      pool,
		MinVersion:   tls.VersionTLS12,
	}, nil
}
