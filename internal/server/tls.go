package server

import (
	"crypto/tls"
	"fmt"

	"go.uber.org/zap"

	"github.com/muurk/mbrsim/internal/logging"
)

// NewTLSConfig loads a certificate and key from PEM files.
func NewTLSConfig(certPath, keyPath string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS certificate: %w", err)
	}

	logging.Info("TLS configuration created from files",
		zap.String("cert", certPath),
		zap.String("key", keyPath),
	)

	return buildTLSConfig(cert), nil
}

// NewTLSConfigFromMemory creates a TLS configuration from PEM-encoded
// certificate and key data.
func NewTLSConfigFromMemory(certPEM, keyPEM []byte) (*tls.Config, error) {
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS certificate from memory: %w", err)
	}
	return buildTLSConfig(cert), nil
}

// buildTLSConfig logs each completed handshake. The peer address is taken
// from the ClientHello because tls.ConnectionState does not carry it.
func buildTLSConfig(cert tls.Certificate) *tls.Config {
	base := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	cfg := base.Clone()
	cfg.GetConfigForClient = func(hello *tls.ClientHelloInfo) (*tls.Config, error) {
		remoteAddr := ""
		if hello.Conn != nil {
			remoteAddr = hello.Conn.RemoteAddr().String()
		}
		cc := base.Clone()
		cc.VerifyConnection = func(cs tls.ConnectionState) error {
			logging.LogTLSHandshake(remoteAddr, cs.Version, cs.CipherSuite, cs.ServerName)
			return nil
		}
		return cc, nil
	}
	return cfg
}

// GetTLSInfo returns human-readable TLS configuration information
func GetTLSInfo(config *tls.Config) map[string]any {
	if config == nil {
		return map[string]any{"enabled": false}
	}
	return map[string]any{
		"enabled":     true,
		"min_version": "TLS 1.2",
		"num_certs":   len(config.Certificates),
	}
}
