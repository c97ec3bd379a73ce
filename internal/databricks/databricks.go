package databricks

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/BenMacKenzie/db-mlops/internal/config"
	"github.com/BenMacKenzie/db-mlops/internal/metrics"
	"github.com/BenMacKenzie/db-mlops/pkg/workspace"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewTransport builds the workspace transport shared by the job and experiment
// clients.
func NewTransport(conf *config.DatabricksConfig, logger *slog.Logger) (*workspace.Transport, error) {
	if conf == nil || conf.Host == "" {
		return nil, fmt.Errorf("the workspace host is not configured")
	}
	transport, err := workspace.NewTransport(conf.Host)
	if err != nil {
		return nil, err
	}

	tlsConfig, err := newTLSConfig(conf)
	if err != nil {
		return nil, err
	}
	if tlsConfig != nil {
		base := http.DefaultTransport.(*http.Transport).Clone()
		base.TLSClientConfig = tlsConfig
		transport = transport.WithHTTPClient(&http.Client{
			Timeout:   workspace.DefaultTimeout,
			Transport: otelhttp.NewTransport(base),
		})
	}

	if conf.Token == "" {
		logger.Warn("No workspace token is configured, requests will be sent without authentication", "host", transport.GetBaseURL())
	}

	logger.Info("Created the workspace transport", "host", transport.GetBaseURL(), "timeout", conf.HTTPTimeout.String())
	return transport.
		WithToken(conf.Token).
		WithTimeout(conf.HTTPTimeout).
		WithLogger(logger).
		WithObserver(metrics.ObserveWorkspaceRequest), nil
}

func newTLSConfig(conf *config.DatabricksConfig) (*tls.Config, error) {
	if conf.TLSConfig != nil {
		return conf.TLSConfig, nil
	}
	if conf.CACertPath == "" && !conf.InsecureSkipVerify {
		return nil, nil
	}
	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: conf.InsecureSkipVerify, // #nosec G402 -- opt-in for test workspaces
	}
	if conf.CACertPath != "" {
		pem, err := os.ReadFile(conf.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read the CA certificate %s: %w", conf.CACertPath, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", conf.CACertPath)
		}
		tlsConfig.RootCAs = pool
	}
	return tlsConfig, nil
}
