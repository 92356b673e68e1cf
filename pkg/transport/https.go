package transport

import (
	"crypto/tls"
	"crypto/x509"
	"net/http"
	"time"
)

// TLS version constants
const (
	TLS12 = tls.VersionTLS12
	TLS13 = tls.VersionTLS13
)

// DefaultUserAgent looks like a desktop browser. Several wholesalers sit
// behind reverse proxies that reject non-browser agents.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36 go-msv3/1.0"

// AcceptHeader covers both SOAP versions and plain XML answers.
const AcceptHeader = "application/soap+xml, text/xml, application/xml;q=0.9, */*;q=0.8"

// Recommended TLS 1.2 cipher suites
var RecommendedTLS12CipherSuites = []uint16{
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
}

// HTTPSConfig contains HTTPS client configuration
type HTTPSConfig struct {
	MinTLSVersion   uint16
	MaxTLSVersion   uint16
	CipherSuites    []uint16
	RootCAs         *x509.CertPool
	Timeout         time.Duration
	IdleConnTimeout time.Duration
	UserAgent       string

	// MaxResponseBytes bounds how much of a response body is read.
	MaxResponseBytes int64
	// SnippetLength bounds the body excerpt carried by ExhaustedFallbackError.
	SnippetLength int
}

// DefaultHTTPSConfig returns a default HTTPS configuration
func DefaultHTTPSConfig() *HTTPSConfig {
	return &HTTPSConfig{
		MinTLSVersion:    TLS12,
		MaxTLSVersion:    TLS13,
		CipherSuites:     RecommendedTLS12CipherSuites,
		Timeout:          30 * time.Second,
		IdleConnTimeout:  90 * time.Second,
		UserAgent:        DefaultUserAgent,
		MaxResponseBytes: 10 << 20,
		SnippetLength:    1000,
	}
}

func (c *HTTPSConfig) withDefaults() *HTTPSConfig {
	def := DefaultHTTPSConfig()
	if c == nil {
		return def
	}
	out := *c
	if out.MinTLSVersion == 0 {
		out.MinTLSVersion = def.MinTLSVersion
	}
	if out.MaxTLSVersion == 0 {
		out.MaxTLSVersion = def.MaxTLSVersion
	}
	if out.Timeout <= 0 {
		out.Timeout = def.Timeout
	}
	if out.IdleConnTimeout <= 0 {
		out.IdleConnTimeout = def.IdleConnTimeout
	}
	if out.UserAgent == "" {
		out.UserAgent = def.UserAgent
	}
	if out.MaxResponseBytes <= 0 {
		out.MaxResponseBytes = def.MaxResponseBytes
	}
	if out.SnippetLength <= 0 || out.SnippetLength > def.SnippetLength {
		out.SnippetLength = def.SnippetLength
	}
	return &out
}

// newHTTPClient builds the pooled client shared by all attempts. Timeout
// bounds each individual attempt, not the whole negotiation.
func newHTTPClient(config *HTTPSConfig) *http.Client {
	tlsConfig := &tls.Config{
		MinVersion:   config.MinTLSVersion,
		MaxVersion:   config.MaxTLSVersion,
		CipherSuites: config.CipherSuites,
		RootCAs:      config.RootCAs,
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		TLSClientConfig:     tlsConfig,
		IdleConnTimeout:     config.IdleConnTimeout,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   config.Timeout,
	}
}
