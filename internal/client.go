package internal

import (
	"context"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	u "net/url"
	"time"

	"github.com/rgrab/rgrab/utils"
)

const defaultUserAgent = utils.ToolUserAgent

// maxConnections caps concurrent connections for the whole process. Set
// once here at client construction instead of being re-asserted per
// request, so there is no global mutable state to race on.
const maxConnections = 400

// NewClient builds the shared HTTP client for a transfer. Read timeouts
// come from the config; the overall request deadline stays unbounded
// because cancellation is the context's job, not the client's.
func NewClient(cfg Config) *http.Client {
	log := utils.GetLogger("client")
	transport := &http.Transport{
		MaxIdleConns:          maxConnections,
		MaxIdleConnsPerHost:   100, // for connection reuse
		MaxConnsPerHost:       maxConnections,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		// DisableCompression stays false so the transport transparently
		// decompresses gzip/deflate bodies
	}
	if proxyURL := cfg.proxyURL(); proxyURL != nil {
		transport.Proxy = http.ProxyURL(proxyURL)
		if cfg.ProxyUsername != "" && cfg.ProxyPassword != "" {
			auth := base64.StdEncoding.EncodeToString([]byte(cfg.ProxyUsername + ":" + cfg.ProxyPassword))
			transport.ProxyConnectHeader = http.Header{"Proxy-Authorization": {"Basic " + auth}}
		}
		log.Debug().Str("proxy", proxyURL.Host).Msg("Using proxy for connections")
	}
	return &http.Client{
		Transport: transport,
		Jar:       cfg.CookieJar,
	}
}

// proxyURL returns the configured proxy or nil. A partial configuration
// (host without port or vice versa) disables the proxy rather than
// erroring out.
func (c Config) proxyURL() *u.URL {
	if c.ProxyHost == "" || c.ProxyPort == 0 {
		return nil
	}
	proxy := &u.URL{
		Scheme: "http",
		Host:   fmt.Sprintf("%s:%d", c.ProxyHost, c.ProxyPort),
	}
	if c.ProxyUsername != "" && c.ProxyPassword != "" {
		proxy.User = u.UserPassword(c.ProxyUsername, c.ProxyPassword)
	}
	return proxy
}

// newRequest builds one attempt's GET request. A non-zero resumeOffset
// asks for bytes from that position to end-of-resource.
func newRequest(ctx context.Context, url string, cfg Config, resumeOffset int64) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating GET request: %v", err)
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Connection", "keep-alive")
	if resumeOffset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", resumeOffset))
	}
	return req, nil
}
