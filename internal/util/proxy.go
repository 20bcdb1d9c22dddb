// Package util provides helpers shared across the Vertex Bridge server,
// currently outbound proxy transport construction.
package util

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"

	"golang.org/x/net/proxy"
)

// OutboundTransport builds an HTTP transport that routes through the proxy
// at rawURL. SOCKS5 (with optional userinfo credentials), HTTP and HTTPS
// proxies are supported. An empty rawURL returns nil, meaning the client
// should keep its default direct transport.
func OutboundTransport(rawURL string) (*http.Transport, error) {
	if rawURL == "" {
		return nil, nil
	}

	proxyURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy url %q: %w", rawURL, err)
	}

	switch proxyURL.Scheme {
	case "socks5":
		var auth *proxy.Auth
		if proxyURL.User != nil {
			password, _ := proxyURL.User.Password()
			auth = &proxy.Auth{User: proxyURL.User.Username(), Password: password}
		}
		dialer, errSOCKS5 := proxy.SOCKS5("tcp", proxyURL.Host, auth, proxy.Direct)
		if errSOCKS5 != nil {
			return nil, fmt.Errorf("socks5 proxy %q: %w", proxyURL.Host, errSOCKS5)
		}
		return &http.Transport{
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			},
		}, nil
	case "http", "https":
		return &http.Transport{Proxy: http.ProxyURL(proxyURL)}, nil
	default:
		return nil, fmt.Errorf("unsupported proxy scheme %q", proxyURL.Scheme)
	}
}
