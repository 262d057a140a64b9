// Package upstream implements the HTTP client used by the fetch coordinator
// to issue GET requests against the third-party blockchain data API.
package upstream

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/dnscache"

	"github.com/zeralabs/qnoracle/internal/oracle"
)

const userAgent = "qnoracle/1.0"

// Header is a single Name: Value pair parsed from UPSTREAM_EXTRA_HEADERS.
type Header struct {
	Name  string
	Value string
}

// Client is the process-wide upstream HTTP client. One instance is shared
// across all coordinator calls.
type Client struct {
	baseURL      string
	apiKey       string
	bearer       string
	extraHeaders []Header
	http         *http.Client
}

// Config configures the Client. An empty BaseURL makes every Get return
// oracle.ErrBadConfig.
type Config struct {
	BaseURL      string
	APIKey       string
	Bearer       string
	ExtraHeaders []Header
	Timeout      time.Duration
	Resolver     *dnscache.Resolver
}

// New creates a Client with a tuned transport and optional DNS-cached
// dialer.
func New(cfg Config) *Client {
	t := &http.Transport{
		MaxIdleConnsPerHost: 100,
		MaxConnsPerHost:     200,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	if cfg.Resolver != nil {
		t.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, err
			}
			ips, err := cfg.Resolver.LookupHost(ctx, host)
			if err != nil {
				return nil, err
			}
			var d net.Dialer
			return d.DialContext(ctx, network, net.JoinHostPort(ips[0], port))
		}
	}

	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/") + "/",
		apiKey:       cfg.APIKey,
		bearer:       cfg.Bearer,
		extraHeaders: cfg.ExtraHeaders,
		http: &http.Client{
			Transport: t,
			Timeout:   cfg.Timeout,
		},
	}
}

// ParseExtraHeaders parses a ";"-delimited "Name:Value" list, as configured
// by UPSTREAM_EXTRA_HEADERS.
func ParseExtraHeaders(raw string) []Header {
	if raw == "" {
		return nil
	}
	var out []Header
	for _, pair := range strings.Split(raw, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, value, ok := strings.Cut(pair, ":")
		if !ok {
			continue
		}
		out = append(out, Header{Name: strings.TrimSpace(name), Value: strings.TrimSpace(value)})
	}
	return out
}

// Get issues a GET to path (leading "/" stripped) with the given query
// parameters appended in order. It returns the response status and the
// body read fully into memory. Network, DNS, TLS, decode, and timeout
// faults all map to oracle.ErrUpstreamUnavailable.
func (c *Client) Get(ctx context.Context, path string, params []Param) (status int, body []byte, err error) {
	if c.baseURL == "/" {
		return 0, nil, oracle.ErrBadConfig
	}

	u := c.baseURL + strings.TrimPrefix(path, "/")
	if len(params) > 0 {
		// Params are appended in received order, not sorted, unlike
		// url.Values.Encode -- the upstream API treats param order as
		// significant for some endpoints.
		var q strings.Builder
		for i, p := range params {
			if i > 0 {
				q.WriteByte('&')
			}
			q.WriteString(url.QueryEscape(p.Key))
			q.WriteByte('=')
			q.WriteString(url.QueryEscape(p.Value))
		}
		u += "?" + q.String()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: build request: %v", oracle.ErrUpstreamUnavailable, err)
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", oracle.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: read body: %v", oracle.ErrUpstreamUnavailable, err)
	}
	return resp.StatusCode, b, nil
}

func (c *Client) setHeaders(r *http.Request) {
	r.Header.Set("Accept", "application/json")
	r.Header.Set("User-Agent", userAgent)
	if c.apiKey != "" {
		r.Header.Set("X-API-Key", c.apiKey)
	}
	if c.bearer != "" {
		r.Header.Set("Authorization", "Bearer "+c.bearer)
	}
	for _, h := range c.extraHeaders {
		r.Header.Set(h.Name, h.Value)
	}
}

// Param is a single query parameter in received order.
type Param struct {
	Key   string
	Value string
}
