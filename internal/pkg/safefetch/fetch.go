// Package safefetch performs outbound HTTP GETs against user-supplied hosts
// with a host allowlist, private-network blocking at dial time, redirect
// re-validation and a response byte cap.
package safefetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"
)

// Code discriminates fetch failures.
type Code string

const (
	CodeHostNotAllowed Code = "host_not_allowed"
	CodeHostBlocked    Code = "host_blocked"
	CodePrivateIP      Code = "private_ip"
	CodeSizeExceeded   Code = "size_exceeded"
	CodeResponseError  Code = "response_error"
)

// Error is returned for every refused or failed fetch.
type Error struct {
	Code Code
	URL  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("safefetch %s: %s: %v", e.Code, e.URL, e.Err)
	}
	return fmt.Sprintf("safefetch %s: %s", e.Code, e.URL)
}

func (e *Error) Unwrap() error { return e.Err }

// CodeOf extracts the Code from err, or "" when err is not a fetch error.
func CodeOf(err error) Code {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ""
}

// Options bound a single fetch.
type Options struct {
	// AllowedHosts restricts the initial host and every redirect target.
	// Entries starting with "." match any subdomain. Empty allows any
	// public host.
	AllowedHosts []string
	AllowHTTP    bool
	Timeout      time.Duration
	MaxBytes     int64
	MaxRedirects int
	UserAgent    string
}

const (
	defaultTimeout   = 5 * time.Second
	defaultMaxBytes  = 1 << 20
	defaultUserAgent = "domainwatch/1.0"
)

// Result is a completed response. OK is true for 2xx statuses.
type Result struct {
	OK          bool
	Status      int
	Body        []byte
	ContentType string
	FinalURL    string
	Header      http.Header
}

// blockedHostnames never resolve to anything a tracked domain should serve.
var blockedHostnames = map[string]bool{
	"localhost":                true,
	"metadata.google.internal": true,
	"metadata":                 true,
}

var blockedSuffixes = []string{".localhost", ".local", ".internal", ".localdomain"}

var cgnat = netip.MustParsePrefix("100.64.0.0/10")

// Fetcher executes guarded requests. The zero value is not usable; call New.
type Fetcher struct {
	transport    *http.Transport
	allowPrivate bool
}

// Option customises a Fetcher.
type Option func(*Fetcher)

// WithPrivateNetworks disables private-address blocking. Only meant for
// local development against services on loopback.
func WithPrivateNetworks() Option {
	return func(f *Fetcher) { f.allowPrivate = true }
}

// New creates a Fetcher.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{}
	for _, o := range opts {
		o(f)
	}

	dialer := &net.Dialer{
		Timeout:   defaultTimeout,
		KeepAlive: 30 * time.Second,
		Control:   f.controlDial,
	}
	f.transport = &http.Transport{
		Proxy:                 nil,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   defaultTimeout,
		ResponseHeaderTimeout: defaultTimeout,
		MaxIdleConns:          50,
		IdleConnTimeout:       30 * time.Second,
	}
	return f
}

// controlDial runs after name resolution, so it sees the address actually
// being connected to.
func (f *Fetcher) controlDial(network, address string, _ syscall.RawConn) error {
	if f.allowPrivate {
		return nil
	}
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return &Error{Code: CodePrivateIP, URL: address, Err: err}
	}
	addr, err := netip.ParseAddr(host)
	if err != nil || IsPrivateAddr(addr) {
		return &Error{Code: CodePrivateIP, URL: address}
	}
	return nil
}

// IsPrivateAddr reports whether addr is loopback, private, link-local,
// CGNAT, multicast or unspecified.
func IsPrivateAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	return addr.IsLoopback() ||
		addr.IsPrivate() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() ||
		addr.IsInterfaceLocalMulticast() ||
		addr.IsMulticast() ||
		addr.IsUnspecified() ||
		cgnat.Contains(addr)
}

// Fetch performs a guarded GET of rawURL.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, opts Options) (*Result, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = defaultMaxBytes
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &Error{Code: CodeResponseError, URL: rawURL, Err: err}
	}
	if err := f.checkURL(u, opts); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	client := &http.Client{
		Transport: f.transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > opts.MaxRedirects {
				return &Error{Code: CodeResponseError, URL: req.URL.String(), Err: errors.New("too many redirects")}
			}
			return f.checkURL(req.URL, opts)
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &Error{Code: CodeResponseError, URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", opts.UserAgent)
	req.Header.Set("Accept", "text/html,text/plain;q=0.9,*/*;q=0.8")

	resp, err := client.Do(req)
	if err != nil {
		var fe *Error
		if errors.As(err, &fe) {
			return nil, fe
		}
		return nil, &Error{Code: CodeResponseError, URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.ContentLength > opts.MaxBytes {
		return nil, &Error{Code: CodeSizeExceeded, URL: rawURL}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, opts.MaxBytes+1))
	if err != nil {
		return nil, &Error{Code: CodeResponseError, URL: rawURL, Err: err}
	}
	if int64(len(body)) > opts.MaxBytes {
		return nil, &Error{Code: CodeSizeExceeded, URL: rawURL}
	}

	return &Result{
		OK:          resp.StatusCode >= 200 && resp.StatusCode < 300,
		Status:      resp.StatusCode,
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		FinalURL:    resp.Request.URL.String(),
		Header:      resp.Header,
	}, nil
}

func (f *Fetcher) checkURL(u *url.URL, opts Options) error {
	switch u.Scheme {
	case "https":
	case "http":
		if !opts.AllowHTTP {
			return &Error{Code: CodeHostNotAllowed, URL: u.String(), Err: errors.New("plain http not allowed")}
		}
	default:
		return &Error{Code: CodeHostNotAllowed, URL: u.String(), Err: fmt.Errorf("scheme %q not allowed", u.Scheme)}
	}

	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return &Error{Code: CodeHostNotAllowed, URL: u.String(), Err: errors.New("empty host")}
	}
	if !f.allowPrivate && isBlockedHostname(host) {
		return &Error{Code: CodeHostBlocked, URL: u.String()}
	}
	if addr, err := netip.ParseAddr(host); err == nil && !f.allowPrivate && IsPrivateAddr(addr) {
		return &Error{Code: CodePrivateIP, URL: u.String()}
	}
	if !hostAllowed(host, opts.AllowedHosts) {
		return &Error{Code: CodeHostNotAllowed, URL: u.String()}
	}
	return nil
}

func isBlockedHostname(host string) bool {
	if blockedHostnames[host] {
		return true
	}
	for _, suffix := range blockedSuffixes {
		if strings.HasSuffix(host, suffix) {
			return true
		}
	}
	return false
}

func hostAllowed(host string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		a = strings.TrimSuffix(strings.ToLower(a), ".")
		if strings.HasPrefix(a, ".") {
			if strings.HasSuffix(host, a) || host == a[1:] {
				return true
			}
			continue
		}
		if host == a {
			return true
		}
	}
	return false
}
