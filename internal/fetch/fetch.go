// Package fetch performs single bounded HTTP GETs for the resolution walk.
//
// Redirects are never followed by the transport; the walker inspects 3xx
// responses and decides the next hop itself. Response bodies are capped both
// by the declared Content-Length and by a limiting reader around the stream,
// so a broken or hostile upstream cannot buffer unbounded data in memory.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// ErrTooLarge signals that a response exceeded the configured byte cap,
// either by declaration or while streaming.
var ErrTooLarge = errors.New("response exceeds byte limit")

// Config captures the fetcher's client parameters.
type Config struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	UserAgent      string
	MaxBytes       int64
}

// Client issues bounded GET requests.
type Client struct {
	http *http.Client
	cfg  Config
}

// NewClient constructs a Client with per-connection timeouts and
// redirect-following disabled.
func NewClient(cfg Config) *Client {
	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.ReadTimeout,
		MaxIdleConns:          32,
		IdleConnTimeout:       30 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &Client{
		http: &http.Client{
			Transport: transport,
			Timeout:   cfg.ConnectTimeout + cfg.ReadTimeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		cfg: cfg,
	}
}

// Response is a single upstream response with a bounded body.
type Response struct {
	StatusCode int
	Header     http.Header

	body io.ReadCloser
}

// Get fetches rawURL with browser-like headers. The referer may be empty.
// A declared Content-Length above the byte cap fails with ErrTooLarge
// before any of the body is read.
func (c *Client) Get(ctx context.Context, rawURL, referer string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "image/jpeg,image/png,image/webp;q=0.9,text/html;q=0.8,*/*;q=0.5")
	req.Header.Set("Accept-Language", "ko,en;q=0.8")
	if referer != "" {
		req.Header.Set("Referer", referer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}

	if resp.ContentLength > 0 && resp.ContentLength > c.cfg.MaxBytes {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("declared length %d: %w", resp.ContentLength, ErrTooLarge)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		body:       &limitedReadCloser{rc: resp.Body, remaining: c.cfg.MaxBytes},
	}, nil
}

// ContentType returns the lowercased media type, without parameters.
func (r *Response) ContentType() string {
	ct := r.Header.Get("Content-Type")
	if idx := strings.IndexByte(ct, ';'); idx >= 0 {
		ct = ct[:idx]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

// IsAttachment reports whether the response declares itself a download.
func (r *Response) IsAttachment() bool {
	return strings.Contains(strings.ToLower(r.Header.Get("Content-Disposition")), "attachment")
}

// ReadAll drains the bounded body and closes it.
func (r *Response) ReadAll() ([]byte, error) {
	defer func() { _ = r.body.Close() }()
	data, err := io.ReadAll(r.body)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Close releases the underlying connection without reading the body.
func (r *Response) Close() error {
	return r.body.Close()
}

// limitedReadCloser aborts the read once the cap is exhausted, rather than
// silently truncating.
type limitedReadCloser struct {
	rc        io.ReadCloser
	remaining int64
}

func (l *limitedReadCloser) Read(p []byte) (int, error) {
	if l.remaining <= 0 {
		return 0, ErrTooLarge
	}
	if int64(len(p)) > l.remaining {
		p = p[:l.remaining]
	}
	n, err := l.rc.Read(p)
	l.remaining -= int64(n)
	if l.remaining <= 0 && err == nil {
		// Peek for EOF: a stream that ends exactly at the cap is fine, more
		// data is not.
		var probe [1]byte
		if pn, perr := l.rc.Read(probe[:]); pn > 0 || (perr != nil && !errors.Is(perr, io.EOF)) {
			if pn > 0 {
				return n, ErrTooLarge
			}
			return n, perr
		}
		return n, io.EOF
	}
	return n, err
}

func (l *limitedReadCloser) Close() error {
	return l.rc.Close()
}
