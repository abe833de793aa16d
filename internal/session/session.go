// Package session owns one target's cookie jar and round-tripped state
// tokens for the lifetime of a work unit, and performs all HTTP I/O for the
// pagination driver. A Session is exclusively owned by one driver at a time
// and must never be shared across goroutines.
package session

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/andybalholm/brotli"
)

// Options controls HTTP behaviour for every session built by a Factory.
type Options struct {
	Timeout      time.Duration
	MaxBodyBytes int64
	MaxRedirects int
	ProxyURL     string
	// Headers is the site's browser-mimicry overlay applied to every request.
	Headers map[string]string
}

// Response is the HTTP outcome handed to the pagination driver. Status codes
// are never errors at this layer.
type Response struct {
	Status   int
	Header   http.Header
	Body     []byte
	FinalURL *url.URL
}

// Request describes one outbound request declaratively. URL may be relative
// to the session's base.
type Request struct {
	Method string
	URL    string
	Form   url.Values
	JSON   []byte
	Header map[string]string
}

// TokenExtractor locates a named state token in a response body. The second
// return reports presence; extractors never fabricate values.
type TokenExtractor func(body []byte) (string, bool)

// TransientError marks a network-layer failure (timeout, connection reset,
// DNS) that is retryable with backoff.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a network-layer failure.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// ErrTooManyRedirects is returned when a redirect chain exceeds the bound.
var ErrTooManyRedirects = errors.New("too many redirects")

// Factory builds sessions that share one tuned transport.
type Factory struct {
	opts      Options
	transport http.RoundTripper
}

// NewFactory constructs a session factory from options.
func NewFactory(opts Options) (*Factory, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 6 * 1024 * 1024
	}
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = 5
	}

	transport := &http.Transport{
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if strings.TrimSpace(opts.ProxyURL) != "" {
		proxyURL, err := url.Parse(opts.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	return &Factory{
		opts:      opts,
		transport: cloudflarebp.AddCloudFlareByPass(transport),
	}, nil
}

// Session carries one work unit's cookies, tokens, and client identity.
type Session struct {
	base     *url.URL
	client   *http.Client
	jar      http.CookieJar
	tokens   map[string]string
	identity string
	headers  map[string]string

	maxBody      int64
	maxRedirects int
}

// Open initialises a session against a base URL with an empty jar and token
// store.
func (f *Factory) Open(baseURL string) (*Session, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}

	headers := make(map[string]string, len(f.opts.Headers))
	for k, v := range f.opts.Headers {
		headers[k] = v
	}

	return &Session{
		base: base,
		client: &http.Client{
			Timeout:   f.opts.Timeout,
			Transport: f.transport,
			Jar:       jar,
			// redirects are walked manually so cookies and tokens survive
			// every hop and chains stay bounded
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		jar:          jar,
		tokens:       make(map[string]string),
		headers:      headers,
		maxBody:      f.opts.MaxBodyBytes,
		maxRedirects: f.opts.MaxRedirects,
	}, nil
}

// Base returns the session's base URL.
func (s *Session) Base() *url.URL { return s.base }

// SetIdentity sets the client signature attached to subsequent requests.
func (s *Session) SetIdentity(ua string) { s.identity = ua }

// Close releases idle connections held for this session's transport.
func (s *Session) Close() {
	s.client.CloseIdleConnections()
}

// Get issues a GET with the session's cookies and identity.
func (s *Session) Get(ctx context.Context, rawurl string) (*Response, error) {
	return s.Do(ctx, Request{Method: http.MethodGet, URL: rawurl})
}

// PostForm issues an application/x-www-form-urlencoded POST.
func (s *Session) PostForm(ctx context.Context, rawurl string, form url.Values) (*Response, error) {
	return s.Do(ctx, Request{Method: http.MethodPost, URL: rawurl, Form: form})
}

// Do issues the declarative request, following up to maxRedirects 3xx hops
// with cookie propagation at every hop.
func (s *Session) Do(ctx context.Context, req Request) (*Response, error) {
	target, err := s.resolve(req.URL)
	if err != nil {
		return nil, err
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body []byte
	contentType := ""
	switch {
	case len(req.JSON) > 0:
		body = req.JSON
		contentType = "application/json"
	case len(req.Form) > 0:
		body = []byte(req.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	}

	for hop := 0; ; hop++ {
		resp, err := s.roundTrip(ctx, method, target, body, contentType, req.Header)
		if err != nil {
			return nil, err
		}

		if resp.Status < 300 || resp.Status > 399 {
			return resp, nil
		}
		loc := resp.Header.Get("Location")
		if loc == "" {
			return resp, nil
		}
		if hop >= s.maxRedirects {
			return nil, fmt.Errorf("%w (last location %q)", ErrTooManyRedirects, loc)
		}

		next, err := target.Parse(loc)
		if err != nil {
			return nil, fmt.Errorf("resolve redirect %q: %w", loc, err)
		}
		target = next
		// 307/308 preserve the method and body, everything else degrades
		// to GET per browser behaviour
		if resp.Status != http.StatusTemporaryRedirect && resp.Status != http.StatusPermanentRedirect {
			method = http.MethodGet
			body = nil
			contentType = ""
		}
	}
}

func (s *Session) roundTrip(ctx context.Context, method string, target *url.URL, body []byte, contentType string, extra map[string]string) (*Response, error) {
	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	if s.identity != "" {
		httpReq.Header.Set("User-Agent", s.identity)
	}
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	httpReq.Header.Set("Accept-Language", "en-US,en;q=0.8")
	httpReq.Header.Set("Accept-Encoding", "gzip, deflate, br")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	for k, v := range s.headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range extra {
		httpReq.Header.Set(k, v)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, &TransientError{Err: err}
	}

	payload, err := s.readBody(resp)
	if err != nil {
		return nil, err
	}

	finalURL := target
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL
	}

	return &Response{
		Status:   resp.StatusCode,
		Header:   resp.Header.Clone(),
		Body:     payload,
		FinalURL: finalURL,
	}, nil
}

func (s *Session) readBody(resp *http.Response) ([]byte, error) {
	if resp == nil || resp.Body == nil {
		return nil, errors.New("empty response body")
	}

	reader := io.Reader(resp.Body)
	closers := []io.Closer{resp.Body}

	encoding := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	switch encoding {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip decode: %w", err)
		}
		reader = gz
		closers = append(closers, gz)
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "deflate":
		fl := flate.NewReader(resp.Body)
		reader = fl
		closers = append(closers, fl)
	}

	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}()

	limited := io.LimitReader(reader, s.maxBody+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, &TransientError{Err: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(body)) > s.maxBody {
		return nil, fmt.Errorf("response body exceeds limit of %d bytes", s.maxBody)
	}
	return body, nil
}

func (s *Session) resolve(rawurl string) (*url.URL, error) {
	if strings.TrimSpace(rawurl) == "" {
		return s.base, nil
	}
	u, err := s.base.Parse(rawurl)
	if err != nil {
		return nil, fmt.Errorf("resolve url %q: %w", rawurl, err)
	}
	return u, nil
}

// ExtractToken runs an adapter-supplied extractor against a response body
// and stores the value on success. When the extractor finds nothing, any
// previously stored value is retained; servers that round-trip state do not
// forgive a cleared token.
func (s *Session) ExtractToken(name string, body []byte, extract TokenExtractor) (string, bool) {
	value, ok := extract(body)
	if !ok {
		prev, had := s.tokens[name]
		return prev, had
	}
	s.tokens[name] = value
	return value, true
}

// TokenValue returns the current value of a tracked token.
func (s *Session) TokenValue(name string) (string, bool) {
	v, ok := s.tokens[name]
	return v, ok
}

// Tokens returns a copy of the token store for request building.
func (s *Session) Tokens() map[string]string {
	out := make(map[string]string, len(s.tokens))
	for k, v := range s.tokens {
		out[k] = v
	}
	return out
}
