package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/torosent/swarmpace/internal/config"
)

// RequestBuilder produces one fresh *http.Request per admission. Headers
// and body are fixed for the whole run.
type RequestBuilder struct {
	method  string
	target  string
	headers http.Header
	body    BodySource
}

func NewRequestBuilder(cfg *config.Config) (*RequestBuilder, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	target := strings.TrimSpace(cfg.TargetURL)
	if target == "" {
		return nil, errors.New("target URL is required")
	}
	method := strings.ToUpper(strings.TrimSpace(cfg.Method))
	if method == "" {
		method = http.MethodGet
	}
	headers, err := headerSet(cfg.Headers)
	if err != nil {
		return nil, err
	}
	return &RequestBuilder{method: method, target: target, headers: headers, body: NewBodySource(cfg.Body)}, nil
}

func headerSet(raw map[string]string) (http.Header, error) {
	h := make(http.Header, len(raw))
	for key, value := range raw {
		name := strings.TrimSpace(key)
		if name == "" || strings.ContainsAny(name, "\r\n:") {
			return nil, fmt.Errorf("invalid header key %q", key)
		}
		if strings.ContainsAny(value, "\r\n") {
			return nil, fmt.Errorf("invalid header value for %s", http.CanonicalHeaderKey(name))
		}
		h.Set(name, value)
	}
	return h, nil
}

func (b *RequestBuilder) Method() string { return b.method }

func (b *RequestBuilder) Target() string { return b.target }

// Build returns a request bound to ctx. GetBody is set so redirects and
// retries can replay the body.
func (b *RequestBuilder) Build(ctx context.Context) (*http.Request, error) {
	body, err := b.body.NewReader()
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, b.method, b.target, body)
	if err != nil {
		body.Close()
		return nil, err
	}
	req.Header = b.headers.Clone()
	if n, ok := b.body.ContentLength(); ok {
		req.ContentLength = n
	}
	req.GetBody = b.body.NewReader
	return req, nil
}

// NewClient returns a client whose idle pool holds one connection per
// worker, so steady paced traffic reuses connections instead of dialing.
func NewClient(timeout time.Duration, workers int) *http.Client {
	if timeout < 0 {
		timeout = 0
	}
	if workers < 1 {
		workers = 1
	}
	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			DialContext:         dialer.DialContext,
			ForceAttemptHTTP2:   true,
			MaxIdleConns:        workers * 2,
			MaxIdleConnsPerHost: workers,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}
