package httpclient

import (
	"context"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/swarmpace/internal/runner"
	"github.com/torosent/swarmpace/internal/tracing"
)

const maxErrorBodyBytes = 1024

// Requester sends one built request per Do call. Status codes >= 400 are
// returned as *runner.HTTPError.
type Requester struct {
	client    *http.Client
	builder   *RequestBuilder
	tracer    trace.Tracer
	propagate bool
}

type RequesterOption func(*Requester)

// WithTracer wraps each request in a client span. When propagate is set the
// span context is also written into the request headers.
func WithTracer(tracer trace.Tracer, propagate bool) RequesterOption {
	return func(r *Requester) {
		r.tracer = tracer
		r.propagate = propagate
	}
}

func NewRequester(client *http.Client, builder *RequestBuilder, opts ...RequesterOption) *Requester {
	r := &Requester{client: client, builder: builder}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Requester) Do(ctx context.Context) (err error) {
	var status int
	if r.tracer != nil {
		var span trace.Span
		ctx, span = tracing.StartRequestSpan(ctx, r.tracer, r.builder.Method(), r.builder.Target())
		defer func() {
			tracing.EndSpan(span, err, attribute.Int("http.response.status_code", status))
		}()
	}

	req, err := r.builder.Build(ctx)
	if err != nil {
		return err
	}
	if r.propagate {
		tracing.InjectHTTPHeaders(ctx, req.Header)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	if resp.StatusCode >= 400 {
		snippet, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		if readErr != nil {
			return readErr
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		return &runner.HTTPError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
