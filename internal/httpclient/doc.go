// Package httpclient builds and sends the requests issued for each
// admission of the run command.
//
// A [RequestBuilder] is created once from the scenario config and produces a
// fresh *http.Request per attempt, so retries resend the full body. A
// [Requester] pairs a builder with a pooled client from [NewClient] and
// satisfies runner.Requester:
//
//	builder, err := httpclient.NewRequestBuilder(cfg)
//	if err != nil {
//		return err
//	}
//	req := httpclient.NewRequester(httpclient.NewClient(cfg.Timeout, cfg.Concurrency), builder,
//		httpclient.WithTracer(provider.Tracer(), provider.ShouldPropagate()))
//
// Responses with a status of 400 or above are reported as *runner.HTTPError
// carrying up to 1 KiB of the response body.
package httpclient
