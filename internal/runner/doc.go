// Package runner drives concurrent request execution behind a single
// admission scheduler.
//
// One scheduler goroutine waits on the arrival controller and hands permits
// to a pool of workers. Three arrival models are supported:
//   - [ArrivalModelUniform]: fixed spacing through a golang.org/x/time/rate limiter
//   - [ArrivalModelPoisson]: exponential inter-arrival times from a seeded sampler
//   - [ArrivalModelPattern]: admissions granted by a [Pacer], normally a
//     *pacer.Pacer following a pattern timeline
//
// Because only the scheduler calls [Pacer.AwaitReady], a pacer is never
// invoked concurrently.
//
// # Basic Usage
//
//	r, err := runner.New(runner.Options{
//		Concurrency: 10,
//		Duration:    time.Minute,
//		Pacer:       p,
//		OnAdmit:     collector.RecordAdmission,
//		Requester:   myRequester,
//	})
//	if err != nil {
//		return err
//	}
//	result := r.Run(ctx)
//
// # Middleware
//
//   - [WithLogging]: log request failures, e.g. through [LogrusFailures]
//   - [WithRetry]: re-send retryable failures after an [ExponentialBackoff] pause
package runner
