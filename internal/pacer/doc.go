// Package pacer admits units of work at a rate shaped by a pattern.Timeline.
//
// A Pacer is a continuous token bucket. Between polls it integrates
// baseRate × multiplier over profile time with the trapezoid rule, caps the
// level at max(baseRate×60, 10) tokens and hands out one token per
// AwaitReady call. When the bucket is short it sleeps for the real time the
// current rate needs to refill one token, never less than MinWait, and polls
// again. Optional jitter delays each admission by up to JitterConfig.Max.
//
// Time and sleeping go through the Clock and Sleeper seams so tests can drive
// a Pacer with a fake clock.
package pacer
