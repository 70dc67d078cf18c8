// Package pattern compiles declarative rate profiles into a timeline that
// maps elapsed time to a rate multiplier.
//
// A pattern is a fixed-length cycle split into steps. Each step has a shape:
//   - flat: a constant factor
//   - ramp: linear interpolation from one factor to another
//   - sinus: a sine wave around a center
//   - duty: a square wave alternating between high and low
//
// Steps may carry mutators (cap, noise, burst) and a transition that blends
// the tail of the step into the start of the next one. Pattern-wide spike
// mutators lift the multiplier around a clock-of-day target.
//
// # Building a Timeline
//
//	tl, err := pattern.New(cfg, pattern.Options{RunStart: time.Now()})
//	if err != nil {
//		return err // configuration problems surface here, never at sample time
//	}
//	s := tl.Sample(time.Now())
//	rps := baseRate * s.Multiplier
//
// # Time
//
// Profile time equals wall-clock time in realtime mode and is scaled by a
// decimal warp factor in warp mode. Repeating patterns wrap from the run
// start or, for one-day and one-week patterns, align to the calendar in the
// configured location. A limited number of occurrences freezes the timeline
// at the end of the last cycle.
//
// # Determinism
//
// Noise and burst schedules are drawn once at construction from generators
// seeded by [SeedResolver]. Two timelines built from the same config produce
// identical samples.
package pattern
