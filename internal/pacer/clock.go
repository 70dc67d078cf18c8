package pacer

import (
	"context"
	"time"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// Sleeper blocks for d or until ctx is done, whichever comes first. A
// cancelled sleep must return a non-nil error.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SleepFunc adapts a function to Sleeper.
type SleepFunc func(ctx context.Context, d time.Duration) error

func (f SleepFunc) Sleep(ctx context.Context, d time.Duration) error { return f(ctx, d) }

// SystemClock reads time.Now.
var SystemClock Clock = ClockFunc(time.Now)

// TimerSleeper sleeps on a runtime timer.
var TimerSleeper Sleeper = SleepFunc(timerSleep)

func timerSleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
