// internal/timer/timer.go
//
// Cancellable deadline timers for game rounds.
// Responsibilities:
//   - Schedule a callback after an interval (Start).
//   - Rebuild a timer from a persisted absolute end time (Restore).
//   - Report elapsed/remaining time computed from the wall clock, so the
//     values stay correct across restarts.
//
// Notes:
//   - Cancel prevents a callback that has not started yet. A callback that
//     is already running is allowed to finish; owners must tolerate one
//     late invocation and guard their own state.
//   - Restore returns nil when the end time has already passed. The caller
//     runs the expiry action itself instead of scheduling a non-positive delay.

package timer

import (
	"sync"
	"time"
)

// now is swapped in tests.
var now = time.Now

// Timer owns exactly one scheduled callback.
type Timer struct {
	interval time.Duration
	start    time.Time
	end      time.Time

	mu   sync.Mutex
	t    *time.Timer
	done bool // fired or cancelled
}

// Start schedules fn to run once after interval.
func Start(interval time.Duration, fn func()) *Timer {
	n := now()
	return schedule(interval, n, n.Add(interval), fn)
}

// Restore rebuilds a timer that was started interval before end.
// It returns nil if end is not in the future.
func Restore(interval time.Duration, end time.Time, fn func()) *Timer {
	if !now().Before(end) {
		return nil
	}
	return schedule(interval, end.Add(-interval), end, fn)
}

func schedule(interval time.Duration, start, end time.Time, fn func()) *Timer {
	tm := &Timer{interval: interval, start: start, end: end}
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.t = time.AfterFunc(end.Sub(now()), func() {
		tm.mu.Lock()
		if tm.done {
			tm.mu.Unlock()
			return
		}
		tm.done = true
		tm.mu.Unlock()
		fn()
	})
	return tm
}

// Cancel stops the timer. Safe on a nil Timer and safe to call twice.
func (tm *Timer) Cancel() {
	if tm == nil {
		return
	}
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if tm.done {
		return
	}
	tm.done = true
	tm.t.Stop()
}

// Interval is the full configured duration.
func (tm *Timer) Interval() time.Duration { return tm.interval }

// StartTime is the absolute start of the countdown.
func (tm *Timer) StartTime() time.Time { return tm.start }

// EndTime is the absolute deadline.
func (tm *Timer) EndTime() time.Time { return tm.end }

// Elapsed reports how long the timer has been running.
func (tm *Timer) Elapsed() time.Duration {
	return now().Sub(tm.start)
}

// Remaining reports time left until the deadline, never negative.
func (tm *Timer) Remaining() time.Duration {
	if d := tm.end.Sub(now()); d > 0 {
		return d
	}
	return 0
}

// String renders the timer for debug output.
func (tm *Timer) String() string {
	return "interval=" + tm.interval.Round(time.Second).String() +
		", elapsed=" + tm.Elapsed().Round(time.Second).String() +
		", remaining=" + tm.Remaining().Round(time.Second).String()
}
