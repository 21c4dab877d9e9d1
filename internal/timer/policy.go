// Package timer holds the pure time arithmetic for exam sessions. Every
// mutating lifecycle operation consults these functions before it proceeds;
// nothing here has side effects.
package timer

import "time"

// Grace is the buffer after nominal expiry during which a mutating call is
// still honored. It exists to tolerate network latency on the final
// autosave or submit; remaining time reported to clients never includes it.
const Grace = 3 * time.Second

// Clock abstracts wall-clock reads so tests can simulate elapsed time
// instead of sleeping.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Deadline returns the nominal end of the attempt window.
func Deadline(startedAt time.Time, durationMinutes int) time.Time {
	return startedAt.Add(time.Duration(durationMinutes) * time.Minute)
}

// Remaining returns the time left in the attempt window, floored at zero.
// The grace buffer is deliberately excluded: a client may see zero
// remaining and still succeed for up to Grace.
func Remaining(startedAt time.Time, durationMinutes int, now time.Time) time.Duration {
	remaining := Deadline(startedAt, durationMinutes).Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// WithinGrace reports whether a mutating call at now is still honored.
func WithinGrace(startedAt time.Time, durationMinutes int, now time.Time) bool {
	return now.Sub(startedAt) <= time.Duration(durationMinutes)*time.Minute+Grace
}

// ElapsedSeconds returns whole seconds between start and finish, for
// reporting only.
func ElapsedSeconds(startedAt, finishedAt time.Time) int64 {
	return int64(finishedAt.Sub(startedAt) / time.Second)
}
