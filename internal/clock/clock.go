package clock

import "time"

// Clock supplies the current time to components that make calendar decisions.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// System returns a Clock backed by the wall clock.
func System() Clock { return systemClock{} }

// Fixed returns a Clock that always reports the given instant.
func Fixed(t time.Time) Clock { return fixedClock{t: t} }

type fixedClock struct {
	t time.Time
}

func (c fixedClock) Now() time.Time { return c.t }

// DayKey formats an instant as a calendar-day key in local time.
func DayKey(t time.Time) string { return t.Format("2006-01-02") }
