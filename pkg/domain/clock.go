package domain

import (
	"fmt"
	"time"
)

const (
	// DateLayout is the wire format of booking dates.
	DateLayout = "2006-01-02"
	// ClockLayout is the wire format of booking start times.
	ClockLayout = "15:04"
)

// ParseClock converts "HH:MM" into minutes since midnight.
func ParseClock(v string) (int, error) {
	t, err := time.Parse(ClockLayout, v)
	if err != nil {
		return 0, fmt.Errorf("%w: time %q", ErrInvalidInput, v)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatClock converts minutes since midnight into "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// ParseDate validates a "YYYY-MM-DD" date.
func ParseDate(v string) (time.Time, error) {
	t, err := time.Parse(DateLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q", ErrInvalidInput, v)
	}
	return t, nil
}
