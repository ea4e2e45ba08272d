package fixtures

import (
	"fmt"
	"time"
)

// Season runs from July 1 of StartYear through June 30 of the following year.
type Season struct {
	StartYear int
	loc       *time.Location
}

// SeasonOf returns the season t falls into, evaluated in t's location.
func SeasonOf(t time.Time) Season {
	year := t.Year()
	if t.Month() < time.July {
		year--
	}
	return Season{StartYear: year, loc: t.Location()}
}

func (s Season) location() *time.Location {
	if s.loc == nil {
		return time.UTC
	}
	return s.loc
}

// Start is July 1, 00:00.
func (s Season) Start() time.Time {
	return time.Date(s.StartYear, time.July, 1, 0, 0, 0, 0, s.location())
}

// End is the last instant of June 30 of the following year.
func (s Season) End() time.Time {
	return time.Date(s.StartYear+1, time.July, 1, 0, 0, 0, 0, s.location()).Add(-time.Nanosecond)
}

func (s Season) Contains(t time.Time) bool {
	return !t.Before(s.Start()) && !t.After(s.End())
}

func (s Season) String() string {
	return fmt.Sprintf("%d/%02d", s.StartYear, (s.StartYear+1)%100)
}
