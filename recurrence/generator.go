// Package recurrence expands a template occurrence and a recurrence rule into concrete
// start/end pairs.
package recurrence

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// MaxOccurrences caps a single expansion. Anything larger is almost always a typo in the
// end date.
const MaxOccurrences = 500

var (
	ErrNoWeekdays         = errors.New("recurrence: at least one weekday is required")
	ErrInvalidWeekday     = errors.New("recurrence: weekday must be between 0 (Sunday) and 6 (Saturday)")
	ErrUntilBeforeStart   = errors.New("recurrence: end date is before the first occurrence")
	ErrEndBeforeStart     = errors.New("recurrence: template end is before template start")
	ErrTooManyOccurrences = fmt.Errorf("recurrence: more than %d occurrences", MaxOccurrences)
	ErrUnknownMode        = errors.New("recurrence: unknown mode")
)

type Mode string

const (
	ModeWeekly Mode = "weekly"
	ModeCustom Mode = "custom"
)

// ParseMode converts user input into a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeWeekly, ModeCustom:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Rule describes how a template repeats. Weekdays use 0=Sunday..6=Saturday.
// Until is inclusive.
type Rule struct {
	Mode     Mode
	Weekdays []int
	Until    time.Time
}

// Occurrence is one generated start/end pair.
type Occurrence struct {
	Start time.Time
	End   time.Time
}

var rruleWeekdays = [7]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// Generate expands the template [templateStart, templateEnd) according to rule.
// Time of day and location are taken from templateStart, duration from templateEnd-templateStart.
func Generate(templateStart, templateEnd time.Time, rule Rule) ([]Occurrence, error) {
	templateStart = templateStart.Truncate(time.Second)
	if templateEnd.Before(templateStart) {
		return nil, ErrEndBeforeStart
	}
	if rule.Until.Before(templateStart) {
		return nil, ErrUntilBeforeStart
	}

	weekdays, err := selectWeekdays(templateStart, rule)
	if err != nil {
		return nil, err
	}

	var freq rrule.Frequency
	switch rule.Mode {
	case ModeWeekly:
		freq = rrule.WEEKLY
	case ModeCustom:
		freq = rrule.DAILY
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, rule.Mode)
	}

	r, err := rrule.NewRRule(rrule.ROption{
		Freq:      freq,
		Dtstart:   templateStart,
		Until:     rule.Until.In(templateStart.Location()),
		Byweekday: weekdays,
		Count:     MaxOccurrences + 1,
	})
	if err != nil {
		return nil, fmt.Errorf("recurrence: build rule: %w", err)
	}

	starts := r.All()
	if len(starts) > MaxOccurrences {
		return nil, ErrTooManyOccurrences
	}

	duration := templateEnd.Sub(templateStart)
	out := make([]Occurrence, 0, len(starts))
	for _, s := range starts {
		if s.Before(templateStart) || s.After(rule.Until) {
			continue
		}
		out = append(out, Occurrence{Start: s, End: s.Add(duration)})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func selectWeekdays(templateStart time.Time, rule Rule) ([]rrule.Weekday, error) {
	days := rule.Weekdays
	if len(days) == 0 {
		if rule.Mode != ModeWeekly {
			return nil, ErrNoWeekdays
		}
		days = []int{int(templateStart.Weekday())}
	}

	seen := make(map[int]bool, len(days))
	out := make([]rrule.Weekday, 0, len(days))
	for _, d := range days {
		if d < 0 || d > 6 {
			return nil, fmt.Errorf("%w: got %d", ErrInvalidWeekday, d)
		}
		if seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, rruleWeekdays[d])
	}
	return out, nil
}
