package services

import (
	"time"

	"github.com/mrsorbate/KADR.app-sub000/models"
)

const (
	MaxDeadlineHours  = 168
	MaxArrivalMinutes = 240

	// tentativeCutoff closes the tentative option this long before the rsvp deadline.
	tentativeCutoff = time.Hour
)

// ScheduleDefaults are the deadline and arrival values that apply to one occurrence.
// Nil means "none".
type ScheduleDefaults struct {
	DeadlineHours  *int
	ArrivalMinutes *int
}

// ResolveScheduleDefaults picks the category value and falls back to the team-wide one.
func ResolveScheduleDefaults(d models.TeamDefaults, category models.Category) ScheduleDefaults {
	var deadline, arrival *int
	switch category {
	case models.CategoryTraining:
		deadline, arrival = d.TrainingDeadlineHours, d.TrainingArrivalMinutes
	case models.CategoryMatch:
		deadline, arrival = d.MatchDeadlineHours, d.MatchArrivalMinutes
	case models.CategoryOther:
		deadline, arrival = d.OtherDeadlineHours, d.OtherArrivalMinutes
	}
	if deadline == nil {
		deadline = d.DeadlineHours
	}
	if arrival == nil {
		arrival = d.ArrivalMinutes
	}
	return ScheduleDefaults{DeadlineHours: copyInt(deadline), ArrivalMinutes: copyInt(arrival)}
}

// ApplyOverrides lets explicit per-occurrence values win over resolved defaults.
func ApplyOverrides(resolved ScheduleDefaults, deadlineHours, arrivalMinutes *int) ScheduleDefaults {
	if deadlineHours != nil {
		resolved.DeadlineHours = copyInt(deadlineHours)
	}
	if arrivalMinutes != nil {
		resolved.ArrivalMinutes = copyInt(arrivalMinutes)
	}
	return resolved
}

// DeadlineFor returns start minus hours, or nil without hours.
func DeadlineFor(start time.Time, hours *int) *time.Time {
	if hours == nil {
		return nil
	}
	d := start.Add(-time.Duration(*hours) * time.Hour)
	return &d
}

// DeadlineOffset is start minus deadline, or nil without deadline.
func DeadlineOffset(start time.Time, deadline *time.Time) *time.Duration {
	if deadline == nil {
		return nil
	}
	off := start.Sub(*deadline)
	return &off
}

// ShiftDeadline reapplies a captured offset to a new start.
func ShiftDeadline(newStart time.Time, offset *time.Duration) *time.Time {
	if offset == nil {
		return nil
	}
	d := newStart.Add(-*offset)
	return &d
}

func ValidateDeadlineHours(hours *int) error {
	if hours != nil && (*hours < 0 || *hours > MaxDeadlineHours) {
		return ErrDeadlineHoursOutOfRange
	}
	return nil
}

func ValidateArrivalMinutes(minutes *int) error {
	if minutes != nil && (*minutes < 0 || *minutes > MaxArrivalMinutes) {
		return ErrArrivalMinutesOutOfRange
	}
	return nil
}

// TentativeAllowed reports whether a response may still be set to tentative:
// false once now >= deadline - 1h. Occurrences without a deadline always allow it.
func TentativeAllowed(deadline *time.Time, now time.Time) bool {
	if deadline == nil {
		return true
	}
	return now.Before(deadline.Add(-tentativeCutoff))
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
