package models

import (
	"fmt"
	"strings"
	"time"
)

// Category — тип события, соответствует ENUM в БД.
type Category string

const (
	CategoryTraining Category = "training"
	CategoryMatch    Category = "match"
	CategoryOther    Category = "other"
)

// ParseCategory converts user input into a Category.
func ParseCategory(s string) (Category, error) {
	switch c := Category(strings.ToLower(strings.TrimSpace(s))); c {
	case CategoryTraining, CategoryMatch, CategoryOther:
		return c, nil
	default:
		return "", fmt.Errorf("unknown category %q", s)
	}
}

// Location описывает место проведения. Все поля опциональны.
type Location struct {
	Venue   *string `json:"venue,omitempty" db:"location_venue"`
	Street  *string `json:"street,omitempty" db:"location_street"`
	ZipCity *string `json:"zip_city,omitempty" db:"location_zip_city"`
}

// IsEmpty reports whether no location field carries a value.
func (l Location) IsEmpty() bool {
	return isBlank(l.Venue) && isBlank(l.Street) && isBlank(l.ZipCity)
}

// Occurrence is one concrete scheduled instance of a training, match or other event.
type Occurrence struct {
	ID              int        `json:"id" db:"id"`
	TeamID          int        `json:"team_id" db:"team_id"`
	Category        Category   `json:"category" db:"category"`
	Title           string     `json:"title" db:"title"`
	Description     *string    `json:"description,omitempty" db:"description"`
	Location        Location   `json:"location"`
	PitchType       *string    `json:"pitch_type,omitempty" db:"pitch_type"`
	MeetingPoint    *string    `json:"meeting_point,omitempty" db:"meeting_point"`
	ArrivalMinutes  *int       `json:"arrival_minutes,omitempty" db:"arrival_minutes"`
	StartsAt        time.Time  `json:"starts_at" db:"starts_at"`
	EndsAt          time.Time  `json:"ends_at" db:"ends_at"`
	RSVPDeadline    *time.Time `json:"rsvp_deadline,omitempty" db:"rsvp_deadline"`
	DurationMinutes *int       `json:"duration_minutes,omitempty" db:"duration_minutes"`
	VisibleToAll    bool       `json:"visible_to_all" db:"visible_to_all"`
	InviteAll       bool       `json:"invite_all" db:"invite_all"`
	CreatedBy       *int       `json:"created_by,omitempty" db:"created_by"`
	SeriesID        *string    `json:"series_id,omitempty" db:"series_id"`
	ExternalKey     *string    `json:"external_key,omitempty" db:"external_key"`
	IsHome          *bool      `json:"is_home,omitempty" db:"is_home"`
	OpponentCrest   *string    `json:"opponent_crest_url,omitempty" db:"opponent_crest_url"`
	SchedulePinned  bool       `json:"schedule_pinned" db:"schedule_pinned"` // deadline or arrival set by hand
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`

	Responses []Response `json:"responses,omitempty" db:"-"`
}

// Duration returns EndsAt - StartsAt.
func (o *Occurrence) Duration() time.Duration {
	return o.EndsAt.Sub(o.StartsAt)
}

// SetTimes sets start/end and refreshes the cached duration in minutes.
func (o *Occurrence) SetTimes(start, end time.Time) {
	o.StartsAt = start
	o.EndsAt = end
	minutes := int(end.Sub(start) / time.Minute)
	o.DurationMinutes = &minutes
}

func isBlank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}
