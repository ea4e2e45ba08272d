package models

import "time"

type MemberRole string

const (
	RoleTrainer MemberRole = "trainer"
	RolePlayer  MemberRole = "player"
)

// TeamDefaults holds the per-category scheduling defaults of a team.
// The category-less DeadlineHours/ArrivalMinutes are the legacy team-wide fallbacks.
type TeamDefaults struct {
	DeadlineHours  *int `json:"rsvp_deadline_hours,omitempty" db:"rsvp_deadline_hours"`
	ArrivalMinutes *int `json:"arrival_minutes,omitempty" db:"arrival_minutes"`

	TrainingDeadlineHours  *int `json:"training_rsvp_deadline_hours,omitempty" db:"training_rsvp_deadline_hours"`
	TrainingArrivalMinutes *int `json:"training_arrival_minutes,omitempty" db:"training_arrival_minutes"`
	MatchDeadlineHours     *int `json:"match_rsvp_deadline_hours,omitempty" db:"match_rsvp_deadline_hours"`
	MatchArrivalMinutes    *int `json:"match_arrival_minutes,omitempty" db:"match_arrival_minutes"`
	OtherDeadlineHours     *int `json:"other_rsvp_deadline_hours,omitempty" db:"other_rsvp_deadline_hours"`
	OtherArrivalMinutes    *int `json:"other_arrival_minutes,omitempty" db:"other_arrival_minutes"`

	DefaultResponse ResponseStatus `json:"default_response" db:"default_response"`
}

// HomeVenue is one named home ground of a team.
type HomeVenue struct {
	ID        int     `json:"id" db:"id"`
	TeamID    int     `json:"team_id" db:"team_id"`
	Name      string  `json:"name" db:"name"`
	Street    *string `json:"street,omitempty" db:"street"`
	ZipCity   *string `json:"zip_city,omitempty" db:"zip_city"`
	PitchType *string `json:"pitch_type,omitempty" db:"pitch_type"`
}

type Team struct {
	ID               int          `json:"id" db:"id"`
	Name             string       `json:"name" db:"name"`
	FeedTeamID       *string      `json:"feed_team_id,omitempty" db:"feed_team_id"`
	FeedTeamName     *string      `json:"feed_team_name,omitempty" db:"feed_team_name"`
	Defaults         TeamDefaults `json:"defaults"`
	DefaultVenueName *string      `json:"default_venue_name,omitempty" db:"default_venue_name"`
	CreatedAt        time.Time    `json:"created_at" db:"created_at"`

	HomeVenues []HomeVenue `json:"home_venues,omitempty" db:"-"`
}

// DefaultVenue returns the designated default home venue, if one is configured and exists.
func (t *Team) DefaultVenue() (*HomeVenue, bool) {
	if t.DefaultVenueName == nil || *t.DefaultVenueName == "" {
		return nil, false
	}
	for i := range t.HomeVenues {
		if t.HomeVenues[i].Name == *t.DefaultVenueName {
			return &t.HomeVenues[i], true
		}
	}
	return nil, false
}

// NamesForMatching returns the names under which the team may appear in the fixture feed.
func (t *Team) NamesForMatching() []string {
	names := []string{t.Name}
	if t.FeedTeamName != nil && *t.FeedTeamName != "" {
		names = append(names, *t.FeedTeamName)
	}
	return names
}

type TeamMember struct {
	TeamID   int        `json:"team_id" db:"team_id"`
	UserID   int        `json:"user_id" db:"user_id"`
	Role     MemberRole `json:"role" db:"role"`
	JoinedAt time.Time  `json:"joined_at" db:"joined_at"`
}

// DeletedOccurrence — «надгробие» удалённого события, читается только экспортом календаря.
type DeletedOccurrence struct {
	ID           int       `json:"id" db:"id"`
	TeamID       int       `json:"team_id" db:"team_id"`
	OccurrenceID int       `json:"occurrence_id" db:"occurrence_id"`
	Title        string    `json:"title" db:"title"`
	StartsAt     time.Time `json:"starts_at" db:"starts_at"`
	EndsAt       time.Time `json:"ends_at" db:"ends_at"`
	DeletedAt    time.Time `json:"deleted_at" db:"deleted_at"`
}
