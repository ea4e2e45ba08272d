package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/mrsorbate/KADR.app-sub000/models"
	"github.com/mrsorbate/KADR.app-sub000/repositories"
)

const (
	EventOccurrencesChanged = "OCCURRENCES_CHANGED"
	EventFixturesImported   = "FIXTURES_IMPORTED"
)

// TeamBroadcaster pushes an event to every websocket client watching a team.
type TeamBroadcaster interface {
	BroadcastToTeam(teamID int, eventType string, payload interface{})
}

type nopBroadcaster struct{}

func (nopBroadcaster) BroadcastToTeam(int, string, interface{}) {}

// handleRepositoryError переводит ошибки репозитория в ошибки сервиса.
func handleRepositoryError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrOccurrenceNotFound):
		return ErrOccurrenceNotFound
	case errors.Is(err, repositories.ErrTeamNotFound), errors.Is(err, repositories.ErrOccurrenceTeamInvalid):
		return ErrTeamNotFound
	case errors.Is(err, repositories.ErrMemberNotFound):
		return ErrMemberNotFound
	case errors.Is(err, repositories.ErrOccurrenceTimeRange):
		return ErrEndBeforeStart
	default:
		return err
	}
}

// requireMember returns the actor's membership or ErrNotTeamMember.
func requireMember(ctx context.Context, teams repositories.TeamRepository, teamID, userID int) (*models.TeamMember, error) {
	member, err := teams.GetMember(ctx, nil, teamID, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrMemberNotFound) {
			return nil, ErrNotTeamMember
		}
		return nil, fmt.Errorf("checking membership: %w", err)
	}
	return member, nil
}

func requireTrainer(ctx context.Context, teams repositories.TeamRepository, teamID, userID int) error {
	member, err := requireMember(ctx, teams, teamID, userID)
	if err != nil {
		return err
	}
	if member.Role != models.RoleTrainer {
		return ErrTrainerRoleRequired
	}
	return nil
}

func loadTeam(ctx context.Context, teams repositories.TeamRepository, exec repositories.SQLExecutor, teamID int) (*models.Team, error) {
	team, err := teams.GetByID(ctx, exec, teamID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	return team, nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func boolPtr(b bool) *bool { return &b }

func toSet(ids []int) map[int]struct{} {
	set := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func setMinus(a []int, b map[int]struct{}) []int {
	var out []int
	seen := make(map[int]struct{}, len(a))
	for _, id := range a {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := b[id]; !ok {
			out = append(out, id)
		}
	}
	sort.Ints(out)
	return out
}

func intersect(a []int, b map[int]struct{}) []int {
	var out []int
	seen := make(map[int]struct{}, len(a))
	for _, id := range a {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := b[id]; ok {
			out = append(out, id)
		}
	}
	sort.Ints(out)
	return out
}
