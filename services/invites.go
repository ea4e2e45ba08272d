package services

import (
	"context"
	"fmt"

	"github.com/mrsorbate/KADR.app-sub000/models"
	"github.com/mrsorbate/KADR.app-sub000/repositories"
)

// InviteDiff lists the members whose response rows were created or removed.
type InviteDiff struct {
	Added   []int `json:"added,omitempty"`
	Removed []int `json:"removed,omitempty"`
}

type inviteSyncer struct {
	teams     repositories.TeamRepository
	responses repositories.ResponseRepository
}

func newInviteSyncer(teams repositories.TeamRepository, responses repositories.ResponseRepository) *inviteSyncer {
	return &inviteSyncer{teams: teams, responses: responses}
}

// Sync makes the response rows of occ match its invitee set. With InviteAll the set is
// every current member; otherwise it is explicitMembers filtered to members. A nil
// explicit list keeps the members that are already invited. Rows of members in both
// sets are not touched, rows of members no longer invited are deleted with their answers.
func (s *inviteSyncer) Sync(ctx context.Context, exec repositories.SQLExecutor, occ *models.Occurrence, team *models.Team, explicitMembers []int) (InviteDiff, error) {
	memberIDs, err := s.teams.ListMemberIDs(ctx, exec, occ.TeamID)
	if err != nil {
		return InviteDiff{}, fmt.Errorf("listing members of team %d: %w", occ.TeamID, err)
	}
	members := toSet(memberIDs)

	existing, err := s.responses.ListByOccurrence(ctx, exec, occ.ID)
	if err != nil {
		return InviteDiff{}, fmt.Errorf("listing responses of occurrence %d: %w", occ.ID, err)
	}
	existingIDs := make([]int, 0, len(existing))
	for _, r := range existing {
		existingIDs = append(existingIDs, r.UserID)
	}

	var desired []int
	switch {
	case occ.InviteAll:
		desired = memberIDs
	case explicitMembers == nil:
		desired = existingIDs
	default:
		desired = explicitMembers
	}
	desired = intersect(desired, members)

	diff := InviteDiff{
		Removed: setMinus(existingIDs, toSet(desired)),
		Added:   setMinus(desired, toSet(existingIDs)),
	}

	if _, err := s.responses.DeleteForUsers(ctx, exec, occ.ID, diff.Removed); err != nil {
		return InviteDiff{}, err
	}
	status := defaultResponseStatus(team)
	if _, err := s.responses.InsertDefaults(ctx, exec, occ.ID, diff.Added, status); err != nil {
		return InviteDiff{}, err
	}
	return diff, nil
}

func defaultResponseStatus(team *models.Team) models.ResponseStatus {
	if team == nil || team.Defaults.DefaultResponse == "" {
		return models.ResponsePending
	}
	return team.Defaults.DefaultResponse
}
