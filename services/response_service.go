package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mrsorbate/KADR.app-sub000/models"
	"github.com/mrsorbate/KADR.app-sub000/repositories"
)

var ErrNotInvited = fmt.Errorf("%w: user is not invited to this occurrence", ErrForbiddenOperation)

type SetResponseInput struct {
	Status  string  `json:"status"`
	Comment *string `json:"comment"`
}

type ResponseService interface {
	// SetResponse records userID's answer. Members answer for themselves; trainers for anyone.
	SetResponse(ctx context.Context, actorID, occurrenceID, userID int, input SetResponseInput) (*models.Response, error)
	// AddMemberToFutureOccurrences invites a newly joined member to every upcoming
	// invite-all occurrence of the team. Returns the number of rows created.
	AddMemberToFutureOccurrences(ctx context.Context, actorID, teamID, userID int) (int64, error)
}

type responseService struct {
	tx          repositories.TxManager
	occurrences repositories.OccurrenceRepository
	responses   repositories.ResponseRepository
	teams       repositories.TeamRepository
	expirer     *TentativeExpirer
	broadcaster TeamBroadcaster
	now         func() time.Time
	logger      *slog.Logger
}

func NewResponseService(
	tx repositories.TxManager,
	occurrences repositories.OccurrenceRepository,
	responses repositories.ResponseRepository,
	teams repositories.TeamRepository,
	expirer *TentativeExpirer,
	broadcaster TeamBroadcaster,
	now func() time.Time,
	logger *slog.Logger,
) ResponseService {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	if broadcaster == nil {
		broadcaster = nopBroadcaster{}
	}
	if expirer == nil {
		expirer = NewTentativeExpirer(responses, now, logger)
	}
	return &responseService{
		tx:          tx,
		occurrences: occurrences,
		responses:   responses,
		teams:       teams,
		expirer:     expirer,
		broadcaster: broadcaster,
		now:         now,
		logger:      logger,
	}
}

func (s *responseService) SetResponse(ctx context.Context, actorID, occurrenceID, userID int, input SetResponseInput) (*models.Response, error) {
	if _, err := s.expirer.ExpireStale(ctx); err != nil {
		return nil, err
	}

	status, err := models.ParseResponseStatus(input.Status)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, input.Status)
	}

	occ, err := s.occurrences.GetByID(ctx, nil, occurrenceID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	if actorID == userID {
		if _, err := requireMember(ctx, s.teams, occ.TeamID, actorID); err != nil {
			return nil, err
		}
	} else {
		if err := requireTrainer(ctx, s.teams, occ.TeamID, actorID); err != nil {
			return nil, err
		}
		if _, err := s.teams.GetMember(ctx, nil, occ.TeamID, userID); err != nil {
			return nil, handleRepositoryError(err)
		}
	}

	now := s.now()
	if status == models.ResponseTentative && !TentativeAllowed(occ.RSVPDeadline, now) {
		return nil, ErrTentativeClosed
	}

	if !occ.InviteAll {
		if _, err := s.responses.Get(ctx, nil, occ.ID, userID); err != nil {
			if errors.Is(err, repositories.ErrResponseNotFound) {
				return nil, ErrNotInvited
			}
			return nil, err
		}
	}

	resp := &models.Response{
		OccurrenceID: occ.ID,
		UserID:       userID,
		Status:       status,
		RespondedAt:  &now,
	}
	if input.Comment != nil {
		resp.Comment = stringPtr(strings.TrimSpace(*input.Comment))
	}
	if err := s.responses.Upsert(ctx, nil, resp); err != nil {
		return nil, handleRepositoryError(err)
	}

	s.logger.InfoContext(ctx, "response set",
		slog.Int("occurrence_id", occ.ID),
		slog.Int("user_id", userID),
		slog.Int("actor_id", actorID),
		slog.String("status", string(status)),
	)
	s.broadcaster.BroadcastToTeam(occ.TeamID, EventOccurrencesChanged, map[string]interface{}{
		"occurrence_id": occ.ID,
		"user_id":       userID,
		"status":        status,
	})
	return resp, nil
}

func (s *responseService) AddMemberToFutureOccurrences(ctx context.Context, actorID, teamID, userID int) (int64, error) {
	if actorID == userID {
		if _, err := requireMember(ctx, s.teams, teamID, actorID); err != nil {
			return 0, err
		}
	} else {
		if err := requireTrainer(ctx, s.teams, teamID, actorID); err != nil {
			return 0, err
		}
		if _, err := s.teams.GetMember(ctx, nil, teamID, userID); err != nil {
			return 0, handleRepositoryError(err)
		}
	}
	team, err := loadTeam(ctx, s.teams, nil, teamID)
	if err != nil {
		return 0, err
	}

	var added int64
	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		upcoming, err := s.occurrences.ListFutureInviteAll(ctx, exec, teamID, s.now())
		if err != nil {
			return err
		}
		status := defaultResponseStatus(team)
		for _, o := range upcoming {
			n, err := s.responses.InsertDefaults(ctx, exec, o.ID, []int{userID}, status)
			if err != nil {
				return err
			}
			added += n
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("inviting member %d to upcoming occurrences: %w", userID, err)
	}

	if added > 0 {
		s.logger.InfoContext(ctx, "member invited to upcoming occurrences",
			slog.Int("team_id", teamID),
			slog.Int("user_id", userID),
			slog.Int64("count", added),
		)
		s.broadcaster.BroadcastToTeam(teamID, EventOccurrencesChanged, map[string]interface{}{"user_id": userID, "invited": added})
	}
	return added, nil
}
