package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mrsorbate/KADR.app-sub000/models"
	"github.com/mrsorbate/KADR.app-sub000/recurrence"
	"github.com/mrsorbate/KADR.app-sub000/repositories"
	"golang.org/x/sync/errgroup"
)

const defaultListWindow = 90 * 24 * time.Hour

type RecurrenceInput struct {
	Mode     string `json:"mode"`
	Weekdays []int  `json:"weekdays"`
	Until    string `json:"until"`
}

type CreateOccurrenceInput struct {
	TeamID         int              `json:"-"`
	Category       string           `json:"category"`
	Title          string           `json:"title"`
	Description    *string          `json:"description"`
	Location       models.Location  `json:"location"`
	PitchType      *string          `json:"pitch_type"`
	MeetingPoint   *string          `json:"meeting_point"`
	StartsAt       time.Time        `json:"starts_at"`
	EndsAt         time.Time        `json:"ends_at"`
	DeadlineHours  *int             `json:"rsvp_deadline_hours"`
	ArrivalMinutes *int             `json:"arrival_minutes"`
	VisibleToAll   *bool            `json:"visible_to_all"`
	InviteAll      *bool            `json:"invite_all"`
	InvitedUserIDs []int            `json:"invited_user_ids"`
	Recurrence     *RecurrenceInput `json:"recurrence"`
}

// UpdateOccurrenceInput is a partial edit; nil fields stay unchanged and an empty string
// clears an optional text field. UpdateSeries shifts the whole series by the start delta;
// ReshapeSeries regenerates it from Weekdays and Until.
type UpdateOccurrenceInput struct {
	Category       *string          `json:"category"`
	Title          *string          `json:"title"`
	Description    *string          `json:"description"`
	Location       *models.Location `json:"location"`
	PitchType      *string          `json:"pitch_type"`
	MeetingPoint   *string          `json:"meeting_point"`
	StartsAt       *time.Time       `json:"starts_at"`
	EndsAt         *time.Time       `json:"ends_at"`
	DeadlineHours  *int             `json:"rsvp_deadline_hours"`
	ArrivalMinutes *int             `json:"arrival_minutes"`
	VisibleToAll   *bool            `json:"visible_to_all"`
	InviteAll      *bool            `json:"invite_all"`
	InvitedUserIDs []int            `json:"invited_user_ids"`

	UpdateSeries  bool   `json:"update_series"`
	ReshapeSeries bool   `json:"reshape_series"`
	Weekdays      []int  `json:"weekdays"`
	Until         string `json:"until"`
}

func (in UpdateOccurrenceInput) invitesChanged() bool {
	return in.InviteAll != nil || in.InvitedUserIDs != nil
}

type CreateResult struct {
	SeriesID    *string              `json:"series_id,omitempty"`
	Count       int                  `json:"count"`
	Occurrences []*models.Occurrence `json:"occurrences"`
}

type UpdateResult struct {
	// Occurrence is the edited occurrence after the update; nil when a reshape removed it.
	Occurrence *models.Occurrence `json:"occurrence,omitempty"`
	SeriesID   *string            `json:"series_id,omitempty"`
	Updated    int                `json:"updated"`
	Created    int                `json:"created"`
	Deleted    int                `json:"deleted"`
}

type DeleteResult struct {
	Deleted       int   `json:"deleted"`
	OccurrenceIDs []int `json:"occurrence_ids"`
}

type OccurrenceDetails struct {
	Occurrence       *models.Occurrence            `json:"occurrence"`
	TeamName         string                        `json:"team_name"`
	Counts           map[models.ResponseStatus]int `json:"counts"`
	MyResponse       *models.Response              `json:"my_response,omitempty"`
	TentativeAllowed bool                          `json:"tentative_allowed"`
}

type OccurrenceService interface {
	CreateOccurrence(ctx context.Context, actorID int, input CreateOccurrenceInput) (*CreateResult, error)
	UpdateOccurrence(ctx context.Context, actorID, occurrenceID int, input UpdateOccurrenceInput) (*UpdateResult, error)
	DeleteOccurrence(ctx context.Context, actorID, occurrenceID int, deleteSeries bool) (*DeleteResult, error)
	GetOccurrence(ctx context.Context, actorID, occurrenceID int) (*OccurrenceDetails, error)
	ListTeamOccurrences(ctx context.Context, actorID, teamID int, from, to time.Time) ([]*models.Occurrence, error)
	// CanWatchTeam reports ErrNotTeamMember unless the actor belongs to the team.
	CanWatchTeam(ctx context.Context, actorID, teamID int) error
}

type OccurrenceServiceDeps struct {
	Tx          repositories.TxManager
	Occurrences repositories.OccurrenceRepository
	Responses   repositories.ResponseRepository
	Teams       repositories.TeamRepository
	Tombstones  repositories.TombstoneRepository
	Expirer     *TentativeExpirer
	Broadcaster TeamBroadcaster
	Location    *time.Location
	Now         func() time.Time
	Logger      *slog.Logger
}

type occurrenceService struct {
	tx          repositories.TxManager
	occurrences repositories.OccurrenceRepository
	responses   repositories.ResponseRepository
	teams       repositories.TeamRepository
	tombstones  repositories.TombstoneRepository
	invites     *inviteSyncer
	expirer     *TentativeExpirer
	broadcaster TeamBroadcaster
	loc         *time.Location
	now         func() time.Time
	newSeriesID func() string
	logger      *slog.Logger
}

func NewOccurrenceService(d OccurrenceServiceDeps) OccurrenceService {
	s := &occurrenceService{
		tx:          d.Tx,
		occurrences: d.Occurrences,
		responses:   d.Responses,
		teams:       d.Teams,
		tombstones:  d.Tombstones,
		invites:     newInviteSyncer(d.Teams, d.Responses),
		expirer:     d.Expirer,
		broadcaster: d.Broadcaster,
		loc:         d.Location,
		now:         d.Now,
		newSeriesID: uuid.NewString,
		logger:      d.Logger,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.broadcaster == nil {
		s.broadcaster = nopBroadcaster{}
	}
	if s.expirer == nil {
		s.expirer = NewTentativeExpirer(d.Responses, s.now, s.logger)
	}
	return s
}

func (s *occurrenceService) CreateOccurrence(ctx context.Context, actorID int, input CreateOccurrenceInput) (*CreateResult, error) {
	if _, err := s.expirer.ExpireStale(ctx); err != nil {
		return nil, err
	}
	team, err := loadTeam(ctx, s.teams, nil, input.TeamID)
	if err != nil {
		return nil, err
	}
	if err := requireTrainer(ctx, s.teams, team.ID, actorID); err != nil {
		return nil, err
	}

	category, err := models.ParseCategory(input.Category)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCategory, input.Category)
	}
	if err := ValidateDeadlineHours(input.DeadlineHours); err != nil {
		return nil, err
	}
	if err := ValidateArrivalMinutes(input.ArrivalMinutes); err != nil {
		return nil, err
	}

	base := &models.Occurrence{
		TeamID:       team.ID,
		Category:     category,
		Title:        strings.TrimSpace(input.Title),
		Description:  cleanString(input.Description),
		Location:     cleanLocation(input.Location),
		PitchType:    cleanString(input.PitchType),
		MeetingPoint: cleanString(input.MeetingPoint),
		VisibleToAll: boolOr(input.VisibleToAll, true),
		InviteAll:    boolOr(input.InviteAll, true),
		CreatedBy:    &actorID,
	}
	base.SetTimes(input.StartsAt.In(s.loc), input.EndsAt.In(s.loc))
	if err := validateOccurrence(team, base); err != nil {
		return nil, err
	}
	if !base.InviteAll {
		if err := s.validateInvitees(ctx, team.ID, input.InvitedUserIDs); err != nil {
			return nil, err
		}
	}

	sched := ApplyOverrides(ResolveScheduleDefaults(team.Defaults, category), input.DeadlineHours, input.ArrivalMinutes)
	base.ArrivalMinutes = sched.ArrivalMinutes
	base.SchedulePinned = input.DeadlineHours != nil || input.ArrivalMinutes != nil

	slots := []recurrence.Occurrence{{Start: base.StartsAt, End: base.EndsAt}}
	var seriesID *string
	if input.Recurrence != nil {
		rule, err := s.parseRule(*input.Recurrence)
		if err != nil {
			return nil, err
		}
		slots, err = recurrence.Generate(base.StartsAt, base.EndsAt, rule)
		if err != nil {
			return nil, mapRecurrenceError(err)
		}
		id := s.newSeriesID()
		seriesID = &id
	}

	created := make([]*models.Occurrence, 0, len(slots))
	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		for _, slot := range slots {
			occ := cloneOccurrence(base)
			occ.SetTimes(slot.Start, slot.End)
			occ.RSVPDeadline = DeadlineFor(slot.Start, sched.DeadlineHours)
			occ.SeriesID = seriesID
			if err := s.occurrences.Create(ctx, exec, occ); err != nil {
				return handleRepositoryError(err)
			}
			if _, err := s.invites.Sync(ctx, exec, occ, team, input.InvitedUserIDs); err != nil {
				return err
			}
			created = append(created, occ)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("creating occurrences: %w", err)
	}

	s.logger.InfoContext(ctx, "occurrences created",
		slog.Int("team_id", team.ID),
		slog.Int("count", len(created)),
		slog.String("series_id", derefString(seriesID)),
	)
	s.broadcaster.BroadcastToTeam(team.ID, EventOccurrencesChanged, map[string]interface{}{"created": len(created)})

	return &CreateResult{SeriesID: seriesID, Count: len(created), Occurrences: created}, nil
}

func (s *occurrenceService) UpdateOccurrence(ctx context.Context, actorID, occurrenceID int, input UpdateOccurrenceInput) (*UpdateResult, error) {
	if _, err := s.expirer.ExpireStale(ctx); err != nil {
		return nil, err
	}
	current, err := s.occurrences.GetByID(ctx, nil, occurrenceID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	team, err := loadTeam(ctx, s.teams, nil, current.TeamID)
	if err != nil {
		return nil, err
	}
	if err := requireTrainer(ctx, s.teams, team.ID, actorID); err != nil {
		return nil, err
	}

	if (input.UpdateSeries || input.ReshapeSeries) && current.SeriesID == nil {
		return nil, ErrNotInSeries
	}
	if input.ReshapeSeries && (len(input.Weekdays) == 0 || strings.TrimSpace(input.Until) == "") {
		return nil, ErrSeriesParamsRequired
	}
	if err := ValidateDeadlineHours(input.DeadlineHours); err != nil {
		return nil, err
	}
	if err := ValidateArrivalMinutes(input.ArrivalMinutes); err != nil {
		return nil, err
	}

	patched := cloneOccurrence(current)
	if err := applyContent(patched, input); err != nil {
		return nil, err
	}
	start, end := current.StartsAt, current.EndsAt
	if input.StartsAt != nil {
		start = *input.StartsAt
		if input.EndsAt == nil {
			end = start.Add(current.Duration())
		}
	}
	if input.EndsAt != nil {
		end = *input.EndsAt
	}
	patched.SetTimes(start.In(s.loc), end.In(s.loc))
	patched.RSVPDeadline = editedDeadline(input, current, patched.StartsAt)

	if err := validateOccurrence(team, patched); err != nil {
		return nil, err
	}
	if input.InvitedUserIDs != nil && !patched.InviteAll {
		if err := s.validateInvitees(ctx, team.ID, input.InvitedUserIDs); err != nil {
			return nil, err
		}
	}

	var result *UpdateResult
	switch {
	case input.ReshapeSeries:
		result, err = s.reshapeSeries(ctx, actorID, team, current, patched, input)
	case input.UpdateSeries:
		result, err = s.shiftSeries(ctx, team, current, patched, input)
	default:
		result, err = s.updateSingle(ctx, team, patched, input)
	}
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "occurrence updated",
		slog.Int("occurrence_id", occurrenceID),
		slog.Bool("update_series", input.UpdateSeries),
		slog.Bool("reshape_series", input.ReshapeSeries),
		slog.Int("updated", result.Updated),
		slog.Int("created", result.Created),
		slog.Int("deleted", result.Deleted),
	)
	s.broadcaster.BroadcastToTeam(team.ID, EventOccurrencesChanged, result)
	return result, nil
}

func (s *occurrenceService) updateSingle(ctx context.Context, team *models.Team, patched *models.Occurrence, input UpdateOccurrenceInput) (*UpdateResult, error) {
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.occurrences.Update(ctx, exec, patched); err != nil {
			return handleRepositoryError(err)
		}
		if input.invitesChanged() {
			if _, err := s.invites.Sync(ctx, exec, patched, team, input.InvitedUserIDs); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("updating occurrence %d: %w", patched.ID, err)
	}
	return &UpdateResult{Occurrence: patched, SeriesID: patched.SeriesID, Updated: 1}, nil
}

// shiftSeries moves every occurrence of the series by the edited occurrence's start delta,
// gives each the new duration and applies the same field edits.
func (s *occurrenceService) shiftSeries(ctx context.Context, team *models.Team, current, patched *models.Occurrence, input UpdateOccurrenceInput) (*UpdateResult, error) {
	delta := patched.StartsAt.Sub(current.StartsAt)
	duration := patched.Duration()
	result := &UpdateResult{SeriesID: current.SeriesID}

	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		series, err := s.occurrences.ListBySeries(ctx, exec, *current.SeriesID)
		if err != nil {
			return err
		}
		for _, o := range series {
			updated := patched
			if o.ID != current.ID {
				updated = cloneOccurrence(o)
				if err := applyContent(updated, input); err != nil {
					return err
				}
				start := o.StartsAt.Add(delta)
				updated.SetTimes(start, start.Add(duration))
				updated.RSVPDeadline = editedDeadline(input, o, start)
			}
			if err := s.occurrences.Update(ctx, exec, updated); err != nil {
				return handleRepositoryError(err)
			}
			if input.invitesChanged() {
				if _, err := s.invites.Sync(ctx, exec, updated, team, input.InvitedUserIDs); err != nil {
					return err
				}
			}
			result.Updated++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("shifting series %s: %w", *current.SeriesID, err)
	}
	result.Occurrence = patched
	return result, nil
}

// reshapeSeries regenerates the series from new weekdays and end date. The earliest
// occurrence's day anchors the recurrence with the edited time of day and duration.
// Existing occurrences whose start equals a generated start exactly are updated in place;
// other generated dates become new occurrences; the rest are deleted without tombstones.
func (s *occurrenceService) reshapeSeries(ctx context.Context, actorID int, team *models.Team, current, patched *models.Occurrence, input UpdateOccurrenceInput) (*UpdateResult, error) {
	until, err := recurrence.ParseUntil(input.Until, s.loc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecurrence, err)
	}

	offset := DeadlineOffset(current.StartsAt, current.RSVPDeadline)
	if input.DeadlineHours != nil {
		d := time.Duration(*input.DeadlineHours) * time.Hour
		offset = &d
	}

	invitees := input.InvitedUserIDs
	if invitees == nil && !patched.InviteAll {
		responses, err := s.responses.ListByOccurrence(ctx, nil, current.ID)
		if err != nil {
			return nil, err
		}
		invitees = make([]int, 0, len(responses))
		for _, r := range responses {
			invitees = append(invitees, r.UserID)
		}
	}

	result := &UpdateResult{SeriesID: current.SeriesID}
	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		existing, err := s.occurrences.ListBySeries(ctx, exec, *current.SeriesID)
		if err != nil {
			return err
		}
		if len(existing) == 0 {
			return ErrOccurrenceNotFound
		}

		anchor := existing[0].StartsAt.In(s.loc)
		clock := patched.StartsAt.In(s.loc)
		templateStart := time.Date(anchor.Year(), anchor.Month(), anchor.Day(), clock.Hour(), clock.Minute(), clock.Second(), 0, s.loc)
		slots, err := recurrence.Generate(templateStart, templateStart.Add(patched.Duration()), recurrence.Rule{
			Mode:     recurrence.ModeCustom,
			Weekdays: input.Weekdays,
			Until:    until,
		})
		if err != nil {
			return mapRecurrenceError(err)
		}

		pool := make(map[int64][]*models.Occurrence, len(existing))
		for _, o := range existing {
			key := o.StartsAt.UnixNano()
			pool[key] = append(pool[key], o)
		}

		for _, slot := range slots {
			key := slot.Start.UnixNano()
			if matches := pool[key]; len(matches) > 0 {
				o := matches[0]
				pool[key] = matches[1:]

				updated := cloneOccurrence(o)
				copyContent(updated, patched)
				updated.SetTimes(slot.Start, slot.End)
				updated.RSVPDeadline = ShiftDeadline(slot.Start, offset)
				if err := s.occurrences.Update(ctx, exec, updated); err != nil {
					return handleRepositoryError(err)
				}
				if _, err := s.invites.Sync(ctx, exec, updated, team, invitees); err != nil {
					return err
				}
				if o.ID == current.ID {
					result.Occurrence = updated
				}
				result.Updated++
				continue
			}

			occ := cloneOccurrence(patched)
			occ.ID = 0
			occ.ExternalKey = nil
			occ.CreatedBy = &actorID
			occ.SeriesID = current.SeriesID
			occ.SetTimes(slot.Start, slot.End)
			occ.RSVPDeadline = ShiftDeadline(slot.Start, offset)
			if err := s.occurrences.Create(ctx, exec, occ); err != nil {
				return handleRepositoryError(err)
			}
			if _, err := s.invites.Sync(ctx, exec, occ, team, invitees); err != nil {
				return err
			}
			result.Created++
		}

		for _, o := range existing {
			key := o.StartsAt.UnixNano()
			if !containsOccurrence(pool[key], o.ID) {
				continue
			}
			if err := s.occurrences.Delete(ctx, exec, o.ID); err != nil {
				return handleRepositoryError(err)
			}
			result.Deleted++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reshaping series %s: %w", *current.SeriesID, err)
	}
	return result, nil
}

func (s *occurrenceService) DeleteOccurrence(ctx context.Context, actorID, occurrenceID int, deleteSeries bool) (*DeleteResult, error) {
	if _, err := s.expirer.ExpireStale(ctx); err != nil {
		return nil, err
	}
	occ, err := s.occurrences.GetByID(ctx, nil, occurrenceID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	if err := requireTrainer(ctx, s.teams, occ.TeamID, actorID); err != nil {
		return nil, err
	}

	result := &DeleteResult{}
	now := s.now()
	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		targets := []*models.Occurrence{occ}
		if deleteSeries && occ.SeriesID != nil {
			series, err := s.occurrences.ListBySeries(ctx, exec, *occ.SeriesID)
			if err != nil {
				return err
			}
			targets = series
		}
		for _, o := range targets {
			tombstone := &models.DeletedOccurrence{
				TeamID:       o.TeamID,
				OccurrenceID: o.ID,
				Title:        o.Title,
				StartsAt:     o.StartsAt,
				EndsAt:       o.EndsAt,
				DeletedAt:    now,
			}
			if err := s.tombstones.Create(ctx, exec, tombstone); err != nil {
				return err
			}
			if err := s.occurrences.Delete(ctx, exec, o.ID); err != nil {
				return handleRepositoryError(err)
			}
			result.OccurrenceIDs = append(result.OccurrenceIDs, o.ID)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("deleting occurrence %d: %w", occurrenceID, err)
	}
	result.Deleted = len(result.OccurrenceIDs)

	s.logger.InfoContext(ctx, "occurrences deleted",
		slog.Int("team_id", occ.TeamID),
		slog.Int("occurrence_id", occurrenceID),
		slog.Int("count", result.Deleted),
	)
	s.broadcaster.BroadcastToTeam(occ.TeamID, EventOccurrencesChanged, result)
	return result, nil
}

func (s *occurrenceService) GetOccurrence(ctx context.Context, actorID, occurrenceID int) (*OccurrenceDetails, error) {
	if _, err := s.expirer.ExpireStale(ctx); err != nil {
		return nil, err
	}
	occ, err := s.occurrences.GetByID(ctx, nil, occurrenceID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}

	var (
		team      *models.Team
		member    *models.TeamMember
		responses []models.Response
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m, err := requireMember(gCtx, s.teams, occ.TeamID, actorID)
		member = m
		return err
	})
	g.Go(func() error {
		t, err := loadTeam(gCtx, s.teams, nil, occ.TeamID)
		team = t
		return err
	})
	g.Go(func() error {
		r, err := s.responses.ListByOccurrence(gCtx, nil, occ.ID)
		if err != nil {
			return fmt.Errorf("loading responses of occurrence %d: %w", occ.ID, err)
		}
		responses = r
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if !occ.VisibleToAll && member.Role != models.RoleTrainer && !hasResponse(responses, actorID) {
		return nil, ErrOccurrenceNotFound
	}

	details := &OccurrenceDetails{
		Occurrence:       occ,
		TeamName:         team.Name,
		Counts:           make(map[models.ResponseStatus]int, 4),
		TentativeAllowed: TentativeAllowed(occ.RSVPDeadline, s.now()),
	}
	for i := range responses {
		details.Counts[responses[i].Status]++
		if responses[i].UserID == actorID {
			details.MyResponse = &responses[i]
		}
	}
	occ.Responses = responses
	return details, nil
}

func (s *occurrenceService) ListTeamOccurrences(ctx context.Context, actorID, teamID int, from, to time.Time) ([]*models.Occurrence, error) {
	member, err := requireMember(ctx, s.teams, teamID, actorID)
	if err != nil {
		return nil, err
	}
	if _, err := s.expirer.ExpireStale(ctx); err != nil {
		return nil, err
	}

	if from.IsZero() {
		from = recurrence.StartOfDay(s.now().In(s.loc))
	}
	if to.IsZero() {
		to = from.Add(defaultListWindow)
	}
	if !to.After(from) {
		return nil, ErrInvalidTimeRange
	}

	list, err := s.occurrences.ListByTeam(ctx, nil, teamID, from, to)
	if err != nil {
		return nil, fmt.Errorf("listing occurrences of team %d: %w", teamID, err)
	}
	if member.Role == models.RoleTrainer {
		return list, nil
	}

	visible := make([]*models.Occurrence, 0, len(list))
	for _, o := range list {
		if o.VisibleToAll {
			visible = append(visible, o)
			continue
		}
		_, err := s.responses.Get(ctx, nil, o.ID, actorID)
		switch {
		case err == nil:
			visible = append(visible, o)
		case errors.Is(err, repositories.ErrResponseNotFound):
		default:
			return nil, err
		}
	}
	return visible, nil
}

func (s *occurrenceService) parseRule(in RecurrenceInput) (recurrence.Rule, error) {
	mode, err := recurrence.ParseMode(in.Mode)
	if err != nil {
		return recurrence.Rule{}, fmt.Errorf("%w: %v", ErrInvalidRecurrence, err)
	}
	if mode == recurrence.ModeCustom && len(in.Weekdays) == 0 {
		return recurrence.Rule{}, ErrEmptyWeekdays
	}
	if strings.TrimSpace(in.Until) == "" {
		return recurrence.Rule{}, fmt.Errorf("%w: end date is required", ErrInvalidRecurrence)
	}
	until, err := recurrence.ParseUntil(in.Until, s.loc)
	if err != nil {
		return recurrence.Rule{}, fmt.Errorf("%w: %v", ErrInvalidRecurrence, err)
	}
	return recurrence.Rule{Mode: mode, Weekdays: in.Weekdays, Until: until}, nil
}

func (s *occurrenceService) validateInvitees(ctx context.Context, teamID int, userIDs []int) error {
	if len(userIDs) == 0 {
		return nil
	}
	memberIDs, err := s.teams.ListMemberIDs(ctx, nil, teamID)
	if err != nil {
		return fmt.Errorf("listing members of team %d: %w", teamID, err)
	}
	members := toSet(memberIDs)
	for _, id := range userIDs {
		if _, ok := members[id]; !ok {
			return fmt.Errorf("%w: user %d", ErrInviteeNotMember, id)
		}
	}
	return nil
}

func validateOccurrence(team *models.Team, o *models.Occurrence) error {
	if o.Title == "" {
		return ErrTitleRequired
	}
	if o.StartsAt.IsZero() {
		return ErrStartRequired
	}
	if o.EndsAt.IsZero() || o.EndsAt.Before(o.StartsAt) {
		return ErrEndBeforeStart
	}
	if err := ValidateArrivalMinutes(o.ArrivalMinutes); err != nil {
		return err
	}
	if o.PitchType != nil && !pitchTypeKnown(team, *o.PitchType) {
		return fmt.Errorf("%w: %q", ErrPitchTypeUnknown, *o.PitchType)
	}
	return nil
}

func pitchTypeKnown(team *models.Team, pitchType string) bool {
	for _, v := range team.HomeVenues {
		if v.PitchType != nil && strings.EqualFold(strings.TrimSpace(*v.PitchType), strings.TrimSpace(pitchType)) {
			return true
		}
	}
	return false
}

// applyContent applies the non-time fields of an edit.
func applyContent(o *models.Occurrence, in UpdateOccurrenceInput) error {
	if in.Category != nil {
		c, err := models.ParseCategory(*in.Category)
		if err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidCategory, *in.Category)
		}
		o.Category = c
	}
	if in.Title != nil {
		o.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		o.Description = cleanString(in.Description)
	}
	if in.Location != nil {
		o.Location = cleanLocation(*in.Location)
	}
	if in.PitchType != nil {
		o.PitchType = cleanString(in.PitchType)
	}
	if in.MeetingPoint != nil {
		o.MeetingPoint = cleanString(in.MeetingPoint)
	}
	if in.ArrivalMinutes != nil {
		o.ArrivalMinutes = copyInt(in.ArrivalMinutes)
	}
	if in.DeadlineHours != nil || in.ArrivalMinutes != nil {
		o.SchedulePinned = true
	}
	if in.VisibleToAll != nil {
		o.VisibleToAll = *in.VisibleToAll
	}
	if in.InviteAll != nil {
		o.InviteAll = *in.InviteAll
	}
	return nil
}

// copyContent copies the series-wide fields of src onto dst.
func copyContent(dst, src *models.Occurrence) {
	dst.Category = src.Category
	dst.Title = src.Title
	dst.Description = src.Description
	dst.Location = src.Location
	dst.PitchType = src.PitchType
	dst.MeetingPoint = src.MeetingPoint
	dst.ArrivalMinutes = src.ArrivalMinutes
	dst.SchedulePinned = src.SchedulePinned
	dst.VisibleToAll = src.VisibleToAll
	dst.InviteAll = src.InviteAll
}

// editedDeadline recomputes the deadline from explicit hours, or keeps the occurrence's
// previous start-to-deadline offset.
func editedDeadline(in UpdateOccurrenceInput, before *models.Occurrence, newStart time.Time) *time.Time {
	if in.DeadlineHours != nil {
		return DeadlineFor(newStart, in.DeadlineHours)
	}
	return ShiftDeadline(newStart, DeadlineOffset(before.StartsAt, before.RSVPDeadline))
}

func mapRecurrenceError(err error) error {
	switch {
	case errors.Is(err, recurrence.ErrNoWeekdays):
		return ErrEmptyWeekdays
	case errors.Is(err, recurrence.ErrInvalidWeekday):
		return ErrInvalidWeekday
	case errors.Is(err, recurrence.ErrUntilBeforeStart):
		return ErrUntilBeforeStart
	case errors.Is(err, recurrence.ErrEndBeforeStart):
		return ErrEndBeforeStart
	case errors.Is(err, recurrence.ErrTooManyOccurrences):
		return ErrTooManyOccurrences
	case errors.Is(err, recurrence.ErrUnknownMode):
		return ErrInvalidRecurrence
	default:
		return err
	}
}

func cloneOccurrence(o *models.Occurrence) *models.Occurrence {
	c := *o
	c.Responses = nil
	return &c
}

func containsOccurrence(list []*models.Occurrence, id int) bool {
	for _, o := range list {
		if o.ID == id {
			return true
		}
	}
	return false
}

func hasResponse(responses []models.Response, userID int) bool {
	for _, r := range responses {
		if r.UserID == userID {
			return true
		}
	}
	return false
}

func cleanString(s *string) *string {
	if s == nil {
		return nil
	}
	return stringPtr(strings.TrimSpace(*s))
}

func cleanLocation(l models.Location) models.Location {
	return models.Location{
		Venue:   cleanString(l.Venue),
		Street:  cleanString(l.Street),
		ZipCity: cleanString(l.ZipCity),
	}
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

func (s *occurrenceService) CanWatchTeam(ctx context.Context, actorID, teamID int) error {
	_, err := requireMember(ctx, s.teams, teamID, actorID)
	return err
}
