package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mrsorbate/KADR.app-sub000/models"
)

var (
	ErrTeamNotFound   = errors.New("team not found")
	ErrMemberNotFound = errors.New("team member not found")
)

// TeamRepository reads teams, their scheduling defaults, home venues and members.
// Team administration lives elsewhere; this service only consumes it.
type TeamRepository interface {
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Team, error)
	GetMember(ctx context.Context, exec SQLExecutor, teamID, userID int) (*models.TeamMember, error)
	ListMemberIDs(ctx context.Context, exec SQLExecutor, teamID int) ([]int, error)
	// ListWithFeed returns every team linked to a fixture feed team, ordered by id.
	ListWithFeed(ctx context.Context) ([]*models.Team, error)
}

type postgresTeamRepository struct {
	db *sql.DB
}

func NewPostgresTeamRepository(db *sql.DB) TeamRepository {
	return &postgresTeamRepository{db: db}
}

const teamColumns = `
	id, name, feed_team_id, feed_team_name,
	rsvp_deadline_hours, arrival_minutes,
	training_rsvp_deadline_hours, training_arrival_minutes,
	match_rsvp_deadline_hours, match_arrival_minutes,
	other_rsvp_deadline_hours, other_arrival_minutes,
	default_response, default_venue_name, created_at`

func scanTeam(row rowScanner) (*models.Team, error) {
	t := &models.Team{}
	d := &t.Defaults
	err := row.Scan(
		&t.ID, &t.Name, &t.FeedTeamID, &t.FeedTeamName,
		&d.DeadlineHours, &d.ArrivalMinutes,
		&d.TrainingDeadlineHours, &d.TrainingArrivalMinutes,
		&d.MatchDeadlineHours, &d.MatchArrivalMinutes,
		&d.OtherDeadlineHours, &d.OtherArrivalMinutes,
		&d.DefaultResponse, &t.DefaultVenueName, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *postgresTeamRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Team, error) {
	executor := pickExecutor(r.db, exec)
	query := `SELECT ` + teamColumns + ` FROM teams WHERE id = $1`

	team, err := scanTeam(executor.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to get team %d: %w", id, err)
	}

	venues, err := r.listHomeVenues(ctx, executor, id)
	if err != nil {
		return nil, err
	}
	team.HomeVenues = venues
	return team, nil
}

func (r *postgresTeamRepository) listHomeVenues(ctx context.Context, executor SQLExecutor, teamID int) ([]models.HomeVenue, error) {
	query := `
		SELECT id, team_id, name, street, zip_city, pitch_type
		FROM team_home_venues
		WHERE team_id = $1
		ORDER BY id`

	rows, err := executor.QueryContext(ctx, query, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list home venues for team %d: %w", teamID, err)
	}
	defer rows.Close()

	var venues []models.HomeVenue
	for rows.Next() {
		var v models.HomeVenue
		if err := rows.Scan(&v.ID, &v.TeamID, &v.Name, &v.Street, &v.ZipCity, &v.PitchType); err != nil {
			return nil, fmt.Errorf("failed to scan home venue: %w", err)
		}
		venues = append(venues, v)
	}
	return venues, rows.Err()
}

func (r *postgresTeamRepository) GetMember(ctx context.Context, exec SQLExecutor, teamID, userID int) (*models.TeamMember, error) {
	executor := pickExecutor(r.db, exec)
	query := `SELECT team_id, user_id, role, joined_at FROM team_members WHERE team_id = $1 AND user_id = $2`

	var m models.TeamMember
	err := executor.QueryRowContext(ctx, query, teamID, userID).Scan(&m.TeamID, &m.UserID, &m.Role, &m.JoinedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("failed to get member %d of team %d: %w", userID, teamID, err)
	}
	return &m, nil
}

func (r *postgresTeamRepository) ListMemberIDs(ctx context.Context, exec SQLExecutor, teamID int) ([]int, error) {
	executor := pickExecutor(r.db, exec)
	rows, err := executor.QueryContext(ctx, `SELECT user_id FROM team_members WHERE team_id = $1 ORDER BY user_id`, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members of team %d: %w", teamID, err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan member id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *postgresTeamRepository) ListWithFeed(ctx context.Context) ([]*models.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams WHERE feed_team_id IS NOT NULL AND feed_team_id <> '' ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list feed teams: %w", err)
	}
	defer rows.Close()

	var teams []*models.Team
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}
