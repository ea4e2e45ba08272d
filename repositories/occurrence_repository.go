package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mrsorbate/KADR.app-sub000/models"
)

var (
	ErrOccurrenceNotFound    = errors.New("occurrence not found")
	ErrExternalKeyConflict   = errors.New("external fixture key already used by another occurrence of this team")
	ErrOccurrenceTeamInvalid = errors.New("invalid team reference")
	ErrOccurrenceTimeRange   = errors.New("occurrence ends before it starts")
)

type OccurrenceRepository interface {
	Create(ctx context.Context, exec SQLExecutor, occ *models.Occurrence) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Occurrence, error)
	Update(ctx context.Context, exec SQLExecutor, occ *models.Occurrence) error
	// Delete removes the occurrence; its responses go with it (ON DELETE CASCADE).
	Delete(ctx context.Context, exec SQLExecutor, id int) error
	ListBySeries(ctx context.Context, exec SQLExecutor, seriesID string) ([]*models.Occurrence, error)
	ListByTeam(ctx context.Context, exec SQLExecutor, teamID int, from, to time.Time) ([]*models.Occurrence, error)
	ListFutureInviteAll(ctx context.Context, exec SQLExecutor, teamID int, after time.Time) ([]*models.Occurrence, error)
	GetByExternalKey(ctx context.Context, exec SQLExecutor, teamID int, key string) (*models.Occurrence, error)
	// FindLegacyFixture finds a manually created match of the team without an external key
	// that starts exactly at startsAt.
	FindLegacyFixture(ctx context.Context, exec SQLExecutor, teamID int, startsAt time.Time) (*models.Occurrence, error)
}

type postgresOccurrenceRepository struct {
	db *sql.DB
}

func NewPostgresOccurrenceRepository(db *sql.DB) OccurrenceRepository {
	return &postgresOccurrenceRepository{db: db}
}

const occurrenceColumns = `
	id, team_id, category, title, description,
	location_venue, location_street, location_zip_city, pitch_type, meeting_point, arrival_minutes,
	starts_at, ends_at, rsvp_deadline, duration_minutes, visible_to_all, invite_all, created_by,
	series_id, external_key, is_home, opponent_crest_url, schedule_pinned, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOccurrence(row rowScanner) (*models.Occurrence, error) {
	o := &models.Occurrence{}
	err := row.Scan(
		&o.ID, &o.TeamID, &o.Category, &o.Title, &o.Description,
		&o.Location.Venue, &o.Location.Street, &o.Location.ZipCity, &o.PitchType, &o.MeetingPoint, &o.ArrivalMinutes,
		&o.StartsAt, &o.EndsAt, &o.RSVPDeadline, &o.DurationMinutes, &o.VisibleToAll, &o.InviteAll, &o.CreatedBy,
		&o.SeriesID, &o.ExternalKey, &o.IsHome, &o.OpponentCrest, &o.SchedulePinned, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (r *postgresOccurrenceRepository) Create(ctx context.Context, exec SQLExecutor, o *models.Occurrence) error {
	executor := pickExecutor(r.db, exec)
	query := `
		INSERT INTO occurrences (
			team_id, category, title, description,
			location_venue, location_street, location_zip_city, pitch_type, meeting_point, arrival_minutes,
			starts_at, ends_at, rsvp_deadline, duration_minutes, visible_to_all, invite_all, created_by,
			series_id, external_key, is_home, opponent_crest_url, schedule_pinned
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		RETURNING id, created_at, updated_at`

	err := executor.QueryRowContext(ctx, query,
		o.TeamID, o.Category, o.Title, o.Description,
		o.Location.Venue, o.Location.Street, o.Location.ZipCity, o.PitchType, o.MeetingPoint, o.ArrivalMinutes,
		o.StartsAt, o.EndsAt, o.RSVPDeadline, o.DurationMinutes, o.VisibleToAll, o.InviteAll, o.CreatedBy,
		o.SeriesID, o.ExternalKey, o.IsHome, o.OpponentCrest, o.SchedulePinned,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)

	return r.handleOccurrenceError(err)
}

func (r *postgresOccurrenceRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Occurrence, error) {
	executor := pickExecutor(r.db, exec)
	query := `SELECT ` + occurrenceColumns + ` FROM occurrences WHERE id = $1`

	o, err := scanOccurrence(executor.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOccurrenceNotFound
		}
		return nil, fmt.Errorf("failed to get occurrence %d: %w", id, err)
	}
	return o, nil
}

func (r *postgresOccurrenceRepository) Update(ctx context.Context, exec SQLExecutor, o *models.Occurrence) error {
	executor := pickExecutor(r.db, exec)
	query := `
		UPDATE occurrences SET
			category = $1, title = $2, description = $3,
			location_venue = $4, location_street = $5, location_zip_city = $6,
			pitch_type = $7, meeting_point = $8, arrival_minutes = $9,
			starts_at = $10, ends_at = $11, rsvp_deadline = $12, duration_minutes = $13,
			visible_to_all = $14, invite_all = $15, series_id = $16, external_key = $17,
			is_home = $18, opponent_crest_url = $19, schedule_pinned = $20, updated_at = NOW()
		WHERE id = $21
		RETURNING updated_at`

	err := executor.QueryRowContext(ctx, query,
		o.Category, o.Title, o.Description,
		o.Location.Venue, o.Location.Street, o.Location.ZipCity,
		o.PitchType, o.MeetingPoint, o.ArrivalMinutes,
		o.StartsAt, o.EndsAt, o.RSVPDeadline, o.DurationMinutes,
		o.VisibleToAll, o.InviteAll, o.SeriesID, o.ExternalKey,
		o.IsHome, o.OpponentCrest, o.SchedulePinned, o.ID,
	).Scan(&o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrOccurrenceNotFound
	}
	return r.handleOccurrenceError(err)
}

func (r *postgresOccurrenceRepository) Delete(ctx context.Context, exec SQLExecutor, id int) error {
	executor := pickExecutor(r.db, exec)
	result, err := executor.ExecContext(ctx, `DELETE FROM occurrences WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete occurrence %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrOccurrenceNotFound)
}

func (r *postgresOccurrenceRepository) ListBySeries(ctx context.Context, exec SQLExecutor, seriesID string) ([]*models.Occurrence, error) {
	query := `SELECT ` + occurrenceColumns + ` FROM occurrences WHERE series_id = $1 ORDER BY starts_at, id`
	return r.list(ctx, exec, query, seriesID)
}

func (r *postgresOccurrenceRepository) ListByTeam(ctx context.Context, exec SQLExecutor, teamID int, from, to time.Time) ([]*models.Occurrence, error) {
	query := `
		SELECT ` + occurrenceColumns + `
		FROM occurrences
		WHERE team_id = $1 AND starts_at >= $2 AND starts_at < $3
		ORDER BY starts_at, id`
	return r.list(ctx, exec, query, teamID, from, to)
}

func (r *postgresOccurrenceRepository) ListFutureInviteAll(ctx context.Context, exec SQLExecutor, teamID int, after time.Time) ([]*models.Occurrence, error) {
	query := `
		SELECT ` + occurrenceColumns + `
		FROM occurrences
		WHERE team_id = $1 AND invite_all AND starts_at > $2
		ORDER BY starts_at, id`
	return r.list(ctx, exec, query, teamID, after)
}

func (r *postgresOccurrenceRepository) GetByExternalKey(ctx context.Context, exec SQLExecutor, teamID int, key string) (*models.Occurrence, error) {
	executor := pickExecutor(r.db, exec)
	query := `SELECT ` + occurrenceColumns + ` FROM occurrences WHERE team_id = $1 AND external_key = $2`

	o, err := scanOccurrence(executor.QueryRowContext(ctx, query, teamID, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOccurrenceNotFound
		}
		return nil, fmt.Errorf("failed to get occurrence by external key: %w", err)
	}
	return o, nil
}

func (r *postgresOccurrenceRepository) FindLegacyFixture(ctx context.Context, exec SQLExecutor, teamID int, startsAt time.Time) (*models.Occurrence, error) {
	executor := pickExecutor(r.db, exec)
	query := `
		SELECT ` + occurrenceColumns + `
		FROM occurrences
		WHERE team_id = $1 AND category = $2 AND external_key IS NULL AND starts_at = $3
		ORDER BY id
		LIMIT 1`

	o, err := scanOccurrence(executor.QueryRowContext(ctx, query, teamID, models.CategoryMatch, startsAt))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOccurrenceNotFound
		}
		return nil, fmt.Errorf("failed to find legacy fixture: %w", err)
	}
	return o, nil
}

func (r *postgresOccurrenceRepository) list(ctx context.Context, exec SQLExecutor, query string, args ...interface{}) ([]*models.Occurrence, error) {
	executor := pickExecutor(r.db, exec)
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list occurrences: %w", err)
	}
	defer rows.Close()

	var out []*models.Occurrence
	for rows.Next() {
		o, err := scanOccurrence(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan occurrence: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating occurrences: %w", err)
	}
	return out, nil
}

func (r *postgresOccurrenceRepository) handleOccurrenceError(err error) error {
	if err == nil {
		return nil
	}
	if code, constraint, ok := pqCode(err); ok {
		switch code {
		case pqUniqueViolation:
			if constraint == "occurrences_team_external_key_key" {
				return ErrExternalKeyConflict
			}
		case pqForeignKeyViolation:
			if constraint == "occurrences_team_id_fkey" {
				return ErrOccurrenceTeamInvalid
			}
		case pqCheckViolation:
			return ErrOccurrenceTimeRange
		}
	}
	return err
}
