package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mrsorbate/KADR.app-sub000/models"
)

var ErrResponseNotFound = errors.New("response not found")

type ResponseRepository interface {
	ListByOccurrence(ctx context.Context, exec SQLExecutor, occurrenceID int) ([]models.Response, error)
	Get(ctx context.Context, exec SQLExecutor, occurrenceID, userID int) (*models.Response, error)
	// InsertDefaults creates one row per user with the given status. Existing rows are left alone.
	InsertDefaults(ctx context.Context, exec SQLExecutor, occurrenceID int, userIDs []int, status models.ResponseStatus) (int64, error)
	DeleteForUsers(ctx context.Context, exec SQLExecutor, occurrenceID int, userIDs []int) (int64, error)
	Upsert(ctx context.Context, exec SQLExecutor, resp *models.Response) error
	// ExpireTentative flips every tentative response whose occurrence deadline has passed to declined.
	ExpireTentative(ctx context.Context, exec SQLExecutor, now time.Time) (int64, error)
}

type postgresResponseRepository struct {
	db *sql.DB
}

func NewPostgresResponseRepository(db *sql.DB) ResponseRepository {
	return &postgresResponseRepository{db: db}
}

func (r *postgresResponseRepository) ListByOccurrence(ctx context.Context, exec SQLExecutor, occurrenceID int) ([]models.Response, error) {
	executor := pickExecutor(r.db, exec)
	query := `
		SELECT id, occurrence_id, user_id, status, comment, responded_at, created_at
		FROM responses
		WHERE occurrence_id = $1
		ORDER BY user_id`

	rows, err := executor.QueryContext(ctx, query, occurrenceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list responses for occurrence %d: %w", occurrenceID, err)
	}
	defer rows.Close()

	var out []models.Response
	for rows.Next() {
		var resp models.Response
		if err := rows.Scan(&resp.ID, &resp.OccurrenceID, &resp.UserID, &resp.Status, &resp.Comment, &resp.RespondedAt, &resp.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan response: %w", err)
		}
		out = append(out, resp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating responses: %w", err)
	}
	return out, nil
}

func (r *postgresResponseRepository) Get(ctx context.Context, exec SQLExecutor, occurrenceID, userID int) (*models.Response, error) {
	executor := pickExecutor(r.db, exec)
	query := `
		SELECT id, occurrence_id, user_id, status, comment, responded_at, created_at
		FROM responses
		WHERE occurrence_id = $1 AND user_id = $2`

	var resp models.Response
	err := executor.QueryRowContext(ctx, query, occurrenceID, userID).Scan(
		&resp.ID, &resp.OccurrenceID, &resp.UserID, &resp.Status, &resp.Comment, &resp.RespondedAt, &resp.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrResponseNotFound
		}
		return nil, fmt.Errorf("failed to get response: %w", err)
	}
	return &resp, nil
}

func (r *postgresResponseRepository) InsertDefaults(ctx context.Context, exec SQLExecutor, occurrenceID int, userIDs []int, status models.ResponseStatus) (int64, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	executor := pickExecutor(r.db, exec)
	query := `
		INSERT INTO responses (occurrence_id, user_id, status)
		SELECT $1::int, u, $3::response_status FROM unnest($2::bigint[]) AS u
		ON CONFLICT (occurrence_id, user_id) DO NOTHING`

	result, err := executor.ExecContext(ctx, query, occurrenceID, int64Array(userIDs), status)
	if err != nil {
		if code, _, ok := pqCode(err); ok && code == pqForeignKeyViolation {
			return 0, ErrOccurrenceNotFound
		}
		return 0, fmt.Errorf("failed to insert default responses: %w", err)
	}
	return result.RowsAffected()
}

func (r *postgresResponseRepository) DeleteForUsers(ctx context.Context, exec SQLExecutor, occurrenceID int, userIDs []int) (int64, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	executor := pickExecutor(r.db, exec)
	query := `DELETE FROM responses WHERE occurrence_id = $1 AND user_id = ANY($2)`

	result, err := executor.ExecContext(ctx, query, occurrenceID, int64Array(userIDs))
	if err != nil {
		return 0, fmt.Errorf("failed to delete responses: %w", err)
	}
	return result.RowsAffected()
}

func (r *postgresResponseRepository) Upsert(ctx context.Context, exec SQLExecutor, resp *models.Response) error {
	executor := pickExecutor(r.db, exec)
	query := `
		INSERT INTO responses (occurrence_id, user_id, status, comment, responded_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (occurrence_id, user_id) DO UPDATE SET
			status = EXCLUDED.status,
			comment = EXCLUDED.comment,
			responded_at = EXCLUDED.responded_at
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query,
		resp.OccurrenceID, resp.UserID, resp.Status, resp.Comment, resp.RespondedAt,
	).Scan(&resp.ID, &resp.CreatedAt)
	if err != nil {
		if code, _, ok := pqCode(err); ok && code == pqForeignKeyViolation {
			return ErrOccurrenceNotFound
		}
		return fmt.Errorf("failed to upsert response: %w", err)
	}
	return nil
}

func (r *postgresResponseRepository) ExpireTentative(ctx context.Context, exec SQLExecutor, now time.Time) (int64, error) {
	executor := pickExecutor(r.db, exec)
	query := `
		UPDATE responses r
		SET status = $1, responded_at = $2
		FROM occurrences o
		WHERE r.occurrence_id = o.id
		  AND r.status = $3
		  AND o.rsvp_deadline IS NOT NULL
		  AND o.rsvp_deadline <= $2`

	result, err := executor.ExecContext(ctx, query, models.ResponseDeclined, now, models.ResponseTentative)
	if err != nil {
		return 0, fmt.Errorf("failed to expire tentative responses: %w", err)
	}
	return result.RowsAffected()
}
