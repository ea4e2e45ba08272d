package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mrsorbate/KADR.app-sub000/models"
)

// TombstoneRepository records deleted occurrences for calendar consumers.
type TombstoneRepository interface {
	Create(ctx context.Context, exec SQLExecutor, t *models.DeletedOccurrence) error
}

type postgresTombstoneRepository struct {
	db *sql.DB
}

func NewPostgresTombstoneRepository(db *sql.DB) TombstoneRepository {
	return &postgresTombstoneRepository{db: db}
}

func (r *postgresTombstoneRepository) Create(ctx context.Context, exec SQLExecutor, t *models.DeletedOccurrence) error {
	executor := pickExecutor(r.db, exec)
	query := `
		INSERT INTO deleted_occurrences (team_id, occurrence_id, title, starts_at, ends_at, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	if err := executor.QueryRowContext(ctx, query,
		t.TeamID, t.OccurrenceID, t.Title, t.StartsAt, t.EndsAt, t.DeletedAt,
	).Scan(&t.ID); err != nil {
		return fmt.Errorf("failed to write tombstone for occurrence %d: %w", t.OccurrenceID, err)
	}
	return nil
}
