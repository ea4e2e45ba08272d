package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mrsorbate/KADR.app-sub000/repositories"
)

// TentativeExpirer declines tentative responses whose occurrence deadline has passed.
// It is run synchronously before every occurrence-scoped operation.
type TentativeExpirer struct {
	responses repositories.ResponseRepository
	now       func() time.Time
	logger    *slog.Logger
}

func NewTentativeExpirer(responses repositories.ResponseRepository, now func() time.Time, logger *slog.Logger) *TentativeExpirer {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TentativeExpirer{responses: responses, now: now, logger: logger}
}

// ExpireStale flips tentative to declined for every occurrence whose deadline is <= now.
// Running it twice changes nothing the second time.
func (e *TentativeExpirer) ExpireStale(ctx context.Context) (int64, error) {
	n, err := e.responses.ExpireTentative(ctx, nil, e.now())
	if err != nil {
		return 0, fmt.Errorf("expiring tentative responses: %w", err)
	}
	if n > 0 {
		e.logger.InfoContext(ctx, "expired tentative responses", slog.Int64("count", n))
	}
	return n, nil
}
