package repositories

import (
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
	pqCheckViolation      = "23514"
)

func checkAffectedRows(result sql.Result, notFoundError error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rowsAffected == 0 {
		return notFoundError
	}
	return nil
}

func pqCode(err error) (pq.ErrorCode, string, bool) {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code, pqErr.Constraint, true
	}
	return "", "", false
}

// int64Array converts ids for array parameters ("= ANY($n)", "unnest($n::bigint[])").
func int64Array(ids []int) pq.Int64Array {
	out := make(pq.Int64Array, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}
