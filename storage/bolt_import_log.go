package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/mrsorbate/KADR.app-sub000/models"
	bolt "go.etcd.io/bbolt"
)

const bucketImports = "imports"

// ImportLog remembers the most recent fixture import summary per team.
type ImportLog interface {
	Save(ctx context.Context, summary *models.ImportSummary) error
	// Last returns nil, nil when the team was never imported.
	Last(ctx context.Context, teamID int) (*models.ImportSummary, error)
}

type BoltImportLog struct {
	db *bolt.DB
}

func NewBoltImportLog(dbPath string) (*BoltImportLog, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating import log directory: %w", err)
		}
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening import log: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(bucketImports)); err != nil {
			return fmt.Errorf("creating imports bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltImportLog{db: db}, nil
}

func (l *BoltImportLog) Close() error {
	return l.db.Close()
}

func (l *BoltImportLog) Save(_ context.Context, summary *models.ImportSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshaling import summary: %w", err)
	}
	return l.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketImports)).Put(teamKey(summary.TeamID), data)
	})
}

func (l *BoltImportLog) Last(_ context.Context, teamID int) (*models.ImportSummary, error) {
	var summary *models.ImportSummary
	err := l.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(bucketImports)).Get(teamKey(teamID))
		if data == nil {
			return nil
		}
		summary = &models.ImportSummary{}
		return json.Unmarshal(data, summary)
	})
	if err != nil {
		return nil, fmt.Errorf("reading import summary of team %d: %w", teamID, err)
	}
	return summary, nil
}

func teamKey(teamID int) []byte {
	return []byte(strconv.Itoa(teamID))
}
