package storage

import (
	"context"
	"fmt"
	"time"
)

// PayloadArchive keeps raw fixture feed payloads for later inspection.
type PayloadArchive interface {
	Put(ctx context.Context, key string, contentType string, payload []byte) error
}

// ArchiveKey builds the object key of one import run's payload.
func ArchiveKey(teamID int, fetchedAt time.Time) string {
	return fmt.Sprintf("fixture-feed/team-%d/%s.json", teamID, fetchedAt.UTC().Format("20060102T150405Z"))
}

// NopArchive discards payloads. Used when no bucket is configured.
type NopArchive struct{}

func (NopArchive) Put(context.Context, string, string, []byte) error { return nil }
