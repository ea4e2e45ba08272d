package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mrsorbate/KADR.app-sub000/models"
)

// countingFixtures records which teams were imported; teams listed in fail return an error.
type countingFixtures struct {
	FixtureService
	mu       sync.Mutex
	imported []int
	fail     map[int]bool
	block    chan struct{}
}

func (c *countingFixtures) ImportTeamFixtures(ctx context.Context, teamID int) (*models.ImportSummary, error) {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.imported = append(c.imported, teamID)
	if c.fail[teamID] {
		return nil, errors.New("feed down")
	}
	return &models.ImportSummary{TeamID: teamID}, nil
}

func newSchedulerStore() *memStore {
	store := newMemStore(time.Now)
	store.addTeam(&models.Team{ID: 1, Name: "A", FeedTeamID: stringPtr("F1")})
	store.addTeam(&models.Team{ID: 2, Name: "B"})
	store.addTeam(&models.Team{ID: 3, Name: "C", FeedTeamID: stringPtr("F3")})
	return store
}

func TestImportScheduler_RunOnce(t *testing.T) {
	fx := &countingFixtures{fail: map[int]bool{1: true}}
	s, err := NewImportScheduler(ImportSchedulerConfig{}, memTeams{newSchedulerStore()}, fx, discardLogger())
	if err != nil {
		t.Fatalf("NewImportScheduler: %v", err)
	}

	if !s.RunOnce(context.Background()) {
		t.Fatal("expected the sweep to run")
	}
	if len(fx.imported) != 2 || fx.imported[0] != 1 || fx.imported[1] != 3 {
		t.Errorf("expected teams 1 and 3 in order despite the failure, got %v", fx.imported)
	}
}

func TestImportScheduler_SkipsOverlappingCycle(t *testing.T) {
	fx := &countingFixtures{block: make(chan struct{})}
	s, err := NewImportScheduler(ImportSchedulerConfig{}, memTeams{newSchedulerStore()}, fx, discardLogger())
	if err != nil {
		t.Fatalf("NewImportScheduler: %v", err)
	}

	done := make(chan bool)
	go func() { done <- s.RunOnce(context.Background()) }()

	// wait until the first sweep holds the guard
	for !s.running.Load() {
		time.Sleep(time.Millisecond)
	}
	if s.RunOnce(context.Background()) {
		t.Error("an overlapping sweep must be skipped")
	}

	close(fx.block)
	if !<-done {
		t.Error("first sweep should have run")
	}
	if s.running.Load() {
		t.Error("guard must be released after the sweep")
	}
	if !s.RunOnce(context.Background()) {
		t.Error("a later sweep must run again")
	}
}

func TestNewImportScheduler_InvalidSchedule(t *testing.T) {
	_, err := NewImportScheduler(ImportSchedulerConfig{Schedule: "every now and then"}, memTeams{newSchedulerStore()}, &countingFixtures{}, discardLogger())
	if err == nil {
		t.Fatal("expected an invalid cron spec to be rejected")
	}
}
