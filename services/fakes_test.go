package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/mrsorbate/KADR.app-sub000/models"
	"github.com/mrsorbate/KADR.app-sub000/repositories"
)

// memStore is an in-memory stand-in for the database shared by all fake repositories.
// WithinTx snapshots the whole store and restores it when fn fails.
type memStore struct {
	mu sync.Mutex

	teams       map[int]*models.Team
	members     map[int]map[int]models.MemberRole
	occurrences map[int]models.Occurrence
	responses   map[respKey]models.Response
	tombstones  []models.DeletedOccurrence

	nextOccID  int
	nextRespID int
	nextTombID int

	// failCreateAt makes the n-th occurrence insert (1-based) fail; 0 disables it.
	failCreateAt int
	creates      int

	now func() time.Time
}

type respKey struct{ occurrenceID, userID int }

var errInjected = errors.New("injected failure")

func newMemStore(now func() time.Time) *memStore {
	return &memStore{
		teams:       make(map[int]*models.Team),
		members:     make(map[int]map[int]models.MemberRole),
		occurrences: make(map[int]models.Occurrence),
		responses:   make(map[respKey]models.Response),
		now:         now,
	}
}

func (s *memStore) addTeam(t *models.Team) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teams[t.ID] = t
	if s.members[t.ID] == nil {
		s.members[t.ID] = make(map[int]models.MemberRole)
	}
}

func (s *memStore) addMember(teamID, userID int, role models.MemberRole) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.members[teamID] == nil {
		s.members[teamID] = make(map[int]models.MemberRole)
	}
	s.members[teamID][userID] = role
}

type memSnapshot struct {
	occurrences map[int]models.Occurrence
	responses   map[respKey]models.Response
	tombstones  []models.DeletedOccurrence
	nextOccID   int
	nextRespID  int
	nextTombID  int
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := memSnapshot{
		occurrences: make(map[int]models.Occurrence, len(s.occurrences)),
		responses:   make(map[respKey]models.Response, len(s.responses)),
		tombstones:  append([]models.DeletedOccurrence(nil), s.tombstones...),
		nextOccID:   s.nextOccID,
		nextRespID:  s.nextRespID,
		nextTombID:  s.nextTombID,
	}
	for k, v := range s.occurrences {
		snap.occurrences[k] = v
	}
	for k, v := range s.responses {
		snap.responses[k] = v
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.occurrences = snap.occurrences
	s.responses = snap.responses
	s.tombstones = snap.tombstones
	s.nextOccID = snap.nextOccID
	s.nextRespID = snap.nextRespID
	s.nextTombID = snap.nextTombID
}

// --- TxManager ---

type memTx struct{ store *memStore }

func (m memTx) WithinTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	snap := m.store.snapshot()
	if err := fn(nil); err != nil {
		m.store.restore(snap)
		return err
	}
	return nil
}

// --- OccurrenceRepository ---

type memOccurrences struct{ store *memStore }

func (r memOccurrences) Create(ctx context.Context, exec repositories.SQLExecutor, occ *models.Occurrence) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	s.creates++
	if s.failCreateAt > 0 && s.creates == s.failCreateAt {
		return errInjected
	}
	if _, ok := s.teams[occ.TeamID]; !ok {
		return repositories.ErrOccurrenceTeamInvalid
	}
	if occ.EndsAt.Before(occ.StartsAt) {
		return repositories.ErrOccurrenceTimeRange
	}
	if occ.ExternalKey != nil {
		for _, o := range s.occurrences {
			if o.TeamID == occ.TeamID && o.ExternalKey != nil && *o.ExternalKey == *occ.ExternalKey {
				return repositories.ErrExternalKeyConflict
			}
		}
	}
	s.nextOccID++
	occ.ID = s.nextOccID
	occ.CreatedAt = s.now()
	occ.UpdatedAt = occ.CreatedAt
	stored := *occ
	stored.Responses = nil
	s.occurrences[occ.ID] = stored
	return nil
}

func (r memOccurrences) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Occurrence, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.occurrences[id]
	if !ok {
		return nil, repositories.ErrOccurrenceNotFound
	}
	return &o, nil
}

func (r memOccurrences) Update(ctx context.Context, exec repositories.SQLExecutor, occ *models.Occurrence) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.occurrences[occ.ID]; !ok {
		return repositories.ErrOccurrenceNotFound
	}
	if occ.EndsAt.Before(occ.StartsAt) {
		return repositories.ErrOccurrenceTimeRange
	}
	occ.UpdatedAt = s.now()
	stored := *occ
	stored.Responses = nil
	s.occurrences[occ.ID] = stored
	return nil
}

func (r memOccurrences) Delete(ctx context.Context, exec repositories.SQLExecutor, id int) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.occurrences[id]; !ok {
		return repositories.ErrOccurrenceNotFound
	}
	delete(s.occurrences, id)
	for k := range s.responses {
		if k.occurrenceID == id {
			delete(s.responses, k)
		}
	}
	return nil
}

func (r memOccurrences) filter(keep func(o models.Occurrence) bool) []*models.Occurrence {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Occurrence
	for _, o := range s.occurrences {
		if keep(o) {
			o := o
			out = append(out, &o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartsAt.Equal(out[j].StartsAt) {
			return out[i].StartsAt.Before(out[j].StartsAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r memOccurrences) ListBySeries(ctx context.Context, exec repositories.SQLExecutor, seriesID string) ([]*models.Occurrence, error) {
	return r.filter(func(o models.Occurrence) bool {
		return o.SeriesID != nil && *o.SeriesID == seriesID
	}), nil
}

func (r memOccurrences) ListByTeam(ctx context.Context, exec repositories.SQLExecutor, teamID int, from, to time.Time) ([]*models.Occurrence, error) {
	return r.filter(func(o models.Occurrence) bool {
		return o.TeamID == teamID && !o.StartsAt.Before(from) && o.StartsAt.Before(to)
	}), nil
}

func (r memOccurrences) ListFutureInviteAll(ctx context.Context, exec repositories.SQLExecutor, teamID int, after time.Time) ([]*models.Occurrence, error) {
	return r.filter(func(o models.Occurrence) bool {
		return o.TeamID == teamID && o.InviteAll && o.StartsAt.After(after)
	}), nil
}

func (r memOccurrences) GetByExternalKey(ctx context.Context, exec repositories.SQLExecutor, teamID int, key string) (*models.Occurrence, error) {
	found := r.filter(func(o models.Occurrence) bool {
		return o.TeamID == teamID && o.ExternalKey != nil && *o.ExternalKey == key
	})
	if len(found) == 0 {
		return nil, repositories.ErrOccurrenceNotFound
	}
	return found[0], nil
}

func (r memOccurrences) FindLegacyFixture(ctx context.Context, exec repositories.SQLExecutor, teamID int, startsAt time.Time) (*models.Occurrence, error) {
	found := r.filter(func(o models.Occurrence) bool {
		return o.TeamID == teamID && o.Category == models.CategoryMatch && o.ExternalKey == nil && o.StartsAt.Equal(startsAt)
	})
	if len(found) == 0 {
		return nil, repositories.ErrOccurrenceNotFound
	}
	return found[0], nil
}

// --- ResponseRepository ---

type memResponses struct{ store *memStore }

func (r memResponses) ListByOccurrence(ctx context.Context, exec repositories.SQLExecutor, occurrenceID int) ([]models.Response, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Response{}
	for k, v := range s.responses {
		if k.occurrenceID == occurrenceID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (r memResponses) Get(ctx context.Context, exec repositories.SQLExecutor, occurrenceID, userID int) (*models.Response, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.responses[respKey{occurrenceID, userID}]
	if !ok {
		return nil, repositories.ErrResponseNotFound
	}
	return &v, nil
}

func (r memResponses) InsertDefaults(ctx context.Context, exec repositories.SQLExecutor, occurrenceID int, userIDs []int, status models.ResponseStatus) (int64, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, id := range userIDs {
		k := respKey{occurrenceID, id}
		if _, ok := s.responses[k]; ok {
			continue
		}
		s.nextRespID++
		s.responses[k] = models.Response{
			ID:           s.nextRespID,
			OccurrenceID: occurrenceID,
			UserID:       id,
			Status:       status,
			CreatedAt:    s.now(),
		}
		n++
	}
	return n, nil
}

func (r memResponses) DeleteForUsers(ctx context.Context, exec repositories.SQLExecutor, occurrenceID int, userIDs []int) (int64, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, id := range userIDs {
		k := respKey{occurrenceID, id}
		if _, ok := s.responses[k]; ok {
			delete(s.responses, k)
			n++
		}
	}
	return n, nil
}

func (r memResponses) Upsert(ctx context.Context, exec repositories.SQLExecutor, resp *models.Response) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.occurrences[resp.OccurrenceID]; !ok {
		return repositories.ErrOccurrenceNotFound
	}
	k := respKey{resp.OccurrenceID, resp.UserID}
	if existing, ok := s.responses[k]; ok {
		resp.ID = existing.ID
		resp.CreatedAt = existing.CreatedAt
	} else {
		s.nextRespID++
		resp.ID = s.nextRespID
		resp.CreatedAt = s.now()
	}
	s.responses[k] = *resp
	return nil
}

func (r memResponses) ExpireTentative(ctx context.Context, exec repositories.SQLExecutor, now time.Time) (int64, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, v := range s.responses {
		if v.Status != models.ResponseTentative {
			continue
		}
		o, ok := s.occurrences[k.occurrenceID]
		if !ok || o.RSVPDeadline == nil || o.RSVPDeadline.After(now) {
			continue
		}
		v.Status = models.ResponseDeclined
		s.responses[k] = v
		n++
	}
	return n, nil
}

// --- TeamRepository ---

type memTeams struct{ store *memStore }

func (r memTeams) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Team, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.teams[id]
	if !ok {
		return nil, repositories.ErrTeamNotFound
	}
	c := *t
	return &c, nil
}

func (r memTeams) GetMember(ctx context.Context, exec repositories.SQLExecutor, teamID, userID int) (*models.TeamMember, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	role, ok := s.members[teamID][userID]
	if !ok {
		return nil, repositories.ErrMemberNotFound
	}
	return &models.TeamMember{TeamID: teamID, UserID: userID, Role: role}, nil
}

func (r memTeams) ListMemberIDs(ctx context.Context, exec repositories.SQLExecutor, teamID int) ([]int, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int, 0, len(s.members[teamID]))
	for id := range s.members[teamID] {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}

func (r memTeams) ListWithFeed(ctx context.Context) ([]*models.Team, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Team
	for _, t := range s.teams {
		if t.FeedTeamID != nil && *t.FeedTeamID != "" {
			c := *t
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- TombstoneRepository ---

type memTombstones struct{ store *memStore }

func (r memTombstones) Create(ctx context.Context, exec repositories.SQLExecutor, t *models.DeletedOccurrence) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextTombID++
	t.ID = s.nextTombID
	s.tombstones = append(s.tombstones, *t)
	return nil
}

// --- broadcaster ---

type recordedEvent struct {
	teamID    int
	eventType string
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (b *recordingBroadcaster) BroadcastToTeam(teamID int, eventType string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, recordedEvent{teamID: teamID, eventType: eventType})
}

func (b *recordingBroadcaster) count(eventType string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.events {
		if e.eventType == eventType {
			n++
		}
	}
	return n
}

// --- test environment ---

const (
	testTeamID   = 1
	otherTeamID  = 2
	trainerID    = 10
	playerID     = 11
	secondPlayer = 12
	outsiderID   = 99
	otherTrainer = 20
)

type testEnv struct {
	store       *memStore
	clock       *time.Time
	broadcaster *recordingBroadcaster
	occurrences OccurrenceService
	responses   ResponseService
	expirer     *TentativeExpirer
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestEnv builds a team with one trainer and two players. The clock starts at
// 2024-03-01 12:00 UTC and can be moved through env.clock.
func newTestEnv() *testEnv {
	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	env := &testEnv{clock: &clock, broadcaster: &recordingBroadcaster{}}
	now := func() time.Time { return *env.clock }

	store := newMemStore(now)
	store.addTeam(&models.Team{
		ID:   testTeamID,
		Name: "FC Teststadt",
		Defaults: models.TeamDefaults{
			DeadlineHours:       intPtr(24),
			MatchDeadlineHours:  intPtr(48),
			MatchArrivalMinutes: intPtr(60),
		},
		DefaultVenueName: stringPtr("Sportpark"),
		HomeVenues: []models.HomeVenue{{
			ID: 1, TeamID: testTeamID, Name: "Sportpark",
			Street: stringPtr("Am Sportplatz 1"), ZipCity: stringPtr("12345 Teststadt"), PitchType: stringPtr("Kunstrasen"),
		}},
	})
	store.addMember(testTeamID, trainerID, models.RoleTrainer)
	store.addMember(testTeamID, playerID, models.RolePlayer)
	store.addMember(testTeamID, secondPlayer, models.RolePlayer)
	store.addTeam(&models.Team{ID: otherTeamID, Name: "SV Anderswo"})
	store.addMember(otherTeamID, otherTrainer, models.RoleTrainer)
	env.store = store

	logger := discardLogger()
	responses := memResponses{store}
	env.expirer = NewTentativeExpirer(responses, now, logger)

	svc := NewOccurrenceService(OccurrenceServiceDeps{
		Tx:          memTx{store},
		Occurrences: memOccurrences{store},
		Responses:   responses,
		Teams:       memTeams{store},
		Tombstones:  memTombstones{store},
		Expirer:     env.expirer,
		Broadcaster: env.broadcaster,
		Location:    time.UTC,
		Now:         now,
		Logger:      logger,
	}).(*occurrenceService)
	seq := 0
	svc.newSeriesID = func() string {
		seq++
		return "series-" + string(rune('a'+seq-1))
	}
	env.occurrences = svc

	env.responses = NewResponseService(memTx{store}, memOccurrences{store}, responses, memTeams{store}, env.expirer, env.broadcaster, now, logger)
	return env
}

func (e *testEnv) responseStatuses(occurrenceID int) map[int]models.ResponseStatus {
	list, _ := memResponses{e.store}.ListByOccurrence(context.Background(), nil, occurrenceID)
	out := make(map[int]models.ResponseStatus, len(list))
	for _, r := range list {
		out[r.UserID] = r.Status
	}
	return out
}

func (e *testEnv) seriesStarts(seriesID string) []time.Time {
	list, _ := memOccurrences{e.store}.ListBySeries(context.Background(), nil, seriesID)
	out := make([]time.Time, 0, len(list))
	for _, o := range list {
		out = append(out, o.StartsAt)
	}
	return out
}

func (e *testEnv) occurrenceCount() int {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	return len(e.store.occurrences)
}
