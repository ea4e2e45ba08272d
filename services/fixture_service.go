package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/mrsorbate/KADR.app-sub000/fixtures"
	"github.com/mrsorbate/KADR.app-sub000/models"
	"github.com/mrsorbate/KADR.app-sub000/repositories"
	"github.com/mrsorbate/KADR.app-sub000/storage"
	"golang.org/x/sync/errgroup"
)

const (
	FixtureDuration = 120 * time.Minute

	ReasonOutOfSeason = "out_of_season"

	upcomingGamesLimit = 5
)

// FixtureFeed is the upstream fixture source; *fixtures.Client implements it.
type FixtureFeed interface {
	FetchTeamInfo(ctx context.Context, feedTeamID string) (*fixtures.TeamInfo, error)
	FetchTeamTable(ctx context.Context, feedTeamID string) (*fixtures.LeagueTable, error)
}

type UpcomingGame struct {
	KickoffAt   time.Time `json:"kickoff_at"`
	Title       string    `json:"title"`
	Opponent    string    `json:"opponent,omitempty"`
	IsHome      *bool     `json:"is_home,omitempty"`
	Competition string    `json:"competition,omitempty"`
}

type LeagueOverview struct {
	Season   string              `json:"season"`
	League   string              `json:"league"`
	Table    []fixtures.TableRow `json:"table"`
	Upcoming []UpcomingGame      `json:"upcoming"`
	OwnRow   *fixtures.TableRow  `json:"own_row,omitempty"`
}

type FixtureService interface {
	// ImportTeamFixtures reconciles the team's feed fixtures of the current season into
	// match occurrences. Used by the scheduler; no authorization check.
	ImportTeamFixtures(ctx context.Context, teamID int) (*models.ImportSummary, error)
	// TriggerImport is the manual, trainer-only variant of ImportTeamFixtures.
	TriggerImport(ctx context.Context, actorID, teamID int) (*models.ImportSummary, error)
	LastImport(ctx context.Context, actorID, teamID int) (*models.ImportSummary, error)
	GetLeagueOverview(ctx context.Context, actorID, teamID int) (*LeagueOverview, error)
}

type FixtureServiceDeps struct {
	Tx          repositories.TxManager
	Occurrences repositories.OccurrenceRepository
	Responses   repositories.ResponseRepository
	Teams       repositories.TeamRepository
	Feed        FixtureFeed
	Archive     storage.PayloadArchive
	ImportLog   storage.ImportLog
	Expirer     *TentativeExpirer
	Broadcaster TeamBroadcaster
	Location    *time.Location
	Now         func() time.Time
	Logger      *slog.Logger
}

type fixtureService struct {
	tx          repositories.TxManager
	occurrences repositories.OccurrenceRepository
	teams       repositories.TeamRepository
	invites     *inviteSyncer
	feed        FixtureFeed
	archive     storage.PayloadArchive
	importLog   storage.ImportLog
	expirer     *TentativeExpirer
	broadcaster TeamBroadcaster
	loc         *time.Location
	now         func() time.Time
	logger      *slog.Logger
}

func NewFixtureService(d FixtureServiceDeps) FixtureService {
	s := &fixtureService{
		tx:          d.Tx,
		occurrences: d.Occurrences,
		teams:       d.Teams,
		invites:     newInviteSyncer(d.Teams, d.Responses),
		feed:        d.Feed,
		archive:     d.Archive,
		importLog:   d.ImportLog,
		expirer:     d.Expirer,
		broadcaster: d.Broadcaster,
		loc:         d.Location,
		now:         d.Now,
		logger:      d.Logger,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.archive == nil {
		s.archive = storage.NopArchive{}
	}
	if s.broadcaster == nil {
		s.broadcaster = nopBroadcaster{}
	}
	if s.expirer == nil {
		s.expirer = NewTentativeExpirer(d.Responses, s.now, s.logger)
	}
	return s
}

func (s *fixtureService) TriggerImport(ctx context.Context, actorID, teamID int) (*models.ImportSummary, error) {
	if err := requireTrainer(ctx, s.teams, teamID, actorID); err != nil {
		return nil, err
	}
	return s.ImportTeamFixtures(ctx, teamID)
}

func (s *fixtureService) ImportTeamFixtures(ctx context.Context, teamID int) (*models.ImportSummary, error) {
	if _, err := s.expirer.ExpireStale(ctx); err != nil {
		return nil, err
	}
	team, err := loadTeam(ctx, s.teams, nil, teamID)
	if err != nil {
		return nil, err
	}
	feedTeamID := strings.TrimSpace(derefString(team.FeedTeamID))
	if s.feed == nil || feedTeamID == "" {
		return nil, ErrFeedNotConfigured
	}

	startedAt := s.now()
	info, err := s.feed.FetchTeamInfo(ctx, feedTeamID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExternalDependency, err)
	}

	season := fixtures.SeasonOf(startedAt.In(s.loc))
	summary := &models.ImportSummary{TeamID: team.ID, StartedAt: startedAt}

	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		// the same fixture may come in several collections with differently written dates
		seen := make(map[string]bool, len(info.Games))
		for _, doc := range info.Games {
			item, ok, err := s.reconcileFixture(ctx, exec, team, feedTeamID, season, doc, seen)
			if err != nil {
				return err
			}
			if ok {
				summary.Add(item)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("importing fixtures of team %d: %w", team.ID, err)
	}
	summary.FinishedAt = s.now()

	if err := s.archive.Put(ctx, storage.ArchiveKey(team.ID, startedAt), "application/json", info.Raw); err != nil {
		s.logger.WarnContext(ctx, "archiving fixture payload failed", slog.Int("team_id", team.ID), slog.Any("error", err))
	}
	if s.importLog != nil {
		if err := s.importLog.Save(ctx, summary); err != nil {
			s.logger.WarnContext(ctx, "writing import log failed", slog.Int("team_id", team.ID), slog.Any("error", err))
		}
	}

	s.logger.InfoContext(ctx, "fixtures imported",
		slog.Int("team_id", team.ID),
		slog.String("season", season.String()),
		slog.Int("created", summary.Created),
		slog.Int("updated", summary.Updated),
		slog.Int("skipped", summary.Skipped),
	)
	s.broadcaster.BroadcastToTeam(team.ID, EventFixturesImported, map[string]int{
		"created": summary.Created,
		"updated": summary.Updated,
		"skipped": summary.Skipped,
	})
	return summary, nil
}

// reconcileFixture classifies one feed record. Per-record data problems become skipped
// items; only storage failures are returned as errors. A record whose stable key is
// already in seen was reconciled earlier in the batch and reports ok == false.
func (s *fixtureService) reconcileFixture(ctx context.Context, exec repositories.SQLExecutor, team *models.Team, feedTeamID string, season fixtures.Season, doc fixtures.Document, seen map[string]bool) (models.ImportItem, bool, error) {
	n, err := fixtures.Normalize(doc, s.loc)
	if err != nil {
		return models.ImportItem{
			Outcome: models.ImportSkipped,
			Reason:  fixtures.ReasonInvalidDate,
			Title:   ambiguousTitle(doc.String(fixtures.FieldHomeTeam), doc.String(fixtures.FieldAwayTeam)),
		}, true, nil
	}
	kickoff := n.KickoffAt
	if !season.Contains(kickoff) {
		return models.ImportItem{
			Outcome:   models.ImportSkipped,
			Reason:    ReasonOutOfSeason,
			Title:     ambiguousTitle(n.HomeTeam, n.AwayTeam),
			KickoffAt: &kickoff,
		}, true, nil
	}

	sides := fixtures.ResolveSides(team.NamesForMatching(), n)
	key := fixtures.StableKey(n.UpstreamID, feedTeamID, kickoff, n.HomeTeam, n.AwayTeam)
	if seen[key] {
		return models.ImportItem{}, false, nil
	}
	seen[key] = true

	existing, err := s.findExisting(ctx, exec, team.ID, key, kickoff)
	if err != nil {
		return models.ImportItem{}, false, err
	}

	item := models.ImportItem{ExternalKey: key, KickoffAt: &kickoff}
	if existing != nil {
		updated := s.applyFixture(cloneOccurrence(existing), team, n, sides, key)
		if err := s.occurrences.Update(ctx, exec, updated); err != nil {
			return models.ImportItem{}, false, handleRepositoryError(err)
		}
		item.Outcome = models.ImportUpdated
		item.OccurrenceID = updated.ID
		item.Title = updated.Title
		return item, true, nil
	}

	occ := s.newFixtureOccurrence(team, n, sides, key)
	if err := s.occurrences.Create(ctx, exec, occ); err != nil {
		return models.ImportItem{}, false, handleRepositoryError(err)
	}
	if _, err := s.invites.Sync(ctx, exec, occ, team, nil); err != nil {
		return models.ImportItem{}, false, err
	}
	item.Outcome = models.ImportCreated
	item.OccurrenceID = occ.ID
	item.Title = occ.Title
	return item, true, nil
}

// findExisting looks up by external key, then adopts a manually created match of the team
// with no key that starts at exactly the same instant.
func (s *fixtureService) findExisting(ctx context.Context, exec repositories.SQLExecutor, teamID int, key string, kickoff time.Time) (*models.Occurrence, error) {
	occ, err := s.occurrences.GetByExternalKey(ctx, exec, teamID, key)
	if err == nil {
		return occ, nil
	}
	if !errors.Is(err, repositories.ErrOccurrenceNotFound) {
		return nil, err
	}
	occ, err = s.occurrences.FindLegacyFixture(ctx, exec, teamID, kickoff)
	if err == nil {
		return occ, nil
	}
	if errors.Is(err, repositories.ErrOccurrenceNotFound) {
		return nil, nil
	}
	return nil, err
}

func (s *fixtureService) newFixtureOccurrence(team *models.Team, n fixtures.Normalized, sides fixtures.Sides, key string) *models.Occurrence {
	sched := ResolveScheduleDefaults(team.Defaults, models.CategoryMatch)
	occ := &models.Occurrence{
		TeamID:         team.ID,
		Category:       models.CategoryMatch,
		Title:          fixtureTitle(n, sides),
		Description:    stringPtr(n.Competition),
		Location:       fixtureLocation(n),
		ArrivalMinutes: sched.ArrivalMinutes,
		VisibleToAll:   true,
		InviteAll:      true,
		ExternalKey:    &key,
		IsHome:         sides.IsHome(),
		OpponentCrest:  stringPtr(sides.OpponentLogo),
	}
	start := n.KickoffAt.In(s.loc)
	occ.SetTimes(start, start.Add(FixtureDuration))
	occ.RSVPDeadline = DeadlineFor(start, sched.DeadlineHours)

	if sides.Side == fixtures.SideHome && !n.HasLocation() {
		if venue, ok := team.DefaultVenue(); ok {
			occ.Location = venueLocation(venue)
			occ.PitchType = venue.PitchType
		}
	}
	return occ
}

// applyFixture refreshes an existing occurrence from the feed. A record without location
// data keeps the stored location when the occurrence was a home match and the team has a
// default venue. Deadline and arrival follow the team's current match defaults unless a
// trainer pinned them; pinned values keep their offset to the kickoff.
func (s *fixtureService) applyFixture(occ *models.Occurrence, team *models.Team, n fixtures.Normalized, sides fixtures.Sides, key string) *models.Occurrence {
	sched := ResolveScheduleDefaults(team.Defaults, models.CategoryMatch)
	wasHome := occ.IsHome != nil && *occ.IsHome
	venue, hasDefaultVenue := team.DefaultVenue()

	offset := DeadlineOffset(occ.StartsAt, occ.RSVPDeadline)
	start := n.KickoffAt.In(s.loc)

	occ.Title = fixtureTitle(n, sides)
	occ.Description = stringPtr(n.Competition)
	switch {
	case n.HasLocation():
		occ.Location = fixtureLocation(n)
	case wasHome && hasDefaultVenue:
	case sides.Side == fixtures.SideHome && hasDefaultVenue:
		occ.Location = venueLocation(venue)
		occ.PitchType = venue.PitchType
	default:
		occ.Location = models.Location{}
	}
	occ.SetTimes(start, start.Add(FixtureDuration))
	if occ.SchedulePinned {
		occ.RSVPDeadline = ShiftDeadline(start, offset)
	} else {
		occ.ArrivalMinutes = sched.ArrivalMinutes
		occ.RSVPDeadline = DeadlineFor(start, sched.DeadlineHours)
	}
	occ.IsHome = sides.IsHome()
	occ.OpponentCrest = stringPtr(sides.OpponentLogo)
	occ.ExternalKey = &key
	return occ
}

func (s *fixtureService) LastImport(ctx context.Context, actorID, teamID int) (*models.ImportSummary, error) {
	if _, err := requireMember(ctx, s.teams, teamID, actorID); err != nil {
		return nil, err
	}
	if s.importLog == nil {
		return nil, fmt.Errorf("%w: no import recorded", ErrNotFound)
	}
	summary, err := s.importLog.Last(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if summary == nil {
		return nil, fmt.Errorf("%w: no import recorded", ErrNotFound)
	}
	return summary, nil
}

func (s *fixtureService) GetLeagueOverview(ctx context.Context, actorID, teamID int) (*LeagueOverview, error) {
	if _, err := requireMember(ctx, s.teams, teamID, actorID); err != nil {
		return nil, err
	}
	team, err := loadTeam(ctx, s.teams, nil, teamID)
	if err != nil {
		return nil, err
	}
	feedTeamID := strings.TrimSpace(derefString(team.FeedTeamID))
	if s.feed == nil || feedTeamID == "" {
		return nil, ErrFeedNotConfigured
	}

	var (
		table *fixtures.LeagueTable
		info  *fixtures.TeamInfo
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := s.feed.FetchTeamTable(gCtx, feedTeamID)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrExternalDependency, err)
		}
		table = t
		return nil
	})
	g.Go(func() error {
		i, err := s.feed.FetchTeamInfo(gCtx, feedTeamID)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrExternalDependency, err)
		}
		info = i
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	now := s.now().In(s.loc)
	overview := &LeagueOverview{
		Season:   fixtures.SeasonOf(now).String(),
		League:   table.League,
		Table:    table.Rows,
		Upcoming: []UpcomingGame{},
	}
	if overview.Table == nil {
		overview.Table = []fixtures.TableRow{}
	}
	for i := range table.Rows {
		if teamMatches(team, table.Rows[i].Team) {
			overview.OwnRow = &table.Rows[i]
			break
		}
	}

	for _, doc := range info.Games {
		n, err := fixtures.Normalize(doc, s.loc)
		if err != nil || !n.KickoffAt.After(now) {
			continue
		}
		sides := fixtures.ResolveSides(team.NamesForMatching(), n)
		overview.Upcoming = append(overview.Upcoming, UpcomingGame{
			KickoffAt:   n.KickoffAt,
			Title:       fixtureTitle(n, sides),
			Opponent:    sides.Opponent,
			IsHome:      sides.IsHome(),
			Competition: n.Competition,
		})
	}
	sort.SliceStable(overview.Upcoming, func(i, j int) bool {
		return overview.Upcoming[i].KickoffAt.Before(overview.Upcoming[j].KickoffAt)
	})
	if len(overview.Upcoming) > upcomingGamesLimit {
		overview.Upcoming = overview.Upcoming[:upcomingGamesLimit]
	}
	return overview, nil
}

func teamMatches(team *models.Team, name string) bool {
	for _, own := range team.NamesForMatching() {
		if fixtures.TeamNamesMatch(own, name) {
			return true
		}
	}
	return false
}

// fixtureTitle names the opponent when the side is known, otherwise "<home> - <away>".
func fixtureTitle(n fixtures.Normalized, sides fixtures.Sides) string {
	if sides.Side != fixtures.SideAmbiguous && sides.Opponent != "" {
		return sides.Opponent
	}
	if t := ambiguousTitle(n.HomeTeam, n.AwayTeam); t != "" {
		return t
	}
	if n.Title != "" {
		return n.Title
	}
	return "Match"
}

func ambiguousTitle(home, away string) string {
	switch {
	case home != "" && away != "":
		return home + " - " + away
	case home != "":
		return home
	default:
		return away
	}
}

func fixtureLocation(n fixtures.Normalized) models.Location {
	return models.Location{
		Venue:   stringPtr(n.Venue),
		Street:  stringPtr(n.Street),
		ZipCity: stringPtr(n.ZipCity),
	}
}

func venueLocation(v *models.HomeVenue) models.Location {
	return models.Location{
		Venue:   stringPtr(v.Name),
		Street:  v.Street,
		ZipCity: v.ZipCity,
	}
}
