package fixtures

import (
	"fmt"
	"strconv"
)

// LeagueTable is the ranking of the team's competition.
type LeagueTable struct {
	League string     `json:"league"`
	Rows   []TableRow `json:"rows"`
}

type TableRow struct {
	Place  int    `json:"place"`
	Team   string `json:"team"`
	Games  int    `json:"games"`
	Won    int    `json:"won"`
	Draw   int    `json:"draw"`
	Lost   int    `json:"lost"`
	Goals  string `json:"goals"`
	Points int    `json:"points"`
	Logo   string `json:"logo,omitempty"`
}

var (
	leagueNameCandidates = []string{"league", "leagueName", "league.name", "competition", "competition.name", "staffel", "name"}
	tableListCandidates  = []string{"table", "rows", "standings", "ranking", "tabelle"}

	rowPlace  = []string{"place", "rank", "position", "platz"}
	rowTeam   = []string{"team", "teamName", "team.name", "name", "club", "verein"}
	rowGames  = []string{"games", "matches", "played", "spiele"}
	rowWon    = []string{"won", "wins", "win", "siege"}
	rowDraw   = []string{"draw", "draws", "ties", "unentschieden"}
	rowLost   = []string{"lost", "losses", "loss", "niederlagen"}
	rowGoals  = []string{"goal", "goals", "goalRatio", "tore"}
	rowPoints = []string{"points", "pts", "punkte"}
	rowLogo   = []string{"img", "logo", "teamLogo", "crest"}
)

func parseLeagueTable(payload any) (*LeagueTable, error) {
	table := &LeagueTable{}
	var list []any

	switch p := payload.(type) {
	case []any:
		list = p
	case map[string]any:
		doc := Document(p)
		for _, key := range tableListCandidates {
			if l, ok := p[key].([]any); ok {
				list = l
				break
			}
		}
		table.League = doc.first(leagueNameCandidates)
	default:
		return nil, fmt.Errorf("%w: table payload is %T", ErrFeedMalformed, payload)
	}

	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		d := Document(m)
		table.Rows = append(table.Rows, TableRow{
			Place:  atoi(d.first(rowPlace)),
			Team:   d.first(rowTeam),
			Games:  atoi(d.first(rowGames)),
			Won:    atoi(d.first(rowWon)),
			Draw:   atoi(d.first(rowDraw)),
			Lost:   atoi(d.first(rowLost)),
			Goals:  d.first(rowGoals),
			Points: atoi(d.first(rowPoints)),
			Logo:   d.first(rowLogo),
		})
	}
	return table, nil
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
