package fixtures

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// minContainedLength guards substring matches: "SV" must not match "SV Adler".
const minContainedLength = 6

var germanFolds = strings.NewReplacer("ä", "ae", "ö", "oe", "ü", "ue", "ß", "ss")

// NormalizeTeamName lowercases, folds German umlauts, strips diacritics and drops every
// character that is not a letter or digit.
func NormalizeTeamName(name string) string {
	s := norm.NFC.String(name)
	s = strings.ToLower(s)
	s = germanFolds.Replace(s)

	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(stripMarks, s); err == nil {
		s = folded
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// TeamNamesMatch reports whether two team names refer to the same team.
func TeamNamesMatch(a, b string) bool {
	na, nb := NormalizeTeamName(a), NormalizeTeamName(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}
	shorter, longer := na, nb
	if utf8.RuneCountInString(shorter) > utf8.RuneCountInString(longer) {
		shorter, longer = longer, shorter
	}
	return utf8.RuneCountInString(shorter) >= minContainedLength && strings.Contains(longer, shorter)
}

type Side string

const (
	SideHome      Side = "home"
	SideAway      Side = "away"
	SideAmbiguous Side = "ambiguous"
)

// Sides is the home/away resolution of one fixture from the tracked team's perspective.
type Sides struct {
	Side         Side
	Opponent     string
	OpponentLogo string
}

// IsHome returns nil for ambiguous fixtures.
func (s Sides) IsHome() *bool {
	switch s.Side {
	case SideHome:
		v := true
		return &v
	case SideAway:
		v := false
		return &v
	default:
		return nil
	}
}

// ResolveSides decides whether the tracked team (known under ownNames) plays at home or away.
// Both or neither side matching is ambiguous; the opponent then stays empty.
func ResolveSides(ownNames []string, f Normalized) Sides {
	home := matchesAny(ownNames, f.HomeTeam)
	away := matchesAny(ownNames, f.AwayTeam)

	switch {
	case home && !away:
		return Sides{Side: SideHome, Opponent: f.AwayTeam, OpponentLogo: f.AwayCrest}
	case away && !home:
		return Sides{Side: SideAway, Opponent: f.HomeTeam, OpponentLogo: f.HomeCrest}
	default:
		return Sides{Side: SideAmbiguous}
	}
}

func matchesAny(names []string, candidate string) bool {
	for _, n := range names {
		if TeamNamesMatch(n, candidate) {
			return true
		}
	}
	return false
}
