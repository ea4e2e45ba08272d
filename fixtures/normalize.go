// Package fixtures reads the third-party fixture feed: it normalizes loosely structured game
// records, resolves home/away from the tracked team's perspective and derives stable keys.
package fixtures

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ReasonInvalidDate is reported for records without a parseable kickoff.
const ReasonInvalidDate = "invalid_date"

var ErrInvalidDate = errors.New(ReasonInvalidDate)

const (
	defaultKickoffHour   = 19
	defaultKickoffMinute = 0

	// Numeric timestamps at or above this are milliseconds.
	millisecondThreshold = 1e12
)

// Document is one upstream record of unknown shape.
type Document map[string]any

// Lookup resolves a dotted path ("location.street") through nested objects.
func (d Document) Lookup(path string) (any, bool) {
	var cur any = map[string]any(d)
	for _, part := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

// Field is a semantic value extracted from a record.
type Field int

const (
	FieldID Field = iota
	FieldTimestamp
	FieldDateTime
	FieldDate
	FieldTime
	FieldHomeTeam
	FieldAwayTeam
	FieldTitle
	FieldCompetition
	FieldVenue
	FieldStreet
	FieldStreetNumber
	FieldZipCity
	FieldZip
	FieldCity
	FieldAddress
	FieldHomeCrest
	FieldAwayCrest
)

// fieldCandidates lists, per field, the source keys tried in order. The first non-empty
// value wins.
var fieldCandidates = map[Field][]string{
	FieldID:           {"id", "gameId", "matchId", "fixtureId", "game_id", "match_id", "uuid"},
	FieldTimestamp:    {"timestamp", "kickoffTimestamp", "startTimestamp", "dateTimestamp", "kickoff_ts", "unixTime"},
	FieldDateTime:     {"dateTime", "datetime", "kickoff", "kickoffAt", "kickOff", "startDate", "start", "date_time", "startsAt"},
	FieldDate:         {"date", "gameDate", "matchDate", "day", "datum"},
	FieldTime:         {"time", "kickoffTime", "startTime", "gameTime", "uhrzeit"},
	FieldHomeTeam:     {"homeTeam", "homeTeam.name", "home", "home.name", "homeTeamName", "home_team", "teamHome", "heim"},
	FieldAwayTeam:     {"awayTeam", "awayTeam.name", "away", "away.name", "awayTeamName", "away_team", "teamAway", "gast", "guestTeam"},
	FieldTitle:        {"title", "name", "label"},
	FieldCompetition:  {"competition", "competition.name", "league", "league.name", "competitionName", "staffel"},
	FieldVenue:        {"location.name", "venue.name", "place.name", "venue", "location", "place", "stadium", "sportsground", "spielstaette"},
	FieldStreet:       {"location.street", "venue.street", "place.street", "address.street", "street", "strasse"},
	FieldStreetNumber: {"location.houseNumber", "location.number", "venue.houseNumber", "venue.number", "address.houseNumber", "houseNumber", "hausnummer"},
	FieldZipCity:      {"location.zipCity", "venue.zipCity", "address.zipCity", "zipCity", "zip_city"},
	FieldZip:          {"location.zip", "location.postalCode", "venue.zip", "venue.postalCode", "address.zip", "address.postalCode", "zip", "postalCode", "plz"},
	FieldCity:         {"location.city", "venue.city", "place.city", "address.city", "city", "ort"},
	FieldAddress:      {"location.address", "venue.address", "address", "adresse"},
	FieldHomeCrest:    {"homeLogo", "homeTeamLogo", "homeCrest", "homeTeam.logo", "homeTeam.logoUrl", "homeTeam.crest", "home.logo", "home.crest", "homeImage"},
	FieldAwayCrest:    {"awayLogo", "awayTeamLogo", "awayCrest", "awayTeam.logo", "awayTeam.logoUrl", "awayTeam.crest", "away.logo", "away.crest", "awayImage"},
}

// String returns the first non-empty string value among the field's candidate keys.
// Numbers are rendered in their shortest decimal form; objects and arrays are skipped.
func (d Document) String(f Field) string {
	return d.first(fieldCandidates[f])
}

func (d Document) first(keys []string) string {
	for _, key := range keys {
		v, ok := d.Lookup(key)
		if !ok {
			continue
		}
		if s, ok := scalarString(v); ok && s != "" {
			return s
		}
	}
	return ""
}

// Normalized is a fixture record reduced to the fields the reconciler needs.
type Normalized struct {
	UpstreamID  string
	KickoffAt   time.Time
	HomeTeam    string
	AwayTeam    string
	Title       string
	Competition string
	Venue       string
	Street      string
	ZipCity     string
	HomeCrest   string
	AwayCrest   string
}

// HasLocation reports whether the record carried any venue or address data.
func (n Normalized) HasLocation() bool {
	return n.Venue != "" || n.Street != "" || n.ZipCity != ""
}

// Normalize extracts kickoff, teams, venue and crests from doc. Wall-clock dates are
// interpreted in loc. A record without a parseable kickoff fails with ErrInvalidDate.
func Normalize(doc Document, loc *time.Location) (Normalized, error) {
	if loc == nil {
		loc = time.Local
	}
	kickoff, ok := parseKickoff(doc, loc)
	if !ok {
		return Normalized{}, ErrInvalidDate
	}

	n := Normalized{
		UpstreamID:  doc.String(FieldID),
		KickoffAt:   kickoff,
		HomeTeam:    doc.String(FieldHomeTeam),
		AwayTeam:    doc.String(FieldAwayTeam),
		Title:       doc.String(FieldTitle),
		Competition: doc.String(FieldCompetition),
		Venue:       doc.String(FieldVenue),
		HomeCrest:   doc.String(FieldHomeCrest),
		AwayCrest:   doc.String(FieldAwayCrest),
	}

	n.Street = doc.String(FieldStreet)
	if number := doc.String(FieldStreetNumber); number != "" && n.Street != "" && !strings.Contains(n.Street, number) {
		n.Street = n.Street + " " + number
	}

	n.ZipCity = doc.String(FieldZipCity)
	if n.ZipCity == "" {
		n.ZipCity = strings.TrimSpace(doc.String(FieldZip) + " " + doc.String(FieldCity))
	}

	if n.Street == "" && n.ZipCity == "" {
		n.Street, n.ZipCity = splitAddress(doc.String(FieldAddress))
	}

	return n, nil
}

// "Musterweg 3, 12345 Musterstadt" -> street, zip/city.
func splitAddress(address string) (street, zipCity string) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", ""
	}
	idx := strings.LastIndex(address, ",")
	if idx < 0 {
		return address, ""
	}
	return strings.TrimSpace(address[:idx]), strings.TrimSpace(address[idx+1:])
}

func parseKickoff(doc Document, loc *time.Location) (time.Time, bool) {
	for _, key := range fieldCandidates[FieldTimestamp] {
		v, ok := doc.Lookup(key)
		if !ok {
			continue
		}
		if t, ok := parseUnix(v, loc); ok {
			return t, true
		}
	}

	if s := doc.String(FieldDateTime); s != "" {
		if t, ok := parseDateTimeString(s, loc); ok {
			return t, true
		}
	}

	if s := doc.String(FieldDate); s != "" {
		y, m, d, rest, ok := extractDate(s)
		if !ok {
			return time.Time{}, false
		}
		timeStr := doc.String(FieldTime)
		if timeStr == "" {
			timeStr = rest
		}
		hour, minute := extractTime(timeStr)
		return buildTime(y, m, d, hour, minute, loc)
	}

	return time.Time{}, false
}

func parseUnix(v any, loc *time.Location) (time.Time, bool) {
	f, ok := scalarFloat(v)
	if !ok || f <= 0 {
		return time.Time{}, false
	}
	if f >= millisecondThreshold {
		return time.UnixMilli(int64(f)).In(loc), true
	}
	return time.Unix(int64(f), 0).In(loc), true
}

// zonedDateTimeLayouts cover strings that carry an offset but are not strict RFC 3339.
var zonedDateTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04Z07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04Z07:00",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04Z0700",
	"2006-01-02 15:04:05 -0700",
}

var localDateTimeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

func parseDateTimeString(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range zonedDateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.In(loc), true
		}
	}
	for _, layout := range localDateTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}

	y, m, d, rest, ok := extractDate(s)
	if !ok {
		return time.Time{}, false
	}
	hour, minute := extractTime(rest)
	return buildTime(y, m, d, hour, minute, loc)
}

var (
	// year-first in any separator is tried first; neither pattern may start or end inside a longer number
	isoDatePattern    = regexp.MustCompile(`(?:^|\D)(\d{4})[./-](\d{1,2})[./-](\d{1,2})(?:\D|$)`)
	germanDatePattern = regexp.MustCompile(`(?:^|\D)(\d{1,2})[./-](\d{1,2})[./-](\d{2,4})(?:\D|$)`)
	timePattern       = regexp.MustCompile(`(\d{1,2})[:.](\d{2})`)
)

// extractDate finds a year-first or day-first German date in s and returns the remainder of s
// with the date removed, so a trailing time can still be found.
func extractDate(s string) (year, month, day int, rest string, ok bool) {
	if loc := isoDatePattern.FindStringSubmatchIndex(s); loc != nil {
		year, _ = strconv.Atoi(s[loc[2]:loc[3]])
		month, _ = strconv.Atoi(s[loc[4]:loc[5]])
		day, _ = strconv.Atoi(s[loc[6]:loc[7]])
		return year, month, day, s[:loc[2]] + " " + s[loc[7]:], true
	}
	if loc := germanDatePattern.FindStringSubmatchIndex(s); loc != nil {
		day, _ = strconv.Atoi(s[loc[2]:loc[3]])
		month, _ = strconv.Atoi(s[loc[4]:loc[5]])
		yearStr := s[loc[6]:loc[7]]
		year, _ = strconv.Atoi(yearStr)
		switch len(yearStr) {
		case 2:
			year += 2000
		case 4:
		default:
			return 0, 0, 0, "", false
		}
		return year, month, day, s[:loc[2]] + " " + s[loc[7]:], true
	}
	return 0, 0, 0, "", false
}

// extractTime returns the first hh:mm in s clamped to a valid range, or 19:00.
func extractTime(s string) (hour, minute int) {
	m := timePattern.FindStringSubmatch(s)
	if m == nil {
		return defaultKickoffHour, defaultKickoffMinute
	}
	hour, _ = strconv.Atoi(m[1])
	minute, _ = strconv.Atoi(m[2])
	return clamp(hour, 0, 23), clamp(minute, 0, 59)
}

func buildTime(year, month, day, hour, minute int, loc *time.Location) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, hour, minute, 0, 0, loc)
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, false
	}
	return t, true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Document:
		return m, true
	default:
		return nil, false
	}
}

type floater interface {
	Float64() (float64, error)
}

func scalarString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case floater:
		return strings.TrimSpace(fmt.Sprint(x)), true
	default:
		return "", false
	}
}

func scalarFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case floater:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
