package fixtures

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

const syntheticKeyPrefix = "syn:"

// StableKey identifies one upstream fixture across imports: the upstream id when the feed
// provides one, otherwise a digest over feed team id, kickoff instant and both team names.
// Fields are length-prefixed so no separator can collide.
func StableKey(upstreamID, feedTeamID string, kickoff time.Time, home, away string) string {
	if id := strings.TrimSpace(upstreamID); id != "" {
		return id
	}

	h := sha256.New()
	for _, part := range []string{
		feedTeamID,
		kickoff.UTC().Format(time.RFC3339),
		NormalizeTeamName(home),
		NormalizeTeamName(away),
	} {
		var size [8]byte
		binary.BigEndian.PutUint64(size[:], uint64(len(part)))
		h.Write(size[:])
		h.Write([]byte(part))
	}
	return syntheticKeyPrefix + hex.EncodeToString(h.Sum(nil))[:32]
}

// dedupeKey groups the same record appearing verbatim in several feed collections.
// Copies with differently written dates are merged by the importer on StableKey.
func dedupeKey(doc Document) string {
	date := doc.String(FieldDate)
	if date == "" {
		date = doc.String(FieldDateTime)
	}
	if date == "" {
		date = doc.String(FieldTimestamp)
	}
	parts := []string{
		doc.String(FieldID),
		date,
		doc.String(FieldHomeTeam),
		doc.String(FieldAwayTeam),
		doc.String(FieldTitle),
	}
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(strconv.Itoa(len(p)))
		b.WriteByte(':')
		b.WriteString(p)
	}
	return b.String()
}
