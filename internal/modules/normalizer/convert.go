package normalizer

import (
	"strings"
	"time"

	"github.com/typingrealm/nitrotype-tracker/internal/modules/statistics"
)

// ConvertMember turns one season member into a normalized snapshot.
// Members missing any required counter are rejected (second return
// false): a partial row would corrupt every diff computed from it.
// The display name falls back to the username when blank. capturedAt is
// the raw entry's capture time, shared by all members of that entry.
func ConvertMember(m SeasonMember, team string, capturedAt time.Time) (statistics.Snapshot, bool) {
	if m.Username == nil || m.Typed == nil || m.Errs == nil || m.RacesPlayed == nil || m.Secs == nil {
		return statistics.Snapshot{}, false
	}

	name := *m.Username
	if m.DisplayName != nil && strings.TrimSpace(*m.DisplayName) != "" {
		name = *m.DisplayName
	}

	return statistics.Snapshot{
		Username:    *m.Username,
		Team:        team,
		Typed:       *m.Typed,
		Errors:      *m.Errs,
		Name:        name,
		RacesPlayed: *m.RacesPlayed,
		CapturedAt:  capturedAt,
		Secs:        *m.Secs,
	}, true
}
