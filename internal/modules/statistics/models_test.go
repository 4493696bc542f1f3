package statistics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot_Sub(t *testing.T) {
	later := Snapshot{
		Username:    "alice",
		Team:        "KECATS",
		Name:        "Alice",
		Typed:       150,
		Errors:      8,
		Secs:        80,
		RacesPlayed: 15,
		CapturedAt:  time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC),
	}
	earlier := Snapshot{
		Username:    "alice",
		Typed:       100,
		Errors:      5,
		Secs:        50,
		RacesPlayed: 10,
	}

	diff, err := later.Sub(earlier)
	require.NoError(t, err)

	assert.EqualValues(t, 50, diff.Typed)
	assert.EqualValues(t, 3, diff.Errors)
	assert.EqualValues(t, 30, diff.Secs)
	assert.EqualValues(t, 5, diff.RacesPlayed)

	// Identity fields come from the minuend
	assert.Equal(t, "alice", diff.Username)
	assert.Equal(t, "KECATS", diff.Team)
	assert.Equal(t, "Alice", diff.Name)
	assert.Equal(t, later.CapturedAt, diff.CapturedAt)
}

func TestSnapshot_SubDifferentPlayers(t *testing.T) {
	a := Snapshot{Username: "alice"}
	b := Snapshot{Username: "bob"}

	_, err := a.Sub(b)
	assert.ErrorIs(t, err, ErrDifferentPlayers)
}
