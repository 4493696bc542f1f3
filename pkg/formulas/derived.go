package formulas

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Derived typing metrics. All functions are pure so the live query path
// and any cached path share identical arithmetic. Decimal arithmetic is
// used instead of float64 because the inputs are lifetime cumulative
// counters; float rounding drifts visibly at that magnitude.

// Accuracy calculates the typing accuracy percentage
//
// Formula:
//
//	accuracy = 100 * (typed - errors) / typed
//
// Returns 0 when nothing has been typed.
func Accuracy(typed, errors int64) decimal.Decimal {
	if typed == 0 {
		return decimal.Zero
	}

	return decimal.NewFromInt(100).
		Mul(decimal.NewFromInt(typed - errors)).
		Div(decimal.NewFromInt(typed))
}

// AverageTextLength calculates the mean characters per race
//
// Formula:
//
//	averageTextLength = typed / racesPlayed
//
// Returns 0 when no races have been played.
func AverageTextLength(typed int64, racesPlayed int32) decimal.Decimal {
	if racesPlayed == 0 {
		return decimal.Zero
	}

	return decimal.NewFromInt(typed).
		Div(decimal.NewFromInt(int64(racesPlayed)))
}

// AverageSpeed calculates typing speed in words per minute
//
// Formula:
//
//	averageSpeed = (60 / 5) * typed / secs
//
// 60 converts seconds to minutes, 5 is the conventional characters-per-word.
// Returns 0 when no time has been spent.
func AverageSpeed(typed, secs int64) decimal.Decimal {
	if secs == 0 {
		return decimal.Zero
	}

	return decimal.NewFromInt(12).
		Mul(decimal.NewFromInt(typed)).
		Div(decimal.NewFromInt(secs))
}

// TimeSpent renders secs as a human-readable duration breakdown,
// e.g. "2 days 1 hour 15 minutes 42 seconds". Zero-valued units are
// omitted; zero seconds total renders as an empty string.
func TimeSpent(secs int64) string {
	if secs < 0 {
		secs = 0
	}

	days := secs / 86400
	hours := secs % 86400 / 3600
	minutes := secs % 3600 / 60
	seconds := secs % 60

	var parts []string
	if days > 0 {
		parts = append(parts, pluralize(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, pluralize(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, pluralize(minutes, "minute"))
	}
	if seconds > 0 {
		parts = append(parts, pluralize(seconds, "second"))
	}

	return strings.Join(parts, " ")
}

func pluralize(value int64, unit string) string {
	if value > 1 {
		return fmt.Sprintf("%d %ss", value, unit)
	}
	return fmt.Sprintf("%d %s", value, unit)
}
