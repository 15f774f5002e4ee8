package events

import (
	"slices"
	"strings"
)

// SortByTime orders evs by Time using plain string comparison. The sort is
// stable: events with equal times keep their input order. Resume offsets are
// only meaningful because every run sorts identically.
func SortByTime(evs []AnalyticsEvent) {
	slices.SortStableFunc(evs, func(a, b AnalyticsEvent) int {
		return strings.Compare(a.Time, b.Time)
	})
}
