package storage

import (
	"fmt"
	"time"
)

// Granularity identifies a sample resolution tier. Raw samples come straight
// from the collector; the other tiers are produced by the rollup job.
type Granularity string

const (
	Raw     Granularity = "raw"
	Hourly  Granularity = "hourly"
	Daily   Granularity = "daily"
	Monthly Granularity = "monthly"
)

// Granularities lists all tiers from finest to coarsest.
var Granularities = []Granularity{Raw, Hourly, Daily, Monthly}

// ParseGranularity resolves a request parameter; the empty string defaults
// to Raw.
func ParseGranularity(s string) (Granularity, error) {
	switch Granularity(s) {
	case "":
		return Raw, nil
	case Raw, Hourly, Daily, Monthly:
		return Granularity(s), nil
	}
	return "", fmt.Errorf("unknown granularity %q", s)
}

// Truncate rounds t down to the start of this tier's bucket, in UTC.
func (g Granularity) Truncate(t time.Time) time.Time {
	t = t.UTC()
	switch g {
	case Hourly:
		return t.Truncate(time.Hour)
	case Daily:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case Monthly:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return t
}

// Format encodes a bucket start the way this tier's producer emits it. Raw
// samples carry an explicit-offset instant; rollup tiers emit naive strings
// that pkg/chartdata interprets as UTC by policy.
func (g Granularity) Format(t time.Time) string {
	t = t.UTC()
	switch g {
	case Hourly:
		return t.Format("2006-01-02 15:04")
	case Daily:
		return t.Format("2006-01-02")
	case Monthly:
		return t.Format("2006-01")
	}
	return t.Format(time.RFC3339)
}

// Coarser returns the next tier up, or "" for Monthly.
func (g Granularity) Coarser() Granularity {
	switch g {
	case Raw:
		return Hourly
	case Hourly:
		return Daily
	case Daily:
		return Monthly
	}
	return ""
}
