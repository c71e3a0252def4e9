// Package stats derives dashboard figures for a poll creator from the vote
// events on their polls.
package stats

import (
	"fmt"
	"strings"
	"time"

	"github.com/saxenaaman628/pollbox/internal/models"
)

const dayLayout = "2006-01-02"

// DayCount is one point of the daily vote histogram.
type DayCount struct {
	Day   string `json:"day"`
	Total int    `json:"total"`
}

// Summary is the aggregate view of one creator's polls.
type Summary struct {
	TotalVotes int        `json:"totalVotes"`
	TotalViews int64      `json:"totalViews"`
	TotalPolls int        `json:"totalPolls"`
	Daily      []DayCount `json:"daily"`
}

// Aggregator computes summaries over a trailing window of whole days in a
// fixed time zone.
type Aggregator struct {
	loc  *time.Location
	days int
}

// NewAggregator creates an Aggregator bucketing days in loc over the last
// days calendar days, today included.
func NewAggregator(loc *time.Location, days int) *Aggregator {
	if days <= 0 {
		days = 7
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Aggregator{loc: loc, days: days}
}

// Window returns the inclusive start and exclusive end of the histogram
// window containing now.
func (a *Aggregator) Window(now time.Time) (time.Time, time.Time) {
	local := now.In(a.loc)
	end := time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, a.loc)
	start := end.AddDate(0, 0, -a.days)
	return start, end
}

// Summarize aggregates polls as of now.
func (a *Aggregator) Summarize(polls []*models.Poll, now time.Time) Summary {
	s := Summary{TotalPolls: len(polls)}
	var events []time.Time
	for _, p := range polls {
		s.TotalVotes += p.TotalVotes()
		s.TotalViews += p.Views
		for _, e := range p.Votes {
			events = append(events, e.VotedAt)
		}
	}
	s.Daily = a.Daily(events, now)
	return s
}

// Daily buckets timestamps by calendar day inside the window. Every day of
// the window is present, oldest first, with zero for days without votes.
func (a *Aggregator) Daily(events []time.Time, now time.Time) []DayCount {
	start, end := a.Window(now)

	counts := make(map[string]int, a.days)
	for _, t := range events {
		if t.Before(start) || !t.Before(end) {
			continue
		}
		counts[t.In(a.loc).Format(dayLayout)]++
	}

	out := make([]DayCount, 0, a.days)
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		key := d.Format(dayLayout)
		out = append(out, DayCount{Day: key, Total: counts[key]})
	}
	return out
}

// ParseOffset parses a fixed UTC offset such as "+05:30", "-08:00" or "Z".
func ParseOffset(s string) (*time.Location, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "Z" || s == "UTC" {
		return time.UTC, nil
	}
	sign := 1
	switch s[0] {
	case '+':
	case '-':
		sign = -1
	default:
		return nil, fmt.Errorf("offset %q must start with + or -", s)
	}
	hh, mm, ok := strings.Cut(s[1:], ":")
	if !ok {
		return nil, fmt.Errorf("offset %q must look like +HH:MM", s)
	}
	h, ok := twoDigits(hh)
	if !ok || h > 14 {
		return nil, fmt.Errorf("offset %q has invalid hours", s)
	}
	m, ok := twoDigits(mm)
	if !ok || m > 59 {
		return nil, fmt.Errorf("offset %q has invalid minutes", s)
	}
	return time.FixedZone("UTC"+s, sign*(h*3600+m*60)), nil
}

// twoDigits parses exactly two ASCII digits, so signs and spaces are rejected.
func twoDigits(s string) (int, bool) {
	if len(s) != 2 || s[0] < '0' || s[0] > '9' || s[1] < '0' || s[1] > '9' {
		return 0, false
	}
	return int(s[0]-'0')*10 + int(s[1]-'0'), true
}
