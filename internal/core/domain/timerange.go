package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// TimeRange is a closed interval used as a hard retrieval filter.
// A zero Start or End leaves that side open.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the range, inclusive on both ends.
func (r *TimeRange) Contains(t time.Time) bool {
	if r == nil {
		return true
	}
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && t.After(r.End) {
		return false
	}
	return true
}

// String renders the range in the A~B form accepted by ParseTimeRange.
func (r *TimeRange) String() string {
	if r == nil {
		return ""
	}
	var start, end string
	if !r.Start.IsZero() {
		start = r.Start.Format(time.RFC3339)
	}
	if !r.End.IsZero() {
		end = r.End.Format(time.RFC3339)
	}
	return start + "~" + end
}

var relativeRangePattern = regexp.MustCompile(`^last(\d+)([dh])$`)

// ParseTimeRange parses a time range expression relative to now.
//
// Accepted forms:
//
//	last7d              calendar days: from 00:00 seven days ago until now
//	last12h             rolling hours until now
//	2023-10~2023-12     explicit bounds, each end covering its whole period
//	2023-10-01~         open-ended
//	2023 | 2023-10 | 2023-10-05   a single year, month or day
//
// An empty expression returns nil, meaning no filter.
func ParseTimeRange(expr string, now time.Time) (*TimeRange, error) {
	expr = strings.ToLower(strings.TrimSpace(expr))
	if expr == "" {
		return nil, nil
	}

	if m := relativeRangePattern.FindStringSubmatch(expr); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%w: time range %q", ErrInvalidInput, expr)
		}
		if m[2] == "h" {
			return &TimeRange{Start: now.Add(-time.Duration(n) * time.Hour), End: now}, nil
		}
		day := now.AddDate(0, 0, -n)
		start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, now.Location())
		return &TimeRange{Start: start, End: now}, nil
	}

	if from, to, ok := strings.Cut(expr, "~"); ok {
		r := &TimeRange{}
		if from = strings.TrimSpace(from); from != "" {
			start, _, err := parsePeriod(from, now.Location())
			if err != nil {
				return nil, err
			}
			r.Start = start
		}
		if to = strings.TrimSpace(to); to != "" {
			_, end, err := parsePeriod(to, now.Location())
			if err != nil {
				return nil, err
			}
			r.End = end
		}
		if !r.Start.IsZero() && !r.End.IsZero() && r.End.Before(r.Start) {
			return nil, fmt.Errorf("%w: time range %q ends before it starts", ErrInvalidInput, expr)
		}
		return r, nil
	}

	start, end, err := parsePeriod(expr, now.Location())
	if err != nil {
		return nil, err
	}
	return &TimeRange{Start: start, End: end}, nil
}

// parsePeriod returns the first and last instant of a year, month, day or timestamp.
func parsePeriod(s string, loc *time.Location) (time.Time, time.Time, error) {
	if t, err := time.Parse(time.RFC3339, strings.ToUpper(s)); err == nil {
		return t, t, nil
	}
	periods := []struct {
		layout string
		next   func(time.Time) time.Time
	}{
		{"2006-01-02", func(t time.Time) time.Time { return t.AddDate(0, 0, 1) }},
		{"2006-01", func(t time.Time) time.Time { return t.AddDate(0, 1, 0) }},
		{"2006", func(t time.Time) time.Time { return t.AddDate(1, 0, 0) }},
	}
	for _, p := range periods {
		if t, err := time.ParseInLocation(p.layout, s, loc); err == nil {
			return t, p.next(t).Add(-time.Nanosecond), nil
		}
	}
	return time.Time{}, time.Time{}, fmt.Errorf("%w: unrecognised date %q", ErrInvalidInput, s)
}
