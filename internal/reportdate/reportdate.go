// Package reportdate turns analytics bucket keys into display labels.
//
// Week and month buckets are relative to the reporting window, so the
// window bounds and the zone the analytics query ran in are needed to pick
// the right year.
package reportdate

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrConversion wraps every bucket key that cannot be turned into a label.
var ErrConversion = errors.New("date conversion failed")

// Option is the bucket granularity of an analytics query.
type Option string

const (
	Daily   Option = "DAILY"
	Weekly  Option = "WEEKLY"
	Monthly Option = "MONTHLY"
	Yearly  Option = "YEARLY"
)

// layout pairs the Go layout a bucket is parsed with and the one it is shown with.
type layout struct {
	source  string
	display string
}

var layouts = map[Option]layout{
	Daily:   {source: "20060102", display: "2 Jan 2006"},
	Weekly:  {source: "2006", display: "Jan 2006"},
	Monthly: {source: "2006 1", display: "Jan 2006"},
	Yearly:  {source: "2006", display: "2006"},
}

// ParseOption validates an option name.
func ParseOption(s string) (Option, error) {
	opt := Option(s)
	if _, ok := layouts[opt]; !ok {
		return "", fmt.Errorf("unknown report date option %q", s)
	}
	return opt, nil
}

// Window is the [Start, End] range an analytics query covered.
type Window struct {
	Start time.Time
	End   time.Time
}

// Format renders rawKey for opt. Years and months of the window are read in loc.
func Format(opt Option, rawKey string, w Window, loc *time.Location) (string, error) {
	if loc == nil {
		loc = time.UTC
	}
	l, ok := layouts[opt]
	if !ok {
		return "", fmt.Errorf("%w: unknown report date option %q", ErrConversion, opt)
	}

	var (
		label string
		err   error
	)
	switch opt {
	case Daily, Yearly:
		label, err = reformat(l, rawKey)
	case Weekly:
		label, err = formatWeek(l, rawKey, w, loc)
	case Monthly:
		label, err = formatMonth(l, rawKey, w, loc)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrConversion, err)
	}
	return label, nil
}

// FormatInZone is Format with the zone given as an IANA name.
func FormatInZone(opt Option, rawKey string, w Window, zone string) (string, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrConversion, err)
	}
	return Format(opt, rawKey, w, loc)
}

func reformat(l layout, rawKey string) (string, error) {
	t, err := time.Parse(l.source, rawKey)
	if err != nil {
		return "", err
	}
	return t.Format(l.display), nil
}

// formatWeek resolves a week-of-year key to the Monday of that ISO week, or
// to January 1 when that Monday falls in the previous year, and labels it
// with its week of month, e.g. "5th week - Dec 2021".
func formatWeek(l layout, rawKey string, w Window, loc *time.Location) (string, error) {
	if len(rawKey) != 2 {
		return "", fmt.Errorf("week %q: want two digits", rawKey)
	}
	week, err := strconv.Atoi(rawKey)
	if err != nil {
		return "", fmt.Errorf("week %q: %w", rawKey, err)
	}

	startYear := w.Start.In(loc).Year()
	endYear := w.End.In(loc).Year()
	year := startYear
	// Early weeks of a window that crosses new year belong to the new year.
	if startYear < endYear && week < 6 {
		year = endYear
	}

	yearKey := strconv.Itoa(year)
	t, err := time.Parse(l.source, yearKey)
	if err != nil {
		return "", err
	}
	if week < 1 || week > isoWeeksInYear(t.Year()) {
		return "", fmt.Errorf("week %d out of range for %d", week, t.Year())
	}

	anchor := isoWeekStart(t.Year(), week)
	// Week 1 may start in late December; the label stays in the chosen year.
	if jan1 := time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC); anchor.Before(jan1) {
		anchor = jan1
	}
	n := weekOfMonth(anchor)
	return fmt.Sprintf("%d%s week - %s", n, ordinalSuffix(n), anchor.Format(l.display)), nil
}

// formatMonth resolves a month offset from the window's start month.
func formatMonth(l layout, rawKey string, w Window, loc *time.Location) (string, error) {
	if !isDigits(rawKey) {
		return "", fmt.Errorf("month offset %q: not a number", rawKey)
	}
	offset, err := strconv.Atoi(rawKey)
	if err != nil {
		return "", fmt.Errorf("month offset %q: %w", rawKey, err)
	}

	start := w.Start.In(loc)
	year := start.Year()
	month := offset + int(start.Month())
	if month > 12 {
		year = w.End.In(loc).Year()
		month -= 12
	}

	t, err := time.Parse(l.source, fmt.Sprintf("%d %d", year, month))
	if err != nil {
		return "", err
	}
	return t.Format(l.display), nil
}

// isoWeekStart returns the Monday of ISO week `week` of ISO year `year`.
func isoWeekStart(year, week int) time.Time {
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	monday := jan4.AddDate(0, 0, -isoWeekday(jan4)+1)
	return monday.AddDate(0, 0, 7*(week-1))
}

func isoWeeksInYear(year int) int {
	_, w := time.Date(year, time.December, 28, 0, 0, 0, 0, time.UTC).ISOWeek()
	return w
}

// isoWeekday numbers Monday as 1 and Sunday as 7.
func isoWeekday(t time.Time) int {
	return (int(t.Weekday())+6)%7 + 1
}

// weekOfMonth counts weeks starting on Monday. The first week of a month is
// the first one with at least 4 days in it; days before it are week 0.
func weekOfMonth(t time.Time) int {
	const minDays = 4
	dom := t.Day()
	weekStart := floorMod(dom-isoWeekday(t), 7)
	offset := -weekStart
	if weekStart+1 > minDays {
		offset = 7 - weekStart
	}
	return (7 + offset + dom - 1) / 7
}

func ordinalSuffix(n int) string {
	switch n {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	case 4, 5, 6:
		return "th"
	default:
		return ""
	}
}

func floorMod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
