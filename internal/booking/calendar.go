package booking

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// DateLayout is the canonical, sortable key of a trip date.
	DateLayout = "2006-01-02"

	// DefaultCutoffHour is used when the configured cutoff carries no usable hour.
	DefaultCutoffHour = 18

	// MaxWindowDays bounds the enumeration of a misconfigured window.
	MaxWindowDays = 366
)

// TimeOfDay is a wall-clock time without a date.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// On places t on the calendar day of date, in date's location.
func (t TimeOfDay) On(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour, t.Minute, 0, 0, date.Location())
}

// ParseCutoff parses an "HH:MM" end-of-day time. An empty string means no
// cutoff. A zero or unusable hour falls back to DefaultCutoffHour, so "00:30"
// reads as 18:30, and unusable minutes become zero.
func ParseCutoff(s string) *TimeOfDay {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	parts := strings.SplitN(s, ":", 3)
	hour, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || hour <= 0 || hour > 23 {
		hour = DefaultCutoffHour
	}

	minute := 0
	if len(parts) > 1 {
		if m, err := strconv.Atoi(strings.TrimSpace(parts[1])); err == nil && m >= 0 && m < 60 {
			minute = m
		}
	}

	return &TimeOfDay{Hour: hour, Minute: minute}
}

// ParseDate parses a YYYY-MM-DD key. Longer ISO timestamps are cut to their
// date part.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	return time.Parse(DateLayout, s)
}

// WindowConfig is the booking window as configured on the dashboard.
type WindowConfig struct {
	// StartDate is a calendar date; the zero value means booking is unavailable.
	StartDate    time.Time
	DaysCount    int
	CancelFriday bool
	Cutoff       *TimeOfDay
}

// SelectableDate is a date a rider may pick.
type SelectableDate struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// GenerateAvailableDays enumerates [StartDate, StartDate+DaysCount] and keeps
// the dates that are not in the past, not an excluded Friday and not closed by
// the end-of-day cutoff. Once now passes the cutoff both today and tomorrow
// are closed.
func GenerateAvailableDays(cfg WindowConfig, now time.Time) []SelectableDate {
	if cfg.StartDate.IsZero() || cfg.DaysCount < 0 {
		return nil
	}

	count := cfg.DaysCount
	if count > MaxWindowDays {
		count = MaxWindowDays
	}

	// Enumerate civil dates in UTC so DST shifts in now's location cannot
	// skip or repeat a day.
	today := civilDate(now)
	tomorrow := today.AddDate(0, 0, 1)
	start := civilDate(cfg.StartDate)
	end := start.AddDate(0, 0, count)
	pastCutoff := cfg.Cutoff != nil && now.After(cfg.Cutoff.On(now))

	days := make([]SelectableDate, 0, count+1)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if d.Before(today) {
			continue
		}
		if cfg.CancelFriday && d.Weekday() == time.Friday {
			continue
		}
		if pastCutoff && (d.Equal(today) || d.Equal(tomorrow)) {
			continue
		}
		days = append(days, SelectableDate{
			Value: d.Format(DateLayout),
			Label: FormatDateLabel(d),
		})
	}

	return days
}

// ContainsDate reports whether value is one of the selectable dates.
func ContainsDate(days []SelectableDate, value string) bool {
	for _, d := range days {
		if d.Value == value {
			return true
		}
	}
	return false
}

var (
	weekdayNames = [...]string{"الأحد", "الاثنين", "الثلاثاء", "الأربعاء", "الخميس", "الجمعة", "السبت"}
	monthNames   = [...]string{"يناير", "فبراير", "مارس", "أبريل", "مايو", "يونيو", "يوليو", "أغسطس", "سبتمبر", "أكتوبر", "نوفمبر", "ديسمبر"}
)

// FormatDateLabel renders a date as "weekday, day month" in Arabic.
func FormatDateLabel(d time.Time) string {
	return fmt.Sprintf("%s, %d %s", weekdayNames[d.Weekday()], d.Day(), monthNames[d.Month()-1])
}

func civilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
