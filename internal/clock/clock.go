// Package clock provides timezone-aware time helpers and deadline parsing
// from free text or date strings.
package clock

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Clock carries the configured location and an injectable now for tests.
type Clock struct {
	Loc *time.Location
	Now func() time.Time
}

func New(loc *time.Location) Clock {
	if loc == nil {
		loc = time.UTC
	}
	return Clock{Loc: loc, Now: time.Now}
}

func (c Clock) now() time.Time {
	if c.Now != nil {
		return c.Now().In(c.Loc)
	}
	return time.Now().In(c.Loc)
}

// NowTs returns the current unix timestamp in the configured location.
func (c Clock) NowTs() int64 {
	return c.now().Unix()
}

// Format renders a timestamp as "DD.MM HH:MM" local time.
func (c Clock) Format(ts int64) string {
	return time.Unix(ts, 0).In(c.Loc).Format("02.01 15:04")
}

// SameDay reports whether ts falls on the same local calendar day as now.
func (c Clock) SameDay(ts int64) bool {
	now := c.now()
	t := time.Unix(ts, 0).In(c.Loc)
	return now.Year() == t.Year() && now.YearDay() == t.YearDay()
}

var (
	dmyRe    = regexp.MustCompile(`(\d{1,2})[.\-/](\d{1,2})(?:[.\-/](\d{2,4}))?`)
	isoRe    = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)
	timeRe   = regexp.MustCompile(`([01]?\d|2[0-3])[:.]([0-5]\d)`)
	numberRe = regexp.MustCompile(`^\d`)
)

var weekdays = map[string]time.Weekday{
	"понедельник": time.Monday,
	"вторник":     time.Tuesday,
	"сред":        time.Wednesday,
	"четверг":     time.Thursday,
	"пятниц":      time.Friday,
	"суббот":      time.Saturday,
	"воскресень":  time.Sunday,
}

// ParseDate parses explicit date strings:
//   - ISO: YYYY-MM-DD, YYYY-MM-DDTHH:MM, "YYYY-MM-DD HH:MM"
//   - DD.MM and DD.MM.YYYY (defaults to 23:59 local)
//
// Returns nil when the string carries no recognizable date.
func (c Clock) ParseDate(s string) *int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	for _, layout := range []string{"2006-01-02T15:04", "2006-01-02 15:04", time.RFC3339} {
		if dt, err := time.ParseInLocation(layout, s, c.Loc); err == nil {
			ts := dt.Unix()
			return &ts
		}
	}
	if m := isoRe.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		return c.dayDeadline(year, month, day)
	}
	if m := dmyRe.FindStringSubmatch(s); m != nil && len(m[0]) == len(s) {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year := c.now().Year()
		if m[3] != "" {
			year, _ = strconv.Atoi(m[3])
			if year < 100 {
				year += 2000
			}
		}
		return c.dayDeadline(year, month, day)
	}
	return nil
}

func (c Clock) dayDeadline(year, month, day int) *int64 {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return nil
	}
	dt := time.Date(year, time.Month(month), day, 23, 59, 0, 0, c.Loc)
	ts := dt.Unix()
	return &ts
}

// ParseDeadline extracts a deadline from free text: explicit dates first,
// then relative day words, then weekday names. A HH:MM in the text overrides
// the time of day; otherwise a day-part hint (morning/evening/...) sets it.
func (c Clock) ParseDeadline(text string) *int64 {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return nil
	}
	if numberRe.MatchString(t) {
		if ts := c.ParseDate(t); ts != nil {
			return ts
		}
	}
	now := c.now()

	var base *time.Time
	switch {
	case strings.Contains(t, "послезавтра"):
		d := now.AddDate(0, 0, 2)
		base = &d
	case strings.Contains(t, "завтра"):
		d := now.AddDate(0, 0, 1)
		base = &d
	case strings.Contains(t, "сегодня"):
		base = &now
	}

	if base == nil {
		if m := dmyRe.FindStringSubmatch(t); m != nil {
			day, _ := strconv.Atoi(m[1])
			month, _ := strconv.Atoi(m[2])
			year := now.Year()
			if m[3] != "" {
				year, _ = strconv.Atoi(m[3])
				if year < 100 {
					year += 2000
				}
			} else {
				probe := time.Date(year, time.Month(month), day, 0, 0, 0, 0, c.Loc)
				if probe.Before(now.Truncate(24 * time.Hour)) {
					year++
				}
			}
			if month >= 1 && month <= 12 && day >= 1 && day <= 31 {
				d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, c.Loc)
				base = &d
			}
		}
	}

	if base == nil {
		for key, wd := range weekdays {
			if strings.Contains(t, key) {
				d := nextWeekday(now, wd)
				base = &d
				break
			}
		}
	}

	if base == nil {
		return nil
	}

	var dt time.Time
	if m := timeRe.FindStringSubmatch(t); m != nil {
		hh, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		dt = time.Date(base.Year(), base.Month(), base.Day(), hh, mm, 0, 0, c.Loc)
	} else {
		dt = time.Date(base.Year(), base.Month(), base.Day(), slotHour(t), 0, 0, 0, c.Loc)
	}
	ts := dt.Unix()
	return &ts
}

func slotHour(t string) int {
	switch {
	case strings.Contains(t, "утр"):
		return 10
	case strings.Contains(t, "вечер"):
		return 19
	case strings.Contains(t, "обед") || strings.Contains(t, "днем") || strings.Contains(t, "днём"):
		return 13
	case strings.Contains(t, "ноч"):
		return 22
	default:
		return 15
	}
}

func nextWeekday(base time.Time, target time.Weekday) time.Time {
	ahead := (int(target) - int(base.Weekday()) + 7) % 7
	if ahead == 0 {
		ahead = 7
	}
	return base.AddDate(0, 0, ahead)
}
