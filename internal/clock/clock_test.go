package clock

import (
	"testing"
	"time"
)

func fixedClock(t *testing.T) Clock {
	t.Helper()
	// Monday, 2025-06-02 12:00 UTC.
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	c := New(time.UTC)
	c.Now = func() time.Time { return now }
	return c
}

func TestParseDateISO(t *testing.T) {
	c := fixedClock(t)
	ts := c.ParseDate("2025-07-01")
	if ts == nil {
		t.Fatal("expected a timestamp")
	}
	got := time.Unix(*ts, 0).UTC()
	want := time.Date(2025, 7, 1, 23, 59, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestParseDateISOWithTime(t *testing.T) {
	c := fixedClock(t)
	ts := c.ParseDate("2025-07-01T09:30")
	if ts == nil {
		t.Fatal("expected a timestamp")
	}
	got := time.Unix(*ts, 0).UTC()
	if got.Hour() != 9 || got.Minute() != 30 {
		t.Fatalf("time of day not honored: %v", got)
	}
}

func TestParseDateDayMonth(t *testing.T) {
	c := fixedClock(t)
	ts := c.ParseDate("15.08")
	if ts == nil {
		t.Fatal("expected a timestamp")
	}
	got := time.Unix(*ts, 0).UTC()
	if got.Day() != 15 || got.Month() != time.August || got.Year() != 2025 {
		t.Fatalf("got %v", got)
	}
	if got.Hour() != 23 || got.Minute() != 59 {
		t.Fatalf("day deadline should default to 23:59, got %v", got)
	}
}

func TestParseDateTwoDigitYear(t *testing.T) {
	c := fixedClock(t)
	ts := c.ParseDate("15.08.26")
	if ts == nil {
		t.Fatal("expected a timestamp")
	}
	if got := time.Unix(*ts, 0).UTC(); got.Year() != 2026 {
		t.Fatalf("two-digit year: got %v", got)
	}
}

func TestParseDateRejectsGarbage(t *testing.T) {
	c := fixedClock(t)
	for _, s := range []string{"", "not a date", "32.01", "15.13", "15.08 extra"} {
		if ts := c.ParseDate(s); ts != nil {
			t.Errorf("ParseDate(%q) = %v, want nil", s, time.Unix(*ts, 0).UTC())
		}
	}
}

func TestParseDeadlineTomorrow(t *testing.T) {
	c := fixedClock(t)
	ts := c.ParseDeadline("сделать завтра вечером")
	if ts == nil {
		t.Fatal("expected a timestamp")
	}
	got := time.Unix(*ts, 0).UTC()
	if got.Day() != 3 || got.Month() != time.June {
		t.Fatalf("tomorrow: got %v", got)
	}
	if got.Hour() != 19 {
		t.Fatalf("evening slot should be 19:00, got %v", got)
	}
}

func TestParseDeadlineDayAfterTomorrow(t *testing.T) {
	c := fixedClock(t)
	ts := c.ParseDeadline("послезавтра")
	if ts == nil {
		t.Fatal("expected a timestamp")
	}
	if got := time.Unix(*ts, 0).UTC(); got.Day() != 4 {
		t.Fatalf("day after tomorrow: got %v", got)
	}
}

func TestParseDeadlineExplicitTimeWins(t *testing.T) {
	c := fixedClock(t)
	ts := c.ParseDeadline("сегодня вечером к 21:30")
	if ts == nil {
		t.Fatal("expected a timestamp")
	}
	got := time.Unix(*ts, 0).UTC()
	if got.Hour() != 21 || got.Minute() != 30 {
		t.Fatalf("explicit HH:MM should override the day-part hint, got %v", got)
	}
}

func TestParseDeadlineWeekday(t *testing.T) {
	c := fixedClock(t)
	// Now is a Monday, so "пятница" means the coming Friday, June 6.
	ts := c.ParseDeadline("до пятницы")
	if ts == nil {
		t.Fatal("expected a timestamp")
	}
	got := time.Unix(*ts, 0).UTC()
	if got.Weekday() != time.Friday || got.Day() != 6 {
		t.Fatalf("weekday: got %v", got)
	}
}

func TestParseDeadlineSameWeekdayMeansNextWeek(t *testing.T) {
	c := fixedClock(t)
	ts := c.ParseDeadline("в понедельник")
	if ts == nil {
		t.Fatal("expected a timestamp")
	}
	if got := time.Unix(*ts, 0).UTC(); got.Day() != 9 {
		t.Fatalf("same weekday should roll to next week, got %v", got)
	}
}

func TestParseDeadlinePastDayMonthRollsToNextYear(t *testing.T) {
	c := fixedClock(t)
	ts := c.ParseDeadline("к 15.01")
	if ts == nil {
		t.Fatal("expected a timestamp")
	}
	if got := time.Unix(*ts, 0).UTC(); got.Year() != 2026 {
		t.Fatalf("past DD.MM should roll to next year, got %v", got)
	}
}

func TestParseDeadlineNoSignal(t *testing.T) {
	c := fixedClock(t)
	if ts := c.ParseDeadline("просто какой-то текст"); ts != nil {
		t.Fatalf("expected nil, got %v", time.Unix(*ts, 0).UTC())
	}
}

func TestSameDay(t *testing.T) {
	c := fixedClock(t)
	sameDay := time.Date(2025, 6, 2, 23, 0, 0, 0, time.UTC).Unix()
	nextDay := time.Date(2025, 6, 3, 1, 0, 0, 0, time.UTC).Unix()
	if !c.SameDay(sameDay) {
		t.Error("23:00 the same day should match")
	}
	if c.SameDay(nextDay) {
		t.Error("01:00 the next day should not match")
	}
}

func TestFormat(t *testing.T) {
	c := fixedClock(t)
	ts := time.Date(2025, 6, 2, 9, 5, 0, 0, time.UTC).Unix()
	if got := c.Format(ts); got != "02.06 09:05" {
		t.Fatalf("Format = %q", got)
	}
}
