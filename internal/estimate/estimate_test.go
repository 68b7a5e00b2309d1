package estimate_test

import (
	"testing"

	"ogmissions/internal/estimate"
)

func TestMixTrack(t *testing.T) {
	e := estimate.New()
	got := e.Estimate("свести трек", false)
	if got.Category != "mix" {
		t.Fatalf("category = %q, want mix", got.Category)
	}
	if got.Difficulty != 4 {
		t.Fatalf("difficulty = %d, want 4", got.Difficulty)
	}
	if got.TotalReward != 4 {
		t.Fatalf("total = %d, want 4", got.TotalReward)
	}
}

func TestUrgencyBonus(t *testing.T) {
	e := estimate.New()
	got := e.Estimate("записать вокал", true)
	if got.Difficulty != 4 || got.UrgencyBonus != 1 || got.TotalReward != 5 {
		t.Fatalf("got %+v, want difficulty 4, bonus 1, total 5", got)
	}
}

func TestFullTrackBeatsEverything(t *testing.T) {
	e := estimate.New()
	got := e.Estimate("полностью сделать трек и выложить на площадки", false)
	if got.Category != "full_track" || got.Difficulty != 5 {
		t.Fatalf("got %+v, want full_track/5", got)
	}
}

func TestSnippetCountOverride(t *testing.T) {
	e := estimate.New()
	cases := []struct {
		text string
		want int
	}{
		{"сделать 3 сниппета", 3},
		{"нарезать три тизера", 3},
		{"нужно 10 сниппетов", 5}, // clamped
		{"пять тизеров под релиз", 5},
	}
	for _, c := range cases {
		got := e.Estimate(c.text, false)
		if got.Category != "snippet" || got.Difficulty != c.want {
			t.Errorf("Estimate(%q) = %s/%d, want snippet/%d", c.text, got.Category, got.Difficulty, c.want)
		}
	}
}

func TestFuzzyMatchTolerantToTypos(t *testing.T) {
	e := estimate.New()
	// "сведение трека" misspelled slightly; should still land in mix
	got := e.Estimate("сведени трека до пятницы", false)
	if got.Category != "mix" {
		t.Fatalf("category = %q, want mix", got.Category)
	}
}

func TestHouseholdFallback(t *testing.T) {
	e := estimate.New()
	got := e.Estimate("что-то непонятное", false)
	if got.Category != "household" || got.Difficulty != 1 {
		t.Fatalf("got %+v, want household/1 fallback", got)
	}
}

func TestLengthBump(t *testing.T) {
	e := estimate.New()
	long := "смонтировать ролик из материала со вчерашней съемки, добавить титры и переходы, подобрать музыку, выровнять звук и подготовить две версии под разные платформы"
	got := e.Estimate(long, false)
	if got.Difficulty != 4 {
		t.Fatalf("difficulty = %d, want base 3 + length bump", got.Difficulty)
	}
}

func TestPureAndDeterministic(t *testing.T) {
	e := estimate.New()
	first := e.Estimate("записать куплет", true)
	for i := 0; i < 10; i++ {
		if got := e.Estimate("записать куплет", true); got != first {
			t.Fatalf("estimate not deterministic: %+v vs %+v", got, first)
		}
	}
}

func TestValidityGate(t *testing.T) {
	e := estimate.New()
	if v := e.Check("   "); v.Valid {
		t.Fatalf("blank text should be invalid")
	}
	if v := e.Check("ок"); v.Valid {
		t.Fatalf("too-short text should be invalid")
	}
	if v := e.Check("свести трек"); !v.Valid {
		t.Fatalf("valid text rejected: %+v", v)
	}
}

func TestIsHousehold(t *testing.T) {
	if !estimate.IsHousehold("вынести мусор вечером") {
		t.Fatalf("expected household")
	}
	if estimate.IsHousehold("свести трек") {
		t.Fatalf("mixing is not household")
	}
}

func TestLabels(t *testing.T) {
	if estimate.Label(1) == "" || estimate.Label(5) == "" {
		t.Fatalf("labels must cover 1..5")
	}
	if estimate.Label(0) != estimate.Label(1) || estimate.Label(9) != estimate.Label(5) {
		t.Fatalf("labels must clamp out-of-range difficulties")
	}
}
