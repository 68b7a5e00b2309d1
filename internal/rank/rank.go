// Package rank derives display ranks from karma. Everything here is pure:
// no storage, no clock, just the karma integer in and a name out.
package rank

// Names covers 0..(len*step-1); karma beyond the table clamps to the last
// entry. Negative karma maps to the special negative rank.
var Names = []string{
	"Drifter",         // 0..99
	"Corner Kid",      // 100..199
	"Yard Runner",     // 200..299
	"Seasoned",        // 300..399
	"Heavyweight",     // 400..499
	"Mixtape Hustler", // 500..599
	"Street OG",       // 600..699
	"Platinum Player", // 700..799
	"Big Ape",         // 800..899
	"Block King",      // 900..999
	"Street Legend",   // 1000+
}

const Negative = "Disgraced"

const Step = 100

// Table lets the rank ladder be supplied from configuration while keeping
// derivation a pure function.
type Table struct {
	Names    []string
	Negative string
	Step     int
}

func DefaultTable() Table {
	return Table{Names: Names, Negative: Negative, Step: Step}
}

// For maps karma to a rank name. Total and deterministic for all integers.
func (t Table) For(karma int) string {
	if karma < 0 {
		return t.Negative
	}
	step := t.Step
	if step <= 0 {
		step = Step
	}
	idx := karma / step
	if idx >= len(t.Names) {
		idx = len(t.Names) - 1
	}
	return t.Names[idx]
}

// For maps karma to a rank name using the default ladder.
func For(karma int) string {
	return DefaultTable().For(karma)
}

// Base returns the rank for zero karma.
func (t Table) Base() string {
	return t.For(0)
}

// NextThreshold returns the karma needed for the next rank and its name.
// ok is false when the user already sits on the top rank.
func (t Table) NextThreshold(karma int) (need int, name string, ok bool) {
	if karma < 0 {
		return 0, t.Names[0], true
	}
	step := t.Step
	if step <= 0 {
		step = Step
	}
	idx := karma / step
	if idx >= len(t.Names)-1 {
		return 0, "", false
	}
	return (idx + 1) * step, t.Names[idx+1], true
}
