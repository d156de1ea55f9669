package valuation

import "fmt"

// EntrySchedule maps order-of-entry rank to the share of launch value a
// product retains. Index 0 is first-to-market; ranks beyond the end reuse
// the last factor.
type EntrySchedule []float64

// DefaultEntrySchedule is 100% / 67% / 50% / 30% for 1st, 2nd, 3rd and 4th+.
func DefaultEntrySchedule() EntrySchedule {
	return EntrySchedule{1.0, 0.67, 0.5, 0.3}
}

// Validate requires at least one factor, every factor in (0,1], and a
// non-increasing sequence.
func (s EntrySchedule) Validate() error {
	if len(s) == 0 {
		return invalidf("entry_schedule", "must contain at least one factor")
	}
	for i, f := range s {
		field := fmt.Sprintf("entry_schedule[%d]", i)
		if err := checkFinite(field, f); err != nil {
			return err
		}
		if f <= 0 || f > 1 {
			return invalidf(field, "must be in (0, 1], got %g", f)
		}
		if i > 0 && f > s[i-1] {
			return invalidf(field, "must not exceed the factor for rank %d", i)
		}
	}
	return nil
}

// Factor returns the multiplier for rank (1-based).
func (s EntrySchedule) Factor(rank int) (float64, error) {
	if rank < 1 {
		return 0, invalidf("order_of_entry", "must be at least 1, got %d", rank)
	}
	if len(s) == 0 {
		s = DefaultEntrySchedule()
	}
	if rank > len(s) {
		return s[len(s)-1], nil
	}
	return s[rank-1], nil
}

// Ranks is the number of distinct positions the schedule defines; the last
// one stands for that rank and every later one.
func (s EntrySchedule) Ranks() int {
	if len(s) == 0 {
		return len(DefaultEntrySchedule())
	}
	return len(s)
}

// Clone returns an independent copy.
func (s EntrySchedule) Clone() EntrySchedule {
	return append(EntrySchedule(nil), s...)
}

// RankLabel renders a rank as "1st", "2nd", ..., with the final schedule
// position suffixed by "+".
func (s EntrySchedule) RankLabel(rank int) string {
	label := ordinal(rank)
	if rank == s.Ranks() {
		label += "+"
	}
	return label
}

func ordinal(n int) string {
	suffix := "th"
	switch {
	case n%100 >= 11 && n%100 <= 13:
	case n%10 == 1:
		suffix = "st"
	case n%10 == 2:
		suffix = "nd"
	case n%10 == 3:
		suffix = "rd"
	}
	return fmt.Sprintf("%d%s", n, suffix)
}
