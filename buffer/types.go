package buffer

// Range is a half-open selection in rune offsets: [Start, End).
// A collapsed range (Start == End) is a plain cursor.
type Range struct {
	Start int
	End   int
}

// Cursor returns a collapsed range at pos.
func Cursor(pos int) Range {
	return Range{Start: pos, End: pos}
}

func (r Range) Collapsed() bool {
	return r.Start == r.End
}

func (r Range) Len() int {
	return r.End - r.Start
}

// NormalizeRange orders Start <= End.
func NormalizeRange(r Range) Range {
	if r.Start <= r.End {
		return r
	}
	return Range{Start: r.End, End: r.Start}
}

func clampInt(v, min, max int) int {
	if max < min {
		return min
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// ClampRange normalizes r and clamps both ends into [0, length].
func ClampRange(r Range, length int) Range {
	r = NormalizeRange(r)
	return Range{
		Start: clampInt(r.Start, 0, length),
		End:   clampInt(r.End, 0, length),
	}
}
