package gfx

// maxRegions is the N=16 cap from spec.md §4.3 "Region list".
const maxRegions = 16

// CoalesceRegions clamps damage to the frame and greedily merges overlapping
// or adjacent rectangles into at most maxRegions bounding boxes. If the
// result still exceeds maxRegions, it falls back to a single full-frame
// region (spec.md §4.3, §7 "damage coalesce overflow").
//
// A nil or empty damage set means "assume full-frame dirty" (spec.md §4.1).
func CoalesceRegions(damage []Rect, width, height int) []Rect {
	full := []Rect{{X: 0, Y: 0, W: width, H: height}}
	if len(damage) == 0 {
		return full
	}

	rects := make([]Rect, 0, len(damage))
	for _, r := range damage {
		c := r.clampTo(width, height)
		if !c.empty() {
			rects = append(rects, c)
		}
	}
	if len(rects) == 0 {
		return full
	}

	merged := greedyMerge(rects)
	if len(merged) > maxRegions {
		return full
	}
	return merged
}

// greedyMerge repeatedly unions any pair of overlapping/adjacent rects until
// no more merges are possible. O(n^2) per pass, which is fine: n is bounded
// by the damage set a capture backend reports per frame, not by frame size.
func greedyMerge(rects []Rect) []Rect {
	for {
		mergedAny := false
		out := make([]Rect, 0, len(rects))
		consumed := make([]bool, len(rects))

		for i := range rects {
			if consumed[i] {
				continue
			}
			cur := rects[i]
			for j := i + 1; j < len(rects); j++ {
				if consumed[j] {
					continue
				}
				if cur.overlapsOrAdjacent(rects[j]) {
					cur = cur.union(rects[j])
					consumed[j] = true
					mergedAny = true
				}
			}
			out = append(out, cur)
		}

		rects = out
		if !mergedAny {
			return rects
		}
	}
}
