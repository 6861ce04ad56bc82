package graph

// SplitScore is one candidate way to partition a changeset's timestamp-
// sorted items into two nonempty groups, items[:CutIndex] and
// items[CutIndex:] (§4.7, §4.9).
type SplitScore struct {
	CutIndex      int
	CycleEdgesCut int // cycle edges severed by this cut — maximize
	OtherEdgesCut int // non-cycle internal edges also severed — penalty
}

// Score is CycleEdgesCut minus OtherEdgesCut: the "maximize severed cycle
// edges, penalize orphaning" heuristic named in §4.7/§4.9 and resolved as
// an Open Question in §9.
func (s SplitScore) Score() int { return s.CycleEdgesCut - s.OtherEdgesCut }

// BestSplit evaluates every candidate cut of an n-item changeset (cut
// indices 1..n-1) via score, and returns the cut index that maximizes
// Score(). Ties are broken by the earliest (lowest) cut index so the
// result is deterministic regardless of map/slice iteration order
// upstream (§9 Open Question (ii): "the implementation must be
// deterministic... but this is arbitrary").
//
// score(i) must report the SplitScore for cutting before index i
// (1 <= i <= n-1).
func BestSplit(n int, score func(i int) SplitScore) (SplitScore, bool) {
	if n < 2 {
		return SplitScore{}, false
	}
	best := score(1)
	for i := 2; i < n; i++ {
		cand := score(i)
		if cand.Score() > best.Score() {
			best = cand
		}
	}
	return best, true
}
