package sat

// luby generates the Luby restart sequence (1,1,2,1,1,2,4,1,1,2,1,1,2,4,8,...),
// the standard CDCL restart schedule (spec.md §4.4.3 "standard CDCL
// restarts (Luby sequence)").
type luby struct{ i int }

func newLuby() *luby { return &luby{} }

// next returns the next term (1-indexed) and advances the sequence.
func (l *luby) next() int {
	l.i++
	return lubyTerm(l.i)
}

// lubyTerm computes the i-th term (i ≥ 1) of the Luby sequence: the
// standard "find k = 2^m-1 with k >= i" recurrence.
func lubyTerm(i int) int {
	k := 1
	for k < i+1 {
		k *= 2
	}
	if k == i+1 {
		return k / 2
	}
	return lubyTerm(i - k/2 + 1)
}
