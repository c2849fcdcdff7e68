// Package rotation contains the three rotation algorithms as pure
// functions, plus the job evaluator that turns a job and its state
// into an update plan. Nothing here touches the network or the clock;
// live record values are passed in by the caller.
package rotation

// NextSingle picks the next pool entry for a single-record job.
// The candidate is the entry after the cursor; if it equals the live
// value and the pool has an alternative, the pick advances once more
// so the operator never sees a "same IP again" rotation when a
// distinct alternative exists. A one-entry pool always yields that
// entry, even when it matches the live value.
func NextSingle(pool []string, live string, cursor int) (target string, newCursor int) {
	if len(pool) == 1 {
		return pool[0], 0
	}

	idx := (cursor + 1) % len(pool)
	if pool[idx] == live {
		idx = (cursor + 2) % len(pool)
	}
	return pool[idx], idx
}

// WindowMultiPool returns the pool values for n records at window
// start cursor: value i is pool[(cursor+i) mod len(pool)]. The window
// slides forward one position per firing.
func WindowMultiPool(pool []string, n, cursor int) (values []string, newCursor int) {
	values = make([]string, n)
	for i := 0; i < n; i++ {
		values[i] = pool[(cursor+i)%len(pool)]
	}
	return values, (cursor + 1) % len(pool)
}

// ShiftShuffle returns the cyclically shifted live values: position i
// receives live[(i+shift) mod len(live)]. The caller samples live
// values once at the start of the firing so the shift is deterministic
// even under concurrent external updates.
func ShiftShuffle(live []string, shift int) []string {
	n := len(live)
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = live[(i+shift)%n]
	}
	return out
}
