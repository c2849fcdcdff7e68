package rotation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextSingle(t *testing.T) {
	tests := []struct {
		name       string
		pool       []string
		live       string
		cursor     int
		wantTarget string
		wantCursor int
	}{
		{
			name:       "advances to next entry",
			pool:       []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"},
			live:       "10.0.0.1",
			cursor:     0,
			wantTarget: "10.0.0.2",
			wantCursor: 1,
		},
		{
			name:       "wraps around pool end",
			pool:       []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"},
			live:       "10.0.0.3",
			cursor:     2,
			wantTarget: "10.0.0.1",
			wantCursor: 0,
		},
		{
			name:       "skips candidate equal to live value",
			pool:       []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"},
			live:       "10.0.0.2",
			cursor:     0,
			wantTarget: "10.0.0.3",
			wantCursor: 2,
		},
		{
			name:       "skip wraps around pool end",
			pool:       []string{"10.0.0.1", "10.0.0.2"},
			live:       "10.0.0.2",
			cursor:     0,
			wantTarget: "10.0.0.1",
			wantCursor: 0,
		},
		{
			name:       "one-entry pool always yields that entry",
			pool:       []string{"10.0.0.1"},
			live:       "10.0.0.1",
			cursor:     0,
			wantTarget: "10.0.0.1",
			wantCursor: 0,
		},
		{
			name:       "live value outside pool",
			pool:       []string{"10.0.0.1", "10.0.0.2"},
			live:       "192.168.1.1",
			cursor:     1,
			wantTarget: "10.0.0.1",
			wantCursor: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, cursor := NextSingle(tt.pool, tt.live, tt.cursor)
			assert.Equal(t, tt.wantTarget, target)
			assert.Equal(t, tt.wantCursor, cursor)
		})
	}
}

func TestNextSingleVisitsWholePool(t *testing.T) {
	pool := []string{"10.0.0.1", "10.0.0.2", "10.0.0.3", "10.0.0.4"}
	seen := make(map[string]bool)

	live := pool[0]
	cursor := 0
	for i := 0; i < len(pool); i++ {
		target, next := NextSingle(pool, live, cursor)
		assert.NotEqual(t, live, target)
		seen[target] = true
		live = target
		cursor = next
	}
	assert.Len(t, seen, len(pool))
}

func TestWindowMultiPool(t *testing.T) {
	pool := []string{"10.0.0.1", "10.0.0.2", "10.0.0.3", "10.0.0.4", "10.0.0.5"}

	tests := []struct {
		name       string
		n          int
		cursor     int
		wantValues []string
		wantCursor int
	}{
		{
			name:       "window at pool start",
			n:          3,
			cursor:     0,
			wantValues: []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"},
			wantCursor: 1,
		},
		{
			name:       "window wraps around pool end",
			n:          3,
			cursor:     4,
			wantValues: []string{"10.0.0.5", "10.0.0.1", "10.0.0.2"},
			wantCursor: 0,
		},
		{
			name:       "window equal to pool size",
			n:          5,
			cursor:     2,
			wantValues: []string{"10.0.0.3", "10.0.0.4", "10.0.0.5", "10.0.0.1", "10.0.0.2"},
			wantCursor: 3,
		},
		{
			name:       "window larger than pool repeats entries",
			n:          7,
			cursor:     0,
			wantValues: []string{"10.0.0.1", "10.0.0.2", "10.0.0.3", "10.0.0.4", "10.0.0.5", "10.0.0.1", "10.0.0.2"},
			wantCursor: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, cursor := WindowMultiPool(pool, tt.n, tt.cursor)
			assert.Equal(t, tt.wantValues, values)
			assert.Equal(t, tt.wantCursor, cursor)
		})
	}
}

func TestWindowMultiPoolSlidesOnePerFiring(t *testing.T) {
	pool := []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"}

	cursor := 0
	for i := 0; i < 2*len(pool); i++ {
		_, next := WindowMultiPool(pool, 2, cursor)
		assert.Equal(t, (cursor+1)%len(pool), next)
		cursor = next
	}
	// After |pool| firings the window is back where it started.
	assert.Equal(t, 0, cursor)
}

func TestShiftShuffle(t *testing.T) {
	tests := []struct {
		name  string
		live  []string
		shift int
		want  []string
	}{
		{
			name:  "shift by one",
			live:  []string{"a", "b", "c"},
			shift: 1,
			want:  []string{"b", "c", "a"},
		},
		{
			name:  "shift by two",
			live:  []string{"a", "b", "c", "d"},
			shift: 2,
			want:  []string{"c", "d", "a", "b"},
		},
		{
			name:  "two records swap",
			live:  []string{"a", "b"},
			shift: 1,
			want:  []string{"b", "a"},
		},
		{
			name:  "duplicate live values preserved",
			live:  []string{"a", "a", "b"},
			shift: 1,
			want:  []string{"a", "b", "a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShiftShuffle(tt.live, tt.shift))
		})
	}
}

func TestShiftShuffleIsPermutation(t *testing.T) {
	live := []string{"w", "x", "y", "z"}
	for shift := 1; shift < len(live); shift++ {
		out := ShiftShuffle(live, shift)
		assert.ElementsMatch(t, live, out, "shift %d", shift)
	}
}
