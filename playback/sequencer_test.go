package playback

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded() *rand.Rand {
	return rand.New(rand.NewPCG(7, 11))
}

func TestLoopSequencerWraps(t *testing.T) {
	for n := 1; n <= 7; n++ {
		s := NewLoopSequencer()
		s.Reset(n)
		start, ok := s.First()
		require.True(t, ok)

		var last int
		for i := 0; i < n; i++ {
			last, _ = s.Advance()
		}
		assert.Equal(t, start, last, "pool size %d", n)
	}
}

func TestLoopSequencerThreeClips(t *testing.T) {
	s := NewLoopSequencer()
	s.Reset(3)

	first, _ := s.First()
	seen := []int{first}
	for i := 0; i < 3; i++ {
		next, ok := s.Advance()
		require.True(t, ok)
		seen = append(seen, next)
	}
	assert.Equal(t, []int{0, 1, 2, 0}, seen)
}

func TestLoopSequencerEmpty(t *testing.T) {
	s := NewLoopSequencer()
	_, ok := s.Advance()
	assert.False(t, ok)
	_, ok = s.First()
	assert.False(t, ok)
	assert.Equal(t, -1, s.Current())
}

func TestLoopSequencerResizeKeepsPosition(t *testing.T) {
	s := NewLoopSequencer()
	s.Reset(5)
	s.Advance()
	s.Advance()
	require.Equal(t, 2, s.Current())

	s.Resize(6)
	assert.Equal(t, 2, s.Current())

	s.Resize(2)
	assert.Equal(t, 0, s.Current())
}

func TestShuffleSequencerPermutation(t *testing.T) {
	for _, n := range []int{1, 2, 5, 32} {
		s := NewShuffleSequencer(seeded())
		s.Reset(n)

		order := s.Order()
		sorted := slices.Clone(order)
		slices.Sort(sorted)
		want := make([]int, n)
		for i := range want {
			want[i] = i
		}
		assert.Equal(t, want, sorted, "pool size %d", n)
	}
}

func TestShuffleSequencerCyclesWithoutReshuffle(t *testing.T) {
	const n = 6
	s := NewShuffleSequencer(seeded())
	s.Reset(n)
	order := s.Order()

	first, ok := s.First()
	require.True(t, ok)
	assert.Equal(t, order[0], first)

	lap := []int{first}
	for i := 0; i < n-1; i++ {
		next, _ := s.Advance()
		lap = append(lap, next)
	}
	assert.Equal(t, order, lap)

	// wrapping repeats the same order
	again, _ := s.Advance()
	assert.Equal(t, order[0], again)
	assert.Equal(t, order, s.Order())
}

func TestShuffleSequencerAdvanceVisitsAll(t *testing.T) {
	const n = 9
	s := NewShuffleSequencer(seeded())
	s.Reset(n)
	s.First()

	seen := map[int]bool{}
	for i := 0; i < n; i++ {
		next, _ := s.Advance()
		seen[next] = true
	}
	assert.Len(t, seen, n)
}

func TestShuffleSequencerAdvanceBeforeFirst(t *testing.T) {
	s := NewShuffleSequencer(seeded())
	s.Reset(4)
	next, ok := s.Advance()
	require.True(t, ok)
	assert.Equal(t, s.Order()[0], next)
}

func TestShuffleSequencerResize(t *testing.T) {
	s := NewShuffleSequencer(seeded())
	s.Reset(5)
	before := s.Order()

	s.Resize(7)
	after := s.Order()
	assert.Equal(t, before, after[:5], "existing order must survive growth")
	assert.ElementsMatch(t, []int{5, 6}, after[5:])

	s.Resize(3)
	shrunk := s.Order()
	assert.Len(t, shrunk, 3)
	for _, i := range shrunk {
		assert.Less(t, i, 3)
	}

	s.Resize(0)
	assert.Equal(t, 0, s.Len())
	_, ok := s.Advance()
	assert.False(t, ok)

	s.Resize(2)
	assert.ElementsMatch(t, []int{0, 1}, s.Order())
}

func TestShuffleSequencerSingle(t *testing.T) {
	s := NewShuffleSequencer(nil)
	s.Reset(1)
	first, _ := s.First()
	next, _ := s.Advance()
	assert.Equal(t, 0, first)
	assert.Equal(t, 0, next)
}
