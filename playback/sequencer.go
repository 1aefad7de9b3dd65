package playback

import (
	"math/rand/v2"
	"slices"
	"sync"
)

// Sequencer decides which clip index a stream plays next
type Sequencer interface {
	// Reset starts over for a pool of n clips
	Reset(n int)
	// Resize adapts to a pool that changed size without starting over
	Resize(n int)
	// First returns the index a new session starts on
	First() (int, bool)
	// Advance moves to and returns the next index; false when the pool is empty
	Advance() (int, bool)
	// Current returns the last index handed out, -1 if none
	Current() int
	// Len returns the pool size
	Len() int
}

// LoopSequencer walks the pool forward and wraps around forever
type LoopSequencer struct {
	mu      sync.Mutex
	current int
	size    int
}

var _ Sequencer = (*LoopSequencer)(nil)

// NewLoopSequencer returns an empty loop sequencer
func NewLoopSequencer() *LoopSequencer {
	return &LoopSequencer{}
}

func (s *LoopSequencer) Reset(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.size = n
	s.current = 0
}

// Resize keeps the current position unless it fell off the end of the pool
func (s *LoopSequencer) Resize(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.size = n
	if s.current >= n {
		s.current = 0
	}
}

func (s *LoopSequencer) First() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.size == 0 {
		return 0, false
	}
	return s.current, true
}

func (s *LoopSequencer) Advance() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.size == 0 {
		return 0, false
	}
	s.current = (s.current + 1) % s.size
	return s.current, true
}

func (s *LoopSequencer) Current() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.size == 0 {
		return -1
	}
	return s.current
}

func (s *LoopSequencer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// ShuffleSequencer plays a random permutation of the pool and repeats that same
// permutation on every lap. Only Reset draws a new one.
type ShuffleSequencer struct {
	mu      sync.Mutex
	rng     *rand.Rand
	order   []int
	current int
}

var _ Sequencer = (*ShuffleSequencer)(nil)

// NewShuffleSequencer returns an empty shuffle sequencer; a nil rng uses a random seed
func NewShuffleSequencer(rng *rand.Rand) *ShuffleSequencer {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &ShuffleSequencer{rng: rng, current: -1}
}

// Reset draws a fresh Fisher-Yates permutation of [0, n)
func (s *ShuffleSequencer) Reset(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = s.permutation(n)
	s.current = -1
}

func (s *ShuffleSequencer) permutation(n int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j := s.rng.IntN(i + 1)
		order[i], order[j] = order[j], order[i]
	}
	return order
}

// Resize drops indices that no longer exist and appends new ones in random
// order after the existing permutation, which is otherwise left alone.
func (s *ShuffleSequencer) Resize(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n <= 0 {
		s.order = nil
		s.current = -1
		return
	}
	if len(s.order) == 0 {
		s.order = s.permutation(n)
		s.current = -1
		return
	}

	prev := len(s.order)
	order := slices.DeleteFunc(s.order, func(i int) bool { return i >= n })
	if n > prev {
		added := make([]int, 0, n-prev)
		for i := prev; i < n; i++ {
			added = append(added, i)
		}
		s.rng.Shuffle(len(added), func(i, j int) { added[i], added[j] = added[j], added[i] })
		order = append(order, added...)
	}
	s.order = order
	if s.current >= n {
		s.current = -1
	}
}

// First returns the head of the permutation
func (s *ShuffleSequencer) First() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.order) == 0 {
		return 0, false
	}
	s.current = s.order[0]
	return s.current, true
}

// Advance finds the current index in the permutation and returns the one after
// it, wrapping to the head.
func (s *ShuffleSequencer) Advance() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.order) == 0 {
		return 0, false
	}
	pos := slices.Index(s.order, s.current)
	s.current = s.order[(pos+1)%len(s.order)]
	return s.current, true
}

func (s *ShuffleSequencer) Current() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *ShuffleSequencer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// Order returns a copy of the permutation
func (s *ShuffleSequencer) Order() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.order)
}
