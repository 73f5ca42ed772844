package rl

import (
	"math"
	"math/rand"
	"time"
)

// Experience is an immutable record of one completed evaluation and its
// outcome, kept for batched re-estimation.
type Experience struct {
	State     string
	Action    Action
	Reward    float64
	NextState string // empty for terminal transitions
	Done      bool
	Priority  float64
	Timestamp time.Time
	MatchID   string
	Profit    float64
}

// ReplayBuffer is a bounded ring buffer of experiences. Once capacity is
// exceeded the oldest entry is evicted. It is not goroutine-safe; the owning
// agent serializes access.
type ReplayBuffer struct {
	entries []Experience
	head    int
	full    bool
}

// NewReplayBuffer creates a buffer holding at most capacity experiences.
func NewReplayBuffer(capacity int) *ReplayBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &ReplayBuffer{entries: make([]Experience, capacity)}
}

// Add appends an experience, evicting the oldest when full.
func (b *ReplayBuffer) Add(e Experience) {
	b.entries[b.head] = e
	b.head++
	if b.head == len(b.entries) {
		b.head = 0
		b.full = true
	}
}

// Len returns the number of stored experiences.
func (b *ReplayBuffer) Len() int {
	if b.full {
		return len(b.entries)
	}
	return b.head
}

// at returns a pointer to the i-th stored experience (0 = oldest).
func (b *ReplayBuffer) at(i int) *Experience {
	if b.full {
		return &b.entries[(b.head+i)%len(b.entries)]
	}
	return &b.entries[i]
}

// Sample draws n experiences uniformly at random (with replacement when the
// buffer is smaller than n is not needed - n is clamped to Len).
func (b *ReplayBuffer) Sample(rng *rand.Rand, n int) []*Experience {
	size := b.Len()
	if n > size {
		n = size
	}
	out := make([]*Experience, 0, n)
	for _, idx := range rng.Perm(size)[:n] {
		out = append(out, b.at(idx))
	}
	return out
}

// SamplePrioritized draws n experiences weighted by priority^exponent using
// a cumulative-weight draw, making a best-effort attempt to avoid duplicate
// picks within the batch. When the total priority mass is zero it falls back
// to uniform sampling.
func (b *ReplayBuffer) SamplePrioritized(rng *rand.Rand, n int, exponent float64) []*Experience {
	size := b.Len()
	if n > size {
		n = size
	}
	if n == 0 {
		return nil
	}

	weights := make([]float64, size)
	total := 0.0
	for i := 0; i < size; i++ {
		w := math.Pow(math.Max(0, b.at(i).Priority), exponent)
		weights[i] = w
		total += w
	}
	if total <= 0 {
		return b.Sample(rng, n)
	}

	picked := make(map[int]bool, n)
	out := make([]*Experience, 0, n)
	// A few extra draws paper over collisions; duplicates are tolerated if
	// the retry budget runs out.
	attempts := n * 4
	for len(out) < n && attempts > 0 {
		attempts--
		r := rng.Float64() * total
		idx := size - 1
		for i, w := range weights {
			r -= w
			if r <= 0 {
				idx = i
				break
			}
		}
		if picked[idx] && attempts > 0 {
			continue
		}
		picked[idx] = true
		out = append(out, b.at(idx))
	}
	return out
}
