package scheduler

import "sync/atomic"

// Scheduler selects the next index among n candidates, or -1 when n <= 0.
type Scheduler interface {
	Next(n int) int
}

// RoundRobin cycles through candidates. The zero value is ready to use.
type RoundRobin struct{ counter atomic.Uint64 }

func NewRoundRobin() *RoundRobin { return &RoundRobin{} }

func (r *RoundRobin) Next(n int) int {
	if n <= 0 {
		return -1
	}
	return int(r.counter.Add(1) % uint64(n))
}

// Pick returns the candidate chosen by s, or false for an empty slice.
func Pick[T any](s Scheduler, candidates []T) (T, bool) {
	i := s.Next(len(candidates))
	if i < 0 {
		var zero T
		return zero, false
	}
	return candidates[i], true
}
