package server

import "container/heap"

// identityPool hands out the numbers behind generated "User #N" names.
//
// Released numbers are kept in a min-heap so the smallest vacated slot is
// reused before the counter grows.  The pool is not safe for concurrent use;
// it is owned by the Hub goroutine together with the registry.
type identityPool struct {
	counter  int
	released intHeap
	inPool   map[int]struct{}
}

func newIdentityPool() *identityPool {
	return &identityPool{inPool: make(map[int]struct{})}
}

// acquire returns the smallest released number, or the next counter value
// when nothing has been released.
func (p *identityPool) acquire() int {
	if p.released.Len() > 0 {
		n := heap.Pop(&p.released).(int)
		delete(p.inPool, n)
		return n
	}
	p.counter++
	return p.counter
}

// release makes n available again.  Numbers that were never issued and
// numbers already in the pool are ignored, so a double release cannot hand
// the same number to two clients.
func (p *identityPool) release(n int) bool {
	if n <= 0 || n > p.counter {
		return false
	}
	if _, ok := p.inPool[n]; ok {
		return false
	}
	p.inPool[n] = struct{}{}
	heap.Push(&p.released, n)
	return true
}

func (p *identityPool) available() int { return p.released.Len() }

type intHeap []int

func (h intHeap) Len() int           { return len(h) }
func (h intHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h intHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *intHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *intHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
