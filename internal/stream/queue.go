package stream

import (
	"sync"

	"voxelstream/internal/world"
)

// Queue hands finished chunks from the worker to the main thread in FIFO
// order. A key stays marked as pending from Push until the consumer calls
// Settle, so the worker never regenerates a chunk that is between the queue
// and the store.
type Queue struct {
	mu      sync.Mutex
	items   []*world.Chunk
	pending map[world.Key]struct{}
}

func NewQueue() *Queue {
	return &Queue{pending: make(map[world.Key]struct{})}
}

func (q *Queue) Push(c *world.Chunk) {
	q.mu.Lock()
	q.items = append(q.items, c)
	q.pending[c.Coord.Key()] = struct{}{}
	q.mu.Unlock()
}

// PopAll empties the queue without blocking.
func (q *Queue) PopAll() []*world.Chunk {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

// Has reports whether k was pushed and not yet settled.
func (q *Queue) Has(k world.Key) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.pending[k]
	return ok
}

// Settle clears the pending mark for k.
func (q *Queue) Settle(k world.Key) {
	q.mu.Lock()
	delete(q.pending, k)
	q.mu.Unlock()
}

// Len counts chunks waiting to be popped.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
