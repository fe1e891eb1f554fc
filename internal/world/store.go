package world

import "sync"

// Store is the authoritative set of loaded chunks. Every method takes the
// store lock, so it is safe to call from the streaming worker and the main
// thread at once.
type Store struct {
	mu     sync.RWMutex
	chunks map[Key]*Chunk
}

func NewStore() *Store {
	return &Store{chunks: make(map[Key]*Chunk)}
}

func (s *Store) Contains(k Key) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.chunks[k]
	return ok
}

// Insert adds a chunk under its coordinate key. It returns false and leaves
// the store unchanged when the key is already present.
func (s *Store) Insert(c *Chunk) bool {
	k := c.Coord.Key()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chunks[k]; ok {
		return false
	}
	s.chunks[k] = c
	return true
}

// Erase removes and returns the chunk at k.
func (s *Store) Erase(k Key) (*Chunk, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chunks[k]
	if ok {
		delete(s.chunks, k)
	}
	return c, ok
}

// At returns the chunk at k; a miss is the normal "not loaded" answer.
func (s *Store) At(k Key) (*Chunk, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chunks[k]
	return c, ok
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// Snapshot returns the loaded chunks in no particular order.
func (s *Store) Snapshot() []*Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Chunk, 0, len(s.chunks))
	for _, c := range s.chunks {
		out = append(out, c)
	}
	return out
}

// EraseIf removes every chunk matching the predicate and returns them.
func (s *Store) EraseIf(pred func(*Chunk) bool) []*Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Chunk
	for k, c := range s.chunks {
		if pred(c) {
			delete(s.chunks, k)
			out = append(out, c)
		}
	}
	return out
}

// BlockAt reads a world cell from loaded chunks only.
func (s *Store) BlockAt(x, y, z int) (BlockType, bool) {
	coord, lx, ly, lz := ChunkOfBlock(x, y, z)
	c, ok := s.At(coord.Key())
	if !ok {
		return Air, false
	}
	return c.Block(lx, ly, lz), true
}
