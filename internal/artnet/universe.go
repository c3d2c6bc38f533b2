package artnet

import (
	"fmt"
	"sync"
)

// Store holds the last received data of the 16 universes of the node's subnet.
// Each universe has its own lock, so a reader never sees a half written buffer.
type Store struct {
	slots [UniverseCount]slot
}

type slot struct {
	mu   sync.RWMutex
	data Universe
}

// NewStore creates a zeroed store.
func NewStore() *Store {
	return &Store{}
}

// Write replaces universe u with data. Bytes beyond len(data) are cleared.
func (s *Store) Write(u int, data []byte) {
	sl := s.slot(u)
	sl.mu.Lock()
	n := copy(sl.data[:], data)
	clear(sl.data[n:])
	sl.mu.Unlock()
}

// Read returns a copy of universe u.
func (s *Store) Read(u int) Universe {
	sl := s.slot(u)
	sl.mu.RLock()
	defer sl.mu.RUnlock()
	return sl.data
}

func (s *Store) slot(u int) *slot {
	if u < 0 || u >= UniverseCount {
		panic(fmt.Sprintf("artnet: universe %d out of range [0,%d)", u, UniverseCount))
	}
	return &s.slots[u]
}
