// Package symap is an append-only string<->uint32 interner for URI->URID
// mapping. internal/host does not construct one.
// Non-realtime only: the RT thread never calls Map, only reads URIDs
// resolved ahead of time.
package symap

import "sync"

// Symap interns strings to dense uint32 ids starting at 1; 0 is reserved
// to mean "not mapped".
type Symap struct {
	mu   sync.Mutex
	ids  map[string]uint32
	strs []string // index i holds the string for id i+1
}

// New creates an empty interner.
func New() *Symap {
	return &Symap{ids: make(map[string]uint32)}
}

// Map returns the id for s, interning it if this is the first time s has
// been seen. Idempotent: calling Map(s) again always returns the same id.
func (s *Symap) Map(str string) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.ids[str]; ok {
		return id
	}

	s.strs = append(s.strs, str)
	id := uint32(len(s.strs))
	s.ids[str] = id
	return id
}

// TryMap returns the id for str if it has already been mapped, or 0 if
// str was never mapped.
func (s *Symap) TryMap(str string) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ids[str]
}

// Unmap returns the string for id, or "" if id is not a valid id this
// interner has issued.
func (s *Symap) Unmap(id uint32) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == 0 || int(id) > len(s.strs) {
		return ""
	}
	return s.strs[id-1]
}

// Len reports how many distinct strings have been interned.
func (s *Symap) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.strs)
}
