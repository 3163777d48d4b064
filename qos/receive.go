package qos

import "github.com/axmq/corebroker/message"

// ReceiveStore is a session's QoS 2 receive-side store: publishes stashed
// between PUBREC and the peer's PUBREL, keyed by packet id, bounded with
// drop-oldest-on-overflow semantics (spec §4.5 "PUBLISH q2" handling).
// Insertion order is tracked alongside the map so the oldest entry can be
// found without a timestamp scan, generalizing the teacher's dedup cache.
type ReceiveStore struct {
	max     int
	entries map[uint16]*message.Outbound
	order   []uint16
}

// NewReceiveStore builds a ReceiveStore holding at most max stashed
// publishes.
func NewReceiveStore(max int) *ReceiveStore {
	if max <= 0 {
		max = 1
	}
	return &ReceiveStore{max: max, entries: make(map[uint16]*message.Outbound)}
}

// Stash records msg under id, evicting the oldest entry first if the store
// is already at capacity.
func (s *ReceiveStore) Stash(id uint16, msg *message.Outbound) {
	if _, exists := s.entries[id]; exists {
		s.entries[id] = msg
		return
	}
	if len(s.entries) >= s.max {
		s.evictOldest()
	}
	s.entries[id] = msg
	s.order = append(s.order, id)
}

func (s *ReceiveStore) evictOldest() {
	if len(s.order) == 0 {
		return
	}
	oldest := s.order[0]
	s.order = s.order[1:]
	delete(s.entries, oldest)
}

// Contains reports whether id is currently stashed.
func (s *ReceiveStore) Contains(id uint16) bool {
	_, ok := s.entries[id]
	return ok
}

// Take removes and returns the publish stashed under id (spec §4.5 PUBREL
// handling: forward the stashed publish to the router and remove).
func (s *ReceiveStore) Take(id uint16) (*message.Outbound, bool) {
	msg, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	delete(s.entries, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return msg, true
}

// Len returns the number of stashed publishes.
func (s *ReceiveStore) Len() int { return len(s.entries) }
