package qos

import (
	"time"

	"github.com/axmq/corebroker/message"
)

// entry is one outstanding QoS>0 delivery awaiting acknowledgement (spec §3
// InflightEntry). Msg becomes nil once a QoS 2 PUBREC has been received: the
// body is no longer needed for retransmission, only the packet id survives
// to match the eventual PUBCOMP.
type entry struct {
	lastSend time.Time
	msg      *message.Outbound
}

// Store is a session's inflight window: a bounded map keyed by packet id,
// backed by an unbounded overflow queue for publishes the router handed the
// session while the window was already full (spec §3, §9 "Inflight store
// with backing deque"; the REDESIGN FLAGS note picks this map-based design
// over the source's alternate Vec-based one). It is owned by a single
// session task and carries no locking.
type Store struct {
	max      int
	entries  map[uint16]*entry
	overflow []*message.Outbound
}

// NewStore builds a Store whose primary window holds at most max entries.
func NewStore(max int) *Store {
	if max <= 0 {
		max = 1
	}
	return &Store{max: max, entries: make(map[uint16]*entry)}
}

// Full reports whether the primary window has no room for another entry —
// the session must not pull another outbound-delivery command from the
// router while this is true (spec §4.5 step 2).
func (s *Store) Full() bool {
	return len(s.entries) >= s.max
}

// Len returns the number of packet ids currently outstanding.
func (s *Store) Len() int { return len(s.entries) }

// Add records a newly-sent publish under id. The caller must check Full
// first; Add does not itself enforce the window bound.
func (s *Store) Add(id uint16, msg *message.Outbound, now time.Time) {
	s.entries[id] = &entry{lastSend: now, msg: msg}
}

// Get returns the entry for id, if outstanding.
func (s *Store) Get(id uint16) (*message.Outbound, bool) {
	e, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	return e.msg, true
}

// DiscardBody drops the stored publish body for id while keeping the id
// reserved, used when a QoS 2 PUBREC arrives and only PUBREL remains to be
// tracked (spec §4.5 PUBREC handling).
func (s *Store) DiscardBody(id uint16) bool {
	e, ok := s.entries[id]
	if !ok {
		return false
	}
	e.msg = nil
	return true
}

// Remove drops id from the window, freeing a slot (spec §4.5 PUBACK/PUBCOMP
// handling).
func (s *Store) Remove(id uint16) bool {
	if _, ok := s.entries[id]; !ok {
		return false
	}
	delete(s.entries, id)
	return true
}

// Enqueue appends a publish to the overflow queue — used when the router
// hands the session a delivery while the window is Full.
func (s *Store) Enqueue(msg *message.Outbound) {
	s.overflow = append(s.overflow, msg)
}

// PromoteNext pops the oldest overflowed publish so the session can assign
// it a packet id and Add it to the now-freed window slot. It returns false,
// leaving the queue untouched, while the window is still Full.
func (s *Store) PromoteNext() (*message.Outbound, bool) {
	if len(s.overflow) == 0 || s.Full() {
		return nil, false
	}
	msg := s.overflow[0]
	s.overflow = s.overflow[1:]
	return msg, true
}

// Due returns the packet ids whose last send is older than interval,
// relative to now — the set the resend tick must retransmit (spec §4.5
// step 3).
func (s *Store) Due(now time.Time, interval time.Duration) []uint16 {
	var ids []uint16
	for id, e := range s.entries {
		if e.msg != nil && now.Sub(e.lastSend) >= interval {
			ids = append(ids, id)
		}
	}
	return ids
}

// MarkResent updates id's last-send time and, if the body is still held,
// marks it as a duplicate retransmission.
func (s *Store) MarkResent(id uint16, now time.Time) {
	e, ok := s.entries[id]
	if !ok {
		return
	}
	e.lastSend = now
	if e.msg != nil {
		e.msg.MarkResend(now)
	}
}
