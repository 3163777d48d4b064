package qos

// Allocator hands out packet identifiers 1..65535 in monotonically
// increasing order, wrapping past 65535 back to 1 and always skipping 0
// (spec §4.5 outbound-delivery step 2, §9 "strictly increasing with wrap").
// It is owned by a single session task, so it carries no locking.
type Allocator struct {
	next uint16
}

// NewAllocator returns an Allocator starting at packet id 1.
func NewAllocator() *Allocator {
	return &Allocator{next: 1}
}

// Next returns the next candidate id, advancing and wrapping past 0. The
// caller is responsible for re-requesting when the id collides with one
// still outstanding in the inflight window (checked via Store.Get).
func (a *Allocator) Next() uint16 {
	id := a.next
	a.next++
	if a.next == 0 {
		a.next = 1
	}
	return id
}
