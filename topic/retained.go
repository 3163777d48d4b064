package topic

import (
	"sort"
	"time"

	"github.com/axmq/corebroker/message"
)

// retainedNode is a RetainedTrie node (spec §3): literal children only —
// retained messages always have a concrete topic, never a filter.
type retainedNode struct {
	children map[string]*retainedNode
	msg      *message.Retained
}

func newRetainedNode() *retainedNode {
	return &retainedNode{children: make(map[string]*retainedNode)}
}

// expiryKey is one entry of RetainedTrie's sibling expiry-ordered index
// (spec §3), enabling PurgeExpired to find due entries without a full walk.
type expiryKey struct {
	at    time.Time
	topic string
}

// RetainedTrie stores the single most recent retained message per topic,
// plus a trie-shaped index supporting wildcard replay on subscribe (C3,
// spec §4.3).
type RetainedTrie struct {
	root       *retainedNode
	expiryIdx  []expiryKey
}

func NewRetainedTrie() *RetainedTrie {
	return &RetainedTrie{root: newRetainedNode()}
}

// Insert replaces the retained message at topic, walking literal segments
// only, and updates the expiry side-index.
func (r *RetainedTrie) Insert(topic string, msg *message.Retained) {
	n := r.root
	for _, seg := range splitLevels(topic) {
		child, ok := n.children[seg]
		if !ok {
			child = newRetainedNode()
			n.children[seg] = child
		}
		n = child
	}
	if n.msg != nil {
		r.dropExpiryEntry(topic)
	}
	n.msg = msg
	if msg.ExpiryAt != nil {
		r.insertExpiryEntry(topic, *msg.ExpiryAt)
	}
}

// Remove deletes the retained message at topic (and prunes now-empty nodes
// and the expiry index entry). Used both for explicit removal (PUBLISH
// retain=true, empty payload) and by PurgeExpired.
func (r *RetainedTrie) Remove(topic string) {
	levels := splitLevels(topic)
	r.removeAt(r.root, levels, 0)
	r.dropExpiryEntry(topic)
}

func (r *RetainedTrie) removeAt(n *retainedNode, levels []string, depth int) bool {
	if depth == len(levels) {
		n.msg = nil
		return len(n.children) == 0
	}
	child, ok := n.children[levels[depth]]
	if !ok {
		return false
	}
	if r.removeAt(child, levels, depth+1) {
		delete(n.children, levels[depth])
	}
	return n.msg == nil && len(n.children) == 0
}

// FindMatchesForFilter returns every retained message whose topic matches
// filter, per spec §4.3: '+' descends into every literal child at that
// level, '#' collects the entire subtree, literal segments descend exactly.
func (r *RetainedTrie) FindMatchesForFilter(filter string) []*message.Retained {
	var out []*message.Retained
	r.matchAt(r.root, splitLevels(filter), 0, &out)
	return out
}

func (r *RetainedTrie) matchAt(n *retainedNode, levels []string, depth int, out *[]*message.Retained) {
	if depth == len(levels) {
		if n.msg != nil {
			*out = append(*out, n.msg)
		}
		return
	}

	level := levels[depth]
	switch level {
	case "#":
		r.collectSubtree(n, out)
	case "+":
		for _, child := range n.children {
			r.matchAt(child, levels, depth+1, out)
		}
	default:
		if child, ok := n.children[level]; ok {
			r.matchAt(child, levels, depth+1, out)
		}
	}
}

func (r *RetainedTrie) collectSubtree(n *retainedNode, out *[]*message.Retained) {
	if n.msg != nil {
		*out = append(*out, n.msg)
	}
	for _, child := range n.children {
		r.collectSubtree(child, out)
	}
}

func (r *RetainedTrie) insertExpiryEntry(topic string, at time.Time) {
	idx := sort.Search(len(r.expiryIdx), func(i int) bool { return !r.expiryIdx[i].at.Before(at) })
	r.expiryIdx = append(r.expiryIdx, expiryKey{})
	copy(r.expiryIdx[idx+1:], r.expiryIdx[idx:])
	r.expiryIdx[idx] = expiryKey{at: at, topic: topic}
}

func (r *RetainedTrie) dropExpiryEntry(topic string) {
	for i, k := range r.expiryIdx {
		if k.topic == topic {
			r.expiryIdx = append(r.expiryIdx[:i], r.expiryIdx[i+1:]...)
			return
		}
	}
}

// PurgeExpired pops every expiry-index entry whose expiry_at <= now and
// removes the corresponding retained message, returning how many were
// purged (spec §4.3, §4.4 PurgeExpiry).
func (r *RetainedTrie) PurgeExpired(now time.Time) int {
	n := 0
	for len(r.expiryIdx) > 0 && !r.expiryIdx[0].at.After(now) {
		topic := r.expiryIdx[0].topic
		r.expiryIdx = r.expiryIdx[1:]
		r.Remove(topic)
		n++
	}
	return n
}
