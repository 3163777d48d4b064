package topic

import (
	"sync/atomic"

	"github.com/axmq/corebroker/message"
)

// Entry is what the TopicTrie stores at a matching node: everything the
// router needs to deliver a publish to one subscription (spec §3
// SubscriberEntry). Identity for de-duplication is (ClientID, ShareGroup).
type Entry struct {
	ClientID       string
	ShareGroup     string // "" for a non-shared subscription
	TopicFilter    string
	QoS            byte
	NoLocal        bool
	Persist        bool
	SubscriptionID uint32
	HasSubID       bool
	Out            chan *message.Outbound
}

// Identity returns the (client_id, share_group) pair the trie deduplicates
// entries on.
func (e *Entry) Identity() (string, string) { return e.ClientID, e.ShareGroup }

// sharedGroup load-balances delivery across the members of one
// $share/<group>/... subscription with a per-group round-robin counter
// (spec §9 — fairness is scoped to the group, not global across groups).
type sharedGroup struct {
	name    string
	members []*Entry
	counter atomic.Uint64
}

func newSharedGroup(name string) *sharedGroup {
	return &sharedGroup{name: name}
}

func (g *sharedGroup) add(e *Entry) {
	for i, m := range g.members {
		if m.ClientID == e.ClientID {
			g.members[i] = e
			return
		}
	}
	g.members = append(g.members, e)
}

func (g *sharedGroup) remove(clientID string) bool {
	for i, m := range g.members {
		if m.ClientID == clientID {
			g.members = append(g.members[:i], g.members[i+1:]...)
			return true
		}
	}
	return false
}

func (g *sharedGroup) removeClient(clientID string) bool {
	return g.remove(clientID)
}

func (g *sharedGroup) next() (*Entry, bool) {
	if len(g.members) == 0 {
		return nil, false
	}
	idx := g.counter.Add(1) - 1
	return g.members[idx%uint64(len(g.members))], true
}

func (g *sharedGroup) empty() bool { return len(g.members) == 0 }
