package topic

import "strings"

// node is one level of the TopicTrie (spec §3 TopicTrie node / §4.2 C2).
// '+' and '#' each get their own child slot alongside literalChildren,
// mirroring how a concrete topic can only ever take one of the three paths
// at a given level. The trie is owned exclusively by the Router's task
// goroutine — spec §5's concurrency model dispenses with per-node locking.
type node struct {
	literalChildren map[string]*node
	singleWildcard  *node // '+'
	multiWildcard   *node // '#', always a leaf
	exactMatches    []*Entry
	sharedGroups    map[string]*sharedGroup
}

func newNode() *node {
	return &node{literalChildren: make(map[string]*node)}
}

func splitLevels(topic string) []string {
	return strings.Split(topic, "/")
}

// Trie is the subscription trie (C2): insert/remove/remove_client/find_matches
// exactly per spec §4.2.
type Trie struct {
	root *node
}

func NewTrie() *Trie {
	return &Trie{root: newNode()}
}

// Insert adds e at the node reached by walking filter's segments. The
// caller must have already validated filter (wire.ValidateTopicFilter), so
// '#' is guaranteed to be the last segment. Re-inserting an entry with the
// same (client_id, share_group) identity updates it in place rather than
// duplicating (spec §4.2 invariant).
func (t *Trie) Insert(filter string, e *Entry) {
	n := t.navigate(filter)
	if e.ShareGroup != "" {
		if n.sharedGroups == nil {
			n.sharedGroups = make(map[string]*sharedGroup)
		}
		g, ok := n.sharedGroups[e.ShareGroup]
		if !ok {
			g = newSharedGroup(e.ShareGroup)
			n.sharedGroups[e.ShareGroup] = g
		}
		g.add(e)
		return
	}
	n.exactMatches = upsert(n.exactMatches, e)
}

func (t *Trie) navigate(filter string) *node {
	n := t.root
	for _, level := range splitLevels(filter) {
		switch level {
		case "#":
			if n.multiWildcard == nil {
				n.multiWildcard = newNode()
			}
			n = n.multiWildcard
		case "+":
			if n.singleWildcard == nil {
				n.singleWildcard = newNode()
			}
			n = n.singleWildcard
		default:
			child, ok := n.literalChildren[level]
			if !ok {
				child = newNode()
				n.literalChildren[level] = child
			}
			n = child
		}
	}
	return n
}

func upsert(set []*Entry, e *Entry) []*Entry {
	cid, grp := e.Identity()
	for i, existing := range set {
		if ecid, egrp := existing.Identity(); ecid == cid && egrp == grp {
			set[i] = e
			return set
		}
	}
	return append(set, e)
}

// Remove drops the (client_id, share_group) entry subscribed under filter.
// Reports whether an entry was found and removed.
func (t *Trie) Remove(filter, clientID, shareGroup string) bool {
	return t.removeAt(t.root, splitLevels(filter), 0, clientID, shareGroup)
}

func (t *Trie) removeAt(n *node, levels []string, depth int, clientID, shareGroup string) bool {
	if depth == len(levels) {
		return n.removeIdentity(clientID, shareGroup)
	}

	level := levels[depth]
	switch level {
	case "#":
		if n.multiWildcard == nil {
			return false
		}
		found := t.removeAt(n.multiWildcard, levels, depth+1, clientID, shareGroup)
		if found && n.multiWildcard.empty() {
			n.multiWildcard = nil
		}
		return found
	case "+":
		if n.singleWildcard == nil {
			return false
		}
		found := t.removeAt(n.singleWildcard, levels, depth+1, clientID, shareGroup)
		if found && n.singleWildcard.empty() {
			n.singleWildcard = nil
		}
		return found
	default:
		child, ok := n.literalChildren[level]
		if !ok {
			return false
		}
		found := t.removeAt(child, levels, depth+1, clientID, shareGroup)
		if found && child.empty() {
			delete(n.literalChildren, level)
		}
		return found
	}
}

func (n *node) removeIdentity(clientID, shareGroup string) bool {
	if shareGroup != "" {
		g, ok := n.sharedGroups[shareGroup]
		if !ok {
			return false
		}
		removed := g.removeClient(clientID)
		if g.empty() {
			delete(n.sharedGroups, shareGroup)
		}
		return removed
	}
	return removeFrom(&n.exactMatches, clientID, "")
}

func removeFrom(set *[]*Entry, clientID, shareGroup string) bool {
	for i, e := range *set {
		if cid, grp := e.Identity(); cid == clientID && grp == shareGroup {
			*set = append((*set)[:i], (*set)[i+1:]...)
			return true
		}
	}
	return false
}

func (n *node) empty() bool {
	if len(n.exactMatches) != 0 {
		return false
	}
	if len(n.literalChildren) != 0 || n.singleWildcard != nil || n.multiWildcard != nil {
		return false
	}
	for _, g := range n.sharedGroups {
		if !g.empty() {
			return false
		}
	}
	return true
}

// RemoveClient sweeps the whole trie removing every entry belonging to
// clientID, regardless of filter (spec §4.2 remove_client, used on final
// session destruction).
func (t *Trie) RemoveClient(clientID string) {
	t.removeClientAt(t.root, clientID)
}

func (t *Trie) removeClientAt(n *node, clientID string) {
	n.exactMatches = filterOutClient(n.exactMatches, clientID)
	for name, g := range n.sharedGroups {
		g.removeClient(clientID)
		if g.empty() {
			delete(n.sharedGroups, name)
		}
	}
	for seg, child := range n.literalChildren {
		t.removeClientAt(child, clientID)
		if child.empty() {
			delete(n.literalChildren, seg)
		}
	}
	if n.singleWildcard != nil {
		t.removeClientAt(n.singleWildcard, clientID)
		if n.singleWildcard.empty() {
			n.singleWildcard = nil
		}
	}
	if n.multiWildcard != nil {
		t.removeClientAt(n.multiWildcard, clientID)
		if n.multiWildcard.empty() {
			n.multiWildcard = nil
		}
	}
}

func filterOutClient(set []*Entry, clientID string) []*Entry {
	out := set[:0]
	for _, e := range set {
		if e.ClientID != clientID {
			out = append(out, e)
		}
	}
	return out
}

// Match is one routing decision: deliver directly to Entry, or resolve
// Group to pick the next member of a shared subscription.
type Match struct {
	Entry *Entry
	Group *sharedGroup
}

// FindMatches walks topicName's segments collecting every Entry whose filter
// matches (spec §4.2 find_matches): at each node, '#' children match
// unconditionally; if segments remain, descend into the literal child and
// the '+' child; once segments are exhausted, collect this node's own
// matches. A topic whose first segment starts with '$' (e.g. $SYS/...) never
// matches a wildcard subscription, only an exact one, per MQTT convention.
func (t *Trie) FindMatches(topicName string) []Match {
	levels := splitLevels(topicName)
	wildcardsAllowed := len(levels) == 0 || !strings.HasPrefix(levels[0], "$")
	var out []Match
	t.matchAt(t.root, levels, 0, wildcardsAllowed, &out)
	return out
}

func (t *Trie) matchAt(n *node, levels []string, depth int, wildcardsAllowed bool, out *[]Match) {
	if wildcardsAllowed && n.multiWildcard != nil {
		collect(n.multiWildcard, out)
	}

	if depth == len(levels) {
		collect(n, out)
		return
	}

	level := levels[depth]
	if child, ok := n.literalChildren[level]; ok {
		t.matchAt(child, levels, depth+1, wildcardsAllowed, out)
	}
	if wildcardsAllowed && n.singleWildcard != nil {
		t.matchAt(n.singleWildcard, levels, depth+1, wildcardsAllowed, out)
	}
}

func collect(n *node, out *[]Match) {
	for _, e := range n.exactMatches {
		*out = append(*out, Match{Entry: e})
	}
	for _, g := range n.sharedGroups {
		*out = append(*out, Match{Group: g})
	}
}

// Count returns the total number of subscription entries in the trie.
func (t *Trie) Count() int {
	return t.countAt(t.root)
}

func (t *Trie) countAt(n *node) int {
	count := len(n.exactMatches)
	for _, g := range n.sharedGroups {
		count += len(g.members)
	}
	for _, child := range n.literalChildren {
		count += t.countAt(child)
	}
	if n.singleWildcard != nil {
		count += t.countAt(n.singleWildcard)
	}
	if n.multiWildcard != nil {
		count += t.countAt(n.multiWildcard)
	}
	return count
}
