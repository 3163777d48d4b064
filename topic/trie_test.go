package topic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entriesOf(matches []Match) []*Entry {
	var out []*Entry
	for _, m := range matches {
		if m.Entry != nil {
			out = append(out, m.Entry)
		}
	}
	return out
}

func TestTrieInsertExactMatch(t *testing.T) {
	tr := NewTrie()
	e := &Entry{ClientID: "c1", TopicFilter: "sensors/temp"}
	tr.Insert("sensors/temp", e)

	matches := entriesOf(tr.FindMatches("sensors/temp"))
	require.Len(t, matches, 1)
	assert.Equal(t, "c1", matches[0].ClientID)

	assert.Empty(t, tr.FindMatches("sensors/humidity"))
}

func TestTrieSingleLevelWildcard(t *testing.T) {
	tr := NewTrie()
	tr.Insert("sensors/+/temp", &Entry{ClientID: "c1"})

	assert.Len(t, tr.FindMatches("sensors/room1/temp"), 1)
	assert.Empty(t, tr.FindMatches("sensors/room1/room2/temp"))
}

func TestTrieMultiLevelWildcard(t *testing.T) {
	tr := NewTrie()
	tr.Insert("sensors/#", &Entry{ClientID: "c1"})

	assert.Len(t, tr.FindMatches("sensors/temp"), 1)
	assert.Len(t, tr.FindMatches("sensors/room1/temp"), 1)
	assert.Len(t, tr.FindMatches("sensors"), 1, "'#' also matches its immediate parent level per MQTT semantics")
}

func TestTrieReSubscribeUpdatesIdentityInPlace(t *testing.T) {
	tr := NewTrie()
	tr.Insert("a/b", &Entry{ClientID: "c1", QoS: 0})
	tr.Insert("a/b", &Entry{ClientID: "c1", QoS: 2})

	matches := entriesOf(tr.FindMatches("a/b"))
	require.Len(t, matches, 1)
	assert.Equal(t, byte(2), matches[0].QoS)
}

func TestTrieRemove(t *testing.T) {
	tr := NewTrie()
	tr.Insert("a/b", &Entry{ClientID: "c1"})
	assert.True(t, tr.Remove("a/b", "c1", ""))
	assert.False(t, tr.Remove("a/b", "c1", ""))
	assert.Empty(t, tr.FindMatches("a/b"))
}

func TestTrieRemoveClient(t *testing.T) {
	tr := NewTrie()
	tr.Insert("a/b", &Entry{ClientID: "c1"})
	tr.Insert("a/c", &Entry{ClientID: "c1"})
	tr.Insert("a/c", &Entry{ClientID: "c2"})

	tr.RemoveClient("c1")

	assert.Empty(t, tr.FindMatches("a/b"))
	matches := entriesOf(tr.FindMatches("a/c"))
	require.Len(t, matches, 1)
	assert.Equal(t, "c2", matches[0].ClientID)
}

func TestTrieSharedSubscriptionRoundRobinPerGroup(t *testing.T) {
	tr := NewTrie()
	tr.Insert("work/queue", &Entry{ClientID: "w1", ShareGroup: "workers"})
	tr.Insert("work/queue", &Entry{ClientID: "w2", ShareGroup: "workers"})

	seen := map[string]int{}
	for i := 0; i < 4; i++ {
		matches := tr.FindMatches("work/queue")
		require.Len(t, matches, 1)
		require.NotNil(t, matches[0].Group)
		entry, ok := matches[0].Group.next()
		require.True(t, ok)
		seen[entry.ClientID]++
	}
	assert.Equal(t, 2, seen["w1"])
	assert.Equal(t, 2, seen["w2"])
}

func TestTrieDollarTopicsExcludedFromWildcards(t *testing.T) {
	tr := NewTrie()
	tr.Insert("#", &Entry{ClientID: "c1"})
	tr.Insert("$SYS/broker/uptime", &Entry{ClientID: "c2"})

	matches := entriesOf(tr.FindMatches("$SYS/broker/uptime"))
	require.Len(t, matches, 1)
	assert.Equal(t, "c2", matches[0].ClientID)
}

func TestTrieCount(t *testing.T) {
	tr := NewTrie()
	tr.Insert("a/b", &Entry{ClientID: "c1"})
	tr.Insert("a/c", &Entry{ClientID: "c1", ShareGroup: "g"})
	assert.Equal(t, 2, tr.Count())
}
