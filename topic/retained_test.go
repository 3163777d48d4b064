package topic

import (
	"testing"
	"time"

	"github.com/axmq/corebroker/message"
	"github.com/axmq/corebroker/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetainedTrieInsertAndExactMatch(t *testing.T) {
	rt := NewRetainedTrie()
	rt.Insert("sensors/temp", &message.Retained{Topic: "sensors/temp", Payload: []byte("21.5"), QoS: wire.QoS1})

	matches := rt.FindMatchesForFilter("sensors/temp")
	require.Len(t, matches, 1)
	assert.Equal(t, []byte("21.5"), matches[0].Payload)
}

func TestRetainedTrieReplacesExisting(t *testing.T) {
	rt := NewRetainedTrie()
	rt.Insert("a/b", &message.Retained{Topic: "a/b", Payload: []byte("1")})
	rt.Insert("a/b", &message.Retained{Topic: "a/b", Payload: []byte("2")})

	matches := rt.FindMatchesForFilter("a/b")
	require.Len(t, matches, 1)
	assert.Equal(t, []byte("2"), matches[0].Payload)
}

func TestRetainedTrieRemoveOnEmptyPayload(t *testing.T) {
	rt := NewRetainedTrie()
	rt.Insert("a/b", &message.Retained{Topic: "a/b", Payload: []byte("1")})
	rt.Remove("a/b")
	assert.Empty(t, rt.FindMatchesForFilter("a/b"))
}

func TestRetainedTrieWildcardFilter(t *testing.T) {
	rt := NewRetainedTrie()
	rt.Insert("sensors/room1/temp", &message.Retained{Topic: "sensors/room1/temp", Payload: []byte("a")})
	rt.Insert("sensors/room2/temp", &message.Retained{Topic: "sensors/room2/temp", Payload: []byte("b")})
	rt.Insert("sensors/room1/humidity", &message.Retained{Topic: "sensors/room1/humidity", Payload: []byte("c")})

	plus := rt.FindMatchesForFilter("sensors/+/temp")
	assert.Len(t, plus, 2)

	hash := rt.FindMatchesForFilter("sensors/#")
	assert.Len(t, hash, 3)
}

func TestRetainedTriePurgeExpired(t *testing.T) {
	rt := NewRetainedTrie()
	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)

	rt.Insert("a/b", &message.Retained{Topic: "a/b", Payload: []byte("1"), ExpiryAt: &past})
	rt.Insert("a/c", &message.Retained{Topic: "a/c", Payload: []byte("2"), ExpiryAt: &future})

	purged := rt.PurgeExpired(time.Now())
	assert.Equal(t, 1, purged)
	assert.Empty(t, rt.FindMatchesForFilter("a/b"))
	assert.Len(t, rt.FindMatchesForFilter("a/c"), 1)
}

func TestRetainedTrieReInsertUpdatesExpiryIndex(t *testing.T) {
	rt := NewRetainedTrie()
	past := time.Now().Add(-time.Minute)
	rt.Insert("a/b", &message.Retained{Topic: "a/b", Payload: []byte("1"), ExpiryAt: &past})
	rt.Insert("a/b", &message.Retained{Topic: "a/b", Payload: []byte("2"), ExpiryAt: nil})

	purged := rt.PurgeExpired(time.Now())
	assert.Equal(t, 0, purged, "re-insert without expiry must drop the stale expiry-index entry")
	assert.Len(t, rt.FindMatchesForFilter("a/b"), 1)
}
