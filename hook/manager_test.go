package hook

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHook struct {
	*Base
	id       string
	events   []Event
	rejectID string
}

func newRecordingHook(id string, events ...Event) *recordingHook {
	return &recordingHook{Base: NewHookBase(id), id: id, events: events}
}

func (h *recordingHook) Provides(event Event) bool {
	for _, e := range h.events {
		if e == event {
			return true
		}
	}
	return false
}

func (h *recordingHook) OnConnectAuthenticate(client *Client, packet *ConnectPacket) bool {
	return client.ID != h.rejectID
}

func TestManagerAddRejectsDuplicateAndEmptyID(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Add(newRecordingHook("a")))
	assert.ErrorIs(t, m.Add(newRecordingHook("a")), ErrHookAlreadyExists)
	assert.ErrorIs(t, m.Add(newRecordingHook("")), ErrEmptyHookID)
	assert.ErrorIs(t, m.Add(nil), ErrEmptyHookID)
}

func TestManagerRemoveReindexes(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Add(newRecordingHook("a")))
	require.NoError(t, m.Add(newRecordingHook("b")))
	require.NoError(t, m.Add(newRecordingHook("c")))

	require.NoError(t, m.Remove("a"))
	assert.Equal(t, 2, m.Count())

	hb, ok := m.Get("b")
	require.True(t, ok)
	assert.Equal(t, "b", hb.ID())

	assert.ErrorIs(t, m.Remove("a"), ErrHookNotFound)
}

func TestManagerClearStopsHooks(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Add(newRecordingHook("a")))
	m.Clear()
	assert.Equal(t, 0, m.Count())
	_, ok := m.Get("a")
	assert.False(t, ok)
}

func TestManagerOnConnectAuthenticateShortCircuitsOnFirstRejection(t *testing.T) {
	m := NewManager()
	h1 := newRecordingHook("auth1", OnConnectAuthenticate)
	h1.rejectID = "bad-client"
	h2 := newRecordingHook("auth2", OnConnectAuthenticate)
	require.NoError(t, m.Add(h1))
	require.NoError(t, m.Add(h2))

	assert.False(t, m.OnConnectAuthenticate(&Client{ID: "bad-client"}, &ConnectPacket{}))
	assert.True(t, m.OnConnectAuthenticate(&Client{ID: "good-client"}, &ConnectPacket{}))
}

type erroringPublishHook struct {
	*Base
	err error
}

func (h *erroringPublishHook) Provides(event Event) bool { return event == OnPublish }
func (h *erroringPublishHook) OnPublish(client *Client, packet *PublishPacket) error {
	return h.err
}

func TestManagerOnPublishPropagatesFirstError(t *testing.T) {
	m := NewManager()
	wantErr := errors.New("denied")
	require.NoError(t, m.Add(&erroringPublishHook{Base: NewHookBase("deny"), err: wantErr}))

	err := m.OnPublish(&Client{ID: "c1"}, &PublishPacket{Topic: "a/b"})
	assert.ErrorIs(t, err, wantErr)
}

func TestManagerOnWillChainsRewrites(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Add(&willRewriteHook{Base: NewHookBase("w1"), topic: "rewritten/1"}))
	require.NoError(t, m.Add(&willRewriteHook{Base: NewHookBase("w2"), topic: "rewritten/2"}))

	out := m.OnWill(&Client{ID: "c1"}, &WillMessage{Topic: "original"})
	assert.Equal(t, "rewritten/2", out.Topic)
}

type willRewriteHook struct {
	*Base
	topic string
}

func (h *willRewriteHook) Provides(event Event) bool { return event == OnWill }
func (h *willRewriteHook) OnWill(client *Client, will *WillMessage) *WillMessage {
	return &WillMessage{Topic: h.topic, Payload: will.Payload, QoS: will.QoS}
}

func TestManagerSkipsHooksThatDontProvideEvent(t *testing.T) {
	m := NewManager()
	h := newRecordingHook("noop")
	require.NoError(t, m.Add(h))

	assert.True(t, m.OnConnectAuthenticate(&Client{ID: "x"}, &ConnectPacket{}))
	m.OnClientExpired("x")
	m.OnRetainedExpired("a/b")
}
