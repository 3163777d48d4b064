package topic

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/axmq/corebroker/hook"
	"github.com/axmq/corebroker/message"
	"github.com/axmq/corebroker/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	stored []*message.Outbound
}

func (f *fakeStore) StoreMsg(clientID string, msg *message.Outbound) {
	f.stored = append(f.stored, msg)
}

func startRouter(t *testing.T, store OfflineStore) (*Router, func()) {
	t.Helper()
	r := NewRouter(store)
	ctx, cancel := context.WithCancel(context.Background())
	go r.Run(ctx)
	return r, cancel
}

func subscribe(t *testing.T, r *Router, clientID, filter string, qos byte, bufSize int) chan *message.Outbound {
	t.Helper()
	out := make(chan *message.Outbound, bufSize)
	done := make(chan error, 1)
	r.Commands() <- SubscribeCmd{ClientID: clientID, Filter: filter, QoS: qos, Out: out, Done: done}
	require.NoError(t, <-done)
	return out
}

func TestRouterPublishDeliversToMatchingSubscriber(t *testing.T) {
	r, cancel := startRouter(t, nil)
	defer cancel()

	out := subscribe(t, r, "c1", "sensors/+", 2, 4)

	r.Commands() <- PublishCmd{Topic: "sensors/temp", Payload: []byte("21"), QoS: wire.QoS1}

	select {
	case msg := <-out:
		assert.Equal(t, "sensors/temp", msg.Topic)
		assert.Equal(t, wire.QoS1, msg.QoS)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestRouterPublishAppliesQoSDowngrade(t *testing.T) {
	r, cancel := startRouter(t, nil)
	defer cancel()

	out := subscribe(t, r, "c1", "a/b", 0, 4)
	r.Commands() <- PublishCmd{Topic: "a/b", Payload: []byte("x"), QoS: wire.QoS2}

	msg := <-out
	assert.Equal(t, wire.QoS0, msg.QoS)
}

func TestRouterNoLocalFiltersPublisher(t *testing.T) {
	r, cancel := startRouter(t, nil)
	defer cancel()

	out := make(chan *message.Outbound, 4)
	done := make(chan error, 1)
	r.Commands() <- SubscribeCmd{ClientID: "c1", Filter: "a/b", NoLocal: true, Out: out, Done: done}
	require.NoError(t, <-done)

	r.Commands() <- PublishCmd{FromClientID: "c1", Topic: "a/b", Payload: []byte("x")}

	select {
	case <-out:
		t.Fatal("no_local subscriber should not receive its own publish")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRouterRetainedReplayOnSubscribe(t *testing.T) {
	r, cancel := startRouter(t, nil)
	defer cancel()

	r.Commands() <- PublishCmd{Topic: "status/online", Payload: []byte("1"), Retain: true, QoS: wire.QoS1}
	time.Sleep(20 * time.Millisecond)

	out := subscribe(t, r, "late-joiner", "status/+", 1, 4)

	select {
	case msg := <-out:
		assert.Equal(t, "status/online", msg.Topic)
		assert.True(t, msg.Retain)
	case <-time.After(time.Second):
		t.Fatal("expected retained replay on subscribe")
	}
}

func TestRouterEmptyPayloadRetainRemoves(t *testing.T) {
	r, cancel := startRouter(t, nil)
	defer cancel()

	r.Commands() <- PublishCmd{Topic: "status/online", Payload: []byte("1"), Retain: true}
	time.Sleep(20 * time.Millisecond)
	r.Commands() <- PublishCmd{Topic: "status/online", Payload: nil, Retain: true}
	time.Sleep(20 * time.Millisecond)

	out := subscribe(t, r, "late-joiner", "status/online", 0, 4)
	select {
	case <-out:
		t.Fatal("retained message should have been removed by the empty-payload publish")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRouterSharedSubscriptionRoundRobin(t *testing.T) {
	r, cancel := startRouter(t, nil)
	defer cancel()

	out1 := make(chan *message.Outbound, 4)
	out2 := make(chan *message.Outbound, 4)
	done := make(chan error, 1)
	r.Commands() <- SubscribeCmd{ClientID: "w1", ShareGroup: "workers", Filter: "jobs", Out: out1, Done: done}
	require.NoError(t, <-done)
	r.Commands() <- SubscribeCmd{ClientID: "w2", ShareGroup: "workers", Filter: "jobs", Out: out2, Done: done}
	require.NoError(t, <-done)

	for i := 0; i < 4; i++ {
		r.Commands() <- PublishCmd{Topic: "jobs", Payload: []byte("job")}
	}
	time.Sleep(50 * time.Millisecond)

	assert.Len(t, out1, 2)
	assert.Len(t, out2, 2)
}

func TestRouterUnsubscribeStopsDelivery(t *testing.T) {
	r, cancel := startRouter(t, nil)
	defer cancel()

	out := subscribe(t, r, "c1", "a/b", 0, 4)

	unsubDone := make(chan bool, 1)
	r.Commands() <- UnsubscribeCmd{ClientID: "c1", Filter: "a/b", Done: unsubDone}
	assert.True(t, <-unsubDone)

	r.Commands() <- PublishCmd{Topic: "a/b", Payload: []byte("x")}
	select {
	case <-out:
		t.Fatal("unsubscribed client should not receive publishes")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRouterRemoveClientSweepsAllSubscriptions(t *testing.T) {
	r, cancel := startRouter(t, nil)
	defer cancel()

	subscribe(t, r, "c1", "a/b", 0, 4)
	subscribe(t, r, "c1", "c/d", 0, 4)

	removeDone := make(chan struct{})
	r.Commands() <- RemoveClientCmd{ClientID: "c1", Done: removeDone}
	<-removeDone

	unsubDone := make(chan bool, 1)
	r.Commands() <- UnsubscribeCmd{ClientID: "c1", Filter: "a/b", Done: unsubDone}
	assert.False(t, <-unsubDone)
}

func TestRouterFullChannelPersistsToOfflineStore(t *testing.T) {
	store := &fakeStore{}
	r, cancel := startRouter(t, store)
	defer cancel()

	out := make(chan *message.Outbound, 1)
	done := make(chan error, 1)
	r.Commands() <- SubscribeCmd{ClientID: "c1", Filter: "a/b", Persist: true, Out: out, Done: done}
	require.NoError(t, <-done)
	out <- &message.Outbound{Topic: "filler"} // fill the buffer so the next publish can't enqueue
	expiry := time.Now().Add(time.Hour)
	r.Commands() <- PublishCmd{Topic: "a/b", Payload: []byte("x"), ExpiryAt: &expiry}
	time.Sleep(50 * time.Millisecond)

	require.Len(t, store.stored, 1)
	assert.Equal(t, "a/b", store.stored[0].Topic)
}

type vetoPublishHook struct{ *hook.Base }

func (h *vetoPublishHook) Provides(event hook.Event) bool { return event == hook.OnPublish }
func (h *vetoPublishHook) OnPublish(client *hook.Client, packet *hook.PublishPacket) error {
	return errors.New("publish vetoed")
}

func TestRouterHookOnPublishVetoSuppressesDelivery(t *testing.T) {
	hooks := hook.NewManager()
	require.NoError(t, hooks.Add(&vetoPublishHook{Base: hook.NewHookBase("veto")}))

	r := NewRouter(nil)
	r.SetHooks(hooks)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	out := subscribe(t, r, "c1", "a/b", 0, 4)
	r.Commands() <- PublishCmd{Topic: "a/b", Payload: []byte("x")}

	select {
	case msg := <-out:
		t.Fatalf("expected no delivery after veto, got %#v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

type droppedRecordingHook struct {
	*hook.Base
	dropped chan hook.DropReason
}

func (h *droppedRecordingHook) Provides(event hook.Event) bool { return event == hook.OnPublishDropped }
func (h *droppedRecordingHook) OnPublishDropped(client *hook.Client, packet *hook.PublishPacket, reason hook.DropReason) {
	h.dropped <- reason
}

func TestRouterHookOnPublishDroppedFiresWhenQueueFullAndNotPersisted(t *testing.T) {
	hooks := hook.NewManager()
	recorder := &droppedRecordingHook{Base: hook.NewHookBase("recorder"), dropped: make(chan hook.DropReason, 1)}
	require.NoError(t, hooks.Add(recorder))

	r := NewRouter(nil)
	r.SetHooks(hooks)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	out := subscribe(t, r, "c1", "a/b", 0, 1)
	out <- &message.Outbound{Topic: "filler"}
	r.Commands() <- PublishCmd{Topic: "a/b", Payload: []byte("x")}

	select {
	case reason := <-recorder.dropped:
		assert.Equal(t, hook.DropReasonQueueFull, reason)
	case <-time.After(time.Second):
		t.Fatal("expected OnPublishDropped to fire")
	}
}
