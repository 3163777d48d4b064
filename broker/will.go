package broker

import (
	"context"
	"time"

	"github.com/axmq/corebroker/hook"
	"github.com/axmq/corebroker/session"
	"github.com/axmq/corebroker/topic"
)

// willPublishCmd is the broker's own internal command, injected back onto
// its command channel once a scheduled will's delay has elapsed (spec §4.6
// "Will delivery").
type willPublishCmd struct {
	clientID string
	will     *session.Will
}

// scheduleWill sleeps for the will's delay interval on its own goroutine,
// then re-enters the broker's single-threaded command loop to publish it —
// cancelling any will already scheduled for the same client, since a
// takeover or second disconnect supersedes it (spec §4.6 "Will delivery").
func (b *Broker) scheduleWill(parent context.Context, clientID string, will *session.Will) {
	state := b.stateFor(clientID)
	if state != nil && state.cancelWill != nil {
		state.cancelWill()
	}

	ctx, cancel := context.WithCancel(parent)
	if state != nil {
		state.cancelWill = cancel
	}

	delay := time.Duration(will.DelayInterval) * time.Second
	go func() {
		if delay > 0 {
			timer := time.NewTimer(delay)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
				return
			}
		}
		select {
		case b.cmds <- willPublishCmd{clientID: clientID, will: will}:
		case <-ctx.Done():
		}
	}()
}

// publishWill forwards a scheduled will to the router exactly as a regular
// publish originating from its owning client-id (spec §4.6). A hook gets a
// chance to rewrite or veto the will first.
func (b *Broker) publishWill(c willPublishCmd) {
	will := c.will
	hookWill := &hook.WillMessage{Topic: will.Topic, Payload: will.Payload, QoS: will.QoS, Retain: will.Retain}
	if b.hooks != nil {
		hookWill = b.hooks.OnWill(&hook.Client{ID: c.clientID}, hookWill)
		if hookWill == nil {
			return
		}
	}

	b.router.Commands() <- topic.PublishCmd{
		FromClientID: c.clientID,
		Retain:       hookWill.Retain,
		QoS:          hookWill.QoS,
		Topic:        hookWill.Topic,
		Payload:      hookWill.Payload,
		Properties:   will.Properties,
	}

	if b.hooks != nil {
		b.hooks.OnWillSent(&hook.Client{ID: c.clientID}, hookWill)
	}
}
