// Package broker implements the session registry (spec §4.6, C6): the
// single-task command handler that owns persistent_sessions, clean_sessions,
// and the offline queued-message backlog, reconciling CONNECT/SUBSCRIBE/
// UNSUBSCRIBE/disconnect traffic from every live session.
package broker

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/axmq/corebroker/hook"
	"github.com/axmq/corebroker/message"
	"github.com/axmq/corebroker/pkg/logger"
	"github.com/axmq/corebroker/session"
	"github.com/axmq/corebroker/store"
	"github.com/axmq/corebroker/topic"
	"github.com/axmq/corebroker/wire"
)

// RouterPort is the command channel the broker forwards Subscribe,
// Unsubscribe, RemoveClient, will-publish, and PurgeExpiry commands to.
// topic.Router is the concrete implementation.
type RouterPort interface {
	Commands() chan<- any
}

// Broker is the session registry: a single-task command handler over
// {Connect, Subscribe, Unsubscribe, Disconnected, WillPublish, StoreMsg},
// holding two maps that partition every known client-id by whether its
// granted session-expiry is zero (spec §4.6). Only this goroutine ever
// touches the maps, so they carry no locking.
type Broker struct {
	cfg    Config
	router RouterPort

	persistentSessions map[string]*clientState
	cleanSessions      map[string]*clientState

	backlog *store.Backlog
	hooks   *hook.Manager
	log     *logger.SlogLogger

	cmds chan any
}

// NewBroker builds a Broker. backlog may be nil if offline queueing is not
// wired, in which case StoreMsg silently drops undeliverable messages for
// persistent sessions. hooks may be nil, in which case no hook callbacks
// fire.
func NewBroker(cfg Config, router RouterPort, backlog *store.Backlog, hooks *hook.Manager) *Broker {
	return &Broker{
		cfg:                cfg,
		router:             router,
		persistentSessions: make(map[string]*clientState),
		cleanSessions:      make(map[string]*clientState),
		backlog:            backlog,
		hooks:              hooks,
		log:                logger.NewSlogLogger(slog.LevelInfo, io.Discard),
		cmds:               make(chan any, 1024),
	}
}

// SetLogger attaches a logger for connect/disconnect/eviction lifecycle
// events. Safe to skip; NewBroker defaults to a discarding logger.
func (b *Broker) SetLogger(l *logger.SlogLogger) { b.log = l }

// Commands returns the channel sessions send ConnectCmd/SubscribeCmd/
// UnsubscribeCmd/DisconnectedCmd on — the Broker satisfies session.BrokerPort.
func (b *Broker) Commands() chan<- any { return b.cmds }

// StoreMsg implements topic.OfflineStore. The router calls this
// synchronously from its own command loop when a subscriber's outbound
// channel is full, so it must never block — it hands off onto the broker's
// own (buffered) command channel instead of touching broker state directly.
func (b *Broker) StoreMsg(clientID string, msg *message.Outbound) {
	select {
	case b.cmds <- storeMsgCmd{clientID: clientID, msg: msg}:
	default:
	}
}

type storeMsgCmd struct {
	clientID string
	msg      *message.Outbound
}

// Run processes commands and the periodic sweeper until ctx is cancelled.
func (b *Broker) Run(ctx context.Context) {
	sweep := time.NewTicker(b.cfg.SweepInterval)
	defer sweep.Stop()

	b.log.Info("broker started")
	defer b.log.Info("broker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-b.cmds:
			b.handleRecovering(ctx, cmd)
		case <-sweep.C:
			b.sweep(ctx)
		}
	}
}

// handleRecovering runs handle with a panic guard so one malformed command
// can't take the broker's single goroutine down with it; a recovered panic
// is reported through the hook manager's OnPanic, if one is attached.
func (b *Broker) handleRecovering(ctx context.Context, cmd any) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("recovered panic handling command", "panic", r)
			if b.hooks != nil {
				b.hooks.OnPanic("broker", "", r)
			}
		}
	}()
	b.handle(ctx, cmd)
}

func (b *Broker) handle(ctx context.Context, cmd any) {
	switch c := cmd.(type) {
	case session.ConnectCmd:
		b.handleConnect(ctx, c)
	case session.SubscribeCmd:
		b.handleSubscribe(c)
	case session.UnsubscribeCmd:
		b.handleUnsubscribe(c)
	case session.DisconnectedCmd:
		b.handleDisconnected(ctx, c)
	case storeMsgCmd:
		b.handleStoreMsg(c)
	case willPublishCmd:
		b.publishWill(c)
	}
}

func (b *Broker) stateFor(clientID string) *clientState {
	if s, ok := b.persistentSessions[clientID]; ok {
		return s
	}
	if s, ok := b.cleanSessions[clientID]; ok {
		return s
	}
	return nil
}

// handleConnect implements spec §4.6 "Connect handling" steps 1-6.
func (b *Broker) handleConnect(ctx context.Context, c session.ConnectCmd) {
	clientID := c.ClientID
	prior := b.stateFor(clientID)
	sessionPresent := false

	if prior != nil {
		if prior.cancelWill != nil {
			prior.cancelWill()
		}
		if prior.connected {
			if prior.cmds != nil {
				select {
				case prior.cmds <- session.DisconnectCmd{ReasonCode: wire.RCSessionTakenOver}:
				default:
				}
			}
			if prior.will != nil {
				b.scheduleWill(ctx, clientID, prior.will)
			}
			b.router.Commands() <- topic.RemoveClientCmd{ClientID: clientID}
		}

		if c.CleanStart {
			delete(b.persistentSessions, clientID)
			delete(b.cleanSessions, clientID)
			if b.backlog != nil {
				_ = b.backlog.Discard(ctx, clientID)
			}
			prior = nil
		} else {
			sessionPresent = true
		}
	}

	expiry := c.ExpiryInterval
	if expiry > b.cfg.MaxSessionExpiry {
		expiry = b.cfg.MaxSessionExpiry
	}

	state := &clientState{
		clientID:        clientID,
		connected:       true,
		out:             c.Out,
		cmds:            c.Cmds,
		protocolVersion: c.ProtocolVersion,
		expiryInterval:  expiry,
		will:            c.Will,
	}
	if prior != nil {
		state.subscriptions = prior.subscriptions
	}

	assignedID := ""
	if c.AssignClientID {
		assignedID = clientID
	}

	grantedReceiveMax := c.ReceiveMaximum
	if b.cfg.MaxReceiveQueue > 0 && grantedReceiveMax > b.cfg.MaxReceiveQueue {
		grantedReceiveMax = b.cfg.MaxReceiveQueue
	}

	c.ReplyTo <- session.ConnectReply{
		Accepted:             true,
		ReasonCode:           wire.RCSuccess,
		SessionPresent:       sessionPresent,
		AssignedClientID:     assignedID,
		GrantedExpiry:        expiry,
		GrantedKeepAlive:     c.KeepAlive,
		GrantedReceiveMax:    grantedReceiveMax,
		GrantedMaxPacketSize: b.cfg.MaxPacketSize,
	}
	b.log.Info("client connected", "client_id", assignedID, "session_present", sessionPresent, "clean_start", c.CleanStart)

	if b.hooks != nil {
		_ = b.hooks.OnConnect(&hook.Client{ID: clientID, ProtocolVersion: c.ProtocolVersion}, &hook.ConnectPacket{
			ClientID: clientID, CleanStart: c.CleanStart, KeepAlive: c.KeepAlive,
		})
	}

	for _, sub := range state.subscriptions {
		done := make(chan error, 1)
		b.router.Commands() <- topic.SubscribeCmd{
			ClientID:       clientID,
			ShareGroup:     sub.ShareGroup,
			Filter:         sub.Filter,
			QoS:            sub.QoS,
			NoLocal:        sub.NoLocal,
			Persist:        expiry > 0,
			SubscriptionID: sub.SubscriptionID,
			HasSubID:       sub.HasSubID,
			Out:            c.Out,
			Done:           done,
		}
		<-done
	}

	if b.backlog != nil {
		queued, err := b.backlog.Drain(ctx, clientID)
		if err == nil {
			for _, m := range queued {
				c.Out <- m
			}
		}
	}

	if expiry > 0 {
		delete(b.cleanSessions, clientID)
		b.persistentSessions[clientID] = state
	} else {
		delete(b.persistentSessions, clientID)
		b.cleanSessions[clientID] = state
	}
}

// handleSubscribe validates and forwards each filter in turn (spec §4.6
// "Subscribe / Unsubscribe").
func (b *Broker) handleSubscribe(c session.SubscribeCmd) {
	state := b.stateFor(c.ClientID)
	codes := make([]wire.ReturnCode, len(c.Filters))

	for i, f := range c.Filters {
		if err := validateFilter(f.Filter, b.cfg.MaxTopicLength); err != nil {
			codes[i] = wire.RCTopicFilterInvalid
			continue
		}

		if b.hooks != nil && !b.hooks.OnACLCheck(&hook.Client{ID: c.ClientID}, f.Filter, hook.AccessRead) {
			codes[i] = wire.RCNotAuthorized
			continue
		}

		done := make(chan error, 1)
		b.router.Commands() <- topic.SubscribeCmd{
			ClientID:       c.ClientID,
			ShareGroup:     f.ShareGroup,
			Filter:         f.Filter,
			QoS:            f.QoS,
			NoLocal:        f.NoLocal,
			Persist:        state != nil && state.expiryInterval > 0,
			SubscriptionID: f.SubscriptionID,
			HasSubID:       f.HasSubID,
			Out:            c.Out,
			Done:           done,
		}
		if err := <-done; err != nil {
			codes[i] = wire.RCTopicFilterInvalid
			continue
		}

		if state != nil {
			state.subscriptions = upsertSubscription(state.subscriptions, f)
		}
		codes[i] = grantedCode(f.QoS)
	}

	c.ReplyTo <- session.SubscribeReply{ReasonCodes: codes}
}

func (b *Broker) handleUnsubscribe(c session.UnsubscribeCmd) {
	state := b.stateFor(c.ClientID)
	codes := make([]wire.ReturnCode, len(c.Filters))

	for i, filter := range c.Filters {
		shareGroup, plain, err := wire.SplitShared(filter)
		if err != nil {
			codes[i] = wire.RCTopicFilterInvalid
			continue
		}

		done := make(chan bool, 1)
		b.router.Commands() <- topic.UnsubscribeCmd{ClientID: c.ClientID, ShareGroup: shareGroup, Filter: plain, Done: done}
		if <-done {
			codes[i] = wire.RCSuccess
			if state != nil {
				state.subscriptions = removeSubscription(state.subscriptions, plain, shareGroup)
			}
		} else {
			codes[i] = wire.RCNoSubscriptionExisted
		}
	}

	c.ReplyTo <- session.UnsubscribeReply{ReasonCodes: codes}
}

// handleDisconnected implements spec §4.6 "Disconnected(client-id, code)".
func (b *Broker) handleDisconnected(ctx context.Context, c session.DisconnectedCmd) {
	b.log.Info("client disconnected", "client_id", c.ClientID, "reason_code", c.Code)
	if b.hooks != nil {
		b.hooks.OnDisconnect(&hook.Client{ID: c.ClientID}, nil, c.Code != wire.RCSuccess)
	}

	if _, ok := b.cleanSessions[c.ClientID]; ok {
		delete(b.cleanSessions, c.ClientID)
		b.router.Commands() <- topic.RemoveClientCmd{ClientID: c.ClientID}
		if c.Will != nil && c.Code != wire.RCSuccess {
			b.scheduleWill(ctx, c.ClientID, c.Will)
		}
		return
	}

	if state, ok := b.persistentSessions[c.ClientID]; ok {
		state.connected = false
		state.disconnectedAt = time.Now()
		if c.Will != nil && c.Code != wire.RCSuccess {
			b.scheduleWill(ctx, c.ClientID, c.Will)
		}
	}
}

// handleStoreMsg implements spec §4.6 "StoreMsg(client-id, msg)".
func (b *Broker) handleStoreMsg(c storeMsgCmd) {
	if state := b.stateFor(c.clientID); state != nil && state.connected {
		select {
		case state.out <- c.msg:
		default:
		}
		return
	}

	if _, ok := b.persistentSessions[c.clientID]; ok && b.backlog != nil {
		_ = b.backlog.Append(context.Background(), c.clientID, c.msg)
	}
}

// sweep implements spec §4.6 "Periodic sweeper (every 60 seconds)".
func (b *Broker) sweep(ctx context.Context) {
	now := time.Now()
	for clientID, state := range b.persistentSessions {
		if state.connected || state.expiryInterval == 0xFFFFFFFF {
			continue
		}
		if now.Sub(state.disconnectedAt) >= time.Duration(state.expiryInterval)*time.Second {
			delete(b.persistentSessions, clientID)
			b.router.Commands() <- topic.RemoveClientCmd{ClientID: clientID}
			if b.backlog != nil {
				_ = b.backlog.Discard(ctx, clientID)
			}
			b.log.Info("session expired", "client_id", clientID)
			if b.hooks != nil {
				b.hooks.OnClientExpired(clientID)
			}
		}
	}
	b.router.Commands() <- topic.PurgeExpiryCmd{}
}
