// Package session implements the per-connection task (spec §4.5): the
// CONNECT handshake, keep-alive enforcement, the inflight window and
// retransmission, QoS 1/2 state, and outbound delivery. A Session owns its
// qos.Store/qos.ReceiveStore/qos.Allocator exclusively — it is driven by a
// single goroutine (Run), so none of that state needs locking.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/axmq/corebroker/message"
	"github.com/axmq/corebroker/qos"
	"github.com/axmq/corebroker/topic"
	"github.com/axmq/corebroker/wire"
)

// State is one stage of the per-connection state machine (spec §4.5).
type State byte

const (
	StateInit State = iota
	StateRecvConnect
	StateConnected
	StateTeardown
)

// ErrProtocolViolation is returned by Run when the peer sends a packet the
// state machine does not accept in its current state (spec §4.5: "Second
// CONNECT, AUTH, or unknown → protocol violation, disconnect").
var ErrProtocolViolation = errors.New("session: protocol violation")

var errConnectRejected = errors.New("session: connect rejected")

// Config bounds the session's behavior, derived from the accepted CONNECT
// and the broker's configured limits.
type Config struct {
	KeepAlive       uint16 // seconds, as negotiated
	ReceiveMaximum  uint16 // inflight window size
	MaxPacketSize   uint32
	ResendInterval  time.Duration
	ReceiveStoreCap int // bound on the QoS-2 receive store
}

// Session is the live per-connection state: transport, codec version,
// inflight/receive-side QoS stores, and the channels it is driven by.
type Session struct {
	conn    Conn
	version wire.ProtocolVersion
	cfg     Config

	clientID   string
	cleanStart bool
	state      State

	inflight  *qos.Store
	recv      *qos.ReceiveStore
	packetIDs *qos.Allocator

	will *Will

	out     chan *message.Outbound // registered with the broker/router as this session's delivery handle
	cmds    chan any               // DisconnectCmd injected by the broker
	inbound chan inboundItem

	router RouterPort
	broker BrokerPort
}

type inboundItem struct {
	msg wire.Message
	err error
}

// New builds a Session bound to conn, not yet past the INIT state.
func New(conn Conn, router RouterPort, broker BrokerPort, outBuf int) *Session {
	return &Session{
		conn:    conn,
		state:   StateInit,
		out:     make(chan *message.Outbound, outBuf),
		cmds:    make(chan any, 4),
		inbound: make(chan inboundItem, 16),
		router:  router,
		broker:  broker,
	}
}

// Out returns the channel the broker/router deliver outbound publishes on.
func (s *Session) Out() chan *message.Outbound { return s.out }

// ClientID returns the session's negotiated client identifier.
func (s *Session) ClientID() string { return s.clientID }

// DisconnectCmd is injected by the broker to force a session closed (spec
// §4.5 "Command injection from broker").
type DisconnectCmd struct {
	ReasonCode wire.ReturnCode
}

// Commands returns the channel the broker uses to inject DisconnectCmd.
func (s *Session) Commands() chan<- any { return s.cmds }

// readLoop decodes frames off conn and forwards them to inbound until ctx is
// cancelled or the connection errors.
func (s *Session) readLoop(ctx context.Context) {
	for {
		if d := readDeadline(s.cfg.KeepAlive); d > 0 {
			_ = s.conn.SetReadDeadline(time.Now().Add(d))
		}
		msg, err := wire.ReadMessage(s.conn, s.cfg.MaxPacketSize, s.version)
		select {
		case s.inbound <- inboundItem{msg: msg, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
		if _, tooLarge := msg.(wire.PacketTooLargeMsg); tooLarge {
			return
		}
	}
}

// readDeadline computes the 1.5x keep-alive receive deadline (spec §4.5).
// A zero keep-alive disables the deadline.
func readDeadline(keepAlive uint16) time.Duration {
	if keepAlive == 0 {
		return 0
	}
	return time.Duration(float64(keepAlive)*1.5) * time.Second
}

// Handshake runs INIT → RECV_CONNECT → CONNECTED. It reads exactly one
// packet under a 3-second deadline; that packet must be CONNECT (spec §4.5).
func (s *Session) Handshake(ctx context.Context) error {
	s.state = StateRecvConnect
	if err := s.conn.SetReadDeadline(time.Now().Add(3 * time.Second)); err != nil {
		return err
	}

	msg, err := wire.ReadMessage(s.conn, 0, wire.V3)
	if err != nil {
		return err
	}
	connect, ok := msg.(*wire.Connect)
	if !ok {
		return ErrProtocolViolation
	}

	s.version = connect.Version
	var will *Will
	if connect.Will != nil {
		will = &Will{
			Topic:          connect.Will.Topic,
			Payload:        connect.Will.Payload,
			QoS:            connect.Will.QoS,
			Retain:         connect.Will.Retain,
			DelayInterval:  connect.Will.DelayInterval,
			ExpiryInterval: connect.Will.ExpiryInterval,
			ExpirySet:      connect.Will.ExpirySet,
			Properties:     connect.Will.Properties,
		}
	}

	s.will = will

	reply := make(chan ConnectReply, 1)
	s.broker.Commands() <- ConnectCmd{
		ClientID:        connect.ClientID,
		AssignClientID:  connect.GenClientID,
		CleanStart:      connect.CleanStart,
		ExpiryInterval:  sessionExpiryOf(connect.Properties),
		KeepAlive:       connect.KeepAlive,
		ReceiveMaximum:  receiveMaximumOf(connect.Properties),
		ProtocolVersion: connect.Version,
		Will:            will,
		Out:             s.out,
		Cmds:            s.cmds,
		ReplyTo:         reply,
	}

	result := <-reply
	connAck := &wire.ConnAck{
		Version:        s.version,
		SessionPresent: result.SessionPresent,
		ReasonCode:     result.ReasonCode,
	}
	if !result.Accepted {
		_ = connAck.Encode(s.conn)
		return errConnectRejected
	}

	s.clientID = result.AssignedClientID
	s.cleanStart = connect.CleanStart
	s.cfg = Config{
		KeepAlive:       result.GrantedKeepAlive,
		ReceiveMaximum:  result.GrantedReceiveMax,
		MaxPacketSize:   result.GrantedMaxPacketSize,
		ResendInterval:  5 * time.Second,
		ReceiveStoreCap: 1024,
	}
	s.inflight = qos.NewStore(int(s.cfg.ReceiveMaximum))
	s.recv = qos.NewReceiveStore(s.cfg.ReceiveStoreCap)
	s.packetIDs = qos.NewAllocator()

	_ = connAck.Encode(s.conn)
	s.state = StateConnected
	return nil
}

func receiveMaximumOf(props wire.Properties) uint16 {
	if p := props.Get(wire.PropReceiveMaximum); p != nil {
		if v, ok := p.Value.(uint16); ok {
			return v
		}
	}
	return 128
}

func sessionExpiryOf(props wire.Properties) uint32 {
	if p := props.Get(wire.PropSessionExpiryInterval); p != nil {
		if v, ok := p.Value.(uint32); ok {
			return v
		}
	}
	return 0
}

// Run drives the CONNECTED select loop until ctx is cancelled or the
// connection is torn down (spec §4.5 "CONNECTED loop").
func (s *Session) Run(ctx context.Context) error {
	go s.readLoop(ctx)

	ticker := time.NewTicker(s.cfg.ResendInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.teardown(wire.RCServerShuttingDown)
			return ctx.Err()

		case item := <-s.inbound:
			if item.err != nil {
				s.teardown(wire.RCUnspecifiedError)
				return item.err
			}
			done, err := s.handleInbound(item.msg)
			if done {
				return err
			}

		case out, ok := <-s.out:
			if !ok {
				continue
			}
			s.deliverOutbound(out)

		case <-ticker.C:
			s.resendDue()

		case cmd := <-s.cmds:
			if dc, ok := cmd.(DisconnectCmd); ok {
				disc := &wire.Disconnect{Version: s.version, ReasonCode: dc.ReasonCode}
				_ = disc.Encode(s.conn)
				s.teardown(dc.ReasonCode)
				return nil
			}
		}
	}
}

// handleInbound dispatches one decoded frame per spec §4.5 item 1. Returns
// done=true once the session should stop, with the error to propagate, if
// any.
func (s *Session) handleInbound(msg wire.Message) (bool, error) {
	switch p := msg.(type) {
	case wire.PingReq:
		return false, wire.PingResp{}.Encode(s.conn)

	case *wire.Disconnect:
		s.teardown(wire.RCSuccess)
		return true, nil

	case *wire.Subscribe:
		return false, s.handleSubscribe(p)

	case *wire.Unsubscribe:
		return false, s.handleUnsubscribe(p)

	case *wire.Publish:
		return false, s.handlePublish(p)

	case *wire.PubRel:
		return false, s.handlePubRel(p)

	case *wire.PubAck:
		s.inflight.Remove(p.PacketID)
		s.promoteOverflow()
		return false, nil

	case *wire.PubComp:
		s.inflight.Remove(p.PacketID)
		s.promoteOverflow()
		return false, nil

	case *wire.PubRec:
		return false, s.handlePubRec(p)

	case wire.PacketTooLargeMsg:
		disc := &wire.Disconnect{Version: s.version, ReasonCode: wire.RCPacketTooLarge}
		_ = disc.Encode(s.conn)
		s.teardown(wire.RCPacketTooLarge)
		return true, nil

	default:
		s.teardown(wire.RCProtocolError)
		return true, ErrProtocolViolation
	}
}

func (s *Session) handleSubscribe(p *wire.Subscribe) error {
	reqs := make([]SubscriptionRequest, len(p.Subscriptions))
	for i, sub := range p.Subscriptions {
		shareGroup, filter, err := wire.SplitShared(sub.TopicFilter)
		if err != nil {
			filter, shareGroup = sub.TopicFilter, ""
		}
		reqs[i] = SubscriptionRequest{
			Filter:            filter,
			ShareGroup:        shareGroup,
			QoS:               byte(sub.QoS),
			NoLocal:           sub.NoLocal,
			RetainAsPublished: sub.RetainAsPublished,
			RetainHandling:    sub.RetainHandling,
			SubscriptionID:    p.SubscriptionID,
			HasSubID:          p.HasSubscriptionID,
		}
	}

	reply := make(chan SubscribeReply, 1)
	s.broker.Commands() <- SubscribeCmd{ClientID: s.clientID, Filters: reqs, Out: s.out, ReplyTo: reply}
	result := <-reply

	ack := &wire.SubAck{Version: s.version, PacketID: p.PacketID, ReasonCodes: result.ReasonCodes}
	return ack.Encode(s.conn)
}

func (s *Session) handleUnsubscribe(p *wire.Unsubscribe) error {
	reply := make(chan UnsubscribeReply, 1)
	s.broker.Commands() <- UnsubscribeCmd{ClientID: s.clientID, Filters: p.TopicFilters, ReplyTo: reply}
	result := <-reply

	ack := &wire.UnsubAck{Version: s.version, PacketID: p.PacketID, ReasonCodes: result.ReasonCodes}
	return ack.Encode(s.conn)
}

func (s *Session) handlePublish(p *wire.Publish) error {
	switch p.QoS {
	case wire.QoS0:
		s.forwardPublish(p.TopicName, p.Payload, p.QoS, p.Retain, p.Properties)
		return nil

	case wire.QoS1:
		if err := wire.ValidateTopicName(p.TopicName); err != nil {
			ack := &wire.PubAck{Version: s.version, PacketID: p.PacketID, ReasonCode: wire.RCTopicNameInvalid}
			return ack.Encode(s.conn)
		}
		s.forwardPublish(p.TopicName, p.Payload, p.QoS, p.Retain, p.Properties)
		ack := &wire.PubAck{Version: s.version, PacketID: p.PacketID, ReasonCode: wire.RCSuccess}
		return ack.Encode(s.conn)

	case wire.QoS2:
		if err := wire.ValidateTopicName(p.TopicName); err != nil {
			rec := &wire.PubRec{Version: s.version, PacketID: p.PacketID, ReasonCode: wire.RCTopicNameInvalid}
			return rec.Encode(s.conn)
		}
		s.recv.Stash(p.PacketID, message.New(p.TopicName, p.Payload, p.QoS, p.Retain, p.Properties))
		rec := &wire.PubRec{Version: s.version, PacketID: p.PacketID, ReasonCode: wire.RCSuccess}
		return rec.Encode(s.conn)

	default:
		return ErrProtocolViolation
	}
}

func (s *Session) handlePubRel(p *wire.PubRel) error {
	if stashed, ok := s.recv.Take(p.PacketID); ok {
		s.forwardPublish(stashed.Topic, stashed.Payload, stashed.QoS, stashed.Retain, stashed.Properties)
		comp := &wire.PubComp{Version: s.version, PacketID: p.PacketID, ReasonCode: wire.RCSuccess}
		return comp.Encode(s.conn)
	}
	comp := &wire.PubComp{Version: s.version, PacketID: p.PacketID, ReasonCode: wire.RCPacketIdentifierNotFound}
	return comp.Encode(s.conn)
}

func (s *Session) handlePubRec(p *wire.PubRec) error {
	s.inflight.DiscardBody(p.PacketID)
	rel := &wire.PubRel{Version: s.version, PacketID: p.PacketID, ReasonCode: wire.RCSuccess}
	return rel.Encode(s.conn)
}

func (s *Session) forwardPublish(topicName string, payload []byte, q wire.QoS, retain bool, props wire.Properties) {
	s.router.Commands() <- topic.PublishCmd{
		FromClientID: s.clientID,
		Retain:       retain,
		QoS:          q,
		Topic:        topicName,
		Payload:      payload,
		Properties:   props,
	}
}

// deliverOutbound handles an outbound-delivery command from the router
// (spec §4.5 item 2): assign a packet id for QoS>0, build PUBLISH, store it
// in the inflight window (or overflow if full), and transmit.
func (s *Session) deliverOutbound(m *message.Outbound) {
	if m.IsExpired(time.Now()) {
		return
	}

	pub := &wire.Publish{
		Version:    s.version,
		DUP:        m.DUP,
		QoS:        m.QoS,
		Retain:     m.Retain,
		TopicName:  m.Topic,
		Properties: m.Properties,
		Payload:    m.Payload,
	}

	if m.QoS == wire.QoS0 {
		_ = pub.Encode(s.conn)
		return
	}

	if s.inflight.Full() {
		s.inflight.Enqueue(m)
		return
	}

	id := s.nextPacketID()
	pub.PacketID = id
	m.MarkResend(time.Now())
	s.inflight.Add(id, m, time.Now())
	_ = pub.Encode(s.conn)
}

// promoteOverflow sends the oldest overflowed publish into the now-freed
// inflight slot, if any is waiting (spec §4.5 "if backing deque non-empty,
// promote one").
func (s *Session) promoteOverflow() {
	if s.inflight.Full() {
		return
	}
	msg, ok := s.inflight.PromoteNext()
	if !ok {
		return
	}
	s.deliverOutbound(msg)
}

func (s *Session) nextPacketID() uint16 {
	for {
		id := s.packetIDs.Next()
		if _, inUse := s.inflight.Get(id); !inUse {
			return id
		}
	}
}

// resendDue retransmits every inflight entry whose last send exceeds the
// resend interval (spec §4.5 item 3).
func (s *Session) resendDue() {
	now := time.Now()
	for _, id := range s.inflight.Due(now, s.cfg.ResendInterval) {
		msg, ok := s.inflight.Get(id)
		if !ok || msg == nil {
			continue
		}
		s.inflight.MarkResent(id, now)
		pub := &wire.Publish{
			Version:    s.version,
			DUP:        true,
			QoS:        msg.QoS,
			Retain:     msg.Retain,
			TopicName:  msg.Topic,
			PacketID:   id,
			Properties: msg.Properties,
			Payload:    msg.Payload,
		}
		_ = pub.Encode(s.conn)
	}
}

func (s *Session) teardown(code wire.ReturnCode) {
	if s.state == StateTeardown {
		return
	}
	s.state = StateTeardown
	_ = s.conn.Close()
	if s.broker != nil && s.clientID != "" {
		s.broker.Commands() <- DisconnectedCmd{ClientID: s.clientID, Code: code, Will: s.will}
	}
}
