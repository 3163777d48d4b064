package topic

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/axmq/corebroker/hook"
	"github.com/axmq/corebroker/message"
	"github.com/axmq/corebroker/pkg/logger"
	"github.com/axmq/corebroker/wire"
)

// OfflineStore is the broker-side dependency the Router forwards a publish
// to when a subscriber's outbound channel is full and the message must
// survive for later delivery (spec §4.4 step 5, C6 "StoreMsg").
type OfflineStore interface {
	StoreMsg(clientID string, msg *message.Outbound)
}

// SubscribeCmd asks the Router to record a new subscription and replay any
// matching retained messages (spec §4.4 Subscribe).
type SubscribeCmd struct {
	ClientID       string
	ShareGroup     string
	Filter         string
	QoS            byte
	NoLocal        bool
	Persist        bool
	SubscriptionID uint32
	HasSubID       bool
	Out            chan *message.Outbound
	Done           chan error
}

// UnsubscribeCmd removes one subscription.
type UnsubscribeCmd struct {
	ClientID   string
	ShareGroup string
	Filter     string
	Done       chan bool
}

// RemoveClientCmd sweeps every subscription belonging to a client (session
// teardown).
type RemoveClientCmd struct {
	ClientID string
	Done     chan struct{}
}

// PublishCmd routes one publish to every matching subscriber (spec §4.4
// Publish).
type PublishCmd struct {
	FromClientID string
	Retain       bool
	QoS          wire.QoS
	Topic        string
	Payload      []byte
	Properties   wire.Properties
	SubID        uint32
	HasSubID     bool
	ExpiryAt     *time.Time
}

// PurgeExpiryCmd triggers RetainedTrie.PurgeExpired (called periodically by
// the broker's sweeper, C6).
type PurgeExpiryCmd struct{}

// Router owns the TopicTrie and RetainedTrie and runs as its own task,
// consuming a single command channel — no locking is needed on the tries
// since only this goroutine ever touches them (spec §4.4, §5).
type Router struct {
	trie     *Trie
	retained *RetainedTrie
	cache    map[string][]Match
	store    OfflineStore
	log      *logger.SlogLogger
	hooks    *hook.Manager

	cmds chan any
}

// NewRouter builds a Router. store may be nil if offline persistence is not
// wired (all TrySend failures are then dropped).
func NewRouter(store OfflineStore) *Router {
	return &Router{
		trie:     NewTrie(),
		retained: NewRetainedTrie(),
		cache:    make(map[string][]Match),
		store:    store,
		log:      logger.NewSlogLogger(slog.LevelInfo, io.Discard),
		cmds:     make(chan any, 1024),
	}
}

// SetLogger attaches a logger for router start/stop lifecycle events. Safe
// to skip; NewRouter defaults to a discarding logger.
func (r *Router) SetLogger(l *logger.SlogLogger) { r.log = l }

// SetHooks attaches a hook manager used to report panics recovered while
// handling a command. Safe to skip; nil disables reporting.
func (r *Router) SetHooks(h *hook.Manager) { r.hooks = h }

// Commands returns the channel callers send Router commands on.
func (r *Router) Commands() chan<- any { return r.cmds }

// Run processes commands until ctx is cancelled.
func (r *Router) Run(ctx context.Context) {
	r.log.Info("router started")
	defer r.log.Info("router stopped")
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-r.cmds:
			r.handleRecovering(cmd)
		}
	}
}

// handleRecovering runs handle with a panic guard, matching the broker's
// own command-loop recovery, and reports a recovered panic through the
// hook manager's OnPanic if one is attached.
func (r *Router) handleRecovering(cmd any) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("recovered panic handling command", "panic", rec)
			if r.hooks != nil {
				r.hooks.OnPanic("router", "", rec)
			}
		}
	}()
	r.handle(cmd)
}

func (r *Router) handle(cmd any) {
	switch c := cmd.(type) {
	case SubscribeCmd:
		r.handleSubscribe(c)
	case UnsubscribeCmd:
		r.handleUnsubscribe(c)
	case RemoveClientCmd:
		r.handleRemoveClient(c)
	case PublishCmd:
		r.handlePublish(c)
	case PurgeExpiryCmd:
		r.retained.PurgeExpired(time.Now())
	}
}

func (r *Router) handleSubscribe(c SubscribeCmd) {
	if err := wire.ValidateTopicFilter(c.Filter); err != nil {
		if c.Done != nil {
			c.Done <- err
		}
		return
	}

	r.invalidateCacheFor(c.Filter)

	for _, retained := range r.retained.FindMatchesForFilter(c.Filter) {
		if retained.Expired(time.Now()) {
			continue
		}
		out := message.New(retained.Topic, retained.Payload, wire.Min(retained.QoS, wire.QoS(c.QoS)), true, retained.Properties)
		select {
		case c.Out <- out:
		default:
			if c.Persist && r.store != nil {
				r.store.StoreMsg(c.ClientID, out)
			}
		}
	}

	r.trie.Insert(c.Filter, &Entry{
		ClientID:       c.ClientID,
		ShareGroup:     c.ShareGroup,
		TopicFilter:    c.Filter,
		QoS:            c.QoS,
		NoLocal:        c.NoLocal,
		Persist:        c.Persist,
		SubscriptionID: c.SubscriptionID,
		HasSubID:       c.HasSubID,
		Out:            c.Out,
	})

	if c.Done != nil {
		c.Done <- nil
	}
}

func (r *Router) handleUnsubscribe(c UnsubscribeCmd) {
	found := r.trie.Remove(c.Filter, c.ClientID, c.ShareGroup)
	r.invalidateCacheFor(c.Filter)
	if c.Done != nil {
		c.Done <- found
	}
}

func (r *Router) handleRemoveClient(c RemoveClientCmd) {
	r.trie.RemoveClient(c.ClientID)
	r.cache = make(map[string][]Match)
	if c.Done != nil {
		close(c.Done)
	}
}

func (r *Router) handlePublish(c PublishCmd) {
	if r.hooks != nil {
		if err := r.hooks.OnPublish(&hook.Client{ID: c.FromClientID}, &hook.PublishPacket{
			Topic: c.Topic, Payload: c.Payload, QoS: c.QoS, Retain: c.Retain, Properties: c.Properties,
		}); err != nil {
			return
		}
	}

	if c.Retain {
		if len(c.Payload) == 0 {
			r.retained.Remove(c.Topic)
		} else {
			r.retained.Insert(c.Topic, &message.Retained{
				Topic:      c.Topic,
				QoS:        c.QoS,
				Payload:    c.Payload,
				Properties: c.Properties,
				ExpiryAt:   c.ExpiryAt,
			})
		}
	}

	matches, ok := r.cache[c.Topic]
	if !ok {
		matches = r.trie.FindMatches(c.Topic)
		r.cache[c.Topic] = matches
	}

	for _, m := range matches {
		entry := m.Entry
		if entry == nil {
			e, ok := m.Group.next()
			if !ok {
				continue
			}
			entry = e
		}
		if entry.NoLocal && entry.ClientID == c.FromClientID {
			continue
		}

		out := message.New(c.Topic, c.Payload, wire.Min(c.QoS, wire.QoS(entry.QoS)), false, c.Properties)
		if entry.HasSubID {
			out.SubscriptionID = entry.SubscriptionID
			out.HasSubID = true
		}

		select {
		case entry.Out <- out:
		default:
			if entry.Persist && r.store != nil && c.ExpiryAt != nil {
				r.store.StoreMsg(entry.ClientID, out)
			} else if r.hooks != nil {
				r.hooks.OnPublishDropped(&hook.Client{ID: entry.ClientID}, &hook.PublishPacket{
					Topic: c.Topic, Payload: c.Payload, QoS: c.QoS, Retain: c.Retain, Properties: c.Properties,
				}, hook.DropReasonQueueFull)
			}
		}
	}
}

// invalidateCacheFor drops every cache line whose topic would be matched by
// filter, since a new subscription could make previously-cached (and
// therefore stale) results incomplete (spec §4.4).
func (r *Router) invalidateCacheFor(filter string) {
	for cachedTopic := range r.cache {
		if filterMatchesTopic(filter, cachedTopic) {
			delete(r.cache, cachedTopic)
		}
	}
}

// filterMatchesTopic reports whether topic would be selected by filter,
// applying the '$'-prefix wildcard exclusion MQTT requires for topics like
// $SYS/... (spec GLOSSARY).
func filterMatchesTopic(filter, topicName string) bool {
	if strings.HasPrefix(topicName, "$") && (strings.Contains(filter, "#") || strings.Contains(filter, "+")) {
		return false
	}
	return matchLevels(splitLevels(filter), splitLevels(topicName))
}

func matchLevels(filterLevels, topicLevels []string) bool {
	fi, ti := 0, 0
	for fi < len(filterLevels) && ti < len(topicLevels) {
		switch filterLevels[fi] {
		case "#":
			return true
		case "+":
			fi++
			ti++
		default:
			if filterLevels[fi] != topicLevels[ti] {
				return false
			}
			fi++
			ti++
		}
	}
	if fi < len(filterLevels) {
		return fi == len(filterLevels)-1 && filterLevels[fi] == "#"
	}
	return ti == len(topicLevels)
}
