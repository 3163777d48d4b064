package hook

import (
	"sync"
	"sync/atomic"
)

// Manager dispatches to a copy-on-write slice of hooks, so Run loops that
// fire hooks on a hot path (OnPublish, OnSubscribe) never take a lock.
type Manager struct {
	mu       sync.Mutex
	hooksPtr atomic.Pointer[[]Hook]
	index    map[string]int
}

// NewManager creates an empty hook manager.
func NewManager() *Manager {
	m := &Manager{index: make(map[string]int)}
	hooks := make([]Hook, 0)
	m.hooksPtr.Store(&hooks)
	return m
}

// Add registers a hook. Returns an error if a hook with the same ID already
// exists.
func (m *Manager) Add(hook Hook) error {
	if hook == nil {
		return ErrEmptyHookID
	}
	id := hook.ID()
	if id == "" {
		return ErrEmptyHookID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.index[id]; exists {
		return ErrHookAlreadyExists
	}

	old := *m.hooksPtr.Load()
	next := make([]Hook, len(old)+1)
	copy(next, old)
	next[len(old)] = hook

	m.index[id] = len(old)
	m.hooksPtr.Store(&next)
	return nil
}

// Remove unregisters a hook by ID.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, exists := m.index[id]
	if !exists {
		return ErrHookNotFound
	}

	old := *m.hooksPtr.Load()
	next := make([]Hook, len(old)-1)
	copy(next[:idx], old[:idx])
	copy(next[idx:], old[idx+1:])
	delete(m.index, id)
	for i := idx; i < len(next); i++ {
		m.index[next[i].ID()] = i
	}
	m.hooksPtr.Store(&next)
	return nil
}

// Get retrieves a hook by ID.
func (m *Manager) Get(id string) (Hook, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, exists := m.index[id]
	if !exists {
		return nil, false
	}
	return (*m.hooksPtr.Load())[idx], true
}

// List returns a snapshot of all registered hooks.
func (m *Manager) List() []Hook {
	hooks := *m.hooksPtr.Load()
	out := make([]Hook, len(hooks))
	copy(out, hooks)
	return out
}

// Count returns the number of registered hooks.
func (m *Manager) Count() int {
	return len(*m.hooksPtr.Load())
}

// Clear stops and removes every registered hook.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range *m.hooksPtr.Load() {
		_ = h.Stop()
	}
	empty := make([]Hook, 0)
	m.hooksPtr.Store(&empty)
	m.index = make(map[string]int)
}

func (m *Manager) SetOptions(opts *Options) error {
	for _, h := range *m.hooksPtr.Load() {
		if h.Provides(SetOptions) {
			if err := h.SetOptions(opts); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *Manager) OnStarted() {
	for _, h := range *m.hooksPtr.Load() {
		if h.Provides(OnStarted) {
			_ = h.OnStarted()
		}
	}
}

func (m *Manager) OnStopped(err error) {
	for _, h := range *m.hooksPtr.Load() {
		if h.Provides(OnStopped) {
			_ = h.OnStopped(err)
		}
	}
}

// OnConnectAuthenticate returns false as soon as any hook rejects the
// connection (spec §4.6 Connect handling step 1, "authenticate").
func (m *Manager) OnConnectAuthenticate(client *Client, packet *ConnectPacket) bool {
	for _, h := range *m.hooksPtr.Load() {
		if h.Provides(OnConnectAuthenticate) && !h.OnConnectAuthenticate(client, packet) {
			return false
		}
	}
	return true
}

func (m *Manager) OnACLCheck(client *Client, topic string, access AccessType) bool {
	for _, h := range *m.hooksPtr.Load() {
		if h.Provides(OnACLCheck) && !h.OnACLCheck(client, topic, access) {
			return false
		}
	}
	return true
}

func (m *Manager) OnConnect(client *Client, packet *ConnectPacket) error {
	for _, h := range *m.hooksPtr.Load() {
		if h.Provides(OnConnect) {
			if err := h.OnConnect(client, packet); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *Manager) OnDisconnect(client *Client, err error, expire bool) {
	for _, h := range *m.hooksPtr.Load() {
		if h.Provides(OnDisconnect) {
			_ = h.OnDisconnect(client, err, expire)
		}
	}
}

func (m *Manager) OnSubscribe(client *Client, sub *Subscription) error {
	for _, h := range *m.hooksPtr.Load() {
		if h.Provides(OnSubscribe) {
			if err := h.OnSubscribe(client, sub); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *Manager) OnSubscribed(client *Client, sub *Subscription) {
	for _, h := range *m.hooksPtr.Load() {
		if h.Provides(OnSubscribed) {
			_ = h.OnSubscribed(client, sub)
		}
	}
}

func (m *Manager) OnUnsubscribe(client *Client, topicFilter string) error {
	for _, h := range *m.hooksPtr.Load() {
		if h.Provides(OnUnsubscribe) {
			if err := h.OnUnsubscribe(client, topicFilter); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *Manager) OnUnsubscribed(client *Client, topicFilter string) {
	for _, h := range *m.hooksPtr.Load() {
		if h.Provides(OnUnsubscribed) {
			_ = h.OnUnsubscribed(client, topicFilter)
		}
	}
}

func (m *Manager) OnPublish(client *Client, packet *PublishPacket) error {
	for _, h := range *m.hooksPtr.Load() {
		if h.Provides(OnPublish) {
			if err := h.OnPublish(client, packet); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *Manager) OnPublished(client *Client, packet *PublishPacket) {
	for _, h := range *m.hooksPtr.Load() {
		if h.Provides(OnPublished) {
			_ = h.OnPublished(client, packet)
		}
	}
}

func (m *Manager) OnPublishDropped(client *Client, packet *PublishPacket, reason DropReason) {
	for _, h := range *m.hooksPtr.Load() {
		if h.Provides(OnPublishDropped) {
			_ = h.OnPublishDropped(client, packet, reason)
		}
	}
}

// OnWill lets hooks rewrite (or veto, by returning nil) the will a session
// carried into teardown, before the broker schedules delivery.
func (m *Manager) OnWill(client *Client, will *WillMessage) *WillMessage {
	result := will
	for _, h := range *m.hooksPtr.Load() {
		if h.Provides(OnWill) {
			result = h.OnWill(client, result)
		}
	}
	return result
}

func (m *Manager) OnWillSent(client *Client, will *WillMessage) {
	for _, h := range *m.hooksPtr.Load() {
		if h.Provides(OnWillSent) {
			_ = h.OnWillSent(client, will)
		}
	}
}

func (m *Manager) OnClientExpired(clientID string) {
	for _, h := range *m.hooksPtr.Load() {
		if h.Provides(OnClientExpired) {
			_ = h.OnClientExpired(clientID)
		}
	}
}

func (m *Manager) OnRetainedExpired(topic string) {
	for _, h := range *m.hooksPtr.Load() {
		if h.Provides(OnRetainedExpired) {
			_ = h.OnRetainedExpired(topic)
		}
	}
}

func (m *Manager) OnPanic(origin, clientID string, recovered any) {
	for _, h := range *m.hooksPtr.Load() {
		if h.Provides(OnPanic) {
			_ = h.OnPanic(origin, clientID, recovered)
		}
	}
}
