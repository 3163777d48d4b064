package hook

// Base provides a default no-op implementation of the Hook interface. Users
// embed this in a custom hook and override only the methods they need.
type Base struct {
	id string
}

// NewHookBase creates a new base hook with the given ID.
func NewHookBase(id string) *Base {
	return &Base{id: id}
}

func (h *Base) ID() string { return h.id }

func (h *Base) Provides(event Event) bool { return false }

func (h *Base) Init(config any) error { return nil }

func (h *Base) Stop() error { return nil }

func (h *Base) SetOptions(opts *Options) error { return nil }

func (h *Base) OnStarted() error { return nil }

func (h *Base) OnStopped(err error) error { return nil }

func (h *Base) OnConnectAuthenticate(client *Client, packet *ConnectPacket) bool { return true }

func (h *Base) OnACLCheck(client *Client, topic string, access AccessType) bool { return true }

func (h *Base) OnConnect(client *Client, packet *ConnectPacket) error { return nil }

func (h *Base) OnDisconnect(client *Client, err error, expire bool) error { return nil }

func (h *Base) OnSubscribe(client *Client, sub *Subscription) error { return nil }

func (h *Base) OnSubscribed(client *Client, sub *Subscription) error { return nil }

func (h *Base) OnUnsubscribe(client *Client, topicFilter string) error { return nil }

func (h *Base) OnUnsubscribed(client *Client, topicFilter string) error { return nil }

func (h *Base) OnPublish(client *Client, packet *PublishPacket) error { return nil }

func (h *Base) OnPublished(client *Client, packet *PublishPacket) error { return nil }

func (h *Base) OnPublishDropped(client *Client, packet *PublishPacket, reason DropReason) error {
	return nil
}

func (h *Base) OnWill(client *Client, will *WillMessage) *WillMessage { return will }

func (h *Base) OnWillSent(client *Client, will *WillMessage) error { return nil }

func (h *Base) OnClientExpired(clientID string) error { return nil }

func (h *Base) OnRetainedExpired(topic string) error { return nil }

func (h *Base) OnPanic(origin string, clientID string, recovered any) error { return nil }
