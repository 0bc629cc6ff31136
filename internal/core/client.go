package core

// Client is one live connection as seen by the hub. Name and Authenticated
// are owned by the hub goroutine; the Outbound queue is the only field
// touched from other goroutines.
type Client struct {
	ID            string
	Addr          string
	Name          string
	Authenticated bool
	Outbound      *OutboundQueue

	// channels the client currently belongs to, by name. Hub goroutine only.
	channels map[string]struct{}
}

// NewClient constructs an unauthenticated client with an open outbound queue.
func NewClient(id, addr string) *Client {
	return &Client{
		ID:       id,
		Addr:     addr,
		Outbound: NewOutboundQueue(),
		channels: make(map[string]struct{}),
	}
}
