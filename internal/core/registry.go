package core

// Registry is the authoritative store of channels and live connections. It is
// created empty at startup and mutated exclusively by the hub goroutine, so
// it carries no locking.
//
// Invariants: a channel exists iff its member list is non-empty (except in
// the instant between creation and the creator's join, which happens within
// one dispatch); a client appears in a member list only while authenticated
// and connected; display names are unique among authenticated clients.
type Registry struct {
	channels map[string]*Channel
	order    []string // channel names in creation order
	clients  map[string]*Client
	names    map[string]*Client // display names in use
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		channels: make(map[string]*Channel),
		clients:  make(map[string]*Client),
		names:    make(map[string]*Client),
	}
}

// ValidName reports whether s is a legal display or channel name: one to ten
// ASCII alphanumeric characters.
func ValidName(s string) bool {
	if len(s) < 1 || len(s) > 10 {
		return false
	}
	for i := 0; i < len(s); i++ {
		b := s[i]
		switch {
		case b >= '0' && b <= '9':
		case b >= 'a' && b <= 'z':
		case b >= 'A' && b <= 'Z':
		default:
			return false
		}
	}
	return true
}

// AddClient records a new connection. The client starts unauthenticated and
// in no channels.
func (r *Registry) AddClient(c *Client) {
	r.clients[c.ID] = c
}

// Known reports whether the connection is still in the table.
func (r *Registry) Known(c *Client) bool {
	_, ok := r.clients[c.ID]
	return ok
}

// Login assigns a display name. The name is assigned exactly once per
// connection; a second login, a malformed name, or a name already held by
// another live client is a validation error.
func (r *Registry) Login(c *Client, name string) *CoreError {
	if c.Authenticated {
		return coreErrorf(ErrCodeAlreadyLoggedIn, "Already logged in")
	}
	if !ValidName(name) {
		return coreErrorf(ErrCodeInvalidName, "Invalid username %q: must be 1-10 alphanumeric characters", name)
	}
	if _, taken := r.names[name]; taken {
		return coreErrorf(ErrCodeNameTaken, "Username %s is already taken", name)
	}
	c.Name = name
	c.Authenticated = true
	r.names[name] = c
	return nil
}

// AddChannel creates a new empty channel. The caller joins the creator
// immediately afterwards via JoinChannel.
func (r *Registry) AddChannel(name string) *CoreError {
	if !ValidName(name) {
		return coreErrorf(ErrCodeInvalidName, "Invalid channel name %q: must be 1-10 alphanumeric characters", name)
	}
	if _, exists := r.channels[name]; exists {
		return coreErrorf(ErrCodeChannelExists, "Channel %s already exists", name)
	}
	r.channels[name] = newChannel(name)
	r.order = append(r.order, name)
	return nil
}

// JoinChannel appends the client to the channel's member list.
func (r *Registry) JoinChannel(c *Client, name string) *CoreError {
	ch, exists := r.channels[name]
	if !exists {
		return coreErrorf(ErrCodeChannelNotFound, "Channel %s does not exist", name)
	}
	if !ch.add(c) {
		return coreErrorf(ErrCodeAlreadyMember, "Already in the channel %s", name)
	}
	c.channels[name] = struct{}{}
	return nil
}

// LeaveChannel removes the client from the channel, deleting the channel if
// it becomes empty.
func (r *Registry) LeaveChannel(c *Client, name string) *CoreError {
	ch, exists := r.channels[name]
	if !exists {
		return coreErrorf(ErrCodeChannelNotFound, "Channel %s does not exist", name)
	}
	if !ch.remove(c) {
		return coreErrorf(ErrCodeNotMember, "Not in the channel %s", name)
	}
	delete(c.channels, name)
	if ch.Empty() {
		r.deleteChannel(name)
	}
	return nil
}

// ListRooms returns channel names in creation order.
func (r *Registry) ListRooms() []string {
	rooms := make([]string, len(r.order))
	copy(rooms, r.order)
	return rooms
}

// ListUsers returns member display names in join order.
func (r *Registry) ListUsers(name string) ([]string, *CoreError) {
	ch, exists := r.channels[name]
	if !exists {
		return nil, coreErrorf(ErrCodeChannelNotFound, "Channel %s does not exist", name)
	}
	users := make([]string, 0, len(ch.members))
	for _, m := range ch.members {
		users = append(users, m.Name)
	}
	return users, nil
}

// ChannelMembers returns the broadcast targets for a message, in join order.
// The sender need not be a member.
func (r *Registry) ChannelMembers(name string) ([]*Client, *CoreError) {
	ch, exists := r.channels[name]
	if !exists {
		return nil, coreErrorf(ErrCodeChannelNotFound, "Channel %s does not exist", name)
	}
	return ch.Members(), nil
}

// Disconnect removes the client from every channel it belongs to, deleting
// channels left empty, releases its display name, and drops it from the
// connection table. This is the single cleanup path shared by LOGOUT, EOF,
// read/write failures, and framing errors; it is a no-op for a client
// already removed.
func (r *Registry) Disconnect(c *Client) {
	if _, ok := r.clients[c.ID]; !ok {
		return
	}
	for name := range c.channels {
		if ch, exists := r.channels[name]; exists {
			ch.remove(c)
			if ch.Empty() {
				r.deleteChannel(name)
			}
		}
	}
	c.channels = make(map[string]struct{})
	if c.Authenticated {
		delete(r.names, c.Name)
	}
	delete(r.clients, c.ID)
}

// Clients returns every live connection. Hub goroutine only.
func (r *Registry) Clients() []*Client {
	clients := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}
	return clients
}

func (r *Registry) deleteChannel(name string) {
	delete(r.channels, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}
