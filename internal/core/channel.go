package core

// Channel is a named room. Members are kept in join order, which fixes the
// order of listings and broadcasts.
type Channel struct {
	Name    string
	members []*Client
}

func newChannel(name string) *Channel {
	return &Channel{Name: name}
}

func (ch *Channel) has(c *Client) bool {
	for _, m := range ch.members {
		if m == c {
			return true
		}
	}
	return false
}

func (ch *Channel) add(c *Client) bool {
	if ch.has(c) {
		return false
	}
	ch.members = append(ch.members, c)
	return true
}

func (ch *Channel) remove(c *Client) bool {
	for i, m := range ch.members {
		if m == c {
			ch.members = append(ch.members[:i], ch.members[i+1:]...)
			return true
		}
	}
	return false
}

// Members returns the member list in join order. The slice is shared; callers
// must not mutate it.
func (ch *Channel) Members() []*Client {
	return ch.members
}

// Empty reports whether the channel has no members.
func (ch *Channel) Empty() bool {
	return len(ch.members) == 0
}
