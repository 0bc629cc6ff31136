package core

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/fernwick/relaychat/internal/proto"
)

// ErrHubStopped is returned by Stats when the hub is no longer running.
var ErrHubStopped = errors.New("hub stopped")

type eventKind int

const (
	eventRegister eventKind = iota
	eventUnregister
	eventPacket
	eventSnapshot
)

type event struct {
	kind   eventKind
	client *Client
	packet proto.Packet
	reply  chan Snapshot
}

// Snapshot is a point-in-time view of hub state for the admin surface.
type Snapshot struct {
	Connections int
	Channels    []ChannelInfo
}

// ChannelInfo describes one channel in a Snapshot.
type ChannelInfo struct {
	Name    string
	Members []string
}

// Hub is the single event loop that owns the registry and connection table.
// Everything that mutates or reads them — registration, packet dispatch,
// disconnect, stats — arrives on one FIFO channel and runs to completion on
// the hub goroutine, so packets from a connection are processed in arrival
// order and relative to that connection's own teardown.
type Hub struct {
	log        *zerolog.Logger
	registry   *Registry
	dispatcher *Dispatcher
	events     chan event
	done       chan struct{}
}

// NewHub constructs a hub with an empty registry.
func NewHub(logger *zerolog.Logger) *Hub {
	registry := NewRegistry()
	return &Hub{
		log:        logger,
		registry:   registry,
		dispatcher: NewDispatcher(registry, logger),
		events:     make(chan event, 64),
		done:       make(chan struct{}),
	}
}

// Run processes events until the context is cancelled, then tears down every
// remaining connection.
func (h *Hub) Run(ctx context.Context) {
	defer h.drainEvents()
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, c := range h.registry.Clients() {
				h.disconnect(c)
			}
			return
		case ev := <-h.events:
			h.handle(ev)
		}
	}
}

// Register adds a freshly accepted connection to the table. Call before
// starting the connection's pumps. If the hub has already stopped the
// client's queue is closed so its write pump exits immediately.
func (h *Hub) Register(c *Client) {
	select {
	case h.events <- event{kind: eventRegister, client: c}:
	case <-h.done:
		c.Outbound.Close()
	}
}

// Unregister routes a connection to the disconnect path. Idempotent.
func (h *Hub) Unregister(c *Client) {
	h.send(event{kind: eventUnregister, client: c})
}

// Deliver hands a decoded packet to the hub for dispatch.
func (h *Hub) Deliver(c *Client, pkt proto.Packet) {
	h.send(event{kind: eventPacket, client: c, packet: pkt})
}

// Stats returns a snapshot of connections and channels, read on the hub
// goroutine so no lock is needed on registry state.
func (h *Hub) Stats(ctx context.Context) (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	select {
	case h.events <- event{kind: eventSnapshot, reply: reply}:
	case <-h.done:
		return Snapshot{}, ErrHubStopped
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
	select {
	case snap := <-reply:
		return snap, nil
	case <-h.done:
		return Snapshot{}, ErrHubStopped
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

func (h *Hub) send(ev event) {
	select {
	case h.events <- ev:
	case <-h.done:
		// Hub already stopped; the teardown in Run closed every queue.
	}
}

// drainEvents closes the queue of any registration still buffered when the
// hub stops, so no write pump is left blocked.
func (h *Hub) drainEvents() {
	for {
		select {
		case ev := <-h.events:
			if ev.kind == eventRegister {
				ev.client.Outbound.Close()
			}
		default:
			return
		}
	}
}

func (h *Hub) handle(ev event) {
	switch ev.kind {
	case eventRegister:
		h.registry.AddClient(ev.client)
		h.log.Info().Str("client_id", ev.client.ID).Str("addr", ev.client.Addr).Msg("connection registered")
	case eventUnregister:
		h.disconnect(ev.client)
	case eventPacket:
		if !h.registry.Known(ev.client) {
			// Packet raced a disconnect; the connection is gone.
			return
		}
		if teardown := h.dispatcher.Dispatch(ev.client, ev.packet); teardown {
			h.log.Info().Str("client_id", ev.client.ID).Str("user", ev.client.Name).Msg("client logged out")
			h.disconnect(ev.client)
		}
	case eventSnapshot:
		ev.reply <- h.snapshot()
	}
}

func (h *Hub) disconnect(c *Client) {
	if !h.registry.Known(c) {
		return
	}
	h.registry.Disconnect(c)
	c.Outbound.Close()
	h.log.Info().Str("client_id", c.ID).Str("addr", c.Addr).Msg("connection closed")
}

func (h *Hub) snapshot() Snapshot {
	snap := Snapshot{Connections: len(h.registry.clients)}
	for _, name := range h.registry.order {
		ch := h.registry.channels[name]
		info := ChannelInfo{Name: name, Members: make([]string, 0, len(ch.members))}
		for _, m := range ch.members {
			info.Members = append(info.Members, m.Name)
		}
		snap.Channels = append(snap.Channels, info)
	}
	return snap
}
