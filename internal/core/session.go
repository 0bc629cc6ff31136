package core

import (
	"bytes"

	"github.com/rs/zerolog"

	"github.com/fernwick/relaychat/internal/proto"
)

// Dispatcher is the per-connection protocol state machine. A connection is
// either unauthenticated (only LOGIN accepted) or authenticated; the session
// ends only when the connection closes. Dispatch runs on the hub goroutine.
type Dispatcher struct {
	registry *Registry
	log      *zerolog.Logger
}

// NewDispatcher builds a dispatcher over the given registry.
func NewDispatcher(registry *Registry, logger *zerolog.Logger) *Dispatcher {
	return &Dispatcher{registry: registry, log: logger}
}

// Dispatch interprets one decoded packet from client c. It returns true when
// the packet requested connection teardown (LOGOUT); the caller then runs the
// disconnect path. Validation failures produce exactly one ERROR response and
// leave the connection open.
func (d *Dispatcher) Dispatch(c *Client, pkt proto.Packet) bool {
	if pkt.Cmd == proto.CmdLogin {
		d.login(c, string(pkt.Payload))
		return false
	}
	if !pkt.Cmd.Known() {
		d.respondError(c, pkt.Cmd, "Unrecognized command code")
		return false
	}
	if !c.Authenticated {
		d.respondError(c, pkt.Cmd, "Command not valid before login")
		return false
	}

	switch pkt.Cmd {
	case proto.CmdLogout:
		return true
	case proto.CmdAddChannel:
		d.addChannel(c, string(pkt.Payload))
	case proto.CmdJoinChannel:
		d.joinChannel(c, string(pkt.Payload))
	case proto.CmdLeaveChannel:
		d.leaveChannel(c, string(pkt.Payload))
	case proto.CmdListRooms:
		d.listRooms(c)
	case proto.CmdListUsers:
		d.listUsers(c, string(pkt.Payload))
	case proto.CmdMessage:
		d.message(c, pkt.Payload)
	}
	return false
}

func (d *Dispatcher) login(c *Client, name string) {
	if err := d.registry.Login(c, name); err != nil {
		d.log.Debug().Str("client_id", c.ID).Str("code", err.Code).Msg("login rejected")
		d.respondError(c, proto.CmdLogin, err.Message)
		return
	}
	d.log.Info().Str("client_id", c.ID).Str("user", c.Name).Msg("client logged in")
	d.respond(c, proto.CmdLogin, proto.RespOK, "")
}

func (d *Dispatcher) addChannel(c *Client, name string) {
	if err := d.registry.AddChannel(name); err != nil {
		d.respondError(c, proto.CmdAddChannel, err.Message)
		return
	}
	d.log.Info().Str("channel", name).Str("user", c.Name).Msg("channel created")
	d.respond(c, proto.CmdAddChannel, proto.RespOK, name)
	// The creator joins the channel it just created.
	d.joinChannel(c, name)
}

func (d *Dispatcher) joinChannel(c *Client, name string) {
	if err := d.registry.JoinChannel(c, name); err != nil {
		d.respondError(c, proto.CmdJoinChannel, err.Message)
		return
	}
	d.respond(c, proto.CmdJoinChannel, proto.RespOK, name)
}

func (d *Dispatcher) leaveChannel(c *Client, name string) {
	if err := d.registry.LeaveChannel(c, name); err != nil {
		d.respondError(c, proto.CmdLeaveChannel, err.Message)
		return
	}
	d.respond(c, proto.CmdLeaveChannel, proto.RespOK, name)
}

func (d *Dispatcher) listRooms(c *Client) {
	var body bytes.Buffer
	for _, name := range d.registry.ListRooms() {
		body.WriteString(name)
		body.WriteByte('\n')
	}
	d.respond(c, proto.CmdListRooms, proto.RespOK, body.String())
}

func (d *Dispatcher) listUsers(c *Client, name string) {
	users, err := d.registry.ListUsers(name)
	if err != nil {
		d.respondError(c, proto.CmdListUsers, err.Message)
		return
	}
	var body bytes.Buffer
	body.WriteString(name)
	body.WriteByte('\n')
	for _, u := range users {
		body.WriteString(u)
		body.WriteByte('\n')
	}
	d.respond(c, proto.CmdListUsers, proto.RespOK, body.String())
}

func (d *Dispatcher) message(c *Client, payload []byte) {
	name, text, ok := bytes.Cut(payload, []byte{'\n'})
	if !ok {
		d.respondError(c, proto.CmdMessage, "Malformed message payload")
		return
	}
	members, err := d.registry.ChannelMembers(string(name))
	if err != nil {
		d.respondError(c, proto.CmdMessage, err.Message)
		return
	}
	if len(text) == 0 {
		d.respondError(c, proto.CmdMessage, "Cannot send empty message")
		return
	}

	body := string(name) + "\n" + c.Name + "\n" + string(text)
	frame, encErr := proto.EncodeResponse(proto.CmdMessage, proto.RespOK, body)
	if encErr != nil {
		d.respondError(c, proto.CmdMessage, "Message too long")
		return
	}
	// Every member, sender included, receives the same broadcast frame in
	// join order.
	for _, m := range members {
		m.Outbound.Push(frame)
	}
}

func (d *Dispatcher) respond(c *Client, cmd proto.Command, code byte, body string) {
	frame, err := proto.EncodeResponse(cmd, code, body)
	if err != nil {
		// A response body outgrew the length field (a huge room or user
		// listing). Nothing valid can be framed, so the response is dropped.
		d.log.Error().Err(err).Str("client_id", c.ID).Stringer("cmd", cmd).Msg("response exceeds frame limit")
		return
	}
	c.Outbound.Push(frame)
}

func (d *Dispatcher) respondError(c *Client, cmd proto.Command, msg string) {
	d.respond(c, cmd, proto.RespError, msg)
}
