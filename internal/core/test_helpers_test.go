package core

import (
	"context"
	"testing"
	"time"

	"github.com/fernwick/relaychat/internal/log"
	"github.com/fernwick/relaychat/internal/proto"
)

// response is a decoded server-to-client packet.
type response struct {
	cmd  proto.Command
	code byte
	body string
}

// mustResponse pops the next framed packet off a client's outbound queue and
// decodes it, failing the test after a timeout.
func mustResponse(t *testing.T, c *Client) response {
	t.Helper()

	popped := make(chan []byte, 1)
	go func() {
		if frame, ok := c.Outbound.Pop(); ok {
			popped <- frame
		}
		close(popped)
	}()

	select {
	case frame, ok := <-popped:
		if !ok {
			t.Fatal("outbound queue closed while waiting for a response")
		}
		return decodeResponse(t, frame)
	case <-time.After(2 * time.Second):
		t.Fatal("no response within timeout")
		return response{}
	}
}

// mustClosed waits for a client's outbound queue to be closed.
func mustClosed(t *testing.T, c *Client) {
	t.Helper()

	done := make(chan bool, 1)
	go func() {
		_, ok := c.Outbound.Pop()
		done <- ok
	}()
	select {
	case ok := <-done:
		if ok {
			t.Fatal("expected the queue to close, got a packet")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("queue did not close within timeout")
	}
}

func decodeResponse(t *testing.T, frame []byte) response {
	t.Helper()

	packets, err := proto.NewDecoder().Feed(frame)
	if err != nil {
		t.Fatalf("decode response frame: %v", err)
	}
	if len(packets) != 1 {
		t.Fatalf("frame decoded to %d packets, want 1", len(packets))
	}
	pkt := packets[0]
	if len(pkt.Payload) == 0 {
		t.Fatalf("response packet has no response code byte: %+v", pkt)
	}
	return response{cmd: pkt.Cmd, code: pkt.Payload[0], body: string(pkt.Payload[1:])}
}

func expectOK(t *testing.T, c *Client, cmd proto.Command, body string) {
	t.Helper()
	resp := mustResponse(t, c)
	if resp.cmd != cmd || resp.code != proto.RespOK || resp.body != body {
		t.Fatalf("got %+v, want cmd=%s code=OK body=%q", resp, cmd, body)
	}
}

func expectError(t *testing.T, c *Client, cmd proto.Command, body string) {
	t.Helper()
	resp := mustResponse(t, c)
	if resp.cmd != cmd || resp.code != proto.RespError || resp.body != body {
		t.Fatalf("got %+v, want cmd=%s code=ERROR body=%q", resp, cmd, body)
	}
}

func packet(t *testing.T, cmd proto.Command, payload string) proto.Packet {
	t.Helper()
	return proto.Packet{Cmd: cmd, Payload: []byte(payload)}
}

// startHub runs a hub for the duration of the test.
func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(log.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

// registered creates a client and registers it with the hub.
func registered(t *testing.T, hub *Hub, id string) *Client {
	t.Helper()
	c := NewClient(id, "127.0.0.1:9999")
	hub.Register(c)
	return c
}

// loginOK drives a LOGIN through the hub and consumes the OK response.
func loginOK(t *testing.T, hub *Hub, c *Client, name string) {
	t.Helper()
	hub.Deliver(c, packet(t, proto.CmdLogin, name))
	expectOK(t, c, proto.CmdLogin, "")
}
