package tcp

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/fernwick/relaychat/internal/core"
	"github.com/fernwick/relaychat/internal/log"
	"github.com/fernwick/relaychat/internal/proto"
)

func startTestServer(t *testing.T) (*core.Hub, string, func()) {
	t.Helper()
	logger := log.Nop()
	hub := core.NewHub(logger)

	ctx, cancel := context.WithCancel(context.Background())
	hubDone := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(hubDone)
	}()

	srv := NewServer("127.0.0.1:0", 0, hub, logger)
	if err := srv.Listen(); err != nil {
		cancel()
		<-hubDone
		t.Fatalf("listen: %v", err)
	}
	serveDone := make(chan struct{})
	go func() {
		srv.Serve(ctx)
		close(serveDone)
	}()

	stop := func() {
		cancel()
		<-serveDone
		<-hubDone
	}
	return hub, srv.Addr().String(), stop
}

// wireClient speaks the framed protocol over a real socket.
type wireClient struct {
	t       *testing.T
	conn    net.Conn
	dec     *proto.Decoder
	pending []proto.Packet
}

func dialWire(t *testing.T, addr string) *wireClient {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial %s: %v", addr, err)
	}
	return &wireClient{t: t, conn: conn, dec: proto.NewDecoder()}
}

func (c *wireClient) send(cmd proto.Command, payload string) {
	c.t.Helper()
	frame, err := proto.Encode(cmd, []byte(payload))
	if err != nil {
		c.t.Fatalf("encode: %v", err)
	}
	if _, err := c.conn.Write(frame); err != nil {
		c.t.Fatalf("write: %v", err)
	}
}

func (c *wireClient) sendRaw(data []byte) {
	c.t.Helper()
	if _, err := c.conn.Write(data); err != nil {
		c.t.Fatalf("write raw: %v", err)
	}
}

func (c *wireClient) recv() proto.Packet {
	c.t.Helper()
	buf := make([]byte, 4096)
	for len(c.pending) == 0 {
		c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		n, err := c.conn.Read(buf)
		if err != nil {
			c.t.Fatalf("read: %v", err)
		}
		packets, ferr := c.dec.Feed(buf[:n])
		if ferr != nil {
			c.t.Fatalf("decode: %v", ferr)
		}
		c.pending = append(c.pending, packets...)
	}
	pkt := c.pending[0]
	c.pending = c.pending[1:]
	return pkt
}

func (c *wireClient) expect(cmd proto.Command, code byte, body string) {
	c.t.Helper()
	pkt := c.recv()
	if pkt.Cmd != cmd || len(pkt.Payload) == 0 || pkt.Payload[0] != code || string(pkt.Payload[1:]) != body {
		c.t.Fatalf("got cmd=%s payload=%q, want cmd=%s code=%c body=%q", pkt.Cmd, pkt.Payload, cmd, code, body)
	}
}

// expectClosed waits for the server to close the connection.
func (c *wireClient) expectClosed() {
	c.t.Helper()
	buf := make([]byte, 64)
	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, err := c.conn.Read(buf); err != nil {
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				c.t.Fatal("server did not close the connection")
			}
			return
		}
	}
}

func (c *wireClient) close() {
	c.conn.Close()
}

func waitForStats(t *testing.T, hub *core.Hub, ok func(core.Snapshot) bool) core.Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	var snap core.Snapshot
	for time.Now().Before(deadline) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		s, err := hub.Stats(ctx)
		cancel()
		if err == nil {
			snap = s
			if ok(s) {
				return s
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("hub state never converged, last snapshot: %+v", snap)
	return snap
}

func TestServerLoginAndBroadcast(t *testing.T) {
	defer goleak.VerifyNone(t)

	_, addr, stop := startTestServer(t)
	defer stop()

	alice := dialWire(t, addr)
	defer alice.close()
	bob := dialWire(t, addr)
	defer bob.close()

	alice.send(proto.CmdLogin, "alice")
	alice.expect(proto.CmdLogin, proto.RespOK, "")
	bob.send(proto.CmdLogin, "bob")
	bob.expect(proto.CmdLogin, proto.RespOK, "")

	alice.send(proto.CmdAddChannel, "general")
	alice.expect(proto.CmdAddChannel, proto.RespOK, "general")
	alice.expect(proto.CmdJoinChannel, proto.RespOK, "general")

	bob.send(proto.CmdJoinChannel, "general")
	bob.expect(proto.CmdJoinChannel, proto.RespOK, "general")

	alice.send(proto.CmdMessage, "general\nhello")
	alice.expect(proto.CmdMessage, proto.RespOK, "general\nalice\nhello")
	bob.expect(proto.CmdMessage, proto.RespOK, "general\nalice\nhello")

	bob.send(proto.CmdListUsers, "general")
	bob.expect(proto.CmdListUsers, proto.RespOK, "general\nalice\nbob\n")
}

func TestServerRejectsCommandsBeforeLogin(t *testing.T) {
	defer goleak.VerifyNone(t)

	_, addr, stop := startTestServer(t)
	defer stop()

	c := dialWire(t, addr)
	defer c.close()

	c.send(proto.CmdListRooms, "")
	c.expect(proto.CmdListRooms, proto.RespError, "Command not valid before login")

	// Still able to log in afterwards.
	c.send(proto.CmdLogin, "carol")
	c.expect(proto.CmdLogin, proto.RespOK, "")
}

func TestServerSplitFrames(t *testing.T) {
	defer goleak.VerifyNone(t)

	_, addr, stop := startTestServer(t)
	defer stop()

	c := dialWire(t, addr)
	defer c.close()

	// Deliver a LOGIN frame one byte at a time.
	frame, err := proto.Encode(proto.CmdLogin, []byte("dave"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	for _, b := range frame {
		c.sendRaw([]byte{b})
		time.Sleep(time.Millisecond)
	}
	c.expect(proto.CmdLogin, proto.RespOK, "")
}

func TestServerFramingErrorDropsConnection(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub, addr, stop := startTestServer(t)
	defer stop()

	c := dialWire(t, addr)
	defer c.close()

	c.send(proto.CmdLogin, "eve")
	c.expect(proto.CmdLogin, proto.RespOK, "")
	waitForStats(t, hub, func(s core.Snapshot) bool { return s.Connections == 1 })

	// Garbage length field: fatal to this connection only.
	c.sendRaw([]byte("1abcde"))
	c.expectClosed()

	waitForStats(t, hub, func(s core.Snapshot) bool { return s.Connections == 0 })
}

func TestServerLogoutClosesConnection(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub, addr, stop := startTestServer(t)
	defer stop()

	c := dialWire(t, addr)
	defer c.close()

	c.send(proto.CmdLogin, "frank")
	c.expect(proto.CmdLogin, proto.RespOK, "")

	c.send(proto.CmdLogout, "")
	c.expectClosed()

	waitForStats(t, hub, func(s core.Snapshot) bool { return s.Connections == 0 })
}

// A dropped connection that belonged to two channels is scrubbed from both;
// the channel left empty disappears.
func TestServerDisconnectCleanup(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub, addr, stop := startTestServer(t)
	defer stop()

	alice := dialWire(t, addr)
	bob := dialWire(t, addr)
	defer bob.close()

	alice.send(proto.CmdLogin, "alice")
	alice.expect(proto.CmdLogin, proto.RespOK, "")
	bob.send(proto.CmdLogin, "bob")
	bob.expect(proto.CmdLogin, proto.RespOK, "")

	alice.send(proto.CmdAddChannel, "shared")
	alice.expect(proto.CmdAddChannel, proto.RespOK, "shared")
	alice.expect(proto.CmdJoinChannel, proto.RespOK, "shared")
	alice.send(proto.CmdAddChannel, "solo")
	alice.expect(proto.CmdAddChannel, proto.RespOK, "solo")
	alice.expect(proto.CmdJoinChannel, proto.RespOK, "solo")

	bob.send(proto.CmdJoinChannel, "shared")
	bob.expect(proto.CmdJoinChannel, proto.RespOK, "shared")

	// Abrupt close: the server sees a zero-byte read.
	alice.close()

	snap := waitForStats(t, hub, func(s core.Snapshot) bool {
		return s.Connections == 1 && len(s.Channels) == 1
	})
	if snap.Channels[0].Name != "shared" {
		t.Fatalf("surviving channel = %q, want shared", snap.Channels[0].Name)
	}
	if len(snap.Channels[0].Members) != 1 || snap.Channels[0].Members[0] != "bob" {
		t.Fatalf("shared members = %v, want [bob]", snap.Channels[0].Members)
	}

	bob.send(proto.CmdListRooms, "")
	bob.expect(proto.CmdListRooms, proto.RespOK, "shared\n")
}

func TestServerDuplicateUsername(t *testing.T) {
	defer goleak.VerifyNone(t)

	_, addr, stop := startTestServer(t)
	defer stop()

	first := dialWire(t, addr)
	defer first.close()
	second := dialWire(t, addr)
	defer second.close()

	first.send(proto.CmdLogin, "grace")
	first.expect(proto.CmdLogin, proto.RespOK, "")

	second.send(proto.CmdLogin, "grace")
	second.expect(proto.CmdLogin, proto.RespError, "Username grace is already taken")
}
