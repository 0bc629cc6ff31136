package tcp

import (
	"errors"
	"io"
	"net"

	"github.com/fernwick/relaychat/internal/core"
	"github.com/fernwick/relaychat/internal/proto"
)

// readPump reads whatever bytes are available, feeds the connection's frame
// decoder, and forwards completed packets to the hub in arrival order. EOF,
// read errors, and framing errors all end in the hub's single disconnect
// path; packets completed before a framing error are still delivered.
func (s *Server) readPump(conn net.Conn, client *core.Client) {
	defer s.hub.Unregister(client)

	dec := proto.NewDecoder()
	buf := make([]byte, s.readBufSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			packets, ferr := dec.Feed(buf[:n])
			for _, pkt := range packets {
				s.hub.Deliver(client, pkt)
			}
			if ferr != nil {
				s.log.Warn().Err(ferr).Str("client_id", client.ID).Msg("framing error, dropping connection")
				return
			}
		}
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				if dec.MidFrame() {
					s.log.Warn().Str("client_id", client.ID).Msg("stream truncated mid-frame")
				} else {
					s.log.Debug().Str("client_id", client.ID).Msg("peer closed connection")
				}
			case isClosed(err):
				// Closed by our own write pump or shutdown.
			default:
				s.log.Warn().Err(err).Str("client_id", client.ID).Msg("read error")
			}
			return
		}
	}
}

// writePump pops framed packets off the outbound queue and transmits them in
// order. The queue closing (the disconnect path) makes it close the socket,
// which in turn unblocks the read pump.
func (s *Server) writePump(conn net.Conn, client *core.Client) {
	defer conn.Close()

	for {
		packet, ok := client.Outbound.Pop()
		if !ok {
			return
		}
		if _, err := conn.Write(packet); err != nil {
			if !isClosed(err) {
				s.log.Warn().Err(err).Str("client_id", client.ID).Msg("write error")
			}
			s.hub.Unregister(client)
			return
		}
	}
}
