package client

import (
	"strings"

	"github.com/fernwick/relaychat/internal/proto"
)

// render prints one server packet. The payload's first byte is the response
// code; the rest is the body.
func (s *Session) render(pkt proto.Packet) {
	if len(pkt.Payload) == 0 {
		s.printf("Empty response from server for %s", pkt.Cmd)
		return
	}
	code := pkt.Payload[0]
	body := string(pkt.Payload[1:])
	failed := code != proto.RespOK

	switch pkt.Cmd {
	case proto.CmdLogin:
		if failed {
			s.printf("Login failure: %s", body)
			return
		}
		s.setLoggedIn()
		s.mu.Lock()
		server, user := s.server, s.username
		s.mu.Unlock()
		s.printf("Logged in to server %s as %s", server, user)

	case proto.CmdAddChannel:
		s.renderSimple(failed, "Add channel failure", "Successfully added channel", body)

	case proto.CmdJoinChannel:
		s.renderSimple(failed, "Join channel failure", "Successfully joined channel", body)

	case proto.CmdLeaveChannel:
		s.renderSimple(failed, "Leave channel failure", "Successfully left channel", body)

	case proto.CmdListRooms:
		if failed {
			s.printf("Error listing server rooms: %s", body)
			return
		}
		s.printf("Available rooms:")
		for _, room := range splitLines(body) {
			s.printf(">> %s", room)
		}

	case proto.CmdListUsers:
		if failed {
			s.printf("List users failure: %s", body)
			return
		}
		lines := splitLines(body)
		if len(lines) == 0 {
			return
		}
		s.printf("Users in channel %s:", lines[0])
		for _, user := range lines[1:] {
			s.printf(">> %s", user)
		}

	case proto.CmdMessage:
		if failed {
			s.printf("Send message failure: %s", body)
			return
		}
		parts := strings.SplitN(body, "\n", 3)
		if len(parts) < 3 {
			s.printf("Malformed message from server: %q", body)
			return
		}
		s.printf("[%s]>>>(%s) %s", parts[0], parts[1], parts[2])

	default:
		s.printf("Unexpected command received from server: %s", pkt.Cmd)
	}
}

func (s *Session) renderSimple(failed bool, failPrefix, okPrefix, body string) {
	if failed {
		s.printf("%s: %s", failPrefix, body)
		return
	}
	s.printf("%s: %s", okPrefix, body)
}

func splitLines(body string) []string {
	var lines []string
	for _, line := range strings.Split(body, "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
