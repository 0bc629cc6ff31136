// Package client implements the interactive terminal client: a thin adapter
// that maps textual /commands onto wire packets and renders server responses.
package client

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/fernwick/relaychat/internal/proto"
)

// Session holds the client's connection state. The REPL goroutine issues
// commands; a read pump renders server packets as they arrive.
type Session struct {
	out io.Writer

	mu       sync.Mutex
	conn     net.Conn
	loggedIn bool
	server   string
	username string
}

// NewSession builds a disconnected session writing output to out.
func NewSession(out io.Writer) *Session {
	return &Session{out: out}
}

// Run reads commands from in until /quit or end of input.
func (s *Session) Run(in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if quit := s.handleInput(line); quit {
			return nil
		}
	}
	return scanner.Err()
}

func (s *Session) handleInput(line string) (quit bool) {
	command, rest, _ := strings.Cut(line, " ")
	command = strings.ToLower(command)
	rest = strings.TrimSpace(rest)

	if command == "/quit" {
		s.printf("Quitting...")
		s.disconnect()
		return true
	}

	if !s.isLoggedIn() && command != "/login" {
		s.printf("Command not valid before login")
		return false
	}

	switch command {
	case "/login":
		s.login(rest)
	case "/logout":
		s.logout()
	case "/add":
		s.sendNamed(proto.CmdAddChannel, "/add", rest)
	case "/join":
		s.sendNamed(proto.CmdJoinChannel, "/join", rest)
	case "/leave":
		s.sendNamed(proto.CmdLeaveChannel, "/leave", rest)
	case "/rooms":
		s.send(proto.CmdListRooms, "")
	case "/users":
		s.sendNamed(proto.CmdListUsers, "/users", rest)
	case "/message":
		s.message(rest)
	default:
		s.printf("Unknown command issued: %s", command)
	}
	return false
}

func (s *Session) login(args string) {
	if s.isLoggedIn() {
		s.printf("Already logged into server: %s", s.server)
		return
	}

	fields := strings.Fields(args)
	if len(fields) < 3 {
		s.printf("Missing arguments on /login command")
		return
	}
	host, port, name := fields[0], fields[1], fields[2]

	addr := net.JoinHostPort(host, port)
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		s.printf("Could not connect to %s: %v", addr, err)
		return
	}

	s.mu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.conn = conn
	s.server = addr
	s.username = name
	s.mu.Unlock()

	go s.readPump(conn)
	s.send(proto.CmdLogin, name)
}

func (s *Session) logout() {
	s.send(proto.CmdLogout, "")
	s.disconnect()
	s.printf("Disconnected from server")
}

func (s *Session) sendNamed(cmd proto.Command, verb, name string) {
	if name == "" {
		s.printf("Missing arguments on %s command", verb)
		return
	}
	s.send(cmd, name)
}

func (s *Session) message(args string) {
	channel, text, ok := strings.Cut(args, " ")
	if !ok || strings.TrimSpace(text) == "" {
		s.printf("Missing arguments on /message")
		return
	}
	s.send(proto.CmdMessage, channel+"\n"+text)
}

func (s *Session) send(cmd proto.Command, payload string) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		s.printf("Not connected")
		return
	}

	frame, err := proto.Encode(cmd, []byte(payload))
	if err != nil {
		s.printf("Message too long")
		return
	}
	if _, err := conn.Write(frame); err != nil {
		s.printf("Connection encountered an error...Login again")
		s.disconnect()
	}
}

func (s *Session) readPump(conn net.Conn) {
	dec := proto.NewDecoder()
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			packets, ferr := dec.Feed(buf[:n])
			for _, pkt := range packets {
				s.render(pkt)
			}
			if ferr != nil {
				s.printf("Connection encountered an error...Login again")
				s.disconnect()
				return
			}
		}
		if err != nil {
			if err == io.EOF {
				s.printf("Server disconnected")
			}
			s.disconnect()
			return
		}
	}
}

func (s *Session) disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.loggedIn = false
}

func (s *Session) isLoggedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loggedIn
}

func (s *Session) setLoggedIn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loggedIn = true
}

func (s *Session) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format+"\n", args...)
}
