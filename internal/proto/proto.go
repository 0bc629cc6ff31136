// Package proto implements the relaychat wire protocol: a packet is one
// command code byte, five zero-padded ASCII decimal digits giving the payload
// length, then the payload itself. Server responses reuse the triggering
// command code and prefix the payload with a single response code byte.
package proto

import (
	"errors"
	"fmt"
)

// Command identifies a wire packet type. On the wire it is a single ASCII
// digit byte; unknown bytes still decode as frames and are rejected by the
// dispatcher, not the framer.
type Command byte

const (
	CmdLogin        Command = '1'
	CmdLogout       Command = '2'
	CmdAddChannel   Command = '3'
	CmdJoinChannel  Command = '4'
	CmdLeaveChannel Command = '5'
	CmdListRooms    Command = '6'
	CmdListUsers    Command = '7'
	CmdMessage      Command = '8'
)

// Response code byte, first byte of a server-to-client payload.
const (
	RespOK    byte = '0'
	RespError byte = '4'
)

const (
	lengthDigits = 5
	headerLen    = 1 + lengthDigits

	// MaxPayload is the largest payload expressible in the five-digit
	// length field while leaving room for a response code byte.
	MaxPayload = 99998
)

// ErrPayloadTooLarge is returned by Encode when the payload exceeds MaxPayload.
var ErrPayloadTooLarge = errors.New("payload too large")

// Known reports whether c is part of the protocol's command set.
func (c Command) Known() bool {
	return c >= CmdLogin && c <= CmdMessage
}

func (c Command) String() string {
	switch c {
	case CmdLogin:
		return "LOGIN"
	case CmdLogout:
		return "LOGOUT"
	case CmdAddChannel:
		return "ADD_CHANNEL"
	case CmdJoinChannel:
		return "JOIN_CHANNEL"
	case CmdLeaveChannel:
		return "LEAVE_CHANNEL"
	case CmdListRooms:
		return "LIST_ROOMS"
	case CmdListUsers:
		return "LIST_USERS"
	case CmdMessage:
		return "MESSAGE"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02x)", byte(c))
	}
}

// Packet is one fully assembled wire frame.
type Packet struct {
	Cmd     Command
	Payload []byte
}

// Encode frames a command and payload for transmission.
func Encode(cmd Command, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}

	buf := make([]byte, headerLen+len(payload))
	buf[0] = byte(cmd)
	n := len(payload)
	for i := lengthDigits; i >= 1; i-- {
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	copy(buf[headerLen:], payload)
	return buf, nil
}

// EncodeResponse frames a server-to-client packet: the payload is the
// response code byte followed by the message body.
func EncodeResponse(cmd Command, code byte, body string) ([]byte, error) {
	payload := make([]byte, 0, 1+len(body))
	payload = append(payload, code)
	payload = append(payload, body...)
	return Encode(cmd, payload)
}
