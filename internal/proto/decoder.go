package proto

import (
	"errors"
	"fmt"
)

// ErrFraming marks a malformed byte stream. Framing errors are fatal to the
// connection they occur on.
var ErrFraming = errors.New("framing error")

type decodeState int

const (
	awaitCode decodeState = iota
	awaitLength
	awaitBody
)

// Decoder incrementally assembles packets from a byte stream. Bytes may
// arrive in arbitrary chunks; partial frames are buffered until completed by
// a later Feed. One Decoder serves exactly one connection.
type Decoder struct {
	state decodeState
	buf   []byte
	cmd   Command
	need  int
}

// NewDecoder returns a decoder ready for the start of a stream.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends newly arrived bytes and returns every packet that is now
// complete, in arrival order. A non-numeric length field returns an error
// wrapping ErrFraming; the decoder is then unusable and the connection must
// be torn down. Packets completed before the bad frame are still returned.
func (d *Decoder) Feed(data []byte) ([]Packet, error) {
	d.buf = append(d.buf, data...)

	var packets []Packet
	for {
		switch d.state {
		case awaitCode:
			if len(d.buf) < 1 {
				return packets, nil
			}
			d.cmd = Command(d.buf[0])
			d.buf = d.buf[1:]
			d.state = awaitLength

		case awaitLength:
			if len(d.buf) < lengthDigits {
				return packets, nil
			}
			n := 0
			for _, b := range d.buf[:lengthDigits] {
				if b < '0' || b > '9' {
					return packets, fmt.Errorf("%w: non-numeric length field %q", ErrFraming, d.buf[:lengthDigits])
				}
				n = n*10 + int(b-'0')
			}
			d.buf = d.buf[lengthDigits:]
			d.need = n
			d.state = awaitBody

		case awaitBody:
			if len(d.buf) < d.need {
				return packets, nil
			}
			payload := make([]byte, d.need)
			copy(payload, d.buf[:d.need])
			d.buf = d.buf[d.need:]
			packets = append(packets, Packet{Cmd: d.cmd, Payload: payload})
			d.state = awaitCode
		}
	}
}

// MidFrame reports whether the decoder is holding a partial frame. End of
// stream while mid-frame means the peer truncated a packet.
func (d *Decoder) MidFrame() bool {
	return d.state != awaitCode || len(d.buf) > 0
}
