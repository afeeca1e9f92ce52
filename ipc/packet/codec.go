// Package packet implements the control socket's framed packet codec: a
// 4-byte big-endian length prefix followed by a JSON body, carrying
// either a request ({"method", "data"}) or a response ({"status",
// "data"}).
package packet

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"golang.org/x/sys/unix"
)

// Readiness is the state of a Stream's decoder after a read attempt.
type Readiness int

const (
	// Pending means not enough bytes have arrived yet for a full frame.
	Pending Readiness = iota
	// Ready means a full frame was decoded.
	Ready
)

// Request is one decoded control-socket request.
type Request struct {
	Method string
	Data   json.RawMessage
}

// Stream is a control socket's readiness decoder, matching the
// {Pending, Ready(method, data)} states: it owns a read buffer across
// calls, accumulating bytes until a complete length-prefixed frame is
// available.
type Stream struct {
	fd  int
	buf []byte
}

// NewStream wraps an already-accepted control socket file descriptor.
func NewStream(fd int) *Stream { return &Stream{fd: fd} }

// FD returns the underlying file descriptor, for kqueue registration and
// as the registry key used by the event loop's control-streams map.
func (s *Stream) FD() int { return s.fd }

// Close closes the underlying socket.
func (s *Stream) Close() error { return unix.Close(s.fd) }

// TryGetRequest reads up to n newly-available bytes (as reported by the
// socket-readable event) and attempts to decode one frame. It may return
// Pending having consumed bytes into its internal buffer, or Ready with
// exactly one decoded request — any extra bytes belonging to a
// subsequent frame are kept buffered for the next call.
func (s *Stream) TryGetRequest(n int) (Readiness, Request, error) {
	chunk := make([]byte, n)
	read, err := unix.Read(s.fd, chunk)
	if err != nil {
		return Pending, Request{}, fmt.Errorf("packet: read: %w", err)
	}
	s.buf = append(s.buf, chunk[:read]...)

	if len(s.buf) < 4 {
		return Pending, Request{}, nil
	}
	length := binary.BigEndian.Uint32(s.buf[:4])
	if uint32(len(s.buf)-4) < length {
		return Pending, Request{}, nil
	}

	body := append([]byte(nil), s.buf[4:4+length]...)
	s.buf = s.buf[4+length:]

	var wire struct {
		Method string          `json:"method"`
		Data   json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return Pending, Request{}, fmt.Errorf("packet: decode frame: %w", err)
	}
	return Ready, Request{Method: wire.Method, Data: wire.Data}, nil
}

// WriteFrame writes one length-prefixed JSON frame to fd.
func WriteFrame(fd int, body interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("packet: encode frame: %w", err)
	}
	var framed bytes.Buffer
	if err := binary.Write(&framed, binary.BigEndian, uint32(len(data))); err != nil {
		return err
	}
	framed.Write(data)
	if _, err := unix.Write(fd, framed.Bytes()); err != nil {
		return fmt.Errorf("packet: write: %w", err)
	}
	return nil
}

// ReadFrame reads exactly one length-prefixed JSON frame from fd,
// blocking until it has arrived. Used by ipc/client, which does not need
// the incremental Pending/Ready decoding the event loop requires.
func ReadFrame(fd int, out interface{}) error {
	var lenBuf [4]byte
	if err := readFull(fd, lenBuf[:]); err != nil {
		return fmt.Errorf("packet: read length prefix: %w", err)
	}
	length := binary.BigEndian.Uint32(lenBuf[:])
	body := make([]byte, length)
	if err := readFull(fd, body); err != nil {
		return fmt.Errorf("packet: read body: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("packet: decode: %w", err)
	}
	return nil
}

func readFull(fd int, buf []byte) error {
	for len(buf) > 0 {
		n, err := unix.Read(fd, buf)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("packet: unexpected eof")
		}
		buf = buf[n:]
	}
	return nil
}
