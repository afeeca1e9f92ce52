// Package client is a small control-protocol client: it connects to a
// container's control socket, retrying with backoff since the daemon
// may not have the listener up yet, and speaks the framed
// request/response protocol.
package client

import (
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"golang.org/x/sys/unix"

	"github.com/xcjail/xc/ipc/proto"
)

// Client is a connection to one container's control socket.
type Client struct {
	fd int
}

// Dial connects to the unix socket at path, retrying with exponential
// backoff for up to 5 seconds — the daemon front-end may still be
// setting up its listener when xcctl is invoked right after xcd starts.
func Dial(path string) (*Client, error) {
	var fd int
	connect := func() error {
		sock, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM, 0)
		if err != nil {
			return fmt.Errorf("client: socket: %w", err)
		}
		addr := &unix.SockaddrUnix{Name: path}
		if err := unix.Connect(sock, addr); err != nil {
			unix.Close(sock)
			return fmt.Errorf("client: connect %s: %w", path, err)
		}
		fd = sock
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 5 * time.Second
	if err := backoff.Retry(connect, b); err != nil {
		return nil, err
	}
	return &Client{fd: fd}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error { return unix.Close(c.fd) }

// Call sends a request and waits for its response, returning the
// decoded status and body.
func (c *Client) Call(method string, data interface{}) (status int, body interface{}, err error) {
	if err := proto.WriteRequest(c.fd, method, data); err != nil {
		return 0, nil, err
	}
	return proto.ReadResponse(c.fd)
}
