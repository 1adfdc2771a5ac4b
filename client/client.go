// Package client is the wire-level shim reference clients use to talk to
// the chat server: connect, send a Hello, and exchange framed commands
// and responses. It has no UI concerns; cmd/chat-client wraps it into a
// minimal command-line client.
package client

import (
	"fmt"
	"log/slog"
	"net"

	"github.com/brady131313/rschat/internal/connection"
	"github.com/brady131313/rschat/internal/frame"
	"github.com/brady131313/rschat/internal/protocol"
)

// Client is a single TCP connection to the chat server.
type Client struct {
	conn     *connection.Connection
	username string
}

// Connect dials addr and wraps the resulting TCP connection for framed
// command/response exchange. username is remembered so Hello can be
// called without repeating it.
func Connect(addr, username string) (*Client, error) {
	stream, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("client: connect: %w", err)
	}
	slog.Debug("client connected", "addr", stream.RemoteAddr())

	return &Client{
		conn:     connection.New(stream),
		username: username,
	}, nil
}

// Hello sends the stored username as a Hello command.
func (c *Client) Hello() error {
	return c.WriteCommand(protocol.Hello{Username: c.username})
}

// WriteCommand encodes and writes one Command frame.
func (c *Client) WriteCommand(cmd protocol.Command) error {
	data, err := protocol.MarshalCommand(cmd)
	if err != nil {
		return fmt.Errorf("client: marshal command: %w", err)
	}
	return c.conn.WriteFrame(frame.New(string(data)))
}

// ReadResponse blocks for the next framed Response.
func (c *Client) ReadResponse() (protocol.Response, error) {
	f, err := c.conn.ReadFrame()
	if err != nil {
		return nil, fmt.Errorf("client: read response: %w", err)
	}
	return protocol.UnmarshalResponse([]byte(f.Raw))
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
