// Package connection wraps a byte stream with the frame codec, presenting
// whole frames in and out.
package connection

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/brady131313/rschat/internal/frame"
)

// ErrConnectionReset means the peer closed the stream in the middle of a
// frame, as opposed to a clean EOF between frames.
var ErrConnectionReset = errors.New("connection: reset by peer")

// readBufferCapacity is the initial capacity of the inbound buffer; it
// grows on demand for larger frames.
const readBufferCapacity = 16 * 1024

// Connection is owned by exactly one caller at a time: it is not safe for
// concurrent reads, nor for concurrent writes, though one reader and one
// writer may run concurrently with each other.
type Connection struct {
	conn net.Conn
	w    *bufio.Writer

	buf []byte // unparsed bytes read from conn, buf[:n] is valid
	n   int
}

// New wraps conn for frame-oriented reads and writes.
func New(conn net.Conn) *Connection {
	return &Connection{
		conn: conn,
		w:    bufio.NewWriter(conn),
		buf:  make([]byte, readBufferCapacity),
	}
}

// ReadFrame returns the next whole frame. It returns io.EOF when the peer
// closed the connection cleanly between frames, or ErrConnectionReset if
// the stream ended in the middle of one.
func (c *Connection) ReadFrame() (frame.Frame, error) {
	for {
		if f, consumed, err := frame.Parse(c.buf[:c.n]); err == nil {
			c.discard(consumed)
			return f, nil
		} else if !errors.Is(err, frame.ErrIncomplete) {
			return frame.Frame{}, fmt.Errorf("connection: %w", err)
		}

		if err := c.fill(); err != nil {
			if errors.Is(err, io.EOF) {
				if c.n == 0 {
					return frame.Frame{}, io.EOF
				}
				return frame.Frame{}, ErrConnectionReset
			}
			return frame.Frame{}, err
		}
	}
}

// fill reads at least one more byte from the underlying stream, growing
// the buffer if it's already full.
func (c *Connection) fill() error {
	if c.n == len(c.buf) {
		grown := make([]byte, len(c.buf)*2)
		copy(grown, c.buf[:c.n])
		c.buf = grown
	}

	read, err := c.conn.Read(c.buf[c.n:])
	c.n += read
	if read > 0 {
		return nil
	}
	return err
}

// discard drops the first n bytes of the buffer, shifting the remainder
// to the front.
func (c *Connection) discard(n int) {
	remaining := c.n - n
	copy(c.buf, c.buf[n:c.n])
	c.n = remaining
}

// WriteFrame writes f and flushes so small messages are never starved
// behind the buffered writer.
func (c *Connection) WriteFrame(f frame.Frame) error {
	if _, err := c.w.Write(f.Encode()); err != nil {
		return fmt.Errorf("connection: write: %w", err)
	}
	if err := c.w.Flush(); err != nil {
		return fmt.Errorf("connection: flush: %w", err)
	}
	return nil
}

// Close closes the underlying stream.
func (c *Connection) Close() error {
	return c.conn.Close()
}

// RemoteAddr returns the transport address of the other end.
func (c *Connection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
