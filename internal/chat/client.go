// Package chat manages the per-connection transport: line-oriented reads and
// the buffered outbound pump shared by the TCP and WebSocket endpoints.
package chat

import (
	"bufio"
	"log"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// transport abstracts one client connection as a sequence of inbound text
// lines and outbound byte payloads. ReadLine blocks until a line, EOF, or
// error; a line is delimited by a newline or by the read buffer filling up.
type transport interface {
	ReadLine() (string, error)
	WriteMessage(payload []byte) error
	RemoteAddr() string
	Close() error
}

// client owns the outbound half of a connection: a buffered send channel
// drained by a write pump goroutine. Deliver never blocks, so a slow
// recipient costs the sender nothing; once the buffer is full, payloads for
// that recipient are dropped.
type client struct {
	conn transport
	send chan []byte

	mu     sync.Mutex
	closed bool
}

func newClient(conn transport) *client {
	return &client{
		conn: conn,
		send: make(chan []byte, 256),
	}
}

// Deliver queues a payload for the write pump. It reports false when the
// client is closed or its buffer is full.
func (c *client) Deliver(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// Close marks the client closed, releases the write pump, and closes the
// underlying transport. Safe to call more than once.
func (c *client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()

	return c.conn.Close()
}

// writePump drains the send channel onto the transport. It exits when the
// channel is closed or a write fails.
func (c *client) writePump() {
	for payload := range c.send {
		if err := c.conn.WriteMessage(payload); err != nil {
			if !isExpectedCloseError(err) {
				log.Printf("Error writing to %s: %v", c.conn.RemoteAddr(), err)
			}
			return
		}
	}
}

// tcpTransport frames a raw TCP stream into lines. A line ends at a newline
// or, for oversized input, at the read buffer boundary.
type tcpTransport struct {
	conn   net.Conn
	reader *bufio.Reader
}

func newTCPTransport(conn net.Conn, maxMessageSize int64) *tcpTransport {
	if maxMessageSize <= 0 {
		maxMessageSize = 2048
	}
	return &tcpTransport{
		conn:   conn,
		reader: bufio.NewReaderSize(conn, int(maxMessageSize)),
	}
}

func (t *tcpTransport) ReadLine() (string, error) {
	// ReadLine hands back a full buffer as its own chunk when no newline
	// fits, which is exactly the boundary-delimited framing we want.
	line, _, err := t.reader.ReadLine()
	if err != nil {
		return "", err
	}
	return string(line), nil
}

func (t *tcpTransport) WriteMessage(payload []byte) error {
	if err := t.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	_, err := t.conn.Write(payload)
	return err
}

func (t *tcpTransport) RemoteAddr() string {
	return t.conn.RemoteAddr().String()
}

func (t *tcpTransport) Close() error {
	return t.conn.Close()
}

// wsTransport adapts a WebSocket connection to the same line protocol: each
// text frame is one line.
type wsTransport struct {
	conn *websocket.Conn
}

func newWSTransport(conn *websocket.Conn, maxMessageSize int64) *wsTransport {
	if conn != nil && maxMessageSize > 0 {
		conn.SetReadLimit(maxMessageSize)
	}
	return &wsTransport{conn: conn}
}

func (t *wsTransport) ReadLine() (string, error) {
	_, payload, err := t.conn.ReadMessage()
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(payload), "\r\n"), nil
}

func (t *wsTransport) WriteMessage(payload []byte) error {
	if err := t.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return t.conn.WriteMessage(websocket.TextMessage, payload)
}

func (t *wsTransport) RemoteAddr() string {
	return t.conn.RemoteAddr().String()
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
