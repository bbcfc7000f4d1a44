// Package ws provides the WebSocket transport built on gobwas/ws.
package ws

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/omochice/stranger-chat/internal/transport"
)

// Conn adapts a gobwas WebSocket to transport.Conn.
// The same type serves both ends; the side decides frame masking.
type Conn struct {
	conn      net.Conn
	rw        io.ReadWriter
	state     ws.State
	wmu       sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

var _ transport.Conn = (*Conn)(nil)

// Dial opens a client WebSocket connection to url.
func Dial(ctx context.Context, url string) (*Conn, error) {
	conn, br, _, err := ws.Dial(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}
	return newConn(conn, br, ws.StateClientSide), nil
}

// Upgrade accepts a server-side WebSocket connection from an HTTP request.
func Upgrade(w http.ResponseWriter, r *http.Request) (*Conn, error) {
	conn, rw, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}
	var br *bufio.Reader
	if rw != nil {
		br = rw.Reader
	}
	return newConn(conn, br, ws.StateServerSide), nil
}

// newConn keeps any bytes buffered during the handshake ahead of the socket.
// Control replies written while reading share the data-frame write lock.
func newConn(conn net.Conn, br *bufio.Reader, state ws.State) *Conn {
	c := &Conn{conn: conn, state: state}
	var r io.Reader = conn
	if br != nil {
		r = br
	}
	c.rw = struct {
		io.Reader
		io.Writer
	}{r, lockedWriter{c}}
	return c
}

type lockedWriter struct{ c *Conn }

func (w lockedWriter) Write(p []byte) (int, error) {
	w.c.wmu.Lock()
	defer w.c.wmu.Unlock()
	return w.c.conn.Write(p)
}

// Read implements transport.Conn.
// Control frames are answered internally; only binary data is returned.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	if err := c.conn.SetReadDeadline(deadline(ctx)); err != nil {
		return nil, err
	}
	if c.state.ClientSide() {
		return wsutil.ReadServerBinary(c.rw)
	}
	return wsutil.ReadClientBinary(c.rw)
}

// Write implements transport.Conn.
func (c *Conn) Write(ctx context.Context, data []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := c.conn.SetWriteDeadline(deadline(ctx)); err != nil {
		return err
	}
	if c.state.ClientSide() {
		return wsutil.WriteClientBinary(c.conn, data)
	}
	return wsutil.WriteServerBinary(c.conn, data)
}

// Close implements transport.Conn.
// A close frame is sent on a best-effort basis before the socket is released.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		// bounds any write still holding the lock
		_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
		c.wmu.Lock()
		defer c.wmu.Unlock()
		if c.state.ClientSide() {
			_ = wsutil.WriteClientMessage(c.conn, ws.OpClose, nil)
		} else {
			_ = wsutil.WriteServerMessage(c.conn, ws.OpClose, nil)
		}
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// RemoteAddr implements transport.Conn.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// deadline turns a context deadline into a socket deadline; zero means none.
func deadline(ctx context.Context) time.Time {
	if ctx == nil {
		return time.Time{}
	}
	dl, _ := ctx.Deadline()
	return dl
}
