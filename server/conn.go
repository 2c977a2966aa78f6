package server

import (
	"context"
	"log"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"mychat/protocol"
)

// Conn owns one client socket. Writes go through an exclusive lock so that
// a handler reply and a concurrent fan-out notice never interleave on the
// wire; no ordering is promised across different connections.
type Conn struct {
	ID string

	netConn      net.Conn
	writeTimeout time.Duration

	// writeMu is held across the socket write and can therefore block for
	// up to writeTimeout. userID has its own guard so identity reads are
	// never queued behind a stalled peer.
	writeMu sync.Mutex

	idMu   sync.Mutex
	userID string

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func newConn(netConn net.Conn, writeTimeout time.Duration) *Conn {
	ctx, cancel := context.WithCancel(context.Background())
	return &Conn{
		ID:           uuid.NewString(),
		netConn:      netConn,
		writeTimeout: writeTimeout,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// UserID returns the bound user identity, empty before login.
func (c *Conn) UserID() string {
	c.idMu.Lock()
	defer c.idMu.Unlock()
	return c.userID
}

// bindUser sets the identity exactly once, by the login handler.
func (c *Conn) bindUser(userID string) {
	c.idMu.Lock()
	defer c.idMu.Unlock()
	if c.userID == "" {
		c.userID = userID
	}
}

// Context is canceled when the connection closes. Background work spawned
// on behalf of this connection (the AI relay) runs under it.
func (c *Conn) Context() context.Context {
	return c.ctx
}

// Send encodes and writes one packet. Safe for concurrent callers.
func (c *Conn) Send(pkt *protocol.Packet) error {
	frame, err := protocol.EncodeFrame(pkt)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.netConn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	_, err = c.netConn.Write(frame)
	return err
}

// send is Send with the error reduced to a log line, for fan-out paths
// where one slow or dead peer must not affect the others.
func (c *Conn) send(pkt *protocol.Packet) {
	if err := c.Send(pkt); err != nil {
		log.Printf("write to %s failed: %v", c.RemoteAddr(), err)
	}
}

func (c *Conn) RemoteAddr() string {
	return c.netConn.RemoteAddr().String()
}

// Close is idempotent: the receive loop, an eviction and an admin kick can
// all race to close the same connection.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.netConn.Close()
	})
}
