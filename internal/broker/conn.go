package broker

import (
	"log"
	"time"

	"github.com/technosupport/ts-signal/internal/session"
)

// Transport is the write side of one client connection. *websocket.Conn
// satisfies it directly; tests substitute an in-memory fake. Writes are
// fire-and-forget: a failed write is logged and never retried.
type Transport interface {
	WriteJSON(v interface{}) error
	Close() error
}

type connState int

const (
	stateUnauthenticated connState = iota
	stateAuthenticated
	stateRegistered
	stateClosed
)

func (s connState) String() string {
	switch s {
	case stateUnauthenticated:
		return "unauthenticated"
	case stateAuthenticated:
		return "authenticated"
	case stateRegistered:
		return "registered"
	case stateClosed:
		return "closed"
	}
	return "unknown"
}

// Conn is one client connection's lifecycle state. All fields except id and
// tr are guarded by the broker's lock.
type Conn struct {
	id        ConnID
	tr        Transport
	state     connState
	sess      *session.Session
	role      session.Role // set once registered
	authTimer *time.Timer
}

func (c *Conn) ID() ConnID { return c.id }

// send writes best-effort. A slow or broken peer must never stall delivery
// to others, so the error is only logged.
func (c *Conn) send(v interface{}) {
	if err := c.tr.WriteJSON(v); err != nil {
		log.Printf("Broker: write to %s failed: %v", c.id, err)
	}
}
