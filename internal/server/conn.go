package server

import (
	"encoding/json"
	"net"
	"sync"
)

// conn is one client connection. session and ended belong to the dispatch
// loop and are never read elsewhere; the channels are shared with the
// reader and writer goroutines.
type conn struct {
	nc     net.Conn
	addr   string
	remote string

	session string
	ended   bool

	out       chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

// enqueue marshals m onto the write queue. It reports false when the queue
// is full; a closed connection silently drops the reply.
func (c *conn) enqueue(m *Message) bool {
	b, err := json.Marshal(m)
	if err != nil {
		return true
	}
	select {
	case <-c.closed:
		return true
	default:
	}
	select {
	case c.out <- append(b, '\n'):
		return true
	default:
		return false
	}
}

func (c *conn) writeLoop() {
	for {
		select {
		case b := <-c.out:
			if _, err := c.nc.Write(b); err != nil {
				c.close()
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *conn) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.nc.Close()
	})
}
