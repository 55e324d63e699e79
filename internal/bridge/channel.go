package bridge

import (
	"sync"
	"sync/atomic"
)

// Channels assigns channel ids and keeps attached extensions reachable by id.
// Ids start at 1, increase monotonically and are never reused by the same
// Channels value.
type Channels struct {
	next atomic.Int64

	mu     sync.RWMutex
	routes map[int64]*Extension
}

// NewChannels creates an empty channel registry.
func NewChannels() *Channels {
	return &Channels{routes: make(map[int64]*Extension)}
}

func (c *Channels) allocate() int64 {
	return c.next.Add(1)
}

func (c *Channels) bind(id int64, ext *Extension) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.routes[id] = ext
}

func (c *Channels) unbind(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.routes, id)
}

// Lookup returns the extension attached under id.
func (c *Channels) Lookup(id int64) (*Extension, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ext, ok := c.routes[id]
	return ext, ok
}

// Deliver hands a message body to the extension attached under id.
func (c *Channels) Deliver(id int64, body []byte) error {
	ext, ok := c.Lookup(id)
	if !ok {
		return &ChannelNotFoundError{Channel: id}
	}
	return ext.HandleMessage(body)
}

// Len returns the number of attached extensions.
func (c *Channels) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.routes)
}
