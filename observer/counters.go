package observer

import "sync/atomic"

type Kind int

const (
	KindAllowedFlows Kind = iota
	KindBlockedFlows
	KindAllowedBytes
	KindBlockedBytes
)

// Counters are the global traffic counters.
type Counters struct {
	updated      atomic.Bool
	allowedFlows atomic.Uint64
	blockedFlows atomic.Uint64
	allowedBytes atomic.Uint64
	blockedBytes atomic.Uint64
}

func (c *Counters) Add(kind Kind, n uint64) {
	if c == nil {
		return
	}
	switch kind {
	case KindAllowedFlows:
		c.allowedFlows.Add(n)
	case KindBlockedFlows:
		c.blockedFlows.Add(n)
	case KindAllowedBytes:
		c.allowedBytes.Add(n)
	case KindBlockedBytes:
		c.blockedBytes.Add(n)
	}
	c.updated.Store(true)
}

func (c *Counters) Get(kind Kind) uint64 {
	if c == nil {
		return 0
	}

	switch kind {
	case KindAllowedFlows:
		return c.allowedFlows.Load()
	case KindBlockedFlows:
		return c.blockedFlows.Load()
	case KindAllowedBytes:
		return c.allowedBytes.Load()
	case KindBlockedBytes:
		return c.blockedBytes.Load()
	}
	return 0
}

func (c *Counters) Reset() {
	c.updated.Store(false)
	c.allowedFlows.Store(0)
	c.blockedFlows.Store(0)
	c.allowedBytes.Store(0)
	c.blockedBytes.Store(0)
}

// IsUpdated reports whether a counter changed since the last call.
func (c *Counters) IsUpdated() bool {
	return c.updated.Swap(false)
}

// Totals is a point-in-time copy of the counters.
type Totals struct {
	AllowedFlows uint64 `json:"allowedFlows"`
	BlockedFlows uint64 `json:"blockedFlows"`
	AllowedBytes uint64 `json:"allowedBytes"`
	BlockedBytes uint64 `json:"blockedBytes"`
}

func (c *Counters) Totals() Totals {
	return Totals{
		AllowedFlows: c.Get(KindAllowedFlows),
		BlockedFlows: c.Get(KindBlockedFlows),
		AllowedBytes: c.Get(KindAllowedBytes),
		BlockedBytes: c.Get(KindBlockedBytes),
	}
}
