package transport

import (
	"errors"
	"time"

	"github.com/marmos91/nfsgate/internal/protocol/rpc"
)

// Defaults for Config fields left zero.
const (
	DefaultDialTimeout    = 5 * time.Second
	DefaultCallTimeout    = 10 * time.Second
	DefaultMaxRetries     = 10
	DefaultReconnectDelay = 5 * time.Second
	DefaultIdleTick       = 10 * time.Millisecond
)

// Config configures a Client.
type Config struct {
	// Address is the host:port of the RPC server.
	Address string

	// DialTimeout bounds each connection attempt.
	DialTimeout time.Duration

	// CallTimeout is how long one attempt of a call waits for its reply.
	CallTimeout time.Duration

	// MaxRetries is the number of attempts a call gets, each with a new xid.
	MaxRetries int

	// ReconnectDelay is the pause between losing the connection (or failing
	// to establish it) and the next dial.
	ReconnectDelay time.Duration

	// IdleTick wakes the send loop periodically so queued calls go out even
	// without an explicit signal.
	IdleTick time.Duration

	// MaxRecordSize bounds a reassembled reply. Zero selects
	// rpc.DefaultMaxRecordSize.
	MaxRecordSize int

	// RateLimit caps outgoing call attempts per second. Zero disables it.
	RateLimit uint

	// RateBurst is the burst allowed above RateLimit.
	RateBurst uint
}

func (c Config) withDefaults() Config {
	if c.DialTimeout <= 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = DefaultCallTimeout
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = DefaultReconnectDelay
	}
	if c.IdleTick <= 0 {
		c.IdleTick = DefaultIdleTick
	}
	if c.MaxRecordSize <= 0 {
		c.MaxRecordSize = rpc.DefaultMaxRecordSize
	}
	return c
}

func (c Config) validate() error {
	if c.Address == "" {
		return errors.New("transport: address is required")
	}
	return nil
}
