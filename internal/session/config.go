package session

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/bft-labs/zkwire/internal/codec"
	"github.com/bft-labs/zkwire/internal/proto"
	"github.com/bft-labs/zkwire/pkg/log"
)

// DefaultSessionTimeout is the timeout requested from the ensemble when
// the caller does not supply one. The server may negotiate it down.
const DefaultSessionTimeout = 10 * time.Second

// DefaultEventBuffer is the capacity of the session event channel.
const DefaultEventBuffer = 32

// Dialer opens the raw byte stream to one ensemble member. TLS, SOCKS or
// test pipes plug in here; the session core only consumes the stream.
type Dialer func(ctx context.Context, network, addr string) (net.Conn, error)

// Config holds the configuration for one session.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config struct {
	// Servers is the candidate ensemble member list. Entries without a
	// port default to 2181.
	Servers []string

	// SessionTimeout is the timeout requested at the handshake. The
	// negotiated value governs pings, read deadlines and the reconnect
	// grace window.
	SessionTimeout time.Duration

	// SessionID and Passwd resume a previous session when non-zero. Both
	// come from a prior session's SessionID()/SessionPasswd().
	SessionID int64
	Passwd    []byte

	// Chroot confines the session to a subtree. Every path the caller
	// supplies is interpreted relative to it, and every path the server
	// returns, watch events included, is translated back. The chroot node
	// must already exist.
	Chroot string

	// ReadOnly asks the server to accept the session in read-only mode
	// during a partition.
	ReadOnly bool

	// FrameLimit bounds a single inbound frame.
	FrameLimit int32

	// EventBuffer is the session event channel capacity. When the caller
	// falls behind, session events are dropped with a log line; watch
	// deliveries are unaffected.
	EventBuffer int

	// Dialer defaults to a plain TCP dial with a third of the session
	// timeout as connect timeout.
	Dialer Dialer

	Logger log.Logger
}

// DefaultConfig returns a Config with sensible default values.
// At minimum, Servers must be set before use.
func DefaultConfig() Config {
	return Config{
		SessionTimeout: DefaultSessionTimeout,
		FrameLimit:     codec.DefaultFrameLimit,
		EventBuffer:    DefaultEventBuffer,
	}
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	if len(c.Servers) == 0 {
		return fmt.Errorf("zkwire: at least one server is required")
	}
	if c.SessionTimeout == 0 {
		c.SessionTimeout = DefaultSessionTimeout
	}
	if c.SessionTimeout < 100*time.Millisecond {
		return fmt.Errorf("zkwire: session timeout %v too short", c.SessionTimeout)
	}
	if c.FrameLimit <= 0 {
		c.FrameLimit = codec.DefaultFrameLimit
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = DefaultEventBuffer
	}
	if c.Chroot == "/" {
		c.Chroot = ""
	}
	if c.Chroot != "" {
		if err := proto.ValidatePath(c.Chroot, false); err != nil {
			return fmt.Errorf("zkwire: invalid chroot: %w", err)
		}
	}
	if c.SessionID != 0 && len(c.Passwd) == 0 {
		return fmt.Errorf("zkwire: resuming session %d requires its password", c.SessionID)
	}
	if c.Logger == nil {
		c.Logger = log.NewNoopLogger()
	}
	if c.Dialer == nil {
		d := &net.Dialer{Timeout: c.SessionTimeout / 3}
		c.Dialer = func(ctx context.Context, network, addr string) (net.Conn, error) {
			return d.DialContext(ctx, network, addr)
		}
	}
	return nil
}
