// Package session implements the connection lifecycle of a client
// session: dialing ensemble members, the connect handshake, transparent
// failover with session resumption, watch replay, and the terminal
// expired/closed states.
//
// All lifecycle state is owned by the run goroutine. Caller-facing
// operations read a snapshot of the current multiplexer under a short
// lock and then interact with it without touching session state.
package session

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bft-labs/zkwire/internal/codec"
	"github.com/bft-labs/zkwire/internal/ensemble"
	"github.com/bft-labs/zkwire/internal/proto"
	"github.com/bft-labs/zkwire/internal/watch"
	"github.com/bft-labs/zkwire/internal/wire"
	"github.com/bft-labs/zkwire/pkg/log"
)

// authCred is one credential added via AddAuth, kept for replay on every
// new transport.
type authCred struct {
	scheme string
	auth   []byte
}

// Conn is one client session. It survives connection loss by
// reconnecting to other ensemble members and resuming the session until
// the server declares it expired or the caller closes it.
type Conn struct {
	cfg     Config
	chroot  string
	logger  log.Logger
	router  *ensemble.Router
	watches *watch.Manager

	events chan watch.Event

	mu         sync.Mutex
	ph         phase
	mux        *wire.Mux // nil unless ph is phaseConnected
	server     string
	sessionID  int64
	passwd     []byte
	negotiated time.Duration

	lastZxid atomic.Int64

	credMu sync.Mutex
	creds  []authCred

	closeReq  atomic.Bool
	closing   chan struct{}
	closeOnce sync.Once
	done      chan struct{}
}

// Dial validates cfg, starts the session state machine and returns
// immediately; the connection is established in the background. The
// first session event on Events reports the outcome of the initial
// handshake.
func Dial(cfg Config) (*Conn, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	router, err := ensemble.New(cfg.Servers)
	if err != nil {
		return nil, err
	}
	c := &Conn{
		cfg:       cfg,
		chroot:    cfg.Chroot,
		logger:    cfg.Logger,
		router:    router,
		watches:   watch.NewManager(cfg.Logger),
		events:    make(chan watch.Event, cfg.EventBuffer),
		ph:        phaseConnecting,
		sessionID: cfg.SessionID,
		passwd:    cfg.Passwd,
		closing:   make(chan struct{}),
		done:      make(chan struct{}),
	}
	if len(c.passwd) == 0 {
		c.passwd = make([]byte, 16)
	}
	go c.run()
	return c, nil
}

// Events returns the session event channel. It carries state transitions
// and a copy of every watch event; it is closed when the session reaches
// a terminal state. A slow consumer loses session events rather than
// stalling the connection.
func (c *Conn) Events() <-chan watch.Event {
	return c.events
}

// State returns the externally visible session state.
func (c *Conn) State() proto.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.ph {
	case phaseConnecting:
		return proto.StateConnecting
	case phaseConnected:
		return proto.StateHasSession
	case phaseReconnecting:
		return proto.StateDisconnected
	case phaseExpired:
		return proto.StateExpired
	default:
		return proto.StateClosed
	}
}

// SessionID returns the server-assigned session id, zero before the
// first handshake completes.
func (c *Conn) SessionID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// SessionPasswd returns a copy of the session password. Together with
// SessionID it allows a later process to resume this session.
func (c *Conn) SessionPasswd() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]byte, len(c.passwd))
	copy(out, c.passwd)
	return out
}

// Server returns the address of the currently connected ensemble member,
// empty while disconnected.
func (c *Conn) Server() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ph != phaseConnected {
		return ""
	}
	return c.server
}

// LastZxid returns the highest transaction id observed on any response.
func (c *Conn) LastZxid() int64 {
	return c.lastZxid.Load()
}

// UpdateServers replaces the candidate ensemble list used for future
// connection attempts. The current connection is left untouched; the new
// list takes effect on the next failover.
func (c *Conn) UpdateServers(servers []string) error {
	if err := c.router.Update(servers); err != nil {
		return err
	}
	c.logger.Info("ensemble list updated", log.Int("count", c.router.Len()))
	return nil
}

// Close sends a session teardown to the server on a best-effort basis,
// stops the state machine and waits for it to finish. Pending requests
// complete with ErrConnectionClosed. Close is idempotent.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		// The flag keeps the run loop from reconnecting if the server
		// drops the connection before answering the teardown.
		c.closeReq.Store(true)
		c.mu.Lock()
		mux := c.mux
		grace := c.negotiated
		c.mu.Unlock()

		if mux != nil {
			if grace <= 0 || grace > time.Second {
				grace = time.Second
			}
			if p, err := mux.Submit(proto.OpClose, &proto.CloseRequest{}, nil); err == nil {
				ctx, cancel := context.WithTimeout(context.Background(), grace)
				p.Wait(ctx)
				cancel()
			}
		}
		close(c.closing)
	})
	<-c.done
	return nil
}

// run is the session state machine. It is the only goroutine that
// mutates phase, session identity and the published multiplexer.
func (c *Conn) run() {
	defer close(c.done)

	// Zero until the first disconnect after a successful handshake. Once
	// set, failing to reconnect before it passes expires the session on
	// the client side; the server would reject the resume anyway.
	var graceDeadline time.Time
	resuming := c.cfg.SessionID != 0

	for {
		if c.closeReq.Load() {
			c.finish(phaseClosed, proto.StateClosed)
			return
		}

		if !graceDeadline.IsZero() && time.Now().After(graceDeadline) {
			c.logger.Warn("session grace period elapsed, expiring",
				log.Int64("session_id", c.SessionID()),
			)
			c.finish(phaseExpired, proto.StateExpired)
			return
		}

		addr, wait := c.router.Next()
		if wait > 0 {
			select {
			case <-time.After(wait):
			case <-c.closing:
				c.finish(phaseClosed, proto.StateClosed)
				return
			}
		}

		mux, conn, fresh, err := c.connect(addr, resuming)
		if err == proto.ErrSessionExpired {
			c.finish(phaseExpired, proto.StateExpired)
			return
		}
		if err != nil {
			c.router.Fail(addr)
			c.logger.Debug("connect attempt failed", log.String("server", addr), log.Err(err))
			continue
		}
		c.router.Reset(addr)
		graceDeadline = time.Time{}
		resuming = true

		c.mu.Lock()
		from := c.ph
		if !validTransition(from, phaseConnected) {
			c.mu.Unlock()
			conn.Close()
			c.logger.Error("session state error", log.Err(errInvalidTransition(from, phaseConnected)))
			return
		}
		c.ph = phaseConnected
		c.mux = mux
		c.server = addr
		negotiated := c.negotiated
		c.mu.Unlock()

		state := proto.StateSessionResumed
		if fresh {
			state = proto.StateHasSession
		}
		c.logger.Info("session established",
			log.String("server", addr),
			log.Int64("session_id", c.SessionID()),
			log.Duration("negotiated_timeout", negotiated),
			log.Bool("resumed", !fresh),
		)
		c.sendEvent(watch.Event{Type: proto.EventSession, State: state, Server: addr})
		c.watches.SessionEvent(state)

		t := newTransport(conn, mux, c.watches, c.chroot, negotiated, c.cfg.FrameLimit, &c.lastZxid, c.forwardEvent, c.logger)
		err = t.run(c.closing)
		mux.Fail(connectionError(err))

		c.mu.Lock()
		c.mux = nil
		c.server = ""
		c.mu.Unlock()

		if c.closeReq.Load() {
			c.finish(phaseClosed, proto.StateClosed)
			return
		}

		if err == proto.ErrSessionExpired {
			c.finish(phaseExpired, proto.StateExpired)
			return
		}

		c.logger.Warn("connection lost, reconnecting",
			log.String("server", addr),
			log.Err(err),
		)
		c.mu.Lock()
		c.ph = phaseReconnecting
		c.mu.Unlock()
		graceDeadline = time.Now().Add(negotiated)
		c.sendEvent(watch.Event{Type: proto.EventSession, State: proto.StateDisconnected, Err: err})
		c.watches.SessionEvent(proto.StateDisconnected)
	}
}

// connect dials addr, performs the handshake and queues the replay
// traffic on a fresh multiplexer before anything else can be submitted
// to it. It reports whether the handshake created a fresh session.
// proto.ErrSessionExpired means the server refused to resume and the
// session is terminally dead.
func (c *Conn) connect(addr string, resuming bool) (*wire.Mux, net.Conn, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.SessionTimeout)
	defer cancel()
	conn, err := c.cfg.Dialer(ctx, "tcp", addr)
	if err != nil {
		return nil, nil, false, err
	}

	c.mu.Lock()
	requested := c.sessionID
	c.mu.Unlock()

	resp, err := c.handshake(conn, resuming)
	if err != nil {
		conn.Close()
		return nil, nil, false, err
	}

	// The server has the last word on identity: a resume request it
	// answers with a different session id established a fresh session,
	// and the old session's watches must not be replayed onto it.
	resumed := resuming && resp.SessionID == requested

	c.mu.Lock()
	c.sessionID = resp.SessionID
	c.passwd = resp.Passwd
	c.negotiated = time.Duration(resp.Timeout) * time.Millisecond
	c.mu.Unlock()

	mux := wire.New(c.logger)
	c.queueReplay(mux, resumed)
	return mux, conn, !resumed, nil
}

// handshake exchanges the connect records on the raw socket before the
// transport loops exist. A negotiated timeout of zero or less means the
// server refused the session; when resuming that is terminal expiry.
func (c *Conn) handshake(conn net.Conn, resuming bool) (*proto.ConnectResponse, error) {
	deadline := time.Now().Add(c.cfg.SessionTimeout)
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, err
	}

	c.mu.Lock()
	req := proto.ConnectRequest{
		ProtocolVersion: proto.ProtocolVersion,
		Timeout:         int32(c.cfg.SessionTimeout / time.Millisecond),
		Passwd:          c.passwd,
		ReadOnly:        c.cfg.ReadOnly,
	}
	if resuming {
		req.SessionID = c.sessionID
		req.LastZxidSeen = c.lastZxid.Load()
	}
	c.mu.Unlock()

	e := codec.NewEncoder()
	req.EncodeTo(e)
	if err := codec.WriteFrame(conn, e.Bytes()); err != nil {
		return nil, err
	}

	frame, err := codec.ReadFrame(conn, c.cfg.FrameLimit)
	if err != nil {
		return nil, err
	}
	d := codec.NewDecoder(frame)
	var resp proto.ConnectResponse
	resp.DecodeFrom(d)
	if err := d.Close(); err != nil {
		return nil, err
	}

	if resp.Timeout <= 0 {
		if resuming {
			return nil, proto.ErrSessionExpired
		}
		return nil, proto.ErrConnectionLost
	}
	if err := conn.SetDeadline(time.Time{}); err != nil {
		return nil, err
	}
	return &resp, nil
}

// queueReplay queues credential and watch re-establishment on a fresh
// multiplexer. It runs before the mux is published and before the
// transport starts, so the replay frames are guaranteed to precede any
// application request on the new wire.
func (c *Conn) queueReplay(mux *wire.Mux, resumed bool) {
	c.credMu.Lock()
	creds := make([]authCred, len(c.creds))
	copy(creds, c.creds)
	c.credMu.Unlock()
	for _, cred := range creds {
		mux.SubmitReserved(proto.XidAuth, proto.OpAuth, &proto.AuthRequest{
			Scheme: cred.scheme,
			Auth:   cred.auth,
		}, nil)
	}

	if !resumed {
		return
	}

	data, exist, child := c.watches.OneshotPaths()
	if len(data)+len(exist)+len(child) > 0 {
		mux.SubmitReserved(proto.XidSetWatches, proto.OpSetWatches, &proto.SetWatchesRequest{
			RelativeZxid: c.lastZxid.Load(),
			DataWatches:  c.serverPaths(data),
			ExistWatches: c.serverPaths(exist),
			ChildWatches: c.serverPaths(child),
		}, nil)
	}

	exact, recursive := c.watches.PersistentPaths()
	for _, path := range exact {
		mux.Submit(proto.OpAddWatch, &proto.AddWatchRequest{Path: c.serverPath(path), Mode: proto.AddWatchModePersistent}, nil)
	}
	for _, path := range recursive {
		mux.Submit(proto.OpAddWatch, &proto.AddWatchRequest{Path: c.serverPath(path), Mode: proto.AddWatchModePersistentRecursive}, nil)
	}
	if n := len(data) + len(exist) + len(child) + len(exact) + len(recursive); n > 0 {
		c.logger.Info("replaying watches after session resumption", log.Int("count", n))
	}
}

// serverPath maps a caller-supplied path into the chroot namespace the
// server sees; clientPath undoes the mapping on returned paths.
func (c *Conn) serverPath(path string) string {
	return proto.JoinChroot(c.chroot, path)
}

func (c *Conn) clientPath(path string) string {
	return proto.StripChroot(c.chroot, path)
}

func (c *Conn) serverPaths(paths []string) []string {
	if c.chroot == "" {
		return paths
	}
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = proto.JoinChroot(c.chroot, p)
	}
	return out
}

// finish moves the session into a terminal phase, resolves every
// outstanding watch and closes the event channel.
func (c *Conn) finish(ph phase, state proto.State) {
	c.mu.Lock()
	if c.ph.terminal() {
		c.mu.Unlock()
		return
	}
	c.ph = ph
	c.mux = nil
	c.server = ""
	c.mu.Unlock()

	c.logger.Info("session finished", log.String("state", state.String()))
	c.watches.Resolve(state)
	c.sendEvent(watch.Event{Type: proto.EventSession, State: state})
	close(c.events)
}

// forwardEvent mirrors every watch event onto the session event channel.
func (c *Conn) forwardEvent(ev watch.Event) {
	c.sendEvent(ev)
}

func (c *Conn) sendEvent(ev watch.Event) {
	select {
	case c.events <- ev:
	default:
		c.logger.Warn("event channel full, dropping session event",
			log.String("type", ev.Type.String()),
			log.String("state", ev.State.String()),
		)
	}
}

// connectionError normalizes a transport fault into the error pending
// requests fail with.
func connectionError(err error) error {
	switch err {
	case nil:
		return proto.ErrConnectionLost
	case proto.ErrConnectionClosed, proto.ErrSessionExpired, proto.ErrProtocolDesync:
		return err
	default:
		return proto.ErrConnectionLost
	}
}
