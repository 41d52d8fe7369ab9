package session

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bft-labs/zkwire/internal/codec"
	"github.com/bft-labs/zkwire/internal/proto"
	"github.com/bft-labs/zkwire/internal/watch"
	"github.com/bft-labs/zkwire/internal/wire"
	"github.com/bft-labs/zkwire/pkg/log"
)

// transport owns one live socket to one ensemble member: a write loop
// draining the multiplexer in submission order, a read loop deframing and
// routing inbound frames, and a pinger that keeps the session alive when
// the caller is idle.
//
// The transport never retries anything. Its first fault, whether a socket
// error, a decode failure, a desynced response or a missed ping window,
// terminates all three loops and is reported to the session state
// machine, which owns failover.
type transport struct {
	conn       net.Conn
	mux        *wire.Mux
	watches    *watch.Manager
	chroot     string
	logger     log.Logger
	frameLimit int32

	// pingInterval is a third of the negotiated timeout; recvTimeout is
	// two thirds. Absence of any inbound traffic for recvTimeout is a
	// fatal transport fault.
	pingInterval time.Duration
	recvTimeout  time.Duration

	lastZxid *atomic.Int64
	onEvent  func(watch.Event)

	lastSend atomic.Int64 // unix nanos of the last outbound frame
}

func newTransport(conn net.Conn, mux *wire.Mux, watches *watch.Manager, chroot string, negotiated time.Duration, frameLimit int32, lastZxid *atomic.Int64, onEvent func(watch.Event), logger log.Logger) *transport {
	return &transport{
		conn:         conn,
		mux:          mux,
		watches:      watches,
		chroot:       chroot,
		logger:       logger,
		frameLimit:   frameLimit,
		pingInterval: negotiated / 3,
		recvTimeout:  negotiated * 2 / 3,
		lastZxid:     lastZxid,
		onEvent:      onEvent,
	}
}

// run services the connection until a fault occurs or stop closes. It
// returns the fault, or ErrConnectionClosed when stopped, after every
// loop has exited and the socket is closed.
func (t *transport) run(stop <-chan struct{}) error {
	faults := make(chan error, 3)
	internal := make(chan struct{})
	var wg sync.WaitGroup

	t.lastSend.Store(time.Now().UnixNano())

	wg.Add(3)
	go func() {
		defer wg.Done()
		faults <- t.writeLoop(internal)
	}()
	go func() {
		defer wg.Done()
		faults <- t.readLoop()
	}()
	go func() {
		defer wg.Done()
		t.pingLoop(internal)
	}()

	var err error
	select {
	case err = <-faults:
	case <-stop:
		err = proto.ErrConnectionClosed
	}

	// Closing the socket unblocks whichever loops are still parked in IO.
	t.conn.Close()
	close(internal)
	wg.Wait()
	return err
}

// writeLoop serializes frames onto the wire strictly in the order the
// multiplexer queued them. This ordering is the basis of the protocol's
// read-your-writes guarantee.
func (t *transport) writeLoop(stop <-chan struct{}) error {
	for {
		frame, err := t.mux.NextFrame(stop)
		if err != nil {
			return err
		}
		if err := t.conn.SetWriteDeadline(time.Now().Add(t.recvTimeout)); err != nil {
			return err
		}
		if err := codec.WriteFrame(t.conn, frame); err != nil {
			return err
		}
		t.lastSend.Store(time.Now().UnixNano())
	}
}

// readLoop is the single continuous inbound path. Frame order carries
// protocol meaning, so it is never parallelized.
func (t *transport) readLoop() error {
	for {
		if err := t.conn.SetReadDeadline(time.Now().Add(t.recvTimeout)); err != nil {
			return err
		}
		frame, err := codec.ReadFrame(t.conn, t.frameLimit)
		if err != nil {
			return err
		}

		d := codec.NewDecoder(frame)
		var hdr proto.ResponseHeader
		hdr.DecodeFrom(d)
		if err := d.Err(); err != nil {
			return err
		}
		if hdr.Zxid > 0 {
			t.lastZxid.Store(hdr.Zxid)
		}

		if hdr.Xid == proto.XidWatchEvent {
			var we proto.WatcherEvent
			we.DecodeFrom(d)
			if err := d.Close(); err != nil {
				return err
			}
			if we.Type == proto.EventSession && we.State == proto.StateExpired {
				return proto.ErrSessionExpired
			}
			// Watch events arrive in the server namespace; registrations
			// are keyed by the caller's view of the tree.
			ev := watch.Event{Type: we.Type, State: we.State, Path: proto.StripChroot(t.chroot, we.Path)}
			t.logger.Debug("watch event",
				log.String("type", we.Type.String()),
				log.String("path", we.Path),
			)
			t.watches.Dispatch(ev)
			if t.onEvent != nil {
				t.onEvent(ev)
			}
			continue
		}

		if err := t.mux.Complete(hdr, d); err != nil {
			return err
		}
	}
}

// pingLoop submits a liveness ping whenever no application traffic has
// been written for a third of the negotiated timeout.
func (t *transport) pingLoop(stop <-chan struct{}) {
	interval := t.pingInterval / 2
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			idle := time.Since(time.Unix(0, t.lastSend.Load()))
			if idle < t.pingInterval {
				continue
			}
			if _, err := t.mux.SubmitReserved(proto.XidPing, proto.OpPing, &proto.PingRequest{}, nil); err != nil {
				return
			}
		}
	}
}
