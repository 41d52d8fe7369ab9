// Package wire multiplexes concurrent logical operations over one ordered
// connection. It assigns transaction ids, keeps the FIFO table of
// in-flight requests, serializes outbound frames in submission order and
// matches inbound responses against the head of the table.
//
// The server answers in exactly the order requests were written, so a
// response that does not match the oldest pending transaction id means
// the stream has drifted; that is fatal to the connection, never patched
// over.
package wire

import (
	"context"
	"math"
	"sync"

	"github.com/bft-labs/zkwire/internal/codec"
	"github.com/bft-labs/zkwire/internal/proto"
	"github.com/bft-labs/zkwire/pkg/log"
)

// Result is the single fulfillment of a pending request: the server's
// ordering stamp and either nil, a server-reported application error, or
// a connection-level error.
type Result struct {
	Zxid int64
	Err  error
}

// Pending is one in-flight request. Exactly one Result is ever delivered.
type Pending struct {
	xid  int32
	op   int32
	resp proto.Decodable
	cb   func(Result)
	done chan Result
}

// Xid returns the transaction id assigned at submission.
func (p *Pending) Xid() int32 {
	return p.xid
}

// Wait blocks until the result arrives or ctx is cancelled. Cancellation
// abandons the caller's interest only: the entry stays in the FIFO table
// until its response arrives or the connection is lost, so later entries
// keep completing in order.
func (p *Pending) Wait(ctx context.Context) (Result, error) {
	select {
	case res := <-p.done:
		return res, res.Err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Mux owns the pending table and the outbound frame queue of one
// connected span. It is replaced wholesale on reconnect.
type Mux struct {
	mu      sync.Mutex
	nextXid int32
	queue   []*Pending // FIFO in wire order
	frames  [][]byte   // encoded, not yet handed to the write loop
	err     error      // set once, poisons further submissions
	notify  chan struct{}
	logger  log.Logger
}

// New creates a multiplexer for a fresh connection.
func New(logger log.Logger) *Mux {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Mux{
		nextXid: 1,
		notify:  make(chan struct{}, 1),
		logger:  logger,
	}
}

// Submit encodes req under the next transaction id, appends it to the
// pending table and queues the frame for the write loop. Both happen
// under one lock so wire order always equals table order.
func (m *Mux) Submit(op int32, req proto.Encodable, resp proto.Decodable) (*Pending, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	xid := m.nextXid
	// Wrapping skips the reserved negative range. Matching is positional,
	// so reuse of an id cannot reorder completions.
	if m.nextXid == math.MaxInt32 {
		m.nextXid = 1
	} else {
		m.nextXid++
	}
	return m.enqueue(xid, op, req, resp, nil), nil
}

// SubmitFunc is Submit with a completion callback. The callback runs on
// the read loop, after the response decoded but before the next frame is
// processed: a watch armed inside it can never miss the event that fires
// it.
func (m *Mux) SubmitFunc(op int32, req proto.Encodable, resp proto.Decodable, cb func(Result)) (*Pending, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	xid := m.nextXid
	if m.nextXid == math.MaxInt32 {
		m.nextXid = 1
	} else {
		m.nextXid++
	}
	return m.enqueue(xid, op, req, resp, cb), nil
}

// SubmitReserved queues a request under one of the protocol's reserved
// transaction ids (ping, auth, setWatches). Reserved requests occupy the
// same FIFO table: their responses arrive in wire order like any other.
func (m *Mux) SubmitReserved(xid int32, op int32, req proto.Encodable, resp proto.Decodable) (*Pending, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.enqueue(xid, op, req, resp, nil), nil
}

func (m *Mux) enqueue(xid, op int32, req proto.Encodable, resp proto.Decodable, cb func(Result)) *Pending {
	e := codec.NewEncoder()
	hdr := proto.RequestHeader{Xid: xid, Op: op}
	hdr.EncodeTo(e)
	if req != nil {
		req.EncodeTo(e)
	}
	frame := make([]byte, e.Len())
	copy(frame, e.Bytes())

	p := &Pending{xid: xid, op: op, resp: resp, cb: cb, done: make(chan Result, 1)}
	m.queue = append(m.queue, p)
	m.frames = append(m.frames, frame)
	select {
	case m.notify <- struct{}{}:
	default:
	}
	return p
}

// NextFrame blocks until a frame is ready for the wire, the mux fails, or
// stop closes. Frames come out in submission order; there is exactly one
// consumer, the connection's write loop.
func (m *Mux) NextFrame(stop <-chan struct{}) ([]byte, error) {
	for {
		m.mu.Lock()
		if len(m.frames) > 0 {
			frame := m.frames[0]
			m.frames = m.frames[1:]
			m.mu.Unlock()
			return frame, nil
		}
		err := m.err
		m.mu.Unlock()
		if err != nil {
			return nil, err
		}

		select {
		case <-m.notify:
		case <-stop:
			return nil, proto.ErrConnectionClosed
		}
	}
}

// Complete matches a response header against the oldest pending entry.
// The entry is completed with the server's zxid and mapped error code. A
// header whose xid is not the head of the table is a protocol desync and
// returns ErrProtocolDesync; the caller must tear the connection down.
func (m *Mux) Complete(hdr proto.ResponseHeader, body *codec.Decoder) error {
	m.mu.Lock()
	if len(m.queue) == 0 {
		m.mu.Unlock()
		m.logger.Error("response with no pending request", log.Int32("xid", hdr.Xid))
		return proto.ErrProtocolDesync
	}
	p := m.queue[0]
	if p.xid != hdr.Xid {
		m.mu.Unlock()
		m.logger.Error("response out of order",
			log.Int32("xid", hdr.Xid),
			log.Int32("expected", p.xid),
			log.Int32("op", p.op),
		)
		return proto.ErrProtocolDesync
	}
	m.queue = m.queue[1:]
	m.mu.Unlock()

	res := Result{Zxid: hdr.Zxid, Err: proto.ErrCode(hdr.Err)}
	if res.Err == nil && p.resp != nil {
		p.resp.DecodeFrom(body)
		if err := body.Close(); err != nil {
			// The payload did not decode cleanly; the stream can no
			// longer be trusted.
			p.done <- Result{Zxid: hdr.Zxid, Err: err}
			return err
		}
	}
	if p.cb != nil {
		p.cb(res)
	}
	p.done <- res
	return nil
}

// Fail completes every pending entry with err and poisons the mux so
// further submissions fail fast. Callers are never left waiting.
func (m *Mux) Fail(err error) {
	m.mu.Lock()
	if m.err == nil {
		m.err = err
	}
	pending := m.queue
	m.queue = nil
	m.frames = nil
	m.mu.Unlock()

	// Wake the write loop so it observes the failure.
	select {
	case m.notify <- struct{}{}:
	default:
	}

	for _, p := range pending {
		p.done <- Result{Err: err}
	}
	if len(pending) > 0 {
		m.logger.Debug("failed pending requests", log.Int("count", len(pending)), log.Err(err))
	}
}

// PendingCount returns the number of in-flight requests.
func (m *Mux) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}
