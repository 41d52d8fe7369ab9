package proto

import (
	"errors"
	"fmt"

	"github.com/bft-labs/zkwire/internal/codec"
)

// multiHeader frames each sub-operation inside a multi request or
// response. A header with Done set terminates the sequence.
type multiHeader struct {
	Type int32
	Done bool
	Err  int32
}

func (h *multiHeader) encodeTo(e *codec.Encoder) {
	e.PutInt32(h.Type)
	e.PutBool(h.Done)
	e.PutInt32(h.Err)
}

func (h *multiHeader) decodeFrom(d *codec.Decoder) {
	h.Type = d.Int32()
	h.Done = d.Bool()
	h.Err = d.Int32()
}

type multiOp struct {
	op     int32
	record Encodable
}

// MultiOps assembles an ordered sequence of write sub-operations into one
// atomic batch. The server applies all of them or none.
type MultiOps struct {
	ops []multiOp
}

// Create appends a create sub-operation.
func (m *MultiOps) Create(path string, data []byte, acl []ACL, flags int32) *MultiOps {
	m.ops = append(m.ops, multiOp{OpCreate, &CreateRequest{Path: path, Data: data, ACL: acl, Flags: flags}})
	return m
}

// Delete appends a delete sub-operation.
func (m *MultiOps) Delete(path string, version int32) *MultiOps {
	m.ops = append(m.ops, multiOp{OpDelete, &DeleteRequest{Path: path, Version: version}})
	return m
}

// SetData appends a set-data sub-operation.
func (m *MultiOps) SetData(path string, data []byte, version int32) *MultiOps {
	m.ops = append(m.ops, multiOp{OpSetData, &SetDataRequest{Path: path, Data: data, Version: version}})
	return m
}

// Check appends a version assertion that commits nothing but can abort
// the batch.
func (m *MultiOps) Check(path string, version int32) *MultiOps {
	m.ops = append(m.ops, multiOp{OpCheck, &CheckVersionRequest{Path: path, Version: version}})
	return m
}

// Len returns the number of sub-operations added so far.
func (m *MultiOps) Len() int {
	return len(m.ops)
}

// Paths returns the target path of each sub-operation in order.
func (m *MultiOps) Paths() []string {
	out := make([]string, 0, len(m.ops))
	for _, op := range m.ops {
		switch r := op.record.(type) {
		case *CreateRequest:
			out = append(out, r.Path)
		case *DeleteRequest:
			out = append(out, r.Path)
		case *SetDataRequest:
			out = append(out, r.Path)
		case *CheckVersionRequest:
			out = append(out, r.Path)
		}
	}
	return out
}

// Rebase returns a copy of the batch with every sub-operation path moved
// under chroot. The receiver is left untouched; an empty chroot returns
// the receiver itself.
func (m *MultiOps) Rebase(chroot string) *MultiOps {
	if chroot == "" {
		return m
	}
	out := &MultiOps{ops: make([]multiOp, 0, len(m.ops))}
	for _, op := range m.ops {
		switch r := op.record.(type) {
		case *CreateRequest:
			cp := *r
			cp.Path = JoinChroot(chroot, r.Path)
			out.ops = append(out.ops, multiOp{op.op, &cp})
		case *DeleteRequest:
			cp := *r
			cp.Path = JoinChroot(chroot, r.Path)
			out.ops = append(out.ops, multiOp{op.op, &cp})
		case *SetDataRequest:
			cp := *r
			cp.Path = JoinChroot(chroot, r.Path)
			out.ops = append(out.ops, multiOp{op.op, &cp})
		case *CheckVersionRequest:
			cp := *r
			cp.Path = JoinChroot(chroot, r.Path)
			out.ops = append(out.ops, multiOp{op.op, &cp})
		default:
			out.ops = append(out.ops, op)
		}
	}
	return out
}

// EncodeTo writes the interleaved header+record sequence terminated by a
// done header, preserving sub-operation order.
func (m *MultiOps) EncodeTo(e *codec.Encoder) {
	for _, op := range m.ops {
		hdr := multiHeader{Type: op.op, Done: false, Err: -1}
		hdr.encodeTo(e)
		op.record.EncodeTo(e)
	}
	done := multiHeader{Type: opError, Done: true, Err: -1}
	done.encodeTo(e)
}

// MultiResult is the outcome of one sub-operation, in submission order.
// Exactly one of the payload fields is meaningful, selected by Op. Err is
// nil for a sub-operation the server reports as (would-have-)succeeded,
// ErrMultiOpAborted for one rolled back because an earlier sub-operation
// failed, and the specific error for the sub-operation that caused the
// abort.
type MultiResult struct {
	Op     int32
	String string
	Stat   Stat
	Err    error
}

// MultiError reports a failed batch, naming the first sub-operation whose
// error aborted it.
type MultiError struct {
	Index int
	Err   error
}

func (e *MultiError) Error() string {
	return fmt.Sprintf("multi op %d: %v", e.Index, e.Err)
}

func (e *MultiError) Unwrap() error {
	return e.Err
}

// MultiResponse is the decoded per-sub-operation result vector.
type MultiResponse struct {
	Results []MultiResult
}

// DecodeFrom reads interleaved result headers and payloads until the done
// header. Result order matches submission order.
func (r *MultiResponse) DecodeFrom(d *codec.Decoder) {
	for d.Err() == nil {
		var hdr multiHeader
		hdr.decodeFrom(d)
		if d.Err() != nil || hdr.Done {
			return
		}
		res := MultiResult{Op: hdr.Type}
		switch hdr.Type {
		case opError:
			res.Err = ErrCode(d.Int32())
		case OpCreate:
			var body CreateResponse
			body.DecodeFrom(d)
			res.String = body.Path
		case OpSetData:
			var body StatResponse
			body.DecodeFrom(d)
			res.Stat = body.Stat
		case OpDelete, OpCheck:
			// No payload.
		default:
			res.Err = fmt.Errorf("%w: unexpected multi result type %d", ErrAPIError, hdr.Type)
		}
		r.Results = append(r.Results, res)
	}
}

// Err aggregates the result vector: nil when the batch committed,
// otherwise a *MultiError naming the first sub-operation that genuinely
// failed (as opposed to those aborted on its account).
func (r *MultiResponse) Err() error {
	for i := range r.Results {
		err := r.Results[i].Err
		if err != nil && !errors.Is(err, ErrMultiOpAborted) {
			return &MultiError{Index: i, Err: err}
		}
	}
	// A vector of nothing but aborted markers should not happen, but if a
	// server produces one the batch still did not commit.
	for i := range r.Results {
		if r.Results[i].Err != nil {
			return &MultiError{Index: i, Err: r.Results[i].Err}
		}
	}
	return nil
}

// MultiReadOps assembles an ordered sequence of read sub-operations sent
// through the multi-read opcode. Reads do not abort each other; each
// result stands alone.
type MultiReadOps struct {
	ops []multiOp
}

// GetData appends a data read.
func (m *MultiReadOps) GetData(path string) *MultiReadOps {
	m.ops = append(m.ops, multiOp{OpGetData, &GetDataRequest{Path: path}})
	return m
}

// GetChildren appends a children listing.
func (m *MultiReadOps) GetChildren(path string) *MultiReadOps {
	m.ops = append(m.ops, multiOp{OpGetChildren, &GetChildrenRequest{Path: path}})
	return m
}

// Len returns the number of sub-operations added so far.
func (m *MultiReadOps) Len() int {
	return len(m.ops)
}

// Rebase returns a copy of the batch with every read path moved under
// chroot; an empty chroot returns the receiver itself.
func (m *MultiReadOps) Rebase(chroot string) *MultiReadOps {
	if chroot == "" {
		return m
	}
	out := &MultiReadOps{ops: make([]multiOp, 0, len(m.ops))}
	for _, op := range m.ops {
		switch r := op.record.(type) {
		case *GetDataRequest:
			cp := *r
			cp.Path = JoinChroot(chroot, r.Path)
			out.ops = append(out.ops, multiOp{op.op, &cp})
		case *GetChildrenRequest:
			cp := *r
			cp.Path = JoinChroot(chroot, r.Path)
			out.ops = append(out.ops, multiOp{op.op, &cp})
		default:
			out.ops = append(out.ops, op)
		}
	}
	return out
}

// EncodeTo writes the interleaved header+record sequence terminated by a
// done header.
func (m *MultiReadOps) EncodeTo(e *codec.Encoder) {
	for _, op := range m.ops {
		hdr := multiHeader{Type: op.op, Done: false, Err: -1}
		hdr.encodeTo(e)
		op.record.EncodeTo(e)
	}
	done := multiHeader{Type: opError, Done: true, Err: -1}
	done.encodeTo(e)
}

// MultiReadResult is the outcome of one read sub-operation.
type MultiReadResult struct {
	Op       int32
	Data     []byte
	Stat     Stat
	Children []string
	Err      error
}

// MultiReadResponse is the decoded result vector of a multi read.
type MultiReadResponse struct {
	Results []MultiReadResult
}

// DecodeFrom reads interleaved result headers and payloads until the done
// header.
func (r *MultiReadResponse) DecodeFrom(d *codec.Decoder) {
	for d.Err() == nil {
		var hdr multiHeader
		hdr.decodeFrom(d)
		if d.Err() != nil || hdr.Done {
			return
		}
		res := MultiReadResult{Op: hdr.Type}
		switch hdr.Type {
		case opError:
			res.Err = ErrCode(d.Int32())
		case OpGetData:
			var body GetDataResponse
			body.DecodeFrom(d)
			res.Data = body.Data
			res.Stat = body.Stat
		case OpGetChildren:
			var body GetChildrenResponse
			body.DecodeFrom(d)
			res.Children = body.Children
		default:
			res.Err = fmt.Errorf("%w: unexpected multi read result type %d", ErrAPIError, hdr.Type)
		}
		r.Results = append(r.Results, res)
	}
}
