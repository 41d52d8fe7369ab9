package proto

import (
	"errors"
	"testing"

	"github.com/bft-labs/zkwire/internal/codec"
)

func TestMultiOpsEncodeOrder(t *testing.T) {
	var ops MultiOps
	ops.Create("/a", []byte("1"), WorldACL(PermAll), 0).
		Delete("/b", -1).
		SetData("/c", []byte("2"), 3).
		Check("/d", 4)
	if ops.Len() != 4 {
		t.Fatalf("Len = %d, want 4", ops.Len())
	}

	e := codec.NewEncoder()
	ops.EncodeTo(e)

	d := codec.NewDecoder(e.Bytes())
	wantOps := []int32{OpCreate, OpDelete, OpSetData, OpCheck}
	for i, want := range wantOps {
		var hdr multiHeader
		hdr.decodeFrom(d)
		if hdr.Type != want || hdr.Done {
			t.Fatalf("header %d = %+v, want type %d not done", i, hdr, want)
		}
		switch want {
		case OpCreate:
			var r CreateRequest
			r.DecodeFrom(d)
			if r.Path != "/a" {
				t.Errorf("create path = %q", r.Path)
			}
		case OpDelete:
			var r DeleteRequest
			r.DecodeFrom(d)
			if r.Path != "/b" || r.Version != -1 {
				t.Errorf("delete = %+v", r)
			}
		case OpSetData:
			var r SetDataRequest
			r.DecodeFrom(d)
			if r.Path != "/c" || r.Version != 3 {
				t.Errorf("setData = %+v", r)
			}
		case OpCheck:
			var r CheckVersionRequest
			r.DecodeFrom(d)
			if r.Path != "/d" || r.Version != 4 {
				t.Errorf("check = %+v", r)
			}
		}
	}
	var done multiHeader
	done.decodeFrom(d)
	if !done.Done {
		t.Fatalf("missing done header, got %+v", done)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("trailing bytes after done header: %v", err)
	}

	if got := ops.Paths(); len(got) != 4 || got[0] != "/a" || got[3] != "/d" {
		t.Errorf("Paths = %v", got)
	}
}

// encodeMultiFailure builds the server's response for a four-op batch
// where op 2 (index 1) failed: the preceding op reports ok, the failing
// op reports its code, and the rest are rolled back.
func encodeMultiFailure() []byte {
	e := codec.NewEncoder()
	write := func(code int32) {
		hdr := multiHeader{Type: opError, Done: false, Err: code}
		hdr.encodeTo(e)
		e.PutInt32(code)
	}
	write(errOk)
	write(errNoNode)
	write(errRuntimeInconsistency)
	write(errRuntimeInconsistency)
	done := multiHeader{Type: opError, Done: true, Err: -1}
	done.encodeTo(e)
	return e.Bytes()
}

func TestMultiResponseAbortedBatch(t *testing.T) {
	var resp MultiResponse
	d := codec.NewDecoder(encodeMultiFailure())
	resp.DecodeFrom(d)
	if err := d.Close(); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if len(resp.Results) != 4 {
		t.Fatalf("results = %d, want 4", len(resp.Results))
	}
	if resp.Results[0].Err != nil {
		t.Errorf("result 0 = %v, want success marker", resp.Results[0].Err)
	}
	if !errors.Is(resp.Results[1].Err, ErrNoNode) {
		t.Errorf("result 1 = %v, want ErrNoNode", resp.Results[1].Err)
	}
	for i := 2; i < 4; i++ {
		if !errors.Is(resp.Results[i].Err, ErrMultiOpAborted) {
			t.Errorf("result %d = %v, want ErrMultiOpAborted", i, resp.Results[i].Err)
		}
	}

	err := resp.Err()
	if err == nil {
		t.Fatal("Err() = nil, want batch failure")
	}
	var me *MultiError
	if !errors.As(err, &me) {
		t.Fatalf("Err() = %T, want *MultiError", err)
	}
	if me.Index != 1 || !errors.Is(me.Err, ErrNoNode) {
		t.Errorf("MultiError = %+v, want index 1 / ErrNoNode", me)
	}
}

func TestMultiResponseCommittedBatch(t *testing.T) {
	e := codec.NewEncoder()
	h := multiHeader{Type: OpCreate, Done: false, Err: 0}
	h.encodeTo(e)
	(&CreateResponse{Path: "/a0000000001"}).EncodeTo(e)
	h = multiHeader{Type: OpSetData, Done: false, Err: 0}
	h.encodeTo(e)
	(&StatResponse{Stat: Stat{Version: 7}}).EncodeTo(e)
	h = multiHeader{Type: OpDelete, Done: false, Err: 0}
	h.encodeTo(e)
	done := multiHeader{Type: opError, Done: true, Err: -1}
	done.encodeTo(e)

	var resp MultiResponse
	d := codec.NewDecoder(e.Bytes())
	resp.DecodeFrom(d)
	if err := d.Close(); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if err := resp.Err(); err != nil {
		t.Fatalf("Err() = %v, want nil", err)
	}
	if len(resp.Results) != 3 {
		t.Fatalf("results = %d, want 3", len(resp.Results))
	}
	if resp.Results[0].String != "/a0000000001" {
		t.Errorf("create result path = %q", resp.Results[0].String)
	}
	if resp.Results[1].Stat.Version != 7 {
		t.Errorf("setData result version = %d, want 7", resp.Results[1].Stat.Version)
	}
}

func TestMultiEmptyBatchRoundTrip(t *testing.T) {
	var ops MultiOps
	e := codec.NewEncoder()
	ops.EncodeTo(e)

	var resp MultiResponse
	d := codec.NewDecoder(e.Bytes())
	resp.DecodeFrom(d)
	if err := d.Close(); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Results) != 0 {
		t.Errorf("results = %d, want 0", len(resp.Results))
	}
	if err := resp.Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
}

func TestMultiReadRoundTrip(t *testing.T) {
	var ops MultiReadOps
	ops.GetData("/a").GetChildren("/")
	e := codec.NewEncoder()
	ops.EncodeTo(e)
	if ops.Len() != 2 {
		t.Fatalf("Len = %d, want 2", ops.Len())
	}

	// Server-shaped reply: data result then children result.
	re := codec.NewEncoder()
	h := multiHeader{Type: OpGetData, Done: false, Err: 0}
	h.encodeTo(re)
	(&GetDataResponse{Data: []byte("v"), Stat: Stat{Version: 1}}).EncodeTo(re)
	h = multiHeader{Type: OpGetChildren, Done: false, Err: 0}
	h.encodeTo(re)
	(&GetChildrenResponse{Children: []string{"a"}}).EncodeTo(re)
	done := multiHeader{Type: opError, Done: true, Err: -1}
	done.encodeTo(re)

	var resp MultiReadResponse
	d := codec.NewDecoder(re.Bytes())
	resp.DecodeFrom(d)
	if err := d.Close(); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("results = %d, want 2", len(resp.Results))
	}
	if string(resp.Results[0].Data) != "v" || resp.Results[0].Stat.Version != 1 {
		t.Errorf("data result = %+v", resp.Results[0])
	}
	if len(resp.Results[1].Children) != 1 || resp.Results[1].Children[0] != "a" {
		t.Errorf("children result = %+v", resp.Results[1])
	}
}
