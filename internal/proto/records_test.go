package proto

import (
	"errors"
	"reflect"
	"testing"

	"github.com/bft-labs/zkwire/internal/codec"
)

func roundTrip(t *testing.T, in interface {
	Encodable
	Decodable
}, out interface {
	Encodable
	Decodable
}) {
	t.Helper()
	e := codec.NewEncoder()
	in.EncodeTo(e)
	d := codec.NewDecoder(e.Bytes())
	out.DecodeFrom(d)
	if err := d.Close(); err != nil {
		t.Fatalf("decode %T: %v", in, err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("round trip %T:\n got %+v\nwant %+v", in, out, in)
	}
}

func TestRecordRoundTrips(t *testing.T) {
	roundTrip(t,
		&ConnectRequest{ProtocolVersion: 0, LastZxidSeen: 77, Timeout: 4000, SessionID: 0x1122, Passwd: make([]byte, 16), ReadOnly: true},
		&ConnectRequest{})
	roundTrip(t,
		&ConnectResponse{Timeout: 6000, SessionID: 9, Passwd: []byte("secretsecretsecr")},
		&ConnectResponse{})
	roundTrip(t,
		&CreateRequest{Path: "/a/b", Data: []byte("v"), ACL: WorldACL(PermAll), Flags: FlagEphemeral | FlagSequence},
		&CreateRequest{})
	roundTrip(t, &DeleteRequest{Path: "/a", Version: -1}, &DeleteRequest{})
	roundTrip(t, &ExistsRequest{Path: "/a", Watch: true}, &ExistsRequest{})
	roundTrip(t,
		&GetDataResponse{Data: []byte("x"), Stat: Stat{Czxid: 1, Mzxid: 2, Version: 3, Pzxid: 4}},
		&GetDataResponse{})
	roundTrip(t, &SetDataRequest{Path: "/a", Data: nil, Version: 2}, &SetDataRequest{})
	roundTrip(t,
		&GetACLResponse{ACL: []ACL{{Perms: PermRead, Scheme: "digest", ID: "u:h"}}, Stat: Stat{Aversion: 1}},
		&GetACLResponse{})
	roundTrip(t,
		&GetChildren2Response{Children: []string{"x", "y"}, Stat: Stat{NumChildren: 2}},
		&GetChildren2Response{})
	roundTrip(t,
		&SetWatchesRequest{RelativeZxid: 12, DataWatches: []string{"/d"}, ExistWatches: nil, ChildWatches: []string{"/c", "/c2"}},
		&SetWatchesRequest{})
	roundTrip(t, &AuthRequest{Scheme: "digest", Auth: []byte("u:p")}, &AuthRequest{})
	roundTrip(t, &AddWatchRequest{Path: "/p", Mode: AddWatchModePersistentRecursive}, &AddWatchRequest{})
	roundTrip(t, &RemoveWatchesRequest{Path: "/p", Type: WatcherTypeAny}, &RemoveWatchesRequest{})
	roundTrip(t,
		&WatcherEvent{Type: EventNodeDataChanged, State: StateHasSession, Path: "/w"},
		&WatcherEvent{})
	roundTrip(t, &RequestHeader{Xid: 5, Op: OpGetData}, &RequestHeader{})
	roundTrip(t, &ResponseHeader{Xid: 5, Zxid: 99, Err: -101}, &ResponseHeader{})
}

func TestConnectResponseWithoutReadOnlyFlag(t *testing.T) {
	// Older servers end the handshake response after the password.
	e := codec.NewEncoder()
	e.PutInt32(0)
	e.PutInt32(4000)
	e.PutInt64(123)
	e.PutBytes(make([]byte, 16))

	var r ConnectResponse
	d := codec.NewDecoder(e.Bytes())
	r.DecodeFrom(d)
	if err := d.Close(); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if r.SessionID != 123 || r.ReadOnly {
		t.Errorf("decoded %+v, want session 123 and not read-only", r)
	}
}

func TestErrCodeMapping(t *testing.T) {
	cases := []struct {
		code int32
		want error
	}{
		{0, nil},
		{-101, ErrNoNode},
		{-110, ErrNodeExists},
		{-103, ErrBadVersion},
		{-111, ErrNotEmpty},
		{-108, ErrNoChildrenForEphemerals},
		{-112, ErrSessionExpired},
		{-115, ErrAuthFailed},
		{-2, ErrMultiOpAborted},
	}
	for _, c := range cases {
		got := ErrCode(c.code)
		if !errors.Is(got, c.want) {
			t.Errorf("ErrCode(%d) = %v, want %v", c.code, got, c.want)
		}
	}
	if got := ErrCode(-9999); !errors.Is(got, ErrAPIError) {
		t.Errorf("ErrCode(-9999) = %v, want ErrAPIError", got)
	}
}

func TestValidatePath(t *testing.T) {
	valid := []string{"/", "/a", "/a/b/c", "/a-1/_b/c.d", "/a/b."}
	for _, p := range valid {
		if err := ValidatePath(p, false); err != nil {
			t.Errorf("ValidatePath(%q) = %v, want nil", p, err)
		}
	}
	invalid := []string{"", "a", "/a/", "/a//b", "/a/./b", "/a/../b", "/a\x00b"}
	for _, p := range invalid {
		if err := ValidatePath(p, false); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("ValidatePath(%q) = %v, want ErrInvalidPath", p, err)
		}
	}
	// A sequential create may end with a slash, the server completes it.
	if err := ValidatePath("/a/node-", true); err != nil {
		t.Errorf("sequential ValidatePath = %v, want nil", err)
	}
	if err := ValidatePath("/a/", true); err != nil {
		t.Errorf("sequential trailing slash = %v, want nil", err)
	}
}
