package proto

import (
	"github.com/bft-labs/zkwire/internal/codec"
)

// Encodable is a record that can be serialized onto the wire.
type Encodable interface {
	EncodeTo(*codec.Encoder)
}

// Decodable is a record that can be read from a decoded frame. Decoding
// errors accumulate in the decoder and are surfaced by Decoder.Close.
type Decodable interface {
	DecodeFrom(*codec.Decoder)
}

// RequestHeader precedes every request payload.
type RequestHeader struct {
	Xid int32
	Op  int32
}

func (h *RequestHeader) EncodeTo(e *codec.Encoder) {
	e.PutInt32(h.Xid)
	e.PutInt32(h.Op)
}

func (h *RequestHeader) DecodeFrom(d *codec.Decoder) {
	h.Xid = d.Int32()
	h.Op = d.Int32()
}

// ResponseHeader precedes every response payload and watch event.
type ResponseHeader struct {
	Xid  int32
	Zxid int64
	Err  int32
}

func (h *ResponseHeader) EncodeTo(e *codec.Encoder) {
	e.PutInt32(h.Xid)
	e.PutInt64(h.Zxid)
	e.PutInt32(h.Err)
}

func (h *ResponseHeader) DecodeFrom(d *codec.Decoder) {
	h.Xid = d.Int32()
	h.Zxid = d.Int64()
	h.Err = d.Int32()
}

// ConnectRequest is the session handshake sent first on every transport.
type ConnectRequest struct {
	ProtocolVersion int32
	LastZxidSeen    int64
	Timeout         int32
	SessionID       int64
	Passwd          []byte
	ReadOnly        bool
}

func (r *ConnectRequest) EncodeTo(e *codec.Encoder) {
	e.PutInt32(r.ProtocolVersion)
	e.PutInt64(r.LastZxidSeen)
	e.PutInt32(r.Timeout)
	e.PutInt64(r.SessionID)
	e.PutBytes(r.Passwd)
	e.PutBool(r.ReadOnly)
}

func (r *ConnectRequest) DecodeFrom(d *codec.Decoder) {
	r.ProtocolVersion = d.Int32()
	r.LastZxidSeen = d.Int64()
	r.Timeout = d.Int32()
	r.SessionID = d.Int64()
	r.Passwd = d.Bytes()
	// Pre-3.4 peers omit the read-only flag.
	if d.Err() == nil && d.Remaining() > 0 {
		r.ReadOnly = d.Bool()
	}
}

// ConnectResponse carries the negotiated session. A negotiated timeout of
// zero means the server refused to resume the requested session.
type ConnectResponse struct {
	ProtocolVersion int32
	Timeout         int32
	SessionID       int64
	Passwd          []byte
	ReadOnly        bool
}

func (r *ConnectResponse) EncodeTo(e *codec.Encoder) {
	e.PutInt32(r.ProtocolVersion)
	e.PutInt32(r.Timeout)
	e.PutInt64(r.SessionID)
	e.PutBytes(r.Passwd)
	e.PutBool(r.ReadOnly)
}

func (r *ConnectResponse) DecodeFrom(d *codec.Decoder) {
	r.ProtocolVersion = d.Int32()
	r.Timeout = d.Int32()
	r.SessionID = d.Int64()
	r.Passwd = d.Bytes()
	if d.Err() == nil && d.Remaining() > 0 {
		r.ReadOnly = d.Bool()
	}
}

// ACL is a single access-control entry on a node.
type ACL struct {
	Perms  int32
	Scheme string
	ID     string
}

func (a *ACL) EncodeTo(e *codec.Encoder) {
	e.PutInt32(a.Perms)
	e.PutString(a.Scheme)
	e.PutString(a.ID)
}

func (a *ACL) DecodeFrom(d *codec.Decoder) {
	a.Perms = d.Int32()
	a.Scheme = d.String()
	a.ID = d.String()
}

func encodeACLs(e *codec.Encoder, acls []ACL) {
	e.PutInt32(int32(len(acls)))
	for i := range acls {
		acls[i].EncodeTo(e)
	}
}

func decodeACLs(d *codec.Decoder) []ACL {
	n := d.Int32()
	if d.Err() != nil || n <= 0 || int(n) > d.Remaining() {
		return nil
	}
	out := make([]ACL, n)
	for i := range out {
		out[i].DecodeFrom(d)
	}
	return out
}

// Stat is the server-maintained metadata of a node.
type Stat struct {
	Czxid          int64
	Mzxid          int64
	Ctime          int64
	Mtime          int64
	Version        int32
	Cversion       int32
	Aversion       int32
	EphemeralOwner int64
	DataLength     int32
	NumChildren    int32
	Pzxid          int64
}

func (s *Stat) EncodeTo(e *codec.Encoder) {
	e.PutInt64(s.Czxid)
	e.PutInt64(s.Mzxid)
	e.PutInt64(s.Ctime)
	e.PutInt64(s.Mtime)
	e.PutInt32(s.Version)
	e.PutInt32(s.Cversion)
	e.PutInt32(s.Aversion)
	e.PutInt64(s.EphemeralOwner)
	e.PutInt32(s.DataLength)
	e.PutInt32(s.NumChildren)
	e.PutInt64(s.Pzxid)
}

func (s *Stat) DecodeFrom(d *codec.Decoder) {
	s.Czxid = d.Int64()
	s.Mzxid = d.Int64()
	s.Ctime = d.Int64()
	s.Mtime = d.Int64()
	s.Version = d.Int32()
	s.Cversion = d.Int32()
	s.Aversion = d.Int32()
	s.EphemeralOwner = d.Int64()
	s.DataLength = d.Int32()
	s.NumChildren = d.Int32()
	s.Pzxid = d.Int64()
}

// CreateRequest creates a node.
type CreateRequest struct {
	Path  string
	Data  []byte
	ACL   []ACL
	Flags int32
}

func (r *CreateRequest) EncodeTo(e *codec.Encoder) {
	e.PutString(r.Path)
	e.PutBytes(r.Data)
	encodeACLs(e, r.ACL)
	e.PutInt32(r.Flags)
}

func (r *CreateRequest) DecodeFrom(d *codec.Decoder) {
	r.Path = d.String()
	r.Data = d.Bytes()
	r.ACL = decodeACLs(d)
	r.Flags = d.Int32()
}

// CreateResponse carries the actual path of the created node, which
// differs from the requested path for sequential nodes.
type CreateResponse struct {
	Path string
}

func (r *CreateResponse) EncodeTo(e *codec.Encoder) { e.PutString(r.Path) }
func (r *CreateResponse) DecodeFrom(d *codec.Decoder) {
	r.Path = d.String()
}

// DeleteRequest deletes a node if its version matches. Version -1 skips
// the check.
type DeleteRequest struct {
	Path    string
	Version int32
}

func (r *DeleteRequest) EncodeTo(e *codec.Encoder) {
	e.PutString(r.Path)
	e.PutInt32(r.Version)
}

func (r *DeleteRequest) DecodeFrom(d *codec.Decoder) {
	r.Path = d.String()
	r.Version = d.Int32()
}

// ExistsRequest checks a node, optionally arming an existence watch.
type ExistsRequest struct {
	Path  string
	Watch bool
}

func (r *ExistsRequest) EncodeTo(e *codec.Encoder) {
	e.PutString(r.Path)
	e.PutBool(r.Watch)
}

func (r *ExistsRequest) DecodeFrom(d *codec.Decoder) {
	r.Path = d.String()
	r.Watch = d.Bool()
}

// StatResponse is the shared shape of exists, setData and setACL replies.
type StatResponse struct {
	Stat Stat
}

func (r *StatResponse) EncodeTo(e *codec.Encoder)   { r.Stat.EncodeTo(e) }
func (r *StatResponse) DecodeFrom(d *codec.Decoder) { r.Stat.DecodeFrom(d) }

// GetDataRequest reads node data, optionally arming a data watch.
type GetDataRequest struct {
	Path  string
	Watch bool
}

func (r *GetDataRequest) EncodeTo(e *codec.Encoder) {
	e.PutString(r.Path)
	e.PutBool(r.Watch)
}

func (r *GetDataRequest) DecodeFrom(d *codec.Decoder) {
	r.Path = d.String()
	r.Watch = d.Bool()
}

// GetDataResponse carries node data and metadata.
type GetDataResponse struct {
	Data []byte
	Stat Stat
}

func (r *GetDataResponse) EncodeTo(e *codec.Encoder) {
	e.PutBytes(r.Data)
	r.Stat.EncodeTo(e)
}

func (r *GetDataResponse) DecodeFrom(d *codec.Decoder) {
	r.Data = d.Bytes()
	r.Stat.DecodeFrom(d)
}

// SetDataRequest writes node data if the version matches.
type SetDataRequest struct {
	Path    string
	Data    []byte
	Version int32
}

func (r *SetDataRequest) EncodeTo(e *codec.Encoder) {
	e.PutString(r.Path)
	e.PutBytes(r.Data)
	e.PutInt32(r.Version)
}

func (r *SetDataRequest) DecodeFrom(d *codec.Decoder) {
	r.Path = d.String()
	r.Data = d.Bytes()
	r.Version = d.Int32()
}

// GetACLRequest reads the ACL of a node.
type GetACLRequest struct {
	Path string
}

func (r *GetACLRequest) EncodeTo(e *codec.Encoder) { e.PutString(r.Path) }
func (r *GetACLRequest) DecodeFrom(d *codec.Decoder) {
	r.Path = d.String()
}

// GetACLResponse carries the ACL list and node metadata.
type GetACLResponse struct {
	ACL  []ACL
	Stat Stat
}

func (r *GetACLResponse) EncodeTo(e *codec.Encoder) {
	encodeACLs(e, r.ACL)
	r.Stat.EncodeTo(e)
}

func (r *GetACLResponse) DecodeFrom(d *codec.Decoder) {
	r.ACL = decodeACLs(d)
	r.Stat.DecodeFrom(d)
}

// SetACLRequest replaces the ACL of a node if the ACL version matches.
type SetACLRequest struct {
	Path    string
	ACL     []ACL
	Version int32
}

func (r *SetACLRequest) EncodeTo(e *codec.Encoder) {
	e.PutString(r.Path)
	encodeACLs(e, r.ACL)
	e.PutInt32(r.Version)
}

func (r *SetACLRequest) DecodeFrom(d *codec.Decoder) {
	r.Path = d.String()
	r.ACL = decodeACLs(d)
	r.Version = d.Int32()
}

// GetChildren2Request lists children, optionally arming a child watch.
type GetChildren2Request struct {
	Path  string
	Watch bool
}

func (r *GetChildren2Request) EncodeTo(e *codec.Encoder) {
	e.PutString(r.Path)
	e.PutBool(r.Watch)
}

func (r *GetChildren2Request) DecodeFrom(d *codec.Decoder) {
	r.Path = d.String()
	r.Watch = d.Bool()
}

// GetChildren2Response carries the child names and the parent's metadata.
type GetChildren2Response struct {
	Children []string
	Stat     Stat
}

func (r *GetChildren2Response) EncodeTo(e *codec.Encoder) {
	e.PutStringList(r.Children)
	r.Stat.EncodeTo(e)
}

func (r *GetChildren2Response) DecodeFrom(d *codec.Decoder) {
	r.Children = d.StringList()
	r.Stat.DecodeFrom(d)
}

// GetChildrenRequest is the stat-less children listing used in multi reads.
type GetChildrenRequest struct {
	Path  string
	Watch bool
}

func (r *GetChildrenRequest) EncodeTo(e *codec.Encoder) {
	e.PutString(r.Path)
	e.PutBool(r.Watch)
}

func (r *GetChildrenRequest) DecodeFrom(d *codec.Decoder) {
	r.Path = d.String()
	r.Watch = d.Bool()
}

// GetChildrenResponse carries child names only.
type GetChildrenResponse struct {
	Children []string
}

func (r *GetChildrenResponse) EncodeTo(e *codec.Encoder) { e.PutStringList(r.Children) }
func (r *GetChildrenResponse) DecodeFrom(d *codec.Decoder) {
	r.Children = d.StringList()
}

// SyncRequest flushes the leader channel for a path.
type SyncRequest struct {
	Path string
}

func (r *SyncRequest) EncodeTo(e *codec.Encoder) { e.PutString(r.Path) }
func (r *SyncRequest) DecodeFrom(d *codec.Decoder) {
	r.Path = d.String()
}

// SyncResponse echoes the synced path.
type SyncResponse struct {
	Path string
}

func (r *SyncResponse) EncodeTo(e *codec.Encoder) { e.PutString(r.Path) }
func (r *SyncResponse) DecodeFrom(d *codec.Decoder) {
	r.Path = d.String()
}

// CheckVersionRequest asserts a node version inside a multi batch.
type CheckVersionRequest struct {
	Path    string
	Version int32
}

func (r *CheckVersionRequest) EncodeTo(e *codec.Encoder) {
	e.PutString(r.Path)
	e.PutInt32(r.Version)
}

func (r *CheckVersionRequest) DecodeFrom(d *codec.Decoder) {
	r.Path = d.String()
	r.Version = d.Int32()
}

// PingRequest is the empty liveness probe payload.
type PingRequest struct{}

func (*PingRequest) EncodeTo(*codec.Encoder)   {}
func (*PingRequest) DecodeFrom(*codec.Decoder) {}

// CloseRequest is the empty session teardown payload.
type CloseRequest struct{}

func (*CloseRequest) EncodeTo(*codec.Encoder)   {}
func (*CloseRequest) DecodeFrom(*codec.Decoder) {}

// AuthRequest adds credentials to the session.
type AuthRequest struct {
	Type   int32
	Scheme string
	Auth   []byte
}

func (r *AuthRequest) EncodeTo(e *codec.Encoder) {
	e.PutInt32(r.Type)
	e.PutString(r.Scheme)
	e.PutBytes(r.Auth)
}

func (r *AuthRequest) DecodeFrom(d *codec.Decoder) {
	r.Type = d.Int32()
	r.Scheme = d.String()
	r.Auth = d.Bytes()
}

// SetWatchesRequest replays outstanding one-shot watches after a session
// is resumed on a new transport.
type SetWatchesRequest struct {
	RelativeZxid int64
	DataWatches  []string
	ExistWatches []string
	ChildWatches []string
}

func (r *SetWatchesRequest) EncodeTo(e *codec.Encoder) {
	e.PutInt64(r.RelativeZxid)
	e.PutStringList(r.DataWatches)
	e.PutStringList(r.ExistWatches)
	e.PutStringList(r.ChildWatches)
}

func (r *SetWatchesRequest) DecodeFrom(d *codec.Decoder) {
	r.RelativeZxid = d.Int64()
	r.DataWatches = d.StringList()
	r.ExistWatches = d.StringList()
	r.ChildWatches = d.StringList()
}

// AddWatchRequest registers a persistent or persistent-recursive watch.
type AddWatchRequest struct {
	Path string
	Mode AddWatchMode
}

func (r *AddWatchRequest) EncodeTo(e *codec.Encoder) {
	e.PutString(r.Path)
	e.PutInt32(int32(r.Mode))
}

func (r *AddWatchRequest) DecodeFrom(d *codec.Decoder) {
	r.Path = d.String()
	r.Mode = AddWatchMode(d.Int32())
}

// RemoveWatchesRequest removes server-side watches on a path.
type RemoveWatchesRequest struct {
	Path string
	Type int32
}

func (r *RemoveWatchesRequest) EncodeTo(e *codec.Encoder) {
	e.PutString(r.Path)
	e.PutInt32(r.Type)
}

func (r *RemoveWatchesRequest) DecodeFrom(d *codec.Decoder) {
	r.Path = d.String()
	r.Type = d.Int32()
}

// WatcherEvent is the payload of a frame with xid -1.
type WatcherEvent struct {
	Type  EventType
	State State
	Path  string
}

func (r *WatcherEvent) EncodeTo(e *codec.Encoder) {
	e.PutInt32(int32(r.Type))
	e.PutInt32(int32(r.State))
	e.PutString(r.Path)
}

func (r *WatcherEvent) DecodeFrom(d *codec.Decoder) {
	r.Type = EventType(d.Int32())
	r.State = State(d.Int32())
	r.Path = d.String()
}
