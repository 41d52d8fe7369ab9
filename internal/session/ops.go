package session

import (
	"context"
	"errors"

	"github.com/bft-labs/zkwire/internal/proto"
	"github.com/bft-labs/zkwire/internal/watch"
	"github.com/bft-labs/zkwire/internal/wire"
)

// request submits one operation on the current multiplexer and waits for
// its result. Submissions while the session is not connected fail fast
// with the error matching the session phase; requests in flight when the
// connection drops fail with ErrConnectionLost and are never replayed.
func (c *Conn) request(ctx context.Context, op int32, req proto.Encodable, resp proto.Decodable, cb func(wire.Result)) (wire.Result, error) {
	c.mu.Lock()
	mux := c.mux
	ph := c.ph
	c.mu.Unlock()

	if mux == nil {
		switch ph {
		case phaseExpired:
			return wire.Result{}, proto.ErrSessionExpired
		case phaseClosed:
			return wire.Result{}, proto.ErrConnectionClosed
		default:
			return wire.Result{}, proto.ErrConnectionLost
		}
	}

	var p *wire.Pending
	var err error
	if cb != nil {
		p, err = mux.SubmitFunc(op, req, resp, cb)
	} else {
		p, err = mux.Submit(op, req, resp)
	}
	if err != nil {
		return wire.Result{}, err
	}
	return p.Wait(ctx)
}

// Create creates a node at path carrying data and acl. For sequential
// nodes the returned path carries the server-assigned suffix.
func (c *Conn) Create(ctx context.Context, path string, data []byte, flags int32, acl []proto.ACL) (string, error) {
	if err := proto.ValidatePath(path, flags&proto.FlagSequence != 0); err != nil {
		return "", err
	}
	var resp proto.CreateResponse
	req := proto.CreateRequest{Path: c.serverPath(path), Data: data, ACL: acl, Flags: flags}
	if _, err := c.request(ctx, proto.OpCreate, &req, &resp, nil); err != nil {
		return "", err
	}
	return c.clientPath(resp.Path), nil
}

// Delete removes the node at path if version matches; version -1 skips
// the check.
func (c *Conn) Delete(ctx context.Context, path string, version int32) error {
	if err := proto.ValidatePath(path, false); err != nil {
		return err
	}
	_, err := c.request(ctx, proto.OpDelete, &proto.DeleteRequest{Path: c.serverPath(path), Version: version}, nil, nil)
	return err
}

// Exists returns the node's metadata, or nil when the node does not
// exist.
func (c *Conn) Exists(ctx context.Context, path string) (*proto.Stat, error) {
	if err := proto.ValidatePath(path, false); err != nil {
		return nil, err
	}
	var resp proto.StatResponse
	_, err := c.request(ctx, proto.OpExists, &proto.ExistsRequest{Path: c.serverPath(path)}, &resp, nil)
	if errors.Is(err, proto.ErrNoNode) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &resp.Stat, nil
}

// ExistsW is Exists plus a one-shot watch. On an existing node the watch
// fires on deletion or data change; on a missing node it fires on
// creation. The watch is armed in both outcomes.
func (c *Conn) ExistsW(ctx context.Context, path string) (*proto.Stat, <-chan watch.Event, error) {
	if err := proto.ValidatePath(path, false); err != nil {
		return nil, nil, err
	}
	var resp proto.StatResponse
	var ch <-chan watch.Event
	_, err := c.request(ctx, proto.OpExists, &proto.ExistsRequest{Path: c.serverPath(path), Watch: true}, &resp, func(res wire.Result) {
		switch res.Err {
		case nil:
			ch = c.watches.Register(path, watch.KindData)
		case proto.ErrNoNode:
			ch = c.watches.Register(path, watch.KindExist)
		}
	})
	if errors.Is(err, proto.ErrNoNode) {
		return nil, ch, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return &resp.Stat, ch, nil
}

// Get returns the node's data and metadata.
func (c *Conn) Get(ctx context.Context, path string) ([]byte, *proto.Stat, error) {
	if err := proto.ValidatePath(path, false); err != nil {
		return nil, nil, err
	}
	var resp proto.GetDataResponse
	if _, err := c.request(ctx, proto.OpGetData, &proto.GetDataRequest{Path: c.serverPath(path)}, &resp, nil); err != nil {
		return nil, nil, err
	}
	return resp.Data, &resp.Stat, nil
}

// GetW is Get plus a one-shot data watch, armed only when the read
// succeeds. The arming happens on the read loop before the next inbound
// frame, so the watch cannot miss the event that would fire it.
func (c *Conn) GetW(ctx context.Context, path string) ([]byte, *proto.Stat, <-chan watch.Event, error) {
	if err := proto.ValidatePath(path, false); err != nil {
		return nil, nil, nil, err
	}
	var resp proto.GetDataResponse
	var ch <-chan watch.Event
	_, err := c.request(ctx, proto.OpGetData, &proto.GetDataRequest{Path: c.serverPath(path), Watch: true}, &resp, func(res wire.Result) {
		if res.Err == nil {
			ch = c.watches.Register(path, watch.KindData)
		}
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return resp.Data, &resp.Stat, ch, nil
}

// Set writes data to the node at path if version matches; version -1
// skips the check.
func (c *Conn) Set(ctx context.Context, path string, data []byte, version int32) (*proto.Stat, error) {
	if err := proto.ValidatePath(path, false); err != nil {
		return nil, err
	}
	var resp proto.StatResponse
	req := proto.SetDataRequest{Path: c.serverPath(path), Data: data, Version: version}
	if _, err := c.request(ctx, proto.OpSetData, &req, &resp, nil); err != nil {
		return nil, err
	}
	return &resp.Stat, nil
}

// Children lists the node's children together with the parent's
// metadata.
func (c *Conn) Children(ctx context.Context, path string) ([]string, *proto.Stat, error) {
	if err := proto.ValidatePath(path, false); err != nil {
		return nil, nil, err
	}
	var resp proto.GetChildren2Response
	if _, err := c.request(ctx, proto.OpGetChildren2, &proto.GetChildren2Request{Path: c.serverPath(path)}, &resp, nil); err != nil {
		return nil, nil, err
	}
	return resp.Children, &resp.Stat, nil
}

// ChildrenW is Children plus a one-shot child watch, armed only when the
// listing succeeds.
func (c *Conn) ChildrenW(ctx context.Context, path string) ([]string, *proto.Stat, <-chan watch.Event, error) {
	if err := proto.ValidatePath(path, false); err != nil {
		return nil, nil, nil, err
	}
	var resp proto.GetChildren2Response
	var ch <-chan watch.Event
	_, err := c.request(ctx, proto.OpGetChildren2, &proto.GetChildren2Request{Path: c.serverPath(path), Watch: true}, &resp, func(res wire.Result) {
		if res.Err == nil {
			ch = c.watches.Register(path, watch.KindChild)
		}
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return resp.Children, &resp.Stat, ch, nil
}

// GetACL returns the node's access-control list and metadata.
func (c *Conn) GetACL(ctx context.Context, path string) ([]proto.ACL, *proto.Stat, error) {
	if err := proto.ValidatePath(path, false); err != nil {
		return nil, nil, err
	}
	var resp proto.GetACLResponse
	if _, err := c.request(ctx, proto.OpGetACL, &proto.GetACLRequest{Path: c.serverPath(path)}, &resp, nil); err != nil {
		return nil, nil, err
	}
	return resp.ACL, &resp.Stat, nil
}

// SetACL replaces the node's access-control list if the ACL version
// matches; version -1 skips the check.
func (c *Conn) SetACL(ctx context.Context, path string, acl []proto.ACL, version int32) (*proto.Stat, error) {
	if err := proto.ValidatePath(path, false); err != nil {
		return nil, err
	}
	var resp proto.StatResponse
	req := proto.SetACLRequest{Path: c.serverPath(path), ACL: acl, Version: version}
	if _, err := c.request(ctx, proto.OpSetACL, &req, &resp, nil); err != nil {
		return nil, err
	}
	return &resp.Stat, nil
}

// Sync flushes the leader channel for path so subsequent reads on this
// session observe everything committed before the call.
func (c *Conn) Sync(ctx context.Context, path string) (string, error) {
	if err := proto.ValidatePath(path, false); err != nil {
		return "", err
	}
	var resp proto.SyncResponse
	if _, err := c.request(ctx, proto.OpSync, &proto.SyncRequest{Path: c.serverPath(path)}, &resp, nil); err != nil {
		return "", err
	}
	return c.clientPath(resp.Path), nil
}

// Multi submits ops as one atomic batch. On a committed batch the
// per-operation results carry created paths and stats; on a failed batch
// the returned error is a *proto.MultiError naming the first operation
// that caused the abort, and the results carry the full error vector.
func (c *Conn) Multi(ctx context.Context, ops *proto.MultiOps) ([]proto.MultiResult, error) {
	if ops == nil || ops.Len() == 0 {
		return nil, proto.ErrBadArguments
	}
	for _, path := range ops.Paths() {
		if err := proto.ValidatePath(path, false); err != nil {
			return nil, err
		}
	}
	var resp proto.MultiResponse
	if _, err := c.request(ctx, proto.OpMulti, ops.Rebase(c.chroot), &resp, nil); err != nil {
		return resp.Results, err
	}
	for i := range resp.Results {
		if resp.Results[i].Op == proto.OpCreate {
			resp.Results[i].String = c.clientPath(resp.Results[i].String)
		}
	}
	return resp.Results, resp.Err()
}

// MultiRead submits ops as one batched read. Reads do not abort each
// other: each result carries its own data or error.
func (c *Conn) MultiRead(ctx context.Context, ops *proto.MultiReadOps) ([]proto.MultiReadResult, error) {
	if ops == nil || ops.Len() == 0 {
		return nil, proto.ErrBadArguments
	}
	var resp proto.MultiReadResponse
	if _, err := c.request(ctx, proto.OpMultiRead, ops.Rebase(c.chroot), &resp, nil); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// AddAuth attaches credentials to the session and remembers them for
// replay on every reconnect. A server that rejects the credentials
// tears the session down.
func (c *Conn) AddAuth(ctx context.Context, scheme string, auth []byte) error {
	c.mu.Lock()
	mux := c.mux
	ph := c.ph
	c.mu.Unlock()
	if mux == nil {
		switch ph {
		case phaseExpired:
			return proto.ErrSessionExpired
		case phaseClosed:
			return proto.ErrConnectionClosed
		default:
			return proto.ErrConnectionLost
		}
	}

	p, err := mux.SubmitReserved(proto.XidAuth, proto.OpAuth, &proto.AuthRequest{Scheme: scheme, Auth: auth}, nil)
	if err != nil {
		return err
	}
	if _, err := p.Wait(ctx); err != nil {
		return err
	}

	c.credMu.Lock()
	c.creds = append(c.creds, authCred{scheme: scheme, auth: auth})
	c.credMu.Unlock()
	return nil
}

// AddWatch registers a persistent watch on path. The returned channel
// receives every matching event until RemoveWatch is called or the
// session ends; recursive mode also matches descendants of path. The
// registration is re-established automatically on reconnect.
func (c *Conn) AddWatch(ctx context.Context, path string, recursive bool) (<-chan watch.Event, error) {
	if err := proto.ValidatePath(path, false); err != nil {
		return nil, err
	}
	mode := proto.AddWatchModePersistent
	if recursive {
		mode = proto.AddWatchModePersistentRecursive
	}
	var ch <-chan watch.Event
	_, err := c.request(ctx, proto.OpAddWatch, &proto.AddWatchRequest{Path: c.serverPath(path), Mode: mode}, nil, func(res wire.Result) {
		if res.Err == nil {
			ch = c.watches.RegisterPersistent(path, recursive)
		}
	})
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// RemoveWatch removes the server-side watches of the given type on path
// and resolves only the matching local registrations with an
// EventNotWatching notification. Registrations of other kinds stay
// armed, since the server still holds them.
func (c *Conn) RemoveWatch(ctx context.Context, path string, watcherType int32) error {
	if err := proto.ValidatePath(path, false); err != nil {
		return err
	}
	req := proto.RemoveWatchesRequest{Path: c.serverPath(path), Type: watcherType}
	if _, err := c.request(ctx, proto.OpRemoveWatches, &req, nil, nil); err != nil {
		return err
	}

	var kinds []watch.Kind
	persistent := false
	switch watcherType {
	case proto.WatcherTypeChildren:
		kinds = []watch.Kind{watch.KindChild}
	case proto.WatcherTypeData:
		kinds = []watch.Kind{watch.KindData, watch.KindExist}
	default:
		kinds = []watch.Kind{watch.KindData, watch.KindExist, watch.KindChild}
		persistent = true
	}
	c.watches.Remove(path, kinds, persistent)
	return nil
}
