// Package watch tracks outstanding watch registrations and converts
// server watch-event frames into caller notifications.
//
// One-shot registrations are keyed by path and kind, fire at most once
// and are consumed by the firing. Persistent and persistent-recursive
// registrations survive firings and are only removed explicitly. Events
// that match nothing (already consumed, or stale from a superseded
// connection) are discarded without error.
package watch

import (
	"strings"
	"sync"

	"github.com/bft-labs/zkwire/internal/proto"
	"github.com/bft-labs/zkwire/pkg/log"
)

// Kind identifies what a one-shot registration observes.
type Kind int

const (
	KindData Kind = iota
	KindExist
	KindChild
)

// String returns a human-readable representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindData:
		return "Data"
	case KindExist:
		return "Exist"
	case KindChild:
		return "Child"
	default:
		return "Unknown"
	}
}

// Event is a single notification delivered to a registration holder.
// Type EventSession carries a session-state transition instead of a node
// change; terminal states resolve the registration for good.
type Event struct {
	Type  proto.EventType
	State proto.State
	Path  string

	// Err is set on session-level events that carry a failure.
	Err error

	// Server is the ensemble member the event arrived from, when known.
	Server string
}

// persistentBuffer bounds a persistent registration's channel. A holder
// that stops draining loses the oldest events rather than stalling the
// read loop.
const persistentBuffer = 32

type key struct {
	path string
	kind Kind
}

type registration struct {
	ch        chan Event
	recursive bool
	closed    bool
}

// Manager owns every outstanding registration of one session.
type Manager struct {
	mu         sync.Mutex
	oneshot    map[key][]*registration
	persistent map[string][]*registration
	closed     bool
	logger     log.Logger
}

// NewManager creates an empty manager.
func NewManager(logger log.Logger) *Manager {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Manager{
		oneshot:    make(map[key][]*registration),
		persistent: make(map[string][]*registration),
		logger:     logger,
	}
}

// Register arms a one-shot registration for path and kind. The returned
// channel receives exactly one event and is then closed. After the
// manager itself has been resolved (session expired or closed) the
// channel arrives already closed.
func (m *Manager) Register(path string, kind Kind) <-chan Event {
	reg := &registration{ch: make(chan Event, 1)}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		close(reg.ch)
		return reg.ch
	}
	k := key{path, kind}
	m.oneshot[k] = append(m.oneshot[k], reg)
	return reg.ch
}

// RegisterPersistent arms a persistent registration for path. The
// returned channel receives every matching event until the registration
// is removed or the session ends; it is buffered and drops the event,
// with a log line, if the holder falls persistentBuffer events behind.
func (m *Manager) RegisterPersistent(path string, recursive bool) <-chan Event {
	reg := &registration{ch: make(chan Event, persistentBuffer), recursive: recursive}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		close(reg.ch)
		return reg.ch
	}
	m.persistent[path] = append(m.persistent[path], reg)
	return reg.ch
}

// RemovePersistent drops every persistent registration on path, closing
// their channels. It reports whether anything was removed.
func (m *Manager) RemovePersistent(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	regs, ok := m.persistent[path]
	if !ok {
		return false
	}
	delete(m.persistent, path)
	for _, reg := range regs {
		reg.close()
	}
	return true
}

// Dispatch routes a watch-event frame to the matching registrations.
// One-shot matches are consumed; persistent matches are re-armed
// implicitly. A frame that matches nothing is dropped silently.
func (m *Manager) Dispatch(ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, kind := range kindsFor(ev.Type) {
		k := key{ev.Path, kind}
		regs := m.oneshot[k]
		if len(regs) == 0 {
			continue
		}
		delete(m.oneshot, k)
		for _, reg := range regs {
			reg.ch <- ev
			reg.close()
		}
	}

	if ev.Type == proto.EventNotWatching {
		// Server-side watch removal resolves persistent holders too.
		if regs, ok := m.persistent[ev.Path]; ok {
			delete(m.persistent, ev.Path)
			for _, reg := range regs {
				reg.deliver(ev, m.logger)
				reg.close()
			}
		}
		return
	}

	for path, regs := range m.persistent {
		for _, reg := range regs {
			if path == ev.Path || (reg.recursive && strings.HasPrefix(ev.Path, path+"/")) {
				reg.deliver(ev, m.logger)
			}
		}
	}
}

// Remove resolves the registrations on path matching kinds with an
// EventNotWatching notification, leaving other kinds armed. Persistent
// registrations are only touched when removePersistent is set. It
// reports whether anything was resolved.
func (m *Manager) Remove(path string, kinds []Kind, removePersistent bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	ev := Event{Type: proto.EventNotWatching, Path: path}
	removed := false
	for _, kind := range kinds {
		k := key{path, kind}
		regs := m.oneshot[k]
		if len(regs) == 0 {
			continue
		}
		delete(m.oneshot, k)
		removed = true
		for _, reg := range regs {
			reg.ch <- ev
			reg.close()
		}
	}

	if removePersistent {
		if regs, ok := m.persistent[path]; ok {
			delete(m.persistent, path)
			removed = true
			for _, reg := range regs {
				reg.deliver(ev, m.logger)
				reg.close()
			}
		}
	}
	return removed
}

// SessionEvent fans a non-terminal session-state change out to every
// persistent registration. One-shot holders only learn about terminal
// states, via Resolve.
func (m *Manager) SessionEvent(state proto.State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev := Event{Type: proto.EventSession, State: state}
	for _, regs := range m.persistent {
		for _, reg := range regs {
			reg.deliver(ev, m.logger)
		}
	}
}

// Resolve completes every outstanding registration with a terminal
// session event and closes the manager for further registrations.
// Nothing is left pending.
func (m *Manager) Resolve(state proto.State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true

	ev := Event{Type: proto.EventSession, State: state}
	for k, regs := range m.oneshot {
		delete(m.oneshot, k)
		for _, reg := range regs {
			reg.ch <- ev
			reg.close()
		}
	}
	for path, regs := range m.persistent {
		delete(m.persistent, path)
		for _, reg := range regs {
			reg.deliver(ev, m.logger)
			reg.close()
		}
	}
}

// OneshotPaths returns the outstanding one-shot registrations per kind,
// for replay via a setWatches request after session resumption.
func (m *Manager) OneshotPaths() (data, exist, child []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.oneshot {
		switch k.kind {
		case KindData:
			data = append(data, k.path)
		case KindExist:
			exist = append(exist, k.path)
		case KindChild:
			child = append(child, k.path)
		}
	}
	return data, exist, child
}

// PersistentPaths returns the outstanding persistent registrations, for
// replay via addWatch requests after session resumption.
func (m *Manager) PersistentPaths() (exact, recursive []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for path, regs := range m.persistent {
		hasExact, hasRecursive := false, false
		for _, reg := range regs {
			if reg.recursive {
				hasRecursive = true
			} else {
				hasExact = true
			}
		}
		if hasExact {
			exact = append(exact, path)
		}
		if hasRecursive {
			recursive = append(recursive, path)
		}
	}
	return exact, recursive
}

// Empty reports whether no registrations are outstanding.
func (m *Manager) Empty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.oneshot) == 0 && len(m.persistent) == 0
}

func (r *registration) close() {
	if !r.closed {
		r.closed = true
		close(r.ch)
	}
}

func (r *registration) deliver(ev Event, logger log.Logger) {
	if r.closed {
		return
	}
	select {
	case r.ch <- ev:
	default:
		logger.Warn("persistent watch holder too slow, dropping event",
			log.String("path", ev.Path),
			log.String("type", ev.Type.String()),
		)
	}
}

// kindsFor maps an event type onto the one-shot kinds it fires. A node
// deletion resolves data, existence and child registrations alike; a
// creation can only satisfy an existence registration since data and
// child watches require the node to have existed.
func kindsFor(t proto.EventType) []Kind {
	switch t {
	case proto.EventNodeCreated:
		return []Kind{KindExist}
	case proto.EventNodeDeleted:
		return []Kind{KindData, KindExist, KindChild}
	case proto.EventNodeDataChanged:
		return []Kind{KindData, KindExist}
	case proto.EventNodeChildrenChanged:
		return []Kind{KindChild}
	case proto.EventNotWatching:
		return []Kind{KindData, KindExist, KindChild}
	default:
		return nil
	}
}
