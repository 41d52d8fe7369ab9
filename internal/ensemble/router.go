// Package ensemble tracks the candidate server addresses of a session and
// decides which one to try next. Addresses are demoted by backoff after
// consecutive failures but never removed: a member that is down now may
// recover, and a client fleet that forgot it would never find out.
package ensemble

import (
	"errors"
	"math/rand"
	"net"
	"strings"
	"sync"
	"time"
)

// DefaultPort is appended to addresses given without a port.
const DefaultPort = "2181"

// ErrNoServers is returned when the configured address list is empty.
var ErrNoServers = errors.New("zkwire: no servers configured")

type member struct {
	addr  string
	fails int
	back  *backoff
}

// Router hands out candidate addresses in shuffled round-robin order.
// Every member is visited once per cycle and the order is reshuffled at
// each cycle boundary so repeated failures do not pin a whole fleet onto
// the same unreachable member.
type Router struct {
	mu      sync.Mutex
	members []*member
	order   []int
	pos     int
	rnd     *rand.Rand
}

// New builds a router over the given addresses, normalizing missing ports
// to DefaultPort. Duplicates are kept; the caller owns the list shape.
func New(servers []string) (*Router, error) {
	if len(servers) == 0 {
		return nil, ErrNoServers
	}
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	r := &Router{rnd: rnd}
	for _, s := range servers {
		addr := normalize(s)
		if addr == "" {
			return nil, errors.New("zkwire: empty server address")
		}
		r.members = append(r.members, &member{
			addr: addr,
			back: newBackoff(DefaultBackoffInitial, DefaultBackoffMax, rnd),
		})
	}
	r.order = rnd.Perm(len(r.members))
	return r, nil
}

// Len returns the number of configured members.
func (r *Router) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// Addrs returns the normalized member addresses in configuration order.
func (r *Router) Addrs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.members))
	for i, m := range r.members {
		out[i] = m.addr
	}
	return out
}

// Update replaces the member list with servers, normalized the same way
// New normalizes them. Members present in both lists keep their failure
// history; the rotation restarts with a fresh shuffle so new members
// become candidates immediately. On error the existing list is kept.
func (r *Router) Update(servers []string) error {
	if len(servers) == 0 {
		return ErrNoServers
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	members := make([]*member, 0, len(servers))
	for _, s := range servers {
		addr := normalize(s)
		if addr == "" {
			return errors.New("zkwire: empty server address")
		}
		if m := r.find(addr); m != nil {
			members = append(members, m)
			continue
		}
		members = append(members, &member{
			addr: addr,
			back: newBackoff(DefaultBackoffInitial, DefaultBackoffMax, r.rnd),
		})
	}
	r.members = members
	r.order = r.rnd.Perm(len(r.members))
	r.pos = 0
	return nil
}

// Next returns the next candidate address and how long the caller should
// wait before dialing it. The wait is zero for members without recent
// failures and grows exponentially with consecutive failures.
func (r *Router) Next() (addr string, wait time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pos >= len(r.order) {
		r.order = r.rnd.Perm(len(r.members))
		r.pos = 0
	}
	m := r.members[r.order[r.pos]]
	r.pos++

	if m.fails > 0 {
		wait = m.back.Next()
	}
	return m.addr, wait
}

// Fail records a failed connection attempt against addr.
func (r *Router) Fail(addr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m := r.find(addr); m != nil {
		m.fails++
	}
}

// Reset clears the failure history of addr after a successful handshake.
func (r *Router) Reset(addr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m := r.find(addr); m != nil {
		m.fails = 0
		m.back.Reset()
	}
}

func (r *Router) find(addr string) *member {
	for _, m := range r.members {
		if m.addr == addr {
			return m
		}
	}
	return nil
}

func normalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if _, _, err := net.SplitHostPort(s); err != nil {
		return net.JoinHostPort(s, DefaultPort)
	}
	return s
}
