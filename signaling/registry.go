package signaling

import (
	"log/slog"
	"slices"
	"sync"

	callrelay "github.com/BrownNPC/CallRelay"
	"github.com/go4org/hashtriemap"
)

// Conn is the handle the core holds on one live transport connection.
//
// The transport creates and owns the underlying channel. The registry only keeps
// a reference to the handle and never opens or closes anything through it.
type Conn struct {
	id callrelay.ConnID

	mu       sync.Mutex
	identity callrelay.Identity // written under Registry.mu
}

func NewConn(id callrelay.ConnID) *Conn {
	return &Conn{id: id}
}

func (c *Conn) ID() callrelay.ConnID { return c.id }

// Identity returns the identity currently bound to the connection, or "" when unbound.
func (c *Conn) Identity() callrelay.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

func (c *Conn) bind(id callrelay.Identity) {
	c.mu.Lock()
	c.identity = id
	c.mu.Unlock()
}

// Snapshot is the registered identity set after one registry mutation.
// Version grows by one per mutation.
type Snapshot struct {
	Version    uint64
	Identities []callrelay.Identity
}

// Registry maps identities to the connection that currently represents them.
//
// Register and Remove are serialized by one mutex. Resolve reads the trie
// directly; every trie operation is atomic so a lookup sees the state either
// before or after a concurrent mutation.
type Registry struct {
	mu      sync.Mutex
	version uint64
	// map identity to the last connection that registered it.
	entries hashtriemap.HashTrieMap[callrelay.Identity, *Conn]
	log     *slog.Logger
}

// a nil log will use slog.Default().
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{log: log}
}

// Register binds identity to conn, replacing any previous entry for identity.
// The previous connection stays open but is no longer reachable by identity.
//
// An empty identity is ignored and ok is false.
func (r *Registry) Register(identity callrelay.Identity, conn *Conn) (snap Snapshot, ok bool) {
	if identity == "" {
		r.log.Debug("register with empty identity ignored", "conn", conn.ID())
		return Snapshot{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, replaced := r.entries.Swap(identity, conn); replaced && prev != conn {
		r.log.Debug("identity moved to a new connection", "identity", identity, "from", prev.ID(), "to", conn.ID())
	}
	conn.bind(identity)
	return r.snapshotLocked(), true
}

// Resolve returns the connection currently bound to identity.
func (r *Registry) Resolve(identity callrelay.Identity) (*Conn, bool) {
	if identity == "" {
		return nil, false
	}
	return r.entries.Load(identity)
}

// Remove unbinds conn. The entry for its identity is deleted only if it still
// points at conn, so a newer registration from another connection survives.
//
// ok is false when conn had no identity bound.
func (r *Registry) Remove(conn *Conn) (snap Snapshot, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	identity := conn.Identity()
	if identity == "" {
		return Snapshot{}, false
	}
	conn.bind("")
	if !r.entries.CompareAndDelete(identity, conn) {
		r.log.Debug("stale removal kept newer entry", "identity", identity, "conn", conn.ID())
	}
	return r.snapshotLocked(), true
}

// Identities returns the registered identities in sorted order.
func (r *Registry) Identities() []callrelay.Identity {
	ids := make([]callrelay.Identity, 0)
	r.entries.Range(func(id callrelay.Identity, _ *Conn) bool {
		ids = append(ids, id)
		return true
	})
	slices.Sort(ids)
	return ids
}

func (r *Registry) Len() int {
	n := 0
	r.entries.Range(func(callrelay.Identity, *Conn) bool {
		n++
		return true
	})
	return n
}

// caller holds r.mu.
func (r *Registry) snapshotLocked() Snapshot {
	r.version++
	return Snapshot{Version: r.version, Identities: r.Identities()}
}
