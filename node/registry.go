package node

import "sync"

// Registry is a thread-safe mapping from address to other-node. It
// guarantees exactly one node-joined notification per address, even
// when two inbound messages from the same new address race each other.
type Registry struct {
	mu    sync.Mutex
	nodes map[Address]*Node

	joinedMu sync.Mutex
	onJoined []func(*Node)
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{nodes: make(map[Address]*Node)}
}

// TryFind looks up an already-registered other-node by address.
func (r *Registry) TryFind(addr Address) (*Node, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[addr]
	return n, ok
}

// TryAdd inserts n under addr if no node is registered there yet, or
// returns the node that is. wasAdded reports which happened. The
// node-joined notification fires exactly once per address, for whichever
// caller's TryAdd actually performed the insert.
func (r *Registry) TryAdd(addr Address, n *Node) (result *Node, wasAdded bool) {
	r.mu.Lock()
	if existing, ok := r.nodes[addr]; ok {
		r.mu.Unlock()
		return existing, false
	}
	r.nodes[addr] = n
	r.mu.Unlock()

	r.emitJoined(n)
	return n, true
}

// All returns an enumerable snapshot of every registered other-node.
func (r *Registry) All() []*Node {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Node, 0, len(r.nodes))
	for _, n := range r.nodes {
		out = append(out, n)
	}
	return out
}

// OnJoined registers fn to run once per newly observed address, after
// the node is visible to TryFind.
func (r *Registry) OnJoined(fn func(*Node)) {
	r.joinedMu.Lock()
	defer r.joinedMu.Unlock()
	r.onJoined = append(r.onJoined, fn)
}

func (r *Registry) emitJoined(n *Node) {
	r.joinedMu.Lock()
	fns := make([]func(*Node), len(r.onJoined))
	copy(fns, r.onJoined)
	r.joinedMu.Unlock()

	for _, fn := range fns {
		fn(n)
	}
}
