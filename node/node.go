package node

import (
	"sync"

	"echonet-core/lite"
	"echonet-core/lite/spec"
)

// Address identifies a node on the transport's address space (e.g. an
// IP address string). The core treats it as an opaque, comparable key;
// it never parses or resolves it.
type Address string

// DevicesChange describes a single add/remove on a node's device-object
// collection.
type DevicesChange struct {
	EOJ     lite.EOJ
	Added   bool
	Removed bool
}

// Node is either the self-node (exactly one, owned by the client) or an
// other-node (many, keyed by Address in a Registry). Every node has a
// node-profile object plus zero or more device objects.
type Node struct {
	address     Address
	isSelf      bool
	nodeProfile *Object

	mu             sync.RWMutex
	devices        map[lite.EOJ]*Object
	listeners      map[int]func(DevicesChange)
	nextListenerID int
}

func newNode(addr Address, isSelf bool, nodeProfile *Object) *Node {
	return &Node{
		address:     addr,
		isSelf:      isSelf,
		nodeProfile: nodeProfile,
		devices:     make(map[lite.EOJ]*Object),
		listeners:   make(map[int]func(DevicesChange)),
	}
}

// NewSelfNode builds the local node's model: a node-profile object
// backed by npSpec, plus any device objects to host from the start.
func NewSelfNode(instanceCode byte, npSpec spec.ClassSpec, devices ...*Object) *Node {
	n := newNode("", true, NewDetailedObject(lite.MakeEOJ(lite.NodeProfileClassCode, instanceCode), npSpec))
	for _, d := range devices {
		n.devices[d.EOJ()] = d
	}
	return n
}

// NewOtherNode builds a remote node's model at addr. Its node-profile
// object starts undetailed; the discovery sequence fills it in once the
// profile's own property map is read.
func NewOtherNode(addr Address) *Node {
	return newNode(addr, false, NewUndetailedObject(lite.MakeEOJ(lite.NodeProfileClassCode, 1)))
}

func (n *Node) Address() Address    { return n.address }
func (n *Node) IsSelf() bool        { return n.isSelf }
func (n *Node) NodeProfile() *Object { return n.nodeProfile }

// Device looks up a hosted device object by EOJ.
func (n *Node) Device(eoj lite.EOJ) (*Object, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	o, ok := n.devices[eoj]
	return o, ok
}

// Devices returns an enumerable snapshot of the node's device-object
// collection.
func (n *Node) Devices() []*Object {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]*Object, 0, len(n.devices))
	for _, o := range n.devices {
		out = append(out, o)
	}
	return out
}

// EnsureDevice returns the device object for eoj, creating one if it
// doesn't exist yet and firing a devices-changed(Added) notification.
// When cs is the zero ClassSpec (no registered properties), the new
// object is undetailed; otherwise it is detailed.
func (n *Node) EnsureDevice(eoj lite.EOJ, cs spec.ClassSpec) (*Object, bool) {
	n.mu.Lock()
	if o, ok := n.devices[eoj]; ok {
		n.mu.Unlock()
		return o, false
	}
	var o *Object
	if len(cs.Properties()) > 0 {
		o = NewDetailedObject(eoj, cs)
	} else {
		o = NewUndetailedObject(eoj)
	}
	n.devices[eoj] = o
	n.mu.Unlock()

	n.notify(DevicesChange{EOJ: eoj, Added: true})
	return o, true
}

// RemoveDevice removes a device object, if present, firing a
// devices-changed(Removed) notification. Objects are never destroyed
// implicitly; only explicit removal does this.
func (n *Node) RemoveDevice(eoj lite.EOJ) {
	n.mu.Lock()
	_, ok := n.devices[eoj]
	if ok {
		delete(n.devices, eoj)
	}
	n.mu.Unlock()

	if ok {
		n.notify(DevicesChange{EOJ: eoj, Removed: true})
	}
}

// Subscribe registers fn to run on every devices-changed event. The
// returned function unsubscribes it.
func (n *Node) Subscribe(fn func(DevicesChange)) (unsubscribe func()) {
	n.mu.Lock()
	id := n.nextListenerID
	n.nextListenerID++
	n.listeners[id] = fn
	n.mu.Unlock()

	return func() {
		n.mu.Lock()
		delete(n.listeners, id)
		n.mu.Unlock()
	}
}

func (n *Node) notify(change DevicesChange) {
	n.mu.RLock()
	fns := make([]func(DevicesChange), 0, len(n.listeners))
	for _, fn := range n.listeners {
		fns = append(fns, fn)
	}
	n.mu.RUnlock()

	for _, fn := range fns {
		fn(change)
	}
}
