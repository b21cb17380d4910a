// Package node models the in-memory object/property graph: nodes (self
// and remote), the objects (EOJs) they host, and the properties (EPCs)
// each object carries. It has no wire-format or transport knowledge;
// callers hand it decoded values and read snapshots back.
package node

import (
	"sync"
	"time"

	"echonet-core/lite"
)

// Capabilities describes what a property supports and, when known, its
// valid EDT size range. A zero MaxSize means the size is unbounded (not
// checked), matching the data model's "when known" qualifier.
type Capabilities struct {
	CanGet      bool
	CanSet      bool
	CanAnnounce bool
	MinSize     int
	MaxSize     int
}

// SizeInRange reports whether n is an acceptable EDT length for these
// capabilities.
func (c Capabilities) SizeInRange(n int) bool {
	if c.MinSize > 0 && n < c.MinSize {
		return false
	}
	if c.MaxSize > 0 && n > c.MaxSize {
		return false
	}
	return true
}

// ValueUpdate is delivered to a property's subscribers on every Set,
// including a set to the value the property already held.
type ValueUpdate struct {
	EPC               lite.EPC
	Old, New          []byte
	PrevTime, NewTime time.Time
}

// Property holds one EPC's live value and capabilities. All mutation is
// serialized through its own mutex, independent of any other property
// on the same object.
type Property struct {
	epc lite.EPC

	mu          sync.Mutex
	value       []byte
	updatedAt   time.Time
	caps        Capabilities
	subscribers map[int]func(ValueUpdate)
	nextSubID   int
}

// NewProperty creates a property with no value yet set.
func NewProperty(epc lite.EPC, caps Capabilities) *Property {
	return &Property{epc: epc, caps: caps, subscribers: make(map[int]func(ValueUpdate))}
}

func (p *Property) EPC() lite.EPC { return p.epc }

func (p *Property) Capabilities() Capabilities {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.caps
}

func (p *Property) SetCapabilities(caps Capabilities) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.caps = caps
}

// Value returns a snapshot of the current EDT and its last-update time.
// A nil EDT means the property has never been set.
func (p *Property) Value() ([]byte, time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.value...), p.updatedAt
}

// Set stores edt as the property's new value at time now and notifies
// subscribers. Setting the same value again still fires the
// notification, with Old and New equal — callers rely on "last seen"
// semantics.
func (p *Property) Set(edt []byte, now time.Time) {
	p.mu.Lock()
	old := p.value
	prevTime := p.updatedAt
	p.value = append([]byte(nil), edt...)
	p.updatedAt = now
	subs := make([]func(ValueUpdate), 0, len(p.subscribers))
	for _, fn := range p.subscribers {
		subs = append(subs, fn)
	}
	newValue := p.value
	p.mu.Unlock()

	update := ValueUpdate{EPC: p.epc, Old: old, New: newValue, PrevTime: prevTime, NewTime: now}
	for _, fn := range subs {
		fn(update)
	}
}

// Subscribe registers fn to run on every Set. The returned function
// unsubscribes it.
func (p *Property) Subscribe(fn func(ValueUpdate)) (unsubscribe func()) {
	p.mu.Lock()
	id := p.nextSubID
	p.nextSubID++
	p.subscribers[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.subscribers, id)
		p.mu.Unlock()
	}
}
