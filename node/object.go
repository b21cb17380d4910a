package node

import (
	"sync"
	"time"

	"golang.org/x/exp/slices"

	"echonet-core/lite"
	"echonet-core/lite/spec"
)

// PropertiesChange describes a single add/remove on an object's
// property collection.
type PropertiesChange struct {
	EPC     lite.EPC
	Added   bool
	Removed bool
}

// Object is one EOJ hosted on a node, with a property collection keyed
// by EPC.
//
// A "detailed" object is backed by a static ClassSpec: its property set
// and capabilities are fixed at construction. An "undetailed" object
// starts empty; properties appear as they're observed on the wire, and
// capabilities are assigned once known (typically from a property-map
// acquisition). Both satisfy the same enumeration contract below.
type Object struct {
	eoj lite.EOJ

	mu                  sync.RWMutex
	detailed            bool
	classSpec           spec.ClassSpec
	properties          map[lite.EPC]*Property
	listeners           map[int]func(PropertiesChange)
	nextListenerID      int
	propertyMapAcquired bool
}

// NewDetailedObject builds an object whose property set and
// capabilities come from cs. The status-announcement, set, and get
// property-map properties (0x9D/0x9E/0x9F), if cs describes them, are
// pre-populated from cs's own capability flags — a detailed object
// already knows its own property map without needing to be asked.
func NewDetailedObject(eoj lite.EOJ, cs spec.ClassSpec) *Object {
	o := newObject(eoj)
	o.detailed = true
	o.classSpec = cs
	for _, ps := range cs.Properties() {
		o.properties[ps.EPC] = NewProperty(ps.EPC, Capabilities{
			CanGet:      ps.CanGet,
			CanSet:      ps.CanSet,
			CanAnnounce: ps.CanAnnounce,
			MinSize:     ps.MinSize,
			MaxSize:     ps.MaxSize,
		})
	}

	var announce, set, get []lite.EPC
	for _, ps := range cs.Properties() {
		if ps.CanAnnounce {
			announce = append(announce, ps.EPC)
		}
		if ps.CanSet {
			set = append(set, ps.EPC)
		}
		if ps.CanGet {
			get = append(get, ps.EPC)
		}
	}
	now := time.Now()
	pAnnounce, hasAnnounce := o.properties[0x9D]
	pSet, hasSet := o.properties[0x9E]
	pGet, hasGet := o.properties[0x9F]
	if hasAnnounce {
		pAnnounce.Set(lite.NewPropertyMap(announce...).Encode(), now)
	}
	if hasSet {
		pSet.Set(lite.NewPropertyMap(set...).Encode(), now)
	}
	if hasGet {
		pGet.Set(lite.NewPropertyMap(get...).Encode(), now)
	}
	// A class spec that describes all three property-map EPCs already
	// tells this object everything acquirePropertyMap would otherwise
	// have to ask the device for.
	o.propertyMapAcquired = hasAnnounce && hasSet && hasGet
	return o
}

// NewUndetailedObject builds an empty object whose properties and
// capabilities are discovered dynamically.
func NewUndetailedObject(eoj lite.EOJ) *Object {
	return newObject(eoj)
}

func newObject(eoj lite.EOJ) *Object {
	return &Object{
		eoj:        eoj,
		properties: make(map[lite.EPC]*Property),
		listeners:  make(map[int]func(PropertiesChange)),
	}
}

func (o *Object) EOJ() lite.EOJ { return o.eoj }

// IsDetailed reports whether this object is backed by a static
// ClassSpec.
func (o *Object) IsDetailed() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.detailed
}

// ClassSpec returns the object's static spec, if it is detailed.
func (o *Object) ClassSpec() (spec.ClassSpec, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.classSpec, o.detailed
}

// PropertyMapAcquired reports whether this object's status-announcement,
// set, and get property maps (0x9D/0x9E/0x9F) are already known, either
// because ApplyPropertyMaps has successfully run once or because the
// object was constructed from a ClassSpec that described all three.
func (o *Object) PropertyMapAcquired() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.propertyMapAcquired
}

// Property looks up a single property by EPC.
func (o *Object) Property(epc lite.EPC) (*Property, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	p, ok := o.properties[epc]
	return p, ok
}

// Properties returns an enumerable snapshot of the object's current
// property collection, ordered by EPC so that enumeration order is stable
// across calls.
func (o *Object) Properties() []*Property {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]*Property, 0, len(o.properties))
	for _, p := range o.properties {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b *Property) int { return int(a.EPC()) - int(b.EPC()) })
	return out
}

// EnsureProperty returns the existing property for epc, or creates one
// with caps and fires a properties-changed(Added) notification.
func (o *Object) EnsureProperty(epc lite.EPC, caps Capabilities) (*Property, bool) {
	o.mu.Lock()
	if p, ok := o.properties[epc]; ok {
		o.mu.Unlock()
		return p, false
	}
	p := NewProperty(epc, caps)
	o.properties[epc] = p
	o.mu.Unlock()

	o.notify(PropertiesChange{EPC: epc, Added: true})
	return p, true
}

// RemoveProperty removes a property, if present, firing a
// properties-changed(Removed) notification.
func (o *Object) RemoveProperty(epc lite.EPC) {
	o.mu.Lock()
	_, ok := o.properties[epc]
	if ok {
		delete(o.properties, epc)
	}
	o.mu.Unlock()

	if ok {
		o.notify(PropertiesChange{EPC: epc, Removed: true})
	}
}

// ApplyPropertyMaps resets the object's property set to match the union
// of the three discovered property maps, assigning each EPC's
// capability flags accordingly. Properties outside the union are
// dropped; properties already present keep their current value.
func (o *Object) ApplyPropertyMaps(announce, set, get lite.PropertyMap) {
	caps := make(map[lite.EPC]Capabilities)
	for epc := range announce {
		c := caps[epc]
		c.CanAnnounce = true
		caps[epc] = c
	}
	for epc := range set {
		c := caps[epc]
		c.CanSet = true
		caps[epc] = c
	}
	for epc := range get {
		c := caps[epc]
		c.CanGet = true
		caps[epc] = c
	}

	var added, removed []lite.EPC

	o.mu.Lock()
	for epc := range o.properties {
		if _, ok := caps[epc]; !ok {
			delete(o.properties, epc)
			removed = append(removed, epc)
		}
	}
	for epc, c := range caps {
		if p, ok := o.properties[epc]; ok {
			p.SetCapabilities(c)
			continue
		}
		o.properties[epc] = NewProperty(epc, c)
		added = append(added, epc)
	}
	o.propertyMapAcquired = true
	o.mu.Unlock()

	for _, epc := range removed {
		o.notify(PropertiesChange{EPC: epc, Removed: true})
	}
	for _, epc := range added {
		o.notify(PropertiesChange{EPC: epc, Added: true})
	}
}

// Subscribe registers fn to run on every properties-changed event. The
// returned function unsubscribes it.
func (o *Object) Subscribe(fn func(PropertiesChange)) (unsubscribe func()) {
	o.mu.Lock()
	id := o.nextListenerID
	o.nextListenerID++
	o.listeners[id] = fn
	o.mu.Unlock()

	return func() {
		o.mu.Lock()
		delete(o.listeners, id)
		o.mu.Unlock()
	}
}

func (o *Object) notify(change PropertiesChange) {
	o.mu.RLock()
	fns := make([]func(PropertiesChange), 0, len(o.listeners))
	for _, fn := range o.listeners {
		fns = append(fns, fn)
	}
	o.mu.RUnlock()

	for _, fn := range fns {
		fn(change)
	}
}
