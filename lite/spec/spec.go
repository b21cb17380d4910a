// Package spec defines the object/property specification catalog that the
// core consumes as a lookup interface: for each ECHONET class, which EPCs
// exist, their allowed EDT size range, their capabilities (can-get,
// can-set, can-announce), and an optional value-acceptance predicate.
//
// The catalog itself — which classes exist and what their properties are —
// is an external, static concern (the ECHONET Lite object specification),
// so this package only defines the Lookup interface plus a small Registry
// implementation a caller can seed; it is not meant to carry the full
// device-class catalog the way a production deployment's would.
package spec

import "echonet-core/lite"

// PropertySpec describes one EPC's static characteristics for a class.
type PropertySpec struct {
	EPC          lite.EPC
	MinSize      int
	MaxSize      int
	CanGet       bool
	CanSet       bool
	CanAnnounce  bool
	AcceptValue  func([]byte) bool
}

// SizeInRange reports whether n falls within [MinSize, MaxSize]. A zero
// MaxSize means "unbounded" (the size is simply unknown and not checked),
// matching the data model invariant that size validation only applies
// "when known".
func (p PropertySpec) SizeInRange(n int) bool {
	if p.MinSize > 0 && n < p.MinSize {
		return false
	}
	if p.MaxSize > 0 && n > p.MaxSize {
		return false
	}
	return true
}

// Accepts reports whether edt is an acceptable value for this property:
// the size must be in range, and if an AcceptValue predicate is set, it
// must also pass.
func (p PropertySpec) Accepts(edt []byte) bool {
	if !p.SizeInRange(len(edt)) {
		return false
	}
	if p.AcceptValue != nil {
		return p.AcceptValue(edt)
	}
	return true
}

// ClassSpec is the full static description of a class: its property list,
// indexed for lookup by EPC.
type ClassSpec struct {
	ClassGroupCode byte
	ClassCode      byte
	Name           string
	properties     map[lite.EPC]PropertySpec
}

// NewClassSpec builds a ClassSpec from an unordered property list.
func NewClassSpec(classGroup, class byte, name string, props ...PropertySpec) ClassSpec {
	cs := ClassSpec{ClassGroupCode: classGroup, ClassCode: class, Name: name, properties: make(map[lite.EPC]PropertySpec, len(props))}
	for _, p := range props {
		cs.properties[p.EPC] = p
	}
	return cs
}

// Property looks up a single EPC's spec within the class.
func (c ClassSpec) Property(epc lite.EPC) (PropertySpec, bool) {
	p, ok := c.properties[epc]
	return p, ok
}

// Properties returns the class's full property list.
func (c ClassSpec) Properties() []PropertySpec {
	out := make([]PropertySpec, 0, len(c.properties))
	for _, p := range c.properties {
		out = append(out, p)
	}
	return out
}

// Lookup is the object-spec interface the core consumes: given a class
// group and class code, produce that class's static spec. An unknown
// class yields a synthetic spec with no properties, never an error —
// the core must still be able to host or discover objects of classes it
// knows nothing about.
type Lookup interface {
	FindClass(classGroup, class byte) ClassSpec
}

// Registry is a simple in-memory Lookup built from a fixed set of
// registered classes, keyed by (class-group, class).
type Registry struct {
	classes map[lite.ClassCode]ClassSpec
}

// NewRegistry builds an empty registry; use Register to seed it.
func NewRegistry() *Registry {
	return &Registry{classes: make(map[lite.ClassCode]ClassSpec)}
}

// Register adds or replaces a class's spec.
func (r *Registry) Register(cs ClassSpec) {
	r.classes[lite.MakeClassCode(cs.ClassGroupCode, cs.ClassCode)] = cs
}

// FindClass implements Lookup. Unknown classes get a synthetic empty spec.
func (r *Registry) FindClass(classGroup, class byte) ClassSpec {
	if cs, ok := r.classes[lite.MakeClassCode(classGroup, class)]; ok {
		return cs
	}
	return NewClassSpec(classGroup, class, "")
}
