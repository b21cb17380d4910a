package lite

import (
	"fmt"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// PropertyMap is the set of EPCs described by one of the property-map
// properties (0x9D status-announce map, 0x9E set map, 0x9F get map). Only
// EPCs in 0x80..0xFF are representable in the long (bitmap) form; the type
// itself does not reject other EPCs.
type PropertyMap map[EPC]struct{}

// NewPropertyMap builds a PropertyMap from a list of EPCs.
func NewPropertyMap(epcs ...EPC) PropertyMap {
	m := make(PropertyMap, len(epcs))
	for _, e := range epcs {
		m[e] = struct{}{}
	}
	return m
}

func (m PropertyMap) Has(epc EPC) bool {
	_, ok := m[epc]
	return ok
}

// EPCs returns the map's contents as a sorted slice.
func (m PropertyMap) EPCs() []EPC {
	out := maps.Keys(m)
	slices.Sort(out)
	return out
}

// shortFormLimit is the largest count the short (count-then-EPC-list) form
// can carry; 16 or more EPCs forces the long bitmap form.
const shortFormLimit = 15

// Encode serializes the map as EDT: short form (1 + n bytes) when the set
// has 15 or fewer members, long form (17 bytes, a count plus a 16-byte
// bitmap) otherwise. Bit j of bitmap byte i (0-indexed) represents EPC
// 0x80 + (j<<4) + i. The long form has no bit for an EPC below 0x80; such
// an EPC is left out of the bitmap, though it still counts toward the
// count byte.
func (m PropertyMap) Encode() []byte {
	n := len(m)
	if n <= shortFormLimit {
		out := make([]byte, 1, 1+n)
		out[0] = byte(n)
		for _, epc := range m.EPCs() {
			out = append(out, byte(epc))
		}
		return out
	}

	out := make([]byte, 17)
	out[0] = byte(n)
	for epc := range m {
		i := byte(epc) & 0x0f
		j := byte(epc)>>4 - 8
		out[1+i] |= 1 << j
	}
	return out
}

// DecodePropertyMap parses an EDT payload produced by Encode. It returns
// an error (rather than panicking) on any length mismatch, since a
// malformed property map is a protocol violation by the remote per the
// invalid-property-map error kind.
func DecodePropertyMap(edt []byte) (PropertyMap, error) {
	if len(edt) < 1 {
		return nil, fmt.Errorf("lite: property map EDT is empty")
	}
	n := int(edt[0])
	m := make(PropertyMap, n)
	if n <= shortFormLimit {
		if len(edt) != 1+n {
			return nil, fmt.Errorf("lite: short-form property map declares %d entries but has %d payload bytes", n, len(edt)-1)
		}
		for _, b := range edt[1:] {
			m[EPC(b)] = struct{}{}
		}
		return m, nil
	}

	if len(edt) != 17 {
		return nil, fmt.Errorf("lite: long-form property map must be 17 bytes, got %d", len(edt))
	}
	for i, b := range edt[1:] {
		for j := 0; j < 8; j++ {
			if b&(1<<j) != 0 {
				m[EPC(0x80+j<<4+i)] = struct{}{}
			}
		}
	}
	return m, nil
}
