package lite

import "fmt"

// MaxInstanceListEntries is the largest number of 3-byte EOJs that fit,
// after the count byte, in the 253-byte instance-list EDT, and the cap
// both encoders enforce.
const MaxInstanceListEntries = 84

// InstanceListEDTSize is the fixed EDT size of the instance-list-
// notification property: a one-byte count plus room for the maximum
// number of 3-byte EOJs, zero-padded.
const InstanceListEDTSize = 1 + MaxInstanceListEntries*3 // 253

// InstanceList is an ordered list of EOJs, as carried by EPC 0xD5
// (instance list notification) and 0xD6 (self-node instance list S).
type InstanceList []EOJ

// EncodeAnnounce renders the list in the fixed 253-byte announce form:
// one count byte, 3 bytes per EOJ, trailing bytes zeroed. It fails if the
// list exceeds MaxInstanceListEntries.
func (l InstanceList) EncodeAnnounce() ([]byte, error) {
	if len(l) > MaxInstanceListEntries {
		return nil, fmt.Errorf("lite: instance list has %d entries, max is %d", len(l), MaxInstanceListEntries)
	}
	out := make([]byte, InstanceListEDTSize)
	out[0] = byte(len(l))
	for i, eoj := range l {
		copy(out[1+i*3:4+i*3], eoj.Encode())
	}
	return out, nil
}

// Encode renders the list in its minimal form: one count byte plus 3
// bytes per EOJ, with no trailing padding. Used when decoding is not
// required to reproduce the fixed announce-buffer shape, e.g. in tests.
func (l InstanceList) Encode() ([]byte, error) {
	if len(l) > MaxInstanceListEntries {
		return nil, fmt.Errorf("lite: instance list has %d entries, max is %d", len(l), MaxInstanceListEntries)
	}
	out := make([]byte, 1, 1+len(l)*3)
	out[0] = byte(len(l))
	for _, eoj := range l {
		out = append(out, eoj.Encode()...)
	}
	return out, nil
}

// DecodeInstanceList parses an EDT payload (either the padded announce
// form or the minimal form) into an InstanceList.
func DecodeInstanceList(edt []byte) (InstanceList, error) {
	if len(edt) < 1 {
		return nil, fmt.Errorf("lite: instance list EDT is empty")
	}
	n := int(edt[0])
	if len(edt) < 1+n*3 {
		return nil, fmt.Errorf("lite: instance list declares %d entries but payload has only %d bytes", n, len(edt)-1)
	}
	out := make(InstanceList, 0, n)
	for i := 0; i < n; i++ {
		eoj, err := DecodeEOJ(edt[1+i*3 : 4+i*3])
		if err != nil {
			return nil, err
		}
		out = append(out, eoj)
	}
	return out, nil
}
