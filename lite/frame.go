package lite

import "fmt"

// EHD1 is the fixed first header byte identifying the ECHONET Lite protocol.
const EHD1 byte = 0x10

// EHD2 selects the EDATA variant carried by a frame.
type EHD2 byte

const (
	EHD2Format1 EHD2 = 0x81 // structured SEOJ/DEOJ/ESV/operation-list payload
	EHD2Format2 EHD2 = 0x82 // opaque payload, handled by external subprofiles
)

func (h EHD2) String() string {
	switch h {
	case EHD2Format1:
		return "Format1"
	case EHD2Format2:
		return "Format2"
	default:
		return fmt.Sprintf("(%02X)", byte(h))
	}
}

// TID is the two-byte transaction id, transmitted low-byte-first on the wire.
type TID uint16

// Format1Payload is the structured EDATA variant: a source and destination
// object, a service code, and one or two operation lists (two only for the
// SetGet family).
type Format1Payload struct {
	SEOJ EOJ
	DEOJ EOJ
	ESV  ESV
	// OpList is the sole operation list for every ESV except the SetGet
	// family, where it carries the set-list.
	OpList OperationList
	// OpList2 carries the get-list; populated only when ESV.IsSetGet().
	OpList2 OperationList
}

func (p *Format1Payload) encode() ([]byte, error) {
	ops, err := p.OpList.Encode()
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, 7+len(ops))
	out = append(out, p.SEOJ.Encode()...)
	out = append(out, p.DEOJ.Encode()...)
	out = append(out, byte(p.ESV))
	out = append(out, ops...)
	if p.ESV.IsSetGet() {
		ops2, err := p.OpList2.Encode()
		if err != nil {
			return nil, err
		}
		out = append(out, ops2...)
	}
	return out, nil
}

func decodeFormat1Payload(data []byte) (*Format1Payload, error) {
	if len(data) < 7 {
		return nil, fmt.Errorf("lite: Format-1 payload too short: %d bytes", len(data))
	}
	seoj, err := DecodeEOJ(data[0:3])
	if err != nil {
		return nil, err
	}
	deoj, err := DecodeEOJ(data[3:6])
	if err != nil {
		return nil, err
	}
	esv := ESV(data[6])
	ops, pos, err := decodeOperationList(data, 7)
	if err != nil {
		return nil, err
	}
	p := &Format1Payload{SEOJ: seoj, DEOJ: deoj, ESV: esv, OpList: ops}
	if esv.IsSetGet() {
		ops2, _, err := decodeOperationList(data, pos)
		if err != nil {
			return nil, err
		}
		p.OpList2 = ops2
	}
	return p, nil
}

// Format2Payload is the opaque EDATA variant consumed by external
// subprofiles; the core only carries the bytes through.
type Format2Payload struct {
	Data []byte
}

// Frame is an ECHONET Lite frame: EHD1/EHD2/TID plus exactly one of the two
// EDATA variants, selected by EHD2.
type Frame struct {
	EHD2    EHD2
	TID     TID
	Format1 *Format1Payload
	Format2 *Format2Payload
}

// NewFormat1Frame constructs a structured frame, validating that the
// supplied operation lists agree with the ESV (SetGet-family ESVs require
// both a set-list and a get-list; every other ESV carries exactly one list
// and must not be given a second).
func NewFormat1Frame(tid TID, seoj, deoj EOJ, esv ESV, ops, ops2 OperationList) (*Frame, error) {
	if esv.IsSetGet() {
		if ops2 == nil {
			return nil, fmt.Errorf("lite: %v requires a second (get) operation list", esv)
		}
	} else if ops2 != nil {
		return nil, fmt.Errorf("lite: %v does not take a second operation list", esv)
	}
	return &Frame{
		EHD2: EHD2Format1,
		TID:  tid,
		Format1: &Format1Payload{
			SEOJ: seoj, DEOJ: deoj, ESV: esv, OpList: ops, OpList2: ops2,
		},
	}, nil
}

// NewFormat2Frame constructs an opaque-payload frame.
func NewFormat2Frame(tid TID, data []byte) *Frame {
	return &Frame{EHD2: EHD2Format2, TID: tid, Format2: &Format2Payload{Data: data}}
}

// Encode serializes the frame to its wire representation. It fails if the
// frame's EHD2 and populated EDATA variant disagree, or if encoding the
// EDATA body fails (e.g. an oversized operation list).
func (f *Frame) Encode() ([]byte, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	out := make([]byte, 4, 32)
	out[0] = EHD1
	out[1] = byte(f.EHD2)
	out[2] = byte(f.TID)      // low byte first on the wire
	out[3] = byte(f.TID >> 8) // high byte second
	switch f.EHD2 {
	case EHD2Format1:
		body, err := f.Format1.encode()
		if err != nil {
			return nil, err
		}
		out = append(out, body...)
	case EHD2Format2:
		out = append(out, f.Format2.Data...)
	}
	return out, nil
}

func (f *Frame) validate() error {
	switch f.EHD2 {
	case EHD2Format1:
		if f.Format1 == nil || f.Format2 != nil {
			return fmt.Errorf("lite: EHD2 Format1 requires a Format1 payload and no Format2 payload")
		}
	case EHD2Format2:
		if f.Format2 == nil || f.Format1 != nil {
			return fmt.Errorf("lite: EHD2 Format2 requires a Format2 payload and no Format1 payload")
		}
	default:
		return fmt.Errorf("lite: unknown EHD2 %v", f.EHD2)
	}
	return nil
}

// Decode parses a complete datagram into a Frame. It returns an error
// (never panics) on any length underrun, OPC mismatch, unknown EHD1/EHD2,
// or structural problem — callers at the receive boundary should drop the
// datagram silently rather than propagate the error upward.
func Decode(data []byte) (*Frame, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("lite: frame too short: %d bytes", len(data))
	}
	if data[0] != EHD1 {
		return nil, fmt.Errorf("lite: unexpected EHD1 %02X", data[0])
	}
	ehd2 := EHD2(data[1])
	tid := TID(data[2]) | TID(data[3])<<8
	switch ehd2 {
	case EHD2Format1:
		p, err := decodeFormat1Payload(data[4:])
		if err != nil {
			return nil, err
		}
		return &Frame{EHD2: ehd2, TID: tid, Format1: p}, nil
	case EHD2Format2:
		buf := make([]byte, len(data)-4)
		copy(buf, data[4:])
		return &Frame{EHD2: ehd2, TID: tid, Format2: &Format2Payload{Data: buf}}, nil
	default:
		return nil, fmt.Errorf("lite: unknown EHD2 %02X", data[1])
	}
}

func (f *Frame) String() string {
	if f.Format1 != nil {
		p := f.Format1
		return fmt.Sprintf("TID:%04X SEOJ:%v DEOJ:%v ESV:%v OPC:%d", uint16(f.TID), p.SEOJ, p.DEOJ, p.ESV, len(p.OpList))
	}
	return fmt.Sprintf("TID:%04X Format2(%d bytes)", uint16(f.TID), len(f.Format2.Data))
}
