package lite

import "fmt"

// EPC is a one-byte ECHONET property code.
type EPC byte

func (e EPC) String() string { return fmt.Sprintf("%02X", byte(e)) }

// Operation is a single (EPC, PDC, EDT) triple as it appears in an
// operation list. PDC is derived from len(EDT) on encode and is not
// stored separately.
type Operation struct {
	EPC EPC
	EDT []byte
}

// Encode renders the operation as EPC, PDC, EDT.
func (op Operation) Encode() []byte {
	out := make([]byte, 2+len(op.EDT))
	out[0] = byte(op.EPC)
	out[1] = byte(len(op.EDT))
	copy(out[2:], op.EDT)
	return out
}

// OperationList is an ordered list of operations, encoded as a one-byte
// OPC followed by each operation in turn.
type OperationList []Operation

// MaxOperations is the largest OPC value the wire format can carry.
const MaxOperations = 255

// Encode renders the list as OPC followed by each operation's bytes. It
// returns an error if the list is longer than a single byte can count.
func (ops OperationList) Encode() ([]byte, error) {
	if len(ops) > MaxOperations {
		return nil, fmt.Errorf("lite: operation list has %d entries, max is %d", len(ops), MaxOperations)
	}
	out := make([]byte, 1, 1+len(ops)*2)
	out[0] = byte(len(ops))
	for _, op := range ops {
		out = append(out, op.Encode()...)
	}
	return out, nil
}

// decodeOperationList parses an OPC-prefixed operation list starting at
// pos, returning the new position.
func decodeOperationList(data []byte, pos int) (OperationList, int, error) {
	if pos >= len(data) {
		return nil, pos, fmt.Errorf("lite: truncated frame: missing OPC at offset %d", pos)
	}
	opc := int(data[pos])
	pos++
	ops := make(OperationList, 0, opc)
	for i := 0; i < opc; i++ {
		if pos+2 > len(data) {
			return nil, pos, fmt.Errorf("lite: truncated frame: missing EPC/PDC for operation %d", i)
		}
		epc := EPC(data[pos])
		pdc := int(data[pos+1])
		pos += 2
		var edt []byte
		if pdc > 0 {
			if pos+pdc > len(data) {
				return nil, pos, fmt.Errorf("lite: truncated frame: EDT of %d bytes for EPC %v runs past end", pdc, epc)
			}
			edt = make([]byte, pdc)
			copy(edt, data[pos:pos+pdc])
			pos += pdc
		}
		ops = append(ops, Operation{EPC: epc, EDT: edt})
	}
	return ops, pos, nil
}

// FindEPC returns the first operation with the given EPC.
func (ops OperationList) FindEPC(epc EPC) (Operation, bool) {
	for _, op := range ops {
		if op.EPC == epc {
			return op, true
		}
	}
	return Operation{}, false
}
