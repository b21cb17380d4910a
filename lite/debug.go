package lite

import (
	"encoding/json"
	"fmt"
)

// DebugFrame renders a Frame as the hex JSON debug form used by the round-
// trip test contract: EHD1/EHD2 as two-digit upper-hex strings, TID as a
// four-digit upper-hex string in wire (byte-swapped) order, so TID 0x0001
// marshals as "0100" and TID 0x0100 marshals as "0001".
type DebugFrame struct {
	EHD1 string          `json:"EHD1"`
	EHD2 string          `json:"EHD2"`
	TID  string          `json:"TID"`
	SEOJ string          `json:"SEOJ,omitempty"`
	DEOJ string          `json:"DEOJ,omitempty"`
	ESV  string          `json:"ESV,omitempty"`
	OPC  []debugOperation `json:"OPC,omitempty"`
	OPC2 []debugOperation `json:"OPC2,omitempty"`
}

type debugOperation struct {
	EPC string `json:"EPC"`
	PDC int    `json:"PDC"`
	EDT string `json:"EDT,omitempty"`
}

// MarshalJSON implements the wire-order TID contract.
func (t TID) MarshalJSON() ([]byte, error) {
	return json.Marshal(fmt.Sprintf("%02X%02X", byte(t), byte(t>>8)))
}

// UnmarshalJSON implements the wire-order TID contract.
func (t *TID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if len(s) != 4 {
		return fmt.Errorf("lite: TID hex string must be 4 characters, got %q", s)
	}
	var lo, hi byte
	if _, err := fmt.Sscanf(s[0:2], "%02X", &lo); err != nil {
		return fmt.Errorf("lite: invalid TID hex string %q: %w", s, err)
	}
	if _, err := fmt.Sscanf(s[2:4], "%02X", &hi); err != nil {
		return fmt.Errorf("lite: invalid TID hex string %q: %w", s, err)
	}
	*t = TID(lo) | TID(hi)<<8
	return nil
}

// ToDebugFrame converts a Frame into its JSON debug form.
func (f *Frame) ToDebugFrame() DebugFrame {
	tidJSON, _ := f.TID.MarshalJSON()
	var tidStr string
	_ = json.Unmarshal(tidJSON, &tidStr)

	d := DebugFrame{
		EHD1: fmt.Sprintf("%02X", EHD1),
		EHD2: fmt.Sprintf("%02X", byte(f.EHD2)),
		TID:  tidStr,
	}
	if f.Format1 != nil {
		p := f.Format1
		d.SEOJ = fmt.Sprintf("%06X", uint32(p.SEOJ))
		d.DEOJ = fmt.Sprintf("%06X", uint32(p.DEOJ))
		d.ESV = fmt.Sprintf("%02X", byte(p.ESV))
		d.OPC = toDebugOperations(p.OpList)
		if p.ESV.IsSetGet() {
			d.OPC2 = toDebugOperations(p.OpList2)
		}
	}
	return d
}

func toDebugOperations(ops OperationList) []debugOperation {
	if ops == nil {
		return nil
	}
	out := make([]debugOperation, len(ops))
	for i, op := range ops {
		out[i] = debugOperation{
			EPC: fmt.Sprintf("%02X", byte(op.EPC)),
			PDC: len(op.EDT),
			EDT: fmt.Sprintf("%X", op.EDT),
		}
	}
	return out
}
