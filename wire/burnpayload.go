package wire

import "bytes"

// EncodeBurnPayload serializes a Burn transaction's payload: the amount of
// the transaction's fee asset to destroy, per spec.md §4.1's opcode catalog.
func EncodeBurnPayload(amount uint64) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeUint64(&buf, amount); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeBurnPayload parses a Burn transaction's payload.
func DecodeBurnPayload(data []byte) (uint64, error) {
	r := bytes.NewReader(data)
	amount, err := readUint64(r)
	if err != nil {
		return 0, err
	}
	return amount, nil
}
