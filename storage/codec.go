package storage

import (
	"bytes"
	"encoding/binary"
	"io"
	"math/big"

	"github.com/pkg/errors"
	"github.com/tos-network/tos/externalapi"
)

// The record formats below are storage's own durable encodings: unlike
// wire's network codec (spec.md §4.1a), they never cross a trust boundary,
// so they trade the wire format's defensive bounds-checking for straight
// binary.Write/Read convenience, in the same spirit as the teacher's
// reachability data and UTXO entries being opaque serialized blobs.

func encodeGHOSTDAGData(data *externalapi.BlockGHOSTDAGData) []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.BigEndian, data.BlueScore())

	work := data.BlueWork().Bytes()
	_ = binary.Write(&buf, binary.BigEndian, uint16(len(work)))
	buf.Write(work)

	writeOptionalHash(&buf, data.SelectedParent())
	writeHashList(&buf, data.MergeSetBlues())
	writeHashList(&buf, data.MergeSetReds())

	blues := data.MergeSetBlues()
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(blues)))
	for _, blue := range blues {
		size, _ := data.BlueAnticoneSize(blue)
		buf.Write(blue[:])
		buf.WriteByte(size)
	}
	return buf.Bytes()
}

func decodeGHOSTDAGData(raw []byte) (*externalapi.BlockGHOSTDAGData, error) {
	r := bytes.NewReader(raw)

	var blueScore uint64
	if err := binary.Read(r, binary.BigEndian, &blueScore); err != nil {
		return nil, errors.Wrap(err, "storage: decoding ghostdag data blue score")
	}

	var workLen uint16
	if err := binary.Read(r, binary.BigEndian, &workLen); err != nil {
		return nil, errors.Wrap(err, "storage: decoding ghostdag data blue work length")
	}
	work := make([]byte, workLen)
	if _, err := io.ReadFull(r, work); err != nil {
		return nil, errors.Wrap(err, "storage: decoding ghostdag data blue work")
	}

	selectedParent, err := readOptionalHash(r)
	if err != nil {
		return nil, err
	}
	mergeSetBlues, err := readHashList(r)
	if err != nil {
		return nil, err
	}
	mergeSetReds, err := readHashList(r)
	if err != nil {
		return nil, err
	}

	var anticoneCount uint32
	if err := binary.Read(r, binary.BigEndian, &anticoneCount); err != nil {
		return nil, errors.Wrap(err, "storage: decoding ghostdag data anticone count")
	}
	anticoneSizes := make(map[externalapi.DomainHash]uint8, anticoneCount)
	for i := uint32(0); i < anticoneCount; i++ {
		var hash externalapi.DomainHash
		if _, err := io.ReadFull(r, hash[:]); err != nil {
			return nil, errors.Wrap(err, "storage: decoding ghostdag data anticone hash")
		}
		size, err := r.ReadByte()
		if err != nil {
			return nil, errors.Wrap(err, "storage: decoding ghostdag data anticone size")
		}
		anticoneSizes[hash] = size
	}

	return externalapi.NewBlockGHOSTDAGData(
		blueScore, new(big.Int).SetBytes(work), selectedParent, mergeSetBlues, mergeSetReds, anticoneSizes,
	), nil
}

func writeOptionalHash(buf *bytes.Buffer, hash *externalapi.DomainHash) {
	if hash == nil {
		buf.WriteByte(0)
		return
	}
	buf.WriteByte(1)
	buf.Write(hash[:])
}

func readOptionalHash(r io.Reader) (*externalapi.DomainHash, error) {
	var present [1]byte
	if _, err := io.ReadFull(r, present[:]); err != nil {
		return nil, errors.Wrap(err, "storage: decoding optional hash presence byte")
	}
	if present[0] == 0 {
		return nil, nil
	}
	var hash externalapi.DomainHash
	if _, err := io.ReadFull(r, hash[:]); err != nil {
		return nil, errors.Wrap(err, "storage: decoding optional hash")
	}
	return &hash, nil
}

func writeHashList(buf *bytes.Buffer, hashes []*externalapi.DomainHash) {
	_ = binary.Write(buf, binary.BigEndian, uint32(len(hashes)))
	for _, hash := range hashes {
		buf.Write(hash[:])
	}
}

func readHashList(r io.Reader) ([]*externalapi.DomainHash, error) {
	var count uint32
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, errors.Wrap(err, "storage: decoding hash list count")
	}
	hashes := make([]*externalapi.DomainHash, count)
	for i := range hashes {
		var hash externalapi.DomainHash
		if _, err := io.ReadFull(r, hash[:]); err != nil {
			return nil, errors.Wrap(err, "storage: decoding hash list entry")
		}
		hashes[i] = &hash
	}
	return hashes, nil
}

func encodeUint64(v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return buf[:]
}

func decodeUint64(raw []byte) (uint64, error) {
	if len(raw) != 8 {
		return 0, errors.New("storage: expected an 8-byte uint64 record")
	}
	return binary.BigEndian.Uint64(raw), nil
}

func encodeAssetData(data *externalapi.DomainAssetData) []byte {
	var buf bytes.Buffer
	writeString(&buf, data.Name)
	writeString(&buf, data.Ticker)
	_ = binary.Write(&buf, binary.BigEndian, data.MaxSupply)
	buf.WriteByte(data.Decimals)
	buf.Write(data.Owner[:])
	return buf.Bytes()
}

func decodeAssetData(raw []byte) (*externalapi.DomainAssetData, error) {
	r := bytes.NewReader(raw)
	name, err := readString(r)
	if err != nil {
		return nil, err
	}
	ticker, err := readString(r)
	if err != nil {
		return nil, err
	}
	var maxSupply uint64
	if err := binary.Read(r, binary.BigEndian, &maxSupply); err != nil {
		return nil, errors.Wrap(err, "storage: decoding asset max supply")
	}
	decimals, err := r.ReadByte()
	if err != nil {
		return nil, errors.Wrap(err, "storage: decoding asset decimals")
	}
	var owner externalapi.DomainAddress
	if _, err := io.ReadFull(r, owner[:]); err != nil {
		return nil, errors.Wrap(err, "storage: decoding asset owner")
	}
	return &externalapi.DomainAssetData{Name: name, Ticker: ticker, MaxSupply: maxSupply, Decimals: decimals, Owner: owner}, nil
}

func encodeMultiSigConfig(cfg *externalapi.DomainMultiSigConfig) []byte {
	var buf bytes.Buffer
	buf.WriteByte(cfg.Threshold)
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(cfg.Participants)))
	for _, participant := range cfg.Participants {
		buf.Write(participant[:])
	}
	return buf.Bytes()
}

func decodeMultiSigConfig(raw []byte) (*externalapi.DomainMultiSigConfig, error) {
	r := bytes.NewReader(raw)
	threshold, err := r.ReadByte()
	if err != nil {
		return nil, errors.Wrap(err, "storage: decoding multisig threshold")
	}
	var count uint32
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, errors.Wrap(err, "storage: decoding multisig participant count")
	}
	participants := make([]externalapi.DomainAddress, count)
	for i := range participants {
		if _, err := io.ReadFull(r, participants[i][:]); err != nil {
			return nil, errors.Wrap(err, "storage: decoding multisig participant")
		}
	}
	return &externalapi.DomainMultiSigConfig{Threshold: threshold, Participants: participants}, nil
}

func writeString(buf *bytes.Buffer, s string) {
	_ = binary.Write(buf, binary.BigEndian, uint16(len(s)))
	buf.WriteString(s)
}

func readString(r io.Reader) (string, error) {
	var length uint16
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return "", errors.Wrap(err, "storage: decoding string length")
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return "", errors.Wrap(err, "storage: decoding string bytes")
	}
	return string(data), nil
}
