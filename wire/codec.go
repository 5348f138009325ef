// Package wire implements the canonical big-endian wire codec of spec.md
// §3/§4.1: fixed-width integers, presence-byte optionals, and
// size-prefixed collections (u16 for counts ≤ externalapi.MaxTransferCount, u32 for
// raw byte slices). It is grounded on the teacher's
// domain/consensus/utils/hashserialization package's writeElement/
// writeElements shape, with byte order flipped from the teacher's
// little-endian convention to TOS's big-endian wire contract.
package wire

import (
	"encoding/binary"
	"io"

	"github.com/tos-network/tos/consensuserrors"
	"github.com/tos-network/tos/externalapi"
)

// MaxByteSliceLength bounds any single var-length byte slice accepted off
// the wire, guarding against a maliciously declared huge length causing an
// unbounded allocation.
const MaxByteSliceLength = 16 * 1024 * 1024

func writeUint8(w io.Writer, v uint8) error {
	_, err := w.Write([]byte{v})
	return err
}

func readUint8(r io.Reader) (uint8, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, invalidFormat("reading uint8: %s", err)
	}
	return buf[0], nil
}

func writeUint16(w io.Writer, v uint16) error {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func readUint16(r io.Reader) (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, invalidFormat("reading uint16: %s", err)
	}
	return binary.BigEndian.Uint16(buf[:]), nil
}

func writeUint32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func readUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, invalidFormat("reading uint32: %s", err)
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

func writeUint64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func readUint64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, invalidFormat("reading uint64: %s", err)
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}

func writeInt64(w io.Writer, v int64) error {
	return writeUint64(w, uint64(v))
}

func readInt64(r io.Reader) (int64, error) {
	v, err := readUint64(r)
	return int64(v), err
}

func writeBool(w io.Writer, v bool) error {
	if v {
		return writeUint8(w, 0x01)
	}
	return writeUint8(w, 0x00)
}

func readBool(r io.Reader) (bool, error) {
	v, err := readUint8(r)
	if err != nil {
		return false, err
	}
	switch v {
	case 0x00:
		return false, nil
	case 0x01:
		return true, nil
	default:
		return false, invalidFormat("boolean must be 0x00 or 0x01, got 0x%02x", v)
	}
}

func writeHash(w io.Writer, h externalapi.DomainHash) error {
	_, err := w.Write(h[:])
	return err
}

func readHash(r io.Reader) (externalapi.DomainHash, error) {
	var h externalapi.DomainHash
	if _, err := io.ReadFull(r, h[:]); err != nil {
		return h, invalidFormat("reading hash: %s", err)
	}
	return h, nil
}

// writeVarBytes writes a byte slice prefixed with a u32 length, per
// spec.md §4.1 ("u32 for byte slices").
func writeVarBytes(w io.Writer, data []byte) error {
	if err := writeUint32(w, uint32(len(data))); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

func readVarBytes(r io.Reader) ([]byte, error) {
	length, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	if length > MaxByteSliceLength {
		return nil, sizeLimit("byte slice length %d exceeds maximum %d", length, MaxByteSliceLength)
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, invalidFormat("reading %d byte slice: %s", length, err)
	}
	return data, nil
}

// writeCollectionCount writes a u16 collection-size prefix, per spec.md
// §4.1 ("u16 for counts ≤ 500"), failing with SizeLimit above
// externalapi.MaxTransferCount.
func writeCollectionCount(w io.Writer, count int) error {
	if count > externalapi.MaxTransferCount {
		return sizeLimit("collection count %d exceeds maximum %d", count, externalapi.MaxTransferCount)
	}
	return writeUint16(w, uint16(count))
}

func readCollectionCount(r io.Reader) (int, error) {
	count, err := readUint16(r)
	if err != nil {
		return 0, err
	}
	if int(count) > externalapi.MaxTransferCount {
		return 0, sizeLimit("collection count %d exceeds maximum %d", count, externalapi.MaxTransferCount)
	}
	return int(count), nil
}

func invalidFormat(format string, args ...interface{}) error {
	return consensuserrors.Newf(consensuserrors.ErrInvalidFormat, format, args...)
}

func sizeLimit(format string, args ...interface{}) error {
	return consensuserrors.Newf(consensuserrors.ErrSizeLimit, format, args...)
}
