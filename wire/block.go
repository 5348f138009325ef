package wire

import (
	"bytes"
	"io"

	"github.com/tos-network/tos/consensuserrors"
	"github.com/tos-network/tos/externalapi"
)

// SerializeHeader writes the canonical encoding of a block header. This is
// exactly the byte range block_hash = BLAKE3(...) is computed over
// (spec.md §3/§4.1).
func SerializeHeader(w io.Writer, header *externalapi.DomainBlockHeader) error {
	if err := writeUint16(w, header.Version); err != nil {
		return err
	}

	numParents := len(header.Parents)
	if numParents > externalapi.MaxParents {
		return consensuserrors.Newf(consensuserrors.ErrTooManyParents,
			"block declares %d parents, maximum is %d", numParents, externalapi.MaxParents)
	}
	if err := writeUint8(w, uint8(numParents)); err != nil {
		return err
	}
	for _, parent := range header.Parents {
		if err := writeHash(w, parent); err != nil {
			return err
		}
	}

	if err := writeInt64(w, header.TimeInMilliseconds); err != nil {
		return err
	}
	if _, err := w.Write(header.ExtraNonce[:]); err != nil {
		return err
	}
	if _, err := w.Write(header.MinerPublicKey[:]); err != nil {
		return err
	}
	if err := writeHash(w, header.TipsMerkleRoot); err != nil {
		return err
	}
	if err := writeHash(w, header.BalancesMerkleRoot); err != nil {
		return err
	}
	if err := writeUint64(w, header.Difficulty); err != nil {
		return err
	}
	return writeVarBytes(w, header.VRFProof)
}

// DeserializeHeader parses a canonical block header encoding.
func DeserializeHeader(r io.Reader) (*externalapi.DomainBlockHeader, error) {
	header := &externalapi.DomainBlockHeader{}

	version, err := readUint16(r)
	if err != nil {
		return nil, err
	}
	header.Version = version

	numParents, err := readUint8(r)
	if err != nil {
		return nil, err
	}
	if int(numParents) > externalapi.MaxParents {
		return nil, consensuserrors.Newf(consensuserrors.ErrTooManyParents,
			"block declares %d parents, maximum is %d", numParents, externalapi.MaxParents)
	}
	header.Parents = make([]externalapi.DomainHash, numParents)
	for i := range header.Parents {
		hash, err := readHash(r)
		if err != nil {
			return nil, err
		}
		header.Parents[i] = hash
	}

	timestamp, err := readInt64(r)
	if err != nil {
		return nil, err
	}
	header.TimeInMilliseconds = timestamp

	if _, err := io.ReadFull(r, header.ExtraNonce[:]); err != nil {
		return nil, invalidFormat("reading extra nonce: %s", err)
	}
	if _, err := io.ReadFull(r, header.MinerPublicKey[:]); err != nil {
		return nil, invalidFormat("reading miner public key: %s", err)
	}

	tipsMerkleRoot, err := readHash(r)
	if err != nil {
		return nil, err
	}
	header.TipsMerkleRoot = tipsMerkleRoot

	balancesMerkleRoot, err := readHash(r)
	if err != nil {
		return nil, err
	}
	header.BalancesMerkleRoot = balancesMerkleRoot

	difficulty, err := readUint64(r)
	if err != nil {
		return nil, err
	}
	header.Difficulty = difficulty

	vrfProof, err := readVarBytes(r)
	if err != nil {
		return nil, err
	}
	header.VRFProof = vrfProof

	return header, nil
}

// SerializeBlock writes the canonical encoding of a full block: its header
// followed by its transaction list.
func SerializeBlock(w io.Writer, block *externalapi.DomainBlock) error {
	if err := SerializeHeader(w, block.Header); err != nil {
		return err
	}
	if err := writeUint32(w, uint32(len(block.Transactions))); err != nil {
		return err
	}
	for _, tx := range block.Transactions {
		if err := SerializeTransaction(w, tx); err != nil {
			return err
		}
	}
	return nil
}

// DeserializeBlock parses a canonical full block encoding.
func DeserializeBlock(r io.Reader) (*externalapi.DomainBlock, error) {
	header, err := DeserializeHeader(r)
	if err != nil {
		return nil, err
	}
	count, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	if count > MaxByteSliceLength {
		return nil, sizeLimit("block declares %d transactions, exceeding sanity bound", count)
	}
	txs := make([]*externalapi.DomainTransaction, count)
	for i := range txs {
		tx, err := DeserializeTransaction(r)
		if err != nil {
			return nil, err
		}
		txs[i] = tx
	}
	return &externalapi.DomainBlock{Header: header, Transactions: txs}, nil
}

// EncodeHeader returns the canonical byte encoding of a block header.
func EncodeHeader(header *externalapi.DomainBlockHeader) ([]byte, error) {
	var buf bytes.Buffer
	if err := SerializeHeader(&buf, header); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
