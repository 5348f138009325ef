package wire

import (
	"bytes"
	"io"

	"github.com/tos-network/tos/externalapi"
)

// txEncodingFlags controls which fields of a transaction are included in a
// given serialization pass, mirroring the teacher's txEncoding bitmask in
// hashserialization/transaction.go (there used to exclude payload/signature
// script for hashing; here used to exclude multisig/signature for txid).
type txEncodingFlags uint8

const (
	txEncodingFull            txEncodingFlags = 0
	txEncodingExcludeMultiSig txEncodingFlags = 1 << iota
	txEncodingExcludeSignature
)

// SerializeTransaction writes the full canonical wire encoding of tx,
// including its multisig envelope and signature.
func SerializeTransaction(w io.Writer, tx *externalapi.DomainTransaction) error {
	return serializeTransaction(w, tx, txEncodingFull)
}

// SerializeTransactionForID writes the portion of tx's encoding that
// determines its txid: everything except the multisig envelope and
// signature (spec.md §3: "txid = BLAKE3(serialize_without_multisig_and_signature)").
func SerializeTransactionForID(w io.Writer, tx *externalapi.DomainTransaction) error {
	return serializeTransaction(w, tx, txEncodingExcludeMultiSig|txEncodingExcludeSignature)
}

func serializeTransaction(w io.Writer, tx *externalapi.DomainTransaction, flags txEncodingFlags) error {
	if err := writeUint8(w, tx.Version); err != nil {
		return err
	}
	if err := writeUint8(w, tx.ChainID); err != nil {
		return err
	}
	if _, err := w.Write(tx.Source[:]); err != nil {
		return err
	}

	if err := writeUint8(w, uint8(tx.Type)); err != nil {
		return err
	}
	if err := writeVarBytes(w, tx.Payload); err != nil {
		return err
	}

	if err := writeUint64(w, tx.Fee); err != nil {
		return err
	}
	feeAssetType, ok := externalapi.FeeAssetTypeFor(tx.FeeAsset)
	if !ok {
		return invalidFormat("fee asset %x is not registered for a wire discriminant", tx.FeeAsset)
	}
	if err := writeUint8(w, uint8(feeAssetType)); err != nil {
		return err
	}

	if err := writeUint64(w, tx.Nonce); err != nil {
		return err
	}

	if err := writeHash(w, tx.Reference.Hash); err != nil {
		return err
	}
	if err := writeUint64(w, tx.Reference.TopoHeight); err != nil {
		return err
	}

	if flags&txEncodingExcludeMultiSig == 0 {
		if err := writeMultiSig(w, tx.MultiSig); err != nil {
			return err
		}
	}

	if flags&txEncodingExcludeSignature == 0 {
		if err := writeVarBytes(w, tx.Signature); err != nil {
			return err
		}
	}

	return nil
}

func writeMultiSig(w io.Writer, ms *externalapi.DomainMultiSigPayload) error {
	if err := writeBool(w, ms != nil); err != nil {
		return err
	}
	if ms == nil {
		return nil
	}
	if err := writeCollectionCount(w, len(ms.SignerIndices)); err != nil {
		return err
	}
	for i, idx := range ms.SignerIndices {
		if i > 0 && idx <= ms.SignerIndices[i-1] {
			return invalidFormat("multisig signer indices must be strictly ascending")
		}
		if err := writeUint8(w, idx); err != nil {
			return err
		}
	}
	if len(ms.Signatures) != len(ms.SignerIndices) {
		return invalidFormat("multisig signature count %d does not match signer count %d",
			len(ms.Signatures), len(ms.SignerIndices))
	}
	for _, sig := range ms.Signatures {
		if err := writeVarBytes(w, sig); err != nil {
			return err
		}
	}
	return nil
}

func readMultiSig(r io.Reader) (*externalapi.DomainMultiSigPayload, error) {
	present, err := readBool(r)
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, nil
	}
	count, err := readCollectionCount(r)
	if err != nil {
		return nil, err
	}
	indices := make([]uint8, count)
	var prev uint8
	for i := range indices {
		idx, err := readUint8(r)
		if err != nil {
			return nil, err
		}
		if i > 0 && idx <= prev {
			return nil, invalidFormat("multisig signer indices must be strictly ascending")
		}
		indices[i] = idx
		prev = idx
	}
	sigs := make([][]byte, count)
	for i := range sigs {
		sig, err := readVarBytes(r)
		if err != nil {
			return nil, err
		}
		sigs[i] = sig
	}
	return &externalapi.DomainMultiSigPayload{SignerIndices: indices, Signatures: sigs}, nil
}

// DeserializeTransaction parses the full canonical wire encoding of a
// transaction, failing with InvalidFormat on truncated input and
// InvalidFormat on an unrecognized transaction type opcode (closed enum,
// per spec.md §6).
func DeserializeTransaction(r io.Reader) (*externalapi.DomainTransaction, error) {
	tx := &externalapi.DomainTransaction{}

	version, err := readUint8(r)
	if err != nil {
		return nil, err
	}
	tx.Version = version

	chainID, err := readUint8(r)
	if err != nil {
		return nil, err
	}
	tx.ChainID = chainID

	if _, err := io.ReadFull(r, tx.Source[:]); err != nil {
		return nil, invalidFormat("reading source: %s", err)
	}

	txType, err := readUint8(r)
	if err != nil {
		return nil, err
	}
	tx.Type = externalapi.TransactionType(txType)
	if !tx.Type.IsKnown() {
		return nil, invalidFormat("unknown transaction type opcode %d", txType)
	}

	payload, err := readVarBytes(r)
	if err != nil {
		return nil, err
	}
	tx.Payload = payload

	fee, err := readUint64(r)
	if err != nil {
		return nil, err
	}
	tx.Fee = fee

	feeAssetType, err := readUint8(r)
	if err != nil {
		return nil, err
	}
	feeAsset, ok := externalapi.ResolveFeeAsset(externalapi.FeeAssetType(feeAssetType))
	if !ok {
		return nil, invalidFormat("unrecognized fee asset discriminant %d", feeAssetType)
	}
	tx.FeeAsset = feeAsset

	nonce, err := readUint64(r)
	if err != nil {
		return nil, err
	}
	tx.Nonce = nonce

	refHash, err := readHash(r)
	if err != nil {
		return nil, err
	}
	refTopoHeight, err := readUint64(r)
	if err != nil {
		return nil, err
	}
	tx.Reference = externalapi.DomainTransactionReference{Hash: refHash, TopoHeight: refTopoHeight}

	multiSig, err := readMultiSig(r)
	if err != nil {
		return nil, err
	}
	tx.MultiSig = multiSig

	signature, err := readVarBytes(r)
	if err != nil {
		return nil, err
	}
	tx.Signature = signature

	return tx, nil
}

// EncodeTransaction returns the full canonical wire encoding of tx.
func EncodeTransaction(tx *externalapi.DomainTransaction) ([]byte, error) {
	var buf bytes.Buffer
	if err := SerializeTransaction(&buf, tx); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeTransaction parses the full canonical wire encoding of a transaction
// from a byte slice.
func DecodeTransaction(data []byte) (*externalapi.DomainTransaction, error) {
	return DeserializeTransaction(bytes.NewReader(data))
}
