package wire

import (
	"bytes"
	"testing"

	"github.com/tos-network/tos/externalapi"
)

func hashFromByte(b byte) externalapi.DomainHash {
	var h externalapi.DomainHash
	h[31] = b
	return h
}

func addressFromByte(b byte) externalapi.DomainAddress {
	var a externalapi.DomainAddress
	a[31] = b
	return a
}

func sampleHeader() *externalapi.DomainBlockHeader {
	return &externalapi.DomainBlockHeader{
		Version:            1,
		Parents:            []externalapi.DomainHash{hashFromByte(1), hashFromByte(2)},
		TimeInMilliseconds: 1700000000000,
		MinerPublicKey:     addressFromByte(9),
		TipsMerkleRoot:     hashFromByte(3),
		BalancesMerkleRoot: hashFromByte(4),
		Difficulty:         12345,
		VRFProof:           []byte{0xAA, 0xBB, 0xCC},
	}
}

func TestSerializeDeserializeHeaderRoundTrip(t *testing.T) {
	header := sampleHeader()

	var buf bytes.Buffer
	if err := SerializeHeader(&buf, header); err != nil {
		t.Fatalf("SerializeHeader: %s", err)
	}

	got, err := DeserializeHeader(&buf)
	if err != nil {
		t.Fatalf("DeserializeHeader: %s", err)
	}

	if got.Version != header.Version ||
		got.TimeInMilliseconds != header.TimeInMilliseconds ||
		got.Difficulty != header.Difficulty ||
		len(got.Parents) != len(header.Parents) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, header)
	}
	for i := range header.Parents {
		if !got.Parents[i].Equal(&header.Parents[i]) {
			t.Errorf("parent %d mismatch: got %s, want %s", i, got.Parents[i], header.Parents[i])
		}
	}
	if !bytes.Equal(got.VRFProof, header.VRFProof) {
		t.Errorf("VRFProof mismatch: got %x, want %x", got.VRFProof, header.VRFProof)
	}
}

func TestSerializeHeaderRejectsTooManyParents(t *testing.T) {
	header := sampleHeader()
	header.Parents = make([]externalapi.DomainHash, externalapi.MaxParents+1)

	var buf bytes.Buffer
	if err := SerializeHeader(&buf, header); err == nil {
		t.Fatal("expected SerializeHeader to reject an over-long parent list")
	}
}

func sampleTransaction() *externalapi.DomainTransaction {
	payload, err := EncodeTransferPayload(&externalapi.TransferPayload{
		Transfers: []externalapi.Transfer{
			{Receiver: addressFromByte(2), Asset: externalapi.TOSAsset, Amount: 500},
		},
	})
	if err != nil {
		panic(err)
	}
	return &externalapi.DomainTransaction{
		Version:   1,
		ChainID:   3,
		Source:    addressFromByte(1),
		Type:      externalapi.TransactionTypeTransfers,
		Payload:   payload,
		Fee:       10,
		FeeAsset:  externalapi.TOSAsset,
		Nonce:     7,
		Signature: []byte{0x01, 0x02, 0x03},
	}
}

func TestSerializeDeserializeTransactionRoundTrip(t *testing.T) {
	tx := sampleTransaction()

	encoded, err := EncodeTransaction(tx)
	if err != nil {
		t.Fatalf("EncodeTransaction: %s", err)
	}

	got, err := DecodeTransaction(encoded)
	if err != nil {
		t.Fatalf("DecodeTransaction: %s", err)
	}

	if got.Version != tx.Version || got.ChainID != tx.ChainID || got.Type != tx.Type ||
		got.Fee != tx.Fee || got.Nonce != tx.Nonce {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, tx)
	}
	if !bytes.Equal(got.Payload, tx.Payload) {
		t.Errorf("payload mismatch: got %x, want %x", got.Payload, tx.Payload)
	}
	if !bytes.Equal(got.Signature, tx.Signature) {
		t.Errorf("signature mismatch: got %x, want %x", got.Signature, tx.Signature)
	}
	if got.FeeAsset != tx.FeeAsset {
		t.Errorf("fee asset mismatch: got %x, want %x", got.FeeAsset, tx.FeeAsset)
	}
}

func TestSerializeTransactionRejectsAnUnregisteredFeeAsset(t *testing.T) {
	tx := sampleTransaction()
	tx.FeeAsset = externalapi.DomainAssetID{0xAB}

	var buf bytes.Buffer
	if err := SerializeTransaction(&buf, tx); err == nil {
		t.Fatal("expected serialization to reject a fee asset with no wire discriminant")
	}
}

func TestSerializeTransactionEncodesFeeAssetAsASingleByteDiscriminant(t *testing.T) {
	tx := sampleTransaction()

	encoded, err := EncodeTransaction(tx)
	if err != nil {
		t.Fatalf("EncodeTransaction: %s", err)
	}

	// version(1) + chainID(1) + source(32) + type(1) + varlen-payload(u32 len
	// prefix + len(tx.Payload)) + fee(8) = the offset of the fee_type byte,
	// spec.md's declared 1-byte width rather than a full 32-byte asset id.
	feeTypeOffset := 1 + 1 + 32 + 1 + 4 + len(tx.Payload) + 8
	if feeTypeOffset >= len(encoded) {
		t.Fatalf("encoded transaction too short to contain a fee_type byte at offset %d: %d bytes", feeTypeOffset, len(encoded))
	}
	if encoded[feeTypeOffset] != byte(externalapi.FeeAssetTypeNative) {
		t.Errorf("expected fee_type byte %d at offset %d, got %d",
			externalapi.FeeAssetTypeNative, feeTypeOffset, encoded[feeTypeOffset])
	}
}

func TestSerializeTransactionForIDExcludesSignatureAndMultiSig(t *testing.T) {
	tx := sampleTransaction()
	tx.MultiSig = &externalapi.DomainMultiSigPayload{
		SignerIndices: []uint8{0, 1},
		Signatures:    [][]byte{{0x11}, {0x22}},
	}

	var withSig bytes.Buffer
	if err := SerializeTransactionForID(&withSig, tx); err != nil {
		t.Fatalf("SerializeTransactionForID: %s", err)
	}

	tx.Signature = append([]byte{}, tx.Signature...)
	tx.Signature[0] ^= 0xFF
	tx.MultiSig.Signatures[0] = []byte{0x99}

	var afterMutation bytes.Buffer
	if err := SerializeTransactionForID(&afterMutation, tx); err != nil {
		t.Fatalf("SerializeTransactionForID: %s", err)
	}

	if !bytes.Equal(withSig.Bytes(), afterMutation.Bytes()) {
		t.Error("expected the txid encoding to be unaffected by signature or multisig changes")
	}
}

func TestDeserializeTransactionRejectsUnknownType(t *testing.T) {
	tx := sampleTransaction()
	encoded, err := EncodeTransaction(tx)
	if err != nil {
		t.Fatalf("EncodeTransaction: %s", err)
	}

	// The type opcode follows version(1) + chainID(1) + source(32).
	encoded[34] = 0xFE

	if _, err := DecodeTransaction(encoded); err == nil {
		t.Fatal("expected an unknown transaction type opcode to be rejected")
	}
}

func TestSerializeDeserializeBlockRoundTrip(t *testing.T) {
	block := &externalapi.DomainBlock{
		Header:       sampleHeader(),
		Transactions: []*externalapi.DomainTransaction{sampleTransaction(), sampleTransaction()},
	}

	var buf bytes.Buffer
	if err := SerializeBlock(&buf, block); err != nil {
		t.Fatalf("SerializeBlock: %s", err)
	}

	got, err := DeserializeBlock(&buf)
	if err != nil {
		t.Fatalf("DeserializeBlock: %s", err)
	}
	if len(got.Transactions) != len(block.Transactions) {
		t.Fatalf("expected %d transactions, got %d", len(block.Transactions), len(got.Transactions))
	}
}

func TestTransferPayloadRoundTrip(t *testing.T) {
	payload := &externalapi.TransferPayload{
		Transfers: []externalapi.Transfer{
			{Receiver: addressFromByte(2), Asset: externalapi.TOSAsset, Amount: 100},
			{Receiver: addressFromByte(3), Asset: externalapi.TOSAsset, Amount: 200},
		},
	}

	encoded, err := EncodeTransferPayload(payload)
	if err != nil {
		t.Fatalf("EncodeTransferPayload: %s", err)
	}

	got, err := DecodeTransferPayload(encoded)
	if err != nil {
		t.Fatalf("DecodeTransferPayload: %s", err)
	}
	if len(got.Transfers) != len(payload.Transfers) {
		t.Fatalf("expected %d transfers, got %d", len(payload.Transfers), len(got.Transfers))
	}
	for i := range payload.Transfers {
		if got.Transfers[i].Amount != payload.Transfers[i].Amount {
			t.Errorf("transfer %d amount mismatch: got %d, want %d", i, got.Transfers[i].Amount, payload.Transfers[i].Amount)
		}
	}
}

func TestBurnPayloadRoundTrip(t *testing.T) {
	encoded, err := EncodeBurnPayload(9999)
	if err != nil {
		t.Fatalf("EncodeBurnPayload: %s", err)
	}
	got, err := DecodeBurnPayload(encoded)
	if err != nil {
		t.Fatalf("DecodeBurnPayload: %s", err)
	}
	if got != 9999 {
		t.Errorf("expected 9999, got %d", got)
	}
}
