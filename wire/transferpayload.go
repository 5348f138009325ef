package wire

import (
	"bytes"
	"io"

	"github.com/tos-network/tos/externalapi"
)

// EncodeTransferPayload serializes a Transfers transaction's payload: a
// collection of (receiver, asset, amount) transfers, per spec.md §4.1.
func EncodeTransferPayload(payload *externalapi.TransferPayload) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCollectionCount(&buf, len(payload.Transfers)); err != nil {
		return nil, err
	}
	for _, transfer := range payload.Transfers {
		if _, err := buf.Write(transfer.Receiver[:]); err != nil {
			return nil, err
		}
		if _, err := buf.Write(transfer.Asset[:]); err != nil {
			return nil, err
		}
		if err := writeUint64(&buf, transfer.Amount); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// DecodeTransferPayload parses a Transfers transaction's payload.
func DecodeTransferPayload(data []byte) (*externalapi.TransferPayload, error) {
	r := bytes.NewReader(data)
	count, err := readCollectionCount(r)
	if err != nil {
		return nil, err
	}
	transfers := make([]externalapi.Transfer, count)
	for i := range transfers {
		var receiver externalapi.DomainAddress
		if _, err := io.ReadFull(r, receiver[:]); err != nil {
			return nil, invalidFormat("reading transfer receiver: %s", err)
		}
		var asset externalapi.DomainAssetID
		if _, err := io.ReadFull(r, asset[:]); err != nil {
			return nil, invalidFormat("reading transfer asset: %s", err)
		}
		amount, err := readUint64(r)
		if err != nil {
			return nil, err
		}
		transfers[i] = externalapi.Transfer{Receiver: receiver, Asset: asset, Amount: amount}
	}
	return &externalapi.TransferPayload{Transfers: transfers}, nil
}
