// Package txvalidator implements spec.md §4.2's stateless transaction
// checks: the ones a transaction must pass on its own, independent of any
// chain state, before it is eligible for the mempool or for inclusion in a
// block. Grounded on the teacher's domain/consensus/processes/
// transactionvalidator package (CheckTransactionSanity as a named sequence
// of independent stateless checks run before any UTXO lookup) and
// crypto/schnorr's VerifyBatch for the batched signature pass spec.md §4.2
// calls for.
package txvalidator

import (
	"bytes"

	"github.com/tos-network/tos/consensuserrors"
	"github.com/tos-network/tos/crypto/ristretto"
	"github.com/tos-network/tos/crypto/schnorr"
	"github.com/tos-network/tos/dagconfig"
	"github.com/tos-network/tos/externalapi"
	"github.com/tos-network/tos/wire"
)

// CurrentTransactionVersion is the only transaction wire version this build
// accepts. Unversioned upgrades aren't possible under spec.md's closed wire
// format; a future version bump widens this check, not replaces it.
const CurrentTransactionVersion = 1

// MaxTransactionSize bounds a transaction's full wire encoding, mirroring
// the teacher's MaxStandardTxSize: a block-size multiple generous enough
// for the largest MultiSig/shielded payload, small enough to bound mempool
// memory.
const MaxTransactionSize = 64 * 1024

// MultiSigConfigStore looks up an account's registered multisig policy, the
// minimal surface CheckSanity's multisig check needs from chain state (a
// dagconfig.Params-style pre-execution lookup, not a versioned read).
type MultiSigConfigStore interface {
	MultiSigConfig(account externalapi.DomainAddress) (*externalapi.DomainMultiSigConfig, bool, error)
}

// CheckSanity runs every stateless check of spec.md §4.2 against tx, in the
// order the teacher's CheckTransactionSanity runs its own: structural
// decode, version/chain-id, size limit, fee floor, then the multisig
// envelope and signature, which are the only checks requiring a chain-state
// lookup (an account's registered MultiSigConfig) and are therefore run
// last, after every check that needs nothing but the transaction itself.
func CheckSanity(params *dagconfig.Params, multiSigStore MultiSigConfigStore, tx *externalapi.DomainTransaction) error {
	if tx.Version != CurrentTransactionVersion {
		return consensuserrors.Newf(consensuserrors.ErrInvalidVersion,
			"transaction declares version %d, expected %d", tx.Version, CurrentTransactionVersion)
	}
	if tx.ChainID != params.ChainID {
		return consensuserrors.Newf(consensuserrors.ErrInvalidFormat,
			"transaction declares chain id %d, network is %d (%s)", tx.ChainID, params.ChainID, params.Name)
	}
	if !tx.Type.IsKnown() {
		return consensuserrors.Newf(consensuserrors.ErrInvalidFormat,
			"transaction declares unknown type %d", tx.Type)
	}

	var buf bytes.Buffer
	if err := wire.SerializeTransaction(&buf, tx); err != nil {
		return consensuserrors.Newf(consensuserrors.ErrInvalidFormat, "transaction does not serialize: %s", err)
	}
	if buf.Len() > MaxTransactionSize {
		return consensuserrors.Newf(consensuserrors.ErrSizeLimit,
			"transaction is %d bytes, exceeding the %d byte limit", buf.Len(), MaxTransactionSize)
	}

	if minFee := params.MinFeeForType(tx.Type); tx.Fee < minFee {
		return consensuserrors.Newf(consensuserrors.ErrInvalidFormat,
			"transaction declares fee %d, below the %d floor for %s", tx.Fee, minFee, tx.Type)
	}

	if tx.MultiSig != nil {
		if err := checkMultiSig(multiSigStore, tx); err != nil {
			return err
		}
	}

	return checkSignature(tx)
}

// checkSignature verifies tx.Signature over tx's id-hash bytes under
// tx.Source, the single-signer path every transaction (MultiSig included,
// as the envelope's own signatures are checked separately) must satisfy.
func checkSignature(tx *externalapi.DomainTransaction) error {
	pubkey, err := ristretto.DecodePoint(tx.Source[:])
	if err != nil {
		return consensuserrors.Newf(consensuserrors.ErrInvalidFormat, "transaction source is not a valid public key: %s", err)
	}
	sig, err := schnorr.DecodeSignature(tx.Signature)
	if err != nil {
		return consensuserrors.Newf(consensuserrors.ErrInvalidFormat, "transaction signature malformed: %s", err)
	}
	message := signedMessage(tx)
	if !schnorr.Verify(pubkey, message, sig) {
		return consensuserrors.Newf(consensuserrors.ErrInvalidSignature, "transaction signature does not verify under its declared source")
	}
	return nil
}

// checkMultiSig validates a MultiSig-envelope transaction's signer indices
// and per-signer signatures against the account's registered threshold
// policy: strictly increasing, in-bounds signer indices, at least Threshold
// of them, and every declared signature verifying under its signer's
// participant key.
func checkMultiSig(multiSigStore MultiSigConfigStore, tx *externalapi.DomainTransaction) error {
	cfg, found, err := multiSigStore.MultiSigConfig(tx.Source)
	if err != nil {
		return err
	}
	if !found {
		return consensuserrors.Newf(consensuserrors.ErrInvalidFormat,
			"transaction source %x has no registered multisig policy", tx.Source)
	}

	indices := tx.MultiSig.SignerIndices
	sigs := tx.MultiSig.Signatures
	if len(indices) != len(sigs) {
		return consensuserrors.Newf(consensuserrors.ErrInvalidFormat,
			"multisig declares %d signer indices but %d signatures", len(indices), len(sigs))
	}
	if len(indices) < int(cfg.Threshold) {
		return consensuserrors.Newf(consensuserrors.ErrInvalidFormat,
			"multisig provides %d of the required %d signatures", len(indices), cfg.Threshold)
	}

	message := signedMessage(tx)
	items := make([]schnorr.BatchItem, len(indices))
	for i, idx := range indices {
		if i > 0 && idx <= indices[i-1] {
			return consensuserrors.Newf(consensuserrors.ErrInvalidFormat,
				"multisig signer indices must be strictly increasing, got %d after %d", idx, indices[i-1])
		}
		if int(idx) >= len(cfg.Participants) {
			return consensuserrors.Newf(consensuserrors.ErrInvalidFormat,
				"multisig signer index %d is out of bounds for %d participants", idx, len(cfg.Participants))
		}
		pubkey, err := ristretto.DecodePoint(cfg.Participants[idx][:])
		if err != nil {
			return consensuserrors.Newf(consensuserrors.ErrInvalidFormat, "multisig participant %d is not a valid public key: %s", idx, err)
		}
		sig, err := schnorr.DecodeSignature(sigs[i])
		if err != nil {
			return consensuserrors.Newf(consensuserrors.ErrInvalidFormat, "multisig signature %d malformed: %s", i, err)
		}
		items[i] = schnorr.BatchItem{PublicKey: pubkey, Message: message, Signature: sig}
	}

	ok, err := schnorr.VerifyBatch(items)
	if err != nil {
		return consensuserrors.Newf(consensuserrors.ErrInvalidSignature, "multisig batch verification failed: %s", err)
	}
	if !ok {
		return consensuserrors.Newf(consensuserrors.ErrInvalidSignature, "one or more multisig signatures do not verify")
	}
	return nil
}

// signedMessage is the byte string a transaction's Signature (and, for a
// MultiSig envelope, each participant signature) is computed over: its
// txid-hash encoding, excluding the signature field itself (spec.md §3.6).
func signedMessage(tx *externalapi.DomainTransaction) []byte {
	var buf bytes.Buffer
	if err := wire.SerializeTransactionForID(&buf, tx); err != nil {
		// SerializeTransactionForID only fails on a writer error or an
		// unregistered fee asset; bytes.Buffer never errors, and both
		// callers reject a transaction that does not serialize first.
		panic(err)
	}
	return buf.Bytes()
}

// CheckBatch runs CheckSanity's checks over every transaction in txs, then verifies
// every single-signer signature together via schnorr.VerifyBatch rather
// than one-at-a-time, per spec.md §4.2's batched validator variant. A
// MultiSig transaction's envelope signatures are still checked within
// CheckSanity's own per-transaction multisig batch.
func CheckBatch(params *dagconfig.Params, multiSigStore MultiSigConfigStore, txs []*externalapi.DomainTransaction) error {
	items := make([]schnorr.BatchItem, 0, len(txs))
	for _, tx := range txs {
		if tx.Version != CurrentTransactionVersion {
			return consensuserrors.Newf(consensuserrors.ErrInvalidVersion,
				"transaction declares version %d, expected %d", tx.Version, CurrentTransactionVersion)
		}
		if tx.ChainID != params.ChainID {
			return consensuserrors.Newf(consensuserrors.ErrInvalidFormat,
				"transaction declares chain id %d, network is %d (%s)", tx.ChainID, params.ChainID, params.Name)
		}
		if !tx.Type.IsKnown() {
			return consensuserrors.Newf(consensuserrors.ErrInvalidFormat, "transaction declares unknown type %d", tx.Type)
		}
		var buf bytes.Buffer
		if err := wire.SerializeTransaction(&buf, tx); err != nil {
			return consensuserrors.Newf(consensuserrors.ErrInvalidFormat, "transaction does not serialize: %s", err)
		}
		if buf.Len() > MaxTransactionSize {
			return consensuserrors.Newf(consensuserrors.ErrSizeLimit,
				"transaction is %d bytes, exceeding the %d byte limit", buf.Len(), MaxTransactionSize)
		}
		if minFee := params.MinFeeForType(tx.Type); tx.Fee < minFee {
			return consensuserrors.Newf(consensuserrors.ErrInvalidFormat,
				"transaction declares fee %d, below the %d floor for %s", tx.Fee, minFee, tx.Type)
		}
		if tx.MultiSig != nil {
			if err := checkMultiSig(multiSigStore, tx); err != nil {
				return err
			}
		}

		pubkey, err := ristretto.DecodePoint(tx.Source[:])
		if err != nil {
			return consensuserrors.Newf(consensuserrors.ErrInvalidFormat, "transaction source is not a valid public key: %s", err)
		}
		sig, err := schnorr.DecodeSignature(tx.Signature)
		if err != nil {
			return consensuserrors.Newf(consensuserrors.ErrInvalidFormat, "transaction signature malformed: %s", err)
		}
		items = append(items, schnorr.BatchItem{PublicKey: pubkey, Message: signedMessage(tx), Signature: sig})
	}

	ok, err := schnorr.VerifyBatch(items)
	if err != nil {
		return consensuserrors.Newf(consensuserrors.ErrInvalidSignature, "batch verification failed: %s", err)
	}
	if !ok {
		return consensuserrors.Newf(consensuserrors.ErrInvalidSignature, "one or more transaction signatures do not verify")
	}
	log.Debugf("batch-verified %d transaction signatures", len(items))
	return nil
}
