package externalapi

// TransactionType is a closed sum over the transaction families TOS
// supports. Unknown opcodes fail deserialization rather than being accepted
// as an unrecognized arm.
type TransactionType uint8

// Transaction type catalog, per the wire opcode assignment.
const (
	TransactionTypeBurn TransactionType = iota
	TransactionTypeTransfers
	TransactionTypeMultiSig
	TransactionTypeInvokeContract
	TransactionTypeDeployContract
	TransactionTypeEnergy
)

// Shielded transaction families occupy a separate opcode range.
const (
	TransactionTypeUnoTransfers      TransactionType = 18
	TransactionTypeShieldTransfers   TransactionType = 19
	TransactionTypeUnshieldTransfers TransactionType = 20
)

// String renders a human-readable name for logging.
func (t TransactionType) String() string {
	switch t {
	case TransactionTypeBurn:
		return "Burn"
	case TransactionTypeTransfers:
		return "Transfers"
	case TransactionTypeMultiSig:
		return "MultiSig"
	case TransactionTypeInvokeContract:
		return "InvokeContract"
	case TransactionTypeDeployContract:
		return "DeployContract"
	case TransactionTypeEnergy:
		return "Energy"
	case TransactionTypeUnoTransfers:
		return "UnoTransfers"
	case TransactionTypeShieldTransfers:
		return "ShieldTransfers"
	case TransactionTypeUnshieldTransfers:
		return "UnshieldTransfers"
	default:
		return "Unknown"
	}
}

// IsKnown reports whether t is a member of the closed transaction type enum.
func (t TransactionType) IsKnown() bool {
	switch t {
	case TransactionTypeBurn, TransactionTypeTransfers, TransactionTypeMultiSig,
		TransactionTypeInvokeContract, TransactionTypeDeployContract, TransactionTypeEnergy,
		TransactionTypeUnoTransfers, TransactionTypeShieldTransfers, TransactionTypeUnshieldTransfers:
		return true
	default:
		return false
	}
}

// SequentialOnlyTransactionTypes is the set of families excluded from the
// parallel execution eligibility gate (spec.md §4.5).
var SequentialOnlyTransactionTypes = map[TransactionType]bool{
	TransactionTypeInvokeContract: true,
	TransactionTypeDeployContract: true,
	TransactionTypeEnergy:         true,
	TransactionTypeMultiSig:       true,
}

// DomainAddressSize is the size of a compressed Ristretto255 public key.
const DomainAddressSize = 32

// DomainAddress is a compressed Ristretto255 public key identifying an account.
type DomainAddress [DomainAddressSize]byte

// DomainAssetID identifies a fungible asset. The all-zero value is TOS_ASSET,
// the native plaintext-balance asset.
type DomainAssetID [32]byte

// TOSAsset is the native asset sentinel.
var TOSAsset = DomainAssetID{}

// FeeAssetType is the 1-byte wire discriminant for a transaction's fee asset
// (spec.md §3: "fee(8) fee_type(1)"). The full 32-byte DomainAssetID a
// transaction pays its fee in never travels on the wire directly; only this
// discriminant does, resolved against feeAssetRegistry.
type FeeAssetType uint8

// FeeAssetTypeNative is the discriminant for TOS_ASSET, the only fee asset
// every chain supports unconditionally.
const FeeAssetTypeNative FeeAssetType = 0

var (
	feeAssetRegistry     = map[FeeAssetType]DomainAssetID{FeeAssetTypeNative: TOSAsset}
	feeAssetRegistryByID = map[DomainAssetID]FeeAssetType{TOSAsset: FeeAssetTypeNative}
)

// RegisterFeeAsset assigns a wire discriminant to an asset that may be used
// to pay transaction fees, beyond the always-present native TOS_ASSET at 0.
// Chains that allow paying fees in a deployed asset call this once at
// startup for each such asset; discriminant 0 is reserved for TOSAsset.
func RegisterFeeAsset(discriminant FeeAssetType, asset DomainAssetID) {
	feeAssetRegistry[discriminant] = asset
	feeAssetRegistryByID[asset] = discriminant
}

// FeeAssetTypeFor returns the wire discriminant a fee asset resolves to, or
// false if it has not been registered and so cannot be named on the wire.
func FeeAssetTypeFor(asset DomainAssetID) (FeeAssetType, bool) {
	discriminant, ok := feeAssetRegistryByID[asset]
	return discriminant, ok
}

// ResolveFeeAsset returns the full asset a wire discriminant names, or false
// if the discriminant is unrecognized.
func ResolveFeeAsset(discriminant FeeAssetType) (DomainAssetID, bool) {
	asset, ok := feeAssetRegistry[discriminant]
	return asset, ok
}

// DomainTransactionReference pins a transaction to the chain state it was
// built against: the hash and topoheight of the block the sender observed
// when they signed.
type DomainTransactionReference struct {
	Hash       DomainHash
	TopoHeight uint64
}

// DomainMultiSigPayload describes a multisig envelope attached to a
// transaction: one signature per participant, identified by ascending,
// unique signer indices.
type DomainMultiSigPayload struct {
	SignerIndices []uint8
	Signatures    [][]byte
}

// DomainTransaction is the canonical in-memory transaction representation.
// Its wire layout is defined in wire/transaction.go; its identity hash (txid) is
// defined in consensushashing.
type DomainTransaction struct {
	Version   uint8
	ChainID   uint8
	Source    DomainAddress
	Type      TransactionType
	Payload   []byte
	Fee       uint64
	FeeAsset  DomainAssetID
	Nonce     uint64
	Reference DomainTransactionReference
	MultiSig  *DomainMultiSigPayload

	// Signature is excluded from the txid hash (invariant P7 / spec.md §3.6):
	// resigning a transaction with a different key never changes its txid.
	Signature []byte

	// TransactionID caches the computed txid once hashed; nil until hashed.
	TransactionID *DomainTransactionID
}

// DomainTransactionID is a Hash specialized to transaction identity.
type DomainTransactionID DomainHash

// String renders the transaction id as hex.
func (id DomainTransactionID) String() string {
	return DomainHash(id).String()
}

// Clone returns a deep copy of the transaction, safe to mutate independently.
func (tx *DomainTransaction) Clone() *DomainTransaction {
	clone := *tx
	clone.Payload = append([]byte(nil), tx.Payload...)
	clone.Signature = append([]byte(nil), tx.Signature...)
	if tx.MultiSig != nil {
		ms := &DomainMultiSigPayload{
			SignerIndices: append([]uint8(nil), tx.MultiSig.SignerIndices...),
		}
		ms.Signatures = make([][]byte, len(tx.MultiSig.Signatures))
		for i, sig := range tx.MultiSig.Signatures {
			ms.Signatures[i] = append([]byte(nil), sig...)
		}
		clone.MultiSig = ms
	}
	if tx.TransactionID != nil {
		idClone := *tx.TransactionID
		clone.TransactionID = &idClone
	}
	return &clone
}

// TransferPayload is the decoded payload of a Transfers transaction: a list
// of (receiver, asset, amount) transfers, bounded by MaxTransferCount.
type TransferPayload struct {
	Transfers []Transfer
}

// Transfer is a single plaintext transfer within a Transfers transaction.
type Transfer struct {
	Receiver DomainAddress
	Asset    DomainAssetID
	Amount   uint64
}

// MaxTransferCount is the largest number of transfers (or any other bounded
// collection on the wire) a single transaction may declare.
const MaxTransferCount = 500
