package externalapi

// DomainAssetData describes a registered asset: its display metadata, supply
// cap, and the account permitted to mint further units.
type DomainAssetData struct {
	Name      string
	Ticker    string
	MaxSupply uint64
	Decimals  uint8
	Owner     DomainAddress
}

// DomainMultiSigConfig is the multisig policy attached to an account: a
// signer set and the number of signatures required to authorize a
// MultiSig transaction from it.
type DomainMultiSigConfig struct {
	Threshold    uint8
	Participants []DomainAddress
}

// DomainReceipt is the per-transaction execution outcome, emitted as part of
// a TransactionExecuted event.
type DomainReceipt struct {
	TransactionID DomainTransactionID
	Success       bool
	FeePaid       uint64
	FeeAsset      DomainAssetID
	Error         error
}
