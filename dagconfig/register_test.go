package dagconfig_test

import (
	"testing"

	. "github.com/tos-network/tos/dagconfig"
)

func TestRegisterDuplicate(t *testing.T) {
	tests := []struct {
		name   string
		params *Params
	}{
		{name: "duplicate mainnet", params: &MainNetParams},
		{name: "duplicate testnet", params: &TestNetParams},
		{name: "duplicate devnet", params: &DevNetParams},
	}

	for _, test := range tests {
		err := Register(test.params)
		if err == nil {
			t.Errorf("%s: expected an error registering an already-registered chain id, got nil", test.name)
		}
	}
}

func TestRegisterMockNet(t *testing.T) {
	mockNetParams := Params{
		Name:       "mocknet",
		ChainID:    0xff,
		AddressHRP: "mck",
	}

	if err := Register(&mockNetParams); err != nil {
		t.Fatalf("registering mocknet: %s", err)
	}
	if err := Register(&mockNetParams); err == nil {
		t.Fatalf("expected an error re-registering mocknet, got nil")
	}

	got, ok := ByChainID(0xff)
	if !ok || got.Name != "mocknet" {
		t.Fatalf("ByChainID(0xff): got %+v, %v", got, ok)
	}
	got, ok = ByName("mocknet")
	if !ok || got.ChainID != 0xff {
		t.Fatalf("ByName(mocknet): got %+v, %v", got, ok)
	}
}

func TestDefaultNetworksDistinctGenesis(t *testing.T) {
	if MainNetParams.GenesisHash.Equal(&TestNetParams.GenesisHash) {
		t.Error("mainnet and testnet must not share a genesis hash")
	}
	if MainNetParams.GenesisHash.Equal(&DevNetParams.GenesisHash) {
		t.Error("mainnet and devnet must not share a genesis hash")
	}
	if TestNetParams.GenesisHash.IsZero() {
		t.Error("testnet genesis hash must not be the zero hash")
	}
}

func TestMinFeeForType(t *testing.T) {
	if MainNetParams.MinFeeForType(0) == 0 {
		t.Error("plaintext transfer minimum fee must be nonzero")
	}
}
