package dagconfig

import "fmt"

func errDuplicateChainID(chainID uint8) error {
	return fmt.Errorf("dagconfig: chain id 0x%02x is already registered", chainID)
}
