package types

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ParseAddress decodes a 0x-prefixed hex account, collection, or token
// identifier into its canonical 20-byte form.
func ParseAddress(s string) ([20]byte, error) {
	if !common.IsHexAddress(s) {
		return [20]byte{}, fmt.Errorf("invalid address %q", s)
	}
	return [20]byte(common.HexToAddress(s)), nil
}

// FormatAddress renders an address in EIP-55 checksummed hex.
func FormatAddress(addr [20]byte) string {
	return common.Address(addr).Hex()
}

// IsZeroAddress reports whether the address is the all-zero sentinel.
func IsZeroAddress(addr [20]byte) bool {
	return addr == [20]byte{}
}
