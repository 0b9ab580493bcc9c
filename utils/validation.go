package utils

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

var hexRe = regexp.MustCompile("^[0-9a-fA-F]+$")

// ValidateAddress validates an EVM address: 0x prefix plus 40 hex
// characters. Checksummed and lowercase forms are both accepted.
func ValidateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("address cannot be empty")
	}
	if !strings.HasPrefix(address, "0x") {
		return fmt.Errorf("address must start with 0x")
	}
	if len(address) != 42 {
		return fmt.Errorf("address must be 42 characters long")
	}
	if !hexRe.MatchString(address[2:]) {
		return fmt.Errorf("address must be valid hex")
	}
	return nil
}

// ValidateTxHash validates an EVM transaction hash: 0x plus 64 hex
// characters.
func ValidateTxHash(hash string) error {
	if hash == "" {
		return fmt.Errorf("transaction hash cannot be empty")
	}
	if !strings.HasPrefix(hash, "0x") {
		return fmt.Errorf("transaction hash must start with 0x")
	}
	if len(hash) != 66 {
		return fmt.Errorf("transaction hash must be 66 characters long")
	}
	if !hexRe.MatchString(hash[2:]) {
		return fmt.Errorf("transaction hash must be valid hex")
	}
	return nil
}

// ValidateBigInt parses a non-negative base-10 integer string.
func ValidateBigInt(value string) (*big.Int, error) {
	if value == "" {
		return nil, fmt.Errorf("value cannot be empty")
	}
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid big integer format")
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("value cannot be negative")
	}
	return v, nil
}
