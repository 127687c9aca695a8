// Package validation checks request inputs before they reach the contracts.
package validation

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"unicode"

	"github.com/ethereum/go-ethereum/common"
)

// Limits on free-form identifiers.
const (
	MaxDomainNameLength = 253
	MaxTargetLength     = 256
	MaxRightLength      = 64
)

// ParseAddress parses a 0x-prefixed 20-byte hex address.
func ParseAddress(s string) (common.Address, error) {
	if len(s) != 42 {
		return common.Address{}, errors.New("invalid address length: must be 42 characters (0x + 40 hex)")
	}
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return common.Address{}, errors.New("invalid address: must start with 0x")
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, errors.New("invalid address: contains non-hex characters")
	}
	return common.HexToAddress(s), nil
}

// ValidateAddress validates a hex address.
func ValidateAddress(s string) error {
	_, err := ParseAddress(s)
	return err
}

// ParseWei parses a non-negative decimal wei amount. An empty string is zero.
func ParseWei(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid wei amount %q: must be a decimal integer", s)
	}
	if v.Sign() < 0 {
		return nil, errors.New("wei amount cannot be negative")
	}
	return v, nil
}

// ParseIndex parses a record index path segment.
func ParseIndex(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid index %q", s)
	}
	return v, nil
}

// ValidateDomainName checks a domain name. Names match exactly, so no case
// folding or trimming is applied.
func ValidateDomainName(name string) error {
	if name == "" {
		return errors.New("domain name cannot be empty")
	}
	if len(name) > MaxDomainNameLength {
		return fmt.Errorf("domain name too long (max %d bytes)", MaxDomainNameLength)
	}
	if strings.ContainsFunc(name, unicode.IsSpace) || strings.ContainsFunc(name, unicode.IsControl) {
		return errors.New("domain name cannot contain whitespace or control characters")
	}
	if strings.Contains(name, "/") {
		return errors.New("domain name cannot contain '/'")
	}
	return nil
}

// ValidateTarget checks the subject of an analysis request or subscription.
func ValidateTarget(target string) error {
	if target == "" {
		return errors.New("target cannot be empty")
	}
	if len(target) > MaxTargetLength {
		return fmt.Errorf("target too long (max %d bytes)", MaxTargetLength)
	}
	if strings.ContainsFunc(target, unicode.IsControl) {
		return errors.New("target cannot contain control characters")
	}
	return nil
}

// ValidateRight checks a right name.
func ValidateRight(right string) error {
	if right == "" {
		return errors.New("right cannot be empty")
	}
	if len(right) > MaxRightLength {
		return fmt.Errorf("right too long (max %d bytes)", MaxRightLength)
	}
	if strings.ContainsFunc(right, func(r rune) bool { return unicode.IsSpace(r) || unicode.IsControl(r) || r == '/' }) {
		return errors.New("right cannot contain whitespace, control characters or '/'")
	}
	return nil
}

// ValidateChainID validates a chain ID
func ValidateChainID(chainID uint64) error {
	if chainID == 0 {
		return errors.New("chain ID must be positive")
	}
	return nil
}
