package domain

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"

	dErrors "verichain/pkg/domain-errors"
)

// Address is a custody address on the ledger.
type Address = common.Address

// ParseAddress accepts only 0x-prefixed 20-byte hex addresses. The zero
// address is rejected because tokens sent there are unrecoverable.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Address{}, dErrors.New(dErrors.CodeInvalidInput, "address cannot be empty")
	}
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return Address{}, dErrors.New(dErrors.CodeInvalidInput, "address must start with 0x")
	}
	if !common.IsHexAddress(s) {
		return Address{}, dErrors.New(dErrors.CodeInvalidInput, "invalid address format")
	}
	addr := common.HexToAddress(s)
	if addr == (common.Address{}) {
		return Address{}, dErrors.New(dErrors.CodeInvalidInput, "address cannot be the zero address")
	}
	return addr, nil
}
