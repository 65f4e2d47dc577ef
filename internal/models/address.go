package models

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"

	apperrors "fairdice-backend/internal/errors"
)

// NormalizeAddress validates a 0x-prefixed wallet address and returns it in
// lower case, which is the ledger key.
func NormalizeAddress(address string) (string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", apperrors.New(apperrors.CodeInvalidInput, "address is required")
	}
	if !strings.HasPrefix(address, "0x") && !strings.HasPrefix(address, "0X") {
		return "", apperrors.WithMetadata(apperrors.CodeInvalidInput, "address must be 0x-prefixed", map[string]string{"address": address})
	}
	if !common.IsHexAddress(address) {
		return "", apperrors.WithMetadata(apperrors.CodeInvalidInput, "invalid wallet address", map[string]string{"address": address})
	}
	return strings.ToLower(common.HexToAddress(address).Hex()), nil
}
