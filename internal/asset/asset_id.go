// Package asset provides the token model shared by every context: token
// metadata, natural-unit decimal amounts and the conversions between natural
// units and on-chain base units.
//
// Amounts are held as arbitrary-precision decimals in the token's natural
// unit. Base units only exist at the chain boundary (ToBaseUnits/BaseUnits).
package asset

import (
	"fmt"
	"strings"
)

// AssetID uniquely identifies a token by chain and address.
// An empty address denotes the chain's native coin.
// Addresses are compared case-insensitively, so hex checksums and
// non-hex (TON style) addresses share one representation.
type AssetID struct {
	chainID uint64
	address string
}

// NewNativeAssetID creates an AssetID for a chain's native coin.
func NewNativeAssetID(chainID uint64) AssetID {
	return AssetID{chainID: chainID}
}

// NewTokenAssetID creates an AssetID for a token contract.
func NewTokenAssetID(chainID uint64, address string) AssetID {
	address = normalizeAddress(address)
	if address == "" {
		panic("asset: empty token address - use NewNativeAssetID for native coins")
	}
	return AssetID{chainID: chainID, address: address}
}

// ChainID returns the chain ID.
func (id AssetID) ChainID() uint64 {
	return id.chainID
}

// Address returns the normalized (lower-case) token address, empty for native coins.
func (id AssetID) Address() string {
	return id.address
}

// IsNative returns true for a chain's native coin.
func (id AssetID) IsNative() bool {
	return id.address == ""
}

func (id AssetID) String() string {
	if id.IsNative() {
		return fmt.Sprintf("chain:%d/native", id.chainID)
	}
	return fmt.Sprintf("chain:%d/%s", id.chainID, id.address)
}

// Equals compares two AssetIDs for equality.
func (id AssetID) Equals(other AssetID) bool {
	return id.chainID == other.chainID && id.address == other.address
}

func normalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
