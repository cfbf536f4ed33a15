// Package funds abstracts the collateral custody paths behind one interface.
// The margin ledger treats deposit and withdraw amounts identically whether
// collateral is an external token or the native asset ("inversed" mode); both
// paths use the same WAD scale.
package funds

import (
	"errors"
	"math/big"
)

var (
	ErrInsufficientFunds = errors.New("insufficient collateral balance")
	ErrZeroAddress       = errors.New("zero address")
)

// Collateral moves collateral between external holders and the ledger vault.
type Collateral interface {
	// TransferIn pulls amount from the holder into the vault.
	TransferIn(from string, amount *big.Int) error
	// TransferOut pays amount from the vault to the holder.
	TransferOut(to string, amount *big.Int) error
	// VaultBalance is the total collateral held by the vault.
	VaultBalance() *big.Int
}
