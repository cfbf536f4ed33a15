package funds

import "math/big"

// TokenVault is the external-token collateral path: a fungible balance ledger
// with the vault as one holder. Holder balances are WAD-scaled.
type TokenVault struct {
	name     string
	symbol   string
	balances map[string]*big.Int
	vault    *big.Int
}

func NewTokenVault(name, symbol string) *TokenVault {
	return &TokenVault{
		name:     name,
		symbol:   symbol,
		balances: make(map[string]*big.Int),
		vault:    new(big.Int),
	}
}

func (v *TokenVault) Name() string   { return v.name }
func (v *TokenVault) Symbol() string { return v.symbol }

// Credit adds externally sourced collateral to a holder. Test and bootstrap
// hook, mirrors a token faucet.
func (v *TokenVault) Credit(holder string, amount *big.Int) {
	v.balances[holder] = new(big.Int).Add(v.balanceOf(holder), amount)
}

func (v *TokenVault) balanceOf(holder string) *big.Int {
	if b, ok := v.balances[holder]; ok {
		return b
	}
	return new(big.Int)
}

// BalanceOf returns the holder's free collateral outside the vault.
func (v *TokenVault) BalanceOf(holder string) *big.Int {
	return new(big.Int).Set(v.balanceOf(holder))
}

func (v *TokenVault) TransferIn(from string, amount *big.Int) error {
	if from == "" {
		return ErrZeroAddress
	}
	bal := v.balanceOf(from)
	if bal.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	v.balances[from] = new(big.Int).Sub(bal, amount)
	v.vault.Add(v.vault, amount)
	return nil
}

func (v *TokenVault) TransferOut(to string, amount *big.Int) error {
	if to == "" {
		return ErrZeroAddress
	}
	if v.vault.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	v.vault.Sub(v.vault, amount)
	v.balances[to] = new(big.Int).Add(v.balanceOf(to), amount)
	return nil
}

func (v *TokenVault) VaultBalance() *big.Int {
	return new(big.Int).Set(v.vault)
}

// NativeVault is the "inversed" collateral path: the native asset is the
// collateral with 1:1 unit semantics. Inbound transfers are assumed already
// escrowed by the transport layer, so TransferIn only grows the vault.
type NativeVault struct {
	vault *big.Int
	paid  map[string]*big.Int
}

func NewNativeVault() *NativeVault {
	return &NativeVault{vault: new(big.Int), paid: make(map[string]*big.Int)}
}

func (v *NativeVault) TransferIn(from string, amount *big.Int) error {
	if from == "" {
		return ErrZeroAddress
	}
	v.vault.Add(v.vault, amount)
	return nil
}

func (v *NativeVault) TransferOut(to string, amount *big.Int) error {
	if to == "" {
		return ErrZeroAddress
	}
	if v.vault.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	v.vault.Sub(v.vault, amount)
	prev, ok := v.paid[to]
	if !ok {
		prev = new(big.Int)
	}
	v.paid[to] = new(big.Int).Add(prev, amount)
	return nil
}

// PaidTo reports cumulative native payouts to a holder.
func (v *NativeVault) PaidTo(to string) *big.Int {
	if p, ok := v.paid[to]; ok {
		return new(big.Int).Set(p)
	}
	return new(big.Int)
}

func (v *NativeVault) VaultBalance() *big.Int {
	return new(big.Int).Set(v.vault)
}
