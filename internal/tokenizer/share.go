package tokenizer

import (
	"math/big"

	"PerpShare/internal/perpetual"
)

// The share ledger is a plain fungible balance table. Transfers stay open in
// every lifecycle state except pause so that secondary markets keep working
// through settlement.

func (t *Tokenizer) TotalSupply() *big.Int {
	return new(big.Int).Set(t.totalSupply)
}

func (t *Tokenizer) BalanceOf(holder string) *big.Int {
	if b, ok := t.balances[holder]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

func (t *Tokenizer) Allowance(owner, spender string) *big.Int {
	if m, ok := t.allowances[owner]; ok {
		if a, ok := m[spender]; ok {
			return new(big.Int).Set(a)
		}
	}
	return new(big.Int)
}

func (t *Tokenizer) Approve(owner, spender string, amount *big.Int) error {
	if owner == "" || spender == "" {
		return ErrZeroAddress
	}
	if amount == nil || amount.Sign() < 0 {
		return perpetual.ErrInvalidAmount
	}
	m, ok := t.allowances[owner]
	if !ok {
		m = make(map[string]*big.Int)
		t.allowances[owner] = m
	}
	m[spender] = new(big.Int).Set(amount)
	return nil
}

func (t *Tokenizer) Transfer(from, to string, amount *big.Int) error {
	if err := t.gate(OpTransfer); err != nil {
		return err
	}
	return t.move(from, to, amount)
}

func (t *Tokenizer) TransferFrom(spender, from, to string, amount *big.Int) error {
	if err := t.gate(OpTransfer); err != nil {
		return err
	}
	if amount == nil || amount.Sign() < 0 {
		return perpetual.ErrInvalidAmount
	}
	allowance := t.Allowance(from, spender)
	if allowance.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	if err := t.move(from, to, amount); err != nil {
		return err
	}
	t.allowances[from][spender] = allowance.Sub(allowance, amount)
	return nil
}

func (t *Tokenizer) move(from, to string, amount *big.Int) error {
	if from == "" || to == "" {
		return ErrZeroAddress
	}
	if amount == nil || amount.Sign() < 0 {
		return perpetual.ErrInvalidAmount
	}
	src, ok := t.balances[from]
	if !ok || src.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	src.Sub(src, amount)
	dst, ok := t.balances[to]
	if !ok {
		dst = new(big.Int)
		t.balances[to] = dst
	}
	dst.Add(dst, amount)
	return nil
}

func (t *Tokenizer) mintShares(to string, amount *big.Int) {
	b, ok := t.balances[to]
	if !ok {
		b = new(big.Int)
		t.balances[to] = b
	}
	b.Add(b, amount)
	t.totalSupply.Add(t.totalSupply, amount)
	t.observeSupply()
}

func (t *Tokenizer) burnShares(from string, amount *big.Int) error {
	b, ok := t.balances[from]
	if !ok || b.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	b.Sub(b, amount)
	t.totalSupply.Sub(t.totalSupply, amount)
	t.observeSupply()
	return nil
}

func (t *Tokenizer) observeSupply() {
	if t.metrics == nil {
		return
	}
	f, _ := new(big.Float).Quo(
		new(big.Float).SetInt(t.totalSupply),
		big.NewFloat(1e18),
	).Float64()
	t.metrics.ShareSupplyWad.Set(f)
}

// Balances returns a copy of every holder balance, for snapshots.
func (t *Tokenizer) Balances() map[string]*big.Int {
	out := make(map[string]*big.Int, len(t.balances))
	for k, v := range t.balances {
		out[k] = new(big.Int).Set(v)
	}
	return out
}

// Allowances returns a copy of the allowance table, for snapshots.
func (t *Tokenizer) Allowances() map[string]map[string]*big.Int {
	out := make(map[string]map[string]*big.Int, len(t.allowances))
	for owner, m := range t.allowances {
		inner := make(map[string]*big.Int, len(m))
		for spender, a := range m {
			inner[spender] = new(big.Int).Set(a)
		}
		out[owner] = inner
	}
	return out
}

// RestoreShares replaces the share ledger from a snapshot.
func (t *Tokenizer) RestoreShares(supply *big.Int, balances map[string]*big.Int, allowances map[string]map[string]*big.Int) {
	t.totalSupply = new(big.Int).Set(supply)
	t.balances = make(map[string]*big.Int, len(balances))
	for k, v := range balances {
		t.balances[k] = new(big.Int).Set(v)
	}
	t.allowances = make(map[string]map[string]*big.Int, len(allowances))
	for owner, m := range allowances {
		inner := make(map[string]*big.Int, len(m))
		for spender, a := range m {
			inner[spender] = new(big.Int).Set(a)
		}
		t.allowances[owner] = inner
	}
	t.observeSupply()
}
