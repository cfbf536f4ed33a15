package query

// WAD quantities render as decimal strings with the 18 fractional digits
// shifted out, so 7000e18 on the inside becomes "7000" on the wire.

// AccountResponse is a margin account read.
type AccountResponse struct {
	Trader        string `json:"trader"`
	Side          string `json:"side"`
	Size          string `json:"size"`
	EntryValue    string `json:"entry_value"`
	CashBalance   string `json:"cash_balance"`
	MarginBalance string `json:"margin_balance"`
	IsSafe        bool   `json:"is_safe"`
	IsBankrupt    bool   `json:"is_bankrupt"`
	ShareBalance  string `json:"share_balance"`
	Status        string `json:"status"`
}

// PoolResponse is the pool pricing and funding read.
type PoolResponse struct {
	FairPrice          string `json:"fair_price"`
	MarkPrice          string `json:"mark_price"`
	IndexPrice         string `json:"index_price"`
	FundingRate        string `json:"funding_rate"`
	AccumulatedFunding string `json:"accumulated_funding"`
	PoolSize           string `json:"pool_size"`
	PoolCash           string `json:"pool_cash"`
	Status             string `json:"status"`
}

// ShareResponse is the share ledger read.
type ShareResponse struct {
	TotalSupply string `json:"total_supply"`
	Balance     string `json:"balance,omitempty"`
	Paused      bool   `json:"paused"`
	Stopped     bool   `json:"stopped"`
}

// GovResponse mirrors the tokenizer's governance dump plus ledger lifecycle.
type GovResponse struct {
	LedgerOwner          string `json:"ledger_owner"`
	DevAddress           string `json:"dev_address"`
	MintFeeRate          string `json:"mint_fee_rate"`
	Cap                  string `json:"cap,omitempty"`
	ConsistencyTolerance string `json:"consistency_tolerance"`
	Paused               bool   `json:"paused"`
	Stopped              bool   `json:"stopped"`
	Status               string `json:"status"`
	InsuranceFund        string `json:"insurance_fund"`
}

// EventHistoryEntry is a stored event log row for API queries.
type EventHistoryEntry struct {
	EventID   string `json:"event_id"`
	Sequence  int64  `json:"sequence"`
	EventType string `json:"event_type"`
	Payload   string `json:"payload"`
}
