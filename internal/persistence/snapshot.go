package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"PerpShare/internal/perpetual"
)

// SnapshotManager persists the full core state to Postgres and restores it
// on restart. State is a single JSON document per snapshot: margin accounts,
// ledger lifecycle, the funding accumulator and the share ledger. WAD values
// travel as decimal integer strings because the working width exceeds int64.
type SnapshotManager struct {
	db *sql.DB
}

// SnapshotData is the serializable core state at a point in time.
type SnapshotData struct {
	Sequence        int64                  `json:"sequence"`
	Status          int32                  `json:"status"`
	SettlementPrice string                 `json:"settlement_price"`
	InsuranceFund   string                 `json:"insurance_fund"`
	Accounts        map[string]AccountSnap `json:"accounts"`
	Funding         FundingSnap            `json:"funding"`
	Shares          ShareSnap              `json:"shares"`
	CreatedAt       time.Time              `json:"created_at"`
}

// AccountSnap is a serializable margin account.
type AccountSnap struct {
	Side             int32  `json:"side"`
	Size             string `json:"size"`
	EntryValue       string `json:"entry_value"`
	CashBalance      string `json:"cash_balance"`
	LastFundingIndex string `json:"last_funding_index"`
}

// FundingSnap is the serializable funding accumulator.
type FundingSnap struct {
	Initialized        bool   `json:"initialized"`
	LastFundingTime    int64  `json:"last_funding_time"` // unix seconds
	LastIndexPrice     string `json:"last_index_price"`
	EmaPremium         string `json:"ema_premium"`
	AccumulatedFunding string `json:"accumulated_funding"`
}

// ShareSnap is the serializable share ledger.
type ShareSnap struct {
	TotalSupply string                       `json:"total_supply"`
	Balances    map[string]string            `json:"balances"`
	Allowances  map[string]map[string]string `json:"allowances"`
}

func NewSnapshotManager(db *sql.DB) *SnapshotManager {
	return &SnapshotManager{db: db}
}

// SaveSnapshot persists a snapshot. The latest snapshot wins on restart;
// older rows stay around for inspection until pruned.
func (sm *SnapshotManager) SaveSnapshot(ctx context.Context, snap *SnapshotData) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = sm.db.ExecContext(ctx, `
		INSERT INTO perpshare.snapshots
			(snapshot_id, sequence, data, size_bytes, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (sequence) DO UPDATE SET data = $3, size_bytes = $4
	`, uuid.New(), snap.Sequence, data, len(data), snap.CreatedAt)

	return err
}

// LoadLatestSnapshot loads the most recent snapshot, or nil on cold start.
func (sm *SnapshotManager) LoadLatestSnapshot(ctx context.Context) (*SnapshotData, error) {
	row := sm.db.QueryRowContext(ctx, `
		SELECT data FROM perpshare.snapshots
		ORDER BY sequence DESC
		LIMIT 1
	`)

	var data []byte
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var snap SnapshotData
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// PruneSnapshots removes all but the newest keep snapshots.
func (sm *SnapshotManager) PruneSnapshots(ctx context.Context, keep int) error {
	_, err := sm.db.ExecContext(ctx, `
		DELETE FROM perpshare.snapshots
		WHERE sequence NOT IN (
			SELECT sequence FROM perpshare.snapshots
			ORDER BY sequence DESC
			LIMIT $1
		)
	`, keep)
	return err
}

// SnapAccount converts a margin account for serialization.
func SnapAccount(acct *perpetual.MarginAccount) AccountSnap {
	return AccountSnap{
		Side:             int32(acct.Side),
		Size:             acct.Size.String(),
		EntryValue:       acct.EntryValue.String(),
		CashBalance:      acct.CashBalance.String(),
		LastFundingIndex: acct.LastFundingIndex.String(),
	}
}

// RestoreAccount converts a serialized account back to the core type.
func RestoreAccount(snap AccountSnap) (*perpetual.MarginAccount, error) {
	size, ok := new(big.Int).SetString(snap.Size, 10)
	if !ok {
		return nil, fmt.Errorf("bad size %q", snap.Size)
	}
	entry, ok := new(big.Int).SetString(snap.EntryValue, 10)
	if !ok {
		return nil, fmt.Errorf("bad entry value %q", snap.EntryValue)
	}
	cash, ok := new(big.Int).SetString(snap.CashBalance, 10)
	if !ok {
		return nil, fmt.Errorf("bad cash balance %q", snap.CashBalance)
	}
	idx, ok := new(big.Int).SetString(snap.LastFundingIndex, 10)
	if !ok {
		return nil, fmt.Errorf("bad funding index %q", snap.LastFundingIndex)
	}
	return &perpetual.MarginAccount{
		Side:             perpetual.Side(snap.Side),
		Size:             size,
		EntryValue:       entry,
		CashBalance:      cash,
		LastFundingIndex: idx,
	}, nil
}

// ParseWad parses a serialized WAD integer string.
func ParseWad(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	x, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("bad wad value %q", s)
	}
	return x, nil
}
