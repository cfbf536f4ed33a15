// Package query serves read-only views of the core state. Reads go straight
// to the in-memory core (always consistent under its serialization), not to
// projections; the Postgres event log backs history queries only.
package query

import (
	"context"
	"database/sql"

	"PerpShare/internal/core"
	"PerpShare/internal/persistence"
)

type QueryService struct {
	core *core.Core
	db   *sql.DB // nil when the daemon runs without Postgres
}

func NewQueryService(c *core.Core, db *sql.DB) *QueryService {
	return &QueryService{core: c, db: db}
}

// GetAccount returns a trader's margin account with derived safety fields.
func (qs *QueryService) GetAccount(trader string) (*AccountResponse, error) {
	resp := &AccountResponse{
		Trader: trader,
		Status: qs.core.Status().String(),
	}

	acct, ok := qs.core.GetMarginAccount(trader)
	if !ok {
		resp.Side = "flat"
		resp.Size = "0"
		resp.EntryValue = "0"
		resp.CashBalance = "0"
		resp.MarginBalance = "0"
		resp.IsSafe = true
		resp.ShareBalance = RenderWad(qs.core.BalanceOf(trader))
		return resp, nil
	}

	resp.Side = acct.Side.String()
	resp.Size = RenderWad(acct.Size)
	resp.EntryValue = RenderWad(acct.EntryValue)
	resp.CashBalance = RenderWad(acct.CashBalance)
	resp.ShareBalance = RenderWad(qs.core.BalanceOf(trader))

	mb, err := qs.core.MarginBalance(trader)
	if err != nil {
		return nil, err
	}
	resp.MarginBalance = RenderWad(mb)

	safe, err := qs.core.IsSafe(trader)
	if err != nil {
		return nil, err
	}
	resp.IsSafe = safe

	bankrupt, err := qs.core.IsBankrupt(trader)
	if err != nil {
		return nil, err
	}
	resp.IsBankrupt = bankrupt

	return resp, nil
}

// GetPool returns the pool's pricing and funding state.
func (qs *QueryService) GetPool() (*PoolResponse, error) {
	st, err := qs.core.GetPoolState()
	if err != nil {
		return nil, err
	}
	return &PoolResponse{
		FairPrice:          RenderWad(st.FairPrice),
		MarkPrice:          RenderWad(st.MarkPrice),
		IndexPrice:         RenderWad(st.IndexPrice),
		FundingRate:        RenderWad(st.FundingRate),
		AccumulatedFunding: RenderWad(st.AccumulatedFunding),
		PoolSize:           RenderWad(st.PoolSize),
		PoolCash:           RenderWad(st.PoolCash),
		Status:             qs.core.Status().String(),
	}, nil
}

// GetShares returns the share ledger view, optionally for one holder.
func (qs *QueryService) GetShares(holder string) *ShareResponse {
	gov := qs.core.DumpGov()
	resp := &ShareResponse{
		TotalSupply: RenderWad(qs.core.TotalSupply()),
		Paused:      gov.Paused,
		Stopped:     gov.Stopped,
	}
	if holder != "" {
		resp.Balance = RenderWad(qs.core.BalanceOf(holder))
	}
	return resp
}

// GetGov returns the full governance dump.
func (qs *QueryService) GetGov() *GovResponse {
	gov := qs.core.DumpGov()
	resp := &GovResponse{
		LedgerOwner:          gov.LedgerOwner,
		DevAddress:           gov.DevAddress,
		MintFeeRate:          RenderWad(gov.MintFeeRate),
		ConsistencyTolerance: RenderWad(gov.ConsistencyTolerance),
		Paused:               gov.Paused,
		Stopped:              gov.Stopped,
		Status:               qs.core.Status().String(),
		InsuranceFund:        RenderWad(qs.core.InsuranceFund()),
	}
	if gov.Cap != nil {
		resp.Cap = RenderWad(gov.Cap)
	}
	return resp
}

// GetEventHistory reads stored envelopes from the event log. Fails when the
// daemon runs without Postgres.
func (qs *QueryService) GetEventHistory(ctx context.Context, fromSequence int64, limit int) ([]EventHistoryEntry, error) {
	if qs.db == nil {
		return nil, sql.ErrConnDone
	}
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	writer := persistence.NewEventLogWriter(qs.db)
	rows, err := writer.LoadEventsFrom(ctx, fromSequence, limit)
	if err != nil {
		return nil, err
	}
	out := make([]EventHistoryEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, EventHistoryEntry{
			EventID:   r.EventID,
			Sequence:  r.Sequence,
			EventType: r.EventType,
			Payload:   string(r.Payload),
		})
	}
	return out, nil
}
