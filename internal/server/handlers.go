package server

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/shopspring/decimal"

	"PerpShare/internal/amm"
	"PerpShare/internal/fixmath"
	"PerpShare/internal/perpetual"
	"PerpShare/internal/query"
	"PerpShare/internal/tokenizer"
)

// registerRoutes wires the JSON surface onto the gateway mux. Paths follow
// the gateway's pattern syntax so the handlers can move onto generated proto
// stubs without URL changes.
func (s *GRPCServer) registerRoutes(mux *runtime.ServeMux) error {
	routes := []struct {
		method  string
		path    string
		handler runtime.HandlerFunc
	}{
		// Reads
		{http.MethodGet, "/v1/accounts/{trader}", s.handleGetAccount},
		{http.MethodGet, "/v1/pool", s.handleGetPool},
		{http.MethodGet, "/v1/shares", s.handleGetShares},
		{http.MethodGet, "/v1/gov", s.handleGetGov},
		{http.MethodGet, "/v1/events", s.handleGetEvents},
		{http.MethodGet, "/v1/status", s.handleGetStatus},

		// Margin ledger
		{http.MethodPost, "/v1/deposits", s.handleDeposit},
		{http.MethodPost, "/v1/withdrawals", s.handleWithdraw},
		{http.MethodPost, "/v1/liquidations", s.handleLiquidate},
		{http.MethodPost, "/v1/insurance/deposits", s.handleInsuranceDeposit},
		{http.MethodPost, "/v1/insurance/withdrawals", s.handleInsuranceWithdraw},

		// AMM
		{http.MethodPost, "/v1/prices", s.handleSetIndexPrice},
		{http.MethodPost, "/v1/pool/create", s.handleCreatePool},
		{http.MethodPost, "/v1/trades/buy", s.handleBuy},
		{http.MethodPost, "/v1/trades/sell", s.handleSell},
		{http.MethodPost, "/v1/funding/accrue", s.handleAccrueFunding},

		// Settlement
		{http.MethodPost, "/v1/settlement/begin", s.handleBeginSettlement},
		{http.MethodPost, "/v1/settlement/end", s.handleEndSettlement},
		{http.MethodPost, "/v1/settlement/accounts/{trader}", s.handleSettleAccount},

		// Tokenizer
		{http.MethodPost, "/v1/shares/mint", s.handleMint},
		{http.MethodPost, "/v1/shares/redeem", s.handleRedeem},
		{http.MethodPost, "/v1/shares/settle", s.handleSettleShares},
		{http.MethodPost, "/v1/shares/transfer", s.handleTransfer},
		{http.MethodPost, "/v1/shares/approve", s.handleApprove},

		// Governance
		{http.MethodPost, "/v1/admin/params/ledger", s.handleSetLedgerParam},
		{http.MethodPost, "/v1/admin/params/pool", s.handleSetPoolParam},
		{http.MethodPost, "/v1/admin/tokenizer/init", s.handleInitTokenizer},
		{http.MethodPost, "/v1/admin/tokenizer/pause", s.handlePauseTokenizer},
		{http.MethodPost, "/v1/admin/tokenizer/unpause", s.handleUnpauseTokenizer},
		{http.MethodPost, "/v1/admin/tokenizer/shutdown", s.handleShutdownTokenizer},
		{http.MethodPost, "/v1/admin/tokenizer/fee", s.handleSetMintFee},
		{http.MethodPost, "/v1/admin/tokenizer/cap", s.handleSetCap},
	}
	for _, r := range routes {
		if err := mux.HandlePath(r.method, r.path, r.handler); err != nil {
			return err
		}
	}
	return nil
}

// ============================================================================
// Reads
// ============================================================================

func (s *GRPCServer) handleGetAccount(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	trader := pathParams["trader"]
	if trader == "" {
		writeError(w, http.StatusBadRequest, errors.New("trader is required"))
		return
	}
	resp, err := s.queryService.GetAccount(trader)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *GRPCServer) handleGetPool(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	resp, err := s.queryService.GetPool()
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *GRPCServer) handleGetShares(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	writeJSON(w, http.StatusOK, s.queryService.GetShares(r.URL.Query().Get("holder")))
}

func (s *GRPCServer) handleGetGov(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	writeJSON(w, http.StatusOK, s.queryService.GetGov())
}

func (s *GRPCServer) handleGetEvents(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var from, limit int64
	if v := r.URL.Query().Get("from"); v != "" {
		from, _ = strconv.ParseInt(v, 10, 64)
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.ParseInt(v, 10, 64)
	}
	entries, err := s.queryService.GetEventHistory(r.Context(), from, int(limit))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": entries})
}

func (s *GRPCServer) handleGetStatus(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         s.core.Status().String(),
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
	})
}

// ============================================================================
// Margin ledger
// ============================================================================

type transferRequest struct {
	Trader string `json:"trader"`
	Amount string `json:"amount"`
}

func (s *GRPCServer) handleDeposit(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req transferRequest
	if !decodeBody(w, r, &req) {
		return
	}
	amount, err := parseWad(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.core.Deposit(req.Trader, amount); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accepted": true})
}

func (s *GRPCServer) handleWithdraw(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req transferRequest
	if !decodeBody(w, r, &req) {
		return
	}
	amount, err := parseWad(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.core.Withdraw(req.Trader, amount); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accepted": true})
}

func (s *GRPCServer) handleLiquidate(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req struct {
		Keeper string `json:"keeper"`
		Trader string `json:"trader"`
		Price  string `json:"price"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	price, err := parseWad(req.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := s.core.Liquidate(req.Keeper, req.Trader, price)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"liquidated_amount": query.RenderWad(amount)})
}

func (s *GRPCServer) handleInsuranceDeposit(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req transferRequest
	if !decodeBody(w, r, &req) {
		return
	}
	amount, err := parseWad(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.core.DepositToInsuranceFund(req.Trader, amount); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accepted": true})
}

func (s *GRPCServer) handleInsuranceWithdraw(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req struct {
		Caller string `json:"caller"`
		To     string `json:"to"`
		Amount string `json:"amount"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	amount, err := parseWad(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.core.WithdrawFromInsuranceFund(req.Caller, req.To, amount); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accepted": true})
}

// ============================================================================
// AMM
// ============================================================================

func (s *GRPCServer) handleSetIndexPrice(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req struct {
		Price     string `json:"price"`
		Timestamp int64  `json:"timestamp"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	price, err := parseWad(req.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ts := time.Now()
	if req.Timestamp > 0 {
		ts = time.Unix(req.Timestamp, 0)
	}
	if err := s.core.SetIndexPrice(price, ts); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accepted": true})
}

func (s *GRPCServer) handleCreatePool(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req struct {
		Creator string `json:"creator"`
		Amount  string `json:"amount"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	amount, err := parseWad(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.core.CreatePool(req.Creator, amount); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accepted": true})
}

type tradeRequest struct {
	Trader     string `json:"trader"`
	Amount     string `json:"amount"`
	LimitPrice string `json:"limit_price"`
	Deadline   int64  `json:"deadline"`
	Deposit    string `json:"deposit,omitempty"`
}

func (s *GRPCServer) handleBuy(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	s.handleTrade(w, r, true)
}

func (s *GRPCServer) handleSell(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	s.handleTrade(w, r, false)
}

func (s *GRPCServer) handleTrade(w http.ResponseWriter, r *http.Request, buy bool) {
	var req tradeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	amount, err := parseWad(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	limitPrice, err := parseWad(req.LimitPrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var deposit *big.Int
	if req.Deposit != "" {
		if deposit, err = parseWad(req.Deposit); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	switch {
	case deposit != nil && buy:
		err = s.core.DepositAndBuy(req.Trader, deposit, amount, limitPrice, req.Deadline)
	case deposit != nil:
		err = s.core.DepositAndSell(req.Trader, deposit, amount, limitPrice, req.Deadline)
	case buy:
		err = s.core.Buy(req.Trader, amount, limitPrice, req.Deadline)
	default:
		err = s.core.Sell(req.Trader, amount, limitPrice, req.Deadline)
	}
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accepted": true})
}

func (s *GRPCServer) handleAccrueFunding(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	acc, err := s.core.AccrueFunding()
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

// ============================================================================
// Settlement
// ============================================================================

func (s *GRPCServer) handleBeginSettlement(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req struct {
		Caller string `json:"caller"`
		Price  string `json:"price"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	price, err := parseWad(req.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.core.BeginGlobalSettlement(req.Caller, price); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accepted": true})
}

func (s *GRPCServer) handleEndSettlement(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req struct {
		Caller string `json:"caller"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.core.EndGlobalSettlement(req.Caller); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accepted": true})
}

func (s *GRPCServer) handleSettleAccount(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	trader := pathParams["trader"]
	if trader == "" {
		writeError(w, http.StatusBadRequest, errors.New("trader is required"))
		return
	}
	paid, err := s.core.SettleAccount(trader)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"paid": query.RenderWad(paid)})
}

// ============================================================================
// Tokenizer
// ============================================================================

func (s *GRPCServer) handleMint(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req struct {
		Trader  string `json:"trader"`
		Amount  string `json:"amount"`
		Deposit string `json:"deposit,omitempty"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	amount, err := parseWad(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Deposit != "" {
		deposit, derr := parseWad(req.Deposit)
		if derr != nil {
			writeError(w, http.StatusBadRequest, derr)
			return
		}
		err = s.core.DepositAndMint(req.Trader, deposit, amount)
	} else {
		err = s.core.Mint(req.Trader, amount)
	}
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accepted": true})
}

func (s *GRPCServer) handleRedeem(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req struct {
		Trader   string `json:"trader"`
		Shares   string `json:"shares"`
		Withdraw bool   `json:"withdraw"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	shares, err := parseWad(req.Shares)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var entitlement *big.Int
	if req.Withdraw {
		entitlement, err = s.core.RedeemAndWithdraw(req.Trader, shares)
	} else {
		entitlement, err = s.core.Redeem(req.Trader, shares)
	}
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entitlement": query.RenderWad(entitlement)})
}

func (s *GRPCServer) handleSettleShares(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req struct {
		Trader string `json:"trader"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	entitlement, err := s.core.SettleShares(req.Trader)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entitlement": query.RenderWad(entitlement)})
}

func (s *GRPCServer) handleTransfer(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req struct {
		Spender string `json:"spender,omitempty"`
		From    string `json:"from"`
		To      string `json:"to"`
		Amount  string `json:"amount"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	amount, err := parseWad(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Spender != "" {
		err = s.core.TransferFrom(req.Spender, req.From, req.To, amount)
	} else {
		err = s.core.Transfer(req.From, req.To, amount)
	}
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accepted": true})
}

func (s *GRPCServer) handleApprove(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req struct {
		Owner   string `json:"owner"`
		Spender string `json:"spender"`
		Amount  string `json:"amount"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	amount, err := parseWad(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.core.Approve(req.Owner, req.Spender, amount); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accepted": true})
}

// ============================================================================
// Governance
// ============================================================================

type paramRequest struct {
	Caller string `json:"caller"`
	Name   string `json:"name"`
	Value  string `json:"value"`
}

func (s *GRPCServer) handleSetLedgerParam(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	s.handleSetParam(w, r, s.core.SetLedgerParameter)
}

func (s *GRPCServer) handleSetPoolParam(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	s.handleSetParam(w, r, s.core.SetPoolParameter)
}

func (s *GRPCServer) handleSetParam(w http.ResponseWriter, r *http.Request, set func(string, string, *big.Int) error) {
	var req paramRequest
	if !decodeBody(w, r, &req) {
		return
	}
	value, err := parseWad(req.Value)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := set(req.Caller, req.Name, value); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accepted": true})
}

func (s *GRPCServer) handleInitTokenizer(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req struct {
		Caller   string `json:"caller"`
		Name     string `json:"name"`
		Symbol   string `json:"symbol"`
		Decimals uint8  `json:"decimals"`
		Dev      string `json:"dev"`
		Cap      string `json:"cap,omitempty"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	var cap *big.Int
	if req.Cap != "" {
		var err error
		if cap, err = parseWad(req.Cap); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	if err := s.core.InitializeTokenizer(req.Caller, req.Name, req.Symbol, req.Decimals, req.Dev, cap); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accepted": true})
}

func (s *GRPCServer) handlePauseTokenizer(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	s.handleCallerOnly(w, r, s.core.PauseTokenizer)
}

func (s *GRPCServer) handleUnpauseTokenizer(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	s.handleCallerOnly(w, r, s.core.UnpauseTokenizer)
}

func (s *GRPCServer) handleShutdownTokenizer(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	s.handleCallerOnly(w, r, s.core.ShutdownTokenizer)
}

func (s *GRPCServer) handleCallerOnly(w http.ResponseWriter, r *http.Request, call func(string) error) {
	var req struct {
		Caller string `json:"caller"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := call(req.Caller); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accepted": true})
}

func (s *GRPCServer) handleSetMintFee(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req struct {
		Caller string `json:"caller"`
		Rate   string `json:"rate"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	rate, err := parseWad(req.Rate)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.core.SetMintFeeRate(req.Caller, rate); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accepted": true})
}

func (s *GRPCServer) handleSetCap(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req struct {
		Caller string `json:"caller"`
		Cap    string `json:"cap,omitempty"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	var cap *big.Int
	if req.Cap != "" {
		var err error
		if cap, err = parseWad(req.Cap); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	if err := s.core.SetCap(req.Caller, cap); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accepted": true})
}

// ============================================================================
// Helpers
// ============================================================================

// parseWad reads a human decimal string ("7000", "0.005") into a WAD integer.
func parseWad(s string) (*big.Int, error) {
	if s == "" {
		return nil, errors.New("amount is required")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	return d.Shift(18).BigInt(), nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, perpetual.ErrInvalidAmount),
		errors.Is(err, fixmath.ErrInvalidArgument),
		errors.Is(err, fixmath.ErrDivisionByZero),
		errors.Is(err, fixmath.ErrOverflow),
		errors.Is(err, tokenizer.ErrZeroAddress):
		return http.StatusBadRequest
	case errors.Is(err, perpetual.ErrNotOwner),
		errors.Is(err, perpetual.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, perpetual.ErrWrongStatus),
		errors.Is(err, perpetual.ErrAccountSafe),
		errors.Is(err, amm.ErrPoolExists),
		errors.Is(err, tokenizer.ErrPaused),
		errors.Is(err, tokenizer.ErrStopped),
		errors.Is(err, tokenizer.ErrAlreadyInitialized),
		errors.Is(err, tokenizer.ErrNotInitialized):
		return http.StatusConflict
	case errors.Is(err, perpetual.ErrInsufficientMargin),
		errors.Is(err, perpetual.ErrUnsafe),
		errors.Is(err, amm.ErrSlippageExceeded),
		errors.Is(err, amm.ErrExpired),
		errors.Is(err, amm.ErrStaleIndex),
		errors.Is(err, amm.ErrPoolEmpty),
		errors.Is(err, amm.ErrNoIndexPrice),
		errors.Is(err, tokenizer.ErrInconsistent),
		errors.Is(err, tokenizer.ErrZeroMarginBalance),
		errors.Is(err, tokenizer.ErrInsufficientBalance),
		errors.Is(err, tokenizer.ErrInsufficientAllowance),
		errors.Is(err, tokenizer.ErrCapExceeded):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
