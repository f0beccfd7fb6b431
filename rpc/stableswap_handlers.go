package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"pegpool/crypto"
	"pegpool/native/stableswap"
	"pegpool/observability"
)

// Mutating params carry amounts as decimal strings in raw base units; the
// attached value mirrors the native value a chain call would carry.

type exchangeParams struct {
	Caller   string `json:"caller"`
	In       int    `json:"in"`
	Out      int    `json:"out"`
	Dx       string `json:"dx"`
	MinDy    string `json:"minDy"`
	Attached string `json:"attached"`
}

func (s *Server) handleExchange(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params exchangeParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, ok := parseAddress(w, req, "caller", params.Caller)
	if !ok {
		return
	}
	dx, ok := parseAmount(w, req, "dx", params.Dx, true)
	if !ok {
		return
	}
	minDy, ok := parseAmount(w, req, "minDy", params.MinDy, false)
	if !ok {
		return
	}
	attached, ok := parseAmount(w, req, "attached", params.Attached, false)
	if !ok {
		return
	}
	dy, err := s.engine.Exchange(caller, params.In, params.Out, dx, minDy, attached)
	if err != nil {
		s.writeEngineError(w, req, err)
		return
	}
	writeResult(w, req.ID, amountResult{Amount: dy.String()})
}

type addLiquidityParams struct {
	Caller   string    `json:"caller"`
	Amounts  [2]string `json:"amounts"`
	MinMint  string    `json:"minMint"`
	Attached string    `json:"attached"`
}

func (s *Server) handleAddLiquidity(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params addLiquidityParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, ok := parseAddress(w, req, "caller", params.Caller)
	if !ok {
		return
	}
	amounts, ok := parseAmountVector(w, req, params.Amounts)
	if !ok {
		return
	}
	minMint, ok := parseAmount(w, req, "minMint", params.MinMint, false)
	if !ok {
		return
	}
	attached, ok := parseAmount(w, req, "attached", params.Attached, false)
	if !ok {
		return
	}
	mint, err := s.engine.AddLiquidity(caller, amounts, minMint, attached)
	if err != nil {
		s.writeEngineError(w, req, err)
		return
	}
	writeResult(w, req.ID, amountResult{Amount: mint.String()})
}

type removeLiquidityParams struct {
	Caller     string    `json:"caller"`
	LPAmount   string    `json:"lpAmount"`
	MinAmounts [2]string `json:"minAmounts"`
}

func (s *Server) handleRemoveLiquidity(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params removeLiquidityParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, ok := parseAddress(w, req, "caller", params.Caller)
	if !ok {
		return
	}
	lpAmount, ok := parseAmount(w, req, "lpAmount", params.LPAmount, true)
	if !ok {
		return
	}
	minAmounts, ok := parseAmountVector(w, req, params.MinAmounts)
	if !ok {
		return
	}
	amounts, err := s.engine.RemoveLiquidity(caller, lpAmount, minAmounts)
	if err != nil {
		s.writeEngineError(w, req, err)
		return
	}
	writeResult(w, req.ID, vectorResult{Amounts: [2]string{amounts[0].String(), amounts[1].String()}})
}

type removeImbalanceParams struct {
	Caller  string    `json:"caller"`
	Amounts [2]string `json:"amounts"`
	MaxBurn string    `json:"maxBurn"`
}

func (s *Server) handleRemoveLiquidityImbalance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params removeImbalanceParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, ok := parseAddress(w, req, "caller", params.Caller)
	if !ok {
		return
	}
	amounts, ok := parseAmountVector(w, req, params.Amounts)
	if !ok {
		return
	}
	maxBurn, ok := parseAmount(w, req, "maxBurn", params.MaxBurn, false)
	if !ok {
		return
	}
	burn, err := s.engine.RemoveLiquidityImbalance(caller, amounts, maxBurn)
	if err != nil {
		s.writeEngineError(w, req, err)
		return
	}
	writeResult(w, req.ID, amountResult{Amount: burn.String()})
}

type removeOneCoinParams struct {
	Caller    string `json:"caller"`
	LPAmount  string `json:"lpAmount"`
	Index     int    `json:"index"`
	MinAmount string `json:"minAmount"`
}

func (s *Server) handleRemoveLiquidityOneCoin(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params removeOneCoinParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, ok := parseAddress(w, req, "caller", params.Caller)
	if !ok {
		return
	}
	lpAmount, ok := parseAmount(w, req, "lpAmount", params.LPAmount, true)
	if !ok {
		return
	}
	minAmount, ok := parseAmount(w, req, "minAmount", params.MinAmount, false)
	if !ok {
		return
	}
	dy, err := s.engine.RemoveLiquidityOneCoin(caller, lpAmount, params.Index, minAmount)
	if err != nil {
		s.writeEngineError(w, req, err)
		return
	}
	writeResult(w, req.ID, amountResult{Amount: dy.String()})
}

// --- queries ---

func (s *Server) handlePoolInfo(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	view, err := s.info.Overview(r.Context())
	if err != nil {
		s.writeEngineError(w, req, err)
		return
	}
	result := poolInfoResult{
		Amplification: view.Amplification.String(),
		SwapFee:       view.SwapFee.String(),
		AdminFee:      view.AdminFee.String(),
		LPSupply:      view.LPSupply.String(),
		Class:         classLabel(view.Class),
		Paused:        view.Paused,
	}
	if view.VirtualPrice != nil {
		result.VirtualPrice = view.VirtualPrice.String()
	}
	for i := 0; i < 2; i++ {
		result.Assets[i] = assetInfoResult{
			Symbol:          view.Assets[i].Symbol,
			Balance:         view.Assets[i].Balance.String(),
			AccruedAdminFee: view.Assets[i].AccruedAdminFee.String(),
			Native:          view.Assets[i].Native,
		}
	}
	writeResult(w, req.ID, result)
}

type getDyParams struct {
	In  int    `json:"in"`
	Out int    `json:"out"`
	Dx  string `json:"dx"`
}

func (s *Server) handleGetDy(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params getDyParams
	if !decodeParams(w, req, &params) {
		return
	}
	dx, ok := parseAmount(w, req, "dx", params.Dx, true)
	if !ok {
		return
	}
	dy, err := s.info.GetDy(r.Context(), params.In, params.Out, dx)
	if err != nil {
		s.writeEngineError(w, req, err)
		return
	}
	writeResult(w, req.ID, amountResult{Amount: dy.String()})
}

type calcTokenAmountParams struct {
	Amounts [2]string `json:"amounts"`
	Deposit bool      `json:"deposit"`
}

func (s *Server) handleCalcTokenAmount(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params calcTokenAmountParams
	if !decodeParams(w, req, &params) {
		return
	}
	amounts, ok := parseAmountVector(w, req, params.Amounts)
	if !ok {
		return
	}
	shares, err := s.info.CalcCoinsAmount(r.Context(), amounts, params.Deposit)
	if err != nil {
		s.writeEngineError(w, req, err)
		return
	}
	writeResult(w, req.ID, amountResult{Amount: shares.String()})
}

type calcWithdrawOneCoinParams struct {
	LPAmount string `json:"lpAmount"`
	Index    int    `json:"index"`
}

func (s *Server) handleCalcWithdrawOneCoin(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params calcWithdrawOneCoinParams
	if !decodeParams(w, req, &params) {
		return
	}
	lpAmount, ok := parseAmount(w, req, "lpAmount", params.LPAmount, true)
	if !ok {
		return
	}
	dy, err := s.info.CalcWithdrawOneCoin(r.Context(), lpAmount, params.Index)
	if err != nil {
		s.writeEngineError(w, req, err)
		return
	}
	writeResult(w, req.ID, amountResult{Amount: dy.String()})
}

type amountsParams struct {
	Amounts [2]string `json:"amounts"`
}

func (s *Server) handleCalcAddLiquidityMint(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params amountsParams
	if !decodeParams(w, req, &params) {
		return
	}
	amounts, ok := parseAmountVector(w, req, params.Amounts)
	if !ok {
		return
	}
	mint, err := s.info.GetAddLiquidityMintAmount(r.Context(), amounts)
	if err != nil {
		s.writeEngineError(w, req, err)
		return
	}
	writeResult(w, req.ID, amountResult{Amount: mint.String()})
}

func (s *Server) handleCalcImbalanceFees(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params amountsParams
	if !decodeParams(w, req, &params) {
		return
	}
	amounts, ok := parseAmountVector(w, req, params.Amounts)
	if !ok {
		return
	}
	fees, err := s.info.GetRemoveLiquidityImbalanceFee(r.Context(), amounts)
	if err != nil {
		s.writeEngineError(w, req, err)
		return
	}
	writeResult(w, req.ID, vectorResult{Amounts: [2]string{fees[0].String(), fees[1].String()}})
}

func (s *Server) handleCalcWithdrawOneCoinFee(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params calcWithdrawOneCoinParams
	if !decodeParams(w, req, &params) {
		return
	}
	lpAmount, ok := parseAmount(w, req, "lpAmount", params.LPAmount, true)
	if !ok {
		return
	}
	fee, err := s.info.GetRemoveLiquidityOneCoinFee(r.Context(), lpAmount, params.Index)
	if err != nil {
		s.writeEngineError(w, req, err)
		return
	}
	writeResult(w, req.ID, amountResult{Amount: fee.String()})
}

func (s *Server) handleVirtualPrice(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	price, err := s.engine.VirtualPrice()
	if err != nil {
		s.writeEngineError(w, req, err)
		return
	}
	writeResult(w, req.ID, amountResult{Amount: price.String()})
}

// --- result shapes ---

type amountResult struct {
	Amount string `json:"amount"`
}

type vectorResult struct {
	Amounts [2]string `json:"amounts"`
}

type assetInfoResult struct {
	Symbol          string `json:"symbol"`
	Balance         string `json:"balance"`
	AccruedAdminFee string `json:"accruedAdminFee"`
	Native          bool   `json:"native"`
}

type poolInfoResult struct {
	Assets        [2]assetInfoResult `json:"assets"`
	Amplification string             `json:"amplification"`
	SwapFee       string             `json:"swapFee"`
	AdminFee      string             `json:"adminFee"`
	LPSupply      string             `json:"lpSupply"`
	VirtualPrice  string             `json:"virtualPrice,omitempty"`
	Class         string             `json:"class"`
	Paused        bool               `json:"paused"`
}

func classLabel(class stableswap.PoolClass) string {
	switch class {
	case stableswap.Asset0Native:
		return "asset0_native"
	case stableswap.Asset1Native:
		return "asset1_native"
	default:
		return "both_token"
	}
}

// --- param helpers ---

func decodeParams(w http.ResponseWriter, req *RPCRequest, out interface{}) bool {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", "exactly one parameter object expected")
		return false
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return false
	}
	return true
}

func parseAddress(w http.ResponseWriter, req *RPCRequest, field, value string) (crypto.Address, bool) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params",
			fmt.Sprintf("%s: %v", field, err))
		return crypto.Address{}, false
	}
	return addr, true
}

// parseAmount parses a decimal raw-unit amount. An empty string decodes to
// zero unless the field is required.
func parseAmount(w http.ResponseWriter, req *RPCRequest, field, value string, required bool) (*big.Int, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		if required {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", field+" is required")
			return nil, false
		}
		return big.NewInt(0), true
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || amount.Sign() < 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params",
			field+" must be a non-negative decimal string")
		return nil, false
	}
	return amount, true
}

func parseAmountVector(w http.ResponseWriter, req *RPCRequest, values [2]string) ([2]*big.Int, bool) {
	var out [2]*big.Int
	for i := 0; i < 2; i++ {
		amount, ok := parseAmount(w, req, fmt.Sprintf("amounts[%d]", i), values[i], false)
		if !ok {
			return out, false
		}
		out[i] = amount
	}
	return out, true
}

// writeEngineError maps engine failures onto JSON-RPC errors: caller mistakes
// surface as invalid_params, guard rejections as a rejection code with the
// guard detail attached, everything else as an internal error.
func (s *Server) writeEngineError(w http.ResponseWriter, req *RPCRequest, err error) {
	var slippage *stableswap.SlippageError
	var deviation *stableswap.PriceDeviationError
	switch {
	case errors.As(err, &slippage):
		observability.Pool().RecordRejection(req.Method, "slippage")
		writeError(w, http.StatusConflict, req.ID, codeRejected, "slippage", slippage.Error())
	case errors.As(err, &deviation):
		observability.Pool().RecordRejection(req.Method, "price_deviation")
		writeError(w, http.StatusConflict, req.ID, codeRejected, "price_deviation", deviation.Error())
	case errors.Is(err, stableswap.ErrPaused):
		observability.Pool().RecordRejection(req.Method, "paused")
		writeError(w, http.StatusConflict, req.ID, codeRejected, "paused", err.Error())
	case errors.Is(err, stableswap.ErrUnauthorized), errors.Is(err, stableswap.ErrLastAdmin):
		writeError(w, http.StatusForbidden, req.ID, codeRejected, "unauthorized", err.Error())
	case errors.Is(err, stableswap.ErrOracleUnavailable):
		observability.Pool().RecordRejection(req.Method, "oracle")
		writeError(w, http.StatusServiceUnavailable, req.ID, codeRejected, "oracle_unavailable", err.Error())
	case errors.Is(err, stableswap.ErrTransferRejected):
		writeError(w, http.StatusConflict, req.ID, codeRejected, "transfer_rejected", err.Error())
	case errors.Is(err, stableswap.ErrZeroAmount),
		errors.Is(err, stableswap.ErrInvalidAsset),
		errors.Is(err, stableswap.ErrSameAsset),
		errors.Is(err, stableswap.ErrZeroAddress),
		errors.Is(err, stableswap.ErrInitialDeposit),
		errors.Is(err, stableswap.ErrNoDeposit),
		errors.Is(err, stableswap.ErrNativeValueMismatch),
		errors.Is(err, stableswap.ErrUnexpectedValue),
		errors.Is(err, stableswap.ErrInsufficientBalance),
		errors.Is(err, stableswap.ErrSupplyEmpty),
		errors.Is(err, stableswap.ErrFeeTooHigh),
		errors.Is(err, stableswap.ErrAmpOutOfRange),
		errors.Is(err, stableswap.ErrRampTooShort),
		errors.Is(err, stableswap.ErrRampTooLarge):
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
	default:
		s.logger.Error("rpc handler failed", "method", req.Method, "error", err)
		writeError(w, http.StatusInternalServerError, req.ID, codeInternal, "internal_error", err.Error())
	}
}
