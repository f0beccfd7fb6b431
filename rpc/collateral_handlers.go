package rpc

import (
	"errors"
	"net/http"

	nativecommon "pegpool/native/common"
)

type collateralMoveParams struct {
	Caller string `json:"caller"`
	Amount string `json:"amount"`
}

func (s *Server) handleWrap(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if s.collateral == nil {
		writeError(w, http.StatusServiceUnavailable, req.ID, codeRejected, "collateral_unavailable", nil)
		return
	}
	var params collateralMoveParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, ok := parseAddress(w, req, "caller", params.Caller)
	if !ok {
		return
	}
	amount, ok := parseAmount(w, req, "amount", params.Amount, true)
	if !ok {
		return
	}
	if err := s.collateral.Wrap(caller, amount); err != nil {
		s.writeCollateralError(w, req, err)
		return
	}
	writeResult(w, req.ID, okResult{OK: true})
}

func (s *Server) handleUnwrap(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if s.collateral == nil {
		writeError(w, http.StatusServiceUnavailable, req.ID, codeRejected, "collateral_unavailable", nil)
		return
	}
	var params collateralMoveParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, ok := parseAddress(w, req, "caller", params.Caller)
	if !ok {
		return
	}
	amount, ok := parseAmount(w, req, "amount", params.Amount, true)
	if !ok {
		return
	}
	if err := s.collateral.Unwrap(caller, amount); err != nil {
		s.writeCollateralError(w, req, err)
		return
	}
	writeResult(w, req.ID, okResult{OK: true})
}

func (s *Server) handleEscrowed(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if s.collateral == nil {
		writeError(w, http.StatusServiceUnavailable, req.ID, codeRejected, "collateral_unavailable", nil)
		return
	}
	escrowed, err := s.collateral.Escrowed()
	if err != nil {
		s.writeCollateralError(w, req, err)
		return
	}
	writeResult(w, req.ID, amountResult{Amount: escrowed.String()})
}

func (s *Server) writeCollateralError(w http.ResponseWriter, req *RPCRequest, err error) {
	if errors.Is(err, nativecommon.ErrModulePaused) {
		writeError(w, http.StatusConflict, req.ID, codeRejected, "paused", err.Error())
		return
	}
	// Token-level failures (insufficient balance, bad amounts) are caller
	// mistakes from the RPC surface's point of view.
	writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
}
