package rpc

import (
	"net/http"

	"pegpool/observability/logging"
)

type callerParams struct {
	Caller string `json:"caller"`
}

type okResult struct {
	OK bool `json:"ok"`
}

func (s *Server) handlePause(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params callerParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, ok := parseAddress(w, req, "caller", params.Caller)
	if !ok {
		return
	}
	if err := s.engine.Pause(caller); err != nil {
		s.writeEngineError(w, req, err)
		return
	}
	s.logger.Info("pool paused", "method", req.Method, logging.MaskField("caller", params.Caller))
	writeResult(w, req.ID, okResult{OK: true})
}

func (s *Server) handleUnpause(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params callerParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, ok := parseAddress(w, req, "caller", params.Caller)
	if !ok {
		return
	}
	if err := s.engine.Unpause(caller); err != nil {
		s.writeEngineError(w, req, err)
		return
	}
	s.logger.Info("pool unpaused", "method", req.Method, logging.MaskField("caller", params.Caller))
	writeResult(w, req.ID, okResult{OK: true})
}

type setFeesParams struct {
	Caller   string `json:"caller"`
	SwapFee  string `json:"swapFee"`
	AdminFee string `json:"adminFee"`
}

func (s *Server) handleSetFees(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params setFeesParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, ok := parseAddress(w, req, "caller", params.Caller)
	if !ok {
		return
	}
	swapFee, ok := parseAmount(w, req, "swapFee", params.SwapFee, true)
	if !ok {
		return
	}
	adminFee, ok := parseAmount(w, req, "adminFee", params.AdminFee, true)
	if !ok {
		return
	}
	if err := s.engine.SetFees(caller, swapFee, adminFee); err != nil {
		s.writeEngineError(w, req, err)
		return
	}
	s.logger.Info("fees updated", "method", req.Method, logging.MaskField("caller", params.Caller))
	writeResult(w, req.ID, okResult{OK: true})
}

type rampParams struct {
	Caller    string `json:"caller"`
	FutureAmp string `json:"futureAmp"`
	RampEnd   uint64 `json:"rampEnd"`
}

func (s *Server) handleRampAmplification(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params rampParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, ok := parseAddress(w, req, "caller", params.Caller)
	if !ok {
		return
	}
	futureAmp, ok := parseAmount(w, req, "futureAmp", params.FutureAmp, true)
	if !ok {
		return
	}
	if err := s.engine.RampAmplification(caller, futureAmp, params.RampEnd); err != nil {
		s.writeEngineError(w, req, err)
		return
	}
	writeResult(w, req.ID, okResult{OK: true})
}

func (s *Server) handleStopRamp(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params callerParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, ok := parseAddress(w, req, "caller", params.Caller)
	if !ok {
		return
	}
	if err := s.engine.StopRamp(caller); err != nil {
		s.writeEngineError(w, req, err)
		return
	}
	writeResult(w, req.ID, okResult{OK: true})
}

type withdrawAdminFeesParams struct {
	Caller    string `json:"caller"`
	Recipient string `json:"recipient"`
}

func (s *Server) handleWithdrawAdminFees(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params withdrawAdminFeesParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, ok := parseAddress(w, req, "caller", params.Caller)
	if !ok {
		return
	}
	recipient, ok := parseAddress(w, req, "recipient", params.Recipient)
	if !ok {
		return
	}
	amounts, err := s.engine.WithdrawAdminFees(caller, recipient)
	if err != nil {
		s.writeEngineError(w, req, err)
		return
	}
	s.logger.Info("admin fees withdrawn", "method", req.Method,
		logging.MaskField("caller", params.Caller), logging.MaskField("recipient", params.Recipient))
	writeResult(w, req.ID, vectorResult{Amounts: [2]string{amounts[0].String(), amounts[1].String()}})
}

type roleParams struct {
	Caller  string `json:"caller"`
	Role    string `json:"role"`
	Address string `json:"address"`
}

func (s *Server) handleGrantRole(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params roleParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, ok := parseAddress(w, req, "caller", params.Caller)
	if !ok {
		return
	}
	addr, ok := parseAddress(w, req, "address", params.Address)
	if !ok {
		return
	}
	if err := s.engine.GrantRole(caller, params.Role, addr); err != nil {
		s.writeEngineError(w, req, err)
		return
	}
	s.logger.Info("role granted", "method", req.Method, "role", params.Role,
		logging.MaskField("caller", params.Caller), logging.MaskField("grantee", params.Address))
	writeResult(w, req.ID, okResult{OK: true})
}

func (s *Server) handleRevokeRole(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params roleParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, ok := parseAddress(w, req, "caller", params.Caller)
	if !ok {
		return
	}
	addr, ok := parseAddress(w, req, "address", params.Address)
	if !ok {
		return
	}
	if err := s.engine.RevokeRole(caller, params.Role, addr); err != nil {
		s.writeEngineError(w, req, err)
		return
	}
	s.logger.Info("role revoked", "method", req.Method, "role", params.Role,
		logging.MaskField("caller", params.Caller), logging.MaskField("revokee", params.Address))
	writeResult(w, req.ID, okResult{OK: true})
}
