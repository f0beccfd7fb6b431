package rpc

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pegpool/native/collateral"
	"pegpool/native/stableswap"
	"pegpool/observability"
	"pegpool/services/poolinfo"
)

const jsonRPCVersion = "2.0"

// JSON-RPC error codes for the stableswap surface.
const (
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternal       = -32603
	codeRejected       = -32000
)

// Server exposes the pool over JSON-RPC plus health and metrics endpoints.
type Server struct {
	engine     *stableswap.Engine
	info       *poolinfo.Service
	collateral *collateral.Engine
	logger     *slog.Logger
	metrics    *observability.RPCMetrics
}

// NewServer wires the HTTP surface to the engine and its quoting facade.
func NewServer(engine *stableswap.Engine, info *poolinfo.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine:  engine,
		info:    info,
		logger:  logger.With("component", "rpc"),
		metrics: observability.RPC(),
	}
}

// SetCollateral exposes the share-wrapping module over the RPC surface.
func (s *Server) SetCollateral(wrapper *collateral.Engine) { s.collateral = wrapper }

// Router builds the chi router serving the RPC surface.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Post("/", s.handleRPC)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	status := map[string]string{"status": "ok"}
	if _, err := s.engine.Snapshot(); err != nil {
		status["status"] = "initializing"
	}
	_ = json.NewEncoder(w).Encode(status)
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var req RPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "invalid_request", err.Error())
		return
	}
	handler, ok := s.methods()[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method_not_found", req.Method)
		s.metrics.Observe(req.Method, http.StatusNotFound, 0)
		return
	}
	started := time.Now()
	recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	handler(recorder, r, &req)
	s.metrics.Observe(req.Method, recorder.status, time.Since(started))
}

type rpcHandler func(w http.ResponseWriter, r *http.Request, req *RPCRequest)

func (s *Server) methods() map[string]rpcHandler {
	return map[string]rpcHandler{
		"stableswap_poolInfo":                 s.handlePoolInfo,
		"stableswap_getDy":                    s.handleGetDy,
		"stableswap_calcTokenAmount":          s.handleCalcTokenAmount,
		"stableswap_calcWithdrawOneCoin":      s.handleCalcWithdrawOneCoin,
		"stableswap_calcAddLiquidityMint":     s.handleCalcAddLiquidityMint,
		"stableswap_calcImbalanceFees":        s.handleCalcImbalanceFees,
		"stableswap_calcWithdrawOneCoinFee":   s.handleCalcWithdrawOneCoinFee,
		"stableswap_virtualPrice":             s.handleVirtualPrice,
		"stableswap_exchange":                 s.handleExchange,
		"stableswap_addLiquidity":             s.handleAddLiquidity,
		"stableswap_removeLiquidity":          s.handleRemoveLiquidity,
		"stableswap_removeLiquidityImbalance": s.handleRemoveLiquidityImbalance,
		"stableswap_removeLiquidityOneCoin":   s.handleRemoveLiquidityOneCoin,
		"stableswap_pause":                    s.handlePause,
		"stableswap_unpause":                  s.handleUnpause,
		"stableswap_setFees":                  s.handleSetFees,
		"stableswap_rampAmplification":        s.handleRampAmplification,
		"stableswap_stopRamp":                 s.handleStopRamp,
		"stableswap_withdrawAdminFees":        s.handleWithdrawAdminFees,
		"stableswap_grantRole":                s.handleGrantRole,
		"stableswap_revokeRole":               s.handleRevokeRole,
		"collateral_wrap":                     s.handleWrap,
		"collateral_unwrap":                   s.handleUnwrap,
		"collateral_escrowed":                 s.handleEscrowed,
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}
