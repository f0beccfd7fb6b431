package poolinfo

import (
	"context"
	"log/slog"
	"math/big"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"pegpool/native/stableswap"
	"pegpool/observability"
)

// Service is the read-only facade over the pool engine used by the RPC layer
// and operational tooling. Every call is traced and counted; the math is
// delegated to the engine so quotes match execution exactly.
type Service struct {
	engine  *stableswap.Engine
	logger  *slog.Logger
	metrics *observability.PoolMetrics
	tracer  trace.Tracer
}

// New wires the facade to a running engine.
func New(engine *stableswap.Engine, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		engine:  engine,
		logger:  logger.With("component", "poolinfo"),
		metrics: observability.Pool(),
		tracer:  otel.Tracer("pegpool/poolinfo"),
	}
}

// Overview is the externally visible pool snapshot.
type Overview struct {
	Assets        [2]AssetInfo
	Amplification *big.Int
	SwapFee       *big.Int
	AdminFee      *big.Int
	LPSupply      *big.Int
	VirtualPrice  *big.Int
	Class         stableswap.PoolClass
	Paused        bool
}

// AssetInfo describes one pool slot.
type AssetInfo struct {
	Symbol          string
	Balance         *big.Int
	AccruedAdminFee *big.Int
	Native          bool
}

// Overview assembles the pool snapshot.
func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	_, span := s.tracer.Start(ctx, "poolinfo.overview")
	defer span.End()
	started := time.Now()

	pool, err := s.engine.Snapshot()
	if err != nil {
		return nil, s.fail(span, "overview", started, err)
	}
	class, err := s.engine.Classify()
	if err != nil {
		return nil, s.fail(span, "overview", started, err)
	}
	amp, err := s.engine.Amplification()
	if err != nil {
		return nil, s.fail(span, "overview", started, err)
	}
	out := &Overview{
		Amplification: amp,
		SwapFee:       pool.Fees.SwapFee,
		AdminFee:      pool.Fees.AdminFee,
		LPSupply:      pool.LPSupply,
		Class:         class,
		Paused:        pool.Paused,
	}
	for i := 0; i < 2; i++ {
		out.Assets[i] = AssetInfo{
			Symbol:          pool.Assets[i].Symbol,
			Balance:         pool.Assets[i].Balance,
			AccruedAdminFee: pool.AccruedAdminFees[i],
			Native:          pool.Assets[i].Native,
		}
	}
	if pool.LPSupply.Sign() > 0 {
		price, err := s.engine.VirtualPrice()
		if err != nil {
			return nil, s.fail(span, "overview", started, err)
		}
		out.VirtualPrice = price
	}
	s.publishGauges(out)
	s.finish(span, "overview", started)
	return out, nil
}

// GetDy quotes the net output of a trade.
func (s *Service) GetDy(ctx context.Context, in, out int, dx *big.Int) (*big.Int, error) {
	_, span := s.tracer.Start(ctx, "poolinfo.get_dy",
		trace.WithAttributes(attribute.Int("asset.in", in), attribute.Int("asset.out", out)))
	defer span.End()
	started := time.Now()

	dy, err := s.engine.GetDy(in, out, dx)
	if err != nil {
		return nil, s.fail(span, "get_dy", started, err)
	}
	s.finish(span, "get_dy", started)
	return dy, nil
}

// CalcCoinsAmount quotes the shares minted or burned for an amount vector.
func (s *Service) CalcCoinsAmount(ctx context.Context, amounts [2]*big.Int, deposit bool) (*big.Int, error) {
	_, span := s.tracer.Start(ctx, "poolinfo.calc_coins_amount",
		trace.WithAttributes(attribute.Bool("deposit", deposit)))
	defer span.End()
	started := time.Now()

	shares, err := s.engine.CalcTokenAmount(amounts, deposit)
	if err != nil {
		return nil, s.fail(span, "calc_coins_amount", started, err)
	}
	s.finish(span, "calc_coins_amount", started)
	return shares, nil
}

// CalcWithdrawOneCoin quotes a single-asset withdrawal.
func (s *Service) CalcWithdrawOneCoin(ctx context.Context, lpAmount *big.Int, i int) (*big.Int, error) {
	_, span := s.tracer.Start(ctx, "poolinfo.calc_withdraw_one_coin",
		trace.WithAttributes(attribute.Int("asset.index", i)))
	defer span.End()
	started := time.Now()

	dy, err := s.engine.CalcWithdrawOneCoin(lpAmount, i)
	if err != nil {
		return nil, s.fail(span, "calc_withdraw_one_coin", started, err)
	}
	s.finish(span, "calc_withdraw_one_coin", started)
	return dy, nil
}

// GetAddLiquidityMintAmount quotes the LP shares a deposit of the amount
// vector would mint.
func (s *Service) GetAddLiquidityMintAmount(ctx context.Context, amounts [2]*big.Int) (*big.Int, error) {
	_, span := s.tracer.Start(ctx, "poolinfo.add_liquidity_mint_amount")
	defer span.End()
	started := time.Now()

	mint, err := s.engine.CalcTokenAmount(amounts, true)
	if err != nil {
		return nil, s.fail(span, "add_liquidity_mint_amount", started, err)
	}
	s.finish(span, "add_liquidity_mint_amount", started)
	return mint, nil
}

// GetRemoveLiquidityImbalanceFee quotes the per-slot imbalance fee an
// exact-amount withdrawal would pay.
func (s *Service) GetRemoveLiquidityImbalanceFee(ctx context.Context, amounts [2]*big.Int) ([2]*big.Int, error) {
	_, span := s.tracer.Start(ctx, "poolinfo.remove_liquidity_imbalance_fee")
	defer span.End()
	started := time.Now()

	fees, err := s.engine.CalcImbalanceWithdrawFees(amounts)
	if err != nil {
		return fees, s.fail(span, "remove_liquidity_imbalance_fee", started, err)
	}
	s.finish(span, "remove_liquidity_imbalance_fee", started)
	return fees, nil
}

// GetRemoveLiquidityOneCoinFee quotes the imbalance fee of a single-asset
// withdrawal, in out-asset units.
func (s *Service) GetRemoveLiquidityOneCoinFee(ctx context.Context, lpAmount *big.Int, i int) (*big.Int, error) {
	_, span := s.tracer.Start(ctx, "poolinfo.remove_liquidity_one_coin_fee",
		trace.WithAttributes(attribute.Int("asset.index", i)))
	defer span.End()
	started := time.Now()

	fee, err := s.engine.CalcWithdrawOneCoinFee(lpAmount, i)
	if err != nil {
		return nil, s.fail(span, "remove_liquidity_one_coin_fee", started, err)
	}
	s.finish(span, "remove_liquidity_one_coin_fee", started)
	return fee, nil
}

func (s *Service) publishGauges(view *Overview) {
	for i := 0; i < 2; i++ {
		balance, _ := new(big.Float).SetInt(view.Assets[i].Balance).Float64()
		s.metrics.SetReserve(view.Assets[i].Symbol, balance)
	}
	supply, _ := new(big.Float).SetInt(view.LPSupply).Float64()
	s.metrics.SetLPSupply(supply)
}

func (s *Service) fail(span trace.Span, operation string, started time.Time, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	s.metrics.Observe(operation, err, time.Since(started))
	s.logger.Warn("pool query failed", "operation", operation, "error", err)
	return err
}

func (s *Service) finish(span trace.Span, operation string, started time.Time) {
	span.SetStatus(codes.Ok, "")
	s.metrics.Observe(operation, nil, time.Since(started))
}
