package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"pegpool/config"
	"pegpool/crypto"
	"pegpool/native/collateral"
	"pegpool/native/lptoken"
	"pegpool/native/stableswap"
	"pegpool/observability/logging"
	pegotel "pegpool/observability/otel"
	"pegpool/rpc"
	"pegpool/services/oracle"
	"pegpool/services/poolinfo"
	pegstate "pegpool/state"
	"pegpool/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("PEGPOOL_ENV"))
	logger := logging.Setup("pegpoold", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Metrics || cfg.Telemetry.Traces {
		shutdown, err := pegotel.Init(ctx, pegotel.Config{
			ServiceName: "pegpoold",
			Environment: cfg.Environment,
			Endpoint:    cfg.Telemetry.Endpoint,
			Insecure:    cfg.Telemetry.Insecure,
			Headers:     pegotel.ParseHeaders(cfg.Telemetry.Headers),
			Metrics:     cfg.Telemetry.Metrics,
			Traces:      cfg.Telemetry.Traces,
		})
		if err != nil {
			logger.Error("failed to initialise telemetry", "error", err)
			os.Exit(1)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(ctx); err != nil {
				logger.Warn("telemetry shutdown failed", "error", err)
			}
		}()
	}

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "ledger"))
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	engine, info, wrapper, err := buildPool(cfg, logger, db)
	if err != nil {
		logger.Error("failed to build pool", "error", err)
		os.Exit(1)
	}

	server := rpc.NewServer(engine, info, logger)
	server.SetCollateral(wrapper)
	httpServer := &http.Server{
		Addr:              cfg.RPCAddress,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("rpc listening", "address", cfg.RPCAddress)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("rpc server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("rpc shutdown failed", "error", err)
	}
}

// buildPool assembles the engine and its collaborators from configuration,
// restoring persisted state when present and initialising the pool otherwise.
func buildPool(cfg *config.Config, logger *slog.Logger, db storage.Database) (*stableswap.Engine, *poolinfo.Service, *collateral.Engine, error) {
	custody, err := crypto.DecodeAddress(cfg.Pool.CustodyAccount)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("custody account: %w", err)
	}

	source, err := oracle.NewStaticSource(cfg.Oracle.Prices)
	if err != nil {
		return nil, nil, nil, err
	}
	symbols := []string{cfg.Pool.Asset0.Symbol, cfg.Pool.Asset1.Symbol}
	prices, err := oracle.New([]oracle.Source{source}, symbols, time.Duration(cfg.Oracle.MaxAgeSeconds)*time.Second)
	if err != nil {
		return nil, nil, nil, err
	}
	go prices.Run(context.Background(), 15*time.Second)

	shares, err := lptoken.NewToken(cfg.Pool.LPTokenSymbol, db)
	if err != nil {
		return nil, nil, nil, err
	}

	engine := stableswap.NewEngine(custody, prices, shares)
	engine.SetState(pegstate.NewManager(db))
	engine.SetStore(stableswap.NewPoolStore(db))

	if err := engine.Restore(); err != nil {
		if !errors.Is(err, stableswap.ErrNotInitialized) {
			return nil, nil, nil, err
		}
		init, err := initConfigFrom(cfg)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := engine.Initialize(*init); err != nil {
			return nil, nil, nil, err
		}
		logger.Info("pool initialised",
			"asset0", cfg.Pool.Asset0.Symbol, "asset1", cfg.Pool.Asset1.Symbol)
	} else {
		logger.Info("pool state restored")
	}

	wrapped, err := lptoken.NewToken(cfg.Pool.WrappedLPSymbol, db)
	if err != nil {
		return nil, nil, nil, err
	}
	collateralAddr := crypto.NewAddress(crypto.PoolPrefix, collateralModuleBytes())
	wrapper := collateral.NewEngine(shares, wrapped, collateralAddr)
	wrapper.SetPauses(poolPauseView{engine: engine})

	info := poolinfo.New(engine, logger)
	return engine, info, wrapper, nil
}

// poolPauseView projects the pool's pause gate onto the collateral wrapper so
// wrapping halts with the pool while unwrapping stays open.
type poolPauseView struct {
	engine *stableswap.Engine
}

func (v poolPauseView) IsPaused(string) bool {
	paused, err := v.engine.IsPaused()
	return err == nil && paused
}

func initConfigFrom(cfg *config.Config) (*stableswap.InitConfig, error) {
	admin, err := crypto.DecodeAddress(cfg.Pool.Admin)
	if err != nil {
		return nil, fmt.Errorf("admin address: %w", err)
	}
	manager, err := crypto.DecodeAddress(cfg.Pool.Manager)
	if err != nil {
		return nil, fmt.Errorf("manager address: %w", err)
	}
	pauser, err := crypto.DecodeAddress(cfg.Pool.Pauser)
	if err != nil {
		return nil, fmt.Errorf("pauser address: %w", err)
	}
	init := &stableswap.InitConfig{
		Amplification: big.NewInt(cfg.Pool.Amplification),
		SwapFee:       big.NewInt(cfg.Pool.SwapFee),
		AdminFee:      big.NewInt(cfg.Pool.AdminFee),
		Admin:         admin,
		Manager:       manager,
		Pauser:        pauser,
	}
	for i, asset := range []config.AssetConfig{cfg.Pool.Asset0, cfg.Pool.Asset1} {
		rate, ok := new(big.Int).SetString(strings.TrimSpace(asset.RateMultiplier), 10)
		if !ok || rate.Sign() <= 0 {
			return nil, fmt.Errorf("asset %s: invalid rate multiplier %q", asset.Symbol, asset.RateMultiplier)
		}
		init.Assets[i] = stableswap.AssetConfig{
			Symbol:         asset.Symbol,
			RateMultiplier: rate,
			Native:         asset.Native,
		}
		if trimmed := strings.TrimSpace(asset.PriceThreshold); trimmed != "" {
			threshold, ok := new(big.Int).SetString(trimmed, 10)
			if !ok || threshold.Sign() < 0 {
				return nil, fmt.Errorf("asset %s: invalid price threshold %q", asset.Symbol, asset.PriceThreshold)
			}
			init.PriceThresholds[i] = threshold
		}
	}
	return init, nil
}

func collateralModuleBytes() []byte {
	name := []byte("collateral-escrow---")
	out := make([]byte, 20)
	copy(out, name)
	return out
}
