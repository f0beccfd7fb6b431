package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"
)

// Source resolves a 1e8-scaled price quote for an asset symbol.
type Source interface {
	Name() string
	Fetch(ctx context.Context, symbol string) (*big.Int, error)
}

// Manager aggregates prices across the configured sources and serves the
// freshest median to the pool's deviation guard. A price older than maxAge is
// treated as unavailable so the guard fails closed on a stalled feed.
type Manager struct {
	mu      sync.RWMutex
	logger  *slog.Logger
	sources []Source
	symbols []string
	maxAge  time.Duration
	clock   func() time.Time
	latest  map[string]pricePoint
}

type pricePoint struct {
	value      *big.Int
	observedAt time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger installs a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l.With("component", "oracle")
		}
	}
}

// WithClock overrides the staleness clock, primarily for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.clock = now
		}
	}
}

// New constructs a manager for the given symbols.
func New(sources []Source, symbols []string, maxAge time.Duration, opts ...Option) (*Manager, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("oracle: at least one source required")
	}
	if len(symbols) == 0 {
		return nil, fmt.Errorf("oracle: at least one symbol required")
	}
	if maxAge <= 0 {
		maxAge = 5 * time.Minute
	}
	m := &Manager{
		logger:  slog.Default().With("component", "oracle"),
		sources: sources,
		maxAge:  maxAge,
		clock:   time.Now,
		latest:  make(map[string]pricePoint),
	}
	for _, symbol := range symbols {
		m.symbols = append(m.symbols, normalizeSymbol(symbol))
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Run polls the sources at the given interval until the context is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	m.RefreshAll(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.RefreshAll(ctx)
		}
	}
}

// RefreshAll fetches every configured symbol once.
func (m *Manager) RefreshAll(ctx context.Context) {
	for _, symbol := range m.symbols {
		if err := m.refresh(ctx, symbol); err != nil {
			m.logger.Warn("price refresh failed", "asset", symbol, "error", err)
		}
	}
}

// refresh aggregates one symbol: the median of the sources that answered.
func (m *Manager) refresh(ctx context.Context, symbol string) error {
	values := make([]*big.Int, 0, len(m.sources))
	for _, source := range m.sources {
		value, err := source.Fetch(ctx, symbol)
		if err != nil {
			m.logger.Debug("source fetch failed", "asset", symbol, "source", source.Name(), "error", err)
			continue
		}
		if value == nil || value.Sign() <= 0 {
			continue
		}
		values = append(values, value)
	}
	if len(values) == 0 {
		return fmt.Errorf("oracle: no source answered for %s", symbol)
	}
	sort.Slice(values, func(i, j int) bool { return values[i].Cmp(values[j]) < 0 })
	median := values[len(values)/2]
	if len(values)%2 == 0 {
		median = new(big.Int).Add(values[len(values)/2-1], values[len(values)/2])
		median.Quo(median, big.NewInt(2))
	}
	m.mu.Lock()
	m.latest[symbol] = pricePoint{value: median, observedAt: m.clock()}
	m.mu.Unlock()
	return nil
}

// Peek returns the latest fresh price for symbol, satisfying the pool
// engine's oracle interface.
func (m *Manager) Peek(symbol string) (*big.Int, error) {
	symbol = normalizeSymbol(symbol)
	m.mu.RLock()
	point, ok := m.latest[symbol]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("oracle: no price observed for %s", symbol)
	}
	if m.clock().Sub(point.observedAt) > m.maxAge {
		return nil, fmt.Errorf("oracle: price for %s is stale", symbol)
	}
	return new(big.Int).Set(point.value), nil
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
