package oracle

import (
	"context"
	"fmt"
	"math/big"
	"strings"
)

// StaticSource serves a fixed price table, 1e8 scale per symbol. It backs
// local deployments and tests where no live feed is wired.
type StaticSource struct {
	prices map[string]*big.Int
}

// NewStaticSource parses a symbol-to-decimal price table.
func NewStaticSource(prices map[string]string) (*StaticSource, error) {
	parsed := make(map[string]*big.Int, len(prices))
	for symbol, raw := range prices {
		value, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
		if !ok || value.Sign() <= 0 {
			return nil, fmt.Errorf("oracle: invalid static price for %s: %q", symbol, raw)
		}
		parsed[normalizeSymbol(symbol)] = value
	}
	return &StaticSource{prices: parsed}, nil
}

func (s *StaticSource) Name() string { return "static" }

func (s *StaticSource) Fetch(_ context.Context, symbol string) (*big.Int, error) {
	value, ok := s.prices[normalizeSymbol(symbol)]
	if !ok {
		return nil, fmt.Errorf("oracle: symbol %s not in static table", symbol)
	}
	return new(big.Int).Set(value), nil
}
