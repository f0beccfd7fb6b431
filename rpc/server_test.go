package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pegpool/crypto"
	"pegpool/native/collateral"
	"pegpool/native/lptoken"
	"pegpool/native/stableswap"
	"pegpool/services/poolinfo"
	"pegpool/state"
	"pegpool/storage"
)

type staticOracle struct{ prices map[string]*big.Int }

func (o *staticOracle) Peek(symbol string) (*big.Int, error) {
	price, ok := o.prices[symbol]
	if !ok {
		return nil, fmt.Errorf("no price for %s", symbol)
	}
	return new(big.Int).Set(price), nil
}

func testAddr(seed byte) crypto.Address {
	raw := make([]byte, 20)
	for i := range raw {
		raw[i] = seed
	}
	return crypto.NewAddress(crypto.PegPrefix, raw)
}

func scaled(n int64) *big.Int {
	out := big.NewInt(n)
	return out.Mul(out, new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

type serverFixture struct {
	server *httptest.Server
	engine *stableswap.Engine
	alice  crypto.Address
	admin  crypto.Address
	pauser crypto.Address
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()
	db := storage.NewMemDB()
	ledger := state.NewManager(db)
	shares, err := lptoken.NewToken("PLP", db)
	require.NoError(t, err)

	f := &serverFixture{
		alice:  testAddr(0x05),
		admin:  testAddr(0x02),
		pauser: testAddr(0x04),
	}
	oracle := &staticOracle{prices: map[string]*big.Int{
		"PEG":  big.NewInt(100_000_000),
		"SPEG": big.NewInt(100_000_000),
	}}
	f.engine = stableswap.NewEngine(testAddr(0x01), oracle, shares)
	f.engine.SetState(ledger)
	f.engine.SetClock(func() time.Time { return time.Unix(1_700_000_000, 0) })

	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	threshold := big.NewInt(20_000_000_000_000_000)
	require.NoError(t, f.engine.Initialize(stableswap.InitConfig{
		Assets: [2]stableswap.AssetConfig{
			{Symbol: "PEG", RateMultiplier: new(big.Int).Set(scale), Native: true},
			{Symbol: "SPEG", RateMultiplier: new(big.Int).Set(scale)},
		},
		Amplification:   big.NewInt(1000),
		SwapFee:         big.NewInt(1_000_000),
		AdminFee:        big.NewInt(5_000_000_000),
		PriceThresholds: [2]*big.Int{threshold, threshold},
		Admin:           f.admin,
		Manager:         testAddr(0x03),
		Pauser:          f.pauser,
	}))

	million := scaled(1_000_000)
	account, err := ledger.GetAccount(f.alice)
	require.NoError(t, err)
	account.BalancePEG = new(big.Int).Set(million)
	account.BalanceSPEG = new(big.Int).Set(million)
	require.NoError(t, ledger.PutAccount(f.alice, account))

	seed := [2]*big.Int{scaled(102_000), scaled(100_000)}
	_, err = f.engine.AddLiquidity(f.alice, seed, nil, scaled(102_000))
	require.NoError(t, err)

	info := poolinfo.New(f.engine, slog.Default())
	server := NewServer(f.engine, info, slog.Default())
	f.server = httptest.NewServer(server.Router())
	t.Cleanup(f.server.Close)
	return f
}

func (f *serverFixture) call(t *testing.T, method string, params interface{}) (*http.Response, RPCResponse) {
	t.Helper()
	body := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		body["params"] = []interface{}{params}
	}
	encoded, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(f.server.URL+"/", "application/json", bytes.NewReader(encoded))
	require.NoError(t, err)
	defer resp.Body.Close()
	var decoded RPCResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func resultAs(t *testing.T, resp RPCResponse, out interface{}) {
	t.Helper()
	encoded, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(encoded, out))
}

func TestGetDy(t *testing.T) {
	f := newServerFixture(t)
	httpResp, resp := f.call(t, "stableswap_getDy", map[string]interface{}{
		"in": 0, "out": 1, "dx": scaled(100).String(),
	})
	require.Equal(t, http.StatusOK, httpResp.StatusCode)
	require.Nil(t, resp.Error)
	var result amountResult
	resultAs(t, resp, &result)
	require.Equal(t, "99987922650298457707", result.Amount)
}

func TestExchangeMatchesQuote(t *testing.T) {
	f := newServerFixture(t)
	_, resp := f.call(t, "stableswap_exchange", map[string]interface{}{
		"caller":   f.alice.String(),
		"in":       0,
		"out":      1,
		"dx":       scaled(100).String(),
		"attached": scaled(100).String(),
	})
	require.Nil(t, resp.Error)
	var result amountResult
	resultAs(t, resp, &result)
	require.Equal(t, "99987922650298457707", result.Amount)
}

func TestMethodNotFound(t *testing.T) {
	f := newServerFixture(t)
	httpResp, resp := f.call(t, "stableswap_unknown", map[string]interface{}{})
	require.Equal(t, http.StatusNotFound, httpResp.StatusCode)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)
}

func TestInvalidParams(t *testing.T) {
	f := newServerFixture(t)

	httpResp, resp := f.call(t, "stableswap_getDy", nil)
	require.Equal(t, http.StatusBadRequest, httpResp.StatusCode)
	require.Equal(t, codeInvalidParams, resp.Error.Code)

	httpResp, resp = f.call(t, "stableswap_getDy", map[string]interface{}{"in": 0, "out": 1, "dx": ""})
	require.Equal(t, http.StatusBadRequest, httpResp.StatusCode)
	require.Equal(t, codeInvalidParams, resp.Error.Code)

	httpResp, resp = f.call(t, "stableswap_getDy", map[string]interface{}{"in": 0, "out": 1, "dx": "-5"})
	require.Equal(t, http.StatusBadRequest, httpResp.StatusCode)
	require.Equal(t, codeInvalidParams, resp.Error.Code)

	httpResp, resp = f.call(t, "stableswap_exchange", map[string]interface{}{
		"caller": "not-an-address", "in": 0, "out": 1, "dx": "1", "attached": "1",
	})
	require.Equal(t, http.StatusBadRequest, httpResp.StatusCode)
	require.Equal(t, codeInvalidParams, resp.Error.Code)
}

func TestSlippageMapsToRejection(t *testing.T) {
	f := newServerFixture(t)
	httpResp, resp := f.call(t, "stableswap_exchange", map[string]interface{}{
		"caller":   f.alice.String(),
		"in":       0,
		"out":      1,
		"dx":       scaled(100).String(),
		"minDy":    scaled(101).String(),
		"attached": scaled(100).String(),
	})
	require.Equal(t, http.StatusConflict, httpResp.StatusCode)
	require.Equal(t, codeRejected, resp.Error.Code)
	require.Equal(t, "slippage", resp.Error.Message)
}

func TestPriceDeviationMapsToRejection(t *testing.T) {
	f := newServerFixture(t)
	httpResp, resp := f.call(t, "stableswap_exchange", map[string]interface{}{
		"caller":   f.alice.String(),
		"in":       0,
		"out":      1,
		"dx":       scaled(100_000).String(),
		"attached": scaled(100_000).String(),
	})
	require.Equal(t, http.StatusConflict, httpResp.StatusCode)
	require.Equal(t, codeRejected, resp.Error.Code)
	require.Equal(t, "price_deviation", resp.Error.Message)
}

func TestPausedMapsToRejection(t *testing.T) {
	f := newServerFixture(t)
	_, resp := f.call(t, "stableswap_pause", map[string]interface{}{"caller": f.pauser.String()})
	require.Nil(t, resp.Error)

	httpResp, resp := f.call(t, "stableswap_exchange", map[string]interface{}{
		"caller":   f.alice.String(),
		"in":       0,
		"out":      1,
		"dx":       "1",
		"attached": "1",
	})
	require.Equal(t, http.StatusConflict, httpResp.StatusCode)
	require.Equal(t, "paused", resp.Error.Message)
}

func TestUnauthorizedMapsToForbidden(t *testing.T) {
	f := newServerFixture(t)
	httpResp, resp := f.call(t, "stableswap_pause", map[string]interface{}{"caller": f.alice.String()})
	require.Equal(t, http.StatusForbidden, httpResp.StatusCode)
	require.Equal(t, "unauthorized", resp.Error.Message)
}

func TestPoolInfo(t *testing.T) {
	f := newServerFixture(t)
	httpResp, resp := f.call(t, "stableswap_poolInfo", map[string]interface{}{})
	require.Equal(t, http.StatusOK, httpResp.StatusCode)
	require.Nil(t, resp.Error)
	var result poolInfoResult
	resultAs(t, resp, &result)
	require.Equal(t, "PEG", result.Assets[0].Symbol)
	require.True(t, result.Assets[0].Native)
	require.Equal(t, "SPEG", result.Assets[1].Symbol)
	require.Equal(t, "1000", result.Amplification)
	require.Equal(t, "201999990107932736938407", result.LPSupply)
	require.Equal(t, "1000000000000000000", result.VirtualPrice)
	require.Equal(t, "asset0_native", result.Class)
	require.False(t, result.Paused)
}

func TestCollateralUnavailableWithoutModule(t *testing.T) {
	f := newServerFixture(t)
	httpResp, resp := f.call(t, "collateral_escrowed", map[string]interface{}{})
	require.Equal(t, http.StatusServiceUnavailable, httpResp.StatusCode)
	require.Equal(t, "collateral_unavailable", resp.Error.Message)
}

func TestCollateralWrapUnwrap(t *testing.T) {
	db := storage.NewMemDB()
	shares, err := lptoken.NewToken("PLP", db)
	require.NoError(t, err)
	wrapped, err := lptoken.NewToken("WPLP", db)
	require.NoError(t, err)
	alice := testAddr(0x05)
	require.NoError(t, shares.Mint(alice, big.NewInt(1000)))

	wrapper := collateral.NewEngine(shares, wrapped, testAddr(0x0a))
	engine := stableswap.NewEngine(testAddr(0x01), nil, shares)
	info := poolinfo.New(engine, slog.Default())
	server := NewServer(engine, info, slog.Default())
	server.SetCollateral(wrapper)
	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)
	f := &serverFixture{server: ts, alice: alice}

	_, resp := f.call(t, "collateral_wrap", map[string]interface{}{
		"caller": alice.String(), "amount": "400",
	})
	require.Nil(t, resp.Error)

	_, resp = f.call(t, "collateral_escrowed", map[string]interface{}{})
	require.Nil(t, resp.Error)
	var result amountResult
	resultAs(t, resp, &result)
	require.Equal(t, "400", result.Amount)

	_, resp = f.call(t, "collateral_unwrap", map[string]interface{}{
		"caller": alice.String(), "amount": "400",
	})
	require.Nil(t, resp.Error)

	httpResp, resp := f.call(t, "collateral_unwrap", map[string]interface{}{
		"caller": alice.String(), "amount": "1",
	})
	require.Equal(t, http.StatusBadRequest, httpResp.StatusCode)
	require.Equal(t, codeInvalidParams, resp.Error.Code)
}

func TestHealthz(t *testing.T) {
	f := newServerFixture(t)
	resp, err := http.Get(f.server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var status map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	require.Equal(t, "ok", status["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	f := newServerFixture(t)
	resp, err := http.Get(f.server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCalcAddLiquidityMint(t *testing.T) {
	f := newServerFixture(t)
	httpResp, resp := f.call(t, "stableswap_calcAddLiquidityMint", map[string]interface{}{
		"amounts": [2]string{scaled(1000).String(), "0"},
	})
	require.Equal(t, http.StatusOK, httpResp.StatusCode)
	require.Nil(t, resp.Error)
	var result amountResult
	resultAs(t, resp, &result)
	require.Equal(t, "999938236932658754573", result.Amount)
}

func TestCalcImbalanceFees(t *testing.T) {
	f := newServerFixture(t)
	amounts := [2]*big.Int{scaled(500), scaled(500)}
	want, err := f.engine.CalcImbalanceWithdrawFees(amounts)
	require.NoError(t, err)

	httpResp, resp := f.call(t, "stableswap_calcImbalanceFees", map[string]interface{}{
		"amounts": [2]string{amounts[0].String(), amounts[1].String()},
	})
	require.Equal(t, http.StatusOK, httpResp.StatusCode)
	require.Nil(t, resp.Error)
	var result vectorResult
	resultAs(t, resp, &result)
	require.Equal(t, want[0].String(), result.Amounts[0])
	require.Equal(t, want[1].String(), result.Amounts[1])
}

func TestCalcWithdrawOneCoinFee(t *testing.T) {
	f := newServerFixture(t)
	lp := scaled(1000)
	want, err := f.engine.CalcWithdrawOneCoinFee(lp, 1)
	require.NoError(t, err)
	require.Positive(t, want.Sign())

	httpResp, resp := f.call(t, "stableswap_calcWithdrawOneCoinFee", map[string]interface{}{
		"lpAmount": lp.String(),
		"index":    1,
	})
	require.Equal(t, http.StatusOK, httpResp.StatusCode)
	require.Nil(t, resp.Error)
	var result amountResult
	resultAs(t, resp, &result)
	require.Equal(t, want.String(), result.Amount)

	httpResp, resp = f.call(t, "stableswap_calcWithdrawOneCoinFee", map[string]interface{}{
		"lpAmount": lp.String(),
		"index":    2,
	})
	require.Equal(t, http.StatusBadRequest, httpResp.StatusCode)
	require.Equal(t, "invalid_params", resp.Error.Message)
}
