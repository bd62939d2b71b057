package derived

import (
	"math"
	"testing"

	"monte/internal/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flatWindow(n int, close float64) market.Bars {
	out := make(market.Bars, n)
	for i := range out {
		out[i] = market.Bar{Open: close, High: close, Low: close, Close: close, VWAP: close}
	}
	return out
}

func TestRegistryOrderAndCompute(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("b_second", func(Identifier, market.Bars) float64 { return 2 }))
	require.NoError(t, reg.Register("a_first", func(Identifier, market.Bars) float64 { return 1 }))

	// Registration order wins over lexical order.
	assert.Equal(t, []string{"b_second", "a_first"}, reg.Names())

	out := reg.Compute(Identifier{Symbol: "AAPL", Timestamp: "t0"}, nil)
	assert.Equal(t, map[string]float64{"b_second": 2, "a_first": 1}, out)
}

func TestRegistryRejectsDuplicatesAndEmpty(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("x", func(Identifier, market.Bars) float64 { return 0 }))
	assert.Error(t, reg.Register("x", func(Identifier, market.Bars) float64 { return 0 }))
	assert.Error(t, reg.Register("", func(Identifier, market.Bars) float64 { return 0 }))
	assert.Error(t, reg.Register("nil_fn", nil))
}

func TestBuiltinUnknownName(t *testing.T) {
	_, err := Builtin([]string{"sma_10", "no_such_column"})
	assert.ErrorContains(t, err, "no_such_column")
}

func TestBuiltinSMA(t *testing.T) {
	reg, err := Builtin([]string{"sma_10"})
	require.NoError(t, err)

	out := reg.Compute(Identifier{}, flatWindow(10, 42))
	assert.InDelta(t, 42, out["sma_10"], 1e-9)

	// Not enough rows yet.
	out = reg.Compute(Identifier{}, flatWindow(9, 42))
	assert.True(t, math.IsNaN(out["sma_10"]))
}

func TestBuiltinRSIWarmup(t *testing.T) {
	reg, err := Builtin([]string{"rsi_14"})
	require.NoError(t, err)
	out := reg.Compute(Identifier{}, flatWindow(14, 100))
	assert.True(t, math.IsNaN(out["rsi_14"]))
}

func TestVWAPGap(t *testing.T) {
	reg, err := Builtin([]string{"vwap_gap"})
	require.NoError(t, err)

	window := market.Bars{{Close: 105, VWAP: 100}}
	out := reg.Compute(Identifier{}, window)
	assert.InDelta(t, 0.05, out["vwap_gap"], 1e-9)

	out = reg.Compute(Identifier{}, market.Bars{{Close: 10, VWAP: 0}})
	assert.True(t, math.IsNaN(out["vwap_gap"]))
}

func TestBuiltinNamesSorted(t *testing.T) {
	names := BuiltinNames()
	assert.Equal(t, []string{"atr_14", "rsi_14", "sma_10", "sma_20", "vwap_gap"}, names)
}
