package asset

import (
	"fmt"
	"testing"
	"time"

	"monte/internal/derived"
	"monte/internal/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dayBars builds n daily bars starting at the given date, one per calendar day.
func dayBars(start time.Time, n int) market.Bars {
	out := make(market.Bars, n)
	for i := range out {
		ts := start.AddDate(0, 0, i)
		out[i] = market.Bar{
			Timestamp: ts.Format(time.RFC3339),
			Open:      100 + float64(i),
			High:      101 + float64(i),
			Low:       99 + float64(i),
			Close:     100.5 + float64(i),
			Volume:    1000,
			VWAP:      100.2 + float64(i),
			Datetime:  ts,
		}
	}
	return out
}

func TestAdmitNextFIFO(t *testing.T) {
	a := NewAsset("AAPL", 100, 1, nil)
	bars := dayBars(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), 3)
	a.SetPending(bars)

	require.NoError(t, a.AdmitNext())
	require.NoError(t, a.AdmitNext())
	assert.Equal(t, 2, a.Len())

	ts, err := a.LatestTimestamp()
	require.NoError(t, err)
	assert.Equal(t, bars[1].Timestamp, ts)
	assert.False(t, a.PendingEmpty())

	require.NoError(t, a.AdmitNext())
	assert.True(t, a.PendingEmpty())
	assert.Equal(t, ErrEmptyBuffer, a.AdmitNext())
}

func TestWindowEvictsOldest(t *testing.T) {
	a := NewAsset("AAPL", 3, 1, nil)
	bars := dayBars(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), 5)
	a.SetPending(bars)
	for !a.PendingEmpty() {
		require.NoError(t, a.AdmitNext())
	}

	window := a.Window()
	require.Len(t, window, 3)
	assert.Equal(t, bars[2].Timestamp, window[0].Timestamp)
	assert.Equal(t, bars[4].Timestamp, window[2].Timestamp)
}

func TestDerivedGatedByDistinctDays(t *testing.T) {
	reg := derived.NewRegistry()
	require.NoError(t, reg.Register("rows", func(_ derived.Identifier, w market.Bars) float64 {
		return float64(len(w))
	}))

	// Two intraday bars per day; warm-up needs 3 distinct calendar dates.
	var bars market.Bars
	day := time.Date(2024, 1, 2, 14, 30, 0, 0, time.UTC)
	for d := 0; d < 4; d++ {
		for j := 0; j < 2; j++ {
			ts := day.AddDate(0, 0, d).Add(time.Duration(j) * 15 * time.Minute)
			bars = append(bars, market.Bar{
				Timestamp: ts.Format(time.RFC3339),
				Close:     100,
				VWAP:      100,
				Datetime:  ts,
			})
		}
	}

	a := NewAsset("MSFT", 100, 3, reg)
	a.SetPending(bars)

	// Four bars cover only two distinct days: still cold.
	for i := 0; i < 4; i++ {
		require.NoError(t, a.AdmitNext())
	}
	assert.False(t, a.Warmed())
	window := a.Window()
	assert.Nil(t, window[len(window)-1].Derived)

	// Fifth bar opens the third day: warm from here on.
	require.NoError(t, a.AdmitNext())
	assert.True(t, a.Warmed())
	window = a.Window()
	require.NotNil(t, window[len(window)-1].Derived)
	assert.Equal(t, float64(5), window[len(window)-1].Derived["rows"])

	// Earlier bars stay untouched.
	assert.Nil(t, window[0].Derived)
}

func TestWarmedStaysWarmAfterEviction(t *testing.T) {
	reg := derived.NewRegistry()
	require.NoError(t, reg.Register("one", func(derived.Identifier, market.Bars) float64 { return 1 }))

	// One bar each on three days warms the asset, then a burst of intraday
	// bars on day four evicts those days from the window. The flag is sticky.
	var bars market.Bars
	base := time.Date(2024, 1, 2, 14, 30, 0, 0, time.UTC)
	for d := 0; d < 3; d++ {
		ts := base.AddDate(0, 0, d)
		bars = append(bars, market.Bar{Timestamp: ts.Format(time.RFC3339), Datetime: ts})
	}
	for j := 0; j < 5; j++ {
		ts := base.AddDate(0, 0, 3).Add(time.Duration(j) * 15 * time.Minute)
		bars = append(bars, market.Bar{Timestamp: ts.Format(time.RFC3339), Datetime: ts})
	}

	a := NewAsset("AAPL", 5, 3, reg)
	a.SetPending(bars)
	for i := 0; i < 3; i++ {
		require.NoError(t, a.AdmitNext())
	}
	assert.True(t, a.Warmed())

	for !a.PendingEmpty() {
		require.NoError(t, a.AdmitNext())
	}
	// Window now spans a single calendar day but stays warm.
	assert.True(t, a.Warmed())
	window := a.Window()
	assert.NotNil(t, window[len(window)-1].Derived)
}

func TestEmptyWindowAccessors(t *testing.T) {
	a := NewAsset("AAPL", 10, 1, nil)
	_, err := a.LatestPrice()
	assert.Equal(t, ErrEmptyWindow, err)
	_, err = a.LatestTimestamp()
	assert.Equal(t, ErrEmptyWindow, err)
	_, err = a.LatestDatetime()
	assert.Equal(t, ErrEmptyWindow, err)
}

func TestLatestPriceIsVWAP(t *testing.T) {
	a := NewAsset("AAPL", 10, 1, nil)
	a.SetPending(dayBars(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), 2))
	require.NoError(t, a.AdmitNext())
	require.NoError(t, a.AdmitNext())

	price, err := a.LatestPrice()
	require.NoError(t, err)
	assert.InDelta(t, 101.2, price, 1e-9)
}

func TestWindowReturnsCopy(t *testing.T) {
	a := NewAsset("AAPL", 10, 1, nil)
	a.SetPending(dayBars(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), 1))
	require.NoError(t, a.AdmitNext())

	window := a.Window()
	window[0].Close = -1
	fresh := a.Window()
	assert.NotEqual(t, fresh[0].Close, window[0].Close, fmt.Sprintf("window copy leaked: %v", fresh[0]))
}
