package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResolution(t *testing.T) {
	cases := []struct {
		in     string
		amount int
		unit   ResolutionUnit
	}{
		{"1Min", 1, UnitMinute},
		{"15Min", 15, UnitMinute},
		{"59Min", 59, UnitMinute},
		{"1Hour", 1, UnitHour},
		{"7Hour", 7, UnitHour},
		{"1Day", 1, UnitDay},
	}
	for _, c := range cases {
		t.Run(c.in, func(t *testing.T) {
			res, err := ParseResolution(c.in)
			require.NoError(t, err)
			assert.Equal(t, c.amount, res.Amount)
			assert.Equal(t, c.unit, res.Unit)
			assert.Equal(t, c.in, res.String())
		})
	}
}

func TestParseResolutionRejectsInvalid(t *testing.T) {
	for _, in := range []string{"", "Min", "0Min", "60Min", "8Hour", "2Day", "1Week", "abcMin"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseResolution(in)
			assert.Error(t, err)
		})
	}
}

func TestResolutionDuration(t *testing.T) {
	assert.Equal(t, 15*time.Minute, Resolution{Amount: 15, Unit: UnitMinute}.Duration())
	assert.Equal(t, 2*time.Hour, Resolution{Amount: 2, Unit: UnitHour}.Duration())
	assert.Equal(t, 24*time.Hour, Resolution{Amount: 1, Unit: UnitDay}.Duration())
}

func TestResolutionIsIntraday(t *testing.T) {
	assert.True(t, Resolution{Amount: 5, Unit: UnitMinute}.IsIntraday())
	assert.True(t, Resolution{Amount: 1, Unit: UnitHour}.IsIntraday())
	assert.False(t, Resolution{Amount: 1, Unit: UnitDay}.IsIntraday())
}

func TestBarDate(t *testing.T) {
	b := Bar{Datetime: time.Date(2024, 3, 8, 14, 30, 0, 0, time.UTC)}
	assert.Equal(t, "2024-03-08", b.Date())
}

func TestBarsSeries(t *testing.T) {
	bs := Bars{
		{Open: 1, High: 4, Low: 0.5, Close: 2},
		{Open: 2, High: 5, Low: 1.5, Close: 3},
	}
	assert.Equal(t, []float64{2, 3}, bs.Closes())
	assert.Equal(t, []float64{4, 5}, bs.Highs())
	assert.Equal(t, []float64{0.5, 1.5}, bs.Lows())
}
