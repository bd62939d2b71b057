package feed

import (
	"context"
	"time"

	"monte/internal/market"
)

// RawBar 是数据源返回的原始行，字段沿用线上短码（t/o/h/l/c/v/n/vw）。
type RawBar struct {
	T  string  `json:"t"`
	O  float64 `json:"o"`
	H  float64 `json:"h"`
	L  float64 `json:"l"`
	C  float64 `json:"c"`
	V  float64 `json:"v"`
	N  int64   `json:"n"`
	VW float64 `json:"vw"`
}

// BarSource 统一不同数据源的批量拉取行为。返回值按品种分组，
// 每组按时间戳升序。
type BarSource interface {
	BulkBars(ctx context.Context, symbols []string, res market.Resolution, start, end time.Time) (map[string][]RawBar, error)
	Name() string
}
