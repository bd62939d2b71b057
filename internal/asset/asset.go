package asset

import (
	"time"

	"monte/internal/derived"
	"monte/internal/market"
)

// Asset 持有单个品种的待入窗缓冲和容量受限的历史窗口。
// 窗口尾部追加、头部淘汰，时间戳严格递增；派生列只在预热满足后计算。
type Asset struct {
	symbol          string
	window          market.Bars
	pending         market.Bars
	maxRows         int
	startBufferDays int
	warmed          bool
	registry        *derived.Registry
}

func NewAsset(symbol string, maxRows, startBufferDays int, registry *derived.Registry) *Asset {
	return &Asset{
		symbol:          symbol,
		maxRows:         maxRows,
		startBufferDays: startBufferDays,
		registry:        registry,
	}
}

// Symbol 返回该资产的品种代码。
func (a *Asset) Symbol() string { return a.symbol }

// PendingEmpty 判断待入窗缓冲是否已耗尽。
func (a *Asset) PendingEmpty() bool { return len(a.pending) == 0 }

// PendingTimestamps 返回缓冲内全部时间戳，供跨品种对齐校验。
func (a *Asset) PendingTimestamps() []string {
	out := make([]string, len(a.pending))
	for i, b := range a.pending {
		out[i] = b.Timestamp
	}
	return out
}

// SetPending 整体替换待入窗缓冲。只在缓冲耗尽后由管理器统一调用。
func (a *Asset) SetPending(bars market.Bars) {
	a.pending = bars
}

// AdmitNext 把缓冲头部的一根 K 线移入窗口尾部，超出容量时淘汰最旧一根。
// 预热满足（窗口内不同日历日数量达到 startBufferDays）后，对刚入窗的
// K 线就地计算全部派生列；此后每根入窗 K 线都会计算。
func (a *Asset) AdmitNext() error {
	if len(a.pending) == 0 {
		return ErrEmptyBuffer
	}
	bar := a.pending[0]
	a.pending = a.pending[1:]
	a.window = append(a.window, bar)
	if len(a.window) > a.maxRows {
		a.window = append(a.window[:0], a.window[1:]...)
	}
	if a.warmed || a.distinctDays() >= a.startBufferDays {
		a.warmed = true
		if a.registry != nil {
			last := &a.window[len(a.window)-1]
			id := derived.Identifier{Symbol: a.symbol, Timestamp: last.Timestamp}
			last.Derived = a.registry.Compute(id, a.window)
		}
	}
	return nil
}

// distinctDays 统计当前窗口覆盖的不同日历日数量。
func (a *Asset) distinctDays() int {
	days := make(map[string]struct{}, a.startBufferDays)
	for _, b := range a.window {
		days[b.Date()] = struct{}{}
	}
	return len(days)
}

// Warmed 报告派生列计算是否已启用。
func (a *Asset) Warmed() bool { return a.warmed }

// Len 返回窗口当前长度。
func (a *Asset) Len() int { return len(a.window) }

// Window 返回窗口内容的副本，供只读消费（HTTP、报表）。
func (a *Asset) Window() market.Bars {
	return append(market.Bars(nil), a.window...)
}

// LatestPrice 返回最新一根 K 线的成交量加权均价。
func (a *Asset) LatestPrice() (float64, error) {
	if len(a.window) == 0 {
		return 0, ErrEmptyWindow
	}
	return a.window[len(a.window)-1].VWAP, nil
}

// LatestTimestamp 返回最新一根 K 线的原始时间戳。
func (a *Asset) LatestTimestamp() (string, error) {
	if len(a.window) == 0 {
		return "", ErrEmptyWindow
	}
	return a.window[len(a.window)-1].Timestamp, nil
}

// LatestDatetime 返回最新一根 K 线的 UTC 规范化时间。
func (a *Asset) LatestDatetime() (time.Time, error) {
	if len(a.window) == 0 {
		return time.Time{}, ErrEmptyWindow
	}
	return a.window[len(a.window)-1].Datetime, nil
}
