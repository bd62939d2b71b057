package market

import "time"

// BaseColumns 是每根 K 线的规范字段顺序（与数据源短码一一对应）。
var BaseColumns = []string{
	"timestamp",
	"open",
	"high",
	"low",
	"close",
	"volume",
	"trade_count",
	"vwap",
	"datetime",
}

// Bar 表示一根已规范化的历史 K 线。进入窗口后不再修改（Derived 除外，
// 仅在刚入窗的那一刻写入一次）。
type Bar struct {
	Timestamp  string             `json:"timestamp"`
	Open       float64            `json:"open"`
	High       float64            `json:"high"`
	Low        float64            `json:"low"`
	Close      float64            `json:"close"`
	Volume     float64            `json:"volume"`
	TradeCount int64              `json:"trade_count"`
	VWAP       float64            `json:"vwap"`
	Datetime   time.Time          `json:"datetime"`
	Derived    map[string]float64 `json:"derived,omitempty"`
}

// Date 返回该 K 线所属的日历日（UTC 规范化后的日期）。
func (b Bar) Date() string {
	return b.Datetime.Format("2006-01-02")
}

type Bars []Bar

// Closes 提取收盘价序列，供指标计算使用。
func (bs Bars) Closes() []float64 {
	out := make([]float64, len(bs))
	for i, b := range bs {
		out[i] = b.Close
	}
	return out
}

// Highs 提取最高价序列。
func (bs Bars) Highs() []float64 {
	out := make([]float64, len(bs))
	for i, b := range bs {
		out[i] = b.High
	}
	return out
}

// Lows 提取最低价序列。
func (bs Bars) Lows() []float64 {
	out := make([]float64, len(bs))
	for i, b := range bs {
		out[i] = b.Low
	}
	return out
}
