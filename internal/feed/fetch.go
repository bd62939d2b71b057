package feed

import (
	"context"
	"fmt"
	"time"

	"monte/internal/calendar"
	"monte/internal/market"
)

// Chunk 是一次批量拉取的产物：品种 -> 规范化 K 线序列。
type Chunk map[string]market.Bars

// Fetcher 把一个日期子区间转成按交易时段过滤、字段规范化后的 Chunk。
// 数据源或日历失败原样上抛，这一层不做重试。
type Fetcher struct {
	source BarSource
	cal    calendar.Provider
	res    market.Resolution
}

func NewFetcher(source BarSource, cal calendar.Provider, res market.Resolution) (*Fetcher, error) {
	if source == nil {
		return nil, fmt.Errorf("bar source 不能为空")
	}
	if cal == nil {
		return nil, fmt.Errorf("calendar provider 不能为空")
	}
	if err := res.Validate(); err != nil {
		return nil, err
	}
	return &Fetcher{source: source, cal: cal, res: res}, nil
}

// Fetch 拉取 r 覆盖的全部品种数据并过滤到有效交易时段。
// 规则与行级过滤：
//   - 行的日历日必须命中区间内的某个交易日，否则丢弃；
//   - 日内粒度下，时间戳还必须落在该交易日的开收盘边界内（日级豁免）；
//   - 幸存行按原顺序紧凑重排，字段重命名为规范列，datetime 统一为 UTC。
func (f *Fetcher) Fetch(ctx context.Context, symbols []string, r calendar.Range) (Chunk, error) {
	sessions, err := f.cal.SessionsInRange(r.Start, r.End)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return Chunk{}, nil
	}
	start := sessions[0].Date
	end := sessions[len(sessions)-1].Date.Add(24*time.Hour - time.Millisecond)

	raw, err := f.source.BulkBars(ctx, symbols, f.res, start, end)
	if err != nil {
		return nil, err
	}

	byDate := make(map[string]calendar.Session, len(sessions))
	for _, s := range sessions {
		byDate[s.Date.Format("2006-01-02")] = s
	}

	chunk := make(Chunk, len(raw))
	for sym, rows := range raw {
		bars := make(market.Bars, 0, len(rows))
		for _, row := range rows {
			ts, err := time.Parse(time.RFC3339, row.T)
			if err != nil {
				return nil, fmt.Errorf("%s 行时间戳无法解析 %q: %w", sym, row.T, err)
			}
			sess, ok := byDate[ts.In(start.Location()).Format("2006-01-02")]
			if !ok {
				continue
			}
			if f.res.IsIntraday() && (ts.Before(sess.Open) || ts.After(sess.Close)) {
				continue
			}
			bars = append(bars, market.Bar{
				Timestamp:  row.T,
				Open:       row.O,
				High:       row.H,
				Low:        row.L,
				Close:      row.C,
				Volume:     row.V,
				TradeCount: row.N,
				VWAP:       row.VW,
				Datetime:   ts.UTC(),
			})
		}
		chunk[sym] = bars
	}
	return chunk, nil
}

// Resolution 返回本 Fetcher 使用的采样粒度。
func (f *Fetcher) Resolution() market.Resolution {
	return f.res
}
