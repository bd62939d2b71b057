package feed

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"monte/internal/market"

	"github.com/adshao/go-binance/v2"
)

const binanceBatchLimit = 1000

// BinanceSource 基于 go-binance SDK 的现货 K 线接口，面向 7x24 连续市场。
// vwap 取 quoteVolume/volume（即区间内的成交量加权均价）。
type BinanceSource struct {
	client *binance.Client
}

func NewBinanceSource(baseURL string) *BinanceSource {
	client := binance.NewClient("", "")
	if strings.TrimSpace(baseURL) != "" {
		client.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &BinanceSource{client: client}
}

func (s *BinanceSource) Name() string { return "binance" }

func (s *BinanceSource) BulkBars(ctx context.Context, symbols []string, res market.Resolution, start, end time.Time) (map[string][]RawBar, error) {
	interval, err := binanceInterval(res)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]RawBar, len(symbols))
	for _, sym := range symbols {
		bars, err := s.fetchSymbol(ctx, sym, interval, start, end)
		if err != nil {
			return nil, fmt.Errorf("binance 拉取 %s 失败: %w", sym, err)
		}
		out[sym] = bars
	}
	return out, nil
}

func (s *BinanceSource) fetchSymbol(ctx context.Context, symbol, interval string, start, end time.Time) ([]RawBar, error) {
	var out []RawBar
	cursor := start.UnixMilli()
	endMs := end.UnixMilli()
	for cursor <= endMs {
		kls, err := s.client.NewKlinesService().
			Symbol(strings.ToUpper(symbol)).
			Interval(interval).
			StartTime(cursor).
			EndTime(endMs).
			Limit(binanceBatchLimit).
			Do(ctx)
		if err != nil {
			return nil, err
		}
		if len(kls) == 0 {
			break
		}
		for _, kl := range kls {
			if kl == nil {
				continue
			}
			vol := parseFloat(kl.Volume)
			vwap := 0.0
			if vol > 0 {
				vwap = parseFloat(kl.QuoteAssetVolume) / vol
			}
			out = append(out, RawBar{
				T:  time.UnixMilli(kl.OpenTime).UTC().Format(time.RFC3339),
				O:  parseFloat(kl.Open),
				H:  parseFloat(kl.High),
				L:  parseFloat(kl.Low),
				C:  parseFloat(kl.Close),
				V:  vol,
				N:  kl.TradeNum,
				VW: vwap,
			})
		}
		last := kls[len(kls)-1].OpenTime
		if last <= cursor {
			break
		}
		cursor = last + 1
	}
	return out, nil
}

func binanceInterval(res market.Resolution) (string, error) {
	switch res.Unit {
	case market.UnitMinute:
		return fmt.Sprintf("%dm", res.Amount), nil
	case market.UnitHour:
		return fmt.Sprintf("%dh", res.Amount), nil
	case market.UnitDay:
		return "1d", nil
	default:
		return "", fmt.Errorf("binance 不支持的粒度: %s", res)
	}
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
