package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"monte/internal/market"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

const alpacaPageLimit = 10000

// AlpacaSource 基于 Alpaca Market Data v2 的多品种 bars 接口。
type AlpacaSource struct {
	baseURL   string
	keyID     string
	secretKey string
	client    *http.Client
	limiter   *rate.Limiter
}

type AlpacaConfig struct {
	BaseURL         string
	KeyID           string
	SecretKey       string
	RateLimitPerMin int
}

func NewAlpacaSource(cfg AlpacaConfig) *AlpacaSource {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://data.alpaca.markets"
	}
	perSec := rate.Limit(float64(cfg.RateLimitPerMin) / 60.0)
	if cfg.RateLimitPerMin <= 0 {
		perSec = 3
	}
	return &AlpacaSource{
		baseURL:   base,
		keyID:     cfg.KeyID,
		secretKey: cfg.SecretKey,
		client:    &http.Client{Timeout: 30 * time.Second},
		limiter:   rate.NewLimiter(perSec, 1),
	}
}

func (s *AlpacaSource) Name() string { return "alpaca" }

// BulkBars 分页拉取 [start,end] 区间内全部品种的原始行。
func (s *AlpacaSource) BulkBars(ctx context.Context, symbols []string, res market.Resolution, start, end time.Time) (map[string][]RawBar, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("symbols 不能为空")
	}
	out := make(map[string][]RawBar, len(symbols))
	for _, sym := range symbols {
		out[sym] = nil
	}
	pageToken := ""
	for {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		body, err := s.fetchPage(ctx, symbols, res, start, end, pageToken)
		if err != nil {
			return nil, err
		}
		bars := gjson.GetBytes(body, "bars")
		if bars.Exists() {
			bars.ForEach(func(sym, rows gjson.Result) bool {
				list := out[sym.String()]
				rows.ForEach(func(_, row gjson.Result) bool {
					list = append(list, RawBar{
						T:  row.Get("t").String(),
						O:  row.Get("o").Float(),
						H:  row.Get("h").Float(),
						L:  row.Get("l").Float(),
						C:  row.Get("c").Float(),
						V:  row.Get("v").Float(),
						N:  row.Get("n").Int(),
						VW: row.Get("vw").Float(),
					})
					return true
				})
				out[sym.String()] = list
				return true
			})
		}
		next := gjson.GetBytes(body, "next_page_token")
		if !next.Exists() || next.Type == gjson.Null || next.String() == "" {
			break
		}
		pageToken = next.String()
	}
	return out, nil
}

func (s *AlpacaSource) fetchPage(ctx context.Context, symbols []string, res market.Resolution, start, end time.Time, pageToken string) ([]byte, error) {
	u, err := url.Parse(s.baseURL + "/v2/stocks/bars")
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("symbols", strings.Join(symbols, ","))
	q.Set("timeframe", res.String())
	q.Set("start", start.UTC().Format(time.RFC3339))
	q.Set("end", end.UTC().Format(time.RFC3339))
	q.Set("limit", fmt.Sprintf("%d", alpacaPageLimit))
	q.Set("adjustment", "raw")
	if pageToken != "" {
		q.Set("page_token", pageToken)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("APCA-API-KEY-ID", s.keyID)
	req.Header.Set("APCA-API-SECRET-KEY", s.secretKey)
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("alpaca 返回状态码 %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
