package calendar

import (
	"fmt"
	"time"
)

// Session 描述一个交易日的日历定义：日期 + 当天的开收盘边界。
type Session struct {
	Date  time.Time
	Open  time.Time
	Close time.Time
}

// Provider 按日期区间返回有序交易日序列。区间左右皆闭。
type Provider interface {
	SessionsInRange(start, end time.Time) ([]Session, error)
}

// EquityCalendar 生成股票市场的常规交易日：周一至周五 09:30–16:00（所在时区），
// 跳过配置的休市日。
type EquityCalendar struct {
	loc      *time.Location
	holidays map[string]bool
}

func NewEquityCalendar(loc *time.Location, holidays []string) *EquityCalendar {
	if loc == nil {
		loc = time.UTC
	}
	set := make(map[string]bool, len(holidays))
	for _, h := range holidays {
		set[h] = true
	}
	return &EquityCalendar{loc: loc, holidays: set}
}

func (c *EquityCalendar) SessionsInRange(start, end time.Time) ([]Session, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("日历区间非法: start=%s end=%s", start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	var out []Session
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, c.loc)
	last := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, c.loc)
	for !day.After(last) {
		if wd := day.Weekday(); wd != time.Saturday && wd != time.Sunday {
			if !c.holidays[day.Format("2006-01-02")] {
				out = append(out, Session{
					Date:  day,
					Open:  time.Date(day.Year(), day.Month(), day.Day(), 9, 30, 0, 0, c.loc),
					Close: time.Date(day.Year(), day.Month(), day.Day(), 16, 0, 0, 0, c.loc),
				})
			}
		}
		day = day.AddDate(0, 0, 1)
	}
	return out, nil
}

// ContinuousCalendar 用于 7x24 连续市场（加密货币）：每个自然日都是一个
// 00:00–24:00 UTC 的交易日。
type ContinuousCalendar struct{}

func NewContinuousCalendar() *ContinuousCalendar { return &ContinuousCalendar{} }

func (c *ContinuousCalendar) SessionsInRange(start, end time.Time) ([]Session, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("日历区间非法: start=%s end=%s", start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	var out []Session
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	last := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	for !day.After(last) {
		out = append(out, Session{
			Date:  day,
			Open:  day,
			Close: day.Add(24*time.Hour - time.Millisecond),
		})
		day = day.AddDate(0, 0, 1)
	}
	return out, nil
}

// SessionsBefore 返回严格早于 start 的最近 n 个交易日，用于预热窗口。
// 向前多看 30 个自然日以吞掉节假日段。
func SessionsBefore(p Provider, start time.Time, n int) ([]Session, error) {
	if n <= 0 {
		return nil, nil
	}
	lookback := start.AddDate(0, 0, -(n + 30))
	sessions, err := p.SessionsInRange(lookback, start.AddDate(0, 0, -1))
	if err != nil {
		return nil, err
	}
	// 只保留 start 之前的交易日（按日历日比较，避免跨时区截断问题）
	cut := len(sessions)
	for cut > 0 {
		s := sessions[cut-1]
		if s.Date.Format("2006-01-02") < start.In(s.Date.Location()).Format("2006-01-02") {
			break
		}
		cut--
	}
	sessions = sessions[:cut]
	if len(sessions) < n {
		return nil, fmt.Errorf("预热天数不足: 需要 %d 个交易日，仅找到 %d 个", n, len(sessions))
	}
	return sessions[len(sessions)-n:], nil
}
