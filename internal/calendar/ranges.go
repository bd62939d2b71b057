package calendar

import (
	"fmt"
	"time"
)

// Range 是一次批量拉取覆盖的连续日期子区间。
type Range struct {
	Start time.Time
	End   time.Time
}

func (r Range) String() string {
	return r.Start.Format("2006-01-02") + ".." + r.End.Format("2006-01-02")
}

// BufferRanges 把 [start,end] 按交易日密度切成有序子区间，每段覆盖
// dataBufferDays 个交易日，保证每次拉取的行数量级可控。
func BufferRanges(p Provider, start, end time.Time, dataBufferDays int) ([]Range, error) {
	if dataBufferDays <= 0 {
		return nil, fmt.Errorf("data_buffer_days 需 > 0")
	}
	sessions, err := p.SessionsInRange(start, end)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, nil
	}
	var out []Range
	for i := 0; i < len(sessions); i += dataBufferDays {
		j := i + dataBufferDays
		if j > len(sessions) {
			j = len(sessions)
		}
		out = append(out, Range{Start: sessions[i].Date, End: sessions[j-1].Date})
	}
	return out, nil
}
