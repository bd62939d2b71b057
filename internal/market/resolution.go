package market

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ResolutionUnit 表示采样单位。
type ResolutionUnit string

const (
	UnitMinute ResolutionUnit = "Min"
	UnitHour   ResolutionUnit = "Hour"
	UnitDay    ResolutionUnit = "Day"
)

// Resolution 描述回放采样粒度（单位 + 倍数），上限为 1 个交易日。
type Resolution struct {
	Amount int
	Unit   ResolutionUnit
}

// ParseResolution 解析 "1Min" / "15Min" / "1Hour" / "1Day" 形式的粒度。
func ParseResolution(input string) (Resolution, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return Resolution{}, fmt.Errorf("resolution 不能为空")
	}
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return Resolution{}, fmt.Errorf("resolution 缺少数量: %s", input)
	}
	amount, err := strconv.Atoi(s[:i])
	if err != nil {
		return Resolution{}, fmt.Errorf("resolution 数量无效: %s", input)
	}
	var unit ResolutionUnit
	switch strings.ToLower(s[i:]) {
	case "min", "minute", "minutes":
		unit = UnitMinute
	case "hour", "hours":
		unit = UnitHour
	case "day", "days":
		unit = UnitDay
	default:
		return Resolution{}, fmt.Errorf("不支持的采样单位: %s", s[i:])
	}
	r := Resolution{Amount: amount, Unit: unit}
	if err := r.Validate(); err != nil {
		return Resolution{}, err
	}
	return r, nil
}

// Validate 约束粒度不得超过 1 个交易日（一个市场交易日约 7 小时）。
func (r Resolution) Validate() error {
	if r.Amount <= 0 {
		return fmt.Errorf("resolution 数量需 > 0")
	}
	switch r.Unit {
	case UnitMinute:
		if r.Amount > 59 {
			return fmt.Errorf("分钟级粒度最大 59Min，当前为 %s", r)
		}
	case UnitHour:
		if r.Amount > 7 {
			return fmt.Errorf("小时级粒度最大 7Hour，当前为 %s", r)
		}
	case UnitDay:
		if r.Amount != 1 {
			return fmt.Errorf("日级粒度只支持 1Day，当前为 %s", r)
		}
	default:
		return fmt.Errorf("不支持的采样单位: %s", r.Unit)
	}
	return nil
}

// IsIntraday 判断是否为日内粒度。日级数据不做开收盘区间过滤。
func (r Resolution) IsIntraday() bool {
	return r.Unit != UnitDay
}

// Duration 返回单根 K 线覆盖的时长。
func (r Resolution) Duration() time.Duration {
	switch r.Unit {
	case UnitMinute:
		return time.Duration(r.Amount) * time.Minute
	case UnitHour:
		return time.Duration(r.Amount) * time.Hour
	default:
		return 24 * time.Hour
	}
}

func (r Resolution) String() string {
	return fmt.Sprintf("%d%s", r.Amount, r.Unit)
}
