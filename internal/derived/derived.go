package derived

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"monte/internal/market"

	talib "github.com/markcheno/go-talib"
)

// Identifier 标识一次派生列求值对应的窗口状态（品种 + 最新时间戳）。
type Identifier struct {
	Symbol    string
	Timestamp string
}

// Func 是派生列的纯函数签名：窗口状态 -> 标量。不得修改 window。
type Func func(id Identifier, window market.Bars) float64

// Registry 维护名称 -> 计算函数的有序映射。求值按注册顺序进行，
// 通过查表调用而非动态分发。
type Registry struct {
	order []string
	funcs map[string]Func
}

func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Func)}
}

// Register 注册一个派生列。重名为配置错误。
func (r *Registry) Register(name string, fn Func) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("派生列名称不能为空")
	}
	if fn == nil {
		return fmt.Errorf("派生列 %s 的函数不能为空", name)
	}
	if _, ok := r.funcs[name]; ok {
		return fmt.Errorf("派生列 %s 重复注册", name)
	}
	r.order = append(r.order, name)
	r.funcs[name] = fn
	return nil
}

// Names 返回注册顺序的列名。
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Compute 对当前窗口求出全部派生列。
func (r *Registry) Compute(id Identifier, window market.Bars) map[string]float64 {
	out := make(map[string]float64, len(r.order))
	for _, name := range r.order {
		out[name] = r.funcs[name](id, window)
	}
	return out
}

// builtins 是可在配置里按名启用的内置派生列。
var builtins = map[string]Func{
	"sma_10":   smaN(10),
	"sma_20":   smaN(20),
	"rsi_14":   rsiN(14),
	"atr_14":   atrN(14),
	"vwap_gap": vwapGap,
}

// BuiltinNames 返回全部内置列名（排序后），用于错误提示。
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Builtin 按名称构建一个只含内置列的 Registry。未知名称直接报错，
// 让配置问题在启动前暴露。
func Builtin(names []string) (*Registry, error) {
	reg := NewRegistry()
	for _, name := range names {
		fn, ok := builtins[strings.TrimSpace(name)]
		if !ok {
			return nil, fmt.Errorf("未知派生列 %q（可用: %s）", name, strings.Join(BuiltinNames(), ", "))
		}
		if err := reg.Register(strings.TrimSpace(name), fn); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func smaN(period int) Func {
	return func(_ Identifier, window market.Bars) float64 {
		closes := window.Closes()
		if len(closes) < period {
			return math.NaN()
		}
		out := talib.Sma(closes, period)
		return out[len(out)-1]
	}
}

func rsiN(period int) Func {
	return func(_ Identifier, window market.Bars) float64 {
		closes := window.Closes()
		if len(closes) < period+1 {
			return math.NaN()
		}
		out := talib.Rsi(closes, period)
		return out[len(out)-1]
	}
}

func atrN(period int) Func {
	return func(_ Identifier, window market.Bars) float64 {
		if len(window) < period+1 {
			return math.NaN()
		}
		out := talib.Atr(window.Highs(), window.Lows(), window.Closes(), period)
		return out[len(out)-1]
	}
}

// vwapGap 输出收盘价偏离成交量加权均价的比例。
func vwapGap(_ Identifier, window market.Bars) float64 {
	if len(window) == 0 {
		return math.NaN()
	}
	last := window[len(window)-1]
	if last.VWAP == 0 {
		return math.NaN()
	}
	return (last.Close - last.VWAP) / last.VWAP
}
