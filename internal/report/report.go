package report

import (
	"fmt"
	"os"
	"path/filepath"

	"monte/internal/market"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// WriteKline 把某品种窗口内容渲染成 K 线 + 成交量的 HTML 报告。
func WriteKline(path, symbol string, bars market.Bars) error {
	if len(bars) == 0 {
		return fmt.Errorf("品种 %s 无数据可渲染", symbol)
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("创建报告目录失败: %w", err)
		}
	}

	x := make([]string, len(bars))
	klineData := make([]opts.KlineData, len(bars))
	volumeData := make([]opts.BarData, len(bars))
	for i, b := range bars {
		x[i] = b.Datetime.Format("01-02 15:04")
		klineData[i] = opts.KlineData{Value: [4]float64{b.Open, b.Close, b.Low, b.High}}
		volumeData[i] = opts.BarData{Value: b.Volume}
	}

	kline := charts.NewKLine()
	kline.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: symbol}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category"}),
		charts.WithYAxisOpts(opts.YAxis{Scale: opts.Bool(true)}),
	)
	kline.SetXAxis(x)
	kline.AddSeries(symbol, klineData)

	volume := charts.NewBar()
	volume.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: symbol + " 成交量"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
	)
	volume.SetXAxis(x)
	volume.AddSeries("Volume", volumeData)

	page := components.NewPage()
	page.AddCharts(kline, volume)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("创建报告文件失败: %w", err)
	}
	defer f.Close()
	if err := page.Render(f); err != nil {
		return fmt.Errorf("渲染报告失败: %w", err)
	}
	return nil
}
