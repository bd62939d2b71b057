package replay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"monte/internal/asset"
	"monte/internal/calendar"
	"monte/internal/config"
	"monte/internal/derived"
	"monte/internal/feed"
	"monte/internal/logger"
	"monte/internal/report"

	"golang.org/x/sync/errgroup"
)

// App 把配置装配成一次可运行的回放：数据源、缓存、日历、派生列
// 注册表与资产管理器，外加可选的观察用 HTTP 服务。
type App struct {
	cfg     *config.Config
	manager *asset.Manager
	cache   *feed.Cache
	server  *http.Server
}

func NewApp(cfg *config.Config) (*App, error) {
	loc, err := cfg.Simulation.Location()
	if err != nil {
		return nil, err
	}
	start, err := cfg.Simulation.Start()
	if err != nil {
		return nil, err
	}
	end, err := cfg.Simulation.End()
	if err != nil {
		return nil, err
	}

	var cal calendar.Provider
	switch cfg.Simulation.Calendar {
	case "continuous":
		cal = calendar.NewContinuousCalendar()
	default:
		cal = calendar.NewEquityCalendar(loc, cfg.Simulation.Holidays)
	}

	var source feed.BarSource
	switch cfg.Source.Kind {
	case "binance":
		source = feed.NewBinanceSource(cfg.Source.BaseURL)
	default:
		source = feed.NewAlpacaSource(feed.AlpacaConfig{
			BaseURL:         cfg.Source.BaseURL,
			KeyID:           cfg.Source.KeyID,
			SecretKey:       cfg.Source.SecretKey,
			RateLimitPerMin: cfg.Source.RateLimitPerMin,
		})
	}

	app := &App{cfg: cfg}
	if cfg.Cache.Enabled {
		cache, err := feed.NewCache(cfg.Cache.Dir)
		if err != nil {
			return nil, err
		}
		app.cache = cache
		source = feed.NewCachedSource(source, cache)
	}

	fetcher, err := feed.NewFetcher(source, cal, cfg.Simulation.Resolution)
	if err != nil {
		return nil, err
	}

	registry, err := derived.Builtin(cfg.Simulation.DerivedColumns)
	if err != nil {
		return nil, err
	}

	manager, err := asset.NewManager(asset.ManagerConfig{
		Calendar:        cal,
		Fetcher:         fetcher,
		Symbols:         cfg.Simulation.Symbols,
		ReferenceSymbol: cfg.Simulation.ReferenceSymbol,
		StartDate:       start,
		EndDate:         end,
		MaxRows:         cfg.Simulation.MaxRows,
		StartBufferDays: cfg.Simulation.StartBufferDays,
		DataBufferDays:  cfg.Simulation.DataBufferDays,
		Registry:        registry,
	})
	if err != nil {
		return nil, err
	}
	app.manager = manager

	if cfg.HTTP.Enabled {
		app.server = &http.Server{
			Addr:    cfg.HTTP.Addr,
			Handler: newRouter(manager),
		}
	}
	return app, nil
}

// Manager 暴露底层管理器，测试与上层策略代码会用到。
func (a *App) Manager() *asset.Manager { return a.manager }

// Run 启动模拟并推进到数据耗尽。HTTP 服务与回放主循环跑在同一个
// errgroup 里，任一侧出错都会终止另一侧。
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	if a.server != nil {
		g.Go(func() error {
			logger.Infof("[replay] HTTP 服务监听 %s", a.server.Addr)
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("HTTP 服务异常退出: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			return a.server.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		defer cancel()
		return a.replay(ctx)
	})
	return g.Wait()
}

func (a *App) replay(ctx context.Context) error {
	began := time.Now()
	if err := a.manager.Startup(ctx); err != nil {
		return fmt.Errorf("模拟启动失败: %w", err)
	}
	lastDate := ""
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		err := a.manager.Advance()
		if errors.Is(err, asset.ErrEndOfSimulation) {
			break
		}
		if err != nil {
			return fmt.Errorf("模拟推进失败: %w", err)
		}
		if dt, err := a.manager.LatestDatetime(); err == nil {
			if date := dt.Format("2006-01-02"); date != lastDate {
				logger.Infof("[replay] 进入交易日 %s（第 %d 步）", date, a.manager.Steps())
				lastDate = date
			}
		}
	}
	logger.Infof("[replay] 模拟 %s 完成：共 %d 步，耗时 %s",
		a.manager.RunID(), a.manager.Steps(), time.Since(began).Round(time.Millisecond))

	if path := a.cfg.App.ReportPath; path != "" {
		symbol := a.manager.ReferenceSymbol()
		window, err := a.manager.WindowSnapshot(symbol)
		if err != nil {
			return err
		}
		if err := report.WriteKline(path, symbol, window); err != nil {
			return err
		}
		logger.Infof("[replay] 报告已写入 %s", path)
	}
	return nil
}

func (a *App) close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			logger.Warnf("[replay] 关闭缓存失败: %v", err)
		}
	}
}
