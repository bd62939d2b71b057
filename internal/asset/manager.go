package asset

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"monte/internal/calendar"
	"monte/internal/derived"
	"monte/internal/feed"
	"monte/internal/logger"
	"monte/internal/market"

	"github.com/google/uuid"
)

// 模拟生命周期状态。
const (
	StateCreated   = "created"
	StateStarted   = "started"
	StateRunning   = "running"
	StateExhausted = "exhausted"
)

// DefaultReferenceSymbol 是默认的基准品种，始终保持被跟踪，
// 用于回答整个模拟的时间查询。
const DefaultReferenceSymbol = "SPY"

// ManagerConfig 配置一次模拟运行。
type ManagerConfig struct {
	Calendar        calendar.Provider
	Fetcher         *feed.Fetcher
	Symbols         []string
	ReferenceSymbol string
	StartDate       time.Time
	EndDate         time.Time
	MaxRows         int
	StartBufferDays int
	DataBufferDays  int
	Registry        *derived.Registry
	ChannelBuffer   int
}

// Manager 持有资产注册表并驱动后台生产者：启动时同步预热，之后每次
// Advance 让每个品种前进一根 K 线；所有品种的缓冲在同一个 Chunk 上
// 同步补充，保持日历对齐。
type Manager struct {
	runID     string
	cal       calendar.Provider
	fetcher   *feed.Fetcher
	reference string
	startDate time.Time
	endDate   time.Time

	maxRows         int
	startBufferDays int
	dataBufferDays  int
	channelBuffer   int
	registry        *derived.Registry

	mu       sync.RWMutex
	assets   map[string]*Asset
	payloads <-chan feed.Payload
	state    string
	steps    int64
}

func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Calendar == nil {
		return nil, fmt.Errorf("calendar provider 不能为空")
	}
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("fetcher 不能为空")
	}
	if cfg.MaxRows <= 0 {
		return nil, fmt.Errorf("max_rows 需 > 0")
	}
	if cfg.StartBufferDays <= 0 {
		return nil, fmt.Errorf("start_buffer_days 需 > 0")
	}
	if cfg.DataBufferDays < 7 {
		return nil, fmt.Errorf("data_buffer_days 需 >= 7，当前为 %d", cfg.DataBufferDays)
	}
	if !cfg.StartDate.Before(cfg.EndDate) {
		return nil, fmt.Errorf("start_date 必须早于 end_date")
	}
	reference := cfg.ReferenceSymbol
	if reference == "" {
		reference = DefaultReferenceSymbol
	}
	m := &Manager{
		runID:           uuid.NewString(),
		cal:             cfg.Calendar,
		fetcher:         cfg.Fetcher,
		reference:       reference,
		startDate:       cfg.StartDate,
		endDate:         cfg.EndDate,
		maxRows:         cfg.MaxRows,
		startBufferDays: cfg.StartBufferDays,
		dataBufferDays:  cfg.DataBufferDays,
		channelBuffer:   cfg.ChannelBuffer,
		registry:        cfg.Registry,
		assets:          make(map[string]*Asset),
		state:           StateCreated,
	}
	m.watchLocked(reference)
	for _, sym := range cfg.Symbols {
		m.watchLocked(sym)
	}
	return m, nil
}

// RunID 返回本次模拟的唯一标识。
func (m *Manager) RunID() string { return m.runID }

// State 返回当前生命周期状态。
func (m *Manager) State() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Steps 返回已执行的 Advance 次数。
func (m *Manager) Steps() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.steps
}

func (m *Manager) watchLocked(symbol string) {
	if _, ok := m.assets[symbol]; ok {
		return
	}
	m.assets[symbol] = NewAsset(symbol, m.maxRows, m.startBufferDays, m.registry)
}

// Watch 把品种加入跟踪（幂等）。模拟启动后不再允许加入，
// 否则新品种会错过预热与已消费的 Chunk。
func (m *Manager) Watch(symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateCreated {
		return fmt.Errorf("模拟已启动，无法再加入品种 %s", symbol)
	}
	m.watchLocked(symbol)
	return nil
}

// Unwatch 移除跟踪的品种。基准品种永远保留：对它的移除是刻意的
// 空操作，但仍然返回 true，维持宽松契约。
func (m *Manager) Unwatch(symbol string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.assets[symbol]; !ok {
		return false
	}
	if symbol != m.reference {
		delete(m.assets, symbol)
	}
	return true
}

// IsWatching 判断品种是否在跟踪中。
func (m *Manager) IsWatching(symbol string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.assets[symbol]
	return ok
}

// Symbols 返回跟踪中的品种（排序后）。
func (m *Manager) Symbols() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.symbolsLocked()
}

func (m *Manager) symbolsLocked() []string {
	out := make([]string, 0, len(m.assets))
	for sym := range m.assets {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Startup 同步预热并启动后台生产者：向前取 start_buffer_days 个交易日
// 的历史一次性拉取、灌入缓冲并全部排空，保证每个品种带着已填充的窗口
// （以及足够天数时已算好的派生列）进入主循环。
func (m *Manager) Startup(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateCreated {
		return fmt.Errorf("状态 %s 下不能重复启动", m.state)
	}

	warm, err := calendar.SessionsBefore(m.cal, m.startDate, m.startBufferDays)
	if err != nil {
		return err
	}
	warmRange := calendar.Range{Start: warm[0].Date, End: warm[len(warm)-1].Date}
	logger.Infof("[asset] 模拟 %s 预热区间 %s（%d 个交易日）", m.runID, warmRange, len(warm))

	chunk, err := m.fetcher.Fetch(ctx, m.symbolsLocked(), warmRange)
	if err != nil {
		return err
	}
	if err := m.assignChunkLocked(chunk); err != nil {
		return err
	}
	for _, sym := range m.symbolsLocked() {
		a := m.assets[sym]
		for !a.PendingEmpty() {
			if err := a.AdmitNext(); err != nil {
				return err
			}
		}
	}

	ranges, err := calendar.BufferRanges(m.cal, m.startDate, m.endDate, m.dataBufferDays)
	if err != nil {
		return err
	}
	producer, err := feed.NewProducer(m.fetcher, m.symbolsLocked(), ranges, m.channelBuffer)
	if err != nil {
		return err
	}
	m.payloads = producer.Out()
	go producer.Run(ctx)

	m.state = StateStarted
	logger.Infof("[asset] 模拟 %s 启动：%d 个品种，%d 个拉取区间", m.runID, len(m.assets), len(ranges))
	return nil
}

// Advance 推进一根 K 线：任一品种的缓冲耗尽时阻塞等待下一个 Chunk
// 并同步补充所有品种，然后对每个品种恰好调用一次 AdmitNext。
func (m *Manager) Advance() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case StateCreated:
		return fmt.Errorf("模拟尚未启动")
	case StateExhausted:
		return ErrEndOfSimulation
	}

	for m.anyPendingEmptyLocked() {
		payload, ok := <-m.payloads
		if !ok {
			m.state = StateExhausted
			return ErrProducerFailed
		}
		if payload.Done {
			m.state = StateExhausted
			return ErrEndOfSimulation
		}
		if payload.Chunk == nil {
			return ErrInvalidChunk
		}
		if err := m.assignChunkLocked(payload.Chunk); err != nil {
			return err
		}
	}

	for _, sym := range m.symbolsLocked() {
		if err := m.assets[sym].AdmitNext(); err != nil {
			return fmt.Errorf("品种 %s 推进失败: %w", sym, err)
		}
	}
	m.state = StateRunning
	m.steps++
	return nil
}

func (m *Manager) anyPendingEmptyLocked() bool {
	for _, a := range m.assets {
		if a.PendingEmpty() {
			return true
		}
	}
	return false
}

// assignChunkLocked 把同一 Chunk 的各品种序列同时灌入全部缓冲。
// 灌入前校验各品种时间戳序列与基准品种一致，不一致立即失败，
// 不再默认对齐成立。
func (m *Manager) assignChunkLocked(chunk feed.Chunk) error {
	for sym := range m.assets {
		if _, ok := chunk[sym]; !ok {
			return fmt.Errorf("%w: chunk 缺少品种 %s", ErrInvalidChunk, sym)
		}
	}
	refTS := timestamps(chunk[m.reference])
	for _, sym := range m.symbolsLocked() {
		if sym == m.reference {
			continue
		}
		if !equalTimestamps(refTS, timestamps(chunk[sym])) {
			return fmt.Errorf("%w: %s 与基准 %s 不一致", ErrBufferMisaligned, sym, m.reference)
		}
	}
	for sym, a := range m.assets {
		a.SetPending(chunk[sym])
	}
	return nil
}

func timestamps(bars market.Bars) []string {
	out := make([]string, len(bars))
	for i, b := range bars {
		out[i] = b.Timestamp
	}
	return out
}

func equalTimestamps(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// LatestTimestamp 用基准品种回答整个模拟的最新时间戳。
func (m *Manager) LatestTimestamp() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.assets[m.reference].LatestTimestamp()
}

// LatestDatetime 用基准品种回答整个模拟的最新 UTC 时间。
func (m *Manager) LatestDatetime() (time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.assets[m.reference].LatestDatetime()
}

// ReferenceSymbol 返回基准品种代码。
func (m *Manager) ReferenceSymbol() string { return m.reference }

// WindowSnapshot 返回某品种窗口内容的副本。
func (m *Manager) WindowSnapshot(symbol string) (market.Bars, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.assets[symbol]
	if !ok {
		return nil, fmt.Errorf("未跟踪的品种: %s", symbol)
	}
	return a.Window(), nil
}

// LatestSnapshot 返回某品种最新一根 K 线的副本。
func (m *Manager) LatestSnapshot(symbol string) (market.Bar, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.assets[symbol]
	if !ok {
		return market.Bar{}, fmt.Errorf("未跟踪的品种: %s", symbol)
	}
	window := a.Window()
	if len(window) == 0 {
		return market.Bar{}, ErrEmptyWindow
	}
	return window[len(window)-1], nil
}
