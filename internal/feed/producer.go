package feed

import (
	"context"
	"fmt"

	"monte/internal/calendar"
	"monte/internal/logger"
)

// Payload 是生产者经通道下发的单元：一个完整 Chunk，或终止哨兵（Done）。
type Payload struct {
	Chunk Chunk
	Done  bool
}

// Producer 在独立 goroutine 中按 BufferRange 顺序逐段拉取，把每个完整
// Chunk 推到单向通道上；全部完成后发送哨兵并关闭通道。拉取失败时记录
// 错误并直接关闭通道（无哨兵），消费方应将其视为生产者异常终止。
type Producer struct {
	fetcher *Fetcher
	symbols []string
	ranges  []calendar.Range
	out     chan Payload
}

func NewProducer(fetcher *Fetcher, symbols []string, ranges []calendar.Range, buffer int) (*Producer, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher 不能为空")
	}
	if len(symbols) == 0 {
		return nil, fmt.Errorf("symbols 不能为空")
	}
	if buffer < 0 {
		buffer = 0
	}
	return &Producer{
		fetcher: fetcher,
		symbols: append([]string(nil), symbols...),
		ranges:  append([]calendar.Range(nil), ranges...),
		out:     make(chan Payload, buffer),
	}, nil
}

// Out 返回只读通道。仅由 Producer 写入。
func (p *Producer) Out() <-chan Payload {
	return p.out
}

// Run 是生产者主体，调用方需 `go p.Run(ctx)` 启动。
func (p *Producer) Run(ctx context.Context) {
	defer close(p.out)
	for _, r := range p.ranges {
		chunk, err := p.fetcher.Fetch(ctx, p.symbols, r)
		if err != nil {
			logger.Errorf("[feed] 区间 %s 拉取失败，生产者退出: %v", r, err)
			return
		}
		select {
		case p.out <- Payload{Chunk: chunk}:
		case <-ctx.Done():
			logger.Warnf("[feed] 生产者被取消: %v", ctx.Err())
			return
		}
	}
	select {
	case p.out <- Payload{Done: true}:
	case <-ctx.Done():
		logger.Warnf("[feed] 生产者被取消: %v", ctx.Err())
	}
}
