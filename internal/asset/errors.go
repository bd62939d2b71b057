package asset

import "errors"

var (
	// ErrEmptyWindow 在窗口尚无任何 K 线时读取最新状态。调用方错误。
	ErrEmptyWindow = errors.New("窗口为空，尚未注入任何 K 线")

	// ErrEmptyBuffer 在待入窗缓冲为空时调用 AdmitNext。
	ErrEmptyBuffer = errors.New("待入窗缓冲为空")

	// ErrEndOfSimulation 表示收到终止哨兵，历史数据已回放完毕。预期信号，非故障。
	ErrEndOfSimulation = errors.New("模拟结束：没有更多交易日可回放")

	// ErrInvalidChunk 表示生产者下发了既非 Chunk 也非哨兵的载荷，属于契约缺陷。
	ErrInvalidChunk = errors.New("收到非法的 chunk 载荷")

	// ErrProducerFailed 表示通道在哨兵之前被关闭，生产者异常终止。
	ErrProducerFailed = errors.New("生产者异常终止（通道在哨兵前关闭）")

	// ErrBufferMisaligned 表示同一 Chunk 内各品种的时间戳序列不一致。
	ErrBufferMisaligned = errors.New("品种间缓冲时间戳未对齐")
)
