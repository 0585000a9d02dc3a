package server

import (
	"sync/atomic"
)

// Metrics 记录服务运行期的关键指标（用于监控与调试）
type Metrics struct {
	ConnectionsAccepted int64 // 成功接入的连接数
	ConnectionsRejected int64 // 因注册失败被拒绝的连接数
	Disconnects         int64 // 完成拆除的连接数
	MovesRelayed        int64 // 被转发的移动消息数
	TextsRelayed        int64 // 被转发的留言消息数
	SnapshotsServed     int64 // 发出的全量快照数
	MalformedMessages   int64 // 解码失败导致断开的次数
	IgnoredMessages     int64 // 方向不对而被忽略的消息数
	QueueDropped        int64 // 有界队列满而丢弃的消息数
	EncodeErrors        int64 // 编码失败被跳过的消息数
}

func (m *Metrics) IncAccepted() { atomic.AddInt64(&m.ConnectionsAccepted, 1) }
func (m *Metrics) IncRejected() { atomic.AddInt64(&m.ConnectionsRejected, 1) }
func (m *Metrics) IncDisconnects() { atomic.AddInt64(&m.Disconnects, 1) }
func (m *Metrics) IncMovesRelayed() { atomic.AddInt64(&m.MovesRelayed, 1) }
func (m *Metrics) IncTextsRelayed() { atomic.AddInt64(&m.TextsRelayed, 1) }
func (m *Metrics) IncSnapshots() { atomic.AddInt64(&m.SnapshotsServed, 1) }
func (m *Metrics) IncMalformed() { atomic.AddInt64(&m.MalformedMessages, 1) }
func (m *Metrics) IncIgnored() { atomic.AddInt64(&m.IgnoredMessages, 1) }
func (m *Metrics) IncQueueDropped() { atomic.AddInt64(&m.QueueDropped, 1) }
func (m *Metrics) IncEncodeErrors() { atomic.AddInt64(&m.EncodeErrors, 1) }

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *Metrics) Snapshot() map[string]any {
	return map[string]any{
		"connections_accepted": atomic.LoadInt64(&m.ConnectionsAccepted),
		"connections_rejected": atomic.LoadInt64(&m.ConnectionsRejected),
		"disconnects":          atomic.LoadInt64(&m.Disconnects),
		"moves_relayed":        atomic.LoadInt64(&m.MovesRelayed),
		"texts_relayed":        atomic.LoadInt64(&m.TextsRelayed),
		"snapshots_served":     atomic.LoadInt64(&m.SnapshotsServed),
		"malformed_messages":   atomic.LoadInt64(&m.MalformedMessages),
		"ignored_messages":     atomic.LoadInt64(&m.IgnoredMessages),
		"queue_dropped":        atomic.LoadInt64(&m.QueueDropped),
		"encode_errors":        atomic.LoadInt64(&m.EncodeErrors),
	}
}
