package server

import (
	"errors"
	"sync"

	"github.com/flooyd/game-server/protocol"
)

// Broadcaster 连接句柄 → 发送队列的目标表
// 入队不阻塞，因此可以在锁内完成；已拆除的目标直接跳过
type Broadcaster struct {
	mu      sync.RWMutex
	targets map[ConnKey]OutboundQueue
	metrics *Metrics
}

func NewBroadcaster(metrics *Metrics) *Broadcaster {
	if metrics == nil {
		metrics = &Metrics{}
	}
	return &Broadcaster{
		targets: make(map[ConnKey]OutboundQueue),
		metrics: metrics,
	}
}

// Add 注册广播目标
func (b *Broadcaster) Add(key ConnKey, q OutboundQueue) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.targets[key]; ok {
		return ErrDuplicateKey
	}
	b.targets[key] = q
	return nil
}

// Remove 注销目标并返回其队列；返回后不会再有广播写入该队列
func (b *Broadcaster) Remove(key ConnKey) (OutboundQueue, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.targets[key]
	if ok {
		delete(b.targets, key)
	}
	return q, ok
}

// Send 只发给一个目标
func (b *Broadcaster) Send(key ConnKey, m protocol.Message) error {
	b.mu.RLock()
	q, ok := b.targets[key]
	b.mu.RUnlock()
	if !ok {
		return ErrQueueClosed
	}
	return b.push(q, m)
}

// Broadcast 发给除 exclude 外的所有目标，返回成功入队的数量
func (b *Broadcaster) Broadcast(exclude ConnKey, m protocol.Message) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for key, q := range b.targets {
		if key == exclude {
			continue
		}
		if b.push(q, m) == nil {
			n++
		}
	}
	return n
}

// Len 当前目标数
func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.targets)
}

func (b *Broadcaster) push(q OutboundQueue, m protocol.Message) error {
	err := q.Push(m)
	if errors.Is(err, ErrQueueFull) {
		b.metrics.IncQueueDropped()
	}
	return err
}
