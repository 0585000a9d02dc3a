package server

import (
	"errors"
	"sync"

	"github.com/flooyd/game-server/protocol"
)

var (
	// ErrQueueClosed 目标连接已拆除，队列已丢弃
	ErrQueueClosed = errors.New("outbound queue closed")
	// ErrQueueFull 有界队列已满，消息被丢弃
	ErrQueueFull = errors.New("outbound queue full")
)

// OutboundQueue 每个连接一个的发送队列：多生产者、单消费者、FIFO
// Push 从不阻塞；Pop 阻塞直到有消息或队列被关闭
type OutboundQueue interface {
	Push(m protocol.Message) error
	Pop() (protocol.Message, bool)
	Close()
	Len() int
}

// QueueFactory 为每个新连接创建发送队列
type QueueFactory func() OutboundQueue

// NewQueueFactory limit<=0 为无界队列，否则为满则丢弃的有界队列
func NewQueueFactory(limit int) QueueFactory {
	if limit <= 0 {
		return func() OutboundQueue { return NewUnboundedQueue() }
	}
	return func() OutboundQueue { return NewBoundedQueue(limit) }
}

type unboundedQueue struct {
	mu     sync.Mutex
	items  []protocol.Message
	closed bool
	notify chan struct{}
	done   chan struct{}
}

// NewUnboundedQueue 无界队列（默认策略，没有背压）
func NewUnboundedQueue() OutboundQueue {
	return &unboundedQueue{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (q *unboundedQueue) Push(m protocol.Message) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.items = append(q.items, m)
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

func (q *unboundedQueue) Pop() (protocol.Message, bool) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return nil, false
		}
		if len(q.items) > 0 {
			m := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			q.mu.Unlock()
			return m, true
		}
		q.mu.Unlock()
		select {
		case <-q.notify:
		case <-q.done:
		}
	}
}

func (q *unboundedQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.items = nil
	close(q.done)
}

func (q *unboundedQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

type boundedQueue struct {
	mu     sync.RWMutex
	closed bool
	ch     chan protocol.Message
	done   chan struct{}
}

// NewBoundedQueue 有界队列：满则丢弃新消息，避免慢客户端占用内存
func NewBoundedQueue(limit int) OutboundQueue {
	return &boundedQueue{
		ch:   make(chan protocol.Message, limit),
		done: make(chan struct{}),
	}
}

func (q *boundedQueue) Push(m protocol.Message) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.ch <- m:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *boundedQueue) Pop() (protocol.Message, bool) {
	select {
	case <-q.done:
		return nil, false
	default:
	}
	select {
	case m := <-q.ch:
		return m, true
	case <-q.done:
		return nil, false
	}
}

func (q *boundedQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}

func (q *boundedQueue) Len() int { return len(q.ch) }
