package server

import (
	"errors"
	"io"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/flooyd/game-server/protocol"
)

// Connection 一个已接入的客户端：读协程与写协程各自独立运行
// 任一协程退出即触发拆除，拆除只执行一次
type Connection struct {
	m         *SessionManager
	key       ConnKey
	id        protocol.Identity
	transport Transport
	codec     protocol.Codec
	queue     OutboundQueue
	log       *zap.SugaredLogger

	once sync.Once
	done chan struct{}
}

func newConnection(m *SessionManager, key ConnKey, id protocol.Identity, t Transport, codec protocol.Codec, q OutboundQueue) *Connection {
	return &Connection{
		m:         m,
		key:       key,
		id:        id,
		transport: t,
		codec:     codec,
		queue:     q,
		log:       m.log.With("key", key, "id", id, "remote", t.RemoteAddr()),
		done:      make(chan struct{}),
	}
}

func (c *Connection) Key() ConnKey { return c.key }
func (c *Connection) ID() protocol.Identity { return c.id }
func (c *Connection) Done() <-chan struct{} { return c.done }

// Close 主动断开；重复调用无副作用
func (c *Connection) Close() { c.teardown() }

// start 启动读写协程；计数已在 join 中登记
func (c *Connection) start() {
	go c.writePump()
	go c.readPump()
}

// readPump 读取客户端消息并分发；读失败或解码失败即退出，不重试
func (c *Connection) readPump() {
	defer c.m.wg.Done()
	defer c.teardown()

	for {
		payload, err := c.transport.ReadFrame()
		if err != nil {
			switch {
			case errors.Is(err, protocol.ErrMalformed):
				c.m.metrics.IncMalformed()
				c.log.Warnw("bad frame, closing connection", "err", err)
			case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
				c.log.Debugw("read loop finished", "err", err)
			default:
				c.log.Infow("read failed", "err", err)
			}
			return
		}
		msg, err := c.codec.Decode(payload)
		if err != nil {
			c.m.metrics.IncMalformed()
			c.log.Warnw("malformed message, closing connection", "err", err)
			return
		}
		c.dispatch(msg)
	}
}

func (c *Connection) dispatch(msg protocol.Message) {
	switch v := msg.(type) {
	case protocol.RequestSnapshot:
		snap := snapshotMessage(c.m.registry.Snapshot())
		if err := c.queue.Push(snap); err != nil {
			if errors.Is(err, ErrQueueFull) {
				c.m.metrics.IncQueueDropped()
			}
			return
		}
		c.m.metrics.IncSnapshots()
	case protocol.Move:
		// 客户端携带的 ID 不可信，以连接自身身份为准
		if !c.m.relayMove(c.key, protocol.Move{ID: c.id, X: v.X, Y: v.Y}) {
			return
		}
		c.m.metrics.IncMovesRelayed()
	case protocol.UpdateMessage:
		if !c.m.relayText(c.key, protocol.UpdateMessage{ID: c.id, Text: v.Text}) {
			return
		}
		c.m.metrics.IncTextsRelayed()
	default:
		c.m.metrics.IncIgnored()
		c.log.Debugw("ignoring message", "kind", msg.Kind())
	}
}

// writePump 独立协程，负责从发送队列写出到连接
func (c *Connection) writePump() {
	defer c.m.wg.Done()
	defer c.teardown()

	for {
		msg, ok := c.queue.Pop()
		if !ok {
			return
		}
		b, err := c.codec.Encode(msg)
		if err != nil {
			c.m.metrics.IncEncodeErrors()
			c.log.Warnw("dropping unencodable message", "kind", msg.Kind(), "err", err)
			continue
		}
		if err := c.transport.WriteFrame(b); err != nil {
			c.log.Debugw("write failed", "err", err)
			return
		}
	}
}

// teardown 注销目标、移出玩家表并广播离开，然后关闭队列和连接以唤醒另一个协程
func (c *Connection) teardown() {
	c.once.Do(func() {
		c.m.leave(c)
		c.queue.Close()
		_ = c.transport.Close()
		close(c.done)
	})
}
