package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/flooyd/game-server/protocol"
)

// ErrShuttingDown Shutdown 开始后拒绝新的接入
var ErrShuttingDown = errors.New("session manager is shutting down")

// Options SessionManager 的可选依赖，零值字段使用默认实现
type Options struct {
	Logger       *zap.SugaredLogger
	Codec        protocol.Codec // TCP 连接使用的编解码器
	Spawn        SpawnPolicy
	Queues       QueueFactory
	WriteTimeout time.Duration
}

// SessionManager 管理所有在线连接：接入、加入广播、拆除
type SessionManager struct {
	log          *zap.SugaredLogger
	codec        protocol.Codec
	spawn        SpawnPolicy
	queues       QueueFactory
	writeTimeout time.Duration

	registry    *Registry
	broadcaster *Broadcaster
	metrics     *Metrics

	nextID atomic.Uint64

	// membership 串行化加入与离开；转发移动时持读锁，保证离开广播之后不会再出现该玩家的移动
	membership sync.RWMutex
	closing    bool // Shutdown 开始后为 true，受 membership 保护

	connsMu sync.Mutex
	conns   map[ConnKey]*Connection
	wg      sync.WaitGroup
}

func NewSessionManager(opts Options) *SessionManager {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if opts.Codec == nil {
		opts.Codec = protocol.BinaryCodec{}
	}
	if opts.Spawn == nil {
		opts.Spawn = DefaultFixedSpawn()
	}
	if opts.Queues == nil {
		opts.Queues = NewQueueFactory(0)
	}
	metrics := &Metrics{}
	return &SessionManager{
		log:          opts.Logger,
		codec:        opts.Codec,
		spawn:        opts.Spawn,
		queues:       opts.Queues,
		writeTimeout: opts.WriteTimeout,
		registry:     NewRegistry(),
		broadcaster:  NewBroadcaster(metrics),
		metrics:      metrics,
		conns:        make(map[ConnKey]*Connection),
	}
}

func (m *SessionManager) Registry() *Registry { return m.registry }
func (m *SessionManager) Broadcaster() *Broadcaster { return m.broadcaster }
func (m *SessionManager) Metrics() *Metrics { return m.metrics }
func (m *SessionManager) Spawn() SpawnPolicy { return m.spawn }

// ServeTCP 接入循环：每条连接交给独立协程，自身从不阻塞在某个客户端上
// ctx 取消时关闭监听并返回 nil
func (m *SessionManager) ServeTCP(ctx context.Context, ln net.Listener) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = ln.Close()
		case <-stop:
		}
	}()

	m.log.Infof("accepting tcp clients on %s (codec=%s)", ln.Addr(), m.codec.Name())
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			m.log.Warnw("accept failed", "err", err)
			time.Sleep(50 * time.Millisecond)
			continue
		}
		if _, err := m.Attach(NewTCPTransport(conn, m.writeTimeout), m.codec); err != nil {
			m.log.Warnw("rejecting tcp client", "remote", conn.RemoteAddr().String(), "err", err)
		}
	}
}

// Attach 接入一条已建立的流：分配身份、注册、通知新玩家与其他玩家，然后启动读写协程
// 失败时关闭该连接，不影响其他连接
func (m *SessionManager) Attach(t Transport, codec protocol.Codec) (*Connection, error) {
	return m.attach(NewConnKey(), t, codec)
}

func (m *SessionManager) attach(key ConnKey, t Transport, codec protocol.Codec) (*Connection, error) {
	id := protocol.Identity(m.nextID.Add(1))
	c := newConnection(m, key, id, t, codec, m.queues())
	state := m.spawn.Spawn(id)
	state.ID = id

	if err := m.join(c, state); err != nil {
		m.metrics.IncRejected()
		c.queue.Close()
		_ = t.Close()
		return nil, err
	}
	m.metrics.IncAccepted()
	c.log.Infow("client connected", "x", state.X, "y", state.Y)
	c.start()
	return c, nil
}

// join 顺序：玩家表插入 → Connect 入队 → 注册为广播目标 → 快照入队 → 向其他人广播加入
// Connect 在注册前入队，因此新玩家收到的第一条消息一定是自己的 Connect
func (m *SessionManager) join(c *Connection, state protocol.PlayerState) error {
	m.membership.Lock()
	defer m.membership.Unlock()

	if m.closing {
		return ErrShuttingDown
	}
	if err := m.registry.Insert(c.key, Player{Remote: c.transport.RemoteAddr(), PlayerState: state}); err != nil {
		return fmt.Errorf("register %s: %w", c.key, err)
	}
	if err := c.queue.Push(protocol.Connect{ID: c.id}); err != nil {
		m.registry.Remove(c.key)
		return fmt.Errorf("queue connect for %s: %w", c.key, err)
	}
	if err := m.broadcaster.Add(c.key, c.queue); err != nil {
		m.registry.Remove(c.key)
		return fmt.Errorf("add broadcast target %s: %w", c.key, err)
	}

	m.connsMu.Lock()
	m.conns[c.key] = c
	m.connsMu.Unlock()
	// 在锁内登记，Shutdown 的 Wait 一定发生在此之后
	m.wg.Add(2)

	if err := c.queue.Push(snapshotMessage(m.registry.Snapshot())); err == nil {
		m.metrics.IncSnapshots()
	}
	m.broadcaster.Broadcast(c.key, protocol.OtherPlayerJoined{Player: state})
	return nil
}

// relayMove 更新位置并转发给其他人；连接已在拆除时返回 false
func (m *SessionManager) relayMove(key ConnKey, mv protocol.Move) bool {
	m.membership.RLock()
	defer m.membership.RUnlock()
	if _, err := m.registry.UpdatePosition(key, mv.X, mv.Y); err != nil {
		return false
	}
	m.broadcaster.Broadcast(key, mv)
	return true
}

// relayText 保存留言并转发给其他人；连接已在拆除时返回 false
func (m *SessionManager) relayText(key ConnKey, u protocol.UpdateMessage) bool {
	m.membership.RLock()
	defer m.membership.RUnlock()
	if _, err := m.registry.UpdateText(key, u.Text); err != nil {
		return false
	}
	m.broadcaster.Broadcast(key, u)
	return true
}

// leave 注销目标、移出玩家表，并用移除时的记录广播 Disconnect；对同一连接重复调用无副作用
func (m *SessionManager) leave(c *Connection) {
	m.membership.Lock()
	m.broadcaster.Remove(c.key)
	p, ok := m.registry.Remove(c.key)
	if ok {
		m.broadcaster.Broadcast(c.key, protocol.Disconnect{ID: p.ID})
	}
	m.membership.Unlock()

	m.connsMu.Lock()
	delete(m.conns, c.key)
	m.connsMu.Unlock()

	if ok {
		m.metrics.IncDisconnects()
		c.log.Infow("client disconnected")
	}
}

// Disconnect 按句柄断开连接；句柄不存在时返回 false
func (m *SessionManager) Disconnect(key ConnKey) bool {
	m.connsMu.Lock()
	c, ok := m.conns[key]
	m.connsMu.Unlock()
	if !ok {
		return false
	}
	c.Close()
	return true
}

// Shutdown 断开所有连接并等待读写协程退出；之后的 Attach 返回 ErrShuttingDown
func (m *SessionManager) Shutdown() {
	m.membership.Lock()
	m.closing = true
	m.membership.Unlock()

	m.connsMu.Lock()
	conns := make([]*Connection, 0, len(m.conns))
	for _, c := range m.conns {
		conns = append(conns, c)
	}
	m.connsMu.Unlock()

	for _, c := range conns {
		c.Close()
	}
	m.wg.Wait()
	m.log.Infow("all connections closed", "count", len(conns))
}
