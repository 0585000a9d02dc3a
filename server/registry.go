package server

import (
	"errors"
	"sort"
	"sync"

	"github.com/flooyd/game-server/protocol"
)

var (
	// ErrDuplicateKey 插入时连接句柄已存在
	ErrDuplicateKey = errors.New("duplicate connection key")
	// ErrNotFound 连接句柄不存在（通常是连接正在拆除，属于正常竞争）
	ErrNotFound = errors.New("connection key not found")
)

// Registry 在线玩家表：所有读写都在同一把锁下完成，不做 I/O
type Registry struct {
	mu      sync.RWMutex
	players map[ConnKey]*Player
}

func NewRegistry() *Registry {
	return &Registry{players: make(map[ConnKey]*Player)}
}

// Insert 加入玩家
func (r *Registry) Insert(key ConnKey, p Player) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.players[key]; ok {
		return ErrDuplicateKey
	}
	p.Key = key
	r.players[key] = &p
	return nil
}

// UpdatePosition 就地修改位置，返回修改后的状态
func (r *Registry) UpdatePosition(key ConnKey, x, y float32) (protocol.PlayerState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[key]
	if !ok {
		return protocol.PlayerState{}, ErrNotFound
	}
	p.X = x
	p.Y = y
	return p.PlayerState, nil
}

// UpdateText 替换玩家留言，返回其身份
func (r *Registry) UpdateText(key ConnKey, text string) (protocol.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[key]
	if !ok {
		return 0, ErrNotFound
	}
	p.Text = text
	return p.ID, nil
}

// Remove 移除并返回最后已知状态；重复移除返回 false
func (r *Registry) Remove(key ConnKey) (Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[key]
	if !ok {
		return Player{}, false
	}
	delete(r.players, key)
	return *p, true
}

// Get 返回某个玩家的副本
func (r *Registry) Get(key ConnKey) (Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.players[key]
	if !ok {
		return Player{}, false
	}
	return *p, true
}

// Snapshot 时间点一致的副本，按身份升序
func (r *Registry) Snapshot() []Player {
	r.mu.RLock()
	out := make([]Player, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, *p)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len 在线玩家数
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players)
}

// snapshotMessage 构造发给客户端的全量快照
func snapshotMessage(players []Player) protocol.PlayerMapSnapshot {
	m := protocol.PlayerMapSnapshot{Players: make(map[protocol.Identity]protocol.PlayerState, len(players))}
	for _, p := range players {
		m.Players[p.ID] = p.PlayerState
	}
	return m
}
