package server

import (
	"github.com/google/uuid"

	"github.com/flooyd/game-server/protocol"
)

// ConnKey 连接句柄：接入时分配的随机 UUID，在连接生命周期内不变
type ConnKey string

// NewConnKey 生成新的连接句柄
func NewConnKey() ConnKey {
	return ConnKey(uuid.NewString())
}

// Player 服务端权威的玩家记录
type Player struct {
	Key    ConnKey
	Remote string // 对端地址，仅用于日志
	Text   string // 最近一次 UpdateMessage 设置的留言，不进入快照
	protocol.PlayerState
}

// Equal 浮点字段按位比较
func (p Player) Equal(o Player) bool {
	return p.Key == o.Key && p.Remote == o.Remote && p.Text == o.Text && p.PlayerState.Equal(o.PlayerState)
}
