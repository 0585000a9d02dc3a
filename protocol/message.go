package protocol

import "math"

// Identity 玩家在进程内的唯一标识，从 1 开始递增，永不复用
type Identity uint64

// Kind 消息类型标签（线协议中的判别字段）
type Kind uint8

const (
	KindConnect Kind = iota + 1
	KindOtherPlayerJoined
	KindMove
	KindDisconnect
	KindPlayerMapSnapshot
	KindRequestSnapshot
	KindUpdateMessage
)

var kindNames = map[Kind]string{
	KindConnect:           "connect",
	KindOtherPlayerJoined: "other_player_joined",
	KindMove:              "move",
	KindDisconnect:        "disconnect",
	KindPlayerMapSnapshot: "player_map_snapshot",
	KindRequestSnapshot:   "request_snapshot",
	KindUpdateMessage:     "update_message",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

func kindFromString(s string) (Kind, bool) {
	for k, name := range kindNames {
		if name == s {
			return k, true
		}
	}
	return 0, false
}

// Color RGBA 四通道颜色
type Color [4]float32

// PlayerState 为广播给客户端的玩家状态（位置、尺寸、颜色）
type PlayerState struct {
	ID     Identity `json:"id"`
	X      float32  `json:"x"`
	Y      float32  `json:"y"`
	Width  float32  `json:"w"`
	Height float32  `json:"h"`
	Color  Color    `json:"color"`
}

// Equal 按浮点数的位模式比较，NaN 也能稳定比较
func (p PlayerState) Equal(o PlayerState) bool {
	if p.ID != o.ID {
		return false
	}
	if !sameBits(p.X, o.X) || !sameBits(p.Y, o.Y) ||
		!sameBits(p.Width, o.Width) || !sameBits(p.Height, o.Height) {
		return false
	}
	for i := range p.Color {
		if !sameBits(p.Color[i], o.Color[i]) {
			return false
		}
	}
	return true
}

func sameBits(a, b float32) bool {
	return math.Float32bits(a) == math.Float32bits(b)
}

// Message 线协议中的一条消息
type Message interface {
	Kind() Kind
}

// Connect 服务端 → 新客户端：分配身份
type Connect struct {
	ID Identity `json:"id"`
}

// OtherPlayerJoined 服务端 → 其他客户端：宣布新玩家及其初始状态
type OtherPlayerJoined struct {
	Player PlayerState `json:"player"`
}

// Move 双向：客户端上报自身位置；服务端转发给其他客户端
type Move struct {
	ID Identity `json:"id"`
	X  float32  `json:"x"`
	Y  float32  `json:"y"`
}

// Disconnect 服务端 → 剩余客户端：宣布玩家离开
type Disconnect struct {
	ID Identity `json:"id"`
}

// PlayerMapSnapshot 服务端 → 请求方：全部已知玩家，按身份索引
type PlayerMapSnapshot struct {
	Players map[Identity]PlayerState `json:"players"`
}

// RequestSnapshot 客户端 → 服务端：请求一份新的 PlayerMapSnapshot
type RequestSnapshot struct{}

// UpdateMessage 双向：客户端设置自己的留言文本；服务端转发给其他客户端
type UpdateMessage struct {
	ID   Identity `json:"id"`
	Text string   `json:"message"`
}

func (Connect) Kind() Kind { return KindConnect }
func (OtherPlayerJoined) Kind() Kind { return KindOtherPlayerJoined }
func (Move) Kind() Kind { return KindMove }
func (Disconnect) Kind() Kind { return KindDisconnect }
func (PlayerMapSnapshot) Kind() Kind { return KindPlayerMapSnapshot }
func (RequestSnapshot) Kind() Kind { return KindRequestSnapshot }
func (UpdateMessage) Kind() Kind { return KindUpdateMessage }

// Equal 比较两条消息；浮点字段按位比较
func Equal(a, b Message) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch x := a.(type) {
	case Connect:
		return x == b.(Connect)
	case Disconnect:
		return x == b.(Disconnect)
	case RequestSnapshot:
		return true
	case UpdateMessage:
		return x == b.(UpdateMessage)
	case Move:
		y := b.(Move)
		return x.ID == y.ID && sameBits(x.X, y.X) && sameBits(x.Y, y.Y)
	case OtherPlayerJoined:
		return x.Player.Equal(b.(OtherPlayerJoined).Player)
	case PlayerMapSnapshot:
		y := b.(PlayerMapSnapshot)
		if len(x.Players) != len(y.Players) {
			return false
		}
		for id, p := range x.Players {
			q, ok := y.Players[id]
			if !ok || !p.Equal(q) {
				return false
			}
		}
		return true
	}
	return false
}
