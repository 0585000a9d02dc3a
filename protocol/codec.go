package protocol

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"unicode/utf8"
)

// MaxFrameSize 单帧上限（1MB），与 WebSocket 读限制一致
const MaxFrameSize = 1 << 20

// ErrMalformed 解码失败：截断、超长、未知类型或结构不符
// 未知类型标签同样视为格式错误，调用方据此断开对端，而不是跳过该帧
var ErrMalformed = errors.New("malformed message")

// Codec 消息编解码器（无状态）
type Codec interface {
	Name() string
	Encode(m Message) ([]byte, error)
	Decode(b []byte) (Message, error)
}

// NewCodec 按名称返回编解码器："binary" 或 "json"
func NewCodec(name string) (Codec, error) {
	switch name {
	case "binary", "":
		return BinaryCodec{}, nil
	case "json":
		return JSONCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

// checkEncodable 拒绝任何编码都无法原样还原的消息
func checkEncodable(m Message) error {
	if m == nil {
		return fmt.Errorf("trying to encode nil message")
	}
	if u, ok := m.(UpdateMessage); ok && !utf8.ValidString(u.Text) {
		return fmt.Errorf("encode %s: text is not valid UTF-8", m.Kind())
	}
	return nil
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}

// ---- JSON ----

// Envelope JSON 外层信封：t 为类型，p 为原始负载
type Envelope struct {
	T string          `json:"t"`
	P json.RawMessage `json:"p"`
}

// JSONCodec 文本编解码（WebSocket 默认）；浮点字段经 JSONFloat 编码，NaN/Inf 也能按位还原
type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Encode(m Message) ([]byte, error) {
	if err := checkEncodable(m); err != nil {
		return nil, err
	}
	pb, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.Kind(), err)
	}
	return json.Marshal(Envelope{T: m.Kind().String(), P: pb})
}

func (JSONCodec) Decode(b []byte) (Message, error) {
	env, err := DecodeEnvelope(b)
	if err != nil {
		return nil, err
	}
	k, ok := kindFromString(env.T)
	if !ok {
		return nil, malformed("unknown type %q", env.T)
	}
	switch k {
	case KindConnect:
		return DecodePayload[Connect](env)
	case KindOtherPlayerJoined:
		return DecodePayload[OtherPlayerJoined](env)
	case KindMove:
		return DecodePayload[Move](env)
	case KindDisconnect:
		return DecodePayload[Disconnect](env)
	case KindPlayerMapSnapshot:
		return DecodePayload[PlayerMapSnapshot](env)
	case KindUpdateMessage:
		return DecodePayload[UpdateMessage](env)
	default:
		return DecodePayload[RequestSnapshot](env)
	}
}

// DecodeEnvelope 解析外层信封
func DecodeEnvelope(b []byte) (Envelope, error) {
	if len(b) == 0 {
		return Envelope{}, malformed("empty frame")
	}
	if len(b) > MaxFrameSize {
		return Envelope{}, malformed("frame of %d bytes exceeds %d", len(b), MaxFrameSize)
	}
	var e Envelope
	if err := json.Unmarshal(b, &e); err != nil {
		return Envelope{}, malformed("envelope: %v", err)
	}
	return e, nil
}

// DecodePayload 将信封负载解析为具体消息类型（拒绝未知字段）
// 无字段的 RequestSnapshot 允许省略负载或为 null
func DecodePayload[T Message](env Envelope) (Message, error) {
	var out T
	if len(env.P) == 0 || string(env.P) == "null" {
		if _, ok := any(out).(RequestSnapshot); ok {
			return out, nil
		}
		return nil, malformed("empty payload for type %q", env.T)
	}
	if err := strictUnmarshal(env.P, &out); err != nil {
		return nil, malformed("payload for type %q: %v", env.T, err)
	}
	return out, nil
}

func strictUnmarshal(b []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data")
	}
	return nil
}

// ---- binary ----

const playerStateSize = 8 + 4*4 + 4*4

// BinaryCodec 小端定长二进制编码（TCP 默认），可完整保留任意浮点位模式
// 格式：1 字节类型 + 各字段；快照为 uint32 数量 + 按身份升序的条目；文本为 uint32 长度 + UTF-8 字节
type BinaryCodec struct{}

func (BinaryCodec) Name() string { return "binary" }

func (BinaryCodec) Encode(m Message) ([]byte, error) {
	if err := checkEncodable(m); err != nil {
		return nil, err
	}
	b := []byte{byte(m.Kind())}
	switch v := m.(type) {
	case Connect:
		b = binary.LittleEndian.AppendUint64(b, uint64(v.ID))
	case Disconnect:
		b = binary.LittleEndian.AppendUint64(b, uint64(v.ID))
	case Move:
		b = binary.LittleEndian.AppendUint64(b, uint64(v.ID))
		b = appendFloat(b, v.X)
		b = appendFloat(b, v.Y)
	case OtherPlayerJoined:
		b = appendPlayer(b, v.Player)
	case PlayerMapSnapshot:
		if len(v.Players) > (MaxFrameSize-5)/playerStateSize {
			return nil, fmt.Errorf("snapshot of %d players exceeds frame limit", len(v.Players))
		}
		ids := make([]Identity, 0, len(v.Players))
		for id := range v.Players {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		b = binary.LittleEndian.AppendUint32(b, uint32(len(ids)))
		for _, id := range ids {
			p := v.Players[id]
			if p.ID != id {
				return nil, fmt.Errorf("snapshot entry %d carries identity %d", id, p.ID)
			}
			b = appendPlayer(b, p)
		}
	case UpdateMessage:
		if len(v.Text) > MaxFrameSize-13 {
			return nil, fmt.Errorf("message text of %d bytes exceeds frame limit", len(v.Text))
		}
		b = binary.LittleEndian.AppendUint64(b, uint64(v.ID))
		b = binary.LittleEndian.AppendUint32(b, uint32(len(v.Text)))
		b = append(b, v.Text...)
	case RequestSnapshot:
	default:
		return nil, fmt.Errorf("unsupported message type %T", m)
	}
	return b, nil
}

func appendFloat(b []byte, f float32) []byte {
	return binary.LittleEndian.AppendUint32(b, math.Float32bits(f))
}

func appendPlayer(b []byte, p PlayerState) []byte {
	b = binary.LittleEndian.AppendUint64(b, uint64(p.ID))
	b = appendFloat(b, p.X)
	b = appendFloat(b, p.Y)
	b = appendFloat(b, p.Width)
	b = appendFloat(b, p.Height)
	for _, c := range p.Color {
		b = appendFloat(b, c)
	}
	return b
}

// reader 顺序读取定长字段，首个错误后不再前进
type reader struct {
	b   []byte
	off int
	err error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if len(r.b)-r.off < n {
		r.err = malformed("truncated at offset %d, need %d bytes", r.off, n)
		return nil
	}
	out := r.b[r.off : r.off+n]
	r.off += n
	return out
}

func (r *reader) u32() uint32 {
	if b := r.take(4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

func (r *reader) u64() uint64 {
	if b := r.take(8); b != nil {
		return binary.LittleEndian.Uint64(b)
	}
	return 0
}

func (r *reader) f32() float32 { return math.Float32frombits(r.u32()) }

func (r *reader) player() PlayerState {
	p := PlayerState{ID: Identity(r.u64())}
	p.X = r.f32()
	p.Y = r.f32()
	p.Width = r.f32()
	p.Height = r.f32()
	for i := range p.Color {
		p.Color[i] = r.f32()
	}
	return p
}

func (BinaryCodec) Decode(b []byte) (Message, error) {
	if len(b) == 0 {
		return nil, malformed("empty frame")
	}
	if len(b) > MaxFrameSize {
		return nil, malformed("frame of %d bytes exceeds %d", len(b), MaxFrameSize)
	}
	r := &reader{b: b, off: 1}
	var m Message
	switch Kind(b[0]) {
	case KindConnect:
		m = Connect{ID: Identity(r.u64())}
	case KindDisconnect:
		m = Disconnect{ID: Identity(r.u64())}
	case KindMove:
		mv := Move{ID: Identity(r.u64())}
		mv.X = r.f32()
		mv.Y = r.f32()
		m = mv
	case KindOtherPlayerJoined:
		m = OtherPlayerJoined{Player: r.player()}
	case KindPlayerMapSnapshot:
		n := r.u32()
		if r.err == nil && uint64(n)*playerStateSize > uint64(len(b)-r.off) {
			return nil, malformed("snapshot count %d exceeds payload", n)
		}
		players := make(map[Identity]PlayerState, n)
		for i := uint32(0); i < n && r.err == nil; i++ {
			p := r.player()
			if _, dup := players[p.ID]; dup {
				return nil, malformed("duplicate identity %d in snapshot", p.ID)
			}
			players[p.ID] = p
		}
		m = PlayerMapSnapshot{Players: players}
	case KindRequestSnapshot:
		m = RequestSnapshot{}
	case KindUpdateMessage:
		u := UpdateMessage{ID: Identity(r.u64())}
		n := r.u32()
		if r.err == nil && uint64(n) > uint64(len(b)-r.off) {
			return nil, malformed("text length %d exceeds payload", n)
		}
		text := r.take(int(n))
		if r.err == nil && !utf8.Valid(text) {
			return nil, malformed("message text is not valid UTF-8")
		}
		u.Text = string(text)
		m = u
	default:
		return nil, malformed("unknown type tag %d", b[0])
	}
	if r.err != nil {
		return nil, r.err
	}
	if r.off != len(b) {
		return nil, malformed("%d trailing bytes after %s", len(b)-r.off, m.Kind())
	}
	return m, nil
}
