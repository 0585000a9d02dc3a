package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/flooyd/game-server/protocol"
)

// wsTransport 一条 WebSocket 消息即一帧
type wsTransport struct {
	ws           *websocket.Conn
	messageType  int
	writeTimeout time.Duration
	closeOnce    sync.Once
	closeErr     error
}

// NewWSTransport json 编码走文本帧，其余走二进制帧
func NewWSTransport(ws *websocket.Conn, codec protocol.Codec, writeTimeout time.Duration) Transport {
	mt := websocket.BinaryMessage
	if codec.Name() == "json" {
		mt = websocket.TextMessage
	}
	ws.SetReadLimit(protocol.MaxFrameSize)
	return &wsTransport{ws: ws, messageType: mt, writeTimeout: writeTimeout}
}

func (t *wsTransport) ReadFrame() ([]byte, error) {
	_, payload, err := t.ws.ReadMessage()
	return payload, err
}

func (t *wsTransport) WriteFrame(b []byte) error {
	if t.writeTimeout > 0 {
		if err := t.ws.SetWriteDeadline(time.Now().Add(t.writeTimeout)); err != nil {
			return err
		}
	}
	return t.ws.WriteMessage(t.messageType, b)
}

func (t *wsTransport) Close() error {
	t.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = t.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		t.closeErr = t.ws.Close()
	})
	return t.closeErr
}

func (t *wsTransport) RemoteAddr() string {
	if a := t.ws.RemoteAddr(); a != nil {
		return a.String()
	}
	return ""
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 演示环境：允许所有来源（生产环境需严格限制）
		return true
	},
}

// HandleWS WebSocket 接入：/ws，可选 ?codec=binary，默认 json
func (m *SessionManager) HandleWS(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("codec")
	if name == "" {
		name = "json"
	}
	codec, err := protocol.NewCodec(name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.log.Warnw("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	if _, err := m.Attach(NewWSTransport(ws, codec, m.writeTimeout), codec); err != nil {
		m.log.Warnw("rejecting websocket client", "remote", r.RemoteAddr, "err", err)
	}
}
