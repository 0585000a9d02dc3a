package server

import (
	"encoding/json"
	"net/http"

	"github.com/flooyd/game-server/protocol"
)

// playerView /players 的输出结构
// 浮点字段用 JSONFloat，客户端上报 NaN 时仍能输出
type playerView struct {
	ID      uint64                `json:"id"`
	Key     string                `json:"key"`
	Remote  string                `json:"remote,omitempty"`
	X       protocol.JSONFloat    `json:"x"`
	Y       protocol.JSONFloat    `json:"y"`
	Width   protocol.JSONFloat    `json:"w"`
	Height  protocol.JSONFloat    `json:"h"`
	Color   [4]protocol.JSONFloat `json:"color"`
	Message string                `json:"message,omitempty"`
}

// HandlePlayers 输出当前玩家表快照
// GET /players
func (m *SessionManager) HandlePlayers(w http.ResponseWriter, r *http.Request) {
	snap := m.registry.Snapshot()
	out := make([]playerView, 0, len(snap))
	for _, p := range snap {
		v := playerView{
			ID:      uint64(p.ID),
			Key:     string(p.Key),
			Remote:  p.Remote,
			X:       protocol.JSONFloat(p.X),
			Y:       protocol.JSONFloat(p.Y),
			Width:   protocol.JSONFloat(p.Width),
			Height:  protocol.JSONFloat(p.Height),
			Message: p.Text,
		}
		for i, c := range p.Color {
			v.Color[i] = protocol.JSONFloat(c)
		}
		out = append(out, v)
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleMetrics 输出运行指标
// GET /metrics
func (m *SessionManager) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	payload := m.metrics.Snapshot()
	payload["players"] = m.registry.Len()
	payload["broadcast_targets"] = m.broadcaster.Len()
	writeJSON(w, http.StatusOK, payload)
}

// adjustableSpawn 可在运行时调整出生区域的策略
type adjustableSpawn interface {
	Area() (width, height float32)
	SetArea(width, height float32) error
}

// HandleAdminSpawn 读取与更新随机出生区域
// GET /admin/spawn  返回当前区域
// POST /admin/spawn 以 JSON 载荷更新部分字段
func (m *SessionManager) HandleAdminSpawn(w http.ResponseWriter, r *http.Request) {
	s, ok := m.spawn.(adjustableSpawn)
	if !ok {
		http.Error(w, "spawn policy is not adjustable", http.StatusConflict)
		return
	}

	type cfg struct {
		Width  *float32 `json:"width,omitempty"`
		Height *float32 `json:"height,omitempty"`
	}

	switch r.Method {
	case http.MethodGet:
		width, height := s.Area()
		writeJSON(w, http.StatusOK, cfg{Width: &width, Height: &height})
	case http.MethodPost:
		var body cfg
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		width, height := s.Area()
		if body.Width != nil {
			width = *body.Width
		}
		if body.Height != nil {
			height = *body.Height
		}
		if err := s.SetArea(width, height); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		m.log.Infof("spawn area updated: %vx%v", width, height)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
