package server

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/flooyd/game-server/protocol"
)

// SpawnPolicy 决定新玩家的初始位置、尺寸与颜色
type SpawnPolicy interface {
	Spawn(id protocol.Identity) protocol.PlayerState
}

// FixedSpawn 所有玩家出生在同一位置
type FixedSpawn struct {
	X, Y          float32
	Width, Height float32
	Color         protocol.Color
}

func (f FixedSpawn) Spawn(id protocol.Identity) protocol.PlayerState {
	return protocol.PlayerState{
		ID:     id,
		X:      f.X,
		Y:      f.Y,
		Width:  f.Width,
		Height: f.Height,
		Color:  f.Color,
	}
}

// DefaultFixedSpawn 原点出生，50x50，白色
func DefaultFixedSpawn() FixedSpawn {
	return FixedSpawn{Width: 50, Height: 50, Color: protocol.Color{1, 1, 1, 1}}
}

// RandomSpawn 在区域内随机出生并随机颜色；区域可运行时调整
type RandomSpawn struct {
	mu     sync.RWMutex
	width  float32
	height float32
	size   float32
}

func NewRandomSpawn(width, height, size float32) (*RandomSpawn, error) {
	s := &RandomSpawn{size: size}
	if err := s.SetArea(width, height); err != nil {
		return nil, err
	}
	return s, nil
}

// Area 当前出生区域
func (s *RandomSpawn) Area() (width, height float32) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.width, s.height
}

// SetArea 更新出生区域，宽高必须为正
func (s *RandomSpawn) SetArea(width, height float32) error {
	if !(width > 0) || !(height > 0) {
		return fmt.Errorf("spawn area must be positive, got %vx%v", width, height)
	}
	s.mu.Lock()
	s.width, s.height = width, height
	s.mu.Unlock()
	return nil
}

func (s *RandomSpawn) Spawn(id protocol.Identity) protocol.PlayerState {
	w, h := s.Area()
	return protocol.PlayerState{
		ID:     id,
		X:      randIn(w - s.size),
		Y:      randIn(h - s.size),
		Width:  s.size,
		Height: s.size,
		Color:  protocol.Color{rand.Float32(), rand.Float32(), rand.Float32(), 1},
	}
}

func randIn(limit float32) float32 {
	if limit <= 0 {
		return 0
	}
	return rand.Float32() * limit
}
