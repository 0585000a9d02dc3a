package protocol

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// JSONFloat JSON 中的 float32：有限值写成普通数字，NaN/Inf 写成 {"bits":N}（IEEE-754 位模式）
// 两种形式解码后都与原值按位相同
type JSONFloat float32

type floatBits struct {
	Bits *uint32 `json:"bits"`
}

func (f JSONFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte(`{"bits":` + strconv.FormatUint(uint64(math.Float32bits(float32(f))), 10) + `}`), nil
	}
	return strconv.AppendFloat(nil, v, 'g', -1, 32), nil
}

func (f *JSONFloat) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	if len(b) > 0 && b[0] == '{' {
		var fb floatBits
		if err := strictUnmarshal(b, &fb); err != nil {
			return fmt.Errorf("float bits: %w", err)
		}
		if fb.Bits == nil {
			return fmt.Errorf("float bits: missing \"bits\"")
		}
		*f = JSONFloat(math.Float32frombits(*fb.Bits))
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 32)
	if err != nil {
		return fmt.Errorf("float: %w", err)
	}
	*f = JSONFloat(v)
	return nil
}

type jsonPlayerState struct {
	ID     Identity     `json:"id"`
	X      JSONFloat    `json:"x"`
	Y      JSONFloat    `json:"y"`
	Width  JSONFloat    `json:"w"`
	Height JSONFloat    `json:"h"`
	Color  [4]JSONFloat `json:"color"`
}

func (p PlayerState) MarshalJSON() ([]byte, error) {
	w := jsonPlayerState{
		ID:     p.ID,
		X:      JSONFloat(p.X),
		Y:      JSONFloat(p.Y),
		Width:  JSONFloat(p.Width),
		Height: JSONFloat(p.Height),
	}
	for i, c := range p.Color {
		w.Color[i] = JSONFloat(c)
	}
	return json.Marshal(w)
}

func (p *PlayerState) UnmarshalJSON(b []byte) error {
	var w jsonPlayerState
	if err := strictUnmarshal(b, &w); err != nil {
		return err
	}
	*p = PlayerState{
		ID:     w.ID,
		X:      float32(w.X),
		Y:      float32(w.Y),
		Width:  float32(w.Width),
		Height: float32(w.Height),
	}
	for i, c := range w.Color {
		p.Color[i] = float32(c)
	}
	return nil
}

type jsonMove struct {
	ID Identity  `json:"id"`
	X  JSONFloat `json:"x"`
	Y  JSONFloat `json:"y"`
}

func (m Move) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonMove{ID: m.ID, X: JSONFloat(m.X), Y: JSONFloat(m.Y)})
}

func (m *Move) UnmarshalJSON(b []byte) error {
	var w jsonMove
	if err := strictUnmarshal(b, &w); err != nil {
		return err
	}
	*m = Move{ID: w.ID, X: float32(w.X), Y: float32(w.Y)}
	return nil
}
