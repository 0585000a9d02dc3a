package protocol

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func samplePlayer(id Identity) PlayerState {
	return PlayerState{
		ID:     id,
		X:      12.5,
		Y:      -3.25,
		Width:  50,
		Height: 50,
		Color:  Color{0.1, 0.2, 0.3, 1},
	}
}

func sampleMessages() []Message {
	return []Message{
		Connect{ID: 1},
		OtherPlayerJoined{Player: samplePlayer(2)},
		Move{ID: 3, X: 5, Y: 7},
		Move{ID: math.MaxUint64, X: float32(math.Copysign(0, -1)), Y: math.MaxFloat32},
		Move{ID: 5, X: math.SmallestNonzeroFloat32, Y: -1e-30},
		Disconnect{ID: 4},
		PlayerMapSnapshot{Players: map[Identity]PlayerState{
			1: samplePlayer(1),
			9: samplePlayer(9),
		}},
		PlayerMapSnapshot{Players: map[Identity]PlayerState{}},
		RequestSnapshot{},
		UpdateMessage{ID: 6, Text: "hello, 世界"},
		UpdateMessage{ID: 6},
	}
}

// nonFiniteMessages 携带 NaN/Inf 的消息，两种编码都必须按位还原
func nonFiniteMessages() []Message {
	nan1 := math.Float32frombits(0x7fc00001)
	nan2 := math.Float32frombits(0xffc00abc)
	p := samplePlayer(7)
	p.X = nan1
	p.Y = float32(math.Inf(1))
	p.Color[2] = nan2
	return []Message{
		Move{ID: 7, X: nan1, Y: float32(math.Inf(-1))},
		OtherPlayerJoined{Player: p},
		PlayerMapSnapshot{Players: map[Identity]PlayerState{7: p, 8: samplePlayer(8)}},
	}
}

func TestRoundTripAllCodecs(t *testing.T) {
	msgs := append(sampleMessages(), nonFiniteMessages()...)
	for _, c := range []Codec{BinaryCodec{}, JSONCodec{}} {
		for _, m := range msgs {
			b, err := c.Encode(m)
			if err != nil {
				t.Fatalf("%s: encode %#v: %v", c.Name(), m, err)
			}
			got, err := c.Decode(b)
			if err != nil {
				t.Fatalf("%s: decode %#v: %v", c.Name(), m, err)
			}
			if !Equal(m, got) {
				t.Fatalf("%s: round trip mismatch: sent %#v, got %#v", c.Name(), m, got)
			}
		}
	}
}

func TestEqualIsBitwise(t *testing.T) {
	a := Move{ID: 1, X: 0, Y: 0}
	b := Move{ID: 1, X: float32(math.Copysign(0, -1)), Y: 0}
	if Equal(a, b) {
		t.Fatalf("+0 and -0 must not compare equal bitwise")
	}
	nan := float32(math.NaN())
	if !Equal(Move{ID: 1, X: nan}, Move{ID: 1, X: nan}) {
		t.Fatalf("identical NaN bit patterns must compare equal")
	}
	if Equal(Connect{ID: 1}, Disconnect{ID: 1}) {
		t.Fatalf("different kinds must not compare equal")
	}
}

func TestJSONNonFiniteWireForm(t *testing.T) {
	b, err := JSONCodec{}.Encode(Move{ID: 1, X: math.Float32frombits(0x7fc00001), Y: 2})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if got := string(b); got != `{"t":"move","p":{"id":1,"x":{"bits":2143289345},"y":2}}` {
		t.Fatalf("unexpected wire form %s", got)
	}
	m, err := JSONCodec{}.Decode([]byte(`{"t":"move","p":{"id":1,"x":{"bits":4286578688},"y":-0}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := Move{ID: 1, X: float32(math.Inf(-1)), Y: float32(math.Copysign(0, -1))}
	if !Equal(want, m) {
		t.Fatalf("want %#v, got %#v", want, m)
	}
}

func TestBinaryRejectsSnapshotKeyMismatch(t *testing.T) {
	snap := PlayerMapSnapshot{Players: map[Identity]PlayerState{1: samplePlayer(2)}}
	if _, err := (BinaryCodec{}).Encode(snap); err == nil {
		t.Fatalf("expected error for snapshot entry keyed by a different identity")
	}
}

func TestEncodeRejectsInvalidUTF8Text(t *testing.T) {
	for _, c := range []Codec{BinaryCodec{}, JSONCodec{}} {
		if _, err := c.Encode(UpdateMessage{ID: 1, Text: "\xff"}); err == nil {
			t.Fatalf("%s: expected error for invalid UTF-8 text", c.Name())
		}
	}
}

func TestBinaryDecodeMalformed(t *testing.T) {
	var c BinaryCodec
	good, err := c.Encode(Move{ID: 1, X: 2, Y: 3})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	snap, err := c.Encode(PlayerMapSnapshot{Players: map[Identity]PlayerState{1: samplePlayer(1)}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	hugeCount := []byte{byte(KindPlayerMapSnapshot), 0xff, 0xff, 0xff, 0x7f}
	dup := append([]byte{byte(KindPlayerMapSnapshot), 2, 0, 0, 0}, snap[5:]...)
	dup = append(dup, snap[5:]...)
	text, err := c.Encode(UpdateMessage{ID: 1, Text: "hi"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	longText := append([]byte{}, text...)
	longText[9] = 0xff
	badUTF8 := append([]byte{}, text...)
	badUTF8[len(badUTF8)-1] = 0xff

	cases := map[string][]byte{
		"empty":           nil,
		"unknown tag":     {0xee},
		"zero tag":        {0},
		"truncated move":  good[:len(good)-1],
		"trailing bytes":  append(append([]byte{}, good...), 0),
		"truncated snap":  snap[:len(snap)-3],
		"count too large": hugeCount,
		"duplicate id":    dup,
		"text too long":   longText,
		"text not utf8":   badUTF8,
		"truncated text":  text[:len(text)-1],
		"oversized":       make([]byte, MaxFrameSize+1),
	}
	for name, b := range cases {
		if _, err := c.Decode(b); !errors.Is(err, ErrMalformed) {
			t.Fatalf("%s: expected ErrMalformed, got %v", name, err)
		}
	}
}

func TestJSONDecodeMalformed(t *testing.T) {
	var c JSONCodec
	cases := map[string]string{
		"empty":         "",
		"not json":      "{{",
		"unknown type":  `{"t":"teleport","p":{}}`,
		"no payload":    `{"t":"move"}`,
		"null payload":  `{"t":"move","p":null}`,
		"bad bits":      `{"t":"move","p":{"id":1,"x":{"bit":1},"y":0}}`,
		"string float":  `{"t":"move","p":{"id":1,"x":"1","y":0}}`,
		"wrong field":   `{"t":"move","p":{"id":1,"z":3}}`,
		"wrong type":    `{"t":"move","p":{"id":"one"}}`,
		"trailing data": `{"t":"connect","p":{"id":1} {}}`,
	}
	for name, s := range cases {
		if _, err := c.Decode([]byte(s)); !errors.Is(err, ErrMalformed) {
			t.Fatalf("%s: expected ErrMalformed, got %v", name, err)
		}
	}
}

func TestJSONWireShape(t *testing.T) {
	b, err := JSONCodec{}.Encode(Move{ID: 2, X: 5, Y: 7})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if got := string(b); got != `{"t":"move","p":{"id":2,"x":5,"y":7}}` {
		t.Fatalf("unexpected wire form %s", got)
	}
	for _, s := range []string{
		`{"t":"request_snapshot","p":{}}`,
		`{"t":"request_snapshot","p":null}`,
		`{"t":"request_snapshot"}`,
	} {
		m, err := JSONCodec{}.Decode([]byte(s))
		if err != nil {
			t.Fatalf("decode %s: %v", s, err)
		}
		if _, ok := m.(RequestSnapshot); !ok {
			t.Fatalf("%s: expected RequestSnapshot, got %T", s, m)
		}
	}
}

func TestNewCodec(t *testing.T) {
	for _, name := range []string{"binary", "json"} {
		c, err := NewCodec(name)
		if err != nil {
			t.Fatalf("NewCodec(%q): %v", name, err)
		}
		if c.Name() != name {
			t.Fatalf("NewCodec(%q).Name() = %q", name, c.Name())
		}
	}
	if _, err := NewCodec("xml"); err == nil || !strings.Contains(err.Error(), "xml") {
		t.Fatalf("expected unknown codec error, got %v", err)
	}
}
