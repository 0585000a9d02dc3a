package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"
	"testing/iotest"
)

func TestFrameStreamSurvivesPartialReads(t *testing.T) {
	var c BinaryCodec
	var buf bytes.Buffer
	msgs := sampleMessages()
	for _, m := range msgs {
		b, err := c.Encode(m)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		if err := WriteFrame(&buf, b); err != nil {
			t.Fatalf("write frame: %v", err)
		}
	}

	r := iotest.OneByteReader(&buf)
	for i, want := range msgs {
		payload, err := ReadFrame(r)
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		got, err := c.Decode(payload)
		if err != nil {
			t.Fatalf("frame %d decode: %v", i, err)
		}
		if !Equal(want, got) {
			t.Fatalf("frame %d: want %#v, got %#v", i, want, got)
		}
	}
	if _, err := ReadFrame(r); err != io.EOF {
		t.Fatalf("expected io.EOF at clean boundary, got %v", err)
	}
}

func TestReadFrameEOFMidFrame(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, []byte("hello")); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	cut := buf.Bytes()[:buf.Len()-2]
	if _, err := ReadFrame(bytes.NewReader(cut)); err != io.ErrUnexpectedEOF {
		t.Fatalf("expected io.ErrUnexpectedEOF, got %v", err)
	}
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	hdr := make([]byte, FrameHeaderSize)
	binary.LittleEndian.PutUint32(hdr, MaxFrameSize+1)
	if _, err := ReadFrame(bytes.NewReader(hdr)); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	if err := WriteFrame(io.Discard, make([]byte, MaxFrameSize+1)); err == nil {
		t.Fatalf("expected error writing oversized frame")
	}
}
