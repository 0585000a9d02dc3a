package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// FrameHeaderSize 帧头：uint32 小端负载长度
const FrameHeaderSize = 4

// WriteFrame 写出一帧（长度前缀 + 负载），一次 Write 完成
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return fmt.Errorf("frame of %d bytes exceeds %d", len(payload), MaxFrameSize)
	}
	buf := make([]byte, FrameHeaderSize, FrameHeaderSize+len(payload))
	binary.LittleEndian.PutUint32(buf, uint32(len(payload)))
	buf = append(buf, payload...)
	_, err := w.Write(buf)
	return err
}

// ReadFrame 读取完整一帧；不完整的帧会继续等待后续字节，不会被误解析
// 读到帧边界处的 EOF 返回 io.EOF，帧中间断开返回 io.ErrUnexpectedEOF
func ReadFrame(r io.Reader) ([]byte, error) {
	var hdr [FrameHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(hdr[:])
	if n > MaxFrameSize {
		return nil, malformed("frame length %d exceeds %d", n, MaxFrameSize)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return payload, nil
}
