package server

import (
	"bufio"
	"net"
	"sync"
	"time"

	"github.com/flooyd/game-server/protocol"
)

// Transport 一条已建立的流：按帧读写
// ReadFrame 只由读协程调用，WriteFrame 只由写协程调用，Close 可并发调用
type Transport interface {
	ReadFrame() ([]byte, error)
	WriteFrame(b []byte) error
	Close() error
	RemoteAddr() string
}

// tcpTransport 长度前缀分帧的 TCP 连接
type tcpTransport struct {
	conn         net.Conn
	r            *bufio.Reader
	writeTimeout time.Duration
	closeOnce    sync.Once
	closeErr     error
}

// NewTCPTransport writeTimeout 为 0 时不设写超时
func NewTCPTransport(conn net.Conn, writeTimeout time.Duration) Transport {
	return &tcpTransport{
		conn:         conn,
		r:            bufio.NewReader(conn),
		writeTimeout: writeTimeout,
	}
}

func (t *tcpTransport) ReadFrame() ([]byte, error) {
	return protocol.ReadFrame(t.r)
}

func (t *tcpTransport) WriteFrame(b []byte) error {
	if t.writeTimeout > 0 {
		if err := t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout)); err != nil {
			return err
		}
	}
	return protocol.WriteFrame(t.conn, b)
}

func (t *tcpTransport) Close() error {
	t.closeOnce.Do(func() { t.closeErr = t.conn.Close() })
	return t.closeErr
}

func (t *tcpTransport) RemoteAddr() string {
	if a := t.conn.RemoteAddr(); a != nil {
		return a.String()
	}
	return ""
}
