package dtls

import (
	"io"
	"net"
	"sync"
	"time"
)

// NewConn adapts the demultiplexed DTLS reader and the transport writer to
// the net.Conn pion/dtls expects. Close closes whichever of them is an
// io.Closer.
func NewConn(r io.Reader, w io.Writer) net.Conn {
	return &wrapperConn{
		reader: r,
		writer: w,
	}
}

type wrapperConn struct {
	reader    io.Reader
	writer    io.Writer
	closeOnce sync.Once
}

func (c *wrapperConn) Read(b []byte) (int, error) {
	return c.reader.Read(b)
}

func (c *wrapperConn) Write(b []byte) (int, error) {
	return c.writer.Write(b)
}

func (c *wrapperConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		if closer, ok := c.reader.(io.Closer); ok {
			err = closer.Close()
		}
		if closer, ok := c.writer.(io.Closer); ok && interface{}(c.writer) != interface{}(c.reader) {
			if werr := closer.Close(); err == nil {
				err = werr
			}
		}
	})
	return err
}

func (c *wrapperConn) LocalAddr() net.Addr {
	if conn, ok := c.reader.(net.Conn); ok {
		return conn.LocalAddr()
	}
	return nil
}

func (c *wrapperConn) RemoteAddr() net.Addr {
	if conn, ok := c.writer.(net.Conn); ok {
		return conn.RemoteAddr()
	}
	return nil
}

func (c *wrapperConn) SetDeadline(t time.Time) error {
	return nil
}

func (c *wrapperConn) SetReadDeadline(t time.Time) error {
	return nil
}

func (c *wrapperConn) SetWriteDeadline(t time.Time) error {
	return nil
}
