package collcomm

import (
	"bufio"
	"encoding/binary"
	"encoding/gob"
	"io"
	"math"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
)

const (
	frameHeaderSize = 32
	ioBlockSize     = 1 << 16
)

// hello is the first message on every connection.
type hello struct {
	RunID string
	Rank  int
	Size  int

	// Addr is the address the sender accepts peer
	// connections on. It is only set on connections to
	// the coordinator.
	Addr string
}

// roster is the coordinator's reply to a hello.
// Err is set when the coordinator rejected the group.
type roster struct {
	Addrs []string
	Err   string
}

// frameHeader precedes every chunk of a vector.
type frameHeader struct {
	Round  uint64
	Total  uint64
	Offset uint64
	Count  uint64
}

// peerConn is a connection to one other member of the
// group.
//
// One goroutine may write while another reads, but there
// must never be two concurrent writers or readers.
type peerConn struct {
	conn net.Conn

	r   *bufio.Reader
	dec *gob.Decoder

	writeLock sync.Mutex
	w         *bufio.Writer
	enc       *gob.Encoder

	rbuf []byte
	wbuf []byte
}

func newPeerConn(conn net.Conn) *peerConn {
	// The decoder reads through r, which is an
	// io.ByteReader, so gob does not buffer past the
	// end of a handshake message.
	r := bufio.NewReaderSize(conn, ioBlockSize)
	w := bufio.NewWriterSize(conn, ioBlockSize)
	return &peerConn{
		conn: conn,
		r:    r,
		dec:  gob.NewDecoder(r),
		w:    w,
		enc:  gob.NewEncoder(w),
		rbuf: make([]byte, ioBlockSize),
		wbuf: make([]byte, ioBlockSize),
	}
}

func (p *peerConn) Close() error {
	return p.conn.Close()
}

func (p *peerConn) RemoteAddr() string {
	return p.conn.RemoteAddr().String()
}

// encode sends a handshake message.
func (p *peerConn) encode(msg interface{}) error {
	p.writeLock.Lock()
	defer p.writeLock.Unlock()
	if err := p.enc.Encode(msg); err != nil {
		return err
	}
	return p.w.Flush()
}

// decode reads a handshake message.
func (p *peerConn) decode(msg interface{}) error {
	return p.dec.Decode(msg)
}

func (p *peerConn) setDeadline(t time.Time) {
	p.conn.SetDeadline(t)
}

// writeFrame sends a chunk of a vector.
func (p *peerConn) writeFrame(h frameHeader, vec []float32, timeout time.Duration) error {
	p.writeLock.Lock()
	defer p.writeLock.Unlock()

	if timeout > 0 {
		p.conn.SetWriteDeadline(time.Now().Add(timeout))
		defer p.conn.SetWriteDeadline(time.Time{})
	}

	var header [frameHeaderSize]byte
	binary.LittleEndian.PutUint64(header[0:], h.Round)
	binary.LittleEndian.PutUint64(header[8:], h.Total)
	binary.LittleEndian.PutUint64(header[16:], h.Offset)
	binary.LittleEndian.PutUint64(header[24:], h.Count)
	if _, err := p.w.Write(header[:]); err != nil {
		return err
	}

	perBlock := len(p.wbuf) / 4
	for len(vec) > 0 {
		n := len(vec)
		if n > perBlock {
			n = perBlock
		}
		for i, x := range vec[:n] {
			binary.LittleEndian.PutUint32(p.wbuf[i*4:], math.Float32bits(x))
		}
		if _, err := p.w.Write(p.wbuf[:n*4]); err != nil {
			return err
		}
		vec = vec[n:]
	}
	return p.w.Flush()
}

// readHeader reads the header of the next frame.
func (p *peerConn) readHeader(timeout time.Duration) (frameHeader, error) {
	if timeout > 0 {
		p.conn.SetReadDeadline(time.Now().Add(timeout))
	}
	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(p.r, header[:]); err != nil {
		return frameHeader{}, err
	}
	return frameHeader{
		Round:  binary.LittleEndian.Uint64(header[0:]),
		Total:  binary.LittleEndian.Uint64(header[8:]),
		Offset: binary.LittleEndian.Uint64(header[16:]),
		Count:  binary.LittleEndian.Uint64(header[24:]),
	}, nil
}

// readPayload reads the body of a frame into vec, whose
// length must match the header's Count.
func (p *peerConn) readPayload(vec []float32, timeout time.Duration) error {
	if timeout > 0 {
		defer p.conn.SetReadDeadline(time.Time{})
	}
	perBlock := len(p.rbuf) / 4
	for len(vec) > 0 {
		n := len(vec)
		if n > perBlock {
			n = perBlock
		}
		if timeout > 0 {
			p.conn.SetReadDeadline(time.Now().Add(timeout))
		}
		if _, err := io.ReadFull(p.r, p.rbuf[:n*4]); err != nil {
			return errors.Wrap(err, "read payload")
		}
		for i := range vec[:n] {
			vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(p.rbuf[i*4:]))
		}
		vec = vec[n:]
	}
	return nil
}
