// buffer_pool.go implements buffer pooling for inbound packet frames.
//
// A frame buffer only lives until its payload has been decoded: the KEXINIT
// decoder copies every field it keeps, so the frame can go back to the pool
// as soon as DecodeKexInit returns.
package protocol

import (
	"io"
	"sync"

	"github.com/pzverkov/sshkex/internal/constants"
)

// BufferPool provides pooled byte slices in size classes.
type BufferPool struct {
	small  sync.Pool // <= 256 bytes (short control messages)
	medium sync.Pool // <= 4KB (typical KEXINIT)
	large  sync.Pool // <= 64KB
	xlarge sync.Pool // <= largest legal frame
}

// Buffer size class thresholds.
const (
	smallBufferSize  = 256
	mediumBufferSize = 4 * 1024
	largeBufferSize  = 64 * 1024
	xlargeBufferSize = constants.PacketLengthSize + constants.MaxPacketLength
)

// globalBufferPool is the default buffer pool instance.
var globalBufferPool = NewBufferPool()

func sizedPool(size int) sync.Pool {
	return sync.Pool{
		New: func() any {
			buf := make([]byte, size)
			return &buf
		},
	}
}

// NewBufferPool creates a new buffer pool.
func NewBufferPool() *BufferPool {
	return &BufferPool{
		small:  sizedPool(smallBufferSize),
		medium: sizedPool(mediumBufferSize),
		large:  sizedPool(largeBufferSize),
		xlarge: sizedPool(xlargeBufferSize),
	}
}

// Get returns a buffer of length size. The caller must Put it back when done.
func (p *BufferPool) Get(size int) []byte {
	if size <= 0 {
		return nil
	}

	var bufPtr *[]byte

	switch {
	case size <= smallBufferSize:
		bufPtr = p.small.Get().(*[]byte)
	case size <= mediumBufferSize:
		bufPtr = p.medium.Get().(*[]byte)
	case size <= largeBufferSize:
		bufPtr = p.large.Get().(*[]byte)
	case size <= xlargeBufferSize:
		bufPtr = p.xlarge.Get().(*[]byte)
	default:
		return make([]byte, size)
	}

	return (*bufPtr)[:size]
}

// Put returns a buffer to the pool. The buffer must not be used afterwards.
func (p *BufferPool) Put(buf []byte) {
	c := cap(buf)
	if c == 0 {
		return
	}

	buf = buf[:c]
	bufPtr := &buf

	switch c {
	case smallBufferSize:
		p.small.Put(bufPtr)
	case mediumBufferSize:
		p.medium.Put(bufPtr)
	case largeBufferSize:
		p.large.Put(bufPtr)
	case xlargeBufferSize:
		p.xlarge.Put(bufPtr)
	}
}

// PooledBuffer wraps a buffer with scoped pool return.
//
//	pb, err := codec.ReadPacketPooled(conn)
//	if err != nil { ... }
//	defer pb.Release()
type PooledBuffer struct {
	buf  []byte
	pool *BufferPool
}

// GetPooled returns a PooledBuffer of length size.
func (p *BufferPool) GetPooled(size int) *PooledBuffer {
	return &PooledBuffer{
		buf:  p.Get(size),
		pool: p,
	}
}

// Bytes returns the underlying buffer, or nil after Release.
func (pb *PooledBuffer) Bytes() []byte {
	return pb.buf
}

// Release returns the buffer to the pool. Safe to call more than once.
func (pb *PooledBuffer) Release() {
	if pb.pool != nil && pb.buf != nil {
		pb.pool.Put(pb.buf)
		pb.buf = nil
	}
}

// ReadPacketPooled is ReadPacket with the frame read into a pooled buffer.
// Anything decoded from the frame that aliases it must be copied before
// Release.
func (c *Codec) ReadPacketPooled(r io.Reader) (*PooledBuffer, error) {
	packetLen, hdr, err := c.readPacketHeader(r)
	if err != nil {
		return nil, err
	}

	pool := c.Pool
	if pool == nil {
		pool = globalBufferPool
	}

	pb := pool.GetPooled(constants.PacketLengthSize + int(packetLen))
	raw := pb.Bytes()
	copy(raw, hdr[:])
	if _, err := io.ReadFull(r, raw[constants.PacketLengthSize:]); err != nil {
		pb.Release()
		return nil, err
	}
	return pb, nil
}
