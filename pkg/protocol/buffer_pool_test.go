package protocol

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestBufferPool(t *testing.T) {
	pool := NewBufferPool()

	classes := []struct {
		name string
		size int
		cap  int
	}{
		{"Small", 100, smallBufferSize},
		{"Medium", 1000, mediumBufferSize},
		{"Large", 10000, largeBufferSize},
		{"XLarge", 100000, xlargeBufferSize},
	}

	for _, tc := range classes {
		t.Run("Get"+tc.name, func(t *testing.T) {
			buf := pool.Get(tc.size)
			if len(buf) != tc.size {
				t.Errorf("buffer length = %d, want %d", len(buf), tc.size)
			}
			if cap(buf) != tc.cap {
				t.Errorf("buffer capacity = %d, want %d", cap(buf), tc.cap)
			}
			pool.Put(buf)
		})
	}

	t.Run("GetOversized", func(t *testing.T) {
		buf := pool.Get(xlargeBufferSize + 1)
		if len(buf) != xlargeBufferSize+1 {
			t.Errorf("buffer length = %d, want %d", len(buf), xlargeBufferSize+1)
		}
		// Oversized buffers are not pooled
		pool.Put(buf)
	})

	t.Run("GetZero", func(t *testing.T) {
		if buf := pool.Get(0); buf != nil {
			t.Errorf("expected nil for size 0, got %v", buf)
		}
		if buf := pool.Get(-1); buf != nil {
			t.Errorf("expected nil for negative size, got %v", buf)
		}
	})

	t.Run("PutNil", func(t *testing.T) {
		pool.Put(nil)
	})

	t.Run("Reuse", func(t *testing.T) {
		for i := 0; i < 100; i++ {
			buf := pool.Get(500)
			if len(buf) != 500 {
				t.Fatalf("iteration %d: buffer length = %d, want 500", i, len(buf))
			}
			pool.Put(buf)
		}
	})
}

func TestPooledBuffer(t *testing.T) {
	pool := NewBufferPool()

	pb := pool.GetPooled(1024)
	if len(pb.Bytes()) != 1024 {
		t.Errorf("buffer length = %d, want 1024", len(pb.Bytes()))
	}

	pb.Release()
	if pb.Bytes() != nil {
		t.Error("Bytes() should return nil after Release()")
	}
	pb.Release()
}

func TestReadPacketPooled(t *testing.T) {
	codec := NewCodec()
	codec.Pool = NewBufferPool()

	payload := []byte{byte(MessageTypeIgnore), 'h', 'i'}
	framed, err := codec.EncodePacket(payload)
	if err != nil {
		t.Fatalf("EncodePacket failed: %v", err)
	}

	pb, err := codec.ReadPacketPooled(bytes.NewReader(framed))
	if err != nil {
		t.Fatalf("ReadPacketPooled failed: %v", err)
	}
	defer pb.Release()

	if !bytes.Equal(pb.Bytes(), framed) {
		t.Errorf("frame = %x, want %x", pb.Bytes(), framed)
	}

	pkt, err := codec.DecodePacket(pb.Bytes())
	if err != nil {
		t.Fatalf("DecodePacket failed: %v", err)
	}
	if !bytes.Equal(pkt.Payload, payload) {
		t.Errorf("payload = %x, want %x", pkt.Payload, payload)
	}
}

func TestReadPacketPooledShortBody(t *testing.T) {
	codec := NewCodec()
	framed, err := codec.EncodePacket([]byte{byte(MessageTypeIgnore)})
	if err != nil {
		t.Fatalf("EncodePacket failed: %v", err)
	}

	_, err = codec.ReadPacketPooled(bytes.NewReader(framed[:len(framed)-1]))
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("got %v, want io.ErrUnexpectedEOF", err)
	}
}

func BenchmarkBufferPool_GetPut_4KB(b *testing.B) {
	pool := NewBufferPool()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		buf := pool.Get(4 * 1024)
		pool.Put(buf)
	}
}

func BenchmarkMake_4KB(b *testing.B) {
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		buf := make([]byte, 4*1024)
		_ = buf
	}
}

func BenchmarkReadPacket(b *testing.B) {
	codec := NewCodec()
	framed, err := codec.EncodePacket(make([]byte, 1500))
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if _, err := codec.ReadPacket(bytes.NewReader(framed)); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkReadPacketPooled(b *testing.B) {
	codec := NewCodec()
	framed, err := codec.EncodePacket(make([]byte, 1500))
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		pb, err := codec.ReadPacketPooled(bytes.NewReader(framed))
		if err != nil {
			b.Fatal(err)
		}
		pb.Release()
	}
}

func BenchmarkBufferPool_Parallel(b *testing.B) {
	pool := NewBufferPool()

	b.ResetTimer()
	b.ReportAllocs()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			buf := pool.Get(4 * 1024)
			pool.Put(buf)
		}
	})
}
