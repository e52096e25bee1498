package parse

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
)

var (
	ErrVarintTooLong = errors.New("varint too long")
	ErrTruncated     = errors.New("field truncated")
)

// ReadVarintFromSlice reads a RAR5 varint from a byte slice.
func ReadVarintFromSlice(b []byte) (uint64, int64, error) {
	var val uint64
	var n int64
	for i := 0; i < len(b) && i < 10; i++ {
		c := b[i]
		val |= uint64(c&0x7F) << (7 * i)
		n++
		if c&0x80 == 0 {
			return val, n, nil
		}
	}
	if n == 0 {
		return 0, 0, io.ErrUnexpectedEOF
	}
	if n < 10 {
		return 0, n, io.ErrUnexpectedEOF
	}
	return 0, n, ErrVarintTooLong
}

// ReadVarint reads RAR5 variable-length integer directly from reader.
func ReadVarint(br *bufio.Reader) (value uint64, n int64, err error) {
	for i := 0; i < 10; i++ {
		b, e := br.ReadByte()
		if e != nil {
			err = e
			return
		}
		value |= uint64(b&0x7f) << (7 * i)
		n++
		if b&0x80 == 0 {
			return
		}
	}
	err = ErrVarintTooLong
	return
}

// AppendVarint appends the RAR5 encoding of x to b.
func AppendVarint(b []byte, x uint64) []byte {
	for x >= 0x80 {
		b = append(b, byte(x)|0x80)
		x >>= 7
	}
	return append(b, byte(x))
}

// Cursor walks the fields of a RAR5 header body.
type Cursor struct {
	b   []byte
	off int
}

func NewCursor(b []byte) *Cursor { return &Cursor{b: b} }

func (c *Cursor) Varint() (uint64, error) {
	v, n, err := ReadVarintFromSlice(c.b[c.off:])
	if err != nil {
		return 0, err
	}
	c.off += int(n)
	return v, nil
}

func (c *Cursor) Uint32() (uint32, error) {
	if len(c.b)-c.off < 4 {
		return 0, ErrTruncated
	}
	v := binary.LittleEndian.Uint32(c.b[c.off:])
	c.off += 4
	return v, nil
}

func (c *Cursor) Bytes(n uint64) ([]byte, error) {
	if n > uint64(len(c.b)-c.off) {
		return nil, ErrTruncated
	}
	v := c.b[c.off : c.off+int(n)]
	c.off += int(n)
	return v, nil
}

// Remaining is the number of unread bytes.
func (c *Cursor) Remaining() int { return len(c.b) - c.off }

// Offset is the number of bytes consumed so far.
func (c *Cursor) Offset() int { return c.off }
