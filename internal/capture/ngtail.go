package capture

import (
	"bytes"
	"encoding/binary"
	"io"
)

const (
	ngByteOrderMagic = 0x1a2b3c4d
	ngMinBlockLen    = 12
)

// blockTail sits under the pcapng reader and keeps every byte read since
// the end of the last complete frame. NgReader reports a bare io.EOF when
// the stream stops inside a block header, so at EOF the kept bytes are
// walked to see whether they end on a block boundary.
type blockTail struct {
	r     io.Reader
	keep  bool
	buf   []byte // Stream bytes starting at offset base
	base  int64
	read  int64
	cut   int64 // Offset of the last known block boundary
	order binary.ByteOrder
}

func newBlockTail(r io.Reader) *blockTail {
	return &blockTail{r: r, keep: true, order: binary.LittleEndian}
}

func (t *blockTail) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if t.keep && n > 0 {
		t.buf = append(t.buf, p[:n]...)
	}
	t.read += int64(n)
	return n, err
}

// discard stops recording. Classic pcap has no use for it.
func (t *blockTail) discard() {
	t.keep = false
	t.buf = nil
}

// mark records that the reader has consumed whole blocks up to stream
// offset off. Section headers passed over update the byte order.
func (t *blockTail) mark(off int64) {
	if !t.keep || off <= t.cut {
		return
	}
	if order, _, ok := walkBlocks(t.buf[t.cut-t.base:off-t.base], t.order); ok {
		t.order = order
	}
	t.cut = off

	// Compact once the consumed prefix dominates the buffer.
	if drop := int(off - t.base); drop > len(t.buf)/2 {
		t.buf = append(t.buf[:0], t.buf[drop:]...)
		t.base = off
	}
}

// complete reports whether the bytes after the last boundary are whole
// blocks. Only meaningful once the underlying stream has hit EOF.
func (t *blockTail) complete() bool {
	if !t.keep {
		return true
	}
	_, rest, ok := walkBlocks(t.buf[t.cut-t.base:], t.order)
	return ok && rest == 0
}

// walkBlocks steps over pcapng blocks in b. It returns the byte order in
// effect afterwards and the number of trailing bytes that do not form a
// whole block.
func walkBlocks(b []byte, order binary.ByteOrder) (binary.ByteOrder, int, bool) {
	for len(b) > 0 {
		if len(b) < ngMinBlockLen {
			return order, len(b), true
		}
		if bytes.Equal(b[:4], pcapngMagic) {
			switch {
			case binary.BigEndian.Uint32(b[8:12]) == ngByteOrderMagic:
				order = binary.BigEndian
			case binary.LittleEndian.Uint32(b[8:12]) == ngByteOrderMagic:
				order = binary.LittleEndian
			default:
				return order, len(b), false
			}
		}
		n := order.Uint32(b[4:8])
		if n < ngMinBlockLen || n%4 != 0 {
			return order, len(b), false
		}
		if uint64(n) > uint64(len(b)) {
			return order, len(b), true
		}
		b = b[n:]
	}
	return order, 0, true
}
