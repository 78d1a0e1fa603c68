// Package buffer provides an append-only growable byte buffer backing a
// single connection's incoming stream.
package buffer

// minCapacity is the smallest capacity a non-empty Buffer will allocate.
const minCapacity = 1024

// Buffer is a single-owner, append-only byte buffer. It is not safe for
// concurrent use; each connection owns exactly one Buffer.
//
// Growth is geometric (capacity doubles once the 1024-byte floor is
// exceeded) rather than the fixed 1024-byte chunk growth of the original
// source, avoiding the quadratic total-copy cost of repeated fixed-size
// regrowth.
type Buffer struct {
	data []byte
}

// New returns an empty Buffer.
func New() *Buffer {
	return &Buffer{}
}

// Append copies b onto the end of the buffer, growing capacity as needed.
func (buf *Buffer) Append(b []byte) {
	if len(b) == 0 {
		return
	}
	buf.grow(len(buf.data) + len(b))
	buf.data = append(buf.data, b...)
}

// grow ensures capacity for at least needed bytes using geometric growth.
func (buf *Buffer) grow(needed int) {
	if cap(buf.data) >= needed {
		return
	}
	newCap := cap(buf.data)
	if newCap == 0 {
		newCap = minCapacity
	}
	for newCap < needed {
		newCap *= 2
	}
	grown := make([]byte, len(buf.data), newCap)
	copy(grown, buf.data)
	buf.data = grown
}

// Reset zero-fills the buffer's contents and sets its length to zero
// without shrinking capacity.
func (buf *Buffer) Reset() {
	for i := range buf.data {
		buf.data[i] = 0
	}
	buf.data = buf.data[:0]
}

// Len returns the number of live bytes in the buffer.
func (buf *Buffer) Len() int {
	return len(buf.data)
}

// Data returns a read-only view of the buffer's live contents. The slice is
// only valid until the next call to Append or Reset.
func (buf *Buffer) Data() []byte {
	return buf.data
}
