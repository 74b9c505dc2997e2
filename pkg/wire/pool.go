package wire

import (
	rp "github.com/Clouded-Sabre/ringpool/lib"
)

// recvBuffer is the ringpool DataInterface implementation backing each
// pooled receive buffer. Modeled on Clouded-Sabre-Pseudo-TCP's own
// Payload type: a fixed-capacity byte slice that gets zeroed and
// reused instead of reallocated per datagram.
type recvBuffer struct {
	bytes  []byte
	length int
}

func newRecvBuffer(...interface{}) rp.DataInterface {
	return &recvBuffer{bytes: make([]byte, MaxPayload)}
}

func (b *recvBuffer) SetContent(s string) {
	b.bytes = []byte(s)
	b.length = len(s)
}

func (b *recvBuffer) Reset() {
	for i := range b.bytes[:b.length] {
		b.bytes[i] = 0
	}
	b.length = 0
}

func (b *recvBuffer) PrintContent() {}

func (b *recvBuffer) Copy(src []byte) error {
	if len(src) > len(b.bytes) {
		return &OversizedPayload{Size: len(src), Max: len(b.bytes)}
	}
	copy(b.bytes, src)
	b.length = len(src)
	return nil
}

func (b *recvBuffer) GetSlice() []byte {
	return b.bytes[:b.length]
}

// BufferPool hands out reusable MaxPayload-sized buffers for the
// worker's receive path, so a session under steady load doesn't
// allocate a fresh 64KiB slice per datagram. Grounded on
// Clouded-Sabre-Pseudo-TCP/lib/pool.go's RingPool usage.
type BufferPool struct {
	pool *rp.RingPool
}

// NewBufferPool creates a pool of the given depth. A depth of a few
// dozen buffers comfortably covers one session's single-socket receive
// burst without the pool itself becoming a bottleneck.
func NewBufferPool(depth int) *BufferPool {
	return &BufferPool{
		pool: rp.NewRingPool("rudpsession recv pool: ", depth, newRecvBuffer, MaxPayload),
	}
}

// Lease returns a pooled element and the raw byte slice backing it.
// The slice has length MaxPayload; callers pass the element to Release
// once they have copied out what they need.
func (p *BufferPool) Lease() (*rp.Element, []byte) {
	el := p.pool.GetElement()
	buf := el.Data.(*recvBuffer)
	return el, buf.bytes
}

// Release returns a leased element to the pool after Reset, which
// zeroes only content stored through Copy or SetContent; bytes written
// directly into the slice from Lease are not cleared.
func (p *BufferPool) Release(el *rp.Element) {
	el.Data.(*recvBuffer).Reset()
	p.pool.ReturnElement(el)
}
