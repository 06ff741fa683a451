package h264e

import "fmt"

// Packet is a byte buffer with a read position and a written length.
// Writes past the allocated size grow the buffer.
type Packet struct {
	data   []byte
	pos    int
	length int
}

// NewPacket allocates a packet with the given capacity.
func NewPacket(size int) (*Packet, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: packet size %d", ErrAllocationFailure, size)
	}
	return &Packet{data: make([]byte, size)}, nil
}

// WrapPacket builds a packet view over an existing buffer.
func WrapPacket(buf []byte) *Packet {
	return &Packet{data: buf[:cap(buf)]}
}

// Reset zeroes the written length and position without releasing the buffer.
func (p *Packet) Reset() {
	p.pos = 0
	p.length = 0
}

// Data returns the whole backing buffer.
func (p *Packet) Data() []byte { return p.data }

// Pos returns the offset of the payload start inside Data.
func (p *Packet) Pos() int { return p.pos }

// SetPos moves the payload start.
func (p *Packet) SetPos(pos int) {
	if pos < 0 || pos > len(p.data) {
		panic(fmt.Sprintf("h264e: packet pos %d out of range [0:%d]", pos, len(p.data)))
	}
	p.pos = pos
}

// Length returns the number of payload bytes written after Pos.
func (p *Packet) Length() int { return p.length }

// Size returns the allocated size of the buffer.
func (p *Packet) Size() int { return len(p.data) }

// SetLength sets the payload length.
func (p *Packet) SetLength(length int) {
	if length < 0 || p.pos+length > len(p.data) {
		panic(fmt.Sprintf("h264e: packet length %d exceeds size %d", length, len(p.data)-p.pos))
	}
	p.length = length
}

// Bytes returns the written payload.
func (p *Packet) Bytes() []byte {
	return p.data[p.pos : p.pos+p.length]
}

// Spare returns the unwritten capacity after the payload.
func (p *Packet) Spare() []byte {
	return p.data[p.pos+p.length:]
}

// Write copies src to offset bytes after Pos, growing the buffer when needed.
// The length is not changed.
func (p *Packet) Write(offset int, src []byte) {
	end := p.pos + offset + len(src)
	if end > len(p.data) {
		p.grow(end)
	}
	copy(p.data[p.pos+offset:], src)
}

// Append writes src after the payload and extends the length.
func (p *Packet) Append(src []byte) {
	p.Write(p.length, src)
	p.length += len(src)
}

func (p *Packet) grow(need int) {
	size := 2 * len(p.data)
	if size < need {
		size = need
	}
	buf := make([]byte, size)
	copy(buf, p.data)
	p.data = buf
}

// headerPacket holds the serialized SPS and PPS of the stream.
type headerPacket struct {
	pkt    *Packet
	spsLen int
	ppsLen int
	seiLen int
}

func newHeaderPacket(size int) (*headerPacket, error) {
	pkt, err := NewPacket(size)
	if err != nil {
		return nil, err
	}
	return &headerPacket{pkt: pkt}, nil
}

func (h *headerPacket) reset() {
	h.pkt.Reset()
	h.spsLen = 0
	h.ppsLen = 0
	h.seiLen = 0
}

func (h *headerPacket) length() int { return h.pkt.Length() }

// copyTo writes the header into dst and sets its length.
func (h *headerPacket) copyTo(dst *Packet) {
	dst.Write(0, h.pkt.Bytes())
	dst.SetLength(h.pkt.Length())
}

func (h *headerPacket) release() {
	h.pkt = nil
}
