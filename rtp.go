package h264e

import (
	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
)

const (
	rtpClockRate  = 90000
	defaultRTPMTU = 1200
)

// RTPPacketizer splits encoded frames into RTP packets. SPS and PPS are
// aggregated with the following NAL unit into a STAP-A packet.
type RTPPacketizer struct {
	packetizer rtp.Packetizer
	samples    uint32
}

// NewRTPPacketizer returns a packetizer for a stream running at the output
// frame rate of rc.
func NewRTPPacketizer(mtu uint16, payloadType uint8, ssrc uint32, rc RcConfig) *RTPPacketizer {
	if mtu == 0 {
		mtu = defaultRTPMTU
	}
	return &RTPPacketizer{
		packetizer: rtp.NewPacketizer(mtu, payloadType, ssrc, &codecs.H264Payloader{}, rtp.NewRandomSequencer(), rtpClockRate),
		samples:    frameSamples(rc),
	}
}

// frameSamples is the RTP timestamp increment of one output frame.
func frameSamples(rc RcConfig) uint32 {
	if rc.FpsOutNum <= 0 || rc.FpsOutDenom <= 0 {
		return rtpClockRate / 30
	}
	return uint32(int64(rtpClockRate) * int64(rc.FpsOutDenom) / int64(rc.FpsOutNum))
}

// Packetize returns the packets of frame. The last packet carries the
// marker bit.
func (p *RTPPacketizer) Packetize(frame *EncodedFrame) []*rtp.Packet {
	if frame == nil {
		return nil
	}
	return p.packetizer.Packetize(frame.Data, p.samples)
}
