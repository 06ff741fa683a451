package h264e

import (
	"errors"

	"github.com/pion/logging"
	"github.com/pion/mediadevices/pkg/codec"
	"github.com/pion/mediadevices/pkg/io/video"
	"github.com/pion/mediadevices/pkg/prop"
)

// Params stores the control plane encoding parameters and the collaborators
// that produce syntax and drive the hardware.
type Params struct {
	codec.BaseParams

	DeviceID      DeviceID
	Collaborators Collaborators
	Hal           Hal

	// ChangeSet is applied on top of the controller defaults before the
	// first header is generated.
	ChangeSet *ChangeSet

	LoggerFactory logging.LoggerFactory
}

// FrameFormat is the layout of the input picture.
type FrameFormat int32

const (
	FormatYUV420SP FrameFormat = iota
	FormatYUV420SP10Bit
	FormatYUV422SP
	FormatYUV422SP10Bit
	FormatYUV420P
	FormatYUV420SPVU
	FormatYUV422P
	FormatYUV422SPVU
	FormatYUV422YUYV
	FormatYUV422YVYU
	FormatYUV422UYVY
	FormatYUV422VYUY
	FormatYUV400
	FormatYUV440SP
	FormatYUV411SP
	FormatYUV444SP
	FormatYUV444P
)

const (
	FormatRGB565 FrameFormat = 0x10000 + iota
	FormatBGR565
	FormatRGB555
	FormatBGR555
	FormatRGB444
	FormatBGR444
	FormatRGB888
	FormatBGR888
	FormatRGB101010
	FormatBGR101010
	FormatARGB8888
	FormatABGR8888
	FormatBGRA8888
	FormatRGBA8888
)

var formatFourCC = map[FrameFormat]uint32{
	// NV12: two-plane 8-bit YUV 4:2:0. The first plane contains Y, the
	// second plane contains U and V in pairs of bytes.
	FormatYUV420SP: 0x3231564E,
	// NV21: same as NV12, but with U and V swapped.
	FormatYUV420SPVU: 0x3132564E,
	// I420: three-plane 8-bit YUV 4:2:0, planes Y, U, V.
	FormatYUV420P: 0x30323449,
	// P208: two-plane 8-bit YUV 4:2:2.
	FormatYUV422SP: 0x38303250,
	// YUY2: four bytes per pair of pixels, Y, U, Y, V.
	FormatYUV422YUYV: 0x32595559,
	// UYVY: four bytes per pair of pixels, U, Y, V, Y.
	FormatYUV422UYVY: 0x59565955,
	// NV11: two-plane 8-bit YUV 4:1:1.
	FormatYUV411SP: 0x3131564e,
	// YV24: three-plane 8-bit YUV 4:4:4.
	FormatYUV444P:  0x34325659,
	FormatRGBA8888: 0x41424752,
	FormatBGRA8888: 0x41524742,
	FormatARGB8888: 0x42475241,
	FormatABGR8888: 0x52474241,
}

// FourCC returns the fourcc code of the format, or 0 when the format has
// no fourcc equivalent.
func (f FrameFormat) FourCC() uint32 {
	return formatFourCC[f]
}

// IsYUV reports whether the format is one of the YUV layouts.
func (f FrameFormat) IsYUV() bool {
	return f >= FormatYUV420SP && f <= FormatYUV444P
}

// NewParams returns default h264 control plane parameters.
func NewParams() (Params, error) {
	return Params{
		BaseParams: codec.BaseParams{
			KeyFrameInterval: 60,
			BitRate:          2000 * 1000,
		},
	}, nil
}

// RTPCodec represents the codec metadata
func (p *Params) RTPCodec() *codec.RTPCodec {
	return codec.NewRTPH264Codec(90000)
}

// BuildVideoEncoder builds the h264 encoder with given params
func (p *Params) BuildVideoEncoder(r video.Reader, property prop.Media) (codec.ReadCloser, error) {
	if p.Hal == nil {
		return nil, errors.New("h264e: no hal bound to params")
	}
	return newEncoder(r, property, *p)
}
