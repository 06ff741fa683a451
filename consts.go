package h264e

// CodingType identifies the video standard a controller implements.
type CodingType int

const (
	CodingUnused CodingType = iota
	CodingAVC
	CodingHEVC
	CodingMJPEG
	CodingVP8
)

func (c CodingType) String() string {
	switch c {
	case CodingAVC:
		return "AVC"
	case CodingHEVC:
		return "HEVC"
	case CodingMJPEG:
		return "MJPEG"
	case CodingVP8:
		return "VP8"
	}
	return "unused"
}

// RateControlMode represents rate control mode.
// Note that supported mode depends on the codec and acceleration hardware.
type RateControlMode int32

// List of the RateControlMode.
const (
	RateControlVBR RateControlMode = iota
	RateControlCBR
	RateControlFixQP
	RateControlAVBR
	rateControlButt
)

// RateControlQuality is the quality target used by the rate control model.
type RateControlQuality int32

const (
	QualityWorst RateControlQuality = iota
	QualityWorse
	QualityMedium
	QualityBetter
	QualityBest
	QualityCQP
	QualityAQOnly
	qualityButt
)

type H264Profile int32

const (
	H264ProfileBaseline H264Profile = 66
	H264ProfileMain     H264Profile = 77
	H264ProfileExtended H264Profile = 88
	H264ProfileHigh     H264Profile = 100
)

type H264Level int32

const (
	H264Level1   H264Level = 10
	H264Level1b  H264Level = 9
	H264Level1_1 H264Level = 11
	H264Level2   H264Level = 20
	H264Level3   H264Level = 30
	H264Level3_1 H264Level = 31
	H264Level4   H264Level = 40
	H264Level4_1 H264Level = 41
	H264Level5   H264Level = 50
	H264Level5_1 H264Level = 51
)

// Rotation of the input picture before encoding.
type Rotation int32

const (
	Rotation0 Rotation = iota
	Rotation90
	Rotation180
	Rotation270
)

// swapsAxes reports whether the rotation exchanges width and height.
func (r Rotation) swapsAxes() bool {
	return r == Rotation90 || r == Rotation270
}

type EntropyCoding int32

const (
	EntropyCAVLC EntropyCoding = 0
	EntropyCABAC EntropyCoding = 1
)

// StreamType selects Annex B start codes or length prefixed NAL units.
type StreamType int32

const (
	StreamAnnexB StreamType = 0
	StreamAVCC   StreamType = 1
)

type SplitMode int32

const (
	SplitNone SplitMode = iota
	SplitByByte
	SplitByCTU
)

// WorkMode is the HAL operating mode reported at HAL init.
type WorkMode int32

const (
	WorkModeSync WorkMode = iota
	WorkModeAsync
)
