package h264e

// PrepChange selects picture preparation fields in a partial update.
type PrepChange uint32

const (
	PrepChangeInput     PrepChange = 1 << 0
	PrepChangeFormat    PrepChange = 1 << 2
	PrepChangeRotation  PrepChange = 1 << 4
	PrepChangeMirroring PrepChange = 1 << 5
	PrepChangeDenoise   PrepChange = 1 << 8
	PrepChangeSharpen   PrepChange = 1 << 9
	PrepChangeAll       PrepChange = 0xFFFFFFFF
)

func (c PrepChange) Has(bits PrepChange) bool { return c&bits != 0 }

// RcChange selects rate control fields in a partial update.
type RcChange uint32

const (
	RcChangeMode     RcChange = 1 << 0
	RcChangeQuality  RcChange = 1 << 1
	RcChangeBps      RcChange = 1 << 2
	RcChangeFpsIn    RcChange = 1 << 5
	RcChangeFpsOut   RcChange = 1 << 6
	RcChangeGop      RcChange = 1 << 7
	RcChangeSkipCnt  RcChange = 1 << 8
	RcChangeMaxReenc RcChange = 1 << 9
	RcChangeAll      RcChange = 0xFFFFFFFF
)

func (c RcChange) Has(bits RcChange) bool { return c&bits != 0 }

// H264Change selects H.264 codec fields in a partial update.
type H264Change uint32

const (
	H264ChangeStreamType   H264Change = 1 << 0
	H264ChangeProfile      H264Change = 1 << 1
	H264ChangeEntropy      H264Change = 1 << 2
	H264ChangeTrans8x8     H264Change = 1 << 4
	H264ChangeConstIntra   H264Change = 1 << 6
	H264ChangeChromaQP     H264Change = 1 << 7
	H264ChangeDeblocking   H264Change = 1 << 8
	H264ChangeLongTerm     H264Change = 1 << 9
	H264ChangeScalingList  H264Change = 1 << 10
	H264ChangeIntraRefresh H264Change = 1 << 11
	H264ChangeQPLimit      H264Change = 1 << 12
	H264ChangeMaxLtr       H264Change = 1 << 13
	H264ChangeMaxTid       H264Change = 1 << 14
	H264ChangeAddPrefix    H264Change = 1 << 15
	H264ChangeBaseLayerPid H264Change = 1 << 16
	H264ChangeVui          H264Change = 1 << 17
	H264ChangeAll          H264Change = 0xFFFFFFFF
)

func (c H264Change) Has(bits H264Change) bool { return c&bits != 0 }

// SplitChange selects slice split fields in a partial update.
type SplitChange uint32

const (
	SplitChangeMode SplitChange = 1 << 0
	SplitChangeArg  SplitChange = 1 << 1
	SplitChangeAll  SplitChange = 0xFFFFFFFF
)

func (c SplitChange) Has(bits SplitChange) bool { return c&bits != 0 }

// PrepConfig describes the input picture handed to the encoder.
//
// Width and Height are stored in encoded orientation: when the rotation
// swaps axes they hold the rotated dimensions.
type PrepConfig struct {
	Change PrepChange

	Width     int32
	Height    int32
	HorStride int32
	VerStride int32

	Format    FrameFormat
	Color     int32
	Range     int32
	Rotation  Rotation
	Mirroring int32
	Denoise   int32
	Sharpen   int32
}

// RcConfig is the rate control configuration.
type RcConfig struct {
	Change RcChange

	Mode    RateControlMode
	Quality RateControlQuality

	BpsTarget int32
	BpsMax    int32
	BpsMin    int32

	FpsInFlex   int32
	FpsInNum    int32
	FpsInDenom  int32
	FpsOutFlex  int32
	FpsOutNum   int32
	FpsOutDenom int32

	Gop           int32
	SkipCnt       int32
	MaxReencTimes int32
}

// VuiConfig carries the video usability information written into the SPS.
type VuiConfig struct {
	Enabled                 int32 `yaml:"enabled"`
	AspectRatioInfoPresent  int32 `yaml:"aspect_ratio_info_present"`
	VideoFullRange          int32 `yaml:"video_full_range"`
	ColorDescriptionPresent int32 `yaml:"color_description_present"`
	ColorPrimaries          int32 `yaml:"color_primaries"`
	TransferCharacteristics int32 `yaml:"transfer_characteristics"`
	MatrixCoefficients      int32 `yaml:"matrix_coefficients"`
	TimingInfoPresent       int32 `yaml:"timing_info_present"`
}

// H264Config holds the H.264 specific tunables.
type H264Config struct {
	Change H264Change

	StreamType StreamType
	Profile    H264Profile
	Level      H264Level

	EntropyCodingMode EntropyCoding
	CabacInitIdc      int32

	Transform8x8Mode         int32
	ConstrainedIntraPredMode int32
	ChromaCbQpOffset         int32
	ChromaCrQpOffset         int32

	DeblockDisable     int32
	DeblockOffsetAlpha int32
	DeblockOffsetBeta  int32

	UseLongterm     int32
	ScalingListMode int32

	QpInit    int32
	QpMax     int32
	QpMin     int32
	QpMaxStep int32

	IntraRefreshMode int32
	IntraRefreshArg  int32

	MaxLtrFrames int32
	MaxTid       int32
	AddPrefix    int32
	BaseLayerPid int32

	Vui VuiConfig
}

// CodecConfig wraps the codec specific configuration.
type CodecConfig struct {
	H264 H264Config
}

// SliceSplit configures how a picture is split into slices.
type SliceSplit struct {
	Change SplitChange

	Mode SplitMode
	Arg  int32
}

// ConfigSet is the full encoder configuration shared between the caller,
// the controller and the HAL. The controller mutates it in place.
type ConfigSet struct {
	Prep  PrepConfig
	Rc    RcConfig
	Codec CodecConfig
	Split SliceSplit
}

// setDefaults loads the controller defaults: baseline profile level 3.1,
// 720p YUV420SP, CBR 2Mbps +-25%, 30fps, gop 60.
func (cfg *ConfigSet) setDefaults() {
	cfg.Codec.H264 = H264Config{
		Profile:   H264ProfileBaseline,
		Level:     H264Level3_1,
		QpInit:    26,
		QpMax:     48,
		QpMin:     8,
		QpMaxStep: 8,
	}

	cfg.Prep = PrepConfig{
		Width:     1280,
		Height:    720,
		HorStride: 1280,
		VerStride: 720,
		Format:    FormatYUV420SP,
		Rotation:  Rotation0,
	}

	rc := &cfg.Rc
	*rc = RcConfig{
		Mode:          RateControlCBR,
		Quality:       QualityMedium,
		BpsTarget:     2000 * 1000,
		FpsInNum:      30,
		FpsInDenom:    1,
		FpsOutNum:     30,
		FpsOutDenom:   1,
		Gop:           60,
		MaxReencTimes: 1,
	}
	rc.BpsMax = rc.BpsTarget * 5 / 4
	rc.BpsMin = rc.BpsTarget * 3 / 4
}
