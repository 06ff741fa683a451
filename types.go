package h264e

import "image"

// DeviceID names the hardware block the stream is encoded on. SPS
// generation may depend on its capabilities.
type DeviceID int32

const (
	DeviceVEPU1 DeviceID = iota
	DeviceVEPU2
	DeviceRKVENC
	DeviceVEPU541
	DeviceVEPU580
)

const (
	// MaxDpbFrames is the number of picture slots tracked by a DPB.
	MaxDpbFrames = 17
	// MaxCpbRefs is the number of reference entries in a cpb status.
	MaxCpbRefs = 8
)

// RefMode selects how the current frame picks its reference.
type RefMode int32

const (
	RefToPrevRefFrame RefMode = iota
	RefToPrevStRef
	RefToPrevLtRef
	RefToTemporalLayer
	RefToLtRefIdx
	RefToStPrev
	RefToStRefSetup
)

// FrmStatus is the per-frame encode status exchanged between the reference
// manager, the DPB and rate control.
type FrmStatus struct {
	Valid    bool
	Reencode bool

	SeqIdx     int32
	IsIdr      bool
	IsIntra    bool
	IsNonRef   bool
	IsLtRef    bool
	LtIdx      int32
	TemporalID int32

	RefMode RefMode
	RefArg  int32
	RefDist int32
}

// CpbStatus is the coded picture buffer decision for the current frame.
type CpbStatus struct {
	SeqIdx int32
	Curr   FrmStatus
	Refr   FrmStatus
	Init   [MaxCpbRefs]FrmStatus
	Final  [MaxCpbRefs]FrmStatus
}

// CpbInfo reports the reference structure capability of the reference manager.
type CpbInfo struct {
	DpbSize  int32
	MaxLtCnt int32
	MaxStCnt int32
	MaxLtTid int32
	MaxStTid int32
}

// ForceFlag marks which directives of a RefFrameUserConfig are active.
type ForceFlag uint32

const (
	ForceTemporalID ForceFlag = 1 << 0
	ForceRefMode    ForceFlag = 1 << 1
	ForceLtRefIdx   ForceFlag = 1 << 2
)

// RefFrameUserConfig carries per-frame reference directives into the
// reference manager.
type RefFrameUserConfig struct {
	ForceFlag       ForceFlag
	ForceTemporalID int32
	ForceLtIdx      int32
	ForceRefMode    RefMode
	ForceRefArg     int32
}

// RcForceFlag marks which directives of an RcForceConfig are active.
type RcForceFlag uint32

const RcForceQP RcForceFlag = 1 << 0

// RcForceConfig carries per-frame rate control directives.
type RcForceConfig struct {
	ForceFlag RcForceFlag
	ForceQP   int32
}

// RcTaskInfo is the rate control target and outcome of a frame.
type RcTaskInfo struct {
	BitTarget     int32
	BitReal       int32
	QualityTarget int32
	QualityReal   int32
}

// RcTask is the rate control state travelling with a HAL task.
type RcTask struct {
	Cpb   CpbStatus
	Frm   FrmStatus
	Force RcForceConfig
	Info  RcTaskInfo
}

// DpbFrame is one picture slot of the DPB.
type DpbFrame struct {
	SlotIdx int32
	SeqIdx  int32
	OnUsed  bool
	Status  FrmStatus

	FrameNum int32
	Poc      int32
}

// ReorderInfo is the reference list modification state.
type ReorderInfo struct {
	Enabled int32
	Size    int32
	Ops     [MaxCpbRefs]ReorderOp
}

type ReorderOp struct {
	ModificationOfPicNumsIdc int32
	AbsDiffPicNumMinus1      int32
	LongTermPicIdx           int32
}

// MarkingInfo is the decoded reference picture marking state.
type MarkingInfo struct {
	IdrFlag                 bool
	NoOutputOfPriorPics     bool
	LongTermReferenceFlag   bool
	AdaptiveRefPicBuffering bool
	Size                    int32
	Ops                     [MaxCpbRefs]MarkingOp
}

type MarkingOp struct {
	MemoryManagementControlOperation int32
	DifferenceOfPicNumsMinus1        int32
	LongTermPicNum                   int32
	LongTermFrameIdx                 int32
	MaxLongTermFrameIdxPlus1         int32
}

// Dpb is the decoded picture buffer state. It is a plain value: copying it
// snapshots every slot. Curr and Refr are slot indices, -1 when unset.
type Dpb struct {
	Reorder *ReorderInfo
	Marking *MarkingInfo

	TotalCnt    int32
	MaxLtCnt    int32
	MaxStCnt    int32
	MaxFrameNum int32
	MaxPocLsb   int32
	SeqIdx      int32

	Frames [MaxDpbFrames]DpbFrame
	Curr   int
	Refr   int
}

// CurrFrame returns the picture being encoded, or nil.
func (d *Dpb) CurrFrame() *DpbFrame {
	if d.Curr < 0 || d.Curr >= len(d.Frames) {
		return nil
	}
	return &d.Frames[d.Curr]
}

// RefrFrame returns the picture referenced by the current one, or nil.
func (d *Dpb) RefrFrame() *DpbFrame {
	if d.Refr < 0 || d.Refr >= len(d.Frames) {
		return nil
	}
	return &d.Frames[d.Refr]
}

// Sps holds the sequence parameter set syntax.
type Sps struct {
	ProfileIdc         int32
	LevelIdc           int32
	ConstraintSetFlags uint8
	SpsID              int32
	ChromaFormatIdc    int32

	Log2MaxFrameNumMinus4      int32
	PicOrderCntType            int32
	Log2MaxPocLsbMinus4        int32
	NumRefFrames               int32
	GapsInFrameNumValueAllowed bool

	PicWidthInMbsMinus1       int32
	PicHeightInMapUnitsMinus1 int32
	FrameMbsOnly              bool
	Direct8x8Inference        bool

	Cropping   bool
	CropLeft   int32
	CropRight  int32
	CropTop    int32
	CropBottom int32
	VuiPresent bool
	Vui        VuiConfig
}

// Pps holds the picture parameter set syntax.
type Pps struct {
	PpsID                     int32
	SpsID                     int32
	EntropyCodingMode         EntropyCoding
	NumRefIdxL0DefaultActive  int32
	NumRefIdxL1DefaultActive  int32
	WeightedPred              bool
	WeightedBipredIdc         int32
	PicInitQp                 int32
	PicInitQs                 int32
	ChromaQpIndexOffset       int32
	SecondChromaQpIndexOffset int32
	DeblockingFilterControl   bool
	ConstrainedIntraPred      bool
	RedundantPicCntPresent    bool
	Transform8x8Mode          bool
	PicScalingMatrixPresent   bool
}

// Slice holds the slice header syntax of the current frame.
type Slice struct {
	Reorder *ReorderInfo
	Marking *MarkingInfo

	NalReferenceIdc int32
	NalUnitType     int32
	IdrFlag         bool
	SliceType       int32
	PpsID           int32
	FrameNum        int32
	IdrPicID        int32
	PicOrderCntLsb  int32
	QpDelta         int32

	DisableDeblockingFilterIdc int32
	SliceAlphaC0OffsetDiv2     int32
	SliceBetaOffsetDiv2        int32
}

// PrefixNal is the scalable coding prefix NAL unit header of a frame.
type PrefixNal struct {
	NalRefIdc            int32
	IdrFlag              bool
	PriorityID           int32
	NoInterLayerPredFlag int32
	DependencyID         int32
	QualityID            int32
	TemporalID           int32
	UseRefBasePicFlag    int32
	DiscardableFlag      int32
	OutputFlag           int32
}

// FrameInfo aggregates the DPB slot usage of the current frame.
type FrameInfo struct {
	SeqIdx  int32
	CurrIdx int32
	RefrIdx int32
	Usage   [MaxDpbFrames]bool
}

// RcSyntax is the rate control syntax handed to the HAL.
type RcSyntax struct {
	Mode      RateControlMode
	BpsTarget int32
	Gop       int32
	Force     RcForceConfig
	Info      RcTaskInfo
}

// HalTask is the per-frame unit of work exchanged with the HAL.
type HalTask struct {
	Valid     bool
	Syntax    []SyntaxDesc
	SyntaxNum int
	IsIntra   bool

	// Packet receives the coded frame. Length counts every byte produced
	// for the frame, including any prefix NAL unit.
	Packet *Packet
	Length int

	RcTask *RcTask
	Input  image.Image

	// ForcePid replaces the configured base layer priority id of the
	// prefix NAL unit with BaseLayerPid for this frame.
	ForcePid     bool
	BaseLayerPid int32
}
