package h264e

import (
	"fmt"

	"github.com/pion/logging"
)

const (
	bpsLowerBound = 1000
	bpsUpperBound = 100 * 1000 * 1000
)

type changeBits interface {
	~uint32
}

// fieldRule copies one field group from src to dst when bit is selected.
type fieldRule[T any, C changeBits] struct {
	bit   C
	apply func(dst, src *T)
}

func applyFields[T any, C changeBits](dst, src *T, change C, rules []fieldRule[T, C]) {
	for _, r := range rules {
		if change&r.bit != 0 {
			r.apply(dst, src)
		}
	}
}

// Input must stay after rotation: the stored size depends on the new rotation.
var prepRules = []fieldRule[PrepConfig, PrepChange]{
	{PrepChangeFormat, func(dst, src *PrepConfig) {
		dst.Format = src.Format
		dst.Color = src.Color
		dst.Range = src.Range
	}},
	{PrepChangeRotation, func(dst, src *PrepConfig) { dst.Rotation = src.Rotation }},
	{PrepChangeMirroring, func(dst, src *PrepConfig) { dst.Mirroring = src.Mirroring }},
	{PrepChangeDenoise, func(dst, src *PrepConfig) { dst.Denoise = src.Denoise }},
	{PrepChangeSharpen, func(dst, src *PrepConfig) { dst.Sharpen = src.Sharpen }},
	{PrepChangeInput, func(dst, src *PrepConfig) {
		if dst.Rotation.swapsAxes() {
			dst.Width = src.Height
			dst.Height = src.Width
		} else {
			dst.Width = src.Width
			dst.Height = src.Height
		}
		dst.HorStride = src.HorStride
		dst.VerStride = src.VerStride
	}},
}

var rcRules = []fieldRule[RcConfig, RcChange]{
	{RcChangeMode, func(dst, src *RcConfig) { dst.Mode = src.Mode }},
	{RcChangeQuality, func(dst, src *RcConfig) { dst.Quality = src.Quality }},
	{RcChangeBps, func(dst, src *RcConfig) {
		dst.BpsTarget = src.BpsTarget
		dst.BpsMax = src.BpsMax
		dst.BpsMin = src.BpsMin
	}},
	{RcChangeFpsIn, func(dst, src *RcConfig) {
		dst.FpsInFlex = src.FpsInFlex
		dst.FpsInNum = src.FpsInNum
		dst.FpsInDenom = src.FpsInDenom
	}},
	{RcChangeFpsOut, func(dst, src *RcConfig) {
		dst.FpsOutFlex = src.FpsOutFlex
		dst.FpsOutNum = src.FpsOutNum
		dst.FpsOutDenom = src.FpsOutDenom
	}},
	{RcChangeGop, func(dst, src *RcConfig) { dst.Gop = src.Gop }},
	{RcChangeSkipCnt, func(dst, src *RcConfig) { dst.SkipCnt = src.SkipCnt }},
	{RcChangeMaxReenc, func(dst, src *RcConfig) { dst.MaxReencTimes = src.MaxReencTimes }},
}

var h264Rules = []fieldRule[H264Config, H264Change]{
	{H264ChangeStreamType, func(dst, src *H264Config) { dst.StreamType = src.StreamType }},
	{H264ChangeProfile, func(dst, src *H264Config) {
		dst.Profile = src.Profile
		dst.Level = src.Level
	}},
	{H264ChangeEntropy, func(dst, src *H264Config) {
		dst.EntropyCodingMode = src.EntropyCodingMode
		dst.CabacInitIdc = src.CabacInitIdc
	}},
	{H264ChangeTrans8x8, func(dst, src *H264Config) { dst.Transform8x8Mode = src.Transform8x8Mode }},
	{H264ChangeConstIntra, func(dst, src *H264Config) { dst.ConstrainedIntraPredMode = src.ConstrainedIntraPredMode }},
	{H264ChangeChromaQP, func(dst, src *H264Config) {
		dst.ChromaCbQpOffset = src.ChromaCbQpOffset
		dst.ChromaCrQpOffset = src.ChromaCrQpOffset
	}},
	{H264ChangeDeblocking, func(dst, src *H264Config) {
		dst.DeblockDisable = src.DeblockDisable
		dst.DeblockOffsetAlpha = src.DeblockOffsetAlpha
		dst.DeblockOffsetBeta = src.DeblockOffsetBeta
	}},
	{H264ChangeLongTerm, func(dst, src *H264Config) { dst.UseLongterm = src.UseLongterm }},
	{H264ChangeScalingList, func(dst, src *H264Config) { dst.ScalingListMode = src.ScalingListMode }},
	{H264ChangeQPLimit, func(dst, src *H264Config) {
		dst.QpInit = src.QpInit
		dst.QpMax = src.QpMax
		dst.QpMin = src.QpMin
		dst.QpMaxStep = src.QpMaxStep
	}},
	{H264ChangeIntraRefresh, func(dst, src *H264Config) {
		dst.IntraRefreshMode = src.IntraRefreshMode
		dst.IntraRefreshArg = src.IntraRefreshArg
	}},
	{H264ChangeMaxLtr, func(dst, src *H264Config) { dst.MaxLtrFrames = src.MaxLtrFrames }},
	{H264ChangeMaxTid, func(dst, src *H264Config) { dst.MaxTid = src.MaxTid }},
	{H264ChangeAddPrefix, func(dst, src *H264Config) { dst.AddPrefix = src.AddPrefix }},
	{H264ChangeBaseLayerPid, func(dst, src *H264Config) { dst.BaseLayerPid = src.BaseLayerPid }},
	{H264ChangeVui, func(dst, src *H264Config) { dst.Vui = src.Vui }},
}

// The mode group carries its argument along.
var splitRules = []fieldRule[SliceSplit, SplitChange]{
	{SplitChangeMode, func(dst, src *SliceSplit) {
		dst.Mode = src.Mode
		dst.Arg = src.Arg
	}},
	{SplitChangeArg, func(dst, src *SliceSplit) { dst.Arg = src.Arg }},
}

// mergePrep applies the selected prep fields of src onto dst. On validation
// failure dst is restored to its state before the call.
func mergePrep(dst, src *PrepConfig, log logging.LeveledLogger) error {
	change := src.Change
	src.Change = 0
	if change == 0 {
		return nil
	}

	bak := *dst
	applyFields(dst, src, change, prepRules)

	if err := checkPrep(dst); err != nil {
		log.Errorf("failed to accept new prep config: %v", err)
		*dst = bak
		return err
	}

	dst.Change |= change
	log.Infof("set prep cfg w:h [%d:%d] stride [%d:%d]",
		dst.Width, dst.Height, dst.HorStride, dst.VerStride)
	return nil
}

// checkPrep validates the stored (already rotated) size against the strides.
func checkPrep(p *PrepConfig) error {
	if p.Width > p.HorStride || p.Height > p.VerStride {
		return fmt.Errorf("%w: size w:h [%d:%d] exceeds stride [%d:%d]",
			ErrInvalidConfigValue, p.Width, p.Height, p.HorStride, p.VerStride)
	}
	return nil
}

// mergeRc applies the selected rate control fields of src onto dst. On
// validation failure dst is restored to its state before the call.
func mergeRc(dst, src *RcConfig, log logging.LeveledLogger) error {
	change := src.Change
	src.Change = 0
	if change == 0 {
		return nil
	}

	bak := *dst
	applyFields(dst, src, change, rcRules)

	if err := checkRc(dst); err != nil {
		log.Errorf("failed to accept new rc config: %v", err)
		*dst = bak
		return err
	}

	dst.Change |= change
	log.Infof("set rc cfg bps %d [%d : %d] fps [%d:%d] gop %d",
		dst.BpsTarget, dst.BpsMin, dst.BpsMax, dst.FpsInNum, dst.FpsOutNum, dst.Gop)
	return nil
}

func checkRc(rc *RcConfig) error {
	if rc.Mode < 0 || rc.Mode >= rateControlButt {
		return fmt.Errorf("%w: rc mode %d", ErrInvalidConfigValue, rc.Mode)
	}
	if rc.Quality < 0 || rc.Quality >= qualityButt {
		return fmt.Errorf("%w: quality %d should be from worst to aq only", ErrInvalidConfigValue, rc.Quality)
	}
	if rc.Mode == RateControlFixQP {
		return nil
	}
	for _, bps := range [...]int32{rc.BpsTarget, rc.BpsMax, rc.BpsMin} {
		if bps <= bpsLowerBound || bps >= bpsUpperBound {
			return fmt.Errorf("%w: bit per second %d [%d:%d] out of range 1K~100M",
				ErrInvalidConfigValue, rc.BpsTarget, rc.BpsMin, rc.BpsMax)
		}
	}
	return nil
}

// mergeH264 applies the selected codec fields. Values are accepted as given.
func mergeH264(dst, src *H264Config, log logging.LeveledLogger) error {
	change := src.Change
	src.Change = 0

	applyFields(dst, src, change, h264Rules)
	dst.Change |= change
	if change != 0 {
		log.Debugf("set h264 cfg change %x profile %d level %d", uint32(change), dst.Profile, dst.Level)
	}
	return nil
}

func mergeSplit(dst, src *SliceSplit, log logging.LeveledLogger) error {
	change := src.Change
	src.Change = 0

	applyFields(dst, src, change, splitRules)
	dst.Change |= change
	if change != 0 {
		log.Debugf("set split mode %d arg %d", dst.Mode, dst.Arg)
	}
	return nil
}
