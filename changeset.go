package h264e

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ChangeSet is a partial configuration: only the groups named in the
// change masks carry authoritative values.
type ChangeSet struct {
	Cfg   ConfigSet
	Mlvec *MlvecStaticConfig
}

type changeSetFile struct {
	Prep  *prepFile  `yaml:"prep"`
	Rc    *rcFile    `yaml:"rc"`
	H264  *h264File  `yaml:"h264"`
	Split *splitFile `yaml:"split"`
	Mlvec *mlvecFile `yaml:"mlvec"`
}

type sizeFile struct {
	Width     int32 `yaml:"width"`
	Height    int32 `yaml:"height"`
	HorStride int32 `yaml:"hor_stride"`
	VerStride int32 `yaml:"ver_stride"`
}

type formatFile struct {
	Format FrameFormat `yaml:"format"`
	Color  int32       `yaml:"color"`
	Range  int32       `yaml:"range"`
}

type prepFile struct {
	Input     *sizeFile   `yaml:"input"`
	Format    *formatFile `yaml:"format"`
	Rotation  *int32      `yaml:"rotation"`
	Mirroring *int32      `yaml:"mirroring"`
	Denoise   *int32      `yaml:"denoise"`
	Sharpen   *int32      `yaml:"sharpen"`
}

type bpsFile struct {
	Target int32 `yaml:"target"`
	Max    int32 `yaml:"max"`
	Min    int32 `yaml:"min"`
}

type fpsFile struct {
	Flex  int32 `yaml:"flex"`
	Num   int32 `yaml:"num"`
	Denom int32 `yaml:"denom"`
}

type rcFile struct {
	Mode          *string  `yaml:"mode"`
	Quality       *string  `yaml:"quality"`
	Bps           *bpsFile `yaml:"bps"`
	FpsIn         *fpsFile `yaml:"fps_in"`
	FpsOut        *fpsFile `yaml:"fps_out"`
	Gop           *int32   `yaml:"gop"`
	SkipCnt       *int32   `yaml:"skip_cnt"`
	MaxReencTimes *int32   `yaml:"max_reenc_times"`
}

type profileFile struct {
	Profile H264Profile `yaml:"profile"`
	Level   H264Level   `yaml:"level"`
}

type entropyFile struct {
	Cabac        bool  `yaml:"cabac"`
	CabacInitIdc int32 `yaml:"cabac_init_idc"`
}

type chromaQPFile struct {
	CbOffset int32 `yaml:"cb_offset"`
	CrOffset int32 `yaml:"cr_offset"`
}

type deblockFile struct {
	Disable     int32 `yaml:"disable"`
	OffsetAlpha int32 `yaml:"offset_alpha"`
	OffsetBeta  int32 `yaml:"offset_beta"`
}

type qpFile struct {
	Init    int32 `yaml:"init"`
	Max     int32 `yaml:"max"`
	Min     int32 `yaml:"min"`
	MaxStep int32 `yaml:"max_step"`
}

type intraRefreshFile struct {
	Mode int32 `yaml:"mode"`
	Arg  int32 `yaml:"arg"`
}

type h264File struct {
	StreamType   *int32            `yaml:"stream_type"`
	Profile      *profileFile      `yaml:"profile"`
	Entropy      *entropyFile      `yaml:"entropy"`
	Trans8x8     *int32            `yaml:"transform8x8"`
	ConstIntra   *int32            `yaml:"constrained_intra"`
	ChromaQP     *chromaQPFile     `yaml:"chroma_qp"`
	Deblocking   *deblockFile      `yaml:"deblocking"`
	LongTerm     *int32            `yaml:"use_longterm"`
	ScalingList  *int32            `yaml:"scaling_list"`
	QP           *qpFile           `yaml:"qp"`
	IntraRefresh *intraRefreshFile `yaml:"intra_refresh"`
	MaxLtr       *int32            `yaml:"max_ltr_frames"`
	MaxTid       *int32            `yaml:"max_tid"`
	AddPrefix    *int32            `yaml:"add_prefix"`
	BaseLayerPid *int32            `yaml:"base_layer_pid"`
	Vui          *VuiConfig        `yaml:"vui"`
}

type splitFile struct {
	Mode *int32 `yaml:"mode"`
	Arg  *int32 `yaml:"arg"`
}

type mlvecFile struct {
	AddPrefix             *int32 `yaml:"add_prefix"`
	LtrFrames             *int32 `yaml:"ltr_frames"`
	MaxTemporalLayerCount *int32 `yaml:"max_temporal_layer_count"`
}

var rcModeNames = map[string]RateControlMode{
	"vbr":   RateControlVBR,
	"cbr":   RateControlCBR,
	"fixqp": RateControlFixQP,
	"avbr":  RateControlAVBR,
}

var qualityNames = map[string]RateControlQuality{
	"worst":   QualityWorst,
	"worse":   QualityWorse,
	"medium":  QualityMedium,
	"better":  QualityBetter,
	"best":    QualityBest,
	"cqp":     QualityCQP,
	"aq_only": QualityAQOnly,
}

// LoadChangeSetFile reads a YAML change set from path.
func LoadChangeSetFile(path string) (*ChangeSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read change set: %w", err)
	}
	defer f.Close()
	return LoadChangeSet(f)
}

// LoadChangeSet decodes a YAML change set. Every group present in the
// document sets its change bit; absent groups leave it clear.
func LoadChangeSet(r io.Reader) (*ChangeSet, error) {
	var doc changeSetFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to parse change set: %w", err)
	}

	cs := &ChangeSet{}
	if doc.Prep != nil {
		if err := doc.Prep.apply(&cs.Cfg.Prep); err != nil {
			return nil, err
		}
	}
	if doc.Rc != nil {
		if err := doc.Rc.apply(&cs.Cfg.Rc); err != nil {
			return nil, err
		}
	}
	if doc.H264 != nil {
		doc.H264.apply(&cs.Cfg.Codec.H264)
	}
	if doc.Split != nil {
		doc.Split.apply(&cs.Cfg.Split)
	}
	if doc.Mlvec != nil {
		cs.Mlvec = doc.Mlvec.config()
	}
	return cs, nil
}

func (f *prepFile) apply(p *PrepConfig) error {
	if f.Input != nil {
		p.Width, p.Height = f.Input.Width, f.Input.Height
		p.HorStride, p.VerStride = f.Input.HorStride, f.Input.VerStride
		p.Change |= PrepChangeInput
	}
	if f.Format != nil {
		p.Format, p.Color, p.Range = f.Format.Format, f.Format.Color, f.Format.Range
		p.Change |= PrepChangeFormat
	}
	if f.Rotation != nil {
		switch *f.Rotation {
		case 90:
			p.Rotation = Rotation90
		case 180:
			p.Rotation = Rotation180
		case 270:
			p.Rotation = Rotation270
		case 0:
			p.Rotation = Rotation0
		default:
			return fmt.Errorf("%w: rotation %d", ErrInvalidConfigValue, *f.Rotation)
		}
		p.Change |= PrepChangeRotation
	}
	if f.Mirroring != nil {
		p.Mirroring = *f.Mirroring
		p.Change |= PrepChangeMirroring
	}
	if f.Denoise != nil {
		p.Denoise = *f.Denoise
		p.Change |= PrepChangeDenoise
	}
	if f.Sharpen != nil {
		p.Sharpen = *f.Sharpen
		p.Change |= PrepChangeSharpen
	}
	return nil
}

func (f *rcFile) apply(rc *RcConfig) error {
	if f.Mode != nil {
		mode, ok := rcModeNames[*f.Mode]
		if !ok {
			return fmt.Errorf("%w: rc mode %q", ErrInvalidConfigValue, *f.Mode)
		}
		rc.Mode = mode
		rc.Change |= RcChangeMode
	}
	if f.Quality != nil {
		q, ok := qualityNames[*f.Quality]
		if !ok {
			return fmt.Errorf("%w: quality %q", ErrInvalidConfigValue, *f.Quality)
		}
		rc.Quality = q
		rc.Change |= RcChangeQuality
	}
	if f.Bps != nil {
		rc.BpsTarget, rc.BpsMax, rc.BpsMin = f.Bps.Target, f.Bps.Max, f.Bps.Min
		rc.Change |= RcChangeBps
	}
	if f.FpsIn != nil {
		rc.FpsInFlex, rc.FpsInNum, rc.FpsInDenom = f.FpsIn.Flex, f.FpsIn.Num, f.FpsIn.Denom
		rc.Change |= RcChangeFpsIn
	}
	if f.FpsOut != nil {
		rc.FpsOutFlex, rc.FpsOutNum, rc.FpsOutDenom = f.FpsOut.Flex, f.FpsOut.Num, f.FpsOut.Denom
		rc.Change |= RcChangeFpsOut
	}
	if f.Gop != nil {
		rc.Gop = *f.Gop
		rc.Change |= RcChangeGop
	}
	if f.SkipCnt != nil {
		rc.SkipCnt = *f.SkipCnt
		rc.Change |= RcChangeSkipCnt
	}
	if f.MaxReencTimes != nil {
		rc.MaxReencTimes = *f.MaxReencTimes
		rc.Change |= RcChangeMaxReenc
	}
	return nil
}

func (f *h264File) apply(h *H264Config) {
	set32 := func(src *int32, dst *int32, bit H264Change) {
		if src != nil {
			*dst = *src
			h.Change |= bit
		}
	}

	if f.StreamType != nil {
		h.StreamType = StreamType(*f.StreamType)
		h.Change |= H264ChangeStreamType
	}
	if f.Profile != nil {
		h.Profile, h.Level = f.Profile.Profile, f.Profile.Level
		h.Change |= H264ChangeProfile
	}
	if f.Entropy != nil {
		h.EntropyCodingMode = EntropyCAVLC
		if f.Entropy.Cabac {
			h.EntropyCodingMode = EntropyCABAC
		}
		h.CabacInitIdc = f.Entropy.CabacInitIdc
		h.Change |= H264ChangeEntropy
	}
	set32(f.Trans8x8, &h.Transform8x8Mode, H264ChangeTrans8x8)
	set32(f.ConstIntra, &h.ConstrainedIntraPredMode, H264ChangeConstIntra)
	if f.ChromaQP != nil {
		h.ChromaCbQpOffset, h.ChromaCrQpOffset = f.ChromaQP.CbOffset, f.ChromaQP.CrOffset
		h.Change |= H264ChangeChromaQP
	}
	if f.Deblocking != nil {
		h.DeblockDisable = f.Deblocking.Disable
		h.DeblockOffsetAlpha = f.Deblocking.OffsetAlpha
		h.DeblockOffsetBeta = f.Deblocking.OffsetBeta
		h.Change |= H264ChangeDeblocking
	}
	set32(f.LongTerm, &h.UseLongterm, H264ChangeLongTerm)
	set32(f.ScalingList, &h.ScalingListMode, H264ChangeScalingList)
	if f.QP != nil {
		h.QpInit, h.QpMax, h.QpMin, h.QpMaxStep = f.QP.Init, f.QP.Max, f.QP.Min, f.QP.MaxStep
		h.Change |= H264ChangeQPLimit
	}
	if f.IntraRefresh != nil {
		h.IntraRefreshMode, h.IntraRefreshArg = f.IntraRefresh.Mode, f.IntraRefresh.Arg
		h.Change |= H264ChangeIntraRefresh
	}
	set32(f.MaxLtr, &h.MaxLtrFrames, H264ChangeMaxLtr)
	set32(f.MaxTid, &h.MaxTid, H264ChangeMaxTid)
	set32(f.AddPrefix, &h.AddPrefix, H264ChangeAddPrefix)
	set32(f.BaseLayerPid, &h.BaseLayerPid, H264ChangeBaseLayerPid)
	if f.Vui != nil {
		h.Vui = *f.Vui
		h.Change |= H264ChangeVui
	}
}

func (f *splitFile) apply(s *SliceSplit) {
	if f.Mode != nil {
		s.Mode = SplitMode(*f.Mode)
		s.Change |= SplitChangeMode
	}
	if f.Arg != nil {
		s.Arg = *f.Arg
		s.Change |= SplitChangeArg
	}
}

func (f *mlvecFile) config() *MlvecStaticConfig {
	cfg := &MlvecStaticConfig{}
	if f.AddPrefix != nil {
		cfg.AddPrefix = *f.AddPrefix
		cfg.Change |= MlvecChangeAddPrefixNal
	}
	if f.LtrFrames != nil {
		cfg.LtrFrames = *f.LtrFrames
		cfg.Change |= MlvecChangeLtrFrames
	}
	if f.MaxTemporalLayerCount != nil {
		cfg.MaxTemporalLayerCount = *f.MaxTemporalLayerCount
		cfg.Change |= MlvecChangeMaxTemporalLayerCount
	}
	return cfg
}
