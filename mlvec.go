package h264e

import (
	"fmt"

	"github.com/pion/logging"
)

// MlvecChange selects multi-layer fields in a partial update. Static bits
// occupy the low half, dynamic bits the high half.
type MlvecChange uint32

const (
	MlvecChangeLtrFrames             MlvecChange = 0x00000001
	MlvecChangeMaxTemporalLayerCount MlvecChange = 0x00000002
	MlvecChangeAddPrefixNal          MlvecChange = 0x00000004

	MlvecChangeMarkLtr      MlvecChange = 0x00010000
	MlvecChangeUseLtr       MlvecChange = 0x00020000
	MlvecChangeFrameQP      MlvecChange = 0x00040000
	MlvecChangeBaseLayerPid MlvecChange = 0x00080000
)

func (c MlvecChange) Has(bits MlvecChange) bool { return c&bits != 0 }

// MlvecStaticConfig is the multi-layer capability of the stream.
type MlvecStaticConfig struct {
	Change MlvecChange

	AddPrefix             int32
	LtrFrames             int32
	MaxTemporalLayerCount int32
}

// MlvecDynamicConfig holds per-frame multi-layer directives. A negative
// value marks a directive inactive.
type MlvecDynamicConfig struct {
	Change MlvecChange

	MarkLtr      int32
	UseLtr       int32
	FrameQP      int32
	BaseLayerPid int32
}

// Mlvec injects per-frame multi-layer overrides into the reference manager
// and rate control without touching the steady-state configuration.
type Mlvec struct {
	static  MlvecStaticConfig
	dynamic MlvecDynamicConfig

	staticOld  MlvecStaticConfig
	dynamicOld MlvecDynamicConfig

	enabled bool

	maxLtrIdx int32
	curLtrIdx int32

	log logging.LeveledLogger
}

// NewMlvec returns an MLVEC context with every directive inactive.
func NewMlvec(lf logging.LoggerFactory) *Mlvec {
	m := &Mlvec{log: loggerFactoryOrDefault(lf).NewLogger("h264e_mlvec")}
	m.disable()
	return m
}

// mark, use and base layer pid are single shot. Frame qp is left alone.
func (d *MlvecDynamicConfig) reset() {
	d.Change = 0
	d.MarkLtr = -1
	d.UseLtr = -1
	d.BaseLayerPid = -1
}

func (m *Mlvec) disable() {
	log := m.log
	*m = Mlvec{log: log}
	m.dynamic.FrameQP = -1
	m.dynamic.reset()
	m.dynamicOld = m.dynamic
	m.curLtrIdx = -1
	m.maxLtrIdx = -1
}

// SetStaticConfig merges the selected static fields. A nil cfg disables
// every multi-layer feature.
func (m *Mlvec) SetStaticConfig(cfg *MlvecStaticConfig) error {
	if m == nil {
		return fmt.Errorf("%w: mlvec", ErrNullArgument)
	}
	if cfg == nil {
		m.disable()
		return nil
	}

	change := cfg.Change
	dst := &m.static
	m.staticOld = *dst

	if change.Has(MlvecChangeLtrFrames) {
		dst.LtrFrames = cfg.LtrFrames
		m.maxLtrIdx = cfg.LtrFrames - 1
	}
	if change.Has(MlvecChangeMaxTemporalLayerCount) {
		dst.MaxTemporalLayerCount = cfg.MaxTemporalLayerCount
	}
	if change.Has(MlvecChangeAddPrefixNal) {
		dst.AddPrefix = cfg.AddPrefix
	}

	dst.Change |= change
	cfg.Change = 0
	m.enabled = dst.LtrFrames > 0 || dst.MaxTemporalLayerCount > 0 || dst.AddPrefix != 0
	return nil
}

// SetDynamicConfig merges the selected per-frame directives. A nil cfg
// disables every multi-layer feature.
func (m *Mlvec) SetDynamicConfig(cfg *MlvecDynamicConfig) error {
	if m == nil {
		return fmt.Errorf("%w: mlvec", ErrNullArgument)
	}
	if cfg == nil {
		m.disable()
		return nil
	}

	change := cfg.Change
	dst := &m.dynamic
	m.dynamicOld = *dst

	if change.Has(MlvecChangeMarkLtr) {
		dst.MarkLtr = cfg.MarkLtr
	}
	if change.Has(MlvecChangeUseLtr) {
		dst.UseLtr = cfg.UseLtr
	}
	if change.Has(MlvecChangeFrameQP) {
		dst.FrameQP = cfg.FrameQP
	}
	if change.Has(MlvecChangeBaseLayerPid) {
		dst.BaseLayerPid = cfg.BaseLayerPid
	}

	dst.Change |= change
	cfg.Change = 0
	return nil
}

// FrameStart consumes the pending long-term reference directives into usr.
func (m *Mlvec) FrameStart(usr *RefFrameUserConfig) error {
	if m == nil || usr == nil {
		return fmt.Errorf("%w: mlvec %p usr %p", ErrNullArgument, m, usr)
	}
	st := &m.static
	dy := &m.dynamic

	if st.MaxTemporalLayerCount != 0 {
		st.AddPrefix = 1
	}

	if dy.MarkLtr >= 0 {
		usr.ForceFlag |= ForceLtRefIdx
		usr.ForceLtIdx = dy.MarkLtr
		m.curLtrIdx = dy.MarkLtr
		m.log.Infof("force_lt_idx %d", usr.ForceLtIdx)
		dy.MarkLtr = -1
	}

	if dy.UseLtr >= 0 {
		usr.ForceFlag |= ForceRefMode
		usr.ForceRefMode = RefToLtRefIdx
		usr.ForceRefArg = dy.UseLtr
		m.log.Infof("force_ref mode %d arg %d", usr.ForceRefMode, usr.ForceRefArg)
		dy.UseLtr = -1
	}

	return nil
}

// RcSetup writes the forced QP directive into force. The directive is not
// consumed so rate control retries within a frame see the same value.
func (m *Mlvec) RcSetup(force *RcForceConfig) error {
	if m == nil || force == nil {
		return fmt.Errorf("%w: mlvec %p force %p", ErrNullArgument, m, force)
	}
	dy := &m.dynamic

	m.log.Debugf("change %x frame_qp %d", uint32(dy.Change), dy.FrameQP)
	if dy.FrameQP >= 0 {
		force.ForceFlag = RcForceQP
		force.ForceQP = dy.FrameQP
	} else {
		force.ForceFlag = 0
		force.ForceQP = -1
	}
	return nil
}

// FrameEnd resets the single shot directives.
func (m *Mlvec) FrameEnd() error {
	if m == nil {
		return fmt.Errorf("%w: mlvec", ErrNullArgument)
	}
	m.dynamic.reset()
	return nil
}

// LayerPid returns the base layer priority id directive of the pending
// frame. ok is false when no directive is set.
func (m *Mlvec) LayerPid() (pid int32, ok bool) {
	return m.dynamic.BaseLayerPid, m.dynamic.BaseLayerPid >= 0
}

func (m *Mlvec) StaticConfig() MlvecStaticConfig   { return m.static }
func (m *Mlvec) DynamicConfig() MlvecDynamicConfig { return m.dynamic }

// Enabled reports whether any static multi-layer feature is configured.
func (m *Mlvec) Enabled() bool { return m.enabled }

// StaticChanged reports whether the static state differs from the one
// held before the last SetStaticConfig.
func (m *Mlvec) StaticChanged() bool {
	a, b := m.static, m.staticOld
	a.Change, b.Change = 0, 0
	return a != b
}

// DynamicChanged reports whether the dynamic state differs from the one
// held before the last SetDynamicConfig.
func (m *Mlvec) DynamicChanged() bool {
	a, b := m.dynamic, m.dynamicOld
	a.Change, b.Change = 0, 0
	return a != b
}

// LtrIndex returns the last marked long-term index and the largest index
// allowed by the static LTR budget. Both are -1 when unset.
func (m *Mlvec) LtrIndex() (cur, limit int32) {
	return m.curLtrIdx, m.maxLtrIdx
}
