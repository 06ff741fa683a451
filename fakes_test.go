package h264e

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeHeader struct {
	spsCalls int
}

func (h *fakeHeader) UpdateSps(sps *Sps, cfg *ConfigSet, dev DeviceID) {
	h.spsCalls++
	h264 := &cfg.Codec.H264
	sps.ProfileIdc = int32(h264.Profile)
	sps.LevelIdc = int32(h264.Level)
	sps.NumRefFrames = 1 + h264.MaxLtrFrames
	sps.PicWidthInMbsMinus1 = (cfg.Prep.Width+15)/16 - 1
	sps.PicHeightInMapUnitsMinus1 = (cfg.Prep.Height+15)/16 - 1
	sps.FrameMbsOnly = true
}

func (h *fakeHeader) UpdatePps(pps *Pps, cfg *ConfigSet) {
	pps.PicInitQp = cfg.Codec.H264.QpInit
	pps.EntropyCodingMode = cfg.Codec.H264.EntropyCodingMode
}

func (h *fakeHeader) SpsToPacket(sps *Sps, pkt *Packet) int {
	nal := []byte{0, 0, 0, 1, 0x67, byte(sps.ProfileIdc), byte(sps.LevelIdc),
		byte(sps.PicWidthInMbsMinus1), byte(sps.PicHeightInMapUnitsMinus1)}
	pkt.Append(nal)
	return len(nal)
}

func (h *fakeHeader) PpsToPacket(pps *Pps, pkt *Packet) int {
	nal := []byte{0, 0, 0, 1, 0x68, byte(pps.PicInitQp)}
	pkt.Append(nal)
	return len(nal)
}

// fakeDpb alternates between two slots. Every non-IDR frame references the
// previous one.
type fakeDpb struct {
	procCalls int
	setups    int
}

func (d *fakeDpb) Init(dpb *Dpb, reorder *ReorderInfo, marking *MarkingInfo) {
	dpb.Reorder = reorder
	dpb.Marking = marking
	dpb.MaxStCnt = 1
}

func (d *fakeDpb) Setup(dpb *Dpb, cfg *ConfigSet, sps *Sps) {
	d.setups++
	dpb.TotalCnt = sps.NumRefFrames + 1
	dpb.MaxLtCnt = cfg.Codec.H264.MaxLtrFrames
}

func (d *fakeDpb) Proc(dpb *Dpb, cpb *CpbStatus) {
	d.procCalls++
	slot := int(dpb.SeqIdx % 2)

	st := cpb.Curr
	st.SeqIdx = dpb.SeqIdx
	dpb.Frames[slot] = DpbFrame{
		SlotIdx:  int32(slot),
		SeqIdx:   dpb.SeqIdx,
		OnUsed:   true,
		Status:   st,
		FrameNum: dpb.SeqIdx,
	}
	dpb.Curr = slot
	dpb.Refr = -1
	if dpb.SeqIdx > 0 && !st.IsIdr {
		dpb.Refr = 1 - slot
	}
	dpb.SeqIdx++
}

func (d *fakeDpb) Check(dpb *Dpb, cpb *CpbStatus) {
	if curr := dpb.CurrFrame(); curr != nil && curr.Status.IsNonRef {
		curr.OnUsed = false
	}
}

type fakeSlice struct {
	bits    int
	prefix  []PrefixNal
	updates int
}

func (s *fakeSlice) Init(slice *Slice, reorder *ReorderInfo, marking *MarkingInfo) {
	slice.Reorder = reorder
	slice.Marking = marking
}

func (s *fakeSlice) Update(slice *Slice, cfg *ConfigSet, sps *Sps, curr *DpbFrame) {
	s.updates++
	slice.IdrFlag = curr.Status.IsIdr
	slice.FrameNum = curr.FrameNum
	slice.NalReferenceIdc = 3
	if curr.Status.IsNonRef {
		slice.NalReferenceIdc = 0
	}
	slice.NalUnitType = 1
	if slice.IdrFlag {
		slice.NalUnitType = 5
	}
}

// WritePrefixNal writes a four byte unit and reports s.bits, 32 when unset.
func (s *fakeSlice) WritePrefixNal(prefix *PrefixNal, dst []byte) int {
	s.prefix = append(s.prefix, *prefix)
	nal := []byte{0x6e, byte(prefix.PriorityID), byte(prefix.TemporalID << 5), 0x80}
	copy(dst, nal)
	if s.bits != 0 {
		return s.bits
	}
	return 8 * len(nal)
}

type fakeRefs struct {
	info CpbInfo
	gop  int32
	seq  int32
	usr  []RefFrameUserConfig
}

func (r *fakeRefs) CpbInfo() CpbInfo { return r.info }

func (r *fakeRefs) SetUserConfig(cfg *RefFrameUserConfig) error {
	r.usr = append(r.usr, *cfg)
	return nil
}

func (r *fakeRefs) GetCpb(cpb *CpbStatus) error {
	gop := r.gop
	if gop <= 0 {
		gop = 60
	}
	idr := r.seq%gop == 0
	cpb.SeqIdx = r.seq
	cpb.Curr = FrmStatus{
		Valid:      true,
		SeqIdx:     r.seq,
		IsIdr:      idr,
		IsIntra:    idr,
		TemporalID: r.seq % (r.info.MaxStTid + 1),
	}
	r.seq++
	return nil
}

type fakeSei struct{}

func (fakeSei) UserDataUnregistered(pkt *Packet, id uuid.UUID, payload []byte) (int, error) {
	nal := []byte{0, 0, 0, 1, 0x06, 0x05, byte(len(id) + len(payload))}
	nal = append(nal, id[:]...)
	nal = append(nal, payload...)
	nal = append(nal, 0x80)
	pkt.Append(nal)
	return len(nal), nil
}

// fakeHal appends one slice NAL unit per pass and asks for reencode
// passes while reencode is positive.
type fakeHal struct {
	calls    []string
	reencode int
	forces   []RcForceConfig
	syntax   [][]SyntaxType
	initErr  error
	deinited bool
}

func (h *fakeHal) Init(cfg *HalConfig) error {
	h.calls = append(h.calls, "init")
	cfg.WorkMode = WorkModeSync
	cfg.DeviceID = DeviceRKVENC
	return h.initErr
}

func (h *fakeHal) Deinit() error {
	h.calls = append(h.calls, "deinit")
	h.deinited = true
	return nil
}

func (h *fakeHal) GetTask(task *HalTask) error {
	h.calls = append(h.calls, "get_task")
	return nil
}

func (h *fakeHal) GenRegs(task *HalTask) error {
	h.calls = append(h.calls, "gen_regs")
	if !task.Valid || task.SyntaxNum != MaxSyntaxNum {
		return fmt.Errorf("bad task: valid %v syntax %d", task.Valid, task.SyntaxNum)
	}
	types := make([]SyntaxType, 0, task.SyntaxNum)
	for _, d := range task.Syntax {
		types = append(types, d.Type)
	}
	h.syntax = append(h.syntax, types)
	return nil
}

func (h *fakeHal) Start(task *HalTask) error {
	h.calls = append(h.calls, "start")
	h.forces = append(h.forces, task.RcTask.Force)
	return nil
}

func (h *fakeHal) Wait(task *HalTask) error {
	h.calls = append(h.calls, "wait")
	typ := byte(0x41)
	if task.IsIntra {
		typ = 0x65
	}
	nal := []byte{0, 0, 0, 1, typ, 0x88, byte(task.RcTask.Frm.SeqIdx)}
	task.Packet.Append(nal)
	task.Length += len(nal)

	if h.reencode > 0 {
		h.reencode--
		task.RcTask.Frm.Reencode = true
	}
	return nil
}

func (h *fakeHal) RetTask(task *HalTask) error {
	h.calls = append(h.calls, "ret_task")
	return nil
}

type fakes struct {
	header *fakeHeader
	dpb    *fakeDpb
	slice  *fakeSlice
	refs   *fakeRefs
	hal    *fakeHal
}

func newFakes() *fakes {
	return &fakes{
		header: &fakeHeader{},
		dpb:    &fakeDpb{},
		slice:  &fakeSlice{},
		refs:   &fakeRefs{},
		hal:    &fakeHal{},
	}
}

func (f *fakes) collaborators() Collaborators {
	return Collaborators{
		Header: f.header,
		Dpb:    f.dpb,
		Slice:  f.slice,
		Refs:   f.refs,
		Sei:    fakeSei{},
	}
}

func newTestController(t *testing.T) (*h264Controller, *ConfigSet, *fakes) {
	t.Helper()

	f := newFakes()
	cfg := &ConfigSet{}
	p, err := newH264Controller(ControllerConfig{
		DeviceID:      DeviceRKVENC,
		Cfg:           cfg,
		Collaborators: f.collaborators(),
	})
	require.NoError(t, err)
	return p, cfg, f
}

// newTestTask returns a task whose cpb comes from the fake reference
// manager.
func newTestTask(t *testing.T, f *fakes) *HalTask {
	t.Helper()

	pkt, err := NewPacket(256)
	require.NoError(t, err)
	rc := &RcTask{}
	require.NoError(t, f.refs.GetCpb(&rc.Cpb))
	return &HalTask{Packet: pkt, RcTask: rc}
}

func newTestSession(t *testing.T) (*Session, *fakes) {
	t.Helper()

	f := newFakes()
	s, err := NewSession(SessionConfig{
		DeviceID:      DeviceRKVENC,
		Collaborators: f.collaborators(),
		Hal:           f.hal,
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, f
}
