package h264e

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestControllerInit(t *testing.T) {
	p, cfg, _ := newTestController(t)

	require.Equal(t, "h264e_control", p.Name())
	require.Equal(t, CodingAVC, p.Coding())
	require.Equal(t, StateReady, p.State())
	require.Equal(t, defaultConfig(), *cfg)

	require.Equal(t, -1, p.dpb.current().Curr)
	require.Equal(t, -1, p.dpb.backup().Refr)
	require.Same(t, &p.reorder, p.slice.Reorder)
	require.Same(t, &p.marking, p.dpb.current().Marking)
}

func TestControllerInitErrors(t *testing.T) {
	f := newFakes()

	_, err := newH264Controller(ControllerConfig{Collaborators: f.collaborators()})
	require.ErrorIs(t, err, ErrNullArgument)

	col := f.collaborators()
	col.Header = nil
	_, err = newH264Controller(ControllerConfig{Cfg: &ConfigSet{}, Collaborators: col})
	require.ErrorIs(t, err, ErrNullArgument)

	_, err = newH264Controller(ControllerConfig{Cfg: &ConfigSet{}, Collaborators: f.collaborators(), HeaderSize: -1})
	require.ErrorIs(t, err, ErrAllocationFailure)

	_, err = NewController(CodingHEVC, ControllerConfig{Cfg: &ConfigSet{}, Collaborators: f.collaborators()})
	require.ErrorIs(t, err, ErrCodingNotSupported)

	c, err := NewController(CodingAVC, ControllerConfig{Cfg: &ConfigSet{}, Collaborators: f.collaborators()})
	require.NoError(t, err)
	require.Equal(t, CodingAVC, c.Coding())
}

func TestProcessConfigDispatch(t *testing.T) {
	p, cfg, _ := newTestController(t)

	err := p.ProcessConfig(Command(99), nil)
	require.ErrorIs(t, err, ErrUnsupportedCommand)
	require.Equal(t, StateReady, p.State())

	require.NoError(t, p.ProcessConfig(CmdSetSeiCfg, nil))

	err = p.ProcessConfig(CmdSetRcCfg, &PrepConfig{})
	require.ErrorIs(t, err, ErrNullArgument)

	require.NoError(t, p.ProcessConfig(CmdSetRcCfg, &RcConfig{Change: RcChangeGop, Gop: 30}))
	require.EqualValues(t, 30, cfg.Rc.Gop)
	require.Equal(t, StateConfigUpdate, p.State())

	require.NoError(t, p.ProcessConfig(CmdSetSplit, &SliceSplit{Change: SplitChangeMode, Mode: SplitByCTU, Arg: 2}))
	require.Equal(t, SplitByCTU, cfg.Split.Mode)

	require.NoError(t, p.ProcessConfig(CmdSetCodecCfg, &CodecConfig{H264: H264Config{
		Change:  H264ChangeProfile,
		Profile: H264ProfileHigh,
		Level:   H264Level4_1,
	}}))
	require.Equal(t, H264ProfileHigh, cfg.Codec.H264.Profile)
	require.Equal(t, H264Level4_1, cfg.Codec.H264.Level)
}

func TestProcessConfigSetCfgPartialFailure(t *testing.T) {
	p, cfg, _ := newTestController(t)
	prep := cfg.Prep

	src := &ConfigSet{}
	src.Prep = PrepConfig{Change: PrepChangeInput, Width: 4096, Height: 2160, HorStride: 1920, VerStride: 1088}
	src.Rc = RcConfig{Change: RcChangeBps, BpsTarget: 4000000, BpsMax: 5000000, BpsMin: 3000000}

	err := p.ProcessConfig(CmdSetCfg, src)
	require.ErrorIs(t, err, ErrInvalidConfigValue)
	require.Equal(t, prep, cfg.Prep)
	require.EqualValues(t, 4000000, cfg.Rc.BpsTarget)
	require.Zero(t, src.Prep.Change)
	require.Zero(t, src.Rc.Change)

	require.ErrorIs(t, p.ProcessConfig(CmdSetCfg, (*ChangeSet)(nil)), ErrNullArgument)
}

func TestGenHeaderDeterministic(t *testing.T) {
	p, _, f := newTestController(t)

	first, err := NewPacket(64)
	require.NoError(t, err)
	require.NoError(t, p.GenHeader(first))
	require.Equal(t, StateHeaderGenerated, p.State())

	second, err := NewPacket(4)
	require.NoError(t, err)
	require.NoError(t, p.GenHeader(second))

	require.Equal(t, first.Bytes(), second.Bytes())
	require.Equal(t, first.Bytes(), p.Header())
	require.Equal(t, p.hdr.spsLen+p.hdr.ppsLen, first.Length())
	require.Equal(t, []byte{0, 0, 0, 1, 0x67, 66, 31, 79, 44}, first.Bytes()[:9])
	require.Equal(t, 2, f.dpb.setups)
	require.Equal(t, 2, f.header.spsCalls)
}

func TestGenHeaderFollowsConfig(t *testing.T) {
	p, _, _ := newTestController(t)

	require.NoError(t, p.GenHeader(nil))
	before := append([]byte(nil), p.Header()...)

	require.NoError(t, p.ProcessConfig(CmdSetCodecCfg, &CodecConfig{H264: H264Config{
		Change:    H264ChangeQPLimit,
		QpInit:    30,
		QpMax:     51,
		QpMin:     10,
		QpMaxStep: 4,
	}}))
	require.NoError(t, p.GenHeader(nil))
	require.NotEqual(t, before, p.Header())
	require.EqualValues(t, 30, p.pps.PicInitQp)
}

func TestFrameRequiresHeader(t *testing.T) {
	p, _, f := newTestController(t)
	task := newTestTask(t, f)

	require.ErrorIs(t, p.ProcessDpb(task), ErrInvalidState)
	require.ErrorIs(t, p.ProcessHal(task), ErrInvalidState)

	require.NoError(t, p.GenHeader(nil))
	require.ErrorIs(t, p.ProcessDpb(nil), ErrNullArgument)
	require.ErrorIs(t, p.ProcessDpb(&HalTask{}), ErrNullArgument)
}

func TestProcessHalSyntaxOrder(t *testing.T) {
	p, cfg, f := newTestController(t)
	require.NoError(t, p.GenHeader(nil))

	task := newTestTask(t, f)
	task.RcTask.Force = RcForceConfig{ForceFlag: RcForceQP, ForceQP: 33}
	require.NoError(t, p.Start(task))
	require.NoError(t, p.ProcessDpb(task))
	require.NoError(t, p.ProcessHal(task))

	require.True(t, task.Valid)
	require.True(t, task.IsIntra)
	require.Equal(t, MaxSyntaxNum, task.SyntaxNum)
	require.Len(t, task.Syntax, 6)

	want := []SyntaxType{SyntaxCfg, SyntaxSps, SyntaxPps, SyntaxSlice, SyntaxFrame, SyntaxRc}
	for i, d := range task.Syntax {
		require.Equal(t, want[i], d.Type, "descriptor %d", i)
	}
	require.Same(t, cfg, task.Syntax[0].Data)
	require.Same(t, &p.sps, task.Syntax[1].Data)
	require.Same(t, &p.frms, task.Syntax[4].Data)

	rc, ok := task.Syntax[5].Data.(*RcSyntax)
	require.True(t, ok)
	require.EqualValues(t, 33, rc.Force.ForceQP)
	require.Equal(t, cfg.Rc.BpsTarget, rc.BpsTarget)

	// a second pass rebuilds rather than appends
	require.NoError(t, p.ProcessHal(task))
	require.Equal(t, MaxSyntaxNum, task.SyntaxNum)
}

func TestProcessDpbFrameInfo(t *testing.T) {
	p, _, f := newTestController(t)
	require.NoError(t, p.GenHeader(nil))

	task := newTestTask(t, f)
	require.NoError(t, p.ProcessDpb(task))
	require.Equal(t, StateFrameActive, p.State())
	require.EqualValues(t, 0, p.frms.SeqIdx)
	require.EqualValues(t, 0, p.frms.CurrIdx)
	// no reference: the current slot stands in
	require.EqualValues(t, 0, p.frms.RefrIdx)
	require.True(t, p.frms.Usage[0])
	require.False(t, p.frms.Usage[1])
	require.True(t, task.RcTask.Frm.IsIdr)

	task = newTestTask(t, f)
	require.NoError(t, p.ProcessDpb(task))
	require.EqualValues(t, 1, p.frms.SeqIdx)
	require.EqualValues(t, 1, p.frms.CurrIdx)
	require.EqualValues(t, 0, p.frms.RefrIdx)
	require.True(t, p.frms.Usage[1])
	require.False(t, task.RcTask.Frm.IsIdr)
	require.EqualValues(t, 1, task.RcTask.Frm.SeqIdx)
}

func TestProcessDpbRollback(t *testing.T) {
	p, _, f := newTestController(t)
	require.NoError(t, p.GenHeader(nil))

	task := newTestTask(t, f)
	require.NoError(t, p.ProcessDpb(task))
	require.EqualValues(t, 1, p.dpb.current().SeqIdx)
	require.EqualValues(t, 0, p.dpb.backup().SeqIdx)

	// rate control rejects the frame
	task.RcTask.Frm.Reencode = true
	require.NoError(t, p.ProcessDpb(task))
	require.EqualValues(t, 0, p.frms.SeqIdx)
	require.EqualValues(t, 1, p.dpb.current().SeqIdx)
	require.Equal(t, 2, f.dpb.procCalls)

	// without reencode the DPB moves on
	task = newTestTask(t, f)
	require.NoError(t, p.ProcessDpb(task))
	require.EqualValues(t, 1, p.frms.SeqIdx)
	require.EqualValues(t, 2, p.dpb.current().SeqIdx)
}

func TestRequestIDR(t *testing.T) {
	p, _, f := newTestController(t)
	require.NoError(t, p.GenHeader(nil))

	task := newTestTask(t, f)
	require.NoError(t, p.ProcessDpb(task))
	require.NoError(t, p.ProcessHal(task))
	require.True(t, task.IsIntra)

	task = newTestTask(t, f)
	require.NoError(t, p.ProcessDpb(task))
	require.NoError(t, p.ProcessHal(task))
	require.False(t, task.IsIntra)

	p.RequestIDR()
	task = newTestTask(t, f)
	require.NoError(t, p.ProcessDpb(task))
	require.NoError(t, p.ProcessHal(task))
	require.True(t, task.IsIntra)
	require.True(t, task.RcTask.Frm.IsIdr)
	require.EqualValues(t, -1, p.dpb.current().Refr)

	task = newTestTask(t, f)
	require.NoError(t, p.ProcessDpb(task))
	require.NoError(t, p.ProcessHal(task))
	require.False(t, task.IsIntra)
}

func TestProcessHalNoPrefix(t *testing.T) {
	p, _, f := newTestController(t)
	require.NoError(t, p.GenHeader(nil))

	task := newTestTask(t, f)
	require.NoError(t, p.ProcessDpb(task))
	require.NoError(t, p.ProcessHal(task))

	require.Zero(t, task.Packet.Length())
	require.Zero(t, task.Length)
	require.Empty(t, f.slice.prefix)
}

func TestProcessHalMaxTidFromRefs(t *testing.T) {
	p, cfg, f := newTestController(t)
	f.refs.info.MaxStTid = 2
	require.NoError(t, p.ProcessConfig(CmdSetCodecCfg, &CodecConfig{H264: H264Config{
		Change:       H264ChangeBaseLayerPid,
		BaseLayerPid: 10,
	}}))
	require.NoError(t, p.GenHeader(nil))

	for seq := 0; seq < 3; seq++ {
		task := newTestTask(t, f)
		require.NoError(t, p.ProcessDpb(task))
		require.NoError(t, p.ProcessHal(task))

		require.EqualValues(t, 2, cfg.Codec.H264.MaxTid)
		require.Equal(t, 4, task.Packet.Length())
		require.Equal(t, 4, task.Length)
		require.Equal(t, 4, p.prefixLen)

		prefix := f.slice.prefix[seq]
		require.EqualValues(t, seq, prefix.TemporalID)
		require.EqualValues(t, 10+seq, prefix.PriorityID)
		require.EqualValues(t, 1, prefix.NoInterLayerPredFlag)
		require.EqualValues(t, 1, prefix.OutputFlag)
		require.Zero(t, prefix.DiscardableFlag)
		require.Equal(t, seq == 0, prefix.IdrFlag)
		require.EqualValues(t, 3, prefix.NalRefIdc)
	}
}

func TestProcessHalPrefixAfterPayload(t *testing.T) {
	p, _, f := newTestController(t)
	f.slice.bits = 27
	require.NoError(t, p.ProcessConfig(CmdSetCodecCfg, &CodecConfig{H264: H264Config{
		Change:    H264ChangeAddPrefix,
		AddPrefix: 1,
	}}))
	require.NoError(t, p.GenHeader(nil))

	task := newTestTask(t, f)
	require.NoError(t, p.ProcessDpb(task))

	sei := []byte{0, 0, 0, 1, 0x06, 0x05, 0x00, 0x80, 0xaa, 0xbb}
	task.Packet.Append(sei)
	task.Length = len(sei)

	require.NoError(t, p.ProcessHal(task))

	// 27 bits round down to 3 bytes
	require.Equal(t, 13, task.Packet.Length())
	require.Equal(t, 13, task.Length)
	require.Equal(t, sei, task.Packet.Bytes()[:10])
	require.Equal(t, []byte{0x6e, 0, 0}, task.Packet.Bytes()[10:])
}

func TestProcessHalPrefixNeedsPacket(t *testing.T) {
	p, _, f := newTestController(t)
	f.refs.info.MaxStTid = 1
	require.NoError(t, p.GenHeader(nil))

	task := newTestTask(t, f)
	task.Packet = nil
	require.NoError(t, p.ProcessDpb(task))
	require.ErrorIs(t, p.ProcessHal(task), ErrNullArgument)
}

func TestAddSEI(t *testing.T) {
	p, _, _ := newTestController(t)

	pkt, err := NewPacket(8)
	require.NoError(t, err)

	id := uuid.MustParse("d5a7c2e1-3b44-4f6e-9a10-2f8b6c1d0e55")
	n, err := p.AddSEI(pkt, id, []byte("hello"))
	require.NoError(t, err)
	require.Equal(t, 7+16+5+1, n)
	require.Equal(t, n, pkt.Length())
	require.Equal(t, id[:], pkt.Bytes()[7:23])

	_, err = p.AddSEI(nil, id, nil)
	require.ErrorIs(t, err, ErrNullArgument)

	p.collab.Sei = nil
	_, err = p.AddSEI(pkt, id, nil)
	require.ErrorIs(t, err, ErrNullArgument)
}

func TestAddSEIAccumulates(t *testing.T) {
	p, _, f := newTestController(t)
	require.NoError(t, p.GenHeader(nil))

	task := newTestTask(t, f)
	require.NoError(t, p.ProcessDpb(task))

	id := uuid.MustParse("d5a7c2e1-3b44-4f6e-9a10-2f8b6c1d0e55")
	n1, err := p.AddSEI(task.Packet, id, []byte("a"))
	require.NoError(t, err)
	n2, err := p.AddSEI(task.Packet, id, []byte("bc"))
	require.NoError(t, err)
	require.Equal(t, n1+n2, p.hdr.seiLen)
	require.Equal(t, n1+n2, task.Packet.Length())

	// a reencode pass writes the SEI again
	task.RcTask.Frm.Reencode = true
	require.NoError(t, p.ProcessDpb(task))
	require.Zero(t, p.hdr.seiLen)
}

func TestControllerClose(t *testing.T) {
	p, _, _ := newTestController(t)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	require.Equal(t, StateDeinitialized, p.State())
	require.Nil(t, p.Header())

	require.ErrorIs(t, p.ProcessConfig(CmdSetRcCfg, &RcConfig{}), ErrInvalidState)
	require.ErrorIs(t, p.GenHeader(nil), ErrInvalidState)
}

func TestSyntaxListOverflow(t *testing.T) {
	var l syntaxList
	for i := 0; i < MaxSyntaxNum; i++ {
		l.add(SyntaxType(i), nil)
	}
	require.Len(t, l.slice(), MaxSyntaxNum)
	require.Panics(t, func() { l.add(SyntaxRc, nil) })

	l.reset()
	require.Empty(t, l.slice())
}
