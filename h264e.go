package h264e

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/pion/logging"
)

const defaultHeaderSize = 1024

// dpbPair holds the current DPB and a backup copy taken before every
// advance, so a re-encoded frame restarts from the pre-frame state.
type dpbPair struct {
	slot [2]Dpb
	cur  int
}

func (p *dpbPair) current() *Dpb { return &p.slot[p.cur] }
func (p *dpbPair) backup() *Dpb  { return &p.slot[1-p.cur] }

// speculate saves the current state into the backup slot.
func (p *dpbPair) speculate() { p.slot[1-p.cur] = p.slot[p.cur] }

// rollback drops the speculative state and resumes from the backup.
func (p *dpbPair) rollback() { p.cur = 1 - p.cur }

type h264Controller struct {
	devID      DeviceID
	cfg        *ConfigSet
	collab     Collaborators
	idrRequest bool
	state      State

	// high level syntax
	sps Sps
	pps Pps

	// low level syntax
	dpb     dpbPair
	slice   Slice
	reorder ReorderInfo
	marking MarkingInfo

	frms  FrameInfo
	rcSyn RcSyntax

	hdr       *headerPacket
	prefix    PrefixNal
	prefixLen int

	syntax syntaxList

	log logging.LeveledLogger
}

func newH264Controller(cfg ControllerConfig) (*h264Controller, error) {
	if cfg.Cfg == nil {
		return nil, fmt.Errorf("%w: config set", ErrNullArgument)
	}
	col := cfg.Collaborators
	if col.Header == nil || col.Dpb == nil || col.Slice == nil || col.Refs == nil {
		return nil, fmt.Errorf("%w: collaborators", ErrNullArgument)
	}

	size := cfg.HeaderSize
	if size == 0 {
		size = defaultHeaderSize
	}
	hdr, err := newHeaderPacket(size)
	if err != nil {
		return nil, err
	}

	p := &h264Controller{
		devID:  cfg.DeviceID,
		cfg:    cfg.Cfg,
		collab: col,
		hdr:    hdr,
		log:    loggerFactoryOrDefault(cfg.LoggerFactory).NewLogger("h264e"),
	}
	p.log.Trace("enter init")

	for i := range p.dpb.slot {
		p.dpb.slot[i].Curr = -1
		p.dpb.slot[i].Refr = -1
	}
	col.Dpb.Init(p.dpb.current(), &p.reorder, &p.marking)
	col.Slice.Init(&p.slice, &p.reorder, &p.marking)
	p.dpb.speculate()

	p.cfg.setDefaults()
	p.state = StateReady

	p.log.Trace("leave init")
	return p, nil
}

func (p *h264Controller) Name() string       { return "h264e_control" }
func (p *h264Controller) Coding() CodingType { return CodingAVC }
func (p *h264Controller) State() State       { return p.state }

func (p *h264Controller) Close() error {
	if p.state == StateDeinitialized {
		return nil
	}
	p.log.Trace("deinit")
	p.hdr.release()
	p.hdr = nil
	p.state = StateDeinitialized
	return nil
}

func (p *h264Controller) ProcessConfig(cmd Command, param interface{}) error {
	if p.state == StateDeinitialized {
		return ErrInvalidState
	}
	p.log.Tracef("enter proc cfg cmd %s", cmd)

	err := p.procCfg(cmd, param)
	if err == nil && p.state == StateReady {
		p.state = StateConfigUpdate
	}

	p.log.Tracef("leave proc cfg err %v", err)
	return err
}

func (p *h264Controller) procCfg(cmd Command, param interface{}) error {
	cfg := p.cfg

	switch cmd {
	case CmdSetCfg:
		var src *ConfigSet
		switch v := param.(type) {
		case *ConfigSet:
			src = v
		case *ChangeSet:
			if v != nil {
				src = &v.Cfg
			}
		}
		if src == nil {
			return fmt.Errorf("%w: %s param %T", ErrNullArgument, cmd, param)
		}
		return errors.Join(
			mergePrep(&cfg.Prep, &src.Prep, p.log),
			mergeRc(&cfg.Rc, &src.Rc, p.log),
			mergeH264(&cfg.Codec.H264, &src.Codec.H264, p.log),
			mergeSplit(&cfg.Split, &src.Split, p.log),
		)
	case CmdSetPrepCfg:
		src, ok := param.(*PrepConfig)
		if !ok || src == nil {
			return fmt.Errorf("%w: %s param %T", ErrNullArgument, cmd, param)
		}
		return mergePrep(&cfg.Prep, src, p.log)
	case CmdSetRcCfg:
		src, ok := param.(*RcConfig)
		if !ok || src == nil {
			return fmt.Errorf("%w: %s param %T", ErrNullArgument, cmd, param)
		}
		return mergeRc(&cfg.Rc, src, p.log)
	case CmdSetCodecCfg:
		src, ok := param.(*CodecConfig)
		if !ok || src == nil {
			return fmt.Errorf("%w: %s param %T", ErrNullArgument, cmd, param)
		}
		return mergeH264(&cfg.Codec.H264, &src.H264, p.log)
	case CmdSetSeiCfg:
		return nil
	case CmdSetSplit:
		src, ok := param.(*SliceSplit)
		if !ok || src == nil {
			return fmt.Errorf("%w: %s param %T", ErrNullArgument, cmd, param)
		}
		return mergeSplit(&cfg.Split, src, p.log)
	}

	p.log.Errorf("no corresponding cmd %s found, can not config", cmd)
	return fmt.Errorf("%w: %s", ErrUnsupportedCommand, cmd)
}

func (p *h264Controller) GenHeader(pkt *Packet) error {
	if p.state == StateDeinitialized {
		return ErrInvalidState
	}
	p.log.Trace("enter gen hdr")

	h := p.collab.Header
	h.UpdateSps(&p.sps, p.cfg, p.devID)
	h.UpdatePps(&p.pps, p.cfg)

	// dpb capacity follows the new sps
	p.collab.Dpb.Setup(p.dpb.current(), p.cfg, &p.sps)

	p.hdr.reset()
	p.hdr.spsLen = h.SpsToPacket(&p.sps, p.hdr.pkt)
	p.hdr.ppsLen = h.PpsToPacket(&p.pps, p.hdr.pkt)

	if pkt != nil {
		p.hdr.copyTo(pkt)
	}
	p.state = StateHeaderGenerated

	p.log.Tracef("leave gen hdr sps %d pps %d total %d", p.hdr.spsLen, p.hdr.ppsLen, p.hdr.length())
	return nil
}

// Header returns the last generated SPS and PPS bytes.
func (p *h264Controller) Header() []byte {
	if p.hdr == nil {
		return nil
	}
	return p.hdr.pkt.Bytes()
}

func (p *h264Controller) frameReady(task *HalTask) error {
	if task == nil || task.RcTask == nil {
		return fmt.Errorf("%w: hal task", ErrNullArgument)
	}
	if p.state != StateHeaderGenerated && p.state != StateFrameActive {
		return fmt.Errorf("%w: frame in state %s", ErrInvalidState, p.state)
	}
	return nil
}

func (p *h264Controller) Start(task *HalTask) error {
	return nil
}

func (p *h264Controller) RequestIDR() {
	p.idrRequest = true
}

func (p *h264Controller) ProcessDpb(task *HalTask) error {
	if err := p.frameReady(task); err != nil {
		return err
	}
	p.log.Trace("enter proc dpb")

	cpb := &task.RcTask.Cpb
	frm := &task.RcTask.Frm
	frms := &p.frms

	if frm.Reencode {
		p.log.Debugf("reencode seq %d, dpb roll back", frm.SeqIdx)
		p.dpb.rollback()
	} else if p.idrRequest {
		cpb.Curr.IsIdr = true
		cpb.Curr.IsIntra = true
		p.idrRequest = false
	}
	p.dpb.speculate()
	if p.hdr != nil {
		p.hdr.seiLen = 0
	}

	dpb := p.dpb.current()
	p.collab.Dpb.Proc(dpb, cpb)

	curr := dpb.CurrFrame()
	if curr == nil {
		return fmt.Errorf("%w: dpb selected no current frame", ErrInvalidState)
	}
	refr := dpb.RefrFrame()

	p.collab.Slice.Update(&p.slice, p.cfg, &p.sps, curr)

	frms.SeqIdx = curr.SeqIdx
	frms.CurrIdx = curr.SlotIdx
	frms.RefrIdx = curr.SlotIdx
	if refr != nil {
		frms.RefrIdx = refr.SlotIdx
	}
	for i := range frms.Usage {
		frms.Usage[i] = dpb.Frames[i].OnUsed
	}

	p.collab.Dpb.Check(dpb, cpb)

	*frm = curr.Status
	p.state = StateFrameActive

	p.log.Trace("leave proc dpb")
	return nil
}

func (p *h264Controller) ProcessHal(task *HalTask) error {
	if err := p.frameReady(task); err != nil {
		return err
	}
	p.log.Trace("enter proc hal")

	h264 := &p.cfg.Codec.H264

	p.rcSyn = RcSyntax{
		Mode:      p.cfg.Rc.Mode,
		BpsTarget: p.cfg.Rc.BpsTarget,
		Gop:       p.cfg.Rc.Gop,
		Force:     task.RcTask.Force,
		Info:      task.RcTask.Info,
	}

	p.syntax.reset()
	p.syntax.add(SyntaxCfg, p.cfg)
	p.syntax.add(SyntaxSps, &p.sps)
	p.syntax.add(SyntaxPps, &p.pps)
	p.syntax.add(SyntaxSlice, &p.slice)
	p.syntax.add(SyntaxFrame, &p.frms)
	p.syntax.add(SyntaxRc, &p.rcSyn)

	task.Valid = true
	task.Syntax = p.syntax.slice()
	task.SyntaxNum = p.syntax.num
	task.IsIntra = p.slice.IdrFlag

	// the reference manager owns the temporal layer structure
	cpbMaxTid := p.collab.Refs.CpbInfo().MaxStTid
	if cpbMaxTid != h264.MaxTid {
		p.log.Infof("max tid is update to match cpb %d -> %d", h264.MaxTid, cpbMaxTid)
		h264.MaxTid = cpbMaxTid
	}

	p.prefixLen = 0
	if h264.AddPrefix != 0 || h264.MaxTid != 0 {
		if err := p.writePrefix(task); err != nil {
			return err
		}
	}

	p.log.Trace("leave proc hal")
	return nil
}

// writePrefix appends the SVC prefix NAL unit after the bytes already in
// the task packet (SEI) and before the hardware stream.
func (p *h264Controller) writePrefix(task *HalTask) error {
	pkt := task.Packet
	if pkt == nil {
		return fmt.Errorf("%w: task packet", ErrNullArgument)
	}
	slice := &p.slice
	frm := &task.RcTask.Frm

	pid := p.cfg.Codec.H264.BaseLayerPid
	if task.ForcePid {
		pid = task.BaseLayerPid
	}

	p.prefix = PrefixNal{
		NalRefIdc:            slice.NalReferenceIdc,
		IdrFlag:              slice.IdrFlag,
		PriorityID:           pid + frm.TemporalID,
		NoInterLayerPredFlag: 1,
		DependencyID:         0,
		QualityID:            0,
		TemporalID:           frm.TemporalID,
		UseRefBasePicFlag:    0,
		DiscardableFlag:      0,
		OutputFlag:           1,
	}

	length := pkt.Length()
	bits := p.collab.Slice.WritePrefixNal(&p.prefix, pkt.Spare())
	n := bits / 8

	pkt.SetLength(length + n)
	task.Length += n
	p.prefixLen = n

	p.log.Debugf("prefix nal tid %d pid %d len %d", p.prefix.TemporalID, p.prefix.PriorityID, n)
	return nil
}

func (p *h264Controller) AddSEI(pkt *Packet, id uuid.UUID, payload []byte) (int, error) {
	if pkt == nil {
		return 0, fmt.Errorf("%w: sei packet", ErrNullArgument)
	}
	if p.collab.Sei == nil {
		return 0, fmt.Errorf("%w: sei writer", ErrNullArgument)
	}
	n, err := p.collab.Sei.UserDataUnregistered(pkt, id, payload)
	if err != nil {
		return 0, err
	}
	if p.hdr != nil {
		p.hdr.seiLen += n
	}
	return n, nil
}
