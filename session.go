package h264e

import (
	"fmt"
	"image"

	"github.com/google/uuid"
	"github.com/pion/logging"
)

// SessionConfig binds a controller, an MLVEC context and a HAL into one
// encoding stream.
type SessionConfig struct {
	// Coding defaults to CodingAVC.
	Coding        CodingType
	DeviceID      DeviceID
	Collaborators Collaborators
	Hal           Hal

	HeaderSize    int
	LoggerFactory logging.LoggerFactory
}

// EncodedFrame is the output of one EncodeFrame call.
type EncodedFrame struct {
	// Data holds the SPS and PPS on intra frames followed by the frame
	// payload (SEI, prefix NAL unit and the hardware stream).
	Data    []byte
	IsIntra bool
	// Reencodes counts the extra passes rate control asked for.
	Reencodes int
	Status    FrmStatus
}

// layerRestore remembers the codec fields the session took over from the
// caller while multi-layer encoding is enabled.
type layerRestore struct {
	change       H264Change
	addPrefix    int32
	maxLtrFrames int32
}

// h264StreamChanges leave the parameter sets untouched.
const h264StreamChanges = H264ChangeAddPrefix | H264ChangeBaseLayerPid

type userData struct {
	id      uuid.UUID
	payload []byte
}

// Session drives the per-frame encode sequence. It is not safe for
// concurrent use.
type Session struct {
	cfg   ConfigSet
	ctrl  Controller
	mlvec *Mlvec
	hal   Hal
	refs  RefManager

	halCfg HalConfig
	rcTask RcTask
	pkt    *Packet

	hdrValid bool
	restore  layerRestore
	sei      []userData
	frames   int64

	log logging.LeveledLogger
}

// NewSession builds the controller for cfg.Coding and binds the HAL to it.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Hal == nil {
		return nil, fmt.Errorf("%w: hal", ErrNullArgument)
	}
	if cfg.Coding == CodingUnused {
		cfg.Coding = CodingAVC
	}
	lf := loggerFactoryOrDefault(cfg.LoggerFactory)

	s := &Session{
		hal:   cfg.Hal,
		refs:  cfg.Collaborators.Refs,
		mlvec: NewMlvec(lf),
		log:   lf.NewLogger("h264e_session"),
	}

	ctrl, err := NewController(cfg.Coding, ControllerConfig{
		DeviceID:      cfg.DeviceID,
		Cfg:           &s.cfg,
		Collaborators: cfg.Collaborators,
		HeaderSize:    cfg.HeaderSize,
		LoggerFactory: lf,
	})
	if err != nil {
		return nil, err
	}
	s.ctrl = ctrl

	s.halCfg = HalConfig{Coding: cfg.Coding, Cfg: &s.cfg}
	if err := s.hal.Init(&s.halCfg); err != nil {
		ctrl.Close()
		return nil, fmt.Errorf("hal init: %w", err)
	}

	s.pkt, err = NewPacket(frameSize(&s.cfg.Prep))
	if err != nil {
		s.hal.Deinit()
		ctrl.Close()
		return nil, err
	}

	s.log.Infof("session %s on device %d work mode %d", ctrl.Name(), s.halCfg.DeviceID, s.halCfg.WorkMode)
	return s, nil
}

// frameSize is the raw picture size, an upper bound for a coded frame.
func frameSize(prep *PrepConfig) int {
	return int(prep.HorStride) * int(prep.VerStride) * 3 / 2
}

func (s *Session) Controller() Controller { return s.ctrl }
func (s *Session) Mlvec() *Mlvec          { return s.mlvec }

// Config returns a copy of the active configuration.
func (s *Session) Config() ConfigSet { return s.cfg }

// Frames returns the number of frames encoded so far.
func (s *Session) Frames() int64 { return s.frames }

// Apply merges a change set into the stream configuration. Groups that fail
// validation are rolled back independently of the others.
func (s *Session) Apply(cs *ChangeSet) error {
	if cs == nil {
		return fmt.Errorf("%w: change set", ErrNullArgument)
	}
	err := s.ctrl.ProcessConfig(CmdSetCfg, cs)
	if cs.Mlvec != nil {
		if merr := s.mlvec.SetStaticConfig(cs.Mlvec); merr != nil && err == nil {
			err = merr
		}
	}
	return err
}

// SetFrameConfig queues per-frame MLVEC directives for the next frame.
func (s *Session) SetFrameConfig(cfg *MlvecDynamicConfig) error {
	return s.mlvec.SetDynamicConfig(cfg)
}

// RequestIDR forces the next frame to be an IDR frame.
func (s *Session) RequestIDR() {
	s.ctrl.RequestIDR()
}

// AddUserData queues an unregistered user data SEI for the next frame.
func (s *Session) AddUserData(id uuid.UUID, payload []byte) {
	s.sei = append(s.sei, userData{id: id, payload: payload})
}

// syncLayers carries the MLVEC static state into the codec configuration.
// Once MLVEC is disabled the fields it set get their previous values back.
func (s *Session) syncLayers() error {
	h264 := &s.cfg.Codec.H264

	var upd CodecConfig
	if !s.mlvec.Enabled() {
		if s.restore.change == 0 {
			return nil
		}
		upd.H264 = H264Config{
			Change:       s.restore.change,
			AddPrefix:    s.restore.addPrefix,
			MaxLtrFrames: s.restore.maxLtrFrames,
		}
		s.restore = layerRestore{}
		s.log.Debugf("mlvec disabled, restore codec change %x", uint32(upd.H264.Change))
		return s.ctrl.ProcessConfig(CmdSetCodecCfg, &upd)
	}

	st := s.mlvec.StaticConfig()
	if st.AddPrefix != 0 && st.AddPrefix != h264.AddPrefix {
		if !s.restore.change.Has(H264ChangeAddPrefix) {
			s.restore.change |= H264ChangeAddPrefix
			s.restore.addPrefix = h264.AddPrefix
		}
		upd.H264.AddPrefix = st.AddPrefix
		upd.H264.Change |= H264ChangeAddPrefix
	}
	if st.LtrFrames > 0 && st.LtrFrames != h264.MaxLtrFrames {
		if !s.restore.change.Has(H264ChangeMaxLtr) {
			s.restore.change |= H264ChangeMaxLtr
			s.restore.maxLtrFrames = h264.MaxLtrFrames
		}
		upd.H264.MaxLtrFrames = st.LtrFrames
		upd.H264.Change |= H264ChangeMaxLtr
	}
	if upd.H264.Change == 0 {
		return nil
	}
	return s.ctrl.ProcessConfig(CmdSetCodecCfg, &upd)
}

func (s *Session) headerStale() bool {
	return !s.hdrValid || s.cfg.Prep.Change != 0 || s.cfg.Codec.H264.Change&^h264StreamChanges != 0
}

// EncodeFrame runs one frame through the controller and the HAL.
func (s *Session) EncodeFrame(input image.Image) (*EncodedFrame, error) {
	var usr RefFrameUserConfig
	if err := s.mlvec.FrameStart(&usr); err != nil {
		return nil, err
	}
	if s.refs != nil && usr.ForceFlag != 0 {
		if err := s.refs.SetUserConfig(&usr); err != nil {
			return nil, fmt.Errorf("ref user config: %w", err)
		}
	}
	if err := s.syncLayers(); err != nil {
		return nil, err
	}

	if s.headerStale() {
		if err := s.ctrl.GenHeader(nil); err != nil {
			return nil, err
		}
		// decoders pick up new parameter sets at the next IDR
		if s.hdrValid {
			s.ctrl.RequestIDR()
		}
		s.hdrValid = true
		if need := frameSize(&s.cfg.Prep); need > s.pkt.Size() {
			pkt, err := NewPacket(need)
			if err != nil {
				return nil, err
			}
			s.pkt = pkt
		}
	}

	s.rcTask = RcTask{}
	if s.refs != nil {
		if err := s.refs.GetCpb(&s.rcTask.Cpb); err != nil {
			return nil, fmt.Errorf("ref cpb: %w", err)
		}
	}
	if err := s.mlvec.RcSetup(&s.rcTask.Force); err != nil {
		return nil, err
	}

	task := &HalTask{RcTask: &s.rcTask, Packet: s.pkt, Input: input}
	task.BaseLayerPid, task.ForcePid = s.mlvec.LayerPid()
	if err := s.hal.GetTask(task); err != nil {
		return nil, fmt.Errorf("hal get task: %w", err)
	}
	if err := s.ctrl.Start(task); err != nil {
		return nil, err
	}

	reenc := 0
	for {
		if err := s.encodePass(task); err != nil {
			return nil, err
		}
		if !s.rcTask.Frm.Reencode || reenc >= int(s.cfg.Rc.MaxReencTimes) {
			break
		}
		reenc++
		s.log.Debugf("frame %d reencode %d", s.frames, reenc)
	}

	if err := s.hal.RetTask(task); err != nil {
		return nil, fmt.Errorf("hal ret task: %w", err)
	}
	s.clearChanges()
	if err := s.mlvec.FrameEnd(); err != nil {
		return nil, err
	}

	out := &EncodedFrame{
		IsIntra:   task.IsIntra,
		Reencodes: reenc,
		Status:    s.rcTask.Frm,
	}
	payload := s.pkt.Bytes()
	if task.IsIntra {
		hdr := s.ctrl.Header()
		out.Data = make([]byte, 0, len(hdr)+len(payload))
		out.Data = append(out.Data, hdr...)
	}
	out.Data = append(out.Data, payload...)

	s.frames++
	return out, nil
}

// encodePass produces the frame once. Every pass restarts from an empty
// packet, so SEI is written again on a re-encode.
func (s *Session) encodePass(task *HalTask) error {
	s.pkt.Reset()
	task.Length = 0

	if err := s.ctrl.ProcessDpb(task); err != nil {
		return err
	}
	for _, ud := range s.sei {
		n, err := s.ctrl.AddSEI(s.pkt, ud.id, ud.payload)
		if err != nil {
			return err
		}
		task.Length += n
	}
	if err := s.ctrl.ProcessHal(task); err != nil {
		return err
	}

	if err := s.hal.GenRegs(task); err != nil {
		return fmt.Errorf("hal gen regs: %w", err)
	}
	if err := s.hal.Start(task); err != nil {
		return fmt.Errorf("hal start: %w", err)
	}
	if err := s.hal.Wait(task); err != nil {
		return fmt.Errorf("hal wait: %w", err)
	}
	return nil
}

// clearChanges marks the configuration as consumed by the hardware.
func (s *Session) clearChanges() {
	s.cfg.Prep.Change = 0
	s.cfg.Rc.Change = 0
	s.cfg.Codec.H264.Change = 0
	s.cfg.Split.Change = 0
	s.sei = s.sei[:0]
}

// Close releases the HAL and the controller.
func (s *Session) Close() error {
	herr := s.hal.Deinit()
	cerr := s.ctrl.Close()
	if herr != nil {
		return herr
	}
	return cerr
}
