package h264e

import (
	"fmt"
	"image"
	"io"
	"sync"

	"github.com/pion/logging"
	"github.com/pion/mediadevices/pkg/codec"
	"github.com/pion/mediadevices/pkg/io/video"
	"github.com/pion/mediadevices/pkg/prop"
)

type encoder struct {
	session  *Session
	r        video.Reader
	mu       sync.Mutex
	closed   bool
	forceIDR bool
	log      logging.LeveledLogger
}

func newEncoder(r video.Reader, p prop.Media, params Params) (codec.ReadCloser, error) {
	if params.KeyFrameInterval <= 0 {
		params.KeyFrameInterval = 60
	}

	lf := loggerFactoryOrDefault(params.LoggerFactory)
	s, err := NewSession(SessionConfig{
		Coding:        CodingAVC,
		DeviceID:      params.DeviceID,
		Collaborators: params.Collaborators,
		Hal:           params.Hal,
		LoggerFactory: lf,
	})
	if err != nil {
		return nil, err
	}

	// stream geometry and rate come from the media properties, the user
	// change set is applied on top
	base := mediaChangeSet(p, params)
	if err := s.Apply(&base); err != nil {
		s.Close()
		return nil, err
	}
	if params.ChangeSet != nil {
		cs := *params.ChangeSet
		if cs.Mlvec != nil {
			st := *cs.Mlvec
			cs.Mlvec = &st
		}
		if err := s.Apply(&cs); err != nil {
			s.Close()
			return nil, err
		}
	}

	e := &encoder{
		session:  s,
		r:        video.ToI420(r),
		closed:   false,
		forceIDR: false,
		log:      lf.NewLogger("h264e_encoder"),
	}
	cfg := s.Config()
	e.log.Infof("%dx%d bps %d gop %d fps %d/%d", cfg.Prep.Width, cfg.Prep.Height,
		cfg.Rc.BpsTarget, cfg.Rc.Gop, cfg.Rc.FpsOutNum, cfg.Rc.FpsOutDenom)
	return e, nil
}

func mediaChangeSet(p prop.Media, params Params) ChangeSet {
	var cs ChangeSet
	if p.Width > 0 && p.Height > 0 {
		prep := &cs.Cfg.Prep
		prep.Change = PrepChangeInput
		prep.Width = int32(p.Width)
		prep.Height = int32(p.Height)
		prep.HorStride = int32(p.Width)
		prep.VerStride = int32(p.Height)
	}

	rc := &cs.Cfg.Rc
	if params.BitRate > 0 {
		setBitRate(rc, params.BitRate)
	}
	rc.Gop = int32(params.KeyFrameInterval)
	rc.Change |= RcChangeGop
	if p.FrameRate > 0 {
		rc.FpsInNum = int32(p.FrameRate)
		rc.FpsInDenom = 1
		rc.FpsOutNum = int32(p.FrameRate)
		rc.FpsOutDenom = 1
		rc.Change |= RcChangeFpsIn | RcChangeFpsOut
	}
	return cs
}

// setBitRate targets bps with a window of a quarter either side.
func setBitRate(rc *RcConfig, bps int) {
	rc.BpsTarget = int32(bps)
	rc.BpsMax = int32(bps * 5 / 4)
	rc.BpsMin = int32(bps * 3 / 4)
	rc.Change |= RcChangeBps
}

func (e *encoder) Read() ([]byte, func(), error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, func() {}, io.EOF
	}

	img, release, err := e.r.Read()
	if err != nil {
		return nil, func() {}, err
	}
	if release != nil {
		defer release()
	}
	yuvImg, ok := img.(*image.YCbCr)
	if !ok {
		return nil, func() {}, fmt.Errorf("%w: %T, want *image.YCbCr", ErrUnsupportedFrame, img)
	}

	if e.forceIDR {
		e.session.RequestIDR()
		e.forceIDR = false
	}
	frame, err := e.session.EncodeFrame(yuvImg)
	if err != nil {
		return nil, func() {}, err
	}
	return frame.Data, func() {}, nil
}

func (e *encoder) SetBitRate(b int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var cs ChangeSet
	setBitRate(&cs.Cfg.Rc, b)
	return e.session.Apply(&cs)
}

func (e *encoder) ForceKeyFrame() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.forceIDR = true
	return nil
}

func (e *encoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}

	e.closed = true
	return e.session.Close()
}
