package h264e

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/pion/logging"
)

// Command selects the configuration domain of ProcessConfig.
type Command int

const (
	// CmdSetCfg applies every domain of a *ConfigSet or *ChangeSet whose
	// change mask is non-zero.
	CmdSetCfg Command = iota + 1
	CmdSetPrepCfg
	CmdSetRcCfg
	CmdSetCodecCfg
	CmdSetSeiCfg
	CmdSetSplit
)

func (c Command) String() string {
	switch c {
	case CmdSetCfg:
		return "set_cfg"
	case CmdSetPrepCfg:
		return "set_prep_cfg"
	case CmdSetRcCfg:
		return "set_rc_cfg"
	case CmdSetCodecCfg:
		return "set_codec_cfg"
	case CmdSetSeiCfg:
		return "set_sei_cfg"
	case CmdSetSplit:
		return "set_split"
	}
	return fmt.Sprintf("cmd(%d)", int(c))
}

// State is the lifecycle position of a controller.
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateConfigUpdate
	StateHeaderGenerated
	StateFrameActive
	StateDeinitialized
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateConfigUpdate:
		return "config_update"
	case StateHeaderGenerated:
		return "header_generated"
	case StateFrameActive:
		return "frame_active"
	case StateDeinitialized:
		return "deinitialized"
	}
	return "unknown"
}

// Controller is the per-stream encoder control plane of one coding standard.
// It is not safe for concurrent use.
type Controller interface {
	Name() string
	Coding() CodingType
	State() State

	ProcessConfig(cmd Command, param interface{}) error
	// GenHeader regenerates the parameter sets. When pkt is not nil the
	// header bytes are copied into it.
	GenHeader(pkt *Packet) error
	Header() []byte

	Start(task *HalTask) error
	ProcessDpb(task *HalTask) error
	ProcessHal(task *HalTask) error

	AddSEI(pkt *Packet, id uuid.UUID, payload []byte) (int, error)
	RequestIDR()

	Close() error
}

// ControllerConfig binds a controller to its stream.
type ControllerConfig struct {
	DeviceID DeviceID
	// Cfg is owned by the caller and loaded with defaults at construction.
	Cfg           *ConfigSet
	Collaborators Collaborators

	// HeaderSize is the initial header buffer size, 1KiB when zero.
	HeaderSize    int
	LoggerFactory logging.LoggerFactory
}

type controllerFactory func(cfg ControllerConfig) (Controller, error)

var controllers = map[CodingType]controllerFactory{
	CodingAVC: func(cfg ControllerConfig) (Controller, error) {
		c, err := newH264Controller(cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	},
}

// NewController builds the controller implementation registered for coding.
func NewController(coding CodingType, cfg ControllerConfig) (Controller, error) {
	factory, ok := controllers[coding]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCodingNotSupported, coding)
	}
	return factory(cfg)
}

func loggerFactoryOrDefault(f logging.LoggerFactory) logging.LoggerFactory {
	if f == nil {
		return logging.NewDefaultLoggerFactory()
	}
	return f
}
