package h264e

// HalConfig is passed to the HAL when it is bound to a stream.
type HalConfig struct {
	Coding CodingType
	Cfg    *ConfigSet

	// Filled by the HAL.
	WorkMode WorkMode
	DeviceID DeviceID
}

// Hal programs the hardware from the syntax of a HalTask.
type Hal interface {
	Init(cfg *HalConfig) error
	Deinit() error

	GetTask(task *HalTask) error
	GenRegs(task *HalTask) error

	Start(task *HalTask) error
	Wait(task *HalTask) error

	RetTask(task *HalTask) error
}
