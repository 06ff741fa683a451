package h264e

import "github.com/google/uuid"

// HeaderBuilder derives and serializes the H.264 parameter sets.
type HeaderBuilder interface {
	UpdateSps(sps *Sps, cfg *ConfigSet, dev DeviceID)
	UpdatePps(pps *Pps, cfg *ConfigSet)

	// SpsToPacket and PpsToPacket append the NAL unit to pkt and return
	// the number of bytes written.
	SpsToPacket(sps *Sps, pkt *Packet) int
	PpsToPacket(pps *Pps, pkt *Packet) int
}

// DpbManager selects and marks reference pictures.
type DpbManager interface {
	Init(dpb *Dpb, reorder *ReorderInfo, marking *MarkingInfo)
	Setup(dpb *Dpb, cfg *ConfigSet, sps *Sps)

	// Proc picks the current and reference pictures for cpb.
	Proc(dpb *Dpb, cpb *CpbStatus)
	// Check moves the DPB to its after-encoding state.
	Check(dpb *Dpb, cpb *CpbStatus)
}

// SliceManager derives slice headers and writes the SVC prefix NAL unit.
type SliceManager interface {
	Init(slice *Slice, reorder *ReorderInfo, marking *MarkingInfo)
	Update(slice *Slice, cfg *ConfigSet, sps *Sps, curr *DpbFrame)

	// WritePrefixNal writes the prefix NAL unit into dst and returns the
	// number of bits written.
	WritePrefixNal(prefix *PrefixNal, dst []byte) int
}

// RefManager is the reference structure owner. The controller reads its
// capability and hands it the forced reference directives of each frame.
type RefManager interface {
	CpbInfo() CpbInfo
	SetUserConfig(cfg *RefFrameUserConfig) error
	// GetCpb fills the reference decision of the next frame.
	GetCpb(cpb *CpbStatus) error
}

// SeiWriter appends SEI NAL units to a packet.
type SeiWriter interface {
	// UserDataUnregistered writes a user data unregistered SEI tagged with
	// id and returns the number of bytes appended.
	UserDataUnregistered(pkt *Packet, id uuid.UUID, payload []byte) (int, error)
}

// Collaborators groups the syntax producers the controller delegates to.
type Collaborators struct {
	Header HeaderBuilder
	Dpb    DpbManager
	Slice  SliceManager
	Refs   RefManager
	Sei    SeiWriter
}
