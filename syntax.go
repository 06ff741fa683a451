package h264e

import "fmt"

// SyntaxType tags the structure a SyntaxDesc points at.
type SyntaxType int

const (
	SyntaxCfg SyntaxType = iota
	SyntaxSps
	SyntaxPps
	SyntaxSlice
	SyntaxFrame
	SyntaxRc
	syntaxButt
)

// MaxSyntaxNum is the number of distinct syntax kinds handed to the HAL.
const MaxSyntaxNum = int(syntaxButt)

func (t SyntaxType) String() string {
	switch t {
	case SyntaxCfg:
		return "cfg"
	case SyntaxSps:
		return "sps"
	case SyntaxPps:
		return "pps"
	case SyntaxSlice:
		return "slice"
	case SyntaxFrame:
		return "frame"
	case SyntaxRc:
		return "rc"
	}
	return fmt.Sprintf("syntax(%d)", int(t))
}

// SyntaxDesc references one of the controller's syntax structures. The
// referenced value is only valid until the next frame is processed.
//
// Data holds *ConfigSet, *Sps, *Pps, *Slice, *FrameInfo or *RcSyntax
// depending on Type.
type SyntaxDesc struct {
	Type SyntaxType
	Data interface{}
}

// syntaxList is a fixed capacity, append only list rebuilt every frame.
type syntaxList struct {
	desc [MaxSyntaxNum]SyntaxDesc
	num  int
}

func (l *syntaxList) reset() { l.num = 0 }

func (l *syntaxList) add(t SyntaxType, data interface{}) {
	if l.num >= len(l.desc) {
		panic(fmt.Sprintf("h264e: syntax list overflow adding %s", t))
	}
	l.desc[l.num] = SyntaxDesc{Type: t, Data: data}
	l.num++
}

func (l *syntaxList) slice() []SyntaxDesc {
	return l.desc[:l.num]
}
