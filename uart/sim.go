package uart

import "io"

// SimMMIO is a hosted PL011 register file. Bytes written to the data
// register land on Out; everything else is plain register storage with
// the flag register always reporting idle. It stands in for real MMIO in
// tests and the CLI.
type SimMMIO struct {
	Out  io.Writer
	regs map[uint32]uint32
}

func NewSim(out io.Writer) *SimMMIO {
	return &SimMMIO{Out: out, regs: make(map[uint32]uint32)}
}

func (s *SimMMIO) Read32(off uint32) uint32 {
	if off == regFR {
		return 0 // never busy
	}
	return s.regs[off]
}

func (s *SimMMIO) Write32(off uint32, v uint32) {
	if off == regDR {
		if s.Out != nil {
			s.Out.Write([]byte{byte(v)})
		}
		return
	}
	s.regs[off] = v
}
