// Package exceptions renders AArch64 trap state for post-mortem output.
// It performs no loading logic of its own: exception entry code hands it
// a register snapshot, it prints the snapshot and the faulting opcode,
// and the caller decides to halt.
package exceptions

import (
	"fmt"
	"io"
)

// Kind identifies which vector fired. Bad* variants mean the trap
// arrived from an exception level that should never produce one.
type Kind int

const (
	Sync Kind = iota
	IRQ
	FIQ
	SError
	BadSync
	BadIRQ
	BadFIQ
	BadSError
)

func (k Kind) String() string {
	switch k {
	case Sync:
		return "Synchronous Exception handler"
	case IRQ:
		return "IRQ handler"
	case FIQ:
		return "FIQ handler"
	case SError:
		return "SError handler"
	case BadSync:
		return "Bad mode in Synchronous Exception handler"
	case BadIRQ:
		return "Bad mode in IRQ handler"
	case BadFIQ:
		return "Bad mode in FIQ handler"
	case BadSError:
		return "Bad mode in SError handler"
	}
	return "unknown exception"
}

// Regs is the register snapshot captured on trap entry, in the order the
// entry stub saves them.
type Regs struct {
	X    [31]uint64 // x0-x30
	ESR  uint64
	ELR  uint64
	SPSR uint64
	ZR   uint64
}

var regNames = [35]string{
	"x0 ", "x1 ", "x2 ", "x3 ", "x4 ", "x5 ", "x6 ", "x7 ", "x8 ", "x9 ",
	"x10", "x11", "x12", "x13", "x14", "x15", "x16", "x17", "x18", "x19",
	"x20", "x21", "x22", "x23", "x24", "x25", "x26", "x27", "x28", "x29",
	"x30", "esr", "elr", "spsr", "xzr",
}

func (r *Regs) values() [35]uint64 {
	var vals [35]uint64
	copy(vals[:31], r.X[:])
	vals[31], vals[32], vals[33], vals[34] = r.ESR, r.ELR, r.SPSR, r.ZR
	return vals
}

// Dump prints every saved register as a 64-bit hex value.
func (r *Regs) Dump(w io.Writer) {
	fmt.Fprintf(w, "\nRegisters:\n")
	vals := r.values()
	for i, name := range regNames {
		fmt.Fprintf(w, "%s: 0x%016x\n", name, vals[i])
	}
}

// Memory is where the faulting opcode is fetched from.
type Memory interface {
	Read(addr uint64, p []byte) error
}

// Handler reports trap state through the diagnostic console.
type Handler struct {
	Console io.Writer
	Mem     Memory
}

// Report prints the vector banner, the instruction ELR points at, and
// the full register dump. It returns to let the caller halt; re-entering
// the loader after a trap is never safe.
func (h *Handler) Report(k Kind, regs *Regs) {
	fmt.Fprintf(h.Console, "%s\n", k)
	h.faultingInstr(regs.ELR)
	regs.Dump(h.Console)
}

// faultingInstr renders the 32-bit opcode at elr, byte by byte in memory
// order with the lowest byte bracketed. The fetch is word-aligned.
func (h *Handler) faultingInstr(elr uint64) {
	fmt.Fprintf(h.Console, "Faulting instruction at 0x%016x: ", elr)
	var op [4]byte
	if h.Mem == nil || h.Mem.Read(elr&^uint64(3), op[:]) != nil {
		fmt.Fprintf(h.Console, "<unreadable>\n")
		return
	}
	for i, b := range op {
		if i == 0 {
			fmt.Fprintf(h.Console, "[%02x]", b)
		} else {
			fmt.Fprintf(h.Console, "%02x", b)
		}
		if i < 3 {
			fmt.Fprintf(h.Console, " ")
		}
	}
	fmt.Fprintf(h.Console, "\n")
}
