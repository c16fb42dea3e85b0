// Package boot ties the loader to its collaborators: a physical memory
// model to place segments in and a console for diagnostics. It owns the
// failure reporting contract of a stage-0 loader; actually halting (or,
// hosted, exiting) stays with the caller so rejection reasons remain
// assertable.
package boot

import (
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/yoshipep/aarch64-bootloader/loader"
	"github.com/yoshipep/aarch64-bootloader/mem"
)

type Bootstrap struct {
	Mem     *mem.Phys
	Console io.Writer
}

func New(m *mem.Phys, console io.Writer) *Bootstrap {
	return &Bootstrap{Mem: m, Console: console}
}

// LoadKernel validates and places the image, returning its entry
// address. On rejection it emits exactly one console line naming the
// first violated check, then hands the classified error back. It never
// jumps to the entry point.
func (b *Bootstrap) LoadKernel(image []byte) (uint64, error) {
	entry, err := loader.Load(image, b.Mem)
	if err != nil {
		fmt.Fprintf(b.Console, "%s\n", errors.Cause(err))
		return 0, err
	}
	return entry, nil
}
