package loader

import (
	"bytes"

	"github.com/pkg/errors"
)

// e_ident layout
const (
	EI_CLASS = 4
	EI_DATA  = 5
	EI_OSABI = 7

	ELFCLASS64    = 2
	ELFDATA2LSB   = 1
	ELFOSABI_SYSV = 0
)

const (
	ET_EXEC    = 2
	EM_AARCH64 = 183
	PT_LOAD    = 1
)

// p_flags permission bits
const (
	PF_X = 1
	PF_W = 2
	PF_R = 4
)

const (
	// HeaderSize is the on-disk size of an ELF64 file header.
	HeaderSize = 64
	// ProgHeaderSize is the canonical ELF64 program header size. The
	// walker refuses images whose e_phentsize disagrees, as indexing the
	// table with a different stride would misalign every descriptor.
	ProgHeaderSize = 56
)

var elfMagic = []byte{0x7f, 0x45, 0x4c, 0x46}

// Rejection reasons, one per header check. Load never falls through to a
// partially-loaded state: the first failed check wins and nothing has
// been copied by then.
var (
	ErrBadMagic        = errors.New("bad ELF magic")
	ErrNotClass64      = errors.New("not a 64-bit image")
	ErrNotLittleEndian = errors.New("not a little-endian image")
	ErrBadABI          = errors.New("unexpected OS ABI")
	ErrNotExec         = errors.New("not an executable image")
	ErrBadMachine      = errors.New("unexpected machine")

	ErrTruncated     = errors.New("image truncated")
	ErrBadPhentsize  = errors.New("bad program header entry size")
	ErrSegmentBounds = errors.New("segment outside image bounds")
)

// FileHeader is the fixed 64-byte ELF64 file header. Section table fields
// are never consulted here but stay in place so the struct unpacks
// byte-exact from the wire layout.
type FileHeader struct {
	Ident     [16]byte
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint64
	Phoff     uint64
	Shoff     uint64
	Flags     uint32
	Ehsize    uint16
	Phentsize uint16
	Phnum     uint16
	Shentsize uint16
	Shnum     uint16
	Shstrndx  uint16
}

// ProgHeader is one fixed 56-byte ELF64 program header.
type ProgHeader struct {
	Type   uint32
	Flags  uint32
	Off    uint64
	Vaddr  uint64
	Paddr  uint64
	Filesz uint64
	Memsz  uint64
	Align  uint64
}

// Check runs the boot-time acceptance checks in order and returns the
// first violated one. Version, header size and section fields are
// trusted as-is.
func (h *FileHeader) Check() error {
	if !bytes.Equal(h.Ident[:4], elfMagic) {
		return ErrBadMagic
	}
	if h.Ident[EI_CLASS] != ELFCLASS64 {
		return ErrNotClass64
	}
	if h.Ident[EI_DATA] != ELFDATA2LSB {
		return ErrNotLittleEndian
	}
	if h.Ident[EI_OSABI] != ELFOSABI_SYSV {
		return ErrBadABI
	}
	if h.Type != ET_EXEC {
		return ErrNotExec
	}
	if h.Machine != EM_AARCH64 {
		return ErrBadMachine
	}
	return nil
}

// Loadable reports whether the walker should hand this descriptor to the
// segment loader. Everything that isn't PT_LOAD is skipped silently.
func (ph *ProgHeader) Loadable() bool {
	return ph.Type == PT_LOAD
}

// Perm renders p_flags in the usual "rwx" form. The flags are
// informational only; nothing enforces them at load time.
func (ph *ProgHeader) Perm() string {
	bits := []uint32{PF_R, PF_W, PF_X}
	chars := []string{"r", "w", "x"}
	perm := ""
	for i := range bits {
		if ph.Flags&bits[i] != 0 {
			perm += chars[i]
		} else {
			perm += "-"
		}
	}
	return perm
}
