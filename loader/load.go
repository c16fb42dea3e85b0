package loader

import (
	"bytes"
	"encoding/binary"

	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"
)

// Memory is the destination the segment loader writes through. Writes
// land at absolute physical addresses; the boot context is identity
// mapped so p_vaddr is used directly.
type Memory interface {
	Write(addr uint64, p []byte) error
}

// ParseHeader unpacks the file header from the start of image. The image
// is only ever viewed through bounds-checked slices of the buffer handed
// in; a buffer shorter than a full header is rejected up front.
func ParseHeader(image []byte) (*FileHeader, error) {
	if len(image) < HeaderSize {
		return nil, errors.Wrapf(ErrTruncated, "%d byte image", len(image))
	}
	hdr := &FileHeader{}
	if err := struc.UnpackWithOrder(bytes.NewReader(image[:HeaderSize]), hdr, binary.LittleEndian); err != nil {
		return nil, errors.Wrap(err, "ELF header")
	}
	return hdr, nil
}

// ProgHeaders walks the program header table in file order and returns
// every descriptor. e_phentsize must match the canonical ELF64 size and
// the whole table must sit inside the image.
func (h *FileHeader) ProgHeaders(image []byte) ([]ProgHeader, error) {
	if h.Phnum == 0 {
		return nil, nil
	}
	if h.Phentsize != ProgHeaderSize {
		return nil, errors.Wrapf(ErrBadPhentsize, "%d != %d", h.Phentsize, ProgHeaderSize)
	}
	size := uint64(h.Phnum) * ProgHeaderSize
	if h.Phoff > uint64(len(image)) || size > uint64(len(image))-h.Phoff {
		return nil, errors.Wrapf(ErrTruncated, "program header table at 0x%x+0x%x", h.Phoff, size)
	}
	phdrs := make([]ProgHeader, h.Phnum)
	r := bytes.NewReader(image[h.Phoff : h.Phoff+size])
	for i := range phdrs {
		if err := struc.UnpackWithOrder(r, &phdrs[i], binary.LittleEndian); err != nil {
			return nil, errors.Wrapf(err, "program header %d", i)
		}
	}
	return phdrs, nil
}

// Load validates image, places every loadable segment through mem, and
// returns the image's entry address. Nothing is written before the
// header checks pass, and segments are placed strictly in table order.
// Load never jumps to the entry point; transferring control is the
// caller's job.
func Load(image []byte, mem Memory) (uint64, error) {
	hdr, err := ParseHeader(image)
	if err != nil {
		return 0, err
	}
	if err := hdr.Check(); err != nil {
		return 0, err
	}
	phdrs, err := hdr.ProgHeaders(image)
	if err != nil {
		return 0, err
	}
	for i := range phdrs {
		ph := &phdrs[i]
		if !ph.Loadable() {
			continue
		}
		if err := loadSegment(image, mem, ph); err != nil {
			return 0, errors.Wrapf(err, "segment %d", i)
		}
	}
	return hdr.Entry, nil
}

// loadSegment copies the file-resident part of one PT_LOAD segment to
// its destination and zero-fills the memory-only tail, materializing the
// all-zero region the on-disk image omits.
func loadSegment(image []byte, mem Memory, ph *ProgHeader) error {
	if ph.Memsz < ph.Filesz {
		return errors.Wrapf(ErrSegmentBounds, "memsz 0x%x < filesz 0x%x", ph.Memsz, ph.Filesz)
	}
	if ph.Off > uint64(len(image)) || ph.Filesz > uint64(len(image))-ph.Off {
		return errors.Wrapf(ErrSegmentBounds, "file range 0x%x+0x%x", ph.Off, ph.Filesz)
	}
	if ph.Filesz > 0 {
		if err := mem.Write(ph.Vaddr, image[ph.Off:ph.Off+ph.Filesz]); err != nil {
			return err
		}
	}
	if ph.Memsz > ph.Filesz {
		return mem.Write(ph.Vaddr+ph.Filesz, make([]byte, ph.Memsz-ph.Filesz))
	}
	return nil
}
