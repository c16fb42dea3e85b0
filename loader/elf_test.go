package loader

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/lunixbochs/struc"
)

// segSpec describes one program header plus its file-resident bytes for
// buildImage. memsz of 0 means "same as the file size".
type segSpec struct {
	typ   uint32
	flags uint32
	vaddr uint64
	data  []byte
	memsz uint64
}

// buildImage assembles a syntactically valid AArch64 ELF64 executable in
// memory: header, program header table, then segment data. mutate runs
// on the header before packing so tests can corrupt individual fields.
func buildImage(t *testing.T, entry uint64, segs []segSpec, mutate func(h *FileHeader)) []byte {
	t.Helper()
	hdr := &FileHeader{
		Type:      ET_EXEC,
		Machine:   EM_AARCH64,
		Version:   1,
		Entry:     entry,
		Phoff:     HeaderSize,
		Ehsize:    HeaderSize,
		Phentsize: ProgHeaderSize,
		Phnum:     uint16(len(segs)),
	}
	copy(hdr.Ident[:4], elfMagic)
	hdr.Ident[EI_CLASS] = ELFCLASS64
	hdr.Ident[EI_DATA] = ELFDATA2LSB
	hdr.Ident[6] = 1 // EV_CURRENT
	hdr.Ident[EI_OSABI] = ELFOSABI_SYSV

	phdrs := make([]ProgHeader, len(segs))
	off := uint64(HeaderSize + len(segs)*ProgHeaderSize)
	for i, s := range segs {
		memsz := s.memsz
		if memsz == 0 {
			memsz = uint64(len(s.data))
		}
		phdrs[i] = ProgHeader{
			Type:   s.typ,
			Flags:  s.flags,
			Off:    off,
			Vaddr:  s.vaddr,
			Paddr:  s.vaddr,
			Filesz: uint64(len(s.data)),
			Memsz:  memsz,
			Align:  0x1000,
		}
		off += uint64(len(s.data))
	}
	if mutate != nil {
		mutate(hdr)
	}

	var buf bytes.Buffer
	if err := struc.PackWithOrder(&buf, hdr, binary.LittleEndian); err != nil {
		t.Fatal(err)
	}
	for i := range phdrs {
		if err := struc.PackWithOrder(&buf, &phdrs[i], binary.LittleEndian); err != nil {
			t.Fatal(err)
		}
	}
	for _, s := range segs {
		buf.Write(s.data)
	}
	return buf.Bytes()
}

func pattern(n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(i*7 + 3)
	}
	return p
}

func TestHeaderRoundTrip(t *testing.T) {
	image := buildImage(t, 0x40080000, nil, nil)
	if len(image) != HeaderSize {
		t.Fatalf("bare header image is %d bytes", len(image))
	}
	hdr, err := ParseHeader(image)
	if err != nil {
		t.Fatal(err)
	}
	if err := hdr.Check(); err != nil {
		t.Fatal(err)
	}
	if hdr.Entry != 0x40080000 {
		t.Fatalf("entry 0x%x", hdr.Entry)
	}
	if hdr.Phentsize != ProgHeaderSize || hdr.Ehsize != HeaderSize {
		t.Fatalf("bad sizes in round-tripped header: %d/%d", hdr.Ehsize, hdr.Phentsize)
	}
}

func TestHeaderChecks(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(h *FileHeader)
		want   error
	}{
		{"magic", func(h *FileHeader) { h.Ident[0] = 0x7e }, ErrBadMagic},
		{"class", func(h *FileHeader) { h.Ident[EI_CLASS] = 1 }, ErrNotClass64},
		{"endian", func(h *FileHeader) { h.Ident[EI_DATA] = 2 }, ErrNotLittleEndian},
		{"osabi", func(h *FileHeader) { h.Ident[EI_OSABI] = 3 }, ErrBadABI},
		{"type", func(h *FileHeader) { h.Type = 3 }, ErrNotExec},
		{"machine", func(h *FileHeader) { h.Machine = 62 }, ErrBadMachine},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			image := buildImage(t, 0, nil, tt.mutate)
			hdr, err := ParseHeader(image)
			if err != nil {
				t.Fatal(err)
			}
			if err := hdr.Check(); err != tt.want {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCheckOrder(t *testing.T) {
	// with several fields corrupted at once, the first check in order wins
	image := buildImage(t, 0, nil, func(h *FileHeader) {
		h.Ident[EI_DATA] = 2
		h.Type = 3
		h.Machine = 62
	})
	hdr, err := ParseHeader(image)
	if err != nil {
		t.Fatal(err)
	}
	if err := hdr.Check(); err != ErrNotLittleEndian {
		t.Fatalf("got %v, want %v", err, ErrNotLittleEndian)
	}
}

func TestParseHeaderShort(t *testing.T) {
	if _, err := ParseHeader(make([]byte, HeaderSize-1)); err == nil {
		t.Fatal("short image accepted")
	}
}

func TestMatchElf(t *testing.T) {
	image := buildImage(t, 0, nil, nil)
	if !MatchElf(bytes.NewReader(image)) {
		t.Fatal("valid magic not matched")
	}
	image[1] = 'F'
	if MatchElf(bytes.NewReader(image)) {
		t.Fatal("corrupt magic matched")
	}
}

func TestPerm(t *testing.T) {
	tests := []struct {
		flags uint32
		want  string
	}{
		{PF_R | PF_X, "r-x"},
		{PF_R | PF_W, "rw-"},
		{0, "---"},
		{PF_R | PF_W | PF_X, "rwx"},
	}
	for _, tt := range tests {
		ph := &ProgHeader{Flags: tt.flags}
		if got := ph.Perm(); got != tt.want {
			t.Errorf("flags %d: got %q, want %q", tt.flags, got, tt.want)
		}
	}
}
