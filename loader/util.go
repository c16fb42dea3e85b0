package loader

import (
	"bytes"
	"io"
)

func getMagic(r io.ReaderAt) []byte {
	ret := make([]byte, 4)
	r.ReadAt(ret, 0)
	return ret
}

// MatchElf probes for the ELF magic without touching the rest of the
// header. Useful to cheaply reject non-images before a full Load.
func MatchElf(r io.ReaderAt) bool {
	return bytes.Equal(getMagic(r), elfMagic)
}
