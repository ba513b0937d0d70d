package vm

import (
	"encoding/binary"
	"io"
)

var imageMagic = [4]byte{'A', 'Q', 'B', 'C'}

// LoadImage parses a program image per the byte-exact layout in spec §6:
// magic(4) | reserved(4) | memory_size_be_u64(8) | data(M) |
// type_tags(ceil(M/2)) | code(rest). It validates the magic and declared
// size before constructing any memory, then hands back a ready-to-run VM.
func LoadImage(r io.Reader, stdout io.Writer) (*VM, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(raw) >= len(imageMagic) && (raw[0] != imageMagic[0] || raw[1] != imageMagic[1] || raw[2] != imageMagic[2] || raw[3] != imageMagic[3]) {
		return nil, errInvalidMagic
	}
	if len(raw) < 16 {
		return nil, errTruncatedHeader
	}

	memSize := binary.BigEndian.Uint64(raw[8:16])
	dataStart := 16
	dataEnd := dataStart + int(memSize)
	tagsLen := (int(memSize) + 1) / 2
	tagsEnd := dataEnd + tagsLen

	if dataEnd < dataStart || tagsEnd < dataEnd || tagsEnd > len(raw) {
		return nil, errMemorySizeMismatch
	}

	data := raw[dataStart:dataEnd]
	tags := raw[dataEnd:tagsEnd]
	code := raw[tagsEnd:]

	mem := NewTaggedMemory(data, tags)
	return New(mem, code, stdout), nil
}
