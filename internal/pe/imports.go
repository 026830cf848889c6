package pe

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

// Import is one Import Descriptor's module name. Err is set instead of Name when the
// descriptor's name could not be read; the remaining descriptors are unaffected.
type Import struct {
	Name string
	// Offset is the file offset of the descriptor.
	Offset int64
	Err    error
}

// ExtractImports walks the Import Directory Table in table order, keeping duplicates.
//
// An image without an import directory yields an empty slice and no error. If the buffer ends
// before the all-zero terminator, the descriptors read so far are returned together with an
// ErrTruncatedImportTable error.
func ExtractImports(img *Image) ([]Import, error) {
	imports := make([]Import, 0)

	dir := img.ImportDirectory()
	if dir.Size == 0 {
		return imports, nil
	}

	start, err := img.RVAToOffset(dir.VirtualAddress)
	if err != nil {
		return imports, errors.Wrap(err, "import directory")
	}

	remaining := int64(len(img.buf)) - start
	if remaining < 0 {
		remaining = 0
	}
	limit := remaining / importDescriptorSize

	for i := int64(0); i < limit; i++ {
		off := start + i*importDescriptorSize
		desc, _ := window(img.buf, off, importDescriptorSize)
		if isZero(desc) {
			return imports, nil
		}
		imports = append(imports, img.importAt(off, desc))
	}

	return imports, errors.Wrapf(ErrTruncatedImportTable, "no terminating descriptor after %d entries at 0x%X", len(imports), start)
}

func (img *Image) importAt(off int64, desc []byte) Import {
	imp := Import{Offset: off}

	nameRVA := binary.LittleEndian.Uint32(desc[12:16])
	nameOff, err := img.RVAToOffset(nameRVA)
	if err != nil {
		imp.Err = errors.Wrapf(err, "descriptor at 0x%X", off)
		return imp
	}

	name, err := readName(img.buf, nameOff)
	if err != nil {
		imp.Err = errors.Wrapf(err, "descriptor at 0x%X", off)
		return imp
	}
	imp.Name = name
	return imp
}

// readName reads a NUL-terminated printable ASCII string of at most maxNameLength bytes.
func readName(buf []byte, off int64) (string, error) {
	size := int64(len(buf))
	if off < 0 || off >= size {
		return "", errors.Wrapf(ErrMalformedName, "offset 0x%X outside file size %d", off, size)
	}

	end := off + maxNameLength
	if end > size {
		end = size
	}
	data := buf[off:end]

	n := bytes.IndexByte(data, 0)
	switch {
	case n < 0:
		return "", errors.Wrapf(ErrMalformedName, "no terminator within %d bytes at 0x%X", len(data), off)
	case n == 0:
		return "", errors.Wrapf(ErrMalformedName, "empty name at 0x%X", off)
	}

	for i, c := range data[:n] {
		if c < 0x20 || c > 0x7e {
			return "", errors.Wrapf(ErrMalformedName, "byte 0x%02X at 0x%X", c, off+int64(i))
		}
	}
	return string(data[:n]), nil
}

func isZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
