// Package pe reads the header chain and Import Directory Table of Portable Executable images.
//
// Every structure is read in place from the caller's buffer. The buffer is never modified and
// must outlive any Headers or Image built from it.
package pe

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
)

// Format identifies the optional header layout.
type Format uint16

const (
	PE32     Format = 0x10b
	PE32Plus Format = 0x20b
)

func (f Format) String() string {
	switch f {
	case PE32:
		return "PE32"
	case PE32Plus:
		return "PE32+"
	default:
		return fmt.Sprintf("Format(0x%X)", uint16(f))
	}
}

// optionalLayout holds the optional header offsets that differ between PE32 and PE32+.
type optionalLayout struct {
	numberOfRvaAndSizes int64
	dataDirectories     int64
}

var layouts = map[Format]optionalLayout{
	PE32:     {numberOfRvaAndSizes: 92, dataDirectories: 96},
	PE32Plus: {numberOfRvaAndSizes: 108, dataDirectories: 112},
}

// DataDirectory is an (RVA, size) pair from the optional header.
type DataDirectory struct {
	VirtualAddress uint32
	Size           uint32
}

// OptionalHeader carries only what dependency extraction needs from either layout.
type OptionalHeader struct {
	Format    Format
	ImportDir DataDirectory
}

// Headers is a validated DOS + NT header view over an image buffer.
type Headers struct {
	buf      []byte
	ntOffset int64

	Machine              uint16
	NumberOfSections     uint16
	SizeOfOptionalHeader uint16
	Optional             OptionalHeader
}

// ParseHeaders validates the DOS header, the NT signature, the COFF file header and the
// optional header up to the import data directory.
func ParseHeaders(buf []byte) (*Headers, error) {
	dos, ok := window(buf, 0, dosHeaderSize)
	if !ok {
		return nil, errors.Wrapf(ErrTruncatedHeader, "file is %d bytes, DOS header needs %d", len(buf), dosHeaderSize)
	}
	if magic := binary.LittleEndian.Uint16(dos); magic != dosSignature {
		return nil, errors.Wrapf(ErrNotPE, "DOS signature 0x%04X", magic)
	}

	lfanew := int64(binary.LittleEndian.Uint32(dos[lfanewOffset:]))
	nt, ok := window(buf, lfanew, signatureSize+fileHeaderSize+optionalMagicSize)
	if !ok {
		return nil, errors.Wrapf(ErrTruncatedHeader, "e_lfanew 0x%X beyond file size %d", lfanew, len(buf))
	}
	if sig := binary.LittleEndian.Uint32(nt); sig != ntSignature {
		return nil, errors.Wrapf(ErrNotPE, "NT signature 0x%08X at 0x%X", sig, lfanew)
	}

	fh := nt[signatureSize:]
	h := &Headers{
		buf:                  buf,
		ntOffset:             lfanew,
		Machine:              binary.LittleEndian.Uint16(fh[0:2]),
		NumberOfSections:     binary.LittleEndian.Uint16(fh[2:4]),
		SizeOfOptionalHeader: binary.LittleEndian.Uint16(fh[16:18]),
	}

	format := Format(binary.LittleEndian.Uint16(nt[signatureSize+fileHeaderSize:]))
	layout, ok := layouts[format]
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedFormat, "optional header magic 0x%X", uint16(format))
	}
	h.Optional.Format = format

	if err := h.readImportDirectory(layout); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Headers) readImportDirectory(layout optionalLayout) error {
	opt := h.optionalOffset()
	declared := int64(h.SizeOfOptionalHeader)

	if layout.numberOfRvaAndSizes+4 > declared {
		return errors.Wrapf(ErrTruncatedHeader, "%s optional header declares only %d bytes", h.Optional.Format, declared)
	}
	count, ok := window(h.buf, opt+layout.numberOfRvaAndSizes, 4)
	if !ok {
		return errors.Wrapf(ErrTruncatedHeader, "optional header at 0x%X beyond file size %d", opt, len(h.buf))
	}
	if binary.LittleEndian.Uint32(count) <= dataDirectoryImport {
		// No import entry: the image imports nothing.
		return nil
	}

	entry := layout.dataDirectories + dataDirectoryImport*dataDirectorySize
	if entry+dataDirectorySize > declared {
		return errors.Wrapf(ErrTruncatedHeader, "import data directory outside %d byte optional header", declared)
	}
	dd, ok := window(h.buf, opt+entry, dataDirectorySize)
	if !ok {
		return errors.Wrapf(ErrTruncatedHeader, "import data directory at 0x%X beyond file size %d", opt+entry, len(h.buf))
	}
	h.Optional.ImportDir = DataDirectory{
		VirtualAddress: binary.LittleEndian.Uint32(dd[0:4]),
		Size:           binary.LittleEndian.Uint32(dd[4:8]),
	}
	return nil
}

func (h *Headers) optionalOffset() int64 {
	return h.ntOffset + signatureSize + fileHeaderSize
}

func (h *Headers) sectionTableOffset() int64 {
	return h.optionalOffset() + int64(h.SizeOfOptionalHeader)
}

// window returns buf[off:off+n] when the whole range lies inside buf.
func window(buf []byte, off, n int64) ([]byte, bool) {
	size := int64(len(buf))
	if off < 0 || n < 0 || off > size || n > size-off {
		return nil, false
	}
	return buf[off : off+n], true
}
