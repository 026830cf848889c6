package pe

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Section is one section table entry.
type Section struct {
	Name             string
	VirtualSize      uint32
	VirtualAddress   uint32
	SizeOfRawData    uint32
	PointerToRawData uint32
	Characteristics  uint32
}

// span is the length of the section's virtual range. Some linkers leave VirtualSize zero.
func (s Section) span() uint32 {
	if s.VirtualSize == 0 {
		return s.SizeOfRawData
	}
	return s.VirtualSize
}

// Contains reports whether rva lies inside the section's virtual range.
func (s Section) Contains(rva uint32) bool {
	return rva >= s.VirtualAddress && uint64(rva) < uint64(s.VirtualAddress)+uint64(s.span())
}

// Permissions renders the memory flags as an R/W/X triple.
func (s Section) Permissions() string {
	perms := []byte("---")
	if s.Characteristics&ScnMemRead != 0 {
		perms[0] = 'R'
	}
	if s.Characteristics&ScnMemWrite != 0 {
		perms[1] = 'W'
	}
	if s.Characteristics&ScnMemExecute != 0 {
		perms[2] = 'X'
	}
	return string(perms)
}

// Image is a parsed PE image: validated headers plus the section table.
type Image struct {
	*Headers
	sections []Section
}

// Parse validates the header chain and loads the section table.
func Parse(buf []byte) (*Image, error) {
	h, err := ParseHeaders(buf)
	if err != nil {
		return nil, err
	}
	return h.LoadSections()
}

// LoadSections reads NumberOfSections entries following the optional header.
func (h *Headers) LoadSections() (*Image, error) {
	start := h.sectionTableOffset()
	count := int64(h.NumberOfSections)
	table, ok := window(h.buf, start, count*sectionHeaderSize)
	if !ok {
		return nil, errors.Wrapf(ErrTruncatedSectionTable, "%d sections at 0x%X exceed file size %d", count, start, len(h.buf))
	}

	sections := make([]Section, count)
	for i := range sections {
		raw := table[i*sectionHeaderSize : (i+1)*sectionHeaderSize]
		sections[i] = Section{
			Name:             strings.TrimRight(string(raw[0:8]), "\x00"),
			VirtualSize:      binary.LittleEndian.Uint32(raw[8:12]),
			VirtualAddress:   binary.LittleEndian.Uint32(raw[12:16]),
			SizeOfRawData:    binary.LittleEndian.Uint32(raw[16:20]),
			PointerToRawData: binary.LittleEndian.Uint32(raw[20:24]),
			Characteristics:  binary.LittleEndian.Uint32(raw[36:40]),
		}
	}
	return &Image{Headers: h, sections: sections}, nil
}

// RVAToOffset converts an RVA into a file offset through the first section whose virtual range
// contains it. RVAs outside every section fail with ErrUnmappedRVA.
func (img *Image) RVAToOffset(rva uint32) (int64, error) {
	for _, s := range img.sections {
		if s.Contains(rva) {
			return int64(rva-s.VirtualAddress) + int64(s.PointerToRawData), nil
		}
	}
	return 0, errors.Wrapf(ErrUnmappedRVA, "RVA 0x%X", rva)
}

// Sections returns the section table in file order. Callers must not modify it.
func (img *Image) Sections() []Section {
	return img.sections
}

// Format returns the optional header layout.
func (img *Image) Format() Format {
	return img.Optional.Format
}

// ImportDirectory returns the Import Table data directory entry.
func (img *Image) ImportDirectory() DataDirectory {
	return img.Optional.ImportDir
}

// Architecture describes the COFF machine field.
func (img *Image) Architecture() string {
	switch img.Machine {
	case MachineI386:
		return "x86 (32位)"
	case MachineAMD64:
		return "x64 (64位)"
	case MachineARM, MachineARMNT:
		return "ARM"
	case MachineARM64:
		return "ARM64"
	default:
		return fmt.Sprintf("未知 (0x%X)", img.Machine)
	}
}
