// Package petest builds small synthetic PE images for tests.
package petest

import (
	"encoding/binary"
)

const (
	ntOffset       = 0x40
	fileAlignment  = 0x200
	sectionRVA     = 0x1000
	sectionRaw     = 0x200
	optionalSize32 = 0xe0
	optionalSize64 = 0xf0
	descriptorSize = 20
)

// Options describes the image to build.
type Options struct {
	// PE32 selects the 32-bit optional header; the default is PE32+.
	PE32 bool
	// Imports are the module names, one descriptor each, in table order.
	Imports []string
	// NoImportDirectory leaves the import data directory zeroed.
	NoImportDirectory bool
}

// Image is a built image plus the offsets tests need to corrupt it.
type Image struct {
	Bytes []byte

	SectionTableOffset int
	SectionRVA         uint32
	SectionRaw         uint32
	SectionSize        uint32

	// DescriptorOffset is the file offset of the first Import Descriptor.
	DescriptorOffset int
	NameRVAs         []uint32
}

// Build lays out a one-section image: the .idata section holds the module names followed by
// the descriptor array and its all-zero terminator.
func Build(opts Options) *Image {
	optSize := optionalSize64
	magic := uint16(0x20b)
	machine := uint16(0x8664)
	rvaCountOff, dirsOff := 108, 112
	if opts.PE32 {
		optSize = optionalSize32
		magic = 0x10b
		machine = 0x14c
		rvaCountOff, dirsOff = 92, 96
	}

	// Section payload: names, then descriptors.
	var payload []byte
	nameRVAs := make([]uint32, len(opts.Imports))
	for i, name := range opts.Imports {
		nameRVAs[i] = sectionRVA + uint32(len(payload))
		payload = append(payload, name...)
		payload = append(payload, 0)
	}
	for len(payload)%4 != 0 {
		payload = append(payload, 0)
	}
	descStart := len(payload)
	for i := range opts.Imports {
		desc := make([]byte, descriptorSize)
		binary.LittleEndian.PutUint32(desc[0:4], sectionRVA) // OriginalFirstThunk, unused
		binary.LittleEndian.PutUint32(desc[12:16], nameRVAs[i])
		binary.LittleEndian.PutUint32(desc[16:20], sectionRVA)
		payload = append(payload, desc...)
	}
	payload = append(payload, make([]byte, descriptorSize)...)

	rawSize := align(len(payload), fileAlignment)
	buf := make([]byte, sectionRaw+rawSize)
	copy(buf[sectionRaw:], payload)

	// DOS header.
	buf[0], buf[1] = 'M', 'Z'
	binary.LittleEndian.PutUint32(buf[0x3c:], ntOffset)

	// NT signature and COFF file header.
	copy(buf[ntOffset:], "PE\x00\x00")
	fh := buf[ntOffset+4:]
	binary.LittleEndian.PutUint16(fh[0:2], machine)
	binary.LittleEndian.PutUint16(fh[2:4], 1)
	binary.LittleEndian.PutUint16(fh[16:18], uint16(optSize))
	binary.LittleEndian.PutUint16(fh[18:20], 0x0022)

	// Optional header.
	opt := buf[ntOffset+24:]
	binary.LittleEndian.PutUint16(opt[0:2], magic)
	binary.LittleEndian.PutUint32(opt[rvaCountOff:], 16)
	if !opts.NoImportDirectory {
		binary.LittleEndian.PutUint32(opt[dirsOff+8:], sectionRVA+uint32(descStart))
		binary.LittleEndian.PutUint32(opt[dirsOff+12:], uint32((len(opts.Imports)+1)*descriptorSize))
	}

	// Section table.
	secOff := ntOffset + 24 + optSize
	sec := buf[secOff:]
	copy(sec[0:8], ".idata")
	binary.LittleEndian.PutUint32(sec[8:12], uint32(rawSize))
	binary.LittleEndian.PutUint32(sec[12:16], sectionRVA)
	binary.LittleEndian.PutUint32(sec[16:20], uint32(rawSize))
	binary.LittleEndian.PutUint32(sec[20:24], sectionRaw)
	binary.LittleEndian.PutUint32(sec[36:40], 0xc0000040)

	return &Image{
		Bytes:              buf,
		SectionTableOffset: secOff,
		SectionRVA:         sectionRVA,
		SectionRaw:         sectionRaw,
		SectionSize:        uint32(rawSize),
		DescriptorOffset:   sectionRaw + descStart,
		NameRVAs:           nameRVAs,
	}
}

// Descriptor returns the file offset of descriptor i.
func (img *Image) Descriptor(i int) int {
	return img.DescriptorOffset + i*descriptorSize
}

// SetNameRVA overwrites descriptor i's Name field.
func (img *Image) SetNameRVA(i int, rva uint32) {
	binary.LittleEndian.PutUint32(img.Bytes[img.Descriptor(i)+12:], rva)
}

// NameOffset returns the file offset of module name i.
func (img *Image) NameOffset(i int) int {
	return int(img.NameRVAs[i]-img.SectionRVA) + int(img.SectionRaw)
}

func align(n, a int) int {
	if n == 0 {
		return a
	}
	return (n + a - 1) / a * a
}
