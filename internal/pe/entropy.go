package pe

import "math"

// Entropy returns the Shannon entropy of data in bits per byte, from 0 to 8.
// Packed or encrypted sections usually score above 7.
func Entropy(data []byte) float64 {
	if len(data) == 0 {
		return 0
	}

	var freq [256]int
	for _, b := range data {
		freq[b]++
	}

	var h float64
	n := float64(len(data))
	for _, count := range freq {
		if count == 0 {
			continue
		}
		p := float64(count) / n
		h -= p * math.Log2(p)
	}
	return h
}

// SectionData returns the section's raw bytes, clipped to the end of the file.
func (img *Image) SectionData(s Section) []byte {
	off := int64(s.PointerToRawData)
	size := int64(len(img.buf)) - off
	if size <= 0 {
		return nil
	}
	if raw := int64(s.SizeOfRawData); raw < size {
		size = raw
	}
	data, _ := window(img.buf, off, size)
	return data
}

// SectionEntropy is the entropy of the section's raw bytes present in the file.
func (img *Image) SectionEntropy(s Section) float64 {
	return Entropy(img.SectionData(s))
}
