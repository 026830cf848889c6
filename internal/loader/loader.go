// Package loader reads whole input files into immutable byte buffers.
package loader

import (
	"fmt"
	"io"
	"os"

	"github.com/h2non/filetype"
)

// File is a loaded input. Data must not be modified and must not be used after Close.
type File struct {
	data     []byte
	filepath string
	filesize int64
	mmapped  bool
}

// Open loads a regular file. Where the platform supports it the file is mapped read-only;
// otherwise it is read into memory.
func Open(filepath string) (*File, error) {
	f, err := os.Open(filepath)
	if err != nil {
		return nil, fmt.Errorf("打开文件失败: %w", err)
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("获取文件信息失败: %w", err)
	}
	if !stat.Mode().IsRegular() {
		return nil, fmt.Errorf("%s: 不是普通文件", filepath)
	}

	size := stat.Size()
	if size > int64(int(^uint(0)>>1)) {
		return nil, fmt.Errorf("%s: 文件过大 (%d 字节)", filepath, size)
	}

	if data, ok := mapFile(f, int(size)); ok {
		return &File{data: data, filepath: filepath, filesize: size, mmapped: true}, nil
	}

	data, err := readAllAt(f, int(size))
	if err != nil {
		return nil, fmt.Errorf("读取文件失败: %w", err)
	}
	return &File{data: data, filepath: filepath, filesize: size}, nil
}

// FromBytes wraps an in-memory buffer.
func FromBytes(filepath string, data []byte) *File {
	return &File{data: data, filepath: filepath, filesize: int64(len(data))}
}

func readAllAt(r io.ReaderAt, size int) ([]byte, error) {
	out := make([]byte, size)
	var off int64
	for off < int64(size) {
		n, err := r.ReadAt(out[off:], off)
		off += int64(n)
		if err == nil {
			continue
		}
		if err == io.EOF && off == int64(size) {
			break
		}
		return nil, err
	}
	return out, nil
}

// Close releases the mapping, if any.
func (f *File) Close() error {
	if f == nil || f.data == nil {
		return nil
	}
	var err error
	if f.mmapped {
		err = unmap(f.data)
	}
	f.data = nil
	f.mmapped = false
	return err
}

// Bytes returns the file content.
func (f *File) Bytes() []byte {
	return f.data
}

// FilePath returns the file path.
func (f *File) FilePath() string {
	return f.filepath
}

// FileSize returns the file size in bytes.
func (f *File) FileSize() int64 {
	return f.filesize
}

// Sniff names the content type when the magic bytes match a known non-PE format, for example
// "zip" or "elf". It returns "" when nothing matched.
func (f *File) Sniff() string {
	return Sniff(f.data)
}

// Sniff names the content type of data, or returns "" when unknown.
func Sniff(data []byte) string {
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		return ""
	}
	if kind.MIME.Value != "" {
		return fmt.Sprintf("%s (%s)", kind.Extension, kind.MIME.Value)
	}
	return kind.Extension
}
