package deps

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZacharyZcR/wldd/internal/loader"
	"github.com/ZacharyZcR/wldd/internal/logger"
	"github.com/ZacharyZcR/wldd/internal/pe"
	"github.com/ZacharyZcR/wldd/internal/pe/petest"
)

func TestAnalyzeResolves(t *testing.T) {
	dir1 := touch(t, "A.dll")
	b := petest.Build(petest.Options{Imports: []string{"A.dll", "B.dll"}})

	report := Analyze("app.exe", b.Bytes, NewResolver([]string{dir1}), nil)

	require.Equal(t, Resolved, report.State)
	require.NoError(t, report.Err)
	require.Len(t, report.Entries, 2)
	assert.Equal(t, "A.dll", report.Entries[0].Name)
	assert.True(t, report.Entries[0].Found)
	assert.Equal(t, dir1, report.Entries[0].Dir)
	assert.Equal(t, "B.dll", report.Entries[1].Name)
	assert.True(t, report.Entries[1].Missing())

	assert.False(t, report.OK())
	assert.Len(t, report.Missing(), 1)
	assert.Empty(t, report.Broken())

	require.NotNil(t, report.Image)
	assert.Equal(t, pe.PE32Plus, report.Image.Format)
	assert.Len(t, report.Image.Sections, 1)
}

func TestAnalyzeAllFound(t *testing.T) {
	dir := touch(t, "a.dll", "b.dll")
	b := petest.Build(petest.Options{PE32: true, Imports: []string{"A.dll", "B.dll"}})

	report := Analyze("app.exe", b.Bytes, NewResolver([]string{dir}), logger.Discard())
	assert.True(t, report.OK())
	assert.Equal(t, pe.PE32, report.Image.Format)
}

func TestAnalyzeNoImports(t *testing.T) {
	b := petest.Build(petest.Options{NoImportDirectory: true})

	report := Analyze("static.exe", b.Bytes, NewResolver(nil), nil)
	assert.Equal(t, Resolved, report.State)
	assert.NotNil(t, report.Entries)
	assert.Empty(t, report.Entries)
	assert.True(t, report.OK())
}

func TestAnalyzeFailures(t *testing.T) {
	tests := []struct {
		name     string
		buf      func() []byte
		wantKind pe.Kind
		wantFrom State
	}{
		{
			name:     "Empty file",
			buf:      func() []byte { return nil },
			wantKind: pe.TruncatedHeader,
			wantFrom: Unparsed,
		},
		{
			name: "Not MZ",
			buf: func() []byte {
				buf := petest.Build(petest.Options{}).Bytes
				buf[0] = 'Z'
				return buf
			},
			wantKind: pe.NotAPEFile,
			wantFrom: Unparsed,
		},
		{
			name: "Section table cut off",
			buf: func() []byte {
				b := petest.Build(petest.Options{Imports: []string{"A.dll"}})
				return b.Bytes[:b.SectionTableOffset+20]
			},
			wantKind: pe.TruncatedSectionTable,
			wantFrom: HeaderValidated,
		},
		{
			name: "Import table outside every section",
			buf: func() []byte {
				b := petest.Build(petest.Options{Imports: []string{"A.dll"}})
				// Import directory RVA in the PE32+ data directories.
				buf := b.Bytes
				off := 0x40 + 24 + 112 + 8
				buf[off], buf[off+1], buf[off+2] = 0, 0, 0x09
				return buf
			},
			wantKind: pe.UnmappedRva,
			wantFrom: SectionsLoaded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := Analyze("bad.exe", tt.buf(), NewResolver(nil), nil)
			assert.Equal(t, Failed, report.State)
			assert.Equal(t, tt.wantFrom, report.FailedFrom)
			assert.Equal(t, tt.wantKind, report.Kind())
			assert.Empty(t, report.Entries)
			assert.False(t, report.OK())
		})
	}
}

func TestAnalyzeTruncatedTable(t *testing.T) {
	dir := touch(t, "a.dll", "b.dll", "c.dll")
	b := petest.Build(petest.Options{Imports: []string{"A.dll", "B.dll", "C.dll"}})
	buf := b.Bytes[:b.Descriptor(2)+10]

	report := Analyze("cut.exe", buf, NewResolver([]string{dir}), nil)

	assert.Equal(t, Resolved, report.State)
	assert.True(t, report.Truncated)
	assert.Equal(t, pe.TruncatedImportTable, report.Kind())
	require.Len(t, report.Entries, 2)
	assert.Equal(t, "A.dll", report.Entries[0].Name)
	assert.Equal(t, "B.dll", report.Entries[1].Name)
	assert.False(t, report.OK())
}

func TestAnalyzeBrokenEntry(t *testing.T) {
	dir := touch(t, "a.dll", "c.dll")
	b := petest.Build(petest.Options{Imports: []string{"A.dll", "B.dll", "C.dll"}})
	b.SetNameRVA(1, 0x90000)

	report := Analyze("app.exe", b.Bytes, NewResolver([]string{dir}), nil)

	require.Equal(t, Resolved, report.State)
	require.Len(t, report.Entries, 3)
	assert.True(t, report.Entries[0].Found)
	assert.Equal(t, pe.UnmappedRva, pe.KindOf(report.Entries[1].Err))
	assert.True(t, report.Entries[2].Found)
	assert.Len(t, report.Broken(), 1)
	assert.Empty(t, report.Missing())
	assert.False(t, report.OK())
}

func TestMachineAdvance(t *testing.T) {
	m := &machine{report: &Report{}, log: logger.Discard()}

	require.Error(t, m.advance(SectionsLoaded))
	require.NoError(t, m.advance(HeaderValidated))
	require.Error(t, m.advance(HeaderValidated))
	require.NoError(t, m.advance(SectionsLoaded))

	m.fail(pe.ErrTruncatedImportTable)
	assert.Equal(t, Failed, m.report.State)
	assert.Equal(t, SectionsLoaded, m.report.FailedFrom)
	require.Error(t, m.advance(Resolved))

	// A second failure keeps the first.
	m.fail(errors.New("later"))
	assert.ErrorIs(t, m.report.Err, pe.ErrTruncatedImportTable)
	assert.Equal(t, SectionsLoaded, m.report.FailedFrom)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "ImportsExtracted", ImportsExtracted.String())
	assert.Equal(t, "State(42)", State(42).String())

	text, err := Resolved.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "Resolved", string(text))
}

func TestAnalyzeFilesOrder(t *testing.T) {
	dir := touch(t, "a.dll")
	src := t.TempDir()

	paths := make([]string, 0, 8)
	for i, imports := range [][]string{{"A.dll"}, {"B.dll"}, {"A.dll", "B.dll"}, {}} {
		path := filepath.Join(src, string(rune('a'+i))+".exe")
		require.NoError(t, os.WriteFile(path, petest.Build(petest.Options{Imports: imports}).Bytes, 0o644))
		paths = append(paths, path)
	}
	paths = append(paths, filepath.Join(src, "missing.exe"))

	reports := AnalyzeFiles(context.Background(), paths, NewResolver([]string{dir}), BatchOptions{Workers: 2})

	require.Len(t, reports, len(paths))
	for i, r := range reports {
		assert.Equal(t, paths[i], r.Path)
	}
	assert.True(t, reports[0].OK())
	assert.False(t, reports[1].OK())
	assert.Len(t, reports[2].Entries, 2)
	assert.True(t, reports[3].OK())

	missing := reports[4]
	assert.True(t, missing.Failed())
	assert.ErrorIs(t, missing.Err, os.ErrNotExist)
	assert.Equal(t, pe.KindNone, missing.Kind())
}

func TestAnalyzeFilesSniffsNonPE(t *testing.T) {
	elf := append([]byte{0x7f, 'E', 'L', 'F', 2, 1, 1}, make([]byte, 64)...)
	files := map[string][]byte{
		"lib.so":  elf,
		"app.exe": petest.Build(petest.Options{}).Bytes,
	}
	open := func(path string) (*loader.File, error) {
		data, ok := files[path]
		if !ok {
			return nil, os.ErrNotExist
		}
		return loader.FromBytes(path, data), nil
	}

	reports := AnalyzeFiles(context.Background(), []string{"lib.so", "app.exe"}, NewResolver(nil), BatchOptions{Open: open})

	require.Len(t, reports, 2)
	assert.Equal(t, pe.NotAPEFile, reports[0].Kind())
	assert.Contains(t, reports[0].FileType, "elf")
	assert.Empty(t, reports[1].FileType)
	assert.Equal(t, Resolved, reports[1].State)
	assert.Equal(t, int64(len(elf)), reports[0].FileSize)
	assert.Equal(t, int64(len(files["app.exe"])), reports[1].FileSize)
}

func TestAnalyzeFilesLogsToContextLogger(t *testing.T) {
	b := petest.Build(petest.Options{Imports: []string{"A.dll", "B.dll", "C.dll"}})
	cut := b.Bytes[:b.Descriptor(2)+10]
	open := func(path string) (*loader.File, error) {
		return loader.FromBytes(path, cut), nil
	}

	var buf bytes.Buffer
	ctx := logger.WithContext(context.Background(), logger.Text(&buf, slog.LevelDebug))

	reports := AnalyzeFiles(ctx, []string{"cut.exe"}, NewResolver(nil), BatchOptions{Open: open})

	require.Len(t, reports, 1)
	assert.True(t, reports[0].Truncated)
	assert.Contains(t, buf.String(), "import table truncated")
	assert.Contains(t, buf.String(), "file=cut.exe")
}

func TestAnalyzeFilesCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opened := 0
	open := func(path string) (*loader.File, error) {
		opened++
		return loader.FromBytes(path, nil), nil
	}

	reports := AnalyzeFiles(ctx, []string{"a", "b", "c"}, NewResolver(nil), BatchOptions{Workers: 1, Open: open})

	require.Len(t, reports, 3)
	for _, r := range reports {
		assert.True(t, r.Failed())
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
	assert.Zero(t, opened)
}
