package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZacharyZcR/wldd/internal/deps"
	"github.com/ZacharyZcR/wldd/internal/pe"
)

func init() {
	color.NoColor = true
}

func resolved(path string, entries ...deps.Entry) *deps.Report {
	return &deps.Report{
		Path:  path,
		State: deps.Resolved,
		Image: &deps.ImageInfo{
			Format:       pe.PE32Plus,
			Architecture: "x64 (64位)",
			Sections: []deps.SectionInfo{
				{
					Section: pe.Section{Name: ".text", VirtualAddress: 0x1000, VirtualSize: 0x2400, SizeOfRawData: 0x2600, Characteristics: pe.ScnMemRead | pe.ScnMemExecute},
					Entropy: 6.25,
				},
				{
					Section: pe.Section{Name: ".data", VirtualAddress: 0x4000, VirtualSize: 0x200, SizeOfRawData: 0x200, Characteristics: pe.ScnMemRead | pe.ScnMemWrite},
					Entropy: 1.5,
				},
			},
		},
		Entries: entries,
	}
}

func withSize(r *deps.Report, size int64) *deps.Report {
	r.FileSize = size
	return r
}

func TestReporterText(t *testing.T) {
	reports := []*deps.Report{
		resolved("app.exe",
			deps.Entry{Name: "KERNEL32.dll", Found: true, Dir: "/win/system32", File: "kernel32.dll"},
			deps.Entry{Name: "foo.dll"},
			deps.Entry{Err: pe.ErrMalformedName},
		),
		resolved("static.exe"),
	}

	var out, errOut bytes.Buffer
	NewReporter(&out, &errOut).Print(reports)

	want := "app.exe:\n" +
		"\tKERNEL32.dll => /win/system32\n" +
		"\tfoo.dll      => 未找到\n" +
		"\t<无法读取>       => 错误: MalformedName\n"
	assert.Equal(t, want, out.String())
	assert.Equal(t, "static.exe: 不是动态可执行文件\n", errOut.String())
}

func TestReporterAllMatches(t *testing.T) {
	report := resolved("app.exe",
		deps.Entry{Name: "a.dll", Found: true, Dir: "/one", File: "a.dll", Also: []string{"/two", "/three"}},
	)

	var out bytes.Buffer
	NewReporter(&out, &out).Print([]*deps.Report{report})

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "\ta.dll => /one", lines[1])
	// Later directories keep the arrow, with the name column left blank.
	indent := "\t" + strings.Repeat(" ", len("a.dll")) + " => "
	assert.Equal(t, indent+"/two", lines[2])
	assert.Equal(t, indent+"/three", lines[3])
}

func TestReporterTruncated(t *testing.T) {
	report := resolved("cut.exe", deps.Entry{Name: "a.dll", Found: true, Dir: "/d"})
	report.Truncated = true
	report.Err = pe.ErrTruncatedImportTable

	var out bytes.Buffer
	NewReporter(&out, &out).Print([]*deps.Report{report})

	assert.Contains(t, out.String(), "\ta.dll => /d\n")
	assert.Contains(t, out.String(), "导入表被截断 (TruncatedImportTable)")
	assert.NotContains(t, out.String(), "不是动态可执行文件")
}

func TestReporterFailures(t *testing.T) {
	tests := []struct {
		name   string
		report *deps.Report
		want   []string
	}{
		{
			name: "Parse failure with sniffed type",
			report: &deps.Report{
				Path:     "lib.so",
				State:    deps.Failed,
				Err:      pe.ErrNotPE,
				FileType: "elf (application/x-executable)",
			},
			want: []string{"lib.so: 错误: NotAPEFile", "检测到文件类型: elf"},
		},
		{
			name:   "I/O failure",
			report: &deps.Report{Path: "gone.exe", State: deps.Failed, Err: errors.New("打开文件失败: no such file")},
			want:   []string{"gone.exe: 错误: 打开文件失败: no such file"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out, errOut bytes.Buffer
			NewReporter(&out, &errOut).Print([]*deps.Report{tt.report})

			assert.Empty(t, out.String())
			for _, w := range tt.want {
				assert.Contains(t, errOut.String(), w)
			}
		})
	}
}

func TestReporterVerbose(t *testing.T) {
	var out bytes.Buffer
	r := NewReporter(&out, &out)
	r.SetVerbose(true)
	r.Print([]*deps.Report{withSize(resolved("app.exe", deps.Entry{Name: "a.dll"}), 3<<20)})

	s := out.String()
	assert.Contains(t, s, "3.0 MiB")
	assert.Contains(t, s, "PE32+")
	assert.Contains(t, s, "x64 (64位)")
	assert.Contains(t, s, "【节区信息】(共 2 个)")
	assert.Contains(t, s, ".text")
	assert.Contains(t, s, "R-X")
	assert.Contains(t, s, "RW-")
	assert.Contains(t, s, "9.0 KiB")
	assert.Contains(t, s, "6.25")
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{1048576, "1.0 MiB"},
		{1073741824, "1.0 GiB"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := formatSize(tt.bytes); got != tt.want {
				t.Errorf("formatSize(%d) = %v, want %v", tt.bytes, got, tt.want)
			}
		})
	}
}

func TestJSONReporter(t *testing.T) {
	reports := []*deps.Report{
		withSize(resolved("app.exe",
			deps.Entry{Name: "a.dll", Found: true, Dir: "/d", File: "A.DLL"},
			deps.Entry{Name: "b.dll"},
			deps.Entry{Err: pe.ErrUnmappedRVA},
		), 4096),
		{Path: "lib.so", State: deps.Failed, FailedFrom: deps.Unparsed, Err: pe.ErrNotPE, FileType: "elf"},
	}

	var out bytes.Buffer
	r := NewJSONReporter(&out)
	r.newID = func() string { return "run-1" }
	require.NoError(t, r.Print(reports, []string{"/d"}))

	var doc struct {
		RunID      string   `json:"run_id"`
		SearchDirs []string `json:"search_dirs"`
		OK         bool     `json:"ok"`
		Files      []struct {
			Path         string `json:"path"`
			State        string `json:"state"`
			FailedFrom   string `json:"failed_from"`
			Kind         string `json:"kind"`
			FileType     string `json:"file_type"`
			FileSize     int64  `json:"file_size"`
			Format       string `json:"format"`
			Sections     []any  `json:"sections"`
			Dependencies []struct {
				Name  string `json:"name"`
				Found bool   `json:"found"`
				Path  string `json:"path"`
				Kind  string `json:"kind"`
			} `json:"dependencies"`
		} `json:"files"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &doc))

	assert.Equal(t, "run-1", doc.RunID)
	assert.Equal(t, []string{"/d"}, doc.SearchDirs)
	assert.False(t, doc.OK)
	require.Len(t, doc.Files, 2)

	app := doc.Files[0]
	assert.Equal(t, "Resolved", app.State)
	assert.Empty(t, app.FailedFrom)
	assert.Equal(t, "PE32+", app.Format)
	assert.Equal(t, int64(4096), app.FileSize)
	assert.Empty(t, app.Sections)
	require.Len(t, app.Dependencies, 3)
	assert.Equal(t, "/d/A.DLL", app.Dependencies[0].Path)
	assert.False(t, app.Dependencies[1].Found)
	assert.Equal(t, "UnmappedRva", app.Dependencies[2].Kind)

	lib := doc.Files[1]
	assert.Equal(t, "Failed", lib.State)
	assert.Equal(t, "Unparsed", lib.FailedFrom)
	assert.Equal(t, "NotAPEFile", lib.Kind)
	assert.Equal(t, "elf", lib.FileType)
	assert.Empty(t, lib.Dependencies)
}

func TestJSONReporterVerboseAndOK(t *testing.T) {
	r := NewJSONReporter(nil)
	r.SetVerbose(true)

	doc := r.Build([]*deps.Report{resolved("app.exe", deps.Entry{Name: "a.dll", Found: true, Dir: "/d"})}, nil)

	assert.True(t, doc.OK)
	assert.NotEmpty(t, doc.RunID)
	assert.Equal(t, []string{}, doc.SearchDirs)
	require.Len(t, doc.Files[0].Sections, 2)
	assert.Equal(t, "R-X", doc.Files[0].Sections[0].Permissions)
	assert.InDelta(t, 6.25, doc.Files[0].Sections[0].Entropy, 1e-9)
}
