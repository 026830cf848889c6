package cli

import (
	"io"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/ZacharyZcR/wldd/internal/deps"
	"github.com/ZacharyZcR/wldd/internal/pe"
)

// Document is the JSON form of one run.
type Document struct {
	RunID      string     `json:"run_id"`
	SearchDirs []string   `json:"search_dirs"`
	OK         bool       `json:"ok"`
	Files      []FileJSON `json:"files"`
}

// FileJSON is one file's report.
type FileJSON struct {
	Path         string        `json:"path"`
	State        deps.State    `json:"state"`
	FailedFrom   *deps.State   `json:"failed_from,omitempty"`
	Kind         string        `json:"kind,omitempty"`
	Error        string        `json:"error,omitempty"`
	FileType     string        `json:"file_type,omitempty"`
	FileSize     int64         `json:"file_size"`
	Format       string        `json:"format,omitempty"`
	Architecture string        `json:"architecture,omitempty"`
	Sections     []SectionJSON `json:"sections,omitempty"`
	Truncated    bool          `json:"truncated"`
	Dependencies []EntryJSON   `json:"dependencies"`
}

// SectionJSON is one section table entry.
type SectionJSON struct {
	Name           string  `json:"name"`
	VirtualAddress uint32  `json:"virtual_address"`
	VirtualSize    uint32  `json:"virtual_size"`
	RawSize        uint32  `json:"raw_size"`
	Permissions    string  `json:"permissions"`
	Entropy        float64 `json:"entropy"`
}

// EntryJSON is one dependency.
type EntryJSON struct {
	Name  string   `json:"name"`
	Found bool     `json:"found"`
	Dir   string   `json:"dir,omitempty"`
	Path  string   `json:"path,omitempty"`
	Also  []string `json:"also,omitempty"`
	Kind  string   `json:"kind,omitempty"`
	Error string   `json:"error,omitempty"`
}

// JSONReporter writes all reports as a single JSON document.
type JSONReporter struct {
	out     io.Writer
	verbose bool
	newID   func() string
}

// NewJSONReporter creates a JSON reporter writing to out.
func NewJSONReporter(out io.Writer) *JSONReporter {
	return &JSONReporter{out: out, newID: uuid.NewString}
}

// SetVerbose includes the section table of each image.
func (r *JSONReporter) SetVerbose(verbose bool) {
	r.verbose = verbose
}

// Print writes the document for reports resolved against dirs.
func (r *JSONReporter) Print(reports []*deps.Report, dirs []string) error {
	doc := r.Build(reports, dirs)
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// Build converts reports into a Document.
func (r *JSONReporter) Build(reports []*deps.Report, dirs []string) Document {
	doc := Document{
		RunID:      r.newID(),
		SearchDirs: append([]string{}, dirs...),
		OK:         true,
		Files:      make([]FileJSON, 0, len(reports)),
	}
	for _, report := range reports {
		if !report.OK() {
			doc.OK = false
		}
		doc.Files = append(doc.Files, r.file(report))
	}
	return doc
}

func (r *JSONReporter) file(report *deps.Report) FileJSON {
	f := FileJSON{
		Path:         report.Path,
		State:        report.State,
		FileType:     report.FileType,
		FileSize:     report.FileSize,
		Truncated:    report.Truncated,
		Dependencies: make([]EntryJSON, 0, len(report.Entries)),
	}
	if report.Failed() {
		from := report.FailedFrom
		f.FailedFrom = &from
	}
	if report.Err != nil {
		f.Error = report.Err.Error()
		if kind := report.Kind(); kind != pe.KindNone {
			f.Kind = kind.String()
		}
	}
	if info := report.Image; info != nil {
		f.Format = info.Format.String()
		f.Architecture = info.Architecture
		if r.verbose {
			for _, s := range info.Sections {
				f.Sections = append(f.Sections, SectionJSON{
					Name:           s.Name,
					VirtualAddress: s.VirtualAddress,
					VirtualSize:    s.VirtualSize,
					RawSize:        s.SizeOfRawData,
					Permissions:    s.Permissions(),
					Entropy:        s.Entropy,
				})
			}
		}
	}
	for _, e := range report.Entries {
		entry := EntryJSON{
			Name:  e.Name,
			Found: e.Found,
			Dir:   e.Dir,
			Path:  e.Path(),
			Also:  e.Also,
		}
		if e.Err != nil {
			entry.Kind = pe.KindOf(e.Err).String()
			entry.Error = e.Err.Error()
		}
		f.Dependencies = append(f.Dependencies, entry)
	}
	return f
}
