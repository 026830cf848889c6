package deps

import (
	"fmt"

	"github.com/ZacharyZcR/wldd/internal/logger"
	"github.com/ZacharyZcR/wldd/internal/pe"
)

// State is a step of the per-file pipeline.
type State int

// Pipeline states. A file moves forward one state at a time or drops into Failed.
const (
	Unparsed State = iota
	HeaderValidated
	SectionsLoaded
	ImportsExtracted
	Resolved
	Failed
)

func (s State) String() string {
	switch s {
	case Unparsed:
		return "Unparsed"
	case HeaderValidated:
		return "HeaderValidated"
	case SectionsLoaded:
		return "SectionsLoaded"
	case ImportsExtracted:
		return "ImportsExtracted"
	case Resolved:
		return "Resolved"
	case Failed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText renders the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// SectionInfo is a section table entry plus the entropy of its raw bytes.
type SectionInfo struct {
	pe.Section
	Entropy float64
}

// ImageInfo summarises the parsed headers. It holds no reference to the file buffer.
type ImageInfo struct {
	Format       pe.Format
	Architecture string
	Sections     []SectionInfo
}

// Report is the outcome of one file's pipeline.
type Report struct {
	Path  string
	State State
	// FailedFrom is the last state reached before failing.
	FailedFrom State
	Err        error
	// FileType names a recognised non-PE format when parsing failed.
	FileType string
	// FileSize is the input size in bytes; zero when the file could not be opened.
	FileSize int64
	Image    *ImageInfo
	Entries  []Entry
	// Truncated is set when the import table ended without its terminator.
	Truncated bool
}

// Kind returns the failure kind, or pe.KindNone.
func (r *Report) Kind() pe.Kind {
	return pe.KindOf(r.Err)
}

// Failed reports whether the file never reached Resolved.
func (r *Report) Failed() bool {
	return r.State == Failed
}

// Missing returns the entries that were read but not found.
func (r *Report) Missing() []Entry {
	var out []Entry
	for _, e := range r.Entries {
		if e.Missing() {
			out = append(out, e)
		}
	}
	return out
}

// Broken returns the entries whose name could not be extracted.
func (r *Report) Broken() []Entry {
	var out []Entry
	for _, e := range r.Entries {
		if e.Err != nil {
			out = append(out, e)
		}
	}
	return out
}

// OK reports whether the file parsed completely and every dependency was found.
func (r *Report) OK() bool {
	if r.Failed() || r.Truncated {
		return false
	}
	for _, e := range r.Entries {
		if !e.Found {
			return false
		}
	}
	return true
}

// machine enforces the forward-only state order on a Report.
type machine struct {
	report *Report
	log    logger.Logger
}

func (m *machine) advance(next State) error {
	cur := m.report.State
	if cur == Failed || next != cur+1 || next > Resolved {
		return fmt.Errorf("非法状态转换: %s -> %s", cur, next)
	}
	m.report.State = next
	m.log.Debug("state", "to", next)
	return nil
}

func (m *machine) fail(err error) {
	if m.report.State == Failed {
		return
	}
	m.report.FailedFrom = m.report.State
	m.report.State = Failed
	m.report.Err = err
	m.log.Debug("pipeline failed", "from", m.report.FailedFrom, "kind", pe.KindOf(err), "error", err)
}

// step is one pipeline stage; on success the machine advances to its state.
type step struct {
	to  State
	run func() error
}

func imageInfo(img *pe.Image) *ImageInfo {
	info := &ImageInfo{
		Format:       img.Format(),
		Architecture: img.Architecture(),
		Sections:     make([]SectionInfo, 0, len(img.Sections())),
	}
	for _, s := range img.Sections() {
		info.Sections = append(info.Sections, SectionInfo{Section: s, Entropy: img.SectionEntropy(s)})
	}
	return info
}

// Analyze runs the pipeline for one file's bytes. buf is only read during the call; the
// returned Report keeps no reference to it.
func Analyze(path string, buf []byte, r *Resolver, log logger.Logger) *Report {
	if log == nil {
		log = logger.Discard()
	}
	report := &Report{Path: path, FileSize: int64(len(buf)), Entries: []Entry{}}
	m := &machine{report: report, log: log.With("file", path)}

	var (
		headers *pe.Headers
		img     *pe.Image
		imports []pe.Import
		partial error
	)

	steps := []step{
		{HeaderValidated, func() (err error) {
			headers, err = pe.ParseHeaders(buf)
			return err
		}},
		{SectionsLoaded, func() (err error) {
			img, err = headers.LoadSections()
			if err != nil {
				return err
			}
			report.Image = imageInfo(img)
			return nil
		}},
		{ImportsExtracted, func() (err error) {
			imports, err = pe.ExtractImports(img)
			if pe.KindOf(err) == pe.TruncatedImportTable {
				partial, err = err, nil
			}
			return err
		}},
		{Resolved, func() error {
			report.Entries = r.Resolve(imports)
			return nil
		}},
	}

	for _, s := range steps {
		if err := s.run(); err != nil {
			m.fail(err)
			return report
		}
		if err := m.advance(s.to); err != nil {
			m.fail(err)
			return report
		}
	}

	if partial != nil {
		report.Truncated = true
		report.Err = partial
		log.Warn("import table truncated", "file", path, "entries", len(imports))
	}
	return report
}
