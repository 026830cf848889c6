package deps

import (
	"context"
	"runtime"
	"sync"

	"github.com/ZacharyZcR/wldd/internal/loader"
	"github.com/ZacharyZcR/wldd/internal/logger"
)

// OpenFunc loads one input file.
type OpenFunc func(path string) (*loader.File, error)

// BatchOptions configures AnalyzeFiles.
type BatchOptions struct {
	// Workers bounds concurrent pipelines; zero means runtime.NumCPU().
	Workers int
	// Open loads input files; nil means loader.Open.
	Open OpenFunc
}

// AnalyzeFiles runs one independent pipeline per path and returns the reports in input order.
// Files that cannot be read get a Failed report carrying the I/O error. Once ctx is done no
// new file is started; the remaining reports carry ctx.Err(). Logging goes to the logger
// stored in ctx.
func AnalyzeFiles(ctx context.Context, paths []string, r *Resolver, opts BatchOptions) []*Report {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	open := opts.Open
	if open == nil {
		open = loader.Open
	}
	log := logger.FromContext(ctx)

	reports := make([]*Report, len(paths))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			reports[i] = failedReport(path, err)
			continue
		}
		select {
		case <-ctx.Done():
			reports[i] = failedReport(path, ctx.Err())
			continue
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			defer func() { <-sem }()
			reports[i] = analyzeFile(path, r, open, log)
		}(i, path)
	}

	wg.Wait()
	return reports
}

func analyzeFile(path string, r *Resolver, open OpenFunc, log logger.Logger) *Report {
	f, err := open(path)
	if err != nil {
		log.Debug("open failed", "file", path, "error", err)
		return failedReport(path, err)
	}
	defer func() { _ = f.Close() }()
	log.Debug("opened", "file", f.FilePath(), "size", f.FileSize())

	report := Analyze(path, f.Bytes(), r, log)
	report.FileSize = f.FileSize()
	if report.Failed() && report.FailedFrom == Unparsed {
		report.FileType = f.Sniff()
	}
	return report
}

func failedReport(path string, err error) *Report {
	return &Report{
		Path:    path,
		State:   Failed,
		Err:     err,
		Entries: []Entry{},
	}
}
