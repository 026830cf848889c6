package main

import (
	"bytes"
	"context"
	"fmt"

	"github.com/fatih/color"

	"github.com/ZacharyZcR/wldd/internal/cli"
	"github.com/ZacharyZcR/wldd/internal/deps"
	"github.com/ZacharyZcR/wldd/internal/pe"
)

type request struct {
	path            string
	dirs            []string
	includeDefaults bool
	all             bool
}

type result struct {
	text   string
	status string
}

func init() {
	// Widgets show plain text.
	color.NoColor = true
}

// analyzeFile runs the same pipeline as the CLI and renders the text report.
func analyzeFile(ctx context.Context, req request) (result, error) {
	var opts []deps.Option
	if req.all {
		opts = append(opts, deps.WithAllMatches())
	}
	resolver := deps.NewResolver(deps.SearchPath(req.dirs, req.includeDefaults), opts...)

	reports := deps.AnalyzeFiles(ctx, []string{req.path}, resolver, deps.BatchOptions{Workers: 1})
	report := reports[0]
	if report.Failed() && report.Kind() == pe.KindNone {
		return result{}, report.Err
	}

	var buf bytes.Buffer
	r := cli.NewReporter(&buf, &buf)
	r.SetVerbose(true)
	r.Print(reports)

	fmt.Fprintf(&buf, "\n搜索目录:\n")
	for i, dir := range resolver.Dirs() {
		fmt.Fprintf(&buf, "  %d. %s\n", i+1, dir)
	}

	return result{text: buf.String(), status: status(report)}, nil
}

func status(report *deps.Report) string {
	switch {
	case report.Failed():
		return fmt.Sprintf("分析失败: %s", report.Kind())
	case report.Truncated:
		return fmt.Sprintf("导入表被截断: 已读取 %d 项", len(report.Entries))
	case report.OK():
		return fmt.Sprintf("分析完成: %d 个依赖全部找到", len(report.Entries))
	default:
		return fmt.Sprintf("分析完成: %d 个未找到, %d 个无法读取", len(report.Missing()), len(report.Broken()))
	}
}
