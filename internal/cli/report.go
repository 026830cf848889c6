// Package cli provides command-line interface utilities.
package cli

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"

	"github.com/ZacharyZcR/wldd/internal/deps"
	"github.com/ZacharyZcR/wldd/internal/pe"
)

const unreadableName = "<无法读取>"

// Reporter prints dependency reports in ldd style.
type Reporter struct {
	out     io.Writer
	errOut  io.Writer
	verbose bool
}

// NewReporter creates a reporter writing results to out and per-file failures to errOut.
func NewReporter(out, errOut io.Writer) *Reporter {
	return &Reporter{out: out, errOut: errOut}
}

// SetVerbose enables verbose mode (image format and section table).
func (r *Reporter) SetVerbose(verbose bool) {
	r.verbose = verbose
}

// Print outputs every report in order.
func (r *Reporter) Print(reports []*deps.Report) {
	for _, report := range reports {
		r.printReport(report)
	}
}

func (r *Reporter) printReport(report *deps.Report) {
	if report.Failed() {
		r.printFailure(report)
		return
	}

	if len(report.Entries) == 0 && !report.Truncated {
		fmt.Fprintf(r.errOut, "%s: 不是动态可执行文件\n", report.Path)
		if r.verbose {
			r.printImage(report)
		}
		return
	}

	fmt.Fprintf(r.out, "%s:\n", report.Path)
	if r.verbose {
		r.printImage(report)
	}
	r.printEntries(report.Entries)

	if report.Truncated {
		yellow := color.New(color.FgYellow)
		yellow.Fprintf(r.out, "\t... 导入表被截断 (%s), 仅列出已读取的 %d 项\n", pe.TruncatedImportTable, len(report.Entries))
	}
}

func (r *Reporter) printEntries(entries []deps.Entry) {
	width := 0
	for _, e := range entries {
		if n := utf8.RuneCountInString(displayName(e)); n > width {
			width = n
		}
	}

	red := color.New(color.FgRed, color.Bold)
	gray := color.New(color.FgHiBlack)

	for _, e := range entries {
		fmt.Fprintf(r.out, "\t%-*s => ", width, displayName(e))
		switch {
		case e.Err != nil:
			red.Fprintf(r.out, "错误: %s", pe.KindOf(e.Err))
		case e.Found:
			fmt.Fprint(r.out, e.Dir)
		default:
			red.Fprint(r.out, "未找到")
		}
		fmt.Fprintln(r.out)

		for _, dir := range e.Also {
			gray.Fprintf(r.out, "\t%-*s => %s\n", width, "", dir)
		}
	}
}

func (r *Reporter) printFailure(report *deps.Report) {
	red := color.New(color.FgRed, color.Bold)
	red.Fprintf(r.errOut, "%s: 错误: ", report.Path)

	if kind := report.Kind(); kind != pe.KindNone {
		fmt.Fprintf(r.errOut, "%s (%v)", kind, report.Err)
	} else {
		fmt.Fprint(r.errOut, report.Err)
	}
	if report.FileType != "" {
		fmt.Fprintf(r.errOut, " [检测到文件类型: %s]", report.FileType)
	}
	fmt.Fprintln(r.errOut)
}

func (r *Reporter) printImage(report *deps.Report) {
	info := report.Image
	if info == nil {
		return
	}
	fmt.Fprintf(r.out, "  %-8s: %s\n", "文件大小", formatSize(report.FileSize))
	fmt.Fprintf(r.out, "  %-8s: %s\n", "格式", info.Format)
	fmt.Fprintf(r.out, "  %-8s: %s\n", "架构", info.Architecture)
	r.printSections(info.Sections)
}

func (r *Reporter) printSections(sections []deps.SectionInfo) {
	yellow := color.New(color.FgYellow, color.Bold)
	yellow.Fprintf(r.out, "  【节区信息】(共 %d 个)\n", len(sections))

	if len(sections) == 0 {
		fmt.Fprintln(r.out, "  未发现节区")
		return
	}

	fmt.Fprintln(r.out, "  "+strings.Repeat("-", 78))
	fmt.Fprintf(r.out, "  %-10s %-12s %-15s %-15s %-8s %s\n",
		"名称", "虚拟地址", "虚拟大小", "原始大小", "权限", "熵值")
	fmt.Fprintln(r.out, "  "+strings.Repeat("-", 78))

	for _, section := range sections {
		// Highlight dangerous permissions (RWX)
		permColor := color.New(color.FgWhite)
		perms := section.Permissions()
		if perms == "RWX" {
			permColor = color.New(color.FgRed, color.Bold)
		} else if strings.Contains(perms, "X") {
			permColor = color.New(color.FgYellow)
		}

		fmt.Fprintf(r.out, "  %-10s 0x%08X   %-15s %-15s ",
			section.Name,
			section.VirtualAddress,
			formatSize(int64(section.VirtualSize)),
			formatSize(int64(section.SizeOfRawData)),
		)
		permColor.Fprintf(r.out, "%-8s", perms)
		fmt.Fprintf(r.out, " %.2f\n", section.Entropy)
	}
	fmt.Fprintln(r.out, "  "+strings.Repeat("-", 78))
}

func displayName(e deps.Entry) string {
	if e.Name == "" {
		return unreadableName
	}
	return e.Name
}

func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
