// Package main provides the wldd CLI tool.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"

	wcli "github.com/ZacharyZcR/wldd/internal/cli"
	"github.com/ZacharyZcR/wldd/internal/config"
	"github.com/ZacharyZcR/wldd/internal/deps"
	"github.com/ZacharyZcR/wldd/internal/logger"
)

// errUnresolved marks a run where some file failed or some dependency was not found. The
// reports already said which, so nothing more is printed.
var errUnresolved = errors.New("存在未解析的依赖")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	err := newCommand(stdout, stderr).Run(ctx, args)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUnresolved):
		return 1
	default:
		red := color.New(color.FgRed, color.Bold)
		_, _ = red.Fprintf(stderr, "错误: %v\n", err)
		return 1
	}
}

func newCommand(stdout, stderr io.Writer) *cli.Command {
	var f options

	// Slice flags are not split on commas: a -d value is one path.
	return &cli.Command{
		Name:                      "wldd",
		Usage:                     "列出 PE 文件依赖的 DLL 及其所在目录",
		ArgsUsage:                 "FILE...",
		Writer:                    stdout,
		ErrWriter:                 stderr,
		HideHelpCommand:           true,
		DisableSliceFlagSeparator: true,
		Flags:                     f.flags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() == 0 {
				_ = cli.ShowAppHelp(cmd)
				return errors.New("至少需要一个文件")
			}
			return analyze(ctx, cmd, &f, stdout, stderr)
		},
	}
}

func analyze(ctx context.Context, cmd *cli.Command, f *options, stdout, stderr io.Writer) error {
	cfgPath := f.configPath
	if !cmd.IsSet("config") {
		cfgPath = config.Path()
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	f.apply(cmd, cfg)

	log := logger.ForFormat(f.logFormat, stderr, logger.ParseLevel(f.logLevel))
	ctx = logger.WithContext(ctx, log)

	if !f.color {
		color.NoColor = true
	}

	if err := checkDirs(f.dirs); err != nil {
		return err
	}

	user := append([]string{}, f.dirs...)
	user = append(user, cfg.SearchDirs...)
	user = append(user, config.EnvDirs()...)
	search := deps.SearchPath(user, f.includeDefaults)
	log.Debug("search path", "dirs", search, "config", cfgPath)

	opts := []deps.Option{deps.WithLogger(log)}
	if f.all {
		opts = append(opts, deps.WithAllMatches())
	}
	resolver := deps.NewResolver(search, opts...)

	reports := deps.AnalyzeFiles(ctx, cmd.Args().Slice(), resolver, deps.BatchOptions{
		Workers: int(f.workers),
	})

	if f.json {
		r := wcli.NewJSONReporter(stdout)
		r.SetVerbose(f.verbose)
		if err := r.Print(reports, resolver.Dirs()); err != nil {
			return fmt.Errorf("写入 JSON 失败: %w", err)
		}
	} else {
		r := wcli.NewReporter(stdout, stderr)
		r.SetVerbose(f.verbose)
		r.Print(reports)
	}

	for _, report := range reports {
		if !report.OK() {
			return errUnresolved
		}
	}
	return nil
}

// checkDirs rejects -d values that are not existing directories.
func checkDirs(dirs []string) error {
	for _, dir := range dirs {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("搜索目录无效: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("%s: 不是目录", dir)
		}
	}
	return nil
}
