package main

import (
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/ZacharyZcR/wldd/internal/config"
)

type options struct {
	dirs          []string
	json          bool
	all           bool
	verbose       bool
	noDefaultDirs bool
	workers       int64
	configPath    string
	logLevel      string
	logFormat     string
	noColor       bool

	// Derived in apply.
	includeDefaults bool
	color           bool
}

func (o *options) flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:        "dir",
			Aliases:     []string{"d"},
			Usage:       "额外的搜索目录，按给定顺序优先于系统目录 (可重复)",
			Destination: &o.dirs,
		},
		&cli.BoolFlag{Name: "json", Usage: "以 JSON 输出报告", Destination: &o.json},
		&cli.BoolFlag{Name: "all", Usage: "列出包含该 DLL 的所有目录，而不只是第一个", Destination: &o.all},
		&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "显示格式、架构和节区信息", Destination: &o.verbose},
		&cli.BoolFlag{Name: "no-default-dirs", Usage: "不搜索系统目录", Destination: &o.noDefaultDirs},
		&cli.Int64Flag{
			Name:        "workers",
			Aliases:     []string{"j"},
			Usage:       "并发分析的文件数 (0 表示 CPU 核数)",
			Destination: &o.workers,
		},
		&cli.StringFlag{
			Name:        "config",
			Usage:       "配置文件路径 (默认 $WLDD_CONFIG 或用户配置目录下的 wldd/config.yaml)",
			Destination: &o.configPath,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "日志级别 (debug, info, warn, error)",
			Value:       "warn",
			Destination: &o.logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "日志格式 (pretty, json, text)",
			Value:       "pretty",
			Destination: &o.logFormat,
		},
		&cli.BoolFlag{Name: "no-color", Usage: "禁用彩色输出", Destination: &o.noColor},
	}
}

// apply fills in config file values for flags that were not explicitly set.
func (o *options) apply(cmd *cli.Command, cfg config.Config) {
	if cfg.LogLevel != "" && !cmd.IsSet("log-level") {
		o.logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !cmd.IsSet("log-format") {
		o.logFormat = cfg.LogFormat
	}
	if cfg.Workers != nil && !cmd.IsSet("workers") {
		o.workers = int64(cfg.WorkerCount())
	}
	if strings.EqualFold(cfg.Output, "json") && !cmd.IsSet("json") {
		o.json = true
	}

	o.includeDefaults = cfg.IncludeDefaultDirs()
	if cmd.IsSet("no-default-dirs") {
		o.includeDefaults = !o.noDefaultDirs
	}

	o.color = cfg.UseColor()
	if cmd.IsSet("no-color") {
		o.color = !o.noColor
	}
}
