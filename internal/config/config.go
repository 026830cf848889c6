// Package config loads wldd's optional YAML config file and environment settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xyproto/env/v2"
	"gopkg.in/yaml.v3"
)

// getenv reads an environment variable, falling back to the optional default.
var getenv = env.Str

// Config represents the config file (~/.config/wldd/config.yaml).
// Pointer fields distinguish "not set" from zero values.
type Config struct {
	SearchDirs      []string `yaml:"search_dirs"`
	IncludeDefaults *bool    `yaml:"include_defaults"`
	Workers         *int     `yaml:"workers"`

	// Output
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	Output    string `yaml:"output"`
	Color     *bool  `yaml:"color"`
}

// Path returns the config file location: $WLDD_CONFIG, or wldd/config.yaml under the user
// config directory. It returns "" when neither is available.
func Path() string {
	if p := getenv("WLDD_CONFIG"); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "wldd", "config.yaml")
}

// Load reads the config file at path. A missing file yields a zero Config; an unreadable or
// malformed one is an error.
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("读取配置文件失败: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("解析配置文件 %s 失败: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("配置文件 %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks enumerated values.
func (c Config) Validate() error {
	switch strings.ToLower(c.Output) {
	case "", "text", "json":
	default:
		return fmt.Errorf("未知输出格式: %q", c.Output)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json", "pretty":
	default:
		return fmt.Errorf("未知日志格式: %q", c.LogFormat)
	}
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers 不能为负数: %d", *c.Workers)
	}
	return nil
}

// EnvDirs returns the search directories listed in $WLDD_PATH, split on the OS list separator.
func EnvDirs() []string {
	var dirs []string
	for _, dir := range filepath.SplitList(getenv("WLDD_PATH")) {
		if dir != "" {
			dirs = append(dirs, dir)
		}
	}
	return dirs
}

// IncludeDefaultDirs reports whether the system directories are searched. Defaults to true.
func (c Config) IncludeDefaultDirs() bool {
	return c.IncludeDefaults == nil || *c.IncludeDefaults
}

// WorkerCount returns the configured worker count, or 0 for the default.
func (c Config) WorkerCount() int {
	if c.Workers == nil {
		return 0
	}
	return *c.Workers
}

// UseColor reports whether colored output is wanted. $NO_COLOR always wins.
func (c Config) UseColor() bool {
	if getenv("NO_COLOR") != "" {
		return false
	}
	return c.Color == nil || *c.Color
}
