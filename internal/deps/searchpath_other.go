//go:build !windows

package deps

import (
	"os"
	"path/filepath"

	"github.com/xyproto/env/v2"
)

// DefaultDirs returns system32 and the Windows directory of a Wine prefix: $WINDIR if set,
// otherwise the default ~/.wine prefix.
func DefaultDirs() []string {
	windir := env.Str("WINDIR", wineWindowsDir())
	if windir == "" {
		return nil
	}
	return []string{filepath.Join(windir, "system32"), windir}
}

func wineWindowsDir() string {
	prefix := env.Str("WINEPREFIX")
	if prefix == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		prefix = filepath.Join(home, ".wine")
	}
	return filepath.Join(prefix, "drive_c", "windows")
}
