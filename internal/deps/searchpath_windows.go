//go:build windows

package deps

import "golang.org/x/sys/windows"

// DefaultDirs returns the system directory followed by the Windows directory.
func DefaultDirs() []string {
	var dirs []string
	if dir, err := windows.GetSystemDirectory(); err == nil {
		dirs = append(dirs, dir)
	}
	if dir, err := windows.GetWindowsDirectory(); err == nil {
		dirs = append(dirs, dir)
	}
	return dirs
}
