package deps

import "path/filepath"

// SearchPath puts the user directories first, in the order given, followed by the default
// system directories when includeDefaults is set. Empty entries and repeats of an earlier
// directory are dropped; order is otherwise kept.
func SearchPath(user []string, includeDefaults bool) []string {
	dirs := make([]string, 0, len(user)+2)
	dirs = append(dirs, user...)
	if includeDefaults {
		dirs = append(dirs, DefaultDirs()...)
	}

	seen := make(map[string]bool, len(dirs))
	out := dirs[:0]
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		key := filepath.Clean(dir)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, dir)
	}
	return out
}
