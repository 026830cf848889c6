//go:build !unix

package loader

import "os"

func mapFile(*os.File, int) ([]byte, bool) {
	return nil, false
}

func unmap([]byte) error {
	return nil
}
