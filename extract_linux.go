//go:build linux || netbsd

package rarstream

import "path/filepath"

// extractArgs joins the destination up front: engines on these platforms
// mangle non-ASCII names when given a directory and a name separately.
func extractArgs(base, name string) (destPath, destName string) {
	if base == "" {
		base = "."
	}
	return "", filepath.Join(base, filepath.FromSlash(name))
}
