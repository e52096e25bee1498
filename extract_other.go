//go:build !linux && !netbsd

package rarstream

func extractArgs(base, _ string) (destPath, destName string) {
	return base, ""
}
