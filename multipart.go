package rarstream

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	multipartRe = regexp.MustCompile(`(\.part|\.r?)(\d+)((?:\.rar)?)$`)
	archiveRe   = regexp.MustCompile(`(\.part|\.r?)(\d+)((?:\.rar)?)$|\.rar$`)
)

// IsArchive reports whether path looks like a RAR archive or volume by its
// name alone.
func IsArchive(path string) bool {
	_, ext, ok := splitArchiveExt(path)
	return ok && archiveRe.MatchString(ext)
}

// IsMultipart reports whether path carries a volume number.
func IsMultipart(path string) bool {
	_, ext, ok := splitArchiveExt(path)
	return ok && multipartRe.MatchString(ext)
}

// partsGlob returns the glob matching every volume of path.
func partsGlob(path string) (string, bool) {
	return renumber(path, func(digits string) string { return strings.Repeat("?", len(digits)) })
}

// nthPart returns the name of volume n of path, zero padded to the width of
// the volume number in path.
func nthPart(path string, n int) (string, bool) {
	return renumber(path, func(digits string) string { return fmt.Sprintf("%0*d", len(digits), n) })
}

func renumber(path string, number func(digits string) string) (string, bool) {
	base, ext, ok := splitArchiveExt(path)
	if !ok {
		return "", false
	}
	m := multipartRe.FindStringSubmatch(ext)
	if m == nil {
		return "", false
	}
	return base + strings.ReplaceAll(ext, m[0], m[1]+number(m[2])+m[3]), true
}

// splitArchiveExt splits path into everything before its last two extensions
// and those extensions (".part1.rar", or ".rar" when there is only one).
func splitArchiveExt(path string) (base, ext string, ok bool) {
	dir, file := filepath.Split(path)
	stem, last, ok := cutExt(file)
	if !ok {
		return "", "", false
	}
	if pstem, prev, ok := cutExt(stem); ok {
		return dir + pstem, "." + prev + "." + last, true
	}
	return dir + stem, "." + last, true
}

// cutExt splits name at its last dot. A leading dot does not start an
// extension.
func cutExt(name string) (stem, ext string, ok bool) {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 {
		return name, "", false
	}
	return name[:i], name[i+1:], true
}
