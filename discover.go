package rarstream

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/afero"
)

const maxVolumes = 10000

var oldVolumeRe = regexp.MustCompile(`(?i)\.[r-z]\d{2}$`)

// DiscoverVolumes returns the existing volumes of the archive first belongs
// to, in order. Supports name.part01.rar / name.part1.rar / name.001 and the
// old name.rar, name.r00, name.r01 ... style.
func DiscoverVolumes(first string) ([]string, error) {
	return DiscoverVolumesFS(afero.NewOsFs(), first)
}

// DiscoverVolumesFS works like DiscoverVolumes on fs (useful for in-memory tests).
func DiscoverVolumesFS(fs afero.Fs, first string) ([]string, error) {
	if oldVolumeRe.MatchString(first) {
		first = first[:len(first)-4] + ".rar"
	}
	if !IsMultipart(first) {
		return discoverOld(fs, first)
	}

	var vols []string
	for i := 1; i < maxVolumes; i++ {
		p, _ := nthPart(first, i)
		if _, err := fs.Stat(p); err != nil {
			if i == 1 {
				return nil, fmt.Errorf("first volume not found: %s: %w", p, err)
			}
			break
		}
		vols = append(vols, p)
	}
	return vols, nil
}

// discoverOld follows name.rar with name.r00 ... name.r99, name.s00 ...
func discoverOld(fs afero.Fs, first string) ([]string, error) {
	if _, err := fs.Stat(first); err != nil {
		return nil, err
	}
	vols := []string{first}
	if !strings.EqualFold(filepath.Ext(first), ".rar") {
		return vols, nil
	}
	prefix := strings.TrimSuffix(first, filepath.Ext(first))
	for i := 0; i/100 <= 'z'-'r'; i++ {
		p := fmt.Sprintf("%s.%c%02d", prefix, 'r'+rune(i/100), i%100)
		if _, err := fs.Stat(p); err != nil {
			break
		}
		vols = append(vols, p)
	}
	return vols, nil
}
