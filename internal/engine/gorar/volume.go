package gorar

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/javi11/rarstream/internal/native"
)

// volume is one open volume file positioned at the next block.
type volume struct {
	path string
	f    afero.File
	size int64
	info archiveInfo

	sigOff         int64
	mainSkipped    bool
	pos            int64
	ended          bool
	hasNext        bool
	lastSplitAfter bool
	comment        bool
}

// openVolume opens path and reads its main header. A damaged main header is
// reported as native.BadData together with a volume that is still usable
// when the first file header could be located.
func openVolume(fs afero.Fs, path string) (*volume, native.Status, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, native.EOpen, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, native.EOpen, err
	}
	v := &volume{path: path, f: f, size: st.Size()}
	status, err := v.readMain()
	switch status {
	case native.Success:
		return v, status, nil
	case native.BadData:
		if rerr := v.recover(); rerr == nil {
			return v, status, err
		}
	}
	_ = f.Close()
	return nil, status, err
}

func (v *volume) readMain() (native.Status, error) {
	version, off, err := detectSignature(v.f, v.size)
	switch {
	case errors.Is(err, errNoSignature):
		return native.BadArchive, err
	case errors.Is(err, errUnknownVersion):
		return native.UnknownFormat, err
	case err != nil:
		return native.ERead, err
	}
	v.info.Version = version
	v.sigOff = off
	switch version {
	case VersionRar3:
		v.pos = off + int64(len(rarSigV3))
		h, err := readRar3Block(v.f, v.pos, v.size)
		if h != nil {
			v.pos += h.total()
			v.mainSkipped = true
		}
		if err != nil {
			return native.BadData, fmt.Errorf("main header: %w", err)
		}
		if h.Type != rar3BlockMain {
			// only a checked file header is a safe place to resume from
			v.pos = h.Pos
			v.mainSkipped = h.Type == rar3BlockFile
			return native.BadData, fmt.Errorf("main header: unexpected block %#x", h.Type)
		}
		v.info = parseRar3Main(h)
		v.comment = v.info.Flags&native.ArchiveComment != 0
	case VersionRar5:
		v.pos = off + int64(len(rarSigV5))
		b, err := readRar5Block(v.f, v.pos, v.size)
		if b != nil {
			v.pos += b.total()
			v.mainSkipped = true
		}
		if err != nil {
			return native.BadData, fmt.Errorf("main header: %w", err)
		}
		switch b.Type {
		case rar5BlockEncryption:
			if err := checkRar5Encryption(b); err != nil {
				return native.UnknownFormat, err
			}
			v.info = archiveInfo{Version: VersionRar5, Flags: native.ArchiveEncHeaders}
			return native.Success, nil
		case rar5BlockMain:
			if v.info, err = parseRar5Main(b); err != nil {
				return native.BadData, fmt.Errorf("main header: %w", err)
			}
			v.comment = v.scanRar5Comment()
		default:
			v.pos = b.Pos
			return native.BadData, fmt.Errorf("main header: unexpected block %d", b.Type)
		}
	}
	if v.comment {
		v.info.Flags |= native.ArchiveComment
	}
	return native.Success, nil
}

// recover positions the volume on the first file header after a damaged
// main header.
func (v *volume) recover() error {
	if v.info.Version == VersionRar5 {
		v.info.Flags |= native.ArchiveNewNumbering
	}
	if v.mainSkipped {
		return nil
	}
	if v.info.Version != VersionRar3 {
		return errBrokenHeader
	}
	pos, err := scanLegacy(v.f, v.sigOff+int64(len(rarSigV3)), v.size)
	if err != nil {
		return err
	}
	v.pos = pos
	return nil
}

// finish records the end of the volume. Old volumes may lack the end block;
// then a split last file implies another volume.
func (v *volume) finish(endBlock, nextVolume bool) {
	v.ended = true
	if endBlock {
		v.hasNext = nextVolume
		return
	}
	v.hasNext = v.info.isVolume() && v.lastSplitAfter
}

// nextFile returns the next file header, or io.EOF at the end of the volume.
func (v *volume) nextFile() (*fileBlock, error) {
	if v.ended {
		return nil, io.EOF
	}
	if v.info.Version == VersionRar5 {
		return v.nextRar5()
	}
	return v.nextRar3()
}

func (v *volume) close() error {
	if v == nil || v.f == nil {
		return nil
	}
	err := v.f.Close()
	v.f = nil
	return err
}

// nextVolumeName derives the name of the volume following path. New
// numbering increments the last digit run before the extension
// (name.part09.rar -> name.part10.rar); old numbering walks
// name.rar -> name.r00 ... name.r99 -> name.s00.
func nextVolumeName(path string, newNumbering bool) string {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	switch strings.ToLower(ext) {
	case "", ".", ".exe", ".sfx":
		ext = ".rar"
	}
	if newNumbering {
		end := len(base)
		start := end
		for start > 0 && isDigit(base[start-1]) {
			start--
		}
		if start < end && start > len(filepath.Dir(base)) {
			return base[:start] + increment(base[start:end]) + ext
		}
	}
	lower := strings.ToLower(ext)
	if len(lower) == 4 && lower != ".rar" && isDigit(lower[2]) && isDigit(lower[3]) {
		digits := increment(ext[2:])
		letter := ext[1]
		if len(digits) > 2 {
			letter++
			digits = "00"
		}
		return base + "." + string(letter) + digits
	}
	return base + ".r00"
}

// increment adds one to a decimal string keeping its width, growing it on
// overflow.
func increment(num string) string {
	b := []byte(num)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] != '9' {
			b[i]++
			return string(b)
		}
		b[i] = '0'
	}
	return "1" + string(b)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
