package rarstream

import (
	"encoding/binary"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode/utf32"

	"github.com/javi11/rarstream/internal/native"
)

// MethodStored is the method code of entries stored without compression.
const MethodStored = 0x30

// FileHeader describes one archive entry. In ListSplit and Process mode a
// file split across volumes produces one FileHeader per fragment.
type FileHeader struct {
	// Filename is slash separated.
	Filename     string
	UnpackedSize uint64
	// PackedSize covers this fragment only for split entries.
	PackedSize uint64
	FileCRC    uint32
	// FileTime is the modification time in MS-DOS format.
	FileTime uint32
	Method   uint32
	FileAttr uint32
	HostOS   uint32
	// Volume is the volume file the header was read from.
	Volume string

	flags uint32
	mtime uint64
}

func newFileHeader(hd *native.HeaderData) FileHeader {
	return FileHeader{
		Filename:     filepath.ToSlash(decodeName(hd.FileNameW[:], hd.FileName[:])),
		UnpackedSize: unpackSize(hd.UnpSize, hd.UnpSizeHigh),
		PackedSize:   unpackSize(hd.PackSize, hd.PackSizeHigh),
		FileCRC:      hd.FileCRC,
		FileTime:     hd.FileTime,
		Method:       hd.Method,
		FileAttr:     hd.FileAttr,
		HostOS:       hd.HostOS,
		Volume:       decodeName(hd.ArcNameW[:], hd.ArcName[:]),
		flags:        hd.Flags,
		mtime:        uint64(hd.MtimeHigh)<<32 | uint64(hd.MtimeLow),
	}
}

func unpackSize(low, high uint32) uint64 { return uint64(high)<<32 | uint64(low) }

// decodeName reads the NUL-terminated wide buffer, falling back to the
// narrow one when the engine left the wide name empty. Invalid code points
// become U+FFFD.
func decodeName(wide []native.Wchar, narrow []byte) string {
	n := 0
	for n < len(wide) && wide[n] != 0 {
		n++
	}
	if n == 0 {
		end := 0
		for end < len(narrow) && narrow[end] != 0 {
			end++
		}
		return strings.ToValidUTF8(string(narrow[:end]), string(utf8.RuneError))
	}
	raw := make([]byte, 4*n)
	for i, c := range wide[:n] {
		binary.LittleEndian.PutUint32(raw[4*i:], c)
	}
	dec := utf32.UTF32(utf32.LittleEndian, utf32.IgnoreBOM).NewDecoder()
	if out, err := dec.Bytes(raw); err == nil {
		return string(out)
	}
	var b strings.Builder
	for _, c := range wide[:n] {
		r := rune(c)
		if c > utf8.MaxRune || !utf8.ValidRune(r) {
			r = utf8.RuneError
		}
		b.WriteRune(r)
	}
	return b.String()
}

// IsSplit reports whether the entry is a fragment of a file spanning volumes.
func (h FileHeader) IsSplit() bool {
	return h.flags&(native.EntrySplitBefore|native.EntrySplitAfter) != 0
}

// IsSplitBefore reports whether the entry continues a file from a previous
// volume. List mode never yields such headers.
func (h FileHeader) IsSplitBefore() bool { return h.flags&native.EntrySplitBefore != 0 }

// IsSplitAfter reports whether the entry continues in the next volume.
func (h FileHeader) IsSplitAfter() bool { return h.flags&native.EntrySplitAfter != 0 }

// IsDirectory reports whether the entry is a directory.
func (h FileHeader) IsDirectory() bool { return h.flags&native.EntryDirectory != 0 }

// IsEncrypted reports whether the payload is encrypted.
func (h FileHeader) IsEncrypted() bool { return h.flags&native.EntryEncrypted != 0 }

// IsSolid reports whether the entry depends on the entries before it.
func (h FileHeader) IsSolid() bool { return h.flags&native.EntrySolid != 0 }

// IsFile reports whether the entry is not a directory.
func (h FileHeader) IsFile() bool { return !h.IsDirectory() }

// IsStored reports whether the payload is stored without compression.
func (h FileHeader) IsStored() bool { return h.Method == MethodStored }

// ModTime returns the modification time, using the high precision stamp
// when the engine reports one.
func (h FileHeader) ModTime() time.Time {
	if h.mtime != 0 {
		return fileTime(h.mtime)
	}
	return dosTime(h.FileTime)
}

// String formats the entry like a listing line: the quoted name, a trailing
// slash for directories and " (partial)" for split entries.
func (h FileHeader) String() string {
	s := strconv.Quote(h.Filename)
	if h.IsDirectory() {
		s += "/"
	}
	if h.IsSplit() {
		s += " (partial)"
	}
	return s
}

func dosTime(v uint32) time.Time {
	if v == 0 {
		return time.Time{}
	}
	date, clock := v>>16, v&0xffff
	return time.Date(
		int(date>>9)+1980, time.Month(date>>5&0x0f), int(date&0x1f),
		int(clock>>11), int(clock>>5&0x3f), int(clock&0x1f)*2,
		0, time.Local)
}

// fileTime converts a Windows FILETIME (100ns ticks since 1601).
func fileTime(v uint64) time.Time {
	const epochDelta = 116444736000000000
	if v < epochDelta {
		return time.Time{}
	}
	ticks := v - epochDelta
	return time.Unix(int64(ticks/1e7), int64(ticks%1e7)*100)
}
