// Package rartest writes small RAR3 and RAR5 archives for tests. Payloads are
// always stored verbatim; the Compressed and Encrypted switches only set the
// corresponding header bits.
package rartest

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"path/filepath"
	"strconv"
	"time"
	"unicode/utf16"

	"github.com/spf13/afero"

	"github.com/javi11/rarstream/internal/parse"
)

type Format int

const (
	RAR3 Format = iota
	RAR5
)

func (f Format) String() string {
	if f == RAR5 {
		return "RAR5"
	}
	return "RAR3"
}

// File is one entry of a fixture archive.
type File struct {
	Name         string
	Data         []byte
	Dir          bool
	Encrypted    bool
	Compressed   bool
	ModTime      time.Time
	BadCRC       bool
	BadHeaderCRC bool
}

// Archive describes a fixture archive, possibly spanning volumes.
type Archive struct {
	Format Format
	// Name is the volume path without extension, e.g. "data/archive".
	Name  string
	Files []File
	// VolumeSize caps the payload bytes per volume. Zero writes a single
	// volume.
	VolumeSize int
	// OldNumbering names RAR3 volumes name.rar, name.r00, name.r01...
	OldNumbering      bool
	Solid             bool
	Locked            bool
	Recovery          bool
	Comment           string
	EncryptedHeaders  bool
	EncryptionVersion uint64
	BadMainCRC        bool
}

// Volume is one serialized volume.
type Volume struct {
	Name string
	Data []byte
}

type fragment struct {
	file        *File
	index       int
	data        []byte
	splitBefore bool
	splitAfter  bool
}

// DefaultModTime is used for files without a ModTime.
var DefaultModTime = time.Date(2021, 6, 15, 10, 30, 20, 0, time.Local)

// Build serializes the archive into its volumes.
func (a *Archive) Build() []Volume {
	var vols [][]fragment
	var cur []fragment
	used := 0
	for i := range a.Files {
		f := &a.Files[i]
		rest := f.Data
		started := false
		for {
			if a.VolumeSize <= 0 || len(rest) <= a.VolumeSize-used {
				cur = append(cur, fragment{file: f, index: i, data: rest, splitBefore: started})
				used += len(rest)
				break
			}
			room := a.VolumeSize - used
			if room > 0 {
				cur = append(cur, fragment{file: f, index: i, data: rest[:room], splitBefore: started, splitAfter: true})
				rest = rest[room:]
				started = true
			}
			vols = append(vols, cur)
			cur, used = nil, 0
		}
	}
	vols = append(vols, cur)

	multi := a.VolumeSize > 0
	out := make([]Volume, len(vols))
	for i, frags := range vols {
		var data []byte
		if a.Format == RAR5 {
			data = a.rar5Volume(i, len(vols), multi, frags)
		} else {
			data = a.rar3Volume(i, len(vols), multi, frags)
		}
		out[i] = Volume{Name: a.VolumeName(i, len(vols), multi), Data: data}
	}
	return out
}

// VolumeName returns the file name of volume i out of n.
func (a *Archive) VolumeName(i, n int, multi bool) string {
	if !multi {
		return a.Name + ".rar"
	}
	if a.Format == RAR3 && a.OldNumbering {
		if i == 0 {
			return a.Name + ".rar"
		}
		return fmt.Sprintf("%s.r%02d", a.Name, i-1)
	}
	width := len(strconv.Itoa(n))
	return fmt.Sprintf("%s.part%0*d.rar", a.Name, width, i+1)
}

// Write builds the archive and stores its volumes in fs.
func (a *Archive) Write(fs afero.Fs) ([]string, error) {
	var names []string
	for _, v := range a.Build() {
		if err := fs.MkdirAll(filepath.Dir(v.Name), 0o755); err != nil {
			return nil, err
		}
		if err := afero.WriteFile(fs, v.Name, v.Data, 0o644); err != nil {
			return nil, err
		}
		names = append(names, v.Name)
	}
	return names, nil
}

// DOSTime packs t into the MS-DOS date/time format.
func DOSTime(t time.Time) uint32 {
	if t.Year() < 1980 {
		t = time.Date(1980, 1, 1, 0, 0, 0, 0, t.Location())
	}
	date := uint32(t.Year()-1980)<<9 | uint32(t.Month())<<5 | uint32(t.Day())
	clock := uint32(t.Hour())<<11 | uint32(t.Minute())<<5 | uint32(t.Second()/2)
	return date<<16 | clock
}

func (f *File) modTime() time.Time {
	if f.ModTime.IsZero() {
		return DefaultModTime
	}
	return f.ModTime
}

func (fr fragment) crc() uint32 {
	var c uint32
	if fr.splitAfter {
		c = crc32.ChecksumIEEE(fr.data)
	} else {
		c = crc32.ChecksumIEEE(fr.file.Data)
	}
	if fr.file.BadCRC && !fr.splitAfter {
		c ^= 0xffffffff
	}
	return c
}

func le16(b []byte, v uint16) []byte { return binary.LittleEndian.AppendUint16(b, v) }
func le32(b []byte, v uint32) []byte { return binary.LittleEndian.AppendUint32(b, v) }

// RAR3

func rar3Block(typ byte, flags uint16, body []byte, badCRC bool) []byte {
	h := make([]byte, 7, 7+len(body))
	h[2] = typ
	binary.LittleEndian.PutUint16(h[3:], flags)
	binary.LittleEndian.PutUint16(h[5:], uint16(7+len(body)))
	h = append(h, body...)
	crc := uint16(crc32.ChecksumIEEE(h[2:]))
	if badCRC {
		crc ^= 0xffff
	}
	binary.LittleEndian.PutUint16(h[0:], crc)
	return h
}

func (a *Archive) rar3Volume(i, n int, multi bool, frags []fragment) []byte {
	out := []byte("Rar!\x1a\x07\x00")
	var flags uint16
	if multi {
		flags |= 0x0001
		if i == 0 {
			flags |= 0x0100
		}
		if !a.OldNumbering {
			flags |= 0x0010
		}
	}
	if a.Comment != "" {
		flags |= 0x0002
	}
	if a.Locked {
		flags |= 0x0004
	}
	if a.Solid {
		flags |= 0x0008
	}
	if a.Recovery {
		flags |= 0x0040
	}
	if a.EncryptedHeaders {
		flags |= 0x0080
	}
	out = append(out, rar3Block(0x73, flags, make([]byte, 6), a.BadMainCRC)...)
	if a.EncryptedHeaders {
		return append(out, garbage(48)...)
	}
	for _, fr := range frags {
		out = append(out, a.rar3File(fr)...)
		out = append(out, fr.data...)
	}
	var endFlags uint16
	if i < n-1 {
		endFlags |= 0x0001
	}
	return append(out, rar3Block(0x7b, endFlags, nil, false)...)
}

func (a *Archive) rar3File(fr fragment) []byte {
	f := fr.file
	flags := uint16(0x8000)
	if fr.splitBefore {
		flags |= 0x0001
	}
	if fr.splitAfter {
		flags |= 0x0002
	}
	if f.Encrypted {
		flags |= 0x0004
	}
	if a.Solid && fr.index > 0 {
		flags |= 0x0010
	}
	if f.Dir {
		flags |= 0x00e0
	}
	name := []byte(f.Name)
	if !isASCII(f.Name) {
		flags |= 0x0200
		name = encodeRar3Unicode(f.Name)
	}
	pack, unp := uint64(len(fr.data)), uint64(len(f.Data))
	if pack > 0xffffffff || unp > 0xffffffff {
		flags |= 0x0100
	}
	method := byte(0x30)
	if f.Compressed {
		method = 0x33
	}
	attr := uint32(0x20)
	if f.Dir {
		attr = 0x10
	}
	var body []byte
	body = le32(body, uint32(pack))
	body = le32(body, uint32(unp))
	body = append(body, 2) // Win32
	body = le32(body, fr.crc())
	body = le32(body, DOSTime(f.modTime()))
	body = append(body, 29, method)
	body = le16(body, uint16(len(name)))
	body = le32(body, attr)
	if flags&0x0100 != 0 {
		body = le32(body, uint32(pack>>32))
		body = le32(body, uint32(unp>>32))
	}
	body = append(body, name...)
	return rar3Block(0x74, flags, body, f.BadHeaderCRC)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

// encodeRar3Unicode produces the "ascii\x00packed" name field using only the
// two-byte opcode.
func encodeRar3Unicode(s string) []byte {
	units := utf16.Encode([]rune(s))
	var out []byte
	for _, u := range units {
		if u < 0x80 {
			out = append(out, byte(u))
		} else {
			out = append(out, '_')
		}
	}
	out = append(out, 0, 0) // separator, high byte
	for i := 0; i < len(units); i += 4 {
		end := min(i+4, len(units))
		var flags byte
		for j := i; j < end; j++ {
			flags |= 2 << (6 - 2*(j-i))
		}
		out = append(out, flags)
		for _, u := range units[i:end] {
			out = le16(out, u)
		}
	}
	return out
}

func garbage(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*37 + 11)
	}
	return b
}

// RAR5

func rar5Block(typ, flags uint64, body, extra []byte, dataSize int64, badCRC bool) []byte {
	if len(extra) > 0 {
		flags |= 0x0001
	}
	if dataSize >= 0 {
		flags |= 0x0002
	}
	h := parse.AppendVarint(nil, typ)
	h = parse.AppendVarint(h, flags)
	if len(extra) > 0 {
		h = parse.AppendVarint(h, uint64(len(extra)))
	}
	if dataSize >= 0 {
		h = parse.AppendVarint(h, uint64(dataSize))
	}
	h = append(h, body...)
	h = append(h, extra...)
	sized := parse.AppendVarint(nil, uint64(len(h)))
	sized = append(sized, h...)
	crc := crc32.ChecksumIEEE(sized)
	if badCRC {
		crc ^= 0xffffffff
	}
	return append(le32(nil, crc), sized...)
}

func (a *Archive) rar5Volume(i, n int, multi bool, frags []fragment) []byte {
	out := []byte("Rar!\x1a\x07\x01\x00")
	if a.EncryptedHeaders {
		var body []byte
		body = parse.AppendVarint(body, a.EncryptionVersion)
		body = parse.AppendVarint(body, 0)
		body = append(body, 15)
		body = append(body, garbage(16)...)
		out = append(out, rar5Block(4, 0, body, nil, -1, false)...)
		return append(out, garbage(64)...)
	}
	var arcFlags uint64
	if multi {
		arcFlags |= 0x0001
		if i > 0 {
			arcFlags |= 0x0002
		}
	}
	if a.Solid {
		arcFlags |= 0x0004
	}
	if a.Recovery {
		arcFlags |= 0x0008
	}
	if a.Locked {
		arcFlags |= 0x0010
	}
	main := parse.AppendVarint(nil, arcFlags)
	if multi && i > 0 {
		main = parse.AppendVarint(main, uint64(i))
	}
	out = append(out, rar5Block(1, 0, main, nil, -1, a.BadMainCRC)...)
	if a.Comment != "" && i == 0 {
		cmt := []byte(a.Comment)
		body := rar5FileTail(rar5FileBody(0, uint64(len(cmt)), 0, crc32.ChecksumIEEE(cmt), 0), 0, "CMT")
		out = append(out, rar5Block(3, 0, body, nil, int64(len(cmt)), false)...)
		out = append(out, cmt...)
	}
	for _, fr := range frags {
		out = append(out, a.rar5File(fr)...)
		out = append(out, fr.data...)
	}
	var endFlags uint64
	if i < n-1 {
		endFlags |= 0x0001
	}
	return append(out, rar5Block(5, 0, parse.AppendVarint(nil, endFlags), nil, -1, false)...)
}

func rar5FileBody(fileFlags, unp, attr uint64, crc, mtime uint32) []byte {
	var body []byte
	body = parse.AppendVarint(body, fileFlags|0x0004|boolBit(mtime != 0, 0x0002))
	body = parse.AppendVarint(body, unp)
	body = parse.AppendVarint(body, attr)
	if mtime != 0 {
		body = le32(body, mtime)
	}
	body = le32(body, crc)
	return body
}

func rar5FileTail(body []byte, comp uint64, name string) []byte {
	body = parse.AppendVarint(body, comp)
	body = parse.AppendVarint(body, 0) // Windows
	body = parse.AppendVarint(body, uint64(len(name)))
	return append(body, name...)
}

func boolBit(b bool, bit uint64) uint64 {
	if b {
		return bit
	}
	return 0
}

func (a *Archive) rar5File(fr fragment) []byte {
	f := fr.file
	var flags uint64
	if fr.splitBefore {
		flags |= 0x0008
	}
	if fr.splitAfter {
		flags |= 0x0010
	}
	var fileFlags, attr uint64 = 0, 0x20
	if f.Dir {
		fileFlags, attr = 0x0001, 0x10
	}
	body := rar5FileBody(fileFlags, uint64(len(f.Data)), attr, fr.crc(), uint32(f.modTime().Unix()))
	var comp uint64
	if f.Compressed {
		comp = 3 << 7
	}
	if a.Solid && fr.index > 0 {
		comp |= 0x40
	}
	body = rar5FileTail(body, comp, f.Name)
	var extra []byte
	if f.Encrypted {
		rec := parse.AppendVarint(nil, 1)
		rec = parse.AppendVarint(rec, 0)
		rec = parse.AppendVarint(rec, 0)
		rec = append(rec, 15)
		rec = append(rec, garbage(32)...)
		extra = parse.AppendVarint(nil, uint64(len(rec)))
		extra = append(extra, rec...)
	}
	return rar5Block(2, flags, body, extra, int64(len(fr.data)), f.BadHeaderCRC)
}
