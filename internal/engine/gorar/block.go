package gorar

import (
	"errors"
	"path"
	"strings"
	"time"

	"github.com/javi11/rarstream/internal/native"
)

var (
	errBrokenHeader      = errors.New("broken header")
	errHeaderCRC         = errors.New("header CRC mismatch")
	errUnknownEncryption = errors.New("unknown header encryption")
	errNoContinuation    = errors.New("split file has no continuation")
)

// archiveInfo is what the main header tells about a volume.
type archiveInfo struct {
	Version      string
	Flags        uint32 // native.Archive* bits
	VolumeNumber uint64
}

func (a archiveInfo) isVolume() bool         { return a.Flags&native.ArchiveVolume != 0 }
func (a archiveInfo) newNumbering() bool     { return a.Flags&native.ArchiveNewNumbering != 0 }
func (a archiveInfo) encryptedHeaders() bool { return a.Flags&native.ArchiveEncHeaders != 0 }

// fileBlock is a file header found in a volume. For split files each volume
// holds its own fragment.
type fileBlock struct {
	Name         string
	Volume       string
	HeaderPos    int64
	DataPos      int64
	PackedSize   int64
	UnpackedSize int64
	Flags        uint32 // native.Entry* bits
	HostOS       uint32
	CRC          uint32
	DOSTime      uint32
	UnpVer       uint32
	Method       uint32
	Attr         uint32
	DictSize     uint32
	Stored       bool
}

func (b *fileBlock) splitBefore() bool { return b.Flags&native.EntrySplitBefore != 0 }
func (b *fileBlock) splitAfter() bool  { return b.Flags&native.EntrySplitAfter != 0 }
func (b *fileBlock) encrypted() bool   { return b.Flags&native.EntryEncrypted != 0 }
func (b *fileBlock) isDir() bool       { return b.Flags&native.EntryDirectory != 0 }

func (b *fileBlock) fill(hd *native.HeaderData) {
	*hd = native.HeaderData{}
	native.PutNarrow(hd.ArcName[:], b.Volume)
	native.PutWide(hd.ArcNameW[:], b.Volume)
	native.PutNarrow(hd.FileName[:], b.Name)
	native.PutWide(hd.FileNameW[:], b.Name)
	hd.Flags = b.Flags
	hd.PackSize, hd.PackSizeHigh = native.SplitSize(uint64(b.PackedSize))
	hd.UnpSize, hd.UnpSizeHigh = native.SplitSize(uint64(b.UnpackedSize))
	hd.HostOS = b.HostOS
	hd.FileCRC = b.CRC
	hd.FileTime = b.DOSTime
	hd.UnpVer = b.UnpVer
	hd.Method = b.Method
	hd.FileAttr = b.Attr
	hd.DictSize = b.DictSize
	ft := windowsFileTime(dosTime(b.DOSTime))
	hd.MtimeLow, hd.MtimeHigh = uint32(ft), uint32(ft>>32)
}

// cleanName turns an archived path into a relative slash path that cannot
// escape the extraction root.
func cleanName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	parts := strings.Split(name, "/")
	kept := parts[:0]
	for _, p := range parts {
		switch p {
		case "", ".", "..":
			continue
		}
		kept = append(kept, p)
	}
	return path.Join(kept...)
}

func toDOSTime(t time.Time) uint32 {
	t = t.Local()
	if t.Year() < 1980 {
		return 1<<21 | 1<<16 // 1980-01-01
	}
	date := uint32(t.Year()-1980)<<9 | uint32(t.Month())<<5 | uint32(t.Day())
	clock := uint32(t.Hour())<<11 | uint32(t.Minute())<<5 | uint32(t.Second()/2)
	return date<<16 | clock
}

func dosTime(v uint32) time.Time {
	date, clock := v>>16, v&0xffff
	if date == 0 {
		return time.Time{}
	}
	return time.Date(int(date>>9)+1980, time.Month(date>>5&0x0f), int(date&0x1f),
		int(clock>>11), int(clock>>5&0x3f), int(clock&0x1f)*2, 0, time.Local)
}

// windowsFileTime returns 100ns ticks since 1601-01-01.
func windowsFileTime(t time.Time) uint64 {
	if t.IsZero() {
		return 0
	}
	const epochDelta = 116444736000000000
	return uint64(t.UnixNano()/100) + epochDelta
}
