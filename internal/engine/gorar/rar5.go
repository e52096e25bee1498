package gorar

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"
	"time"

	"github.com/javi11/rarstream/internal/native"
	"github.com/javi11/rarstream/internal/parse"
)

const (
	rar5BlockMain       = 1
	rar5BlockFile       = 2
	rar5BlockService    = 3
	rar5BlockEncryption = 4
	rar5BlockEnd        = 5

	rar5MaxHeaderSize = 2 << 20

	rar5HasExtra       = 0x0001
	rar5HasData        = 0x0002
	rar5SplitBefore    = 0x0008
	rar5SplitAfter     = 0x0010
	rar5FileDir        = 0x0001
	rar5FileMtime      = 0x0002
	rar5FileCRC        = 0x0004
	rar5ExtraCrypt     = 0x01
	rar5EndNotLast     = 0x0001
	rar5ArcVolume      = 0x0001
	rar5ArcVolNumber   = 0x0002
	rar5ArcSolid       = 0x0004
	rar5ArcRecovery    = 0x0008
	rar5ArcLocked      = 0x0010
	rar5CompSolid      = 0x0040
	rar5EncryptVersion = 0
)

type rar5Block struct {
	Pos      int64
	Size     int64 // CRC + size field + header
	Type     uint64
	Flags    uint64
	DataSize uint64
	Body     []byte // type specific fields
	Extra    []byte // extra area
}

func (b *rar5Block) total() int64 { return b.Size + int64(b.DataSize) }

// readRar5Block reads the block header at pos. Sizes are filled in even when
// the CRC check fails so that a damaged header can be stepped over.
func readRar5Block(r io.ReaderAt, pos, limit int64) (*rar5Block, error) {
	if limit-pos < 7 {
		return nil, io.EOF
	}
	pre := make([]byte, min(limit-pos, 4+10))
	if _, err := r.ReadAt(pre, pos); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	crc := binary.LittleEndian.Uint32(pre[0:4])
	headSize, vlen, err := parse.ReadVarintFromSlice(pre[4:])
	if err != nil || headSize == 0 || headSize > rar5MaxHeaderSize {
		return nil, errBrokenHeader
	}
	b := &rar5Block{Pos: pos, Size: 4 + vlen + int64(headSize)}
	if pos+b.Size > limit {
		return nil, errBrokenHeader
	}
	hdr := make([]byte, vlen+int64(headSize))
	if _, err := r.ReadAt(hdr, pos+4); err != nil {
		return nil, err
	}
	c := parse.NewCursor(hdr[vlen:])
	if b.Type, err = c.Varint(); err != nil {
		return nil, errBrokenHeader
	}
	if b.Flags, err = c.Varint(); err != nil {
		return nil, errBrokenHeader
	}
	var extraSize uint64
	if b.Flags&rar5HasExtra != 0 {
		if extraSize, err = c.Varint(); err != nil {
			return nil, errBrokenHeader
		}
	}
	if b.Flags&rar5HasData != 0 {
		if b.DataSize, err = c.Varint(); err != nil {
			return nil, errBrokenHeader
		}
	}
	// Extra area is at END of header.
	if extraSize > uint64(c.Remaining()) {
		return nil, errBrokenHeader
	}
	region := hdr[vlen+int64(c.Offset()):]
	b.Body = region[:len(region)-int(extraSize)]
	b.Extra = region[len(region)-int(extraSize):]
	if crc32.ChecksumIEEE(hdr) != crc {
		return b, errHeaderCRC
	}
	return b, nil
}

func parseRar5Main(b *rar5Block) (archiveInfo, error) {
	c := parse.NewCursor(b.Body)
	af, err := c.Varint()
	if err != nil {
		return archiveInfo{}, errBrokenHeader
	}
	info := archiveInfo{Version: VersionRar5, Flags: native.ArchiveNewNumbering}
	if af&rar5ArcVolNumber != 0 {
		if info.VolumeNumber, err = c.Varint(); err != nil {
			return archiveInfo{}, errBrokenHeader
		}
	}
	if af&rar5ArcVolume != 0 {
		info.Flags |= native.ArchiveVolume
		if info.VolumeNumber == 0 {
			info.Flags |= native.ArchiveFirstVolume
		}
	}
	if af&rar5ArcSolid != 0 {
		info.Flags |= native.ArchiveSolid
	}
	if af&rar5ArcRecovery != 0 {
		info.Flags |= native.ArchiveRecovery
	}
	if af&rar5ArcLocked != 0 {
		info.Flags |= native.ArchiveLock
	}
	return info, nil
}

func checkRar5Encryption(b *rar5Block) error {
	v, err := parse.NewCursor(b.Body).Varint()
	if err != nil {
		return errBrokenHeader
	}
	if v != rar5EncryptVersion {
		return errUnknownEncryption
	}
	return nil
}

// parseRar5FileHeader decodes file and service headers, which share a layout.
func parseRar5FileHeader(b *rar5Block, volume string) (*fileBlock, error) {
	c := parse.NewCursor(b.Body)
	fileFlags, err := c.Varint()
	if err != nil {
		return nil, errBrokenHeader
	}
	unpSize, err := c.Varint()
	if err != nil {
		return nil, errBrokenHeader
	}
	attr, err := c.Varint()
	if err != nil {
		return nil, errBrokenHeader
	}
	fb := &fileBlock{
		Volume:       volume,
		HeaderPos:    b.Pos,
		DataPos:      b.Pos + b.Size,
		PackedSize:   int64(b.DataSize),
		UnpackedSize: int64(unpSize),
		Attr:         uint32(attr),
		UnpVer:       50,
	}
	if fileFlags&rar5FileMtime != 0 {
		mtime, err := c.Uint32()
		if err != nil {
			return nil, errBrokenHeader
		}
		fb.DOSTime = toDOSTime(time.Unix(int64(mtime), 0))
	}
	if fileFlags&rar5FileCRC != 0 {
		if fb.CRC, err = c.Uint32(); err != nil {
			return nil, errBrokenHeader
		}
	}
	compInfo, err := c.Varint()
	if err != nil {
		return nil, errBrokenHeader
	}
	hostOS, err := c.Varint()
	if err != nil {
		return nil, errBrokenHeader
	}
	nameLen, err := c.Varint()
	if err != nil {
		return nil, errBrokenHeader
	}
	name, err := c.Bytes(nameLen)
	if err != nil || nameLen == 0 {
		return nil, errBrokenHeader
	}
	fb.Name = cleanName(string(name))
	fb.HostOS = uint32(hostOS)
	method := (compInfo >> 7) & 0x07
	fb.Method = rar3MethodStored + uint32(method)
	fb.Stored = method == 0
	if b.Flags&rar5SplitBefore != 0 {
		fb.Flags |= native.EntrySplitBefore
	}
	if b.Flags&rar5SplitAfter != 0 {
		fb.Flags |= native.EntrySplitAfter
	}
	if compInfo&rar5CompSolid != 0 {
		fb.Flags |= native.EntrySolid
	}
	if fileFlags&rar5FileDir != 0 {
		fb.Flags |= native.EntryDirectory
	} else {
		fb.DictSize = 128 << ((compInfo >> 10) & 0x0f)
	}
	encrypted, err := rar5HasCryptRecord(b.Extra)
	if err != nil {
		return nil, err
	}
	if encrypted {
		fb.Flags |= native.EntryEncrypted
	}
	return fb, nil
}

func rar5HasCryptRecord(extra []byte) (bool, error) {
	c := parse.NewCursor(extra)
	for c.Remaining() > 0 {
		size, err := c.Varint()
		if err != nil {
			return false, errBrokenHeader
		}
		rec, err := c.Bytes(size)
		if err != nil {
			return false, errBrokenHeader
		}
		typ, _, err := parse.ReadVarintFromSlice(rec)
		if err != nil {
			return false, errBrokenHeader
		}
		if typ == rar5ExtraCrypt {
			return true, nil
		}
	}
	return false, nil
}

// nextRar5 walks blocks up to the next file header.
func (v *volume) nextRar5() (*fileBlock, error) {
	for {
		b, err := readRar5Block(v.f, v.pos, v.size)
		if errors.Is(err, io.EOF) {
			v.finish(false, false)
			return nil, io.EOF
		}
		if err != nil {
			return nil, err
		}
		switch b.Type {
		case rar5BlockFile:
			fb, err := parseRar5FileHeader(b, v.path)
			if err != nil {
				return nil, err
			}
			v.pos = fb.DataPos + fb.PackedSize
			v.lastSplitAfter = fb.splitAfter()
			return fb, nil
		case rar5BlockEnd:
			endFlags, err := parse.NewCursor(b.Body).Varint()
			if err != nil {
				return nil, errBrokenHeader
			}
			v.finish(true, endFlags&rar5EndNotLast != 0)
			return nil, io.EOF
		}
		v.pos += b.total()
	}
}

// scanRar5Comment looks at the service headers between the main header and
// the first file for an archive comment.
func (v *volume) scanRar5Comment() bool {
	pos := v.pos
	for {
		b, err := readRar5Block(v.f, pos, v.size)
		if err != nil || b.Type != rar5BlockService {
			return false
		}
		if fb, err := parseRar5FileHeader(b, v.path); err == nil && fb.Name == "CMT" {
			return true
		}
		pos += b.total()
	}
}
