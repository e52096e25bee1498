package gorar

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/javi11/rarstream/internal/native"
	"github.com/javi11/rarstream/internal/util"
)

const (
	rar3BlockMain    = 0x73
	rar3BlockFile    = 0x74
	rar3BlockNewSub  = 0x7a
	rar3BlockEnd     = 0x7b
	rar3BaseSize     = 7
	rar3FileFixed    = 25
	rar3LongBlock    = 0x8000
	rar3FileLarge    = 0x0100
	rar3FileUnicode  = 0x0200
	rar3FileWindow   = 0x00e0
	rar3EndNextVol   = 0x0001
	rar3MethodStored = 0x30
)

type rar3BlockHeader struct {
	Pos     int64
	CRC     uint16
	Type    byte
	Flags   uint16
	Size    uint16
	AddSize uint32 // only if flags & 0x8000; aliases PACK_SIZE in file headers
	Body    []byte // header bytes after the 7-byte base
}

// total is the size of the header plus any data area it announces.
func (h *rar3BlockHeader) total() int64 {
	if h.Flags&rar3LongBlock != 0 {
		return int64(h.Size) + int64(h.AddSize)
	}
	return int64(h.Size)
}

// readRar3Block reads the block header at pos. A header whose CRC does not
// match is returned together with errHeaderCRC so callers can still skip it.
func readRar3Block(r io.ReaderAt, pos, limit int64) (*rar3BlockHeader, error) {
	if limit-pos < rar3BaseSize {
		return nil, io.EOF
	}
	var raw [rar3BaseSize]byte
	if _, err := r.ReadAt(raw[:], pos); err != nil {
		return nil, err
	}
	h := &rar3BlockHeader{
		Pos:   pos,
		CRC:   binary.LittleEndian.Uint16(raw[0:2]),
		Type:  raw[2],
		Flags: binary.LittleEndian.Uint16(raw[3:5]),
		Size:  binary.LittleEndian.Uint16(raw[5:7]),
	}
	if h.Size < rar3BaseSize || pos+int64(h.Size) > limit {
		return nil, errBrokenHeader
	}
	full := make([]byte, h.Size)
	if _, err := r.ReadAt(full, pos); err != nil {
		return nil, err
	}
	h.Body = full[rar3BaseSize:]
	if h.Flags&rar3LongBlock != 0 {
		if len(h.Body) < 4 {
			return nil, errBrokenHeader
		}
		h.AddSize = binary.LittleEndian.Uint32(h.Body[0:4])
	}
	switch h.Type {
	case rar3BlockMain, rar3BlockFile, rar3BlockNewSub, rar3BlockEnd:
		if uint16(crc32.ChecksumIEEE(full[2:])) != h.CRC {
			return h, errHeaderCRC
		}
	}
	return h, nil
}

func parseRar3Main(h *rar3BlockHeader) archiveInfo {
	// MHD_* bits line up with the ROADF_* flags.
	return archiveInfo{Version: VersionRar3, Flags: uint32(h.Flags) & 0x01ff}
}

func parseRar3FileHeader(h *rar3BlockHeader, volume string) (*fileBlock, error) {
	body := h.Body
	if len(body) < rar3FileFixed {
		return nil, errBrokenHeader
	}
	// PACK_SIZE (4), UNP_SIZE (4), HOST_OS(1), FILE_CRC(4), FTIME(4), UNP_VER(1), METHOD(1), NAME_SIZE(2), ATTR(4)
	packSize := int64(binary.LittleEndian.Uint32(body[0:4]))
	unpSize := int64(binary.LittleEndian.Uint32(body[4:8]))
	method := body[18]
	nameSize := int(binary.LittleEndian.Uint16(body[19:21]))
	off := rar3FileFixed
	if h.Flags&rar3FileLarge != 0 {
		if off+8 > len(body) {
			return nil, errBrokenHeader
		}
		packSize |= int64(binary.LittleEndian.Uint32(body[off:off+4])) << 32
		unpSize |= int64(binary.LittleEndian.Uint32(body[off+4:off+8])) << 32
		off += 8
	}
	if off+nameSize > len(body) {
		return nil, errBrokenHeader
	}
	b := &fileBlock{
		Name:         cleanName(decodeRar3Name(body[off:off+nameSize], h.Flags&rar3FileUnicode != 0)),
		Volume:       volume,
		HeaderPos:    h.Pos,
		DataPos:      h.Pos + int64(h.Size),
		PackedSize:   packSize,
		UnpackedSize: unpSize,
		HostOS:       uint32(body[8]),
		CRC:          binary.LittleEndian.Uint32(body[9:13]),
		DOSTime:      binary.LittleEndian.Uint32(body[13:17]),
		UnpVer:       uint32(body[17]),
		Method:       uint32(method),
		Attr:         binary.LittleEndian.Uint32(body[21:25]),
		Stored:       method == rar3MethodStored,
	}
	// LHD_SPLIT_BEFORE, LHD_SPLIT_AFTER, LHD_PASSWORD and LHD_SOLID share
	// their values with the RHDF_* bits.
	b.Flags = uint32(h.Flags) & (native.EntrySplitBefore | native.EntrySplitAfter | native.EntryEncrypted | native.EntrySolid)
	if h.Flags&rar3FileWindow == rar3FileWindow {
		b.Flags |= native.EntryDirectory
	} else {
		b.DictSize = 64 << ((h.Flags & rar3FileWindow) >> 5)
	}
	return b, nil
}

// decodeRar3Name decodes the name field. Unicode names carry an ASCII
// rendition, a NUL, then the packed UTF-16 form; names without the packed
// part are UTF-8. Other names use the OEM code page of the packer.
func decodeRar3Name(field []byte, unicode bool) string {
	if unicode {
		if zero := bytes.IndexByte(field, 0); zero >= 0 {
			return util.DecodeRar3Unicode(field[:zero], field[zero+1:])
		}
	}
	if utf8.Valid(field) {
		return string(field)
	}
	if s, err := charmap.CodePage437.NewDecoder().Bytes(field); err == nil {
		return string(s)
	}
	return string(field)
}

// nextRar3 walks blocks up to the next file header.
func (v *volume) nextRar3() (*fileBlock, error) {
	for {
		h, err := readRar3Block(v.f, v.pos, v.size)
		if errors.Is(err, io.EOF) {
			v.finish(false, false)
			return nil, io.EOF
		}
		if err != nil {
			return nil, err
		}
		switch h.Type {
		case rar3BlockFile:
			b, err := parseRar3FileHeader(h, v.path)
			if err != nil {
				return nil, err
			}
			v.pos = b.DataPos + b.PackedSize
			v.lastSplitAfter = b.splitAfter()
			return b, nil
		case rar3BlockEnd:
			v.finish(true, h.Flags&rar3EndNextVol != 0)
			return nil, io.EOF
		}
		if h.total() <= 0 {
			return nil, errBrokenHeader
		}
		v.pos += h.total()
	}
}
