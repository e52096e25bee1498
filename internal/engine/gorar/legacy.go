package gorar

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"
)

// legacyScanLimit bounds the recovery scan; file headers follow the main
// header closely.
const legacyScanLimit = 64 * 1024

var errNoLegacyHeader = errors.New("legacy scan: no file header found")

// scanLegacy searches for the first plausible RAR 1.5-3.x file header after
// from. It is used when the main header is unreadable, so block sizes cannot
// be trusted and the bytes are scanned instead.
func scanLegacy(r io.ReaderAt, from, limit int64) (int64, error) {
	n := min(limit-from, legacyScanLimit)
	if n <= 0 {
		return 0, errNoLegacyHeader
	}
	peekBuf := make([]byte, n)
	if _, err := r.ReadAt(peekBuf, from); err != nil && !errors.Is(err, io.EOF) {
		return 0, err
	}
	searchStart := 0
	for searchStart < len(peekBuf) {
		pos := bytes.IndexByte(peekBuf[searchStart:], rar3BlockFile)
		if pos < 0 {
			break
		}
		typePos := searchStart + pos
		searchStart = typePos + 1
		hdrStart := typePos - 2
		if hdrStart < 0 || hdrStart+rar3BaseSize > len(peekBuf) {
			continue
		}
		size := int(binary.LittleEndian.Uint16(peekBuf[hdrStart+5 : hdrStart+7]))
		if size < rar3BaseSize+rar3FileFixed || hdrStart+size > len(peekBuf) {
			continue
		}
		crc := binary.LittleEndian.Uint16(peekBuf[hdrStart : hdrStart+2])
		if uint16(crc32.ChecksumIEEE(peekBuf[hdrStart+2:hdrStart+size])) != crc {
			continue
		}
		nameSize := int(binary.LittleEndian.Uint16(peekBuf[hdrStart+rar3BaseSize+19:]))
		if rar3BaseSize+rar3FileFixed+nameSize > size {
			continue
		}
		return from + int64(hdrStart), nil
	}
	return 0, errNoLegacyHeader
}
