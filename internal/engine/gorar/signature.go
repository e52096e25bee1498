package gorar

import (
	"bytes"
	"errors"
	"io"
)

// Version and signature related declarations.

const (
	VersionUnknown = "UNKNOWN"
	VersionRar3    = "RAR3"
	VersionRar5    = "RAR5"
)

var (
	rarSigPrefix = []byte("Rar!\x1A\x07")
	rarSigV3     = []byte("Rar!\x1A\x07\x00")     // RAR 1.5/2.x/3.x marker block
	rarSigV5     = []byte("Rar!\x1A\x07\x01\x00") // RAR5
)

// signatureWindow bounds the search for the marker, leaving room for an SFX stub.
const signatureWindow = 64 << 10

var (
	errNoSignature    = errors.New("RAR signature not found")
	errUnknownVersion = errors.New("unsupported RAR version")
)

func detectSignature(r io.ReaderAt, size int64) (string, int64, error) {
	buf := make([]byte, min(size, signatureWindow))
	n, err := r.ReadAt(buf, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return VersionUnknown, 0, err
	}
	buf = buf[:n]
	for off := 0; off < len(buf); {
		i := bytes.Index(buf[off:], rarSigPrefix)
		if i < 0 {
			break
		}
		at := buf[off+i:]
		switch {
		case bytes.HasPrefix(at, rarSigV5):
			return VersionRar5, int64(off + i), nil
		case bytes.HasPrefix(at, rarSigV3):
			return VersionRar3, int64(off + i), nil
		case off+i == 0 && len(at) > len(rarSigPrefix):
			// marker of a format revision we do not know
			return VersionUnknown, 0, errUnknownVersion
		}
		off += i + 1
	}
	return VersionUnknown, 0, errNoSignature
}
