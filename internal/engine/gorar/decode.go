package gorar

import (
	"errors"
	"io"
	"io/fs"
	"path/filepath"

	"github.com/nwaples/rardecode/v2"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/javi11/rarstream/internal/native"
)

// volumeFS exposes the engine file system to rardecode. afero's own io/fs
// wrapper rejects rooted paths, which volume names usually are.
type volumeFS struct{ fs afero.Fs }

func (v volumeFS) Open(name string) (fs.File, error) { return v.fs.Open(name) }

// decoder follows the archive with rardecode for payloads the block walker
// cannot serve: compressed or encrypted data and encrypted headers.
type decoder struct {
	rc   *rardecode.ReadCloser
	hdr  *rardecode.FileHeader
	used bool
}

func (h *handle) openDecoder() native.Status {
	opts := []rardecode.Option{rardecode.FileSystem(volumeFS{fs: h.e.fs})}
	if h.hasPassword {
		opts = append(opts, rardecode.Password(string(h.password)))
	}
	rc, err := rardecode.OpenReader(h.arcName, opts...)
	if err != nil {
		h.log.Debug("open decoder", zap.Error(err))
		return h.decodeStatus(err)
	}
	h.dec = &decoder{rc: rc}
	return native.Success
}

func (h *handle) closeDecoder() {
	if h.dec == nil {
		return
	}
	_ = h.dec.rc.Close()
	h.dec = nil
}

// seekDecoder advances the decoder to the next unused entry called name.
func (h *handle) seekDecoder(name string) native.Status {
	if h.dec == nil {
		if st := h.openDecoder(); st != native.Success {
			return st
		}
	}
	for {
		if d := h.dec; d.hdr != nil && !d.used && cleanName(d.hdr.Name) == name {
			return native.Success
		}
		hdr, err := h.dec.rc.Next()
		if errors.Is(err, io.EOF) {
			h.log.Debug("entry not found by decoder", zap.String("file", name))
			return native.BadData
		}
		if err != nil {
			return h.decodeStatus(err)
		}
		h.dec.hdr, h.dec.used = hdr, false
	}
}

// copyDecoded pumps the decoded payload of b into s. The block walker is then
// moved past the remaining fragments so both stay on the same entry.
func (h *handle) copyDecoded(b *fileBlock, s *sink) native.Status {
	if st := h.seekDecoder(b.Name); st != native.Success {
		return st
	}
	h.dec.used = true
	_, err := io.CopyBuffer(s, h.dec.rc, make([]byte, chunkSize))
	if st := copyStatus(err, h.decodeStatus); st != native.Success {
		return st
	}
	if h.encrypted {
		return native.Success
	}
	for b.splitAfter() {
		next, st := h.nextFragment(b, false)
		if st != native.Success {
			return st
		}
		b = next
	}
	return native.Success
}

// readDecodedHeader serves headers of archives whose headers are encrypted.
func (h *handle) readDecodedHeader(hd *native.HeaderData) native.Status {
	if !h.hasPassword {
		return native.MissingPassword
	}
	if h.dec == nil {
		if st := h.openDecoder(); st != native.Success {
			return st
		}
	}
	hdr, err := h.dec.rc.Next()
	if errors.Is(err, io.EOF) {
		return native.EndArchive
	}
	if err != nil {
		return h.decodeStatus(err)
	}
	h.dec.hdr, h.dec.used = hdr, false
	b := blockFromDecoded(hdr, h.arcName)
	h.cur = b
	b.fill(hd)
	return native.Success
}

// blockFromDecoded converts a header rardecode decrypted. rardecode does not
// expose the compression method, the CRC or the split flags, so those stay
// zero.
func blockFromDecoded(hdr *rardecode.FileHeader, volume string) *fileBlock {
	b := &fileBlock{
		Name:         cleanName(hdr.Name),
		Volume:       volume,
		PackedSize:   hdr.PackedSize,
		UnpackedSize: hdr.UnPackedSize,
		HostOS:       uint32(hdr.HostOS),
		Attr:         uint32(hdr.Attributes),
		DOSTime:      toDOSTime(hdr.ModificationTime),
	}
	if hdr.IsDir {
		b.Flags |= native.EntryDirectory
	}
	if hdr.Solid {
		b.Flags |= native.EntrySolid
	}
	if hdr.Encrypted {
		b.Flags |= native.EntryEncrypted
	}
	return b
}

func (h *handle) decodeStatus(err error) native.Status {
	var pe *fs.PathError
	switch {
	case errors.Is(err, rardecode.ErrBadPassword):
		return native.BadPassword
	case errors.Is(err, rardecode.ErrArchiveEncrypted), errors.Is(err, rardecode.ErrArchivedFileEncrypted):
		return native.MissingPassword
	case errors.Is(err, rardecode.ErrBadFileChecksum):
		return native.BadData
	case errors.Is(err, fs.ErrNotExist):
		name := nextVolumeName(h.vol.path, h.newNumbering)
		if errors.As(err, &pe) {
			name = filepath.Clean(pe.Path)
		}
		h.volumeEvent(name, native.VolAsk)
		return native.EOpen
	}
	h.log.Debug("decode", zap.Error(err))
	return native.BadData
}
