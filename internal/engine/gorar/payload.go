package gorar

import (
	"errors"
	"hash/crc32"
	"io"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/javi11/rarstream/internal/native"
)

const chunkSize = 64 << 10

var errAborted = errors.New("aborted by callback")

type writeError struct{ err error }

func (e *writeError) Error() string { return "write: " + e.err.Error() }
func (e *writeError) Unwrap() error { return e.err }

// sink forwards payload chunks to the extraction target and to the
// UCMProcessData callback.
type sink struct {
	w  io.Writer
	cb native.Callback
}

func (s *sink) Write(p []byte) (int, error) {
	if s.w != nil {
		if n, err := s.w.Write(p); err != nil {
			return n, &writeError{err: err}
		}
	}
	if s.cb != nil && s.cb(native.Event{Msg: native.UCMProcessData, Data: p}) == native.CallbackAbort {
		return 0, errAborted
	}
	return len(p), nil
}

// copyStatus classifies an error returned while pumping a payload; read
// errors are classified by readStatus.
func copyStatus(err error, readStatus func(error) native.Status) native.Status {
	var we *writeError
	switch {
	case err == nil:
		return native.Success
	case errors.As(err, &we):
		return native.EWrite
	case errors.Is(err, errAborted):
		return native.Unknown
	}
	return readStatus(err)
}

func readStatus(error) native.Status { return native.ERead }

// copyStored streams a stored payload fragment by fragment, verifying the
// CRC of the whole file against the last fragment.
func (h *handle) copyStored(b *fileBlock, s *sink) native.Status {
	crc := crc32.NewIEEE()
	w := io.MultiWriter(crc, s)
	buf := make([]byte, chunkSize)
	for {
		src := io.NewSectionReader(h.vol.f, b.DataPos, b.PackedSize)
		n, err := io.CopyBuffer(w, src, buf)
		if st := copyStatus(err, readStatus); st != native.Success {
			return st
		}
		if n != b.PackedSize {
			return native.ERead
		}
		if !b.splitAfter() {
			break
		}
		next, st := h.nextFragment(b, true)
		if st != native.Success {
			return st
		}
		b = next
	}
	if crc.Sum32() != b.CRC {
		h.log.Debug("crc mismatch", zap.String("file", b.Name), zap.Uint32("want", b.CRC), zap.Uint32("got", crc.Sum32()))
		return native.BadData
	}
	return native.Success
}

func (h *handle) target(b *fileBlock, destPath, destName string) string {
	if destName != "" {
		return destName
	}
	if destPath == "" {
		destPath = "."
	}
	return filepath.Join(destPath, filepath.FromSlash(b.Name))
}

func (h *handle) extractDir(b *fileBlock, destPath, destName string) native.Status {
	if err := h.e.fs.MkdirAll(h.target(b, destPath, destName), 0o755); err != nil {
		h.log.Debug("create directory", zap.Error(err))
		return native.ECreate
	}
	return native.Success
}

func (h *handle) extractFile(b *fileBlock, destPath, destName string, copyFn func(io.Writer) native.Status) native.Status {
	fs := h.e.fs
	target := h.target(b, destPath, destName)
	if err := fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		h.log.Debug("create parent", zap.String("target", target), zap.Error(err))
		return native.ECreate
	}
	f, err := fs.Create(target)
	if err != nil {
		h.log.Debug("create file", zap.String("target", target), zap.Error(err))
		return native.ECreate
	}
	st := copyFn(f)
	if err := f.Close(); err != nil && st == native.Success {
		st = native.EClose
	}
	if st != native.Success {
		_ = fs.Remove(target)
		return st
	}
	if mt := dosTime(b.DOSTime); !mt.IsZero() {
		_ = fs.Chtimes(target, mt, mt)
	}
	return native.Success
}
