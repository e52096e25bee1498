// Package gorar implements the native engine protocol in pure Go. Headers
// are walked directly; stored payloads are streamed from the volumes and
// everything else is decoded with rardecode.
package gorar

import (
	"errors"
	"io"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/javi11/rarstream/internal/native"
)

// Engine opens archives from a file system.
type Engine struct {
	fs  afero.Fs
	log *zap.Logger
}

// New returns an engine reading volumes from fs. A nil fs means the OS file
// system, a nil logger discards output.
func New(fs afero.Fs, log *zap.Logger) *Engine {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{fs: fs, log: log.Named("gorar")}
}

func (e *Engine) OpenArchive(data *native.OpenArchiveData) native.Handle {
	v, status, err := openVolume(e.fs, data.ArcName)
	data.OpenResult = status
	if v == nil {
		e.log.Debug("open failed",
			zap.String("archive", data.ArcName),
			zap.Int32("status", int32(status)),
			zap.Error(err))
		return nil
	}
	data.Flags = v.info.Flags
	if status != native.Success {
		e.log.Warn("archive opened with damaged main header", zap.String("archive", data.ArcName), zap.Error(err))
	}
	return &handle{
		e:            e,
		log:          e.log.With(zap.String("archive", data.ArcName)),
		mode:         data.OpenMode,
		arcName:      data.ArcName,
		vol:          v,
		newNumbering: v.info.newNumbering(),
		encrypted:    v.info.encryptedHeaders(),
	}
}

type handle struct {
	e            *Engine
	log          *zap.Logger
	mode         native.OpenMode
	arcName      string
	vol          *volume
	newNumbering bool
	// encrypted headers: every header and payload comes from dec
	encrypted bool

	cur         *fileBlock
	password    []byte
	hasPassword bool
	cb          native.Callback
	dec         *decoder
	closed      bool
}

func (h *handle) SetCallback(cb native.Callback) { h.cb = cb }

func (h *handle) SetPassword(password []byte) {
	h.password = append([]byte(nil), password...)
	h.hasPassword = true
	h.closeDecoder()
}

func (h *handle) ReadHeader(hd *native.HeaderData) native.Status {
	if h.closed {
		return native.Unknown
	}
	if h.cur != nil {
		if st := h.skip(h.cur); st != native.Success {
			return st
		}
	}
	if h.encrypted {
		return h.readDecodedHeader(hd)
	}
	for {
		b, err := h.vol.nextFile()
		if errors.Is(err, io.EOF) {
			if !h.vol.hasNext {
				return native.EndArchive
			}
			if st := h.switchVolume(true); st != native.Success {
				return st
			}
			continue
		}
		if err != nil {
			h.log.Debug("read header", zap.String("volume", h.vol.path), zap.Int64("pos", h.vol.pos), zap.Error(err))
			return statusFor(err)
		}
		// continuations are folded into their first fragment when listing
		if h.mode == native.OMList && b.splitBefore() {
			continue
		}
		h.cur = b
		b.fill(hd)
		return native.Success
	}
}

func (h *handle) ProcessFile(op native.Operation, destPath, destName string) native.Status {
	b := h.cur
	if h.closed || b == nil {
		return native.Unknown
	}
	h.cur = nil
	if h.mode != native.OMExtract || op == native.OpSkip {
		return h.skip(b)
	}
	if b.splitBefore() && !h.encrypted {
		// the start of this file lives in a previous volume
		return native.BadData
	}
	if b.isDir() {
		if op == native.OpExtract {
			return h.extractDir(b, destPath, destName)
		}
		return native.Success
	}
	if b.encrypted() && !h.hasPassword {
		return native.MissingPassword
	}
	copyFn := func(w io.Writer) native.Status {
		s := &sink{w: w, cb: h.cb}
		if b.Stored && !b.encrypted() && !h.encrypted {
			return h.copyStored(b, s)
		}
		return h.copyDecoded(b, s)
	}
	if op == native.OpExtract {
		return h.extractFile(b, destPath, destName, copyFn)
	}
	return copyFn(nil)
}

// skip moves past the payload of b. A split file continues in the next
// volume, which is opened and left positioned on the continuation header.
func (h *handle) skip(b *fileBlock) native.Status {
	h.cur = nil
	if h.encrypted || !b.splitAfter() {
		return native.Success
	}
	return h.switchVolume(true)
}

func (h *handle) Close() native.Status {
	if h.closed {
		return native.Success
	}
	h.closed = true
	h.closeDecoder()
	if err := h.vol.close(); err != nil {
		h.log.Debug("close volume", zap.Error(err))
		return native.EClose
	}
	return native.Success
}

// switchVolume replaces the current volume with the next one. Existing
// volumes are announced with VolNotify when notify is set; a missing volume
// is always reported with VolAsk and checked once more if the callback lets
// the operation continue.
func (h *handle) switchVolume(notify bool) native.Status {
	name := nextVolumeName(h.vol.path, h.newNumbering)
	for attempt := 0; ; attempt++ {
		if _, err := h.e.fs.Stat(name); err == nil {
			break
		}
		if attempt > 0 || h.volumeEvent(name, native.VolAsk) == native.CallbackAbort {
			h.log.Debug("next volume not found", zap.String("volume", name))
			return native.EOpen
		}
	}
	if notify && h.volumeEvent(name, native.VolNotify) == native.CallbackAbort {
		return native.EOpen
	}
	v, st, err := openVolume(h.e.fs, name)
	if st != native.Success {
		_ = v.close()
		h.log.Debug("open next volume", zap.String("volume", name), zap.Error(err))
		return st
	}
	_ = h.vol.close()
	h.vol = v
	h.log.Debug("switched volume", zap.String("volume", name))
	return native.Success
}

func (h *handle) volumeEvent(name string, mode int) int {
	if h.cb == nil {
		if mode == native.VolAsk {
			return native.CallbackAbort
		}
		return native.CallbackContinue
	}
	return h.cb(native.Event{Msg: native.UCMChangeVolumeW, Volume: name, VolumeMode: mode})
}

// nextFragment opens the next volume and returns the continuation of b.
func (h *handle) nextFragment(b *fileBlock, notify bool) (*fileBlock, native.Status) {
	if st := h.switchVolume(notify); st != native.Success {
		return nil, st
	}
	nb, err := h.vol.nextFile()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, native.BadData
		}
		return nil, statusFor(err)
	}
	if !nb.splitBefore() || nb.Name != b.Name {
		h.log.Debug("continuation mismatch", zap.String("want", b.Name), zap.String("got", nb.Name), zap.Error(errNoContinuation))
		return nil, native.BadData
	}
	return nb, native.Success
}

func statusFor(err error) native.Status {
	switch {
	case errors.Is(err, errHeaderCRC), errors.Is(err, errBrokenHeader), errors.Is(err, io.ErrUnexpectedEOF):
		return native.BadData
	case errors.Is(err, errUnknownEncryption):
		return native.UnknownFormat
	}
	return native.ERead
}
