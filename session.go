package rarstream

import (
	"runtime"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/javi11/rarstream/internal/native"
)

// session owns one engine handle. All state values of one archive share a
// session; the generation counter tells which of them is current.
type session struct {
	h        native.Handle
	flags    ArchiveFlags
	mode     native.OpenMode
	log      *zap.Logger
	volumes  VolumeHandler
	gen      uint64
	damaged  bool
	deferred error
	// pending identifies the unprocessed TryNext entry, zero if none. It is
	// an id rather than a pointer so abandoned archives stay collectable.
	pending     uint64
	pendingName string
	lastID      uint64
	done        bool
	closed      bool
}

func newSession(h native.Handle, flags uint32, mode native.OpenMode, o *options, name string) *session {
	s := &session{
		h:       h,
		flags:   ArchiveFlags(flags),
		mode:    mode,
		log:     o.logger.With(zap.String("archive", name), zap.Stringer("mode", mode)),
		volumes: o.volumes,
	}
	runtime.SetFinalizer(s, (*session).finalize)
	return s
}

func (s *session) finalize() {
	if s.closed {
		return
	}
	s.log.Debug("closing abandoned archive")
	if err := s.close(); err != nil {
		s.log.Error("close abandoned archive", zap.Error(err))
	}
}

// close releases the handle and returns the deferred error, if any, along
// with a close failure.
func (s *session) close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.pending = 0
	runtime.SetFinalizer(s, nil)
	err := s.deferred
	s.deferred = nil
	if st := s.h.Close(); st != native.Success {
		err = multierr.Append(err, ProcessError{Code: CodeEClose})
	}
	s.log.Debug("archive closed")
	return err
}

// end marks the archive exhausted and releases the handle.
func (s *session) end() {
	s.done = true
	if err := s.close(); err != nil {
		s.log.Warn("close at end of archive", zap.Error(err))
	}
}

// cursor is embedded by every state value.
type cursor struct {
	s   *session
	gen uint64
}

func (c cursor) check() error {
	switch {
	case c.s == nil, c.s.closed:
		return ErrClosed
	case c.gen != c.s.gen:
		return ErrCursorMoved
	}
	return nil
}

// advance invalidates every state value of the session and returns the
// cursor of the next one.
func (c cursor) advance() cursor {
	c.s.gen++
	return cursor{s: c.s, gen: c.s.gen}
}

// IsLocked reports whether the archive is locked against changes.
func (c cursor) IsLocked() bool { return c.s.flags.Has(FlagLock) }

// HasEncryptedHeaders reports whether headers need the password to be read.
func (c cursor) HasEncryptedHeaders() bool { return c.s.flags.Has(FlagEncHeaders) }

// HasRecoveryRecord reports whether the archive carries recovery data.
func (c cursor) HasRecoveryRecord() bool { return c.s.flags.Has(FlagRecovery) }

// HasComment reports whether the archive has a comment.
func (c cursor) HasComment() bool { return c.s.flags.Has(FlagComment) }

// IsSolid reports whether the archive was packed as one solid stream.
func (c cursor) IsSolid() bool { return c.s.flags.Has(FlagSolid) }

// VolumeInfo classifies the file that was initially opened. It never changes
// while the engine moves through later volumes.
func (c cursor) VolumeInfo() VolumeInfo { return c.s.flags.volumeInfo() }

// Flags returns the raw archive flags captured at open.
func (c cursor) Flags() ArchiveFlags { return c.s.flags }

// ForceHeal clears the damaged state so iteration may continue after an
// error. No error is known to be safely recoverable; use with care.
func (c cursor) ForceHeal() {
	if c.s != nil {
		c.s.damaged = false
	}
}

// Close releases the archive. It is safe to call on any state value of the
// archive and more than once. A deferred error from an implicit skip is
// returned here if nothing else reported it.
func (c cursor) Close() error {
	if c.s == nil {
		return nil
	}
	return c.s.close()
}

// begin settles a Pending entry the caller abandoned by skipping it. A
// failure is stored as the deferred error and marks the archive damaged;
// takeDeferred hands it to the next caller.
func (s *session) begin() {
	if s.pending == 0 {
		return
	}
	name := s.pendingName
	s.pending, s.pendingName = 0, ""
	if _, err := runAction[struct{}](s, skipAction{}, name, "", ""); err != nil {
		s.log.Error("implicit skip failed", zap.String("file", name), zap.Error(err))
		s.deferred = err
		s.damaged = true
	}
}

func (s *session) takeDeferred() error {
	err := s.deferred
	s.deferred = nil
	return err
}

// readHeader returns the next header, ok=false at the end of the archive.
func (s *session) readHeader() (FileHeader, bool, error) {
	var next string
	s.h.SetCallback(s.callback(&next, nil))
	defer s.h.SetCallback(nil)

	var hd native.HeaderData
	switch st := s.h.ReadHeader(&hd); st {
	case native.Success:
		h := newFileHeader(&hd)
		s.log.Debug("header", zap.String("file", h.Filename), zap.Uint64("size", h.UnpackedSize))
		return h, true, nil
	case native.EndArchive:
		s.log.Debug("end of archive")
		return FileHeader{}, false, nil
	default:
		err := HeaderError{Code: codeFor(st, phaseHeader), NextVolume: next}
		s.log.Debug("read header failed", zap.Int32("status", int32(st)), zap.Error(err))
		return FileHeader{}, false, err
	}
}

// callback adapts engine notifications for the duration of one call: volume
// requests are recorded in next and decided by the volume handler, payload
// chunks go to data.
func (s *session) callback(next *string, data func([]byte)) native.Callback {
	return func(ev native.Event) int {
		switch ev.Msg {
		case native.UCMChangeVolume, native.UCMChangeVolumeW:
			*next = ev.Volume
			found := ev.VolumeMode == native.VolNotify
			if s.volumes(ev.Volume, found) == VolumeAbort {
				s.log.Debug("volume request aborted", zap.String("volume", ev.Volume), zap.Bool("found", found))
				return native.CallbackAbort
			}
			s.log.Debug("volume", zap.String("volume", ev.Volume), zap.Bool("found", found))
		case native.UCMProcessData:
			if data != nil {
				data(ev.Data)
			}
		case native.UCMNeedPassword, native.UCMNeedPasswordW:
			// passwords are set up front; never prompt
			return native.CallbackAbort
		}
		return native.CallbackContinue
	}
}
