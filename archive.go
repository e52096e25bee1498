// Package rarstream drives a stream-only RAR engine through its strict
// header/payload protocol. Each cursor state is its own type, so operations
// the engine is not ready for cannot be expressed.
//
//	arc, err := rarstream.New("backup.part1.rar").OpenForProcessing()
//	if err != nil { ... }
//	for {
//		entry, err := arc.ReadHeader()
//		if err != nil || entry == nil { ... }
//		data, next, err := entry.Read()
//		...
//		arc = next
//	}
package rarstream

import (
	"bytes"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/javi11/rarstream/internal/native"
)

// Archive names an archive on disk, optionally with a password. Nothing is
// opened until one of the Open methods is called.
type Archive struct {
	filename    string
	password    []byte
	hasPassword bool
	opts        []Option
}

// New names the archive at filename; the archive is not opened.
func New(filename string, opts ...Option) *Archive {
	return &Archive{filename: filename, opts: opts}
}

// NewWithPassword is like New; password unlocks encrypted headers and
// payloads.
func NewWithPassword(filename string, password []byte, opts ...Option) *Archive {
	return &Archive{
		filename:    filename,
		password:    bytes.Clone(password),
		hasPassword: true,
		opts:        opts,
	}
}

// Filename returns the path the archive was created with.
func (a *Archive) Filename() string { return a.filename }

// IsArchive reports whether the filename looks like a RAR volume.
func (a *Archive) IsArchive() bool { return IsArchive(a.filename) }

// IsMultipart reports whether the filename carries a volume number.
func (a *Archive) IsMultipart() bool { return IsMultipart(a.filename) }

// AllParts returns a glob matching every volume, or the filename unchanged
// when it carries no volume number.
func (a *Archive) AllParts() string {
	if g, ok := a.AllPartsOption(); ok {
		return g
	}
	return a.filename
}

// AllPartsOption is AllParts reporting whether the filename has a volume number.
func (a *Archive) AllPartsOption() (string, bool) { return partsGlob(a.filename) }

// NthPart returns the filename of volume n, keeping the number width:
// "a.part01.rar" gives "a.part42.rar" for n=42.
func (a *Archive) NthPart(n int) (string, bool) { return nthPart(a.filename, n) }

// FirstPart returns the filename of the first volume, or the filename
// unchanged when it carries no volume number.
func (a *Archive) FirstPart() string {
	if p, ok := a.FirstPartOption(); ok {
		return p
	}
	return a.filename
}

// FirstPartOption is FirstPart reporting whether the filename has a volume
// number.
func (a *Archive) FirstPartOption() (string, bool) { return a.NthPart(1) }

// AsFirstPart returns a copy of a pointing at the first volume.
func (a *Archive) AsFirstPart() *Archive {
	c := *a
	c.filename = a.FirstPart()
	return &c
}

// OpenForListing opens the archive yielding one header per logical file.
func (a *Archive) OpenForListing() (*ListArchive[List], error) {
	return openList[List](a, false)
}

// OpenForListingSplit opens the archive yielding one header per fragment.
func (a *Archive) OpenForListingSplit() (*ListArchive[ListSplit], error) {
	return openList[ListSplit](a, false)
}

// OpenForProcessing opens the archive so payloads can be read, tested and
// extracted.
func (a *Archive) OpenForProcessing() (*ProcessArchive, error) {
	return openProcess(a, false)
}

// BreakOpenForListing is OpenForListing for damaged archives: when the
// engine reports an error but still hands out a usable archive, both are
// returned.
func (a *Archive) BreakOpenForListing() (*ListArchive[List], error) {
	return openList[List](a, true)
}

// BreakOpenForListingSplit is OpenForListingSplit for damaged archives.
func (a *Archive) BreakOpenForListingSplit() (*ListArchive[ListSplit], error) {
	return openList[ListSplit](a, true)
}

// BreakOpenForProcessing is OpenForProcessing for damaged archives.
func (a *Archive) BreakOpenForProcessing() (*ProcessArchive, error) {
	return openProcess(a, true)
}

func openList[M ListMode](a *Archive, breakOpen bool) (*ListArchive[M], error) {
	var m M
	s, err := a.open(m.openMode(), breakOpen)
	if s == nil {
		return nil, err
	}
	return &ListArchive[M]{cursor: cursor{s: s}}, err
}

func openProcess(a *Archive, breakOpen bool) (*ProcessArchive, error) {
	s, err := a.open(native.OMExtract, breakOpen)
	if s == nil {
		return nil, err
	}
	return &ProcessArchive{cursor: cursor{s: s}}, err
}

// open returns a session, nil when the archive could not be opened. With
// breakOpen set a failed open that still produced a handle returns both.
func (a *Archive) open(mode native.OpenMode, breakOpen bool) (*session, error) {
	if err := checkNul(a.filename); err != nil {
		return nil, err
	}
	if a.hasPassword {
		if i := bytes.IndexByte(a.password, 0); i >= 0 {
			return nil, NulError{Pos: i}
		}
	}
	var o options
	if err := o.apply(a.opts); err != nil {
		return nil, err
	}

	data := &native.OpenArchiveData{ArcName: a.filename, OpenMode: mode}
	h := o.engine.OpenArchive(data)
	if h == nil {
		code := codeFor(data.OpenResult, phaseOpen)
		if data.OpenResult == native.Success {
			code = CodeUnknown
		}
		o.logger.Debug("open failed", zap.String("archive", a.filename), zap.Stringer("code", code))
		return nil, OpenError{Code: code}
	}
	if a.hasPassword {
		h.SetPassword(a.password)
	}
	s := newSession(h, data.Flags, mode, &o, a.filename)
	if data.OpenResult == native.Success {
		s.log.Debug("archive opened", zap.Uint32("flags", data.Flags))
		return s, nil
	}

	err := OpenError{Code: codeFor(data.OpenResult, phaseOpen)}
	if !breakOpen {
		_ = s.close()
		return nil, err
	}
	s.log.Warn("archive opened with errors", zap.Error(err))
	return s, err
}

func checkNul(s string) error {
	if i := strings.IndexByte(s, 0); i >= 0 {
		return NulError{Pos: i}
	}
	return nil
}

// ReadBytes decompresses the first complete file entry called name.
func (a *Archive) ReadBytes(name string) ([]byte, error) {
	arc, err := a.OpenForProcessing()
	if err != nil {
		return nil, err
	}
	defer func() { _ = arc.Close() }()

	for {
		p, err := arc.TryNext()
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, name)
		}
		h := p.Header()
		if h.Filename == name && h.IsFile() && !h.IsSplitBefore() {
			return p.Read()
		}
		if err := p.Skip(); err != nil {
			return nil, err
		}
	}
}

// ExtractAll extracts every entry below dest. Continuation fragments are
// consumed with the entry they belong to.
func (a *Archive) ExtractAll(dest string) error {
	arc, err := a.OpenForProcessing()
	if err != nil {
		return err
	}
	defer func() { _ = arc.Close() }()

	for {
		p, err := arc.TryNext()
		if err != nil {
			return err
		}
		if p == nil {
			return nil
		}
		h := p.Header()
		if h.IsSplitBefore() {
			err = p.Skip()
		} else {
			err = p.ExtractWithBase(dest)
		}
		if err != nil {
			return fmt.Errorf("extract %s: %w", h.Filename, err)
		}
	}
}

// ListFiles lists the archive fragment by fragment and groups the fragments
// into logical files.
func (a *Archive) ListFiles() ([]AggregatedFile, error) {
	arc, err := a.OpenForListingSplit()
	if err != nil {
		return nil, err
	}
	defer func() { _ = arc.Close() }()

	var headers []FileHeader
	for h, err := range arc.All() {
		if err != nil {
			return nil, err
		}
		headers = append(headers, h)
	}
	return Aggregate(headers), nil
}
