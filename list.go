package rarstream

import (
	"errors"
	"io"
	"iter"

	"go.uber.org/multierr"

	"github.com/javi11/rarstream/internal/native"
)

// List yields one header per logical file, however many volumes it spans.
type List struct{}

// ListSplit yields one header per volume fragment of a split file.
type ListSplit struct{}

func (List) openMode() native.OpenMode      { return native.OMList }
func (ListSplit) openMode() native.OpenMode { return native.OMListIncSplit }

// ListMode is satisfied by List and ListSplit.
type ListMode interface {
	List | ListSplit
	openMode() native.OpenMode
}

// ListArchive is an archive opened for listing, positioned before a header.
// Payloads can only be skipped.
type ListArchive[M ListMode] struct {
	cursor
}

// ListEntry is a listed entry waiting to be skipped.
type ListEntry[M ListMode] struct {
	cursor
	header FileHeader
}

// fail records a failed transition: the archive is damaged and released.
func (s *session) fail(err error) error {
	s.damaged = true
	return multierr.Append(err, s.close())
}

// ReadHeader reads the next header. At the end of the archive it returns a
// nil entry and a nil error and the archive is closed; on error the archive
// is closed as well. The receiver must not be used afterwards.
func (a *ListArchive[M]) ReadHeader() (*ListEntry[M], error) {
	if err := a.check(); err != nil {
		return nil, err
	}
	h, ok, err := a.s.readHeader()
	if err != nil {
		return nil, a.s.fail(err)
	}
	if !ok {
		a.s.end()
		return nil, nil
	}
	return &ListEntry[M]{cursor: a.advance(), header: h}, nil
}

// Entry returns the header of the entry.
func (e *ListEntry[M]) Entry() FileHeader { return e.header }

// Skip moves past the entry.
func (e *ListEntry[M]) Skip() (*ListArchive[M], error) {
	if err := e.check(); err != nil {
		return nil, err
	}
	if _, err := runAction[struct{}](e.s, skipAction{}, e.header.Filename, "", ""); err != nil {
		return nil, e.s.fail(err)
	}
	return &ListArchive[M]{cursor: e.advance()}, nil
}

// Next reads the next header and skips its payload. It returns io.EOF at the
// end of the archive. After an error, which is wrapped in IterateError, the
// archive is damaged and Next keeps returning io.EOF until ForceHeal.
func (a *ListArchive[M]) Next() (FileHeader, error) {
	if a.s != nil && a.s.done {
		return FileHeader{}, io.EOF
	}
	if err := a.check(); err != nil {
		return FileHeader{}, err
	}
	s := a.s
	if s.damaged {
		return FileHeader{}, io.EOF
	}
	h, ok, err := s.readHeader()
	if err != nil {
		s.damaged = true
		return FileHeader{}, IterateError{Err: err}
	}
	if !ok {
		s.end()
		return FileHeader{}, io.EOF
	}
	if _, err := runAction[struct{}](s, skipAction{}, h.Filename, "", ""); err != nil {
		s.damaged = true
		return FileHeader{}, IterateError{Err: err}
	}
	return h, nil
}

// All iterates the remaining entries. An error is yielded once, after which
// the sequence ends.
func (a *ListArchive[M]) All() iter.Seq2[FileHeader, error] {
	return func(yield func(FileHeader, error) bool) {
		for {
			h, err := a.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(h, err) || err != nil {
				return
			}
		}
	}
}
