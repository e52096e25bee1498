package rarstream

import (
	"errors"
	"fmt"

	"github.com/javi11/rarstream/internal/native"
)

// Code identifies a failure reported by the engine, already resolved for the
// phase it happened in. Codes are errors themselves, so
// errors.Is(err, CodeMissingPassword) matches an OpenError, HeaderError or
// ProcessError carrying that code.
type Code int

const (
	CodeArchiveHeaderDamaged Code = iota + 1
	CodeFileHeaderDamaged
	CodeFileCRCError
	CodeUnknownEncryption
	CodeNextVolumeNotFound
	CodeUnknownFormat
	CodeEOpen
	CodeNoMemory
	CodeBadArchive
	CodeECreate
	CodeEClose
	CodeERead
	CodeEWrite
	CodeSmallBuf
	CodeMissingPassword
	CodeBadPassword
	CodeUnknown
	CodeEReference
	CodeEndArchive
)

var codeMessages = map[Code]string{
	CodeArchiveHeaderDamaged: "Archive header damaged",
	CodeFileHeaderDamaged:    "File header damaged",
	CodeFileCRCError:         "File CRC error",
	CodeUnknownEncryption:    "Unknown encryption",
	CodeNextVolumeNotFound:   "Could not open next volume",
	CodeUnknownFormat:        "Unknown archive format",
	CodeEOpen:                "Could not open archive",
	CodeNoMemory:             "Not enough memory",
	CodeBadArchive:           "Not a RAR archive",
	CodeECreate:              "Could not create file",
	CodeEClose:               "Could not close file",
	CodeERead:                "Read error",
	CodeEWrite:               "Write error",
	CodeSmallBuf:             "Archive comment was truncated to fit to buffer",
	CodeMissingPassword:      "Password for encrypted archive not specified",
	CodeBadPassword:          "Wrong password was specified",
	CodeUnknown:              "Unknown error",
	CodeEReference:           "Cannot open file source for reference record",
	CodeEndArchive:           "End of archive",
}

func (c Code) String() string {
	if m, ok := codeMessages[c]; ok {
		return m
	}
	return fmt.Sprintf("Code(%d)", int(c))
}

func (c Code) Error() string { return c.String() }

type phase int

const (
	phaseOpen phase = iota
	phaseHeader
	phaseProcess
)

// codeFor resolves a native status for the phase it was returned in.
func codeFor(st native.Status, p phase) Code {
	switch st {
	case native.BadData:
		switch p {
		case phaseOpen:
			return CodeArchiveHeaderDamaged
		case phaseHeader:
			return CodeFileHeaderDamaged
		}
		return CodeFileCRCError
	case native.UnknownFormat:
		if p == phaseOpen {
			return CodeUnknownEncryption
		}
		return CodeUnknownFormat
	case native.EOpen:
		if p == phaseOpen {
			return CodeEOpen
		}
		return CodeNextVolumeNotFound
	case native.EndArchive:
		return CodeEndArchive
	case native.NoMemory:
		return CodeNoMemory
	case native.BadArchive:
		return CodeBadArchive
	case native.ECreate:
		return CodeECreate
	case native.EClose:
		return CodeEClose
	case native.ERead:
		return CodeERead
	case native.EWrite:
		return CodeEWrite
	case native.SmallBuf:
		return CodeSmallBuf
	case native.MissingPassword:
		return CodeMissingPassword
	case native.EReference:
		return CodeEReference
	case native.BadPassword:
		return CodeBadPassword
	}
	return CodeUnknown
}

// OpenError is returned when an archive cannot be opened.
type OpenError struct {
	Code Code
}

func (e OpenError) Error() string { return e.Code.String() }

// Is matches a bare Code or an OpenError with the same code.
func (e OpenError) Is(target error) bool {
	if t, ok := target.(OpenError); ok {
		return t.Code == e.Code
	}
	return matchCode(e.Code, target)
}

// HeaderError is returned when the next header cannot be read. NextVolume is
// set when the engine asked for a volume it could not open.
type HeaderError struct {
	Code       Code
	NextVolume string
}

func (e HeaderError) Error() string {
	if e.NextVolume != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.NextVolume)
	}
	return e.Code.String()
}

// Is matches a bare Code or a HeaderError with the same code, whatever its
// NextVolume.
func (e HeaderError) Is(target error) bool {
	if t, ok := target.(HeaderError); ok {
		return t.Code == e.Code
	}
	return matchCode(e.Code, target)
}

// ProcessError is returned when an entry payload cannot be skipped, tested,
// read or extracted. File names the entry being processed.
type ProcessError struct {
	Code       Code
	File       string
	NextVolume string
}

func (e ProcessError) Error() string {
	if e.NextVolume != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.NextVolume)
	}
	return e.Code.String()
}

// Is matches a bare Code or a ProcessError with the same code.
func (e ProcessError) Is(target error) bool {
	if t, ok := target.(ProcessError); ok {
		return t.Code == e.Code
	}
	return matchCode(e.Code, target)
}

// matchCode reports whether target is the bare code c. Typed errors of
// another phase never match.
func matchCode(c Code, target error) bool {
	t, ok := target.(Code)
	return ok && t == c
}

// IterateError wraps the HeaderError or ProcessError produced while
// iterating a listing.
type IterateError struct {
	Err error
}

func (e IterateError) Error() string { return e.Err.Error() }
func (e IterateError) Unwrap() error { return e.Err }

// NulError reports a NUL byte in a path or password at byte offset Pos.
type NulError struct {
	Pos int
}

func (e NulError) Error() string { return fmt.Sprintf("unexpected NUL at %d", e.Pos) }

var (
	// ErrCursorMoved is returned by a state value that has already been
	// consumed by a transition.
	ErrCursorMoved = errors.New("rarstream: archive cursor has moved on")
	// ErrClosed is returned once the underlying handle is closed.
	ErrClosed = errors.New("rarstream: archive is closed")
	// ErrDamaged is returned by TryNext after a failure until ForceHeal.
	ErrDamaged = errors.New("rarstream: archive is damaged")
	// ErrEntryNotFound is returned when a named entry is not in the archive.
	ErrEntryNotFound = errors.New("rarstream: entry not found")
)
