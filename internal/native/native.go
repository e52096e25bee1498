// Package native describes the boundary between the streaming session and a
// RAR engine. The shapes mirror unrar's dll.hpp so that a cgo binding and the
// pure Go engine can be swapped behind the same interfaces.
package native

// Status is an engine return code (ERAR_*).
type Status int32

const (
	Success         Status = 0
	EndArchive      Status = 10
	NoMemory        Status = 11
	BadData         Status = 12
	BadArchive      Status = 13
	UnknownFormat   Status = 14
	EOpen           Status = 15
	ECreate         Status = 16
	EClose          Status = 17
	ERead           Status = 18
	EWrite          Status = 19
	SmallBuf        Status = 20
	Unknown         Status = 21
	MissingPassword Status = 22
	EReference      Status = 23
	BadPassword     Status = 24
)

// OpenMode selects how the engine walks the archive (RAR_OM_*).
type OpenMode uint32

const (
	OMList         OpenMode = 0
	OMExtract      OpenMode = 1
	OMListIncSplit OpenMode = 2
)

func (m OpenMode) String() string {
	switch m {
	case OMList:
		return "list"
	case OMExtract:
		return "extract"
	case OMListIncSplit:
		return "list-incsplit"
	}
	return "unknown"
}

// Operation is the payload action requested from ProcessFile (RAR_*).
type Operation int32

const (
	OpSkip    Operation = 0
	OpTest    Operation = 1
	OpExtract Operation = 2
)

func (o Operation) String() string {
	switch o {
	case OpSkip:
		return "skip"
	case OpTest:
		return "test"
	case OpExtract:
		return "extract"
	}
	return "unknown"
}

// Archive flags reported at open (ROADF_*).
const (
	ArchiveVolume       uint32 = 0x0001
	ArchiveComment      uint32 = 0x0002
	ArchiveLock         uint32 = 0x0004
	ArchiveSolid        uint32 = 0x0008
	ArchiveNewNumbering uint32 = 0x0010
	ArchiveSigned       uint32 = 0x0020
	ArchiveRecovery     uint32 = 0x0040
	ArchiveEncHeaders   uint32 = 0x0080
	ArchiveFirstVolume  uint32 = 0x0100
)

// Entry flags reported per header (RHDF_*).
const (
	EntrySplitBefore uint32 = 0x01
	EntrySplitAfter  uint32 = 0x02
	EntryEncrypted   uint32 = 0x04
	EntrySolid       uint32 = 0x10
	EntryDirectory   uint32 = 0x20
)

// Message identifies a callback notification (UCM_*).
type Message uint32

const (
	UCMChangeVolume  Message = 0
	UCMProcessData   Message = 1
	UCMNeedPassword  Message = 2
	UCMChangeVolumeW Message = 3
	UCMNeedPasswordW Message = 4
)

// Volume modes passed with UCMChangeVolume(W) (RAR_VOL_*).
const (
	VolAsk    = 0
	VolNotify = 1
)

// Callback results.
const (
	CallbackContinue = 0
	CallbackAbort    = -1
)

// Event is a single callback notification.
//
// Data aliases engine memory and must not be retained after the callback
// returns.
type Event struct {
	Msg        Message
	Volume     string
	VolumeMode int
	Data       []byte
}

// Callback receives engine notifications. Returning CallbackAbort stops the
// current operation.
type Callback func(ev Event) int

// NameSize is the capacity of the fixed name buffers in HeaderData.
const NameSize = 1024

// Wchar is one wide character of a name buffer. Engines store UTF-32 code
// units regardless of the platform wchar_t width.
type Wchar = uint32

// OpenArchiveData is the in/out record of Engine.OpenArchive.
type OpenArchiveData struct {
	ArcName    string
	OpenMode   OpenMode
	OpFlags    uint32
	OpenResult Status
	Flags      uint32
}

// HeaderData is filled by Handle.ReadHeader.
type HeaderData struct {
	ArcName      [NameSize]byte
	ArcNameW     [NameSize]Wchar
	FileName     [NameSize]byte
	FileNameW    [NameSize]Wchar
	Flags        uint32
	PackSize     uint32
	PackSizeHigh uint32
	UnpSize      uint32
	UnpSizeHigh  uint32
	HostOS       uint32
	FileCRC      uint32
	FileTime     uint32
	UnpVer       uint32
	Method       uint32
	FileAttr     uint32
	DictSize     uint32
	MtimeLow     uint32
	MtimeHigh    uint32
}

// Engine opens archives.
type Engine interface {
	// OpenArchive opens data.ArcName and reports the result in data.
	// A nil Handle means the open failed; a non-nil Handle together with a
	// non-success OpenResult is a damaged but usable archive.
	OpenArchive(data *OpenArchiveData) Handle
}

// Handle is an open archive. Calls must alternate ReadHeader and
// ProcessFile; a Handle is not safe for concurrent use.
type Handle interface {
	ReadHeader(hd *HeaderData) Status
	ProcessFile(op Operation, destPath, destName string) Status
	SetCallback(cb Callback)
	SetPassword(password []byte)
	Close() Status
}

// PutWide stores s into dst as NUL-terminated wide characters, truncating
// when it does not fit.
func PutWide(dst []Wchar, s string) {
	if len(dst) == 0 {
		return
	}
	i := 0
	for _, r := range s {
		if i == len(dst)-1 {
			break
		}
		dst[i] = Wchar(r)
		i++
	}
	dst[i] = 0
}

// PutNarrow stores s into dst as a NUL-terminated byte string, truncating
// when it does not fit.
func PutNarrow(dst []byte, s string) {
	if len(dst) == 0 {
		return
	}
	n := copy(dst[:len(dst)-1], s)
	dst[n] = 0
}

// SplitSize splits a 64-bit size into the low/high pair used by HeaderData.
func SplitSize(v uint64) (low, high uint32) {
	return uint32(v), uint32(v >> 32)
}
