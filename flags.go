package rarstream

import "github.com/javi11/rarstream/internal/native"

// ArchiveFlags is the archive-wide flag set captured when the archive is
// opened. It does not change when the engine moves to later volumes.
type ArchiveFlags uint32

const (
	FlagVolume       = ArchiveFlags(native.ArchiveVolume)
	FlagComment      = ArchiveFlags(native.ArchiveComment)
	FlagLock         = ArchiveFlags(native.ArchiveLock)
	FlagSolid        = ArchiveFlags(native.ArchiveSolid)
	FlagNewNumbering = ArchiveFlags(native.ArchiveNewNumbering)
	FlagSigned       = ArchiveFlags(native.ArchiveSigned)
	FlagRecovery     = ArchiveFlags(native.ArchiveRecovery)
	FlagEncHeaders   = ArchiveFlags(native.ArchiveEncHeaders)
	FlagFirstVolume  = ArchiveFlags(native.ArchiveFirstVolume)
)

// Has reports whether every bit of mask is set.
func (f ArchiveFlags) Has(mask ArchiveFlags) bool { return f&mask == mask }

// VolumeInfo classifies the file that was initially opened.
type VolumeInfo int

const (
	// VolumeNone is a single-part archive.
	VolumeNone VolumeInfo = iota
	// VolumeFirst is the first volume of a multipart archive.
	VolumeFirst
	// VolumeSubsequent is any later volume of a multipart archive.
	VolumeSubsequent
)

func (v VolumeInfo) String() string {
	switch v {
	case VolumeFirst:
		return "first"
	case VolumeSubsequent:
		return "subsequent"
	}
	return "none"
}

func (f ArchiveFlags) volumeInfo() VolumeInfo {
	switch {
	case f.Has(FlagFirstVolume):
		return VolumeFirst
	case f.Has(FlagVolume):
		return VolumeSubsequent
	}
	return VolumeNone
}
