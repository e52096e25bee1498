package rarstream

import "time"

// AggregatedFilePart is one fragment of a (possibly split) file.
type AggregatedFilePart struct {
	Volume      string `json:"volume"`
	PackedSize  uint64 `json:"packedSize"`
	SplitBefore bool   `json:"splitBefore"`
	SplitAfter  bool   `json:"splitAfter"`
	Stored      bool   `json:"stored"`
	Encrypted   bool   `json:"encrypted"`
}

// AggregatedFile groups the fragments of one logical file.
type AggregatedFile struct {
	Name            string               `json:"name"`
	TotalPackedSize uint64               `json:"totalPackedSize"`
	UnpackedSize    uint64               `json:"unpackedSize"`
	CRC             uint32               `json:"crc"`
	ModTime         time.Time            `json:"modTime"`
	Directory       bool                 `json:"directory"`
	Parts           []AggregatedFilePart `json:"parts"`
	AnyEncrypted    bool                 `json:"anyEncrypted"`
	AllStored       bool                 `json:"allStored"`
	// Complete is false when the first or last fragment is missing from the
	// listing, e.g. when listing started at a later volume.
	Complete bool `json:"complete"`
}

// Aggregate groups headers listed in ListSplit order into logical files: a
// split-before fragment joins the preceding file of the same name when that
// file continues.
func Aggregate(headers []FileHeader) []AggregatedFile {
	var out []AggregatedFile
	for _, h := range headers {
		n := len(out)
		if n == 0 || !h.IsSplitBefore() || out[n-1].Name != h.Filename || !out[n-1].continues() {
			out = append(out, AggregatedFile{
				Name:         h.Filename,
				UnpackedSize: h.UnpackedSize,
				ModTime:      h.ModTime(),
				Directory:    h.IsDirectory(),
				AllStored:    true,
			})
			n++
		}
		ag := &out[n-1]
		ag.Parts = append(ag.Parts, AggregatedFilePart{
			Volume:      h.Volume,
			PackedSize:  h.PackedSize,
			SplitBefore: h.IsSplitBefore(),
			SplitAfter:  h.IsSplitAfter(),
			Stored:      h.IsStored(),
			Encrypted:   h.IsEncrypted(),
		})
		ag.TotalPackedSize += h.PackedSize
		// the last fragment carries the CRC of the whole file
		ag.CRC = h.FileCRC
		if h.IsEncrypted() {
			ag.AnyEncrypted = true
		}
		if !h.IsStored() {
			ag.AllStored = false
		}
	}
	for i := range out {
		parts := out[i].Parts
		out[i].Complete = !parts[0].SplitBefore && !parts[len(parts)-1].SplitAfter
	}
	return out
}

func (f *AggregatedFile) continues() bool {
	return len(f.Parts) > 0 && f.Parts[len(f.Parts)-1].SplitAfter
}

// VolumeFiles lists the fragments stored in one volume.
type VolumeFiles struct {
	Path  string
	Files []FileHeader
}

// ByVolume groups consecutive headers read from the same volume.
func ByVolume(headers []FileHeader) []VolumeFiles {
	var out []VolumeFiles
	for _, h := range headers {
		if n := len(out); n > 0 && out[n-1].Path == h.Volume {
			out[n-1].Files = append(out[n-1].Files, h)
			continue
		}
		out = append(out, VolumeFiles{Path: h.Volume, Files: []FileHeader{h}})
	}
	return out
}
