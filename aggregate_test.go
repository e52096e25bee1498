package rarstream

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javi11/rarstream/internal/native"
)

func fragment(name, vol string, packed uint64, flags uint32) FileHeader {
	return FileHeader{Filename: name, Volume: vol, PackedSize: packed, UnpackedSize: 100, Method: MethodStored, flags: flags}
}

func TestAggregate(t *testing.T) {
	headers := []FileHeader{
		fragment("lead.bin", "v1", 10, native.EntrySplitBefore),
		fragment("a.bin", "v1", 30, native.EntrySplitAfter),
		fragment("a.bin", "v2", 40, native.EntrySplitBefore|native.EntrySplitAfter),
		fragment("a.bin", "v3", 30, native.EntrySplitBefore),
		fragment("a.bin", "v3", 5, 0),
		fragment("tail.bin", "v3", 7, native.EntrySplitAfter|native.EntryEncrypted),
	}
	headers[3].FileCRC = 0xabcd
	headers[5].Method = MethodStored + 3

	files := Aggregate(headers)
	require.Len(t, files, 4)

	assert.Equal(t, "lead.bin", files[0].Name)
	assert.False(t, files[0].Complete)

	a := files[1]
	assert.Equal(t, "a.bin", a.Name)
	assert.Len(t, a.Parts, 3)
	assert.Equal(t, uint64(100), a.TotalPackedSize)
	assert.Equal(t, uint64(100), a.UnpackedSize)
	assert.Equal(t, uint32(0xabcd), a.CRC)
	assert.True(t, a.Complete)
	assert.True(t, a.AllStored)
	assert.Equal(t, []string{"v1", "v2", "v3"}, []string{a.Parts[0].Volume, a.Parts[1].Volume, a.Parts[2].Volume})

	// a new file with the same name starts its own group
	assert.Equal(t, "a.bin", files[2].Name)
	assert.Len(t, files[2].Parts, 1)

	tail := files[3]
	assert.False(t, tail.Complete)
	assert.True(t, tail.AnyEncrypted)
	assert.False(t, tail.AllStored)

	raw, err := json.Marshal(files[1])
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"totalPackedSize":100`)
}

func TestByVolume(t *testing.T) {
	vols := ByVolume([]FileHeader{
		fragment("a", "v1", 1, 0),
		fragment("b", "v1", 1, native.EntrySplitAfter),
		fragment("b", "v2", 1, native.EntrySplitBefore),
	})
	require.Len(t, vols, 2)
	assert.Equal(t, "v1", vols[0].Path)
	assert.Len(t, vols[0].Files, 2)
	assert.Equal(t, "v2", vols[1].Path)
	assert.Empty(t, ByVolume(nil))
}
