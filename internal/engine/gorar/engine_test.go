package gorar

import (
	"bytes"
	"hash/crc32"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/javi11/rarstream/internal/native"
	"github.com/javi11/rarstream/internal/rartest"
)

type recorder struct {
	volumes []native.Event
	data    bytes.Buffer
	chunks  int
	abort   bool
}

func (r *recorder) callback(ev native.Event) int {
	switch ev.Msg {
	case native.UCMChangeVolumeW:
		r.volumes = append(r.volumes, ev)
		if ev.VolumeMode == native.VolAsk {
			return native.CallbackAbort
		}
	case native.UCMProcessData:
		r.chunks++
		r.data.Write(ev.Data)
		if r.abort {
			return native.CallbackAbort
		}
	}
	return native.CallbackContinue
}

type entry struct {
	name  string
	flags uint32
	pack  uint64
	unp   uint64
	crc   uint32
}

func headerEntry(hd *native.HeaderData) entry {
	var name []rune
	for _, c := range hd.FileNameW {
		if c == 0 {
			break
		}
		name = append(name, rune(c))
	}
	return entry{
		name:  string(name),
		flags: hd.Flags,
		pack:  uint64(hd.PackSizeHigh)<<32 | uint64(hd.PackSize),
		unp:   uint64(hd.UnpSizeHigh)<<32 | uint64(hd.UnpSize),
		crc:   hd.FileCRC,
	}
}

func fixture(t *testing.T, a *rartest.Archive) (*Engine, afero.Fs, []string) {
	t.Helper()
	fs := afero.NewMemMapFs()
	names, err := a.Write(fs)
	require.NoError(t, err)
	return New(fs, zaptest.NewLogger(t)), fs, names
}

func open(t *testing.T, e *Engine, name string, mode native.OpenMode) (native.Handle, *native.OpenArchiveData) {
	t.Helper()
	data := &native.OpenArchiveData{ArcName: name, OpenMode: mode}
	h := e.OpenArchive(data)
	require.NotNil(t, h, "open status %d", data.OpenResult)
	require.Equal(t, native.Success, data.OpenResult)
	t.Cleanup(func() { h.Close() })
	return h, data
}

// walk reads every header and applies op, returning the entries seen and the
// first non-success status.
func walk(h native.Handle, op native.Operation) ([]entry, native.Status) {
	var out []entry
	for {
		var hd native.HeaderData
		if st := h.ReadHeader(&hd); st != native.Success {
			return out, st
		}
		out = append(out, headerEntry(&hd))
		if st := h.ProcessFile(op, "", ""); st != native.Success {
			return out, st
		}
	}
}

func names(es []entry) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.name
	}
	return out
}

var formats = []rartest.Format{rartest.RAR3, rartest.RAR5}

func TestListSingleVolume(t *testing.T) {
	for _, format := range formats {
		t.Run(format.String(), func(t *testing.T) {
			e, _, vols := fixture(t, &rartest.Archive{
				Format: format,
				Name:   "/data/single",
				Files: []rartest.File{
					{Name: "dir", Dir: true},
					{Name: "dir/a.txt", Data: []byte("alpha")},
					{Name: "b.bin", Data: bytes.Repeat([]byte{7}, 300)},
				},
			})
			h, data := open(t, e, vols[0], native.OMList)
			assert.Zero(t, data.Flags&native.ArchiveVolume)
			es, st := walk(h, native.OpSkip)
			require.Equal(t, native.EndArchive, st)
			assert.Equal(t, []string{"dir", "dir/a.txt", "b.bin"}, names(es))
			assert.NotZero(t, es[0].flags&native.EntryDirectory)
			assert.Equal(t, uint64(5), es[1].unp)
			assert.Equal(t, crc32.ChecksumIEEE([]byte("alpha")), es[1].crc)
			assert.Equal(t, uint64(300), es[2].pack)
		})
	}
}

func TestArchiveFlags(t *testing.T) {
	for _, format := range formats {
		t.Run(format.String(), func(t *testing.T) {
			e, _, vols := fixture(t, &rartest.Archive{
				Format: format, Name: "flags", Solid: true, Locked: true, Recovery: true, Comment: "hi",
				Files: []rartest.File{{Name: "x", Data: []byte("x")}},
			})
			for _, mode := range []native.OpenMode{native.OMList, native.OMListIncSplit, native.OMExtract} {
				_, data := open(t, e, vols[0], mode)
				for _, f := range []uint32{native.ArchiveSolid, native.ArchiveLock, native.ArchiveRecovery, native.ArchiveComment} {
					assert.NotZero(t, data.Flags&f, "mode %s flag %#x", mode, f)
				}
				assert.Zero(t, data.Flags&native.ArchiveEncHeaders)
			}
		})
	}
}

func TestProcessStreamsStoredData(t *testing.T) {
	payload := bytes.Repeat([]byte("0123456789"), 20000) // spans several chunks
	for _, format := range formats {
		t.Run(format.String(), func(t *testing.T) {
			e, _, vols := fixture(t, &rartest.Archive{
				Format: format, Name: "stream",
				Files: []rartest.File{{Name: "big.txt", Data: payload}},
			})
			h, _ := open(t, e, vols[0], native.OMExtract)
			rec := &recorder{}
			h.SetCallback(rec.callback)
			var hd native.HeaderData
			require.Equal(t, native.Success, h.ReadHeader(&hd))
			require.Equal(t, native.Success, h.ProcessFile(native.OpTest, "", ""))
			assert.Equal(t, payload, rec.data.Bytes())
			assert.Greater(t, rec.chunks, 1)
			assert.Equal(t, native.EndArchive, h.ReadHeader(&hd))
		})
	}
}

func TestProcessDetectsBadCRC(t *testing.T) {
	e, _, vols := fixture(t, &rartest.Archive{
		Format: rartest.RAR5, Name: "crc",
		Files: []rartest.File{{Name: "bad.txt", Data: []byte("payload"), BadCRC: true}},
	})
	h, _ := open(t, e, vols[0], native.OMExtract)
	var hd native.HeaderData
	require.Equal(t, native.Success, h.ReadHeader(&hd))
	assert.Equal(t, native.BadData, h.ProcessFile(native.OpTest, "", ""))
}

func TestProcessCallbackAbort(t *testing.T) {
	e, _, vols := fixture(t, &rartest.Archive{
		Format: rartest.RAR3, Name: "abort",
		Files: []rartest.File{{Name: "a", Data: []byte("abc")}},
	})
	h, _ := open(t, e, vols[0], native.OMExtract)
	h.SetCallback((&recorder{abort: true}).callback)
	var hd native.HeaderData
	require.Equal(t, native.Success, h.ReadHeader(&hd))
	assert.Equal(t, native.Unknown, h.ProcessFile(native.OpTest, "", ""))
}

func TestExtractWritesFiles(t *testing.T) {
	e, fs, vols := fixture(t, &rartest.Archive{
		Format: rartest.RAR5, Name: "/arc/x",
		Files: []rartest.File{
			{Name: "sub", Dir: true},
			{Name: "sub/file.txt", Data: []byte("content")},
			{Name: "named.txt", Data: []byte("renamed")},
		},
	})
	h, _ := open(t, e, vols[0], native.OMExtract)
	var hd native.HeaderData
	require.Equal(t, native.Success, h.ReadHeader(&hd))
	require.Equal(t, native.Success, h.ProcessFile(native.OpExtract, "/out", ""))
	require.Equal(t, native.Success, h.ReadHeader(&hd))
	require.Equal(t, native.Success, h.ProcessFile(native.OpExtract, "/out", ""))
	require.Equal(t, native.Success, h.ReadHeader(&hd))
	require.Equal(t, native.Success, h.ProcessFile(native.OpExtract, "", "/elsewhere/target.txt"))

	isDir, err := afero.IsDir(fs, "/out/sub")
	require.NoError(t, err)
	assert.True(t, isDir)
	got, err := afero.ReadFile(fs, "/out/sub/file.txt")
	require.NoError(t, err)
	assert.Equal(t, "content", string(got))
	got, err = afero.ReadFile(fs, "/elsewhere/target.txt")
	require.NoError(t, err)
	assert.Equal(t, "renamed", string(got))
}

func multiVolume(format rartest.Format) *rartest.Archive {
	return &rartest.Archive{
		Format:     format,
		Name:       "data/archive",
		VolumeSize: 40,
		Files: []rartest.File{
			{Name: "first.txt", Data: bytes.Repeat([]byte("a"), 10)},
			{Name: "split.txt", Data: bytes.Repeat([]byte("b"), 70)},
			{Name: "last.txt", Data: bytes.Repeat([]byte("c"), 5)},
		},
	}
}

func TestListMergesSplitFiles(t *testing.T) {
	for _, format := range formats {
		t.Run(format.String(), func(t *testing.T) {
			e, _, vols := fixture(t, multiVolume(format))
			require.Len(t, vols, 3)
			h, data := open(t, e, vols[0], native.OMList)
			assert.NotZero(t, data.Flags&native.ArchiveVolume)
			assert.NotZero(t, data.Flags&native.ArchiveFirstVolume)
			es, st := walk(h, native.OpSkip)
			require.Equal(t, native.EndArchive, st)
			assert.Equal(t, []string{"first.txt", "split.txt", "last.txt"}, names(es))
			assert.NotZero(t, es[1].flags&native.EntrySplitAfter)
			assert.Equal(t, uint64(70), es[1].unp)
		})
	}
}

func TestListIncSplitYieldsFragments(t *testing.T) {
	for _, format := range formats {
		t.Run(format.String(), func(t *testing.T) {
			e, _, vols := fixture(t, multiVolume(format))
			h, _ := open(t, e, vols[0], native.OMListIncSplit)
			es, st := walk(h, native.OpSkip)
			require.Equal(t, native.EndArchive, st)
			assert.Equal(t, []string{"first.txt", "split.txt", "split.txt", "last.txt"}, names(es))
			split := native.EntrySplitBefore | native.EntrySplitAfter
			assert.Equal(t, native.EntrySplitAfter, es[1].flags&split)
			assert.Equal(t, native.EntrySplitBefore, es[2].flags&split)
			assert.Equal(t, uint64(30), es[1].pack)
			assert.Equal(t, uint64(40), es[2].pack)
		})
	}
}

func TestProcessAcrossVolumes(t *testing.T) {
	for _, format := range formats {
		t.Run(format.String(), func(t *testing.T) {
			e, _, vols := fixture(t, multiVolume(format))
			h, _ := open(t, e, vols[0], native.OMExtract)
			rec := &recorder{}
			h.SetCallback(rec.callback)
			es, st := walk(h, native.OpTest)
			require.Equal(t, native.EndArchive, st)
			assert.Equal(t, []string{"first.txt", "split.txt", "last.txt"}, names(es))
			want := string(bytes.Repeat([]byte("a"), 10)) + string(bytes.Repeat([]byte("b"), 70)) + "ccccc"
			assert.Equal(t, want, rec.data.String())
			require.Len(t, rec.volumes, 2)
			assert.Equal(t, "data/archive.part2.rar", rec.volumes[0].Volume)
			assert.Equal(t, native.VolNotify, rec.volumes[0].VolumeMode)
		})
	}
}

func TestMissingNextVolume(t *testing.T) {
	for _, format := range formats {
		t.Run(format.String(), func(t *testing.T) {
			e, fs, vols := fixture(t, multiVolume(format))
			require.NoError(t, fs.Remove(vols[1]))
			for _, mode := range []native.OpenMode{native.OMList, native.OMExtract} {
				h, _ := open(t, e, vols[0], mode)
				rec := &recorder{}
				h.SetCallback(rec.callback)
				op := native.OpSkip
				if mode == native.OMExtract {
					op = native.OpTest
				}
				es, st := walk(h, op)
				assert.Equal(t, native.EOpen, st, "mode %s", mode)
				assert.Equal(t, []string{"first.txt", "split.txt"}, names(es))
				require.NotEmpty(t, rec.volumes)
				last := rec.volumes[len(rec.volumes)-1]
				assert.Equal(t, "data/archive.part2.rar", last.Volume)
				assert.Equal(t, native.VolAsk, last.VolumeMode)
			}
		})
	}
}

func TestOldNumberingVolumes(t *testing.T) {
	a := multiVolume(rartest.RAR3)
	a.OldNumbering = true
	e, _, vols := fixture(t, a)
	assert.Equal(t, []string{"data/archive.rar", "data/archive.r00", "data/archive.r01"}, vols)
	h, data := open(t, e, vols[0], native.OMList)
	assert.Zero(t, data.Flags&native.ArchiveNewNumbering)
	es, st := walk(h, native.OpSkip)
	require.Equal(t, native.EndArchive, st)
	assert.Len(t, es, 3)
}

func TestEncryptedEntryNeedsPassword(t *testing.T) {
	for _, format := range formats {
		t.Run(format.String(), func(t *testing.T) {
			e, _, vols := fixture(t, &rartest.Archive{
				Format: format, Name: "crypted",
				Files: []rartest.File{{Name: "secret.txt", Data: []byte("hidden"), Encrypted: true}},
			})
			h, _ := open(t, e, vols[0], native.OMList)
			es, st := walk(h, native.OpSkip)
			require.Equal(t, native.EndArchive, st)
			require.Len(t, es, 1)
			assert.NotZero(t, es[0].flags&native.EntryEncrypted)

			h, _ = open(t, e, vols[0], native.OMExtract)
			var hd native.HeaderData
			require.Equal(t, native.Success, h.ReadHeader(&hd))
			assert.Equal(t, native.MissingPassword, h.ProcessFile(native.OpTest, "", ""))
		})
	}
}

func TestEncryptedHeadersNeedPassword(t *testing.T) {
	for _, format := range formats {
		t.Run(format.String(), func(t *testing.T) {
			e, _, vols := fixture(t, &rartest.Archive{
				Format: format, Name: "headers", EncryptedHeaders: true,
				Files: []rartest.File{{Name: "a", Data: []byte("a")}},
			})
			h, data := open(t, e, vols[0], native.OMList)
			assert.NotZero(t, data.Flags&native.ArchiveEncHeaders)
			var hd native.HeaderData
			assert.Equal(t, native.MissingPassword, h.ReadHeader(&hd))
		})
	}
}

func TestOpenFailures(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "plain.txt", []byte("just some text, not an archive"), 0o644))
	a := &rartest.Archive{Format: rartest.RAR5, Name: "unknown", EncryptedHeaders: true, EncryptionVersion: 7}
	_, err := a.Write(fs)
	require.NoError(t, err)
	e := New(fs, nil)

	for name, want := range map[string]native.Status{
		"missing.rar": native.EOpen,
		"plain.txt":   native.BadArchive,
		"unknown.rar": native.UnknownFormat,
	} {
		data := &native.OpenArchiveData{ArcName: name}
		assert.Nil(t, e.OpenArchive(data), name)
		assert.Equal(t, want, data.OpenResult, name)
	}
}

func TestDamagedMainHeaderStillUsable(t *testing.T) {
	for _, format := range formats {
		t.Run(format.String(), func(t *testing.T) {
			e, _, vols := fixture(t, &rartest.Archive{
				Format: format, Name: "broken", BadMainCRC: true,
				Files: []rartest.File{{Name: "ok.txt", Data: []byte("fine")}},
			})
			data := &native.OpenArchiveData{ArcName: vols[0], OpenMode: native.OMList}
			h := e.OpenArchive(data)
			require.NotNil(t, h)
			defer h.Close()
			assert.Equal(t, native.BadData, data.OpenResult)
			es, st := walk(h, native.OpSkip)
			assert.Equal(t, native.EndArchive, st)
			assert.Equal(t, []string{"ok.txt"}, names(es))
		})
	}
}

func TestDamagedFileHeader(t *testing.T) {
	e, _, vols := fixture(t, &rartest.Archive{
		Format: rartest.RAR3, Name: "hdr",
		Files: []rartest.File{
			{Name: "good.txt", Data: []byte("1")},
			{Name: "bad.txt", Data: []byte("2"), BadHeaderCRC: true},
		},
	})
	h, _ := open(t, e, vols[0], native.OMList)
	es, st := walk(h, native.OpSkip)
	assert.Equal(t, native.BadData, st)
	assert.Equal(t, []string{"good.txt"}, names(es))
}

func TestProtocolMisuse(t *testing.T) {
	e, _, vols := fixture(t, &rartest.Archive{
		Format: rartest.RAR5, Name: "proto",
		Files:  []rartest.File{{Name: "a", Data: []byte("a")}, {Name: "b", Data: []byte("b")}},
	})
	h, _ := open(t, e, vols[0], native.OMExtract)
	assert.Equal(t, native.Unknown, h.ProcessFile(native.OpTest, "", ""))
	var hd native.HeaderData
	require.Equal(t, native.Success, h.ReadHeader(&hd))
	// a second read skips the unprocessed entry
	require.Equal(t, native.Success, h.ReadHeader(&hd))
	assert.Equal(t, "b", headerEntry(&hd).name)
	assert.Equal(t, native.Success, h.Close())
	assert.Equal(t, native.Success, h.Close())
	assert.Equal(t, native.Unknown, h.ReadHeader(&hd))
}
