package rarstream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultipartNames(t *testing.T) {
	cases := []struct {
		name  string
		glob  string
		first string
	}{
		{"arc.part0010.rar", "arc.part????.rar", "arc.part0001.rar"},
		{"archive.r100", "archive.r???", "archive.r001"},
		{"archive.r9", "archive.r?", "archive.r1"},
		{"archive.999", "archive.???", "archive.001"},
		{"path/some.004.rar", "path/some.???.rar", "path/some.001.rar"},
		{"my.archive.part2.rar", "my.archive.part?.rar", "my.archive.part1.rar"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := New(tc.name)
			assert.True(t, a.IsMultipart())
			assert.True(t, a.IsArchive())
			assert.Equal(t, tc.glob, a.AllParts())
			assert.Equal(t, tc.first, a.FirstPart())
			g, ok := a.AllPartsOption()
			assert.True(t, ok)
			assert.Equal(t, tc.glob, g)
			f, ok := a.FirstPartOption()
			assert.True(t, ok)
			assert.Equal(t, tc.first, f)
		})
	}
}

func TestSinglePartNamesUnchanged(t *testing.T) {
	for _, name := range []string{"archive.rar", "random_string", "v8/v8.rar", "v8/v8", ".rar"} {
		t.Run(name, func(t *testing.T) {
			a := New(name)
			assert.False(t, a.IsMultipart())
			assert.Equal(t, name, a.AllParts())
			assert.Equal(t, name, a.FirstPart())
			_, ok := a.AllPartsOption()
			assert.False(t, ok)
			_, ok = a.FirstPartOption()
			assert.False(t, ok)
			_, ok = a.NthPart(3)
			assert.False(t, ok)
		})
	}
}

func TestNthPart(t *testing.T) {
	p, ok := New("path/my.archive.part01.rar").NthPart(42)
	require.True(t, ok)
	assert.Equal(t, "path/my.archive.part42.rar", p)

	p, ok = New("backup.r05").NthPart(7)
	require.True(t, ok)
	assert.Equal(t, "backup.r07", p)

	// wider numbers are not truncated
	p, ok = New("a.part1.rar").NthPart(12)
	require.True(t, ok)
	assert.Equal(t, "a.part12.rar", p)
}

func TestIsArchive(t *testing.T) {
	for name, want := range map[string]bool{
		"archive.rar":         true,
		"archive.part1.rar":   true,
		"archive.part100.rar": true,
		"archive.r10":         true,
		"arch\x00ive.rar":     true,
		"archive.part1rar":    false,
		"archive.rar\n":       false,
		"archive.zip":         false,
		"archive":             false,
	} {
		assert.Equal(t, want, IsArchive(name), "%q", name)
	}
}

func TestAsFirstPart(t *testing.T) {
	a := NewWithPassword("vol/x.part3.rar", []byte("pw"))
	first := a.AsFirstPart()
	assert.Equal(t, "vol/x.part1.rar", first.Filename())
	assert.Equal(t, "vol/x.part3.rar", a.Filename())
	assert.Equal(t, []byte("pw"), first.password)
	assert.True(t, first.hasPassword)
}
