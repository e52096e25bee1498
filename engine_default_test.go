//go:build !unrar || !cgo || !unix

package rarstream

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javi11/rarstream/internal/rartest"
)

func TestDefaultEngineUsesFileSystem(t *testing.T) {
	fs := afero.NewMemMapFs()
	vols, err := (&rartest.Archive{
		Format: rartest.RAR5,
		Name:   "mem/only",
		Files:  []rartest.File{{Name: "hello.txt", Data: []byte("hello")}},
	}).Write(fs)
	require.NoError(t, err)

	log, _ := observed()
	data, err := New(vols[0], WithFileSystem(fs), WithLogger(log)).ReadBytes("hello.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)
}
