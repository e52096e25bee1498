package rarstream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javi11/rarstream/internal/enginetest"
)

func TestOptionsDefaults(t *testing.T) {
	e := enginetest.New()
	var o options
	require.NoError(t, o.apply([]Option{withEngine(e)}))
	assert.NotNil(t, o.logger)
	assert.Nil(t, o.fs)
	assert.Equal(t, VolumeContinue, o.volumes("next.rar", true))
	assert.Equal(t, VolumeAbort, o.volumes("next.rar", false))
	assert.Same(t, e, o.engine)
}

func TestOptionsReject(t *testing.T) {
	var o options
	assert.Error(t, o.apply([]Option{WithLogger(nil)}))
	assert.Error(t, o.apply([]Option{WithVolumeHandler(nil)}))
}

func TestVolumeInfoString(t *testing.T) {
	assert.Equal(t, "none", VolumeNone.String())
	assert.Equal(t, "first", VolumeFirst.String())
	assert.Equal(t, "subsequent", VolumeSubsequent.String())
}
