//go:build !unrar || !cgo || !unix

package rarstream

import (
	"github.com/javi11/rarstream/internal/engine/gorar"
	"github.com/javi11/rarstream/internal/native"
)

func defaultEngine(o *options) native.Engine {
	return gorar.New(o.fs, o.logger)
}
