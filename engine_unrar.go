//go:build unrar && cgo && unix

package rarstream

import (
	"github.com/javi11/rarstream/internal/engine/unrar"
	"github.com/javi11/rarstream/internal/native"
)

func defaultEngine(o *options) native.Engine {
	if o.fs != nil {
		o.logger.Warn("libunrar reads the OS file system; WithFileSystem is ignored")
	}
	return unrar.New(o.logger)
}
