package rarstream

import (
	"errors"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/javi11/rarstream/internal/native"
)

// VolumeDecision tells the engine whether to go on after a volume request.
type VolumeDecision int

const (
	VolumeContinue VolumeDecision = iota
	VolumeAbort
)

// VolumeHandler is consulted whenever the engine moves to another volume.
// found is false when the volume does not exist; continuing then makes the
// engine look for it once more.
type VolumeHandler func(volume string, found bool) VolumeDecision

// DefaultVolumeHandler continues with volumes that exist and never waits
// for missing ones.
func DefaultVolumeHandler(_ string, found bool) VolumeDecision {
	if found {
		return VolumeContinue
	}
	return VolumeAbort
}

type Option func(*options) error

type options struct {
	logger  *zap.Logger
	fs      afero.Fs
	volumes VolumeHandler
	engine  native.Engine
}

func (o *options) setDefault() {
	*o = options{
		logger:  zap.NewNop(),
		volumes: DefaultVolumeHandler,
	}
}

func (o *options) apply(opts []Option) error {
	o.setDefault()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return err
		}
	}
	if o.engine == nil {
		o.engine = defaultEngine(o)
	}
	return nil
}

// WithLogger sets the logger used for session tracing.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) error {
		if l == nil {
			return errors.New("rarstream: nil logger")
		}
		o.logger = l
		return nil
	}
}

// WithFileSystem makes the engine read volumes and write extracted files
// through fs. Engines bound to the OS file system ignore it.
func WithFileSystem(fs afero.Fs) Option {
	return func(o *options) error { o.fs = fs; return nil }
}

// WithVolumeHandler replaces DefaultVolumeHandler.
func WithVolumeHandler(h VolumeHandler) Option {
	return func(o *options) error {
		if h == nil {
			return errors.New("rarstream: nil volume handler")
		}
		o.volumes = h
		return nil
	}
}

func withEngine(e native.Engine) Option {
	return func(o *options) error { o.engine = e; return nil }
}
