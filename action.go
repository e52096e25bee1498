package rarstream

import (
	"go.uber.org/zap"

	"github.com/javi11/rarstream/internal/native"
)

// payloadAction is one way of consuming an entry payload: the engine
// operation it runs and how streamed chunks fold into its result.
type payloadAction[T any] interface {
	operation() native.Operation
	fold(acc *T, chunk []byte)
}

type skipAction struct{}

func (skipAction) operation() native.Operation { return native.OpSkip }
func (skipAction) fold(*struct{}, []byte)      {}

type testAction struct{}

func (testAction) operation() native.Operation { return native.OpTest }
func (testAction) fold(*struct{}, []byte)      {}

// extractAction lets the engine write the payload itself.
type extractAction struct{}

func (extractAction) operation() native.Operation { return native.OpExtract }
func (extractAction) fold(*struct{}, []byte)      {}

// readAction copies chunks out of engine memory into a buffer.
type readAction struct{ sizeHint uint64 }

func (readAction) operation() native.Operation { return native.OpTest }

func (a readAction) fold(acc *[]byte, chunk []byte) {
	if *acc == nil && a.sizeHint > 0 && a.sizeHint <= maxPrealloc {
		*acc = make([]byte, 0, a.sizeHint)
	}
	*acc = append(*acc, chunk...)
}

const maxPrealloc = 64 << 20

// runAction processes the current entry with a. Any volume the engine asked
// for is attached to the error.
func runAction[T any](s *session, a payloadAction[T], file, destPath, destName string) (T, error) {
	var (
		acc  T
		next string
	)
	s.h.SetCallback(s.callback(&next, func(chunk []byte) { a.fold(&acc, chunk) }))
	defer s.h.SetCallback(nil)

	op := a.operation()
	if st := s.h.ProcessFile(op, destPath, destName); st != native.Success {
		var zero T
		err := ProcessError{Code: codeFor(st, phaseProcess), File: file, NextVolume: next}
		s.log.Debug("process failed",
			zap.String("file", file),
			zap.Stringer("op", op),
			zap.Int32("status", int32(st)),
			zap.Error(err))
		return zero, err
	}
	s.log.Debug("processed", zap.String("file", file), zap.Stringer("op", op))
	return acc, nil
}
