// Package enginetest provides a scripted in-memory engine for exercising the
// session layer without real archives. Every handle records protocol
// violations so tests can assert the session never drives the engine out of
// order.
package enginetest

import (
	"fmt"
	"sync"

	"github.com/javi11/rarstream/internal/native"
)

// Entry is one scripted header and its payload behaviour.
type Entry struct {
	Name   string
	Flags  uint32
	Size   uint64
	Packed uint64
	CRC    uint32
	Time   uint32
	Method uint32
	Attr   uint32
	HostOS uint32
	Volume string

	// Data is delivered through UCMProcessData for Test and Extract.
	Data []byte
	// Chunk splits Data into several callbacks; zero sends it at once.
	Chunk int
	// Password is required to test or extract the entry.
	Password string

	// HeaderStatus replaces this header with an error.
	HeaderStatus native.Status
	// ProcessStatus is returned by Test and Extract after the payload.
	ProcessStatus native.Status
	// SkipStatus is returned by Skip.
	SkipStatus native.Status
	// NextVolume is announced through UCMChangeVolumeW while the payload is
	// processed; VolumeMissing announces it with VolAsk and fails with EOpen.
	NextVolume    string
	VolumeMissing bool
}

// Archive is a scripted archive.
type Archive struct {
	Name       string
	Flags      uint32
	OpenStatus native.Status
	// Usable returns a handle even when OpenStatus is not Success.
	Usable         bool
	Entries        []Entry
	HeaderPassword string
	CloseStatus    native.Status
}

// Call records one ProcessFile invocation.
type Call struct {
	Op       native.Operation
	Entry    string
	DestPath string
	DestName string
}

// Engine serves scripted archives by name.
type Engine struct {
	mu       sync.Mutex
	archives map[string]*Archive
	handles  []*Handle
}

func New(archives ...*Archive) *Engine {
	e := &Engine{archives: make(map[string]*Archive)}
	for _, a := range archives {
		e.archives[a.Name] = a
	}
	return e
}

// Handles returns every handle opened so far.
func (e *Engine) Handles() []*Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Handle(nil), e.handles...)
}

// Last returns the most recently opened handle, or nil.
func (e *Engine) Last() *Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.handles) == 0 {
		return nil
	}
	return e.handles[len(e.handles)-1]
}

func (e *Engine) OpenArchive(data *native.OpenArchiveData) native.Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, ok := e.archives[data.ArcName]
	if !ok {
		data.OpenResult = native.EOpen
		return nil
	}
	data.OpenResult = a.OpenStatus
	data.Flags = a.Flags
	if a.OpenStatus != native.Success && !a.Usable {
		return nil
	}
	h := &Handle{arc: a, mode: data.OpenMode}
	e.handles = append(e.handles, h)
	return h
}

// Handle is a scripted open archive.
type Handle struct {
	mu          sync.Mutex
	arc         *Archive
	mode        native.OpenMode
	pos         int
	cur         *Entry
	cb          native.Callback
	password    []byte
	hasPassword bool
	closes      int
	violations  []string
	calls       []Call
}

func (h *Handle) violate(format string, args ...any) {
	h.violations = append(h.violations, fmt.Sprintf(format, args...))
}

func (h *Handle) SetCallback(cb native.Callback) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cb = cb
}

func (h *Handle) SetPassword(password []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.password = append([]byte(nil), password...)
	h.hasPassword = true
}

func (h *Handle) ReadHeader(hd *native.HeaderData) native.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closes > 0 {
		h.violate("ReadHeader after Close")
		return native.Unknown
	}
	if h.cur != nil {
		h.violate("ReadHeader with %q unprocessed", h.cur.Name)
		h.cur = nil
	}
	if h.arc.HeaderPassword != "" {
		if !h.hasPassword {
			return native.MissingPassword
		}
		if string(h.password) != h.arc.HeaderPassword {
			return native.BadPassword
		}
	}
	for {
		if h.pos >= len(h.arc.Entries) {
			return native.EndArchive
		}
		e := &h.arc.Entries[h.pos]
		h.pos++
		if e.HeaderStatus != native.Success {
			return e.HeaderStatus
		}
		if h.mode == native.OMList && e.Flags&native.EntrySplitBefore != 0 {
			continue
		}
		h.cur = e
		fill(hd, e, h.arc.Name)
		return native.Success
	}
}

func fill(hd *native.HeaderData, e *Entry, arcName string) {
	*hd = native.HeaderData{}
	vol := e.Volume
	if vol == "" {
		vol = arcName
	}
	native.PutNarrow(hd.ArcName[:], vol)
	native.PutWide(hd.ArcNameW[:], vol)
	native.PutNarrow(hd.FileName[:], e.Name)
	native.PutWide(hd.FileNameW[:], e.Name)
	hd.Flags = e.Flags
	hd.UnpSize, hd.UnpSizeHigh = native.SplitSize(e.Size)
	hd.PackSize, hd.PackSizeHigh = native.SplitSize(e.Packed)
	hd.FileCRC = e.CRC
	hd.FileTime = e.Time
	hd.Method = e.Method
	hd.FileAttr = e.Attr
	hd.HostOS = e.HostOS
}

func (h *Handle) ProcessFile(op native.Operation, destPath, destName string) native.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closes > 0 {
		h.violate("ProcessFile after Close")
		return native.Unknown
	}
	e := h.cur
	if e == nil {
		h.violate("ProcessFile(%s) without a header", op)
		return native.Unknown
	}
	h.cur = nil
	h.calls = append(h.calls, Call{Op: op, Entry: e.Name, DestPath: destPath, DestName: destName})
	if h.mode != native.OMExtract {
		op = native.OpSkip
	}
	if e.NextVolume != "" {
		mode := native.VolNotify
		if e.VolumeMissing {
			mode = native.VolAsk
		}
		if h.emit(native.Event{Msg: native.UCMChangeVolumeW, Volume: e.NextVolume, VolumeMode: mode}) == native.CallbackAbort || e.VolumeMissing {
			return native.EOpen
		}
	}
	if op == native.OpSkip {
		return e.SkipStatus
	}
	if e.Password != "" {
		if !h.hasPassword {
			return native.MissingPassword
		}
		if string(h.password) != e.Password {
			return native.BadPassword
		}
	}
	if st := h.deliver(e); st != native.Success {
		return st
	}
	return e.ProcessStatus
}

// deliver streams e.Data through a scratch buffer that is clobbered after
// every callback, so consumers that retain Data see garbage.
func (h *Handle) deliver(e *Entry) native.Status {
	chunk := e.Chunk
	if chunk <= 0 {
		chunk = max(len(e.Data), 1)
	}
	buf := make([]byte, chunk)
	for rest := e.Data; len(rest) > 0; {
		n := copy(buf, rest)
		rest = rest[n:]
		res := h.emit(native.Event{Msg: native.UCMProcessData, Data: buf[:n]})
		for i := range buf {
			buf[i] = 0xee
		}
		if res == native.CallbackAbort {
			return native.Unknown
		}
	}
	return native.Success
}

func (h *Handle) emit(ev native.Event) int {
	if h.cb == nil {
		if ev.Msg == native.UCMChangeVolumeW && ev.VolumeMode == native.VolAsk {
			return native.CallbackAbort
		}
		return native.CallbackContinue
	}
	return h.cb(ev)
}

func (h *Handle) Close() native.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closes++
	if h.closes > 1 {
		h.violate("Close called %d times", h.closes)
	}
	return h.arc.CloseStatus
}

// Closed reports whether Close was called.
func (h *Handle) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closes > 0
}

// CloseCount is the number of Close calls.
func (h *Handle) CloseCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closes
}

// Violations lists protocol misuse seen by the handle.
func (h *Handle) Violations() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.violations...)
}

// Calls lists the ProcessFile invocations in order.
func (h *Handle) Calls() []Call {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Call(nil), h.calls...)
}

// Mode is the mode the handle was opened with.
func (h *Handle) Mode() native.OpenMode { return h.mode }

// Password returns the password set on the handle, if any.
func (h *Handle) Password() ([]byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.password, h.hasPassword
}

// CallbackActive reports whether a callback is currently registered.
func (h *Handle) CallbackActive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cb != nil
}
