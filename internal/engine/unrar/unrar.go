//go:build unrar && cgo && unix

// Package unrar binds the native libunrar library to the engine boundary.
package unrar

/*
#cgo CFLAGS: -D_UNIX
#cgo LDFLAGS: -lunrar
#include <stdlib.h>
#include <wchar.h>
#include <unrar/dll.hpp>

extern int rarstreamCallback(unsigned int msg, long userData, long p1, long p2);

static int CALLBACK trampoline(UINT msg, LPARAM userData, LPARAM p1, LPARAM p2) {
	return rarstreamCallback(msg, userData, p1, p2);
}

static void setCallback(HANDLE h, long id) { RARSetCallback(h, trampoline, id); }

static void *ptrOf(long p) { return (void *)p; }
*/
import "C"

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"go.uber.org/zap"

	"github.com/javi11/rarstream/internal/native"
)

// C callbacks only carry an id; handles are looked up here.
var (
	seed    int64
	handles sync.Map
)

type Engine struct {
	log *zap.Logger
}

func New(log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{log: log.Named("unrar")}
}

func (e *Engine) OpenArchive(data *native.OpenArchiveData) native.Handle {
	name := C.CString(data.ArcName)
	defer C.free(unsafe.Pointer(name))

	var d C.struct_RAROpenArchiveDataEx
	d.ArcName = name
	d.OpenMode = C.uint(data.OpenMode)
	d.OpFlags = C.uint(data.OpFlags)

	p := C.RAROpenArchiveEx(&d)
	data.OpenResult = native.Status(d.OpenResult)
	data.Flags = uint32(d.Flags)
	e.log.Debug("open", zap.String("archive", data.ArcName), zap.Int32("status", int32(data.OpenResult)))
	if p == nil {
		return nil
	}

	h := &handle{id: atomic.AddInt64(&seed, 1), p: p, log: e.log}
	handles.Store(h.id, h)
	C.setCallback(p, C.long(h.id))
	return h
}

type handle struct {
	id  int64
	p   unsafe.Pointer
	cb  native.Callback
	log *zap.Logger
}

func (h *handle) ReadHeader(hd *native.HeaderData) native.Status {
	var c C.struct_RARHeaderDataEx
	st := native.Status(C.RARReadHeaderEx(h.p, &c))
	if st != native.Success {
		return st
	}
	for i := range hd.ArcName {
		hd.ArcName[i] = byte(c.ArcName[i])
		hd.ArcNameW[i] = native.Wchar(c.ArcNameW[i])
		hd.FileName[i] = byte(c.FileName[i])
		hd.FileNameW[i] = native.Wchar(c.FileNameW[i])
	}
	hd.Flags = uint32(c.Flags)
	hd.PackSize, hd.PackSizeHigh = uint32(c.PackSize), uint32(c.PackSizeHigh)
	hd.UnpSize, hd.UnpSizeHigh = uint32(c.UnpSize), uint32(c.UnpSizeHigh)
	hd.HostOS = uint32(c.HostOS)
	hd.FileCRC = uint32(c.FileCRC)
	hd.FileTime = uint32(c.FileTime)
	hd.UnpVer = uint32(c.UnpVer)
	hd.Method = uint32(c.Method)
	hd.FileAttr = uint32(c.FileAttr)
	hd.DictSize = uint32(c.DictSize)
	hd.MtimeLow, hd.MtimeHigh = uint32(c.MtimeLow), uint32(c.MtimeHigh)
	return st
}

// ProcessFile passes narrow paths: the wide entry points mangle non-ASCII
// names on Unix.
func (h *handle) ProcessFile(op native.Operation, destPath, destName string) native.Status {
	path, name := cString(destPath), cString(destName)
	defer C.free(unsafe.Pointer(path))
	defer C.free(unsafe.Pointer(name))
	return native.Status(C.RARProcessFile(h.p, C.int(op), path, name))
}

func (h *handle) SetCallback(cb native.Callback) { h.cb = cb }

func (h *handle) SetPassword(password []byte) {
	pw := C.CString(string(password))
	defer C.free(unsafe.Pointer(pw))
	C.RARSetPassword(h.p, pw)
}

func (h *handle) Close() native.Status {
	if h.p == nil {
		return native.EClose
	}
	st := native.Status(C.RARCloseArchive(h.p))
	handles.Delete(h.id)
	h.p = nil
	return st
}

// cString returns nil for "" so the library falls back to its defaults.
func cString(s string) *C.char {
	if s == "" {
		return nil
	}
	return C.CString(s)
}

func narrowAt(p C.long) string { return C.GoString((*C.char)(C.ptrOf(p))) }

func wideAt(p C.long) string {
	ws := (*C.wchar_t)(C.ptrOf(p))
	units := unsafe.Slice(ws, int(C.wcslen(ws)))
	r := make([]rune, len(units))
	for i, u := range units {
		r[i] = rune(u)
	}
	return string(r)
}

// dataAt exposes engine memory without copying.
func dataAt(p, n C.long) []byte {
	if n <= 0 {
		return nil
	}
	return unsafe.Slice((*byte)(C.ptrOf(p)), int(n))
}
