//go:build unrar && cgo && unix

package unrar

import "C"

import "github.com/javi11/rarstream/internal/native"

//export rarstreamCallback
func rarstreamCallback(msg C.uint, userData, p1, p2 C.long) C.int {
	v, ok := handles.Load(int64(userData))
	if !ok {
		return native.CallbackAbort
	}
	h := v.(*handle)

	ev := native.Event{Msg: native.Message(msg)}
	switch ev.Msg {
	case native.UCMChangeVolume:
		ev.Volume, ev.VolumeMode = narrowAt(p1), int(p2)
	case native.UCMChangeVolumeW:
		ev.Volume, ev.VolumeMode = wideAt(p1), int(p2)
	case native.UCMProcessData:
		ev.Data = dataAt(p1, p2)
	}
	if h.cb == nil {
		if ev.VolumeMode == native.VolAsk && (ev.Msg == native.UCMChangeVolume || ev.Msg == native.UCMChangeVolumeW) {
			return native.CallbackAbort
		}
		return native.CallbackContinue
	}
	return C.int(h.cb(ev))
}
