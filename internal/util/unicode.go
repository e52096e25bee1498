package util

import (
	"encoding/binary"

	"golang.org/x/text/encoding/unicode"
)

// DecodeRar3Unicode rebuilds a RAR3 file name stored with the LHD_UNICODE
// flag. asciiPart is the name before the NUL separator, encoded is the packed
// UTF-16 form that follows it. The first encoded byte is the shared high
// byte, followed by flag bytes holding four 2-bit opcodes each.
//
// Malformed input never panics; whatever was decoded so far is returned and
// an empty result falls back to the ASCII part.
func DecodeRar3Unicode(asciiPart, encoded []byte) string {
	if len(encoded) == 0 {
		return string(asciiPart)
	}
	units := make([]uint16, 0, len(asciiPart))
	pos := 0
	highByte := uint16(encoded[pos])
	pos++
	var flags byte
	flagBits := 0
	for pos < len(encoded) {
		if flagBits == 0 {
			flags = encoded[pos]
			pos++
			flagBits = 8
			if pos >= len(encoded) {
				break
			}
		}
		switch flags >> 6 {
		case 0:
			units = append(units, uint16(encoded[pos]))
			pos++
		case 1:
			units = append(units, uint16(encoded[pos])|highByte<<8)
			pos++
		case 2:
			if pos+1 >= len(encoded) {
				pos = len(encoded)
				break
			}
			units = append(units, binary.LittleEndian.Uint16(encoded[pos:]))
			pos += 2
		case 3:
			length := int(encoded[pos])
			pos++
			if length&0x80 != 0 {
				if pos >= len(encoded) {
					break
				}
				correction := encoded[pos]
				pos++
				for n := length&0x7f + 2; n > 0 && len(units) < len(asciiPart); n-- {
					units = append(units, uint16(asciiPart[len(units)]+correction)|highByte<<8)
				}
			} else {
				for n := length + 2; n > 0 && len(units) < len(asciiPart); n-- {
					units = append(units, uint16(asciiPart[len(units)]))
				}
			}
		}
		flags <<= 2
		flagBits -= 2
	}
	if len(units) == 0 {
		return string(asciiPart)
	}
	return DecodeUTF16(units)
}

// DecodeUTF16 converts UTF-16 code units to a string. Unpaired surrogates
// become U+FFFD.
func DecodeUTF16(units []uint16) string {
	raw := make([]byte, 2*len(units))
	for i, u := range units {
		binary.LittleEndian.PutUint16(raw[2*i:], u)
	}
	out, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(out)
}
