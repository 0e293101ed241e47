package classfile

import "unicode/utf8"

// decodeMUTF8 converts modified UTF-8 into a Go string. NUL encoded as
// C0 80 becomes a zero byte and surrogate pairs become a single rune.
// Unpaired surrogates are kept in their three-byte form so that
// encodeMUTF8 reproduces the input exactly.
func decodeMUTF8(b []byte) string {
	plain := true
	for _, c := range b {
		if c == 0xC0 || c == 0xED {
			plain = false
			break
		}
	}
	if plain {
		return string(b)
	}

	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c == 0xC0 && i+1 < len(b) && b[i+1] == 0x80:
			out = append(out, 0)
			i += 2
		case c == 0xED && i+5 < len(b) &&
			b[i+1]&0xF0 == 0xA0 && b[i+3] == 0xED && b[i+4]&0xF0 == 0xB0:
			hi := rune(b[i+1]&0x0F)<<6 | rune(b[i+2]&0x3F)
			lo := rune(b[i+4]&0x0F)<<6 | rune(b[i+5]&0x3F)
			out = utf8.AppendRune(out, 0x10000+(hi<<10|lo))
			i += 6
		default:
			out = append(out, c)
			i++
		}
	}
	return string(out)
}

// encodeMUTF8 is the inverse of decodeMUTF8.
func encodeMUTF8(s string) []byte {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == 0:
			out = append(out, 0xC0, 0x80)
			i++
		case c >= 0xF0:
			r, n := utf8.DecodeRuneInString(s[i:])
			if r == utf8.RuneError || n != 4 {
				out = append(out, c)
				i++
				continue
			}
			r -= 0x10000
			hi := 0xD800 + (r >> 10)
			lo := 0xDC00 + (r & 0x3FF)
			out = append(out,
				0xED, byte(0xA0|(hi>>6)&0x0F), byte(0x80|hi&0x3F),
				0xED, byte(0xB0|(lo>>6)&0x0F), byte(0x80|lo&0x3F))
			i += 4
		default:
			out = append(out, c)
			i++
		}
	}
	return out
}
