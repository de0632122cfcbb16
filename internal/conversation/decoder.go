package conversation

import (
	"strings"
	"unicode/utf8"
)

// Decoder turns a sequence of byte chunks into text. A multi-byte character
// split across two chunks is held back until its remaining bytes arrive.
// Invalid sequences are replaced with U+FFFD.
type Decoder struct {
	pending []byte
}

// Decode returns the text that is complete after appending chunk.
func (d *Decoder) Decode(chunk []byte) string {
	buf := append(d.pending, chunk...)
	cut := incompleteTail(buf)
	d.pending = append([]byte(nil), buf[cut:]...)
	return strings.ToValidUTF8(string(buf[:cut]), string(utf8.RuneError))
}

// Flush returns whatever is still held back. An unfinished sequence at the
// end of the stream is reported as U+FFFD.
func (d *Decoder) Flush() string {
	if len(d.pending) == 0 {
		return ""
	}
	d.pending = nil
	return string(utf8.RuneError)
}

// Reset drops any held bytes.
func (d *Decoder) Reset() {
	d.pending = nil
}

// incompleteTail returns the index where a trailing, not yet complete UTF-8
// sequence starts, or len(b) when the buffer ends on a rune boundary.
func incompleteTail(b []byte) int {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax+1; i-- {
		if utf8.RuneStart(b[i]) {
			if b[i] < utf8.RuneSelf || utf8.FullRune(b[i:]) {
				return len(b)
			}
			return i
		}
	}
	return len(b)
}
