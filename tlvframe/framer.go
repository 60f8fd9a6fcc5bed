package tlvframe

// Framer recovers candidate frames from a byte stream fed one byte at a
// time. A start sentinel always discards any open frame and begins a new one.
// An end sentinel closes the open frame only once the buffer holds at least
// MinFrameLen bytes and at least the total announced by the length byte, so
// 0x55 inside a payload does not cut a frame short.
//
// The zero value is ready to use.
type Framer struct {
	buf  []byte
	open bool
}

// Feed consumes one byte and returns a candidate frame when b completes one.
// The returned slice is only valid until the next call.
func (f *Framer) Feed(b byte) ([]byte, bool) {
	if b == StartSentinel {
		f.buf = append(f.buf[:0], b)
		f.open = true
		return nil, false
	}
	if !f.open {
		return nil, false
	}

	f.buf = append(f.buf, b)
	if len(f.buf) > MaxFrameLen {
		f.Reset()
		return nil, false
	}
	if b != EndSentinel || len(f.buf) < MinFrameLen {
		return nil, false
	}
	if want := int(f.buf[1]) + overhead; len(f.buf) < want {
		return nil, false
	}

	f.open = false
	return f.buf, true
}

// Reset drops any partially buffered frame.
func (f *Framer) Reset() {
	f.buf = f.buf[:0]
	f.open = false
}

// Pending is the number of bytes in the open frame.
func (f *Framer) Pending() int {
	if !f.open {
		return 0
	}
	return len(f.buf)
}
